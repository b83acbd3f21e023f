package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LibraryWorkout is a single reusable workout definition owned by a user,
// outside any plan. Library workouts can be inserted into a scheduled plan
// instance at a chosen date.
type LibraryWorkout struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID     primitive.ObjectID `bson:"ownerId" json:"ownerId"`
	Name        string             `bson:"name" json:"name"`
	Sport       Sport              `bson:"sport" json:"sport"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	DurationMin int                `bson:"durationMin" json:"durationMin"`
	TargetTSS   *int               `bson:"targetTss,omitempty" json:"targetTss,omitempty"`
	DistanceKM  *float64           `bson:"distanceKm,omitempty" json:"distanceKm,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}
