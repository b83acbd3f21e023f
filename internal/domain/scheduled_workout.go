package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WorkoutStatus type for the scheduled workout lifecycle
type WorkoutStatus string

const (
	WorkoutStatusPlanned   WorkoutStatus = "planned"
	WorkoutStatusCompleted WorkoutStatus = "completed" // Done, usually via a matched activity
	WorkoutStatusSkipped   WorkoutStatus = "skipped"
)

// ScheduledWorkout is a workout placed on a concrete calendar day, either
// materialized from a plan template when an instance is created or inserted
// from the workout library. MatchedActivityID links the recorded activity
// that fulfilled it.
type ScheduledWorkout struct {
	ID                primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID            primitive.ObjectID  `bson:"userId" json:"userId"`         // Denormalized for schedule queries
	InstanceID        primitive.ObjectID  `bson:"instanceId" json:"instanceId"` // Owning plan instance
	Date              time.Time           `bson:"date" json:"date"`             // Calendar day, UTC midnight
	Name              string              `bson:"name" json:"name"`
	Sport             Sport               `bson:"sport" json:"sport"`
	Description       string              `bson:"description,omitempty" json:"description,omitempty"`
	DurationMin       int                 `bson:"durationMin" json:"durationMin"`
	TargetTSS         *int                `bson:"targetTss,omitempty" json:"targetTss,omitempty"`
	Status            WorkoutStatus       `bson:"status" json:"status"`
	MatchedActivityID *primitive.ObjectID `bson:"matchedActivityId,omitempty" json:"matchedActivityId,omitempty"`
	CreatedAt         time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// IsMatched reports whether an activity has already been linked.
func (w *ScheduledWorkout) IsMatched() bool {
	return w.MatchedActivityID != nil && *w.MatchedActivityID != primitive.NilObjectID
}
