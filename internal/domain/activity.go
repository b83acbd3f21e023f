package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ActivitySource records where an activity came from.
type ActivitySource string

const (
	SourceManual        ActivitySource = "manual"
	SourceGPX           ActivitySource = "gpx"
	SourceStrava        ActivitySource = "strava"
	SourceTrainingPeaks ActivitySource = "trainingpeaks"
)

// Activity is a recorded training session. Synced activities carry the
// provider's ID in ExternalID so re-syncs do not duplicate them.
// MatchedWorkoutID links the scheduled workout this activity fulfilled.
type Activity struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID       primitive.ObjectID `bson:"userId" json:"userId"`
	Source       ActivitySource     `bson:"source" json:"source"`
	ExternalID   string             `bson:"externalId,omitempty" json:"externalId,omitempty"` // Provider activity ID, unique per user+source
	Name         string             `bson:"name" json:"name"`
	Sport        Sport              `bson:"sport" json:"sport"`
	StartTime    time.Time          `bson:"startTime" json:"startTime"`
	DurationSec  int                `bson:"durationSec" json:"durationSec"`
	DistanceKM   float64            `bson:"distanceKm,omitempty" json:"distanceKm,omitempty"`
	AverageWatts *int               `bson:"averageWatts,omitempty" json:"averageWatts,omitempty"`
	TSS          *float64           `bson:"tss,omitempty" json:"tss,omitempty"`

	FileID           *primitive.ObjectID `bson:"fileId,omitempty" json:"fileId,omitempty"`                     // FIT file in object storage
	MatchedWorkoutID *primitive.ObjectID `bson:"matchedWorkoutId,omitempty" json:"matchedWorkoutId,omitempty"` // Scheduled workout fulfilled by this activity

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// IsMatched reports whether this activity has been linked to a workout.
func (a *Activity) IsMatched() bool {
	return a.MatchedWorkoutID != nil && *a.MatchedWorkoutID != primitive.NilObjectID
}
