package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Sport categorizes plans, workouts, and activities. Matching only ever
// pairs a recorded activity with a planned workout of the same sport.
type Sport string

const (
	SportRide     Sport = "ride"
	SportRun      Sport = "run"
	SportSwim     Sport = "swim"
	SportStrength Sport = "strength"
	SportOther    Sport = "other"
)

// ValidSport reports whether s is one of the known sport values.
func ValidSport(s Sport) bool {
	switch s {
	case SportRide, SportRun, SportSwim, SportStrength, SportOther:
		return true
	}
	return false
}

// PlanWorkout is a template workout inside a training plan. It has no
// concrete date; Week/Day place it relative to the instance start when the
// plan is scheduled.
type PlanWorkout struct {
	Week        int      `bson:"week" json:"week"` // 1-based week within the plan
	Day         int      `bson:"day" json:"day"`   // 1 (Mon) - 7 (Sun)
	Name        string   `bson:"name" json:"name"`
	Sport       Sport    `bson:"sport" json:"sport"`
	Description string   `bson:"description,omitempty" json:"description,omitempty"`
	DurationMin int      `bson:"durationMin" json:"durationMin"`
	TargetTSS   *int     `bson:"targetTss,omitempty" json:"targetTss,omitempty"` // Training Stress Score
	DistanceKM  *float64 `bson:"distanceKm,omitempty" json:"distanceKm,omitempty"`
}

// TrainingPlan is a reusable plan template owned by a user. Scheduling it
// creates a PlanInstance with concrete dates; the template itself carries
// only relative placement (week/day).
type TrainingPlan struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID     primitive.ObjectID `bson:"ownerId" json:"ownerId"`
	Name        string             `bson:"name" json:"name"` // e.g. "12-week base builder"
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Sport       Sport              `bson:"sport" json:"sport"`
	Weeks       int                `bson:"weeks" json:"weeks"` // Plan length, 1..52
	Workouts    []PlanWorkout      `bson:"workouts" json:"workouts"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}
