package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InstanceStatus type for the plan instance lifecycle
type InstanceStatus string

const (
	InstanceStatusActive    InstanceStatus = "active"
	InstanceStatusCompleted InstanceStatus = "completed"
	InstanceStatusCancelled InstanceStatus = "cancelled"
)

// PlanInstance is a training plan scheduled onto the calendar: the plan
// template plus a concrete start date. EndDate is derived from the plan
// length (start + weeks*7 - 1 days). A user may never have two instances
// with overlapping date ranges while both are active.
type PlanInstance struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	PlanID    primitive.ObjectID `bson:"planId" json:"planId"`
	PlanName  string             `bson:"planName" json:"planName"` // Denormalized for listing without a join
	StartDate time.Time          `bson:"startDate" json:"startDate"`
	EndDate   time.Time          `bson:"endDate" json:"endDate"`
	Status    InstanceStatus     `bson:"status" json:"status"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Overlaps reports whether the instance's date range intersects [start, end].
// Ranges are inclusive on both sides: back-to-back plans must start the day
// after the previous one ends.
func (p *PlanInstance) Overlaps(start, end time.Time) bool {
	return !start.After(p.EndDate) && !p.StartDate.After(end)
}

// Covers reports whether a calendar day falls inside the instance range.
func (p *PlanInstance) Covers(day time.Time) bool {
	return p.Overlaps(day, day)
}
