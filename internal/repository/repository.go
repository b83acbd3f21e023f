package repository

import (
	"context"
	"time"

	"veloplan/training-app/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrDuplicate    = RepositoryError("duplicate key")
	ErrUpdateFailed = RepositoryError("update failed")
	ErrDeleteFailed = RepositoryError("delete failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	// List returns a page of users ordered by creation date (newest first).
	List(ctx context.Context, offset, limit int64) ([]domain.User, error)
	Count(ctx context.Context) (int64, error)
}

// ProfileRepository defines the interface for athlete profiles.
// A user has at most one profile; Upsert creates it on first write.
type ProfileRepository interface {
	Upsert(ctx context.Context, profile *domain.Profile) (*domain.Profile, error)
	GetByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.Profile, error)
	UpdateSettings(ctx context.Context, userID primitive.ObjectID, locale string, theme domain.Theme, units domain.Units, timezone string) (*domain.Profile, error)
}

// TrainingPlanRepository defines the interface for plan templates.
// Mutations are owner-scoped: they match both _id and ownerId so a user can
// never touch another user's plan.
type TrainingPlanRepository interface {
	Create(ctx context.Context, plan *domain.TrainingPlan) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.TrainingPlan, error)
	GetByOwnerID(ctx context.Context, ownerID primitive.ObjectID) ([]domain.TrainingPlan, error)
	Update(ctx context.Context, plan *domain.TrainingPlan) error
	Delete(ctx context.Context, id, ownerID primitive.ObjectID) error
}

// LibraryWorkoutRepository defines the interface for the user's workout library.
type LibraryWorkoutRepository interface {
	Create(ctx context.Context, workout *domain.LibraryWorkout) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.LibraryWorkout, error)
	GetByOwnerID(ctx context.Context, ownerID primitive.ObjectID) ([]domain.LibraryWorkout, error)
	Update(ctx context.Context, workout *domain.LibraryWorkout) error
	Delete(ctx context.Context, id, ownerID primitive.ObjectID) error
}

// PlanInstanceRepository defines the interface for scheduled plan instances.
type PlanInstanceRepository interface {
	Create(ctx context.Context, instance *domain.PlanInstance) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.PlanInstance, error)
	GetByUserID(ctx context.Context, userID primitive.ObjectID) ([]domain.PlanInstance, error)
	// GetActiveByUserID returns instances still occupying calendar space
	// (status == active); the overlap validator runs against this set.
	GetActiveByUserID(ctx context.Context, userID primitive.ObjectID) ([]domain.PlanInstance, error)
	UpdateStatus(ctx context.Context, id, userID primitive.ObjectID, status domain.InstanceStatus) error
}

// ScheduledWorkoutRepository defines the interface for workouts placed on
// the calendar.
type ScheduledWorkoutRepository interface {
	Create(ctx context.Context, workout *domain.ScheduledWorkout) (primitive.ObjectID, error)
	CreateMany(ctx context.Context, workouts []domain.ScheduledWorkout) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.ScheduledWorkout, error)
	GetByInstanceID(ctx context.Context, instanceID primitive.ObjectID) ([]domain.ScheduledWorkout, error)
	// GetByUserAndDateRange returns the user's workouts with date in
	// [from, to], ordered by date ascending.
	GetByUserAndDateRange(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]domain.ScheduledWorkout, error)
	UpdateStatus(ctx context.Context, id, userID primitive.ObjectID, status domain.WorkoutStatus) error
	// SetMatch links an activity and marks the workout completed.
	SetMatch(ctx context.Context, id, activityID primitive.ObjectID) error
	// ClearMatchByActivity unlinks whatever workout referenced the activity
	// (used when an activity is deleted) and resets it to planned.
	ClearMatchByActivity(ctx context.Context, activityID primitive.ObjectID) error
	// DeleteUnmatchedByInstance removes still-planned workouts of a cancelled
	// instance; completed or matched ones are kept for history.
	DeleteUnmatchedByInstance(ctx context.Context, instanceID primitive.ObjectID) error
}

// ActivityRepository defines the interface for recorded activities.
type ActivityRepository interface {
	Create(ctx context.Context, activity *domain.Activity) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Activity, error)
	GetByUserAndTimeRange(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]domain.Activity, error)
	// GetByExternalID deduplicates synced activities per user+source.
	GetByExternalID(ctx context.Context, userID primitive.ObjectID, source domain.ActivitySource, externalID string) (*domain.Activity, error)
	GetUnmatchedByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.Activity, error)
	SetFile(ctx context.Context, id primitive.ObjectID, fileID *primitive.ObjectID) error
	SetMatch(ctx context.Context, id primitive.ObjectID, workoutID *primitive.ObjectID) error
	Delete(ctx context.Context, id, userID primitive.ObjectID) error
}

// ConnectionRepository defines the interface for provider OAuth connections.
type ConnectionRepository interface {
	// Upsert inserts or replaces the (user, provider) connection.
	Upsert(ctx context.Context, conn *domain.Connection) (*domain.Connection, error)
	GetByUserAndProvider(ctx context.Context, userID primitive.ObjectID, provider domain.Provider) (*domain.Connection, error)
	GetByUserID(ctx context.Context, userID primitive.ObjectID) ([]domain.Connection, error)
	// GetByProviderUserID resolves webhook events to a local connection.
	GetByProviderUserID(ctx context.Context, provider domain.Provider, providerUserID string) (*domain.Connection, error)
	// GetExpiring returns connections whose access token expires before the
	// cutoff; the background refresher sweeps these.
	GetExpiring(ctx context.Context, cutoff time.Time) ([]domain.Connection, error)
	UpdateTokens(ctx context.Context, id primitive.ObjectID, accessToken, refreshToken string, expiresAt time.Time) error
	UpdateLastSync(ctx context.Context, id primitive.ObjectID, at time.Time) error
	Delete(ctx context.Context, userID primitive.ObjectID, provider domain.Provider) error
}

// FileRepository defines the interface for uploaded file metadata.
type FileRepository interface {
	Create(ctx context.Context, file *domain.FileObject) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.FileObject, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}
