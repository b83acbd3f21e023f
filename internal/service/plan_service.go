package service

import (
	"context"
	"errors"

	"veloplan/training-app/internal/domain"
	"veloplan/training-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrPlanNotFound           = errors.New("training plan not found")
	ErrPlanAccessDenied       = errors.New("access denied to this training plan")
	ErrPlanValidationFailed   = errors.New("training plan validation failed")
	ErrLibraryWorkoutNotFound = errors.New("library workout not found")
)

const maxPlanWeeks = 52

// --- Service Interface ---
type PlanService interface {
	CreatePlan(ctx context.Context, ownerID primitive.ObjectID, plan *domain.TrainingPlan) (*domain.TrainingPlan, error)
	GetPlan(ctx context.Context, ownerID, planID primitive.ObjectID) (*domain.TrainingPlan, error)
	GetPlansByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]domain.TrainingPlan, error)
	UpdatePlan(ctx context.Context, ownerID, planID primitive.ObjectID, plan *domain.TrainingPlan) (*domain.TrainingPlan, error)
	DeletePlan(ctx context.Context, ownerID, planID primitive.ObjectID) error

	CreateLibraryWorkout(ctx context.Context, ownerID primitive.ObjectID, workout *domain.LibraryWorkout) (*domain.LibraryWorkout, error)
	GetLibraryWorkout(ctx context.Context, ownerID, workoutID primitive.ObjectID) (*domain.LibraryWorkout, error)
	GetLibraryWorkoutsByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]domain.LibraryWorkout, error)
	UpdateLibraryWorkout(ctx context.Context, ownerID, workoutID primitive.ObjectID, workout *domain.LibraryWorkout) (*domain.LibraryWorkout, error)
	DeleteLibraryWorkout(ctx context.Context, ownerID, workoutID primitive.ObjectID) error
}

// --- Service Implementation ---

// planService implements the PlanService interface.
type planService struct {
	planRepo    repository.TrainingPlanRepository
	libraryRepo repository.LibraryWorkoutRepository
}

// NewPlanService creates a new instance of planService.
func NewPlanService(planRepo repository.TrainingPlanRepository, libraryRepo repository.LibraryWorkoutRepository) PlanService {
	return &planService{
		planRepo:    planRepo,
		libraryRepo: libraryRepo,
	}
}

// validatePlan checks a plan's structural invariants: a known sport, a
// sane week count, and every workout placed inside the plan's grid.
func validatePlan(plan *domain.TrainingPlan) error {
	if plan.Name == "" {
		return ErrPlanValidationFailed
	}
	if !domain.ValidSport(plan.Sport) {
		return ErrPlanValidationFailed
	}
	if plan.Weeks < 1 || plan.Weeks > maxPlanWeeks {
		return ErrPlanValidationFailed
	}
	for _, w := range plan.Workouts {
		if w.Name == "" || !domain.ValidSport(w.Sport) {
			return ErrPlanValidationFailed
		}
		if w.Week < 1 || w.Week > plan.Weeks {
			return ErrPlanValidationFailed
		}
		if w.Day < 1 || w.Day > 7 {
			return ErrPlanValidationFailed
		}
		if w.DurationMin <= 0 {
			return ErrPlanValidationFailed
		}
	}
	return nil
}

// CreatePlan handles the creation of a new training plan.
func (s *planService) CreatePlan(ctx context.Context, ownerID primitive.ObjectID, plan *domain.TrainingPlan) (*domain.TrainingPlan, error) {
	if ownerID == primitive.NilObjectID {
		return nil, errors.New("owner ID is required to create a plan")
	}
	if err := validatePlan(plan); err != nil {
		return nil, err
	}

	plan.OwnerID = ownerID

	planID, err := s.planRepo.Create(ctx, plan)
	if err != nil {
		return nil, err
	}
	return s.planRepo.GetByID(ctx, planID)
}

// GetPlan retrieves a single plan, enforcing ownership.
func (s *planService) GetPlan(ctx context.Context, ownerID, planID primitive.ObjectID) (*domain.TrainingPlan, error) {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	if plan.OwnerID != ownerID {
		// Another user's plan is indistinguishable from a missing one.
		return nil, ErrPlanNotFound
	}
	return plan, nil
}

// GetPlansByOwner retrieves all plans owned by a user.
func (s *planService) GetPlansByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]domain.TrainingPlan, error) {
	if ownerID == primitive.NilObjectID {
		return nil, errors.New("owner ID cannot be nil")
	}
	return s.planRepo.GetByOwnerID(ctx, ownerID)
}

// UpdatePlan handles updating an existing plan, ensuring ownership.
func (s *planService) UpdatePlan(ctx context.Context, ownerID, planID primitive.ObjectID, plan *domain.TrainingPlan) (*domain.TrainingPlan, error) {
	if err := validatePlan(plan); err != nil {
		return nil, err
	}

	existing, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	if existing.OwnerID != ownerID {
		return nil, ErrPlanAccessDenied
	}

	existing.Name = plan.Name
	existing.Description = plan.Description
	existing.Sport = plan.Sport
	existing.Weeks = plan.Weeks
	existing.Workouts = plan.Workouts

	if err := s.planRepo.Update(ctx, existing); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return existing, nil
}

// DeletePlan handles deleting a plan, ensuring ownership. Instances already
// scheduled from the plan keep their own copy of the workouts and survive.
func (s *planService) DeletePlan(ctx context.Context, ownerID, planID primitive.ObjectID) error {
	if ownerID == primitive.NilObjectID || planID == primitive.NilObjectID {
		return errors.New("owner ID and plan ID are required")
	}

	err := s.planRepo.Delete(ctx, planID, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPlanNotFound
		}
		return err
	}
	return nil
}

// validateLibraryWorkout checks the standalone workout invariants.
func validateLibraryWorkout(workout *domain.LibraryWorkout) error {
	if workout.Name == "" || !domain.ValidSport(workout.Sport) {
		return ErrPlanValidationFailed
	}
	if workout.DurationMin <= 0 {
		return ErrPlanValidationFailed
	}
	return nil
}

// CreateLibraryWorkout adds a reusable workout to the user's library.
func (s *planService) CreateLibraryWorkout(ctx context.Context, ownerID primitive.ObjectID, workout *domain.LibraryWorkout) (*domain.LibraryWorkout, error) {
	if ownerID == primitive.NilObjectID {
		return nil, errors.New("owner ID is required to create a library workout")
	}
	if err := validateLibraryWorkout(workout); err != nil {
		return nil, err
	}

	workout.OwnerID = ownerID

	workoutID, err := s.libraryRepo.Create(ctx, workout)
	if err != nil {
		return nil, err
	}
	return s.libraryRepo.GetByID(ctx, workoutID)
}

// GetLibraryWorkout retrieves a single library workout, enforcing ownership.
func (s *planService) GetLibraryWorkout(ctx context.Context, ownerID, workoutID primitive.ObjectID) (*domain.LibraryWorkout, error) {
	workout, err := s.libraryRepo.GetByID(ctx, workoutID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLibraryWorkoutNotFound
		}
		return nil, err
	}
	if workout.OwnerID != ownerID {
		return nil, ErrLibraryWorkoutNotFound
	}
	return workout, nil
}

// GetLibraryWorkoutsByOwner retrieves the user's whole library.
func (s *planService) GetLibraryWorkoutsByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]domain.LibraryWorkout, error) {
	if ownerID == primitive.NilObjectID {
		return nil, errors.New("owner ID cannot be nil")
	}
	return s.libraryRepo.GetByOwnerID(ctx, ownerID)
}

// UpdateLibraryWorkout handles updating a library workout, ensuring ownership.
func (s *planService) UpdateLibraryWorkout(ctx context.Context, ownerID, workoutID primitive.ObjectID, workout *domain.LibraryWorkout) (*domain.LibraryWorkout, error) {
	if err := validateLibraryWorkout(workout); err != nil {
		return nil, err
	}

	existing, err := s.libraryRepo.GetByID(ctx, workoutID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLibraryWorkoutNotFound
		}
		return nil, err
	}
	if existing.OwnerID != ownerID {
		return nil, ErrPlanAccessDenied
	}

	existing.Name = workout.Name
	existing.Sport = workout.Sport
	existing.Description = workout.Description
	existing.DurationMin = workout.DurationMin
	existing.TargetTSS = workout.TargetTSS
	existing.DistanceKM = workout.DistanceKM

	if err := s.libraryRepo.Update(ctx, existing); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLibraryWorkoutNotFound
		}
		return nil, err
	}
	return existing, nil
}

// DeleteLibraryWorkout handles deleting a library workout, ensuring ownership.
func (s *planService) DeleteLibraryWorkout(ctx context.Context, ownerID, workoutID primitive.ObjectID) error {
	if ownerID == primitive.NilObjectID || workoutID == primitive.NilObjectID {
		return errors.New("owner ID and workout ID are required")
	}

	err := s.libraryRepo.Delete(ctx, workoutID, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrLibraryWorkoutNotFound
		}
		return err
	}
	return nil
}
