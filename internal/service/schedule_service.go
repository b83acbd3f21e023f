package service

import (
	"context"
	"errors"
	"time"

	"veloplan/training-app/internal/domain"
	"veloplan/training-app/internal/metrics"
	"veloplan/training-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// --- Error Definitions ---
var (
	ErrInstanceNotFound         = errors.New("plan instance not found")
	ErrInstanceNotActive        = errors.New("plan instance is not active")
	ErrScheduleConflict         = errors.New("plan instance overlaps an existing active plan")
	ErrScheduledWorkoutNotFound = errors.New("scheduled workout not found")
	ErrDateOutsideInstance      = errors.New("date falls outside the plan instance")
	ErrInvalidDateRange         = errors.New("invalid date range")
)

// Calendar queries are capped so a bad client cannot ask for decades.
const maxScheduleRangeDays = 366

// The nightly re-match job walks users in pages of this size.
const rematchPageSize = 100

// --- Service Interface ---
type ScheduleService interface {
	// CreateInstance schedules a plan starting on startDate. The date range
	// [startDate, startDate+weeks*7-1] must not overlap any of the user's
	// active instances; conflicts return ErrScheduleConflict. On success
	// every plan workout is materialized onto the calendar.
	CreateInstance(ctx context.Context, userID, planID primitive.ObjectID, startDate time.Time) (*domain.PlanInstance, error)
	GetInstances(ctx context.Context, userID primitive.ObjectID) ([]domain.PlanInstance, error)
	GetInstance(ctx context.Context, userID, instanceID primitive.ObjectID) (*domain.PlanInstance, []domain.ScheduledWorkout, error)
	// CancelInstance stops an active instance. Completed and matched
	// workouts stay in the history; still-planned ones are removed.
	CancelInstance(ctx context.Context, userID, instanceID primitive.ObjectID) (*domain.PlanInstance, error)

	// InsertLibraryWorkout copies a workout from the user's library onto a
	// date inside an active instance.
	InsertLibraryWorkout(ctx context.Context, userID, instanceID, libraryWorkoutID primitive.ObjectID, date time.Time) (*domain.ScheduledWorkout, error)

	// Range returns the user's calendar between from and to inclusive.
	Range(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]domain.ScheduledWorkout, error)
	UpdateWorkoutStatus(ctx context.Context, userID, workoutID primitive.ObjectID, status domain.WorkoutStatus) (*domain.ScheduledWorkout, error)

	// MatchActivity links an activity to the best unmatched workout planned
	// for the same day and sport. Returns nil when nothing qualifies.
	MatchActivity(ctx context.Context, activity *domain.Activity) (*domain.ScheduledWorkout, error)
	// UnmatchActivity reverses MatchActivity when an activity disappears.
	UnmatchActivity(ctx context.Context, activityID primitive.ObjectID) error
	// RematchSweep re-runs matching for every user's unmatched activities.
	RematchSweep(ctx context.Context) error
}

// --- Service Implementation ---

// scheduleService implements the ScheduleService interface.
type scheduleService struct {
	instanceRepo repository.PlanInstanceRepository
	workoutRepo  repository.ScheduledWorkoutRepository
	planRepo     repository.TrainingPlanRepository
	libraryRepo  repository.LibraryWorkoutRepository
	activityRepo repository.ActivityRepository
	userRepo     repository.UserRepository
	logger       *zap.Logger
}

// NewScheduleService creates a new instance of scheduleService.
func NewScheduleService(
	instanceRepo repository.PlanInstanceRepository,
	workoutRepo repository.ScheduledWorkoutRepository,
	planRepo repository.TrainingPlanRepository,
	libraryRepo repository.LibraryWorkoutRepository,
	activityRepo repository.ActivityRepository,
	userRepo repository.UserRepository,
	logger *zap.Logger,
) ScheduleService {
	return &scheduleService{
		instanceRepo: instanceRepo,
		workoutRepo:  workoutRepo,
		planRepo:     planRepo,
		libraryRepo:  libraryRepo,
		activityRepo: activityRepo,
		userRepo:     userRepo,
		logger:       logger,
	}
}

// dayOf truncates a timestamp to its UTC calendar day.
func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CreateInstance schedules a plan onto the calendar.
func (s *scheduleService) CreateInstance(ctx context.Context, userID, planID primitive.ObjectID, startDate time.Time) (*domain.PlanInstance, error) {
	if userID == primitive.NilObjectID || planID == primitive.NilObjectID {
		return nil, errors.New("user ID and plan ID are required")
	}

	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	if plan.OwnerID != userID {
		return nil, ErrPlanNotFound
	}

	start := dayOf(startDate)
	end := start.AddDate(0, 0, plan.Weeks*7-1)

	// Both ranges are inclusive: two instances conflict when one starts
	// before the other ends.
	active, err := s.instanceRepo.GetActiveByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range active {
		if active[i].Overlaps(start, end) {
			return nil, ErrScheduleConflict
		}
	}

	instance := &domain.PlanInstance{
		UserID:    userID,
		PlanID:    plan.ID,
		PlanName:  plan.Name,
		StartDate: start,
		EndDate:   end,
		Status:    domain.InstanceStatusActive,
	}

	instanceID, err := s.instanceRepo.Create(ctx, instance)
	if err != nil {
		return nil, err
	}
	instance.ID = instanceID

	// Week 1 day 1 lands on the start date itself.
	workouts := make([]domain.ScheduledWorkout, 0, len(plan.Workouts))
	for _, w := range plan.Workouts {
		workouts = append(workouts, domain.ScheduledWorkout{
			UserID:      userID,
			InstanceID:  instanceID,
			Date:        start.AddDate(0, 0, (w.Week-1)*7+(w.Day-1)),
			Name:        w.Name,
			Sport:       w.Sport,
			Description: w.Description,
			DurationMin: w.DurationMin,
			TargetTSS:   w.TargetTSS,
			Status:      domain.WorkoutStatusPlanned,
		})
	}
	if err := s.workoutRepo.CreateMany(ctx, workouts); err != nil {
		// Roll the instance back so a half-scheduled plan does not block
		// the calendar.
		_ = s.instanceRepo.UpdateStatus(ctx, instanceID, userID, domain.InstanceStatusCancelled)
		return nil, err
	}

	s.logger.Info("plan instance scheduled",
		zap.String("instanceId", instanceID.Hex()),
		zap.String("planId", plan.ID.Hex()),
		zap.Int("workouts", len(workouts)),
	)

	return s.instanceRepo.GetByID(ctx, instanceID)
}

// GetInstances retrieves all of the user's plan instances.
func (s *scheduleService) GetInstances(ctx context.Context, userID primitive.ObjectID) ([]domain.PlanInstance, error) {
	if userID == primitive.NilObjectID {
		return nil, errors.New("user ID cannot be nil")
	}
	return s.instanceRepo.GetByUserID(ctx, userID)
}

// GetInstance retrieves one instance and its materialized workouts.
func (s *scheduleService) GetInstance(ctx context.Context, userID, instanceID primitive.ObjectID) (*domain.PlanInstance, []domain.ScheduledWorkout, error) {
	instance, err := s.getOwnedInstance(ctx, userID, instanceID)
	if err != nil {
		return nil, nil, err
	}

	workouts, err := s.workoutRepo.GetByInstanceID(ctx, instanceID)
	if err != nil {
		return nil, nil, err
	}
	return instance, workouts, nil
}

// CancelInstance stops an active instance and clears its planned workouts.
func (s *scheduleService) CancelInstance(ctx context.Context, userID, instanceID primitive.ObjectID) (*domain.PlanInstance, error) {
	instance, err := s.getOwnedInstance(ctx, userID, instanceID)
	if err != nil {
		return nil, err
	}
	if instance.Status != domain.InstanceStatusActive {
		return nil, ErrInstanceNotActive
	}

	if err := s.instanceRepo.UpdateStatus(ctx, instanceID, userID, domain.InstanceStatusCancelled); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInstanceNotFound
		}
		return nil, err
	}

	if err := s.workoutRepo.DeleteUnmatchedByInstance(ctx, instanceID); err != nil {
		// The instance is already cancelled; stray planned workouts are
		// cosmetic, so log instead of failing the request.
		s.logger.Warn("failed to remove planned workouts of cancelled instance",
			zap.String("instanceId", instanceID.Hex()),
			zap.Error(err),
		)
	}

	return s.instanceRepo.GetByID(ctx, instanceID)
}

// InsertLibraryWorkout copies a library workout onto the calendar inside an
// active instance.
func (s *scheduleService) InsertLibraryWorkout(ctx context.Context, userID, instanceID, libraryWorkoutID primitive.ObjectID, date time.Time) (*domain.ScheduledWorkout, error) {
	instance, err := s.getOwnedInstance(ctx, userID, instanceID)
	if err != nil {
		return nil, err
	}
	if instance.Status != domain.InstanceStatusActive {
		return nil, ErrInstanceNotActive
	}

	day := dayOf(date)
	if !instance.Covers(day) {
		return nil, ErrDateOutsideInstance
	}

	libraryWorkout, err := s.libraryRepo.GetByID(ctx, libraryWorkoutID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLibraryWorkoutNotFound
		}
		return nil, err
	}
	if libraryWorkout.OwnerID != userID {
		return nil, ErrLibraryWorkoutNotFound
	}

	workout := &domain.ScheduledWorkout{
		UserID:      userID,
		InstanceID:  instanceID,
		Date:        day,
		Name:        libraryWorkout.Name,
		Sport:       libraryWorkout.Sport,
		Description: libraryWorkout.Description,
		DurationMin: libraryWorkout.DurationMin,
		TargetTSS:   libraryWorkout.TargetTSS,
		Status:      domain.WorkoutStatusPlanned,
	}

	workoutID, err := s.workoutRepo.Create(ctx, workout)
	if err != nil {
		return nil, err
	}
	return s.workoutRepo.GetByID(ctx, workoutID)
}

// Range retrieves the user's calendar between two inclusive dates.
func (s *scheduleService) Range(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]domain.ScheduledWorkout, error) {
	if userID == primitive.NilObjectID {
		return nil, errors.New("user ID cannot be nil")
	}

	fromDay, toDay := dayOf(from), dayOf(to)
	if toDay.Before(fromDay) {
		return nil, ErrInvalidDateRange
	}
	if toDay.Sub(fromDay) > maxScheduleRangeDays*24*time.Hour {
		return nil, ErrInvalidDateRange
	}

	return s.workoutRepo.GetByUserAndDateRange(ctx, userID, fromDay, toDay)
}

// UpdateWorkoutStatus lets the athlete mark a workout completed or skipped
// (or back to planned).
func (s *scheduleService) UpdateWorkoutStatus(ctx context.Context, userID, workoutID primitive.ObjectID, status domain.WorkoutStatus) (*domain.ScheduledWorkout, error) {
	switch status {
	case domain.WorkoutStatusPlanned, domain.WorkoutStatusCompleted, domain.WorkoutStatusSkipped:
	default:
		return nil, errors.New("unknown workout status")
	}

	if err := s.workoutRepo.UpdateStatus(ctx, workoutID, userID, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrScheduledWorkoutNotFound
		}
		return nil, err
	}
	return s.workoutRepo.GetByID(ctx, workoutID)
}

// MatchActivity links an activity to the closest planned workout of the
// same user, day, and sport. Closeness is the absolute gap between planned
// and recorded duration; ties go to the earlier-created workout.
func (s *scheduleService) MatchActivity(ctx context.Context, activity *domain.Activity) (*domain.ScheduledWorkout, error) {
	if activity == nil || activity.ID == primitive.NilObjectID {
		return nil, errors.New("activity is required")
	}
	if activity.IsMatched() {
		return nil, nil
	}

	day := dayOf(activity.StartTime)
	candidates, err := s.workoutRepo.GetByUserAndDateRange(ctx, activity.UserID, day, day)
	if err != nil {
		return nil, err
	}

	best := pickBestMatch(candidates, activity)
	if best == nil {
		return nil, nil
	}

	if err := s.workoutRepo.SetMatch(ctx, best.ID, activity.ID); err != nil {
		return nil, err
	}
	workoutID := best.ID
	if err := s.activityRepo.SetMatch(ctx, activity.ID, &workoutID); err != nil {
		return nil, err
	}
	activity.MatchedWorkoutID = &workoutID

	metrics.RecordWorkoutMatch()
	s.logger.Debug("activity matched to workout",
		zap.String("activityId", activity.ID.Hex()),
		zap.String("workoutId", best.ID.Hex()),
	)

	return s.workoutRepo.GetByID(ctx, best.ID)
}

// pickBestMatch selects the unmatched planned workout whose duration is
// closest to the activity's.
func pickBestMatch(candidates []domain.ScheduledWorkout, activity *domain.Activity) *domain.ScheduledWorkout {
	var best *domain.ScheduledWorkout
	var bestGap int

	for i := range candidates {
		w := &candidates[i]
		if w.Status != domain.WorkoutStatusPlanned || w.IsMatched() {
			continue
		}
		if w.Sport != activity.Sport {
			continue
		}

		gap := w.DurationMin*60 - activity.DurationSec
		if gap < 0 {
			gap = -gap
		}

		switch {
		case best == nil:
			best, bestGap = w, gap
		case gap < bestGap:
			best, bestGap = w, gap
		case gap == bestGap && w.CreatedAt.Before(best.CreatedAt):
			best = w
		}
	}
	return best
}

// UnmatchActivity clears both sides of a match when an activity is removed.
func (s *scheduleService) UnmatchActivity(ctx context.Context, activityID primitive.ObjectID) error {
	if err := s.workoutRepo.ClearMatchByActivity(ctx, activityID); err != nil {
		return err
	}
	return nil
}

// RematchSweep retries matching for unmatched activities of every user.
// Runs nightly so workouts planned after an activity was recorded still
// get linked.
func (s *scheduleService) RematchSweep(ctx context.Context) error {
	var matched, scanned int

	for offset := int64(0); ; offset += rematchPageSize {
		users, err := s.userRepo.List(ctx, offset, rematchPageSize)
		if err != nil {
			return err
		}
		if len(users) == 0 {
			break
		}

		for i := range users {
			activities, err := s.activityRepo.GetUnmatchedByUser(ctx, users[i].ID)
			if err != nil {
				return err
			}
			for j := range activities {
				scanned++
				workout, err := s.MatchActivity(ctx, &activities[j])
				if err != nil {
					return err
				}
				if workout != nil {
					matched++
				}
			}
		}

		if len(users) < rematchPageSize {
			break
		}
	}

	s.logger.Info("re-match sweep finished", zap.Int("scanned", scanned), zap.Int("matched", matched))
	return nil
}

// getOwnedInstance loads an instance and enforces ownership.
func (s *scheduleService) getOwnedInstance(ctx context.Context, userID, instanceID primitive.ObjectID) (*domain.PlanInstance, error) {
	instance, err := s.instanceRepo.GetByID(ctx, instanceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInstanceNotFound
		}
		return nil, err
	}
	if instance.UserID != userID {
		return nil, ErrInstanceNotFound
	}
	return instance, nil
}
