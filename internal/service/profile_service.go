package service

import (
	"context"
	"errors"
	"time"

	"veloplan/training-app/internal/domain"
	"veloplan/training-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrProfileInvalid  = errors.New("profile validation failed")
	ErrInvalidSettings = errors.New("invalid locale or appearance settings")
	ErrUnknownTimezone = errors.New("unknown timezone")
)

// ProfileInput carries the wizard-editable profile fields.
type ProfileInput struct {
	FullName           string
	Sex                string
	BirthDate          *time.Time
	WeightKG           *float64
	HeightCM           *float64
	FTPWatts           *int
	MaxHeartRate       *int
	RestingHeartRate   *int
	WeeklyHours        *int
	Goals              []string
	OnboardingStep     int
	OnboardingComplete bool
}

// --- Service Interface ---
type ProfileService interface {
	Get(ctx context.Context, userID primitive.ObjectID) (*domain.Profile, error)
	// Save upserts the wizard fields. On first save the locale and
	// appearance settings start from defaults.
	Save(ctx context.Context, userID primitive.ObjectID, input ProfileInput) (*domain.Profile, error)
	// UpdateSettings changes only locale, theme, units, and timezone.
	UpdateSettings(ctx context.Context, userID primitive.ObjectID, locale string, theme domain.Theme, units domain.Units, timezone string) (*domain.Profile, error)
}

// --- Service Implementation ---

// profileService implements the ProfileService interface.
type profileService struct {
	profileRepo repository.ProfileRepository
}

// NewProfileService creates a new instance of profileService.
func NewProfileService(profileRepo repository.ProfileRepository) ProfileService {
	return &profileService{profileRepo: profileRepo}
}

// Get retrieves the profile belonging to a user.
func (s *profileService) Get(ctx context.Context, userID primitive.ObjectID) (*domain.Profile, error) {
	if userID == primitive.NilObjectID {
		return nil, errors.New("user ID is required")
	}

	profile, err := s.profileRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return profile, nil
}

// Save upserts the wizard fields of the user's profile.
func (s *profileService) Save(ctx context.Context, userID primitive.ObjectID, input ProfileInput) (*domain.Profile, error) {
	if userID == primitive.NilObjectID {
		return nil, errors.New("user ID is required")
	}
	if input.FullName == "" {
		return nil, ErrProfileInvalid
	}
	if input.WeightKG != nil && (*input.WeightKG <= 0 || *input.WeightKG > 400) {
		return nil, ErrProfileInvalid
	}
	if input.HeightCM != nil && (*input.HeightCM <= 0 || *input.HeightCM > 280) {
		return nil, ErrProfileInvalid
	}
	if input.FTPWatts != nil && (*input.FTPWatts <= 0 || *input.FTPWatts > 2000) {
		return nil, ErrProfileInvalid
	}
	if input.BirthDate != nil && input.BirthDate.After(time.Now()) {
		return nil, ErrProfileInvalid
	}

	profile := &domain.Profile{
		UserID:             userID,
		FullName:           input.FullName,
		Sex:                input.Sex,
		BirthDate:          input.BirthDate,
		WeightKG:           input.WeightKG,
		HeightCM:           input.HeightCM,
		FTPWatts:           input.FTPWatts,
		MaxHeartRate:       input.MaxHeartRate,
		RestingHeartRate:   input.RestingHeartRate,
		WeeklyHours:        input.WeeklyHours,
		Goals:              input.Goals,
		OnboardingStep:     input.OnboardingStep,
		OnboardingComplete: input.OnboardingComplete,
		// Defaults apply only on insert; the repository leaves existing
		// settings untouched on update.
		Locale:   "en-US",
		Theme:    domain.ThemeSystem,
		Units:    domain.UnitsMetric,
		Timezone: "UTC",
	}

	return s.profileRepo.Upsert(ctx, profile)
}

// UpdateSettings changes the locale/appearance fields of the profile.
func (s *profileService) UpdateSettings(ctx context.Context, userID primitive.ObjectID, locale string, theme domain.Theme, units domain.Units, timezone string) (*domain.Profile, error) {
	if userID == primitive.NilObjectID {
		return nil, errors.New("user ID is required")
	}
	if locale == "" || !domain.ValidTheme(theme) || !domain.ValidUnits(units) {
		return nil, ErrInvalidSettings
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return nil, ErrUnknownTimezone
	}

	updated, err := s.profileRepo.UpdateSettings(ctx, userID, locale, theme, units, timezone)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return updated, nil
}
