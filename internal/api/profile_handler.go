package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"veloplan/training-app/internal/domain"
	"veloplan/training-app/internal/service"

	"github.com/gin-gonic/gin"
)

// dateLayout is the wire format for calendar dates (no time component).
const dateLayout = "2006-01-02"

// ProfileHandler holds the profile service dependency.
type ProfileHandler struct {
	profileService service.ProfileService
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(profileService service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// --- DTOs for API ---

// SaveProfileRequest defines the JSON for the onboarding wizard upsert.
type SaveProfileRequest struct {
	FullName           string   `json:"fullName" binding:"required"`
	Sex                string   `json:"sex" binding:"omitempty,oneof=female male other"`
	BirthDate          string   `json:"birthDate" binding:"omitempty"` // YYYY-MM-DD
	WeightKG           *float64 `json:"weightKg" binding:"omitempty,gt=0"`
	HeightCM           *float64 `json:"heightCm" binding:"omitempty,gt=0"`
	FTPWatts           *int     `json:"ftpWatts" binding:"omitempty,gt=0"`
	MaxHeartRate       *int     `json:"maxHeartRate" binding:"omitempty,gt=0"`
	RestingHeartRate   *int     `json:"restingHeartRate" binding:"omitempty,gt=0"`
	WeeklyHours        *int     `json:"weeklyHours" binding:"omitempty,gt=0"`
	Goals              []string `json:"goals"`
	OnboardingStep     int      `json:"onboardingStep" binding:"omitempty,min=0"`
	OnboardingComplete bool     `json:"onboardingComplete"`
}

// UpdateSettingsRequest defines the JSON for locale/appearance updates.
type UpdateSettingsRequest struct {
	Locale   string       `json:"locale" binding:"required"`
	Theme    domain.Theme `json:"theme" binding:"required,oneof=system light dark"`
	Units    domain.Units `json:"units" binding:"required,oneof=metric imperial"`
	Timezone string       `json:"timezone" binding:"required"`
}

// ProfileResponse is the DTO for returning a profile.
type ProfileResponse struct {
	ID                 string       `json:"id"`
	UserID             string       `json:"userId"`
	FullName           string       `json:"fullName"`
	Sex                string       `json:"sex,omitempty"`
	BirthDate          *time.Time   `json:"birthDate,omitempty"`
	WeightKG           *float64     `json:"weightKg,omitempty"`
	HeightCM           *float64     `json:"heightCm,omitempty"`
	FTPWatts           *int         `json:"ftpWatts,omitempty"`
	MaxHeartRate       *int         `json:"maxHeartRate,omitempty"`
	RestingHeartRate   *int         `json:"restingHeartRate,omitempty"`
	WeeklyHours        *int         `json:"weeklyHours,omitempty"`
	Goals              []string     `json:"goals,omitempty"`
	OnboardingStep     int          `json:"onboardingStep"`
	OnboardingComplete bool         `json:"onboardingComplete"`
	Locale             string       `json:"locale"`
	Theme              domain.Theme `json:"theme"`
	Units              domain.Units `json:"units"`
	Timezone           string       `json:"timezone"`
	CreatedAt          time.Time    `json:"createdAt"`
	UpdatedAt          time.Time    `json:"updatedAt"`
}

// MapProfileToResponse converts a domain.Profile to ProfileResponse DTO.
func MapProfileToResponse(p *domain.Profile) ProfileResponse {
	if p == nil {
		return ProfileResponse{}
	}
	return ProfileResponse{
		ID:                 p.ID.Hex(),
		UserID:             p.UserID.Hex(),
		FullName:           p.FullName,
		Sex:                p.Sex,
		BirthDate:          p.BirthDate,
		WeightKG:           p.WeightKG,
		HeightCM:           p.HeightCM,
		FTPWatts:           p.FTPWatts,
		MaxHeartRate:       p.MaxHeartRate,
		RestingHeartRate:   p.RestingHeartRate,
		WeeklyHours:        p.WeeklyHours,
		Goals:              p.Goals,
		OnboardingStep:     p.OnboardingStep,
		OnboardingComplete: p.OnboardingComplete,
		Locale:             p.Locale,
		Theme:              p.Theme,
		Units:              p.Units,
		Timezone:           p.Timezone,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

// --- Handler Methods ---

// GetProfile godoc
// @Summary Get the authenticated user's athlete profile
// @Tags Profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ProfileResponse
// @Failure 404 {object} gin.H "Profile not created yet"
// @Router /profile [get]
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
		return
	}

	profile, err := h.profileService.Get(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrProfileNotFound) {
			abortWithError(c, http.StatusNotFound, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to load profile")
		}
		return
	}

	c.JSON(http.StatusOK, MapProfileToResponse(profile))
}

// SaveProfile godoc
// @Summary Create or update the athlete profile (onboarding wizard)
// @Tags Profile
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param profile body SaveProfileRequest true "Profile fields"
// @Success 200 {object} ProfileResponse
// @Failure 400 {object} gin.H "Invalid input"
// @Router /profile [put]
func (h *ProfileHandler) SaveProfile(c *gin.Context) {
	var req SaveProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	userID, err := currentUserID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
		return
	}

	input := service.ProfileInput{
		FullName:           req.FullName,
		Sex:                req.Sex,
		WeightKG:           req.WeightKG,
		HeightCM:           req.HeightCM,
		FTPWatts:           req.FTPWatts,
		MaxHeartRate:       req.MaxHeartRate,
		RestingHeartRate:   req.RestingHeartRate,
		WeeklyHours:        req.WeeklyHours,
		Goals:              req.Goals,
		OnboardingStep:     req.OnboardingStep,
		OnboardingComplete: req.OnboardingComplete,
	}
	if req.BirthDate != "" {
		birthDate, err := time.Parse(dateLayout, req.BirthDate)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "birthDate must be formatted as YYYY-MM-DD")
			return
		}
		input.BirthDate = &birthDate
	}

	profile, err := h.profileService.Save(c.Request.Context(), userID, input)
	if err != nil {
		if errors.Is(err, service.ErrProfileInvalid) {
			abortWithError(c, http.StatusBadRequest, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to save profile")
		}
		return
	}

	c.JSON(http.StatusOK, MapProfileToResponse(profile))
}

// UpdateSettings godoc
// @Summary Update locale and appearance settings only
// @Tags Profile
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param settings body UpdateSettingsRequest true "Settings"
// @Success 200 {object} ProfileResponse
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 404 {object} gin.H "Profile not created yet"
// @Router /profile/settings [patch]
func (h *ProfileHandler) UpdateSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	userID, err := currentUserID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
		return
	}

	profile, err := h.profileService.UpdateSettings(c.Request.Context(), userID, req.Locale, req.Theme, req.Units, req.Timezone)
	if err != nil {
		if errors.Is(err, service.ErrProfileNotFound) {
			abortWithError(c, http.StatusNotFound, err.Error())
		} else if errors.Is(err, service.ErrInvalidSettings) || errors.Is(err, service.ErrUnknownTimezone) {
			abortWithError(c, http.StatusBadRequest, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to update settings")
		}
		return
	}

	c.JSON(http.StatusOK, MapProfileToResponse(profile))
}
