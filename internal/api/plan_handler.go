package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"veloplan/training-app/internal/domain"
	"veloplan/training-app/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanHandler holds the plan service dependency. It serves both the plan
// templates and the workout library.
type PlanHandler struct {
	planService service.PlanService
}

// NewPlanHandler creates a new PlanHandler.
func NewPlanHandler(planService service.PlanService) *PlanHandler {
	return &PlanHandler{planService: planService}
}

// --- DTOs for API ---

// PlanWorkoutPayload is one template workout inside a plan request.
type PlanWorkoutPayload struct {
	Week        int          `json:"week" binding:"required,min=1"`
	Day         int          `json:"day" binding:"required,min=1,max=7"` // 1 (Mon) - 7 (Sun)
	Name        string       `json:"name" binding:"required"`
	Sport       domain.Sport `json:"sport" binding:"required,oneof=ride run swim strength other"`
	Description string       `json:"description"`
	DurationMin int          `json:"durationMin" binding:"required,gt=0"`
	TargetTSS   *int         `json:"targetTss" binding:"omitempty,gt=0"`
	DistanceKM  *float64     `json:"distanceKm" binding:"omitempty,gt=0"`
}

// PlanRequest defines the JSON for creating or replacing a training plan.
type PlanRequest struct {
	Name        string               `json:"name" binding:"required"`
	Description string               `json:"description"`
	Sport       domain.Sport         `json:"sport" binding:"required,oneof=ride run swim strength other"`
	Weeks       int                  `json:"weeks" binding:"required,min=1,max=52"`
	Workouts    []PlanWorkoutPayload `json:"workouts" binding:"omitempty,dive"`
}

// TrainingPlanResponse is the DTO for returning a plan. Template workouts
// carry no ObjectIDs, so the domain type serializes directly.
type TrainingPlanResponse struct {
	ID          string               `json:"id"`
	OwnerID     string               `json:"ownerId"`
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Sport       domain.Sport         `json:"sport"`
	Weeks       int                  `json:"weeks"`
	Workouts    []domain.PlanWorkout `json:"workouts"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

// LibraryWorkoutRequest defines the JSON for creating or replacing a
// library workout.
type LibraryWorkoutRequest struct {
	Name        string       `json:"name" binding:"required"`
	Sport       domain.Sport `json:"sport" binding:"required,oneof=ride run swim strength other"`
	Description string       `json:"description"`
	DurationMin int          `json:"durationMin" binding:"required,gt=0"`
	TargetTSS   *int         `json:"targetTss" binding:"omitempty,gt=0"`
	DistanceKM  *float64     `json:"distanceKm" binding:"omitempty,gt=0"`
}

// LibraryWorkoutResponse is the DTO for returning a library workout.
type LibraryWorkoutResponse struct {
	ID          string       `json:"id"`
	OwnerID     string       `json:"ownerId"`
	Name        string       `json:"name"`
	Sport       domain.Sport `json:"sport"`
	Description string       `json:"description,omitempty"`
	DurationMin int          `json:"durationMin"`
	TargetTSS   *int         `json:"targetTss,omitempty"`
	DistanceKM  *float64     `json:"distanceKm,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// MapTrainingPlanToResponse converts a domain.TrainingPlan to its DTO.
func MapTrainingPlanToResponse(p *domain.TrainingPlan) TrainingPlanResponse {
	if p == nil {
		return TrainingPlanResponse{}
	}
	workouts := p.Workouts
	if workouts == nil {
		workouts = []domain.PlanWorkout{}
	}
	return TrainingPlanResponse{
		ID:          p.ID.Hex(),
		OwnerID:     p.OwnerID.Hex(),
		Name:        p.Name,
		Description: p.Description,
		Sport:       p.Sport,
		Weeks:       p.Weeks,
		Workouts:    workouts,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// MapTrainingPlansToResponse converts a slice of plans to DTOs.
func MapTrainingPlansToResponse(plans []domain.TrainingPlan) []TrainingPlanResponse {
	responses := make([]TrainingPlanResponse, len(plans))
	for i := range plans {
		responses[i] = MapTrainingPlanToResponse(&plans[i])
	}
	return responses
}

// MapLibraryWorkoutToResponse converts a domain.LibraryWorkout to its DTO.
func MapLibraryWorkoutToResponse(w *domain.LibraryWorkout) LibraryWorkoutResponse {
	if w == nil {
		return LibraryWorkoutResponse{}
	}
	return LibraryWorkoutResponse{
		ID:          w.ID.Hex(),
		OwnerID:     w.OwnerID.Hex(),
		Name:        w.Name,
		Sport:       w.Sport,
		Description: w.Description,
		DurationMin: w.DurationMin,
		TargetTSS:   w.TargetTSS,
		DistanceKM:  w.DistanceKM,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}
}

// MapLibraryWorkoutsToResponse converts a slice of library workouts to DTOs.
func MapLibraryWorkoutsToResponse(workouts []domain.LibraryWorkout) []LibraryWorkoutResponse {
	responses := make([]LibraryWorkoutResponse, len(workouts))
	for i := range workouts {
		responses[i] = MapLibraryWorkoutToResponse(&workouts[i])
	}
	return responses
}

// planFromRequest builds the domain plan the service validates.
func planFromRequest(req PlanRequest) *domain.TrainingPlan {
	workouts := make([]domain.PlanWorkout, len(req.Workouts))
	for i, w := range req.Workouts {
		workouts[i] = domain.PlanWorkout{
			Week:        w.Week,
			Day:         w.Day,
			Name:        w.Name,
			Sport:       w.Sport,
			Description: w.Description,
			DurationMin: w.DurationMin,
			TargetTSS:   w.TargetTSS,
			DistanceKM:  w.DistanceKM,
		}
	}
	return &domain.TrainingPlan{
		Name:        req.Name,
		Description: req.Description,
		Sport:       req.Sport,
		Weeks:       req.Weeks,
		Workouts:    workouts,
	}
}

// objectIDParam parses a path parameter as a Mongo ObjectID, aborting with
// 400 when it is malformed.
func objectIDParam(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Invalid %s format", name))
		return primitive.NilObjectID, false
	}
	return id, true
}

// --- Handler Methods: Plans ---

// CreatePlan godoc
// @Summary Create a training plan template
// @Tags Plans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param plan body PlanRequest true "Plan definition"
// @Success 201 {object} TrainingPlanResponse
// @Failure 400 {object} gin.H "Invalid input (validation error)"
// @Router /plans [post]
func (h *PlanHandler) CreatePlan(c *gin.Context) {
	var req PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	userID, err := currentUserID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
		return
	}

	plan, err := h.planService.CreatePlan(c.Request.Context(), userID, planFromRequest(req))
	if err != nil {
		if errors.Is(err, service.ErrPlanValidationFailed) {
			abortWithError(c, http.StatusBadRequest, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to create plan")
		}
		return
	}

	c.JSON(http.StatusCreated, MapTrainingPlanToResponse(plan))
}

// GetPlans returns all plans owned by the authenticated user.
func (h *PlanHandler) GetPlans(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
		return
	}

	plans, err := h.planService.GetPlansByOwner(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to load plans")
		return
	}

	c.JSON(http.StatusOK, MapTrainingPlansToResponse(plans))
}

// GetPlan returns a single plan owned by the authenticated user.
func (h *PlanHandler) GetPlan(c *gin.Context) {
	planID, ok := objectIDParam(c, "planId")
	if !ok {
		return
	}
	userID, err := currentUserID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
		return
	}

	plan, err := h.planService.GetPlan(c.Request.Context(), userID, planID)
	if err != nil {
		if errors.Is(err, service.ErrPlanNotFound) {
			abortWithError(c, http.StatusNotFound, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to load plan")
		}
		return
	}

	c.JSON(http.StatusOK, MapTrainingPlanToResponse(plan))
}

// UpdatePlan godoc
// @Summary Replace a training plan template
// @Tags Plans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ID"
// @Param plan body PlanRequest true "Plan definition"
// @Success 200 {object} TrainingPlanResponse
// @Failure 403 {object} gin.H "Not the plan owner"
// @Failure 404 {object} gin.H "Plan not found"
// @Router /plans/{planId} [put]
func (h *PlanHandler) UpdatePlan(c *gin.Context) {
	planID, ok := objectIDParam(c, "planId")
	if !ok {
		return
	}
	var req PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	userID, err := currentUserID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
		return
	}

	plan, err := h.planService.UpdatePlan(c.Request.Context(), userID, planID, planFromRequest(req))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPlanNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrPlanAccessDenied):
			abortWithError(c, http.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrPlanValidationFailed):
			abortWithError(c, http.StatusBadRequest, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to update plan")
		}
		return
	}

	c.JSON(http.StatusOK, MapTrainingPlanToResponse(plan))
}

// DeletePlan removes a plan template. Scheduled instances keep their own
// materialized copies.
func (h *PlanHandler) DeletePlan(c *gin.Context) {
	planID, ok := objectIDParam(c, "planId")
	if !ok {
		return
	}
	userID, err := currentUserID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
		return
	}

	if err := h.planService.DeletePlan(c.Request.Context(), userID, planID); err != nil {
		switch {
		case errors.Is(err, service.ErrPlanNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrPlanAccessDenied):
			abortWithError(c, http.StatusForbidden, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to delete plan")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Training plan deleted successfully"})
}

// --- Handler Methods: Workout Library ---

// CreateLibraryWorkout adds a workout to the user's library.
func (h *PlanHandler) CreateLibraryWorkout(c *gin.Context) {
	var req LibraryWorkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	userID, err := currentUserID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
		return
	}

	workout, err := h.planService.CreateLibraryWorkout(c.Request.Context(), userID, &domain.LibraryWorkout{
		Name:        req.Name,
		Sport:       req.Sport,
		Description: req.Description,
		DurationMin: req.DurationMin,
		TargetTSS:   req.TargetTSS,
		DistanceKM:  req.DistanceKM,
	})
	if err != nil {
		if errors.Is(err, service.ErrPlanValidationFailed) {
			abortWithError(c, http.StatusBadRequest, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to create library workout")
		}
		return
	}

	c.JSON(http.StatusCreated, MapLibraryWorkoutToResponse(workout))
}

// GetLibraryWorkouts returns the user's workout library sorted by name.
func (h *PlanHandler) GetLibraryWorkouts(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
		return
	}

	workouts, err := h.planService.GetLibraryWorkoutsByOwner(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to load library workouts")
		return
	}

	c.JSON(http.StatusOK, MapLibraryWorkoutsToResponse(workouts))
}

// GetLibraryWorkout returns a single library workout.
func (h *PlanHandler) GetLibraryWorkout(c *gin.Context) {
	workoutID, ok := objectIDParam(c, "workoutId")
	if !ok {
		return
	}
	userID, err := currentUserID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
		return
	}

	workout, err := h.planService.GetLibraryWorkout(c.Request.Context(), userID, workoutID)
	if err != nil {
		if errors.Is(err, service.ErrLibraryWorkoutNotFound) {
			abortWithError(c, http.StatusNotFound, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to load library workout")
		}
		return
	}

	c.JSON(http.StatusOK, MapLibraryWorkoutToResponse(workout))
}

// UpdateLibraryWorkout replaces a library workout definition.
func (h *PlanHandler) UpdateLibraryWorkout(c *gin.Context) {
	workoutID, ok := objectIDParam(c, "workoutId")
	if !ok {
		return
	}
	var req LibraryWorkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	userID, err := currentUserID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
		return
	}

	workout, err := h.planService.UpdateLibraryWorkout(c.Request.Context(), userID, workoutID, &domain.LibraryWorkout{
		Name:        req.Name,
		Sport:       req.Sport,
		Description: req.Description,
		DurationMin: req.DurationMin,
		TargetTSS:   req.TargetTSS,
		DistanceKM:  req.DistanceKM,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrLibraryWorkoutNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrPlanAccessDenied):
			abortWithError(c, http.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrPlanValidationFailed):
			abortWithError(c, http.StatusBadRequest, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to update library workout")
		}
		return
	}

	c.JSON(http.StatusOK, MapLibraryWorkoutToResponse(workout))
}

// DeleteLibraryWorkout removes a workout from the library. Already inserted
// copies on the calendar are untouched.
func (h *PlanHandler) DeleteLibraryWorkout(c *gin.Context) {
	workoutID, ok := objectIDParam(c, "workoutId")
	if !ok {
		return
	}
	userID, err := currentUserID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
		return
	}

	if err := h.planService.DeleteLibraryWorkout(c.Request.Context(), userID, workoutID); err != nil {
		switch {
		case errors.Is(err, service.ErrLibraryWorkoutNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrPlanAccessDenied):
			abortWithError(c, http.StatusForbidden, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to delete library workout")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Library workout deleted successfully"})
}
