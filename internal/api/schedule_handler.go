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

// ScheduleHandler holds the schedule service dependency. It serves plan
// instances and the dated calendar built from them.
type ScheduleHandler struct {
	scheduleService service.ScheduleService
}

// NewScheduleHandler creates a new ScheduleHandler.
func NewScheduleHandler(scheduleService service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{scheduleService: scheduleService}
}

// --- DTOs for API ---

// CreateInstanceRequest schedules a plan onto the calendar.
type CreateInstanceRequest struct {
	PlanID    string `json:"planId" binding:"required"`
	StartDate string `json:"startDate" binding:"required"` // YYYY-MM-DD
}

// InsertWorkoutRequest places a library workout on a date inside an instance.
type InsertWorkoutRequest struct {
	LibraryWorkoutID string `json:"libraryWorkoutId" binding:"required"`
	Date             string `json:"date" binding:"required"` // YYYY-MM-DD
}

// UpdateWorkoutStatusRequest changes a scheduled workout's lifecycle status.
type UpdateWorkoutStatusRequest struct {
	Status domain.WorkoutStatus `json:"status" binding:"required,oneof=planned completed skipped"`
}

// PlanInstanceResponse is the DTO for returning a plan instance. Dates are
// calendar days, not timestamps.
type PlanInstanceResponse struct {
	ID        string                `json:"id"`
	UserID    string                `json:"userId"`
	PlanID    string                `json:"planId"`
	PlanName  string                `json:"planName"`
	StartDate string                `json:"startDate"`
	EndDate   string                `json:"endDate"`
	Status    domain.InstanceStatus `json:"status"`
	CreatedAt time.Time             `json:"createdAt"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

// ScheduledWorkoutResponse is the DTO for returning a scheduled workout.
type ScheduledWorkoutResponse struct {
	ID                string               `json:"id"`
	UserID            string               `json:"userId"`
	InstanceID        string               `json:"instanceId"`
	Date              string               `json:"date"`
	Name              string               `json:"name"`
	Sport             domain.Sport         `json:"sport"`
	Description       string               `json:"description,omitempty"`
	DurationMin       int                  `json:"durationMin"`
	TargetTSS         *int                 `json:"targetTss,omitempty"`
	Status            domain.WorkoutStatus `json:"status"`
	MatchedActivityID *string              `json:"matchedActivityId,omitempty"`
	CreatedAt         time.Time            `json:"createdAt"`
	UpdatedAt         time.Time            `json:"updatedAt"`
}

// InstanceDetailResponse bundles an instance with its scheduled workouts.
type InstanceDetailResponse struct {
	Instance PlanInstanceResponse       `json:"instance"`
	Workouts []ScheduledWorkoutResponse `json:"workouts"`
}

// MapPlanInstanceToResponse converts a domain.PlanInstance to its DTO.
func MapPlanInstanceToResponse(p *domain.PlanInstance) PlanInstanceResponse {
	if p == nil {
		return PlanInstanceResponse{}
	}
	return PlanInstanceResponse{
		ID:        p.ID.Hex(),
		UserID:    p.UserID.Hex(),
		PlanID:    p.PlanID.Hex(),
		PlanName:  p.PlanName,
		StartDate: p.StartDate.Format(dateLayout),
		EndDate:   p.EndDate.Format(dateLayout),
		Status:    p.Status,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// MapPlanInstancesToResponse converts a slice of instances to DTOs.
func MapPlanInstancesToResponse(instances []domain.PlanInstance) []PlanInstanceResponse {
	responses := make([]PlanInstanceResponse, len(instances))
	for i := range instances {
		responses[i] = MapPlanInstanceToResponse(&instances[i])
	}
	return responses
}

// MapScheduledWorkoutToResponse converts a domain.ScheduledWorkout to its DTO.
func MapScheduledWorkoutToResponse(w *domain.ScheduledWorkout) ScheduledWorkoutResponse {
	if w == nil {
		return ScheduledWorkoutResponse{}
	}
	resp := ScheduledWorkoutResponse{
		ID:          w.ID.Hex(),
		UserID:      w.UserID.Hex(),
		InstanceID:  w.InstanceID.Hex(),
		Date:        w.Date.Format(dateLayout),
		Name:        w.Name,
		Sport:       w.Sport,
		Description: w.Description,
		DurationMin: w.DurationMin,
		TargetTSS:   w.TargetTSS,
		Status:      w.Status,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}
	if w.IsMatched() {
		hex := w.MatchedActivityID.Hex()
		resp.MatchedActivityID = &hex
	}
	return resp
}

// MapScheduledWorkoutsToResponse converts a slice of scheduled workouts to DTOs.
func MapScheduledWorkoutsToResponse(workouts []domain.ScheduledWorkout) []ScheduledWorkoutResponse {
	responses := make([]ScheduledWorkoutResponse, len(workouts))
	for i := range workouts {
		responses[i] = MapScheduledWorkoutToResponse(&workouts[i])
	}
	return responses
}

// dateQuery parses a required YYYY-MM-DD query parameter.
func dateQuery(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Query parameter '%s' is required", name))
		return time.Time{}, false
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Query parameter '%s' must be formatted as YYYY-MM-DD", name))
		return time.Time{}, false
	}
	return t, true
}

// --- Handler Methods ---

// CreateInstance godoc
// @Summary Schedule a training plan starting on a date
// @Description Creates a plan instance and materializes its workouts onto the calendar. The date range must not overlap another active instance.
// @Tags Schedule
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param instance body CreateInstanceRequest true "Plan and start date"
// @Success 201 {object} PlanInstanceResponse
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 404 {object} gin.H "Plan not found"
// @Failure 409 {object} gin.H "Overlaps an active instance"
// @Router /plan-instances [post]
func (h *ScheduleHandler) CreateInstance(c *gin.Context) {
	var req CreateInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	planID, err := primitive.ObjectIDFromHex(req.PlanID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid planId format")
		return
	}
	startDate, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "startDate must be formatted as YYYY-MM-DD")
		return
	}
	userID, err := currentUserID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
		return
	}

	instance, err := h.scheduleService.CreateInstance(c.Request.Context(), userID, planID, startDate)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPlanNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrScheduleConflict):
			abortWithError(c, http.StatusConflict, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to schedule plan")
		}
		return
	}

	c.JSON(http.StatusCreated, MapPlanInstanceToResponse(instance))
}

// GetInstances returns all plan instances of the authenticated user.
func (h *ScheduleHandler) GetInstances(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
		return
	}

	instances, err := h.scheduleService.GetInstances(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to load plan instances")
		return
	}

	c.JSON(http.StatusOK, MapPlanInstancesToResponse(instances))
}

// GetInstance returns one instance together with its scheduled workouts.
func (h *ScheduleHandler) GetInstance(c *gin.Context) {
	instanceID, ok := objectIDParam(c, "instanceId")
	if !ok {
		return
	}
	userID, err := currentUserID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
		return
	}

	instance, workouts, err := h.scheduleService.GetInstance(c.Request.Context(), userID, instanceID)
	if err != nil {
		if errors.Is(err, service.ErrInstanceNotFound) {
			abortWithError(c, http.StatusNotFound, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to load plan instance")
		}
		return
	}

	c.JSON(http.StatusOK, InstanceDetailResponse{
		Instance: MapPlanInstanceToResponse(instance),
		Workouts: MapScheduledWorkoutsToResponse(workouts),
	})
}

// CancelInstance godoc
// @Summary Cancel an active plan instance
// @Description Marks the instance cancelled and removes its still-planned workouts. Completed and matched workouts stay for history.
// @Tags Schedule
// @Produce json
// @Security BearerAuth
// @Param instanceId path string true "Instance ID"
// @Success 200 {object} PlanInstanceResponse
// @Failure 404 {object} gin.H "Instance not found"
// @Failure 409 {object} gin.H "Instance is not active"
// @Router /plan-instances/{instanceId} [delete]
func (h *ScheduleHandler) CancelInstance(c *gin.Context) {
	instanceID, ok := objectIDParam(c, "instanceId")
	if !ok {
		return
	}
	userID, err := currentUserID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
		return
	}

	instance, err := h.scheduleService.CancelInstance(c.Request.Context(), userID, instanceID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInstanceNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrInstanceNotActive):
			abortWithError(c, http.StatusConflict, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to cancel plan instance")
		}
		return
	}

	c.JSON(http.StatusOK, MapPlanInstanceToResponse(instance))
}

// InsertWorkout places a library workout on a date inside an active instance.
func (h *ScheduleHandler) InsertWorkout(c *gin.Context) {
	instanceID, ok := objectIDParam(c, "instanceId")
	if !ok {
		return
	}
	var req InsertWorkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	libraryWorkoutID, err := primitive.ObjectIDFromHex(req.LibraryWorkoutID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid libraryWorkoutId format")
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "date must be formatted as YYYY-MM-DD")
		return
	}
	userID, err := currentUserID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
		return
	}

	workout, err := h.scheduleService.InsertLibraryWorkout(c.Request.Context(), userID, instanceID, libraryWorkoutID, date)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInstanceNotFound), errors.Is(err, service.ErrLibraryWorkoutNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrInstanceNotActive):
			abortWithError(c, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrDateOutsideInstance):
			abortWithError(c, http.StatusBadRequest, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to insert workout")
		}
		return
	}

	c.JSON(http.StatusCreated, MapScheduledWorkoutToResponse(workout))
}

// GetSchedule godoc
// @Summary Get the calendar between two dates
// @Tags Schedule
// @Produce json
// @Security BearerAuth
// @Param from query string true "Start date (YYYY-MM-DD)"
// @Param to query string true "End date (YYYY-MM-DD), inclusive"
// @Success 200 {array} ScheduledWorkoutResponse
// @Failure 400 {object} gin.H "Invalid or oversized date range"
// @Router /schedule [get]
func (h *ScheduleHandler) GetSchedule(c *gin.Context) {
	from, ok := dateQuery(c, "from")
	if !ok {
		return
	}
	to, ok := dateQuery(c, "to")
	if !ok {
		return
	}
	userID, err := currentUserID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
		return
	}

	workouts, err := h.scheduleService.Range(c.Request.Context(), userID, from, to)
	if err != nil {
		if errors.Is(err, service.ErrInvalidDateRange) {
			abortWithError(c, http.StatusBadRequest, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to load schedule")
		}
		return
	}

	c.JSON(http.StatusOK, MapScheduledWorkoutsToResponse(workouts))
}

// UpdateWorkoutStatus marks a scheduled workout planned, completed, or skipped.
func (h *ScheduleHandler) UpdateWorkoutStatus(c *gin.Context) {
	workoutID, ok := objectIDParam(c, "workoutId")
	if !ok {
		return
	}
	var req UpdateWorkoutStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	userID, err := currentUserID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
		return
	}

	workout, err := h.scheduleService.UpdateWorkoutStatus(c.Request.Context(), userID, workoutID, req.Status)
	if err != nil {
		if errors.Is(err, service.ErrScheduledWorkoutNotFound) {
			abortWithError(c, http.StatusNotFound, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to update workout status")
		}
		return
	}

	c.JSON(http.StatusOK, MapScheduledWorkoutToResponse(workout))
}
