package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"veloplan/training-app/internal/domain"
	"veloplan/training-app/internal/service"

	"github.com/gin-gonic/gin"
)

// maxGPXBytes caps the accepted GPX import body.
const maxGPXBytes = 10 << 20

// ActivityHandler holds the activity service dependency.
type ActivityHandler struct {
	activityService service.ActivityService
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(activityService service.ActivityService) *ActivityHandler {
	return &ActivityHandler{activityService: activityService}
}

// --- DTOs for API ---

// CreateActivityRequest defines the JSON for a manually recorded activity.
type CreateActivityRequest struct {
	Name         string       `json:"name" binding:"required"`
	Sport        domain.Sport `json:"sport" binding:"required,oneof=ride run swim strength other"`
	StartTime    time.Time    `json:"startTime" binding:"required"`
	DurationSec  int          `json:"durationSec" binding:"required,gt=0"`
	DistanceKM   float64      `json:"distanceKm" binding:"omitempty,gte=0"`
	AverageWatts *int         `json:"averageWatts" binding:"omitempty,gt=0"`
	TSS          *float64     `json:"tss" binding:"omitempty,gt=0"`
}

// UploadURLRequest asks for a presigned PUT URL for the activity's FIT file.
type UploadURLRequest struct {
	ContentType string `json:"contentType"`
}

// ConfirmUploadRequest reports a completed file upload.
type ConfirmUploadRequest struct {
	ObjectKey string `json:"objectKey" binding:"required"`
	FileName  string `json:"fileName"`
}

// DownloadURLResponse carries a presigned GET URL.
type DownloadURLResponse struct {
	DownloadURL string `json:"downloadUrl"`
}

// ActivityResponse is the DTO for returning an activity.
type ActivityResponse struct {
	ID               string                `json:"id"`
	UserID           string                `json:"userId"`
	Source           domain.ActivitySource `json:"source"`
	ExternalID       string                `json:"externalId,omitempty"`
	Name             string                `json:"name"`
	Sport            domain.Sport          `json:"sport"`
	StartTime        time.Time             `json:"startTime"`
	DurationSec      int                   `json:"durationSec"`
	DistanceKM       float64               `json:"distanceKm,omitempty"`
	AverageWatts     *int                  `json:"averageWatts,omitempty"`
	TSS              *float64              `json:"tss,omitempty"`
	FileID           *string               `json:"fileId,omitempty"`
	MatchedWorkoutID *string               `json:"matchedWorkoutId,omitempty"`
	CreatedAt        time.Time             `json:"createdAt"`
	UpdatedAt        time.Time             `json:"updatedAt"`
}

// MapActivityToResponse converts a domain.Activity to ActivityResponse DTO.
func MapActivityToResponse(a *domain.Activity) ActivityResponse {
	if a == nil {
		return ActivityResponse{}
	}
	resp := ActivityResponse{
		ID:           a.ID.Hex(),
		UserID:       a.UserID.Hex(),
		Source:       a.Source,
		ExternalID:   a.ExternalID,
		Name:         a.Name,
		Sport:        a.Sport,
		StartTime:    a.StartTime,
		DurationSec:  a.DurationSec,
		DistanceKM:   a.DistanceKM,
		AverageWatts: a.AverageWatts,
		TSS:          a.TSS,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
	if a.FileID != nil {
		hex := a.FileID.Hex()
		resp.FileID = &hex
	}
	if a.IsMatched() {
		hex := a.MatchedWorkoutID.Hex()
		resp.MatchedWorkoutID = &hex
	}
	return resp
}

// MapActivitiesToResponse converts a slice of activities to DTOs.
func MapActivitiesToResponse(activities []domain.Activity) []ActivityResponse {
	responses := make([]ActivityResponse, len(activities))
	for i := range activities {
		responses[i] = MapActivityToResponse(&activities[i])
	}
	return responses
}

// --- Handler Methods ---

// CreateActivity godoc
// @Summary Record an activity manually
// @Description Stores the activity and links it to a matching planned workout when one exists.
// @Tags Activities
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param activity body CreateActivityRequest true "Activity details"
// @Success 201 {object} ActivityResponse
// @Failure 400 {object} gin.H "Invalid input (validation error)"
// @Router /activities [post]
func (h *ActivityHandler) CreateActivity(c *gin.Context) {
	var req CreateActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	userID, err := currentUserID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
		return
	}

	activity, err := h.activityService.Create(c.Request.Context(), userID, service.ActivityInput{
		Name:         req.Name,
		Sport:        req.Sport,
		StartTime:    req.StartTime,
		DurationSec:  req.DurationSec,
		DistanceKM:   req.DistanceKM,
		AverageWatts: req.AverageWatts,
		TSS:          req.TSS,
	})
	if err != nil {
		if errors.Is(err, service.ErrActivityValidationFailed) {
			abortWithError(c, http.StatusBadRequest, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to record activity")
		}
		return
	}

	c.JSON(http.StatusCreated, MapActivityToResponse(activity))
}

// ImportGPX godoc
// @Summary Import an activity from a GPX file
// @Description The request body is the raw GPX document. Start time, duration, and distance come from the track; optional 'name' and 'sport' query parameters override the defaults.
// @Tags Activities
// @Accept xml
// @Produce json
// @Security BearerAuth
// @Param name query string false "Activity name (defaults to the track name)"
// @Param sport query string false "Sport (defaults to ride)"
// @Success 201 {object} ActivityResponse
// @Failure 400 {object} gin.H "Unparseable GPX or track without timestamps"
// @Router /activities/import [post]
func (h *ActivityHandler) ImportGPX(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
		return
	}

	sport := domain.SportRide
	if raw := c.Query("sport"); raw != "" {
		sport = domain.Sport(raw)
		if !domain.ValidSport(sport) {
			abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Unknown sport '%s'", raw))
			return
		}
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxGPXBytes)
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Failed to read GPX body")
		return
	}

	activity, err := h.activityService.ImportGPX(c.Request.Context(), userID, c.Query("name"), sport, data)
	if err != nil {
		if errors.Is(err, service.ErrInvalidGPXFile) || errors.Is(err, service.ErrActivityValidationFailed) {
			abortWithError(c, http.StatusBadRequest, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to import GPX file")
		}
		return
	}

	c.JSON(http.StatusCreated, MapActivityToResponse(activity))
}

// GetActivities returns the user's activities between two dates, inclusive.
func (h *ActivityHandler) GetActivities(c *gin.Context) {
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

	// The repository range is [from, to), so push 'to' past the last day.
	activities, err := h.activityService.List(c.Request.Context(), userID, from, to.AddDate(0, 0, 1))
	if err != nil {
		if errors.Is(err, service.ErrInvalidDateRange) {
			abortWithError(c, http.StatusBadRequest, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to load activities")
		}
		return
	}

	c.JSON(http.StatusOK, MapActivitiesToResponse(activities))
}

// GetActivity returns a single activity owned by the authenticated user.
func (h *ActivityHandler) GetActivity(c *gin.Context) {
	activityID, ok := objectIDParam(c, "activityId")
	if !ok {
		return
	}
	userID, err := currentUserID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
		return
	}

	activity, err := h.activityService.Get(c.Request.Context(), userID, activityID)
	if err != nil {
		if errors.Is(err, service.ErrActivityNotFound) {
			abortWithError(c, http.StatusNotFound, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to load activity")
		}
		return
	}

	c.JSON(http.StatusOK, MapActivityToResponse(activity))
}

// DeleteActivity removes an activity, unlinks its matched workout, and
// deletes its stored file.
func (h *ActivityHandler) DeleteActivity(c *gin.Context) {
	activityID, ok := objectIDParam(c, "activityId")
	if !ok {
		return
	}
	userID, err := currentUserID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
		return
	}

	if err := h.activityService.Delete(c.Request.Context(), userID, activityID); err != nil {
		if errors.Is(err, service.ErrActivityNotFound) {
			abortWithError(c, http.StatusNotFound, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to delete activity")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Activity deleted successfully"})
}

// RequestFileUpload godoc
// @Summary Get a presigned PUT URL for the activity's FIT file
// @Tags Activities
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param activityId path string true "Activity ID"
// @Param upload body UploadURLRequest false "Content type of the upcoming upload"
// @Success 200 {object} service.UploadURLResponse
// @Failure 404 {object} gin.H "Activity not found"
// @Router /activities/{activityId}/file-upload-url [post]
func (h *ActivityHandler) RequestFileUpload(c *gin.Context) {
	activityID, ok := objectIDParam(c, "activityId")
	if !ok {
		return
	}
	var req UploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	userID, err := currentUserID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
		return
	}

	resp, err := h.activityService.RequestFileUpload(c.Request.Context(), userID, activityID, req.ContentType)
	if err != nil {
		if errors.Is(err, service.ErrActivityNotFound) {
			abortWithError(c, http.StatusNotFound, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to generate upload URL")
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ConfirmFileUpload records the uploaded object and attaches it to the
// activity after verifying it actually landed in storage.
func (h *ActivityHandler) ConfirmFileUpload(c *gin.Context) {
	activityID, ok := objectIDParam(c, "activityId")
	if !ok {
		return
	}
	var req ConfirmUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	userID, err := currentUserID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
		return
	}

	activity, err := h.activityService.ConfirmFileUpload(c.Request.Context(), userID, activityID, req.ObjectKey, req.FileName)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrActivityNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrObjectKeyMismatch), errors.Is(err, service.ErrUploadNotFound):
			abortWithError(c, http.StatusBadRequest, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to confirm upload")
		}
		return
	}

	c.JSON(http.StatusOK, MapActivityToResponse(activity))
}

// FileDownloadURL mints a presigned GET URL for the activity's FIT file.
func (h *ActivityHandler) FileDownloadURL(c *gin.Context) {
	activityID, ok := objectIDParam(c, "activityId")
	if !ok {
		return
	}
	userID, err := currentUserID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
		return
	}

	downloadURL, err := h.activityService.FileDownloadURL(c.Request.Context(), userID, activityID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrActivityNotFound), errors.Is(err, service.ErrNoFileAttached):
			abortWithError(c, http.StatusNotFound, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to generate download URL")
		}
		return
	}

	c.JSON(http.StatusOK, DownloadURLResponse{DownloadURL: downloadURL})
}

// DeleteFile detaches and removes the activity's FIT file.
func (h *ActivityHandler) DeleteFile(c *gin.Context) {
	activityID, ok := objectIDParam(c, "activityId")
	if !ok {
		return
	}
	userID, err := currentUserID(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token")
		return
	}

	if err := h.activityService.DeleteFile(c.Request.Context(), userID, activityID); err != nil {
		switch {
		case errors.Is(err, service.ErrActivityNotFound), errors.Is(err, service.ErrNoFileAttached):
			abortWithError(c, http.StatusNotFound, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to delete file")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Activity file deleted successfully"})
}
