package api

import (
	"errors"
	"net/http"
	"strconv"

	"veloplan/training-app/internal/service"

	"github.com/gin-gonic/gin"
)

// AdminHandler holds the admin service dependency.
type AdminHandler struct {
	adminService service.AdminService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// --- DTOs for API ---

// UserListResponse is one page of the admin user listing.
type UserListResponse struct {
	Users      []UserResponse `json:"users"`
	Total      int64          `json:"total"`
	Page       int64          `json:"page"`
	PerPage    int64          `json:"perPage"`
	TotalPages int64          `json:"totalPages"`
}

// --- Handler Methods ---

// ListUsers godoc
// @Summary List all user accounts (admin only)
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number, 1-based"
// @Param perPage query int false "Page size, capped at 100"
// @Success 200 {object} UserListResponse
// @Failure 403 {object} gin.H "Not an admin"
// @Router /admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, _ := strconv.ParseInt(c.DefaultQuery("page", "1"), 10, 64)
	perPage, _ := strconv.ParseInt(c.DefaultQuery("perPage", "25"), 10, 64)

	result, err := h.adminService.ListUsers(c.Request.Context(), page, perPage)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to list users")
		return
	}

	users := make([]UserResponse, len(result.Users))
	for i := range result.Users {
		users[i] = MapUserToResponse(&result.Users[i])
	}

	c.JSON(http.StatusOK, UserListResponse{
		Users:      users,
		Total:      result.Total,
		Page:       result.Page,
		PerPage:    result.PerPage,
		TotalPages: result.TotalPages,
	})
}

// GetUser returns a single account by ID.
func (h *AdminHandler) GetUser(c *gin.Context) {
	userID, ok := objectIDParam(c, "userId")
	if !ok {
		return
	}

	user, err := h.adminService.GetUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			abortWithError(c, http.StatusNotFound, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to load user")
		}
		return
	}

	c.JSON(http.StatusOK, MapUserToResponse(user))
}
