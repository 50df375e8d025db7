package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "mana/internal/errors"
	"mana/internal/middleware"
	"mana/internal/services"
)

// ProfileHandler handles profile requests of the authenticated user.
type ProfileHandler struct {
	userService  services.UserServicer
	auditService services.AuditServicer
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(userService services.UserServicer, auditService services.AuditServicer) *ProfileHandler {
	return &ProfileHandler{userService: userService, auditService: auditService}
}

// UpdateProfileRequest represents the request payload for updating a profile.
type UpdateProfileRequest struct {
	Name          *string `json:"name" binding:"omitempty,max=100"`
	Currency      *string `json:"currency" binding:"omitempty,iso4217"`
	AlertsEnabled *bool   `json:"alerts_enabled"`
}

// GetProfile returns the profile of the authenticated user, creating it on
// first access.
// @Summary     Get profile
// @Description Get the authenticated user's profile
// @Tags        profile
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} models.User "User profile"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /profile [get]
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	user, err := h.userService.EnsureUser(userID, c.GetString(middleware.EmailKey))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateProfile updates the authenticated user's profile.
// @Summary     Update profile
// @Description Update name, currency or alert preference
// @Tags        profile
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body UpdateProfileRequest true "Profile fields"
// @Success     200 {object} models.User "Updated profile"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /profile [put]
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	if _, err := h.userService.EnsureUser(userID, c.GetString(middleware.EmailKey)); err != nil {
		respondWithError(c, err)
		return
	}

	user, err := h.userService.UpdateProfile(userID, services.ProfileUpdate{
		Name:          req.Name,
		Currency:      req.Currency,
		AlertsEnabled: req.AlertsEnabled,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_PROFILE", "user", user.ID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"user": user})
}
