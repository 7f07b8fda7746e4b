package handler

import (
	"errors"
	"net/http"

	"backend/internal/service"
	"backend/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// httpStatus maps service and workflow sentinel errors to HTTP status codes.
// Stale-state failures surface as 409 so clients know to refresh and retry.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, workflow.ErrInvalidStep),
		errors.Is(err, workflow.ErrInvalidDecision):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, workflow.ErrNotPending),
		errors.Is(err, workflow.ErrStepMismatch),
		errors.Is(err, workflow.ErrNotDraft),
		errors.Is(err, workflow.ErrNotApproved):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// actorFromContext builds the acting staff identity from values set by the
// auth middleware. Missing or malformed values yield a zero Actor; role-gated
// services reject those.
func actorFromContext(c *gin.Context) service.Actor {
	actor := service.Actor{}

	if idValue, exists := c.Get("userID"); exists {
		if idStr, ok := idValue.(string); ok {
			if uid, err := uuid.Parse(idStr); err == nil {
				actor.ID = uid
			}
		}
	}
	if roleValue, exists := c.Get("userRole"); exists {
		if roleStr, ok := roleValue.(string); ok {
			actor.Role = roleStr
		}
	}

	return actor
}
