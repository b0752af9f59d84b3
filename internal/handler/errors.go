// ===========================================
// Package handler - HTTP Request Handlers
// ===========================================
// Handlers are thin:
// 1. Parse request
// 2. Call service
// 3. Format response
//
// Service errors are mapped to HTTP here and nowhere else.
// ===========================================

package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/user/linkshortener/internal/models"
	"github.com/user/linkshortener/internal/service"
)

// retryAfterSeconds is sent with 503 responses.
const retryAfterSeconds = "5"

// respondError converts a service error to an HTTP response.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid input",
			Code:    models.ErrCodeInvalidInput,
			Details: err.Error(),
		})

	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrLinkDisabled):
		// Disabled links are indistinguishable from missing ones to clients.
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: "Link not found",
			Code:  models.ErrCodeNotFound,
		})

	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error: "Short code already taken",
			Code:  models.ErrCodeConflict,
		})

	case errors.Is(err, service.ErrCapacity):
		logger.Error("short code generation exhausted", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: "Could not allocate a short code",
			Code:  models.ErrCodeCapacity,
		})

	case errors.Is(err, service.ErrStoreUnavailable):
		logger.Warn("store unavailable", "path", c.FullPath(), "error", err)
		c.Header("Retry-After", retryAfterSeconds)
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error: "Service temporarily unavailable",
			Code:  models.ErrCodeStoreUnavailable,
		})

	default:
		// Don't expose internal error details.
		logger.Error("unhandled error", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: "Internal server error",
			Code:  models.ErrCodeInternalError,
		})
	}
}

// badRequest rejects malformed request input.
func badRequest(c *gin.Context, msg string, err error) {
	resp := models.ErrorResponse{Error: msg, Code: models.ErrCodeInvalidInput}
	if err != nil {
		resp.Details = err.Error()
	}
	c.JSON(http.StatusBadRequest, resp)
}

// linkID parses the :id path parameter. It writes the 400 itself.
func linkID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "Invalid link id", err)
		return uuid.Nil, false
	}
	return id, true
}
