package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/LovationAdmin/financas-api/models"
	"github.com/LovationAdmin/financas-api/services"
)

// respondError maps service errors to status codes. Unexpected errors are logged
// and answered with a generic message.
func respondError(c *gin.Context, err error) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": ve.Error(), "field": ve.Field})
	case errors.Is(err, services.ErrTOTPRequired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "2FA code required", "requires_2fa": true})
	case errors.Is(err, models.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": message(err, models.ErrUnauthorized)})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": message(err, models.ErrNotFound)})
	case errors.Is(err, models.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": message(err, models.ErrForbidden)})
	case errors.Is(err, models.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": message(err, models.ErrConflict)})
	case errors.Is(err, models.ErrPlanLimit):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": message(err, models.ErrPlanLimit)})
	default:
		slog.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// message returns the detail a service added after the sentinel, or the sentinel
// text itself. Wrapping layers ("load user: not found") are dropped.
func message(err, sentinel error) string {
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	if i := strings.Index(msg, prefix); i >= 0 {
		return msg[i+len(prefix):]
	}
	return sentinel.Error()
}

// bindError answers a malformed request body or query.
func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
}

// parseMonth reads an optional YYYY-MM query parameter.
func parseMonth(c *gin.Context, key string) (*models.Month, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	m, err := models.ParseMonth(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": key + " must be YYYY-MM"})
		return nil, false
	}
	return &m, true
}

// parseBool reads an optional true/false query parameter.
func parseBool(c *gin.Context, key string) (*bool, bool) {
	switch c.Query(key) {
	case "":
		return nil, true
	case "true", "1":
		v := true
		return &v, true
	case "false", "0":
		v := false
		return &v, true
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": key + " must be true or false"})
		return nil, false
	}
}
