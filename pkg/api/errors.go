package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unergybot/tke/pkg/models"
)

// writeError maps a component-layer sentinel error to an HTTP status code
// and writes a JSON error body, following the same errors.Is/As chain the
// rest of this codebase uses for typed errors.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrPermission):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, models.ErrInput):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrValidation):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, models.ErrDependency):
		status = http.StatusBadGateway
	case errors.Is(err, models.ErrStateInconsistency), errors.Is(err, models.ErrMapping):
		status = http.StatusConflict
	default:
		slog.Error("unexpected request error", "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
