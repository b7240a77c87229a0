package handlers

import (
	"context"
	"errors"
	"net/http"

	"battery-scheduler/internal/api/models"
	"battery-scheduler/internal/schedule"

	"github.com/gin-gonic/gin"
)

func writeError(c *gin.Context, status int, code string, err error) {
	c.JSON(status, models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    code,
			Message: err.Error(),
		},
	})
}

// runErrorDetail maps a schedule failure onto an HTTP status and error code.
func runErrorDetail(err error) (int, models.ErrorDetail) {
	status, code := http.StatusInternalServerError, "SOLVER_ERROR"
	switch {
	case errors.Is(err, schedule.ErrConfiguration):
		status, code = http.StatusBadRequest, "INVALID_CONFIG"
	case errors.Is(err, schedule.ErrInfeasible):
		status, code = http.StatusUnprocessableEntity, "INFEASIBLE"
	case errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, "SOLVER_TIMEOUT"
	}
	return status, models.ErrorDetail{Code: code, Message: err.Error()}
}
