package routes

import (
	"context"
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/segbench/pkg/evaluation"

	"github.com/labstack/echo/v4"
)

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// evaluationStatus maps an evaluation error onto an HTTP status.
func evaluationStatus(err error) int {
	switch {
	case errors.Is(err, evaluation.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, evaluation.ErrEvaluatorUnavailable), errors.Is(err, evaluation.ErrResponseParse):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func evaluationMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "Invalid evaluation config"
	case http.StatusBadGateway:
		return "Evaluator failed"
	case http.StatusServiceUnavailable:
		return "Evaluation cancelled"
	}
	return "Internal server error"
}

func evaluationError(c echo.Context, err error) error {
	status := evaluationStatus(err)
	return c.JSON(status, errorResponse{
		Message: evaluationMessage(status),
		Error:   err.Error(),
	})
}
