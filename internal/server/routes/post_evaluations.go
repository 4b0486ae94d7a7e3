package routes

import (
	"context"
	"net/http"

	"github.com/OFFIS-RIT/segbench/internal/server/middleware"
	"github.com/OFFIS-RIT/segbench/pkg/evaluation"
	"github.com/OFFIS-RIT/segbench/pkg/logger"

	"github.com/labstack/echo/v4"
)

type evaluationBody struct {
	Input  string               `json:"input" validate:"max=1000000"`
	Config *evaluation.AIConfig `json:"config"`
}

// bindEvaluationBody decodes the request. A partial config is merged over
// the defaults.
func bindEvaluationBody(c echo.Context) (*evaluationBody, error) {
	defaults := c.(*middleware.AppContext).App.DefaultConfig()
	data := &evaluationBody{Config: &defaults}
	if err := c.Bind(data); err != nil {
		return nil, err
	}
	if data.Config == nil {
		data.Config = &defaults
	}
	if err := c.Validate(data); err != nil {
		return nil, err
	}
	return data, nil
}

// PostEvaluationHandler runs an evaluation synchronously
func PostEvaluationHandler(c echo.Context) error {
	data, err := bindEvaluationBody(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{
			Message: "Invalid request body",
			Error:   err.Error(),
		})
	}
	if len(evaluation.SplitLines(data.Input)) == 0 {
		return c.NoContent(http.StatusNoContent)
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App
	cfg := *data.Config

	if err := cfg.Validate(); err != nil {
		return evaluationError(c, err)
	}

	var runID string
	if app.Runs != nil {
		run, err := app.Runs.Create(ctx, data.Input, cfg)
		if err != nil {
			logger.Error("[Server] Failed to store run", "err", err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Message: "Internal server error"})
		}
		runID = run.ID
	}

	result, err := app.Runner.Run(ctx, data.Input, cfg)
	if runID != "" {
		// the request context may already be gone
		storeCtx := context.WithoutCancel(ctx)
		if err != nil {
			if ferr := app.Runs.Fail(storeCtx, runID, err.Error()); ferr != nil {
				logger.Error("[Server] Failed to store run failure", "id", runID, "err", ferr)
			}
		} else if cerr := app.Runs.Complete(storeCtx, runID, result); cerr != nil {
			logger.Error("[Server] Failed to store run result", "id", runID, "err", cerr)
		}
	}
	if err != nil {
		logger.Warn("[Server] Evaluation failed", "id", runID, "err", err)
		return evaluationError(c, err)
	}
	if result == nil {
		return c.NoContent(http.StatusNoContent)
	}

	if runID != "" {
		c.Response().Header().Set("X-Run-ID", runID)
	}
	return c.JSON(http.StatusOK, result)
}
