package routes

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/OFFIS-RIT/segbench/internal/queue"
	"github.com/OFFIS-RIT/segbench/internal/server/middleware"
	"github.com/OFFIS-RIT/segbench/internal/store"
	"github.com/OFFIS-RIT/segbench/pkg/evaluation"
	"github.com/OFFIS-RIT/segbench/pkg/logger"

	"github.com/labstack/echo/v4"
)

type jobParams struct {
	ID string `param:"id" validate:"required"`
}

// PostJobHandler stores a run and queues it for the worker
func PostJobHandler(c echo.Context) error {
	type postJobResponse struct {
		Message string `json:"message"`
		ID      string `json:"id,omitempty"`
	}

	app := c.(*middleware.AppContext).App
	if app.Runs == nil || app.Queue == nil {
		return c.JSON(http.StatusServiceUnavailable, postJobResponse{Message: "Job queue not configured"})
	}

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
	if err := data.Config.Validate(); err != nil {
		return evaluationError(c, err)
	}

	ctx := c.Request().Context()
	run, err := app.Runs.Create(ctx, data.Input, *data.Config)
	if err != nil {
		logger.Error("[Server] Failed to store run", "err", err)
		return c.JSON(http.StatusInternalServerError, postJobResponse{Message: "Internal server error"})
	}

	msg, err := json.Marshal(queue.EvaluateJobMsg{ID: run.ID})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, postJobResponse{Message: "Internal server error"})
	}
	if err := queue.Publish(ctx, app.Queue, queue.EvaluateQueue, msg, nil); err != nil {
		logger.Error("[Server] Failed to queue run", "id", run.ID, "err", err)
		_ = app.Runs.Fail(ctx, run.ID, "failed to queue run: "+err.Error())
		return c.JSON(http.StatusInternalServerError, postJobResponse{Message: "Internal server error"})
	}

	logger.Info("[Server] Queued run", "id", run.ID)
	return c.JSON(http.StatusAccepted, postJobResponse{Message: "Run queued", ID: run.ID})
}

// loadRun resolves the :id run. On failure it writes the error response
// itself and returns a nil run.
func loadRun(c echo.Context) (*store.Run, error) {
	app := c.(*middleware.AppContext).App
	if app.Runs == nil {
		return nil, c.JSON(http.StatusServiceUnavailable, errorResponse{Message: "Run store not configured"})
	}

	params := new(jobParams)
	if err := c.Bind(params); err != nil {
		return nil, c.JSON(http.StatusBadRequest, errorResponse{Message: "Invalid run id"})
	}
	if err := c.Validate(params); err != nil {
		return nil, c.JSON(http.StatusBadRequest, errorResponse{Message: "Invalid run id"})
	}

	run, err := app.Runs.Get(c.Request().Context(), params.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, c.JSON(http.StatusNotFound, errorResponse{Message: "Run not found"})
	}
	if err != nil {
		logger.Error("[Server] Failed to load run", "id", params.ID, "err", err)
		return nil, c.JSON(http.StatusInternalServerError, errorResponse{Message: "Internal server error"})
	}
	return run, nil
}

// GetJobHandler returns the status and, once finished, the outcome of a run
func GetJobHandler(c echo.Context) error {
	run, err := loadRun(c)
	if run == nil {
		return err
	}
	return c.JSON(http.StatusOK, run)
}

// PostJobExportHandler uploads the export of a completed run and returns
// a download link
func PostJobExportHandler(c echo.Context) error {
	type exportResponse struct {
		Message  string `json:"message"`
		Key      string `json:"key,omitempty"`
		FileName string `json:"fileName,omitempty"`
		URL      string `json:"url,omitempty"`
	}

	app := c.(*middleware.AppContext).App
	if app.Exports == nil {
		return c.JSON(http.StatusServiceUnavailable, exportResponse{Message: "Export storage not configured"})
	}

	run, err := loadRun(c)
	if run == nil {
		return err
	}
	if run.Status != store.StatusCompleted || run.Result == nil {
		return c.JSON(http.StatusConflict, exportResponse{Message: "Run has no result to export"})
	}

	ctx := c.Request().Context()
	now := time.Now()
	key, err := app.Exports.PutExport(ctx, run.ID, run.Result, now)
	if err != nil {
		logger.Error("[Server] Failed to upload export", "id", run.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, exportResponse{Message: "Internal server error"})
	}
	url, err := app.Exports.DownloadLink(ctx, key)
	if err != nil {
		logger.Error("[Server] Failed to sign export link", "id", run.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, exportResponse{Message: "Internal server error"})
	}

	return c.JSON(http.StatusOK, exportResponse{
		Message:  "Export created",
		Key:      key,
		FileName: evaluation.ExportFileName(now),
		URL:      url,
	})
}
