package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/segbench/internal/store"
	"github.com/OFFIS-RIT/segbench/pkg/common"
	"github.com/OFFIS-RIT/segbench/pkg/evaluation"
	"github.com/OFFIS-RIT/segbench/pkg/leaselock"
	"github.com/OFFIS-RIT/segbench/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// MaxRetries is how often a delivery goes through the _retry queue before
// it is parked in the _dlq.
const MaxRetries = 3

// ErrMalformed marks a delivery that can never succeed. It skips retries.
var ErrMalformed = errors.New("malformed job")

// RunStore is the part of *store.RunStore the handler needs.
type RunStore interface {
	Get(ctx context.Context, id string) (*store.Run, error)
	MarkRunning(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, data *common.BatchComparisonData) error
	Fail(ctx context.Context, id string, message string) error
}

// Runner executes an evaluation. *evaluation.Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, raw string, cfg evaluation.AIConfig) (*common.BatchComparisonData, error)
}

// Locker serialises work on a key. *leaselock.Locks implements it.
type Locker interface {
	Hold(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

type Handler struct {
	runs   RunStore
	runner Runner
	locks  Locker
}

type NewHandlerParams struct {
	Runs   RunStore
	Runner Runner
	Locks  Locker
}

func NewHandler(params NewHandlerParams) *Handler {
	return &Handler{
		runs:   params.Runs,
		runner: params.Runner,
		locks:  params.Locks,
	}
}

// ProcessEvaluateMessage executes the run named by body.
//
// Evaluation failures are stored on the run and are not returned. Returned
// errors are infrastructure failures worth a retry, or wrap ErrMalformed.
func (h *Handler) ProcessEvaluateMessage(ctx context.Context, body []byte) error {
	var msg EvaluateJobMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if msg.ID == "" {
		return fmt.Errorf("%w: missing run id", ErrMalformed)
	}

	return h.locks.Hold(ctx, leaselock.RunKey(msg.ID), func(ctx context.Context) error {
		return h.execute(ctx, msg.ID)
	})
}

func (h *Handler) execute(ctx context.Context, id string) error {
	err := h.runs.MarkRunning(ctx, id)
	switch {
	case errors.Is(err, store.ErrFinished):
		logger.Info("[Queue] Run already finished, skipping", "id", id)
		return nil
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: run %s does not exist", ErrMalformed, id)
	case err != nil:
		return fmt.Errorf("mark run %s running: %w", id, err)
	}

	run, err := h.runs.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load run %s: %w", id, err)
	}

	logger.Info("[Queue] Executing run", "id", id)
	data, err := h.runner.Run(ctx, run.Input, run.Config)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		logger.Error("[Queue] Run failed", "id", id, "err", err)
		if ferr := h.runs.Fail(context.WithoutCancel(ctx), id, err.Error()); ferr != nil {
			return fmt.Errorf("store failure of run %s: %w", id, ferr)
		}
		return nil
	}

	if err := h.runs.Complete(context.WithoutCancel(ctx), id, data); err != nil {
		return fmt.Errorf("store result of run %s: %w", id, err)
	}
	logger.Info("[Queue] Run completed", "id", id)
	return nil
}

// HandleProcessingError routes a failed delivery to the retry queue, or to
// the dead letter queue once MaxRetries is reached or the job is malformed.
// The original delivery is acked once the copy is published.
func HandleProcessingError(ctx context.Context, ch Publisher, msg amqp091.Delivery, queueName string, cause error) {
	retries := retryCount(msg.Headers)

	target := queueName + "_retry"
	if retries >= MaxRetries || errors.Is(cause, ErrMalformed) {
		target = queueName + "_dlq"
	}

	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers["x-retries"] = int32(retries + 1)
	headers["x-last-error"] = cause.Error()

	logger.Warn("[Queue] Rerouting failed message", "queue", target, "retries", retries, "err", cause)
	if err := Publish(ctx, ch, target, msg.Body, headers); err != nil {
		logger.Error("[Queue] Failed to reroute message", "queue", target, "err", err)
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}

func retryCount(headers amqp091.Table) int {
	switch v := headers["x-retries"].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}
