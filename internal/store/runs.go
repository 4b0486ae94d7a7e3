package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/segbench/pkg/common"
	"github.com/OFFIS-RIT/segbench/pkg/evaluation"
	"github.com/OFFIS-RIT/segbench/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var (
	ErrNotFound = errors.New("run not found")
	// ErrFinished is returned when a completed or failed run is started again.
	ErrFinished = errors.New("run already finished")
)

// Status of a stored run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Run is one evaluation request and, once finished, its outcome.
type Run struct {
	ID        string                      `json:"id"`
	Status    Status                      `json:"status"`
	Input     string                      `json:"input"`
	Config    evaluation.AIConfig         `json:"config"`
	Result    *common.BatchComparisonData `json:"result,omitempty"`
	Error     string                      `json:"error,omitempty"`
	CreatedAt time.Time                   `json:"createdAt"`
	UpdatedAt time.Time                   `json:"updatedAt"`
}

type dbConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RunStore persists runs in Postgres.
type RunStore struct {
	db dbConn
}

func NewRunStore(pool *pgxpool.Pool) *RunStore {
	return &RunStore{db: pool}
}

// Create stores a pending run.
func (s *RunStore) Create(ctx context.Context, input string, cfg evaluation.AIConfig) (*Run, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	rawCfg, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}

	run := &Run{ID: id, Status: StatusPending, Input: input, Config: cfg}
	err = s.db.QueryRow(ctx, createRunSQL, id, input, string(rawCfg)).Scan(&run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return nil, err
	}

	logger.Debug("[Store][Create] run stored", "id", id)
	return run, nil
}

// Get loads a run by id.
func (s *RunStore) Get(ctx context.Context, id string) (*Run, error) {
	var (
		run       Run
		status    string
		rawCfg    []byte
		rawResult []byte
	)
	err := s.db.QueryRow(ctx, getRunSQL, id).Scan(
		&run.ID, &status, &run.Input, &rawCfg, &rawResult, &run.Error, &run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	run.Status = Status(status)

	if err := json.Unmarshal(rawCfg, &run.Config); err != nil {
		return nil, fmt.Errorf("decode config of run %s: %w", id, err)
	}
	if len(rawResult) > 0 {
		run.Result = &common.BatchComparisonData{}
		if err := json.Unmarshal(rawResult, run.Result); err != nil {
			return nil, fmt.Errorf("decode result of run %s: %w", id, err)
		}
	}
	return &run, nil
}

// MarkRunning moves a pending or interrupted run to running.
func (s *RunStore) MarkRunning(ctx context.Context, id string) error {
	var status string
	err := s.db.QueryRow(ctx, markRunningSQL, id).Scan(&status)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	if _, gerr := s.Get(ctx, id); gerr != nil {
		return gerr
	}
	return ErrFinished
}

// Complete stores the result of a run. data may be nil for blank input.
func (s *RunStore) Complete(ctx context.Context, id string, data *common.BatchComparisonData) error {
	var raw any
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		raw = string(b)
	}
	return s.finish(ctx, completeRunSQL, id, raw)
}

// Fail stores the failure message of a run.
func (s *RunStore) Fail(ctx context.Context, id string, message string) error {
	return s.finish(ctx, failRunSQL, id, message)
}

func (s *RunStore) finish(ctx context.Context, sql string, id string, arg any) error {
	tag, err := s.db.Exec(ctx, sql, id, arg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const createRunSQL = `
INSERT INTO runs (id, status, input, config)
VALUES ($1, 'pending', $2, $3::jsonb)
RETURNING created_at, updated_at;
`

const getRunSQL = `
SELECT id, status, input, config, result, error, created_at, updated_at
FROM runs
WHERE id = $1;
`

const markRunningSQL = `
UPDATE runs
SET status = 'running', updated_at = now()
WHERE id = $1 AND status IN ('pending', 'running')
RETURNING status;
`

const completeRunSQL = `
UPDATE runs
SET status = 'completed', result = $2::jsonb, error = '', updated_at = now()
WHERE id = $1;
`

const failRunSQL = `
UPDATE runs
SET status = 'failed', error = $2, updated_at = now()
WHERE id = $1;
`
