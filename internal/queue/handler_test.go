package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/OFFIS-RIT/segbench/internal/store"
	"github.com/OFFIS-RIT/segbench/pkg/common"
	"github.com/OFFIS-RIT/segbench/pkg/evaluation"
	"github.com/OFFIS-RIT/segbench/pkg/leaselock"

	"github.com/rabbitmq/amqp091-go"
)

type memRuns struct {
	runs       map[string]*store.Run
	markErr    error
	completeOK bool
}

func (m *memRuns) Get(ctx context.Context, id string) (*store.Run, error) {
	run, ok := m.runs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return run, nil
}

func (m *memRuns) MarkRunning(ctx context.Context, id string) error {
	if m.markErr != nil {
		return m.markErr
	}
	run, ok := m.runs[id]
	if !ok {
		return store.ErrNotFound
	}
	if run.Status == store.StatusCompleted || run.Status == store.StatusFailed {
		return store.ErrFinished
	}
	run.Status = store.StatusRunning
	return nil
}

func (m *memRuns) Complete(ctx context.Context, id string, data *common.BatchComparisonData) error {
	m.runs[id].Status = store.StatusCompleted
	m.runs[id].Result = data
	return nil
}

func (m *memRuns) Fail(ctx context.Context, id string, message string) error {
	m.runs[id].Status = store.StatusFailed
	m.runs[id].Error = message
	return nil
}

type stubRunner struct {
	data  *common.BatchComparisonData
	err   error
	calls int
	input string
}

func (s *stubRunner) Run(ctx context.Context, raw string, cfg evaluation.AIConfig) (*common.BatchComparisonData, error) {
	s.calls++
	s.input = raw
	return s.data, s.err
}

type directLocker struct {
	keys []string
	err  error
}

func (d *directLocker) Hold(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	d.keys = append(d.keys, key)
	if d.err != nil {
		return d.err
	}
	return fn(ctx)
}

func newFixture(status store.Status) (*memRuns, *stubRunner, *directLocker, *Handler) {
	runs := &memRuns{runs: map[string]*store.Run{
		"r1": {ID: "r1", Status: status, Input: "福田区深南大道", Config: evaluation.DefaultConfig()},
	}}
	runner := &stubRunner{data: &common.BatchComparisonData{Summary: common.BatchSummary{TotalItems: 1}}}
	locks := &directLocker{}
	h := NewHandler(NewHandlerParams{Runs: runs, Runner: runner, Locks: locks})
	return runs, runner, locks, h
}

func TestProcessEvaluateMessageCompletes(t *testing.T) {
	runs, runner, locks, h := newFixture(store.StatusPending)

	if err := h.ProcessEvaluateMessage(context.Background(), []byte(`{"id":"r1"}`)); err != nil {
		t.Fatalf("ProcessEvaluateMessage: %v", err)
	}
	run := runs.runs["r1"]
	if run.Status != store.StatusCompleted || run.Result == nil || run.Result.Summary.TotalItems != 1 {
		t.Fatalf("unexpected run %+v", run)
	}
	if runner.input != "福田区深南大道" {
		t.Fatalf("runner got %q", runner.input)
	}
	if len(locks.keys) != 1 || locks.keys[0] != "run:r1" {
		t.Fatalf("lock keys = %v", locks.keys)
	}
}

func TestProcessEvaluateMessageStoresFailure(t *testing.T) {
	runs, runner, _, h := newFixture(store.StatusPending)
	runner.err = fmt.Errorf("evaluate: %w", evaluation.ErrEvaluatorUnavailable)

	if err := h.ProcessEvaluateMessage(context.Background(), []byte(`{"id":"r1"}`)); err != nil {
		t.Fatalf("evaluation failures must not be returned, got %v", err)
	}
	run := runs.runs["r1"]
	if run.Status != store.StatusFailed || run.Error == "" {
		t.Fatalf("unexpected run %+v", run)
	}
}

func TestProcessEvaluateMessageSkipsFinished(t *testing.T) {
	_, runner, _, h := newFixture(store.StatusCompleted)

	if err := h.ProcessEvaluateMessage(context.Background(), []byte(`{"id":"r1"}`)); err != nil {
		t.Fatalf("ProcessEvaluateMessage: %v", err)
	}
	if runner.calls != 0 {
		t.Fatal("finished run executed again")
	}
}

func TestProcessEvaluateMessageErrors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		markErr   error
		lockErr   error
		malformed bool
	}{
		{name: "invalid json", body: `{`, malformed: true},
		{name: "missing id", body: `{}`, malformed: true},
		{name: "unknown run", body: `{"id":"nope"}`, malformed: true},
		{name: "database down", body: `{"id":"r1"}`, markErr: errors.New("connection refused")},
		{name: "lock busy", body: `{"id":"r1"}`, lockErr: leaselock.ErrBusy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, _, locks, h := newFixture(store.StatusPending)
			runs.markErr = tt.markErr
			locks.err = tt.lockErr

			err := h.ProcessEvaluateMessage(context.Background(), []byte(tt.body))
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := errors.Is(err, ErrMalformed); got != tt.malformed {
				t.Fatalf("errors.Is(err, ErrMalformed) = %v, err %v", got, err)
			}
		})
	}
}

func TestProcessEvaluateMessageCancelled(t *testing.T) {
	runs, runner, _, h := newFixture(store.StatusPending)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner.err = ctx.Err()

	err := h.ProcessEvaluateMessage(ctx, []byte(`{"id":"r1"}`))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if runs.runs["r1"].Status != store.StatusRunning {
		t.Fatalf("cancelled run must stay running for redelivery, got %s", runs.runs["r1"].Status)
	}
}

type recordedPublish struct {
	key     string
	headers amqp091.Table
	body    []byte
}

type fakeChannel struct {
	published []recordedPublish
	err       error
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, recordedPublish{key: key, headers: msg.Headers, body: msg.Body})
	return nil
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error) {
	f.published = append(f.published, recordedPublish{key: name, headers: args})
	return amqp091.Queue{Name: name}, nil
}

type fakeAck struct {
	acked, nacked, requeued bool
}

func (f *fakeAck) Ack(tag uint64, multiple bool) error {
	f.acked = true
	return nil
}

func (f *fakeAck) Nack(tag uint64, multiple, requeue bool) error {
	f.nacked = true
	f.requeued = requeue
	return nil
}

func (f *fakeAck) Reject(tag uint64, requeue bool) error {
	return nil
}

func TestHandleProcessingError(t *testing.T) {
	tests := []struct {
		name    string
		headers amqp091.Table
		cause   error
		target  string
		retries int32
	}{
		{name: "first failure", cause: errors.New("db"), target: "evaluate_queue_retry", retries: 1},
		{name: "retried before", headers: amqp091.Table{"x-retries": int32(2)}, cause: errors.New("db"), target: "evaluate_queue_retry", retries: 3},
		{name: "retries exhausted", headers: amqp091.Table{"x-retries": int32(3)}, cause: errors.New("db"), target: "evaluate_queue_dlq", retries: 4},
		{name: "malformed", cause: fmt.Errorf("%w: bad", ErrMalformed), target: "evaluate_queue_dlq", retries: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := &fakeChannel{}
			ack := &fakeAck{}
			msg := amqp091.Delivery{Acknowledger: ack, Headers: tt.headers, Body: []byte(`{"id":"r1"}`)}

			HandleProcessingError(context.Background(), ch, msg, EvaluateQueue, tt.cause)

			if len(ch.published) != 1 {
				t.Fatalf("published %d messages", len(ch.published))
			}
			got := ch.published[0]
			if got.key != tt.target {
				t.Fatalf("target = %s, want %s", got.key, tt.target)
			}
			if got.headers["x-retries"] != tt.retries {
				t.Fatalf("x-retries = %v, want %d", got.headers["x-retries"], tt.retries)
			}
			if string(got.body) != `{"id":"r1"}` {
				t.Fatalf("body = %s", got.body)
			}
			if !ack.acked {
				t.Fatal("original delivery not acked")
			}
		})
	}
}

func TestHandleProcessingErrorPublishFails(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	ack := &fakeAck{}
	msg := amqp091.Delivery{Acknowledger: ack}

	HandleProcessingError(context.Background(), ch, msg, EvaluateQueue, errors.New("db"))

	if ack.acked || !ack.nacked || !ack.requeued {
		t.Fatalf("expected requeueing nack, got %+v", ack)
	}
}

func TestSetupQueues(t *testing.T) {
	ch := &fakeChannel{}
	if err := SetupQueues(ch, []string{EvaluateQueue}); err != nil {
		t.Fatalf("SetupQueues: %v", err)
	}
	if len(ch.published) != 3 {
		t.Fatalf("declared %d queues", len(ch.published))
	}
	retry := ch.published[2]
	if retry.key != "evaluate_queue_retry" || retry.headers["x-dead-letter-routing-key"] != EvaluateQueue {
		t.Fatalf("unexpected retry queue %+v", retry)
	}
}
