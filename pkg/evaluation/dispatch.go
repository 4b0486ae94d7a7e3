package evaluation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/OFFIS-RIT/segbench/pkg/ai"
	"github.com/OFFIS-RIT/segbench/pkg/common"
	"github.com/OFFIS-RIT/segbench/pkg/endpoint"
	"github.com/OFFIS-RIT/segbench/pkg/logger"

	"github.com/go-playground/validator"
)

// EndpointCaller performs a strict call against a configured endpoint.
// *endpoint.Invoker implements it.
type EndpointCaller interface {
	Call(ctx context.Context, name string, cfg endpoint.Config, text string, payload any) (json.RawMessage, error)
}

// EvaluatorPayload is the JSON sent to an external evaluator as {{payload}}.
// The evaluator's {{text}} is the non-blank input lines joined with "\n",
// not the raw input, so blank lines and surrounding spaces are gone.
type EvaluatorPayload struct {
	Texts           []string                      `json:"texts"`
	Weights         EvaluationWeights             `json:"weights"`
	Granularity     GranularityLevel              `json:"granularity"`
	Definitions     []LevelDefinition             `json:"definitions"`
	ExternalResults []common.ExternalSegmentation `json:"externalResults,omitempty"`
}

// Dispatcher scores a batch with either the model client or the external
// evaluator endpoint.
//
// A Dispatcher should be created using NewDispatcher.
type Dispatcher struct {
	client   ai.Client
	caller   EndpointCaller
	timeout  time.Duration
	validate *validator.Validate
}

// NewDispatcherParams configures a Dispatcher.
//
// Client may be nil when only external evaluation is used. Timeout bounds
// the model call; zero means no extra bound beyond the caller's context.
type NewDispatcherParams struct {
	Client  ai.Client
	Caller  EndpointCaller
	Timeout time.Duration
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(params NewDispatcherParams) *Dispatcher {
	return &Dispatcher{
		client:   params.Client,
		caller:   params.Caller,
		timeout:  params.Timeout,
		validate: validator.New(),
	}
}

// Evaluate scores lines. It uses the external evaluator when cfg selects it
// and its endpoint is enabled, and the model otherwise. The two paths are
// never combined.
func (d *Dispatcher) Evaluate(
	ctx context.Context,
	lines []string,
	cfg AIConfig,
	hints []common.ExternalSegmentation,
) (*common.BatchComparisonData, error) {
	if cfg.UsesExternalEvaluator() {
		return d.evaluateExternal(ctx, lines, cfg, hints)
	}
	return d.evaluateModel(ctx, lines, cfg, hints)
}

func (d *Dispatcher) evaluateExternal(
	ctx context.Context,
	lines []string,
	cfg AIConfig,
	hints []common.ExternalSegmentation,
) (*common.BatchComparisonData, error) {
	const op = "external evaluator"
	if d.caller == nil {
		return nil, newError(ErrEvaluatorUnavailable, op, errors.New("no endpoint caller configured"))
	}

	defs := cfg.ActiveDefinitions()
	if defs == nil {
		defs = []LevelDefinition{}
	}
	payload := EvaluatorPayload{
		Texts:           lines,
		Weights:         cfg.Weights,
		Granularity:     cfg.GranularityLevel,
		Definitions:     defs,
		ExternalResults: hints,
	}

	logger.Debug("[Evaluation] dispatching to external evaluator", "url", cfg.EvaluatorAPI.URL, "lines", len(lines))

	raw, err := d.caller.Call(ctx, EndpointEvaluator, cfg.EvaluatorAPI, strings.Join(lines, "\n"), payload)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", op, ctxErr)
		}
		return nil, newError(ErrEvaluatorUnavailable, op, err)
	}
	if isFalsy(raw) {
		return nil, newError(ErrEvaluatorUnavailable, op, errors.New("evaluator returned nothing"))
	}

	var data common.BatchComparisonData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, newError(ErrResponseParse, op, err)
	}
	return &data, nil
}

// batchWire detects missing top-level fields that a plain decode would
// silently zero.
type batchWire struct {
	Items   *[]common.ComparisonData `json:"items"`
	Summary *common.BatchSummary     `json:"summary"`
}

func (d *Dispatcher) evaluateModel(
	ctx context.Context,
	lines []string,
	cfg AIConfig,
	hints []common.ExternalSegmentation,
) (*common.BatchComparisonData, error) {
	const op = "model evaluator"
	if d.client == nil {
		return nil, newError(ErrEvaluatorUnavailable, op, errors.New("no model client configured"))
	}

	req := BuildRequest(lines, cfg, hints)

	callCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	logger.Debug("[Evaluation] dispatching to model", "model", cfg.Model, "lines", len(lines), "hints", len(hints))

	start := time.Now()
	text, err := d.client.GenerateCompletionWithSchema(
		callCtx,
		SchemaName,
		SchemaDescription,
		req.Prompt,
		req.Schema,
		ai.WithModel(cfg.Model),
		ai.WithSystemPrompts(req.Instruction),
		ai.WithTemperature(cfg.Temperature),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", op, ctxErr)
		}
		if errors.Is(err, ai.ErrEmptyResponse) {
			return nil, newError(ErrResponseParse, op, err)
		}
		return nil, newError(ErrEvaluatorUnavailable, op, err)
	}
	logger.Debug("[Evaluation] model answered", "duration", time.Since(start).String(), "bytes", len(text))

	var wire batchWire
	if err := ai.UnmarshalFlexible(text, &wire); err != nil {
		return nil, newError(ErrResponseParse, op, err)
	}
	if wire.Items == nil || wire.Summary == nil {
		return nil, newError(ErrResponseParse, op, errors.New("answer lacks items or summary"))
	}

	data := &common.BatchComparisonData{Items: *wire.Items, Summary: *wire.Summary}
	if err := d.validate.Struct(data); err != nil {
		return nil, newError(ErrResponseParse, op, err)
	}
	if len(data.Items) != len(lines) {
		logger.Warn("[Evaluation] item count differs from line count", "items", len(data.Items), "lines", len(lines))
	}

	normalize(data)
	return data, nil
}

// normalize fills the fields the schema does not ask the model for.
func normalize(data *common.BatchComparisonData) {
	for i := range data.Items {
		item := &data.Items[i]
		item.Traditional.Method = common.MethodTraditional
		item.Traditional.FullText = item.Input
		item.MGeo.Method = common.MethodMGeo
		item.MGeo.FullText = item.Input
		if item.Traditional.Words == nil {
			item.Traditional.Words = []common.SegmentWord{}
		}
		if item.MGeo.Words == nil {
			item.MGeo.Words = []common.SegmentWord{}
		}
	}
}

// isFalsy reports the JSON values an evaluator uses to say "nothing".
func isFalsy(raw json.RawMessage) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "", "null", "false", "0", `""`:
		return true
	}
	return false
}
