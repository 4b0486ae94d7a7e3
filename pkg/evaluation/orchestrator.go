package evaluation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/OFFIS-RIT/segbench/pkg/common"
	"github.com/OFFIS-RIT/segbench/pkg/endpoint"
	"github.com/OFFIS-RIT/segbench/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// Evaluator scores a batch. *Dispatcher implements it.
type Evaluator interface {
	Evaluate(ctx context.Context, lines []string, cfg AIConfig, hints []common.ExternalSegmentation) (*common.BatchComparisonData, error)
}

// SegmentationSource fetches a segmentation hint, reporting false when
// none is available. *endpoint.Invoker implements it.
type SegmentationSource interface {
	Invoke(ctx context.Context, name string, cfg endpoint.Config, text string, payload any) (json.RawMessage, bool)
}

// Orchestrator runs complete evaluations: hint gathering followed by one
// evaluator call.
//
// An Orchestrator should be created using NewOrchestrator.
type Orchestrator struct {
	evaluator Evaluator
	segments  SegmentationSource
	workers   int
}

// NewOrchestratorParams configures an Orchestrator.
//
// HintWorkers bounds how many lines fetch hints at the same time. Values
// below one mean one, which fetches strictly in line order.
type NewOrchestratorParams struct {
	Evaluator   Evaluator
	Segments    SegmentationSource
	HintWorkers int
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(params NewOrchestratorParams) *Orchestrator {
	workers := params.HintWorkers
	if workers < 1 {
		workers = 1
	}
	return &Orchestrator{
		evaluator: params.Evaluator,
		segments:  params.Segments,
		workers:   workers,
	}
}

// Run evaluates raw, one sample per non-blank line.
//
// The configuration is validated before anything is sent. Blank input
// returns nil without error. A cancelled ctx aborts the run and no partial
// result is returned.
func (o *Orchestrator) Run(ctx context.Context, raw string, cfg AIConfig) (*common.BatchComparisonData, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, w := range cfg.Warnings() {
		logger.Warn("[Evaluation] configuration warning", "warning", w)
	}

	lines := SplitLines(raw)
	if len(lines) == 0 {
		logger.Debug("[Evaluation] blank input, nothing to evaluate")
		return nil, nil
	}

	logger.Info("[Evaluation] run started", "lines", len(lines), "granularity", cfg.GranularityLevel, "evaluator", cfg.EvaluatorType)

	hints, err := o.CollectHints(ctx, lines, cfg)
	if err != nil {
		return nil, err
	}

	data, err := o.evaluator.Evaluate(ctx, lines, cfg, hints)
	if err != nil {
		logger.Error("[Evaluation] run failed", "err", err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("evaluation cancelled: %w", err)
	}

	logger.Info("[Evaluation] run completed", "items", len(data.Items))
	return data, nil
}

// CollectHints queries the segmentation endpoints for every line. It
// returns nil when both endpoints are inactive, and one entry per line
// otherwise, in line order. Endpoint failures and unusable answers only
// drop the hint for that line.
func (o *Orchestrator) CollectHints(ctx context.Context, lines []string, cfg AIConfig) ([]common.ExternalSegmentation, error) {
	if !cfg.TraditionalAPI.Active() && !cfg.MGeoAPI.Active() {
		return nil, nil
	}
	if o.segments == nil {
		return nil, newError(ErrConfiguration, "collect hints", fmt.Errorf("no segmentation source configured"))
	}

	hints := make([]common.ExternalSegmentation, len(lines))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i, line := range lines {
		if gCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			hint := common.ExternalSegmentation{Text: line}
			hint.TraditionalWords, hint.TraditionalDetailed = o.fetchHint(gCtx, EndpointTraditional, cfg.TraditionalAPI, line)
			hint.MGeoWords, hint.MGeoDetailed = o.fetchHint(gCtx, EndpointMGeo, cfg.MGeoAPI, line)
			hints[i] = hint
			return gCtx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("collect hints: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("collect hints: %w", err)
	}

	return hints, nil
}

func (o *Orchestrator) fetchHint(ctx context.Context, name string, cfg endpoint.Config, line string) ([]string, []common.DetailedWord) {
	raw, ok := o.segments.Invoke(ctx, name, cfg, line, nil)
	if !ok {
		return nil, nil
	}
	words, detailed, err := ParseHint(raw)
	if err != nil {
		logger.Warn("[Evaluation] hint dropped", "endpoint", name, "text", line, "err", fmt.Errorf("%w: %v", ErrExternalCall, err))
		return nil, nil
	}
	return words, detailed
}
