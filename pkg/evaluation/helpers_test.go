package evaluation

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/OFFIS-RIT/segbench/pkg/ai"
	"github.com/OFFIS-RIT/segbench/pkg/common"
	"github.com/OFFIS-RIT/segbench/pkg/endpoint"

	"github.com/invopop/jsonschema"
)

type modelCall struct {
	prompt  string
	schema  *jsonschema.Schema
	options ai.GenerateOptions
}

type fakeClient struct {
	ai.Metrics

	mu     sync.Mutex
	calls  []modelCall
	answer string
	err    error
	block  bool
}

func (f *fakeClient) GenerateCompletionWithSchema(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	schema *jsonschema.Schema,
	opts ...ai.GenerateOption,
) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, modelCall{prompt: prompt, schema: schema, options: ai.ApplyOptions(ai.GenerateOptions{}, opts...)})
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.answer, f.err
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeSource answers segmentation requests from a table keyed by
// endpoint name and line. Missing entries are failures.
type fakeSource struct {
	mu      sync.Mutex
	answers map[string]map[string]string
	calls   []string
	onCall  func(name, text string)
}

func (f *fakeSource) Invoke(ctx context.Context, name string, cfg endpoint.Config, text string, payload any) (json.RawMessage, bool) {
	if f.onCall != nil {
		f.onCall(name, text)
	}
	f.mu.Lock()
	f.calls = append(f.calls, name+":"+text)
	f.mu.Unlock()

	if !cfg.Active() || ctx.Err() != nil {
		return nil, false
	}
	raw, ok := f.answers[name][text]
	if !ok {
		return nil, false
	}
	return json.RawMessage(raw), true
}

func intPtr(i int) *int { return &i }

func sampleReport(score float64) common.EvaluationReport {
	metric := func(name string) common.MetricScore {
		return common.MetricScore{Name: name, Score: score, Reason: "层级映射准确"}
	}
	return common.EvaluationReport{
		OverallScore: score,
		Recall:       metric("Recall"),
		Precision:    metric("Precision"),
		Accuracy:     metric("Accuracy"),
		Consistency:  metric("Consistency"),
		Pros:         []string{"识别出区县"},
		Cons:         []string{},
		Suggestion:   "无",
	}
}

func sampleBatch(inputs ...string) *common.BatchComparisonData {
	data := &common.BatchComparisonData{
		Summary: common.BatchSummary{
			TraditionalAvgScore: 70,
			MGeoAvgScore:        90,
			TotalItems:          len(inputs),
			KeyInsights:         "MGeo 在层级映射上更准确",
		},
	}
	for i, in := range inputs {
		data.Items = append(data.Items, common.ComparisonData{
			ID:    string(rune('1' + i)),
			Input: in,
			Traditional: common.SegmentationResult{Words: []common.SegmentWord{
				{Text: "南山", Pos: "ns", Granularity: "fine", Confidence: 0.8},
				{Text: "区", Pos: "n", Granularity: "fine", Confidence: 0.6},
			}},
			MGeo: common.SegmentationResult{Words: []common.SegmentWord{
				{Text: "南山区", Pos: "ns", Granularity: "coarse", Confidence: 0.95, LevelIndex: intPtr(4), CategoryName: "区"},
			}},
			TraditionalEval: sampleReport(70),
			MGeoEval:        sampleReport(90),
		})
	}
	return data
}

func sampleAnswer(inputs ...string) string {
	raw, err := json.Marshal(sampleBatch(inputs...))
	if err != nil {
		panic(err)
	}
	return string(raw)
}
