package common

// Segmentation methods compared by every evaluation run.
const (
	MethodTraditional = "Traditional"
	MethodMGeo        = "MGeo"
)

// SegmentWord is one token produced by a segmentation method.
//
// LevelIndex is the 1-based position of the matching level in the active
// dictionary and CategoryName is that level's alias. Both are optional
// because not every token maps onto a dictionary level.
type SegmentWord struct {
	Text         string  `json:"text" validate:"required"`
	Pos          string  `json:"pos"`
	Entity       string  `json:"entity,omitempty"`
	Granularity  string  `json:"granularity" jsonschema:"enum=fine,enum=coarse,enum=mixed"`
	Confidence   float64 `json:"confidence" validate:"gte=0,lte=1" jsonschema:"minimum=0,maximum=1"`
	LevelIndex   *int    `json:"levelIndex,omitempty" validate:"omitempty,gte=1" jsonschema:"minimum=1"`
	CategoryName string  `json:"categoryName,omitempty"`
}

// SegmentationResult holds the tokens one method produced for an input.
//
// Method and FullText are filled in after evaluation, they are not part
// of the schema a model is asked to answer.
type SegmentationResult struct {
	Method   string        `json:"method,omitempty" jsonschema:"-"`
	Words    []SegmentWord `json:"words" validate:"dive"`
	FullText string        `json:"fullText,omitempty" jsonschema:"-"`
}

// MetricScore is one of the four rubric metrics for a method.
type MetricScore struct {
	Name   string  `json:"name"`
	Score  float64 `json:"score" validate:"gte=0,lte=100" jsonschema:"minimum=0,maximum=100"`
	Reason string  `json:"reason"`
}

// EvaluationReport scores one method on one sample.
type EvaluationReport struct {
	OverallScore float64     `json:"overallScore" validate:"gte=0,lte=100" jsonschema:"minimum=0,maximum=100"`
	Recall       MetricScore `json:"recall"`
	Precision    MetricScore `json:"precision"`
	Accuracy     MetricScore `json:"accuracy"`
	Consistency  MetricScore `json:"consistency"`
	Pros         []string    `json:"pros"`
	Cons         []string    `json:"cons"`
	Suggestion   string      `json:"suggestion"`
}

// ComparisonData is one evaluated sample.
type ComparisonData struct {
	ID              string             `json:"id"`
	Input           string             `json:"input" validate:"required"`
	Traditional     SegmentationResult `json:"traditional"`
	MGeo            SegmentationResult `json:"mgeo"`
	TraditionalEval EvaluationReport   `json:"traditionalEval"`
	MGeoEval        EvaluationReport   `json:"mgeoEval"`
}

// BatchSummary aggregates a whole run.
type BatchSummary struct {
	TraditionalAvgScore float64 `json:"traditionalAvgScore" validate:"gte=0,lte=100" jsonschema:"minimum=0,maximum=100"`
	MGeoAvgScore        float64 `json:"mgeoAvgScore" validate:"gte=0,lte=100" jsonschema:"minimum=0,maximum=100"`
	TotalItems          int     `json:"totalItems" validate:"gte=0" jsonschema:"minimum=0"`
	KeyInsights         string  `json:"keyInsights"`
}

// BatchComparisonData is the result of one evaluation run. A value is
// created fresh per run and is not modified after it is returned.
type BatchComparisonData struct {
	Items   []ComparisonData `json:"items" validate:"min=1,dive"`
	Summary BatchSummary     `json:"summary"`
}

// DetailedWord is a hinted token annotated with a dictionary level id.
type DetailedWord struct {
	Text    string `json:"text"`
	LevelID string `json:"levelId,omitempty"`
}

// ExternalSegmentation carries the segmentation hints collected from the
// external endpoints for one input line. A nil slice means the endpoint
// produced no usable hint for that line and is left out of the JSON; an
// empty slice means it answered with no words and is kept as [].
type ExternalSegmentation struct {
	Text                string         `json:"text"`
	TraditionalWords    []string       `json:"traditionalWords,omitzero"`
	MGeoWords           []string       `json:"mgeoWords,omitzero"`
	TraditionalDetailed []DetailedWord `json:"traditionalDetailed,omitzero"`
	MGeoDetailed        []DetailedWord `json:"mgeoDetailed,omitzero"`
}

// HasHint reports whether any endpoint contributed a hint for the line.
func (e ExternalSegmentation) HasHint() bool {
	return e.TraditionalWords != nil || e.MGeoWords != nil ||
		e.TraditionalDetailed != nil || e.MGeoDetailed != nil
}
