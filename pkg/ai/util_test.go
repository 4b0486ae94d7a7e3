package ai

import (
	"encoding/json"
	"errors"
	"slices"
	"testing"

	"github.com/OFFIS-RIT/segbench/pkg/common"
)

func TestUnmarshalFlexible_ObjectVariants(t *testing.T) {
	type word struct {
		Text    string `json:"text"`
		LevelID string `json:"levelId,omitempty"`
	}

	tests := []struct {
		name  string
		input string
		want  word
	}{
		{
			name:  "valid json object",
			input: `{"text":"南山区"}`,
			want:  word{Text: "南山区"},
		},
		{
			name:  "unquoted key and single quotes",
			input: `{text: '南山区', levelId: 'L4'}`,
			want:  word{Text: "南山区", LevelID: "L4"},
		},
		{
			name:  "trailing comma",
			input: `{"text":"南山区",}`,
			want:  word{Text: "南山区"},
		},
		{
			name:  "missing endbracket",
			input: `{"text":"南山区"`,
			want:  word{Text: "南山区"},
		},
		{
			name:  "stringified invalid json object",
			input: `"{text: '南山区'}"`,
			want:  word{Text: "南山区"},
		},
		{
			name:  "duplicate leading brace",
			input: "{\n{\n  \"text\": \"南山区\"\n}\n",
			want:  word{Text: "南山区"},
		},
		{
			name:  "markdown code fence",
			input: "```json\n{\"text\": \"南山区\", \"levelId\": \"L4\"}\n```",
			want:  word{Text: "南山区", LevelID: "L4"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got word
			if err := UnmarshalFlexible(tc.input, &got); err != nil {
				t.Fatalf("UnmarshalFlexible() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("UnmarshalFlexible() got = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestUnmarshalFlexible_ArrayVariants(t *testing.T) {
	var got []string
	if err := UnmarshalFlexible(`['南山','区',]`, &got); err != nil {
		t.Fatalf("UnmarshalFlexible() error = %v", err)
	}
	if !slices.Equal(got, []string{"南山", "区"}) {
		t.Fatalf("UnmarshalFlexible() got = %v", got)
	}
}

func TestUnmarshalFlexible_Unrecoverable(t *testing.T) {
	var got struct {
		Text string `json:"text"`
	}
	if err := UnmarshalFlexible("hello", &got); err == nil {
		t.Fatalf("UnmarshalFlexible() expected error for unrecoverable input")
	}
}

func TestUnmarshalFlexible_Empty(t *testing.T) {
	var got map[string]any
	for _, in := range []string{"", "   \n"} {
		if err := UnmarshalFlexible(in, &got); !errors.Is(err, ErrEmptyResponse) {
			t.Fatalf("UnmarshalFlexible(%q) err = %v, want ErrEmptyResponse", in, err)
		}
	}
}

func TestGenerateSchema_BatchComparisonData(t *testing.T) {
	schema := GenerateSchema(&common.BatchComparisonData{})

	if !slices.Equal(schema.Required, []string{"items", "summary"}) {
		t.Fatalf("root required = %v", schema.Required)
	}

	items, ok := schema.Properties.Get("items")
	if !ok || items.Type != "array" || items.Items == nil {
		t.Fatalf("items property missing or not an array: %+v", items)
	}
	traditional, ok := items.Items.Properties.Get("traditional")
	if !ok {
		t.Fatal("item schema has no traditional property")
	}
	if _, ok := traditional.Properties.Get("method"); ok {
		t.Fatal("method must not be requested from the model")
	}
	words, ok := traditional.Properties.Get("words")
	if !ok || words.Items == nil {
		t.Fatal("traditional.words missing")
	}
	word := words.Items
	if !slices.Equal(word.Required, []string{"text", "pos", "granularity", "confidence"}) {
		t.Fatalf("word required = %v", word.Required)
	}
	confidence, _ := word.Properties.Get("confidence")
	if confidence.Minimum != json.Number("0") || confidence.Maximum != json.Number("1") {
		t.Fatalf("confidence bounds = [%s, %s]", confidence.Minimum, confidence.Maximum)
	}

	report, ok := items.Items.Properties.Get("mgeoEval")
	if !ok {
		t.Fatal("mgeoEval missing")
	}
	overall, _ := report.Properties.Get("overallScore")
	if overall.Maximum != json.Number("100") {
		t.Fatalf("overallScore maximum = %s", overall.Maximum)
	}
}

func TestGenerateSchema_Deterministic(t *testing.T) {
	a, err := json.Marshal(GenerateSchema(common.BatchComparisonData{}))
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(GenerateSchema(&common.BatchComparisonData{}))
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Fatalf("schema differs between runs:\n%s\n%s", a, b)
	}
}

func TestMetricsAccumulate(t *testing.T) {
	var m Metrics
	m.AddMetrics(ModelMetrics{InputTokens: 10, OutputTokens: 30, TotalTokens: 40, DurationMs: 1000})
	m.AddMetrics(ModelMetrics{InputTokens: 5, OutputTokens: 5, TotalTokens: 10, DurationMs: 1000})

	got := m.GetMetrics()
	if got.TotalTokens != 50 || got.DurationMs != 2000 || got.TokenPerSecond != 25 {
		t.Fatalf("unexpected metrics %+v", got)
	}

	m.ResetMetrics()
	if m.GetMetrics() != (ModelMetrics{}) {
		t.Fatalf("metrics not reset: %+v", m.GetMetrics())
	}
}

func TestApplyOptions(t *testing.T) {
	got := ApplyOptions(
		GenerateOptions{Model: "default", Temperature: 0.1},
		WithModel(""),
		WithTemperature(0.2),
		WithSystemPrompts("a", "b"),
	)
	if got.Model != "default" {
		t.Fatalf("empty model overrode default: %q", got.Model)
	}
	if got.Temperature != 0.2 || len(got.SystemPrompts) != 2 {
		t.Fatalf("unexpected options %+v", got)
	}
}
