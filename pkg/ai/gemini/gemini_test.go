package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/segbench/pkg/ai"
	"github.com/OFFIS-RIT/segbench/pkg/common"

	"google.golang.org/genai"
)

func TestConvertSchema(t *testing.T) {
	gs := ConvertSchema(ai.GenerateSchema(&common.BatchComparisonData{}))

	if gs.Type != genai.TypeObject {
		t.Fatalf("root type = %s", gs.Type)
	}
	if !slices.Equal(gs.PropertyOrdering, []string{"items", "summary"}) {
		t.Fatalf("root ordering = %v", gs.PropertyOrdering)
	}

	item := gs.Properties["items"].Items
	word := item.Properties["traditional"].Properties["words"].Items
	if word.Properties["text"].Nullable != nil {
		t.Fatal("required property text must not be nullable")
	}
	if n := word.Properties["entity"].Nullable; n == nil || !*n {
		t.Fatal("optional property entity must be nullable")
	}
	conf := word.Properties["confidence"]
	if conf.Type != genai.TypeNumber || conf.Maximum == nil || *conf.Maximum != 1 {
		t.Fatalf("confidence schema = %+v", conf)
	}
	if word.Properties["levelIndex"].Type != genai.TypeInteger {
		t.Fatalf("levelIndex type = %s", word.Properties["levelIndex"].Type)
	}
	if !slices.Equal(word.Properties["granularity"].Enum, []string{"fine", "coarse", "mixed"}) {
		t.Fatalf("granularity enum = %v", word.Properties["granularity"].Enum)
	}
}

func TestConvertSchemaNil(t *testing.T) {
	if ConvertSchema(nil) != nil {
		t.Fatal("expected nil")
	}
}

func TestGenerateCompletionWithSchema(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-3-flash-preview:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "{\"items\": []}"}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 8, "totalTokenCount": 20}
		}`)
	}))
	defer srv.Close()

	client, err := NewGeminiClient(context.Background(), NewGeminiClientParams{
		Model:   "gemini-3-flash-preview",
		APIKey:  "test-key",
		BaseURL: srv.URL,
	})
	if err != nil {
		t.Fatalf("NewGeminiClient: %v", err)
	}

	text, err := client.GenerateCompletionWithSchema(
		context.Background(),
		"batch_comparison",
		"segmentation comparison",
		"对比并评估以下文本",
		ai.GenerateSchema(&common.BatchComparisonData{}),
		ai.WithSystemPrompts("你是一位资深的中文 NLP 语言学家"),
		ai.WithTemperature(0.2),
	)
	if err != nil {
		t.Fatalf("GenerateCompletionWithSchema: %v", err)
	}
	if text != `{"items": []}` {
		t.Fatalf("text = %q", text)
	}

	cfg, _ := gotBody["generationConfig"].(map[string]any)
	if cfg["responseMimeType"] != "application/json" {
		t.Fatalf("responseMimeType not sent: %v", cfg)
	}
	if _, ok := gotBody["systemInstruction"]; !ok {
		t.Fatal("systemInstruction not sent")
	}
	if m := client.GetMetrics(); m.TotalTokens != 20 {
		t.Fatalf("metrics = %+v", m)
	}
}
