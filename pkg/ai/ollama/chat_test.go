package ollama

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/segbench/pkg/ai"
	"github.com/OFFIS-RIT/segbench/pkg/common"
)

func TestGenerateCompletionWithSchema(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = io.WriteString(w, `{"model":"qwen3","message":{"role":"assistant","content":"{\"items\":[]}"},"done":true,"prompt_eval_count":11,"eval_count":4,"total_duration":2000000000}`+"\n")
	}))
	defer srv.Close()

	client, err := NewOllamaClient(NewOllamaClientParams{Model: "qwen3", BaseURL: srv.URL, ApiKey: "secret"})
	if err != nil {
		t.Fatalf("NewOllamaClient: %v", err)
	}
	client.countTokens = func(s string) int { return 10000 }

	text, err := client.GenerateCompletionWithSchema(
		context.Background(),
		"batch_comparison",
		"segmentation comparison",
		"南山区科技园",
		ai.GenerateSchema(&common.BatchComparisonData{}),
		ai.WithSystemPrompts("system"),
	)
	if err != nil {
		t.Fatalf("GenerateCompletionWithSchema: %v", err)
	}
	if text != `{"items":[]}` {
		t.Fatalf("text = %q", text)
	}

	msgs, _ := body["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected system and user message, got %d", len(msgs))
	}
	if first, _ := msgs[0].(map[string]any); first["role"] != "system" {
		t.Fatalf("first message = %v", first)
	}
	format, _ := body["format"].(map[string]any)
	if format["type"] != "object" {
		t.Fatalf("format = %v", body["format"])
	}
	opts, _ := body["options"].(map[string]any)
	if _, ok := opts["num_ctx"]; !ok {
		t.Fatalf("num_ctx not raised: %v", opts)
	}
	if m := client.GetMetrics(); m.TotalTokens != 15 || m.DurationMs != 2000 {
		t.Fatalf("metrics = %+v", m)
	}
}

func TestGenerateCompletionWithSchemaEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"model":"qwen3","message":{"role":"assistant","content":"  "},"done":true}`+"\n")
	}))
	defer srv.Close()

	client, err := NewOllamaClient(NewOllamaClientParams{Model: "qwen3", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewOllamaClient: %v", err)
	}
	client.countTokens = nil

	_, err = client.GenerateCompletionWithSchema(context.Background(), "n", "d", "p", ai.GenerateSchema(&common.BatchComparisonData{}))
	if err == nil || !strings.Contains(err.Error(), "empty") {
		t.Fatalf("expected empty response error, got %v", err)
	}
}
