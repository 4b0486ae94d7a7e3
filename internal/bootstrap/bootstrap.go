// Package bootstrap builds the process wide dependencies shared by the
// server, the worker and the CLI from environment variables.
package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/OFFIS-RIT/segbench/internal/util"
	"github.com/OFFIS-RIT/segbench/pkg/ai"
	"github.com/OFFIS-RIT/segbench/pkg/ai/gemini"
	"github.com/OFFIS-RIT/segbench/pkg/ai/ollama"
	"github.com/OFFIS-RIT/segbench/pkg/ai/openai"
	"github.com/OFFIS-RIT/segbench/pkg/endpoint"
	"github.com/OFFIS-RIT/segbench/pkg/evaluation"
	"github.com/OFFIS-RIT/segbench/pkg/logger"
	"github.com/OFFIS-RIT/segbench/pkg/logger/console"
)

const (
	AdapterGemini = "gemini"
	AdapterOpenAI = "openai"
	AdapterOllama = "ollama"
)

// DefaultEvaluatorTimeout bounds one model evaluation call.
const DefaultEvaluatorTimeout = 5 * time.Minute

// InitLogger installs the console logger, at debug level when DEBUG is set.
func InitLogger(prefix string) {
	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  util.GetEnvBool("DEBUG", false),
		Prefix: prefix,
	}))
}

// NewAIClient creates the model client selected by AI_ADAPTER.
func NewAIClient(ctx context.Context) (ai.Client, error) {
	adapter := strings.ToLower(util.GetEnv("AI_ADAPTER"))
	if adapter == "" {
		adapter = AdapterGemini
	}
	model := util.GetEnv("AI_CHAT_MODEL")
	if model == "" {
		model = evaluation.DefaultModel
	}
	baseURL := util.GetEnv("AI_CHAT_URL")
	key := util.GetEnv("AI_CHAT_KEY")

	switch adapter {
	case AdapterGemini:
		client, err := gemini.NewGeminiClient(ctx, gemini.NewGeminiClientParams{
			Model:   model,
			APIKey:  key,
			BaseURL: baseURL,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	case AdapterOpenAI:
		return openai.NewOpenAIClient(openai.NewOpenAIClientParams{
			Model:   model,
			ChatURL: baseURL,
			ChatKey: key,
		}), nil
	case AdapterOllama:
		client, err := ollama.NewOllamaClient(ollama.NewOllamaClientParams{
			Model:                 model,
			BaseURL:               baseURL,
			ApiKey:                key,
			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 4)),
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	return nil, fmt.Errorf("unknown AI_ADAPTER %q", adapter)
}

// DefaultConfig is evaluation.DefaultConfig with the model taken from
// AI_CHAT_MODEL when set.
func DefaultConfig() evaluation.AIConfig {
	cfg := evaluation.DefaultConfig()
	if model := util.GetEnv("AI_CHAT_MODEL"); model != "" {
		cfg.Model = model
	}
	return cfg
}

// NewOrchestrator wires an orchestrator around client. client may be nil
// when only the external evaluator is used.
func NewOrchestrator(client ai.Client) *evaluation.Orchestrator {
	invoker := endpoint.NewInvoker(endpoint.NewInvokerParams{
		Timeout: util.GetEnvDuration("ENDPOINT_TIMEOUT", endpoint.DefaultTimeout),
	})
	dispatcher := evaluation.NewDispatcher(evaluation.NewDispatcherParams{
		Client:  client,
		Caller:  invoker,
		Timeout: util.GetEnvDuration("EVALUATOR_TIMEOUT", DefaultEvaluatorTimeout),
	})
	return evaluation.NewOrchestrator(evaluation.NewOrchestratorParams{
		Evaluator:   dispatcher,
		Segments:    invoker,
		HintWorkers: int(util.GetEnvNumeric("HINT_WORKERS", 1)),
	})
}

// LogMetrics reports and resets the token usage of client.
func LogMetrics(client ai.Client, scope string) {
	if client == nil {
		return
	}
	m := client.GetMetrics()
	logger.Info(
		scope+" AI metrics",
		"input_tokens", m.InputTokens,
		"output_tokens", m.OutputTokens,
		"total_tokens", m.TotalTokens,
		"duration", (time.Duration(m.DurationMs) * time.Millisecond).String(),
	)
	client.ResetMetrics()
}
