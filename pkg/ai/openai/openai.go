package openai

import (
	"github.com/OFFIS-RIT/segbench/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

var _ ai.Client = (*OpenAIClient)(nil)

// OpenAIClient answers structured prompts with any OpenAI compatible chat
// completions API.
//
// An OpenAIClient should be created using NewOpenAIClient.
type OpenAIClient struct {
	ai.Metrics

	model   string
	chatURL string

	ChatClient *openai.Client
}

// NewOpenAIClientParams configures an OpenAIClient.
//
// ChatURL may be empty to talk to api.openai.com. ChatKey is required.
type NewOpenAIClientParams struct {
	Model   string
	ChatURL string
	ChatKey string
}

// NewOpenAIClient creates and returns a new OpenAIClient.
//
// Example:
//
//	client := openai.NewOpenAIClient(openai.NewOpenAIClientParams{
//		Model:   "gpt-4o-mini",
//		ChatKey: os.Getenv("AI_CHAT_KEY"),
//	})
func NewOpenAIClient(params NewOpenAIClientParams) *OpenAIClient {
	options := []option.RequestOption{
		option.WithAPIKey(params.ChatKey),
	}
	if params.ChatURL != "" {
		options = append(options, option.WithBaseURL(params.ChatURL))
	}
	client := openai.NewClient(options...)

	return &OpenAIClient{
		model:      params.Model,
		chatURL:    params.ChatURL,
		ChatClient: &client,
	}
}
