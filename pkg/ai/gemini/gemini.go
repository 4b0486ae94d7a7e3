package gemini

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/OFFIS-RIT/segbench/pkg/ai"

	"github.com/invopop/jsonschema"
	"google.golang.org/genai"
)

var _ ai.Client = (*GeminiClient)(nil)

// GeminiClient answers structured prompts with the Google Gemini API.
//
// A GeminiClient should be created using NewGeminiClient.
type GeminiClient struct {
	ai.Metrics

	model string

	Client *genai.Client
}

// NewGeminiClientParams configures a GeminiClient.
//
// Model is used when a request does not name one. BaseURL overrides the
// API endpoint, which is mostly useful for proxies and tests.
type NewGeminiClientParams struct {
	Model   string
	APIKey  string
	BaseURL string
}

// NewGeminiClient creates a client for the Gemini developer API.
func NewGeminiClient(ctx context.Context, params NewGeminiClientParams) (*GeminiClient, error) {
	cfg := &genai.ClientConfig{
		APIKey:  params.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if params.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: params.BaseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiClient{
		model:  params.Model,
		Client: client,
	}, nil
}

// GenerateCompletionWithSchema sends prompt with the system prompts as
// system instruction and asks for application/json constrained by schema.
// It returns the concatenated text of the first candidate.
func (c *GeminiClient) GenerateCompletionWithSchema(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	schema *jsonschema.Schema,
	opts ...ai.GenerateOption,
) (string, error) {
	options := ai.ApplyOptions(ai.GenerateOptions{
		Model:       c.model,
		Temperature: 0.2,
	}, opts...)

	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(options.Temperature)),
		ResponseMIMEType: "application/json",
		ResponseSchema:   ConvertSchema(schema),
	}
	if cfg.ResponseSchema != nil && cfg.ResponseSchema.Description == "" {
		cfg.ResponseSchema.Description = description
	}

	if len(options.SystemPrompts) > 0 {
		parts := make([]*genai.Part, 0, len(options.SystemPrompts))
		for _, sp := range options.SystemPrompts {
			parts = append(parts, genai.NewPartFromText(sp))
		}
		cfg.SystemInstruction = genai.NewContentFromParts(parts, genai.RoleUser)
	}

	if budget, err := strconv.Atoi(options.Thinking); err == nil {
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(int32(budget))}
	}

	start := time.Now()
	resp, err := c.Client.Models.GenerateContent(ctx, options.Model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini %s: %w", name, err)
	}
	duration := time.Since(start).Milliseconds()

	if resp.UsageMetadata != nil {
		c.AddMetrics(ai.ModelMetrics{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int(resp.UsageMetadata.TotalTokenCount),
			DurationMs:   duration,
		})
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response from model")
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w (finish_reason: %s)", ai.ErrEmptyResponse, resp.Candidates[0].FinishReason)
	}
	return text, nil
}

// ConvertSchema translates a reflected JSON schema into the OpenAPI subset
// Gemini accepts. Properties keep their declaration order and properties
// that are not required become nullable.
func ConvertSchema(schema *jsonschema.Schema) *genai.Schema {
	if schema == nil {
		return nil
	}

	gs := &genai.Schema{
		Description: schema.Description,
		Format:      schema.Format,
		Items:       ConvertSchema(schema.Items),
		Required:    schema.Required,
	}

	switch schema.Type {
	case "object":
		gs.Type = genai.TypeObject
	case "array":
		gs.Type = genai.TypeArray
	case "string":
		gs.Type = genai.TypeString
	case "number":
		gs.Type = genai.TypeNumber
	case "integer":
		gs.Type = genai.TypeInteger
	case "boolean":
		gs.Type = genai.TypeBoolean
	}

	for _, v := range schema.Enum {
		gs.Enum = append(gs.Enum, fmt.Sprintf("%v", v))
	}
	if v, err := schema.Minimum.Float64(); err == nil && schema.Minimum != "" {
		gs.Minimum = genai.Ptr(v)
	}
	if v, err := schema.Maximum.Float64(); err == nil && schema.Maximum != "" {
		gs.Maximum = genai.Ptr(v)
	}

	if schema.Properties != nil && schema.Properties.Len() > 0 {
		required := make(map[string]struct{}, len(schema.Required))
		for _, r := range schema.Required {
			required[r] = struct{}{}
		}

		gs.Properties = make(map[string]*genai.Schema, schema.Properties.Len())
		for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
			prop := ConvertSchema(pair.Value)
			if _, ok := required[pair.Key]; !ok {
				prop.Nullable = genai.Ptr(true)
			}
			gs.Properties[pair.Key] = prop
			gs.PropertyOrdering = append(gs.PropertyOrdering, pair.Key)
		}
	}

	return gs
}
