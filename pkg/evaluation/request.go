package evaluation

import (
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/segbench/pkg/ai"
	"github.com/OFFIS-RIT/segbench/pkg/common"

	"github.com/invopop/jsonschema"
)

// Schema names sent along with the request.
const (
	SchemaName        = "batch_comparison"
	SchemaDescription = "Traditional vs MGeo segmentation comparison with weighted evaluation reports"
)

// EvaluationRequest is everything an evaluator needs to score a batch.
type EvaluationRequest struct {
	Instruction string
	Prompt      string
	Schema      *jsonschema.Schema
}

// BuildRequest renders the instruction, prompt and output schema for
// lines. hints may be nil. The result only depends on its arguments.
func BuildRequest(lines []string, cfg AIConfig, hints []common.ExternalSegmentation) EvaluationRequest {
	w := cfg.Weights
	instruction := fmt.Sprintf(evaluationInstruction,
		cfg.GranularityLevel,
		formatDictionary(cfg.ActiveDefinitions()),
		formatHints(hints),
		w.Recall, w.Precision, w.Accuracy, w.Consistency,
	)

	return EvaluationRequest{
		Instruction: strings.TrimSpace(instruction),
		Prompt:      strings.TrimSpace(fmt.Sprintf(evaluationPrompt, formatLines(lines))),
		Schema:      ai.GenerateSchema(&common.BatchComparisonData{}),
	}
}

func formatDictionary(defs []LevelDefinition) string {
	if len(defs) == 0 {
		return emptyDictionary
	}
	var b strings.Builder
	for i, d := range defs {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. [%s] %s (%s) | POS: %s | 示例: %s | 说明: %s",
			i+1, d.ID, d.Name, d.Alias, d.Pos, d.Example, d.Description)
	}
	return b.String()
}

func formatHints(hints []common.ExternalSegmentation) string {
	if len(hints) == 0 {
		return ""
	}
	var b strings.Builder
	for i, h := range hints {
		fmt.Fprintf(&b, externalSample, i+1,
			formatHint(h.TraditionalWords, h.TraditionalDetailed),
			formatHint(h.MGeoWords, h.MGeoDetailed),
		)
	}
	return fmt.Sprintf(externalContext, b.String())
}

func formatHint(words []string, detailed []common.DetailedWord) string {
	if detailed != nil {
		if len(detailed) == 0 {
			return hintEmpty
		}
		parts := make([]string, len(detailed))
		for i, d := range detailed {
			if d.LevelID == "" {
				parts[i] = d.Text
				continue
			}
			parts[i] = d.Text + "^" + d.LevelID
		}
		return strings.Join(parts, " | ")
	}
	if words == nil {
		return hintMissing
	}
	if len(words) == 0 {
		return hintEmpty
	}
	return strings.Join(words, " | ")
}

func formatLines(lines []string) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = fmt.Sprintf("文本 %d: %q", i+1, l)
	}
	return strings.Join(parts, "\n")
}
