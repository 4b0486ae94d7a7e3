package evaluation

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/OFFIS-RIT/segbench/pkg/endpoint"
)

// GranularityLevel selects the active dictionary.
type GranularityLevel string

const (
	Granularity18Level GranularityLevel = "18-level"
	Granularity24Level GranularityLevel = "24-level"
	GranularityCustom  GranularityLevel = "custom"
)

// EvaluatorType selects who scores a batch. EvaluatorGemini means the
// configured model client, whichever provider backs it.
type EvaluatorType string

const (
	EvaluatorGemini   EvaluatorType = "gemini"
	EvaluatorExternal EvaluatorType = "external"
)

// Endpoint names, as used in AIConfig and in log output.
const (
	EndpointTraditional = "traditionalApi"
	EndpointMGeo        = "mgeoApi"
	EndpointEvaluator   = "evaluatorApi"
)

const DefaultModel = "gemini-3-flash-preview"

// EvaluationWeights are the rubric percentages. They must sum to 100.
type EvaluationWeights struct {
	Recall      int `json:"recall" yaml:"recall"`
	Precision   int `json:"precision" yaml:"precision"`
	Accuracy    int `json:"accuracy" yaml:"accuracy"`
	Consistency int `json:"consistency" yaml:"consistency"`
}

// Total returns the sum of all four weights.
func (w EvaluationWeights) Total() int {
	return w.Recall + w.Precision + w.Accuracy + w.Consistency
}

// AIConfig is the configuration of one evaluation run. It is treated as an
// immutable value: the With* helpers return modified copies and never touch
// the receiver's dictionaries.
type AIConfig struct {
	Model            string                                 `json:"model" yaml:"model"`
	Temperature      float64                                `json:"temperature" yaml:"temperature"`
	EvaluatorType    EvaluatorType                          `json:"evaluatorType" yaml:"evaluatorType"`
	EvaluatorAPI     endpoint.Config                        `json:"evaluatorApi" yaml:"evaluatorApi"`
	Weights          EvaluationWeights                      `json:"weights" yaml:"weights"`
	GranularityLevel GranularityLevel                       `json:"granularityLevel" yaml:"granularityLevel"`
	LevelDefinitions map[GranularityLevel][]LevelDefinition `json:"levelDefinitions" yaml:"levelDefinitions"`
	TraditionalAPI   endpoint.Config                        `json:"traditionalApi" yaml:"traditionalApi"`
	MGeoAPI          endpoint.Config                        `json:"mgeoApi" yaml:"mgeoApi"`
}

// DefaultSegmentationEndpoint is the initial, disabled, segmentation endpoint.
func DefaultSegmentationEndpoint() endpoint.Config {
	return endpoint.Config{
		Method:       http.MethodPost,
		Headers:      "{\n  \"Content-Type\": \"application/json\"\n}",
		BodyTemplate: "{\n  \"text\": \"{{text}}\"\n}",
		ResponsePath: "words",
	}
}

// DefaultEvaluatorEndpoint is the initial, disabled, evaluator endpoint.
func DefaultEvaluatorEndpoint() endpoint.Config {
	return endpoint.Config{
		Method:       http.MethodPost,
		Headers:      "{\n  \"Content-Type\": \"application/json\"\n}",
		BodyTemplate: "{\n  \"payload\": \"{{payload}}\"\n}",
		ResponsePath: "data",
	}
}

// DefaultConfig returns the configuration a fresh session starts with.
func DefaultConfig() AIConfig {
	return AIConfig{
		Model:         DefaultModel,
		Temperature:   0.2,
		EvaluatorType: EvaluatorGemini,
		EvaluatorAPI:  DefaultEvaluatorEndpoint(),
		Weights: EvaluationWeights{
			Recall:      30,
			Precision:   30,
			Accuracy:    20,
			Consistency: 20,
		},
		GranularityLevel: Granularity18Level,
		LevelDefinitions: DefaultDefinitions(),
		TraditionalAPI:   DefaultSegmentationEndpoint(),
		MGeoAPI:          DefaultSegmentationEndpoint(),
	}
}

// Clone returns a deep copy of c.
func (c AIConfig) Clone() AIConfig {
	defs := make(map[GranularityLevel][]LevelDefinition, len(c.LevelDefinitions))
	for k, v := range c.LevelDefinitions {
		defs[k] = slices.Clone(v)
	}
	c.LevelDefinitions = defs
	return c
}

// ActiveDefinitions returns the dictionary selected by GranularityLevel.
// The slice must not be modified.
func (c AIConfig) ActiveDefinitions() []LevelDefinition {
	return c.LevelDefinitions[c.GranularityLevel]
}

// WithWeights returns a copy of c using w.
func (c AIConfig) WithWeights(w EvaluationWeights) AIConfig {
	c = c.Clone()
	c.Weights = w
	return c
}

// WithGranularity returns a copy of c with level as active dictionary.
func (c AIConfig) WithGranularity(level GranularityLevel) AIConfig {
	c = c.Clone()
	c.GranularityLevel = level
	return c
}

// WithDefinitions returns a copy of c with the dictionary for level replaced.
func (c AIConfig) WithDefinitions(level GranularityLevel, defs []LevelDefinition) AIConfig {
	c = c.Clone()
	c.LevelDefinitions[level] = slices.Clone(defs)
	return c
}

// WithEndpoint returns a copy of c with the named endpoint replaced. name
// is one of EndpointTraditional, EndpointMGeo or EndpointEvaluator.
func (c AIConfig) WithEndpoint(name string, cfg endpoint.Config) (AIConfig, error) {
	c = c.Clone()
	switch name {
	case EndpointTraditional:
		c.TraditionalAPI = cfg
	case EndpointMGeo:
		c.MGeoAPI = cfg
	case EndpointEvaluator:
		c.EvaluatorAPI = cfg
	default:
		return c, newError(ErrConfiguration, "set endpoint", fmt.Errorf("unknown endpoint %q", name))
	}
	return c, nil
}

// UsesExternalEvaluator reports whether the evaluator endpoint scores the
// batch. An external evaluator type with a disabled endpoint falls back to
// the model. An enabled endpoint without a URL still selects the external
// path, where the call fails as unavailable.
func (c AIConfig) UsesExternalEvaluator() bool {
	return c.EvaluatorType == EvaluatorExternal && c.EvaluatorAPI.Enabled
}

// Validate checks the configuration before a run. All problems are
// reported together as one ErrConfiguration error.
func (c AIConfig) Validate() error {
	var problems []error

	if total := c.Weights.Total(); total != 100 {
		problems = append(problems, fmt.Errorf("weights sum to %d, expected 100", total))
	}
	for _, w := range []struct {
		name  string
		value int
	}{
		{"recall", c.Weights.Recall},
		{"precision", c.Weights.Precision},
		{"accuracy", c.Weights.Accuracy},
		{"consistency", c.Weights.Consistency},
	} {
		if w.value < 0 || w.value > 100 {
			problems = append(problems, fmt.Errorf("weight %s=%d outside [0,100]", w.name, w.value))
		}
	}

	switch c.GranularityLevel {
	case Granularity18Level, Granularity24Level, GranularityCustom:
	default:
		problems = append(problems, fmt.Errorf("unknown granularity level %q", c.GranularityLevel))
	}

	switch c.EvaluatorType {
	case EvaluatorGemini, EvaluatorExternal:
	default:
		problems = append(problems, fmt.Errorf("unknown evaluator type %q", c.EvaluatorType))
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		problems = append(problems, fmt.Errorf("temperature %.2f outside [0,2]", c.Temperature))
	}

	for _, ep := range []struct {
		name string
		cfg  endpoint.Config
	}{
		{EndpointTraditional, c.TraditionalAPI},
		{EndpointMGeo, c.MGeoAPI},
		{EndpointEvaluator, c.EvaluatorAPI},
	} {
		if !ep.cfg.Active() {
			continue
		}
		switch strings.ToUpper(ep.cfg.Method) {
		case http.MethodGet, http.MethodPost:
		default:
			problems = append(problems, fmt.Errorf("%s: method %q is not GET or POST", ep.name, ep.cfg.Method))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return newError(ErrConfiguration, "validate config", errors.Join(problems...))
}

// Warnings reports suspicious but legal configuration: duplicate level ids
// and an empty active dictionary.
func (c AIConfig) Warnings() []string {
	var warnings []string

	levels := slices.Sorted(maps.Keys(c.LevelDefinitions))
	for _, level := range levels {
		seen := make(map[string]int)
		for i, def := range c.LevelDefinitions[level] {
			if first, ok := seen[def.ID]; ok {
				warnings = append(warnings, fmt.Sprintf("%s: level id %q used by rows %d and %d", level, def.ID, first+1, i+1))
				continue
			}
			seen[def.ID] = i
		}
	}

	if len(c.ActiveDefinitions()) == 0 {
		warnings = append(warnings, fmt.Sprintf("%s: active dictionary is empty", c.GranularityLevel))
	}
	return warnings
}
