package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/OFFIS-RIT/segbench/internal/bootstrap"
	"github.com/OFFIS-RIT/segbench/internal/util"
	"github.com/OFFIS-RIT/segbench/pkg/ai"
	"github.com/OFFIS-RIT/segbench/pkg/common"
	"github.com/OFFIS-RIT/segbench/pkg/evaluation"
	"github.com/OFFIS-RIT/segbench/pkg/logger"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

type options struct {
	input  string
	config string
	out    string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Compare Traditional and MGeo segmentation of address lines",
		Long: `Evaluate every non-blank line of the input file with the configured
evaluator and write the export document.

Example config (cfg.yaml):
  granularityLevel: 24-level
  weights:
    recall: 40
    precision: 20
    accuracy: 20
    consistency: 20
  traditionalApi:
    enabled: true
    method: POST
    url: http://localhost:9000/segment
    bodyTemplate: '{"text": "{{text}}"}'
    responsePath: words`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "input file, one sample per line (- for stdin)")
	cmd.Flags().StringVarP(&opts.config, "config", "c", "", "YAML or JSON evaluation config")
	cmd.Flags().StringVarP(&opts.out, "out", "o", ".", "directory for the export file")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func run(cmd *cobra.Command, opts *options) error {
	util.LoadEnv()
	bootstrap.InitLogger("evaluate")

	raw, err := readInput(cmd.InOrStdin(), opts.input)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(opts.config)
	if err != nil {
		return err
	}

	var client ai.Client
	if !cfg.UsesExternalEvaluator() {
		client, err = bootstrap.NewAIClient(cmd.Context())
		if err != nil {
			return err
		}
	}

	data, err := bootstrap.NewOrchestrator(client).Run(cmd.Context(), raw, cfg)
	bootstrap.LogMetrics(client, "[Evaluate]")
	if err != nil {
		return err
	}
	if data == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "No input lines, nothing to evaluate.")
		return nil
	}

	printSummary(cmd.OutOrStdout(), data)

	path, err := writeExport(opts.out, data, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Export written to", path)
	return nil
}

func readInput(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(b), nil
}

// loadConfig merges the config file at path over the defaults. An empty
// path yields the defaults.
func loadConfig(path string) (evaluation.AIConfig, error) {
	cfg := bootstrap.DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	// decoded as JSON so absent fields keep their defaults like the HTTP API
	asJSON, err := yaml.YAMLToJSON(b)
	if err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := json.Unmarshal(asJSON, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config %s: %w", path, err)
	}
	if cfg.LevelDefinitions == nil {
		cfg.LevelDefinitions = map[evaluation.GranularityLevel][]evaluation.LevelDefinition{}
	}
	for level, defs := range evaluation.DefaultDefinitions() {
		if len(cfg.LevelDefinitions[level]) == 0 {
			cfg.LevelDefinitions[level] = defs
		}
	}
	logger.Debug("[Evaluate] config loaded", "path", path, "granularity", cfg.GranularityLevel)
	return cfg, nil
}

func printSummary(w io.Writer, data *common.BatchComparisonData) {
	for i, item := range data.Items {
		fmt.Fprintf(w, "%3d  %-40s  Traditional %5.1f  MGeo %5.1f\n",
			i+1, item.Input, item.TraditionalEval.OverallScore, item.MGeoEval.OverallScore)
	}
	s := data.Summary
	fmt.Fprintf(w, "\nItems: %d  Traditional avg: %.1f  MGeo avg: %.1f\n", s.TotalItems, s.TraditionalAvgScore, s.MGeoAvgScore)
	if s.KeyInsights != "" {
		fmt.Fprintln(w, s.KeyInsights)
	}
}

func writeExport(dir string, data *common.BatchComparisonData, t time.Time) (string, error) {
	body, err := evaluation.Export(data)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, evaluation.ExportFileName(t))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}
