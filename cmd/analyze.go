package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/containifyci/repostack/pkg/catalog"
	"github.com/containifyci/repostack/pkg/config"
	"github.com/containifyci/repostack/pkg/heuristiclog"
	"github.com/containifyci/repostack/pkg/llmchat"
	"github.com/containifyci/repostack/pkg/llmreplay"
	"github.com/containifyci/repostack/pkg/pipeline"
	"github.com/containifyci/repostack/pkg/scanner"
	"github.com/containifyci/repostack/pkg/stack"
	"github.com/containifyci/repostack/pkg/ubuild"
	"github.com/containifyci/repostack/pkg/wolfi"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type analyzeCmdArgs struct {
	ConfigFile    string
	Mode          string
	Output        string
	MaxIterations int
	SkipWolfi     bool
	Watch         bool
}

var analyzeArgs = &analyzeCmdArgs{}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [path]",
	Short: "Analyze a repository and emit its UniversalBuild specs",
	Long: `analyze scans the repository at the given path (default: the current
directory), runs the detection pipeline and prints one UniversalBuild per
deployable service it finds.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeArgs.ConfigFile, "config", "", "Path to a pipeline config file (YAML)")
	analyzeCmd.Flags().StringVar(&analyzeArgs.Mode, "mode", "full", "Detection mode: full, static-only, llm-only")
	analyzeCmd.Flags().StringVarP(&analyzeArgs.Output, "output", "o", "json", "Output format: json, yaml")
	analyzeCmd.Flags().IntVar(&analyzeArgs.MaxIterations, "max-iterations", pipeline.DefaultMaxIterations, "Tool-calling loop iteration bound")
	analyzeCmd.Flags().BoolVar(&analyzeArgs.SkipWolfi, "skip-wolfi", false, "Skip the Wolfi package-index fetch (package validation is then skipped)")
	analyzeCmd.Flags().BoolVarP(&analyzeArgs.Watch, "watch", "w", false, "Re-run the analysis whenever a detected manifest changes")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	repoPath := "."
	if len(args) == 1 {
		repoPath = args[0]
	}

	cfg, err := config.Load(analyzeArgs.ConfigFile)
	if err != nil {
		return err
	}

	mode, err := parseMode(analyzeArgs.Mode)
	if err != nil {
		return err
	}

	hlog, err := heuristiclog.NewProduction()
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	var index *wolfi.Index
	if !analyzeArgs.SkipWolfi && cfg.Cache.Enabled {
		index, err = wolfi.Fetch(ctx, wolfi.NewHTTPFetcher(""), wolfi.Cache{Dir: cfg.Cache.Dir})
		if err != nil {
			return fmt.Errorf("fetching Wolfi package index: %w", err)
		}
	}

	llm, err := buildLLMClient(cfg)
	if err != nil {
		return err
	}

	registry := catalog.NewDefaultRegistry(registryExtras(llm, mode)...)
	orchestrator := pipeline.NewAnalysisOrchestrator(registry, index, llm, hlog)
	opts := pipeline.Options{
		RepoPath:      repoPath,
		Mode:          mode,
		MaxIterations: analyzeArgs.MaxIterations,
	}

	if analyzeArgs.Watch {
		return runAnalyzeWatch(cmd, orchestrator, registry, hlog, opts)
	}

	builds, err := orchestrator.Run(ctx, opts)
	if err != nil {
		return err
	}

	slog.Info("analysis complete", "services", len(builds))
	return writeBuilds(cmd.OutOrStdout(), builds, analyzeArgs.Output)
}

// runAnalyzeWatch re-runs the full analysis whenever the scanner's
// watcher reports a manifest change; the watcher's own ScanResult is
// only the trigger, each run re-scans through the normal Scan phase.
func runAnalyzeWatch(cmd *cobra.Command, orchestrator *pipeline.AnalysisOrchestrator, registry *stack.Registry, hlog heuristiclog.Interface, opts pipeline.Options) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := scanner.New(registry, scanner.Options{}, hlog).Watch(ctx, opts.RepoPath)
	if err != nil {
		return err
	}
	for range watcher.Results() {
		builds, err := orchestrator.Run(ctx, opts)
		if err != nil {
			slog.Warn("analysis failed, watching for the next change", "error", err)
			continue
		}
		slog.Info("analysis complete", "services", len(builds))
		if err := writeBuilds(cmd.OutOrStdout(), builds, analyzeArgs.Output); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func parseMode(raw string) (pipeline.DetectionMode, error) {
	switch raw {
	case "full", "":
		return pipeline.ModeFull, nil
	case "static-only", "static":
		return pipeline.ModeStaticOnly, nil
	case "llm-only", "llm":
		return pipeline.ModeLLMOnly, nil
	default:
		return "", fmt.Errorf("unknown detection mode %q (expected full, static-only or llm-only)", raw)
	}
}

// buildLLMClient assembles selector + record/replay wrapper from config.
func buildLLMClient(cfg *config.Config) (llmchat.Client, error) {
	selector := llmchat.NewSelector(llmchat.SelectionConfig{
		Provider:       cfg.LLM.Provider,
		Model:          cfg.LLM.Model,
		OllamaHost:     cfg.LLM.OllamaHost,
		OpenAIAPIKey:   cfg.LLM.OpenAIAPIKey,
		GroqAPIKey:     cfg.LLM.GroqAPIKey,
		RequestTimeout: cfg.LLM.RequestTimeout,
	})
	lazy := llmchat.ClientFunc(func(ctx context.Context, req llmchat.ChatRequest) (llmchat.ChatResponse, error) {
		return selector.Select(ctx).Chat(ctx, req)
	})
	return llmreplay.New(llmreplay.Mode(cfg.Recording.Mode), lazy, cfg.Recording.Dir)
}

// registryExtras adds the LLM fallback build system unless the run is
// static-only, where the registry must stay fully deterministic.
func registryExtras(llm llmchat.Client, mode pipeline.DetectionMode) []stack.Option {
	if mode == pipeline.ModeStaticOnly || llm == nil {
		return nil
	}
	fallback := stack.NewLLMBuildSystemFallback(&llmchat.StackClassifier{Client: llm})
	return []stack.Option{stack.WithBuildSystem(fallback)}
}

func writeBuilds(out io.Writer, builds []ubuild.UniversalBuild, format string) error {
	switch format {
	case "yaml":
		data, err := yaml.Marshal(builds)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	case "json", "":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(builds)
	default:
		return fmt.Errorf("unknown output format %q (expected json or yaml)", format)
	}
}
