package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/containifyci/repostack/pkg/heuristiclog"
	"github.com/containifyci/repostack/pkg/llmchat"
	"github.com/containifyci/repostack/pkg/scanner"
	"github.com/containifyci/repostack/pkg/stack"
	"github.com/containifyci/repostack/pkg/tools"
	"github.com/containifyci/repostack/pkg/ubuild"
	"github.com/containifyci/repostack/pkg/wolfi"

	"go.uber.org/zap"
)

// Options configures one analysis run.
type Options struct {
	RepoPath      string
	Mode          DetectionMode
	Scan          scanner.Options
	MaxIterations int
}

// AnalysisOrchestrator drives the phase sequence over one
// AnalysisContext per Run invocation. Shared inputs (registry, Wolfi
// index, LLM client) are immutable after construction and reused across
// runs; the AnalysisContext is owned by a single Run and dropped when
// its UniversalBuilds are returned.
type AnalysisOrchestrator struct {
	registry *stack.Registry
	index    *wolfi.Index
	llm      llmchat.Client
	log      heuristiclog.Interface
}

func NewAnalysisOrchestrator(registry *stack.Registry, index *wolfi.Index, llm llmchat.Client, log heuristiclog.Interface) *AnalysisOrchestrator {
	if log == nil {
		log = heuristiclog.Noop()
	}
	return &AnalysisOrchestrator{registry: registry, index: index, llm: llm, log: log.WithComponent("pipeline")}
}

// Run executes the full phase list (spec.md §4.6) and returns one
// validated UniversalBuild per deployable service.
//
// In LLMOnly mode the repository is handed to the main tool-calling
// loop instead of the deterministic phase chain: the model explores the
// repo through the Tool System and submits a single UniversalBuild.
func (o *AnalysisOrchestrator) Run(ctx context.Context, opts Options) ([]ubuild.UniversalBuild, error) {
	if opts.Mode == "" {
		opts.Mode = ModeFull
	}

	exec, err := tools.NewExecutor(opts.RepoPath, o.registry, o.index, o.log)
	if err != nil {
		return nil, err
	}

	if opts.Mode == ModeLLMOnly {
		if o.llm == nil {
			return nil, fmt.Errorf("llm-only mode requires an LLM client")
		}
		build, err := RunDetectionLoop(ctx, o.llm, exec, opts.MaxIterations)
		if err != nil {
			return nil, &PhaseError{Phase: "detection-loop", Err: err}
		}
		return []ubuild.UniversalBuild{build}, nil
	}

	a := &AnalysisContext{
		RepoPath: opts.RepoPath,
		Registry: o.registry,
		Wolfi:    o.index,
		Log:      o.log,
		Mode:     opts.Mode,
		LLM:      o.llm,
	}

	var builds []ubuild.UniversalBuild
	phases := []Phase{
		ScanPhase{Options: opts.Scan},
		WorkspacePhase{},
		StructurePhase{},
		DependenciesPhase{},
		BuildOrderPhase{},
		ServicesPhase{},
		RootCachePhase{},
		AssemblePhase{Builds: &builds},
	}

	for _, p := range phases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := runPhase(ctx, a, p); err != nil {
			// A repository no deterministic detector recognizes at all is
			// the main tool-calling loop's job: hand the whole repo to
			// the LLM instead of failing the analysis.
			if opts.Mode == ModeFull && o.llm != nil && errors.Is(err, ErrInsufficientEvidence) {
				o.log.Info("no deterministic detection, falling back to whole-repo tool loop",
					zap.String("phase", p.Name()))
				build, loopErr := RunDetectionLoop(ctx, o.llm, exec, opts.MaxIterations)
				if loopErr != nil {
					return nil, &PhaseError{Phase: "detection-loop", Err: loopErr}
				}
				return []ubuild.UniversalBuild{build}, nil
			}
			return nil, err
		}
	}
	return builds, nil
}
