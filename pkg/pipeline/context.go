// Package pipeline implements the staged analysis orchestrator
// (spec.md §4.6): a topologically ordered sequence of phases over a
// single mutable AnalysisContext, each phase attempting deterministic
// detection first and falling back to the LLM only when the configured
// DetectionMode allows it.
//
// Grounded on the teacher's ContainerBuildOrchestrator/Builder pair
// (pkg/language, pkg/build), generalized from "pull → build → commit"
// steps over language strategies into "try-deterministic → fall back to
// LLM → write phase slot" over Phase implementations (DESIGN.md).
package pipeline

import (
	"github.com/containifyci/repostack/pkg/extractors"
	"github.com/containifyci/repostack/pkg/heuristiclog"
	"github.com/containifyci/repostack/pkg/llmchat"
	"github.com/containifyci/repostack/pkg/scanner"
	"github.com/containifyci/repostack/pkg/stack"
	"github.com/containifyci/repostack/pkg/wolfi"
)

// DetectionMode selects the execution policy for every phase.
type DetectionMode string

const (
	// ModeStaticOnly requires every phase to succeed deterministically;
	// insufficient evidence is a hard error.
	ModeStaticOnly DetectionMode = "static-only"
	// ModeLLMOnly skips deterministic detection entirely.
	ModeLLMOnly DetectionMode = "llm-only"
	// ModeFull tries deterministic detection first and falls back to the
	// LLM on insufficient evidence.
	ModeFull DetectionMode = "full"
)

// DetectionMethod records how a DependencyInfo was produced.
type DetectionMethod string

const (
	MethodDeterministic  DetectionMethod = "deterministic"
	MethodLLM            DetectionMethod = "llm"
	MethodNotImplemented DetectionMethod = "not-implemented"
)

// PackageInfo is one discovered package/service candidate: its name,
// its directory relative to the repo root ("" or "." for the root
// itself), and the manifest detection that found it.
type PackageInfo struct {
	Name  string
	Path  string
	Stack stack.DetectionStack
}

// WorkspaceStructure is the WorkspaceStructure phase's slot: the
// orchestrator config found (if any) and every package manifest claimed
// by the workspace.
type WorkspaceStructure struct {
	Orchestrator *stack.OrchestratorId
	Packages     []PackageInfo
}

// Structure is the Structure phase's slot: the project classification
// plus which packages are deployable services (as indices into
// Packages, per spec.md §9's no-pointers rule).
type Structure struct {
	ProjectType stack.ProjectType
	Packages    []PackageInfo
	Services    []int
}

// DependencyInfo is one package's resolved dependencies: internal deps
// as workspace-relative paths, external deps with optional versions.
type DependencyInfo struct {
	Internal []string
	External []stack.PackageRef
	Method   DetectionMethod
}

// Dependencies is the Dependencies phase's slot, indexed parallel to
// Structure.Packages.
type Dependencies struct {
	ByPackage []DependencyInfo
}

// BuildOrder is the BuildOrder phase's slot: package indices in
// topological order, plus cycle reporting (every SCC of size > 1).
type BuildOrder struct {
	Order    []int
	HasCycle bool
	SCCs     [][]int
}

// RuntimeInfo is the per-service Runtime sub-phase's slot.
type RuntimeInfo struct {
	BuildBaseImage   string
	RuntimeBaseImage string
	Confidence       stack.ConfidenceLabel
}

// ServiceAnalysis accumulates the per-service sub-phase slots
// (spec.md §4.6 row 6), written in order by the Services phase.
type ServiceAnalysis struct {
	Package    PackageInfo
	Runtime    RuntimeInfo
	BuildCmds  []string
	BuildPkgs  []string
	Entrypoint []string
	NativeDeps []string
	Ports      []extractors.PortInfo
	EnvVars    []extractors.EnvVarInfo
	Health     []extractors.HealthInfo
	CachePaths []string
	Reasoning  string
}

// RootCache is the RootCache phase's slot: cache directories shared
// across all services (a monorepo's root node_modules, the cargo
// registry).
type RootCache struct {
	Paths []string
}

// AnalysisContext is the pipeline-wide mutable state (spec.md §3):
// shared immutable inputs plus one output slot per phase, each written
// exactly once by its owning phase. Slot accessors return an
// UnsetSlotError when read before their phase ran.
type AnalysisContext struct {
	RepoPath string
	Registry *stack.Registry
	Wolfi    *wolfi.Index
	Log      heuristiclog.Interface
	Mode     DetectionMode
	LLM      llmchat.Client

	scan         *scanner.ScanResult
	workspace    *WorkspaceStructure
	structure    *Structure
	dependencies *Dependencies
	buildOrder   *BuildOrder
	services     []ServiceAnalysis
	rootCache    *RootCache
}

func (a *AnalysisContext) Scan() (*scanner.ScanResult, error) {
	if a.scan == nil {
		return nil, &UnsetSlotError{Slot: "scan"}
	}
	return a.scan, nil
}

func (a *AnalysisContext) Workspace() (*WorkspaceStructure, error) {
	if a.workspace == nil {
		return nil, &UnsetSlotError{Slot: "workspace"}
	}
	return a.workspace, nil
}

func (a *AnalysisContext) Structure() (*Structure, error) {
	if a.structure == nil {
		return nil, &UnsetSlotError{Slot: "structure"}
	}
	return a.structure, nil
}

func (a *AnalysisContext) Dependencies() (*Dependencies, error) {
	if a.dependencies == nil {
		return nil, &UnsetSlotError{Slot: "dependencies"}
	}
	return a.dependencies, nil
}

func (a *AnalysisContext) BuildOrder() (*BuildOrder, error) {
	if a.buildOrder == nil {
		return nil, &UnsetSlotError{Slot: "build_order"}
	}
	return a.buildOrder, nil
}

func (a *AnalysisContext) Services() ([]ServiceAnalysis, error) {
	if a.services == nil {
		return nil, &UnsetSlotError{Slot: "services"}
	}
	return a.services, nil
}

func (a *AnalysisContext) RootCache() (*RootCache, error) {
	if a.rootCache == nil {
		return nil, &UnsetSlotError{Slot: "root_cache"}
	}
	return a.rootCache, nil
}

// ServiceContext is the read-only per-service view later sub-phases
// query (spec.md §3): the shared AnalysisContext plus the index of the
// service being analyzed.
type ServiceContext struct {
	Analysis *AnalysisContext
	Index    int
	Package  PackageInfo
}

// ExtractorTarget builds the extractors' view of this service,
// resolving the language and framework definitions from the registry.
func (s ServiceContext) ExtractorTarget() extractors.Target {
	t := extractors.Target{
		RepoRoot:   s.Analysis.RepoPath,
		ServiceDir: s.Package.Path,
	}
	if lang, ok := s.Analysis.Registry.GetLanguage(s.Package.Stack.Language); ok {
		t.Language = lang
	}
	if s.Package.Stack.Framework != nil {
		if fw, ok := s.Analysis.Registry.GetFramework(*s.Package.Stack.Framework); ok {
			t.Framework = fw
		}
	}
	return t
}
