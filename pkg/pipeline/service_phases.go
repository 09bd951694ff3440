package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/containifyci/repostack/pkg/extractors"
	"github.com/containifyci/repostack/pkg/stack"
	"github.com/containifyci/repostack/pkg/stack/buildsystem"

	"golang.org/x/sync/errgroup"
)

// nativeDepHints maps well-known external dependency names to the Wolfi
// packages their native bindings need at build time.
var nativeDepHints = map[string][]string{
	"psycopg2":        {"postgresql-dev"},
	"psycopg2-binary": {"postgresql-dev"},
	"mysqlclient":     {"mariadb-connector-c-dev"},
	"pg":              {"postgresql-dev"},
	"sharp":           {"vips-dev"},
	"canvas":          {"cairo-dev", "pango-dev"},
	"bcrypt":          {"build-base"},
	"openssl-sys":     {"openssl-dev"},
	"libpq-sys":       {"postgresql-dev"},
	"rdkafka":         {"librdkafka-dev"},
	"grpcio":          {"build-base"},
	"lxml":            {"libxml2-dev", "libxslt-dev"},
	"pillow":          {"libjpeg-turbo-dev", "zlib-dev"},
}

// ServicesPhase runs the per-service sub-phase chain — Runtime, Build,
// Entrypoint, NativeDeps, Port, EnvVars, Health, Cache — for every
// deployable service. Services fan out concurrently with errgroup; each
// goroutine writes only its own index of the results slice, which keeps
// the single-writer-per-slot rule intact (spec.md §5).
type ServicesPhase struct{}

func (ServicesPhase) Name() string { return "services" }

func (p ServicesPhase) TryDeterministic(ctx context.Context, a *AnalysisContext) error {
	return p.run(ctx, a, false)
}

func (p ServicesPhase) ExecuteLLM(ctx context.Context, a *AnalysisContext) error {
	return p.run(ctx, a, true)
}

func (p ServicesPhase) run(ctx context.Context, a *AnalysisContext, llmAllowed bool) error {
	st, err := a.Structure()
	if err != nil {
		return err
	}

	results := make([]ServiceAnalysis, len(st.Services))
	g, gctx := errgroup.WithContext(ctx)
	for pos, idx := range st.Services {
		g.Go(func() error {
			svc := ServiceContext{Analysis: a, Index: idx, Package: st.Packages[idx]}
			analysis, err := analyzeService(gctx, svc, llmAllowed)
			if err != nil {
				return fmt.Errorf("service %s: %w", svc.Package.Name, err)
			}
			results[pos] = analysis
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	a.services = results
	return nil
}

// analyzeService runs the eight sub-phases in order for one service.
// The build template resolved up front feeds the Runtime, Build,
// Entrypoint, Port and Cache steps. Ports are extracted after the
// Entrypoint step, so the LLM entrypoint prompt never sees them.
func analyzeService(ctx context.Context, svc ServiceContext, llmAllowed bool) (ServiceAnalysis, error) {
	a := svc.Analysis
	out := ServiceAnalysis{Package: svc.Package}

	hasPackage := func(string) bool { return true }
	if a.Wolfi != nil {
		hasPackage = a.Wolfi.HasPackage
	}

	bs, hasBS := a.Registry.GetBuildSystem(svc.Package.Stack.BuildSystem)
	var tmpl stack.BuildTemplate
	if hasBS {
		tmpl = bs.DefaultBuildTemplate(hasPackage)
	}

	// Runtime
	out.Runtime = RuntimeInfo{
		BuildBaseImage:   tmpl.BuildBaseImage,
		RuntimeBaseImage: tmpl.RuntimeBaseImage,
		Confidence:       stack.ConfidenceHigh,
	}
	if out.Runtime.BuildBaseImage == "" {
		if !llmAllowed {
			return out, fmt.Errorf("%w: no build template for %s", ErrInsufficientEvidence, svc.Package.Stack.BuildSystem)
		}
		if err := llmRuntime(ctx, svc, &out); err != nil {
			return out, err
		}
	}

	// Build
	out.BuildCmds = tmpl.BuildCommands
	out.BuildPkgs = tmpl.BuildPackages
	if len(out.BuildCmds) == 0 {
		if !llmAllowed {
			return out, fmt.Errorf("%w: no build commands for %s", ErrInsufficientEvidence, svc.Package.Stack.BuildSystem)
		}
		if err := llmBuildCommands(ctx, svc, &out); err != nil {
			return out, err
		}
	}

	// Entrypoint
	entry, ok := deterministicEntrypoint(svc, tmpl)
	if ok {
		out.Entrypoint = entry
	} else {
		if !llmAllowed {
			return out, fmt.Errorf("%w: cannot derive entrypoint for %s", ErrInsufficientEvidence, svc.Package.Name)
		}
		if err := llmEntrypoint(ctx, svc, &out); err != nil {
			return out, err
		}
	}

	// NativeDeps, from the Dependencies phase's external refs.
	if deps, err := a.Dependencies(); err == nil {
		seen := map[string]struct{}{}
		for _, ref := range deps.ByPackage[svc.Index].External {
			for _, pkg := range nativeDepHints[strings.ToLower(ref.Name)] {
				if _, dup := seen[pkg]; dup || !hasPackage(pkg) {
					continue
				}
				seen[pkg] = struct{}{}
				out.NativeDeps = append(out.NativeDeps, pkg)
			}
		}
	}

	// Port, EnvVars, Health: deterministic extractors over the service
	// directory, with the framework default inside the extractor as the
	// last-resort rule and the template's common ports filling in when
	// the extractors find none. These steps have no LLM fallback.
	target := svc.ExtractorTarget()
	out.Ports = extractors.ExtractPorts(target)
	if len(out.Ports) == 0 {
		for _, p := range tmpl.CommonPorts {
			out.Ports = append(out.Ports, extractors.PortInfo{
				Port:       p,
				Source:     extractors.SourceFrameworkDefault,
				Confidence: extractors.ConfidenceFor(extractors.SourceFrameworkDefault),
			})
		}
	}
	out.EnvVars = extractors.ExtractEnvVars(target)
	out.Health = extractors.ExtractHealth(target)

	// Cache
	out.CachePaths = tmpl.CachePaths

	if out.Reasoning == "" {
		out.Reasoning = fmt.Sprintf("Detected %s via %s (manifest %s).",
			svc.Package.Stack.Language, svc.Package.Stack.BuildSystem, svc.Package.Stack.ManifestPath)
	}
	return out, nil
}

// deterministicEntrypoint derives the runtime command from the build
// template and the service manifest without asking the LLM.
func deterministicEntrypoint(svc ServiceContext, tmpl stack.BuildTemplate) ([]string, bool) {
	name := svc.Package.Name

	// A compiled-binary template names its artifact: the entrypoint is
	// the copied binary.
	for _, c := range tmpl.Copy {
		to := strings.ReplaceAll(c.To, "{{name}}", name)
		if strings.HasPrefix(to, "/usr/local/bin/") {
			return []string{to}, true
		}
	}

	// Node family: the start script or main file from package.json.
	if filepath.Base(svc.Package.Stack.ManifestPath) == "package.json" {
		content, err := os.ReadFile(filepath.Join(svc.Analysis.RepoPath, filepath.FromSlash(svc.Package.Stack.ManifestPath)))
		if err == nil {
			if p, err := buildsystem.ParsePackageJSON(content); err == nil {
				if start, ok := p.Scripts["start"]; ok && start != "" {
					return append([]string{"sh", "-c"}, start), true
				}
			}
		}
		return []string{"node", "server.js"}, fileExistsInService(svc, "server.js")
	}

	// Python: conventional module entry files.
	if svc.Package.Stack.Language.Equal(stack.Python) {
		for _, candidate := range []string{"app.py", "main.py", "server.py"} {
			if fileExistsInService(svc, candidate) {
				return []string{"python", candidate}, true
			}
		}
	}
	return nil, false
}

func fileExistsInService(svc ServiceContext, rel string) bool {
	path := filepath.Join(svc.Analysis.RepoPath, filepath.FromSlash(svc.Package.Path), rel)
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// --- per-service LLM sub-phases ---

// runtimeAnswer, buildAnswer and entrypointAnswer are the strict JSON
// shapes the per-service questions ask for. Each prompt asks for a
// confidence label; askJSON does not check that one is present.
type runtimeAnswer struct {
	BuildImage   string `json:"build_image"`
	RuntimeImage string `json:"runtime_image"`
	Confidence   string `json:"confidence"`
}

type buildAnswer struct {
	Commands   []string `json:"commands"`
	Confidence string   `json:"confidence"`
}

type entrypointAnswer struct {
	Command    []string `json:"command"`
	Confidence string   `json:"confidence"`
}

const serviceSystemPrompt = "You are a build-detection assistant. " +
	"Answer only in strict JSON with the exact keys requested, including a confidence of high, medium or low."

func servicePromptContext(svc ServiceContext) string {
	excerpt := ""
	if content, err := os.ReadFile(filepath.Join(svc.Analysis.RepoPath, filepath.FromSlash(svc.Package.Stack.ManifestPath))); err == nil {
		excerpt = capExcerpt(string(content), 3000)
	}
	tree := ""
	if scan, err := svc.Analysis.Scan(); err == nil {
		tree = treeSlice(scan.FileTree, 3, 100)
	}
	return fmt.Sprintf("Service %q (language %s, build system %s) at path %q.\nManifest %s:\n%s\nFile tree:\n%s",
		svc.Package.Name, svc.Package.Stack.Language, svc.Package.Stack.BuildSystem,
		svc.Package.Path, svc.Package.Stack.ManifestPath, excerpt, tree)
}

func llmRuntime(ctx context.Context, svc ServiceContext, out *ServiceAnalysis) error {
	var answer runtimeAnswer
	user := servicePromptContext(svc) +
		"\nWhich container base images should build and run this service? Respond with strict JSON: " +
		`{"build_image": "...", "runtime_image": "...", "confidence": "high"|"medium"|"low"}`
	if err := askJSON(ctx, svc.Analysis.LLM, serviceSystemPrompt, user, &answer); err != nil {
		return err
	}
	out.Runtime = RuntimeInfo{
		BuildBaseImage:   answer.BuildImage,
		RuntimeBaseImage: answer.RuntimeImage,
		Confidence:       stack.ConfidenceLabel(answer.Confidence),
	}
	return nil
}

func llmBuildCommands(ctx context.Context, svc ServiceContext, out *ServiceAnalysis) error {
	var answer buildAnswer
	user := servicePromptContext(svc) +
		"\nWhich commands compile this service? Respond with strict JSON: " +
		`{"commands": ["...", ...], "confidence": "high"|"medium"|"low"}`
	if err := askJSON(ctx, svc.Analysis.LLM, serviceSystemPrompt, user, &answer); err != nil {
		return err
	}
	out.BuildCmds = answer.Commands
	return nil
}

func llmEntrypoint(ctx context.Context, svc ServiceContext, out *ServiceAnalysis) error {
	var answer entrypointAnswer
	hints := ""
	if len(out.Ports) > 0 {
		hints = fmt.Sprintf("\nAlready-discovered ports: %v.", out.Ports)
	}
	user := servicePromptContext(svc) + hints +
		"\nWhat command starts this service in its runtime container? Respond with strict JSON: " +
		`{"command": ["...", ...], "confidence": "high"|"medium"|"low"}`
	if err := askJSON(ctx, svc.Analysis.LLM, serviceSystemPrompt, user, &answer); err != nil {
		return err
	}
	if len(answer.Command) == 0 {
		return fmt.Errorf("LLM returned an empty entrypoint command")
	}
	out.Entrypoint = answer.Command
	return nil
}
