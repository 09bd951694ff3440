package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/containifyci/repostack/pkg/stack"
	"github.com/containifyci/repostack/pkg/ubuild"
	"github.com/containifyci/repostack/pkg/validator"
)

// AssemblePhase folds every earlier slot into one UniversalBuild per
// deployable service and certifies each with the Validator before the
// pipeline returns. Mechanical: assembly is bookkeeping over already-
// detected facts.
type AssemblePhase struct {
	// Builds receives the final artifacts; the orchestrator owns the
	// pointer so the phase stays a Phase.
	Builds *[]ubuild.UniversalBuild
}

func (AssemblePhase) Name() string { return "assemble" }

func (p AssemblePhase) TryDeterministic(ctx context.Context, a *AnalysisContext) error {
	services, err := a.Services()
	if err != nil {
		return err
	}
	rootCache, err := a.RootCache()
	if err != nil {
		return err
	}

	builds := make([]ubuild.UniversalBuild, 0, len(services))
	var failures []string
	for _, svc := range services {
		build := assembleOne(a, svc, rootCache)
		if result := validator.Validate(build, a.Wolfi); !result.OK() {
			failures = append(failures, fmt.Sprintf("service %s: %v", svc.Package.Name, result.Error()))
			continue
		}
		builds = append(builds, build)
	}
	if len(failures) > 0 {
		return fmt.Errorf("assembled builds failed validation:\n%s", strings.Join(failures, "\n"))
	}
	if len(builds) == 0 {
		return fmt.Errorf("no deployable service produced a valid UniversalBuild")
	}
	*p.Builds = builds
	return nil
}

func (p AssemblePhase) ExecuteLLM(ctx context.Context, a *AnalysisContext) error {
	return p.TryDeterministic(ctx, a)
}

func assembleOne(a *AnalysisContext, svc ServiceAnalysis, rootCache *RootCache) ubuild.UniversalBuild {
	name := svc.Package.Name
	sub := func(s string) string { return strings.ReplaceAll(s, "{{name}}", name) }
	subAll := func(in []string) []string {
		out := make([]string, 0, len(in))
		for _, s := range in {
			out = append(out, sub(s))
		}
		return out
	}

	framework := ""
	if svc.Package.Stack.Framework != nil {
		framework = svc.Package.Stack.Framework.String()
	}

	cache := map[string]struct{}{}
	var cachePaths []string
	for _, p := range append(append([]string{}, svc.CachePaths...), rootCache.Paths...) {
		if _, dup := cache[p]; dup {
			continue
		}
		cache[p] = struct{}{}
		cachePaths = append(cachePaths, p)
	}

	var ports []int
	for _, p := range svc.Ports {
		ports = append(ports, p.Port)
	}

	env := map[string]string{}
	for _, v := range svc.EnvVars {
		env[v.Name] = v.Default
	}
	if len(env) == 0 {
		env = nil
	}

	var health *ubuild.Healthcheck
	if len(svc.Health) > 0 && len(ports) > 0 {
		health = &ubuild.Healthcheck{
			Test:     []string{"CMD", "curl", "-f", fmt.Sprintf("http://localhost:%d%s", ports[0], svc.Health[0].Path)},
			Interval: "30s",
			Timeout:  "3s",
			Retries:  3,
		}
	}

	copySpecs := templateCopy(a, svc, sub)

	return ubuild.UniversalBuild{
		Version: "1.0",
		Metadata: ubuild.Metadata{
			ProjectName: name,
			Language:    svc.Package.Stack.Language.String(),
			BuildSystem: svc.Package.Stack.BuildSystem.String(),
			Framework:   framework,
			Confidence:  svc.Package.Stack.Confidence.Float64(),
			Reasoning:   svc.Reasoning,
		},
		Build: ubuild.Build{
			Base:      svc.Runtime.BuildBaseImage,
			Packages:  svc.BuildPkgs,
			Commands:  subAll(svc.BuildCmds),
			Context:   buildContext(svc),
			Cache:     cachePaths,
			Artifacts: subAll(artifactsOf(a, svc)),
		},
		Runtime: ubuild.Runtime{
			Base:        svc.Runtime.RuntimeBaseImage,
			Packages:    svc.NativeDeps,
			Env:         env,
			Copy:        copySpecs,
			Command:     subAll(svc.Entrypoint),
			Ports:       ports,
			Healthcheck: health,
		},
	}
}

// buildContext is the build-stage input paths: the service directory,
// or the whole repo for a root-level service.
func buildContext(svc ServiceAnalysis) []string {
	if svc.Package.Path == "" {
		return []string{"."}
	}
	return []string{svc.Package.Path}
}

// artifactsOf falls back to the whole build context when the template
// names no explicit artifact list.
func artifactsOf(a *AnalysisContext, svc ServiceAnalysis) []string {
	if tmpl, ok := templateOf(a, svc); ok && len(tmpl.Artifacts) > 0 {
		return tmpl.Artifacts
	}
	return []string{"."}
}

func templateCopy(a *AnalysisContext, svc ServiceAnalysis, sub func(string) string) []ubuild.CopySpec {
	tmpl, ok := templateOf(a, svc)
	if !ok || len(tmpl.Copy) == 0 {
		return []ubuild.CopySpec{{From: ".", To: "/app"}}
	}
	out := make([]ubuild.CopySpec, 0, len(tmpl.Copy))
	for _, c := range tmpl.Copy {
		out = append(out, ubuild.CopySpec{From: sub(c.From), To: sub(c.To)})
	}
	return out
}

// templateOf re-resolves the service's build template. The registry is
// immutable and template construction is cheap, so re-deriving beats
// threading the template through every slot.
func templateOf(a *AnalysisContext, svc ServiceAnalysis) (stack.BuildTemplate, bool) {
	bs, ok := a.Registry.GetBuildSystem(svc.Package.Stack.BuildSystem)
	if !ok {
		return stack.BuildTemplate{}, false
	}
	return bs.DefaultBuildTemplate(func(string) bool { return true }), true
}
