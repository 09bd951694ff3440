package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/containifyci/repostack/pkg/scanner"
	"github.com/containifyci/repostack/pkg/stack"
	"github.com/containifyci/repostack/pkg/stack/buildsystem"

	"go.uber.org/zap"
)

// --- Scan ---

// ScanPhase runs the bounded walk. It is mechanical: there is no LLM
// rendition of "walk the filesystem", so LLMOnly mode runs the same
// deterministic scan.
type ScanPhase struct {
	Options scanner.Options
}

func (ScanPhase) Name() string { return "scan" }

func (p ScanPhase) TryDeterministic(ctx context.Context, a *AnalysisContext) error {
	s := scanner.New(a.Registry, p.Options, a.Log)
	result, err := s.Scan(a.RepoPath)
	if err != nil {
		return err
	}
	a.scan = result
	return nil
}

func (p ScanPhase) ExecuteLLM(ctx context.Context, a *AnalysisContext) error {
	return p.TryDeterministic(ctx, a)
}

// --- WorkspaceStructure ---

// WorkspacePhase groups the scan's manifest detections into packages:
// one package per directory, keeping the highest-confidence detection
// when a directory carries several manifests (a package.json next to a
// yarn.lock).
type WorkspacePhase struct{}

func (WorkspacePhase) Name() string { return "workspace" }

func (WorkspacePhase) TryDeterministic(ctx context.Context, a *AnalysisContext) error {
	scan, err := a.Scan()
	if err != nil {
		return err
	}

	byDir := map[string]scanner.Detection{}
	var dirOrder []string
	for _, det := range scan.Detections {
		dir := filepath.ToSlash(filepath.Dir(det.ManifestPath))
		if dir == "." {
			dir = ""
		}
		existing, seen := byDir[dir]
		if !seen {
			dirOrder = append(dirOrder, dir)
			byDir[dir] = det
			continue
		}
		if det.Confidence > existing.Confidence {
			byDir[dir] = det
		}
	}
	sort.Strings(dirOrder)

	ws := &WorkspaceStructure{Orchestrator: scan.Workspace.Orchestrator}
	for _, dir := range dirOrder {
		det := byDir[dir]
		ws.Packages = append(ws.Packages, PackageInfo{
			Name:  packageName(a.RepoPath, dir, det),
			Path:  dir,
			Stack: det.DetectionStack,
		})
	}
	a.workspace = ws
	return nil
}

func (p WorkspacePhase) ExecuteLLM(ctx context.Context, a *AnalysisContext) error {
	return p.TryDeterministic(ctx, a)
}

// packageName resolves a package's name from its manifest, falling back
// to its directory (or the repo directory for the root package).
func packageName(repoPath, dir string, det scanner.Detection) string {
	content, err := os.ReadFile(filepath.Join(repoPath, filepath.FromSlash(det.ManifestPath)))
	if err == nil {
		base := filepath.Base(det.ManifestPath)
		switch base {
		case "Cargo.toml":
			if name, ok := buildsystem.ProjectName(content); ok {
				return name
			}
		case "package.json":
			if p, err := buildsystem.ParsePackageJSON(content); err == nil && p.Name != "" {
				return p.Name
			}
		case "go.mod":
			if name, ok := goModuleBase(content); ok {
				return name
			}
		}
	}
	if dir == "" {
		return filepath.Base(repoPath)
	}
	return filepath.Base(dir)
}

func goModuleBase(content []byte) (string, bool) {
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "module "); ok {
			rest = strings.TrimSpace(rest)
			if i := strings.LastIndex(rest, "/"); i >= 0 {
				rest = rest[i+1:]
			}
			return rest, rest != ""
		}
	}
	return "", false
}

// --- Structure ---

// StructurePhase classifies the project and decides which packages are
// deployable services. Deterministic rule: a workspace root with member
// packages is a monorepo whose services are the members; anything else
// is a single service rooted at the shallowest detected package.
type StructurePhase struct{}

func (StructurePhase) Name() string { return "structure" }

func (StructurePhase) TryDeterministic(ctx context.Context, a *AnalysisContext) error {
	scan, err := a.Scan()
	if err != nil {
		return err
	}
	ws, err := a.Workspace()
	if err != nil {
		return err
	}
	if len(ws.Packages) == 0 {
		return fmt.Errorf("%w: no recognized manifest in repository", ErrInsufficientEvidence)
	}

	st := &Structure{Packages: append([]PackageInfo{}, ws.Packages...)}
	attachFrameworks(a, st.Packages)

	memberIdx := memberIndices(scan, st.Packages)
	if scan.Workspace.IsWorkspaceRoot && len(memberIdx) > 0 {
		st.ProjectType = stack.ProjectTypeMonorepo
		st.Services = memberIdx
	} else {
		st.ProjectType = stack.ProjectTypeSingleService
		st.Services = []int{shallowestPackage(st.Packages)}
	}
	a.structure = st
	return nil
}

type structureAnswer struct {
	ProjectType string   `json:"project_type"`
	Services    []string `json:"services"`
	Confidence  string   `json:"confidence"`
}

func (StructurePhase) ExecuteLLM(ctx context.Context, a *AnalysisContext) error {
	scan, err := a.Scan()
	if err != nil {
		return err
	}
	ws, err := a.Workspace()
	if err != nil {
		return err
	}
	if len(ws.Packages) == 0 {
		// Nothing to map a service classification onto: this repo is the
		// whole-repo tool loop's job, not a one-question fallback's.
		return fmt.Errorf("%w: no recognized manifests to classify", ErrInsufficientEvidence)
	}

	var answer structureAnswer
	user := fmt.Sprintf(
		"Classify this repository. File tree:\n%s\nRespond with strict JSON: "+
			`{"project_type": "single-service"|"monorepo", "services": ["<relative dir>", ...], "confidence": "high"|"medium"|"low"}`,
		treeSlice(scan.FileTree, 3, 200))
	if err := askJSON(ctx, a.LLM, structureSystemPrompt, user, &answer); err != nil {
		return err
	}

	st := &Structure{Packages: append([]PackageInfo{}, ws.Packages...)}
	attachFrameworks(a, st.Packages)
	if answer.ProjectType == string(stack.ProjectTypeMonorepo) {
		st.ProjectType = stack.ProjectTypeMonorepo
	} else {
		st.ProjectType = stack.ProjectTypeSingleService
	}
	for _, svc := range answer.Services {
		svc = strings.Trim(filepath.ToSlash(svc), "/.")
		for i, pkg := range st.Packages {
			if pkg.Path == svc {
				st.Services = append(st.Services, i)
			}
		}
	}
	if len(st.Services) == 0 && len(st.Packages) > 0 {
		st.Services = []int{shallowestPackage(st.Packages)}
	}
	a.structure = st
	return nil
}

const structureSystemPrompt = "You are a build-detection assistant. " +
	"You classify repository layouts from their file trees and answer only in strict JSON."

// attachFrameworks runs framework detection over each package's parsed
// dependencies (spec.md §4.1: framework detection needs parsed package
// names, not raw manifest bytes).
func attachFrameworks(a *AnalysisContext, packages []PackageInfo) {
	scan, err := a.Scan()
	if err != nil {
		return
	}
	for i := range packages {
		content, err := os.ReadFile(filepath.Join(a.RepoPath, filepath.FromSlash(packages[i].Stack.ManifestPath)))
		if err != nil {
			continue
		}
		deps, err := a.Registry.ParseDependenciesByManifest(filepath.Base(packages[i].Stack.ManifestPath), content)
		if err != nil {
			continue
		}
		if fw, _, ok := a.Registry.DetectFrameworkFromDeps(packages[i].Stack.Language, deps, scan.FileTree); ok {
			packages[i].Stack.Framework = &fw
		}
	}
}

// memberIndices returns the indices of packages that live under the
// workspace root's member globs (non-root packages).
func memberIndices(scan *scanner.ScanResult, packages []PackageInfo) []int {
	var members []int
	for i, pkg := range packages {
		if pkg.Path == "" {
			continue
		}
		for _, glob := range scan.Workspace.MemberGlobs {
			if matchWorkspaceGlob(glob, pkg.Path) {
				members = append(members, i)
				break
			}
		}
	}
	return members
}

func matchWorkspaceGlob(glob, path string) bool {
	glob = strings.TrimSuffix(filepath.ToSlash(glob), "/")
	if ok, _ := filepath.Match(glob, path); ok {
		return true
	}
	// "packages/*" must also claim nested members like
	// "packages/api" when matching by prefix segment.
	if prefix, ok := strings.CutSuffix(glob, "/*"); ok {
		return strings.HasPrefix(path, prefix+"/")
	}
	return false
}

func shallowestPackage(packages []PackageInfo) int {
	depthOf := func(p string) int {
		if p == "" {
			return 0
		}
		return strings.Count(p, "/") + 1
	}
	best := 0
	for i := 1; i < len(packages); i++ {
		if depthOf(packages[i].Path) < depthOf(packages[best].Path) {
			best = i
		}
	}
	return best
}

// --- Dependencies ---

// DependenciesPhase parses each package's manifest into internal
// (workspace-relative path) and external dependencies. A manifest parse
// failure drops that package's detection with a warning and marks it
// NotImplemented; the analysis continues (spec.md §7 ManifestParse).
type DependenciesPhase struct{}

func (DependenciesPhase) Name() string { return "dependencies" }

func (DependenciesPhase) TryDeterministic(ctx context.Context, a *AnalysisContext) error {
	st, err := a.Structure()
	if err != nil {
		return err
	}

	nameToPath := map[string]string{}
	for _, pkg := range st.Packages {
		nameToPath[pkg.Name] = pkg.Path
	}

	deps := &Dependencies{ByPackage: make([]DependencyInfo, len(st.Packages))}
	for i, pkg := range st.Packages {
		content, err := os.ReadFile(filepath.Join(a.RepoPath, filepath.FromSlash(pkg.Stack.ManifestPath)))
		if err != nil {
			a.Log.Warn("manifest unreadable, skipping dependency parse",
				zap.String("manifest", pkg.Stack.ManifestPath), zap.Error(err))
			deps.ByPackage[i] = DependencyInfo{Method: MethodNotImplemented}
			continue
		}
		refs, err := a.Registry.ParseDependenciesByManifest(filepath.Base(pkg.Stack.ManifestPath), content)
		if err != nil {
			a.Log.Warn("manifest parse failed, continuing without its dependencies",
				zap.String("manifest", pkg.Stack.ManifestPath), zap.Error(err))
			deps.ByPackage[i] = DependencyInfo{Method: MethodNotImplemented}
			continue
		}

		info := DependencyInfo{Method: MethodDeterministic}
		for _, ref := range refs {
			if path, internal := nameToPath[ref.Name]; internal && path != pkg.Path {
				info.Internal = append(info.Internal, path)
			} else {
				info.External = append(info.External, ref)
			}
		}
		deps.ByPackage[i] = info
	}
	a.dependencies = deps
	return nil
}

type dependenciesAnswer struct {
	Internal   []string `json:"internal"`
	External   []string `json:"external"`
	Confidence string   `json:"confidence"`
}

func (DependenciesPhase) ExecuteLLM(ctx context.Context, a *AnalysisContext) error {
	st, err := a.Structure()
	if err != nil {
		return err
	}

	deps := &Dependencies{ByPackage: make([]DependencyInfo, len(st.Packages))}
	for i, pkg := range st.Packages {
		excerpt := ""
		if content, err := os.ReadFile(filepath.Join(a.RepoPath, filepath.FromSlash(pkg.Stack.ManifestPath))); err == nil {
			excerpt = capExcerpt(string(content), 4000)
		}
		var answer dependenciesAnswer
		user := fmt.Sprintf(
			"Package %q at %q, manifest %s:\n%s\nList its dependencies. Respond with strict JSON: "+
				`{"internal": ["<workspace-relative path>", ...], "external": ["<name>", ...], "confidence": "high"|"medium"|"low"}`,
			pkg.Name, pkg.Path, pkg.Stack.ManifestPath, excerpt)
		if err := askJSON(ctx, a.LLM, structureSystemPrompt, user, &answer); err != nil {
			return err
		}
		info := DependencyInfo{Method: MethodLLM, Internal: answer.Internal}
		for _, name := range answer.External {
			info.External = append(info.External, stack.PackageRef{Name: name})
		}
		deps.ByPackage[i] = info
	}
	a.dependencies = deps
	return nil
}

// --- BuildOrder ---

// BuildOrderPhase topologically sorts packages by their internal
// dependencies. Mechanical: graph algorithms have no LLM rendition.
type BuildOrderPhase struct{}

func (BuildOrderPhase) Name() string { return "build-order" }

func (BuildOrderPhase) TryDeterministic(ctx context.Context, a *AnalysisContext) error {
	st, err := a.Structure()
	if err != nil {
		return err
	}
	deps, err := a.Dependencies()
	if err != nil {
		return err
	}

	pathToIdx := map[string]int{}
	for i, pkg := range st.Packages {
		pathToIdx[pkg.Path] = i
	}

	adj := make([][]int, len(st.Packages))
	for i, info := range deps.ByPackage {
		for _, dep := range info.Internal {
			if j, ok := pathToIdx[dep]; ok {
				adj[i] = append(adj[i], j)
			}
		}
	}

	sccs := tarjanSCC(adj)
	order := &BuildOrder{Order: topologicalOrder(sccs)}
	for _, scc := range sccs {
		if len(scc) > 1 {
			order.HasCycle = true
			sort.Ints(scc)
			order.SCCs = append(order.SCCs, scc)
		}
	}
	if order.HasCycle {
		a.Log.Warn("dependency cycle detected",
			zap.Int("cycles", len(order.SCCs)))
	}
	a.buildOrder = order
	return nil
}

func (p BuildOrderPhase) ExecuteLLM(ctx context.Context, a *AnalysisContext) error {
	return p.TryDeterministic(ctx, a)
}

// --- RootCache ---

// RootCachePhase unions the cache directories shared across services:
// every service build system's template cache paths, deduplicated.
type RootCachePhase struct{}

func (RootCachePhase) Name() string { return "root-cache" }

func (RootCachePhase) TryDeterministic(ctx context.Context, a *AnalysisContext) error {
	st, err := a.Structure()
	if err != nil {
		return err
	}

	seen := map[string]struct{}{}
	var paths []string
	hasPackage := func(string) bool { return true }
	if a.Wolfi != nil {
		hasPackage = a.Wolfi.HasPackage
	}
	for _, idx := range st.Services {
		bs, ok := a.Registry.GetBuildSystem(st.Packages[idx].Stack.BuildSystem)
		if !ok {
			continue
		}
		for _, p := range bs.DefaultBuildTemplate(hasPackage).CachePaths {
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	a.rootCache = &RootCache{Paths: paths}
	return nil
}

func (p RootCachePhase) ExecuteLLM(ctx context.Context, a *AnalysisContext) error {
	return p.TryDeterministic(ctx, a)
}
