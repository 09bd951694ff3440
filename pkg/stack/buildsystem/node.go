package buildsystem

import (
	"encoding/json"
	"fmt"

	"github.com/containifyci/repostack/pkg/stack"
)

// PackageJSON is the subset of package.json every Node build system and
// the Entrypoint/Structure phases need.
type PackageJSON struct {
	Name            string            `json:"name"`
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
	Workspaces      json.RawMessage   `json:"workspaces"`
}

// ParsePackageJSON is exported so the Entrypoint and Structure phases can
// reuse it without re-detecting the build system.
func ParsePackageJSON(content []byte) (PackageJSON, error) {
	var p PackageJSON
	if err := json.Unmarshal(content, &p); err != nil {
		return PackageJSON{}, fmt.Errorf("parsing package.json: %w", err)
	}
	return p, nil
}

// WorkspaceGlobs normalizes package.json's `workspaces` field, which may
// be a bare array or an object with a `packages` array.
func (p PackageJSON) WorkspaceGlobs() []string {
	if len(p.Workspaces) == 0 {
		return nil
	}
	var asArray []string
	if err := json.Unmarshal(p.Workspaces, &asArray); err == nil {
		return asArray
	}
	var asObject struct {
		Packages []string `json:"packages"`
	}
	if err := json.Unmarshal(p.Workspaces, &asObject); err == nil {
		return asObject.Packages
	}
	return nil
}

func (p PackageJSON) depRefs() []stack.PackageRef {
	refs := make([]stack.PackageRef, 0, len(p.Dependencies)+len(p.DevDependencies))
	for name, version := range p.Dependencies {
		refs = append(refs, stack.PackageRef{Name: name, Version: version})
	}
	for name, version := range p.DevDependencies {
		refs = append(refs, stack.PackageRef{Name: name, Version: version})
	}
	return refs
}

func parseNodeDeps(content []byte) ([]stack.PackageRef, error) {
	p, err := ParsePackageJSON(content)
	if err != nil {
		return nil, err
	}
	return p.depRefs(), nil
}

func nodeWorkspaceRoot(filename string, content []byte) (bool, []string) {
	if filename != "package.json" {
		return false, nil
	}
	p, err := ParsePackageJSON(content)
	if err != nil {
		return false, nil
	}
	globs := p.WorkspaceGlobs()
	return len(globs) > 0, globs
}

func nodeBuildTemplate(buildImage string) stack.BuildTemplate {
	return stack.BuildTemplate{
		BuildBaseImage:   buildImage,
		RuntimeBaseImage: "cgr.dev/chainguard/node:latest",
		BuildCommands:    []string{"npm ci", "npm run build --if-present"},
		CachePaths:       []string{"node_modules", ".npm"},
		Artifacts:        []string{"."},
		Copy:             []stack.CopySpec{{From: ".", To: "/app"}},
	}
}

var nodeExcludedDirs = []string{"node_modules", "dist", ".next", ".turbo"}

type bun struct{}

func NewBun() stack.BuildSystem { return bun{} }
func (bun) ID() stack.BuildSystemId { return stack.Bun }
func (bun) ManifestPatterns() []stack.ManifestPattern {
	return []stack.ManifestPattern{{Glob: "bun.lockb", Priority: 100}, {Glob: "bun.lock", Priority: 100}}
}
func (bun) Detect(filename string, content []byte) (bool, stack.Confidence) {
	if filename == "bun.lockb" || filename == "bun.lock" {
		return true, stack.NewConfidence(1.0)
	}
	return false, 0
}
func (bun) ParseDependencies(content []byte) ([]stack.PackageRef, error) { return nil, nil }
func (bun) IsWorkspaceRoot(filename string, content []byte) (bool, []string) { return false, nil }
func (bun) DefaultBuildTemplate(wolfiHasPackage func(string) bool) stack.BuildTemplate {
	t := nodeBuildTemplate("cgr.dev/chainguard/bun:latest")
	t.BuildCommands = []string{"bun install", "bun run build --if-present"}
	return t
}
func (bun) ExcludedDirs() []string { return nodeExcludedDirs }

type pnpm struct{}

func NewPnpm() stack.BuildSystem { return pnpm{} }
func (pnpm) ID() stack.BuildSystemId { return stack.Pnpm }
func (pnpm) ManifestPatterns() []stack.ManifestPattern {
	return []stack.ManifestPattern{
		{Glob: "pnpm-lock.yaml", Priority: 95},
		{Glob: "pnpm-workspace.yaml", Priority: 95},
	}
}
func (pnpm) Detect(filename string, content []byte) (bool, stack.Confidence) {
	if filename == "pnpm-lock.yaml" || filename == "pnpm-workspace.yaml" {
		return true, stack.NewConfidence(1.0)
	}
	return false, 0
}
func (pnpm) ParseDependencies(content []byte) ([]stack.PackageRef, error) { return nil, nil }
func (pnpm) IsWorkspaceRoot(filename string, content []byte) (bool, []string) {
	if filename != "pnpm-workspace.yaml" {
		return false, nil
	}
	return true, parseYAMLStringListField(content, "packages")
}
func (pnpm) DefaultBuildTemplate(wolfiHasPackage func(string) bool) stack.BuildTemplate {
	t := nodeBuildTemplate("cgr.dev/chainguard/node:latest")
	t.BuildCommands = []string{"pnpm install --frozen-lockfile", "pnpm run build --if-present"}
	return t
}
func (pnpm) ExcludedDirs() []string { return nodeExcludedDirs }

type yarn struct{}

func NewYarn() stack.BuildSystem { return yarn{} }
func (yarn) ID() stack.BuildSystemId { return stack.Yarn }
func (yarn) ManifestPatterns() []stack.ManifestPattern {
	return []stack.ManifestPattern{{Glob: "yarn.lock", Priority: 90}}
}
func (yarn) Detect(filename string, content []byte) (bool, stack.Confidence) {
	if filename == "yarn.lock" {
		return true, stack.NewConfidence(1.0)
	}
	return false, 0
}
func (yarn) ParseDependencies(content []byte) ([]stack.PackageRef, error) { return nil, nil }
func (yarn) IsWorkspaceRoot(filename string, content []byte) (bool, []string) { return false, nil }
func (yarn) DefaultBuildTemplate(wolfiHasPackage func(string) bool) stack.BuildTemplate {
	t := nodeBuildTemplate("cgr.dev/chainguard/node:latest")
	t.BuildCommands = []string{"yarn install --frozen-lockfile", "yarn build --if-present"}
	return t
}
func (yarn) ExcludedDirs() []string { return nodeExcludedDirs }

type npm struct{}

func NewNpm() stack.BuildSystem { return npm{} }
func (npm) ID() stack.BuildSystemId { return stack.Npm }
func (npm) ManifestPatterns() []stack.ManifestPattern {
	return []stack.ManifestPattern{
		{Glob: "package-lock.json", Priority: 85},
		{Glob: "package.json", Priority: 50},
	}
}
func (npm) Detect(filename string, content []byte) (bool, stack.Confidence) {
	switch filename {
	case "package-lock.json":
		return true, stack.NewConfidence(1.0)
	case "package.json":
		if contentHasAny(content, `"name"`, `"version"`) {
			return true, stack.NewConfidence(0.9)
		}
		return true, stack.NewConfidence(0.6)
	}
	return false, 0
}
func (npm) ParseDependencies(content []byte) ([]stack.PackageRef, error) { return parseNodeDeps(content) }
func (npm) IsWorkspaceRoot(filename string, content []byte) (bool, []string) {
	return nodeWorkspaceRoot(filename, content)
}
func (npm) DefaultBuildTemplate(wolfiHasPackage func(string) bool) stack.BuildTemplate {
	return nodeBuildTemplate("cgr.dev/chainguard/node:latest")
}
func (npm) ExcludedDirs() []string { return nodeExcludedDirs }
