package buildsystem

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/containifyci/repostack/pkg/stack"
)

type cargo struct{}

func NewCargo() stack.BuildSystem { return cargo{} }

func (cargo) ID() stack.BuildSystemId { return stack.Cargo }

func (cargo) ManifestPatterns() []stack.ManifestPattern {
	return []stack.ManifestPattern{
		{Glob: "Cargo.lock", Priority: 100},
		{Glob: "Cargo.toml", Priority: 90},
	}
}

func (cargo) Detect(filename string, content []byte) (bool, stack.Confidence) {
	switch filename {
	case "Cargo.lock":
		return true, stack.NewConfidence(1.0)
	case "Cargo.toml":
		if contentHasAny(content, "[package]", "[workspace]") {
			return true, stack.NewConfidence(0.95)
		}
		return true, stack.NewConfidence(0.7)
	}
	return false, 0
}

type cargoManifest struct {
	Package struct {
		Name string `toml:"name"`
	} `toml:"package"`
	Workspace struct {
		Members []string `toml:"members"`
	} `toml:"workspace"`
	Dependencies map[string]tomlDepValue `toml:"dependencies"`
}

// tomlDepValue accepts both `dep = "1.0"` and `dep = { version = "1.0" }`.
type tomlDepValue struct {
	simple  string
	Version string `toml:"version"`
}

func (v *tomlDepValue) UnmarshalTOML(data interface{}) error {
	switch t := data.(type) {
	case string:
		v.simple = t
	case map[string]interface{}:
		if ver, ok := t["version"].(string); ok {
			v.Version = ver
		}
	}
	return nil
}

func (cargo) ParseDependencies(content []byte) ([]stack.PackageRef, error) {
	var m cargoManifest
	if err := toml.Unmarshal(content, &m); err != nil {
		return nil, fmt.Errorf("parsing Cargo.toml: %w", err)
	}
	refs := make([]stack.PackageRef, 0, len(m.Dependencies))
	for name, v := range m.Dependencies {
		version := v.Version
		if version == "" {
			version = v.simple
		}
		refs = append(refs, stack.PackageRef{Name: name, Version: version})
	}
	return refs, nil
}

// ProjectName extracts [package].name from a Cargo.toml, used by the
// Assemble phase to fill BuildTemplate's {{name}} placeholders.
func ProjectName(content []byte) (string, bool) {
	var m cargoManifest
	if err := toml.Unmarshal(content, &m); err != nil {
		return "", false
	}
	return m.Package.Name, m.Package.Name != ""
}

func (cargo) IsWorkspaceRoot(filename string, content []byte) (bool, []string) {
	if filename != "Cargo.toml" {
		return false, nil
	}
	var m cargoManifest
	if err := toml.Unmarshal(content, &m); err != nil || len(m.Workspace.Members) == 0 {
		return false, nil
	}
	return true, m.Workspace.Members
}

func (cargo) DefaultBuildTemplate(wolfiHasPackage func(string) bool) stack.BuildTemplate {
	return stack.BuildTemplate{
		BuildBaseImage:   "cgr.dev/chainguard/rust:latest",
		RuntimeBaseImage: "cgr.dev/chainguard/glibc-dynamic:latest",
		BuildCommands:    []string{"cargo build --release"},
		CachePaths:       []string{"/root/.cargo/registry", "target"},
		Artifacts:        []string{"target/release/{{name}}"},
		Copy:             []stack.CopySpec{{From: "target/release/{{name}}", To: "/usr/local/bin/{{name}}"}},
	}
}

func (cargo) ExcludedDirs() []string { return []string{"target"} }
