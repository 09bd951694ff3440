package buildsystem

import (
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/containifyci/repostack/pkg/stack"
)

func pythonBuildTemplate(installCmd string) stack.BuildTemplate {
	return stack.BuildTemplate{
		BuildBaseImage:   "cgr.dev/chainguard/python:latest-dev",
		RuntimeBaseImage: "cgr.dev/chainguard/python:latest",
		BuildCommands:    []string{installCmd},
		CachePaths:       []string{"/root/.cache/pip"},
		Artifacts:        []string{"."},
		Copy:             []stack.CopySpec{{From: ".", To: "/app"}},
	}
}

var pythonExcludedDirs = []string{"__pycache__", ".venv", "venv", ".tox", ".mypy_cache", "*.egg-info"}

type pip struct{}

func NewPip() stack.BuildSystem { return pip{} }
func (pip) ID() stack.BuildSystemId { return stack.Pip }
func (pip) ManifestPatterns() []stack.ManifestPattern {
	return []stack.ManifestPattern{
		{Glob: "requirements.txt", Priority: 60},
		{Glob: "requirements*.txt", Priority: 55},
	}
}
func (pip) Detect(filename string, content []byte) (bool, stack.Confidence) {
	if matchGlob("requirements*.txt", filename) {
		return true, stack.NewConfidence(0.9)
	}
	return false, 0
}
func (pip) ParseDependencies(content []byte) ([]stack.PackageRef, error) {
	var refs []stack.PackageRef
	for _, line := range firstNonEmptyLines(content) {
		if strings.HasPrefix(line, "#") {
			continue
		}
		name, version := splitRequirementLine(line)
		if name != "" {
			refs = append(refs, stack.PackageRef{Name: name, Version: version})
		}
	}
	return refs, nil
}
func (pip) IsWorkspaceRoot(filename string, content []byte) (bool, []string) { return false, nil }
func (pip) DefaultBuildTemplate(wolfiHasPackage func(string) bool) stack.BuildTemplate {
	return pythonBuildTemplate("pip install --no-cache-dir -r requirements.txt")
}
func (pip) ExcludedDirs() []string { return pythonExcludedDirs }

// splitRequirementLine splits "flask==2.0.1" / "flask>=2.0" / "flask" into
// (name, version-constraint-or-empty).
func splitRequirementLine(line string) (string, string) {
	for _, sep := range []string{"==", ">=", "<=", "~=", "!=", ">", "<"} {
		if idx := strings.Index(line, sep); idx > 0 {
			return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx:])
		}
	}
	return strings.TrimSpace(line), ""
}

type pipenv struct{}

func NewPipenv() stack.BuildSystem { return pipenv{} }
func (pipenv) ID() stack.BuildSystemId { return stack.Pipenv }
func (pipenv) ManifestPatterns() []stack.ManifestPattern {
	return []stack.ManifestPattern{{Glob: "Pipfile.lock", Priority: 95}, {Glob: "Pipfile", Priority: 90}}
}
func (pipenv) Detect(filename string, content []byte) (bool, stack.Confidence) {
	switch filename {
	case "Pipfile.lock":
		return true, stack.NewConfidence(1.0)
	case "Pipfile":
		return true, stack.NewConfidence(0.9)
	}
	return false, 0
}

type pipfile struct {
	Packages map[string]interface{} `toml:"packages"`
}

func (pipenv) ParseDependencies(content []byte) ([]stack.PackageRef, error) {
	var p pipfile
	if err := toml.Unmarshal(content, &p); err != nil {
		return nil, nil
	}
	refs := make([]stack.PackageRef, 0, len(p.Packages))
	for name, v := range p.Packages {
		version := ""
		if s, ok := v.(string); ok && s != "*" {
			version = s
		}
		refs = append(refs, stack.PackageRef{Name: name, Version: version})
	}
	return refs, nil
}
func (pipenv) IsWorkspaceRoot(filename string, content []byte) (bool, []string) { return false, nil }
func (pipenv) DefaultBuildTemplate(wolfiHasPackage func(string) bool) stack.BuildTemplate {
	return pythonBuildTemplate("pipenv install --deploy --system")
}
func (pipenv) ExcludedDirs() []string { return pythonExcludedDirs }

type poetry struct{}

func NewPoetry() stack.BuildSystem { return poetry{} }
func (poetry) ID() stack.BuildSystemId { return stack.Poetry }
func (poetry) ManifestPatterns() []stack.ManifestPattern {
	return []stack.ManifestPattern{{Glob: "poetry.lock", Priority: 95}, {Glob: "pyproject.toml", Priority: 70}}
}
func (poetry) Detect(filename string, content []byte) (bool, stack.Confidence) {
	switch filename {
	case "poetry.lock":
		return true, stack.NewConfidence(1.0)
	case "pyproject.toml":
		if contentHasAny(content, "[tool.poetry]") {
			return true, stack.NewConfidence(0.95)
		}
		return false, 0
	}
	return false, 0
}

type pyprojectPoetry struct {
	Tool struct {
		Poetry struct {
			Dependencies map[string]interface{} `toml:"dependencies"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

func (poetry) ParseDependencies(content []byte) ([]stack.PackageRef, error) {
	var p pyprojectPoetry
	if err := toml.Unmarshal(content, &p); err != nil {
		return nil, nil
	}
	refs := make([]stack.PackageRef, 0, len(p.Tool.Poetry.Dependencies))
	for name, v := range p.Tool.Poetry.Dependencies {
		if name == "python" {
			continue
		}
		version := ""
		if s, ok := v.(string); ok {
			version = s
		}
		refs = append(refs, stack.PackageRef{Name: name, Version: version})
	}
	return refs, nil
}
func (poetry) IsWorkspaceRoot(filename string, content []byte) (bool, []string) { return false, nil }
func (poetry) DefaultBuildTemplate(wolfiHasPackage func(string) bool) stack.BuildTemplate {
	return pythonBuildTemplate("poetry install --no-interaction --no-ansi")
}
func (poetry) ExcludedDirs() []string { return pythonExcludedDirs }
