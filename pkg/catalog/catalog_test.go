package catalog

import (
	"testing"

	"github.com/containifyci/repostack/pkg/stack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectCargoToml(t *testing.T) {
	r := NewDefaultRegistry()
	content := []byte("[package]\nname = \"foo\"\nversion = \"0.1.0\"\n")
	got, ok := r.DetectStack("Cargo.toml", "Cargo.toml", content)
	require.True(t, ok)
	assert.True(t, got.BuildSystem.Equal(stack.Cargo))
	assert.True(t, got.Language.Equal(stack.Rust))
}

func TestDetectNpmPackageJSON(t *testing.T) {
	r := NewDefaultRegistry()
	content := []byte(`{"name":"web","scripts":{"start":"node server.js"}}`)
	got, ok := r.DetectStack("package.json", "package.json", content)
	require.True(t, ok)
	assert.True(t, got.BuildSystem.Equal(stack.Npm))
	assert.True(t, got.Language.Equal(stack.JavaScript))
}

func TestDetectPipRequirements(t *testing.T) {
	r := NewDefaultRegistry()
	content := []byte("flask==2.0.1\nrequests\n")
	got, ok := r.DetectStack("requirements.txt", "requirements.txt", content)
	require.True(t, ok)
	assert.True(t, got.BuildSystem.Equal(stack.Pip))
	assert.True(t, got.Language.Equal(stack.Python))

	deps, err := r.ParseDependenciesByManifest("requirements.txt", content)
	require.NoError(t, err)
	names := make([]string, 0, len(deps))
	for _, d := range deps {
		names = append(names, d.Name)
	}
	assert.Contains(t, names, "flask")
	assert.Contains(t, names, "requests")
}

func TestPnpmWorkspaceRoot(t *testing.T) {
	r := NewDefaultRegistry()
	content := []byte("packages:\n  - 'packages/*'\n")
	isRoot, members := r.IsWorkspaceRoot("pnpm-workspace.yaml", content)
	assert.True(t, isRoot)
	assert.Equal(t, []string{"packages/*"}, members)
}

func TestTurborepoOrchestratorDetected(t *testing.T) {
	r := NewDefaultRegistry()
	id, _, ok := r.DetectOrchestrator("turbo.json", []byte(`{"pipeline":{}}`))
	require.True(t, ok)
	assert.True(t, id.Equal(stack.Turborepo))
}

func TestFlaskFrameworkDetectedFromDeps(t *testing.T) {
	r := NewDefaultRegistry()
	deps := []stack.PackageRef{{Name: "flask", Version: "==2.0.1"}}
	fw, _, ok := r.DetectFrameworkFromDeps(stack.Python, deps, nil)
	require.True(t, ok)
	assert.True(t, fw.Equal(stack.Flask))
}

func TestGradleWorkspaceMembers(t *testing.T) {
	r := NewDefaultRegistry()
	content := []byte("include(':api')\ninclude(':web')\n")
	isRoot, members := r.IsWorkspaceRoot("settings.gradle", content)
	assert.True(t, isRoot)
	assert.ElementsMatch(t, []string{"api", "web"}, members)
}

func TestDotnetSolutionMembers(t *testing.T) {
	r := NewDefaultRegistry()
	content := []byte(`Project("{FAE04EC0-301F-11D3-BF4B-00C04F79EFBC}") = "Api", "src\Api\Api.csproj", "{GUID}"`)
	isRoot, members := r.IsWorkspaceRoot("App.sln", content)
	assert.True(t, isRoot)
	assert.Equal(t, []string{`src\Api\Api.csproj`}, members)
}
