package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/containifyci/repostack/pkg/catalog"
	"github.com/containifyci/repostack/pkg/heuristiclog"
	"github.com/containifyci/repostack/pkg/llmchat"
	"github.com/containifyci/repostack/pkg/ubuild"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// tripwireClient fails the test if the pipeline reaches for the LLM.
func tripwireClient(t *testing.T) llmchat.Client {
	return llmchat.ClientFunc(func(ctx context.Context, req llmchat.ChatRequest) (llmchat.ChatResponse, error) {
		t.Fatal("LLM must not be consulted for a deterministically recognizable repository")
		return llmchat.ChatResponse{}, nil
	})
}

func runAnalysis(t *testing.T, root string, llm llmchat.Client) []ubuild.UniversalBuild {
	t.Helper()
	o := NewAnalysisOrchestrator(catalog.NewDefaultRegistry(), nil, llm, heuristiclog.Noop())
	builds, err := o.Run(context.Background(), Options{RepoPath: root, Mode: ModeFull})
	require.NoError(t, err)
	return builds
}

func TestRustSingleBinary(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"Cargo.toml":  "[package]\nname = \"foo\"\nversion = \"0.1.0\"\n",
		"src/main.rs": "fn main() {}\n",
	})

	builds := runAnalysis(t, root, tripwireClient(t))
	require.Len(t, builds, 1)
	b := builds[0]
	assert.Equal(t, "rust", b.Metadata.Language)
	assert.Equal(t, "cargo", b.Metadata.BuildSystem)
	assert.Equal(t, "foo", b.Metadata.ProjectName)
	assert.Contains(t, b.Build.Commands, "cargo build --release")
	require.Len(t, b.Runtime.Copy, 1)
	assert.Equal(t, "target/release/foo", b.Runtime.Copy[0].From)
	assert.Equal(t, "/usr/local/bin/foo", b.Runtime.Copy[0].To)
	assert.Equal(t, []string{"/usr/local/bin/foo"}, b.Runtime.Command)
	assert.Empty(t, b.Runtime.Ports)
}

func TestRustDeterministicPassIsStable(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"Cargo.toml":  "[package]\nname = \"foo\"\nversion = \"0.1.0\"\n",
		"src/main.rs": "fn main() {}\n",
	})

	first := runAnalysis(t, root, tripwireClient(t))
	second := runAnalysis(t, root, tripwireClient(t))
	assert.Equal(t, first, second)
}

func TestNodeWebApp(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"package.json": `{"name": "web", "version": "1.0.0", "scripts": {"start": "node server.js"}}`,
		"server.js":    "const app = require('express')();\napp.listen(3000);\n",
		".env.example": "PORT=3000\n",
	})

	builds := runAnalysis(t, root, tripwireClient(t))
	require.Len(t, builds, 1)
	b := builds[0]
	assert.Equal(t, "javascript", b.Metadata.Language)
	assert.Equal(t, "npm", b.Metadata.BuildSystem)
	assert.Equal(t, []int{3000}, b.Runtime.Ports)
	require.Contains(t, b.Runtime.Env, "PORT")
	assert.Equal(t, "3000", b.Runtime.Env["PORT"])
	assert.Equal(t, []string{"sh", "-c", "node server.js"}, b.Runtime.Command)
}

func TestPythonFlask(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"requirements.txt": "flask==3.0.0\n",
		"app.py": `
import os
from flask import Flask
app = Flask(__name__)

@app.route('/health')
def health():
    return 'ok'

port = int(os.environ.get('PORT', 5000))
app.run(host='0.0.0.0', port=port)
`,
	})

	builds := runAnalysis(t, root, tripwireClient(t))
	require.Len(t, builds, 1)
	b := builds[0]
	assert.Equal(t, "python", b.Metadata.Language)
	assert.Equal(t, "pip", b.Metadata.BuildSystem)
	assert.Equal(t, "flask", b.Metadata.Framework)
	assert.Contains(t, b.Runtime.Ports, 5000)
	assert.Contains(t, b.Runtime.Env, "PORT")
	require.NotNil(t, b.Runtime.Healthcheck)
	assert.Contains(t, b.Runtime.Healthcheck.Test[len(b.Runtime.Healthcheck.Test)-1], "/health")
	assert.Equal(t, []string{"python", "app.py"}, b.Runtime.Command)
}

func TestPnpmMonorepo(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"package.json":        `{"name": "mono", "version": "1.0.0", "workspaces": ["packages/*"]}`,
		"pnpm-workspace.yaml": "packages:\n  - packages/*\n",
		"turbo.json":          `{"pipeline": {"build": {}}}`,
		"packages/api/package.json": `{"name": "api", "version": "1.0.0", "scripts": {"start": "node index.js"},
			"dependencies": {"web": "workspace:*"}}`,
		"packages/web/package.json": `{"name": "web", "version": "1.0.0", "scripts": {"start": "node index.js"}}`,
	})

	o := NewAnalysisOrchestrator(catalog.NewDefaultRegistry(), nil, tripwireClient(t), heuristiclog.Noop())

	// Drive the phases directly to inspect the intermediate slots.
	a := &AnalysisContext{RepoPath: root, Registry: o.registry, Log: o.log, Mode: ModeFull}
	for _, p := range []Phase{ScanPhase{}, WorkspacePhase{}, StructurePhase{}, DependenciesPhase{}, BuildOrderPhase{}} {
		require.NoError(t, runPhase(context.Background(), a, p))
	}

	st, err := a.Structure()
	require.NoError(t, err)
	assert.Equal(t, "monorepo", string(st.ProjectType))
	assert.Len(t, st.Services, 2)

	scan, err := a.Scan()
	require.NoError(t, err)
	require.NotNil(t, scan.Workspace.Orchestrator)
	assert.Equal(t, "turborepo", scan.Workspace.Orchestrator.String())

	order, err := a.BuildOrder()
	require.NoError(t, err)
	assert.False(t, order.HasCycle)

	// web must be built before api, which depends on it.
	pos := map[string]int{}
	for i, idx := range order.Order {
		pos[st.Packages[idx].Path] = i
	}
	assert.Less(t, pos["packages/web"], pos["packages/api"])

	builds := runAnalysis(t, root, tripwireClient(t))
	assert.Len(t, builds, 2)
}

func TestBuildOrderReportsCycles(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"package.json":            `{"name": "mono", "version": "1.0.0", "workspaces": ["pkgs/*"]}`,
		"pkgs/a/package.json":     `{"name": "a", "version": "1.0.0", "dependencies": {"b": "workspace:*"}}`,
		"pkgs/b/package.json":     `{"name": "b", "version": "1.0.0", "dependencies": {"a": "workspace:*"}}`,
	})

	a := &AnalysisContext{RepoPath: root, Registry: catalog.NewDefaultRegistry(), Log: heuristiclog.Noop(), Mode: ModeFull}
	for _, p := range []Phase{ScanPhase{}, WorkspacePhase{}, StructurePhase{}, DependenciesPhase{}, BuildOrderPhase{}} {
		require.NoError(t, runPhase(context.Background(), a, p))
	}

	order, err := a.BuildOrder()
	require.NoError(t, err)
	assert.True(t, order.HasCycle)
	require.Len(t, order.SCCs, 1)
	assert.Len(t, order.SCCs[0], 2)
}

func TestStaticOnlyFailsOnUnrecognizedRepo(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"README.md": "# nothing buildable\n"})

	o := NewAnalysisOrchestrator(catalog.NewDefaultRegistry(), nil, nil, heuristiclog.Noop())
	_, err := o.Run(context.Background(), Options{RepoPath: root, Mode: ModeStaticOnly})
	require.Error(t, err)
	var phaseErr *PhaseError
	require.ErrorAs(t, err, &phaseErr)
	assert.Equal(t, "structure", phaseErr.Phase)
}

func TestMissingRepoPathIsFatal(t *testing.T) {
	o := NewAnalysisOrchestrator(catalog.NewDefaultRegistry(), nil, nil, heuristiclog.Noop())
	_, err := o.Run(context.Background(), Options{RepoPath: filepath.Join(t.TempDir(), "nope")})
	require.Error(t, err)
}

func TestUnsetSlotIsTypedError(t *testing.T) {
	a := &AnalysisContext{}
	_, err := a.Structure()
	var unset *UnsetSlotError
	require.ErrorAs(t, err, &unset)
	assert.Equal(t, "structure", unset.Slot)
}
