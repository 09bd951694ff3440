package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/containifyci/repostack/pkg/catalog"
	"github.com/containifyci/repostack/pkg/heuristiclog"
	"github.com/containifyci/repostack/pkg/stack"

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

func newScanner(t *testing.T, opts Options) *Scanner {
	t.Helper()
	return New(catalog.NewDefaultRegistry(), opts, heuristiclog.Noop())
}

func TestScanMissingPathIsHardError(t *testing.T) {
	s := newScanner(t, Options{})
	_, err := s.Scan(filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestScanFileInsteadOfDirIsHardError(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "plain.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	s := newScanner(t, Options{})
	_, err := s.Scan(file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestScanDetectsCargoManifest(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"Cargo.toml":  "[package]\nname = \"foo\"\nversion = \"0.1.0\"\n",
		"src/main.rs": "fn main() {}\n",
	})

	res, err := newScanner(t, Options{}).Scan(root)
	require.NoError(t, err)
	require.Len(t, res.Detections, 1)
	det := res.Detections[0]
	assert.True(t, det.BuildSystem.Equal(stack.Cargo))
	assert.True(t, det.Language.Equal(stack.Rust))
	assert.Equal(t, "Cargo.toml", det.ManifestPath)
	assert.Equal(t, 0, det.Depth)
	assert.Contains(t, res.FileTree, "src/main.rs")
}

func TestScanSkipsExcludedAndHiddenDirs(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"package.json":                     `{"name": "web", "version": "1.0.0"}`,
		"node_modules/dep/package.json":    `{"name": "dep", "version": "1.0.0"}`,
		".hidden/package.json":             `{"name": "hidden", "version": "1.0.0"}`,
	})

	res, err := newScanner(t, Options{}).Scan(root)
	require.NoError(t, err)
	require.Len(t, res.Detections, 1)
	assert.Equal(t, "package.json", res.Detections[0].ManifestPath)
	assert.NotContains(t, res.FileTree, "node_modules/dep/package.json")
	assert.NotContains(t, res.FileTree, ".hidden/package.json")
}

func TestScanHonorsGitignore(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		".gitignore":            "generated/\n",
		"go.mod":                "module example.com/svc\n\ngo 1.25\n",
		"generated/go.mod":      "module example.com/generated\n\ngo 1.25\n",
	})

	res, err := newScanner(t, Options{}).Scan(root)
	require.NoError(t, err)
	require.Len(t, res.Detections, 1)
	assert.Equal(t, "go.mod", res.Detections[0].ManifestPath)
}

func TestScanMaxFilesTruncates(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{}
	for i := 0; i < 20; i++ {
		files[filepath.Join("docs", string(rune('a'+i))+".md")] = "x"
	}
	writeFiles(t, root, files)

	res, err := newScanner(t, Options{MaxFiles: 5}).Scan(root)
	require.NoError(t, err)
	assert.True(t, res.Summary.Truncated)
	assert.LessOrEqual(t, len(res.FileTree), 5)
}

func TestScanMaxDepthPrunes(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"a/b/c/d/go.mod": "module example.com/deep\n\ngo 1.25\n",
	})

	res, err := newScanner(t, Options{MaxDepth: 2}).Scan(root)
	require.NoError(t, err)
	assert.Empty(t, res.Detections)
}

func TestScanFlagsWorkspaceRootAndOrchestrator(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"package.json":              `{"name": "mono", "version": "1.0.0", "workspaces": ["packages/*"]}`,
		"turbo.json":                `{"pipeline": {}}`,
		"packages/api/package.json": `{"name": "api", "version": "1.0.0"}`,
		"packages/web/package.json": `{"name": "web", "version": "1.0.0"}`,
	})

	res, err := newScanner(t, Options{}).Scan(root)
	require.NoError(t, err)
	assert.True(t, res.Workspace.IsWorkspaceRoot)
	assert.Equal(t, "package.json", res.Workspace.RootManifest)
	assert.Equal(t, []string{"packages/*"}, res.Workspace.MemberGlobs)
	require.NotNil(t, res.Workspace.Orchestrator)
	assert.True(t, res.Workspace.Orchestrator.Equal(stack.Turborepo))
	assert.Len(t, res.Detections, 3)
}
