package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/containifyci/repostack/pkg/catalog"
	"github.com/containifyci/repostack/pkg/heuristiclog"
	"github.com/containifyci/repostack/pkg/llmchat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExecutor(t *testing.T, files map[string]string) *Executor {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	exec, err := NewExecutor(root, catalog.NewDefaultRegistry(), nil, heuristiclog.Noop())
	require.NoError(t, err)
	return exec
}

func call(name string, args any) llmchat.ToolCall {
	data, _ := json.Marshal(args)
	return llmchat.ToolCall{ID: "call-1", Name: name, Arguments: data}
}

func TestReadFileTraversalRejected(t *testing.T) {
	exec := newExecutor(t, map[string]string{"ok.txt": "fine"})

	for _, p := range []string{
		"../../../etc/passwd",
		"..",
		"a/../../outside.txt",
	} {
		res := exec.Dispatch(context.Background(), call("read_file", readFileArgs{Path: p}))
		require.True(t, res.IsError(), "path %q must be rejected", p)
		assert.Contains(t, res.Err, "traversal", "path %q", p)
	}
}

func TestAbsolutePathIsJoinedUnderRoot(t *testing.T) {
	exec := newExecutor(t, map[string]string{"etc/passwd": "not the real one"})

	res := exec.Dispatch(context.Background(), call("read_file", readFileArgs{Path: "/etc/passwd"}))
	require.False(t, res.IsError(), "leading slash is stripped, not rejected: %s", res.Err)
	var out struct {
		Content string `json:"content"`
	}
	require.NoError(t, json.Unmarshal(res.Content, &out))
	assert.Equal(t, "not the real one", out.Content)
}

func TestSymlinkEscapeRejected(t *testing.T) {
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("secret"), 0o644))

	exec := newExecutor(t, nil)
	require.NoError(t, os.Symlink(outside, filepath.Join(exec.root, "link")))

	res := exec.Dispatch(context.Background(), call("read_file", readFileArgs{Path: "link/secret.txt"}))
	require.True(t, res.IsError())
	assert.Contains(t, res.Err, "traversal")
}

func TestReadFileBinaryRefused(t *testing.T) {
	exec := newExecutor(t, nil)
	binary := append([]byte("ELF"), 0x00, 0x01, 0x02)
	require.NoError(t, os.WriteFile(filepath.Join(exec.root, "bin"), binary, 0o644))

	res := exec.Dispatch(context.Background(), call("read_file", readFileArgs{Path: "bin"}))
	require.True(t, res.IsError())
	assert.Contains(t, res.Err, "binary")
}

func TestReadFileTruncatesLongFiles(t *testing.T) {
	content := ""
	for i := 0; i < 600; i++ {
		content += "line\n"
	}
	exec := newExecutor(t, map[string]string{"long.txt": content})

	res := exec.Dispatch(context.Background(), call("read_file", readFileArgs{Path: "long.txt", MaxLines: 10}))
	require.False(t, res.IsError())
	var out struct {
		Content   string `json:"content"`
		Truncated bool   `json:"truncated"`
	}
	require.NoError(t, json.Unmarshal(res.Content, &out))
	assert.True(t, out.Truncated)
	assert.Contains(t, out.Content, "[truncated after 10 lines]")
}

func TestListFilesFiltersExcludedDirs(t *testing.T) {
	exec := newExecutor(t, map[string]string{
		"src/main.rs":                  "fn main() {}",
		"target/debug/main":            "binary",
		"node_modules/x/package.json":  "{}",
	})

	res := exec.Dispatch(context.Background(), call("list_files", listFilesArgs{Path: "."}))
	require.False(t, res.IsError())
	var out struct {
		Files []string `json:"files"`
	}
	require.NoError(t, json.Unmarshal(res.Content, &out))
	assert.Contains(t, out.Files, "src/main.rs")
	for _, f := range out.Files {
		assert.NotContains(t, f, "target/")
		assert.NotContains(t, f, "node_modules/")
	}
}

func TestGrepContent(t *testing.T) {
	exec := newExecutor(t, map[string]string{
		"server.js": "const express = require('express');\napp.listen(3000);\n",
		"README.md": "listen to this\n",
	})

	res := exec.Dispatch(context.Background(), call("grep_content", grepArgs{
		Pattern:     `app\.listen\(\d+\)`,
		FilePattern: "*.js",
	}))
	require.False(t, res.IsError())
	var out struct {
		Matches []grepMatch `json:"matches"`
	}
	require.NoError(t, json.Unmarshal(res.Content, &out))
	require.Len(t, out.Matches, 1)
	assert.Equal(t, "server.js", out.Matches[0].File)
	assert.Equal(t, 2, out.Matches[0].Line)
}

func TestDispatchCachesRepeatedCalls(t *testing.T) {
	exec := newExecutor(t, map[string]string{"a.txt": "one"})

	first := exec.Dispatch(context.Background(), call("read_file", readFileArgs{Path: "a.txt"}))
	require.False(t, first.IsError())

	// Mutate the file; a repeated identical call must serve the cached
	// result for the remainder of the analysis.
	require.NoError(t, os.WriteFile(filepath.Join(exec.root, "a.txt"), []byte("two"), 0o644))
	second := exec.Dispatch(context.Background(), call("read_file", readFileArgs{Path: "a.txt"}))
	assert.Equal(t, string(first.Content), string(second.Content))

	// Key order must not matter: the cache key is canonical JSON.
	reordered := llmchat.ToolCall{Name: "read_file", Arguments: json.RawMessage(`{"max_lines": 500, "path": "a.txt"}`)}
	baseline := llmchat.ToolCall{Name: "read_file", Arguments: json.RawMessage(`{"path": "a.txt", "max_lines": 500}`)}
	r1 := exec.Dispatch(context.Background(), reordered)
	r2 := exec.Dispatch(context.Background(), baseline)
	assert.Equal(t, string(r1.Content), string(r2.Content))
}

func TestGetBestPractices(t *testing.T) {
	exec := newExecutor(t, nil)

	res := exec.Dispatch(context.Background(), call("get_best_practices", bestPracticesArgs{
		Language: "rust", BuildSystem: "cargo",
	}))
	require.False(t, res.IsError())
	var out struct {
		BuildCommands []string `json:"build_commands"`
	}
	require.NoError(t, json.Unmarshal(res.Content, &out))
	assert.NotEmpty(t, out.BuildCommands)
}

func TestSubmitDetectionValidates(t *testing.T) {
	exec := newExecutor(t, nil)

	res := exec.Dispatch(context.Background(), call(llmchat.SubmitDetectionTool, map[string]any{
		"universal_build": map[string]any{"version": "1.0"},
	}))
	require.True(t, res.IsError())
	assert.Contains(t, res.Err, "metadata.language")
}

func TestSchemasAreClosedAndOrdered(t *testing.T) {
	names := []string{}
	for _, s := range Schemas() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{
		"list_files", "read_file", "search_files", "get_file_tree",
		"grep_content", "get_best_practices", "submit_detection",
	}, names)
}
