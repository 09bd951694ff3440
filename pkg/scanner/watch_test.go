package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/containifyci/repostack/pkg/stack"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nextResult(t *testing.T, w *Watcher, timeout time.Duration) *ScanResult {
	t.Helper()
	select {
	case res, ok := <-w.Results():
		require.True(t, ok, "results channel closed unexpectedly")
		return res
	case <-time.After(timeout):
		t.Fatal("timed out waiting for a scan result")
		return nil
	}
}

func TestWatchEmitsInitialScan(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"Cargo.toml":  "[package]\nname = \"foo\"\nversion = \"0.1.0\"\n",
		"src/main.rs": "fn main() {}\n",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := newScanner(t, Options{}).Watch(ctx, root)
	require.NoError(t, err)

	initial := nextResult(t, w, 5*time.Second)
	require.Len(t, initial.Detections, 1)
	assert.True(t, initial.Detections[0].BuildSystem.Equal(stack.Cargo))
}

func TestWatchRescansOnManifestChange(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"Cargo.toml":  "[package]\nname = \"foo\"\nversion = \"0.1.0\"\n",
		"src/main.rs": "fn main() {}\n",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := newScanner(t, Options{}).Watch(ctx, root)
	require.NoError(t, err)
	_ = nextResult(t, w, 5*time.Second)

	// Rewriting the manifest must trigger a fresh scan.
	require.NoError(t, os.WriteFile(filepath.Join(root, "Cargo.toml"),
		[]byte("[package]\nname = \"bar\"\nversion = \"0.2.0\"\n"), 0o644))

	rescanned := nextResult(t, w, 10*time.Second)
	require.Len(t, rescanned.Detections, 1)
	assert.Equal(t, "Cargo.toml", rescanned.Detections[0].ManifestPath)
}

func TestWatchClosesOnCancel(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"go.mod": "module example.com/svc\n\ngo 1.25\n",
	})

	ctx, cancel := context.WithCancel(context.Background())
	w, err := newScanner(t, Options{}).Watch(ctx, root)
	require.NoError(t, err)
	_ = nextResult(t, w, 5*time.Second)

	cancel()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-w.Results():
			if !ok {
				return // channel closed, loop exited
			}
		case <-deadline:
			t.Fatal("results channel did not close after cancellation")
		}
	}
}