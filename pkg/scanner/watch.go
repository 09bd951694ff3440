package scanner

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher re-runs a scan whenever a manifest file changes, delivering
// fresh ScanResults on a channel. Intended for long-running callers
// (editor integrations, a --watch CLI flag); one-shot analyses use
// Scanner.Scan directly.
type Watcher struct {
	scanner *Scanner
	fsw     *fsnotify.Watcher
	results chan *ScanResult
}

// Watch starts watching repoPath and emits an initial scan immediately.
// The returned Watcher must be closed via ctx cancellation; its Results
// channel closes when the watch loop exits.
func (s *Scanner) Watch(ctx context.Context, repoPath string) (*Watcher, error) {
	initial, err := s.Scan(repoPath)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fs watcher: %w", err)
	}
	if err := fsw.Add(initial.RepoPath); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", initial.RepoPath, err)
	}
	// Watch every directory that currently holds a detected manifest;
	// fsnotify is not recursive, and re-watching the whole tree would
	// defeat the bounded-walk contract.
	watched := map[string]struct{}{initial.RepoPath: {}}
	for _, det := range initial.Detections {
		dir := filepath.Join(initial.RepoPath, filepath.Dir(det.ManifestPath))
		if _, ok := watched[dir]; ok {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			s.log.Warn("cannot watch manifest dir", zap.String("dir", dir), zap.Error(err))
			continue
		}
		watched[dir] = struct{}{}
	}

	w := &Watcher{scanner: s, fsw: fsw, results: make(chan *ScanResult, 1)}
	go w.loop(ctx, initial)
	return w, nil
}

// Results delivers one ScanResult per (re)scan, the initial scan first.
func (w *Watcher) Results() <-chan *ScanResult { return w.results }

func (w *Watcher) loop(ctx context.Context, initial *ScanResult) {
	defer close(w.results)
	defer w.fsw.Close()

	w.results <- initial
	manifests := manifestSet(initial)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) {
				continue
			}
			rel, err := filepath.Rel(initial.RepoPath, ev.Name)
			if err != nil {
				continue
			}
			if _, isManifest := manifests[filepath.ToSlash(rel)]; !isManifest && !ev.Has(fsnotify.Create) {
				continue
			}
			res, err := w.scanner.Scan(initial.RepoPath)
			if err != nil {
				w.scanner.log.Warn("rescan failed", zap.Error(err))
				continue
			}
			manifests = manifestSet(res)
			select {
			case w.results <- res:
			case <-ctx.Done():
				return
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.scanner.log.Warn("fs watcher error", zap.Error(err))
		}
	}
}

func manifestSet(res *ScanResult) map[string]struct{} {
	set := make(map[string]struct{}, len(res.Detections))
	for _, det := range res.Detections {
		set[strings.TrimPrefix(filepath.ToSlash(det.ManifestPath), "./")] = struct{}{}
	}
	return set
}
