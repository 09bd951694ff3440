// Package scanner implements the single bounded repository walk
// (spec.md §4.2): one pass over the tree, consulting the Stack Registry
// for every registered manifest it encounters, emitting the file tree,
// the manifest detections, and workspace flags the later pipeline phases
// consume.
//
// Grounded on the teacher's pkg/autodiscovery three-pass per-language
// discovery, generalized into one registry-driven pass (DESIGN.md).
package scanner

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/containifyci/repostack/pkg/heuristiclog"
	"github.com/containifyci/repostack/pkg/stack"

	"go.uber.org/zap"
)

const (
	// DefaultMaxDepth bounds how deep the walk descends below the repo
	// root before pruning.
	DefaultMaxDepth = 10
	// DefaultMaxFiles aborts the walk (with a warning, not an error)
	// once this many regular files have been visited.
	DefaultMaxFiles = 1000

	// maxManifestRead caps how much of a manifest the scanner hands the
	// registry. The registry's detectors only look at headers and
	// top-level fields; reading more is wasted I/O on lockfiles that can
	// run to megabytes.
	maxManifestRead = 64 * 1024
)

// Options bounds one walk.
type Options struct {
	MaxDepth int
	MaxFiles int
}

func (o Options) withDefaults() Options {
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.MaxFiles <= 0 {
		o.MaxFiles = DefaultMaxFiles
	}
	return o
}

// Detection is one manifest the registry recognized, with the depth at
// which it was found (0 = repo root).
type Detection struct {
	stack.DetectionStack
	Depth int
}

// WorkspaceInfo aggregates the workspace-level flags raised during the
// walk: whether any manifest declared a multi-package workspace, its
// member globs, and any orchestrator config files seen.
type WorkspaceInfo struct {
	IsWorkspaceRoot     bool
	RootManifest        string
	MemberGlobs         []string
	Orchestrator        *stack.OrchestratorId
	OrchestratorConfig  string
}

// Summary is the walk's bookkeeping, reported alongside the results so
// callers can tell a complete scan from a truncated one.
type Summary struct {
	FilesScanned  int
	DirsPruned    int
	FilesSkipped  int
	Truncated     bool
}

// ScanResult is the Scan phase's output slot (spec.md §4.6 row 1).
type ScanResult struct {
	RepoPath   string
	Detections []Detection
	FileTree   []string
	Workspace  WorkspaceInfo
	Summary    Summary
}

// Scanner performs the bounded walk. It is cheap to construct and
// single-use per call: all state lives on the stack of Scan.
type Scanner struct {
	registry *stack.Registry
	opts     Options
	log      heuristiclog.Interface
}

func New(registry *stack.Registry, opts Options, log heuristiclog.Interface) *Scanner {
	if log == nil {
		log = heuristiclog.Noop()
	}
	return &Scanner{registry: registry, opts: opts.withDefaults(), log: log.WithComponent("scanner")}
}

// Scan walks repoPath once. A missing or non-directory path is a hard
// error; individual file failures are logged and skipped; hitting
// MaxFiles truncates the result with Summary.Truncated set.
func (s *Scanner) Scan(repoPath string) (*ScanResult, error) {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, fmt.Errorf("resolving repo path %q: %w", repoPath, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("repo path %q does not exist: %w", repoPath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("repo path %q is not a directory", repoPath)
	}

	excluded := map[string]struct{}{}
	for _, d := range s.registry.AllExcludedDirs() {
		excluded[d] = struct{}{}
	}
	ignore := loadIgnorePatterns(abs)

	result := &ScanResult{RepoPath: abs}
	walk := func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			s.log.Warn("skipping unreadable entry", zap.String("path", path), zap.Error(walkErr))
			result.Summary.FilesSkipped++
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(abs, path)
		if err != nil {
			return nil
		}
		if rel == "." {
			return nil
		}
		depth := strings.Count(rel, string(filepath.Separator))

		if d.IsDir() {
			name := d.Name()
			if _, ok := excluded[name]; ok {
				result.Summary.DirsPruned++
				return fs.SkipDir
			}
			if strings.HasPrefix(name, ".") {
				result.Summary.DirsPruned++
				return fs.SkipDir
			}
			if depth >= s.opts.MaxDepth {
				result.Summary.DirsPruned++
				return fs.SkipDir
			}
			if ignore.matches(rel) {
				result.Summary.DirsPruned++
				return fs.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}
		if ignore.matches(rel) {
			result.Summary.FilesSkipped++
			return nil
		}

		result.Summary.FilesScanned++
		if result.Summary.FilesScanned > s.opts.MaxFiles {
			s.log.Warn("file limit reached, truncating scan",
				zap.Int("max_files", s.opts.MaxFiles))
			result.Summary.Truncated = true
			return filepath.SkipAll
		}

		result.FileTree = append(result.FileTree, filepath.ToSlash(rel))
		s.inspectFile(abs, rel, d.Name(), depth, result)
		return nil
	}

	if err := filepath.WalkDir(abs, walk); err != nil {
		return nil, fmt.Errorf("walking %s: %w", abs, err)
	}

	sort.Strings(result.FileTree)
	s.log.Info("scan complete",
		zap.Int("files", result.Summary.FilesScanned),
		zap.Int("detections", len(result.Detections)),
		zap.Bool("truncated", result.Summary.Truncated))
	return result, nil
}

// inspectFile consults the registry for one regular file: manifest
// detection, workspace-root claims, and orchestrator configs. Read
// failures drop the single detection, never the walk.
func (s *Scanner) inspectFile(root, rel, name string, depth int, result *ScanResult) {
	content, err := readCapped(filepath.Join(root, rel), maxManifestRead)
	if err != nil {
		s.log.Warn("unreadable manifest candidate", zap.String("path", rel), zap.Error(err))
		result.Summary.FilesSkipped++
		return
	}

	if det, ok := s.registry.DetectStack(filepath.ToSlash(rel), name, content); ok {
		result.Detections = append(result.Detections, Detection{DetectionStack: det, Depth: depth})

		if isRoot, members := s.registry.IsWorkspaceRoot(name, content); isRoot {
			// The shallowest workspace root wins; a nested workspace
			// manifest is a member, not the root.
			if !result.Workspace.IsWorkspaceRoot || depth < strings.Count(result.Workspace.RootManifest, "/") {
				result.Workspace.IsWorkspaceRoot = true
				result.Workspace.RootManifest = filepath.ToSlash(rel)
				result.Workspace.MemberGlobs = members
			}
		}
	}

	if id, _, ok := s.registry.DetectOrchestrator(name, content); ok && result.Workspace.Orchestrator == nil {
		result.Workspace.Orchestrator = &id
		result.Workspace.OrchestratorConfig = filepath.ToSlash(rel)
	}
}

func readCapped(path string, max int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, int64(max)))
}

// ignoreSet is the union of .gitignore/.dockerignore patterns at the
// repo root, matched against slash-separated relative paths. Only the
// simple forms the walk needs are honored: bare names, dir/ prefixes and
// leading-`/`-anchored entries; negations are ignored.
type ignoreSet struct {
	patterns []string
}

func loadIgnorePatterns(root string) ignoreSet {
	var set ignoreSet
	for _, name := range []string{".gitignore", ".dockerignore"} {
		f, err := os.Open(filepath.Join(root, name))
		if err != nil {
			continue
		}
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
				continue
			}
			line = strings.TrimPrefix(line, "/")
			line = strings.TrimSuffix(line, "/")
			if line != "" {
				set.patterns = append(set.patterns, line)
			}
		}
		f.Close()
	}
	return set
}

func (s ignoreSet) matches(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, p := range s.patterns {
		if rel == p || strings.HasPrefix(rel, p+"/") {
			return true
		}
		if ok, _ := filepath.Match(p, filepath.Base(rel)); ok && !strings.Contains(p, "/") {
			return true
		}
	}
	return false
}
