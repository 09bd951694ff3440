// Package tools implements the Tool System (spec.md §4.4): the closed
// set of sandboxed filesystem capabilities exposed to the LLM during the
// tool-calling loop. Every tool takes JSON arguments, produces a JSON
// result, and runs under the same repo-root sandbox; tool-level failures
// are reported back to the LLM as tool responses so it can recover, never
// bubbled out of the loop.
//
// Results are cached in memory keyed by (tool name, canonical JSON args)
// for the duration of one analysis, so the LLM re-issuing an identical
// call is free. The cache is a mutex-guarded map, grounded on the
// teacher's pkg/kv KeyValueStore shape (DESIGN.md).
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/containifyci/repostack/pkg/heuristiclog"
	"github.com/containifyci/repostack/pkg/llmchat"
	"github.com/containifyci/repostack/pkg/stack"
	"github.com/containifyci/repostack/pkg/ubuild"
	"github.com/containifyci/repostack/pkg/validator"
	"github.com/containifyci/repostack/pkg/wolfi"

	"go.uber.org/zap"
)

const (
	defaultReadMaxLines   = 500
	maxReadFileSize       = 1 << 20 // 1 MiB
	maxGrepFileSize       = 256 * 1024
	defaultSearchResults  = 20
	defaultGrepMatches    = 10
	defaultTreeDepth      = 2
	defaultListDepth      = 3
)

// Result is one tool invocation's outcome. Err is a tool-level failure
// rendered for the LLM (bad arguments, binary file, traversal attempt);
// it is not a Go error because it must travel back into the chat as a
// tool response.
type Result struct {
	Content json.RawMessage
	Err     string
}

// IsError reports whether the result carries a tool-level failure.
func (r Result) IsError() bool { return r.Err != "" }

// Message renders the result as the string content of a Tool-role chat
// message.
func (r Result) Message() string {
	if r.IsError() {
		return fmt.Sprintf(`{"error": %q}`, r.Err)
	}
	return string(r.Content)
}

// Executor owns the sandbox root, the per-analysis result cache, and
// the registry/index handles get_best_practices and submit_detection
// need. One Executor is scoped to one analysis.
type Executor struct {
	root     string
	registry *stack.Registry
	index    *wolfi.Index
	log      heuristiclog.Interface

	mu    sync.Mutex
	cache map[string]Result
}

// NewExecutor canonicalizes repoRoot and builds an executor for one
// analysis. index may be nil (package validation is then skipped by
// submit_detection).
func NewExecutor(repoRoot string, registry *stack.Registry, index *wolfi.Index, log heuristiclog.Interface) (*Executor, error) {
	canon, err := canonicalize(repoRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving repo root %q: %w", repoRoot, err)
	}
	info, err := os.Stat(canon)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("repo root %q is not a directory", repoRoot)
	}
	if log == nil {
		log = heuristiclog.Noop()
	}
	return &Executor{
		root:     canon,
		registry: registry,
		index:    index,
		log:      log.WithComponent("tools"),
		cache:    map[string]Result{},
	}, nil
}

// Dispatch executes one tool call, serving repeats from the cache.
func (e *Executor) Dispatch(ctx context.Context, call llmchat.ToolCall) Result {
	key := cacheKey(call.Name, call.Arguments)

	e.mu.Lock()
	if cached, ok := e.cache[key]; ok {
		e.mu.Unlock()
		return cached
	}
	e.mu.Unlock()

	result := e.execute(ctx, call)
	if result.IsError() {
		e.log.Debug("tool error", zap.String("tool", call.Name), zap.String("error", result.Err))
	}

	e.mu.Lock()
	e.cache[key] = result
	e.mu.Unlock()
	return result
}

func (e *Executor) execute(ctx context.Context, call llmchat.ToolCall) Result {
	switch call.Name {
	case "list_files":
		return e.listFiles(call.Arguments)
	case "read_file":
		return e.readFile(call.Arguments)
	case "search_files":
		return e.searchFiles(call.Arguments)
	case "get_file_tree":
		return e.getFileTree(call.Arguments)
	case "grep_content":
		return e.grepContent(call.Arguments)
	case "get_best_practices":
		return e.getBestPractices(call.Arguments)
	case llmchat.SubmitDetectionTool:
		return e.submitDetection(call.Arguments)
	default:
		return Result{Err: fmt.Sprintf("unknown tool %q", call.Name)}
	}
}

// cacheKey canonicalizes arguments by decode/re-encode: encoding/json
// marshals map keys in sorted order, so two spellings of the same
// arguments collapse to one key.
func cacheKey(name string, args json.RawMessage) string {
	var decoded any
	if err := json.Unmarshal(args, &decoded); err != nil {
		return name + "\x00" + string(args)
	}
	canonical, err := json.Marshal(decoded)
	if err != nil {
		return name + "\x00" + string(args)
	}
	return name + "\x00" + string(canonical)
}

func ok(v any) Result {
	data, err := json.Marshal(v)
	if err != nil {
		return Result{Err: fmt.Sprintf("encoding tool result: %v", err)}
	}
	return Result{Content: data}
}

// --- list_files ---

type listFilesArgs struct {
	Path     string `json:"path"`
	Pattern  string `json:"pattern,omitempty"`
	MaxDepth int    `json:"max_depth,omitempty"`
}

func (e *Executor) listFiles(raw json.RawMessage) Result {
	var args listFilesArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Result{Err: fmt.Sprintf("invalid list_files arguments: %v", err)}
	}
	base, err := resolvePath(e.root, args.Path)
	if err != nil {
		return Result{Err: err.Error()}
	}
	depth := args.MaxDepth
	if depth <= 0 {
		depth = defaultListDepth
	}

	var files []string
	e.walkBounded(base, depth, func(rel string) bool {
		if args.Pattern != "" {
			if match, _ := filepath.Match(args.Pattern, filepath.Base(rel)); !match {
				return true
			}
		}
		files = append(files, rel)
		return true
	})
	sort.Strings(files)
	return ok(map[string]any{"files": files, "count": len(files)})
}

// --- read_file ---

type readFileArgs struct {
	Path     string `json:"path"`
	MaxLines int    `json:"max_lines,omitempty"`
}

func (e *Executor) readFile(raw json.RawMessage) Result {
	var args readFileArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Result{Err: fmt.Sprintf("invalid read_file arguments: %v", err)}
	}
	path, err := resolvePath(e.root, args.Path)
	if err != nil {
		return Result{Err: err.Error()}
	}
	info, err := os.Stat(path)
	if err != nil {
		return Result{Err: fmt.Sprintf("cannot read %q: %v", args.Path, err)}
	}
	if info.Size() > maxReadFileSize {
		return Result{Err: fmt.Sprintf("file %q is too large (%d bytes, limit %d)", args.Path, info.Size(), maxReadFileSize)}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{Err: fmt.Sprintf("cannot read %q: %v", args.Path, err)}
	}
	if isBinary(data) {
		return Result{Err: fmt.Sprintf("file %q appears to be binary", args.Path)}
	}

	maxLines := args.MaxLines
	if maxLines <= 0 {
		maxLines = defaultReadMaxLines
	}
	lines := strings.Split(string(data), "\n")
	truncated := false
	if len(lines) > maxLines {
		lines = lines[:maxLines]
		truncated = true
	}
	content := strings.Join(lines, "\n")
	if truncated {
		content += fmt.Sprintf("\n... [truncated after %d lines]", maxLines)
	}
	return ok(map[string]any{"path": args.Path, "content": content, "truncated": truncated})
}

// isBinary applies the NUL-in-first-512-bytes heuristic.
func isBinary(data []byte) bool {
	probe := data
	if len(probe) > 512 {
		probe = probe[:512]
	}
	for _, b := range probe {
		if b == 0 {
			return true
		}
	}
	return false
}

// --- search_files ---

type searchFilesArgs struct {
	Pattern    string `json:"pattern"`
	MaxResults int    `json:"max_results,omitempty"`
}

func (e *Executor) searchFiles(raw json.RawMessage) Result {
	var args searchFilesArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Result{Err: fmt.Sprintf("invalid search_files arguments: %v", err)}
	}
	if args.Pattern == "" {
		return Result{Err: "search_files requires a pattern"}
	}
	maxResults := args.MaxResults
	if maxResults <= 0 {
		maxResults = defaultSearchResults
	}

	var matches []string
	e.walkBounded(e.root, 64, func(rel string) bool {
		nameMatch, _ := filepath.Match(args.Pattern, filepath.Base(rel))
		pathMatch, _ := filepath.Match(args.Pattern, rel)
		if nameMatch || pathMatch {
			matches = append(matches, rel)
		}
		return len(matches) < maxResults
	})
	sort.Strings(matches)
	return ok(map[string]any{"matches": matches, "count": len(matches)})
}

// --- get_file_tree ---

type fileTreeArgs struct {
	Path  string `json:"path,omitempty"`
	Depth int    `json:"depth,omitempty"`
}

type treeNode struct {
	Name     string     `json:"name"`
	Type     string     `json:"type"` // "file" | "dir"
	Children []treeNode `json:"children,omitempty"`
}

func (e *Executor) getFileTree(raw json.RawMessage) Result {
	var args fileTreeArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Result{Err: fmt.Sprintf("invalid get_file_tree arguments: %v", err)}
	}
	base, err := resolvePath(e.root, args.Path)
	if err != nil {
		return Result{Err: err.Error()}
	}
	depth := args.Depth
	if depth <= 0 {
		depth = defaultTreeDepth
	}
	node, err := e.buildTree(base, depth)
	if err != nil {
		return Result{Err: fmt.Sprintf("cannot build tree for %q: %v", args.Path, err)}
	}
	return ok(node)
}

func (e *Executor) buildTree(dir string, depth int) (treeNode, error) {
	node := treeNode{Name: filepath.Base(dir), Type: "dir"}
	if depth == 0 {
		return node, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return node, err
	}
	excluded := e.excludedSet()
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			if _, skip := excluded[name]; skip || strings.HasPrefix(name, ".") {
				continue
			}
			child, err := e.buildTree(filepath.Join(dir, name), depth-1)
			if err != nil {
				continue
			}
			node.Children = append(node.Children, child)
		} else {
			node.Children = append(node.Children, treeNode{Name: name, Type: "file"})
		}
	}
	sort.Slice(node.Children, func(i, j int) bool { return node.Children[i].Name < node.Children[j].Name })
	return node, nil
}

// --- grep_content ---

type grepArgs struct {
	Pattern     string `json:"pattern"`
	FilePattern string `json:"file_pattern,omitempty"`
	MaxMatches  int    `json:"max_matches,omitempty"`
}

type grepMatch struct {
	File string `json:"file"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

func (e *Executor) grepContent(raw json.RawMessage) Result {
	var args grepArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Result{Err: fmt.Sprintf("invalid grep_content arguments: %v", err)}
	}
	re, err := regexp.Compile(args.Pattern)
	if err != nil {
		return Result{Err: fmt.Sprintf("invalid regex %q: %v", args.Pattern, err)}
	}
	maxMatches := args.MaxMatches
	if maxMatches <= 0 {
		maxMatches = defaultGrepMatches
	}

	var matches []grepMatch
	e.walkBounded(e.root, 64, func(rel string) bool {
		if args.FilePattern != "" {
			if match, _ := filepath.Match(args.FilePattern, filepath.Base(rel)); !match {
				return true
			}
		}
		path := filepath.Join(e.root, filepath.FromSlash(rel))
		info, err := os.Stat(path)
		if err != nil || info.Size() > maxGrepFileSize {
			return true
		}
		data, err := os.ReadFile(path)
		if err != nil || isBinary(data) {
			return true
		}
		for i, line := range strings.Split(string(data), "\n") {
			if re.MatchString(line) {
				matches = append(matches, grepMatch{File: rel, Line: i + 1, Text: strings.TrimSpace(line)})
				if len(matches) >= maxMatches {
					return false
				}
			}
		}
		return true
	})
	return ok(map[string]any{"matches": matches, "count": len(matches)})
}

// --- get_best_practices ---

type bestPracticesArgs struct {
	Language    string `json:"language"`
	BuildSystem string `json:"build_system"`
}

func (e *Executor) getBestPractices(raw json.RawMessage) Result {
	var args bestPracticesArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Result{Err: fmt.Sprintf("invalid get_best_practices arguments: %v", err)}
	}
	bs, okBS := e.registry.GetBuildSystem(stack.ParseBuildSystemId(args.BuildSystem))
	if !okBS {
		return Result{Err: fmt.Sprintf("unknown build system %q", args.BuildSystem)}
	}
	hasPackage := func(string) bool { return true }
	if e.index != nil {
		hasPackage = e.index.HasPackage
	}
	tmpl := bs.DefaultBuildTemplate(hasPackage)
	return ok(map[string]any{
		"language":       args.Language,
		"build_system":   args.BuildSystem,
		"build_base":     tmpl.BuildBaseImage,
		"runtime_base":   tmpl.RuntimeBaseImage,
		"build_packages": tmpl.BuildPackages,
		"runtime_packages": tmpl.RuntimePackages,
		"build_commands": tmpl.BuildCommands,
		"cache_paths":    tmpl.CachePaths,
		"artifacts":      tmpl.Artifacts,
		"common_ports":   tmpl.CommonPorts,
		"copy":           tmpl.Copy,
	})
}

// --- submit_detection ---

func (e *Executor) submitDetection(raw json.RawMessage) Result {
	build, err := e.ParseSubmission(raw)
	if err != nil {
		return Result{Err: err.Error()}
	}
	return ok(build)
}

// ParseSubmission parses submit_detection arguments into a
// UniversalBuild and runs the Validator over it. The tool-calling loop
// uses this directly to obtain the terminal artifact.
func (e *Executor) ParseSubmission(raw json.RawMessage) (ubuild.UniversalBuild, error) {
	// Accept both {"universal_build": {...}} and the bare object; models
	// produce either shape depending on how they read the schema.
	var wrapper struct {
		UniversalBuild *ubuild.UniversalBuild `json:"universal_build"`
	}
	var build ubuild.UniversalBuild
	if err := json.Unmarshal(raw, &wrapper); err == nil && wrapper.UniversalBuild != nil {
		build = *wrapper.UniversalBuild
	} else if err := json.Unmarshal(raw, &build); err != nil {
		return ubuild.UniversalBuild{}, fmt.Errorf("submit_detection arguments are not a UniversalBuild: %w", err)
	}

	result := validator.Validate(build, e.index)
	if err := result.Error(); err != nil {
		return ubuild.UniversalBuild{}, err
	}
	return build, nil
}

// --- shared walking ---

func (e *Executor) excludedSet() map[string]struct{} {
	set := map[string]struct{}{}
	for _, d := range e.registry.AllExcludedDirs() {
		set[d] = struct{}{}
	}
	return set
}

// walkBounded visits regular files under base up to depth levels deep,
// as slash-relative paths from the repo root, pruning registry-excluded
// and hidden directories. visit returns false to stop early.
func (e *Executor) walkBounded(base string, depth int, visit func(rel string) bool) {
	excluded := e.excludedSet()
	filepath.WalkDir(base, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		relToBase, relErr := filepath.Rel(base, path)
		if relErr != nil || relToBase == "." {
			return nil
		}
		if d.IsDir() {
			if _, skip := excluded[d.Name()]; skip || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if strings.Count(relToBase, string(filepath.Separator)) >= depth {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		relToRoot, relErr := filepath.Rel(e.root, path)
		if relErr != nil {
			return nil
		}
		if !visit(filepath.ToSlash(relToRoot)) {
			return filepath.SkipAll
		}
		return nil
	})
}
