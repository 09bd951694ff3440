// Package extractors implements the deterministic runtime-surface
// extractors (spec.md §4.3): ports, environment variables and health
// endpoints, read from Dockerfiles, compose files, Kubernetes manifests,
// config files, .env files and language-specific code patterns, without
// ever executing the repository's code.
//
// Sub-parsers run in descending confidence order; the first source seen
// for any given value is retained and later duplicates are dropped, which
// is exactly the spec's dedup rule since ordering already encodes the
// confidence floors.
package extractors

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/containifyci/repostack/pkg/stack"
)

// Source names where a value was found; its Confidence floor is fixed
// per spec.md §4.3.
type Source string

const (
	SourceDockerfile       Source = "dockerfile"
	SourceKubernetes       Source = "kubernetes"
	SourceCompose          Source = "docker-compose"
	SourceConfigFile       Source = "config-file"
	SourceEnvFile          Source = "env-file"
	SourceCodePattern      Source = "code-pattern"
	SourceFrameworkDefault Source = "framework-default"
)

// ConfidenceFor returns the fixed floor for a source.
func ConfidenceFor(s Source) stack.Confidence {
	switch s {
	case SourceDockerfile:
		return 1.0
	case SourceKubernetes:
		return 0.95
	case SourceCompose, SourceConfigFile:
		return 0.95
	case SourceEnvFile:
		return 0.9
	case SourceCodePattern:
		return 0.8
	default:
		return 0.7
	}
}

// PortInfo is one discovered listening port.
type PortInfo struct {
	Port       int
	Source     Source
	Confidence stack.Confidence
}

// EnvVarInfo is one discovered environment variable, with a default
// value when the source supplies one (.env assignments, compose lists).
type EnvVarInfo struct {
	Name       string
	Default    string
	Source     Source
	Confidence stack.Confidence
}

// HealthInfo is one discovered HTTP health endpoint path.
type HealthInfo struct {
	Path       string
	Source     Source
	Confidence stack.Confidence
}

// Target is the per-service view the extractors operate on: where the
// service lives and which language/framework (if known) supplies code
// patterns and last-resort defaults.
type Target struct {
	RepoRoot   string
	ServiceDir string // relative to RepoRoot; "" for the root itself
	Language   stack.Language
	Framework  stack.Framework
}

func (t Target) absDir() string {
	if t.ServiceDir == "" {
		return t.RepoRoot
	}
	return filepath.Join(t.RepoRoot, filepath.FromSlash(t.ServiceDir))
}

// maxFileRead caps every extractor file read; runtime-surface signals
// live near the top of the files that carry them.
const maxFileRead = 256 * 1024

// ExtractPorts runs every port sub-parser over the target, deduplicated
// by port number, highest-confidence source first.
func ExtractPorts(t Target) []PortInfo {
	var found []PortInfo
	seen := map[int]struct{}{}
	add := func(port int, src Source) {
		if port <= 0 || port > 65535 {
			return
		}
		if _, dup := seen[port]; dup {
			return
		}
		seen[port] = struct{}{}
		found = append(found, PortInfo{Port: port, Source: src, Confidence: ConfidenceFor(src)})
	}

	for _, p := range dockerfilePorts(t) {
		add(p, SourceDockerfile)
	}
	for _, p := range kubernetesPorts(t) {
		add(p, SourceKubernetes)
	}
	for _, p := range configFilePorts(t) {
		add(p, SourceConfigFile)
	}
	for _, p := range envFilePorts(t) {
		add(p, SourceEnvFile)
	}
	for _, p := range codePatternPorts(t) {
		add(p, SourceCodePattern)
	}

	if len(found) == 0 {
		if t.Framework != nil && t.Framework.DefaultPort() > 0 {
			add(t.Framework.DefaultPort(), SourceFrameworkDefault)
		} else if t.Language != nil && t.Language.DefaultPort() > 0 {
			add(t.Language.DefaultPort(), SourceFrameworkDefault)
		}
	}
	return found
}

// ExtractEnvVars runs every env-var sub-parser, deduplicated by name. A
// duplicate from a lower-confidence source may still contribute the
// default value when the retained entry has none.
func ExtractEnvVars(t Target) []EnvVarInfo {
	var found []EnvVarInfo
	index := map[string]int{}
	add := func(name, def string, src Source) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		if i, dup := index[name]; dup {
			if found[i].Default == "" && def != "" {
				found[i].Default = def
			}
			return
		}
		index[name] = len(found)
		found = append(found, EnvVarInfo{Name: name, Default: def, Source: src, Confidence: ConfidenceFor(src)})
	}

	for _, e := range composeEnvVars(t) {
		add(e.Name, e.Default, SourceCompose)
	}
	for _, e := range kubernetesEnvVars(t) {
		add(e.Name, e.Default, SourceKubernetes)
	}
	for _, e := range envFileVars(t) {
		add(e.Name, e.Default, SourceEnvFile)
	}
	for _, name := range codePatternEnvVars(t) {
		add(name, "", SourceCodePattern)
	}
	return found
}

// ExtractHealth runs every health-endpoint sub-parser, deduplicated by
// path, with the framework/language default as last resort.
func ExtractHealth(t Target) []HealthInfo {
	var found []HealthInfo
	seen := map[string]struct{}{}
	add := func(path string, src Source) {
		path = strings.TrimSpace(path)
		if path == "" || !strings.HasPrefix(path, "/") {
			return
		}
		if _, dup := seen[path]; dup {
			return
		}
		seen[path] = struct{}{}
		found = append(found, HealthInfo{Path: path, Source: src, Confidence: ConfidenceFor(src)})
	}

	for _, h := range dockerfileHealthEndpoints(t) {
		add(h, SourceDockerfile)
	}
	for _, h := range kubernetesHealthEndpoints(t) {
		add(h, SourceKubernetes)
	}
	for _, h := range codePatternHealthEndpoints(t) {
		add(h, SourceCodePattern)
	}

	if len(found) == 0 {
		if t.Framework != nil && t.Framework.DefaultHealthEndpoint() != "" {
			add(t.Framework.DefaultHealthEndpoint(), SourceFrameworkDefault)
		} else if t.Language != nil && t.Language.DefaultHealthEndpoint() != "" {
			add(t.Language.DefaultHealthEndpoint(), SourceFrameworkDefault)
		}
	}
	return found
}

// readServiceFile reads one well-known file under the target dir, or
// nil if absent/unreadable. Individual read failures drop a single
// sub-parser's signal, never the extraction.
func readServiceFile(t Target, name string) []byte {
	data, err := os.ReadFile(filepath.Join(t.absDir(), filepath.FromSlash(name)))
	if err != nil {
		return nil
	}
	if len(data) > maxFileRead {
		data = data[:maxFileRead]
	}
	return data
}

// listServiceFiles lists regular files under the target dir up to depth
// levels deep, as slash-relative paths, skipping hidden and vendored
// directories. Used by the config-file and code-pattern sub-parsers.
func listServiceFiles(t Target, depth int) []string {
	root := t.absDir()
	var out []string
	skip := map[string]struct{}{
		"node_modules": {}, "target": {}, "vendor": {}, "dist": {},
		"build": {}, "__pycache__": {}, ".git": {},
	}
	filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		if d.IsDir() {
			if _, ok := skip[d.Name()]; ok || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if strings.Count(rel, string(filepath.Separator)) >= depth {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	return out
}
