package stack

import (
	"fmt"
	"sort"
)

// Registry is the single authority mapping manifest files to a
// DetectionStack. It is built once via NewRegistry(WithDefaults(), ...)
// and is immutable and safe for concurrent reads after construction.
type Registry struct {
	buildSystems  map[BuildSystemId]BuildSystem
	languages     map[LanguageId]Language
	frameworks    map[FrameworkId]Framework
	orchestrators map[OrchestratorId]Orchestrator

	// registrationOrder breaks equal-priority manifest-pattern ties
	// deterministically, in the order build systems were registered.
	registrationOrder []BuildSystemId
}

type Option func(*Registry)

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		buildSystems:  map[BuildSystemId]BuildSystem{},
		languages:     map[LanguageId]Language{},
		frameworks:    map[FrameworkId]Framework{},
		orchestrators: map[OrchestratorId]Orchestrator{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func WithBuildSystem(bs BuildSystem) Option {
	return func(r *Registry) {
		r.buildSystems[bs.ID()] = bs
		r.registrationOrder = append(r.registrationOrder, bs.ID())
	}
}

func WithLanguage(l Language) Option {
	return func(r *Registry) { r.languages[l.ID()] = l }
}

func WithFramework(f Framework) Option {
	return func(r *Registry) { r.frameworks[f.ID()] = f }
}

func WithOrchestrator(o Orchestrator) Option {
	return func(r *Registry) { r.orchestrators[o.ID()] = o }
}

// candidate is an in-progress match used only to resolve manifest ties.
type candidate struct {
	bs         BuildSystem
	confidence Confidence
	priority   int
	order      int
}

// DetectStack is the deterministic detection entry point: it reports the
// DetectionStack for filename/content, or ok=false if no registered build
// system claims it.
func (r *Registry) DetectStack(manifestPath, filename string, content []byte) (DetectionStack, bool) {
	var candidates []candidate
	var patternless []int
	for i, id := range r.registrationOrder {
		bs := r.buildSystems[id]
		if len(bs.ManifestPatterns()) == 0 {
			patternless = append(patternless, i)
			continue
		}
		ok, conf := bs.Detect(filename, content)
		if !ok {
			continue
		}
		priority := 0
		for _, p := range bs.ManifestPatterns() {
			if matchGlob(p.Glob, filename) && p.Priority > priority {
				priority = p.Priority
			}
		}
		candidates = append(candidates, candidate{bs: bs, confidence: conf, priority: priority, order: i})
	}
	// Pattern-less build systems (the LLM fallback) are asked only when nothing else claimed the file.
	for _, i := range patternless {
		if len(candidates) > 0 {
			break
		}
		bs := r.buildSystems[r.registrationOrder[i]]
		if ok, conf := bs.Detect(filename, content); ok {
			candidates = append(candidates, candidate{bs: bs, confidence: conf, order: i})
		}
	}
	if len(candidates) == 0 {
		return DetectionStack{}, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].priority != candidates[j].priority {
			return candidates[i].priority > candidates[j].priority
		}
		return candidates[i].order < candidates[j].order
	})
	winner := candidates[0]

	lang, _ := r.languageFor(winner.bs.ID())
	stack := DetectionStack{
		BuildSystem:  winner.bs.ID(),
		Language:     lang,
		Confidence:   winner.confidence,
		ManifestPath: manifestPath,
	}
	return stack, true
}

// languageFor returns the language compatible with bs whose ID sorts
// first, so a build system shared by several languages (npm: javascript
// and typescript) always resolves to the same one.
func (r *Registry) languageFor(bs BuildSystemId) (LanguageId, bool) {
	var found []LanguageId
	for _, lang := range r.languages {
		for _, compat := range lang.CompatibleBuildSystems() {
			if compat.Equal(bs) {
				found = append(found, lang.ID())
				break
			}
		}
	}
	if len(found) == 0 {
		return LanguageId{}, false
	}
	sort.Slice(found, func(i, j int) bool { return found[i].String() < found[j].String() })
	return found[0], true
}

// DetectFrameworkFromDeps finds the best matching framework for lang,
// called once the Structure phase has parsed dependencies; framework
// detection needs parsed package names, not raw manifest bytes, so it is
// not folded into DetectStack itself.
// given a parsed dependency list and a file-tree slice (for frameworks
// whose signal is a config file rather than a dependency name).
func (r *Registry) DetectFrameworkFromDeps(lang LanguageId, deps []PackageRef, fileTree []string) (FrameworkId, Confidence, bool) {
	var bestID FrameworkId
	var best Confidence
	found := false
	for _, fw := range r.frameworks {
		if !fw.Language().Equal(lang) {
			continue
		}
		ok, conf := fw.Detect(deps, fileTree)
		if ok && conf > best {
			best = conf
			bestID = fw.ID()
			found = true
		}
	}
	return bestID, best, found
}

// ParseDependenciesByManifest dispatches to the matching build system's
// parser for content, returning an error if no build system claims the
// manifest at all.
func (r *Registry) ParseDependenciesByManifest(filename string, content []byte) ([]PackageRef, error) {
	for _, id := range r.registrationOrder {
		bs := r.buildSystems[id]
		if ok, _ := bs.Detect(filename, content); ok {
			return bs.ParseDependencies(content)
		}
	}
	return nil, fmt.Errorf("no build system recognizes manifest %q", filename)
}

// IsWorkspaceRoot reports whether any registered build system recognizes
// filename/content as declaring a multi-package workspace.
func (r *Registry) IsWorkspaceRoot(filename string, content []byte) (bool, []string) {
	for _, id := range r.registrationOrder {
		bs := r.buildSystems[id]
		if ok, _ := bs.Detect(filename, content); !ok {
			continue
		}
		if isRoot, members := bs.IsWorkspaceRoot(filename, content); isRoot {
			return true, members
		}
	}
	return false, nil
}

// AllExcludedDirs is the set-union of every registered build system's
// excluded directories, used by the Scanner to prune its walk.
func (r *Registry) AllExcludedDirs() []string {
	seen := map[string]struct{}{".git": {}}
	for _, bs := range r.buildSystems {
		for _, d := range bs.ExcludedDirs() {
			seen[d] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// AllWorkspaceConfigs lists every manifest glob that could declare a
// workspace, across all registered build systems, for the Scanner to flag.
func (r *Registry) AllWorkspaceConfigs() []string {
	seen := map[string]struct{}{}
	for _, bs := range r.buildSystems {
		for _, p := range bs.ManifestPatterns() {
			seen[p.Glob] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for g := range seen {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) GetBuildSystem(id BuildSystemId) (BuildSystem, bool) {
	bs, ok := r.buildSystems[id]
	return bs, ok
}

func (r *Registry) GetLanguage(id LanguageId) (Language, bool) {
	l, ok := r.languages[id]
	return l, ok
}

func (r *Registry) GetFramework(id FrameworkId) (Framework, bool) {
	f, ok := r.frameworks[id]
	return f, ok
}

func (r *Registry) GetOrchestrator(id OrchestratorId) (Orchestrator, bool) {
	o, ok := r.orchestrators[id]
	return o, ok
}

// DetectOrchestrator checks filename/content against every registered
// orchestrator, returning the first (and in practice only) match.
func (r *Registry) DetectOrchestrator(filename string, content []byte) (OrchestratorId, Confidence, bool) {
	for _, o := range r.orchestrators {
		if ok, conf := o.Detect(filename, content); ok {
			return o.ID(), conf, true
		}
	}
	return OrchestratorId{}, 0, false
}
