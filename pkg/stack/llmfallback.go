package stack

import (
	"context"
	"fmt"
	"sync"
)

// Classifier is the minimal surface the Stack Registry needs from the LLM
// abstraction to discover a technology outside its known catalog. It is
// deliberately small and decoupled from pkg/llmchat's richer chat-with-
// tools contract: the registry only ever asks one narrow question.
type Classifier interface {
	// ClassifyStack asks what language/build-system/framework/
	// orchestrator a bounded content preview belongs to, given the kind
	// of thing being classified (e.g. "build system", "framework").
	ClassifyStack(ctx context.Context, kind, preview string) (name string, confidence float64, err error)
}

// llmCell holds the single memoized outcome of an LLM fallback wrapper:
// once a query succeeds, id() must keep returning the discovered name
// for the remainder of the analysis.
type llmCell struct {
	mu   sync.Mutex
	name string
	set  bool
}

func (c *llmCell) get() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name, c.set
}

func (c *llmCell) setIfEmpty(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.set {
		c.name = name
		c.set = true
	}
}

const minFallbackConfidence = 0.5

// LLMBuildSystemFallback wraps a Classifier as a BuildSystem of last
// resort: the registry only reaches it when no registered build system's
// Detect matched anything for a manifest. Acceptance requires a reported
// confidence >= 0.5 per spec; otherwise the manifest is left undetected
// rather than force-fit.
type LLMBuildSystemFallback struct {
	classifier Classifier
	cell       llmCell
}

func NewLLMBuildSystemFallback(c Classifier) *LLMBuildSystemFallback {
	return &LLMBuildSystemFallback{classifier: c}
}

func (f *LLMBuildSystemFallback) ID() BuildSystemId {
	if name, ok := f.cell.get(); ok {
		return CustomBuildSystem(name)
	}
	return CustomBuildSystem("unknown")
}

func (f *LLMBuildSystemFallback) ManifestPatterns() []ManifestPattern { return nil }

func (f *LLMBuildSystemFallback) Detect(filename string, content []byte) (bool, Confidence) {
	name, conf, err := f.classifier.ClassifyStack(context.Background(), "build system", previewOf(filename, content))
	if err != nil || conf < minFallbackConfidence {
		return false, 0
	}
	f.cell.setIfEmpty(name)
	return true, NewConfidence(conf)
}

func (f *LLMBuildSystemFallback) ParseDependencies(content []byte) ([]PackageRef, error) {
	return nil, fmt.Errorf("LLM-discovered build system %q has no deterministic dependency parser", f.ID())
}

func (f *LLMBuildSystemFallback) IsWorkspaceRoot(filename string, content []byte) (bool, []string) {
	return false, nil
}

func (f *LLMBuildSystemFallback) DefaultBuildTemplate(wolfiHasPackage func(string) bool) BuildTemplate {
	return BuildTemplate{}
}

func (f *LLMBuildSystemFallback) ExcludedDirs() []string { return nil }

// previewOf caps a manifest preview at 2000 bytes, enough for an LLM to
// identify a technology without spending the whole context budget on one
// fallback classification.
func previewOf(filename string, content []byte) string {
	const max = 2000
	if len(content) > max {
		content = content[:max]
	}
	return fmt.Sprintf("filename: %s\n\n%s", filename, string(content))
}
