package stack

import "context"

// The remaining fallback wrappers mirror LLMBuildSystemFallback for the
// other three ID families: each asks the Classifier one narrow question
// and memoizes the discovered Custom name in its cell, so id() keeps
// answering the same technology for the rest of the analysis.

// LLMLanguageFallback is the Language of last resort.
type LLMLanguageFallback struct {
	classifier Classifier
	cell       llmCell
}

func NewLLMLanguageFallback(c Classifier) *LLMLanguageFallback {
	return &LLMLanguageFallback{classifier: c}
}

func (f *LLMLanguageFallback) ID() LanguageId {
	if name, ok := f.cell.get(); ok {
		return CustomLanguage(name)
	}
	return CustomLanguage("unknown")
}

// Classify feeds a content preview through the classifier, memoizing a
// confident answer. The registry does not call it: DetectStack leaves the
// language empty when no registered language pairs with the build system.
func (f *LLMLanguageFallback) Classify(ctx context.Context, filename string, content []byte) (LanguageId, Confidence, bool) {
	name, conf, err := f.classifier.ClassifyStack(ctx, "programming language", previewOf(filename, content))
	if err != nil || conf < minFallbackConfidence {
		return LanguageId{}, 0, false
	}
	f.cell.setIfEmpty(name)
	return CustomLanguage(name), NewConfidence(conf), true
}

func (f *LLMLanguageFallback) CompatibleBuildSystems() []BuildSystemId { return nil }
func (f *LLMLanguageFallback) PortPatterns() []string                  { return nil }
func (f *LLMLanguageFallback) EnvPatterns() []string                   { return nil }
func (f *LLMLanguageFallback) DefaultPort() int                        { return 0 }
func (f *LLMLanguageFallback) DefaultHealthEndpoint() string           { return "" }

// LLMFrameworkFallback is the Framework of last resort. Framework
// detection feeds on parsed dependency names, so its preview is the
// dependency list rather than raw manifest bytes.
type LLMFrameworkFallback struct {
	classifier Classifier
	language   LanguageId
	cell       llmCell
}

func NewLLMFrameworkFallback(c Classifier, lang LanguageId) *LLMFrameworkFallback {
	return &LLMFrameworkFallback{classifier: c, language: lang}
}

func (f *LLMFrameworkFallback) ID() FrameworkId {
	if name, ok := f.cell.get(); ok {
		return CustomFramework(name)
	}
	return CustomFramework("unknown")
}

func (f *LLMFrameworkFallback) Language() LanguageId { return f.language }

func (f *LLMFrameworkFallback) Detect(deps []PackageRef, fileTree []string) (bool, Confidence) {
	preview := ""
	for _, d := range deps {
		preview += d.Name + "\n"
	}
	name, conf, err := f.classifier.ClassifyStack(context.Background(), "application framework", preview)
	if err != nil || conf < minFallbackConfidence {
		return false, 0
	}
	f.cell.setIfEmpty(name)
	return true, NewConfidence(conf)
}

func (f *LLMFrameworkFallback) DefaultPort() int              { return 0 }
func (f *LLMFrameworkFallback) DefaultHealthEndpoint() string { return "" }

// LLMOrchestratorFallback is the Orchestrator of last resort.
type LLMOrchestratorFallback struct {
	classifier Classifier
	cell       llmCell
}

func NewLLMOrchestratorFallback(c Classifier) *LLMOrchestratorFallback {
	return &LLMOrchestratorFallback{classifier: c}
}

func (f *LLMOrchestratorFallback) ID() OrchestratorId {
	if name, ok := f.cell.get(); ok {
		return CustomOrchestrator(name)
	}
	return CustomOrchestrator("unknown")
}

func (f *LLMOrchestratorFallback) ConfigFilenames() []string { return nil }

func (f *LLMOrchestratorFallback) Detect(filename string, content []byte) (bool, Confidence) {
	name, conf, err := f.classifier.ClassifyStack(context.Background(), "monorepo orchestrator", previewOf(filename, content))
	if err != nil || conf < minFallbackConfidence {
		return false, 0
	}
	f.cell.setIfEmpty(name)
	return true, NewConfidence(conf)
}
