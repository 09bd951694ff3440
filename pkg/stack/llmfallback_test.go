package stack

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubClassifier struct {
	name       string
	confidence float64
	err        error
	calls      int
}

func (s *stubClassifier) ClassifyStack(ctx context.Context, kind, preview string) (string, float64, error) {
	s.calls++
	return s.name, s.confidence, s.err
}

func TestBuildSystemFallbackMemoizesDiscoveredName(t *testing.T) {
	classifier := &stubClassifier{name: "bazel", confidence: 0.9}
	fb := NewLLMBuildSystemFallback(classifier)

	assert.True(t, fb.ID().Equal(CustomBuildSystem("unknown")))

	ok, conf := fb.Detect("BUILD.bazel", []byte("cc_binary(name = \"app\")"))
	assert.True(t, ok)
	assert.InDelta(t, 0.9, conf.Float64(), 0.001)

	// Subsequent ID queries answer the discovered name without another
	// classification.
	assert.True(t, fb.ID().Equal(CustomBuildSystem("bazel")))
	assert.True(t, fb.ID().Equal(CustomBuildSystem("bazel")))
	assert.Equal(t, 1, classifier.calls)
}

func TestBuildSystemFallbackRejectsLowConfidence(t *testing.T) {
	fb := NewLLMBuildSystemFallback(&stubClassifier{name: "maybe", confidence: 0.4})

	ok, _ := fb.Detect("strange.build", []byte("?"))
	assert.False(t, ok)
	assert.True(t, fb.ID().Equal(CustomBuildSystem("unknown")))
}

func TestBuildSystemFallbackClassifierErrorIsNoMatch(t *testing.T) {
	fb := NewLLMBuildSystemFallback(&stubClassifier{err: errors.New("offline")})

	ok, _ := fb.Detect("strange.build", []byte("?"))
	assert.False(t, ok)
}

func TestLanguageFallbackMemoizes(t *testing.T) {
	classifier := &stubClassifier{name: "Zig", confidence: 0.8}
	fb := NewLLMLanguageFallback(classifier)

	id, conf, ok := fb.Classify(context.Background(), "build.zig", []byte("const std = @import(\"std\");"))
	assert.True(t, ok)
	assert.True(t, id.Equal(CustomLanguage("zig")))
	assert.InDelta(t, 0.8, conf.Float64(), 0.001)
	assert.True(t, fb.ID().Equal(CustomLanguage("zig")))
}

func TestOrchestratorFallbackDetect(t *testing.T) {
	fb := NewLLMOrchestratorFallback(&stubClassifier{name: "rush", confidence: 0.7})

	ok, _ := fb.Detect("rush.json", []byte("{}"))
	assert.True(t, ok)
	assert.True(t, fb.ID().Equal(CustomOrchestrator("rush")))
}
