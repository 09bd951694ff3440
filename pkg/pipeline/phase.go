package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Phase is one pipeline stage. TryDeterministic fills the phase's slot
// from static evidence: a nil return means the slot was written,
// ErrInsufficientEvidence means static signals were not enough (the
// spec's None), and any other error is a hard failure. ExecuteLLM is
// the fallback half.
type Phase interface {
	Name() string
	TryDeterministic(ctx context.Context, a *AnalysisContext) error
	ExecuteLLM(ctx context.Context, a *AnalysisContext) error
}

// runPhase applies the DetectionMode execution policy (spec.md §4.6)
// to one phase and emits the phase-boundary heuristic event.
func runPhase(ctx context.Context, a *AnalysisContext, p Phase) error {
	start := time.Now()
	mode, err := executePhase(ctx, a, p)
	elapsed := time.Since(start)
	if err != nil {
		a.Log.Error("phase failed",
			zap.String("phase", p.Name()),
			zap.String("mode", mode),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return &PhaseError{Phase: p.Name(), Err: err}
	}
	a.Log.Info("phase complete",
		zap.String("phase", p.Name()),
		zap.String("mode", mode),
		zap.Duration("elapsed", elapsed))
	return nil
}

func executePhase(ctx context.Context, a *AnalysisContext, p Phase) (string, error) {
	switch a.Mode {
	case ModeStaticOnly:
		return "deterministic", p.TryDeterministic(ctx, a)
	case ModeLLMOnly:
		return "llm", p.ExecuteLLM(ctx, a)
	default: // ModeFull
		err := p.TryDeterministic(ctx, a)
		if err == nil {
			return "deterministic", nil
		}
		if !errors.Is(err, ErrInsufficientEvidence) {
			return "deterministic", err
		}
		a.Log.Info("falling back to LLM",
			zap.String("phase", p.Name()))
		return "llm-fallback", p.ExecuteLLM(ctx, a)
	}
}
