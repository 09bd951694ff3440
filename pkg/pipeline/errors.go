package pipeline

import (
	"errors"
	"fmt"
)

// ErrInsufficientEvidence is returned by a phase's deterministic half
// when static signals alone cannot fill its slot; the orchestrator
// translates it into an LLM fallback (Full mode) or a hard failure
// (StaticOnly mode).
var ErrInsufficientEvidence = errors.New("insufficient deterministic evidence")

// PhaseError wraps any failure with the phase that produced it, so a
// caller sees "phase dependencies: parsing Cargo.toml: ..." instead of a
// bare cause.
type PhaseError struct {
	Phase string
	Err   error
}

func (e *PhaseError) Error() string { return fmt.Sprintf("phase %s: %v", e.Phase, e.Err) }
func (e *PhaseError) Unwrap() error { return e.Err }

// UnsetSlotError reports a phase reading a slot no earlier phase wrote.
// This is a sequencing bug in the pipeline itself, not a property of the
// analyzed repository.
type UnsetSlotError struct {
	Slot string
}

func (e *UnsetSlotError) Error() string {
	return fmt.Sprintf("pipeline slot %q read before it was written", e.Slot)
}

// IterationError reports the tool-calling loop giving up: either the
// model failed to call any tool twice in a row, or max iterations were
// exhausted without a terminal submit_detection.
type IterationError struct {
	Iterations int
	Reason     string
}

func (e *IterationError) Error() string {
	return fmt.Sprintf("tool loop failed after %d iteration(s): %s", e.Iterations, e.Reason)
}
