// Package heuristiclog implements the "Progress / Heuristic Logging"
// component of the detection pipeline (spec.md §2): structured events
// emitted at phase boundaries so operators can see which phases fell back
// to the LLM and why.
//
// It mirrors the component-scoped logger.Interface/WithComponent shape
// from the qlp-hq-QLP services (a zap.Logger wrapped behind a small
// interface, tagged with a component name) rather than writing directly
// to log/slog: phase-boundary events are a distinct, higher-signal stream
// from the ambient request logging pkg/progresslog handles, and zap's
// structured fields are a closer match to "one event per phase boundary,
// always with phase/mode/duration attached" than slog's handler-oriented
// API.
package heuristiclog

import (
	"go.uber.org/zap"
)

// Interface is the logging surface every pipeline phase is handed. It is
// intentionally smaller than *zap.Logger: phases only ever emit events,
// never configure the logger.
type Interface interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	WithComponent(name string) Interface
}

type logger struct {
	z *zap.Logger
}

// New wraps z as the root heuristic logger. Pass zap.NewNop() in tests
// that don't care about log output.
func New(z *zap.Logger) Interface {
	return &logger{z: z}
}

// NewProduction builds a sensible default: JSON to stderr at info level,
// matching zap.NewProduction but without the stack-trace-on-warn default
// (phase fallbacks are expected, not exceptional).
func NewProduction() (Interface, error) {
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return New(z), nil
}

func (l *logger) Debug(msg string, fields ...zap.Field) { l.z.Debug(msg, fields...) }
func (l *logger) Info(msg string, fields ...zap.Field)  { l.z.Info(msg, fields...) }
func (l *logger) Warn(msg string, fields ...zap.Field)  { l.z.Warn(msg, fields...) }
func (l *logger) Error(msg string, fields ...zap.Field) { l.z.Error(msg, fields...) }

func (l *logger) WithComponent(name string) Interface {
	return &logger{z: l.z.With(zap.String("component", name))}
}

// Noop returns a logger that discards every event, used by tests and by
// callers that don't want phase-boundary chatter.
func Noop() Interface { return New(zap.NewNop()) }
