// Package progresslog adapts the teacher's pretty/simple slog handlers to
// a sequential batch pipeline: no TTY progress aggregation, just a root
// text handler for machine consumption and a pretty handler for humans.
package progresslog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dusted-go/logging/prettylog"
)

type SimpleHandler struct {
	opts Options
	mu   *sync.Mutex
	out  io.Writer
}

type Options struct {
	Level slog.Leveler
}

// NewRootLog returns the default structured handler used by cmd/ when no
// human-friendly mode is requested.
func NewRootLog(logOpts slog.HandlerOptions) slog.Handler {
	return slog.NewTextHandler(os.Stdout, &logOpts)
}

// New returns the simple handler for mode "simple" and the pretty
// handler for any other mode (the --log-format default "plain"
// included).
func New(mode string, logOpts slog.HandlerOptions) slog.Handler {
	if mode == "simple" {
		return NewSimpleLog(os.Stdout, logOpts.Level)
	}
	return NewPrettyLog(logOpts)
}

func NewSimpleLog(out io.Writer, level slog.Leveler) slog.Handler {
	h := &SimpleHandler{out: out, mu: &sync.Mutex{}}
	h.opts.Level = level
	return h
}

func NewPrettyLog(logOpts slog.HandlerOptions) slog.Handler {
	return prettylog.New(&logOpts, prettylog.WithDestinationWriter(os.Stderr))
}

func (h *SimpleHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *SimpleHandler) WithGroup(name string) slog.Handler {
	return h
}

func (h *SimpleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

func (h *SimpleHandler) Handle(ctx context.Context, r slog.Record) error {
	buf := make([]byte, 0, 1024)
	buf = fmt.Appendf(buf, "%s ", r.Message)
	r.Attrs(func(a slog.Attr) bool {
		buf = h.appendAttr(buf, a)
		return true
	})
	buf = append(buf, '\n')
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf)
	return err
}

func (h *SimpleHandler) appendAttr(buf []byte, a slog.Attr) []byte {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return buf
	}
	switch a.Value.Kind() {
	case slog.KindString:
		buf = fmt.Appendf(buf, "%s: %q\t", a.Key, a.Value.String())
	case slog.KindTime:
		buf = fmt.Appendf(buf, "%s: %s\t", a.Key, a.Value.Time().Format(time.RFC3339Nano))
	case slog.KindGroup:
		attrs := a.Value.Group()
		if len(attrs) == 0 {
			return buf
		}
		if a.Key != "" {
			buf = fmt.Appendf(buf, "%s\t", a.Key)
		}
		for _, ga := range attrs {
			buf = h.appendAttr(buf, ga)
		}
	default:
		buf = fmt.Appendf(buf, "%s:%s\t", a.Key, a.Value)
	}
	return buf
}
