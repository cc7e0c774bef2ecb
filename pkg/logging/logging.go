// Package logging provides the ledger's structured logging pipeline: slog
// records carry the active trace id from the context, every message and
// string attribute passes through redaction before emission, and a pipeline
// failure falls back to a plain stderr line instead of reaching the caller.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ocn-ai/weave/pkg/redact"
)

// Handler decorates an inner slog.Handler with trace-id injection and
// redaction. Handle never returns an error: failures in the inner handler
// (or a panic from an exotic attribute type) are reported on the fallback
// writer and swallowed.
type Handler struct {
	inner    slog.Handler
	redactor *redact.Redactor
	fallback io.Writer
}

// NewHandler wraps inner with redaction and trace binding.
func NewHandler(inner slog.Handler, r *redact.Redactor) *Handler {
	return &Handler{inner: inner, redactor: r, fallback: os.Stderr}
}

// WithFallback overrides the fallback writer (tests).
func (h *Handler) WithFallback(w io.Writer) *Handler {
	h.fallback = w
	return h
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, rec slog.Record) error {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(h.fallback, "logging: dropped record %q: panic: %v\n", rec.Message, r)
		}
	}()

	out := slog.NewRecord(rec.Time, rec.Level, h.redactor.Redact(rec.Message), rec.PC)
	rec.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redactAttr(a))
		return true
	})

	traceID := TraceID(ctx)
	if traceID == "" {
		traceID = NoTrace
	}
	out.AddAttrs(slog.String("trace_id", traceID))

	if err := h.inner.Handle(ctx, out); err != nil {
		fmt.Fprintf(h.fallback, "logging: dropped record %q: %v\n", out.Message, err)
	}
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	scrubbed := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		scrubbed[i] = h.redactAttr(a)
	}
	return &Handler{inner: h.inner.WithAttrs(scrubbed), redactor: h.redactor, fallback: h.fallback}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{inner: h.inner.WithGroup(name), redactor: h.redactor, fallback: h.fallback}
}

func (h *Handler) redactAttr(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, h.redactor.Redact(a.Value.String()))
	case slog.KindGroup:
		group := a.Value.Group()
		scrubbed := make([]any, 0, len(group))
		for _, ga := range group {
			scrubbed = append(scrubbed, h.redactAttr(ga))
		}
		return slog.Group(a.Key, scrubbed...)
	default:
		return a
	}
}

// Setup installs the redacting JSON pipeline as the process-wide default
// logger and returns it.
func Setup(level string) *slog.Logger {
	inner := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: ParseLevel(level)})
	logger := slog.New(NewHandler(inner, redact.Default()))
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a config string to a slog.Level, defaulting to Info.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
