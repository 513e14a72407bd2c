// Copyright (c) 2025 otelcx Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package jsonlog provides a [log/slog] handler which emits one JSON
// object per line, enriched with the trace and span ids of the
// ambient span so log lines can be correlated with traces.
package jsonlog

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Handler is a [slog.Handler] which writes JSON log lines with the
// fields: timestamp, level, logger, message, module, function, line,
// and, when the context carries a valid span, trace_id and span_id.
// Attribute values of the record are folded in as extra top level
// fields; an attribute holding an error is emitted as "exception".
type Handler struct {
	mu    *sync.Mutex
	w     io.Writer
	level slog.Leveler
	name  string
	group string
	attrs []slog.Attr
}

// Option configures a [Handler].
type Option func(*Handler)

// LoggerName sets the value of the "logger" field.
func LoggerName(name string) Option {
	return func(h *Handler) {
		h.name = name
	}
}

// MinLevel sets the minimum level the handler will emit.
func MinLevel(level slog.Leveler) Option {
	return func(h *Handler) {
		h.level = level
	}
}

// New returns a Handler writing to w.
func New(w io.Writer, opts ...Option) *Handler {
	h := &Handler{
		mu:    &sync.Mutex{},
		w:     w,
		level: slog.LevelInfo,
		name:  "app",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Enabled implements the [slog.Handler] interface.
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements the [slog.Handler] interface.
func (h *Handler) Handle(ctx context.Context, rec slog.Record) error {
	entry := map[string]any{
		"timestamp": rec.Time.UTC().Format(time.RFC3339Nano),
		"level":     rec.Level.String(),
		"logger":    h.name,
		"message":   rec.Message,
	}
	if h.group != "" {
		entry["group"] = h.group
	}

	if rec.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{rec.PC})
		frame, _ := frames.Next()
		entry["module"] = moduleName(frame.Function)
		entry["function"] = functionName(frame.Function)
		entry["line"] = frame.Line
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		entry["trace_id"] = sc.TraceID().String()
		entry["span_id"] = sc.SpanID().String()
	}

	for _, attr := range h.attrs {
		addAttr(entry, attr)
	}
	rec.Attrs(func(attr slog.Attr) bool {
		addAttr(entry, attr)
		return true
	})

	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.w.Write(b)
	return err
}

// WithAttrs implements the [slog.Handler] interface.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

// WithGroup implements the [slog.Handler] interface. The flat JSON
// shape is kept: instead of nesting, the group name is emitted as a
// single "group" field, with nested groups joined by dots.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.group = name
	if h.group != "" {
		clone.group = h.group + "." + name
	}
	clone.attrs = append([]slog.Attr{}, h.attrs...)
	return &clone
}

func addAttr(entry map[string]any, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	v := attr.Value.Resolve()
	if err, ok := v.Any().(error); ok {
		entry["exception"] = err.Error()
		return
	}
	entry[attr.Key] = v.Any()
}

// moduleName extracts the package path base from a fully qualified
// function name like "github.com/org/repo/pkg.(*T).Method".
func moduleName(fn string) string {
	if fn == "" {
		return ""
	}
	base := path.Base(fn)
	if i := strings.Index(base, "."); i > 0 {
		return base[:i]
	}
	return base
}

func functionName(fn string) string {
	if fn == "" {
		return ""
	}
	base := path.Base(fn)
	if i := strings.Index(base, "."); i >= 0 {
		return base[i+1:]
	}
	return base
}

// Level maps an OTEL_LOG_LEVEL style string to a [slog.Level].
// Unknown or empty values map to info.
func Level(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
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
