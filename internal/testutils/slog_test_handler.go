package testutils

import (
	"context"
	"log/slog"
	"sync"
)

// LogEntry is a captured log record flattened to a map. The keys "level"
// and "message" hold the record level and message.
type LogEntry map[string]any

// TestSlogHandler is a memory-backed slog.Handler for asserting on logs.
// Loggers derived with With share the parent's entries.
type TestSlogHandler struct {
	state *logState
	attrs []slog.Attr
}

type logState struct {
	mu      sync.Mutex
	entries []LogEntry
}

// NewTestSlogHandler creates a new memory-backed slog handler.
func NewTestSlogHandler() *TestSlogHandler {
	return &TestSlogHandler{state: &logState{}}
}

// NewTestLogger returns a logger writing into a fresh handler, and the handler.
func NewTestLogger() (*slog.Logger, *TestSlogHandler) {
	h := NewTestSlogHandler()
	return slog.New(h), h
}

// Enabled satisfies slog.Handler; every level is captured.
func (h *TestSlogHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

// Handle satisfies slog.Handler.
func (h *TestSlogHandler) Handle(_ context.Context, r slog.Record) error {
	entry := LogEntry{
		"level":   r.Level.String(),
		"message": r.Message,
	}
	for _, a := range h.attrs {
		entry[a.Key] = a.Value.Any()
	}
	r.Attrs(func(attr slog.Attr) bool {
		entry[attr.Key] = attr.Value.Any()
		return true
	})

	h.state.mu.Lock()
	h.state.entries = append(h.state.entries, entry)
	h.state.mu.Unlock()
	return nil
}

// WithAttrs satisfies slog.Handler.
func (h *TestSlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &TestSlogHandler{state: h.state, attrs: merged}
}

// WithGroup satisfies slog.Handler. Groups are flattened.
func (h *TestSlogHandler) WithGroup(string) slog.Handler {
	return h
}

// Entries returns a copy of all captured log entries.
func (h *TestSlogHandler) Entries() []LogEntry {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()

	result := make([]LogEntry, len(h.state.entries))
	copy(result, h.state.entries)
	return result
}

// Find returns the entries with the given level and message.
func (h *TestSlogHandler) Find(level slog.Level, message string) []LogEntry {
	var found []LogEntry
	for _, e := range h.Entries() {
		if e["level"] == level.String() && e["message"] == message {
			found = append(found, e)
		}
	}
	return found
}

// Clear resets the captured log entries.
func (h *TestSlogHandler) Clear() {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()

	h.state.entries = nil
}
