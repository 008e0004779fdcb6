// Package testutil provides shared test fixtures: the study catalog and
// loggers that write through the test log.
package testutil

import (
	"context"
	"log/slog"
	"sync"
	"testing"
)

// NewTestLogger returns a logger that writes to t.Log().
// Logs only appear on test failure or when running with -v.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	return slog.New(newTestHandler(t))
}

func newTestHandler(t testing.TB) slog.Handler {
	return slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
}

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (n int, err error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

// Record is one captured log record with its attributes flattened,
// including those added through Logger.With.
type Record struct {
	Message string
	Attrs   map[string]any
}

// LogRecorder captures records for assertions.
type LogRecorder struct {
	mu      sync.Mutex
	records []Record
}

// NewLogRecorder returns a logger that writes to t.Log() and also captures
// every record in the returned recorder.
func NewLogRecorder(t testing.TB) (*slog.Logger, *LogRecorder) {
	t.Helper()
	rec := &LogRecorder{}
	return slog.New(&recordHandler{rec: rec, next: newTestHandler(t)}), rec
}

// Records returns the captured records with the given message.
func (r *LogRecorder) Records(msg string) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Record
	for _, rec := range r.records {
		if rec.Message == msg {
			out = append(out, rec)
		}
	}
	return out
}

type recordHandler struct {
	rec   *LogRecorder
	attrs []slog.Attr
	next  slog.Handler
}

func (h *recordHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.Resolve().Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Resolve().Any()
		return true
	})

	h.rec.mu.Lock()
	h.rec.records = append(h.rec.records, Record{Message: r.Message, Attrs: attrs})
	h.rec.mu.Unlock()
	return h.next.Handle(ctx, r)
}

func (h *recordHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &recordHandler{
		rec:   h.rec,
		attrs: append(append([]slog.Attr(nil), h.attrs...), attrs...),
		next:  h.next.WithAttrs(attrs),
	}
}

// WithGroup keeps attributes flat; the compiler does not log groups.
func (h *recordHandler) WithGroup(name string) slog.Handler {
	return &recordHandler{rec: h.rec, attrs: h.attrs, next: h.next.WithGroup(name)}
}
