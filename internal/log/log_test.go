package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{
		Component: component,
		Handler:   slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, ComponentLedger)
	l.Info("loaded", FieldRows, 12)
	l.WithComponent(ComponentWorker).Warn("slow")

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("got %d lines", len(lines))
	}
	if lines[0][FieldComponent] != ComponentLedger || lines[0][FieldRows] != float64(12) {
		t.Fatalf("first line = %v", lines[0])
	}
	if lines[1][FieldComponent] != ComponentWorker {
		t.Fatalf("second line = %v", lines[1])
	}
	if l.Component() != ComponentLedger {
		t.Fatalf("WithComponent must not mutate the receiver")
	}
}

func TestFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelWarn, Format: "JSON", Output: &buf})
	l.Info("hidden")
	l.Warn("shown", "k", "v")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0]["msg"] != "shown" {
		t.Fatalf("lines = %v", lines)
	}
	if lines[0][FieldComponent] != ComponentApp {
		t.Fatalf("empty component should default to app, got %v", lines[0][FieldComponent])
	}

	buf.Reset()
	New(Config{Output: &buf, Component: ComponentCLI}).Info("plain")
	if !strings.Contains(buf.String(), "component=cli") {
		t.Fatalf("text output = %q", buf.String())
	}
}

func TestLogFields(t *testing.T) {
	f := NewFields().
		WithComponent(ComponentCopilot).
		WithError(nil).
		WithOperation(OpAsk).
		WithQuery("ebitda?", "ebitda_analysis", "2023-06").
		WithSnapshot(3, "memory", 40)

	if _, ok := f[FieldError]; ok {
		t.Fatalf("nil error should be skipped")
	}
	if f[FieldIntent] != "ebitda_analysis" || f[FieldSnapshotVersion] != uint64(3) {
		t.Fatalf("fields = %v", f)
	}
	f.WithError(errors.New("boom"))
	if f[FieldError] != "boom" {
		t.Fatalf("error field = %v", f[FieldError])
	}
	if got := len(f.ToSlice()); got != 2*len(f) {
		t.Fatalf("ToSlice len = %d", got)
	}
}

func TestMiddlewareAndFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := newBufferLogger(&buf, ComponentHTTP)

	var seen *Logger
	h := Middleware(base)(ComponentMiddleware(ComponentAPI)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/ask", nil))

	if seen == nil || seen.Component() != ComponentAPI {
		t.Fatalf("expected api component logger, got %+v", seen)
	}
	if got := FromContext(context.Background()).Component(); got != "unknown" {
		t.Fatalf("fallback component = %q", got)
	}
}

func TestStructuredLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newBufferLogger(&buf, ComponentTrace))
	ctx := context.Background()
	r := httptest.NewRequest(http.MethodPost, "/ask?x=1", nil)

	sl.LogHTTPEnd(ctx, r, http.StatusOK, 3, "10.0.0.1")
	sl.LogHTTPEnd(ctx, r, http.StatusTooManyRequests, 1, "10.0.0.1")
	sl.LogHTTPEnd(ctx, r, http.StatusInternalServerError, 9, "10.0.0.1")
	sl.LogError(ctx, "reload failed", errors.New("disk"), OpReload, nil)

	lines := decodeLines(t, &buf)
	want := []string{"INFO", "WARN", "ERROR", "ERROR"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines", len(lines))
	}
	for i, lvl := range want {
		if lines[i]["level"] != lvl {
			t.Errorf("line %d level = %v, want %s", i, lines[i]["level"], lvl)
		}
	}
	if lines[3][FieldError] != "disk" || lines[3][FieldOperation] != OpReload {
		t.Fatalf("error line = %v", lines[3])
	}
}
