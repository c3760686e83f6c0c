package log

import (
	"context"
	"log/slog"
	"net/http"
)

// StructuredLogger writes the recurring events (requests, answers, failures)
// with a fixed set of fields so they can be queried.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

func (sl *StructuredLogger) LogHTTPStart(ctx context.Context, r *http.Request, clientIP string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent()).
		WithClientIP(clientIP)
	sl.logger.DebugContext(ctx, "HTTP request started", fields.ToSlice()...)
}

// LogHTTPEnd logs at warn for 4xx and error for 5xx.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	switch {
	case statusCode >= 500:
		level = slog.LevelError
	case statusCode >= 400:
		level = slog.LevelWarn
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "").
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithClientIP(clientIP)
	sl.logger.emit(ctx, level, "HTTP request completed", fields.ToSlice())
}

func (sl *StructuredLogger) LogQueryAnswered(ctx context.Context, query, intent, period string, version uint64, cacheHit bool) {
	fields := NewFields().
		WithQuery(query, intent, period).
		WithOperation(OpAsk)
	fields[FieldSnapshotVersion] = version
	fields[FieldCacheHit] = cacheHit
	sl.logger.InfoContext(ctx, "Question answered", fields.ToSlice()...)
}

// LogError adds err and operation to fields, which may be nil.
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	fields.WithError(err).WithOperation(operation)
	sl.logger.ErrorContext(ctx, msg, fields.ToSlice()...)
}
