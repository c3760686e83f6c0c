// Package trace tags every request with an id and logs its start and end.
package trace

import (
	"context"
	"net/http"
	"regexp"
	"sync/atomic"
	"time"

	"cfocopilot/internal/log"

	"github.com/google/uuid"
)

// HeaderRequestID carries the id in and out.
const HeaderRequestID = "X-Request-ID"

type requestIDKey struct{}

// Only short ids made of these characters are echoed back; anything else
// is replaced so it cannot smuggle markup into logs or headers.
var saneID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Metrics is a point-in-time copy of the request counters.
type Metrics struct {
	TotalRequests  int64
	ClientErrors   int64
	FailedRequests int64 // 5xx
	MeanLatency    time.Duration
}

type Middleware struct {
	extractIP func(*http.Request) string
	logger    *log.Logger

	total        atomic.Int64
	clientErrors atomic.Int64
	serverErrors atomic.Int64
	latencyNanos atomic.Int64
}

// NewMiddleware takes the client IP extractor of the security detector so
// logs show the caller behind trusted proxies.
func NewMiddleware(extractIP func(*http.Request) string, logger *log.Logger) *Middleware {
	if logger == nil {
		logger = log.Discard()
	}
	return &Middleware{
		extractIP: extractIP,
		logger:    logger.WithComponent(log.ComponentTrace),
	}
}

func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		var clientIP string
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		id := r.Header.Get(HeaderRequestID)
		if !saneID.MatchString(id) {
			id = GenerateRequestID()
		}
		w.Header().Set(HeaderRequestID, id)

		reqLogger := m.logger.With(log.FieldRequestID, id)
		ctx := log.IntoContext(context.WithValue(r.Context(), requestIDKey{}, id), reqLogger)
		r = r.WithContext(ctx)

		sl := log.NewStructuredLogger(reqLogger)
		sl.LogHTTPStart(ctx, r, clientIP)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		m.record(rec.status, elapsed)
		sl.LogHTTPEnd(ctx, r, rec.status, elapsed.Milliseconds(), clientIP)
	})
}

func (m *Middleware) record(status int, elapsed time.Duration) {
	m.total.Add(1)
	m.latencyNanos.Add(int64(elapsed))
	switch {
	case status >= 500:
		m.serverErrors.Add(1)
	case status >= 400:
		m.clientErrors.Add(1)
	}
}

func (m *Middleware) GetMetrics() Metrics {
	out := Metrics{
		TotalRequests:  m.total.Load(),
		ClientErrors:   m.clientErrors.Load(),
		FailedRequests: m.serverErrors.Load(),
	}
	if out.TotalRequests > 0 {
		out.MeanLatency = time.Duration(m.latencyNanos.Load() / out.TotalRequests)
	}
	return out
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func GenerateRequestID() string {
	return "req_" + uuid.NewString()
}

// GetRequestID returns the id the middleware stored in ctx, if any.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
