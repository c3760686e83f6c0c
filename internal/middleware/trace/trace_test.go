package trace

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cfocopilot/internal/log"
)

func TestMiddleware_AssignsRequestID(t *testing.T) {
	m := NewMiddleware(func(*http.Request) string { return "10.0.0.1" }, nil)

	var seen string
	var ctxLogger *log.Logger
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		ctxLogger = log.FromContext(r.Context())
		w.WriteHeader(http.StatusInternalServerError)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ask", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("request id = %q", seen)
	}
	if rec.Header().Get(HeaderRequestID) != seen {
		t.Fatalf("response header %q != context id %q", rec.Header().Get(HeaderRequestID), seen)
	}
	if ctxLogger == nil || ctxLogger.Component() != log.ComponentTrace {
		t.Fatalf("expected request logger in context")
	}

	got := m.GetMetrics()
	if got.TotalRequests != 1 || got.FailedRequests != 1 || got.ClientErrors != 0 {
		t.Fatalf("metrics = %+v", got)
	}
}

func TestMiddleware_CountsByStatusClass(t *testing.T) {
	m := NewMiddleware(nil, nil)
	codes := []int{http.StatusOK, http.StatusBadRequest, http.StatusTooManyRequests, http.StatusServiceUnavailable}
	for _, code := range codes {
		h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}

	got := m.GetMetrics()
	if got.TotalRequests != 4 || got.ClientErrors != 2 || got.FailedRequests != 1 {
		t.Fatalf("metrics = %+v", got)
	}
	if got.MeanLatency < 0 {
		t.Fatalf("mean latency = %v", got.MeanLatency)
	}
}

func TestMiddleware_KeepsSaneIncomingID(t *testing.T) {
	m := NewMiddleware(nil, nil)
	h := m.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	tests := []struct {
		in   string
		keep bool
	}{
		{"abc-123_DEF", true},
		{"has space", false},
		{"", false},
		{"<script>", false},
		{strings.Repeat("a", 65), false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, tt.in)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		got := rec.Header().Get(HeaderRequestID)
		if (got == tt.in) != tt.keep {
			t.Errorf("incoming %q: response id %q, keep=%v", tt.in, got, tt.keep)
		}
	}
}

func TestGenerateRequestIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := GenerateRequestID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}
