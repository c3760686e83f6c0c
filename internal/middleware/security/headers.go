package security

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Directive is one Content-Security-Policy entry, e.g. script-src 'self'.
type Directive struct {
	Name    string
	Sources []string
}

// Policy keeps directives in the order they are written out.
type Policy []Directive

func (p Policy) String() string {
	parts := make([]string, 0, len(p))
	for _, d := range p {
		parts = append(parts, strings.TrimSpace(d.Name+" "+strings.Join(d.Sources, " ")))
	}
	return strings.Join(parts, "; ")
}

type HeadersConfig struct {
	CSP Policy

	HSTS                  time.Duration
	HSTSIncludeSubdomains bool

	// Fixed headers sent on every response.
	Static map[string]string

	// Responses under these path prefixes carry figures and must not be
	// kept by shared caches.
	NoStorePrefixes []string
}

// DefaultHeadersConfig allows same-origin scripts and styles only; the chat
// page loads nothing from third-party hosts.
func DefaultHeadersConfig() HeadersConfig {
	self := []string{"'self'"}
	return HeadersConfig{
		CSP: Policy{
			{"default-src", self},
			{"script-src", self},
			{"style-src", self},
			{"img-src", []string{"'self'", "data:"}},
			{"connect-src", self},
			{"object-src", []string{"'none'"}},
			{"frame-ancestors", []string{"'none'"}},
			{"base-uri", self},
			{"form-action", self},
		},
		HSTS:                  365 * 24 * time.Hour,
		HSTSIncludeSubdomains: true,
		Static: map[string]string{
			"X-Frame-Options":              "DENY",
			"X-Content-Type-Options":       "nosniff",
			"Referrer-Policy":              "strict-origin-when-cross-origin",
			"Permissions-Policy":           "geolocation=(), microphone=(), camera=(), payment=()",
			"Cross-Origin-Opener-Policy":   "same-origin",
			"Cross-Origin-Resource-Policy": "same-origin",
		},
		NoStorePrefixes: []string{"/api/", "/ask"},
	}
}

// HeadersMiddleware renders its header values once at construction.
type HeadersMiddleware struct {
	static  http.Header
	hsts    string
	noStore []string
}

func NewHeadersMiddleware(config HeadersConfig) *HeadersMiddleware {
	h := &HeadersMiddleware{static: http.Header{}, noStore: config.NoStorePrefixes}
	if csp := config.CSP.String(); csp != "" {
		h.static.Set("Content-Security-Policy", csp)
	}
	for name, value := range config.Static {
		if value != "" {
			h.static.Set(name, value)
		}
	}
	if config.HSTS > 0 {
		h.hsts = fmt.Sprintf("max-age=%d", int64(config.HSTS.Seconds()))
		if config.HSTSIncludeSubdomains {
			h.hsts += "; includeSubDomains"
		}
	}
	return h
}

func (h *HeadersMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		out := w.Header()
		for name := range h.static {
			out.Set(name, h.static.Get(name))
		}
		// HSTS only means something over TLS.
		if r.TLS != nil && h.hsts != "" {
			out.Set("Strict-Transport-Security", h.hsts)
		}
		for _, prefix := range h.noStore {
			if strings.HasPrefix(r.URL.Path, prefix) {
				out.Set("Cache-Control", "no-store")
				break
			}
		}
		next.ServeHTTP(w, r)
	})
}

// StaticAssetMiddleware lets browsers cache embedded assets for maxAge.
func StaticAssetMiddleware(maxAge time.Duration) func(http.Handler) http.Handler {
	value := fmt.Sprintf("public, max-age=%d", int64(maxAge.Seconds()))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxAge > 0 {
				w.Header().Set("Cache-Control", value)
			}
			next.ServeHTTP(w, r)
		})
	}
}
