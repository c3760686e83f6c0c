// Package http serves the copilot over HTTP: a chat page with HTML answer
// partials, a JSON API, and health endpoints.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"cfocopilot/internal/copilot"
	"cfocopilot/internal/ledger"
	"cfocopilot/internal/log"
	"cfocopilot/internal/middleware/ratelimit"
	"cfocopilot/internal/middleware/security"
	"cfocopilot/internal/middleware/trace"
	appweb "cfocopilot/web"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// ReloadFunc rebuilds the ledger from the configured backend.
type ReloadFunc func(ctx context.Context) (*ledger.Snapshot, error)

// Options configures NewServer. Service is required.
type Options struct {
	Service            *copilot.Service
	Reload             ReloadFunc
	Logger             *log.Logger
	RateLimitPerMinute int
}

type Server struct {
	http.Server
	templates *template.Template
	service   *copilot.Service
	reload    ReloadFunc
	markdown  goldmark.Markdown
	logger    *log.Logger

	securityDetector *security.Detector
	securityHeaders  *security.HeadersMiddleware
	rateLimiter      *ratelimit.Limiter
	traceMiddleware  *trace.Middleware

	appMetrics   *appMetrics
	shutdownOnce sync.Once
}

type appMetrics struct {
	questions atomic.Int64
	answered  atomic.Int64
	unknown   atomic.Int64
	reloads   atomic.Int64
	uptime    time.Time
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	rlConfig := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		rlConfig.RequestsPerMinute = opts.RateLimitPerMinute
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
		service:          opts.Service,
		reload:           opts.Reload,
		logger:           logger,
		markdown:         goldmark.New(goldmark.WithExtensions(
			// align attributes instead of inline styles, which the CSP forbids
			extension.NewTable(extension.WithTableCellAlignMethod(extension.TableCellAlignAttribute)),
		)),
		securityDetector: security.NewDetector(logger),
		securityHeaders:  security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		rateLimiter:      ratelimit.NewLimiter(rlConfig),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}
	s.traceMiddleware = trace.NewMiddleware(s.securityDetector.ExtractClientIP, logger)

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	s.Handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(log.Middleware(s.logger))
	r.Use(s.securityDetector.Middleware)
	r.Use(s.traceMiddleware.Middleware)
	r.Use(s.securityHeaders.Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.StaticAssetMiddleware(time.Hour)).Handle("/static/*", static)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.handleRateLimited))

		r.Get("/", s.handleIndex)
		r.Post("/ask", s.handleAskHTML)

		r.Route("/api/v1", func(r chi.Router) {
			r.Use(log.ComponentMiddleware(log.ComponentAPI))
			r.Get("/ask", s.handleAskJSON)
			r.Post("/ask", s.handleAskJSON)
			r.Get("/snapshot", s.handleSnapshot)
			r.Post("/reload", s.handleReload)
		})
	})
	return r
}

// Shutdown stops the listener and the limiter janitor once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
