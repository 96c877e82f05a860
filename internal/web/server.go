// Package web provides the HTTP server around the CSV submission widgets.
//
// Each widget lives in a core.Registry owned by the server. API routes under
// /api/widgets create widgets, accept dropped files, expose downloads and
// previews, and stream snapshots as server-sent events; /widgets/{id}
// renders the widget as HTML.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/JonMunkholm/csvsubmit/internal/config"
	"github.com/JonMunkholm/csvsubmit/internal/core"
	"github.com/JonMunkholm/csvsubmit/internal/storage"
	mw "github.com/JonMunkholm/csvsubmit/internal/web/middleware"
)

// Deps are the collaborators the server is built from. Nil fields get
// in-process defaults, and a nil Source or Cache disables that feature.
type Deps struct {
	Registry *core.Registry
	Limiter  *core.DecodeLimiter
	Source   storage.SubmissionSource
	Cache    FieldCache
}

// Server is the HTTP server for the submission widgets.
type Server struct {
	cfg       *config.Config
	registry  *core.Registry
	limiter   *core.DecodeLimiter
	resources *core.Resources
	source    storage.SubmissionSource
	cache     FieldCache
	hub       *Hub
	router    *chi.Mux
	server    *http.Server

	requestLimiter *mw.RateLimiter
	uploadLimiter  *mw.RateLimiter

	// Background prior-submission loads outlive their request.
	bgCtx    context.Context
	bgCancel context.CancelFunc
	loads    sync.WaitGroup
}

// NewServer creates a Server. Call Run to start background work.
func NewServer(cfg *config.Config, deps Deps) *Server {
	if deps.Registry == nil {
		deps.Registry = core.NewRegistry()
	}
	if deps.Limiter == nil {
		deps.Limiter = core.NewDecodeLimiter(cfg.Widget.MaxConcurrentDecodes, cfg.Widget.DecodeWaitTime)
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:       cfg,
		registry:  deps.Registry,
		limiter:   deps.Limiter,
		resources: core.NewResources(),
		source:    deps.Source,
		cache:     deps.Cache,
		hub:       NewHub(deps.Cache),
		router:    chi.NewRouter(),
		bgCtx:     bgCtx,
		bgCancel:  bgCancel,
	}
	if cfg.Rate.Enabled {
		s.requestLimiter = mw.NewRateLimiter(cfg.Rate.RequestsPerMinute, time.Minute)
		s.uploadLimiter = mw.NewRateLimiter(cfg.Rate.UploadLimit, time.Minute)
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(mw.SecurityHeaders(s.cfg.Security.EnableCSP))
	if s.requestLimiter != nil {
		s.router.Use(s.requestLimiter.Middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	r := s.router

	r.Get("/healthz", s.handleHealth)
	r.With(s.timeout).Get("/widgets/{id}", s.handleWidgetPage)

	r.Route("/api/widgets", func(r chi.Router) {
		r.With(s.timeout).Post("/", s.handleCreateWidget)

		r.Route("/{id}", func(r chi.Router) {
			// Event streams run without the request timeout.
			r.Get("/events", s.handleEvents)

			r.Group(func(r chi.Router) {
				r.Use(s.timeout)

				r.Get("/", s.handleGetWidget)
				r.Delete("/", s.handleDeleteWidget)

				r.Group(func(r chi.Router) {
					if s.uploadLimiter != nil {
						r.Use(s.uploadLimiter.Middleware)
					}
					r.Post("/files", s.handleDropFiles)
					r.Post("/data-url", s.handleDropDataURL)
				})

				r.Post("/load", s.handleLoadPrior)
				r.Get("/field", s.handleGetField)
				r.Put("/columns", s.handleAssignColumns)
				r.Delete("/warnings", s.handleClearWarnings)
				r.Post("/parse", s.handleParseSubmission)

				r.Get("/files/{name}/download", s.handleDownload)
				r.Get("/files/{name}/preview", s.handlePreview)
			})
		})
	})
}

// timeout applies the configured request timeout.
func (s *Server) timeout(next http.Handler) http.Handler {
	if s.cfg.Server.RequestTimeout <= 0 {
		return next
	}
	return chimw.Timeout(s.cfg.Server.RequestTimeout)(next)
}

// Handler returns the instrumented root handler.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "csvsubmit",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Registry returns the widget registry.
func (s *Server) Registry() *core.Registry {
	return s.registry
}

// Run starts the background work (janitor, field mirror, rate limiter
// cleanup) and blocks until ctx is done.
func (s *Server) Run(ctx context.Context) {
	var wg sync.WaitGroup
	run := func(f func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f(ctx)
		}()
	}

	run(func(ctx context.Context) {
		s.registry.RunJanitor(ctx, core.JanitorConfig{
			IdleTTL:       s.cfg.Widget.IdleTTL,
			CheckInterval: s.cfg.Widget.SweepInterval,
			OnSweep: func(ids []string) {
				for _, id := range ids {
					s.hub.Close(id)
				}
			},
		})
	})
	run(s.hub.RunMirror)
	if s.requestLimiter != nil {
		run(s.requestLimiter.RunCleanup)
		run(s.uploadLimiter.RunCleanup)
	}

	wg.Wait()
}

// Start listens on the configured address.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("server starting", "addr", s.server.Addr)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests, cancels background loads and waits
// for them, then destroys every widget.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}

	s.bgCancel()
	done := make(chan struct{})
	go func() {
		s.loads.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("prior submission loads did not finish before shutdown")
	}

	s.registry.DestroyAll()
	return err
}

// LimiterStatus reports decode capacity.
func (s *Server) LimiterStatus() core.DecodeLimiterStatus {
	return s.limiter.Status()
}

// WaitForDecodes blocks until in-flight decodes finish or ctx is done.
func (s *Server) WaitForDecodes(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.limiter.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"widgets": s.registry.Len(),
		"decodes": st,
	})
}
