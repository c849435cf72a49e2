package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"pushgate/internal/config"
	"pushgate/internal/delivery"
	"pushgate/internal/deploy"
	"pushgate/internal/metrics"
	"pushgate/pkg/fileutil"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	// HTTP server timeouts
	HTTPReadTimeout  = 10 * time.Second
	HTTPWriteTimeout = 10 * time.Second
	HTTPIdleTimeout  = 60 * time.Second

	// Request timeout for middleware
	RequestTimeout = 60 * time.Second

	// Rate limiting - requests per minute
	GlobalRateLimit  = 60 // Global rate limit per minute
	WebhookRateLimit = 10 // Webhook-specific rate limit per minute
)

// Server is the HTTP face of the gateway. Its configuration is fixed at
// construction and never mutated while requests are being served.
type Server struct {
	Config   *config.Config
	Ledger   *delivery.Ledger
	Invoker  *deploy.Invoker
	Logger   *slog.Logger
	TestMode bool

	httpSrv *http.Server
}

// NewServer creates a new server instance. The ledger may be nil, in
// which case replay protection is disabled.
func NewServer(cfg *config.Config, ledger *delivery.Ledger, invoker *deploy.Invoker, logger *slog.Logger, testMode bool) *Server {
	return &Server{
		Config:   cfg,
		Ledger:   ledger,
		Invoker:  invoker,
		Logger:   logger,
		TestMode: testMode,
	}
}

// Router creates and configures the HTTP router.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.recoverer)
	r.Use(middleware.Timeout(RequestTimeout))
	r.Use(s.logRequests)

	// Rate limiting middleware (only if not in test mode)
	if !s.TestMode {
		global := NewRateLimiter(perMinute(GlobalRateLimit), GlobalRateLimit)
		r.Use(global.Middleware("global", s.Logger))
	}

	// Routes
	r.Get("/health", s.HandleHealth)
	r.Get("/api/hello", s.HandleHello)
	r.Handle("/metrics", metrics.Handler())

	// Webhook route with stricter rate limit
	if !s.TestMode {
		hook := NewRateLimiter(perMinute(WebhookRateLimit), WebhookRateLimit)
		r.With(hook.Middleware("webhook", s.Logger)).Post("/hooks/deploy", s.HandleDeployHook)
	} else {
		r.Post("/hooks/deploy", s.HandleDeployHook)
	}

	// Static site, mounted last so API routes win
	if s.Config.Site.Dir != "" {
		if fileutil.DirExists(s.Config.Site.Dir) {
			r.Handle("/*", http.FileServer(http.Dir(s.Config.Site.Dir)))
		} else {
			s.Logger.Warn("Site directory does not exist, static serving disabled",
				"dir", s.Config.Site.Dir)
		}
	}

	return r
}

// logRequests emits one slog line and one metrics sample per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			duration := time.Since(start)
			s.Logger.Info("http_request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", duration.Milliseconds())

			// Metrics use the matched route pattern, not the raw path,
			// to keep label cardinality bounded.
			pattern := chi.RouteContext(r.Context()).RoutePattern()
			if pattern == "" {
				pattern = "unmatched"
			}
			metrics.RecordHTTPRequest(r.Method, pattern, ww.Status(), duration)
		}()

		next.ServeHTTP(ww, r)
	})
}

// Start runs the HTTP server until it fails or Shutdown is called.
func (s *Server) Start() error {
	addr := s.Config.Addr()
	s.Logger.Info("Starting server", "addr", addr)

	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  HTTPReadTimeout,
		WriteTimeout: HTTPWriteTimeout,
		IdleTimeout:  HTTPIdleTimeout,
	}

	return s.httpSrv.ListenAndServe()
}

// WaitForDeploys blocks until all in-flight deploy processes finish.
// This is primarily useful for testing.
func (s *Server) WaitForDeploys() {
	s.Invoker.Wait()
}

// Shutdown stops accepting requests and waits for the in-flight deploy
// to finish. The ledger is owned by the caller and stays open.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			return err
		}
	}

	s.Invoker.Wait()
	return nil
}
