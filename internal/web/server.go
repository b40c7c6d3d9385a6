// Package web provides the HTTP server and handlers for the dialcodes UI.
package web

import (
	"context"
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/dialcodes/internal/config"
	"github.com/JonMunkholm/dialcodes/internal/core"
	"github.com/JonMunkholm/dialcodes/internal/web/middleware"
)

//go:embed static
var staticFiles embed.FS

// Server is the HTTP server hosting the web UI.
type Server struct {
	service *core.Service
	cfg     *config.Config
	limiter *core.RenderLimiter
	router  *chi.Mux
	server  *http.Server

	stop context.CancelFunc // stops rate limiter cleanup
}

// NewServer creates a Server. Renders requested by handlers go through a
// limiter sized from cfg.Render; review sessions share it via the service.
func NewServer(service *core.Service, limiter *core.RenderLimiter, cfg *config.Config) *Server {
	ctx, stop := context.WithCancel(context.Background())
	s := &Server{
		service: service,
		cfg:     cfg,
		limiter: limiter,
		router:  chi.NewRouter(),
		stop:    stop,
	}
	s.setupMiddleware()
	s.setupRoutes(ctx)
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.RequestMetadata)
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))
}

func (s *Server) setupRoutes(ctx context.Context) {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}

	general := passThrough
	imports := passThrough
	if s.cfg.Rate.Enabled {
		general = newRateLimiter(ctx, s.cfg.Rate.RequestsPerMinute, time.Minute).middleware
		imports = newRateLimiter(ctx, s.cfg.Rate.ImportLimit, time.Minute).middleware
	}

	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	// Link-redirect codes land here from a phone; not rate limited so a
	// crowded NAT never blocks a call.
	s.router.Get(core.CallPath, s.handleCall)

	// The change feed stays open, so it is outside the request timeout.
	s.router.With(general).Get("/api/records/events", s.handleRecordEvents)

	s.router.Group(func(r chi.Router) {
		r.Use(general)
		r.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
		r.Use(chimw.Compress(5, "text/html", "text/css", "application/javascript", "application/json"))

		// Pages
		r.Get("/", s.handleDashboard)
		r.With(imports).Post("/import", s.handleImport)
		r.With(imports).Post("/import/file", s.handleImportFile)
		r.Post("/clear", s.handleClear)

		r.Get("/codes/{id}", s.handleCodePage)
		r.Get("/codes/{id}/image.png", s.handleCodeImage)

		r.Post("/review", s.handleStartReview)
		r.Route("/review/{reviewID}", func(r chi.Router) {
			r.Get("/", s.handleReviewPage)
			r.Get("/image.png", s.handleReviewImage)
			r.Get("/download", s.handleReviewDownload)
			r.Post("/{action}", s.handleReviewAction)
		})

		// API routes
		r.Route("/api", func(r chi.Router) {
			r.Get("/records", s.handleListRecords)
			r.With(imports).Post("/import", s.handleAPIImport)
			r.With(imports).Post("/import/file", s.handleAPIImportFile)
			r.Post("/clear", s.handleAPIClear)
			r.Get("/codes/{id}/payload", s.handleCodePayload)
			r.Get("/health", s.handleHealth)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests, waits for in-flight renders, and stops
// background work.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.stop()

	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)

	if active := s.limiter.ActiveCount(); active > 0 {
		slog.Info("waiting for renders to complete", "active", active)
		if derr := s.limiter.WaitForDrain(ctx); derr != nil {
			slog.Warn("renders did not complete in time", "error", derr)
		}
	}
	return err
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func passThrough(next http.Handler) http.Handler { return next }

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP {
				w.Header().Set("Content-Security-Policy",
					"default-src 'self'; script-src 'self'; style-src 'self'; img-src 'self' data:")
			}
			next.ServeHTTP(w, r)
		})
	}
}
