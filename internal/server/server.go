// Package server replays a frozen static tree over HTTP.
//
// It resolves request paths with the same URL-to-path convention the
// writer used to produce the tree, so /a/b serves a/b/index.html and
// /a/b.json serves a/b.json. The server exists for verifying a freeze
// locally; it is not a general-purpose static file server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/permafrost/internal/telemetry"
	"github.com/JakeFAU/permafrost/pkg/freezer"
)

// Config controls the static server.
type Config struct {
	// Port to listen on. Zero picks an ephemeral port, which tests use.
	Port int
	// Root is the directory holding the frozen tree.
	Root string
	// ShutdownEndpoint attaches POST /__shutdown__/ so automation can
	// stop the server without signaling the process.
	ShutdownEndpoint bool
	// Metrics exposes the Prometheus registry on GET /metrics.
	Metrics bool
}

// Server serves a frozen tree until interrupted or shut down remotely.
type Server struct {
	cfg    Config
	logger *zap.Logger
	router chi.Router

	mu       sync.Mutex
	addr     net.Addr
	ready    chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// New builds a Server for the given tree. The root directory must
// exist before requests arrive, but New does not check it so a freeze
// can still be running when the server is constructed.
func New(cfg Config, logger *zap.Logger) (*Server, error) {
	if cfg.Root == "" {
		return nil, errors.New("server root directory is required")
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port %d out of range", cfg.Port)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		ready:   make(chan struct{}),
		stopped: make(chan struct{}),
	}

	r := chi.NewRouter()
	r.Use(requestLogger(logger))
	r.Use(telemetry.Middleware)
	r.Use(recoverer(logger))
	if cfg.ShutdownEndpoint {
		r.Post("/__shutdown__/", s.shutdown)
	}
	if cfg.Metrics {
		r.Method(http.MethodGet, "/metrics", telemetry.Handler())
	}
	r.Get("/*", s.serveFile)
	r.Head("/*", s.serveFile)
	s.router = r

	return s, nil
}

// Handler returns the router for use with http.Server or tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the listen address once Serve has bound its port,
// nil before that. Ready signals when it is safe to call.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Ready is closed once the listener is accepting connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Stop asks a running Serve to shut down. Safe to call more than once
// and before Serve starts.
func (s *Server) Stop() {
	s.stopOnce.Do(func() { close(s.stopped) })
}

// Serve blocks until the context is canceled, an interrupt arrives, or
// the shutdown endpoint is hit. It may be called at most once.
func (s *Server) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(s.cfg.Port)))
	if err != nil {
		return fmt.Errorf("listening on port %d: %w", s.cfg.Port, err)
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()
	close(s.ready)

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	s.logger.Info("serving frozen tree",
		zap.String("addr", ln.Addr().String()),
		zap.String("root", s.cfg.Root),
	)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown initiated")
	case <-s.stopped:
		s.logger.Info("shutdown requested via endpoint")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	s.logger.Info("shutdown complete")
	return nil
}

func (s *Server) shutdown(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("Shutting down...\n")); err != nil {
		s.logger.Warn("shutdown response write failed", zap.Error(err))
	}
	s.Stop()
}

// serveFile resolves the request path against the frozen tree. The
// directory convention is tried first; extensionless files written
// outside it, such as CNAME, are found by the verbatim fallback.
func (s *Server) serveFile(w http.ResponseWriter, r *http.Request) {
	urlPath := r.URL.Path
	if !strings.HasPrefix(urlPath, "/") {
		urlPath = "/" + urlPath
	}

	candidates := []string{freezer.PagePath(urlPath)}
	sources := []string{sourcePage}
	if verbatim := strings.TrimPrefix(path.Clean(urlPath), "/"); verbatim != "" && verbatim != candidates[0] {
		candidates = append(candidates, verbatim)
		sources = append(sources, sourceVerbatim)
	}

	for i, rel := range candidates {
		full := filepath.Join(s.cfg.Root, filepath.FromSlash(rel))
		if !strings.HasPrefix(full, filepath.Clean(s.cfg.Root)+string(os.PathSeparator)) {
			continue
		}
		info, err := os.Stat(full)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		f, err := os.Open(full)
		if err != nil {
			s.logger.Warn("open failed", zap.String("path", full), zap.Error(err))
			continue
		}
		defer f.Close()
		FilesServed.WithLabelValues(sources[i]).Inc()
		http.ServeContent(w, r, filepath.Base(full), info.ModTime(), f)
		return
	}

	s.logger.Debug("not found", zap.String("path", urlPath))
	FilesServed.WithLabelValues(sourceMiss).Inc()
	http.NotFound(w, r)
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Debug("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

func recoverer(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
