package web

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hpungsan/moodmart/internal/health"
	"github.com/hpungsan/moodmart/internal/observe"
	"github.com/hpungsan/moodmart/internal/ops"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Options configures NewServer.
type Options struct {
	Version string
	Bind    string
	Port    int

	// Health serves /healthz and /readyz. Optional.
	Health *health.Handler

	// Metrics records HTTP request durations. Optional.
	Metrics *observe.Metrics

	// ServeMetrics exposes the Prometheus registry on /metrics.
	ServeMetrics bool

	Logger *zap.Logger
}

// NewServer creates and configures the HTTP server for the MoodMart web UI.
func NewServer(deps *ops.Deps, opts Options) (*http.Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// Create sub-FS for templates (strip "templates/" prefix)
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("failed to create template sub-FS: %w", err)
	}

	// Create sub-FS for static files (strip "static/" prefix)
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to create static sub-FS: %w", err)
	}

	renderer, err := NewRenderer(templateSub, opts.Version, logger)
	if err != nil {
		return nil, err
	}

	h := &Handlers{
		deps:     deps,
		renderer: renderer,
	}

	mux := http.NewServeMux()

	// Routes using Go 1.22+ pattern syntax
	mux.HandleFunc("GET /{$}", h.HandleIndex)
	mux.HandleFunc("POST /mood", h.HandlePredict)
	mux.HandleFunc("POST /transcribe", h.HandleTranscribe)
	mux.HandleFunc("GET /chart", h.HandleChart)
	mux.HandleFunc("GET /export", h.HandleExport)
	mux.HandleFunc("GET /history", h.HandleHistory)
	mux.HandleFunc("GET /stats", h.HandleStats)

	if opts.Health != nil {
		opts.Health.Register(mux)
	}
	if opts.ServeMetrics {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	// Static file server
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticSub)))

	handler := observe.Middleware(opts.Metrics, logger)(securityHeaders(mux))

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", opts.Bind, opts.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'; img-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("MoodMart UI running", zap.String("url", "http://"+srv.Addr))

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		logger.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
