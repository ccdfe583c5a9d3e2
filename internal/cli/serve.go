package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/canopy"
	httpadapter "github.com/aretw0/canopy/pkg/adapters/http"
	"github.com/aretw0/canopy/pkg/observability"
	"github.com/aretw0/canopy/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServeOptions configures the HTTP server.
type ServeOptions struct {
	EngineOptions

	Addr string
	// IdleTimeout drops sessions without activity for that long; 0 keeps them.
	IdleTimeout time.Duration
	Metrics     bool
}

const shutdownTimeout = 5 * time.Second

// Serve runs the HTTP adapter until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, opts ServeOptions) error {
	logger := createLogger(opts.Debug)

	var metricsHandler http.Handler
	if opts.Metrics {
		reg := prometheus.NewRegistry()
		metrics, err := observability.NewMetrics(reg)
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		opts.EngineOptions.Metrics = metrics
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	engine, cleanup, err := createEngine(opts.EngineOptions, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	sessions := session.NewManager[*canopy.Session](session.WithLogger(logger))
	handlerOpts := []httpadapter.Option{
		httpadapter.WithLogger(logger),
		httpadapter.WithSessions(sessions),
	}
	if metricsHandler != nil {
		handlerOpts = append(handlerOpts, httpadapter.WithMetricsHandler(metricsHandler))
	}

	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           httpadapter.NewHandler(engine, handlerOpts...),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if opts.IdleTimeout > 0 {
		go sweep(ctx, sessions, opts.IdleTimeout)
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting canopy server", "addr", srv.Addr, "dir", opts.Dir)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("shutdown started")
		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown did not complete", "timeout", shutdownTimeout, "error", err)
			return srv.Close()
		}
		logger.Info("canopy server stopped gracefully")
		return nil
	}
}

func sweep(ctx context.Context, sessions *session.Manager[*canopy.Session], idle time.Duration) {
	ticker := time.NewTicker(idle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sessions.Sweep(ctx, idle)
		}
	}
}
