package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/cryptoheroes/internal/adapters/http/api"
	"github.com/okian/cryptoheroes/internal/adapters/http/feed"
	"github.com/okian/cryptoheroes/internal/adapters/http/site"
	"github.com/okian/cryptoheroes/internal/adapters/http/swagger"
	"github.com/okian/cryptoheroes/internal/app"
	"github.com/okian/cryptoheroes/internal/config"
	"github.com/okian/cryptoheroes/pkg/logger"
	"github.com/okian/cryptoheroes/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP arena server",
		Long: `Serve the battle API, the live result feed at /ws/battles, the API docs
at /api-docs and the browser arena at /.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Root context with cancel on SIGINT/SIGTERM.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, log, err := setup(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	srv, svc, cleanup, err := buildServer(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := cleanup.Close(); err != nil {
			log.Error(ctx, "cleanup failed", logger.Error(err))
		}
	}()

	go startSystemMetricsUpdater(ctx, metrics.RefreshInterval())

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			return err
		}
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error(ctx, "service shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// buildServer wires every component from cfg and starts the service. The
// returned closers release the cache and feed.
func buildServer(ctx context.Context, cfg *config.Config, log logger.Logger) (*http.Server, *app.Service, closers, error) {
	var cleanup closers

	loader, closeCache, err := newLoader(ctx, cfg, log)
	if err != nil {
		return nil, nil, nil, err
	}
	cleanup = append(cleanup, closeCache)

	scorer, err := newScorer(cfg, cfg.BattleSeed, false)
	if err != nil {
		_ = cleanup.Close()
		return nil, nil, nil, err
	}

	results, err := newResultStore(ctx, cfg)
	if err != nil {
		_ = cleanup.Close()
		return nil, nil, nil, err
	}

	hub := feed.NewHub(feed.WithLogger(log.Named("feed")))
	cleanup = append(cleanup, func() error { hub.Close(); return nil })

	svc := app.New(loader, scorer, results,
		app.WithLogger(log.Named("service")),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithRevealDelay(cfg.RevealDelay()),
		app.WithPublisher(hub),
	)
	if err := svc.Start(ctx); err != nil {
		_ = results.Close()
		_ = cleanup.Close()
		return nil, nil, nil, err
	}

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	site.Register(ctx, mux)
	api.NewServer(svc, svc,
		api.WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit),
		api.WithFeed(hub),
		api.WithLogger(log.Named("api")),
	).Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return srv, svc, cleanup, nil
}

// startSystemMetricsUpdater refreshes system metrics every interval until ctx
// is done.
func startSystemMetricsUpdater(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
