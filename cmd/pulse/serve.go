package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/Pulse/internal/api"
	"github.com/MikeSquared-Agency/Pulse/internal/metrics"
	"github.com/MikeSquared-Agency/Pulse/internal/scheduler"
)

var flagNoScheduler bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, metrics server and scheduled jobs",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&flagNoScheduler, "no-scheduler", false, "do not run re-embedding and segment jobs")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	logger := a.logger
	cfg := a.cfg

	metrics.Register()

	// Scheduler
	sched := scheduler.New(logger)
	if !flagNoScheduler {
		if err := a.addJobs(sched); err != nil {
			return err
		}
		sched.Start()
	}

	// API server
	router := api.NewRouter(api.Deps{
		Articles: a.store,
		Resolver: a.resolver,
		Feed:     a.feed,
		Search:   a.search,
		Engine:   a.engine,
		Segments: a.segments,
		Ingest:   a.ingest,
		Hermes:   a.hermes,
		Reembed:  a.reembedOptions(),
	}, api.Options{
		AdminToken:        cfg.Server.AdminToken,
		RequestsPerMinute: cfg.Server.RequestsPerMinute,
	}, logger)
	apiServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Metrics server
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler:           api.NewMetricsRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("API server starting", "port", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()
	go func() {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	var runErr error
	select {
	case <-sigCh:
	case runErr = <-errCh:
		logger.Error("server failed", "error", runErr)
	}

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)
	sched.Stop(shutdownCtx)

	logger.Info("shutdown complete")
	return runErr
}

func (a *app) addJobs(sched *scheduler.Scheduler) error {
	opts := a.reembedOptions()
	err := sched.Add("reembed", a.cfg.Reembed.Schedule, 30*time.Minute, func(ctx context.Context) error {
		_, err := a.ingest.Reembed(ctx, opts)
		return err
	})
	if err != nil {
		return fmt.Errorf("scheduling reembed: %w", err)
	}
	err = sched.Add("segments", a.cfg.Segments.Schedule, 5*time.Minute, func(ctx context.Context) error {
		_, err := a.segments.IdentifySegments(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("scheduling segments: %w", err)
	}
	return nil
}
