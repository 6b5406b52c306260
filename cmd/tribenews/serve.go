package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/educatorstribe/tribenews/internal/api"
	"github.com/educatorstribe/tribenews/internal/auth"
	"github.com/educatorstribe/tribenews/internal/ingest"
	"github.com/educatorstribe/tribenews/internal/observability"
	"github.com/educatorstribe/tribenews/internal/realtime"
)

var (
	serveAddr     string
	noScheduler   bool
	sessionIdle   time.Duration
	shutdownGrace time.Duration
)

// serveCmd creates the "serve" subcommand.
func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the hourly ingestion timer",
		RunE:  runServe,
	}
	cmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "serve the API without the ingestion timer")
	cmd.Flags().DurationVar(&sessionIdle, "session-idle", 2*time.Minute, "disconnect event streams idle for this long")
	cmd.Flags().DurationVar(&shutdownGrace, "shutdown-grace", 15*time.Second, "time allowed for in-flight requests on shutdown")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	defer e.close()
	if serveAddr != "" {
		e.cfg.Server.Addr = serveAddr
	}
	logger := e.logger

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := e.openStore(ctx)
	if err != nil {
		return err
	}
	f, err := e.openFetcher()
	if err != nil {
		return err
	}
	classifier, err := e.classifier()
	if err != nil {
		return err
	}
	keyring, err := auth.NewKeyring(e.cfg.Server.APIKeys)
	if err != nil {
		return fmt.Errorf("api keys: %w", err)
	}
	if keyring.Len() == 0 {
		logger.Warn("no API keys configured, admin endpoints are unreachable")
	}

	metrics := observability.NewMetrics(logger)
	hub := realtime.NewHub(0, logger)
	ing := ingest.New(ingest.Deps{
		Config:     e.cfg,
		Fetcher:    f,
		Store:      store,
		Classifier: classifier,
		Hub:        hub,
		Metrics:    metrics,
		Logger:     logger,
	})

	go hub.Monitor(ctx, sessionIdle)

	var sched *ingest.Scheduler
	if !noScheduler {
		sched = ingest.NewScheduler(ing, e.cfg.Ingest.Interval, e.cfg.Ingest.RunOnStart, logger)
		sched.Start(ctx)
	}

	srv := api.NewServer(api.Deps{
		Config:     e.cfg,
		Store:      store,
		Ingester:   ing,
		Keyring:    keyring,
		Hub:        hub,
		Metrics:    metrics,
		Logger:     logger,
		RunContext: ctx,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		logger.Info("received signal, shutting down...")
	case err := <-errCh:
		if err != nil {
			stop()
			if sched != nil {
				sched.Wait()
			}
			return fmt.Errorf("serve: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", "error", err)
	}
	if sched != nil {
		sched.Wait()
	}
	logger.Info("stopped")
	return nil
}
