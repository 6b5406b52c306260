package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/educatorstribe/tribenews/internal/classify"
	"github.com/educatorstribe/tribenews/internal/config"
	"github.com/educatorstribe/tribenews/internal/fetcher"
	"github.com/educatorstribe/tribenews/internal/storage"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tribenews",
		Short: "Tribenews: African education news ingestion",
		Long: `Tribenews polls education news sources, keeps the stories about
education in Africa and stores them for the Educators' Tribe news pages.

It runs hourly under "serve" and can be triggered by an admin through the
HTTP API or from the command line with "ingest".`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(articlesCmd())
	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(policyCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// env is what most subcommands need: validated config and a logger.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func() error
}

// loadEnv loads and validates the config and builds the root logger.
func loadEnv() (*env, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, closeLog, err := setupLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, logger: logger}
	e.onClose(closeLog)
	return e, nil
}

func (e *env) onClose(fn func() error) {
	e.closers = append(e.closers, fn)
}

// close runs cleanups in reverse order.
func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			e.logger.Warn("cleanup failed", "error", err)
		}
	}
}

func (e *env) openStore(ctx context.Context) (storage.Store, error) {
	store, err := storage.Open(ctx, e.cfg, e.logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	e.onClose(store.Close)
	return store, nil
}

func (e *env) openFetcher() (fetcher.Fetcher, error) {
	f, err := fetcher.New(e.cfg, e.logger)
	if err != nil {
		return nil, fmt.Errorf("create fetcher: %w", err)
	}
	e.onClose(f.Close)
	return f, nil
}

func (e *env) classifier() (*classify.Classifier, error) {
	policy, err := classify.LoadPolicy(e.cfg.Classifier.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	return classify.New(policy, classify.Options{
		MinTitleLength:   e.cfg.Ingest.MinTitleLength,
		MaxTitleLength:   e.cfg.Ingest.MaxTitleLength,
		EnglishThreshold: e.cfg.Classifier.EnglishThreshold,
		BodySample:       e.cfg.Classifier.BodySample,
	}, e.logger), nil
}

// setupLogger creates a structured logger from the logging config. The
// returned func closes the log file, if any.
func setupLogger(lc config.LoggingConfig) (*slog.Logger, func() error, error) {
	level := slog.LevelInfo
	switch strings.ToLower(lc.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	closeFn := func() error { return nil }
	switch lc.Output {
	case "", "stderr":
	case "stdout":
		out = os.Stdout
	default:
		if err := os.MkdirAll(filepath.Dir(lc.Output), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(lc.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		closeFn = f.Close
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(lc.Format) == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler), closeFn, nil
}
