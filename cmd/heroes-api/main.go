// main is the entry point of the Heroes API.
//
// STARTUP SEQUENCE:
//  1. Load configuration (YAML file and/or environment)
//  2. Initialise the logger
//  3. Open the database named by database_url and create the hero table
//  4. Build the router
//  5. Start the HTTP server in a separate goroutine
//  6. Block until SIGINT / SIGTERM arrives
//  7. Gracefully shut down: finish in-flight requests, close the pool
//
// RUNNING THE SERVER:
//
//	go run ./cmd/heroes-api --config=config/local.yaml
//
// or, with environment variables only:
//
//	DATABASE_URL=heroes.db go run ./cmd/heroes-api
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/aanand-mishra/heroes-api/internal/config"
	"github.com/aanand-mishra/heroes-api/internal/http/router"
	"github.com/aanand-mishra/heroes-api/internal/logger"
	"github.com/aanand-mishra/heroes-api/internal/storage/backend"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "heroes-api",
		Short:         "Heroes API - CRUD service for hero records",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the configuration YAML file (or set CONFIG_PATH)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "heroes-api %s\n", version)
		},
	})

	return rootCmd
}

func run(ctx context.Context, configPath string) error {
	// ── 1. Load Config ────────────────────────────────────────────────────
	// Errors go back through cobra so deferred cleanup in main still runs.
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// ── 2. Initialise Logger ──────────────────────────────────────────────
	log, logCloser, err := logger.New(cfg.Env, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logCloser.Close()
	slog.SetDefault(log)

	log.Info("starting heroes-api",
		slog.String("env", cfg.Env),
		slog.String("version", version),
	)

	// ── 3. Initialise Storage ─────────────────────────────────────────────
	// The pool is created here and handed down; nothing else opens one.
	store, kind, err := backend.Open(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Error("failed to initialise storage", slog.String("error", err.Error()))
		return err
	}
	defer store.Close()

	log.Info("storage initialised", slog.String("backend", string(kind)))

	// ── 4. Router ─────────────────────────────────────────────────────────
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	server := &http.Server{
		Addr: cfg.HTTPServer.Addr,
		Handler: router.New(router.Options{
			Storage:        store,
			Logger:         log,
			Registry:       reg,
			ConflictStatus: cfg.ConflictStatus,
			CORSOrigins:    cfg.CORSOrigins,
		}),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// ── 5. Serve ──────────────────────────────────────────────────────────
	// ListenAndServe blocks, so it runs in its own goroutine and reports
	// back through errCh. http.ErrServerClosed is the normal result of
	// Shutdown and is not an error.
	errCh := make(chan error, 1)
	go func() {
		log.Info("server started", slog.String("address", cfg.HTTPServer.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// ── 6. Wait for Shutdown Signal ───────────────────────────────────────
	select {
	case err := <-errCh:
		if err != nil {
			log.Error("server encountered an error", slog.String("error", err.Error()))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutdown signal received, stopping server...")

	// ── 7. Graceful Shutdown ──────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown server gracefully", slog.String("error", err.Error()))
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}
