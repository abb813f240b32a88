// cmd/supervisor/main.go
//
// supervisor runs the loan lifecycle supervisor.
//
// Usage:
//
//	supervisor serve   # HTTP trigger, inbox and admin API, optional ticker
//	supervisor run     # one supervisor tick, for an external cron
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"prestamos/internal/config"
	"prestamos/internal/lifecycle"
	"prestamos/internal/logging"
	"prestamos/internal/telemetry"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "supervisor",
		Short:   "Supervise university material loans",
		Version: version,
	}
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(runCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger, tracer and components.
// The returned cleanup must always be called. keepLogs enables the in-memory
// log ring served to admins.
func setup(ctx context.Context, keepLogs bool) (*app, *logging.Ring, func(), error) {
	cfg := config.Load()
	opts := logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat}
	if keepLogs {
		opts.RingSize = cfg.LogRingSize
	}
	logger, ring, err := logging.New(opts)
	if err != nil {
		return nil, nil, func() {}, err
	}

	shutdown, err := telemetry.Setup(ctx, "prestamos-supervisor", cfg.OTLPEndpoint)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, func() {}, err
	}

	a, err := build(ctx, cfg, logger)
	cleanup := func() {
		if a != nil {
			a.Close()
		}
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.Warn("telemetry shutdown", zap.Error(err))
		}
		_ = logger.Sync()
	}
	if err != nil {
		cleanup()
		return nil, nil, func() {}, err
	}
	return a, ring, cleanup, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run the optional in-process scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, ring, cleanup, err := setup(ctx, true)
			if err != nil {
				return err
			}
			defer cleanup()

			lifecycle.StartScheduledRuns(ctx, a.supervisor, a.cfg.ScheduleInterval, a.cfg.RunTimeout, a.logger)

			srv := &http.Server{
				Addr:              a.cfg.HTTPAddr,
				Handler:           newRouter(a, ring),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("listening", zap.String("addr", srv.Addr))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case <-ctx.Done():
				a.logger.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("http shutdown: %w", err)
				}
			}
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute one supervisor tick and print its summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, _, cleanup, err := setup(ctx, false)
			if err != nil {
				return err
			}
			defer cleanup()

			if a.cfg.RunTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, a.cfg.RunTimeout)
				defer cancel()
			}
			summary, err := a.supervisor.Run(ctx)
			if summary != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				_ = enc.Encode(summary)
			}
			return err
		},
	}
}
