package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/streamops/streamcheck/internal/config"
	"github.com/streamops/streamcheck/internal/server"
	"github.com/streamops/streamcheck/internal/watcher"
	"github.com/streamops/streamcheck/pkg/types"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the streamcheck HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx := context.Background()

	shutdown, err := setupTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdown()

	logger := slog.Default()

	r, err := newRunner(ctx, cfg, logger)
	if err != nil {
		return err
	}

	store := watcher.NewStore()
	srv := server.New(cfg.Server.Addr, r.Run, store, cfg.Server.APIKey, cfg.Server.MaxRequestBody)

	interval, err := cfg.WatchInterval()
	if err != nil {
		return fmt.Errorf("parsing watch interval: %w", err)
	}

	var w *watcher.Watcher
	if interval > 0 && len(cfg.Watch.AMGIDs) > 0 {
		run := func(ctx context.Context, amgid string) (types.Report, error) {
			return r.Run(ctx, types.ValidationRequest{AMGID: amgid})
		}
		w = watcher.New(run, store, cfg.Watch.AMGIDs, interval, r.alerts.AlertFunc(), logger)
		w.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		color.Yellow("\nReceived %s, shutting down...", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if w != nil {
			w.Stop(shutdownCtx)
		}
		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		color.Green("Server stopped gracefully")
		return nil
	}
}
