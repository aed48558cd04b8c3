// Package commands implements the CLI subcommands for the streamcheck binary.
package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/streamops/streamcheck/internal/config"
	"github.com/streamops/streamcheck/internal/telemetry"
)

// ErrValidationFailed marks a run that completed but found failing checks.
// The CI contract maps it to exit code 1; operational errors exit 2.
var ErrValidationFailed = errors.New("validation failed")

var (
	configDir    string
	buildVersion = "dev"
)

// NewRootCmd assembles the streamcheck command tree.
func NewRootCmd(version string) *cobra.Command {
	if version != "" {
		buildVersion = version
	}

	root := &cobra.Command{
		Use:   "streamcheck",
		Short: "Stream quality and flow health validation",
		Long: `Streamcheck validates live channel delivery end to end: it probes the CDN
HLS endpoints of an AMGID for liveness, audio and video defects, and scans the
MediaConnect flows feeding them for state, entitlement, and bitrate health.`,
		Version:       buildVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configDir, "config", ".", "directory containing streamcheck.yaml")

	root.AddCommand(
		NewRunCmd(),
		NewFlowsCmd(),
		NewServeCmd(),
		NewPreflightCmd(),
		NewVersionCmd(),
	)
	return root
}

// ExitCode maps a command error onto the process exit code: 0 for success,
// 1 for completed runs with failing checks, 2 for everything else.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrValidationFailed):
		return 1
	default:
		return 2
	}
}

// setupTelemetry installs the tracer provider from config. The returned
// shutdown func is always safe to call.
func setupTelemetry(ctx context.Context, cfg *config.Config) (func(), error) {
	provider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		ServiceName: "streamcheck",
		Version:     buildVersion,
		Exporter:    cfg.Telemetry.Exporter,
		Endpoint:    cfg.Telemetry.Endpoint,
		Sampling:    cfg.Telemetry.Sampling,
	})
	if err != nil {
		return nil, fmt.Errorf("setting up telemetry: %w", err)
	}
	return func() {
		_ = provider.Shutdown(context.Background())
	}, nil
}
