package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/streamops/streamcheck/internal/alert"
	"github.com/streamops/streamcheck/internal/config"
	"github.com/streamops/streamcheck/internal/flow"
	"github.com/streamops/streamcheck/internal/report"
	"github.com/streamops/streamcheck/internal/telemetry"
	"github.com/streamops/streamcheck/pkg/types"
)

// NewFlowsCmd creates the flows command.
func NewFlowsCmd() *cobra.Command {
	var amgid string

	cmd := &cobra.Command{
		Use:   "flows [flow-arn...]",
		Short: "Scan MediaConnect flows without touching the CDN",
		Long: `Scans MediaConnect flows directly: pass flow ARNs as arguments, or use
--amgid to discover the flows tagged with an AMGID.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && amgid == "" {
				return errors.New("provide flow ARNs or --amgid")
			}
			if len(args) > 0 && amgid != "" {
				return errors.New("flow ARNs and --amgid are mutually exclusive")
			}
			return runFlows(args, amgid)
		},
	}

	cmd.Flags().StringVar(&amgid, "amgid", "", "Discover flows tagged with this AMGID")
	return cmd
}

func runFlows(arns []string, amgid string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	flowCfg, err := cfg.FlowConfig()
	if err != nil {
		return fmt.Errorf("resolving flow config: %w", err)
	}

	ctx := context.Background()

	shutdown, err := setupTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdown()

	logger := slog.Default()

	dispatcher, err := alert.NewDispatcher(cfg.Alerts)
	if err != nil {
		return fmt.Errorf("creating alert dispatcher: %w", err)
	}
	dispatcher.SetLogger(logger)

	v := flow.NewValidator(flowCfg,
		flow.WithRegion(cfg.Flows.Region),
		flow.WithLogger(logger),
		flow.WithTracer(telemetry.Tracer("streamcheck/flow")),
	)

	if len(arns) == 0 {
		arns, err = v.DiscoverByAMGID(ctx, amgid)
		if err != nil {
			return fmt.Errorf("discovering flows for %s: %w", amgid, err)
		}
		if len(arns) == 0 {
			return fmt.Errorf("no flows tagged with AMGID %s", amgid)
		}
	}

	rep := types.Report{
		RunID:     report.NewRunID(),
		AMGID:     amgid,
		StartedAt: time.Now().UTC(),
	}
	rep.Flows = v.ValidateAll(ctx, arns, cfg.Checks.Workers)
	rep.Duration = time.Since(rep.StartedAt)

	dispatcher.DispatchFlowVerdicts(ctx, amgid, rep.Flows)

	w, err := report.NewWriter(cfg.Reports.Dir)
	if err != nil {
		return fmt.Errorf("creating report writer: %w", err)
	}
	if _, err := w.WriteFlowCSV(rep); err != nil {
		return fmt.Errorf("writing flow report: %w", err)
	}

	report.Print(rep)

	if sum := rep.Summarize(); sum.Failures > 0 {
		return fmt.Errorf("%w: %d of %d flows failing", ErrValidationFailed, sum.Failures, sum.Flows)
	}
	return nil
}
