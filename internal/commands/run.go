package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/streamops/streamcheck/internal/config"
	"github.com/streamops/streamcheck/internal/report"
	"github.com/streamops/streamcheck/pkg/types"
)

type runOptions struct {
	cdnOnly     bool
	flowsOnly   bool
	platform    string
	environment string
	hostURL     string
	feedCode    string
	workers     int
	window      string
	jsonOut     bool
	outputDir   string
	noUpload    bool
}

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [amgid]",
		Short: "Validate the CDN endpoints and MediaConnect flows of an AMGID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidation(args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.cdnOnly, "cdn-only", false, "Probe CDN endpoints only, skip flow scans")
	cmd.Flags().BoolVar(&opts.flowsOnly, "flows-only", false, "Scan MediaConnect flows only, skip CDN probes")
	cmd.MarkFlagsMutuallyExclusive("cdn-only", "flows-only")
	cmd.Flags().StringVar(&opts.platform, "platform", "", "Filter deliveries by platform")
	cmd.Flags().StringVar(&opts.environment, "environment", "", "Filter deliveries by environment")
	cmd.Flags().StringVar(&opts.hostURL, "host-url", "", "Filter deliveries by host URL")
	cmd.Flags().StringVar(&opts.feedCode, "feed-code", "", "Filter deliveries by feed code")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Concurrent endpoint probes (overrides config)")
	cmd.Flags().StringVar(&opts.window, "window", "", "Sampling window per endpoint, e.g. 90s (overrides config)")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Also write the full report as JSON")
	cmd.Flags().StringVar(&opts.outputDir, "output-dir", "", "Report output directory (overrides config)")
	cmd.Flags().BoolVar(&opts.noUpload, "no-upload", false, "Skip the S3 report upload")

	return cmd
}

func runValidation(amgid string, opts runOptions) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if opts.workers > 0 {
		cfg.Checks.Workers = opts.workers
	}
	if opts.window != "" {
		cfg.Checks.Window = opts.window
	}

	ctx := context.Background()

	shutdown, err := setupTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdown()

	r, err := newRunner(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}

	rep, err := r.Run(ctx, types.ValidationRequest{
		AMGID:       amgid,
		Platform:    opts.platform,
		Environment: opts.environment,
		HostURL:     opts.hostURL,
		FeedCode:    opts.feedCode,
		CDNOnly:     opts.cdnOnly,
		FlowsOnly:   opts.flowsOnly,
	})
	if err != nil {
		return err
	}

	paths, err := writeReports(rep, cfg, opts)
	if err != nil {
		return err
	}

	report.Print(rep)

	if cfg.Reports.S3Bucket != "" && !opts.noUpload {
		if err := uploadReports(ctx, cfg, rep.RunID, paths); err != nil {
			return err
		}
	}

	if sum := rep.Summarize(); sum.Failures > 0 {
		return fmt.Errorf("%w: %d of %d checks failing", ErrValidationFailed, sum.Failures, sum.Endpoints+sum.Flows)
	}
	return nil
}

func writeReports(rep types.Report, cfg *config.Config, opts runOptions) ([]string, error) {
	dir := cfg.Reports.Dir
	if opts.outputDir != "" {
		dir = opts.outputDir
	}
	w, err := report.NewWriter(dir)
	if err != nil {
		return nil, fmt.Errorf("creating report writer: %w", err)
	}

	var paths []string
	if !opts.flowsOnly {
		p, err := w.WriteCDNCSV(rep)
		if err != nil {
			return nil, fmt.Errorf("writing CDN report: %w", err)
		}
		paths = append(paths, p)
	}
	if !opts.cdnOnly {
		p, err := w.WriteFlowCSV(rep)
		if err != nil {
			return nil, fmt.Errorf("writing flow report: %w", err)
		}
		paths = append(paths, p)
	}
	if opts.jsonOut {
		p, err := w.WriteJSON(rep)
		if err != nil {
			return nil, fmt.Errorf("writing JSON report: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func uploadReports(ctx context.Context, cfg *config.Config, runID string, paths []string) error {
	up, err := report.NewUploader(cfg.Reports.S3Bucket, cfg.Reports.S3Prefix)
	if err != nil {
		return fmt.Errorf("creating S3 uploader: %w", err)
	}
	for _, p := range paths {
		key, err := up.Upload(ctx, runID, p)
		if err != nil {
			return fmt.Errorf("uploading %s: %w", p, err)
		}
		fmt.Printf("  Uploaded s3://%s/%s\n", cfg.Reports.S3Bucket, key)
	}
	return nil
}
