package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/streamops/streamcheck/internal/alert"
	"github.com/streamops/streamcheck/internal/config"
	"github.com/streamops/streamcheck/internal/delivery"
	"github.com/streamops/streamcheck/internal/engine"
	"github.com/streamops/streamcheck/internal/flow"
	"github.com/streamops/streamcheck/internal/probe"
	"github.com/streamops/streamcheck/internal/report"
	"github.com/streamops/streamcheck/internal/secrets"
	"github.com/streamops/streamcheck/internal/telemetry"
	"github.com/streamops/streamcheck/pkg/types"
)

// runner wires the delivery client, probe engine, flow validator and alert
// dispatcher into one validation pipeline. The run and serve commands share
// it: serve hands Run to the API server and the watcher, run calls it once.
type runner struct {
	delivery *delivery.Client
	engine   *engine.Engine
	flows    *flow.Validator
	alerts   *alert.Dispatcher
	logger   *slog.Logger
	workers  int
}

func newRunner(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*runner, error) {
	checkCfg, err := cfg.CheckConfig()
	if err != nil {
		return nil, fmt.Errorf("resolving check config: %w", err)
	}
	flowCfg, err := cfg.FlowConfig()
	if err != nil {
		return nil, fmt.Errorf("resolving flow config: %w", err)
	}

	token := cfg.Secret.Token
	if token == "" {
		resolver := secrets.NewResolver(cfg.Secret.Region)
		token, err = resolver.BearerToken(ctx, cfg.Secret.Name, cfg.Secret.Key)
		if err != nil {
			return nil, fmt.Errorf("resolving API credential: %w", err)
		}
	}

	dispatcher, err := alert.NewDispatcher(cfg.Alerts)
	if err != nil {
		return nil, fmt.Errorf("creating alert dispatcher: %w", err)
	}
	dispatcher.SetLogger(logger)

	client := delivery.NewClient(cfg.API.BaseURL, token,
		delivery.WithPageLimit(cfg.API.PageLimit),
		delivery.WithHTTPClient(&http.Client{Timeout: cfg.APITimeout()}),
		delivery.WithLogger(logger),
	)

	prober := probe.NewStreamProber(checkCfg, cfg.FFmpeg.FFmpegPath, cfg.FFmpeg.FFprobePath,
		probe.WithLogger(logger))

	eng := engine.New(prober, checkCfg,
		engine.WithAlertFunc(dispatcher.AlertFunc()),
		engine.WithLogger(logger),
		engine.WithTracer(telemetry.Tracer("streamcheck/engine")),
	)

	flows := flow.NewValidator(flowCfg,
		flow.WithRegion(cfg.Flows.Region),
		flow.WithLogger(logger),
		flow.WithTracer(telemetry.Tracer("streamcheck/flow")),
	)

	return &runner{
		delivery: client,
		engine:   eng,
		flows:    flows,
		alerts:   dispatcher,
		logger:   logger,
		workers:  checkCfg.Workers,
	}, nil
}

// Run executes one validation for the request: fetch deliveries, probe the
// CDN endpoints, scan the MediaConnect flows. Whatever completed before a
// cancellation stays in the returned report.
func (r *runner) Run(ctx context.Context, req types.ValidationRequest) (types.Report, error) {
	rep := types.Report{
		RunID:     report.NewRunID(),
		AMGID:     req.AMGID,
		StartedAt: time.Now().UTC(),
	}

	records, err := r.delivery.FetchAll(ctx, req.AMGID, delivery.Filters{
		Platform:    req.Platform,
		Environment: req.Environment,
		HostURL:     req.HostURL,
		FeedCode:    req.FeedCode,
	})
	if err != nil {
		rep.Duration = time.Since(rep.StartedAt)
		return rep, fmt.Errorf("fetching deliveries: %w", err)
	}
	r.logger.Info("deliveries fetched", "amgid", req.AMGID, "run_id", rep.RunID, "records", len(records))

	if !req.FlowsOnly {
		endpoints := delivery.CDNEndpoints(records, req.AMGID)
		verdicts, verr := r.engine.Validate(ctx, endpoints)
		rep.Endpoints = verdicts
		if verr != nil {
			rep.Duration = time.Since(rep.StartedAt)
			return rep, fmt.Errorf("endpoint validation: %w", verr)
		}
	}

	if !req.CDNOnly {
		arns := delivery.FlowARNs(records, req.AMGID)
		if len(arns) == 0 {
			// No ARNs in the delivery records; fall back to tag discovery.
			// A discovery failure downgrades to a flow-less report rather
			// than failing the endpoint results.
			discovered, derr := r.flows.DiscoverByAMGID(ctx, req.AMGID)
			if derr != nil {
				r.logger.Warn("flow discovery failed", "amgid", req.AMGID, "error", derr)
			}
			arns = discovered
		}
		if len(arns) > 0 {
			rep.Flows = r.flows.ValidateAll(ctx, arns, r.workers)
			r.alerts.DispatchFlowVerdicts(ctx, req.AMGID, rep.Flows)
		}
	}

	rep.Duration = time.Since(rep.StartedAt)
	return rep, ctx.Err()
}
