package lambda

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/streamops/streamcheck/internal/alert"
	"github.com/streamops/streamcheck/internal/flow"
	"github.com/streamops/streamcheck/pkg/types"
)

// Deps holds shared dependencies for Lambda handlers.
type Deps struct {
	Flows   *flow.Validator
	Alerts  *alert.Dispatcher
	Logger  *slog.Logger
	AMGIDs  []string
	Workers int
}

// Init creates shared dependencies from environment variables.
// Reads: AWS_REGION (FLOW_REGION overrides), SNS_TOPIC_ARN, AMGIDS,
// FLOW_LOOKBACK, FLOW_PERIOD, WORKERS.
func Init(ctx context.Context) (*Deps, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	region := os.Getenv("FLOW_REGION")
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		return nil, fmt.Errorf("AWS_REGION environment variable required")
	}

	flowCfg := types.DefaultFlowCheckConfig()
	lookback, err := time.ParseDuration(envOrDefault("FLOW_LOOKBACK", "3h"))
	if err != nil {
		return nil, fmt.Errorf("parsing FLOW_LOOKBACK: %w", err)
	}
	flowCfg.Lookback = lookback

	period, err := time.ParseDuration(envOrDefault("FLOW_PERIOD", "5m"))
	if err != nil {
		return nil, fmt.Errorf("parsing FLOW_PERIOD: %w", err)
	}
	flowCfg.Period = period

	workers, err := strconv.Atoi(envOrDefault("WORKERS", "4"))
	if err != nil || workers < 1 {
		return nil, fmt.Errorf("WORKERS must be a positive integer")
	}

	// Alerts go to SNS when a topic is configured, the function log otherwise.
	alertCfgs := []types.AlertConfig{{Type: types.AlertConsole}}
	if topic := os.Getenv("SNS_TOPIC_ARN"); topic != "" {
		alertCfgs = []types.AlertConfig{{Type: types.AlertSNS, TopicARN: topic}}
	}
	dispatcher, err := alert.NewDispatcher(alertCfgs)
	if err != nil {
		return nil, fmt.Errorf("creating alert dispatcher: %w", err)
	}
	dispatcher.SetLogger(logger)

	validator := flow.NewValidator(flowCfg,
		flow.WithRegion(region),
		flow.WithLogger(logger),
	)

	return &Deps{
		Flows:   validator,
		Alerts:  dispatcher,
		Logger:  logger,
		AMGIDs:  splitAMGIDs(os.Getenv("AMGIDS")),
		Workers: workers,
	}, nil
}

func splitAMGIDs(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
