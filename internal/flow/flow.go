// Package flow validates MediaConnect flows: control-plane state via
// DescribeFlow and source health via CloudWatch metric windows.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/mediaconnect"
	mctypes "github.com/aws/aws-sdk-go-v2/service/mediaconnect/types"
	"github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/streamops/streamcheck/internal/metrics"
	"github.com/streamops/streamcheck/pkg/types"
)

// MediaConnectAPI is the subset of the AWS MediaConnect client used by the flow package.
type MediaConnectAPI interface {
	DescribeFlow(ctx context.Context, params *mediaconnect.DescribeFlowInput, optFns ...func(*mediaconnect.Options)) (*mediaconnect.DescribeFlowOutput, error)
}

// CloudWatchAPI is the subset of the AWS CloudWatch client used by the flow package.
type CloudWatchAPI interface {
	GetMetricStatistics(ctx context.Context, params *cloudwatch.GetMetricStatisticsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error)
}

// TaggingAPI is the subset of the Resource Groups Tagging API client used for
// flow discovery.
type TaggingAPI interface {
	GetResources(ctx context.Context, params *resourcegroupstaggingapi.GetResourcesInput, optFns ...func(*resourcegroupstaggingapi.Options)) (*resourcegroupstaggingapi.GetResourcesOutput, error)
}

// Validator holds injectable AWS SDK clients and produces one
// FlowHealthRecord per flow ARN. Flows live in the region their ARN names, so
// MediaConnect and CloudWatch clients are cached per region; an injected
// client serves every region.
type Validator struct {
	cfg    types.FlowCheckConfig
	region string
	logger *slog.Logger
	tracer trace.Tracer

	mu         sync.Mutex
	mcFixed    MediaConnectAPI
	cwFixed    CloudWatchAPI
	mcByRegion map[string]MediaConnectAPI
	cwByRegion map[string]CloudWatchAPI
	tagClient  TaggingAPI
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithMediaConnectClient sets a custom MediaConnect client (useful for testing).
func WithMediaConnectClient(c MediaConnectAPI) ValidatorOption {
	return func(v *Validator) { v.mcFixed = c }
}

// WithCloudWatchClient sets a custom CloudWatch client.
func WithCloudWatchClient(c CloudWatchAPI) ValidatorOption {
	return func(v *Validator) { v.cwFixed = c }
}

// WithTaggingClient sets a custom Resource Groups Tagging API client.
func WithTaggingClient(c TaggingAPI) ValidatorOption {
	return func(v *Validator) { v.tagClient = c }
}

// WithRegion sets the home region for tag-based discovery.
func WithRegion(region string) ValidatorOption {
	return func(v *Validator) {
		if region != "" {
			v.region = region
		}
	}
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) ValidatorOption {
	return func(v *Validator) {
		if l != nil {
			v.logger = l
		}
	}
}

// WithTracer sets the tracer used for per-flow spans.
func WithTracer(t trace.Tracer) ValidatorOption {
	return func(v *Validator) { v.tracer = t }
}

// NewValidator creates a Validator with the given metric-window parameters.
func NewValidator(cfg types.FlowCheckConfig, opts ...ValidatorOption) *Validator {
	v := &Validator{
		cfg:        cfg,
		region:     "us-east-1",
		logger:     slog.Default(),
		mcByRegion: map[string]MediaConnectAPI{},
		cwByRegion: map[string]CloudWatchAPI{},
	}
	for _, o := range opts {
		o(v)
	}
	if v.tracer == nil {
		v.tracer = noop.NewTracerProvider().Tracer("")
	}
	return v
}

// ValidateAll validates every flow ARN with bounded concurrency and returns
// one record per ARN in input order. One flow's API failure never blocks the
// others.
func (v *Validator) ValidateAll(ctx context.Context, arns []string, workers int) []types.FlowHealthRecord {
	if workers <= 0 {
		workers = types.DefaultWorkers
	}
	records := make([]types.FlowHealthRecord, len(arns))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, arn := range arns {
		i, arn := i, arn // per-iteration copies: required under go <1.22 loop semantics
		g.Go(func() error {
			records[i] = v.ValidateFlow(ctx, arn)
			return nil
		})
	}
	_ = g.Wait()

	return records
}

// ValidateFlow produces the health record for a single flow. It never returns
// an error: API failures are contained in the record.
func (v *Validator) ValidateFlow(ctx context.Context, arn string) types.FlowHealthRecord {
	rec := types.FlowHealthRecord{FlowARN: arn, Connection: types.ConnectionUnknown}
	metrics.FlowScansTotal.Add(1)

	ctx, span := v.tracer.Start(ctx, "flow.validate", trace.WithAttributes(
		attribute.String("flow.arn", arn),
	))
	defer span.End()

	region, err := RegionFromARN(arn)
	if err != nil {
		return v.failed(rec, err)
	}
	rec.Region = region

	mc, err := v.mediaConnect(ctx, region)
	if err != nil {
		return v.failed(rec, err)
	}

	out, err := mc.DescribeFlow(ctx, &mediaconnect.DescribeFlowInput{FlowArn: aws.String(arn)})
	if err != nil {
		return v.failed(rec, fmt.Errorf("DescribeFlow failed: %w", err))
	}
	if out.Flow == nil {
		return v.failed(rec, fmt.Errorf("DescribeFlow returned no flow for %s", arn))
	}

	f := out.Flow
	rec.Name = aws.ToString(f.Name)
	rec.Status = string(f.Status)
	rec.State = statusState(f.Status)
	for _, e := range f.Entitlements {
		rec.Entitlements = append(rec.Entitlements, types.Entitlement{
			Name:   aws.ToString(e.Name),
			Status: string(e.EntitlementStatus),
		})
		if e.EntitlementStatus == mctypes.EntitlementStatusDisabled && rec.State == types.FlowHealthy {
			rec.State = types.FlowDegraded
		}
	}
	rec.Outputs = len(f.Outputs)
	rec.OutputsComplete = outputsComplete(f.Outputs)

	cw, cwErr := v.cloudWatch(ctx, region)
	if cwErr == nil {
		var sm sourceMetrics
		sm, cwErr = v.fetchSourceMetrics(ctx, cw, arn)
		if cwErr == nil {
			a := analyze(sm, v.cfg)
			rec.AvgBitrate = a.avgBitrate
			rec.BitrateStable = a.bitrateStable
			rec.RecoveredPackets = a.recovered
			rec.NotRecoveredPackets = a.notRecovered
			rec.Connection = a.connection
		}
	}
	if cwErr != nil {
		// Metric fields stay at their unknown defaults; the flow record itself
		// still reflects the control-plane state.
		rec.Error = cwErr.Error()
		v.logger.Warn("flow metrics unavailable", "flow", arn, "error", cwErr)
	}

	rec.Verdict = flowVerdict(rec)
	if rec.Verdict == types.VerdictFail {
		metrics.FlowScansFailed.Add(1)
	}
	v.logger.Info("flow validated",
		"flow", rec.Name, "region", rec.Region, "status", rec.Status, "verdict", rec.Verdict)
	return rec
}

func (v *Validator) failed(rec types.FlowHealthRecord, err error) types.FlowHealthRecord {
	rec.State = types.FlowUnhealthy
	rec.Verdict = types.VerdictFail
	rec.Error = err.Error()
	metrics.FlowScansFailed.Add(1)
	v.logger.Warn("flow validation failed", "flow", rec.FlowARN, "error", err)
	return rec
}

// flowVerdict maps one flow record onto the verdict scale. Checked in
// severity order; the first match wins.
func flowVerdict(rec types.FlowHealthRecord) types.VerdictLevel {
	switch {
	case rec.State == types.FlowUnhealthy:
		return types.VerdictFail
	case !rec.OutputsComplete:
		return types.VerdictFail
	case rec.State == types.FlowDegraded:
		return types.VerdictWarning
	case !rec.BitrateStable || rec.Connection == types.ConnectionDisconnected:
		return types.VerdictWarning
	default:
		return types.VerdictPass
	}
}

// statusState folds the MediaConnect flow status onto the three-level health
// scale. ENABLED is accepted alongside ACTIVE; some consoles report it.
func statusState(status mctypes.Status) types.FlowState {
	switch strings.ToUpper(string(status)) {
	case "ACTIVE", "ENABLED":
		return types.FlowHealthy
	case "STANDBY":
		return types.FlowDegraded
	default:
		return types.FlowUnhealthy
	}
}

// outputsComplete reports whether every declared output carries its full
// delivery configuration. A flow with no outputs is vacuously complete.
func outputsComplete(outputs []mctypes.Output) bool {
	for _, o := range outputs {
		if aws.ToString(o.OutputArn) == "" {
			return false
		}
		if aws.ToString(o.Destination) == "" &&
			aws.ToString(o.ListenerAddress) == "" &&
			aws.ToString(o.MediaLiveInputArn) == "" {
			return false
		}
	}
	return true
}

// RegionFromARN extracts the region segment of a flow ARN
// (arn:aws:mediaconnect:region:account:flow:id:name).
func RegionFromARN(arn string) (string, error) {
	parts := strings.Split(arn, ":")
	if len(parts) < 4 || parts[3] == "" {
		return "", fmt.Errorf("invalid flow ARN %q", arn)
	}
	return parts[3], nil
}

func (v *Validator) mediaConnect(ctx context.Context, region string) (MediaConnectAPI, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.mcFixed != nil {
		return v.mcFixed, nil
	}
	if c, ok := v.mcByRegion[region]; ok {
		return c, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	c := mediaconnect.NewFromConfig(cfg, func(o *mediaconnect.Options) { o.Region = region })
	v.mcByRegion[region] = c
	return c, nil
}

func (v *Validator) cloudWatch(ctx context.Context, region string) (CloudWatchAPI, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cwFixed != nil {
		return v.cwFixed, nil
	}
	if c, ok := v.cwByRegion[region]; ok {
		return c, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	c := cloudwatch.NewFromConfig(cfg, func(o *cloudwatch.Options) { o.Region = region })
	v.cwByRegion[region] = c
	return c, nil
}

func (v *Validator) tagging(ctx context.Context) (TaggingAPI, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.tagClient != nil {
		return v.tagClient, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	v.tagClient = resourcegroupstaggingapi.NewFromConfig(cfg, func(o *resourcegroupstaggingapi.Options) { o.Region = v.region })
	return v.tagClient, nil
}
