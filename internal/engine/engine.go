// Package engine implements the concurrent endpoint test orchestrator.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/streamops/streamcheck/internal/classify"
	"github.com/streamops/streamcheck/internal/metrics"
	"github.com/streamops/streamcheck/internal/probe"
	"github.com/streamops/streamcheck/pkg/types"
)

// Engine fans the probe battery out over many endpoints with bounded
// concurrency and reduces each endpoint's signals into one verdict.
type Engine struct {
	prober  probe.Prober
	cfg     types.CheckConfig
	alertFn func(types.Alert)
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithAlertFunc sets the callback fired for every degraded verdict.
func WithAlertFunc(fn func(types.Alert)) Option {
	return func(e *Engine) { e.alertFn = fn }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTracer sets the tracer used for per-endpoint spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// New creates an Engine running probes through the given prober.
func New(p probe.Prober, cfg types.CheckConfig, opts ...Option) *Engine {
	e := &Engine{
		prober: p,
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.tracer == nil {
		e.tracer = noop.NewTracerProvider().Tracer("")
	}
	return e
}

// Validate runs the full probe battery for every endpoint, at most
// cfg.Workers at a time, and returns exactly one verdict per endpoint in
// input order regardless of completion order. Each worker writes only its own
// index, so result assembly needs no locking. One endpoint's failure or
// timeout never aborts a sibling. On process-wide cancellation the completed
// verdicts are kept and the remaining endpoints carry cancellation markers;
// the returned error is the context's, never a per-endpoint failure.
func (e *Engine) Validate(ctx context.Context, endpoints []types.DeliveryEndpoint) ([]types.EndpointVerdict, error) {
	verdicts := make([]types.EndpointVerdict, len(endpoints))

	var g errgroup.Group
	g.SetLimit(e.cfg.Workers)
	for i, ep := range endpoints {
		i, ep := i, ep // per-iteration copies: required under go <1.22 loop semantics
		g.Go(func() error {
			verdicts[i] = e.testEndpoint(ctx, ep)
			return nil
		})
	}
	_ = g.Wait()

	return verdicts, ctx.Err()
}

// testEndpoint runs one endpoint's probe set under the endpoint timeout and
// reduces the outcome. It never returns an error: every failure mode becomes
// a verdict.
func (e *Engine) testEndpoint(ctx context.Context, ep types.DeliveryEndpoint) types.EndpointVerdict {
	started := time.Now()
	v := types.EndpointVerdict{Endpoint: ep, CheckedAt: started}
	metrics.EndpointTestsTotal.Add(1)

	if ctx.Err() != nil {
		v.Level = types.VerdictFail
		v.Signals = classify.Unmeasured("endpoint test cancelled before start")
		v.Error = "run cancelled"
		metrics.EndpointTestsFailed.Add(1)
		return v
	}
	if ep.URL == "" {
		v.Level = types.VerdictFail
		v.Signals = classify.Unmeasured("")
		v.Error = "endpoint has no stream URL"
		metrics.EndpointTestsFailed.Add(1)
		return v
	}

	ctx, span := e.tracer.Start(ctx, "engine.test_endpoint", trace.WithAttributes(
		attribute.String("endpoint.id", ep.ID),
		attribute.String("endpoint.url", ep.URL),
	))
	defer span.End()

	tctx, cancel := context.WithTimeout(ctx, e.cfg.EndpointTimeout)
	defer cancel()

	info, err := e.prober.Reach(tctx, ep.URL)
	if err != nil {
		v.Level = types.VerdictFail
		v.Signals = classify.Unmeasured("")
		v.Error = err.Error()
		v.Elapsed = time.Since(started)
		metrics.EndpointTestsFailed.Add(1)
		e.logger.Warn("endpoint unreachable", "endpoint", ep.ID, "url", ep.URL, "error", err)
		e.fireVerdictAlert(v)
		return v
	}

	signals := e.probeSignals(tctx, info)

	v.Elapsed = time.Since(started)
	if tctx.Err() != nil {
		// Partial classifications from a cancelled test are discarded.
		v.Level = types.VerdictFail
		if ctx.Err() != nil {
			v.Signals = classify.Unmeasured("endpoint test cancelled")
			v.Error = "run cancelled"
		} else {
			v.Signals = classify.Unmeasured("measurements discarded after timeout")
			v.Error = fmt.Sprintf("endpoint test exceeded %s", e.cfg.EndpointTimeout)
		}
		metrics.EndpointTestsFailed.Add(1)
		e.fireVerdictAlert(v)
		return v
	}

	v.Signals = signals
	v.Level = classify.Reduce(signals, false)
	if v.Level == types.VerdictFail {
		metrics.EndpointTestsFailed.Add(1)
	}
	e.logger.Info("endpoint tested",
		"endpoint", ep.ID, "level", v.Level, "liveness", signals.Liveness, "elapsed", v.Elapsed)
	e.fireVerdictAlert(v)
	return v
}

// probeSignals runs the four probe dimensions concurrently. The dimensions
// are mutually independent; each goroutine owns one result slot, and notes
// are assembled in a fixed order so identical runs produce identical output.
func (e *Engine) probeSignals(ctx context.Context, info *probe.StreamInfo) types.Signals {
	var (
		livenessState types.LivenessState
		livenessNote  string

		silence        bool
		silenceNote    string
		distortion     bool
		distortionNote string

		black      bool
		blackNote  string
		frozen     bool
		frozenNote string

		bitrate     types.BitrateValidity
		bitrateNote string
	)

	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		samples, _ := e.prober.Liveness(ctx, info.MediaURL, e.cfg.Window)
		livenessState, livenessNote = classify.Liveness(samples, e.cfg)
	}()

	go func() {
		defer wg.Done()
		if !info.HasAudio {
			silence, silenceNote = classify.Silence(types.AudioStats{HasAudio: false}, e.cfg)
			return
		}
		stats, err := e.prober.Audio(ctx, info.MediaURL, e.cfg.Window)
		if err != nil {
			silenceNote = fmt.Sprintf("audio probe failed: %v", err)
			metrics.ProbeErrors.Add(1)
			return
		}
		silence, silenceNote = classify.Silence(stats, e.cfg)
		distortion, distortionNote = classify.Distortion(stats, e.cfg)
	}()

	go func() {
		defer wg.Done()
		stats, err := e.prober.Video(ctx, info.MediaURL, e.cfg.Window)
		if err != nil {
			blackNote = fmt.Sprintf("video probe failed: %v", err)
			metrics.ProbeErrors.Add(1)
			return
		}
		black, blackNote = classify.BlackFrames(stats, e.cfg)
		frozen, frozenNote = classify.FrozenFrames(stats, e.cfg)
	}()

	go func() {
		defer wg.Done()
		bitrate = types.BitrateValid
		samples, err := e.prober.Bitrate(ctx, info.MediaURL)
		if err != nil {
			bitrateNote = fmt.Sprintf("bitrate probe failed: %v", err)
			metrics.ProbeErrors.Add(1)
			return
		}
		bitrate, bitrateNote = classify.Bitrate(samples)
	}()

	wg.Wait()

	s := types.Signals{
		Liveness:     livenessState,
		Silence:      silence,
		Distortion:   distortion,
		BlackFrames:  black,
		FrozenFrames: frozen,
		Bitrate:      bitrate,
	}
	for _, note := range []string{livenessNote, silenceNote, distortionNote, blackNote, frozenNote, bitrateNote} {
		if note != "" {
			s.Notes = append(s.Notes, note)
		}
	}
	if !info.SegmentsOK {
		s.Notes = append(s.Notes, "some leading segments are unreachable")
	}
	if info.Ended {
		s.Notes = append(s.Notes, "manifest carries an end-of-stream marker")
	}
	return s
}

func (e *Engine) fireVerdictAlert(v types.EndpointVerdict) {
	if e.alertFn == nil || v.Level == types.VerdictPass {
		return
	}
	level := types.AlertLevelWarning
	if v.Level == types.VerdictFail {
		level = types.AlertLevelError
	}
	msg := fmt.Sprintf("endpoint %s verdict %s", v.Endpoint.ID, v.Level)
	if v.Error != "" {
		msg += ": " + v.Error
	}
	e.alertFn(types.Alert{
		Level:     level,
		AMGID:     v.Endpoint.AMGID,
		Target:    v.Endpoint.URL,
		Message:   msg,
		Details:   map[string]interface{}{"signals": v.Signals},
		Timestamp: time.Now(),
	})
}
