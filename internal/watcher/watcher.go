// Package watcher re-runs validations on a fixed interval and keeps the most
// recent report available for the API layer.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/streamops/streamcheck/internal/metrics"
	"github.com/streamops/streamcheck/pkg/types"
)

// defaultInterval applies when the configured watch interval is missing or
// not positive.
const defaultInterval = 5 * time.Minute

// RunFunc executes one full validation for an AMGID and returns its report.
type RunFunc func(ctx context.Context, amgid string) (types.Report, error)

// Watcher re-validates a fixed set of AMGIDs on a ticker and publishes each
// finished report to the store.
type Watcher struct {
	run      RunFunc
	store    *Store
	amgids   []string
	interval time.Duration
	alertFn  func(types.Alert)
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Watcher.
func New(run RunFunc, store *Store, amgids []string, interval time.Duration, alertFn func(types.Alert), logger *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		run:      run,
		store:    store,
		amgids:   amgids,
		interval: interval,
		alertFn:  alertFn,
		logger:   logger,
	}
}

// Start begins the watcher polling loop.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.logger.Info("watcher started", "interval", w.interval, "amgids", len(w.amgids))

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		// Run immediately on start
		w.cycle(ctx)

		for {
			select {
			case <-ctx.Done():
				w.logger.Info("watcher stopping")
				return
			case <-ticker.C:
				w.cycle(ctx)
			}
		}
	}()
}

// Stop gracefully shuts down the watcher.
func (w *Watcher) Stop(ctx context.Context) {
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("watcher stopped")
	case <-ctx.Done():
		w.logger.Warn("watcher stop timed out")
	}
}

func (w *Watcher) cycle(ctx context.Context) {
	metrics.WatcherCycles.Add(1)

	for _, amgid := range w.amgids {
		if ctx.Err() != nil {
			return
		}

		rep, err := w.run(ctx, amgid)
		if err != nil {
			w.logger.Error("scheduled validation failed", "amgid", amgid, "error", err)
			w.fireAlert(types.Alert{
				Level:     types.AlertLevelError,
				AMGID:     amgid,
				Message:   fmt.Sprintf("scheduled validation failed: %v", err),
				Timestamp: time.Now().UTC(),
			})
			continue
		}

		w.store.Set(rep)

		sum := rep.Summarize()
		w.logger.Info("validation cycle completed",
			"amgid", amgid,
			"run_id", rep.RunID,
			"pass", sum.Pass,
			"warnings", sum.Warnings,
			"failures", sum.Failures)

		switch {
		case sum.Failures > 0:
			w.fireAlert(types.Alert{
				Level:   types.AlertLevelError,
				AMGID:   amgid,
				Message: fmt.Sprintf("scheduled validation found %d failing checks", sum.Failures),
				Details: map[string]interface{}{
					"run_id":    rep.RunID,
					"endpoints": sum.Endpoints,
					"flows":     sum.Flows,
					"warnings":  sum.Warnings,
					"failures":  sum.Failures,
				},
				Timestamp: time.Now().UTC(),
			})
		case sum.Warnings > 0:
			w.fireAlert(types.Alert{
				Level:   types.AlertLevelWarning,
				AMGID:   amgid,
				Message: fmt.Sprintf("scheduled validation passed with %d warnings", sum.Warnings),
				Details: map[string]interface{}{
					"run_id":   rep.RunID,
					"warnings": sum.Warnings,
				},
				Timestamp: time.Now().UTC(),
			})
		}
	}
}

func (w *Watcher) fireAlert(alert types.Alert) {
	if w.alertFn != nil {
		w.alertFn(alert)
	}
}
