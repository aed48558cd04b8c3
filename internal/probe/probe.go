// Package probe runs the external measurements behind the signal classifiers:
// HLS manifest polling and ffmpeg/ffprobe analysis. The engine consumes the
// parsed samples; it never sees tool invocations.
package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/exec"
	"time"

	"github.com/streamops/streamcheck/pkg/types"
)

// Sentinel errors for the two contained probe failure modes. "No data" is an
// empty sample set, never an error.
var (
	ErrUnavailable = errors.New("probe unavailable")
	ErrTimeout     = errors.New("probe timed out")
)

// ReachError reports that an endpoint's manifest could not be fetched at all.
// It is the only probe error that fails an endpoint outright.
type ReachError struct {
	URL string
	Err error
}

func (e *ReachError) Error() string {
	return fmt.Sprintf("endpoint unreachable: %s: %v", e.URL, e.Err)
}

func (e *ReachError) Unwrap() error { return e.Err }

// StreamInfo is the resolved view of an HLS endpoint after the reachability
// gate: the media playlist to probe plus what the manifest declares about it.
type StreamInfo struct {
	// MediaURL is the playlist the probes run against: the highest-bandwidth
	// variant of a master playlist, or the input URL itself.
	MediaURL      string
	Bandwidth     int64
	Codecs        []string
	HasAudio      bool
	MediaSequence int64
	Ended         bool
	SegmentCount  int
	// SegmentsOK is false when some, but not all, of the leading segments
	// failed their reachability check. All failing is a ReachError.
	SegmentsOK bool
}

// Prober is the measurement contract the engine consumes.
type Prober interface {
	Reach(ctx context.Context, url string) (*StreamInfo, error)
	Liveness(ctx context.Context, url string, window time.Duration) ([]types.LivenessSample, error)
	Audio(ctx context.Context, url string, window time.Duration) (types.AudioStats, error)
	Video(ctx context.Context, url string, window time.Duration) (types.VideoStats, error)
	Bitrate(ctx context.Context, url string) ([]types.BitrateSample, error)
}

// runCmdFunc executes an external tool and returns its stdout and stderr.
type runCmdFunc func(ctx context.Context, name string, args ...string) (string, string, error)

// StreamProber implements Prober over HTTP manifest polling and
// ffmpeg/ffprobe subprocesses.
type StreamProber struct {
	cfg         types.CheckConfig
	ffmpegPath  string
	ffprobePath string
	client      *http.Client
	logger      *slog.Logger
	runCmd      runCmdFunc
}

// Option configures a StreamProber.
type Option func(*StreamProber)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) Option {
	return func(p *StreamProber) { p.client = c }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *StreamProber) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithCommandRunner sets a custom subprocess runner (useful for testing).
func WithCommandRunner(f runCmdFunc) Option {
	return func(p *StreamProber) { p.runCmd = f }
}

// NewStreamProber creates a prober with the given thresholds and tool paths.
func NewStreamProber(cfg types.CheckConfig, ffmpegPath, ffprobePath string, opts ...Option) *StreamProber {
	p := &StreamProber{
		cfg:         cfg,
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	if p.client == nil {
		p.client = &http.Client{Timeout: cfg.RequestTimeout}
	}
	if p.runCmd == nil {
		p.runCmd = runCommand
	}
	return p
}

// runCommand executes a tool and maps its failure modes onto the probe error
// taxonomy. Detection filters write to stderr, so stderr is returned even on
// success.
func runCommand(ctx context.Context, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded || ctx.Err() == context.Canceled {
			return stdout.String(), stderr.String(), fmt.Errorf("%w: %s: %v", ErrTimeout, name, ctx.Err())
		}
		if errors.Is(err, exec.ErrNotFound) {
			return stdout.String(), stderr.String(), fmt.Errorf("%w: %s not found", ErrUnavailable, name)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.String(), stderr.String(),
				fmt.Errorf("%w: %s exited %d: %s", ErrUnavailable, name, exitErr.ExitCode(), tail(stderr.String(), 300))
		}
		return stdout.String(), stderr.String(), fmt.Errorf("%w: %s: %v", ErrUnavailable, name, err)
	}
	return stdout.String(), stderr.String(), nil
}

// tail returns the last n bytes of s for compact error text.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
