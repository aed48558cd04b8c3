package classify

import (
	"fmt"
	"math"

	"github.com/streamops/streamcheck/pkg/types"
)

// Silence flags a window containing any contiguous low-level span at least
// cfg.SilenceMinDuration long. A stream that declares no audio at all is
// flagged silent outright.
func Silence(stats types.AudioStats, cfg types.CheckConfig) (bool, string) {
	if !stats.HasAudio {
		return true, "no audio stream declared"
	}
	for _, span := range stats.SilenceSpans {
		if span.Duration() >= cfg.SilenceMinDuration {
			return true, fmt.Sprintf("silence of %.1fs starting at %.1fs",
				span.Duration().Seconds(), span.Start.Seconds())
		}
	}
	return false, ""
}

// Distortion flags a window whose level statistics fall outside the
// configured normal bounds. Any single out-of-bound statistic suffices:
// a peak at the clip ceiling, a DC offset off center, or an RMS level that is
// either hot enough to clip or too low to carry a signal.
func Distortion(stats types.AudioStats, cfg types.CheckConfig) (bool, string) {
	if !stats.HasAudio {
		return false, ""
	}
	if stats.PeakDB >= cfg.PeakMaxDB {
		return true, fmt.Sprintf("peak level %.2f dB at or above %.2f dB", stats.PeakDB, cfg.PeakMaxDB)
	}
	if math.Abs(stats.DCOffset) > cfg.DCOffsetMax {
		return true, fmt.Sprintf("DC offset %.3f outside ±%.3f", stats.DCOffset, cfg.DCOffsetMax)
	}
	if stats.RMSDB > cfg.RMSMaxDB {
		return true, fmt.Sprintf("RMS level %.2f dB above %.2f dB", stats.RMSDB, cfg.RMSMaxDB)
	}
	if stats.RMSDB < cfg.RMSMinDB {
		return true, fmt.Sprintf("RMS level %.2f dB below %.2f dB", stats.RMSDB, cfg.RMSMinDB)
	}
	return false, ""
}
