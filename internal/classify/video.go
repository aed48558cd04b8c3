package classify

import (
	"fmt"

	"github.com/streamops/streamcheck/pkg/types"
)

// BlackFrames flags a window containing any near-black span at least
// cfg.BlackMinDuration long.
func BlackFrames(stats types.VideoStats, cfg types.CheckConfig) (bool, string) {
	for _, span := range stats.BlackSpans {
		if span.Duration() >= cfg.BlackMinDuration {
			return true, fmt.Sprintf("black frames for %.1fs starting at %.1fs",
				span.Duration().Seconds(), span.Start.Seconds())
		}
	}
	return false, ""
}

// FrozenFrames flags a window containing any span of unchanged frames at
// least cfg.FreezeMinDuration long.
func FrozenFrames(stats types.VideoStats, cfg types.CheckConfig) (bool, string) {
	for _, span := range stats.FreezeSpans {
		if span.Duration() >= cfg.FreezeMinDuration {
			return true, fmt.Sprintf("frozen frames for %.1fs starting at %.1fs",
				span.Duration().Seconds(), span.Start.Seconds())
		}
	}
	return false, ""
}
