package classify

import (
	"fmt"

	"github.com/streamops/streamcheck/pkg/types"
)

// Liveness classifies media-sequence progression across one test window.
//
// Fewer than two readable samples leave the dimension UNKNOWN. A sequence
// that ever decreases revisits earlier content and is LOOPING. A sequence
// unchanged across the whole window is FROZEN once enough samples confirm the
// stall (cfg.MinStallSamples); with fewer confirmations it is reported as
// LOOPING rather than FROZEN. Any observed forward progress is LIVE: a single
// mid-window stall that later resumes does not freeze the endpoint.
func Liveness(samples []types.LivenessSample, cfg types.CheckConfig) (types.LivenessState, string) {
	var valid []types.LivenessSample
	for _, s := range samples {
		if s.Err == "" {
			valid = append(valid, s)
		}
	}

	if len(valid) < 2 {
		return types.LivenessUnknown,
			fmt.Sprintf("media sequence unreadable: %d of %d polls usable", len(valid), len(samples))
	}

	progressed := false
	for i := 1; i < len(valid); i++ {
		delta := valid[i].Sequence - valid[i-1].Sequence
		if delta < 0 {
			return types.LivenessLooping,
				fmt.Sprintf("media sequence decreased from %d to %d", valid[i-1].Sequence, valid[i].Sequence)
		}
		if delta > 0 {
			progressed = true
		}
	}

	if !progressed {
		if len(valid) >= cfg.MinStallSamples {
			return types.LivenessFrozen,
				fmt.Sprintf("media sequence %d unchanged across %d polls", valid[0].Sequence, len(valid))
		}
		return types.LivenessLooping,
			fmt.Sprintf("media sequence %d repeated across %d polls", valid[0].Sequence, len(valid))
	}
	return types.LivenessLive, ""
}
