package classify

import (
	"fmt"

	"github.com/streamops/streamcheck/pkg/types"
)

// Bitrate classifies the sampled stream bitrates. Any non-positive or
// unparsable value invalidates the endpoint; an empty sample set stays VALID
// because no bad value was observed.
func Bitrate(samples []types.BitrateSample) (types.BitrateValidity, string) {
	for _, s := range samples {
		if !s.Parsed {
			return types.BitrateInvalid, fmt.Sprintf("stream %d reports an unparsable bitrate", s.Stream)
		}
		if s.BitsPerSecond <= 0 {
			return types.BitrateInvalid, fmt.Sprintf("stream %d reports bitrate %d", s.Stream, s.BitsPerSecond)
		}
	}
	return types.BitrateValid, ""
}
