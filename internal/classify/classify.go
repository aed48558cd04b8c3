// Package classify turns raw probe samples into discrete signal
// classifications and reduces them into endpoint verdicts. Every function is
// pure: identical samples always produce identical classifications, and every
// dimension totals to one of its enumerated values. Absence of data maps to
// UNKNOWN or false, never to a missing result.
package classify

import "github.com/streamops/streamcheck/pkg/types"

// Unmeasured returns the classification set for an endpoint whose probes
// never ran or were cut off: liveness UNKNOWN, quality flags false, bitrate
// VALID (no bad value was observed).
func Unmeasured(note string) types.Signals {
	s := types.Signals{
		Liveness: types.LivenessUnknown,
		Bitrate:  types.BitrateValid,
	}
	if note != "" {
		s.Notes = append(s.Notes, note)
	}
	return s
}

// Reduce combines one endpoint's classifications into a single verdict level.
// The rules run in fixed priority order and the first match wins:
// unreachable endpoints fail, structural failures (no liveness, bad bitrate)
// fail, quality flags warn, everything else passes.
func Reduce(s types.Signals, unreachable bool) types.VerdictLevel {
	if unreachable {
		return types.VerdictFail
	}
	if s.Liveness == types.LivenessFrozen || s.Liveness == types.LivenessLooping || s.Bitrate == types.BitrateInvalid {
		return types.VerdictFail
	}
	if s.Silence || s.Distortion || s.BlackFrames || s.FrozenFrames {
		return types.VerdictWarning
	}
	return types.VerdictPass
}
