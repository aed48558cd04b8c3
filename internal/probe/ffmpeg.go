package probe

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/streamops/streamcheck/pkg/types"
)

// Detection lines ffmpeg filters write to stderr.
var (
	silenceStartRe = regexp.MustCompile(`silence_start: (-?\d+(?:\.\d+)?)`)
	silenceEndRe   = regexp.MustCompile(`silence_end: (-?\d+(?:\.\d+)?) \| silence_duration: (-?\d+(?:\.\d+)?)`)
	peakLevelRe    = regexp.MustCompile(`Peak level dB: (-?inf|-?\d+(?:\.\d+)?)`)
	rmsLevelRe     = regexp.MustCompile(`RMS level dB: (-?inf|-?\d+(?:\.\d+)?)`)
	dcOffsetRe     = regexp.MustCompile(`DC offset: (-?\d+(?:\.\d+)?)`)
	blackRe        = regexp.MustCompile(`black_start:(-?\d+(?:\.\d+)?) black_end:(-?\d+(?:\.\d+)?)`)
	freezeStartRe  = regexp.MustCompile(`freeze_start: (-?\d+(?:\.\d+)?)`)
	freezeEndRe    = regexp.MustCompile(`freeze_end: (-?\d+(?:\.\d+)?)`)
)

// Audio runs silence detection and level statistics over one window.
func (p *StreamProber) Audio(ctx context.Context, mediaURL string, window time.Duration) (types.AudioStats, error) {
	filter := "silencedetect=noise=" + formatDB(p.cfg.SilenceNoiseDB) +
		":d=" + formatSeconds(p.cfg.SilenceMinDuration) + ",astats"
	args := []string{
		"-hide_banner", "-nostats", "-v", "info",
		"-t", formatSeconds(window),
		"-i", mediaURL,
		"-vn", "-af", filter,
		"-f", "null", "-",
	}
	_, stderr, err := p.runCmd(ctx, p.ffmpegPath, args...)
	if err != nil {
		return types.AudioStats{}, err
	}
	return parseAudioStats(stderr, window), nil
}

// Video runs black and freeze detection over one window.
func (p *StreamProber) Video(ctx context.Context, mediaURL string, window time.Duration) (types.VideoStats, error) {
	filter := "blackdetect=d=" + formatSeconds(p.cfg.BlackMinDuration) +
		":pix_th=" + strconv.FormatFloat(p.cfg.BlackPixelThreshold, 'f', -1, 64) +
		",freezedetect=n=" + formatDB(p.cfg.FreezeNoiseDB) +
		":d=" + formatSeconds(p.cfg.FreezeMinDuration)
	args := []string{
		"-hide_banner", "-nostats", "-v", "info",
		"-t", formatSeconds(window),
		"-i", mediaURL,
		"-an", "-vf", filter,
		"-f", "null", "-",
	}
	_, stderr, err := p.runCmd(ctx, p.ffmpegPath, args...)
	if err != nil {
		return types.VideoStats{}, err
	}
	return parseVideoStats(stderr, window), nil
}

// Bitrate reads each stream's declared bit_rate via ffprobe.
func (p *StreamProber) Bitrate(ctx context.Context, mediaURL string) ([]types.BitrateSample, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()

	args := []string{
		"-v", "error",
		"-show_entries", "stream=bit_rate",
		"-of", "default=noprint_wrappers=1:nokey=1",
		mediaURL,
	}
	stdout, _, err := p.runCmd(ctx, p.ffprobePath, args...)
	if err != nil {
		return nil, err
	}
	return parseBitrates(stdout), nil
}

// parseAudioStats extracts silence spans and level statistics from ffmpeg
// stderr. A silence still open when the window ends is closed at the window
// boundary. astats prints per-channel blocks before the overall block, so the
// last match of each statistic wins.
func parseAudioStats(out string, window time.Duration) types.AudioStats {
	stats := types.AudioStats{HasAudio: true, PeakDB: math.Inf(-1), RMSDB: math.Inf(-1)}

	var openStart *time.Duration
	for _, line := range strings.Split(out, "\n") {
		if m := silenceEndRe.FindStringSubmatch(line); m != nil {
			end := secondsToDuration(m[1])
			dur := secondsToDuration(m[2])
			stats.SilenceSpans = append(stats.SilenceSpans, types.Span{Start: end - dur, End: end})
			openStart = nil
			continue
		}
		if m := silenceStartRe.FindStringSubmatch(line); m != nil {
			start := secondsToDuration(m[1])
			openStart = &start
			continue
		}
		if m := peakLevelRe.FindStringSubmatch(line); m != nil {
			stats.PeakDB = parseLevel(m[1])
			continue
		}
		if m := rmsLevelRe.FindStringSubmatch(line); m != nil {
			stats.RMSDB = parseLevel(m[1])
			continue
		}
		if m := dcOffsetRe.FindStringSubmatch(line); m != nil {
			stats.DCOffset = parseLevel(m[1])
		}
	}
	if openStart != nil && window > *openStart {
		stats.SilenceSpans = append(stats.SilenceSpans, types.Span{Start: *openStart, End: window})
	}
	return stats
}

// parseVideoStats extracts black and freeze spans from ffmpeg stderr.
// blackdetect reports complete spans on one line; freezedetect reports start
// and end on separate lines, and a freeze still open at the window end is
// closed at the boundary.
func parseVideoStats(out string, window time.Duration) types.VideoStats {
	var stats types.VideoStats

	var freezeStart *time.Duration
	for _, line := range strings.Split(out, "\n") {
		if m := blackRe.FindStringSubmatch(line); m != nil {
			stats.BlackSpans = append(stats.BlackSpans, types.Span{
				Start: secondsToDuration(m[1]),
				End:   secondsToDuration(m[2]),
			})
			continue
		}
		if m := freezeStartRe.FindStringSubmatch(line); m != nil {
			start := secondsToDuration(m[1])
			freezeStart = &start
			continue
		}
		if m := freezeEndRe.FindStringSubmatch(line); m != nil {
			end := secondsToDuration(m[1])
			if freezeStart != nil {
				stats.FreezeSpans = append(stats.FreezeSpans, types.Span{Start: *freezeStart, End: end})
				freezeStart = nil
			}
		}
	}
	if freezeStart != nil && window > *freezeStart {
		stats.FreezeSpans = append(stats.FreezeSpans, types.Span{Start: *freezeStart, End: window})
	}
	return stats
}

// parseBitrates converts ffprobe bit_rate lines into samples. Unparsable
// values (ffprobe prints "N/A" for streams without a declared rate) are kept
// as unparsed samples for the classifier to judge.
func parseBitrates(out string) []types.BitrateSample {
	var samples []types.BitrateSample
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		s := types.BitrateSample{Stream: len(samples)}
		if v, err := strconv.ParseInt(line, 10, 64); err == nil {
			s.BitsPerSecond = v
			s.Parsed = true
		}
		samples = append(samples, s)
	}
	return samples
}

func parseLevel(s string) float64 {
	switch s {
	case "-inf":
		return math.Inf(-1)
	case "inf":
		return math.Inf(1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func secondsToDuration(s string) time.Duration {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return time.Duration(v * float64(time.Second))
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

func formatDB(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "dB"
}
