package probe

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ffmpegAudioOut = `[silencedetect @ 0x5562] silence_start: 12.5
[silencedetect @ 0x5562] silence_end: 15.25 | silence_duration: 2.75
[Parsed_astats_1 @ 0x5562] Channel: 1
[Parsed_astats_1 @ 0x5562] Peak level dB: -0.5
[Parsed_astats_1 @ 0x5562] RMS level dB: -20.1
[Parsed_astats_1 @ 0x5562] Overall
[Parsed_astats_1 @ 0x5562] DC offset: 0.000102
[Parsed_astats_1 @ 0x5562] Peak level dB: -1.2
[Parsed_astats_1 @ 0x5562] RMS level dB: -18.7
`

const ffmpegVideoOut = `[blackdetect @ 0x5570] black_start:3.25 black_end:5.5 black_duration:2.25
[freezedetect @ 0x5570] lavfi.freezedetect.freeze_start: 10.25
[freezedetect @ 0x5570] lavfi.freezedetect.freeze_duration: 4.25
[freezedetect @ 0x5570] lavfi.freezedetect.freeze_end: 14.5
`

// captureRunner records one invocation and plays back canned output.
type captureRunner struct {
	name   string
	args   []string
	stdout string
	stderr string
	err    error
}

func (c *captureRunner) run(_ context.Context, name string, args ...string) (string, string, error) {
	c.name = name
	c.args = args
	return c.stdout, c.stderr, c.err
}

func TestAudio_CommandAndParsing(t *testing.T) {
	runner := &captureRunner{stderr: ffmpegAudioOut}
	p := testProber(t, WithCommandRunner(runner.run))

	stats, err := p.Audio(context.Background(), "https://cdn.example.com/m.m3u8", 60*time.Second)
	require.NoError(t, err)

	assert.Equal(t, "ffmpeg", runner.name)
	joined := strings.Join(runner.args, " ")
	assert.Contains(t, joined, "-t 60 ")
	assert.Contains(t, joined, "-i https://cdn.example.com/m.m3u8")
	assert.Contains(t, joined, "silencedetect=noise=-50dB:d=2,astats")
	assert.Contains(t, joined, "-vn")

	assert.True(t, stats.HasAudio)
	require.Len(t, stats.SilenceSpans, 1)
	assert.Equal(t, 12500*time.Millisecond, stats.SilenceSpans[0].Start)
	assert.Equal(t, 15250*time.Millisecond, stats.SilenceSpans[0].End)
	// astats emits per-channel blocks first; the overall block wins.
	assert.InDelta(t, -1.2, stats.PeakDB, 1e-9)
	assert.InDelta(t, -18.7, stats.RMSDB, 1e-9)
	assert.InDelta(t, 0.000102, stats.DCOffset, 1e-9)
}

func TestParseAudioStats_OpenSilenceClosedAtWindow(t *testing.T) {
	stats := parseAudioStats("[silencedetect @ 0x1] silence_start: 50\n", time.Minute)

	require.Len(t, stats.SilenceSpans, 1)
	assert.Equal(t, 50*time.Second, stats.SilenceSpans[0].Start)
	assert.Equal(t, time.Minute, stats.SilenceSpans[0].End)
}

func TestParseAudioStats_InfLevels(t *testing.T) {
	out := "Peak level dB: -inf\nRMS level dB: -inf\n"
	stats := parseAudioStats(out, time.Minute)

	assert.True(t, math.IsInf(stats.PeakDB, -1))
	assert.True(t, math.IsInf(stats.RMSDB, -1))
	assert.Empty(t, stats.SilenceSpans)
}

func TestVideo_CommandAndParsing(t *testing.T) {
	runner := &captureRunner{stderr: ffmpegVideoOut}
	p := testProber(t, WithCommandRunner(runner.run))

	stats, err := p.Video(context.Background(), "https://cdn.example.com/m.m3u8", 60*time.Second)
	require.NoError(t, err)

	assert.Equal(t, "ffmpeg", runner.name)
	joined := strings.Join(runner.args, " ")
	assert.Contains(t, joined, "blackdetect=d=0.5:pix_th=0.1")
	assert.Contains(t, joined, "freezedetect=n=-60dB:d=2")
	assert.Contains(t, joined, "-an")

	require.Len(t, stats.BlackSpans, 1)
	assert.Equal(t, 3250*time.Millisecond, stats.BlackSpans[0].Start)
	assert.Equal(t, 5500*time.Millisecond, stats.BlackSpans[0].End)
	require.Len(t, stats.FreezeSpans, 1)
	assert.Equal(t, 10250*time.Millisecond, stats.FreezeSpans[0].Start)
	assert.Equal(t, 14500*time.Millisecond, stats.FreezeSpans[0].End)
}

func TestParseVideoStats_OpenFreezeClosedAtWindow(t *testing.T) {
	stats := parseVideoStats("lavfi.freezedetect.freeze_start: 100\n", 2*time.Minute)

	require.Len(t, stats.FreezeSpans, 1)
	assert.Equal(t, 100*time.Second, stats.FreezeSpans[0].Start)
	assert.Equal(t, 2*time.Minute, stats.FreezeSpans[0].End)
}

func TestBitrate_ParsesDeclaredRates(t *testing.T) {
	runner := &captureRunner{stdout: "2400000\nN/A\n128000\n"}
	p := testProber(t, WithCommandRunner(runner.run))

	samples, err := p.Bitrate(context.Background(), "https://cdn.example.com/m.m3u8")
	require.NoError(t, err)

	assert.Equal(t, "ffprobe", runner.name)
	require.Len(t, samples, 3)
	assert.True(t, samples[0].Parsed)
	assert.EqualValues(t, 2400000, samples[0].BitsPerSecond)
	assert.False(t, samples[1].Parsed)
	assert.True(t, samples[2].Parsed)
	assert.Equal(t, 2, samples[2].Stream)
}

func TestBitrate_EmptyOutput(t *testing.T) {
	runner := &captureRunner{}
	p := testProber(t, WithCommandRunner(runner.run))

	samples, err := p.Bitrate(context.Background(), "https://cdn.example.com/m.m3u8")
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestProbes_RunnerErrorPassthrough(t *testing.T) {
	runner := &captureRunner{err: fmt.Errorf("%w: ffmpeg not found", ErrUnavailable)}
	p := testProber(t, WithCommandRunner(runner.run))

	_, err := p.Audio(context.Background(), "u", time.Minute)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = p.Video(context.Background(), "u", time.Minute)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = p.Bitrate(context.Background(), "u")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRunCommand_NotFound(t *testing.T) {
	_, _, err := runCommand(context.Background(), "definitely-not-a-real-binary-5439")

	require.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "not found")
}

func TestRunCommand_ExitErrorCarriesStderrTail(t *testing.T) {
	_, _, err := runCommand(context.Background(), "sh", "-c", "echo analysis failed >&2; exit 3")

	require.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "exited 3")
	assert.Contains(t, err.Error(), "analysis failed")
}

func TestRunCommand_Timeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err := runCommand(ctx, "sleep", "5")
	require.ErrorIs(t, err, ErrTimeout)
}

func TestRunCommand_Success(t *testing.T) {
	stdout, stderr, err := runCommand(context.Background(), "sh", "-c", "echo out; echo err >&2")
	require.NoError(t, err)
	assert.Equal(t, "out\n", stdout)
	assert.Equal(t, "err\n", stderr)
}

func TestTail(t *testing.T) {
	assert.Equal(t, "short", tail("short", 300))
	long := strings.Repeat("x", 400) + "END"
	got := tail(long, 10)
	assert.True(t, strings.HasPrefix(got, "..."))
	assert.True(t, strings.HasSuffix(got, "END"))
	assert.Len(t, got, 13)
}
