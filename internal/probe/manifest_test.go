package probe

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamops/streamcheck/pkg/types"
)

const masterPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-STREAM-INF:BANDWIDTH=2400000,RESOLUTION=1280x720,CODECS="avc1.64001f,mp4a.40.2"
lo/media.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=5600000,RESOLUTION=1920x1080,CODECS="avc1.640028,mp4a.40.2"
hi/media.m3u8
`

func mediaPlaylist(seq int64, segments ...string) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:6\n")
	fmt.Fprintf(&b, "#EXT-X-MEDIA-SEQUENCE:%d\n", seq)
	for _, s := range segments {
		fmt.Fprintf(&b, "#EXTINF:6.000,\n%s\n", s)
	}
	return b.String()
}

func testProber(t *testing.T, opts ...Option) *StreamProber {
	t.Helper()
	cfg := types.DefaultCheckConfig()
	cfg.RequestTimeout = 5 * time.Second
	return NewStreamProber(cfg, "ffmpeg", "ffprobe", opts...)
}

func TestParseManifest_Media(t *testing.T) {
	m := parseManifest(strings.NewReader(mediaPlaylist(1042, "seg1042.ts", "seg1043.ts")))

	assert.True(t, m.valid)
	assert.False(t, m.master)
	assert.True(t, m.hasSequence)
	assert.EqualValues(t, 1042, m.mediaSequence)
	assert.Equal(t, []string{"seg1042.ts", "seg1043.ts"}, m.segments)
	assert.False(t, m.ended)
}

func TestParseManifest_Master(t *testing.T) {
	m := parseManifest(strings.NewReader(masterPlaylist))

	assert.True(t, m.valid)
	assert.True(t, m.master)
	require.Len(t, m.variants, 2)
	assert.Equal(t, "lo/media.m3u8", m.variants[0].uri)
	assert.EqualValues(t, 2400000, m.variants[0].bandwidth)
	assert.Equal(t, "avc1.640028,mp4a.40.2", m.variants[1].codecs)
}

func TestParseManifest_AudioMedia(t *testing.T) {
	src := "#EXTM3U\n" +
		`#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="aud",NAME="English"` + "\n" +
		`#EXT-X-STREAM-INF:BANDWIDTH=1000000,AUDIO="aud"` + "\n" +
		"v/media.m3u8\n"
	m := parseManifest(strings.NewReader(src))

	assert.True(t, m.audioMedia)
	require.Len(t, m.variants, 1)
}

func TestParseManifest_Ended(t *testing.T) {
	src := mediaPlaylist(0, "seg0.ts") + "#EXT-X-ENDLIST\n"
	m := parseManifest(strings.NewReader(src))

	assert.True(t, m.ended)
}

func TestParseManifest_NotAPlaylist(t *testing.T) {
	m := parseManifest(strings.NewReader("<html>not here</html>"))

	assert.False(t, m.valid)
}

func TestParseAttributes_QuotedComma(t *testing.T) {
	attrs := parseAttributes(`BANDWIDTH=2400000,CODECS="avc1.64001f,mp4a.40.2",RESOLUTION=1280x720`)

	assert.Equal(t, "2400000", attrs["BANDWIDTH"])
	assert.Equal(t, "avc1.64001f,mp4a.40.2", attrs["CODECS"])
	assert.Equal(t, "1280x720", attrs["RESOLUTION"])
}

func TestPickVariant(t *testing.T) {
	best := pickVariant([]variant{
		{uri: "a", bandwidth: 100},
		{uri: "b", bandwidth: 300},
		{uri: "c", bandwidth: 200},
	})
	require.NotNil(t, best)
	assert.Equal(t, "b", best.uri)

	assert.Nil(t, pickVariant(nil))
}

func TestHasAudioCodec(t *testing.T) {
	assert.True(t, hasAudioCodec([]string{"avc1.64001f", "mp4a.40.2"}))
	assert.True(t, hasAudioCodec([]string{"EC-3"}))
	assert.False(t, hasAudioCodec([]string{"avc1.64001f"}))
	assert.False(t, hasAudioCodec(nil))
}

func TestResolveURL(t *testing.T) {
	u, err := resolveURL("https://cdn.example.com/disco/master.m3u8", "hi/media.m3u8")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/disco/hi/media.m3u8", u)

	u, err = resolveURL("https://cdn.example.com/disco/master.m3u8", "https://other.example.com/x.m3u8")
	require.NoError(t, err)
	assert.Equal(t, "https://other.example.com/x.m3u8", u)
}

// originHandler serves a master playlist, its variants, and HEAD-able
// segments. failSegments lists segment names that 404.
func originHandler(failSegments ...string) http.Handler {
	failing := make(map[string]bool)
	for _, s := range failSegments {
		failing[s] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/master.m3u8":
			_, _ = fmt.Fprint(w, masterPlaylist)
		case strings.HasSuffix(r.URL.Path, "/media.m3u8"):
			_, _ = fmt.Fprint(w, mediaPlaylist(7, "seg7.ts", "seg8.ts", "seg9.ts", "seg10.ts"))
		case strings.HasSuffix(r.URL.Path, ".ts"):
			name := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
			if failing[name] {
				http.NotFound(w, r)
				return
			}
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	})
}

func TestReach_MasterResolvesHighestVariant(t *testing.T) {
	srv := httptest.NewServer(originHandler())
	defer srv.Close()

	p := testProber(t, WithHTTPClient(srv.Client()))
	info, err := p.Reach(context.Background(), srv.URL+"/master.m3u8")
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/hi/media.m3u8", info.MediaURL)
	assert.EqualValues(t, 5600000, info.Bandwidth)
	assert.True(t, info.HasAudio)
	assert.EqualValues(t, 7, info.MediaSequence)
	assert.Equal(t, 4, info.SegmentCount)
	assert.True(t, info.SegmentsOK)
	assert.False(t, info.Ended)
}

func TestReach_MediaPlaylistDirect(t *testing.T) {
	srv := httptest.NewServer(originHandler())
	defer srv.Close()

	p := testProber(t, WithHTTPClient(srv.Client()))
	info, err := p.Reach(context.Background(), srv.URL+"/hi/media.m3u8")
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/hi/media.m3u8", info.MediaURL)
	assert.Zero(t, info.Bandwidth)
	assert.True(t, info.HasAudio)
}

func TestReach_NotAPlaylist(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "<html>maintenance</html>")
	}))
	defer srv.Close()

	p := testProber(t, WithHTTPClient(srv.Client()))
	_, err := p.Reach(context.Background(), srv.URL+"/master.m3u8")

	var reach *ReachError
	require.ErrorAs(t, err, &reach)
	assert.Contains(t, reach.Error(), "not an HLS playlist")
}

func TestReach_ManifestStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := testProber(t, WithHTTPClient(srv.Client()))
	_, err := p.Reach(context.Background(), srv.URL+"/master.m3u8")

	var reach *ReachError
	require.ErrorAs(t, err, &reach)
	assert.Contains(t, err.Error(), "status 502")
}

func TestReach_AllLeadingSegmentsDown(t *testing.T) {
	srv := httptest.NewServer(originHandler("seg7.ts", "seg8.ts", "seg9.ts"))
	defer srv.Close()

	p := testProber(t, WithHTTPClient(srv.Client()))
	_, err := p.Reach(context.Background(), srv.URL+"/master.m3u8")

	var reach *ReachError
	require.ErrorAs(t, err, &reach)
	assert.Contains(t, err.Error(), "none of the first 3 segments")
}

func TestReach_PartialSegmentFailureIsNotFatal(t *testing.T) {
	srv := httptest.NewServer(originHandler("seg8.ts"))
	defer srv.Close()

	p := testProber(t, WithHTTPClient(srv.Client()))
	info, err := p.Reach(context.Background(), srv.URL+"/master.m3u8")
	require.NoError(t, err)
	assert.False(t, info.SegmentsOK)
}

func TestReach_MasterWithoutVariants(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=100\n")
	}))
	defer srv.Close()

	p := testProber(t, WithHTTPClient(srv.Client()))
	_, err := p.Reach(context.Background(), srv.URL+"/master.m3u8")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no variants")
}

func TestLiveness_ShortWindowSinglePoll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, mediaPlaylist(55, "seg55.ts"))
	}))
	defer srv.Close()

	p := testProber(t, WithHTTPClient(srv.Client()))
	samples, err := p.Liveness(context.Background(), srv.URL+"/media.m3u8", 100*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.EqualValues(t, 55, samples[0].Sequence)
	assert.Empty(t, samples[0].Err)
}

func TestLiveness_FetchFailureBecomesSample(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := testProber(t, WithHTTPClient(srv.Client()))
	samples, err := p.Liveness(context.Background(), srv.URL+"/media.m3u8", 100*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Contains(t, samples[0].Err, "status 500")
}

func TestLiveness_MissingSequenceTag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "#EXTM3U\n#EXTINF:6.000,\nseg0.ts\n")
	}))
	defer srv.Close()

	p := testProber(t, WithHTTPClient(srv.Client()))
	samples, err := p.Liveness(context.Background(), srv.URL+"/media.m3u8", 100*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Contains(t, samples[0].Err, "no media-sequence tag")
}

func TestLiveness_CancelledWindowReturnsCollected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, mediaPlaylist(1, "seg1.ts"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := testProber(t, WithHTTPClient(srv.Client()))
	samples, err := p.Liveness(ctx, srv.URL+"/media.m3u8", time.Hour)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, samples, 1)
}
