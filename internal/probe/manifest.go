package probe

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/streamops/streamcheck/pkg/types"
)

// leadingSegmentChecks is how many segments the reachability gate verifies.
const leadingSegmentChecks = 3

// manifest is the parsed view of one HLS playlist.
type manifest struct {
	valid         bool
	master        bool
	mediaSequence int64
	hasSequence   bool
	ended         bool
	variants      []variant
	segments      []string
	audioMedia    bool
}

type variant struct {
	uri       string
	bandwidth int64
	codecs    string
}

// Reach fetches and resolves the endpoint's manifest. Master playlists
// resolve to their highest-bandwidth variant. Any failure to obtain a usable
// media playlist is a ReachError; the caller fails the endpoint on it.
func (p *StreamProber) Reach(ctx context.Context, rawURL string) (*StreamInfo, error) {
	m, err := p.fetchManifest(ctx, rawURL)
	if err != nil {
		return nil, &ReachError{URL: rawURL, Err: err}
	}
	if !m.valid {
		return nil, &ReachError{URL: rawURL, Err: fmt.Errorf("not an HLS playlist")}
	}

	info := &StreamInfo{MediaURL: rawURL, HasAudio: true, SegmentsOK: true}

	media := m
	if m.master {
		best := pickVariant(m.variants)
		if best == nil {
			return nil, &ReachError{URL: rawURL, Err: fmt.Errorf("master playlist lists no variants")}
		}
		mediaURL, err := resolveURL(rawURL, best.uri)
		if err != nil {
			return nil, &ReachError{URL: rawURL, Err: fmt.Errorf("resolving variant URI: %w", err)}
		}
		info.MediaURL = mediaURL
		info.Bandwidth = best.bandwidth
		if best.codecs != "" {
			info.Codecs = strings.Split(best.codecs, ",")
			info.HasAudio = hasAudioCodec(info.Codecs) || m.audioMedia
		}
		media, err = p.fetchManifest(ctx, mediaURL)
		if err != nil {
			return nil, &ReachError{URL: mediaURL, Err: err}
		}
		if !media.valid {
			return nil, &ReachError{URL: mediaURL, Err: fmt.Errorf("variant is not an HLS playlist")}
		}
	}

	info.MediaSequence = media.mediaSequence
	info.Ended = media.ended
	info.SegmentCount = len(media.segments)

	if len(media.segments) > 0 {
		ok, total := p.checkSegments(ctx, info.MediaURL, media.segments)
		info.SegmentsOK = ok == total
		if ok == 0 {
			return nil, &ReachError{URL: info.MediaURL, Err: fmt.Errorf("none of the first %d segments are reachable", total)}
		}
	}
	return info, nil
}

// Liveness polls the media playlist's media-sequence number across the window.
// Individual poll failures become samples carrying error text; the slice is
// returned even when the context ends the window early.
func (p *StreamProber) Liveness(ctx context.Context, mediaURL string, window time.Duration) ([]types.LivenessSample, error) {
	interval := p.cfg.LivenessPollInterval()
	deadline := time.Now().Add(window)

	var samples []types.LivenessSample
	for len(samples) < types.DefaultLivenessPolls {
		samples = append(samples, p.pollSequence(ctx, mediaURL))

		if time.Now().Add(interval).After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return samples, ctx.Err()
		case <-time.After(interval):
		}
	}
	return samples, nil
}

func (p *StreamProber) pollSequence(ctx context.Context, mediaURL string) types.LivenessSample {
	s := types.LivenessSample{At: time.Now()}
	m, err := p.fetchManifest(ctx, mediaURL)
	switch {
	case err != nil:
		s.Err = err.Error()
	case !m.valid:
		s.Err = "not an HLS playlist"
	case !m.hasSequence:
		s.Err = "manifest has no media-sequence tag"
	default:
		s.Sequence = m.mediaSequence
	}
	return s
}

// fetchManifest GETs and parses one playlist under the request timeout.
func (p *StreamProber) fetchManifest(ctx context.Context, rawURL string) (*manifest, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching manifest: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("manifest returned status %d", resp.StatusCode)
	}
	return parseManifest(resp.Body), nil
}

// parseManifest scans a playlist line by line. It handles both master and
// media playlists; unknown tags are ignored.
func parseManifest(r io.Reader) *manifest {
	m := &manifest{}
	var pendingVariant *variant
	pendingSegment := false

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "#EXTM3U":
			m.valid = true
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			attrs := parseAttributes(strings.TrimPrefix(line, "#EXT-X-STREAM-INF:"))
			v := variant{codecs: attrs["CODECS"]}
			if bw, err := strconv.ParseInt(attrs["BANDWIDTH"], 10, 64); err == nil {
				v.bandwidth = bw
			}
			pendingVariant = &v
			m.master = true
		case strings.HasPrefix(line, "#EXT-X-MEDIA:"):
			attrs := parseAttributes(strings.TrimPrefix(line, "#EXT-X-MEDIA:"))
			if attrs["TYPE"] == "AUDIO" {
				m.audioMedia = true
			}
		case strings.HasPrefix(line, "#EXT-X-MEDIA-SEQUENCE:"):
			if seq, err := strconv.ParseInt(strings.TrimPrefix(line, "#EXT-X-MEDIA-SEQUENCE:"), 10, 64); err == nil {
				m.mediaSequence = seq
				m.hasSequence = true
			}
		case strings.HasPrefix(line, "#EXTINF:"):
			pendingSegment = true
		case line == "#EXT-X-ENDLIST":
			m.ended = true
		case strings.HasPrefix(line, "#"):
			// other tag
		default:
			if pendingVariant != nil {
				pendingVariant.uri = line
				m.variants = append(m.variants, *pendingVariant)
				pendingVariant = nil
			} else if pendingSegment {
				m.segments = append(m.segments, line)
				pendingSegment = false
			}
		}
	}
	return m
}

// parseAttributes splits an HLS attribute list, honoring quoted values that
// contain commas (CODECS="avc1.64001f,mp4a.40.2").
func parseAttributes(s string) map[string]string {
	attrs := make(map[string]string)
	var key, val strings.Builder
	inQuotes := false
	onKey := true

	flush := func() {
		if key.Len() > 0 {
			attrs[key.String()] = val.String()
		}
		key.Reset()
		val.Reset()
		onKey = true
	}

	for _, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == '=' && onKey:
			onKey = false
		case r == ',' && !inQuotes:
			flush()
		case onKey:
			key.WriteRune(r)
		default:
			val.WriteRune(r)
		}
	}
	flush()
	return attrs
}

// pickVariant returns the highest-bandwidth variant.
func pickVariant(variants []variant) *variant {
	var best *variant
	for i := range variants {
		if best == nil || variants[i].bandwidth > best.bandwidth {
			best = &variants[i]
		}
	}
	return best
}

var audioCodecPrefixes = []string{"mp4a", "ac-3", "ec-3", "opus", "flac"}

func hasAudioCodec(codecs []string) bool {
	for _, c := range codecs {
		c = strings.TrimSpace(strings.ToLower(c))
		for _, prefix := range audioCodecPrefixes {
			if strings.HasPrefix(c, prefix) {
				return true
			}
		}
	}
	return false
}

// resolveURL resolves a possibly relative playlist or segment URI against its
// manifest URL.
func resolveURL(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}

// checkSegments HEADs the first few segments and reports how many respond.
func (p *StreamProber) checkSegments(ctx context.Context, mediaURL string, segments []string) (ok, total int) {
	n := len(segments)
	if n > leadingSegmentChecks {
		n = leadingSegmentChecks
	}
	for _, seg := range segments[:n] {
		segURL, err := resolveURL(mediaURL, seg)
		if err != nil {
			continue
		}
		if p.headOK(ctx, segURL) {
			ok++
		}
	}
	return ok, n
}

func (p *StreamProber) headOK(ctx context.Context, rawURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode < 400
}
