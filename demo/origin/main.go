// Command origin is a self-contained stand-in for everything a streamcheck
// run talks to over HTTP: the delivery metadata API and the CDN edge. It
// answers delivery queries for any AMGID with two synthetic channels, one
// live and one stalled, whose HLS playlists it also serves. Point a run at
// it to watch reachability and liveness classification end to end without
// credentials or a real CDN:
//
//	go run ./demo/origin
//	STREAMCHECK_API_URL=http://localhost:8765 STREAMCHECK_API_TOKEN=demo \
//	    streamcheck run DEMO01 --cdn-only
//
// Segments are stub TS packets, so the ffmpeg and ffprobe probes report
// notes instead of measurements.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	deliveriesPath = "/api/v1/delivery_views/deliveries"
	playlistDepth  = 5
	baseSequence   = 1000
)

type origin struct {
	start  time.Time
	segDur time.Duration
}

// record mirrors the delivery API row shape the client consumes.
type record struct {
	AMGID       string `json:"amg_id"`
	FeedName    string `json:"feed_name"`
	FeedCode    string `json:"feed_code"`
	Platform    string `json:"platform"`
	Environment string `json:"environment"`
	StreamURL   string `json:"stream_url"`
}

type page struct {
	Total      int      `json:"total"`
	Shown      int      `json:"shown"`
	Deliveries []record `json:"deliveries"`
}

// deliveries answers the metadata query with the two synthetic channels. A
// query without an AMGID (the reachability ping) gets an empty page.
func (o *origin) deliveries(w http.ResponseWriter, r *http.Request) {
	amgid := r.URL.Query().Get("amgid")

	p := page{}
	if amgid != "" {
		base := "http://" + r.Host
		p.Deliveries = []record{
			{
				AMGID:       amgid,
				FeedName:    "Demo Live",
				FeedCode:    "DEMO-LIVE",
				Platform:    "demo",
				Environment: "prod",
				StreamURL:   base + "/live/master.m3u8",
			},
			{
				AMGID:       amgid,
				FeedName:    "Demo Stalled",
				FeedCode:    "DEMO-STALLED",
				Platform:    "demo",
				Environment: "prod",
				StreamURL:   base + "/stalled/master.m3u8",
			},
		}
	}
	p.Total = len(p.Deliveries)
	p.Shown = len(p.Deliveries)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(p)
}

// sequence is the current media-sequence number for a channel. The live
// channel advances one segment per segment duration; the stalled channel
// never moves, which the liveness classifier reads as FROZEN.
func (o *origin) sequence(channel string) int64 {
	if channel == "stalled" {
		return baseSequence
	}
	return baseSequence + int64(time.Since(o.start)/o.segDur)
}

func validChannel(channel string) bool {
	return channel == "live" || channel == "stalled"
}

func (o *origin) master(w http.ResponseWriter, r *http.Request) {
	if !validChannel(chi.URLParam(r, "channel")) {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	fmt.Fprint(w, "#EXTM3U\n#EXT-X-VERSION:3\n")
	fmt.Fprint(w, "#EXT-X-STREAM-INF:BANDWIDTH=2400000,RESOLUTION=1280x720,CODECS=\"avc1.64001f,mp4a.40.2\"\nv0/media.m3u8\n")
	fmt.Fprint(w, "#EXT-X-STREAM-INF:BANDWIDTH=5600000,RESOLUTION=1920x1080,CODECS=\"avc1.640028,mp4a.40.2\"\nv1/media.m3u8\n")
}

func (o *origin) media(w http.ResponseWriter, r *http.Request) {
	channel := chi.URLParam(r, "channel")
	if !validChannel(channel) {
		http.NotFound(w, r)
		return
	}
	seq := o.sequence(channel)

	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	fmt.Fprint(w, "#EXTM3U\n#EXT-X-VERSION:3\n")
	fmt.Fprintf(w, "#EXT-X-TARGETDURATION:%d\n", int(o.segDur/time.Second))
	fmt.Fprintf(w, "#EXT-X-MEDIA-SEQUENCE:%d\n", seq)
	for i := int64(0); i < playlistDepth; i++ {
		fmt.Fprintf(w, "#EXTINF:%.3f,\nseg%d.ts\n", o.segDur.Seconds(), seq+i)
	}
}

// segment serves any segment name in the playlist's format as a single
// sync-byte TS packet. Real payloads are not needed for reachability.
func (o *origin) segment(w http.ResponseWriter, r *http.Request) {
	seg := chi.URLParam(r, "segment")
	if !validChannel(chi.URLParam(r, "channel")) ||
		!strings.HasPrefix(seg, "seg") || !strings.HasSuffix(seg, ".ts") {
		http.NotFound(w, r)
		return
	}
	packet := make([]byte, 188)
	packet[0] = 0x47
	w.Header().Set("Content-Type", "video/mp2t")
	_, _ = w.Write(packet)
}

func main() {
	addr := flag.String("addr", ":8765", "listen address")
	segDur := flag.Duration("segment-duration", 6*time.Second, "advertised segment duration")
	flag.Parse()

	o := &origin{start: time.Now(), segDur: *segDur}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.GetHead)
	r.Get(deliveriesPath, o.deliveries)
	r.Get("/{channel}/master.m3u8", o.master)
	r.Get("/{channel}/{variant}/media.m3u8", o.media)
	r.Get("/{channel}/{variant}/{segment}", o.segment)

	logger := slog.Default()
	logger.Info("synthetic origin listening", "addr", *addr, "segment_duration", *segDur)
	if err := http.ListenAndServe(*addr, r); err != nil {
		logger.Error("origin server failed", "error", err)
		os.Exit(1)
	}
}
