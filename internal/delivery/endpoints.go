package delivery

import (
	"sort"
	"strings"

	"github.com/streamops/streamcheck/pkg/types"
)

const flowARNPrefix = "arn:aws:mediaconnect:"

// HLSURL converts a delivery cname into a playable HLS URL.
func HLSURL(cname string) string {
	if cname == "" {
		return ""
	}
	if !strings.HasPrefix(cname, "http") {
		cname = "https://" + cname
	}
	if !strings.HasSuffix(cname, ".m3u8") {
		cname += "/playlist.m3u8"
	}
	return cname
}

// CDNEndpoints derives the CDN test targets for the AMGID. stream_url wins
// when present; otherwise the cname is converted into an HLS URL. Records
// with neither are dropped.
func CDNEndpoints(records []Record, amgid string) []types.DeliveryEndpoint {
	var out []types.DeliveryEndpoint
	for _, r := range records {
		if r.AMGID != amgid {
			continue
		}
		target := strings.TrimSpace(r.StreamURL)
		if target == "" {
			target = HLSURL(strings.TrimSpace(r.Cname))
		}
		if target == "" {
			continue
		}
		out = append(out, types.DeliveryEndpoint{
			ID:          endpointID(r, amgid),
			AMGID:       amgid,
			Kind:        types.KindCDN,
			URL:         target,
			Platform:    r.Platform,
			Environment: r.Environment,
			FeedCode:    r.FeedCode,
		})
	}
	return out
}

// FlowARNs extracts the unique MediaConnect flow ARNs for the AMGID from
// prev_destination_id, sorted for a stable fan-out order.
func FlowARNs(records []Record, amgid string) []string {
	seen := make(map[string]struct{})
	for _, r := range records {
		if r.AMGID != amgid {
			continue
		}
		arn := strings.TrimSpace(r.PrevDestinationID)
		if !strings.HasPrefix(arn, flowARNPrefix) || !strings.Contains(arn, ":flow:") {
			continue
		}
		seen[arn] = struct{}{}
	}
	arns := make([]string, 0, len(seen))
	for arn := range seen {
		arns = append(arns, arn)
	}
	sort.Strings(arns)
	return arns
}

func endpointID(r Record, amgid string) string {
	switch {
	case r.FeedName != "":
		return r.FeedName
	case r.FeedCode != "":
		return r.FeedCode
	default:
		return amgid
	}
}
