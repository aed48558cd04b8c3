// Package delivery fetches delivery records from the upstream metadata API
// and derives the validation targets for an AMGID: CDN stream URLs and
// MediaConnect flow ARNs.
package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/streamops/streamcheck/pkg/types"
)

const deliveriesPath = "/api/v1/delivery_views/deliveries"

// Record is one delivery row as returned by the metadata API. Only the
// fields streamcheck consumes are mapped.
type Record struct {
	AMGID                string `json:"amg_id"`
	FeedName             string `json:"feed_name"`
	FeedCode             string `json:"feed_code"`
	Platform             string `json:"platform"`
	Environment          string `json:"environment"`
	HostURL              string `json:"host_url"`
	Cname                string `json:"cname"`
	StreamURL            string `json:"stream_url"`
	FinalDestinationType string `json:"final_destination_type"`
	FinalDestinationID   string `json:"final_destination_id"`
	PrevDestinationID    string `json:"prev_destination_id"`
}

// page is the API envelope for one deliveries page.
type page struct {
	Total      int      `json:"total"`
	Shown      int      `json:"shown"`
	Deliveries []Record `json:"deliveries"`
}

// Filters narrows the delivery query server-side.
type Filters struct {
	Platform    string
	Environment string
	HostURL     string
	FeedCode    string
}

// Client talks to the delivery metadata API with bearer auth. A circuit
// breaker guards the upstream: after repeated failures further calls fail
// fast instead of hammering a dead API.
type Client struct {
	baseURL   string
	token     string
	pageLimit int
	http      *http.Client
	breaker   *gobreaker.CircuitBreaker
	logger    *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) ClientOption {
	return func(d *Client) { d.http = c }
}

// WithPageLimit overrides the page size requested from the API.
func WithPageLimit(n int) ClientOption {
	return func(d *Client) {
		if n > 0 {
			d.pageLimit = n
		}
	}
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(d *Client) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewClient creates a delivery API client for the given base URL and bearer
// token.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		pageLimit: 10000,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: types.DefaultRequestTimeout}
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "delivery-api",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("delivery API breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// Ping verifies the delivery API is reachable and accepts the bearer token.
// 401 and 403 surface as auth errors; other client errors still count as
// reachable since the probe request carries no AMGID.
func (c *Client) Ping(ctx context.Context) error {
	q := url.Values{}
	q.Set("limit", "1")
	q.Set("offset", "0")

	u := c.baseURL + deliveriesPath + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return fmt.Errorf("delivery ping: creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("delivery ping: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("delivery ping: authentication rejected (status %d)", resp.StatusCode)
	case resp.StatusCode >= 500:
		return fmt.Errorf("delivery ping: returned status %d", resp.StatusCode)
	}
	return nil
}

// FetchAll pages through every delivery for the AMGID. Paging stops when a
// page comes back short or the server-reported total is reached.
func (c *Client) FetchAll(ctx context.Context, amgid string, f Filters) ([]Record, error) {
	var all []Record
	offset := 0
	for {
		p, err := c.fetchPage(ctx, amgid, f, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, p.Deliveries...)
		c.logger.Debug("delivery page fetched", "amgid", amgid, "offset", offset, "shown", p.Shown, "total", p.Total)
		if len(all) >= p.Total || len(p.Deliveries) < c.pageLimit {
			break
		}
		offset += c.pageLimit
	}
	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, amgid string, f Filters, offset int) (*page, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doFetch(ctx, amgid, f, offset)
	})
	if err != nil {
		return nil, err
	}
	return out.(*page), nil
}

func (c *Client) doFetch(ctx context.Context, amgid string, f Filters, offset int) (*page, error) {
	q := url.Values{}
	q.Set("amgid", amgid)
	q.Set("limit", strconv.Itoa(c.pageLimit))
	q.Set("offset", strconv.Itoa(offset))
	if f.Platform != "" {
		q.Set("platform", f.Platform)
	}
	if f.Environment != "" {
		q.Set("env", f.Environment)
	}
	if f.HostURL != "" {
		q.Set("host_url", f.HostURL)
	}
	if f.FeedCode != "" {
		q.Set("feed_code", f.FeedCode)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+deliveriesPath+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("delivery fetch: creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("delivery fetch: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("delivery fetch: reading response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("delivery fetch: returned status %d: %s", resp.StatusCode, string(body))
	}

	var p page
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("delivery fetch: parsing response: %w", err)
	}
	return &p, nil
}
