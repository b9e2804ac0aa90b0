package pagespeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"siteaudit/internal/extract"
	"siteaudit/pkg/types"
)

// ErrUnavailable is returned when the metrics service cannot deliver a
// usable result. Callers fall back to browser-observed timings.
var ErrUnavailable = errors.New("pagespeed: metrics service unavailable")

// Options configures the external metrics client.
type Options struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
	Logger   *slog.Logger
}

// Client queries an external performance-metrics service for the primary
// URL of an audit run. It is consulted once per run, never per page.
type Client struct {
	endpoint string
	apiKey   string
	httpc    *http.Client
	log      *slog.Logger
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		endpoint: opts.Endpoint,
		apiKey:   opts.APIKey,
		httpc:    &http.Client{Timeout: opts.Timeout},
		log:      logger.With("component", "pagespeed"),
	}
}

type apiResponse struct {
	Metrics struct {
		TTFBMs       float64 `json:"ttfb_ms"`
		FirstPaintMs float64 `json:"first_paint_ms"`
		LCPMs        float64 `json:"lcp_ms"`
		CLS          float64 `json:"cls"`
	} `json:"metrics"`
}

// Fetch retrieves field metrics for target. One retry on transient failure;
// a second failure surfaces ErrUnavailable so the run can proceed on
// browser-observed timings alone.
func (c *Client) Fetch(ctx context.Context, target string) (types.TimingSignals, error) {
	if c.endpoint == "" {
		return types.TimingSignals{}, ErrUnavailable
	}

	signals, err := c.fetchOnce(ctx, target)
	if err != nil {
		c.log.Warn("metrics request failed, retrying", "url", target, "error", err)
		signals, err = c.fetchOnce(ctx, target)
	}
	if err != nil {
		c.log.Warn("metrics service unavailable", "url", target, "error", err)
		return types.TimingSignals{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	sanitized := extract.ValidateTimings(signals)
	if len(sanitized.Capped) > 0 {
		c.log.Warn("metrics capped", "url", target, "fields", sanitized.Capped)
	}
	return sanitized, nil
}

func (c *Client) fetchOnce(ctx context.Context, target string) (types.TimingSignals, error) {
	q := url.Values{}
	q.Set("url", target)
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return types.TimingSignals{}, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return types.TimingSignals{}, fmt.Errorf("requesting metrics: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.TimingSignals{}, fmt.Errorf("metrics service returned %d", resp.StatusCode)
	}

	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return types.TimingSignals{}, fmt.Errorf("decoding metrics: %w", err)
	}

	return types.TimingSignals{
		TTFB:              payload.Metrics.TTFBMs,
		FirstPaint:        payload.Metrics.FirstPaintMs,
		LargestContentful: payload.Metrics.LCPMs,
		CumulativeShift:   payload.Metrics.CLS,
	}, nil
}
