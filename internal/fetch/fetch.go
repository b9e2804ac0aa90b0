package fetch

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
)

// Response is the outcome of one plain HTTP fetch. Body holds the initial
// (pre-JavaScript) markup; TTFB is measured from request start to the first
// response byte.
type Response struct {
	URL        *url.URL
	FinalURL   *url.URL
	StatusCode int
	Headers    http.Header
	Body       []byte
	TTFB       time.Duration
	Latency    time.Duration
	FetchedAt  time.Time
}

// Options controls HTTP fetching behaviour.
type Options struct {
	UserAgent    string
	Headers      map[string]string
	Timeout      time.Duration
	MaxBodyBytes int64
	ProxyURL     string
}

// Client performs plain HTTP fetches for initial markup, robots.txt,
// sitemaps, and the external metrics service.
type Client struct {
	httpClient   *http.Client
	userAgent    string
	extraHeaders map[string]string
	maxBodyBytes int64
}

// NewClient constructs a fetch client with sane transport defaults.
func NewClient(opts Options) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 5 * 1024 * 1024 // 5MB cap
	}

	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if strings.TrimSpace(opts.ProxyURL) != "" {
		proxyURL, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	headers := make(map[string]string, len(opts.Headers))
	for k, v := range opts.Headers {
		headers[k] = v
	}

	return &Client{
		httpClient:   &http.Client{Timeout: opts.Timeout, Transport: transport},
		userAgent:    opts.UserAgent,
		extraHeaders: headers,
		maxBodyBytes: opts.MaxBodyBytes,
	}, nil
}

// Get downloads a single URL and decodes gzip/brotli/deflate bodies.
func (c *Client) Get(ctx context.Context, target *url.URL) (*Response, error) {
	if target == nil {
		return nil, errors.New("fetch target is nil")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	for k, v := range c.extraHeaders {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http fetch failed: %w", err)
	}
	ttfb := time.Since(start)

	body, err := c.readBody(resp)
	if err != nil {
		return nil, err
	}

	finalURL := target
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL
	}

	return &Response{
		URL:        target,
		FinalURL:   finalURL,
		StatusCode: resp.StatusCode,
		Headers:    resp.Header.Clone(),
		Body:       body,
		TTFB:       ttfb,
		Latency:    time.Since(start),
		FetchedAt:  time.Now(),
	}, nil
}

func (c *Client) readBody(resp *http.Response) ([]byte, error) {
	if resp == nil || resp.Body == nil {
		return nil, errors.New("empty response body")
	}

	reader := io.Reader(resp.Body)
	closers := []io.Closer{resp.Body}

	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch encoding {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		reader = gz
		closers = append(closers, gz)
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl := flate.NewReader(resp.Body)
		reader = fl
		closers = append(closers, fl)
	}

	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	limited := io.LimitReader(reader, c.maxBodyBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > c.maxBodyBytes {
		body = body[:c.maxBodyBytes]
	}
	return body, nil
}

// HTTPClient exposes the underlying client for reuse (robots.txt, sitemap,
// redirect resolution).
func (c *Client) HTTPClient() *http.Client {
	if c == nil {
		return nil
	}
	return c.httpClient
}
