package robots

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"siteaudit/internal/config"
)

// Agent evaluates robots.txt rules with caching and per-host overrides.
// Rule errors fail open: an unreachable robots.txt never blocks the crawl.
type Agent struct {
	client    *http.Client
	userAgent string
	ttl       time.Duration
	respect   bool

	mu        sync.RWMutex
	cache     map[string]cacheEntry
	overrides map[string]struct{}
}

type cacheEntry struct {
	fetched  time.Time
	rules    *robotstxt.RobotsData
	exists   bool
	sitemaps []string
}

// NewAgent constructs a robots agent from configuration.
func NewAgent(cfg config.RobotsConfig, client *http.Client) *Agent {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	ttl := cfg.CacheTTL.Duration
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	overrides := make(map[string]struct{}, len(cfg.Overrides))
	for _, host := range cfg.Overrides {
		host = strings.ToLower(strings.TrimSpace(host))
		if host == "" {
			continue
		}
		overrides[host] = struct{}{}
	}

	return &Agent{
		client:    client,
		userAgent: cfg.UserAgent,
		ttl:       ttl,
		respect:   cfg.Respect,
		cache:     make(map[string]cacheEntry),
		overrides: overrides,
	}
}

// Allowed reports whether the target URL is permitted for the configured agent.
func (a *Agent) Allowed(ctx context.Context, target *url.URL) bool {
	if target == nil || !target.IsAbs() {
		return false
	}
	if !a.respect {
		return true
	}

	host := strings.ToLower(target.Hostname())
	if _, ok := a.overrides[host]; ok {
		return true
	}

	entry, err := a.entry(ctx, target)
	if err != nil || entry.rules == nil {
		// Fail-open on robots errors (common industry practice).
		return true
	}

	group := entry.rules.FindGroup(a.userAgent)
	if group == nil {
		group = entry.rules.FindGroup("*")
		if group == nil {
			return true
		}
	}
	return group.Test(target.Path)
}

// Probe reports whether robots.txt exists for the target's host and which
// sitemap URLs it declares. The aggregator records both as site-wide facts.
func (a *Agent) Probe(ctx context.Context, target *url.URL) (bool, []string) {
	if target == nil || !target.IsAbs() {
		return false, nil
	}
	entry, err := a.entry(ctx, target)
	if err != nil {
		return false, nil
	}
	return entry.exists, entry.sitemaps
}

func (a *Agent) entry(ctx context.Context, target *url.URL) (cacheEntry, error) {
	host := strings.ToLower(target.Host)

	a.mu.RLock()
	entry, ok := a.cache[host]
	if ok && time.Since(entry.fetched) < a.ttl {
		a.mu.RUnlock()
		return entry, nil
	}
	a.mu.RUnlock()

	robotsURL := target.Scheme + "://" + target.Host + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return cacheEntry{}, fmt.Errorf("build robots request: %w", err)
	}
	if a.userAgent != "" {
		req.Header.Set("User-Agent", a.userAgent)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return cacheEntry{}, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	entry = cacheEntry{fetched: time.Now()}
	if resp.StatusCode < 400 {
		data, err := robotstxt.FromResponse(resp)
		if err != nil {
			return cacheEntry{}, fmt.Errorf("parse robots.txt: %w", err)
		}
		entry.exists = true
		entry.rules = data
		entry.sitemaps = data.Sitemaps
	}

	a.mu.Lock()
	a.cache[host] = entry
	a.mu.Unlock()

	return entry, nil
}

// Purge evicts cached robots rules for a host.
func (a *Agent) Purge(host string) {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return
	}
	a.mu.Lock()
	delete(a.cache, host)
	a.mu.Unlock()
}

// ParseSitemapDirectives extracts Sitemap: lines from raw robots.txt content,
// for callers that already hold the body.
func ParseSitemapDirectives(body string) []string {
	var out []string
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if len(line) < 8 || !strings.EqualFold(line[:8], "sitemap:") {
			continue
		}
		if loc := strings.TrimSpace(line[8:]); loc != "" {
			out = append(out, loc)
		}
	}
	return out
}
