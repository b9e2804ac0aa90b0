package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the full configuration required to run a site audit.
type Config struct {
	Target      TargetConfig      `yaml:"target"`
	Crawl       CrawlConfig       `yaml:"crawl"`
	Rendering   RenderingConfig   `yaml:"rendering"`
	Robots      RobotsConfig      `yaml:"robots"`
	PageSpeed   PageSpeedConfig   `yaml:"pagespeed"`
	Competitors CompetitorsConfig `yaml:"competitors"`
	DB          SQLConfig         `yaml:"db"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// TargetConfig names the site under audit.
type TargetConfig struct {
	URL      string `yaml:"url"`
	Industry string `yaml:"industry"`
}

// CrawlConfig controls the frontier, limits, and politeness.
type CrawlConfig struct {
	MaxDepth           int               `yaml:"max_depth"`
	MaxPages           int               `yaml:"max_pages"`
	Concurrency        int               `yaml:"concurrency"`
	QueueSize          int               `yaml:"queue_size"`
	UserAgent          string            `yaml:"user_agent"`
	Headers            map[string]string `yaml:"headers"`
	ProxyURL           string            `yaml:"proxy_url"`
	RequestTimeout     Duration          `yaml:"request_timeout"`
	RunDeadline        Duration          `yaml:"run_deadline"`
	PerDomainDelay     Duration          `yaml:"per_domain_delay"`
	RateLimitPerDomain RateLimitConfig   `yaml:"rate_limit_per_domain"`
	MaxBodyBytes       int64             `yaml:"max_body_bytes"`
	MaxLinksPerPage    int               `yaml:"max_links_per_page"`
}

// RateLimitConfig applies a token bucket per domain.
type RateLimitConfig struct {
	Requests int      `yaml:"requests"`
	Window   Duration `yaml:"window"`
}

// Enabled reports whether per-domain rate limiting is active.
func (r RateLimitConfig) Enabled() bool {
	return r.Requests > 0 && !r.Window.IsZero()
}

// RenderingConfig controls the headless render session pool.
type RenderingConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Sessions        int      `yaml:"sessions"`
	Budget          Duration `yaml:"budget"`
	DisableHeadless bool     `yaml:"disable_headless"`
	AlwaysRender    bool     `yaml:"always_render"`
}

// RobotsConfig configures robots.txt handling.
type RobotsConfig struct {
	Respect   bool     `yaml:"respect"`
	UserAgent string   `yaml:"user_agent"`
	CacheTTL  Duration `yaml:"cache_ttl"`
	Overrides []string `yaml:"overrides"`
}

// PageSpeedConfig points at the external performance-metrics service.
// The service is consulted once per run, for the primary URL only.
type PageSpeedConfig struct {
	Endpoint string   `yaml:"endpoint"`
	APIKey   string   `yaml:"api_key"`
	Timeout  Duration `yaml:"timeout"`
}

// CompetitorsConfig lists competitor sites and bounds their crawl budget.
// DiscoveryEndpoint points at the external suggestion service consulted when
// auto-discovery is on; without one, discovery uses the built-in taxonomy.
type CompetitorsConfig struct {
	URLs              []string `yaml:"urls"`
	AutoDiscover      bool     `yaml:"auto_discover"`
	DiscoveryEndpoint string   `yaml:"discovery_endpoint"`
	MaxPages          int      `yaml:"max_pages"`
	MaxDepth          int      `yaml:"max_depth"`
}

// SQLConfig describes the optional report sink. The DSN may also come from
// the SITEAUDIT_DB_DSN environment variable (see cmd/siteaudit).
type SQLConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// LoggingConfig selects log verbosity and format.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Structured bool   `yaml:"structured"`
}

// Default returns a Config populated with sensible defaults.
func Default() Config {
	return Config{
		Crawl: CrawlConfig{
			MaxDepth:        3,
			MaxPages:        100,
			Concurrency:     8,
			QueueSize:       1024,
			UserAgent:       "siteaudit-bot/1.0",
			Headers:         map[string]string{},
			RequestTimeout:  DurationFrom(10 * time.Second),
			RunDeadline:     DurationFrom(10 * time.Minute),
			PerDomainDelay:  DurationFrom(250 * time.Millisecond),
			MaxBodyBytes:    6 * 1024 * 1024,
			MaxLinksPerPage: 200,
		},
		Rendering: RenderingConfig{
			Enabled:  true,
			Sessions: 2,
			Budget:   DurationFrom(30 * time.Second),
		},
		Robots: RobotsConfig{
			Respect:   true,
			UserAgent: "siteaudit-bot/1.0",
			CacheTTL:  DurationFrom(6 * time.Hour),
			Overrides: []string{},
		},
		PageSpeed: PageSpeedConfig{
			Timeout: DurationFrom(20 * time.Second),
		},
		Competitors: CompetitorsConfig{
			MaxPages: 5,
			MaxDepth: 1,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Structured: true,
		},
	}
}

// Load reads, merges, and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer fh.Close()
	return LoadFromReader(fh)
}

// LoadFromReader decodes configuration from an arbitrary reader.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces required invariants for an audit run.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Target.URL) == "" {
		return errors.New("target.url must be set")
	}
	if c.Crawl.MaxDepth <= 0 {
		return fmt.Errorf("crawl.max_depth must be > 0 (got %d)", c.Crawl.MaxDepth)
	}
	if c.Crawl.MaxPages <= 0 {
		return fmt.Errorf("crawl.max_pages must be > 0 (got %d)", c.Crawl.MaxPages)
	}
	if c.Crawl.Concurrency <= 0 {
		return fmt.Errorf("crawl.concurrency must be > 0 (got %d)", c.Crawl.Concurrency)
	}
	if c.Crawl.QueueSize <= 0 {
		return fmt.Errorf("crawl.queue_size must be > 0 (got %d)", c.Crawl.QueueSize)
	}
	if c.Crawl.MaxBodyBytes <= 0 {
		return fmt.Errorf("crawl.max_body_bytes must be > 0 (got %d)", c.Crawl.MaxBodyBytes)
	}
	if strings.TrimSpace(c.Crawl.UserAgent) == "" {
		return errors.New("crawl.user_agent must be set")
	}
	if strings.TrimSpace(c.Robots.UserAgent) == "" {
		return errors.New("robots.user_agent must be set")
	}
	if c.Rendering.Enabled {
		if c.Rendering.Sessions <= 0 {
			return fmt.Errorf("rendering.sessions must be > 0 (got %d)", c.Rendering.Sessions)
		}
		if c.Rendering.Budget.IsZero() {
			return errors.New("rendering.budget must be set when rendering is enabled")
		}
	}
	if c.Competitors.MaxPages <= 0 {
		return fmt.Errorf("competitors.max_pages must be > 0 (got %d)", c.Competitors.MaxPages)
	}
	if rl := c.Crawl.RateLimitPerDomain; rl.Requests < 0 {
		return fmt.Errorf("crawl.rate_limit_per_domain.requests must be >= 0 (got %d)", rl.Requests)
	}
	return nil
}

func (c *Config) normalise() {
	c.Target.URL = strings.TrimSpace(c.Target.URL)
	c.Target.Industry = strings.ToLower(strings.TrimSpace(c.Target.Industry))
	c.Crawl.UserAgent = strings.TrimSpace(c.Crawl.UserAgent)
	c.Robots.UserAgent = strings.TrimSpace(c.Robots.UserAgent)
	c.PageSpeed.Endpoint = strings.TrimSpace(c.PageSpeed.Endpoint)
	c.Competitors.DiscoveryEndpoint = strings.TrimSpace(c.Competitors.DiscoveryEndpoint)

	if len(c.Robots.Overrides) > 0 {
		c.Robots.Overrides = dedupeLower(c.Robots.Overrides)
	}
	if len(c.Competitors.URLs) > 0 {
		seen := make(map[string]struct{}, len(c.Competitors.URLs))
		cleaned := make([]string, 0, len(c.Competitors.URLs))
		for _, raw := range c.Competitors.URLs {
			v := strings.TrimSpace(raw)
			if v == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			cleaned = append(cleaned, v)
		}
		c.Competitors.URLs = cleaned
	}
}

func dedupeLower(values []string) []string {
	unique := make(map[string]struct{}, len(values))
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := unique[v]; ok {
			continue
		}
		unique[v] = struct{}{}
		cleaned = append(cleaned, v)
	}
	sort.Strings(cleaned)
	return cleaned
}
