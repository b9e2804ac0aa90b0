package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"siteaudit/internal/audit"
	"siteaudit/internal/competitor"
	"siteaudit/internal/config"
	"siteaudit/internal/extract"
	"siteaudit/internal/fetch"
	"siteaudit/internal/frontier"
	"siteaudit/internal/issues"
	"siteaudit/internal/pagespeed"
	"siteaudit/internal/render"
	"siteaudit/internal/robots"
	"siteaudit/internal/scoring"
	"siteaudit/internal/urlx"
	"siteaudit/pkg/types"
)

// fallbackPaths are tried against the root host when the seed URL itself
// cannot be fetched, before declaring the run failed.
var fallbackPaths = []string{"/index.html", "/home"}

// Engine orchestrates a full audit run: crawl, render, extract, aggregate,
// detect issues, score, and optionally diff against competitors.
type Engine struct {
	cfg      *config.Config
	logger   *slog.Logger
	fetcher  *fetch.Client
	renderer *render.Manager
	robots   *robots.Agent
	polite   *Politeness
	speed    *pagespeed.Client
	discover competitor.Discovery
}

// New wires an engine from configuration. Close must be called after the run
// to release browser sessions.
func New(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if logger == nil {
		logger = slog.Default()
	}

	fetcher, err := fetch.NewClient(fetch.Options{
		UserAgent:    cfg.Crawl.UserAgent,
		Headers:      cfg.Crawl.Headers,
		Timeout:      cfg.Crawl.RequestTimeout.Duration,
		MaxBodyBytes: cfg.Crawl.MaxBodyBytes,
		ProxyURL:     cfg.Crawl.ProxyURL,
	})
	if err != nil {
		return nil, fmt.Errorf("building fetch client: %w", err)
	}

	renderer := render.NewManager(render.Options{
		Sessions:        cfg.Rendering.Sessions,
		Budget:          cfg.Rendering.Budget.Duration,
		UserAgent:       cfg.Crawl.UserAgent,
		Disabled:        !cfg.Rendering.Enabled,
		DisableHeadless: cfg.Rendering.DisableHeadless,
		AlwaysRender:    cfg.Rendering.AlwaysRender,
	}, fetcher, logger)

	var rateCfg RateSettings
	if cfg.Crawl.RateLimitPerDomain.Enabled() {
		rateCfg = RateSettings{
			Requests: cfg.Crawl.RateLimitPerDomain.Requests,
			Window:   cfg.Crawl.RateLimitPerDomain.Window.Duration,
		}
	}

	return &Engine{
		cfg:      cfg,
		logger:   logger.With("component", "crawler"),
		fetcher:  fetcher,
		renderer: renderer,
		robots:   robots.NewAgent(cfg.Robots, fetcher.HTTPClient()),
		polite:   NewPoliteness(cfg.Crawl.PerDomainDelay.Duration, rateCfg),
		speed:    pagespeed.New(pagespeed.Options{Endpoint: cfg.PageSpeed.Endpoint, APIKey: cfg.PageSpeed.APIKey, Timeout: cfg.PageSpeed.Timeout.Duration, Logger: logger}),
		discover: &competitor.ServiceDiscovery{
			Endpoint: cfg.Competitors.DiscoveryEndpoint,
			Client:   fetcher.HTTPClient(),
		},
	}, nil
}

// Close releases the render session pool.
func (e *Engine) Close() {
	e.renderer.Close()
}

// runState collects worker output under one mutex.
type runState struct {
	mu      sync.Mutex
	records []*types.PageRecord
	blocked []string
}

func (s *runState) addRecord(rec *types.PageRecord) {
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
}

func (s *runState) addBlocked(u string) {
	s.mu.Lock()
	s.blocked = append(s.blocked, u)
	s.mu.Unlock()
}

// Run performs a complete audit of the configured target.
func (e *Engine) Run(ctx context.Context) (*types.AuditResult, error) {
	started := time.Now().UTC()
	runID := uuid.NewString()
	log := e.logger.With("run_id", runID, "target", e.cfg.Target.URL)

	runCtx := ctx
	var cancel context.CancelFunc
	if deadline := e.cfg.Crawl.RunDeadline.Duration; deadline > 0 {
		runCtx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	cctx, err := urlx.ResolvePreferredHost(runCtx, e.fetcher.HTTPClient(), e.cfg.Target.URL)
	if err != nil {
		return nil, fmt.Errorf("resolving target host: %w", err)
	}
	root, err := urlx.Canonicalize(e.cfg.Target.URL, cctx)
	if err != nil {
		return nil, fmt.Errorf("canonicalising target: %w", err)
	}
	log.Info("audit started", "preferred_host", cctx.PreferredHost)

	hasRobots, declaredSitemaps := e.robots.Probe(runCtx, root.URL())
	sitemap := robots.FetchSitemap(runCtx, e.fetcher.HTTPClient(), root.URL(), declaredSitemaps)

	front := frontier.New(e.cfg.Crawl.MaxDepth, e.cfg.Crawl.MaxPages)
	extractor := extract.New(cctx, extract.Options{MaxLinksPerPage: e.cfg.Crawl.MaxLinksPerPage})
	state := &runState{}

	pool, err := newWorkerPool(runCtx, e.cfg.Crawl.Concurrency, e.cfg.Crawl.QueueSize)
	if err != nil {
		return nil, err
	}

	var crawl func(ctx context.Context, item frontier.Item)
	crawl = func(ctx context.Context, item frontier.Item) {
		rec := e.crawlOne(ctx, extractor, state, item)
		if rec == nil {
			return
		}
		state.addRecord(rec)
		if rec.IsError() {
			return
		}
		for _, link := range rec.InternalLinks {
			c, cerr := urlx.Canonicalize(link, cctx)
			if cerr != nil {
				continue
			}
			next, ok := front.Admit(c, item.Depth+1)
			if !ok {
				continue
			}
			if serr := pool.submit(func(ctx context.Context) { crawl(ctx, next) }); serr != nil {
				return
			}
		}
	}

	if seed, ok := front.Admit(root, 0); ok {
		if err := pool.submit(func(ctx context.Context) { crawl(ctx, seed) }); err != nil {
			pool.close()
			return nil, err
		}
	}
	pool.drain()

	// The seed may point at a broken entry page while the rest of the site is
	// healthy. Before giving up, try sitemap URLs and common entry paths.
	if !hasValid(state.records) {
		e.crawlFallbacks(runCtx, pool, front, extractor, state, cctx, sitemap, &crawl)
	}
	pool.close()

	// External field metrics cover the primary URL only.
	e.mergeFieldMetrics(runCtx, state, root)

	outcome, facts := audit.NewAggregator(audit.StaticClassifier{}).Aggregate(state.records)
	facts.PreferredHost = cctx.PreferredHost
	facts.HasRobots = hasRobots
	facts.HasSitemap = sitemap.Found
	facts.SitemapURLCount = len(sitemap.URLs)
	sort.Strings(state.blocked)
	facts.RobotsBlocked = state.blocked

	if outcome.Status == types.OutcomeSuccess && runCtx.Err() != nil {
		outcome.Status = types.OutcomePartial
		outcome.Reason = "run deadline expired before the crawl completed"
	}

	found := issues.Build(outcome.ValidPages, outcome.ErrorPages, facts)
	scores := scoring.Score(found, readabilityMetrics(outcome.ValidPages))

	result := &types.AuditResult{
		RunID:      runID,
		TargetURL:  root.String(),
		StartedAt:  started,
		Outcome:    outcome,
		Facts:      facts,
		Issues:     found,
		Scores:     scores,
	}

	if outcome.Status != types.OutcomeFailed {
		result.Competitor = e.compareCompetitors(ctx, log, outcome.ValidPages)
	}

	result.FinishedAt = time.Now().UTC()
	log.Info("audit finished",
		"status", outcome.Status,
		"valid_pages", len(outcome.ValidPages),
		"error_pages", len(outcome.ErrorPages),
		"issues", len(found),
		"overall_score", scores.Overall)
	return result, nil
}

// crawlOne fetches, renders, and extracts a single admitted URL. Unreachable
// pages come back as error records with status 0 so the aggregator can count
// them; robots-blocked URLs produce no record at all.
func (e *Engine) crawlOne(ctx context.Context, extractor *extract.Extractor, state *runState, item frontier.Item) *types.PageRecord {
	if ctx.Err() != nil {
		return nil
	}
	target := item.URL.URL()

	if !e.robots.Allowed(ctx, target) {
		state.addBlocked(item.URL.String())
		e.logger.Debug("blocked by robots.txt", "url", item.URL.String())
		return nil
	}

	if err := e.polite.Wait(ctx, target.Hostname()); err != nil {
		return nil
	}

	res, err := e.renderer.Render(ctx, target, e.cfg.Rendering.Budget.Duration)
	if err != nil {
		e.logger.Warn("fetch failed", "url", item.URL.String(), "error", err)
		return &types.PageRecord{
			URL:       item.URL.String(),
			Depth:     item.Depth,
			FetchedAt: time.Now().UTC(),
		}
	}

	rec, err := extractor.Page(res, item.URL, item.Depth)
	if err != nil {
		e.logger.Warn("extraction failed", "url", item.URL.String(), "error", err)
		return &types.PageRecord{
			URL:        item.URL.String(),
			Depth:      item.Depth,
			StatusCode: res.StatusCode,
			FetchedAt:  res.FetchedAt,
		}
	}
	return rec
}

// crawlFallbacks admits at most two alternate entry points for a site whose
// seed URL failed: same-host sitemap URLs first, then conventional entry
// paths.
func (e *Engine) crawlFallbacks(ctx context.Context, pool *workerPool, front *frontier.Frontier, extractor *extract.Extractor, state *runState, cctx urlx.Context, sitemap robots.SitemapResult, crawl *func(context.Context, frontier.Item)) {
	const maxFallbacks = 2

	candidates := make([]string, 0, len(fallbackPaths)+maxFallbacks)
	for _, loc := range sitemap.URLs {
		if len(candidates) == maxFallbacks {
			break
		}
		candidates = append(candidates, loc)
	}
	for _, path := range fallbackPaths {
		candidates = append(candidates, "https://"+cctx.PreferredHost+path)
	}

	admitted := 0
	for _, raw := range candidates {
		if admitted == maxFallbacks {
			break
		}
		c, err := urlx.Canonicalize(raw, cctx)
		if err != nil || !urlx.BelongsTo(c.Host, cctx) {
			continue
		}
		item, ok := front.Admit(c, 0)
		if !ok {
			continue
		}
		fn := *crawl
		if err := pool.submit(func(ctx context.Context) { fn(ctx, item) }); err != nil {
			break
		}
		admitted++
	}
	if admitted > 0 {
		e.logger.Info("seed unreachable, trying fallback entry points", "candidates", admitted)
		pool.drain()
	}
}

// mergeFieldMetrics overlays external performance metrics onto the primary
// page record. Browser-observed values win when both exist; the external
// service only fills what the browser did not capture.
func (e *Engine) mergeFieldMetrics(ctx context.Context, state *runState, root urlx.Canonical) {
	signals, err := e.speed.Fetch(ctx, root.String())
	if err != nil {
		if !errors.Is(err, pagespeed.ErrUnavailable) {
			e.logger.Warn("field metrics fetch failed", "error", err)
		}
		return
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	for _, rec := range state.records {
		if rec.URL != root.String() {
			continue
		}
		if rec.Timings.TTFB == 0 {
			rec.Timings.TTFB = signals.TTFB
		}
		if rec.Timings.FirstPaint == 0 {
			rec.Timings.FirstPaint = signals.FirstPaint
		}
		if rec.Timings.LargestContentful == 0 {
			rec.Timings.LargestContentful = signals.LargestContentful
		}
		if rec.Timings.CumulativeShift == 0 {
			rec.Timings.CumulativeShift = signals.CumulativeShift
		}
		// Both sources are valid on their own but the mix can break the
		// ttfb <= firstPaint <= lcp ordering; validate the merged result.
		rec.Timings = extract.ValidateTimings(rec.Timings)
		return
	}
}

// compareCompetitors resolves the competitor list (configured, or discovered
// by industry) and runs the keyword diff. Absence of competitors yields a nil
// diff, not an unavailable one.
func (e *Engine) compareCompetitors(ctx context.Context, log *slog.Logger, valid []*types.PageRecord) *types.CompetitorDiff {
	urls := e.cfg.Competitors.URLs
	if len(urls) == 0 && e.cfg.Competitors.AutoDiscover && e.cfg.Target.Industry != "" {
		discovered, err := e.discover.Discover(ctx, e.cfg.Target.Industry)
		if err != nil {
			log.Warn("competitor discovery failed", "industry", e.cfg.Target.Industry, "error", err)
			return &types.CompetitorDiff{Unavailable: true, Reason: "competitor discovery failed: " + err.Error()}
		}
		urls = discovered
	}
	if len(urls) == 0 {
		return nil
	}

	differ := competitor.NewDiffer(e.renderer, competitor.Options{
		MaxPages: e.cfg.Competitors.MaxPages,
		MaxDepth: e.cfg.Competitors.MaxDepth,
		Budget:   e.cfg.Rendering.Budget.Duration,
	}, log)
	return differ.Diff(ctx, valid, urls)
}

func hasValid(records []*types.PageRecord) bool {
	for _, rec := range records {
		if !rec.IsError() {
			return true
		}
	}
	return false
}

func readabilityMetrics(valid []*types.PageRecord) scoring.Metrics {
	var sum float64
	var n int
	for _, rec := range valid {
		if rec.WordCount == 0 {
			continue
		}
		sum += rec.ReadabilityEase
		n++
	}
	if n == 0 {
		return scoring.Metrics{}
	}
	return scoring.Metrics{ReadabilityEase: sum / float64(n), HasReadability: true}
}
