package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"siteaudit/internal/fetch"
	"siteaudit/pkg/types"
)

// ErrRenderTimeout marks a render that exceeded its wall-clock budget.
// The manager retries once at a shorter budget before degrading to a
// partial, initial-markup-only result.
var ErrRenderTimeout = errors.New("render timeout")

// Options configures the render session pool. Disabled keeps the manager in
// plain-HTTP mode: every page is served its initial markup and no browser
// session is ever acquired.
type Options struct {
	Sessions        int
	Budget          time.Duration
	UserAgent       string
	Disabled        bool
	DisableHeadless bool
	AlwaysRender    bool
	Debounce        time.Duration
}

// Result carries both the pre-JavaScript and post-JavaScript views of a page
// plus the timing signals captured during rendering.
type Result struct {
	URL          *url.URL
	FinalURL     *url.URL
	StatusCode   int
	Headers      http.Header
	InitialBody  []byte
	RenderedBody []byte
	Timings      types.TimingSignals
	Rendered     bool
	Partial      bool
	FetchedAt    time.Time
}

// Manager owns a pool of reusable headless-browser sessions. Sessions are
// validated for responsiveness before reuse and replaced after a confirmed
// disconnect; the pool size caps concurrent browser memory.
type Manager struct {
	opts    Options
	fetcher *fetch.Client
	logger  *slog.Logger

	baseCtx context.Context
	cancel  context.CancelFunc

	pool chan *session

	mu     sync.Mutex
	nextID int
	closed bool
}

// NewManager creates the session pool. Sessions are built lazily on first use
// so a manager can be constructed without a browser present (tests with
// rendering disabled never launch one).
func NewManager(opts Options, fetcher *fetch.Client, logger *slog.Logger) *Manager {
	if opts.Sessions <= 0 {
		opts.Sessions = 1
	}
	if opts.Budget <= 0 {
		opts.Budget = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		opts:    opts,
		fetcher: fetcher,
		logger:  logger,
		baseCtx: baseCtx,
		cancel:  cancel,
		pool:    make(chan *session, opts.Sessions),
	}
	for i := 0; i < opts.Sessions; i++ {
		m.pool <- nil // lazy slot
	}
	return m
}

// Render fetches the initial markup over plain HTTP, decides whether the page
// needs JavaScript execution, and if so renders it in a pooled session within
// the given budget. Error-status pages are returned unrendered: they never
// consume a browser session.
func (m *Manager) Render(ctx context.Context, target *url.URL, budget time.Duration) (*Result, error) {
	if target == nil {
		return nil, errors.New("render target is nil")
	}
	if budget <= 0 {
		budget = m.opts.Budget
	}

	resp, err := m.fetcher.Get(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("initial fetch: %w", err)
	}

	res := &Result{
		URL:         target,
		FinalURL:    resp.FinalURL,
		StatusCode:  resp.StatusCode,
		Headers:     resp.Headers,
		InitialBody: resp.Body,
		FetchedAt:   resp.FetchedAt,
		Timings: types.TimingSignals{
			TTFB: float64(resp.TTFB.Milliseconds()),
		},
	}

	if resp.StatusCode >= 400 {
		res.RenderedBody = resp.Body
		return res, nil
	}

	if m.opts.Disabled || (!m.opts.AlwaysRender && !NeedsRendering(resp.Body)) {
		res.RenderedBody = resp.Body
		return res, nil
	}

	rendered, timings, err := m.renderWithRetry(ctx, target, budget)
	if err != nil {
		// Best-effort degradation: surface the initial markup rather than
		// failing the page.
		m.logger.Warn("render degraded to initial markup", "url", target.String(), "error", err)
		res.RenderedBody = resp.Body
		res.Partial = true
		return res, nil
	}

	res.RenderedBody = rendered
	res.Rendered = true
	if timings.FirstPaint > 0 {
		res.Timings.FirstPaint = timings.FirstPaint
	}
	if timings.LargestContentful > 0 {
		res.Timings.LargestContentful = timings.LargestContentful
	}
	res.Timings.CumulativeShift = timings.CumulativeShift
	if timings.TTFB > 0 {
		res.Timings.TTFB = timings.TTFB
	}
	return res, nil
}

// renderWithRetry executes the render state machine, retrying once with a
// shorter budget after a timeout and once with a fresh session after a
// confirmed disconnect.
func (m *Manager) renderWithRetry(ctx context.Context, target *url.URL, budget time.Duration) ([]byte, types.TimingSignals, error) {
	html, timings, err := m.renderOnce(ctx, target, budget)
	if err == nil {
		return html, timings, nil
	}

	switch {
	case errors.Is(err, ErrRenderTimeout):
		shorter := budget / 2
		m.logger.Debug("render timed out, retrying", "url", target.String(), "budget", shorter.String())
		return m.renderOnce(ctx, target, shorter)
	case errors.Is(err, ErrConfirmedDisconnect):
		m.logger.Debug("retrying with fresh session", "url", target.String())
		return m.renderOnce(ctx, target, budget)
	default:
		return nil, types.TimingSignals{}, err
	}
}

func (m *Manager) renderOnce(ctx context.Context, target *url.URL, budget time.Duration) ([]byte, types.TimingSignals, error) {
	sess, err := m.acquire(ctx)
	if err != nil {
		return nil, types.TimingSignals{}, err
	}

	if err := sess.checkHealth(ctx); err != nil {
		m.discard(sess)
		return nil, types.TimingSignals{}, err
	}

	html, timings, err := m.navigate(ctx, sess, target, budget)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			// A stuck navigation leaves the tab unusable; replace it.
			m.discard(sess)
			return nil, types.TimingSignals{}, ErrRenderTimeout
		}
		m.discard(sess)
		return nil, types.TimingSignals{}, err
	}

	m.release(sess)
	return html, timings, nil
}

func (m *Manager) navigate(ctx context.Context, sess *session, target *url.URL, budget time.Duration) ([]byte, types.TimingSignals, error) {
	runCtx, cancel := context.WithTimeout(sess.tabCtx, budget)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	sess.setState(StateNavigating)
	var html string
	var raw pageTimings

	err := chromedp.Run(runCtx,
		chromedp.Navigate(target.String()),
		chromedp.ActionFunc(func(c context.Context) error {
			sess.setState(StateStabilizing)
			return waitDocumentReady(c)
		}),
		chromedp.Sleep(250*time.Millisecond),
		chromedp.ActionFunc(func(c context.Context) error {
			sess.setState(StateReady)
			return nil
		}),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Evaluate(timingScript, &raw),
	)
	sess.setState(StateIdle)
	if err != nil {
		if runCtx.Err() != nil {
			return nil, types.TimingSignals{}, fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return nil, types.TimingSignals{}, fmt.Errorf("chromedp run: %w", err)
	}

	return []byte(html), types.TimingSignals{
		TTFB:              raw.TTFB,
		FirstPaint:        raw.FirstPaint,
		LargestContentful: raw.LCP,
		CumulativeShift:   raw.CLS,
	}, nil
}

func (m *Manager) acquire(ctx context.Context) (*session, error) {
	select {
	case sess := <-m.pool:
		if sess == nil {
			return m.spawn()
		}
		return sess, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.baseCtx.Done():
		return nil, errors.New("render manager closed")
	}
}

func (m *Manager) release(sess *session) {
	if sess.currentHealth() != HealthConnected {
		m.discard(sess)
		return
	}
	select {
	case m.pool <- sess:
	default:
		sess.dispose()
	}
}

// discard disposes a broken session and returns its pool slot as a lazy one,
// so the next acquire spawns a replacement.
func (m *Manager) discard(sess *session) {
	sess.dispose()
	select {
	case m.pool <- nil:
	default:
	}
}

func (m *Manager) spawn() (*session, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, errors.New("render manager closed")
	}
	m.nextID++
	id := m.nextID
	m.mu.Unlock()

	sess, err := newSession(m.baseCtx, id, m.opts, m.logger)
	if err != nil {
		return nil, fmt.Errorf("spawn session: %w", err)
	}
	return sess, nil
}

// Close disposes every pooled session and stops the manager.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	for {
		select {
		case sess := <-m.pool:
			if sess != nil {
				sess.dispose()
			}
		default:
			return
		}
	}
}

type pageTimings struct {
	TTFB       float64 `json:"ttfb"`
	FirstPaint float64 `json:"fp"`
	LCP        float64 `json:"lcp"`
	CLS        float64 `json:"cls"`
}

// timingScript pulls navigation/paint/layout-shift entries from the page's
// Performance API. Values are best-effort; validation happens in extract.
const timingScript = `(() => {
	const nav = performance.getEntriesByType('navigation')[0] || {};
	const paints = performance.getEntriesByType('paint');
	const fpEntry = paints.find(p => p.name === 'first-paint') || paints[0] || {};
	const lcpEntries = performance.getEntriesByType('largest-contentful-paint');
	const lcp = lcpEntries.length ? lcpEntries[lcpEntries.length - 1].startTime : 0;
	let cls = 0;
	for (const e of performance.getEntriesByType('layout-shift')) {
		if (!e.hadRecentInput) cls += e.value;
	}
	return {
		ttfb: nav.responseStart || 0,
		fp: fpEntry.startTime || 0,
		lcp: lcp,
		cls: cls,
	};
})()`

func waitDocumentReady(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		var readyState string
		if err := chromedp.Evaluate(`document.readyState`, &readyState).Do(ctx); err != nil {
			return err
		}
		if readyState == "complete" {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
