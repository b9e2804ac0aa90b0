package competitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"siteaudit/internal/extract"
	"siteaudit/internal/render"
	"siteaudit/internal/urlx"
	"siteaudit/pkg/types"
)

// ErrUnavailable marks a competitor comparison where every fetch failed.
// Callers must surface the unavailable state; synthesising keyword data in
// its place is forbidden.
var ErrUnavailable = errors.New("competitor data unavailable")

// Options bounds the per-competitor crawl budget.
type Options struct {
	MaxPages int
	MaxDepth int
	Budget   time.Duration
}

// Differ fetches competitor sites through the same render manager and
// extractor as the target crawl, at a reduced budget, and computes
// keyword-gap sets.
type Differ struct {
	manager *render.Manager
	opts    Options
	logger  *slog.Logger
}

// NewDiffer builds a differ sharing the run's render manager.
func NewDiffer(manager *render.Manager, opts Options, logger *slog.Logger) *Differ {
	if opts.MaxPages <= 0 {
		opts.MaxPages = 5
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 1
	}
	if opts.Budget <= 0 {
		opts.Budget = 20 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Differ{manager: manager, opts: opts, logger: logger}
}

// Diff compares the target's keyword set against each competitor. Failed
// competitor fetches are reported per competitor; if every fetch fails the
// diff is explicitly unavailable, never an empty "zero gaps" result.
func (d *Differ) Diff(ctx context.Context, targetPages []*types.PageRecord, competitorURLs []string) *types.CompetitorDiff {
	if len(competitorURLs) == 0 {
		return nil
	}

	targetKeywords := Keywords(targetPages)
	diff := &types.CompetitorDiff{}
	successes := 0

	for _, rawURL := range competitorURLs {
		entry := types.KeywordDiff{CompetitorURL: rawURL}

		pages, err := d.fetchCompetitor(ctx, rawURL)
		if err != nil {
			d.logger.Warn("competitor fetch failed", "url", rawURL, "error", err)
			entry.FetchError = err.Error()
			diff.Competitors = append(diff.Competitors, entry)
			continue
		}
		successes++

		compKeywords := Keywords(pages)
		entry.Shared, entry.Gaps, entry.CompetitorOnly = partition(targetKeywords, compKeywords)
		diff.Competitors = append(diff.Competitors, entry)
	}

	if successes == 0 {
		diff.Unavailable = true
		diff.Reason = "no competitor site could be fetched"
		return diff
	}

	diff.TargetOnly = targetOnly(targetKeywords, diff.Competitors)
	return diff
}

// fetchCompetitor crawls a competitor at reduced depth: the root page plus a
// handful of its internal links.
func (d *Differ) fetchCompetitor(ctx context.Context, rawURL string) ([]*types.PageRecord, error) {
	cctx, err := urlx.ResolvePreferredHost(ctx, nil, rawURL)
	if err != nil {
		return nil, fmt.Errorf("resolve competitor host: %w", err)
	}
	root, err := urlx.Canonicalize(rawURL, cctx)
	if err != nil {
		return nil, err
	}

	extractor := extract.New(cctx, extract.Options{})

	rootRec, err := d.fetchPage(ctx, extractor, root, 0)
	if err != nil {
		return nil, err
	}
	if rootRec.IsError() {
		return nil, fmt.Errorf("competitor root returned status %d", rootRec.StatusCode)
	}

	pages := []*types.PageRecord{rootRec}
	if d.opts.MaxDepth < 1 {
		return pages, nil
	}

	seen := map[string]struct{}{root.String(): {}}
	for _, link := range rootRec.InternalLinks {
		if len(pages) >= d.opts.MaxPages {
			break
		}
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}

		child, err := urlx.Canonicalize(link, cctx)
		if err != nil {
			continue
		}
		rec, err := d.fetchPage(ctx, extractor, child, 1)
		if err != nil || rec.IsError() {
			continue
		}
		pages = append(pages, rec)
	}
	return pages, nil
}

func (d *Differ) fetchPage(ctx context.Context, extractor *extract.Extractor, c urlx.Canonical, depth int) (*types.PageRecord, error) {
	res, err := d.manager.Render(ctx, c.URL(), d.opts.Budget)
	if err != nil {
		return nil, err
	}
	return extractor.Page(res, c, depth)
}

// partition splits competitor keywords into shared (a similar target keyword
// exists) and competitor-only, and marks as gaps the competitor keywords the
// target lacks entirely.
func partition(target, competitor []string) (shared, gaps, competitorOnly []string) {
	for _, ck := range competitor {
		matched := false
		for _, tk := range target {
			if Similar(ck, tk) {
				matched = true
				break
			}
		}
		if matched {
			shared = append(shared, ck)
		} else {
			gaps = append(gaps, ck)
			competitorOnly = append(competitorOnly, ck)
		}
	}
	sort.Strings(shared)
	sort.Strings(gaps)
	sort.Strings(competitorOnly)
	return shared, gaps, competitorOnly
}

func targetOnly(target []string, entries []types.KeywordDiff) []string {
	var out []string
	for _, tk := range target {
		matched := false
		for _, entry := range entries {
			if entry.FetchError != "" {
				continue
			}
			for _, shared := range entry.Shared {
				if Similar(tk, shared) {
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
		if !matched {
			out = append(out, tk)
		}
	}
	sort.Strings(out)
	return out
}
