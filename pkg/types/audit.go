package types

import (
	"net/http"
	"time"
)

// Severity ranks how urgently an issue should be addressed.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// MarshalText lets severities serialise as their lowercase names.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IssueCategory is the closed set of audit categories. Every issue belongs to
// exactly one category and every category maps to one score component.
type IssueCategory string

const (
	CategoryTechnical     IssueCategory = "technical"
	CategoryOnPage        IssueCategory = "onpage"
	CategoryContent       IssueCategory = "content"
	CategoryAccessibility IssueCategory = "accessibility"
	CategoryPerformance   IssueCategory = "performance"
)

// Categories lists all issue categories in scoring order.
func Categories() []IssueCategory {
	return []IssueCategory{
		CategoryTechnical,
		CategoryOnPage,
		CategoryContent,
		CategoryAccessibility,
		CategoryPerformance,
	}
}

// Issue is one consolidated finding. At most one issue per
// normalizedType+category exists in a finished audit.
type Issue struct {
	Category      IssueCategory `json:"category"`
	Severity      Severity      `json:"severity"`
	Type          string        `json:"type"`
	Message       string        `json:"message"`
	AffectedPages []string      `json:"affected_pages,omitempty"`
	FixGuidance   []string      `json:"fix_guidance,omitempty"`
	Details       string        `json:"details,omitempty"`
}

// TimingSignals holds the per-page performance timings captured during
// rendering, in milliseconds. Capped reports which fields were clamped by
// sanity validation instead of being trusted raw.
type TimingSignals struct {
	TTFB               float64  `json:"ttfb_ms"`
	FirstPaint         float64  `json:"first_paint_ms"`
	LargestContentful  float64  `json:"largest_contentful_paint_ms"`
	CumulativeShift    float64  `json:"cumulative_layout_shift"`
	Capped             []string `json:"capped,omitempty"`
}

// RenderDelta compares initial (pre-JS) and rendered markup.
type RenderDelta struct {
	InitialBytes  int     `json:"initial_bytes"`
	RenderedBytes int     `json:"rendered_bytes"`
	Similarity    float64 `json:"similarity"`
}

// Heading is a single heading element in document order.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Image records one img element and whether it carries alt text.
type Image struct {
	Src    string `json:"src"`
	HasAlt bool   `json:"has_alt"`
}

// SchemaBlock is a structured-data block found in rendered markup, merged by
// declared type. MissingFields lists required properties the block lacks.
type SchemaBlock struct {
	Type          string         `json:"type"`
	Properties    map[string]any `json:"properties,omitempty"`
	MissingFields []string       `json:"missing_fields,omitempty"`
}

// PageRecord is the structured outcome of rendering and extracting one page.
// Records are created once per canonical URL and never mutated afterwards; a
// record may only be discarded in favour of a richer duplicate during
// aggregation.
type PageRecord struct {
	URL             string        `json:"url"`
	Depth           int           `json:"depth"`
	StatusCode      int           `json:"status_code"`
	FetchError      string        `json:"fetch_error,omitempty"`
	Title           string        `json:"title"`
	MetaDescription string        `json:"meta_description"`
	MetaRobots      string        `json:"meta_robots,omitempty"`
	CanonicalLink   string        `json:"canonical_link,omitempty"`
	Lang            string        `json:"lang,omitempty"`
	HasViewport     bool          `json:"has_viewport"`
	Headings        []Heading     `json:"headings,omitempty"`
	WordCount       int           `json:"word_count"`
	ReadabilityEase float64       `json:"readability_ease"`
	InternalLinks   []string      `json:"internal_links,omitempty"`
	ExternalLinks   []string      `json:"external_links,omitempty"`
	Images          []Image       `json:"images,omitempty"`
	Schema          []SchemaBlock `json:"schema,omitempty"`
	PlatformHints   []string      `json:"platform_hints,omitempty"`
	Timings         TimingSignals `json:"timings"`
	Delta           RenderDelta   `json:"render_delta"`
	Rendered        bool          `json:"rendered"`
	Partial         bool          `json:"partial"`
	PageBytes       int           `json:"page_bytes"`
	FetchedAt       time.Time     `json:"fetched_at"`
	Headers         http.Header   `json:"-"`
}

// H1Texts returns the text of every level-1 heading in order.
func (p *PageRecord) H1Texts() []string {
	var out []string
	for _, h := range p.Headings {
		if h.Level == 1 {
			out = append(out, h.Text)
		}
	}
	return out
}

// IsError reports whether the page belongs to the error partition.
// Unreachable pages carry status code 0.
func (p *PageRecord) IsError() bool {
	return p.StatusCode < 200 || p.StatusCode >= 400
}

// OutcomeStatus describes how the crawl run ended.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomePartial OutcomeStatus = "partial"
	OutcomeFailed  OutcomeStatus = "failed"
)

// CrawlOutcome partitions every surviving PageRecord exactly once. It is the
// single source of truth for the valid/error split; downstream checks must not
// re-derive their own.
type CrawlOutcome struct {
	Status     OutcomeStatus `json:"status"`
	Reason     string        `json:"reason,omitempty"`
	ValidPages []*PageRecord `json:"valid_pages"`
	ErrorPages []*PageRecord `json:"error_pages"`
}

// DuplicateGroup names pages sharing the same normalised value.
type DuplicateGroup struct {
	Value string   `json:"value"`
	Pages []string `json:"pages"`
}

// NAPProfile is one observed name/address/phone triple.
type NAPProfile struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// SiteFacts carries cross-page findings computed once by the aggregator.
type SiteFacts struct {
	PreferredHost       string           `json:"preferred_host"`
	HasRobots           bool             `json:"has_robots"`
	HasSitemap          bool             `json:"has_sitemap"`
	SitemapURLCount     int              `json:"sitemap_url_count,omitempty"`
	RobotsBlocked       []string         `json:"robots_blocked,omitempty"`
	DuplicateTitles     []DuplicateGroup `json:"duplicate_titles,omitempty"`
	DuplicateMetaDescs  []DuplicateGroup `json:"duplicate_meta_descriptions,omitempty"`
	NAPProfiles         []NAPProfile     `json:"nap_profiles,omitempty"`
	NAPConsistent       bool             `json:"nap_consistent"`
	Platform            string           `json:"platform,omitempty"`
	NoindexPages        []string         `json:"noindex_pages,omitempty"`
}

// ScoreReport holds the five category scores and the weighted overall score,
// each clamped to [0,100].
type ScoreReport struct {
	Overall       float64 `json:"overall"`
	Technical     float64 `json:"technical"`
	OnPage        float64 `json:"onpage"`
	Content       float64 `json:"content"`
	Accessibility float64 `json:"accessibility"`
	Performance   float64 `json:"performance"`
}

// KeywordDiff is the keyword comparison against one competitor site.
type KeywordDiff struct {
	CompetitorURL  string   `json:"competitor_url"`
	Shared         []string `json:"shared_keywords"`
	Gaps           []string `json:"keyword_gaps"`
	CompetitorOnly []string `json:"competitor_only_keywords"`
	FetchError     string   `json:"fetch_error,omitempty"`
}

// CompetitorDiff aggregates keyword comparisons. Unavailable is set when every
// competitor fetch failed; an unavailable diff must never be presented as
// "zero gaps found".
type CompetitorDiff struct {
	Unavailable bool          `json:"unavailable"`
	Reason      string        `json:"reason,omitempty"`
	TargetOnly  []string      `json:"target_only_keywords,omitempty"`
	Competitors []KeywordDiff `json:"competitors,omitempty"`
}

// AuditResult is the sole contract handed to persistence, rendering, and UI
// collaborators. They must treat it as already-consolidated truth: no
// re-scoring, re-deduplication, or re-partitioning.
type AuditResult struct {
	RunID      string          `json:"run_id"`
	TargetURL  string          `json:"target_url"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Outcome    CrawlOutcome    `json:"outcome"`
	Facts      SiteFacts       `json:"site_facts"`
	Issues     []Issue         `json:"issues"`
	Scores     ScoreReport     `json:"scores"`
	Competitor *CompetitorDiff `json:"competitor_diff,omitempty"`
}
