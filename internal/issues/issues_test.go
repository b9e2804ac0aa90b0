package issues

import (
	"reflect"
	"strings"
	"testing"

	"siteaudit/pkg/types"
)

func validPage(url string) *types.PageRecord {
	return &types.PageRecord{
		URL:             url,
		StatusCode:      200,
		Title:           "A perfectly sized page title for testing",
		MetaDescription: strings.Repeat("A useful description of the page content. ", 3),
		Headings:        []types.Heading{{Level: 1, Text: "Topic"}},
		WordCount:       500,
		Lang:            "en",
		HasViewport:     true,
		CanonicalLink:   url,
		Schema:          []types.SchemaBlock{{Type: "Organization", Properties: map[string]any{"name": "Acme"}}},
	}
}

func cleanFacts() types.SiteFacts {
	return types.SiteFacts{HasRobots: true, HasSitemap: true, NAPConsistent: true}
}

func TestBuildCleanSiteHasNoIssues(t *testing.T) {
	got := Build([]*types.PageRecord{validPage("https://example.com/")}, nil, cleanFacts())
	if len(got) != 0 {
		t.Fatalf("clean site produced issues: %+v", got)
	}
}

func TestErrorPagesFeedOnlyBrokenPages(t *testing.T) {
	errored := []*types.PageRecord{
		{URL: "https://example.com/gone", StatusCode: 404},
		{URL: "https://example.com/down", StatusCode: 0},
	}
	got := Build([]*types.PageRecord{validPage("https://example.com/")}, errored, cleanFacts())

	if len(got) != 1 {
		t.Fatalf("issues = %+v, want only broken pages", got)
	}
	issue := got[0]
	if issue.Type != "broken_pages" {
		t.Errorf("type = %q", issue.Type)
	}
	if issue.Severity != types.SeverityHigh {
		t.Errorf("severity = %v, want high", issue.Severity)
	}
	if len(issue.AffectedPages) != 2 {
		t.Errorf("affected = %v", issue.AffectedPages)
	}
}

func TestBuildMissingTitle(t *testing.T) {
	p := validPage("https://example.com/")
	p.Title = ""
	got := Build([]*types.PageRecord{p}, nil, cleanFacts())

	found := false
	for _, issue := range got {
		if issue.Type == "missing_title" {
			found = true
			if issue.Severity != types.SeverityHigh {
				t.Errorf("missing title severity = %v, want high", issue.Severity)
			}
		}
	}
	if !found {
		t.Fatalf("missing title not reported: %+v", got)
	}
}

func TestConsolidateMergesVariants(t *testing.T) {
	candidates := []types.Issue{
		{Category: types.CategoryOnPage, Severity: types.SeverityLow, Message: "title too short", AffectedPages: []string{"https://example.com/a"}},
		{Category: types.CategoryOnPage, Severity: types.SeverityMedium, Message: "page title too short", AffectedPages: []string{"https://example.com/b"}},
		{Category: types.CategoryOnPage, Severity: types.SeverityLow, Message: "short title", AffectedPages: []string{"https://example.com/a"}},
	}
	got := Consolidate(candidates)

	if len(got) != 1 {
		t.Fatalf("issues = %d, want 1 merged", len(got))
	}
	issue := got[0]
	if issue.Type != "title_too_short" {
		t.Errorf("type = %q", issue.Type)
	}
	if issue.Severity != types.SeverityMedium {
		t.Errorf("severity = %v, want the max observed", issue.Severity)
	}
	want := []string{"https://example.com/a", "https://example.com/b"}
	if !reflect.DeepEqual(issue.AffectedPages, want) {
		t.Errorf("affected = %v, want %v", issue.AffectedPages, want)
	}
}

func TestConsolidateIdempotent(t *testing.T) {
	candidates := []types.Issue{
		{Category: types.CategoryTechnical, Severity: types.SeverityHigh, Message: "broken pages", AffectedPages: []string{"https://example.com/x"}},
		{Category: types.CategoryOnPage, Severity: types.SeverityLow, Message: "title too long", AffectedPages: []string{"https://example.com/a"}},
		{Category: types.CategoryOnPage, Severity: types.SeverityMedium, Message: "missing h1", AffectedPages: []string{"https://example.com/a"}},
	}

	once := Consolidate(candidates)
	twice := Consolidate(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("consolidation is not idempotent:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestConsolidateKeepsCategoriesApart(t *testing.T) {
	candidates := []types.Issue{
		{Category: types.CategoryTechnical, Severity: types.SeverityLow, Message: "missing canonical link"},
		{Category: types.CategoryOnPage, Severity: types.SeverityLow, Message: "missing canonical link"},
	}
	if got := Consolidate(candidates); len(got) != 2 {
		t.Fatalf("same type in different categories must not merge, got %d", len(got))
	}
}

func TestConsolidateOrdering(t *testing.T) {
	candidates := []types.Issue{
		{Category: types.CategoryPerformance, Severity: types.SeverityLow, Message: "large page size"},
		{Category: types.CategoryTechnical, Severity: types.SeverityLow, Message: "missing sitemap"},
		{Category: types.CategoryTechnical, Severity: types.SeverityHigh, Message: "broken pages"},
	}
	got := Consolidate(candidates)
	if len(got) != 3 {
		t.Fatalf("issues = %d", len(got))
	}
	if got[0].Type != "broken_pages" {
		t.Errorf("first = %q, want highest severity within first category", got[0].Type)
	}
	if got[2].Category != types.CategoryPerformance {
		t.Errorf("last category = %q", got[2].Category)
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Title Too Short":   "title_too_short",
		"no title tag":      "missing_title",
		"low word count":    "thin_content",
		"Some New Finding!": "some_new_finding",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPerformanceThresholds(t *testing.T) {
	p := validPage("https://example.com/slow")
	p.Timings = types.TimingSignals{TTFB: 1200, LargestContentful: 4500, CumulativeShift: 0.3}
	got := Build([]*types.PageRecord{p}, nil, cleanFacts())

	sevByType := map[string]types.Severity{}
	for _, issue := range got {
		if issue.Category == types.CategoryPerformance {
			sevByType[issue.Type] = issue.Severity
		}
	}
	if sev, ok := sevByType["slow_largest_contentful_paint"]; !ok || sev != types.SeverityHigh {
		t.Errorf("lcp issue = %v (present=%v), want high", sev, ok)
	}
	if sev, ok := sevByType["high_layout_shift"]; !ok || sev != types.SeverityHigh {
		t.Errorf("cls issue = %v (present=%v), want high", sev, ok)
	}
	if _, ok := sevByType["slow_server_response"]; !ok {
		t.Error("ttfb issue missing")
	}
}
