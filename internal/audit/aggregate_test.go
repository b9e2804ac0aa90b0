package audit

import (
	"testing"

	"siteaudit/pkg/types"
)

func page(url string, status, words int) *types.PageRecord {
	return &types.PageRecord{URL: url, StatusCode: status, WordCount: words}
}

func TestAggregatePartition(t *testing.T) {
	agg := NewAggregator(StaticClassifier{})
	outcome, _ := agg.Aggregate([]*types.PageRecord{
		page("https://example.com/", 200, 400),
		page("https://example.com/about", 200, 300),
		page("https://example.com/gone", 404, 0),
		page("https://example.com/down", 0, 0),
	})

	if outcome.Status != types.OutcomeSuccess {
		t.Fatalf("status = %q", outcome.Status)
	}
	if len(outcome.ValidPages) != 2 {
		t.Errorf("valid = %d, want 2", len(outcome.ValidPages))
	}
	if len(outcome.ErrorPages) != 2 {
		t.Errorf("errors = %d, want 2", len(outcome.ErrorPages))
	}
}

func TestAggregateDedupeKeepsRicherRecord(t *testing.T) {
	agg := NewAggregator(StaticClassifier{})
	thin := page("https://example.com/", 0, 0)
	rich := page("https://example.com/", 200, 500)

	outcome, _ := agg.Aggregate([]*types.PageRecord{thin, rich})
	if len(outcome.ValidPages) != 1 || len(outcome.ErrorPages) != 0 {
		t.Fatalf("valid=%d errors=%d, want the richer record only", len(outcome.ValidPages), len(outcome.ErrorPages))
	}
	if outcome.ValidPages[0].WordCount != 500 {
		t.Error("dedup should keep the record with the valid status")
	}
}

func TestAggregateAllErrorsFails(t *testing.T) {
	agg := NewAggregator(StaticClassifier{})
	outcome, _ := agg.Aggregate([]*types.PageRecord{
		page("https://example.com/", 500, 0),
		page("https://example.com/a", 404, 0),
	})

	if outcome.Status != types.OutcomeFailed {
		t.Fatalf("status = %q, want failed", outcome.Status)
	}
	if outcome.Reason == "" {
		t.Error("failed outcome should carry a reason")
	}
}

func TestAggregateEmptyFails(t *testing.T) {
	outcome, _ := NewAggregator(StaticClassifier{}).Aggregate(nil)
	if outcome.Status != types.OutcomeFailed {
		t.Fatalf("status = %q, want failed", outcome.Status)
	}
}

func TestDuplicateTitles(t *testing.T) {
	a := page("https://example.com/a", 200, 100)
	a.Title = "Welcome"
	b := page("https://example.com/b", 200, 100)
	b.Title = "welcome"
	c := page("https://example.com/c", 200, 100)
	c.Title = "Contact"

	_, facts := NewAggregator(StaticClassifier{}).Aggregate([]*types.PageRecord{a, b, c})
	if len(facts.DuplicateTitles) != 1 {
		t.Fatalf("duplicate title groups = %d, want 1", len(facts.DuplicateTitles))
	}
	group := facts.DuplicateTitles[0]
	if len(group.Pages) != 2 {
		t.Errorf("group pages = %v", group.Pages)
	}
}

func TestNoindexPages(t *testing.T) {
	a := page("https://example.com/private", 200, 100)
	a.MetaRobots = "noindex, nofollow"
	b := page("https://example.com/", 200, 100)

	_, facts := NewAggregator(StaticClassifier{}).Aggregate([]*types.PageRecord{a, b})
	if len(facts.NoindexPages) != 1 || facts.NoindexPages[0] != "https://example.com/private" {
		t.Errorf("noindex pages = %v", facts.NoindexPages)
	}
}

func TestNAPConsistency(t *testing.T) {
	withNAP := func(url, name, phone string) *types.PageRecord {
		p := page(url, 200, 100)
		p.Schema = []types.SchemaBlock{{
			Type: "LocalBusiness",
			Properties: map[string]any{
				"name":      name,
				"telephone": phone,
				"address":   "1 Main St",
			},
		}}
		return p
	}

	_, facts := NewAggregator(StaticClassifier{}).Aggregate([]*types.PageRecord{
		withNAP("https://example.com/", "Acme", "(555) 123-4567"),
		withNAP("https://example.com/contact", "Acme", "555.123.4567"),
	})
	if !facts.NAPConsistent {
		t.Error("same digits in different phone formats should be consistent")
	}

	_, facts = NewAggregator(StaticClassifier{}).Aggregate([]*types.PageRecord{
		withNAP("https://example.com/", "Acme", "555 123 4567"),
		withNAP("https://example.com/contact", "Acme", "555 999 0000"),
	})
	if facts.NAPConsistent {
		t.Error("conflicting phone numbers should be inconsistent")
	}
}

func TestPlatformMajorityVote(t *testing.T) {
	wp := page("https://example.com/a", 200, 100)
	wp.PlatformHints = []string{"WordPress"}
	wp2 := page("https://example.com/b", 200, 100)
	wp2.PlatformHints = []string{"WordPress"}
	react := page("https://example.com/c", 200, 100)
	react.PlatformHints = []string{"React"}

	_, facts := NewAggregator(StaticClassifier{}).Aggregate([]*types.PageRecord{wp, wp2, react})
	if facts.Platform != "WordPress" {
		t.Errorf("platform = %q, want WordPress", facts.Platform)
	}
}
