package competitor

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"siteaudit/internal/fetch"
	"siteaudit/internal/render"
	"siteaudit/pkg/types"
)

func testManager(t *testing.T) *render.Manager {
	t.Helper()
	fetcher, err := fetch.NewClient(fetch.Options{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("fetch client: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := render.NewManager(render.Options{Sessions: 1, Disabled: true}, fetcher, logger)
	t.Cleanup(m.Close)
	return m
}

func TestDiffAllFetchesFailedIsUnavailable(t *testing.T) {
	// A closed server guarantees connection-refused without touching the network.
	srv := httptest.NewServer(http.NotFoundHandler())
	dead := srv.URL
	srv.Close()

	d := NewDiffer(testManager(t), Options{MaxPages: 2, MaxDepth: 1, Budget: 2 * time.Second},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	target := []*types.PageRecord{{URL: "https://example.com/", Title: "Emergency Plumbing Repair"}}
	diff := d.Diff(context.Background(), target, []string{dead})

	if diff == nil {
		t.Fatal("expected a diff result")
	}
	if !diff.Unavailable {
		t.Fatal("all failed fetches must mark the diff unavailable")
	}
	if len(diff.TargetOnly) != 0 {
		t.Errorf("unavailable diff must not fabricate keyword sets, got %v", diff.TargetOnly)
	}
	if len(diff.Competitors) != 1 || diff.Competitors[0].FetchError == "" {
		t.Errorf("per-competitor fetch error should be recorded: %+v", diff.Competitors)
	}
}

func TestDiffAgainstStaticCompetitor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Rival Water Heater Installation Experts</title>
<meta name="description" content="Water heater installation and repair by certified technicians with same day service availability."></head>
<body><h1>Water Heater Installation</h1><p>` +
			"Certified water heater installation and repair service for every neighborhood. Fast response, fair prices, licensed technicians you can trust with your home systems. Call today for a free estimate on any installation job large or small." +
			`</p></body></html>`))
	}))
	defer srv.Close()

	d := NewDiffer(testManager(t), Options{MaxPages: 1, MaxDepth: 1, Budget: 5 * time.Second},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	target := []*types.PageRecord{{
		URL:   "https://example.com/",
		Title: "Emergency Plumbing Repair | Acme",
		Headings: []types.Heading{
			{Level: 1, Text: "Emergency Plumbing Repair"},
		},
	}}

	diff := d.Diff(context.Background(), target, []string{srv.URL})
	if diff == nil {
		t.Fatal("expected a diff result")
	}
	if diff.Unavailable {
		t.Fatalf("successful fetch should not be unavailable: %s", diff.Reason)
	}
	if len(diff.Competitors) != 1 {
		t.Fatalf("competitors = %+v", diff.Competitors)
	}
	entry := diff.Competitors[0]
	if entry.FetchError != "" {
		t.Fatalf("fetch error: %s", entry.FetchError)
	}
	if len(entry.Gaps) == 0 {
		t.Error("competitor keywords absent from the target should surface as gaps")
	}
}

func TestDiffNoCompetitorsIsNil(t *testing.T) {
	d := NewDiffer(testManager(t), Options{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if diff := d.Diff(context.Background(), nil, nil); diff != nil {
		t.Fatalf("no competitor URLs should produce a nil diff, got %+v", diff)
	}
}
