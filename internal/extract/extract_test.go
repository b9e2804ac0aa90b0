package extract

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"siteaudit/internal/render"
	"siteaudit/internal/urlx"
	"siteaudit/pkg/types"
)

func testResult(t *testing.T, rawURL, markup string) *render.Result {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse %q: %v", rawURL, err)
	}
	return &render.Result{
		URL:          u,
		FinalURL:     u,
		StatusCode:   http.StatusOK,
		Headers:      http.Header{},
		InitialBody:  []byte(markup),
		RenderedBody: []byte(markup),
		FetchedAt:    time.Now(),
	}
}

func extractPage(t *testing.T, markup string) *types.PageRecord {
	t.Helper()
	cctx := urlx.NewContext("example.com")
	ex := New(cctx, Options{})
	c, err := urlx.Canonicalize("https://example.com/", cctx)
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	rec, err := ex.Page(testResult(t, "https://example.com/", markup), c, 0)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	return rec
}

func TestExtractBasics(t *testing.T) {
	rec := extractPage(t, `<!doctype html>
<html lang="en">
<head>
  <title>Acme Plumbing | Emergency Repairs</title>
  <meta name="description" content="24/7 plumbing service">
  <meta name="robots" content="index, follow">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <link rel="canonical" href="https://example.com/">
</head>
<body>
  <h1>Acme Plumbing</h1>
  <h2>Our Services</h2>
  <p>Fast local plumbing repairs for your home.</p>
  <img src="/van.jpg" alt="Service van">
  <img src="/logo.png" alt="">
</body>
</html>`)

	if rec.Title != "Acme Plumbing | Emergency Repairs" {
		t.Errorf("title = %q", rec.Title)
	}
	if rec.MetaDescription != "24/7 plumbing service" {
		t.Errorf("meta description = %q", rec.MetaDescription)
	}
	if rec.Lang != "en" {
		t.Errorf("lang = %q", rec.Lang)
	}
	if !rec.HasViewport {
		t.Error("viewport with width=device-width should be detected")
	}
	if rec.CanonicalLink != "https://example.com/" {
		t.Errorf("canonical link = %q", rec.CanonicalLink)
	}
	if len(rec.Headings) != 2 || rec.Headings[0].Level != 1 || rec.Headings[1].Level != 2 {
		t.Errorf("headings = %+v", rec.Headings)
	}
	if len(rec.Images) != 2 {
		t.Fatalf("images = %+v", rec.Images)
	}
	if !rec.Images[0].HasAlt {
		t.Error("image with alt text should report HasAlt")
	}
	if rec.Images[1].HasAlt {
		t.Error("image with empty alt should not report HasAlt")
	}
	if rec.WordCount == 0 {
		t.Error("word count should be non-zero")
	}
}

// Hydration commonly appends a second title element; the populated one wins.
func TestExtractTitleLastOccurrenceWins(t *testing.T) {
	rec := extractPage(t, `<html><head>
<title>Loading...</title>
<title>Acme Dental | Book Online</title>
</head><body><p>hi</p></body></html>`)

	if rec.Title != "Acme Dental | Book Online" {
		t.Errorf("title = %q, want the hydrated title", rec.Title)
	}
}

func TestExtractTitleDecodesEntities(t *testing.T) {
	rec := extractPage(t, `<html><head><title>Fish &amp; Chips</title></head><body></body></html>`)
	if rec.Title != "Fish & Chips" {
		t.Errorf("title = %q, want entities decoded", rec.Title)
	}
}

func TestExtractLinksPartition(t *testing.T) {
	rec := extractPage(t, `<html><body>
<a href="/about">About</a>
<a href="https://www.example.com/about/">About again</a>
<a href="https://example.com/contact">Contact</a>
<a href="https://other.org/ref">Elsewhere</a>
<a href="mailto:hi@example.com">Mail</a>
<a href="javascript:void(0)">JS</a>
<a href="tel:+15551234567">Call</a>
</body></html>`)

	wantInternal := []string{"https://example.com/about", "https://example.com/contact"}
	if len(rec.InternalLinks) != len(wantInternal) {
		t.Fatalf("internal links = %v, want %v", rec.InternalLinks, wantInternal)
	}
	for i, want := range wantInternal {
		if rec.InternalLinks[i] != want {
			t.Errorf("internal[%d] = %q, want %q", i, rec.InternalLinks[i], want)
		}
	}
	if len(rec.ExternalLinks) != 1 || rec.ExternalLinks[0] != "https://other.org/ref" {
		t.Errorf("external links = %v", rec.ExternalLinks)
	}
}

func TestExtractLinksCap(t *testing.T) {
	markup := "<html><body>"
	for i := 0; i < 30; i++ {
		markup += `<a href="/p` + string(rune('a'+i%26)) + string(rune('a'+i/26)) + `">x</a>`
	}
	markup += "</body></html>"

	cctx := urlx.NewContext("example.com")
	ex := New(cctx, Options{MaxLinksPerPage: 10})
	c, _ := urlx.Canonicalize("https://example.com/", cctx)
	rec, err := ex.Page(testResult(t, "https://example.com/", markup), c, 0)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if got := len(rec.InternalLinks) + len(rec.ExternalLinks); got > 10 {
		t.Errorf("links = %d, want at most 10", got)
	}
}

func TestRenderDelta(t *testing.T) {
	same := renderDelta([]byte("a b c"), []byte("a b c"))
	if same.Similarity != 1 {
		t.Errorf("identical bodies should have similarity 1, got %v", same.Similarity)
	}

	differs := renderDelta([]byte("shell loading"), []byte("full hydrated content for users"))
	if differs.Similarity >= 0.5 {
		t.Errorf("disjoint bodies should have low similarity, got %v", differs.Similarity)
	}
	if differs.InitialBytes == 0 || differs.RenderedBytes == 0 {
		t.Error("byte sizes should be recorded")
	}
}

func TestExtractErrorPageKeepsStatus(t *testing.T) {
	res := testResult(t, "https://example.com/missing", "<html><body>not found</body></html>")
	res.StatusCode = http.StatusNotFound

	cctx := urlx.NewContext("example.com")
	c, _ := urlx.Canonicalize("https://example.com/missing", cctx)
	rec, err := New(cctx, Options{}).Page(res, c, 1)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if rec.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", rec.StatusCode)
	}
	if !rec.IsError() {
		t.Error("404 record should be classified as an error page")
	}
}
