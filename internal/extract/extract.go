package extract

import (
	"bytes"
	"errors"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"siteaudit/internal/readability"
	"siteaudit/internal/render"
	"siteaudit/internal/urlx"
	"siteaudit/pkg/types"
)

// Options bounds extraction work per page.
type Options struct {
	MaxLinksPerPage int
}

// Extractor builds PageRecords from render results. Every content-derived
// metric is sourced from the rendered markup, never the pre-render markup, so
// JavaScript-hydrated pages are judged on what users actually see.
type Extractor struct {
	cctx urlx.Context
	opts Options
}

// New creates an extractor bound to one crawl's canonicalisation context.
func New(cctx urlx.Context, opts Options) *Extractor {
	if opts.MaxLinksPerPage <= 0 {
		opts.MaxLinksPerPage = 200
	}
	return &Extractor{cctx: cctx, opts: opts}
}

// Page converts a render result into an immutable PageRecord.
func (e *Extractor) Page(res *render.Result, canonical urlx.Canonical, depth int) (*types.PageRecord, error) {
	if res == nil {
		return nil, errors.New("render result is nil")
	}

	rec := &types.PageRecord{
		URL:        canonical.String(),
		Depth:      depth,
		StatusCode: res.StatusCode,
		Rendered:   res.Rendered,
		Partial:    res.Partial,
		PageBytes:  len(res.RenderedBody),
		FetchedAt:  res.FetchedAt,
		Headers:    res.Headers,
		Delta:      renderDelta(res.InitialBody, res.RenderedBody),
	}
	rec.Timings = ValidateTimings(res.Timings)

	if len(res.RenderedBody) == 0 {
		return rec, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.RenderedBody))
	if err != nil {
		return rec, nil
	}

	rec.Title = extractTitle(doc)
	rec.MetaDescription = strings.TrimSpace(attrOf(doc, `meta[name="description"]`, "content"))
	rec.MetaRobots = strings.TrimSpace(attrOf(doc, `meta[name="robots"]`, "content"))
	rec.CanonicalLink = strings.TrimSpace(attrOf(doc, `link[rel="canonical"]`, "href"))
	rec.Lang, _ = doc.Find("html").Attr("lang")
	rec.Lang = strings.TrimSpace(rec.Lang)

	if viewport := attrOf(doc, `meta[name="viewport"]`, "content"); viewport != "" {
		rec.HasViewport = strings.Contains(strings.ToLower(viewport), "width=device-width")
	}

	rec.Headings = extractHeadings(doc)
	bodyText := visibleText(doc)
	rec.WordCount = len(strings.Fields(bodyText))
	if ease, ok := readability.Ease(bodyText); ok {
		rec.ReadabilityEase = ease
	}
	rec.Images = extractImages(doc)
	rec.Schema = extractSchema(doc)
	rec.PlatformHints = platformHints(res.RenderedBody, res.Headers)
	e.extractLinks(doc, res, rec)

	return rec, nil
}

// extractTitle implements last-occurrence-wins: template shells often ship a
// placeholder <title> that hydration replaces by appending a second element.
// The text comes back entity-decoded from the HTML parser; length is measured
// on the decoded string.
func extractTitle(doc *goquery.Document) string {
	var title string
	doc.Find("title").Each(func(_ int, s *goquery.Selection) {
		if t := normaliseSpace(s.Text()); t != "" {
			title = t
		}
	})
	return title
}

func extractHeadings(doc *goquery.Document) []types.Heading {
	var out []types.Heading
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		node := goquery.NodeName(s)
		if len(node) != 2 {
			return
		}
		level, err := strconv.Atoi(node[1:])
		if err != nil || level < 1 || level > 6 {
			return
		}
		out = append(out, types.Heading{Level: level, Text: normaliseSpace(s.Text())})
	})
	return out
}

func extractImages(doc *goquery.Document) []types.Image {
	var out []types.Image
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		alt, hasAlt := s.Attr("alt")
		out = append(out, types.Image{
			Src:    strings.TrimSpace(src),
			HasAlt: hasAlt && strings.TrimSpace(alt) != "",
		})
	})
	return out
}

func (e *Extractor) extractLinks(doc *goquery.Document, res *render.Result, rec *types.PageRecord) {
	base := res.FinalURL
	if base == nil {
		base = res.URL
	}
	if base == nil {
		return
	}

	seenInternal := make(map[string]struct{})
	seenExternal := make(map[string]struct{})
	total := 0

	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok {
			return true
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") {
			return true
		}

		u, err := base.Parse(href)
		if err != nil {
			return true
		}
		u.Fragment = ""
		scheme := strings.ToLower(u.Scheme)
		if scheme != "http" && scheme != "https" {
			return true
		}

		if urlx.BelongsTo(u.Hostname(), e.cctx) {
			cu, err := urlx.Canonicalize(u.String(), e.cctx)
			if err != nil {
				return true
			}
			key := cu.String()
			if _, dup := seenInternal[key]; !dup {
				seenInternal[key] = struct{}{}
				rec.InternalLinks = append(rec.InternalLinks, key)
				total++
			}
		} else {
			key := u.String()
			if _, dup := seenExternal[key]; !dup {
				seenExternal[key] = struct{}{}
				rec.ExternalLinks = append(rec.ExternalLinks, key)
				total++
			}
		}
		return total < e.opts.MaxLinksPerPage
	})
}

func visibleText(doc *goquery.Document) string {
	body := doc.Find("body").Clone()
	if body.Length() == 0 {
		return ""
	}
	body.Find("script, style, noscript").Remove()
	return body.Text()
}

// renderDelta compares initial and rendered markup by size and by Jaccard
// similarity of their visible word sets. A low similarity signals heavy
// client-side content generation.
func renderDelta(initial, rendered []byte) types.RenderDelta {
	delta := types.RenderDelta{
		InitialBytes:  len(initial),
		RenderedBytes: len(rendered),
	}
	if len(initial) == 0 || len(rendered) == 0 {
		return delta
	}
	if bytes.Equal(initial, rendered) {
		delta.Similarity = 1
		return delta
	}
	delta.Similarity = jaccardWords(initial, rendered)
	return delta
}

func jaccardWords(a, b []byte) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	inter := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 1
	}
	return float64(inter) / float64(union)
}

func wordSet(data []byte) map[string]struct{} {
	set := make(map[string]struct{})
	for _, f := range strings.Fields(string(data)) {
		set[f] = struct{}{}
	}
	return set
}

func attrOf(doc *goquery.Document, selector, attr string) string {
	val, _ := doc.Find(selector).First().Attr(attr)
	return val
}

func normaliseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
