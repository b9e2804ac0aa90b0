package robots

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	maxSitemapBytes = 10 * 1024 * 1024
	maxSitemapHops  = 3
)

type urlsetDoc struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

type indexDoc struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// SitemapResult summarises the site's sitemap surface.
type SitemapResult struct {
	Found bool
	URLs  []string
}

// FetchSitemap loads the sitemap for a site, following sitemap-index
// references up to a fixed recursion depth. Candidates come from robots.txt
// declarations plus the conventional /sitemap.xml well-known path. Failures
// are non-fatal: an absent sitemap is a site fact, not an error.
func FetchSitemap(ctx context.Context, client *http.Client, base *url.URL, declared []string) SitemapResult {
	if client == nil || base == nil {
		return SitemapResult{}
	}

	candidates := make([]string, 0, len(declared)+1)
	candidates = append(candidates, declared...)
	candidates = append(candidates, base.Scheme+"://"+base.Host+"/sitemap.xml")

	seen := make(map[string]struct{})
	for _, loc := range candidates {
		loc = strings.TrimSpace(loc)
		if loc == "" {
			continue
		}
		if _, dup := seen[loc]; dup {
			continue
		}
		seen[loc] = struct{}{}

		urls, err := fetchSitemapDoc(ctx, client, loc, 0)
		if err != nil {
			continue
		}
		return SitemapResult{Found: true, URLs: urls}
	}
	return SitemapResult{}
}

func fetchSitemapDoc(ctx context.Context, client *http.Client, loc string, hop int) ([]string, error) {
	if hop >= maxSitemapHops {
		return nil, fmt.Errorf("sitemap recursion limit at %q", loc)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc, nil)
	if err != nil {
		return nil, fmt.Errorf("build sitemap request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("sitemap %q returned status %d", loc, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSitemapBytes))
	if err != nil {
		return nil, fmt.Errorf("read sitemap: %w", err)
	}

	if urls, err := parseURLSet(data); err == nil && len(urls) > 0 {
		return urls, nil
	}

	children, err := parseIndex(data)
	if err != nil || len(children) == 0 {
		return nil, fmt.Errorf("sitemap %q is neither urlset nor index", loc)
	}

	var urls []string
	for _, child := range children {
		childURLs, err := fetchSitemapDoc(ctx, client, child, hop+1)
		if err != nil {
			continue
		}
		urls = append(urls, childURLs...)
	}
	return urls, nil
}

func parseURLSet(data []byte) ([]string, error) {
	var doc urlsetDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(doc.URLs))
	for _, u := range doc.URLs {
		if loc := strings.TrimSpace(u.Loc); loc != "" {
			urls = append(urls, loc)
		}
	}
	return urls, nil
}

func parseIndex(data []byte) ([]string, error) {
	var doc indexDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	children := make([]string, 0, len(doc.Sitemaps))
	for _, s := range doc.Sitemaps {
		if loc := strings.TrimSpace(s.Loc); loc != "" {
			children = append(children, loc)
		}
	}
	return children, nil
}
