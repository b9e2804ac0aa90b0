package issues

import (
	"fmt"
	"strings"

	"siteaudit/pkg/types"
)

// Title and meta-description length bounds, in decoded characters.
const (
	minTitleLen    = 30
	maxTitleLen    = 60
	minMetaDescLen = 70
	maxMetaDescLen = 160
	thinContentMin = 300
)

// Performance thresholds, milliseconds unless noted.
const (
	lcpSlowMS      = 2500.0
	lcpCriticalMS  = 4000.0
	ttfbSlowMS     = 800.0
	clsPoor        = 0.1
	clsCritical    = 0.25
	largePageBytes = 3 * 1024 * 1024
)

// Build converts the aggregator's partition and facts into consolidated
// issues. Error pages feed exactly one issue — broken pages — and are never
// referenced by any other check.
func Build(valid, errored []*types.PageRecord, facts types.SiteFacts) []types.Issue {
	var candidates []types.Issue

	if len(errored) > 0 {
		urls := make([]string, 0, len(errored))
		for _, p := range errored {
			urls = append(urls, p.URL)
		}
		candidates = append(candidates, types.Issue{
			Category:      types.CategoryTechnical,
			Severity:      types.SeverityHigh,
			Message:       "broken pages",
			AffectedPages: urls,
			Details:       fmt.Sprintf("%d pages returned an error status or were unreachable", len(urls)),
			FixGuidance:   []string{"Fix or redirect broken URLs and remove links pointing at them."},
		})
	}

	candidates = append(candidates, technicalIssues(valid, facts)...)
	candidates = append(candidates, onPageIssues(valid, facts)...)
	candidates = append(candidates, contentIssues(valid, facts)...)
	candidates = append(candidates, accessibilityIssues(valid)...)
	candidates = append(candidates, performanceIssues(valid)...)

	return Consolidate(candidates)
}

func technicalIssues(valid []*types.PageRecord, facts types.SiteFacts) []types.Issue {
	var out []types.Issue

	if !facts.HasRobots {
		out = append(out, types.Issue{
			Category:    types.CategoryTechnical,
			Severity:    types.SeverityLow,
			Message:     "missing robots.txt",
			FixGuidance: []string{"Publish a robots.txt at the site root declaring crawl rules and the sitemap location."},
		})
	}
	if !facts.HasSitemap {
		out = append(out, types.Issue{
			Category:    types.CategoryTechnical,
			Severity:    types.SeverityMedium,
			Message:     "missing sitemap",
			FixGuidance: []string{"Publish an XML sitemap and reference it from robots.txt."},
		})
	}
	if len(facts.RobotsBlocked) > 0 {
		out = append(out, types.Issue{
			Category:      types.CategoryTechnical,
			Severity:      types.SeverityLow,
			Message:       "pages blocked by robots directives",
			AffectedPages: facts.RobotsBlocked,
			Details:       fmt.Sprintf("%d discovered URLs are disallowed for this crawler", len(facts.RobotsBlocked)),
		})
	}
	if len(facts.NoindexPages) > 0 {
		out = append(out, types.Issue{
			Category:      types.CategoryTechnical,
			Severity:      types.SeverityMedium,
			Message:       "pages marked noindex",
			AffectedPages: facts.NoindexPages,
			FixGuidance:   []string{"Confirm each noindex directive is intentional; indexed pages should not carry it."},
		})
	}

	var missingCanonical []string
	for _, p := range valid {
		if p.CanonicalLink == "" {
			missingCanonical = append(missingCanonical, p.URL)
		}
	}
	if len(missingCanonical) > 0 {
		out = append(out, types.Issue{
			Category:      types.CategoryTechnical,
			Severity:      types.SeverityLow,
			Message:       "missing canonical link",
			AffectedPages: missingCanonical,
			FixGuidance:   []string{"Add a rel=canonical link so scheme and parameter variants do not compete in search indexes."},
		})
	}

	return out
}

func onPageIssues(valid []*types.PageRecord, facts types.SiteFacts) []types.Issue {
	var out []types.Issue

	for _, p := range valid {
		titleLen := len([]rune(p.Title))
		switch {
		case titleLen == 0:
			out = append(out, pageIssue(types.CategoryOnPage, types.SeverityHigh, "missing title", p,
				"Add a unique, descriptive title element."))
		case titleLen < minTitleLen:
			out = append(out, pageIssue(types.CategoryOnPage, types.SeverityLow, "title too short", p,
				fmt.Sprintf("Expand the title toward %d-%d characters.", minTitleLen, maxTitleLen)))
		case titleLen > maxTitleLen:
			out = append(out, pageIssue(types.CategoryOnPage, types.SeverityLow, "title too long", p,
				fmt.Sprintf("Shorten the title below %d characters so it is not truncated in results.", maxTitleLen)))
		}

		descLen := len([]rune(p.MetaDescription))
		switch {
		case descLen == 0:
			out = append(out, pageIssue(types.CategoryOnPage, types.SeverityMedium, "missing meta description", p,
				"Write a meta description summarising the page."))
		case descLen < minMetaDescLen:
			out = append(out, pageIssue(types.CategoryOnPage, types.SeverityLow, "meta description too short", p,
				fmt.Sprintf("Expand the description toward %d-%d characters.", minMetaDescLen, maxMetaDescLen)))
		case descLen > maxMetaDescLen:
			out = append(out, pageIssue(types.CategoryOnPage, types.SeverityLow, "meta description too long", p,
				fmt.Sprintf("Trim the description below %d characters.", maxMetaDescLen)))
		}

		h1s := p.H1Texts()
		if len(h1s) == 0 {
			out = append(out, pageIssue(types.CategoryOnPage, types.SeverityMedium, "missing h1", p,
				"Add exactly one h1 naming the page's topic."))
		} else if len(h1s) > 1 {
			out = append(out, pageIssue(types.CategoryOnPage, types.SeverityLow, "multiple h1", p,
				"Keep a single h1; demote the others to h2."))
		}
	}

	for _, group := range facts.DuplicateTitles {
		out = append(out, types.Issue{
			Category:      types.CategoryOnPage,
			Severity:      types.SeverityMedium,
			Message:       "duplicate titles",
			AffectedPages: group.Pages,
			Details:       fmt.Sprintf("%d pages share the title %q", len(group.Pages), group.Value),
			FixGuidance:   []string{"Give every page a unique title."},
		})
	}
	for _, group := range facts.DuplicateMetaDescs {
		out = append(out, types.Issue{
			Category:      types.CategoryOnPage,
			Severity:      types.SeverityMedium,
			Message:       "duplicate meta descriptions",
			AffectedPages: group.Pages,
			Details:       fmt.Sprintf("%d pages share the same meta description", len(group.Pages)),
			FixGuidance:   []string{"Write a distinct meta description per page."},
		})
	}

	return out
}

func contentIssues(valid []*types.PageRecord, facts types.SiteFacts) []types.Issue {
	var out []types.Issue

	anySchema := false
	for _, p := range valid {
		if p.WordCount > 0 && p.WordCount < thinContentMin {
			out = append(out, pageIssue(types.CategoryContent, types.SeverityMedium, "thin content", p,
				fmt.Sprintf("Grow the page toward at least %d words of substantive copy.", thinContentMin)))
		}
		for _, block := range p.Schema {
			anySchema = true
			if len(block.MissingFields) > 0 {
				issue := pageIssue(types.CategoryContent, types.SeverityMedium, "incomplete structured data", p,
					"Fill the required structured-data properties for the declared type.")
				issue.Details = fmt.Sprintf("%s block missing: %s", block.Type, strings.Join(block.MissingFields, ", "))
				out = append(out, issue)
			}
		}
	}

	if !anySchema && len(valid) > 0 {
		out = append(out, types.Issue{
			Category:    types.CategoryContent,
			Severity:    types.SeverityLow,
			Message:     "missing structured data",
			FixGuidance: []string{"Add JSON-LD structured data for the organisation and key content types."},
		})
	}

	if len(facts.NAPProfiles) > 1 && !facts.NAPConsistent {
		out = append(out, types.Issue{
			Category:    types.CategoryContent,
			Severity:    types.SeverityHigh,
			Message:     "inconsistent business contact details",
			Details:     fmt.Sprintf("%d conflicting name/address/phone profiles found in structured data", len(facts.NAPProfiles)),
			FixGuidance: []string{"Use identical name, address, and phone values everywhere they appear."},
		})
	}

	return out
}

func accessibilityIssues(valid []*types.PageRecord) []types.Issue {
	var out []types.Issue

	for _, p := range valid {
		missingAlt := 0
		for _, img := range p.Images {
			if !img.HasAlt {
				missingAlt++
			}
		}
		if missingAlt > 0 {
			sev := types.SeverityLow
			if missingAlt*2 > len(p.Images) {
				sev = types.SeverityMedium
			}
			issue := pageIssue(types.CategoryAccessibility, sev, "images missing alt text", p,
				"Describe meaningful images with alt text; mark decorative ones with empty alt.")
			issue.Details = fmt.Sprintf("%d of %d images lack alt text", missingAlt, len(p.Images))
			out = append(out, issue)
		}
		if p.Lang == "" {
			out = append(out, pageIssue(types.CategoryAccessibility, types.SeverityLow, "missing language attribute", p,
				"Declare the document language on the html element."))
		}
		if !p.HasViewport {
			out = append(out, pageIssue(types.CategoryAccessibility, types.SeverityMedium, "missing viewport meta", p,
				"Add a responsive viewport meta tag for mobile rendering."))
		}
	}

	return out
}

func performanceIssues(valid []*types.PageRecord) []types.Issue {
	var out []types.Issue

	for _, p := range valid {
		if lcp := p.Timings.LargestContentful; lcp > 0 {
			if lcp > lcpCriticalMS {
				out = append(out, pageIssue(types.CategoryPerformance, types.SeverityHigh, "slow largest contentful paint", p,
					"Reduce render-blocking resources and optimise the largest above-the-fold element."))
			} else if lcp > lcpSlowMS {
				out = append(out, pageIssue(types.CategoryPerformance, types.SeverityMedium, "slow largest contentful paint", p,
					"Reduce render-blocking resources and optimise the largest above-the-fold element."))
			}
		}
		if cls := p.Timings.CumulativeShift; cls > 0 {
			if cls > clsCritical {
				out = append(out, pageIssue(types.CategoryPerformance, types.SeverityHigh, "high layout shift", p,
					"Reserve space for images, ads, and embeds so content does not move during load."))
			} else if cls > clsPoor {
				out = append(out, pageIssue(types.CategoryPerformance, types.SeverityMedium, "high layout shift", p,
					"Reserve space for images, ads, and embeds so content does not move during load."))
			}
		}
		if p.Timings.TTFB > ttfbSlowMS {
			out = append(out, pageIssue(types.CategoryPerformance, types.SeverityMedium, "slow server response", p,
				"Cache rendered pages or move the origin closer to users to cut time to first byte."))
		}
		if p.PageBytes > largePageBytes {
			out = append(out, pageIssue(types.CategoryPerformance, types.SeverityMedium, "large page size", p,
				"Compress images and strip unused scripts to shrink the page."))
		}
	}

	return out
}

func pageIssue(cat types.IssueCategory, sev types.Severity, message string, p *types.PageRecord, guidance string) types.Issue {
	return types.Issue{
		Category:      cat,
		Severity:      sev,
		Message:       message,
		AffectedPages: []string{p.URL},
		FixGuidance:   []string{guidance},
	}
}
