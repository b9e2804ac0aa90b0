package audit

import (
	"sort"
	"strings"

	"siteaudit/pkg/types"
)

// PlatformClassifier infers the site's platform from page-level hints.
// Isolated behind an interface so an external classification service can be
// substituted without touching the aggregator.
type PlatformClassifier interface {
	Classify(pages []*types.PageRecord) string
}

// Aggregator runs once, single-threaded, after all frontier work completes.
// It must be insensitive to PageRecord arrival order, so every collection it
// produces is sorted before it leaves.
type Aggregator struct {
	classifier PlatformClassifier
}

// NewAggregator builds an aggregator; a nil classifier falls back to the
// static majority-vote classifier.
func NewAggregator(classifier PlatformClassifier) *Aggregator {
	if classifier == nil {
		classifier = StaticClassifier{}
	}
	return &Aggregator{classifier: classifier}
}

// Aggregate deduplicates records by canonical URL, partitions valid from
// error pages, and computes the cross-page facts. The returned partition is
// the single source of truth for every downstream check.
func (a *Aggregator) Aggregate(records []*types.PageRecord) (types.CrawlOutcome, types.SiteFacts) {
	deduped := dedupe(records)

	var valid, errored []*types.PageRecord
	for _, rec := range deduped {
		if rec.IsError() {
			errored = append(errored, rec)
		} else {
			valid = append(valid, rec)
		}
	}
	sortRecords(valid)
	sortRecords(errored)

	outcome := types.CrawlOutcome{
		Status:     types.OutcomeSuccess,
		ValidPages: valid,
		ErrorPages: errored,
	}
	if len(valid) == 0 {
		outcome.Status = types.OutcomeFailed
		if len(errored) > 0 {
			outcome.Reason = "every crawled page returned an error status or was unreachable"
		} else {
			outcome.Reason = "no pages could be crawled"
		}
	}

	facts := types.SiteFacts{
		DuplicateTitles:    duplicateGroups(valid, func(p *types.PageRecord) string { return p.Title }),
		DuplicateMetaDescs: duplicateGroups(valid, func(p *types.PageRecord) string { return p.MetaDescription }),
		Platform:           a.classifier.Classify(valid),
		NoindexPages:       noindexPages(valid),
	}
	facts.NAPProfiles, facts.NAPConsistent = napConsistency(valid)

	return outcome, facts
}

// dedupe groups records by canonical URL and keeps the richer record: a valid
// status beats a placeholder status, then higher word count wins.
func dedupe(records []*types.PageRecord) []*types.PageRecord {
	best := make(map[string]*types.PageRecord, len(records))
	var order []string

	for _, rec := range records {
		if rec == nil || rec.URL == "" {
			continue
		}
		current, seen := best[rec.URL]
		if !seen {
			best[rec.URL] = rec
			order = append(order, rec.URL)
			continue
		}
		if richer(rec, current) {
			best[rec.URL] = rec
		}
	}

	out := make([]*types.PageRecord, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out
}

func richer(candidate, current *types.PageRecord) bool {
	candValid := !candidate.IsError()
	currValid := !current.IsError()
	if candValid != currValid {
		return candValid
	}
	return candidate.WordCount > current.WordCount
}

func duplicateGroups(pages []*types.PageRecord, key func(*types.PageRecord) string) []types.DuplicateGroup {
	byValue := make(map[string][]string)
	for _, p := range pages {
		v := strings.TrimSpace(strings.ToLower(key(p)))
		if v == "" {
			continue
		}
		byValue[v] = append(byValue[v], p.URL)
	}

	var groups []types.DuplicateGroup
	for v, urls := range byValue {
		if len(urls) < 2 {
			continue
		}
		sort.Strings(urls)
		groups = append(groups, types.DuplicateGroup{Value: v, Pages: urls})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Value < groups[j].Value })
	return groups
}

func noindexPages(pages []*types.PageRecord) []string {
	var out []string
	for _, p := range pages {
		if strings.Contains(strings.ToLower(p.MetaRobots), "noindex") {
			out = append(out, p.URL)
		}
	}
	sort.Strings(out)
	return out
}

// napConsistency collects name/address/phone triples from structured data and
// reports whether every observed non-empty field agrees across pages.
func napConsistency(pages []*types.PageRecord) ([]types.NAPProfile, bool) {
	seen := make(map[string]struct{})
	var profiles []types.NAPProfile

	for _, p := range pages {
		for _, block := range p.Schema {
			typ := strings.ToLower(block.Type)
			if typ != "localbusiness" && typ != "organization" {
				continue
			}
			profile := types.NAPProfile{
				Name:    stringProp(block.Properties, "name"),
				Address: flattenAddress(block.Properties["address"]),
				Phone:   normalisePhone(stringProp(block.Properties, "telephone")),
			}
			if profile.Name == "" && profile.Address == "" && profile.Phone == "" {
				continue
			}
			key := profile.Name + "|" + profile.Address + "|" + profile.Phone
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			profiles = append(profiles, profile)
		}
	}

	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].Name+profiles[i].Address < profiles[j].Name+profiles[j].Address
	})

	consistent := true
	for i := 1; i < len(profiles); i++ {
		if !fieldAgrees(profiles[0].Name, profiles[i].Name) ||
			!fieldAgrees(profiles[0].Address, profiles[i].Address) ||
			!fieldAgrees(profiles[0].Phone, profiles[i].Phone) {
			consistent = false
			break
		}
	}
	return profiles, consistent
}

// fieldAgrees treats an empty observation as agreement; only two different
// non-empty values conflict.
func fieldAgrees(a, b string) bool {
	if a == "" || b == "" {
		return true
	}
	return strings.EqualFold(a, b)
}

func stringProp(props map[string]any, key string) string {
	if props == nil {
		return ""
	}
	if s, ok := props[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func flattenAddress(val any) string {
	switch v := val.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		parts := make([]string, 0, 4)
		for _, key := range []string{"streetAddress", "addressLocality", "addressRegion", "postalCode"} {
			if s, ok := v[key].(string); ok && strings.TrimSpace(s) != "" {
				parts = append(parts, strings.TrimSpace(s))
			}
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}

func normalisePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func sortRecords(records []*types.PageRecord) {
	sort.Slice(records, func(i, j int) bool { return records[i].URL < records[j].URL })
}
