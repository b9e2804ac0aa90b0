package audit

import (
	"sort"

	"siteaudit/pkg/types"
)

// StaticClassifier picks the platform by majority vote over the per-page
// fingerprint hints. Ties break alphabetically so classification stays
// deterministic regardless of crawl order.
type StaticClassifier struct{}

// Classify returns the winning platform name, or "" when no page carried a
// recognisable fingerprint.
func (StaticClassifier) Classify(pages []*types.PageRecord) string {
	votes := make(map[string]int)
	for _, p := range pages {
		for _, hint := range p.PlatformHints {
			votes[hint]++
		}
	}
	if len(votes) == 0 {
		return ""
	}

	names := make([]string, 0, len(votes))
	for name := range votes {
		names = append(names, name)
	}
	sort.Strings(names)

	winner := names[0]
	for _, name := range names[1:] {
		if votes[name] > votes[winner] {
			winner = name
		}
	}
	return winner
}
