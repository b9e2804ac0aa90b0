package competitor

import (
	"sort"
	"strings"

	"siteaudit/pkg/types"
)

// similarityThreshold is the documented cutoff for treating two keywords as
// the same concept: Jaccard similarity >= 0.5 over their word-token sets.
const similarityThreshold = 0.5

const maxKeywordsPerSite = 40

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "had": {}, "her": {}, "was": {},
	"one": {}, "our": {}, "out": {}, "day": {}, "get": {}, "has": {},
	"him": {}, "his": {}, "how": {}, "its": {}, "new": {}, "now": {},
	"old": {}, "see": {}, "two": {}, "way": {}, "who": {}, "with": {},
	"this": {}, "that": {}, "they": {}, "have": {}, "from": {}, "your": {},
	"more": {}, "will": {}, "home": {}, "page": {}, "about": {}, "contact": {},
	"what": {}, "when": {}, "where": {}, "which": {}, "their": {}, "there": {},
	"been": {}, "were": {}, "into": {}, "than": {}, "them": {}, "then": {},
	"some": {}, "also": {}, "here": {}, "just": {}, "like": {}, "over": {},
}

// Keywords derives a site's keyword set from titles, headings, and meta
// descriptions. Terms are frequency-ranked, stop-words removed, and
// near-duplicate phrases merged by similarity, keeping the most frequent
// spelling. Output order is deterministic.
func Keywords(pages []*types.PageRecord) []string {
	freq := make(map[string]int)

	addTokens := func(text string) {
		tokens := tokenize(text)
		for _, tok := range tokens {
			freq[tok]++
		}
		// Adjacent-token bigrams capture multi-word concepts.
		for i := 0; i+1 < len(tokens); i++ {
			freq[tokens[i]+" "+tokens[i+1]]++
		}
	}

	for _, p := range pages {
		addTokens(p.Title)
		addTokens(p.MetaDescription)
		for _, h := range p.Headings {
			if h.Level <= 3 {
				addTokens(h.Text)
			}
		}
	}

	type entry struct {
		term  string
		count int
	}
	entries := make([]entry, 0, len(freq))
	for term, count := range freq {
		if count < 1 {
			continue
		}
		entries = append(entries, entry{term, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].term < entries[j].term
	})

	var kept []string
	for _, e := range entries {
		if len(kept) >= maxKeywordsPerSite {
			break
		}
		dup := false
		for _, existing := range kept {
			if Similar(e.term, existing) {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, e.term)
		}
	}
	return kept
}

// Similar reports whether two keywords describe the same concept: Jaccard
// similarity of their word sets at or above the documented threshold, with a
// shared-prefix rule so singular/plural variants of one word match.
func Similar(a, b string) bool {
	if a == b {
		return true
	}
	wordsA := strings.Fields(a)
	wordsB := strings.Fields(b)

	if len(wordsA) == 1 && len(wordsB) == 1 {
		return sharedPrefix(wordsA[0], wordsB[0])
	}

	setA := make(map[string]struct{}, len(wordsA))
	for _, w := range wordsA {
		setA[w] = struct{}{}
	}
	inter := 0
	setB := make(map[string]struct{}, len(wordsB))
	for _, w := range wordsB {
		if _, dup := setB[w]; dup {
			continue
		}
		setB[w] = struct{}{}
		if _, ok := setA[w]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return true
	}
	return float64(inter)/float64(union) >= similarityThreshold
}

func sharedPrefix(a, b string) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	return len(a) >= 4 && strings.HasPrefix(b, a) && len(b)-len(a) <= 2
}

func tokenize(text string) []string {
	var out []string
	for _, raw := range strings.Fields(strings.ToLower(text)) {
		tok := strings.Trim(raw, ".,;:!?\"'()[]{}|/\\-—–&")
		if len(tok) < 3 {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}
