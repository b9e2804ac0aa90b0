package issues

import (
	"sort"

	"siteaudit/pkg/types"
)

// Consolidate merges candidate issues sharing a normalised type and category
// into one issue with the maximum observed severity, the union of affected
// pages, and deduplicated fix guidance. The operation is idempotent:
// consolidating twice equals consolidating once.
func Consolidate(candidates []types.Issue) []types.Issue {
	merged := make(map[string]*types.Issue)
	var order []string

	for _, cand := range candidates {
		typeKey := cand.Type
		if typeKey == "" {
			typeKey = Normalize(cand.Message)
		}
		key := string(cand.Category) + "/" + typeKey

		existing, ok := merged[key]
		if !ok {
			issue := cand
			issue.Type = typeKey
			issue.AffectedPages = append([]string(nil), cand.AffectedPages...)
			issue.FixGuidance = append([]string(nil), cand.FixGuidance...)
			merged[key] = &issue
			order = append(order, key)
			continue
		}

		if cand.Severity > existing.Severity {
			existing.Severity = cand.Severity
			existing.Message = cand.Message
		}
		existing.AffectedPages = append(existing.AffectedPages, cand.AffectedPages...)
		existing.FixGuidance = append(existing.FixGuidance, cand.FixGuidance...)
		if existing.Details == "" {
			existing.Details = cand.Details
		}
	}

	out := make([]types.Issue, 0, len(order))
	for _, key := range order {
		issue := merged[key]
		issue.AffectedPages = dedupeSorted(issue.AffectedPages)
		issue.FixGuidance = dedupeStable(issue.FixGuidance)
		out = append(out, *issue)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return categoryRank(out[i].Category) < categoryRank(out[j].Category)
		}
		if out[i].Severity != out[j].Severity {
			return out[i].Severity > out[j].Severity
		}
		return out[i].Type < out[j].Type
	})
	return out
}

func categoryRank(c types.IssueCategory) int {
	for i, cat := range types.Categories() {
		if cat == c {
			return i
		}
	}
	return len(types.Categories())
}

func dedupeSorted(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func dedupeStable(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
