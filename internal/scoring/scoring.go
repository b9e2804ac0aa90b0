package scoring

import (
	"siteaudit/pkg/types"
)

// Per-issue penalties by severity. A consolidated issue costs its category a
// fixed amount regardless of how many pages it touches; the affected-page
// breadth is already reflected in the issue's severity.
const (
	penaltyHigh   = 15.0
	penaltyMedium = 8.0
	penaltyLow    = 3.0
)

// Overall weights form a fixed convex combination (they sum to 1.0).
// Changing a weight is a scoring-contract change, not a tuning knob.
const (
	weightTechnical     = 0.25
	weightOnPage        = 0.25
	weightContent       = 0.20
	weightAccessibility = 0.15
	weightPerformance   = 0.15
)

// readabilityFloor is the Flesch reading-ease value below which the content
// score takes a proportional penalty.
const readabilityFloor = 50.0

// Metrics are the continuous inputs scored directly rather than through
// issues.
type Metrics struct {
	ReadabilityEase float64
	HasReadability  bool
}

// Score maps the consolidated issue set plus raw metrics onto the five
// category scores and the weighted overall score. Scoring is a pure function:
// identical inputs always produce bit-identical output.
func Score(issues []types.Issue, metrics Metrics) types.ScoreReport {
	perCategory := map[types.IssueCategory]float64{
		types.CategoryTechnical:     100,
		types.CategoryOnPage:        100,
		types.CategoryContent:       100,
		types.CategoryAccessibility: 100,
		types.CategoryPerformance:   100,
	}

	for _, issue := range issues {
		// Exhaustive over the closed category set: unknown categories must
		// not silently bypass scoring.
		switch issue.Category {
		case types.CategoryTechnical,
			types.CategoryOnPage,
			types.CategoryContent,
			types.CategoryAccessibility,
			types.CategoryPerformance:
			perCategory[issue.Category] -= severityPenalty(issue.Severity)
		default:
			perCategory[types.CategoryTechnical] -= severityPenalty(issue.Severity)
		}
	}

	if metrics.HasReadability && metrics.ReadabilityEase < readabilityFloor {
		perCategory[types.CategoryContent] -= (readabilityFloor - metrics.ReadabilityEase) * 0.4
	}

	report := types.ScoreReport{
		Technical:     clamp(perCategory[types.CategoryTechnical]),
		OnPage:        clamp(perCategory[types.CategoryOnPage]),
		Content:       clamp(perCategory[types.CategoryContent]),
		Accessibility: clamp(perCategory[types.CategoryAccessibility]),
		Performance:   clamp(perCategory[types.CategoryPerformance]),
	}
	report.Overall = clamp(report.Technical*weightTechnical +
		report.OnPage*weightOnPage +
		report.Content*weightContent +
		report.Accessibility*weightAccessibility +
		report.Performance*weightPerformance)
	return report
}

func severityPenalty(s types.Severity) float64 {
	switch s {
	case types.SeverityHigh:
		return penaltyHigh
	case types.SeverityMedium:
		return penaltyMedium
	case types.SeverityLow:
		return penaltyLow
	default:
		return penaltyLow
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
