package extract

import (
	"errors"

	"siteaudit/pkg/types"
)

// paintCeilingMS is the sanity ceiling for paint timings. Anything above it
// is treated as instrumentation noise, capped, and flagged.
const paintCeilingMS = 30_000

// ErrMetricOutOfRange marks a timing metric that violated ordering or ceiling
// validation. The metric is capped, never propagated raw.
var ErrMetricOutOfRange = errors.New("metric out of range")

// ValidateTimings enforces the monotonic ordering
// ttfb <= firstPaint <= largestContentfulPaint and the sanity ceiling.
// Violating values are clamped to the nearest legal bound and the affected
// field names are recorded in Capped. Zero values mean "not captured" and
// pass through untouched.
func ValidateTimings(in types.TimingSignals) types.TimingSignals {
	out := in
	out.Capped = nil

	clampTo := func(field string, v *float64, bound float64) {
		*v = bound
		out.Capped = append(out.Capped, field)
	}

	if out.TTFB < 0 {
		clampTo("ttfb", &out.TTFB, 0)
	}
	if out.FirstPaint < 0 {
		clampTo("first_paint", &out.FirstPaint, 0)
	}
	if out.LargestContentful < 0 {
		clampTo("largest_contentful_paint", &out.LargestContentful, 0)
	}
	if out.CumulativeShift < 0 {
		clampTo("cumulative_layout_shift", &out.CumulativeShift, 0)
	}

	if out.TTFB > paintCeilingMS {
		clampTo("ttfb", &out.TTFB, paintCeilingMS)
	}
	if out.FirstPaint > paintCeilingMS {
		clampTo("first_paint", &out.FirstPaint, paintCeilingMS)
	}
	if out.LargestContentful > paintCeilingMS {
		clampTo("largest_contentful_paint", &out.LargestContentful, paintCeilingMS)
	}

	// Ordering: a paint reported earlier than the first byte is clamped up,
	// an LCP earlier than first paint is clamped up.
	if out.FirstPaint > 0 && out.TTFB > 0 && out.FirstPaint < out.TTFB {
		clampTo("first_paint", &out.FirstPaint, out.TTFB)
	}
	if out.LargestContentful > 0 {
		floor := out.FirstPaint
		if floor == 0 {
			floor = out.TTFB
		}
		if floor > 0 && out.LargestContentful < floor {
			clampTo("largest_contentful_paint", &out.LargestContentful, floor)
		}
	}

	return out
}
