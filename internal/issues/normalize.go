package issues

import (
	"strings"
)

// typeVariants collapses known message phrasings onto one canonical type key,
// so the same finding reported with different wording consolidates into a
// single issue.
var typeVariants = map[string]string{
	"title too short":             "title_too_short",
	"page title too short":        "title_too_short",
	"short title":                 "title_too_short",
	"title too long":              "title_too_long",
	"page title too long":         "title_too_long",
	"missing title":               "missing_title",
	"page title missing":          "missing_title",
	"no title tag":                "missing_title",
	"missing meta description":    "missing_meta_description",
	"no meta description":         "missing_meta_description",
	"meta description too short":  "meta_description_too_short",
	"meta description too long":   "meta_description_too_long",
	"duplicate titles":            "duplicate_titles",
	"duplicate page titles":       "duplicate_titles",
	"duplicate meta descriptions": "duplicate_meta_descriptions",
	"missing h1":                  "missing_h1",
	"no h1 heading":               "missing_h1",
	"multiple h1":                 "multiple_h1",
	"multiple h1 headings":        "multiple_h1",
	"thin content":                "thin_content",
	"low word count":              "thin_content",
	"broken pages":                "broken_pages",
	"unreachable pages":           "broken_pages",
	"images missing alt text":     "images_missing_alt",
	"missing alt attributes":      "images_missing_alt",
}

// Normalize maps a human-readable issue message onto its canonical type key.
// Unknown messages fall back to a slug of the message itself.
func Normalize(message string) string {
	key := strings.ToLower(strings.TrimSpace(message))
	if canonical, ok := typeVariants[key]; ok {
		return canonical
	}
	return slugify(key)
}

func slugify(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
