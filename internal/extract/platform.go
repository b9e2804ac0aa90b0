package extract

import (
	"net/http"
	"strings"
)

// platformSignatures maps markup substrings to platform names. Checked
// against lowercased rendered markup; header signatures are checked
// separately because proxies often strip them.
var platformSignatures = []struct {
	marker   string
	platform string
}{
	{"wp-content/", "WordPress"},
	{"wp-includes/", "WordPress"},
	{"cdn.shopify.com", "Shopify"},
	{"static.wixstatic.com", "Wix"},
	{"squarespace.com", "Squarespace"},
	{"/sites/default/files", "Drupal"},
	{"joomla", "Joomla"},
	{`id="__next"`, "Next.js"},
	{"data-reactroot", "React"},
	{"ng-version", "Angular"},
	{"data-v-app", "Vue"},
	{"ghost.org", "Ghost"},
	{"webflow.com", "Webflow"},
}

var headerSignatures = []struct {
	header   string
	marker   string
	platform string
}{
	{"X-Powered-By", "wordpress", "WordPress"},
	{"X-Powered-By", "shopify", "Shopify"},
	{"X-Powered-By", "next.js", "Next.js"},
	{"X-Powered-By", "express", "Express"},
	{"Server", "cloudflare", ""}, // CDN, not a platform
	{"X-Generator", "drupal", "Drupal"},
	{"X-Generator", "ghost", "Ghost"},
}

// platformHints collects platform fingerprints from markup and headers.
// Order is deterministic: markup signatures first, then header signatures.
func platformHints(markup []byte, headers http.Header) []string {
	lower := strings.ToLower(string(markup))
	seen := make(map[string]struct{})
	var hints []string

	add := func(p string) {
		if p == "" {
			return
		}
		if _, dup := seen[p]; dup {
			return
		}
		seen[p] = struct{}{}
		hints = append(hints, p)
	}

	for _, sig := range platformSignatures {
		if strings.Contains(lower, strings.ToLower(sig.marker)) {
			add(sig.platform)
		}
	}
	if headers != nil {
		for _, sig := range headerSignatures {
			if val := headers.Get(sig.header); val != "" && strings.Contains(strings.ToLower(val), sig.marker) {
				add(sig.platform)
			}
		}
	}
	if gen := metaGenerator(lower); gen != "" {
		add(gen)
	}
	return hints
}

// metaGenerator pulls the first word of a meta generator tag, which most
// platforms emit ("WordPress 6.4", "Joomla!").
func metaGenerator(lower string) string {
	idx := strings.Index(lower, `name="generator"`)
	if idx < 0 {
		return ""
	}
	rest := lower[idx:]
	cIdx := strings.Index(rest, `content="`)
	if cIdx < 0 {
		return ""
	}
	rest = rest[cIdx+len(`content="`):]
	end := strings.IndexByte(rest, '"')
	if end <= 0 {
		return ""
	}
	fields := strings.Fields(rest[:end])
	if len(fields) == 0 {
		return ""
	}
	name := strings.Trim(fields[0], "!")
	if name == "" {
		return ""
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
