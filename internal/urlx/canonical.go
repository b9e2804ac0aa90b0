package urlx

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ErrMalformedURL marks input that cannot be parsed into a crawlable URL.
// Callers log and skip; a malformed URL never aborts a run.
var ErrMalformedURL = errors.New("malformed url")

// Canonical is the normalised identity of a resource within one crawl run.
// Two URLs differing only by scheme, www. prefix, default port, trailing
// slash, or fragment map to the same Canonical.
type Canonical struct {
	Scheme string
	Host   string
	Path   string
	Query  string
}

// String renders the canonical key used for frontier and dedup lookups.
func (c Canonical) String() string {
	var b strings.Builder
	b.WriteString(c.Scheme)
	b.WriteString("://")
	b.WriteString(c.Host)
	b.WriteString(c.Path)
	if c.Query != "" {
		b.WriteString("?")
		b.WriteString(c.Query)
	}
	return b.String()
}

// URL rebuilds a parseable URL from the canonical form.
func (c Canonical) URL() *url.URL {
	return &url.URL{
		Scheme:   c.Scheme,
		Host:     c.Host,
		Path:     c.Path,
		RawQuery: c.Query,
	}
}

// Context fixes the canonicalisation rules for one crawl run.
// PreferredHost is the redirect-resolved host (with any non-default port) of
// the root URL, established once at run start; PreferredScheme is the scheme
// that resolution ended on. RegistrableDomain is the host's eTLD+1 and
// decides site membership regardless of www. prefix.
type Context struct {
	PreferredHost     string
	PreferredScheme   string
	RegistrableDomain string
}

// NewContext derives a canonicalisation context from a resolved root host.
func NewContext(preferredHost string) Context {
	host := normaliseHost(preferredHost)
	return Context{
		PreferredHost:     host,
		PreferredScheme:   "https",
		RegistrableDomain: registrableDomain(host),
	}
}

// Canonicalize normalises a raw URL. Relative input resolves against the
// context's preferred host. Returns ErrMalformedURL for unparseable or
// non-HTTP input.
func Canonicalize(raw string, cctx Context) (Canonical, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Canonical{}, fmt.Errorf("%w: empty input", ErrMalformedURL)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Canonical{}, fmt.Errorf("%w: %v", ErrMalformedURL, err)
	}
	if u.Scheme == "" {
		u, err = url.Parse("https://" + raw)
		if err != nil {
			return Canonical{}, fmt.Errorf("%w: %v", ErrMalformedURL, err)
		}
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return Canonical{}, fmt.Errorf("%w: unsupported scheme %q", ErrMalformedURL, u.Scheme)
	}

	host := normaliseHost(u.Hostname())
	if host == "" {
		if cctx.PreferredHost == "" {
			return Canonical{}, fmt.Errorf("%w: missing host", ErrMalformedURL)
		}
		host = cctx.PreferredHost
	}
	if port := u.Port(); port != "" && port != defaultPort(scheme) {
		host = host + ":" + port
	}

	// The preferred host wins over www-variants of itself, so both
	// spellings share one canonical identity. Other subdomains keep their
	// host: blog.example.com/post and example.com/post are distinct
	// resources even though they share a registrable domain.
	if cctx.PreferredHost != "" && host == cctx.PreferredHost {
		if cctx.PreferredScheme != "" {
			scheme = cctx.PreferredScheme
		} else {
			scheme = "https"
		}
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}

	return Canonical{
		Scheme: scheme,
		Host:   host,
		Path:   path,
		Query:  u.RawQuery,
	}, nil
}

// IsSameSite reports whether both URLs share a registrable domain. The www.
// prefix and subdomain differences within the same eTLD+1 do not matter.
func IsSameSite(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	da := registrableDomain(normaliseHost(a.Hostname()))
	db := registrableDomain(normaliseHost(b.Hostname()))
	return da != "" && da == db
}

// BelongsTo reports whether the host is internal to the crawl context.
func BelongsTo(host string, cctx Context) bool {
	if cctx.RegistrableDomain == "" {
		return false
	}
	return registrableDomain(normaliseHost(host)) == cctx.RegistrableDomain
}

func normaliseHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimSuffix(host, ".")
	host = strings.TrimPrefix(host, "www.")
	return host
}

func registrableDomain(host string) string {
	if host = strings.TrimSpace(host); host == "" {
		return ""
	}
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	dom, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// Bare hosts (localhost, IPs) fall back to the host itself.
		return host
	}
	return dom
}

func defaultPort(scheme string) string {
	switch scheme {
	case "http":
		return "80"
	case "https":
		return "443"
	default:
		return ""
	}
}
