package urlx

import (
	"errors"
	"testing"
)

func TestCanonicalizeCollapsesEquivalentForms(t *testing.T) {
	cctx := NewContext("example.com")

	variants := []string{
		"https://example.com/about",
		"http://example.com/about",
		"https://www.example.com/about",
		"https://example.com/about/",
		"https://example.com:443/about",
		"https://example.com/about#team",
	}

	want := "https://example.com/about"
	for _, raw := range variants {
		c, err := Canonicalize(raw, cctx)
		if err != nil {
			t.Fatalf("Canonicalize(%q): unexpected error %v", raw, err)
		}
		if got := c.String(); got != want {
			t.Errorf("Canonicalize(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestCanonicalizePreservesQuery(t *testing.T) {
	cctx := NewContext("example.com")
	c, err := Canonicalize("https://example.com/search?q=plumber&page=2", cctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Query != "q=plumber&page=2" {
		t.Errorf("query = %q, want preserved", c.Query)
	}
}

func TestCanonicalizeRoot(t *testing.T) {
	cctx := NewContext("example.com")
	c, err := Canonicalize("https://example.com", cctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Path != "/" {
		t.Errorf("empty path should normalise to /, got %q", c.Path)
	}
}

func TestCanonicalizeKeepsNonDefaultPort(t *testing.T) {
	cctx := NewContext("127.0.0.1:8080")
	cctx.PreferredScheme = "http"

	c, err := Canonicalize("http://127.0.0.1:8080/page", cctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := c.String(); got != "http://127.0.0.1:8080/page" {
		t.Errorf("canonical = %q, want port and scheme preserved", got)
	}
}

func TestCanonicalizeKeepsSubdomainHost(t *testing.T) {
	cctx := NewContext("www.example.com")

	c, err := Canonicalize("https://blog.example.com/post", cctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Host != "blog.example.com" {
		t.Errorf("host = %q, subdomain names a distinct resource and must stay", c.Host)
	}
	if c.String() != "https://blog.example.com/post" {
		t.Errorf("canonical = %q", c.String())
	}

	// http on a subdomain stays http: scheme folding applies only to the
	// preferred host's own spellings.
	c, err = Canonicalize("http://blog.example.com/post", cctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Scheme != "http" {
		t.Errorf("scheme = %q, want http preserved off the preferred host", c.Scheme)
	}
}

func TestCanonicalizeMalformed(t *testing.T) {
	cctx := NewContext("example.com")
	cases := []string{"", "   ", "ftp://example.com/file", "http://%zz"}
	for _, raw := range cases {
		if _, err := Canonicalize(raw, cctx); !errors.Is(err, ErrMalformedURL) {
			t.Errorf("Canonicalize(%q): expected ErrMalformedURL, got %v", raw, err)
		}
	}
}

func TestCanonicalizeExternalHostUntouched(t *testing.T) {
	cctx := NewContext("example.com")
	c, err := Canonicalize("http://other.org/page", cctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Host != "other.org" {
		t.Errorf("external host rewritten to %q", c.Host)
	}
	if c.Scheme != "http" {
		t.Errorf("external scheme rewritten to %q", c.Scheme)
	}
}

func TestBelongsTo(t *testing.T) {
	cctx := NewContext("www.example.com")

	if !BelongsTo("example.com", cctx) {
		t.Error("apex domain should belong to the context")
	}
	if !BelongsTo("blog.example.com", cctx) {
		t.Error("subdomain of the same eTLD+1 should belong to the context")
	}
	if BelongsTo("example.org", cctx) {
		t.Error("different registrable domain should not belong")
	}
}
