package extract

import (
	"net/http"
	"testing"
)

func TestPlatformHintsFromMarkup(t *testing.T) {
	markup := []byte(`<html><head><link href="/wp-content/themes/site/style.css"></head><body></body></html>`)
	hints := platformHints(markup, nil)
	if len(hints) != 1 || hints[0] != "WordPress" {
		t.Errorf("hints = %v, want [WordPress]", hints)
	}
}

func TestPlatformHintsFromHeaders(t *testing.T) {
	headers := http.Header{}
	headers.Set("X-Powered-By", "Express")
	hints := platformHints([]byte("<html></html>"), headers)
	if len(hints) != 1 || hints[0] != "Express" {
		t.Errorf("hints = %v, want [Express]", hints)
	}
}

func TestPlatformHintsGenerator(t *testing.T) {
	markup := []byte(`<html><head><meta name="generator" content="Joomla! 4.2"></head></html>`)
	hints := platformHints(markup, nil)
	if len(hints) != 1 || hints[0] != "Joomla" {
		t.Errorf("hints = %v, want [Joomla]", hints)
	}
}

func TestPlatformHintsDeduped(t *testing.T) {
	markup := []byte(`<html><body><script src="/wp-content/a.js"></script><link href="/wp-includes/b.css"></body></html>`)
	hints := platformHints(markup, nil)
	if len(hints) != 1 {
		t.Errorf("duplicate fingerprints should collapse, got %v", hints)
	}
}

func TestPlatformHintsNone(t *testing.T) {
	if hints := platformHints([]byte("<html><body>plain site</body></html>"), nil); len(hints) != 0 {
		t.Errorf("hints = %v, want none", hints)
	}
}
