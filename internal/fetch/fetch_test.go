package fetch

import (
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func mustClient(t *testing.T, opts Options) *Client {
	t.Helper()
	c, err := NewClient(opts)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func get(t *testing.T, c *Client, raw string) *Response {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	resp, err := c.Get(context.Background(), u)
	if err != nil {
		t.Fatalf("Get(%q): %v", raw, err)
	}
	return resp
}

func TestGetPlainBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "test-bot/1.0" {
			t.Errorf("user agent = %q", ua)
		}
		if got := r.Header.Get("X-Custom"); got != "yes" {
			t.Errorf("extra header = %q", got)
		}
		w.Write([]byte("<html>hello</html>"))
	}))
	defer srv.Close()

	c := mustClient(t, Options{UserAgent: "test-bot/1.0", Headers: map[string]string{"X-Custom": "yes"}})
	resp := get(t, c, srv.URL)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if string(resp.Body) != "<html>hello</html>" {
		t.Errorf("body = %q", resp.Body)
	}
	if resp.TTFB <= 0 {
		t.Error("ttfb should be measured")
	}
}

func TestGetDecodesGzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		gz.Write([]byte("<html>compressed content</html>"))
		gz.Close()
	}))
	defer srv.Close()

	c := mustClient(t, Options{})
	resp := get(t, c, srv.URL)
	if string(resp.Body) != "<html>compressed content</html>" {
		t.Errorf("body = %q, want decoded", resp.Body)
	}
}

func TestGetCapsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer srv.Close()

	c := mustClient(t, Options{MaxBodyBytes: 1024})
	resp := get(t, c, srv.URL)
	if len(resp.Body) != 1024 {
		t.Errorf("body = %d bytes, want truncated to 1024", len(resp.Body))
	}
}

func TestGetRecordsFinalURL(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/start" {
			http.Redirect(w, r, srv.URL+"/end", http.StatusMovedPermanently)
			return
		}
		w.Write([]byte("done"))
	}))
	defer srv.Close()

	c := mustClient(t, Options{})
	resp := get(t, c, srv.URL+"/start")
	if !strings.HasSuffix(resp.FinalURL.Path, "/end") {
		t.Errorf("final url = %s, want the redirect target", resp.FinalURL)
	}
}
