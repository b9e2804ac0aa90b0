package render

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"siteaudit/internal/fetch"
)

func testFetcher(t *testing.T) *fetch.Client {
	t.Helper()
	c, err := fetch.NewClient(fetch.Options{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestRenderDisabledServesInitialMarkup(t *testing.T) {
	// A script-shell page that would otherwise score as needing JavaScript.
	shell := `<html><head><script src="/app.js"></script></head>` +
		`<body><noscript>enable javascript</noscript><div id="root"></div></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, shell)
	}))
	defer srv.Close()

	if !NeedsRendering([]byte(shell)) {
		t.Fatal("fixture should score as needing rendering")
	}

	m := NewManager(Options{Sessions: 1, Disabled: true}, testFetcher(t), slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer m.Close()

	res, err := m.Render(context.Background(), mustParse(t, srv.URL), 2*time.Second)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if res.Rendered {
		t.Error("disabled manager must not render")
	}
	if res.Partial {
		t.Error("serving initial markup while disabled is not a degradation")
	}
	if !bytes.Equal(res.RenderedBody, res.InitialBody) {
		t.Error("rendered body should be the initial markup")
	}
	if !strings.Contains(string(res.RenderedBody), `id="root"`) {
		t.Error("initial markup lost")
	}
}

func TestRenderErrorStatusNeverRenders(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	m := NewManager(Options{Sessions: 1, Disabled: true}, testFetcher(t), slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer m.Close()

	res, err := m.Render(context.Background(), mustParse(t, srv.URL+"/missing"), 2*time.Second)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", res.StatusCode)
	}
	if res.Rendered {
		t.Error("error pages must not consume a session")
	}
}
