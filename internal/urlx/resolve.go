package urlx

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const maxRedirectHops = 5

// ResolvePreferredHost follows redirects from the root URL once at crawl
// start to establish the host the rest of the run canonicalises against.
// Redirect loops and hop-budget exhaustion fall back to the original host
// rather than failing the run.
func ResolvePreferredHost(ctx context.Context, client *http.Client, root string) (Context, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return Context{}, fmt.Errorf("%w: empty root url", ErrMalformedURL)
	}
	if !strings.Contains(root, "://") {
		root = "https://" + root
	}
	u, err := url.Parse(root)
	if err != nil || u.Hostname() == "" {
		return Context{}, fmt.Errorf("%w: %q", ErrMalformedURL, root)
	}

	if client == nil {
		client = http.DefaultClient
	}

	seen := map[string]struct{}{u.String(): {}}
	current := u
	for hop := 0; hop < maxRedirectHops; hop++ {
		next, ok := probeRedirect(ctx, client, current)
		if !ok {
			break
		}
		if _, looped := seen[next.String()]; looped {
			// Loop detected: abandon resolution, keep the original host.
			current = u
			break
		}
		seen[next.String()] = struct{}{}
		current = next
	}

	cctx := NewContext(current.Host)
	if s := strings.ToLower(current.Scheme); s == "http" || s == "https" {
		cctx.PreferredScheme = s
	}
	return cctx, nil
}

// probeRedirect issues one non-following request and returns the redirect
// target if the response is a redirect to a resolvable location.
func probeRedirect(ctx context.Context, client *http.Client, target *url.URL) (*url.URL, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target.String(), nil)
	if err != nil {
		return nil, false
	}

	shallow := *client
	shallow.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	resp, err := shallow.Do(req)
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 300 || resp.StatusCode >= 400 {
		return nil, false
	}
	loc := resp.Header.Get("Location")
	if loc == "" {
		return nil, false
	}
	next, err := target.Parse(loc)
	if err != nil || next.Hostname() == "" {
		return nil, false
	}
	return next, true
}
