package frontier

import (
	"sync"

	"siteaudit/internal/urlx"
)

// Item is one admitted crawl target.
type Item struct {
	URL   urlx.Canonical
	Depth int
}

// Frontier is the bounded breadth-first admission gate over canonical URLs.
// The visited-set check and the enqueue are one atomic operation under a
// single mutex, so concurrent workers can never admit the same canonical URL
// twice. Workers own admitted items; the frontier never hands an item out
// more than once.
type Frontier struct {
	mu       sync.Mutex
	visited  map[string]struct{}
	admitted int
	maxDepth int
	maxPages int
}

// New creates a frontier with the run's depth and page budgets.
func New(maxDepth, maxPages int) *Frontier {
	if maxDepth <= 0 {
		maxDepth = 1
	}
	if maxPages <= 0 {
		maxPages = 1
	}
	return &Frontier{
		visited:  make(map[string]struct{}, maxPages),
		maxDepth: maxDepth,
		maxPages: maxPages,
	}
}

// Admit reports whether the URL should be crawled, atomically marking it
// visited. A canonical URL is admitted at most once per run; depth and page
// budgets are enforced here and nowhere else.
func (f *Frontier) Admit(c urlx.Canonical, depth int) (Item, bool) {
	if depth > f.maxDepth {
		return Item{}, false
	}
	key := c.String()

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.admitted >= f.maxPages {
		return Item{}, false
	}
	if _, seen := f.visited[key]; seen {
		return Item{}, false
	}
	f.visited[key] = struct{}{}
	f.admitted++
	return Item{URL: c, Depth: depth}, true
}

// Seen reports whether a canonical URL has already been admitted.
func (f *Frontier) Seen(c urlx.Canonical) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.visited[c.String()]
	return ok
}

// Admitted returns how many URLs have been admitted so far.
func (f *Frontier) Admitted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.admitted
}

// MaxDepth exposes the configured depth bound.
func (f *Frontier) MaxDepth() int {
	return f.maxDepth
}
