// Package crawler walks a site from seed URLs, following links and
// pagination discovered through document queries.
package crawler

import (
	"net/url"
	"strings"
	"sync"
)

// Frontier is a FIFO of URLs still to visit. A URL is accepted once; later
// pushes of the same normalised URL are ignored.
type Frontier struct {
	mu    sync.Mutex
	queue []entry
	seen  map[string]struct{}
}

type entry struct {
	url   string
	depth int
}

// NewFrontier creates an empty frontier.
func NewFrontier() *Frontier {
	return &Frontier{seen: make(map[string]struct{})}
}

// Push queues rawURL at depth. It reports whether the URL was new.
func (f *Frontier) Push(rawURL string, depth int) bool {
	normalized, ok := Normalize(rawURL)
	if !ok {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, dup := f.seen[normalized]; dup {
		return false
	}
	f.seen[normalized] = struct{}{}
	f.queue = append(f.queue, entry{url: normalized, depth: depth})
	return true
}

// Pop removes the oldest URL.
func (f *Frontier) Pop() (string, int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return "", 0, false
	}
	e := f.queue[0]
	f.queue = f.queue[1:]
	return e.url, e.depth, true
}

// Len returns the number of queued URLs.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// Seen reports whether rawURL was ever pushed.
func (f *Frontier) Seen(rawURL string) bool {
	normalized, ok := Normalize(rawURL)
	if !ok {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, seen := f.seen[normalized]
	return seen
}

// Normalize canonicalises an absolute http(s) URL for deduplication: the
// scheme and host are lowercased, the fragment dropped and a trailing
// slash trimmed from non-root paths.
func Normalize(rawURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return "", false
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if len(u.Path) > 1 {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	return u.String(), true
}

// SameHost reports whether two URLs share a host.
func SameHost(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return strings.EqualFold(ua.Host, ub.Host)
}
