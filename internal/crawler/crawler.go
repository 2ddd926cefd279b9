package crawler

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/jmylchreest/xcrap/internal/logger"
	"github.com/jmylchreest/xcrap/pkg/query"
)

// Config controls link following, pagination and pacing.
type Config struct {
	// Follow selects links to detail pages. Nil disables link following.
	Follow query.Query
	// Pattern restricts followed links to matching URLs.
	Pattern string
	// SameHostOnly drops followed links to other hosts.
	SameHostOnly bool
	// MaxDepth is the link depth limit; 0 visits seeds only.
	MaxDepth int

	// Next selects the pagination link of a seed-level page.
	Next query.Query
	// MaxPages caps seed-level pages, pagination included (0 = unlimited).
	MaxPages int

	// MaxURLs caps the pages visited overall (0 = unlimited).
	MaxURLs int

	Delay       time.Duration
	Concurrency int

	// ExtractFromSeeds also extracts records from seed-level pages when
	// links are followed.
	ExtractFromSeeds bool
}

// DefaultConfig returns sensible crawler defaults.
func DefaultConfig() Config {
	return Config{
		SameHostOnly: true,
		MaxDepth:     1,
		Delay:        200 * time.Millisecond,
		Concurrency:  3,
	}
}

// Page is a URL scheduled for a visit.
type Page struct {
	URL   string
	Depth int
	// Extract is false for listing pages that are only visited to
	// discover links.
	Extract bool
}

// VisitFunc fetches and processes a page and returns its parsed document
// for link discovery. A nil node stops discovery from that page.
type VisitFunc func(ctx context.Context, page Page) (query.Node, error)

// Crawler schedules page visits.
type Crawler struct {
	config Config
}

// New creates a crawler.
func New(cfg Config) *Crawler {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Crawler{config: cfg}
}

// Run visits seeds and everything reachable from them within the limits,
// calling visit for each page. It returns when the frontier is exhausted,
// a limit is reached or ctx is done.
func (c *Crawler) Run(ctx context.Context, seeds []string, visit VisitFunc) error {
	var pattern *regexp.Regexp
	if c.config.Pattern != "" {
		var err error
		if pattern, err = regexp.Compile(c.config.Pattern); err != nil {
			return fmt.Errorf("invalid follow pattern: %w", err)
		}
	}

	logger.Debug("crawler starting",
		"seeds", len(seeds),
		"max_depth", c.config.MaxDepth,
		"max_urls", c.config.MaxURLs,
		"concurrency", c.config.Concurrency,
		"delay", c.config.Delay)

	frontier := NewFrontier()
	for _, seed := range seeds {
		if !frontier.Push(seed, 0) {
			logger.Warn("skipping seed", "url", seed)
		}
	}

	sem := make(chan struct{}, c.config.Concurrency)
	var wg sync.WaitGroup
	visited, seedPages := 0, 0

	for {
		if ctx.Err() != nil {
			wg.Wait()
			return ctx.Err()
		}
		if c.config.MaxURLs > 0 && visited >= c.config.MaxURLs {
			logger.Debug("crawler reached max urls", "max_urls", c.config.MaxURLs)
			wg.Wait()
			return nil
		}

		pageURL, depth, ok := frontier.Pop()
		if !ok {
			// In-flight visits may still discover links.
			wg.Wait()
			if frontier.Len() == 0 {
				return nil
			}
			continue
		}

		if depth == 0 {
			if c.config.MaxPages > 0 && seedPages >= c.config.MaxPages {
				logger.Debug("crawler reached max pages", "max_pages", c.config.MaxPages)
				continue
			}
			seedPages++
		}
		visited++

		page := Page{
			URL:     pageURL,
			Depth:   depth,
			Extract: depth > 0 || c.config.Follow == nil || c.config.ExtractFromSeeds,
		}

		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			if c.config.Delay > 0 {
				timer := time.NewTimer(c.config.Delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}

			root, err := visit(ctx, page)
			if err != nil || root == nil {
				return
			}
			c.discover(root, page, pattern, frontier)
		}()
	}
}

func (c *Crawler) discover(root query.Node, page Page, pattern *regexp.Regexp, frontier *Frontier) {
	if c.config.Follow != nil && page.Depth < c.config.MaxDepth {
		links, err := Links(root, c.config.Follow, page.URL, pattern)
		if err != nil {
			logger.Warn("link discovery failed", "url", page.URL, "error", err)
		}
		added := 0
		for _, link := range links {
			if c.config.SameHostOnly && !SameHost(page.URL, link) {
				continue
			}
			if frontier.Push(link, page.Depth+1) {
				added++
			}
		}
		if added > 0 {
			logger.Info("following links", "from", page.URL, "count", added)
		}
	}

	if c.config.Next != nil && page.Depth == 0 {
		next, ok, err := Next(root, c.config.Next, page.URL)
		if err != nil {
			logger.Warn("pagination lookup failed", "url", page.URL, "error", err)
			return
		}
		if ok && frontier.Push(next, 0) {
			logger.Info("pagination", "next", next)
		}
	}
}
