package xcrap

import (
	"context"
	"time"

	"github.com/jmylchreest/xcrap/internal/crawler"
	"github.com/jmylchreest/xcrap/internal/logger"
	"github.com/jmylchreest/xcrap/pkg/definition"
	"github.com/jmylchreest/xcrap/pkg/query"
)

// CrawlOption configures Crawl.
type CrawlOption func(*crawler.Config)

// WithFollow follows links selected by q from listing pages to detail
// pages. Records are extracted from detail pages only, unless
// WithExtractFromSeeds is set.
func WithFollow(q query.Query) CrawlOption {
	return func(c *crawler.Config) {
		c.Follow = q
	}
}

// WithFollowPattern restricts followed links to URLs matching a regular
// expression.
func WithFollowPattern(pattern string) CrawlOption {
	return func(c *crawler.Config) {
		c.Pattern = pattern
	}
}

// WithNext follows the pagination link selected by q on listing pages.
func WithNext(q query.Query) CrawlOption {
	return func(c *crawler.Config) {
		c.Next = q
	}
}

// WithMaxDepth sets the link depth limit. 0 visits seeds only.
func WithMaxDepth(depth int) CrawlOption {
	return func(c *crawler.Config) {
		c.MaxDepth = depth
	}
}

// WithMaxPages caps listing pages, pagination included.
func WithMaxPages(n int) CrawlOption {
	return func(c *crawler.Config) {
		c.MaxPages = n
	}
}

// WithMaxURLs caps the total number of pages visited.
func WithMaxURLs(n int) CrawlOption {
	return func(c *crawler.Config) {
		c.MaxURLs = n
	}
}

// WithDelay waits before each request.
func WithDelay(d time.Duration) CrawlOption {
	return func(c *crawler.Config) {
		c.Delay = d
	}
}

// WithCrawlConcurrency sets how many pages are fetched at once.
func WithCrawlConcurrency(n int) CrawlOption {
	return func(c *crawler.Config) {
		c.Concurrency = n
	}
}

// WithSameHostOnly controls whether links to other hosts are followed.
func WithSameHostOnly(enabled bool) CrawlOption {
	return func(c *crawler.Config) {
		c.SameHostOnly = enabled
	}
}

// WithExtractFromSeeds extracts records from listing pages too.
func WithExtractFromSeeds(enabled bool) CrawlOption {
	return func(c *crawler.Config) {
		c.ExtractFromSeeds = enabled
	}
}

// Crawl visits seeds and the pages reachable from them, running the
// pipeline over every page that is extracted. Failures are reported
// through Result.Error; a crawl that cannot start yields a single result
// carrying the error.
func (x *Xcrap) Crawl(ctx context.Context, seeds []string, p *definition.Pipeline, opts ...CrawlOption) <-chan *Result {
	cfg := crawler.DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	results := make(chan *Result, 100)
	send := func(r *Result) {
		select {
		case results <- r:
		case <-ctx.Done():
		}
	}

	go func() {
		defer close(results)

		visit := func(ctx context.Context, page crawler.Page) (query.Node, error) {
			content, fetchDuration, err := x.fetch(ctx, page.URL)
			if err != nil {
				logger.Warn("fetch failed", "url", page.URL, "error", err)
				failed := &Result{URL: page.URL, Depth: page.Depth, Error: err}
				failed.setFetch(content, fetchDuration)
				send(failed)
				return nil, err
			}

			root, err := p.Parse(content.Body)
			if err != nil {
				failed := &Result{URL: page.URL, Depth: page.Depth, Error: err}
				failed.setFetch(content, fetchDuration)
				send(failed)
				return nil, err
			}

			if !page.Extract {
				logger.Info("fetched listing", "url", page.URL, "fetch", fetchDuration.Round(time.Millisecond))
				return root, nil
			}

			result, err := x.runNode(ctx, root, p)
			if result == nil {
				result = &Result{}
			}
			result.URL = page.URL
			result.Depth = page.Depth
			result.setFetch(content, fetchDuration)
			if err != nil {
				logger.Warn("extraction failed", "url", page.URL, "error", err)
				result.Error = err
			}
			send(result)
			return root, nil
		}

		if err := crawler.New(cfg).Run(ctx, seeds, visit); err != nil && ctx.Err() == nil {
			send(&Result{Error: err})
		}
	}()
	return results
}
