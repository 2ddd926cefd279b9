// Package xcrap ties the pipeline together: fetch a document, parse it,
// extract a raw record and transform it into a clean one.
package xcrap

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/jmylchreest/xcrap/internal/logger"
	"github.com/jmylchreest/xcrap/pkg/definition"
	"github.com/jmylchreest/xcrap/pkg/extract"
	"github.com/jmylchreest/xcrap/pkg/fetcher"
	"github.com/jmylchreest/xcrap/pkg/query"
	"github.com/jmylchreest/xcrap/pkg/record"
	"github.com/jmylchreest/xcrap/pkg/transform"
)

// Version returns the module version of the xcrap library, or "(devel)"
// when built from source.
func Version() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.Main.Version
	}
	return "(unknown)"
}

// Result is the outcome of running a pipeline over one document.
type Result struct {
	URL   string
	Raw   *record.Record
	Clean *record.Record

	// Fetch details, zero for documents passed to Run directly.
	Title       string
	StatusCode  int
	ContentType string
	FetchedAt   time.Time

	FetchDuration     time.Duration
	ExtractDuration   time.Duration
	TransformDuration time.Duration
	Depth             int // link depth of a crawled page, 0 for seeds
	Error             error
}

// setFetch copies the fetch details of content onto r.
func (r *Result) setFetch(content fetcher.Content, d time.Duration) {
	r.Title = content.Title
	r.StatusCode = content.StatusCode
	r.ContentType = content.ContentType
	r.FetchedAt = content.FetchedAt
	r.FetchDuration = d
}

// Xcrap runs compiled pipelines.
type Xcrap struct {
	fetcher fetcher.Fetcher
	config  Config
}

// New creates a new Xcrap instance.
func New(opts ...Option) (*Xcrap, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	f := cfg.Fetcher
	if f == nil {
		var err error
		f, err = fetcher.New(cfg.FetchMode, fetcher.Config{
			UserAgent: cfg.UserAgent,
			Timeout:   cfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create fetcher: %w", err)
		}
	}

	return &Xcrap{fetcher: f, config: cfg}, nil
}

// Run parses document and runs the pipeline over it. When extraction
// succeeds the result always carries the raw record, even if transformation
// fails; the error is then returned and also stored in Result.Error.
func (x *Xcrap) Run(ctx context.Context, document string, p *definition.Pipeline) (*Result, error) {
	root, err := p.Parse(document)
	if err != nil {
		return nil, fmt.Errorf("parse failed: %w", err)
	}
	return x.runNode(ctx, root, p)
}

func (x *Xcrap) runNode(ctx context.Context, root query.Node, p *definition.Pipeline) (*Result, error) {
	result := &Result{}

	extractStart := time.Now()
	raw, err := extract.ExtractModel(ctx, root, p.Extract)
	result.ExtractDuration = time.Since(extractStart)
	if err != nil {
		return nil, fmt.Errorf("extraction failed: %w", err)
	}
	result.Raw = raw

	var opts []transform.Option
	if x.config.TransformConcurrency > 0 {
		opts = append(opts, transform.WithConcurrency(x.config.TransformConcurrency))
	}
	if x.config.ContinueOnError {
		opts = append(opts, transform.WithContinueOnError())
	}

	transformStart := time.Now()
	clean, err := transform.New(raw, opts...).Transform(ctx, p.Transform)
	result.TransformDuration = time.Since(transformStart)
	result.Clean = clean
	if err != nil {
		result.Error = fmt.Errorf("transformation failed: %w", err)
		return result, result.Error
	}

	logger.Debug("pipeline complete",
		"pipeline", p.Name,
		"fields", clean.Len(),
		"extract_duration", result.ExtractDuration,
		"transform_duration", result.TransformDuration)
	return result, nil
}

func (x *Xcrap) fetch(ctx context.Context, url string) (fetcher.Content, time.Duration, error) {
	start := time.Now()
	content, err := x.fetcher.Fetch(ctx, url, fetcher.Options{
		UserAgent:       x.config.UserAgent,
		Timeout:         x.config.Timeout,
		WaitForSelector: x.config.WaitForSelector,
		Headers:         x.config.Headers,
	})
	if err != nil {
		return content, time.Since(start), fmt.Errorf("fetch failed: %w", err)
	}
	return content, time.Since(start), nil
}

// Scrape fetches url and runs the pipeline over the response.
func (x *Xcrap) Scrape(ctx context.Context, url string, p *definition.Pipeline) (*Result, error) {
	content, fetchDuration, err := x.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	result, err := x.Run(ctx, content.Body, p)
	if result != nil {
		result.URL = url
		result.setFetch(content, fetchDuration)
	}
	return result, err
}

// ScrapeMany scrapes urls concurrently. Every URL yields exactly one
// result; failures are reported through Result.Error.
func (x *Xcrap) ScrapeMany(ctx context.Context, urls []string, p *definition.Pipeline, concurrency int) <-chan *Result {
	if concurrency < 1 {
		concurrency = 1
	}

	results := make(chan *Result, len(urls))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, url := range urls {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			result, err := x.Scrape(ctx, u, p)
			if result == nil {
				result = &Result{URL: u}
			}
			if err != nil {
				logger.Warn("scrape failed", "url", u, "error", err)
				result.Error = err
			}
			results <- result
		}(url)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// Close releases all resources.
func (x *Xcrap) Close() error {
	if x.fetcher != nil {
		return x.fetcher.Close()
	}
	return nil
}

// FetchMode returns the fetcher type in use.
func (x *Xcrap) FetchMode() string {
	return x.fetcher.Type()
}
