// Package fetcher retrieves documents for the pipeline. Fetching is a caller
// concern: the extraction and transformation engines never fetch.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Fetch modes.
const (
	ModeStatic  = "static"
	ModeDynamic = "dynamic"
)

// Fetcher abstracts page fetching strategies.
type Fetcher interface {
	// Fetch retrieves page content from a URL.
	Fetch(ctx context.Context, url string, opts Options) (Content, error)

	// Close releases any resources (browser instances, etc.).
	Close() error

	// Type returns "static" or "dynamic".
	Type() string
}

// Options controls a single fetch. Zero values fall back to the fetcher's
// Config.
type Options struct {
	UserAgent       string
	Timeout         time.Duration
	WaitForSelector string        // CSS selector to wait for (dynamic only)
	WaitDuration    time.Duration // additional wait after load (dynamic only)
	Headers         map[string]string
	Cookies         []Cookie
}

// Cookie represents an HTTP cookie.
type Cookie struct {
	Name   string
	Value  string
	Domain string
}

// Content is a fetched document.
type Content struct {
	URL         string
	Body        string
	Title       string
	StatusCode  int
	ContentType string
	FetchedAt   time.Time
}

// Config holds fetcher configuration.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

const defaultUserAgent = "xcrap/1.0 (+https://github.com/jmylchreest/xcrap)"

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		UserAgent: defaultUserAgent,
		Timeout:   30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.UserAgent == "" {
		c.UserAgent = def.UserAgent
	}
	if c.Timeout == 0 {
		c.Timeout = def.Timeout
	}
	return c
}

// ErrHTTPStatus is wrapped when the server answers with a non-2xx status.
var ErrHTTPStatus = errors.New("unexpected http status")

// New creates a fetcher for mode ("static" or "dynamic"). An empty mode
// means static.
func New(mode string, cfg Config) (Fetcher, error) {
	switch mode {
	case ModeStatic, "":
		return NewStatic(cfg), nil
	case ModeDynamic:
		return NewDynamic(cfg)
	default:
		return nil, fmt.Errorf("unknown fetch mode: %s (available: static, dynamic)", mode)
	}
}

// describe fills the title of HTML content when the fetch did not
// already provide one.
func describe(content *Content) error {
	if content.Title != "" {
		return nil
	}
	if content.ContentType != "" && !strings.Contains(content.ContentType, "html") {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content.Body))
	if err != nil {
		return err
	}
	content.Title = strings.TrimSpace(doc.Find("title").First().Text())
	return nil
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
