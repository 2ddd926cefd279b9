package xcrap

import (
	"time"

	"github.com/jmylchreest/xcrap/pkg/fetcher"
)

// Config holds all xcrap configuration.
type Config struct {
	// Fetching
	FetchMode       string
	UserAgent       string
	Timeout         time.Duration
	WaitForSelector string
	Headers         map[string]string

	// Fetcher overrides FetchMode with a caller supplied implementation.
	Fetcher fetcher.Fetcher

	// Transformation
	TransformConcurrency int
	ContinueOnError      bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		FetchMode: fetcher.ModeStatic,
		Timeout:   30 * time.Second,
	}
}

// Option configures xcrap.
type Option func(*Config)

// WithFetchMode sets the fetch mode (static, dynamic).
func WithFetchMode(mode string) Option {
	return func(c *Config) {
		c.FetchMode = mode
	}
}

// WithFetcher injects a fetcher, e.g. one with custom authentication.
func WithFetcher(f fetcher.Fetcher) Option {
	return func(c *Config) {
		c.Fetcher = f
	}
}

// WithUserAgent sets the HTTP user agent.
func WithUserAgent(ua string) Option {
	return func(c *Config) {
		c.UserAgent = ua
	}
}

// WithTimeout sets the fetch timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithWaitForSelector makes the dynamic fetcher wait for a CSS selector.
func WithWaitForSelector(selector string) Option {
	return func(c *Config) {
		c.WaitForSelector = selector
	}
}

// WithHeaders sets extra request headers.
func WithHeaders(h map[string]string) Option {
	return func(c *Config) {
		c.Headers = h
	}
}

// WithTransformConcurrency bounds how many field chains run at once.
func WithTransformConcurrency(n int) Option {
	return func(c *Config) {
		c.TransformConcurrency = n
	}
}

// WithContinueOnError keeps successful fields when some transform chains
// fail. The failures are still reported.
func WithContinueOnError(enabled bool) Option {
	return func(c *Config) {
		c.ContinueOnError = enabled
	}
}
