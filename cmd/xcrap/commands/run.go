package commands

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/xcrap/internal/logger"
	"github.com/jmylchreest/xcrap/internal/output"
	"github.com/jmylchreest/xcrap/pkg/definition"
	"github.com/jmylchreest/xcrap/pkg/llm"
	"github.com/jmylchreest/xcrap/pkg/record"
	"github.com/jmylchreest/xcrap/pkg/xcrap"
)

// resultOutput wraps a clean record with optional metadata and the raw
// record it came from.
type resultOutput struct {
	Metadata *resultMetadata `json:"_metadata,omitempty" yaml:"_metadata,omitempty"`
	Raw      *record.Record  `json:"raw,omitempty" yaml:"raw,omitempty"`
	Data     *record.Record  `json:"data" yaml:"data"`
}

type resultMetadata struct {
	Source              string `json:"source" yaml:"source"`
	Pipeline            string `json:"pipeline" yaml:"pipeline"`
	Title               string `json:"title,omitempty" yaml:"title,omitempty"`
	StatusCode          int    `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	ContentType         string `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	FetchedAt           string `json:"fetched_at,omitempty" yaml:"fetched_at,omitempty"`
	FetchDurationMs     int64  `json:"fetch_duration_ms" yaml:"fetch_duration_ms"`
	ExtractDurationMs   int64  `json:"extract_duration_ms" yaml:"extract_duration_ms"`
	TransformDurationMs int64  `json:"transform_duration_ms" yaml:"transform_duration_ms"`
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a pipeline over URLs or local documents",
		Long: `Run a pipeline definition over one or more documents.

Documents are fetched from URLs (-u) or read from files (-f, "-" for
stdin). Each document produces one clean record.

Examples:
  xcrap run -d product.yaml -u "https://myshop.com/p/1" -u "https://myshop.com/p/2"
  xcrap run -d feed.yaml -f catalog.xml --format yaml
  xcrap run -d product.yaml -u "https://myshop.com/list" --follow "a.product" --next "a.next" --max-pages 5
  curl -s https://myshop.com/p/1 | xcrap run -d product.yaml -f - --raw`,
		RunE: runPipeline,
	}

	flags := cmd.Flags()
	flags.StringP("definition", "d", "", "path to pipeline definition (required)")
	flags.StringSliceP("url", "u", nil, "URL(s) to scrape (can be repeated)")
	flags.StringSliceP("file", "f", nil, "local document(s) to process, - for stdin")

	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "", "output format: json, jsonl, yaml (default: from output extension, else json)")
	flags.Bool("raw", false, "include the raw extracted record")
	flags.Bool("metadata", false, "wrap output with _metadata")
	flags.Bool("compact", false, "compact JSON output")

	flags.String("fetch-mode", "static", "fetch mode: static, dynamic")
	flags.Duration("timeout", 30*time.Second, "request timeout")
	flags.String("user-agent", "", "HTTP user agent")
	flags.String("wait-for", "", "CSS selector to wait for in dynamic mode")
	flags.StringSliceP("header", "H", nil, `extra request header "Name: value" (can be repeated)`)
	flags.IntP("concurrency", "c", 3, "concurrent documents")

	flags.String("follow", "", "CSS or XPath query for links to follow from seed pages")
	flags.String("follow-pattern", "", "regex pattern for URLs to follow")
	flags.String("next", "", "CSS or XPath query for the pagination next link")
	flags.Int("max-depth", 1, "max link depth (0=seed only)")
	flags.Int("max-pages", 0, "max pagination pages (0=unlimited)")
	flags.Int("max-urls", 0, "max total URLs to process (0=unlimited)")
	flags.Duration("delay", 200*time.Millisecond, "delay between requests while crawling")
	flags.Bool("extract-seeds", false, "also extract records from seed pages when following links")
	flags.Bool("any-host", false, "follow links to other hosts")

	flags.Int("transform-concurrency", 0, "concurrent transform chains per document (0 = CPU count)")
	flags.Bool("continue-on-error", false, "keep successful fields when a transform chain fails")

	flags.StringP("provider", "p", "", "LLM provider for prompt steps: anthropic, openai, openrouter, ollama (auto-detects from env vars)")
	flags.StringP("model", "m", "", "model name (provider-specific)")
	flags.String("base-url", "", "custom LLM API base URL")

	_ = cmd.MarkFlagRequired("definition")
	return cmd
}

// stringSetting prefers an explicit flag, then config/env, then the flag
// default.
func stringSetting(cmd *cobra.Command, flag, key string) string {
	v, _ := cmd.Flags().GetString(flag)
	if !cmd.Flags().Changed(flag) && viper.IsSet(key) {
		return viper.GetString(key)
	}
	return v
}

func intSetting(cmd *cobra.Command, flag, key string) int {
	v, _ := cmd.Flags().GetInt(flag)
	if !cmd.Flags().Changed(flag) && viper.IsSet(key) {
		return viper.GetInt(key)
	}
	return v
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	urls, _ := cmd.Flags().GetStringSlice("url")
	files, _ := cmd.Flags().GetStringSlice("file")
	if len(urls) == 0 && len(files) == 0 {
		return fmt.Errorf("nothing to do: pass at least one --url or --file")
	}

	defPath, _ := cmd.Flags().GetString("definition")
	d, err := definition.Load(defPath)
	if err != nil {
		return err
	}

	var compileOpts definition.CompileOptions
	if d.Uses("prompt") {
		provider, err := buildProvider(cmd)
		if err != nil {
			return err
		}
		compileOpts.Provider = provider
	}

	p, err := definition.Compile(d, compileOpts)
	if err != nil {
		return err
	}
	logger.Debug("pipeline compiled", "name", p.Name, "format", p.Format, "fields", len(p.Extract), "chains", p.Transform.Len())

	x, err := newXcrap(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = x.Close() }()

	outPath, _ := cmd.Flags().GetString("output")
	format, err := outputFormat(cmd, outPath)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if outPath != "" {
		f, err := output.Open(outPath)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	indent := "  "
	if compact, _ := cmd.Flags().GetBool("compact"); compact {
		indent = ""
	}
	writer, err := output.NewWriter(out, format, indent)
	if err != nil {
		return err
	}

	includeRaw, _ := cmd.Flags().GetBool("raw")
	includeMeta, _ := cmd.Flags().GetBool("metadata")
	shape := func(source string, r *xcrap.Result) any {
		if !includeRaw && !includeMeta {
			return r.Clean
		}
		o := resultOutput{Data: r.Clean}
		if includeRaw {
			o.Raw = r.Raw
		}
		if includeMeta {
			o.Metadata = &resultMetadata{
				Source:              source,
				Pipeline:            p.Name,
				Title:               r.Title,
				StatusCode:          r.StatusCode,
				ContentType:         r.ContentType,
				FetchDurationMs:     r.FetchDuration.Milliseconds(),
				ExtractDurationMs:   r.ExtractDuration.Milliseconds(),
				TransformDurationMs: r.TransformDuration.Milliseconds(),
			}
			if !r.FetchedAt.IsZero() {
				o.Metadata.FetchedAt = r.FetchedAt.Format(time.RFC3339)
			}
		}
		return o
	}

	start := time.Now()
	total, failed := 0, 0
	emit := func(source string, r *xcrap.Result, err error) error {
		total++
		if err != nil {
			failed++
			logger.Error("document failed", "source", source, "error", err)
			if r == nil || r.Clean == nil {
				return nil
			}
		}
		return writer.Write(shape(source, r))
	}

	for _, path := range files {
		doc, err := readDocument(cmd.InOrStdin(), path)
		if err != nil {
			if werr := emit(path, nil, err); werr != nil {
				return werr
			}
			continue
		}
		logger.Debug("processing document", "path", path, "size", humanize.Bytes(uint64(len(doc))))
		r, err := x.Run(ctx, doc, p)
		if werr := emit(path, r, err); werr != nil {
			return werr
		}
	}

	if len(urls) > 0 {
		concurrency := intSetting(cmd, "concurrency", "concurrency")
		crawlOpts, crawling, err := crawlOptions(cmd, p, concurrency)
		if err != nil {
			return err
		}

		var results <-chan *xcrap.Result
		if crawling {
			logger.Info("starting crawl", "seeds", len(urls), "fetch_mode", x.FetchMode(), "concurrency", concurrency)
			results = x.Crawl(ctx, urls, p, crawlOpts...)
		} else {
			logger.Info("starting scrape", "urls", len(urls), "fetch_mode", x.FetchMode(), "concurrency", concurrency)
			results = x.ScrapeMany(ctx, urls, p, concurrency)
		}
		for r := range results {
			if werr := emit(r.URL, r, r.Error); werr != nil {
				return werr
			}
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	logger.Info("run complete",
		"documents", humanize.Comma(int64(total)),
		"failed", failed,
		"elapsed", time.Since(start).Round(time.Millisecond))

	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, total)
	}
	return nil
}

func newXcrap(cmd *cobra.Command) (*xcrap.Xcrap, error) {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	waitFor, _ := cmd.Flags().GetString("wait-for")
	transformConcurrency, _ := cmd.Flags().GetInt("transform-concurrency")
	continueOnError, _ := cmd.Flags().GetBool("continue-on-error")

	rawHeaders, _ := cmd.Flags().GetStringSlice("header")
	headers, err := parseHeaders(rawHeaders)
	if err != nil {
		return nil, err
	}

	return xcrap.New(
		xcrap.WithFetchMode(stringSetting(cmd, "fetch-mode", "fetch_mode")),
		xcrap.WithTimeout(timeout),
		xcrap.WithUserAgent(stringSetting(cmd, "user-agent", "user_agent")),
		xcrap.WithWaitForSelector(waitFor),
		xcrap.WithHeaders(headers),
		xcrap.WithTransformConcurrency(transformConcurrency),
		xcrap.WithContinueOnError(continueOnError),
	)
}

// crawlOptions reports whether any link following or pagination flag is
// set and builds the matching options.
func crawlOptions(cmd *cobra.Command, p *definition.Pipeline, concurrency int) ([]xcrap.CrawlOption, bool, error) {
	follow, _ := cmd.Flags().GetString("follow")
	pattern, _ := cmd.Flags().GetString("follow-pattern")
	next, _ := cmd.Flags().GetString("next")
	if follow == "" && pattern == "" && next == "" {
		return nil, false, nil
	}

	maxDepth, _ := cmd.Flags().GetInt("max-depth")
	maxPages, _ := cmd.Flags().GetInt("max-pages")
	maxURLs, _ := cmd.Flags().GetInt("max-urls")
	delay, _ := cmd.Flags().GetDuration("delay")
	extractSeeds, _ := cmd.Flags().GetBool("extract-seeds")
	anyHost, _ := cmd.Flags().GetBool("any-host")

	opts := []xcrap.CrawlOption{
		xcrap.WithMaxDepth(maxDepth),
		xcrap.WithMaxPages(maxPages),
		xcrap.WithMaxURLs(maxURLs),
		xcrap.WithDelay(delay),
		xcrap.WithCrawlConcurrency(concurrency),
		xcrap.WithExtractFromSeeds(extractSeeds),
		xcrap.WithSameHostOnly(!anyHost),
		xcrap.WithFollowPattern(pattern),
	}

	if follow == "" && pattern != "" {
		follow = "//a[@href]"
	}
	if follow != "" {
		q, err := p.Query(follow)
		if err != nil {
			return nil, false, fmt.Errorf("invalid --follow: %w", err)
		}
		opts = append(opts, xcrap.WithFollow(q))
	}
	if next != "" {
		q, err := p.Query(next)
		if err != nil {
			return nil, false, fmt.Errorf("invalid --next: %w", err)
		}
		opts = append(opts, xcrap.WithNext(q))
	}
	return opts, true, nil
}

func buildProvider(cmd *cobra.Command) (llm.Provider, error) {
	name := stringSetting(cmd, "provider", "provider")
	if name == "" {
		name = llm.DetectProvider()
		logger.Debug("detected llm provider", "provider", name)
	}

	cfg := llm.DefaultProviderConfig()
	cfg.Model = stringSetting(cmd, "model", "model")
	cfg.BaseURL = stringSetting(cmd, "base-url", "base_url")
	if cfg.Model == "" {
		cfg.Model = llm.DefaultModels[name]
	}

	provider, err := llm.NewProvider(name, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm provider: %w", err)
	}
	return provider, nil
}

func outputFormat(cmd *cobra.Command, outPath string) (output.Format, error) {
	name := stringSetting(cmd, "format", "format")
	if name == "" {
		return output.FormatFromPath(outPath, output.FormatJSON), nil
	}
	return output.ParseFormat(name)
}

func parseHeaders(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header %q: want \"Name: value\"", h)
		}
		headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return headers, nil
}

func readDocument(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}
	return string(data), nil
}
