package xcrap

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"runtime"
	"sort"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmylchreest/xcrap/pkg/fetcher"
)

func TestCrawl(t *testing.T) {
	page := readPage(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		switch {
		case r.URL.Path == "/list" && r.URL.Query().Get("page") == "":
			fmt.Fprint(w, `<a class="item" href="/p/1">1</a><a class="item" href="/p/2">2</a><a rel="next" href="/list?page=2">next</a>`)
		case r.URL.Path == "/list":
			fmt.Fprint(w, `<a class="item" href="/p/3">3</a><a class="item" href="/p/missing">gone</a>`)
		case strings.HasPrefix(r.URL.Path, "/p/missing"):
			http.NotFound(w, r)
		case strings.HasPrefix(r.URL.Path, "/p/"):
			fmt.Fprint(w, page)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := compilePipeline(t, productPipeline)
	follow, err := p.Query("a.item")
	if err != nil {
		t.Fatal(err)
	}
	next, err := p.Query("//a[@rel='next']")
	if err != nil {
		t.Fatal(err)
	}

	x, _ := New()
	defer x.Close()

	var ok, failed []string
	for r := range x.Crawl(context.Background(), []string{srv.URL + "/list"}, p,
		WithFollow(follow), WithNext(next), WithDelay(0), WithCrawlConcurrency(2)) {
		path := strings.TrimPrefix(r.URL, srv.URL)
		if r.Error != nil {
			if r.StatusCode != http.StatusNotFound {
				t.Errorf("%s status = %d, want 404", path, r.StatusCode)
			}
			failed = append(failed, path)
			continue
		}
		if r.Depth != 1 {
			t.Errorf("%s depth = %d, want 1", path, r.Depth)
		}
		if r.Title != "Cool Gadget" || r.StatusCode != http.StatusOK {
			t.Errorf("%s title = %q status = %d", path, r.Title, r.StatusCode)
		}
		checkClean(t, r.Clean)
		ok = append(ok, path)
	}

	sort.Strings(ok)
	if strings.Join(ok, ",") != "/p/1,/p/2,/p/3" {
		t.Errorf("extracted %v", ok)
	}
	if len(failed) != 1 || failed[0] != "/p/missing" {
		t.Errorf("failed %v", failed)
	}
}

func TestCrawl_InvalidPattern(t *testing.T) {
	x, _ := New()
	var results []*Result
	for r := range x.Crawl(context.Background(), []string{"https://myshop.com/"}, compilePipeline(t, productPipeline), WithFollowPattern("(")) {
		results = append(results, r)
	}
	if len(results) != 1 || results[0].Error == nil {
		t.Errorf("results = %+v", results)
	}
}

// siteFetcher serves a listing page linking to n product pages.
type siteFetcher struct {
	product string
	n       int
	calls   atomic.Int64
}

func (s *siteFetcher) Fetch(_ context.Context, url string, _ fetcher.Options) (fetcher.Content, error) {
	s.calls.Add(1)
	body := s.product
	if strings.HasSuffix(url, "/list") {
		var sb strings.Builder
		for i := 0; i < s.n; i++ {
			fmt.Fprintf(&sb, `<a class="item" href="/p/%d">%d</a>`, i, i)
		}
		body = sb.String()
	}
	return fetcher.Content{URL: url, Body: body, StatusCode: http.StatusOK, FetchedAt: time.Now()}, nil
}

func (s *siteFetcher) Close() error { return nil }
func (s *siteFetcher) Type() string { return "site" }

func TestCrawl_CancelWithoutDraining(t *testing.T) {
	site := &siteFetcher{product: readPage(t), n: 250}
	x, err := New(WithFetcher(site))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	p := compilePipeline(t, productPipeline)
	follow, _ := p.Query("a.item")

	baseline := runtime.NumGoroutine()
	ctx, cancel := context.WithCancel(context.Background())
	results := x.Crawl(ctx, []string{"https://myshop.com/list"}, p,
		WithFollow(follow), WithDelay(0), WithCrawlConcurrency(4))

	// The listing, 100 buffered results and 4 visits blocked on the full
	// buffer.
	deadline := time.Now().Add(5 * time.Second)
	for site.calls.Load() < 105 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	deadline = time.Now().Add(5 * time.Second)
	for runtime.NumGoroutine() > baseline && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := runtime.NumGoroutine(); n > baseline {
		t.Errorf("crawl goroutines still running after cancel: %d > %d", n, baseline)
	}

	for range results {
	}
}
