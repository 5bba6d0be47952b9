package deepcrawl

import (
	"context"
	"testing"

	"github.com/jmylchreest/crawlcore/pkg/crawlresult"
	"github.com/jmylchreest/crawlcore/pkg/dispatcher"
	"github.com/jmylchreest/crawlcore/pkg/filter"
	"github.com/jmylchreest/crawlcore/pkg/scorer"
)

// syncDispatcher runs every URL serially in submission order, the simplest
// possible Dispatcher, sufficient to exercise Strategy behavior without
// pulling in concurrency/memory gating.
type syncDispatcher struct{}

func (syncDispatcher) Run(ctx context.Context, urls []string, cfg crawlresult.RunConfig, crawler dispatcher.Crawler) ([]dispatcher.TaskResult, error) {
	out := make([]dispatcher.TaskResult, len(urls))
	for i, u := range urls {
		out[i] = dispatcher.TaskResult{URL: u, Result: crawler.CrawlOne(ctx, u, cfg)}
	}
	return out, nil
}

func (d syncDispatcher) RunStream(ctx context.Context, urls []string, cfg crawlresult.RunConfig, crawler dispatcher.Crawler) (<-chan dispatcher.TaskResult, error) {
	out := make(chan dispatcher.TaskResult, len(urls))
	go func() {
		defer close(out)
		results, _ := d.Run(ctx, urls, cfg, crawler)
		for _, r := range results {
			out <- r
		}
	}()
	return out, nil
}

// siteGraph maps a page to the pages it links to, modeling a small site
// crawlable by any of the three strategies.
type siteGraph map[string][]string

func (g siteGraph) crawler() dispatcher.Crawler {
	return crawlerFunc(func(ctx context.Context, url string, cfg crawlresult.RunConfig) crawlresult.Result {
		var internal []crawlresult.LinkItem
		for _, link := range g[url] {
			internal = append(internal, crawlresult.LinkItem{Href: link, Text: link})
		}
		return crawlresult.Result{
			URL:     url,
			Success: true,
			Links:   crawlresult.LinkInventory{Internal: internal},
		}
	})
}

type crawlerFunc func(ctx context.Context, url string, cfg crawlresult.RunConfig) crawlresult.Result

func (f crawlerFunc) CrawlOne(ctx context.Context, url string, cfg crawlresult.RunConfig) crawlresult.Result {
	return f(ctx, url, cfg)
}

func testGraph() siteGraph {
	return siteGraph{
		"https://example.com/":  {"https://example.com/a", "https://example.com/b"},
		"https://example.com/a": {"https://example.com/a1", "https://example.com/a2"},
		"https://example.com/b": {"https://example.com/b1"},
	}
}

func TestBFS_RespectsMaxDepthZero(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDepth = 0
	s := NewBFS(cfg)

	results, err := s.Run(context.Background(), "https://example.com/", syncDispatcher{}, testGraph().crawler(), crawlresult.DefaultRunConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected exactly the start page with max_depth=0, got %d results", len(results))
	}
	if results[0].URL != "https://example.com/" {
		t.Errorf("expected start page, got %s", results[0].URL)
	}
}

func TestBFS_RespectsMaxPages(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDepth = 2
	cfg.MaxPages = 3
	s := NewBFS(cfg)

	results, err := s.Run(context.Background(), "https://example.com/", syncDispatcher{}, testGraph().crawler(), crawlresult.DefaultRunConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) > 3 {
		t.Fatalf("expected at most 3 results (max_pages), got %d", len(results))
	}
	for _, r := range results {
		if r.Depth > 2 {
			t.Errorf("expected depth <= 2, got %d for %s", r.Depth, r.URL)
		}
	}
}

func TestBFS_DomainFilterRejectsExternal(t *testing.T) {
	graph := siteGraph{
		"https://example.com/": {"https://example.com/a", "https://other.test/x"},
	}
	cfg := DefaultConfig()
	cfg.MaxDepth = 1
	cfg.Filter = filter.NewChain(filter.NewDomainFilter([]string{"example.com"}, false))
	s := NewBFS(cfg)

	results, err := s.Run(context.Background(), "https://example.com/", syncDispatcher{}, graph.crawler(), crawlresult.DefaultRunConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, r := range results {
		if r.URL == "https://other.test/x" {
			t.Errorf("expected domain filter to reject https://other.test/x")
		}
	}
}

func TestDFS_ExploresOneBranchBeforeSibling(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDepth = 2
	s := NewDFS(cfg)

	results, err := s.Run(context.Background(), "https://example.com/", syncDispatcher{}, testGraph().crawler(), crawlresult.DefaultRunConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	order := map[string]int{}
	for i, r := range results {
		order[r.URL] = i
	}
	// DFS must finish exploring the "/a" branch (a, a1, a2) before starting
	// "/b", since "/a" is pushed after "/b" and popped first.
	if order["https://example.com/a1"] > order["https://example.com/b"] {
		t.Errorf("expected a1 to be visited before b in DFS order: %+v", order)
	}
}

func TestBestFirst_OrdersByDescendingScore(t *testing.T) {
	graph := siteGraph{
		"https://example.com/":  {"https://example.com/golang", "https://example.com/other"},
	}
	cfg := DefaultConfig()
	cfg.MaxDepth = 1
	cfg.Scorer = scorer.NewKeywordRelevanceScorer([]string{"golang"}, 1)
	s := NewBestFirst(cfg)

	results, err := s.Run(context.Background(), "https://example.com/", syncDispatcher{}, graph.crawler(), crawlresult.DefaultRunConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("expected non-increasing score order, got %v then %v", results[i-1].Score, results[i].Score)
		}
	}
}

func TestBestFirst_MaxPagesCapsResultCount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDepth = 2
	cfg.MaxPages = 2
	s := NewBestFirst(cfg)

	results, err := s.Run(context.Background(), "https://example.com/", syncDispatcher{}, testGraph().crawler(), crawlresult.DefaultRunConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) > 2 {
		t.Fatalf("expected at most 2 results (max_pages), got %d", len(results))
	}
}

func TestNormalizeURL_StripsFragmentAndDefaultPort(t *testing.T) {
	got, ok := normalizeURL("/path#section", "https://example.com:443/base")
	if !ok {
		t.Fatal("expected normalization to succeed")
	}
	if got != "https://example.com/path" {
		t.Errorf("expected https://example.com/path, got %s", got)
	}
}
