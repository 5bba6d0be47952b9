package deepcrawl

import (
	"context"

	"github.com/jmylchreest/crawlcore/pkg/crawlresult"
	"github.com/jmylchreest/crawlcore/pkg/dispatcher"
)

// BFS processes the frontier one depth level at a time: every URL at depth
// d is submitted to the Dispatcher in one batch before any depth-d+1 URL is
// considered, per spec.md §4.5.
type BFS struct {
	Config Config
}

// NewBFS builds a BFS strategy with the given budgets/components.
func NewBFS(cfg Config) *BFS { return &BFS{Config: cfg} }

func (s *BFS) Run(ctx context.Context, startURL string, disp dispatcher.Dispatcher, crawler dispatcher.Crawler, cfg crawlresult.RunConfig) ([]crawlresult.Result, error) {
	var all []crawlresult.Result
	for r := range s.runLevels(ctx, startURL, disp, crawler, cfg) {
		all = append(all, r)
	}
	return all, nil
}

func (s *BFS) RunStream(ctx context.Context, startURL string, disp dispatcher.Dispatcher, crawler dispatcher.Crawler, cfg crawlresult.RunConfig) (<-chan crawlresult.Result, error) {
	out := make(chan crawlresult.Result, 16)
	go func() {
		defer close(out)
		for r := range s.runLevels(ctx, startURL, disp, crawler, cfg) {
			out <- r
		}
	}()
	return out, nil
}

// runLevels drives the FIFO-by-depth loop shared by Run/RunStream.
func (s *BFS) runLevels(ctx context.Context, startURL string, disp dispatcher.Dispatcher, crawler dispatcher.Crawler, cfg crawlresult.RunConfig) <-chan crawlresult.Result {
	out := make(chan crawlresult.Result)
	go func() {
		defer close(out)

		visited := newVisitedSet()
		visited.addIfNew(startURL)
		level := []frontierItem{{url: startURL, depth: 0}}
		pagesCrawled := 0
		guarded := cfg.WithDeepCrawlDisabled()

		for depth := 0; len(level) > 0; depth++ {
			if ctx.Err() != nil || (s.Config.MaxPages > 0 && pagesCrawled >= s.Config.MaxPages) {
				return
			}
			if depth > s.Config.MaxDepth {
				return
			}

			urls := make([]string, len(level))
			for i, it := range level {
				urls[i] = it.url
			}

			results, err := disp.Run(ctx, urls, guarded, crawler)
			if err != nil {
				return
			}

			var nextLevel []frontierItem
			for i, tr := range results {
				if s.Config.MaxPages > 0 && pagesCrawled >= s.Config.MaxPages {
					break
				}
				res := tr.Result
				annotate(&res, level[i].depth, level[i].parentURL, level[i].score)
				out <- res
				if !res.Success {
					continue
				}
				pagesCrawled++

				remaining := remainingCapacity(s.Config.MaxPages, pagesCrawled)
				candidates := discoverCandidates(res, level[i].depth, s.Config, visited, i*1000, remaining)
				logDiscovery("bfs", res.URL, len(candidates))
				for _, c := range candidates {
					nextLevel = append(nextLevel, c)
				}
			}
			level = nextLevel
		}
	}()
	return out
}

func remainingCapacity(maxPages, pagesCrawled int) int {
	if maxPages <= 0 {
		return 1 << 30
	}
	n := maxPages - pagesCrawled
	if n < 0 {
		return 0
	}
	return n
}
