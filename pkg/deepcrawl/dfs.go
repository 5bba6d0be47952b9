package deepcrawl

import (
	"context"

	"github.com/jmylchreest/crawlcore/pkg/crawlresult"
	"github.com/jmylchreest/crawlcore/pkg/dispatcher"
)

// DFS processes the frontier as a LIFO stack: each popped URL's discovered
// links are pushed back on top, so a branch is explored to budget/depth
// before any sibling is visited. Same budgets/semantics as BFS otherwise
// (spec.md §4.5).
type DFS struct {
	Config Config
}

// NewDFS builds a DFS strategy with the given budgets/components.
func NewDFS(cfg Config) *DFS { return &DFS{Config: cfg} }

func (s *DFS) Run(ctx context.Context, startURL string, disp dispatcher.Dispatcher, crawler dispatcher.Crawler, cfg crawlresult.RunConfig) ([]crawlresult.Result, error) {
	var all []crawlresult.Result
	for r := range s.runStack(ctx, startURL, disp, crawler, cfg) {
		all = append(all, r)
	}
	return all, nil
}

func (s *DFS) RunStream(ctx context.Context, startURL string, disp dispatcher.Dispatcher, crawler dispatcher.Crawler, cfg crawlresult.RunConfig) (<-chan crawlresult.Result, error) {
	out := make(chan crawlresult.Result, 16)
	go func() {
		defer close(out)
		for r := range s.runStack(ctx, startURL, disp, crawler, cfg) {
			out <- r
		}
	}()
	return out, nil
}

func (s *DFS) runStack(ctx context.Context, startURL string, disp dispatcher.Dispatcher, crawler dispatcher.Crawler, cfg crawlresult.RunConfig) <-chan crawlresult.Result {
	out := make(chan crawlresult.Result)
	go func() {
		defer close(out)

		visited := newVisitedSet()
		visited.addIfNew(startURL)
		stack := []frontierItem{{url: startURL, depth: 0}}
		pagesCrawled := 0
		seq := 0
		guarded := cfg.WithDeepCrawlDisabled()

		for len(stack) > 0 {
			if ctx.Err() != nil {
				return
			}
			if s.Config.MaxPages > 0 && pagesCrawled >= s.Config.MaxPages {
				return
			}

			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if top.depth > s.Config.MaxDepth {
				continue
			}

			results, err := disp.Run(ctx, []string{top.url}, guarded, crawler)
			if err != nil || len(results) == 0 {
				return
			}

			res := results[0].Result
			annotate(&res, top.depth, top.parentURL, top.score)
			out <- res
			if !res.Success {
				continue
			}
			pagesCrawled++

			remaining := remainingCapacity(s.Config.MaxPages, pagesCrawled)
			seq++
			candidates := discoverCandidates(res, top.depth, s.Config, visited, seq*1000, remaining)
			logDiscovery("dfs", res.URL, len(candidates))
			// Push in reverse so the first-discovered candidate is popped
			// (explored) first, matching arrival-order expectations.
			for i := len(candidates) - 1; i >= 0; i-- {
				stack = append(stack, candidates[i])
			}
		}
	}()
	return out
}
