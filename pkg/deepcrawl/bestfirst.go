package deepcrawl

import (
	"container/heap"
	"context"

	"github.com/jmylchreest/crawlcore/pkg/crawlresult"
	"github.com/jmylchreest/crawlcore/pkg/dispatcher"
)

// BestFirst processes the frontier as a priority queue keyed by score
// (highest first; ties broken by depth then FIFO), dequeuing up to
// Config.BatchSize candidates per Dispatcher round (spec.md §4.5).
type BestFirst struct {
	Config Config
}

// NewBestFirst builds a Best-First strategy with the given budgets/
// components. A nil or non-positive Config.BatchSize falls back to 10, the
// default spec.md §4.5 names.
func NewBestFirst(cfg Config) *BestFirst {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	return &BestFirst{Config: cfg}
}

// frontierHeap is a container/heap.Interface over frontierItem, ordered by
// highest score first, ties broken by shallower depth then insertion order.
type frontierHeap []frontierItem

func (h frontierHeap) Len() int { return len(h) }
func (h frontierHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.score != b.score {
		return a.score > b.score
	}
	if a.depth != b.depth {
		return a.depth < b.depth
	}
	return a.seq < b.seq
}
func (h frontierHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *frontierHeap) Push(x any)   { *h = append(*h, x.(frontierItem)) }
func (h *frontierHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func (s *BestFirst) Run(ctx context.Context, startURL string, disp dispatcher.Dispatcher, crawler dispatcher.Crawler, cfg crawlresult.RunConfig) ([]crawlresult.Result, error) {
	var all []crawlresult.Result
	for r := range s.runQueue(ctx, startURL, disp, crawler, cfg) {
		all = append(all, r)
	}
	return all, nil
}

func (s *BestFirst) RunStream(ctx context.Context, startURL string, disp dispatcher.Dispatcher, crawler dispatcher.Crawler, cfg crawlresult.RunConfig) (<-chan crawlresult.Result, error) {
	out := make(chan crawlresult.Result, 16)
	go func() {
		defer close(out)
		for r := range s.runQueue(ctx, startURL, disp, crawler, cfg) {
			out <- r
		}
	}()
	return out, nil
}

func (s *BestFirst) runQueue(ctx context.Context, startURL string, disp dispatcher.Dispatcher, crawler dispatcher.Crawler, cfg crawlresult.RunConfig) <-chan crawlresult.Result {
	out := make(chan crawlresult.Result)
	go func() {
		defer close(out)

		visited := newVisitedSet()
		visited.addIfNew(startURL)

		pq := &frontierHeap{{url: startURL, depth: 0, seq: 0}}
		heap.Init(pq)

		pagesCrawled := 0
		seq := 1
		guarded := cfg.WithDeepCrawlDisabled()

		for pq.Len() > 0 {
			if ctx.Err() != nil {
				return
			}
			if s.Config.MaxPages > 0 && pagesCrawled >= s.Config.MaxPages {
				return
			}

			batchSize := s.Config.BatchSize
			if batchSize > pq.Len() {
				batchSize = pq.Len()
			}
			batch := make([]frontierItem, 0, batchSize)
			for i := 0; i < batchSize; i++ {
				item := heap.Pop(pq).(frontierItem)
				if item.depth > s.Config.MaxDepth {
					continue
				}
				batch = append(batch, item)
			}
			if len(batch) == 0 {
				continue
			}

			urls := make([]string, len(batch))
			for i, it := range batch {
				urls[i] = it.url
			}

			results, err := disp.Run(ctx, urls, guarded, crawler)
			if err != nil {
				return
			}

			for i, tr := range results {
				if s.Config.MaxPages > 0 && pagesCrawled >= s.Config.MaxPages {
					break
				}
				res := tr.Result
				annotate(&res, batch[i].depth, batch[i].parentURL, batch[i].score)
				out <- res
				if !res.Success {
					continue
				}
				pagesCrawled++

				remaining := remainingCapacity(s.Config.MaxPages, pagesCrawled)
				candidates := discoverCandidates(res, batch[i].depth, s.Config, visited, seq*1000, remaining)
				logDiscovery("best_first", res.URL, len(candidates))
				for _, c := range candidates {
					c.seq = seq
					seq++
					heap.Push(pq, c)
				}
			}
		}
	}()
	return out
}
