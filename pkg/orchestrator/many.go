package orchestrator

import (
	"context"

	"github.com/jmylchreest/crawlcore/internal/memstat"
	"github.com/jmylchreest/crawlcore/pkg/crawlresult"
	"github.com/jmylchreest/crawlcore/pkg/deepcrawl"
	"github.com/jmylchreest/crawlcore/pkg/dispatcher"
)

// defaultMaxSessionPermit bounds the default Memory-Adaptive Dispatcher's
// concurrency when a caller of RunMany/RunManyStream supplies none.
const defaultMaxSessionPermit = 10

// RunMany implements spec.md §4.8's many-URL contract: run_many(urls,
// run_config, dispatcher?) -> list. Instantiates a default Memory-Adaptive
// Dispatcher when disp is nil.
func (o *Orchestrator) RunMany(ctx context.Context, urls []string, cfg crawlresult.RunConfig, disp dispatcher.Dispatcher) ([]crawlresult.Result, error) {
	if disp == nil {
		disp = dispatcher.NewMemoryAdaptiveDispatcher(defaultMaxSessionPermit, memstat.DefaultReader())
	}

	tasks, err := disp.Run(ctx, urls, cfg, o)
	if err != nil {
		return nil, err
	}
	return attachDispatchMetrics(tasks), nil
}

// RunManyStream is RunMany's streaming counterpart: results are delivered
// in completion order over the returned channel.
func (o *Orchestrator) RunManyStream(ctx context.Context, urls []string, cfg crawlresult.RunConfig, disp dispatcher.Dispatcher) (<-chan crawlresult.Result, error) {
	if disp == nil {
		disp = dispatcher.NewMemoryAdaptiveDispatcher(defaultMaxSessionPermit, memstat.DefaultReader())
	}

	tasks, err := disp.RunStream(ctx, urls, cfg, o)
	if err != nil {
		return nil, err
	}

	out := make(chan crawlresult.Result)
	go func() {
		defer close(out)
		for tr := range tasks {
			out <- withDispatchMetrics(tr)
		}
	}()
	return out, nil
}

// RunDeepCrawl implements spec.md §4.5's strategy-driven traversal: a
// BFS/DFS/Best-First Strategy repeatedly drives disp (defaulting to a
// Memory-Adaptive Dispatcher) over o, starting from startURL. cfg is
// guarded via WithDeepCrawlDisabled before being handed to the strategy, so
// that its internal per-URL dispatch calls take the single-page path
// through Run rather than re-entering deep-crawl interception — the
// explicit-guard-field redesign spec.md §9 calls for, expressed here as a
// distinct method rather than a single overloaded entry point (Run returns
// one Result; a strategy returns many, so Go's type system already keeps
// the two paths apart without a runtime dispatch on the guard).
func (o *Orchestrator) RunDeepCrawl(ctx context.Context, startURL string, cfg crawlresult.RunConfig, strategy deepcrawl.Strategy, disp dispatcher.Dispatcher) ([]crawlresult.Result, error) {
	if disp == nil {
		disp = dispatcher.NewMemoryAdaptiveDispatcher(defaultMaxSessionPermit, memstat.DefaultReader())
	}
	return strategy.Run(ctx, startURL, disp, o, cfg.WithDeepCrawlDisabled())
}

// RunDeepCrawlStream is RunDeepCrawl's streaming counterpart.
func (o *Orchestrator) RunDeepCrawlStream(ctx context.Context, startURL string, cfg crawlresult.RunConfig, strategy deepcrawl.Strategy, disp dispatcher.Dispatcher) (<-chan crawlresult.Result, error) {
	if disp == nil {
		disp = dispatcher.NewMemoryAdaptiveDispatcher(defaultMaxSessionPermit, memstat.DefaultReader())
	}
	return strategy.RunStream(ctx, startURL, disp, o, cfg.WithDeepCrawlDisabled())
}

// attachDispatchMetrics copies each TaskResult's dispatch metadata onto its
// Crawl Result, per spec.md §4.4 ("Attaches DispatchResult ... to each
// returned Crawl Result").
func attachDispatchMetrics(tasks []dispatcher.TaskResult) []crawlresult.Result {
	results := make([]crawlresult.Result, len(tasks))
	for i, tr := range tasks {
		results[i] = withDispatchMetrics(tr)
	}
	return results
}

func withDispatchMetrics(tr dispatcher.TaskResult) crawlresult.Result {
	result := tr.Result
	result.Dispatch = crawlresult.DispatchMetrics{
		MemoryStartPercent: tr.MemoryStart,
		MemoryEndPercent:   tr.MemoryPeak,
		MemoryPeakPercent:  tr.MemoryPeak,
		WallTime:           tr.EndedAt.Sub(tr.StartedAt),
		RetryCount:         tr.RetryCount,
	}
	return result
}
