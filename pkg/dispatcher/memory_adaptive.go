package dispatcher

import (
	"context"
	"time"

	"github.com/jmylchreest/crawlcore/internal/memstat"
	"github.com/jmylchreest/crawlcore/pkg/crawlresult"
	"github.com/jmylchreest/crawlcore/pkg/ratelimit"
)

// MemoryAdaptiveDispatcher is the memory-gated variant of spec.md §4.4: it
// admits a new task only while container memory stays under
// MemoryThresholdPercent, re-checking every CheckInterval, bounded by a
// hard MaxSessionPermit concurrency cap. Generalizes
// internal/crawler/crawler.go's semaphore loop with a memory-gate branch.
type MemoryAdaptiveDispatcher struct {
	MemoryThresholdPercent float64
	CheckInterval          time.Duration
	MaxSessionPermit       int

	RateLimiter *ratelimit.Limiter
	Monitor     Monitor
	reader      memstat.Reader
}

// NewMemoryAdaptiveDispatcher builds a dispatcher with spec.md §4.4's
// defaults (90% threshold, 1s check interval), reading memory via reader
// (internal/memstat.DefaultReader() if nil).
func NewMemoryAdaptiveDispatcher(maxSessionPermit int, reader memstat.Reader) *MemoryAdaptiveDispatcher {
	if maxSessionPermit <= 0 {
		maxSessionPermit = 1
	}
	if reader == nil {
		reader = memstat.DefaultReader()
	}
	return &MemoryAdaptiveDispatcher{
		MemoryThresholdPercent: 90,
		CheckInterval:          time.Second,
		MaxSessionPermit:       maxSessionPermit,
		reader:                 reader,
	}
}

// Run executes every URL under the memory-adaptive admission loop and
// returns TaskResults in submission order.
func (d *MemoryAdaptiveDispatcher) Run(ctx context.Context, urls []string, cfg crawlresult.RunConfig, crawler Crawler) ([]TaskResult, error) {
	sem := make(chan struct{}, d.MaxSessionPermit)
	admit := d.admitWithSem(sem)
	fn := func(ctx context.Context, i int, url string) TaskResult {
		defer func() { <-sem }()
		return runOne(ctx, newTaskID(), url, cfg, crawler, d.reader, d.RateLimiter, d.Monitor)
	}
	return collectOrdered(ctx, urls, admit, fn), nil
}

// RunStream is Run's streaming counterpart.
func (d *MemoryAdaptiveDispatcher) RunStream(ctx context.Context, urls []string, cfg crawlresult.RunConfig, crawler Crawler) (<-chan TaskResult, error) {
	sem := make(chan struct{}, d.MaxSessionPermit)
	admit := d.admitWithSem(sem)
	fn := func(ctx context.Context, i int, url string) TaskResult {
		defer func() { <-sem }()
		return runOne(ctx, newTaskID(), url, cfg, crawler, d.reader, d.RateLimiter, d.Monitor)
	}
	return collectStream(ctx, urls, admit, fn), nil
}

// admitWithSem implements spec.md §4.4's admission loop: while pending URLs
// remain and the active count is under MaxSessionPermit, poll memory
// percent until it drops under the threshold, then take a permit.
func (d *MemoryAdaptiveDispatcher) admitWithSem(sem chan struct{}) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		for {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}

			pct, err := d.reader.MemoryPercent(ctx)
			if err != nil || pct < d.MemoryThresholdPercent {
				return nil
			}

			<-sem
			select {
			case <-time.After(d.CheckInterval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
