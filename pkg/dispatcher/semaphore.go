package dispatcher

import (
	"context"

	"github.com/jmylchreest/crawlcore/internal/memstat"
	"github.com/jmylchreest/crawlcore/pkg/crawlresult"
	"github.com/jmylchreest/crawlcore/pkg/ratelimit"
)

// SemaphoreDispatcher is the fixed-concurrency variant of spec.md §4.4: a
// counting semaphore of SemaphoreCount permits, no memory gating. Grounded
// directly on internal/crawler/crawler.go's Crawl() loop
// (`sem := make(chan struct{}, concurrency)`).
type SemaphoreDispatcher struct {
	SemaphoreCount int
	RateLimiter    *ratelimit.Limiter
	Monitor        Monitor
	// MemoryReader, if set, is used only to populate TaskResult's
	// memory-at-start/peak fields; it never gates admission (that's the
	// memory-adaptive variant's job).
	MemoryReader memstat.Reader
}

// NewSemaphoreDispatcher builds a SemaphoreDispatcher with the given fixed
// concurrency.
func NewSemaphoreDispatcher(semaphoreCount int) *SemaphoreDispatcher {
	if semaphoreCount <= 0 {
		semaphoreCount = 1
	}
	return &SemaphoreDispatcher{SemaphoreCount: semaphoreCount}
}

// Run executes every URL, admitting up to SemaphoreCount concurrently, and
// returns TaskResults in submission order.
func (d *SemaphoreDispatcher) Run(ctx context.Context, urls []string, cfg crawlresult.RunConfig, crawler Crawler) ([]TaskResult, error) {
	sem := make(chan struct{}, d.SemaphoreCount)
	admit := func(ctx context.Context) error {
		select {
		case sem <- struct{}{}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	fn := func(ctx context.Context, i int, url string) TaskResult {
		defer func() { <-sem }()
		return runOne(ctx, newTaskID(), url, cfg, crawler, d.MemoryReader, d.RateLimiter, d.Monitor)
	}

	return collectOrdered(ctx, urls, admit, fn), nil
}

// RunStream is Run's streaming counterpart: results arrive in completion
// order over the returned channel.
func (d *SemaphoreDispatcher) RunStream(ctx context.Context, urls []string, cfg crawlresult.RunConfig, crawler Crawler) (<-chan TaskResult, error) {
	sem := make(chan struct{}, d.SemaphoreCount)
	admit := func(ctx context.Context) error {
		select {
		case sem <- struct{}{}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	fn := func(ctx context.Context, i int, url string) TaskResult {
		defer func() { <-sem }()
		return runOne(ctx, newTaskID(), url, cfg, crawler, d.MemoryReader, d.RateLimiter, d.Monitor)
	}

	return collectStream(ctx, urls, admit, fn), nil
}
