// Package dispatcher implements the two Dispatcher variants of spec.md
// §4.4: a memory-adaptive admission loop and a fixed-concurrency semaphore
// loop, both built over the same goroutine-per-task shape the teacher uses
// in internal/crawler/crawler.go's Crawl().
package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmylchreest/crawlcore/internal/logger"
	"github.com/jmylchreest/crawlcore/internal/memstat"
	"github.com/jmylchreest/crawlcore/pkg/crawlresult"
	"github.com/jmylchreest/crawlcore/pkg/ratelimit"
)

// Crawler is the single-URL entry point a Dispatcher drives. The
// Orchestrator implements this; keeping it as a narrow interface here
// avoids an import cycle between pkg/dispatcher and pkg/orchestrator.
type Crawler interface {
	CrawlOne(ctx context.Context, url string, cfg crawlresult.RunConfig) crawlresult.Result
}

// TaskStatus is the task-status model exposed to an optional Monitor.
type TaskStatus string

const (
	StatusQueued     TaskStatus = "QUEUED"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusCompleted  TaskStatus = "COMPLETED"
	StatusFailed     TaskStatus = "FAILED"
)

// Monitor observes task lifecycle transitions; implementations must not
// block the dispatcher.
type Monitor interface {
	OnStatusChange(taskID, url string, status TaskStatus)
}

// TaskResult wraps a Crawl Result with the per-task metadata spec.md §4.4
// requires.
type TaskResult struct {
	TaskID       string
	URL          string
	Result       crawlresult.Result
	MemoryStart  float64
	MemoryPeak   float64
	StartedAt    time.Time
	EndedAt      time.Time
	RetryCount   int
	ErrorMessage string
}

// Dispatcher is the shared contract both variants implement.
type Dispatcher interface {
	// Run executes every url and returns TaskResults in submission order.
	Run(ctx context.Context, urls []string, cfg crawlresult.RunConfig, crawler Crawler) ([]TaskResult, error)
	// RunStream executes every url and emits TaskResults in completion
	// order over the returned channel, which is closed when all tasks
	// finish or ctx is cancelled.
	RunStream(ctx context.Context, urls []string, cfg crawlresult.RunConfig, crawler Crawler) (<-chan TaskResult, error)
}

func newTaskID() string { return uuid.NewString() }

func runOne(ctx context.Context, taskID, url string, cfg crawlresult.RunConfig, crawler Crawler, reader memstat.Reader, limiter *ratelimit.Limiter, monitor Monitor) TaskResult {
	if monitor != nil {
		monitor.OnStatusChange(taskID, url, StatusInProgress)
	}

	tr := TaskResult{TaskID: taskID, URL: url, StartedAt: time.Now()}
	if reader != nil {
		if pct, err := reader.MemoryPercent(ctx); err == nil {
			tr.MemoryStart = pct
			tr.MemoryPeak = pct
		}
	}

	if limiter != nil {
		host := ratelimit.HostOf(url)
		if err := limiter.Acquire(ctx, host); err != nil {
			tr.EndedAt = time.Now()
			tr.ErrorMessage = err.Error()
			tr.Result = crawlresult.Fail(url, crawlresult.ErrorKindCancelled, err.Error())
			if monitor != nil {
				monitor.OnStatusChange(taskID, url, StatusFailed)
			}
			return tr
		}
	}

	result := crawler.CrawlOne(ctx, url, cfg)
	tr.Result = result
	tr.EndedAt = time.Now()
	tr.RetryCount = result.Dispatch.RetryCount

	if reader != nil {
		if pct, err := reader.MemoryPercent(ctx); err == nil && pct > tr.MemoryPeak {
			tr.MemoryPeak = pct
		}
	}

	if limiter != nil {
		status := result.StatusCode
		if !result.Success && status == 0 {
			status = 599
		}
		if err := limiter.Report(ratelimit.HostOf(url), status); err != nil {
			logger.Debug("rate limiter reports host exhausted retries", "url", url, "error", err)
		}
	}

	status := StatusCompleted
	if !result.Success {
		status = StatusFailed
		tr.ErrorMessage = result.ErrorMessage
	}
	if monitor != nil {
		monitor.OnStatusChange(taskID, url, status)
	}

	return tr
}

// collectOrdered runs fn once per URL, each only after admit lets it in,
// preserving submission order in the returned slice.
// admit is called once per URL and must block until that URL may start;
// it is called from the dispatching goroutine, serially, one at a time.
func collectOrdered(ctx context.Context, urls []string, admit func(ctx context.Context) error, fn func(ctx context.Context, i int, url string) TaskResult) []TaskResult {
	results := make([]TaskResult, len(urls))
	var wg sync.WaitGroup

	for i, u := range urls {
		if ctx.Err() != nil {
			break
		}
		if err := admit(ctx); err != nil {
			results[i] = TaskResult{TaskID: newTaskID(), URL: u, ErrorMessage: err.Error(), Result: crawlresult.Fail(u, crawlresult.ErrorKindCancelled, err.Error())}
			continue
		}

		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			results[i] = fn(ctx, i, u)
		}(i, u)
	}

	wg.Wait()
	return results
}

// collectStream runs fn once per URL, each only after admit lets it in,
// emitting TaskResults over the returned channel in completion order.
func collectStream(ctx context.Context, urls []string, admit func(ctx context.Context) error, fn func(ctx context.Context, i int, url string) TaskResult) <-chan TaskResult {
	out := make(chan TaskResult, len(urls))

	go func() {
		defer close(out)
		var wg sync.WaitGroup

		for i, u := range urls {
			if ctx.Err() != nil {
				break
			}
			if err := admit(ctx); err != nil {
				out <- TaskResult{TaskID: newTaskID(), URL: u, ErrorMessage: err.Error(), Result: crawlresult.Fail(u, crawlresult.ErrorKindCancelled, err.Error())}
				continue
			}

			wg.Add(1)
			go func(i int, u string) {
				defer wg.Done()
				out <- fn(ctx, i, u)
			}(i, u)
		}

		wg.Wait()
	}()

	return out
}
