package dispatcher

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmylchreest/crawlcore/pkg/crawlresult"
)

// fakeCrawler records every URL it's asked to crawl and returns a
// successful Result after a short simulated delay.
type fakeCrawler struct {
	delay time.Duration
	calls int32
}

func (f *fakeCrawler) CrawlOne(ctx context.Context, url string, cfg crawlresult.RunConfig) crawlresult.Result {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return crawlresult.Result{URL: url, Success: true, StatusCode: 200}
}

// fakeReader reports a fixed memory percent regardless of context.
type fakeReader struct {
	pct float64
	mu  sync.Mutex
}

func (f *fakeReader) MemoryPercent(ctx context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pct, nil
}

func (f *fakeReader) set(pct float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pct = pct
}

func TestSemaphoreDispatcher_Run_AllURLsSucceed(t *testing.T) {
	d := NewSemaphoreDispatcher(2)
	crawler := &fakeCrawler{}
	urls := []string{"https://a.test/", "https://b.test/", "https://c.test/"}

	results, err := d.Run(context.Background(), urls, crawlresult.DefaultRunConfig(), crawler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != len(urls) {
		t.Fatalf("expected %d results, got %d", len(urls), len(results))
	}
	for i, r := range results {
		if r.URL != urls[i] {
			t.Errorf("result %d: expected url %s, got %s (order not preserved)", i, urls[i], r.URL)
		}
		if !r.Result.Success {
			t.Errorf("result %d: expected success", i)
		}
	}
	if got := atomic.LoadInt32(&crawler.calls); got != int32(len(urls)) {
		t.Errorf("expected %d crawler calls, got %d", len(urls), got)
	}
}

func TestSemaphoreDispatcher_RunStream_EmitsAllResults(t *testing.T) {
	d := NewSemaphoreDispatcher(3)
	crawler := &fakeCrawler{}
	urls := []string{"https://a.test/", "https://b.test/", "https://c.test/"}

	out, err := d.RunStream(context.Background(), urls, crawlresult.DefaultRunConfig(), crawler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen := map[string]bool{}
	for r := range out {
		seen[r.URL] = true
	}
	if len(seen) != len(urls) {
		t.Fatalf("expected %d distinct results, got %d", len(urls), len(seen))
	}
}

func TestSemaphoreDispatcher_RespectsConcurrencyLimit(t *testing.T) {
	var active, maxActive int32
	crawler := crawlerFunc(func(ctx context.Context, url string, cfg crawlresult.RunConfig) crawlresult.Result {
		n := atomic.AddInt32(&active, 1)
		for {
			old := atomic.LoadInt32(&maxActive)
			if n <= old || atomic.CompareAndSwapInt32(&maxActive, old, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return crawlresult.Result{URL: url, Success: true}
	})

	d := NewSemaphoreDispatcher(2)
	urls := []string{"a", "b", "c", "d", "e", "f"}
	_, err := d.Run(context.Background(), urls, crawlresult.DefaultRunConfig(), crawler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt32(&maxActive) > 2 {
		t.Errorf("expected at most 2 concurrent tasks, observed %d", maxActive)
	}
}

func TestMemoryAdaptiveDispatcher_AdmitsWhenBelowThreshold(t *testing.T) {
	reader := &fakeReader{pct: 10}
	d := NewMemoryAdaptiveDispatcher(2, reader)
	d.CheckInterval = time.Millisecond

	crawler := &fakeCrawler{}
	urls := []string{"https://a.test/", "https://b.test/"}

	results, err := d.Run(context.Background(), urls, crawlresult.DefaultRunConfig(), crawler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.Result.Success {
			t.Errorf("expected success for %s", r.URL)
		}
	}
}

func TestMemoryAdaptiveDispatcher_WaitsOutHighMemoryThenAdmits(t *testing.T) {
	reader := &fakeReader{pct: 95}
	d := NewMemoryAdaptiveDispatcher(1, reader)
	d.CheckInterval = 5 * time.Millisecond

	crawler := &fakeCrawler{}

	go func() {
		time.Sleep(20 * time.Millisecond)
		reader.set(10)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	results, err := d.Run(ctx, []string{"https://a.test/"}, crawlresult.DefaultRunConfig(), crawler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || !results[0].Result.Success {
		t.Fatalf("expected a single successful result once memory dropped, got %+v", results)
	}
}

func TestMemoryAdaptiveDispatcher_CancelledContextWhileWaiting(t *testing.T) {
	reader := &fakeReader{pct: 99}
	d := NewMemoryAdaptiveDispatcher(1, reader)
	d.CheckInterval = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	results, err := d.Run(ctx, []string{"https://a.test/"}, crawlresult.DefaultRunConfig(), &fakeCrawler{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Result.Success {
		t.Fatalf("expected the task to fail once the context was cancelled while waiting on memory, got %+v", results)
	}
}

// crawlerFunc adapts a plain function to the Crawler interface.
type crawlerFunc func(ctx context.Context, url string, cfg crawlresult.RunConfig) crawlresult.Result

func (f crawlerFunc) CrawlOne(ctx context.Context, url string, cfg crawlresult.RunConfig) crawlresult.Result {
	return f(ctx, url, cfg)
}
