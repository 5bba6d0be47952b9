package cache

import (
	"context"
	"testing"
	"time"

	"github.com/jmylchreest/crawlcore/pkg/crawlresult"
)

func TestMemoryCache_PutThenGet(t *testing.T) {
	c, err := NewMemoryCache(10, 0)
	if err != nil {
		t.Fatalf("NewMemoryCache: %v", err)
	}
	ctx := context.Background()

	result := &crawlresult.Result{URL: "https://example.com", Success: true}
	if err := c.Put(ctx, result); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := c.Get(ctx, "https://example.com")
	if err != nil || !ok {
		t.Fatalf("Get: got=%v ok=%v err=%v", got, ok, err)
	}
	if got.URL != result.URL {
		t.Errorf("URL = %q", got.URL)
	}
}

func TestMemoryCache_MissReturnsFalse(t *testing.T) {
	c, _ := NewMemoryCache(10, 0)
	_, ok, err := c.Get(context.Background(), "https://missing.example.com")
	if err != nil || ok {
		t.Fatalf("expected a clean miss, got ok=%v err=%v", ok, err)
	}
}

func TestMemoryCache_TTLExpiresEntries(t *testing.T) {
	c, _ := NewMemoryCache(10, 10*time.Millisecond)
	ctx := context.Background()

	c.Put(ctx, &crawlresult.Result{URL: "https://example.com"})
	time.Sleep(20 * time.Millisecond)

	_, ok, err := c.Get(ctx, "https://example.com")
	if err != nil || ok {
		t.Fatalf("expected entry to have expired, got ok=%v err=%v", ok, err)
	}
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := NewMemoryCache(2, 0)
	ctx := context.Background()

	c.Put(ctx, &crawlresult.Result{URL: "https://a.example.com"})
	c.Put(ctx, &crawlresult.Result{URL: "https://b.example.com"})
	c.Put(ctx, &crawlresult.Result{URL: "https://c.example.com"})

	if _, ok, _ := c.Get(ctx, "https://a.example.com"); ok {
		t.Error("expected the oldest entry to have been evicted")
	}
	if _, ok, _ := c.Get(ctx, "https://c.example.com"); !ok {
		t.Error("expected the newest entry to still be present")
	}
}

func TestMemoryCache_PutIgnoresNilResult(t *testing.T) {
	c, _ := NewMemoryCache(10, 0)
	if err := c.Put(context.Background(), nil); err != nil {
		t.Errorf("expected nil result to be a no-op, got error: %v", err)
	}
}

var _ Context = (*MemoryCache)(nil)
