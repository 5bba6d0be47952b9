package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jmylchreest/crawlcore/pkg/crawlresult"
)

// MemoryCache is an in-memory, size-bounded Context backed by
// hashicorp/golang-lru. Suitable for tests and single-process runs; it does
// not survive a process restart.
type MemoryCache struct {
	mu  sync.Mutex
	lru *lru.Cache[string, entry]
	ttl time.Duration
}

type entry struct {
	result   *crawlresult.Result
	storedAt time.Time
}

// NewMemoryCache builds a MemoryCache holding up to size entries. ttl of 0
// means entries never expire on their own (eviction is purely LRU-driven).
func NewMemoryCache(size int, ttl time.Duration) (*MemoryCache, error) {
	if size <= 0 {
		size = 1000
	}
	l, err := lru.New[string, entry](size)
	if err != nil {
		return nil, err
	}
	return &MemoryCache{lru: l, ttl: ttl}, nil
}

// Get implements Context.
func (c *MemoryCache) Get(ctx context.Context, url string) (*crawlresult.Result, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(url)
	if !ok {
		return nil, false, nil
	}
	if c.ttl > 0 && time.Since(e.storedAt) > c.ttl {
		c.lru.Remove(url)
		return nil, false, nil
	}
	return e.result, true, nil
}

// Put implements Context.
func (c *MemoryCache) Put(ctx context.Context, result *crawlresult.Result) error {
	if result == nil || result.URL == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(result.URL, entry{result: result, storedAt: time.Now()})
	return nil
}
