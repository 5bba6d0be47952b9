// Package cache defines the Cache Context of spec.md §4.10: a thin
// interface the orchestrator consults before fetching and writes to after
// a successful crawl, plus an in-memory LRU reference implementation.
// Grounded on the small-interface-plus-reference-impl shape the teacher
// uses for pkg/cleaner.Cleaner / pkg/fetcher.Fetcher.
package cache

import (
	"context"

	"github.com/jmylchreest/crawlcore/pkg/crawlresult"
)

// Context abstracts cached-result storage keyed by URL.
type Context interface {
	// Get returns a previously cached result for url, or ok=false if
	// there is no entry (or it has expired).
	Get(ctx context.Context, url string) (result *crawlresult.Result, ok bool, err error)

	// Put stores a result, keyed by its URL.
	Put(ctx context.Context, result *crawlresult.Result) error
}
