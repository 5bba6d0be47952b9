// Package deepcrawl implements the Deep-Crawl Strategies of spec.md §4.5:
// BFS, DFS, and Best-First frontier disciplines sharing one link-discovery
// routine (normalize -> filter -> score -> capacity-trim), generalizing
// internal/crawler/crawler.go + queue.go's single hard-coded FIFO loop.
package deepcrawl

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/jmylchreest/crawlcore/internal/logger"
	"github.com/jmylchreest/crawlcore/pkg/crawlresult"
	"github.com/jmylchreest/crawlcore/pkg/dispatcher"
	"github.com/jmylchreest/crawlcore/pkg/filter"
	"github.com/jmylchreest/crawlcore/pkg/scorer"
)

// Config holds the budgets and components every Strategy variant shares
// (spec.md §4.5).
type Config struct {
	MaxDepth        int
	MaxPages        int
	ScoreThreshold  float64
	IncludeExternal bool
	Filter          *filter.Chain
	Scorer          scorer.Scorer
	// BatchSize bounds how many frontier URLs Best-First dequeues per
	// dispatcher round; BFS/DFS ignore it (BFS submits one full level per
	// round, DFS one popped URL).
	BatchSize int
}

// DefaultConfig returns spec.md §4.5's defaults: depth 1, unlimited pages,
// no scorer/filter, internal links only, best-first batch size 10.
func DefaultConfig() Config {
	return Config{
		MaxDepth:  1,
		MaxPages:  0,
		BatchSize: 10,
	}
}

// Strategy is the shared contract of spec.md §4.5: run(start_url, crawler,
// run_config) -> results, honoring the frontier discipline the
// implementation names. Each batch of frontier URLs is submitted through
// disp so memory/concurrency/rate-limit gates still apply per spec.md
// §4.4's "the strategy repeatedly invokes the Dispatcher" control flow.
type Strategy interface {
	Run(ctx context.Context, startURL string, disp dispatcher.Dispatcher, crawler dispatcher.Crawler, cfg crawlresult.RunConfig) ([]crawlresult.Result, error)
	RunStream(ctx context.Context, startURL string, disp dispatcher.Dispatcher, crawler dispatcher.Crawler, cfg crawlresult.RunConfig) (<-chan crawlresult.Result, error)
}

// frontierItem is one pending crawl candidate.
type frontierItem struct {
	url       string
	parentURL string
	depth     int
	score     float64
	seq       int // insertion order, used to break scoring ties deterministically
}

// visitedSet tracks normalized URLs already enqueued or crawled, guarding
// against cycles the way queue.go's URLQueue.visited does.
type visitedSet struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newVisitedSet() *visitedSet { return &visitedSet{seen: make(map[string]bool)} }

// addIfNew returns true (and records it) only the first time normalized is
// seen.
func (v *visitedSet) addIfNew(normalized string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.seen[normalized] {
		return false
	}
	v.seen[normalized] = true
	return true
}

// normalizeURL strips the fragment, resolves relative -> absolute against
// base, lower-cases scheme/host, and drops default ports, per spec.md
// §4.5's link-discovery contract. Generalizes queue.go's normalizeURL.
func normalizeURL(raw, base string) (string, bool) {
	b, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	resolved := b.ResolveReference(u)
	resolved.Fragment = ""
	resolved.Scheme = strings.ToLower(resolved.Scheme)
	resolved.Host = strings.ToLower(stripDefaultPort(resolved.Scheme, resolved.Host))
	if len(resolved.Path) > 1 && strings.HasSuffix(resolved.Path, "/") {
		resolved.Path = strings.TrimSuffix(resolved.Path, "/")
	}
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	return resolved.String(), true
}

func stripDefaultPort(scheme, host string) string {
	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		return strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		return strings.TrimSuffix(host, ":443")
	default:
		return host
	}
}

// discoverCandidates runs the shared link-discovery pipeline of spec.md
// §4.5 over one crawl result's link inventory: normalize, visited-dedupe,
// filter, score, then trim to remaining capacity (top-N by score, ties
// broken by insertion order; arrival order if no scorer is configured).
func discoverCandidates(result crawlresult.Result, depth int, cfg Config, visited *visitedSet, seqBase int, remainingCapacity int) []frontierItem {
	if remainingCapacity <= 0 {
		return nil
	}

	links := append([]crawlresult.LinkItem{}, result.Links.Internal...)
	if cfg.IncludeExternal {
		links = append(links, result.Links.External...)
	}

	candidates := make([]frontierItem, 0, len(links))
	for i, link := range links {
		normalized, ok := normalizeURL(link.Href, result.URL)
		if !ok {
			continue
		}
		if !visited.addIfNew(normalized) {
			continue
		}
		if cfg.Filter != nil && !cfg.Filter.Apply(normalized) {
			continue
		}

		var score float64
		if cfg.Scorer != nil {
			score = cfg.Scorer.Score(normalized, link.Text)
			if score < cfg.ScoreThreshold {
				continue
			}
		}

		candidates = append(candidates, frontierItem{
			url:       normalized,
			parentURL: result.URL,
			depth:     depth + 1,
			score:     score,
			seq:       seqBase + i,
		})
	}

	if len(candidates) > remainingCapacity {
		candidates = topNByScore(candidates, remainingCapacity)
	}
	return candidates
}

// topNByScore keeps the highest-scoring remainingCapacity candidates,
// breaking ties by insertion order (seq ascending). When no scorer is
// configured every score is zero, so the sort degenerates to plain arrival
// order, matching spec.md §4.5's "or arrival order if no scorer" clause.
func topNByScore(candidates []frontierItem, n int) []frontierItem {
	sorted := append([]frontierItem{}, candidates...)
	// Insertion sort: candidate counts are small (bounded by one page's
	// link count) and stability matters more than asymptotic performance.
	for i := 1; i < len(sorted); i++ {
		j := i
		for j > 0 && less(sorted[j], sorted[j-1]) {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
			j--
		}
	}
	return sorted[:n]
}

func less(a, b frontierItem) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.seq < b.seq
}

func annotate(result *crawlresult.Result, depth int, parentURL string, score float64) {
	result.Depth = depth
	result.ParentURL = parentURL
	result.Score = score
}

func logDiscovery(strategyName, from string, n int) {
	if n > 0 {
		logger.Debug("deep crawl discovered links", "strategy", strategyName, "from", from, "count", n)
	}
}
