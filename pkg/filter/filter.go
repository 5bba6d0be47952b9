// Package filter implements the Filter Chain of spec.md §3: an ordered
// sequence of URL predicates, each tracking its own pass/reject counters,
// that short-circuits on first rejection.
package filter

import (
	"net/url"
	"regexp"
	"strings"
	"sync/atomic"
)

// Filter is one predicate in a chain. Grounded on
// internal/crawler/selector.go's LinkSelector/PaginationSelector, which
// narrowly implement one such predicate each (CSS selector + optional
// regex); Filter generalizes that into an interface so filters compose.
type Filter interface {
	// Apply reports whether candidateURL passes this filter.
	Apply(candidateURL string) bool
	// Name identifies the filter for diagnostics.
	Name() string
	// Stats returns the filter's cumulative {total, passed, rejected} counts.
	Stats() Stats
}

// Stats is one filter's running counters.
type Stats struct {
	Total    int64
	Passed   int64
	Rejected int64
}

// counters is embedded by concrete filters to provide Stats() for free.
type counters struct {
	total    atomic.Int64
	passed   atomic.Int64
	rejected atomic.Int64
}

func (c *counters) record(pass bool) bool {
	c.total.Add(1)
	if pass {
		c.passed.Add(1)
	} else {
		c.rejected.Add(1)
	}
	return pass
}

func (c *counters) Stats() Stats {
	return Stats{Total: c.total.Load(), Passed: c.passed.Load(), Rejected: c.rejected.Load()}
}

// Chain runs filters in order, short-circuiting on the first rejection.
type Chain struct {
	filters []Filter
}

// NewChain builds a Chain from the given filters, applied in order.
func NewChain(filters ...Filter) *Chain {
	return &Chain{filters: filters}
}

// Apply runs every filter in order until one rejects candidateURL, or all
// pass.
func (c *Chain) Apply(candidateURL string) bool {
	for _, f := range c.filters {
		if !f.Apply(candidateURL) {
			return false
		}
	}
	return true
}

// Filters returns the chain's filters, for stats introspection.
func (c *Chain) Filters() []Filter {
	return c.filters
}

// DomainFilter restricts candidates to (or away from) a set of allowed
// domains, optionally including subdomains.
type DomainFilter struct {
	counters
	allowed         map[string]bool
	allowSubdomains bool
}

// NewDomainFilter builds a DomainFilter over the given allowed domains.
func NewDomainFilter(domains []string, allowSubdomains bool) *DomainFilter {
	allowed := make(map[string]bool, len(domains))
	for _, d := range domains {
		allowed[strings.ToLower(d)] = true
	}
	return &DomainFilter{allowed: allowed, allowSubdomains: allowSubdomains}
}

func (f *DomainFilter) Name() string { return "domain" }

func (f *DomainFilter) Apply(candidateURL string) bool {
	u, err := url.Parse(candidateURL)
	if err != nil {
		return f.record(false)
	}
	host := strings.ToLower(u.Hostname())
	if f.allowed[host] {
		return f.record(true)
	}
	if f.allowSubdomains {
		for domain := range f.allowed {
			if strings.HasSuffix(host, "."+domain) {
				return f.record(true)
			}
		}
	}
	return f.record(false)
}

// PatternFilter accepts or rejects URLs matching a regular expression,
// grounded on LinkSelector's URLPattern (internal/crawler/selector.go).
type PatternFilter struct {
	counters
	pattern *regexp.Regexp
	reject  bool // when true, matching means reject rather than pass
}

// NewPatternFilter compiles pattern. If reject is true, a match causes
// rejection (useful for exclusion patterns); otherwise a match is required
// to pass.
func NewPatternFilter(pattern string, reject bool) (*PatternFilter, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &PatternFilter{pattern: re, reject: reject}, nil
}

func (f *PatternFilter) Name() string { return "pattern" }

func (f *PatternFilter) Apply(candidateURL string) bool {
	matched := f.pattern.MatchString(candidateURL)
	pass := matched
	if f.reject {
		pass = !matched
	}
	return f.record(pass)
}

// ContentTypeFilter restricts candidates by file extension, approximating
// the content type a server would report without fetching the URL.
type ContentTypeFilter struct {
	counters
	allowedExt map[string]bool
}

// NewContentTypeFilter builds a filter accepting only the given lowercase
// extensions (e.g. ".html", ".php", ""  for extensionless paths).
func NewContentTypeFilter(extensions []string) *ContentTypeFilter {
	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		allowed[strings.ToLower(ext)] = true
	}
	return &ContentTypeFilter{allowedExt: allowed}
}

func (f *ContentTypeFilter) Name() string { return "content_type" }

func (f *ContentTypeFilter) Apply(candidateURL string) bool {
	u, err := url.Parse(candidateURL)
	if err != nil {
		return f.record(false)
	}
	ext := strings.ToLower(extOf(u.Path))
	return f.record(f.allowedExt[ext])
}

func extOf(path string) string {
	idx := strings.LastIndex(path, ".")
	if idx < 0 || strings.Contains(path[idx:], "/") {
		return ""
	}
	return path[idx:]
}
