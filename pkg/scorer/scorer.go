// Package scorer implements the URL Scorer of spec.md §3: a function from
// URL (optionally with anchor text) to a non-negative weighted score, plus
// a composite scorer that sums weighted component scores.
package scorer

import (
	"net/url"
	"strings"
)

// Scorer scores one candidate URL. Implementations must return a
// non-negative value; higher means more relevant.
type Scorer interface {
	Score(candidateURL, anchorText string) float64
	Name() string
}

// KeywordRelevanceScorer scores a URL by how many configured keywords
// appear in its path or anchor text, case-insensitively.
type KeywordRelevanceScorer struct {
	keywords []string
	weight   float64
}

// NewKeywordRelevanceScorer builds a scorer over the given keywords. weight
// scales the raw keyword-hit count before it is returned.
func NewKeywordRelevanceScorer(keywords []string, weight float64) *KeywordRelevanceScorer {
	lower := make([]string, len(keywords))
	for i, k := range keywords {
		lower[i] = strings.ToLower(k)
	}
	if weight <= 0 {
		weight = 1
	}
	return &KeywordRelevanceScorer{keywords: lower, weight: weight}
}

func (s *KeywordRelevanceScorer) Name() string { return "keyword_relevance" }

func (s *KeywordRelevanceScorer) Score(candidateURL, anchorText string) float64 {
	u, err := url.Parse(candidateURL)
	haystack := strings.ToLower(anchorText)
	if err == nil {
		haystack += " " + strings.ToLower(u.Path)
	} else {
		haystack += " " + strings.ToLower(candidateURL)
	}

	var hits float64
	for _, kw := range s.keywords {
		if kw != "" && strings.Contains(haystack, kw) {
			hits++
		}
	}
	return hits * s.weight
}

// PathDepthScorer rewards shorter paths, on the theory that top-level
// pages within a site are usually more relevant entry points.
type PathDepthScorer struct {
	weight float64
}

// NewPathDepthScorer builds a scorer that awards weight / (depth+1).
func NewPathDepthScorer(weight float64) *PathDepthScorer {
	if weight <= 0 {
		weight = 1
	}
	return &PathDepthScorer{weight: weight}
}

func (s *PathDepthScorer) Name() string { return "path_depth" }

func (s *PathDepthScorer) Score(candidateURL, _ string) float64 {
	u, err := url.Parse(candidateURL)
	if err != nil {
		return 0
	}
	depth := strings.Count(strings.Trim(u.Path, "/"), "/")
	return s.weight / float64(depth+1)
}

// weighted pairs a Scorer with the multiplier its raw score is scaled by
// before being summed into the composite.
type weighted struct {
	scorer Scorer
	weight float64
}

// Composite sums its components' weighted scores, optionally normalizing
// by the component count so adding more scorers doesn't inflate results.
type Composite struct {
	components []weighted
	normalize  bool
}

// NewComposite builds an empty composite scorer; use Add to attach weighted
// components.
func NewComposite(normalize bool) *Composite {
	return &Composite{normalize: normalize}
}

// Add appends another (scorer, weight) component.
func (c *Composite) Add(s Scorer, weight float64) *Composite {
	c.components = append(c.components, weighted{scorer: s, weight: weight})
	return c
}

func (c *Composite) Name() string { return "composite" }

func (c *Composite) Score(candidateURL, anchorText string) float64 {
	if len(c.components) == 0 {
		return 0
	}
	var sum float64
	for _, comp := range c.components {
		sum += comp.scorer.Score(candidateURL, anchorText) * comp.weight
	}
	if c.normalize {
		return sum / float64(len(c.components))
	}
	return sum
}
