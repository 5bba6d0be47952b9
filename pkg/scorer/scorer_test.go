package scorer

import "testing"

func TestKeywordRelevanceScorer(t *testing.T) {
	s := NewKeywordRelevanceScorer([]string{"golang", "concurrency"}, 2)

	got := s.Score("https://example.com/articles/golang-concurrency-patterns", "")
	if got != 4 {
		t.Errorf("expected score 4 (two keyword hits * weight 2), got %v", got)
	}

	if got := s.Score("https://example.com/articles/python", ""); got != 0 {
		t.Errorf("expected score 0 for no keyword hits, got %v", got)
	}
}

func TestKeywordRelevanceScorer_AnchorText(t *testing.T) {
	s := NewKeywordRelevanceScorer([]string{"pricing"}, 1)
	if got := s.Score("https://example.com/x", "See our Pricing page"); got != 1 {
		t.Errorf("expected anchor text match to score 1, got %v", got)
	}
}

func TestPathDepthScorer(t *testing.T) {
	s := NewPathDepthScorer(10)

	top := s.Score("https://example.com/", "")
	deep := s.Score("https://example.com/a/b/c", "")

	if top <= deep {
		t.Errorf("expected a shallower path to score higher: top=%v deep=%v", top, deep)
	}
}

func TestComposite_SumsWeightedScores(t *testing.T) {
	kw := NewKeywordRelevanceScorer([]string{"golang"}, 1)
	composite := NewComposite(false).Add(kw, 3)

	got := composite.Score("https://example.com/golang", "")
	if got != 3 {
		t.Errorf("expected weighted sum 3, got %v", got)
	}
}

func TestComposite_Normalizes(t *testing.T) {
	kw1 := NewKeywordRelevanceScorer([]string{"golang"}, 1)
	kw2 := NewKeywordRelevanceScorer([]string{"rust"}, 1)
	composite := NewComposite(true).Add(kw1, 1).Add(kw2, 1)

	// Only kw1 matches, contributing 1; normalized by 2 components -> 0.5.
	got := composite.Score("https://example.com/golang", "")
	if got != 0.5 {
		t.Errorf("expected normalized score 0.5, got %v", got)
	}
}
