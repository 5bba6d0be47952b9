package filter

import "testing"

func TestDomainFilter_ExactMatch(t *testing.T) {
	f := NewDomainFilter([]string{"example.com"}, false)

	if !f.Apply("https://example.com/a") {
		t.Error("expected exact domain match to pass")
	}
	if f.Apply("https://sub.example.com/a") {
		t.Error("expected subdomain to be rejected when allowSubdomains is false")
	}

	stats := f.Stats()
	if stats.Total != 2 || stats.Passed != 1 || stats.Rejected != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestDomainFilter_Subdomains(t *testing.T) {
	f := NewDomainFilter([]string{"example.com"}, true)
	if !f.Apply("https://blog.example.com/a") {
		t.Error("expected subdomain match to pass when allowSubdomains is true")
	}
}

func TestPatternFilter_RequireMatch(t *testing.T) {
	f, err := NewPatternFilter(`/articles/\d+`, false)
	if err != nil {
		t.Fatal(err)
	}
	if !f.Apply("https://example.com/articles/42") {
		t.Error("expected pattern match to pass")
	}
	if f.Apply("https://example.com/about") {
		t.Error("expected non-matching URL to be rejected")
	}
}

func TestPatternFilter_RejectMatch(t *testing.T) {
	f, err := NewPatternFilter(`/admin/`, true)
	if err != nil {
		t.Fatal(err)
	}
	if f.Apply("https://example.com/admin/secret") {
		t.Error("expected matching exclusion pattern to reject")
	}
	if !f.Apply("https://example.com/public") {
		t.Error("expected non-matching URL to pass")
	}
}

func TestContentTypeFilter(t *testing.T) {
	f := NewContentTypeFilter([]string{".html", ""})
	if !f.Apply("https://example.com/page.html") {
		t.Error("expected .html to pass")
	}
	if !f.Apply("https://example.com/page") {
		t.Error("expected extensionless path to pass")
	}
	if f.Apply("https://example.com/image.png") {
		t.Error("expected .png to be rejected")
	}
}

func TestChain_ShortCircuitsOnFirstRejection(t *testing.T) {
	domain := NewDomainFilter([]string{"example.com"}, false)
	pattern, _ := NewPatternFilter(`/blog/`, false)
	chain := NewChain(domain, pattern)

	if chain.Apply("https://other.com/blog/post") {
		t.Error("expected domain rejection to short-circuit the chain")
	}
	// pattern filter should not have been invoked (chain short-circuits),
	// so its total count stays at zero.
	if pattern.Stats().Total != 0 {
		t.Errorf("expected pattern filter to be skipped, got %d calls", pattern.Stats().Total)
	}

	if !chain.Apply("https://example.com/blog/post") {
		t.Error("expected both filters to pass for a matching in-domain blog URL")
	}
}
