package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/jmylchreest/crawlcore/pkg/browser"
	"github.com/jmylchreest/crawlcore/pkg/crawlresult"
)

type fakeCache struct {
	get    *crawlresult.Result
	getOK  bool
	getErr error
	puts   []crawlresult.Result
}

func (c *fakeCache) Get(ctx context.Context, url string) (*crawlresult.Result, bool, error) {
	return c.get, c.getOK, c.getErr
}

func (c *fakeCache) Put(ctx context.Context, result *crawlresult.Result) error {
	c.puts = append(c.puts, *result)
	return nil
}

type fakeRobots struct {
	allowed bool
	err     error
}

func (r *fakeRobots) Allowed(ctx context.Context, userAgent, rawURL string) (bool, error) {
	return r.allowed, r.err
}

func TestRun_RejectsInvalidURL(t *testing.T) {
	o := &Orchestrator{}
	result := o.Run(context.Background(), "not a url with spaces and no scheme", crawlresult.RunConfig{})
	if result.Success {
		t.Fatal("expected failure for an invalid URL")
	}
	if result.ErrorKind != crawlresult.ErrorKindValidation {
		t.Errorf("ErrorKind = %v", result.ErrorKind)
	}
}

func TestRun_RejectsUnsupportedScheme(t *testing.T) {
	o := &Orchestrator{}
	result := o.Run(context.Background(), "ftp://example.com/file", crawlresult.RunConfig{})
	if result.Success || result.ErrorKind != crawlresult.ErrorKindValidation {
		t.Errorf("expected validation failure, got %+v", result)
	}
}

func TestRun_ReturnsCachedResultOnHit(t *testing.T) {
	cached := &crawlresult.Result{URL: "https://example.com", Success: true, RawHTML: "<p>cached</p>"}
	o := &Orchestrator{cache: &fakeCache{get: cached, getOK: true}}

	cfg := crawlresult.RunConfig{CacheMode: crawlresult.CacheModeEnabled, SessionID: "abc"}
	result := o.Run(context.Background(), "https://example.com", cfg)

	if result.RawHTML != "<p>cached</p>" {
		t.Errorf("expected cached HTML, got %q", result.RawHTML)
	}
	if result.SessionID != "abc" {
		t.Errorf("expected session id to be injected onto the cached result, got %q", result.SessionID)
	}
}

func TestRun_BlocksOnRobotsDisallow(t *testing.T) {
	o := &Orchestrator{robots: &fakeRobots{allowed: false}}
	cfg := crawlresult.RunConfig{CheckRobotsTxt: true}

	result := o.Run(context.Background(), "https://example.com", cfg)
	if result.Success {
		t.Fatal("expected robots.txt to block the crawl")
	}
	if result.ErrorKind != crawlresult.ErrorKindRobots {
		t.Errorf("ErrorKind = %v", result.ErrorKind)
	}
	if result.StatusCode != 403 {
		t.Errorf("StatusCode = %d, want 403", result.StatusCode)
	}
}

func TestRun_AllowsWhenRobotsCheckErrors(t *testing.T) {
	// An erroring robots checker must not block the crawl (spec.md §9:
	// unreachable robots.txt is treated as allow); Run logs and proceeds,
	// which here means it reaches the adapter-acquire step and fails there
	// (no pool is configured) instead of returning a RobotsBlocked result.
	o := &Orchestrator{robots: &fakeRobots{allowed: false, err: errors.New("dns failure")}}
	cfg := crawlresult.RunConfig{CheckRobotsTxt: true}

	result := o.Run(context.Background(), "https://example.com", cfg)
	if result.ErrorKind == crawlresult.ErrorKindRobots {
		t.Error("expected the crawl to proceed past a failed robots.txt check")
	}
}

func TestSelectExtractionContent_FallsBackFromFitMarkdown(t *testing.T) {
	result := crawlresult.Result{
		Markdown: crawlresult.MarkdownBundle{RawMarkdown: "raw"},
	}
	content, warning := selectExtractionContent(result, crawlresult.RunConfig{ExtractionInputFormat: ExtractionInputFitMarkdown})
	if content != "raw" {
		t.Errorf("content = %q", content)
	}
	if warning == "" {
		t.Error("expected a fallback warning")
	}
}

func TestSelectExtractionContent_UsesFitMarkdownWhenAvailable(t *testing.T) {
	result := crawlresult.Result{
		Markdown: crawlresult.MarkdownBundle{RawMarkdown: "raw", FitMarkdown: "fit"},
	}
	content, warning := selectExtractionContent(result, crawlresult.RunConfig{ExtractionInputFormat: ExtractionInputFitMarkdown})
	if content != "fit" || warning != "" {
		t.Errorf("content = %q, warning = %q", content, warning)
	}
}

func TestSelectExtractionContent_HTML(t *testing.T) {
	result := crawlresult.Result{CleanedHTML: "<p>hi</p>"}
	content, _ := selectExtractionContent(result, crawlresult.RunConfig{ExtractionInputFormat: ExtractionInputHTML})
	if content != "<p>hi</p>" {
		t.Errorf("content = %q", content)
	}
}

func TestFetchFailure_ClassifiesCrawlError(t *testing.T) {
	err := crawlresult.NewError(crawlresult.ErrorKindTimeout, "page timeout", nil)
	result := fetchFailure("https://example.com", err)
	if result.ErrorKind != crawlresult.ErrorKindTimeout {
		t.Errorf("ErrorKind = %v", result.ErrorKind)
	}
}

func TestFetchFailure_ClassifiesContextErrors(t *testing.T) {
	result := fetchFailure("https://example.com", context.DeadlineExceeded)
	if result.ErrorKind != crawlresult.ErrorKindTimeout {
		t.Errorf("ErrorKind = %v", result.ErrorKind)
	}

	result = fetchFailure("https://example.com", context.Canceled)
	if result.ErrorKind != crawlresult.ErrorKindCancelled {
		t.Errorf("ErrorKind = %v", result.ErrorKind)
	}
}

func TestEffectiveUserAgent_PrefersRunConfigOverride(t *testing.T) {
	cfg := crawlresult.RunConfig{UserAgent: "custom-ua"}
	got := effectiveUserAgent(cfg, browser.Config{UserAgent: "browser-ua"})
	if got != "custom-ua" {
		t.Errorf("got %q", got)
	}
}
