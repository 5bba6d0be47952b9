// Package orchestrator implements the Crawl Orchestrator of spec.md §4.8:
// the single-URL and many-URL entry points that wire together the Browser
// Pool, Content Scraper, Markdown Generator, Extraction Strategy, Cache
// Context, and Dispatcher. Grounded on pkg/refyne.Refyne's
// fetch -> clean -> extract pipeline shape (pkg/refyne/refyne.go), adapted
// to the browser-backed fetch path and the richer Crawl Result.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jmylchreest/crawlcore/internal/logger"
	"github.com/jmylchreest/crawlcore/internal/memstat"
	"github.com/jmylchreest/crawlcore/pkg/browser"
	"github.com/jmylchreest/crawlcore/pkg/cache"
	"github.com/jmylchreest/crawlcore/pkg/crawlresult"
	"github.com/jmylchreest/crawlcore/pkg/extract"
	"github.com/jmylchreest/crawlcore/pkg/markdown"
	"github.com/jmylchreest/crawlcore/pkg/scrape"
)

// validSchemes are the URL schemes the orchestrator accepts (spec.md §4.8
// step 1). "raw" and "file" are accepted for parity with spec.md's
// contract even though the browser-backed Adapter only drives http/https
// navigations today; raw/file inputs fail later at fetch time with a
// Navigation error rather than at validation time.
var validSchemes = map[string]bool{
	"http":  true,
	"https": true,
	"file":  true,
	"raw":   true,
}

// ExtractionInputFormat selects which content representation feeds the
// Extraction Strategy.
const (
	ExtractionInputMarkdown    = "markdown"
	ExtractionInputFitMarkdown = "fit_markdown"
	ExtractionInputHTML        = "html"
)

// Orchestrator is the Crawl Orchestrator of spec.md §4.8.
type Orchestrator struct {
	pool          *browser.Pool
	browserConfig browser.Config

	cache  cache.Context
	robots RobotsChecker
	proxy  ProxyRotator

	extraction extract.Strategy
}

// Option configures an Orchestrator at construction time.
type Option func(*Orchestrator)

// WithCache attaches a Cache Context. Without one, every run behaves as if
// CacheMode were CacheModeDisabled.
func WithCache(c cache.Context) Option {
	return func(o *Orchestrator) { o.cache = c }
}

// WithRobotsChecker overrides the default robots.txt checker.
func WithRobotsChecker(r RobotsChecker) Option {
	return func(o *Orchestrator) { o.robots = r }
}

// WithProxyRotator attaches a proxy rotation strategy consulted on every
// run that has one configured.
func WithProxyRotator(p ProxyRotator) Option {
	return func(o *Orchestrator) { o.proxy = p }
}

// WithExtractionStrategy sets the Extraction Strategy that Run applies
// after markdown generation; once set, every run that reaches that step
// uses it, whatever the run's config says.
func WithExtractionStrategy(s extract.Strategy) Option {
	return func(o *Orchestrator) { o.extraction = s }
}

// New builds an Orchestrator with its own Browser Pool over
// defaultBrowserConfig. Callers must call Shutdown to release pool
// resources.
func New(defaultBrowserConfig browser.Config, reader memstat.Reader, opts ...Option) (*Orchestrator, error) {
	pool, err := browser.NewPool(defaultBrowserConfig, reader)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: create browser pool: %w", err)
	}

	o := &Orchestrator{
		pool:          pool,
		browserConfig: defaultBrowserConfig,
		robots:        NewRobotsChecker(nil),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Shutdown releases the Browser Pool's resources.
func (o *Orchestrator) Shutdown() error {
	return o.pool.Shutdown()
}

// CrawlOne implements dispatcher.Crawler, letting the Orchestrator drive
// both the Dispatcher variants and the Deep-Crawl Strategies.
func (o *Orchestrator) CrawlOne(ctx context.Context, rawURL string, cfg crawlresult.RunConfig) crawlresult.Result {
	return o.Run(ctx, rawURL, cfg)
}

// Run implements spec.md §4.8's single-URL contract: run(url, run_config)
// -> CrawlResult. It never panics or returns an error to the caller —
// every failure mode is converted into an unsuccessful Result, per the
// Failure semantics paragraph.
func (o *Orchestrator) Run(ctx context.Context, rawURL string, cfg crawlresult.RunConfig) crawlresult.Result {
	started := time.Now()

	// 1. Validate URL.
	parsed, err := url.Parse(rawURL)
	if rawURL == "" || err != nil || !validSchemes[parsed.Scheme] {
		return crawlresult.Fail(rawURL, crawlresult.ErrorKindValidation, "invalid URL: scheme must be one of http, https, file, raw")
	}

	// 2. Consult Cache Context. A cache hit only satisfies this request if
	// it already captured whatever artifacts cfg now asks for — e.g. a
	// screenshot-less cached Result can't stand in for a request with
	// Screenshot=true, per spec.md §4.8 step 2.
	if o.cache != nil && cfg.CacheMode.ShouldRead() {
		if cached, ok, err := o.cache.Get(ctx, rawURL); err == nil && ok {
			if cacheSatisfies(cached, cfg) {
				result := *cached
				result.SessionID = cfg.SessionID
				return result
			}
			logger.Debug("orchestrator: cached result missing requested artifacts, proceeding to fetch", "url", rawURL)
		} else if err != nil {
			logger.Debug("orchestrator: cache read failed, proceeding to fetch", "url", rawURL, "error", err)
		}
	}

	// 3. robots.txt.
	if cfg.CheckRobotsTxt && o.robots != nil {
		ua := effectiveUserAgent(cfg, o.browserConfig)
		allowed, err := o.robots.Allowed(ctx, ua, rawURL)
		if err != nil {
			logger.Debug("orchestrator: robots.txt check failed, allowing", "url", rawURL, "error", err)
		} else if !allowed {
			result := crawlresult.Fail(rawURL, crawlresult.ErrorKindRobots, "Access denied by robots.txt")
			result.StatusCode = 403
			return result
		}
	}

	// 4. Proxy rotation.
	browserCfg := o.browserConfig
	if o.proxy != nil {
		proxy, err := o.proxy.Next(ctx)
		if err != nil {
			logger.Debug("orchestrator: proxy rotation failed, continuing without a proxy", "url", rawURL, "error", err)
		} else if proxy != nil {
			browserCfg.Proxy = proxy
		}
	}

	// 5. Acquire an Engine Adapter.
	if o.pool == nil {
		return crawlresult.Fail(rawURL, crawlresult.ErrorKindPoolExhaust, "no browser pool configured")
	}
	adapter, err := o.pool.Acquire(ctx, browserCfg)
	if err != nil {
		return crawlresult.Fail(rawURL, crawlresult.ErrorKindPoolExhaust, err.Error())
	}

	// 6. Fetch.
	fetchResp, err := adapter.Fetch(ctx, rawURL, cfg)
	if err != nil {
		result := fetchFailure(rawURL, err)
		result.SessionID = cfg.SessionID
		return result
	}

	// 7. Scraper -> Markdown Generator -> Extraction Strategy.
	cleanedHTML, media, links, err := scrape.Scrape(fetchResp.HTML, rawURL, scrape.OptionsFromRunConfig(cfg))
	if err != nil {
		logger.Debug("orchestrator: scrape failed, using raw HTML", "url", rawURL, "error", err)
		cleanedHTML = fetchResp.HTML
	}

	bundle := markdown.Generate(fetchResp.HTML, cleanedHTML, rawURL, markdown.OptionsFromRunConfig(cfg))

	result := crawlresult.Result{
		URL:             rawURL,
		RedirectedURL:   fetchResp.RedirectedURL,
		StatusCode:      fetchResp.StatusCode,
		ResponseHeaders: fetchResp.Headers,
		Success:         true,
		RawHTML:         fetchResp.HTML,
		CleanedHTML:     cleanedHTML,
		Media:           media,
		Links:           links,
		Markdown:        bundle,
		Screenshot:      fetchResp.Screenshot,
		PDF:             fetchResp.PDF,
		SSLCertificate:  fetchResp.SSLCertificate,
		ConsoleLog:      fetchResp.ConsoleLog,
		NetworkLog:      fetchResp.NetworkLog,
		SessionID:       cfg.SessionID,
		FetchedAt:       started,
	}

	if fetchResp.ChallengeDetected != "" {
		result.Warnings = append(result.Warnings, "anti-bot challenge detected: "+fetchResp.ChallengeDetected)
	}

	if o.extraction != nil {
		o.extract(ctx, &result, cfg)
	}

	// 8. Cache write.
	if o.cache != nil && cfg.CacheMode.ShouldWrite() {
		if err := o.cache.Put(ctx, &result); err != nil {
			logger.Debug("orchestrator: cache write failed", "url", rawURL, "error", err)
		}
	}

	// 9. Return.
	return result
}

// extract runs the configured Extraction Strategy against the content
// source cfg.ExtractionInputFormat names, chunking first when requested.
// Extraction failures are recorded as warnings rather than failing the
// whole Result, consistent with the Failure semantics paragraph.
func (o *Orchestrator) extract(ctx context.Context, result *crawlresult.Result, cfg crawlresult.RunConfig) {
	content, warning := selectExtractionContent(*result, cfg)
	if warning != "" {
		result.Warnings = append(result.Warnings, warning)
	}
	if content == "" {
		return
	}

	sections := []string{content}
	if cfg.ApplyChunking {
		sections = extract.Chunk(content, extract.ChunkOptions{
			MaxTokens:     cfg.ChunkTokenThreshold,
			OverlapRate:   cfg.ChunkOverlapRate,
			WordTokenRate: 0,
		})
	}

	records, err := o.extraction.Run(ctx, result.URL, sections)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("extraction failed: %v", err))
		return
	}

	data, err := marshalExtraction(records)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("extraction result marshal failed: %v", err))
		return
	}
	result.Extraction = data
}

// selectExtractionContent picks the content source named by
// cfg.ExtractionInputFormat. When it is fit_markdown but the bundle has no
// filtered markdown, fall back to raw markdown and return a warning, per
// spec.md §4.8 step 7.
func selectExtractionContent(result crawlresult.Result, cfg crawlresult.RunConfig) (content, warning string) {
	switch cfg.ExtractionInputFormat {
	case ExtractionInputHTML:
		return result.CleanedHTML, ""
	case ExtractionInputFitMarkdown:
		if result.Markdown.FitMarkdown != "" {
			return result.Markdown.FitMarkdown, ""
		}
		return result.Markdown.RawMarkdown, "fit_markdown requested but unavailable; falling back to raw_markdown"
	default:
		return result.Markdown.MarshalFlat(), ""
	}
}

// fetchFailure classifies an Adapter.Fetch error into the matching
// ErrorKind, per spec.md §7.
func fetchFailure(rawURL string, err error) crawlresult.Result {
	kind := crawlresult.ErrorKindNavigation
	if ce, ok := err.(*crawlresult.CrawlError); ok {
		kind = ce.Kind
	} else if errors.Is(err, context.DeadlineExceeded) {
		kind = crawlresult.ErrorKindTimeout
	} else if errors.Is(err, context.Canceled) {
		kind = crawlresult.ErrorKindCancelled
	}
	return crawlresult.Fail(rawURL, kind, err.Error())
}

// marshalExtraction encodes extracted records as the Result.Extraction
// json.RawMessage.
func marshalExtraction(records []map[string]any) (json.RawMessage, error) {
	if len(records) == 0 {
		return nil, nil
	}
	return json.Marshal(records)
}

// effectiveUserAgent resolves the user agent a robots.txt check should
// consult: the run config's override, else the browser config's.
func effectiveUserAgent(cfg crawlresult.RunConfig, browserCfg browser.Config) string {
	if cfg.UserAgent != "" {
		return cfg.UserAgent
	}
	return browserCfg.UserAgent
}

// cacheSatisfies reports whether a cached Result can stand in for a fresh
// fetch under cfg: it must already be successful, and must already carry
// any capture artifact cfg now requests.
func cacheSatisfies(cached *crawlresult.Result, cfg crawlresult.RunConfig) bool {
	if !cached.Success {
		return false
	}
	if cfg.Screenshot && len(cached.Screenshot) == 0 {
		return false
	}
	if cfg.PDF && len(cached.PDF) == 0 {
		return false
	}
	return true
}
