package browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/jmylchreest/crawlcore/internal/logger"
	"github.com/jmylchreest/crawlcore/pkg/crawlresult"
)

// Tier identifies which pool tier currently owns an Adapter.
type Tier int32

const (
	TierCold Tier = iota
	TierHot
	TierPermanent
)

// session is one entry in an Adapter's per-session table, mapping a
// sticky session id to the (context, page) tuple it was allocated on.
type session struct {
	ctx      context.Context
	cancel   context.CancelFunc
	lastUsed time.Time
}

// FetchResponse is the Engine Adapter's AsyncCrawlResponse (spec.md §4.2):
// the final HTML, navigation metadata, and whatever optional captures the
// caller requested.
type FetchResponse struct {
	URL           string
	RedirectedURL string
	StatusCode    int
	Headers       map[string]string
	HTML          string
	Title         string

	Screenshot []byte
	PDF        []byte
	MHTML      []byte

	ConsoleLog []string
	NetworkLog []string

	SSLCertificate *crawlresult.SSLCertSummary

	// ChallengeDetected names the anti-bot challenge type (e.g. "cloudflare",
	// "recaptcha") detectChallengePage recognized in the returned page, or ""
	// if none. A non-empty value does not make the fetch a failure — the page
	// still loaded and HTML is still returned — it is surfaced to the caller
	// as Result metadata (spec.md §3: "no bypass logic").
	ChallengeDetected string
}

// Adapter owns a single browser process plus its default context
// (spec.md §3 "Engine Adapter"). It is exclusively owned by the Pool,
// which is responsible for tier bookkeeping (LastUsed, UseCount, Tier) —
// Adapter itself only drives fetches and the session table.
type Adapter struct {
	signature string
	config    Config

	allocCtx  context.Context
	cancelAll context.CancelFunc

	// browserCtx is a long-lived default chromedp context new pages are
	// created under when no sticky session applies.
	browserCtx context.Context
	cancelBr   context.CancelFunc

	hooks *hookSet

	sessionsMu sync.Mutex
	sessions   map[string]*session

	tier     atomic.Int32
	useCount atomic.Int64
	lastUsed atomic.Int64 // unix nano
	inUse    atomic.Bool
}

// NewAdapter launches (or attaches to) a browser per cfg and returns a
// ready-to-use Adapter. Grounded on cmd/refyne/fetcher/dynamic.go's
// NewDynamicFetcher allocator construction.
func NewAdapter(cfg Config) (*Adapter, error) {
	sig := Signature(cfg)

	var opts []chromedp.ExecAllocatorOption
	opts = append(opts, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(orDefault(cfg.ViewportWidth, 1920), orDefault(cfg.ViewportHeight, 1080)),
	)
	if cfg.Stealth {
		opts = append(opts, stealthExecAllocatorOptions()...)
	}
	if cfg.TextMode {
		opts = append(opts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	for _, arg := range cfg.ExtraArgs {
		opts = append(opts, chromedp.Flag(arg, true))
	}
	if path := findChromePath(); path != "" {
		opts = append(opts, chromedp.ExecPath(path))
	}
	opts = append(opts, chromedp.UserAgent(cfg.resolvedUserAgent()))
	if cfg.Proxy != nil && cfg.Proxy.Server != "" {
		opts = append(opts, chromedp.ProxyServer(cfg.Proxy.Server))
	}

	var allocCtx context.Context
	var cancelAlloc context.CancelFunc
	if cfg.Mode == ModeAttach && cfg.AttachEndpoint != "" {
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(context.Background(), cfg.AttachEndpoint)
	} else {
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(context.Background(), opts...)
	}

	browserCtx, cancelBr := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			logger.Debug("chromedp", "msg", fmt.Sprintf(format, args...))
		}),
	)
	// Force the browser process to actually start so acquire() failures
	// surface immediately rather than on first fetch.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBr()
		cancelAlloc()
		return nil, crawlresult.NewError(crawlresult.ErrorKindPoolExhaust, "failed to launch browser", err)
	}

	a := &Adapter{
		signature:  sig,
		config:     cfg,
		allocCtx:   allocCtx,
		cancelAll:  cancelAlloc,
		browserCtx: browserCtx,
		cancelBr:   cancelBr,
		hooks:      newHookSet(),
		sessions:   make(map[string]*session),
	}
	a.lastUsed.Store(time.Now().UnixNano())
	return a, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Signature is the config signature this adapter was created from.
func (a *Adapter) Signature() string { return a.signature }

// LastUsed returns the last time this adapter served a fetch.
func (a *Adapter) LastUsed() time.Time {
	return time.Unix(0, a.lastUsed.Load())
}

// UseCount returns the cumulative number of acquisitions.
func (a *Adapter) UseCount() int64 { return a.useCount.Load() }

// Tier returns the adapter's current pool tier.
func (a *Adapter) Tier() Tier { return Tier(a.tier.Load()) }

// SetTier is called by the Pool when promoting/demoting this adapter.
func (a *Adapter) SetTier(t Tier) { a.tier.Store(int32(t)) }

// touch records a fresh acquisition: bumps the use counter and last-used
// timestamp. Called by the Pool on every acquire.
func (a *Adapter) touch() {
	a.useCount.Add(1)
	a.lastUsed.Store(time.Now().UnixNano())
}

// RegisterHook adds fn under the given extension point.
func (a *Adapter) RegisterHook(phase HookPhase, fn Hook) {
	a.hooks.Register(phase, fn)
}

// pageContext returns the chromedp context to run a fetch under: a sticky
// session's context if run_config.SessionID matches an existing entry,
// otherwise a fresh page context spun off the adapter's browser context
// (spec.md §4.2 step 1).
func (a *Adapter) pageContext(cfg crawlresult.RunConfig) (context.Context, bool) {
	if cfg.SessionID == "" {
		ctx, _ := chromedp.NewContext(a.browserCtx)
		return ctx, false
	}

	a.sessionsMu.Lock()
	defer a.sessionsMu.Unlock()

	if s, ok := a.sessions[cfg.SessionID]; ok {
		s.lastUsed = time.Now()
		return s.ctx, true
	}

	ctx, cancel := chromedp.NewContext(a.browserCtx)
	a.sessions[cfg.SessionID] = &session{ctx: ctx, cancel: cancel, lastUsed: time.Now()}
	return ctx, true
}

// EvictIdleSessions closes and removes sessions idle past SessionTTL.
func (a *Adapter) EvictIdleSessions(now time.Time) {
	a.sessionsMu.Lock()
	defer a.sessionsMu.Unlock()
	for id, s := range a.sessions {
		if now.Sub(s.lastUsed) > SessionTTL {
			s.cancel()
			delete(a.sessions, id)
		}
	}
}

// Fetch drives one page through the operations of spec.md §4.2, in order.
func (a *Adapter) Fetch(ctx context.Context, targetURL string, cfg crawlresult.RunConfig) (FetchResponse, error) {
	a.touch()

	pageCtx, isSession := a.pageContext(cfg)

	timeout := cfg.PageTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	timeoutCtx, cancel := context.WithTimeout(pageCtx, timeout)
	defer cancel()

	resp := FetchResponse{URL: targetURL, Headers: make(map[string]string)}

	if err := a.hooks.run(timeoutCtx, HookPageContextCreated, map[string]any{"url": targetURL}); err != nil {
		return resp, crawlresult.NewError(crawlresult.ErrorKindInteraction, "on_page_context_created hook failed", err)
	}

	var statusCode int64
	var respHeaders network.Headers
	var networkLog []string
	var consoleLog []string
	var mu sync.Mutex
	chromedp.ListenTarget(timeoutCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventResponseReceived:
			mu.Lock()
			if e.Type == "Document" {
				statusCode = e.Response.Status
				respHeaders = e.Response.Headers
			}
			if cfg.CaptureNetwork {
				networkLog = append(networkLog, fmt.Sprintf("%d %s", e.Response.Status, e.Response.URL))
			}
			mu.Unlock()
		case *runtime.EventConsoleAPICalled:
			if cfg.CaptureConsole {
				mu.Lock()
				consoleLog = append(consoleLog, consoleEntrySummary(e))
				mu.Unlock()
			}
		}
	})

	actions := []chromedp.Action{}

	if cfg.UserAgent != "" {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			return network.SetUserAgentOverride(cfg.UserAgent).Do(ctx)
		}))
		if err := a.hooks.run(timeoutCtx, HookUserAgentUpdated, map[string]any{"user_agent": cfg.UserAgent}); err != nil {
			return resp, crawlresult.NewError(crawlresult.ErrorKindInteraction, "on_user_agent_updated hook failed", err)
		}
	}
	if len(cfg.ExtraHeaders) > 0 {
		hdrs := network.Headers{}
		for k, v := range cfg.ExtraHeaders {
			hdrs[k] = v
		}
		actions = append(actions, network.SetExtraHTTPHeaders(hdrs))
	}
	if len(cfg.Cookies) > 0 {
		actions = append(actions, setCookies(targetURL, cfg.Cookies))
	}
	if a.config.Stealth {
		actions = append(actions, injectStealthScript())
	}

	if err := a.hooks.run(timeoutCtx, HookExecutionStarted, map[string]any{"url": targetURL}); err != nil {
		return resp, crawlresult.NewError(crawlresult.ErrorKindInteraction, "on_execution_started hook failed", err)
	}

	if !cfg.JSOnly {
		if err := a.hooks.run(timeoutCtx, HookBeforeGoto, map[string]any{"url": targetURL}); err != nil {
			return resp, crawlresult.NewError(crawlresult.ErrorKindInteraction, "before_goto hook failed", err)
		}
		actions = append(actions, chromedp.Navigate(targetURL))
		actions = append(actions, waitUntilAction(cfg.WaitUntil))
	}

	for _, snippet := range cfg.JSSnippets {
		snippet := snippet
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			return chromedp.Evaluate(snippet, nil).Do(ctx)
		}))
	}

	if cfg.ScanFullPage {
		actions = append(actions, scrollFullPage())
	}
	if cfg.RemoveOverlays {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			return chromedp.Evaluate(removeOverlaysScript, nil).Do(ctx)
		}))
	}
	if cfg.SimulateUser {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			return chromedp.Evaluate(`window.scrollBy(0, Math.floor(window.innerHeight/3))`, nil).Do(ctx)
		}))
	}
	if cfg.WaitForBodyShown {
		actions = append(actions, chromedp.WaitReady("body", chromedp.ByQuery))
	}

	if cfg.WaitFor != "" {
		actions = append(actions, chromedp.WaitVisible(cfg.WaitFor, chromedp.ByQuery))
	}
	if cfg.WaitForTimeout > 0 && cfg.WaitFor == "" {
		actions = append(actions, chromedp.Sleep(cfg.WaitForTimeout))
	}

	if err := a.hooks.run(timeoutCtx, HookBeforeRetrieveHTML, map[string]any{"url": targetURL}); err != nil {
		return resp, crawlresult.NewError(crawlresult.ErrorKindInteraction, "before_retrieve_html hook failed", err)
	}

	var html, title, currentURL string
	actions = append(actions,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Title(&title),
		chromedp.Location(&currentURL),
	)

	if cfg.Screenshot {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			data, err := chromedpFullScreenshot(ctx)
			if err != nil {
				return err
			}
			resp.Screenshot = data
			return nil
		}))
	}
	if cfg.PDF {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().Do(ctx)
			if err != nil {
				return err
			}
			resp.PDF = data
			return nil
		}))
	}
	if cfg.MHTML {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			data, err := page.CaptureSnapshot().Do(ctx)
			if err != nil {
				return err
			}
			resp.MHTML = []byte(data)
			return nil
		}))
	}

	if err := chromedp.Run(timeoutCtx, actions...); err != nil {
		if screenshot := captureScreenshotOnError(pageCtx); screenshot != nil {
			logger.Debug("captured debug screenshot on fetch failure", "url", targetURL, "bytes", len(screenshot))
		}
		if timeoutCtx.Err() != nil {
			return resp, crawlresult.NewError(crawlresult.ErrorKindTimeout, "page fetch timed out", err)
		}
		return resp, crawlresult.NewError(crawlresult.ErrorKindNavigation, "browser navigation failed", err)
	}

	if err := a.hooks.run(timeoutCtx, HookBeforeReturnHTML, map[string]any{"url": targetURL, "html": html}); err != nil {
		return resp, crawlresult.NewError(crawlresult.ErrorKindInteraction, "before_return_html hook failed", err)
	}

	mu.Lock()
	resp.StatusCode = int(statusCode)
	for k, v := range respHeaders {
		resp.Headers[k] = fmt.Sprintf("%v", v)
	}
	resp.NetworkLog = networkLog
	resp.ConsoleLog = consoleLog
	mu.Unlock()
	if resp.StatusCode == 0 {
		resp.StatusCode = 200
	}

	resp.HTML = html
	resp.Title = title
	resp.RedirectedURL = currentURL
	if resp.RedirectedURL == "" {
		resp.RedirectedURL = targetURL
	}

	if challenge := detectChallengePage(title, html); challenge != "" {
		logger.Warn("challenge page detected", "url", targetURL, "type", challenge)
		resp.ChallengeDetected = challenge
	}

	if isSession {
		if err := a.hooks.run(timeoutCtx, HookAfterGoto, map[string]any{"url": targetURL}); err != nil {
			return resp, crawlresult.NewError(crawlresult.ErrorKindInteraction, "after_goto hook failed", err)
		}
	}

	return resp, nil
}

// Close cancels the adapter's browser and allocator contexts, and any
// outstanding sessions.
func (a *Adapter) Close() error {
	a.sessionsMu.Lock()
	for id, s := range a.sessions {
		s.cancel()
		delete(a.sessions, id)
	}
	a.sessionsMu.Unlock()

	if a.cancelBr != nil {
		a.cancelBr()
	}
	if a.cancelAll != nil {
		a.cancelAll()
	}
	return nil
}

// waitUntilAction maps a WaitUntil policy onto a concrete chromedp action.
// chromedp has no native "networkidle" wait; it is approximated with a
// short settle delay after DOM-ready, matching the teacher's own
// WaitReady("body") default (dynamic.go: "WaitVisible has a bug causing
// infinite polling").
func waitUntilAction(w crawlresult.WaitUntil) chromedp.Action {
	switch w {
	case crawlresult.WaitUntilNetworkIdle:
		return chromedp.ActionFunc(func(ctx context.Context) error {
			if err := chromedp.WaitReady("body", chromedp.ByQuery).Do(ctx); err != nil {
				return err
			}
			return chromedp.Sleep(500 * time.Millisecond).Do(ctx)
		})
	default:
		return chromedp.WaitReady("body", chromedp.ByQuery)
	}
}

const removeOverlaysScript = `
(function() {
    var sel = ['[class*="overlay"]','[class*="modal"]','[id*="cookie"]','[class*="cookie-banner"]'];
    sel.forEach(function(s){
        document.querySelectorAll(s).forEach(function(el){ el.remove(); });
    });
})();
`

// scrollFullPage incrementally scrolls to the bottom of the page so
// lazily-loaded content below the fold renders before capture.
func scrollFullPage() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var height int64
		if err := chromedp.Evaluate(`document.body.scrollHeight`, &height).Do(ctx); err != nil {
			return err
		}
		const step = 1000
		for y := int64(0); y < height; y += step {
			if err := chromedp.Evaluate(fmt.Sprintf(`window.scrollTo(0, %d)`, y), nil).Do(ctx); err != nil {
				return err
			}
			if err := chromedp.Sleep(100 * time.Millisecond).Do(ctx); err != nil {
				return err
			}
		}
		return chromedp.Evaluate(`window.scrollTo(0, 0)`, nil).Do(ctx)
	})
}

// chromedpFullScreenshot captures a full-page screenshot (JPEG quality 90)
// with chromedp.FullScreenshot. A capture error is returned as is; there is
// no viewport-sized fallback.
func chromedpFullScreenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := chromedp.FullScreenshot(&buf, 90).Do(ctx)
	return buf, err
}

// setCookies returns a chromedp action that seeds cookies before navigation.
func setCookies(targetURL string, cookies []crawlresult.Cookie) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		u, err := url.Parse(targetURL)
		if err != nil {
			return fmt.Errorf("parsing URL for cookies: %w", err)
		}

		var params []*network.CookieParam
		for _, c := range cookies {
			domain := c.Domain
			if domain == "" {
				domain = u.Host
			}
			params = append(params, &network.CookieParam{
				Name:   c.Name,
				Value:  c.Value,
				Domain: domain,
				Path:   "/",
				Secure: u.Scheme == "https",
			})
		}
		return network.SetCookies(params).Do(ctx)
	})
}

// consoleEntrySummary renders one Runtime.consoleAPICalled event as a
// single log line: level plus the string representation of each argument.
func consoleEntrySummary(e *runtime.EventConsoleAPICalled) string {
	var parts []string
	for _, arg := range e.Args {
		if arg.Value != nil {
			parts = append(parts, string(arg.Value))
		} else if arg.Description != "" {
			parts = append(parts, arg.Description)
		}
	}
	return fmt.Sprintf("[%s] %s", e.Type, strings.Join(parts, " "))
}

// detectChallengePage checks the page title and HTML for markers of a
// bot-detection or CAPTCHA challenge page, returning a short label
// identifying the challenge type, or "" if none is detected. This is
// diagnostic metadata only (SPEC_FULL.md §3) — it never blocks or retries
// the fetch itself, since anti-bot evasion is explicitly a non-goal.
func detectChallengePage(title, html string) string {
	titleLower := strings.ToLower(title)
	htmlLower := strings.ToLower(html)

	switch {
	case strings.Contains(titleLower, "just a moment"),
		strings.Contains(titleLower, "attention required"),
		strings.Contains(htmlLower, "cf-challenge"),
		strings.Contains(htmlLower, "cf_chl_opt"):
		return "cloudflare"
	case strings.Contains(htmlLower, "challenges.cloudflare.com/turnstile"),
		strings.Contains(htmlLower, "cf-turnstile"):
		return "cloudflare-turnstile"
	case strings.Contains(htmlLower, "hcaptcha.com"), strings.Contains(htmlLower, "h-captcha"):
		return "hcaptcha"
	case strings.Contains(htmlLower, "google.com/recaptcha"), strings.Contains(htmlLower, "g-recaptcha"):
		return "recaptcha"
	case strings.Contains(titleLower, "access denied"),
		strings.Contains(titleLower, "blocked"),
		strings.Contains(htmlLower, "robot or human"):
		return "anti-bot"
	default:
		return ""
	}
}
