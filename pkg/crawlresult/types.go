package crawlresult

import (
	"encoding/json"
	"time"
)

// CacheMode controls how the orchestrator consults the Cache Context.
type CacheMode string

const (
	CacheModeEnabled  CacheMode = "enabled"   // read and write
	CacheModeDisabled CacheMode = "disabled"  // neither read nor write
	CacheModeReadOnly CacheMode = "read_only" // read only, never write
	CacheModeWriteOnly CacheMode = "write_only"
	CacheModeBypass   CacheMode = "bypass" // write but don't read (force refresh)
)

// ShouldRead reports whether the cache should be consulted before fetching.
func (m CacheMode) ShouldRead() bool {
	return m == CacheModeEnabled || m == CacheModeReadOnly
}

// ShouldWrite reports whether a fresh result should be persisted.
func (m CacheMode) ShouldWrite() bool {
	return m == CacheModeEnabled || m == CacheModeWriteOnly || m == CacheModeBypass
}

// MarkdownSource selects which HTML representation feeds the markdown
// generator and, transitively, extraction strategies that accept markdown.
type MarkdownSource string

const (
	MarkdownSourceRaw     MarkdownSource = "raw_html"
	MarkdownSourceCleaned MarkdownSource = "cleaned_html"
	MarkdownSourceFit     MarkdownSource = "fit_html"
)

// WaitUntil mirrors the navigation-completion policies CDP exposes.
type WaitUntil string

const (
	WaitUntilLoad            WaitUntil = "load"
	WaitUntilDOMContentLoaded WaitUntil = "domcontentloaded"
	WaitUntilNetworkIdle     WaitUntil = "networkidle"
)

// RunConfig holds the per-request knobs described in spec.md §3. It is a
// value: callers clone it (Clone) whenever a subsystem needs to disable
// deep-crawl recursion or force single-URL semantics.
type RunConfig struct {
	CacheMode CacheMode `json:"cache_mode,omitempty"`
	SessionID string    `json:"session_id,omitempty"`

	WaitFor      string        `json:"wait_for,omitempty"`
	WaitUntil    WaitUntil     `json:"wait_until,omitempty"`
	PageTimeout  time.Duration `json:"page_timeout,omitempty"`
	WaitForTimeout time.Duration `json:"wait_for_timeout,omitempty"`

	JSSnippets []string `json:"js_snippets,omitempty"`
	JSOnly     bool     `json:"js_only,omitempty"`

	ScanFullPage     bool `json:"scan_full_page,omitempty"`
	RemoveOverlays   bool `json:"remove_overlays,omitempty"`
	InlineIframes    bool `json:"inline_iframes,omitempty"`
	SimulateUser     bool `json:"simulate_user,omitempty"`
	WaitForBodyShown bool `json:"wait_for_body_visible,omitempty"`

	Screenshot       bool `json:"screenshot,omitempty"`
	ScreenshotHeightThreshold int `json:"screenshot_height_threshold,omitempty"`
	PDF              bool `json:"pdf,omitempty"`
	MHTML            bool `json:"mhtml,omitempty"`
	CaptureConsole   bool `json:"capture_console,omitempty"`
	CaptureNetwork   bool `json:"capture_network,omitempty"`

	CSSSelector        string   `json:"css_selector,omitempty"`
	TargetElements     []string `json:"target_elements,omitempty"`
	ExcludedTags       []string `json:"excluded_tags,omitempty"`
	KeepAttributes     []string `json:"keep_attributes,omitempty"`
	ImageScoreThreshold int     `json:"image_score_threshold,omitempty"`
	TableScoreThreshold int     `json:"table_score_threshold,omitempty"`

	MarkdownSource   MarkdownSource `json:"markdown_source,omitempty"`
	GenerateCitations bool          `json:"generate_citations,omitempty"`

	ChunkTokenThreshold int     `json:"chunk_token_threshold,omitempty"`
	ChunkOverlapRate    float64 `json:"chunk_overlap_rate,omitempty"`
	ApplyChunking       bool    `json:"apply_chunking,omitempty"`

	ExtractionInputFormat string `json:"extraction_input_format,omitempty"` // "markdown" | "fit_markdown" | "html"

	// Streaming requests RunMany deliver results in completion order.
	Stream bool `json:"stream,omitempty"`

	CheckRobotsTxt bool `json:"check_robots_txt,omitempty"`
	UserAgent      string `json:"user_agent,omitempty"`
	ExtraHeaders   map[string]string `json:"extra_headers,omitempty"`
	Cookies        []Cookie `json:"cookies,omitempty"`

	LinkExclusionPatterns []string `json:"link_exclusion_patterns,omitempty"`

	// deepCrawlGuard is set internally by the orchestrator to prevent a
	// deep-crawl strategy's single-URL calls from re-entering itself. It is
	// never serialized and must not be set by callers directly; use
	// WithDeepCrawlDisabled.
	deepCrawlGuard bool
}

// Cookie is a cookie to inject before navigation.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
}

// Clone returns a deep-enough copy of the config for independent mutation.
func (c RunConfig) Clone() RunConfig {
	clone := c
	if c.JSSnippets != nil {
		clone.JSSnippets = append([]string(nil), c.JSSnippets...)
	}
	if c.TargetElements != nil {
		clone.TargetElements = append([]string(nil), c.TargetElements...)
	}
	if c.ExcludedTags != nil {
		clone.ExcludedTags = append([]string(nil), c.ExcludedTags...)
	}
	if c.KeepAttributes != nil {
		clone.KeepAttributes = append([]string(nil), c.KeepAttributes...)
	}
	if c.ExtraHeaders != nil {
		clone.ExtraHeaders = make(map[string]string, len(c.ExtraHeaders))
		for k, v := range c.ExtraHeaders {
			clone.ExtraHeaders[k] = v
		}
	}
	if c.Cookies != nil {
		clone.Cookies = append([]Cookie(nil), c.Cookies...)
	}
	if c.LinkExclusionPatterns != nil {
		clone.LinkExclusionPatterns = append([]string(nil), c.LinkExclusionPatterns...)
	}
	return clone
}

// WithDeepCrawlDisabled returns a clone with the re-entrancy guard set, so
// that a deep-crawl strategy's per-URL calls proceed through the single-page
// path rather than re-triggering strategy interception (spec.md §4.5,
// "Interception").
func (c RunConfig) WithDeepCrawlDisabled() RunConfig {
	clone := c.Clone()
	clone.deepCrawlGuard = true
	return clone
}

// DeepCrawlGuardSet reports whether this config already passed through
// WithDeepCrawlDisabled.
func (c RunConfig) DeepCrawlGuardSet() bool {
	return c.deepCrawlGuard
}

// DefaultRunConfig returns the baseline RunConfig used when a caller
// supplies none.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		CacheMode:           CacheModeEnabled,
		WaitUntil:           WaitUntilDOMContentLoaded,
		PageTimeout:         30 * time.Second,
		WaitForTimeout:      10 * time.Second,
		MarkdownSource:      MarkdownSourceCleaned,
		GenerateCitations:   true,
		ChunkTokenThreshold: 2000,
		ChunkOverlapRate:    0.1,
		ApplyChunking:       true,
	}
}

// MediaItem describes one discovered image/audio/video element.
type MediaItem struct {
	Src    string  `json:"src"`
	Alt    string  `json:"alt,omitempty"`
	Width  int     `json:"width,omitempty"`
	Height int     `json:"height,omitempty"`
	Score  float64 `json:"score"`
}

// MediaInventory groups media items by kind.
type MediaInventory struct {
	Images []MediaItem `json:"images,omitempty"`
	Audio  []MediaItem `json:"audio,omitempty"`
	Video  []MediaItem `json:"video,omitempty"`
}

// LinkItem describes one discovered hyperlink.
type LinkItem struct {
	Href       string `json:"href"`
	Text       string `json:"text,omitempty"`
	BaseDomain string `json:"base_domain,omitempty"`
}

// LinkInventory separates links by whether they target the page's own
// registrable domain.
type LinkInventory struct {
	Internal []LinkItem `json:"internal,omitempty"`
	External []LinkItem `json:"external,omitempty"`
}

// Reference is one entry in a markdown bundle's references list.
type Reference struct {
	Index       int    `json:"index"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// MarkdownBundle holds the four markdown/HTML variants described in
// spec.md §3. It marshals as an object; callers that need the flat-string
// backward-compatibility alias should use MarshalFlat.
type MarkdownBundle struct {
	RawMarkdown         string      `json:"raw_markdown"`
	MarkdownWithCitations string    `json:"markdown_with_citations,omitempty"`
	ReferencesMarkdown  string      `json:"references_markdown,omitempty"`
	References          []Reference `json:"-"`
	FitMarkdown         string      `json:"fit_markdown,omitempty"`
	FitHTML             string      `json:"fit_html,omitempty"`
}

// MarshalFlat renders the bundle as a backward-compatible plain string
// (spec.md §6): the best available markdown, preferring fit > citations >
// raw.
func (b MarkdownBundle) MarshalFlat() string {
	switch {
	case b.FitMarkdown != "":
		return b.FitMarkdown
	case b.MarkdownWithCitations != "":
		return b.MarkdownWithCitations
	default:
		return b.RawMarkdown
	}
}

// SSLCertSummary is a minimal summary of the negotiated TLS certificate.
type SSLCertSummary struct {
	Subject   string    `json:"subject,omitempty"`
	Issuer    string    `json:"issuer,omitempty"`
	NotBefore time.Time `json:"not_before,omitempty"`
	NotAfter  time.Time `json:"not_after,omitempty"`
}

// DispatchMetrics carries the memory/timing metadata the Dispatcher attaches
// to every TaskResult (spec.md §4.4).
type DispatchMetrics struct {
	MemoryStartPercent float64       `json:"memory_start_percent"`
	MemoryEndPercent   float64       `json:"memory_end_percent"`
	MemoryPeakPercent  float64       `json:"memory_peak_percent"`
	WallTime           time.Duration `json:"wall_time"`
	RetryCount         int           `json:"retry_count"`
}

// Result is the union result type described in spec.md §3.
type Result struct {
	URL          string `json:"url"`
	RedirectedURL string `json:"redirected_url,omitempty"`
	StatusCode   int    `json:"status_code,omitempty"`
	ResponseHeaders map[string]string `json:"response_headers,omitempty"`
	Success      bool   `json:"success"`

	RawHTML     string `json:"raw_html,omitempty"`
	CleanedHTML string `json:"cleaned_html,omitempty"`

	Media MediaInventory `json:"media"`
	Links LinkInventory  `json:"links"`

	Markdown MarkdownBundle `json:"markdown"`

	Extraction json.RawMessage `json:"extracted_content,omitempty"`

	Screenshot []byte `json:"screenshot,omitempty"`
	PDF        []byte `json:"pdf,omitempty"`

	SSLCertificate *SSLCertSummary `json:"ssl_certificate,omitempty"`
	ConsoleLog     []string        `json:"console_log,omitempty"`
	NetworkLog     []string        `json:"network_log,omitempty"`

	Dispatch DispatchMetrics `json:"dispatch,omitempty"`

	Depth     int    `json:"depth,omitempty"`
	ParentURL string `json:"parent_url,omitempty"`
	Score     float64 `json:"score,omitempty"`

	ErrorKind    ErrorKind `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`

	Warnings []string `json:"warnings,omitempty"`

	SessionID string `json:"session_id,omitempty"`

	FetchedAt time.Time `json:"fetched_at"`
}

// Fail builds an unsuccessful Result for the given URL and error.
func Fail(url string, kind ErrorKind, message string) Result {
	return Result{
		URL:          url,
		Success:      false,
		ErrorKind:    kind,
		ErrorMessage: message,
		FetchedAt:    time.Now(),
	}
}

// resultAlias avoids infinite recursion in MarshalJSON.
type resultAlias Result

// resultJSON is the wire shape: same as Result, but with an extra flat
// "markdown_text" backward-compat field alongside the structured bundle,
// per spec.md §6 ("emitters MUST include the object form and MAY also
// include the flat string").
type resultJSON struct {
	resultAlias
	MarkdownText string `json:"markdown_text,omitempty"`
}

// MarshalJSON emits both the structured markdown bundle and the flat
// "markdown_text" compatibility alias.
func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		resultAlias:  resultAlias(r),
		MarkdownText: r.Markdown.MarshalFlat(),
	}
	return json.Marshal(out)
}
