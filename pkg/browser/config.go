// Package browser implements the crawl execution plane's browser pool: a
// signature-keyed tiering of chromedp-backed adapters, an adaptive janitor
// that evicts idle adapters under memory pressure, and the Engine Adapter
// that drives a single page through the fetch pipeline.
package browser

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"
)

// Engine identifies the browser family to launch or attach to. chromedp
// only drives Chromium-family browsers; firefox/webkit are accepted here so
// Config stays a faithful Browser Config per spec.md §3, but Adapter
// currently only implements EngineChromium.
type Engine string

const (
	EngineChromium Engine = "chromium"
	EngineFirefox  Engine = "firefox"
	EngineWebKit   Engine = "webkit"
)

// Mode selects between launching a managed browser process and attaching
// to an already-running instance via its debugging endpoint.
type Mode string

const (
	ModeManaged Mode = "managed"
	ModeAttach  Mode = "attach"
)

// ProxyConfig describes an upstream proxy to route browser traffic through.
type ProxyConfig struct {
	Server   string `json:"server"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// Config is the immutable Browser Config of spec.md §3: everything needed
// to launch or attach to a browser. Two Configs with the same Signature are
// interchangeable for pool reuse.
type Config struct {
	Engine   Engine `json:"engine"`
	Mode     Mode   `json:"mode"`
	Headless bool   `json:"headless"`

	ViewportWidth  int `json:"viewport_width"`
	ViewportHeight int `json:"viewport_height"`

	UserAgent string `json:"user_agent,omitempty"`

	Proxy *ProxyConfig `json:"proxy,omitempty"`

	Cookies        []Cookie          `json:"cookies,omitempty"`
	DefaultHeaders map[string]string `json:"default_headers,omitempty"`

	// TextMode disables image loading for faster, lighter fetches. Fonts
	// and scripts still load.
	TextMode bool `json:"text_mode,omitempty"`

	Stealth   bool `json:"stealth,omitempty"`
	Googlebot bool `json:"googlebot,omitempty"`

	ExtraArgs []string `json:"extra_args,omitempty"`

	// AttachEndpoint is the remote-debugging URL to connect to when Mode is
	// ModeAttach. Ignored in ModeManaged.
	AttachEndpoint string `json:"attach_endpoint,omitempty"`

	// UserDataDir, if set, gives the launched browser a persistent profile
	// directory instead of a throwaway one.
	UserDataDir string `json:"user_data_dir,omitempty"`
}

// Cookie is a cookie to seed into the browser's default context.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
}

// Chrome user agent used when none is supplied, matching common browser
// fingerprints so default-config fetches aren't trivially distinguished
// from a stock installation.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// GooglebotUserAgent spoofs the standard Googlebot crawler.
const GooglebotUserAgent = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"

// GooglebotMobileUserAgent spoofs Googlebot's mobile-first indexing agent.
const GooglebotMobileUserAgent = "Mozilla/5.0 (Linux; Android 6.0.1; Nexus 5X Build/MMB29P) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"

// DefaultConfig returns the process-wide default Browser Config. Its
// Signature becomes the Pool's permanent-signature marker.
func DefaultConfig() Config {
	return Config{
		Engine:         EngineChromium,
		Mode:           ModeManaged,
		Headless:       true,
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		UserAgent:      defaultUserAgent,
	}
}

// resolvedUserAgent applies the Googlebot override, mirroring the teacher's
// DynamicFetcher constructor precedence (explicit Googlebot flag wins).
func (c Config) resolvedUserAgent() string {
	if c.Googlebot {
		return GooglebotMobileUserAgent
	}
	if c.UserAgent != "" {
		return c.UserAgent
	}
	return defaultUserAgent
}

// canonicalConfig is the JSON projection Signature hashes over: map keys
// and slices are sorted so semantically identical configs always produce
// the same bytes regardless of construction order.
type canonicalConfig struct {
	Engine         Engine            `json:"engine"`
	Mode           Mode              `json:"mode"`
	Headless       bool              `json:"headless"`
	ViewportWidth  int               `json:"viewport_width"`
	ViewportHeight int               `json:"viewport_height"`
	UserAgent      string            `json:"user_agent"`
	Proxy          *ProxyConfig      `json:"proxy,omitempty"`
	Cookies        []Cookie          `json:"cookies,omitempty"`
	DefaultHeaders map[string]string `json:"default_headers,omitempty"`
	TextMode       bool              `json:"text_mode"`
	Stealth        bool              `json:"stealth"`
	Googlebot      bool              `json:"googlebot"`
	ExtraArgs      []string          `json:"extra_args,omitempty"`
	AttachEndpoint string            `json:"attach_endpoint,omitempty"`
	UserDataDir    string            `json:"user_data_dir,omitempty"`
}

// Signature computes the configuration signature: a SHA1 hex digest over
// the canonical (lexically sorted keys, zero-valued fields elided,
// user agent resolved) JSON encoding of c. Two configs
// with an identical signature are interchangeable for pool reuse.
func Signature(c Config) string {
	canon := canonicalConfig{
		Engine:         c.Engine,
		Mode:           c.Mode,
		Headless:       c.Headless,
		ViewportWidth:  c.ViewportWidth,
		ViewportHeight: c.ViewportHeight,
		UserAgent:      c.resolvedUserAgent(),
		Proxy:          c.Proxy,
		DefaultHeaders: c.DefaultHeaders,
		TextMode:       c.TextMode,
		Stealth:        c.Stealth,
		Googlebot:      c.Googlebot,
		AttachEndpoint: c.AttachEndpoint,
		UserDataDir:    c.UserDataDir,
	}

	if len(c.Cookies) > 0 {
		canon.Cookies = append([]Cookie(nil), c.Cookies...)
		sort.Slice(canon.Cookies, func(i, j int) bool {
			if canon.Cookies[i].Name != canon.Cookies[j].Name {
				return canon.Cookies[i].Name < canon.Cookies[j].Name
			}
			return canon.Cookies[i].Domain < canon.Cookies[j].Domain
		})
	}
	if len(c.ExtraArgs) > 0 {
		canon.ExtraArgs = append([]string(nil), c.ExtraArgs...)
		sort.Strings(canon.ExtraArgs)
	}

	data, err := json.Marshal(canon)
	if err != nil {
		// json.Marshal only fails on unsupported types (channels, funcs,
		// cyclic maps), none of which canonicalConfig contains.
		panic("browser: config is not JSON-serializable: " + err.Error())
	}

	// Re-encode through a generic map: top-level zero values (the defaults)
	// are elided, and every object's keys, nested ones included, come out
	// in lexical order.
	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err == nil {
		for k, v := range generic {
			switch v {
			case false, "", float64(0), nil:
				delete(generic, k)
			}
		}
		if sorted, err := json.Marshal(generic); err == nil {
			data = sorted
		}
	}

	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

// tierTTL bundles the janitor's wake interval and per-tier TTLs for one
// memory-pressure band, per spec.md §4.1's table.
type tierTTL struct {
	WakeInterval time.Duration
	ColdTTL      time.Duration
	HotTTL       time.Duration
}

var (
	pressureHigh   = tierTTL{WakeInterval: 10 * time.Second, ColdTTL: 30 * time.Second, HotTTL: 120 * time.Second}
	pressureMedium = tierTTL{WakeInterval: 30 * time.Second, ColdTTL: 60 * time.Second, HotTTL: 300 * time.Second}
	pressureLow    = tierTTL{WakeInterval: 60 * time.Second, ColdTTL: 300 * time.Second, HotTTL: 1800 * time.Second}
)

// ttlForMemoryPercent selects the janitor band for a memory-pressure reading.
func ttlForMemoryPercent(pct float64) tierTTL {
	switch {
	case pct > 80:
		return pressureHigh
	case pct > 60:
		return pressureMedium
	default:
		return pressureLow
	}
}

// PromotionThreshold is the use-count at which a Cold adapter is promoted
// to Hot (spec.md §3, default 3).
const PromotionThreshold = 3

// SessionTTL is how long an idle session id remains bound to its
// (adapter, page) tuple before eviction (spec.md §3 invariant).
const SessionTTL = 10 * time.Minute
