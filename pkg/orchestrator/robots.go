package orchestrator

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// RobotsChecker consults a site's robots.txt for a given user agent,
// per spec.md §4.8 step 3.
type RobotsChecker interface {
	// Allowed reports whether userAgent may fetch rawURL. An unreachable
	// robots.txt must be treated as "allow" (spec.md §9's open-question
	// resolution), so implementations should only return an error for
	// conditions callers should otherwise be aware of; Orchestrator.Run
	// itself also logs-and-allows on any error as a second safety net.
	Allowed(ctx context.Context, userAgent, rawURL string) (bool, error)
}

// httpRobotsChecker is the default RobotsChecker: it fetches and caches
// robots.txt per host via a plain net/http client, parsed with
// github.com/temoto/robotstxt. A bare net/http.Client is used rather than
// the browser Adapter because fetching a small text file through a full
// Chromium navigation would be needless overhead for a per-host check run
// ahead of every crawl.
type httpRobotsChecker struct {
	client *http.Client

	mu    sync.Mutex
	cache map[string]*robotstxt.RobotsData
}

// NewRobotsChecker builds the default RobotsChecker. A nil client is
// replaced by a new http.Client with a 10s timeout.
func NewRobotsChecker(client *http.Client) RobotsChecker {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &httpRobotsChecker{client: client, cache: make(map[string]*robotstxt.RobotsData)}
}

func (c *httpRobotsChecker) Allowed(ctx context.Context, userAgent, rawURL string) (bool, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return true, err
	}

	data, err := c.robotsFor(ctx, parsed)
	if err != nil {
		// Unreachable robots.txt is treated as "allow" per spec.md §9.
		return true, err
	}

	group := data.FindGroup(userAgent)
	return group.Test(parsed.Path), nil
}

func (c *httpRobotsChecker) robotsFor(ctx context.Context, target *url.URL) (*robotstxt.RobotsData, error) {
	host := target.Scheme + "://" + target.Host

	c.mu.Lock()
	if data, ok := c.cache[host]; ok {
		c.mu.Unlock()
		return data, nil
	}
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/robots.txt", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[host] = data
	c.mu.Unlock()
	return data, nil
}
