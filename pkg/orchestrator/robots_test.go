package orchestrator

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPRobotsChecker_DisallowsBlockedPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	}))
	defer server.Close()

	checker := NewRobotsChecker(server.Client())
	allowed, err := checker.Allowed(t.Context(), "crawlcore", server.URL+"/private/page")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Error("expected /private to be disallowed")
	}
}

func TestHTTPRobotsChecker_AllowsUnlistedPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	}))
	defer server.Close()

	checker := NewRobotsChecker(server.Client())
	allowed, err := checker.Allowed(t.Context(), "crawlcore", server.URL+"/public/page")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Error("expected /public to be allowed")
	}
}

func TestHTTPRobotsChecker_MissingRobotsTxtAllows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	checker := NewRobotsChecker(server.Client())
	allowed, err := checker.Allowed(t.Context(), "crawlcore", server.URL+"/anything")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Error("expected a missing robots.txt to allow everything")
	}
}

func TestHTTPRobotsChecker_CachesPerHost(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("User-agent: *\nAllow: /\n"))
	}))
	defer server.Close()

	checker := NewRobotsChecker(server.Client())
	ctx := t.Context()
	checker.Allowed(ctx, "crawlcore", server.URL+"/a")
	checker.Allowed(ctx, "crawlcore", server.URL+"/b")

	if hits != 1 {
		t.Errorf("expected robots.txt to be fetched once and cached, got %d fetches", hits)
	}
}
