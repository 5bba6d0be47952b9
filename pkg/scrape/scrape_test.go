package scrape

import (
	"strings"
	"testing"
)

const sampleHTML = `
<html><head><title>t</title></head>
<body>
  <script>var x = 1;</script>
  <style>.a{}</style>
  <p>Hello <b>world</b></p>
  <img src="/logo.png" alt="Logo" width="200" height="100">
  <a href="/about">About</a>
  <a href="https://other.test/page">Other site</a>
  <a href="#frag">Skip me</a>
</body></html>`

func TestScrape_RemovesScriptAndStyle(t *testing.T) {
	cleaned, _, _, err := Scrape(sampleHTML, "https://example.com/", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(cleaned, "var x = 1") {
		t.Errorf("expected script content to be stripped, got: %s", cleaned)
	}
}

func TestScrape_ExtractsImageWithScore(t *testing.T) {
	_, media, _, err := Scrape(sampleHTML, "https://example.com/", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(media.Images) != 1 {
		t.Fatalf("expected 1 image, got %d", len(media.Images))
	}
	img := media.Images[0]
	if img.Src != "https://example.com/logo.png" {
		t.Errorf("expected resolved absolute src, got %s", img.Src)
	}
	if img.Score <= 0 {
		t.Errorf("expected a positive heuristic score, got %v", img.Score)
	}
}

func TestScrape_ClassifiesInternalVsExternalLinks(t *testing.T) {
	_, _, links, err := Scrape(sampleHTML, "https://example.com/", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(links.Internal) != 1 || links.Internal[0].Href != "https://example.com/about" {
		t.Errorf("expected one internal link to /about, got %+v", links.Internal)
	}
	if len(links.External) != 1 || links.External[0].BaseDomain != "other.test" {
		t.Errorf("expected one external link on other.test, got %+v", links.External)
	}
}

func TestScrape_SkipsFragmentOnlyLinks(t *testing.T) {
	_, _, links, err := Scrape(sampleHTML, "https://example.com/", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, l := range append(links.Internal, links.External...) {
		if l.Href == "#frag" {
			t.Errorf("expected fragment-only href to be skipped")
		}
	}
}

func TestScrape_ImageScoreThresholdFilters(t *testing.T) {
	_, media, _, err := Scrape(sampleHTML, "https://example.com/", Options{ImageScoreThreshold: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(media.Images) != 0 {
		t.Errorf("expected the logo to be filtered out by a high threshold, got %d images", len(media.Images))
	}
}
