package markdown

import (
	"strings"
	"testing"

	"github.com/jmylchreest/crawlcore/pkg/crawlresult"
)

func TestGenerate_ProducesRawMarkdown(t *testing.T) {
	html := `<p>Hello <b>world</b></p><a href="https://example.com/a">link</a>`
	bundle := Generate(html, html, "https://example.com/", Options{ContentSource: crawlresult.MarkdownSourceRaw})

	if !strings.Contains(bundle.RawMarkdown, "Hello") {
		t.Errorf("expected raw markdown to contain page text, got %q", bundle.RawMarkdown)
	}
}

func TestGenerate_FallsBackWhenPreferredSourceEmpty(t *testing.T) {
	cleaned := `<p>cleaned content</p>`
	bundle := Generate("", cleaned, "https://example.com/", Options{ContentSource: crawlresult.MarkdownSourceRaw})
	if !strings.Contains(bundle.RawMarkdown, "cleaned content") {
		t.Errorf("expected fallback to cleaned HTML when raw is empty, got %q", bundle.RawMarkdown)
	}
}

func TestGenerate_NeverErrorsOnEmptyInput(t *testing.T) {
	bundle := Generate("", "", "", Options{})
	if bundle.RawMarkdown != "" {
		t.Errorf("expected empty markdown for empty input, got %q", bundle.RawMarkdown)
	}
}

func TestAddCitations_RewritesLinksAndBuildsReferences(t *testing.T) {
	input := `See [docs](https://example.com/docs "Docs") for more.`
	rewritten, refs := addCitations(input)

	if !strings.Contains(rewritten, "docs[1]") {
		t.Errorf("expected link text to be rewritten with a citation marker, got %q", rewritten)
	}
	if len(refs) != 1 || refs[0].URL != "https://example.com/docs" {
		t.Fatalf("expected one reference to the docs URL, got %+v", refs)
	}
	if refs[0].Description != "Docs" {
		t.Errorf("expected reference description %q, got %q", "Docs", refs[0].Description)
	}
}

func TestAddCitations_DedupesRepeatedURL(t *testing.T) {
	input := `[a](https://example.com/x) and again [b](https://example.com/x)`
	_, refs := addCitations(input)
	if len(refs) != 1 {
		t.Fatalf("expected a single deduplicated reference, got %d", len(refs))
	}
}

func TestAddCitations_RewritesImages(t *testing.T) {
	input := `![alt text](https://example.com/img.png)`
	rewritten, refs := addCitations(input)
	if !strings.Contains(rewritten, "![alt text[1]]") {
		t.Errorf("expected image to be rewritten with a citation marker, got %q", rewritten)
	}
	if len(refs) != 1 {
		t.Fatalf("expected one reference for the image, got %d", len(refs))
	}
}

func TestGenerate_CitationsPopulateReferencesMarkdown(t *testing.T) {
	html := `<a href="https://example.com/a">link</a>`
	bundle := Generate(html, html, "https://example.com/", Options{ContentSource: crawlresult.MarkdownSourceRaw, Citations: true})
	if bundle.ReferencesMarkdown == "" {
		t.Errorf("expected references markdown to be populated when citations are enabled")
	}
	if bundle.MarkdownWithCitations == "" {
		t.Errorf("expected markdown_with_citations to be populated")
	}
}

func TestMarkdownBundle_MarshalFlatPrefersFitThenCitationsThenRaw(t *testing.T) {
	b := crawlresult.MarkdownBundle{RawMarkdown: "raw"}
	if b.MarshalFlat() != "raw" {
		t.Errorf("expected raw fallback")
	}
	b.MarkdownWithCitations = "cited"
	if b.MarshalFlat() != "cited" {
		t.Errorf("expected citations to take precedence over raw")
	}
	b.FitMarkdown = "fit"
	if b.MarshalFlat() != "fit" {
		t.Errorf("expected fit to take precedence over citations")
	}
}
