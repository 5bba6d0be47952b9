// Package markdown implements the Markdown Generator of spec.md §4.6:
// HTML-source selection, html-to-markdown conversion, citation rewriting,
// and an optional content filter producing the fit markdown/HTML pair.
// Grounded on the teacher's pkg/cleaner family: html-to-markdown/v2 for
// conversion (pkg/cleaner/markdown.go) and go-readability + gohtml for the
// RelevantContentFilter default (pkg/cleaner/readability.go).
package markdown

import (
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/jmylchreest/crawlcore/internal/logger"
	"github.com/jmylchreest/crawlcore/pkg/crawlresult"
)

// RelevantContentFilter narrows HTML to its most relevant content before
// conversion, producing the bundle's fit_html/fit_markdown pair (spec.md
// §4.6).
type RelevantContentFilter interface {
	Filter(html, baseURL string) (string, error)
	Name() string
}

// Options configures one Generate call, mirroring spec.md §4.6's markdown
// generator options.
type Options struct {
	ContentSource crawlresult.MarkdownSource
	Citations     bool
	Filter        RelevantContentFilter
}

// OptionsFromRunConfig adapts the markdown-relevant subset of a RunConfig
// into Options.
func OptionsFromRunConfig(cfg crawlresult.RunConfig) Options {
	source := cfg.MarkdownSource
	if source == "" {
		source = crawlresult.MarkdownSourceCleaned
	}
	return Options{ContentSource: source, Citations: cfg.GenerateCitations}
}

// Generate builds the Markdown Bundle of spec.md §3 from a scraped page.
// rawHTML and cleanedHTML are the two representations a caller may have
// available; only the one selectSource picks for opts.ContentSource is
// converted, and the Filter, when set, runs over that same source. baseURL
// is passed only to the Filter; conversion never fails the
// pipeline (spec.md §4.6: "Never throw on conversion failure").
func Generate(rawHTML, cleanedHTML, baseURL string, opts Options) crawlresult.MarkdownBundle {
	source := selectSource(rawHTML, cleanedHTML, opts.ContentSource)

	bundle := crawlresult.MarkdownBundle{
		RawMarkdown: convert(source),
	}

	if opts.Citations {
		withCitations, refs := addCitations(bundle.RawMarkdown)
		bundle.MarkdownWithCitations = withCitations
		bundle.References = refs
		bundle.ReferencesMarkdown = renderReferences(refs)
	}

	if opts.Filter != nil {
		filtered, err := opts.Filter.Filter(source, baseURL)
		if err != nil {
			logger.Debug("markdown: content filter failed, fit markdown omitted", "filter", opts.Filter.Name(), "error", err)
		} else {
			bundle.FitHTML = filtered
			bundle.FitMarkdown = convert(filtered)
		}
	}

	return bundle
}

// selectSource picks the HTML representation content_source names,
// falling back to cleanedHTML (and then rawHTML) if the preferred one is
// empty.
func selectSource(rawHTML, cleanedHTML string, source crawlresult.MarkdownSource) string {
	switch source {
	case crawlresult.MarkdownSourceRaw:
		if rawHTML != "" {
			return rawHTML
		}
	case crawlresult.MarkdownSourceCleaned, "":
		if cleanedHTML != "" {
			return cleanedHTML
		}
	}
	if cleanedHTML != "" {
		return cleanedHTML
	}
	return rawHTML
}

// convert renders html to markdown, never erroring the pipeline: on
// failure it returns an explanatory string and keeps going (spec.md §4.6).
func convert(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	out, err := md.ConvertString(html)
	if err != nil {
		logger.Debug("markdown: conversion failed", "error", err)
		return fmt.Sprintf("<!-- markdown conversion failed: %v -->", err)
	}
	return cleanWhitespace(out)
}

// cleanWhitespace caps consecutive blank lines at one, matching the
// teacher's markdown cleaner's whitespace normalization.
func cleanWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	var result []string
	blank := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blank++
			if blank <= 1 {
				result = append(result, "")
			}
			continue
		}
		blank = 0
		result = append(result, line)
	}
	return strings.TrimSpace(strings.Join(result, "\n"))
}

var (
	imageRef = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)(?:\s+"([^"]*)")?\)`)
	linkRef  = regexp.MustCompile(`\[([^\]]*)\]\(([^)\s]+)(?:\s+"([^"]*)")?\)`)
)

// addCitations rewrites every markdown link/image into a numbered
// citation (spec.md §4.6): `[text](url "title")` becomes `text[n]`,
// `![text](url)` becomes `![text[n]]`, and a references list gets one entry
// per distinct URL. Images are rewritten and numbered first so the link
// regex doesn't also match the "!..." form; links are numbered after all
// images, each group in encounter order.
func addCitations(markdown string) (string, []crawlresult.Reference) {
	var refs []crawlresult.Reference
	seen := make(map[string]int)

	nextIndex := func(url, title string) int {
		if idx, ok := seen[url]; ok {
			return idx
		}
		idx := len(refs) + 1
		seen[url] = idx
		refs = append(refs, crawlresult.Reference{Index: idx, URL: url, Description: title})
		return idx
	}

	withImagesRewritten := imageRef.ReplaceAllStringFunc(markdown, func(m string) string {
		groups := imageRef.FindStringSubmatch(m)
		text, url, title := groups[1], groups[2], groups[3]
		idx := nextIndex(url, title)
		return fmt.Sprintf("![%s[%d]]", text, idx)
	})

	withLinksRewritten := linkRef.ReplaceAllStringFunc(withImagesRewritten, func(m string) string {
		groups := linkRef.FindStringSubmatch(m)
		text, url, title := groups[1], groups[2], groups[3]
		idx := nextIndex(url, title)
		return fmt.Sprintf("%s[%d]", text, idx)
	})

	return withLinksRewritten, refs
}

// renderReferences renders the references list as markdown, one entry per
// line: `[n] url - description` (description omitted when empty).
func renderReferences(refs []crawlresult.Reference) string {
	if len(refs) == 0 {
		return ""
	}
	var b strings.Builder
	for _, r := range refs {
		if r.Description != "" {
			fmt.Fprintf(&b, "[%d] %s - %s\n", r.Index, r.URL, r.Description)
		} else {
			fmt.Fprintf(&b, "[%d] %s\n", r.Index, r.URL)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
