package markdown

import (
	"bytes"
	"net/url"
	"strings"

	readability "codeberg.org/readeck/go-readability/v2"
	"github.com/yosssi/gohtml"
	"golang.org/x/net/html"
)

// ReadabilityFilter is the default RelevantContentFilter (spec.md §4.6),
// grounded directly on pkg/cleaner/readability.go: it narrows HTML to its
// main-content subtree using go-readability (Mozilla Readability.js
// heuristics), then pretty-prints the result with gohtml.
type ReadabilityFilter struct {
	parser readability.Parser
}

// NewReadabilityFilter builds a ReadabilityFilter. charThreshold (0 = the
// library default) is the minimum character count for valid content.
func NewReadabilityFilter(charThreshold int) *ReadabilityFilter {
	parser := readability.NewParser()
	if charThreshold > 0 {
		parser.CharThresholds = charThreshold
	}
	return &ReadabilityFilter{parser: parser}
}

func (f *ReadabilityFilter) Name() string { return "readability" }

// Filter extracts the main-content HTML subtree, falling back to the
// original HTML when no article content is found.
func (f *ReadabilityFilter) Filter(htmlContent, baseURL string) (string, error) {
	var base *url.URL
	if baseURL != "" {
		if parsed, err := url.Parse(baseURL); err == nil {
			base = parsed
		}
	}

	article, err := f.parser.Parse(strings.NewReader(htmlContent), base)
	if err != nil {
		return "", err
	}
	if article.Node == nil {
		return htmlContent, nil
	}

	var buf bytes.Buffer
	if err := article.RenderHTML(&buf); err != nil {
		var nodeBuf bytes.Buffer
		if err := html.Render(&nodeBuf, article.Node); err != nil {
			return htmlContent, nil
		}
		return gohtml.Format(nodeBuf.String()), nil
	}

	rendered := buf.String()
	if rendered == "" {
		return htmlContent, nil
	}
	return gohtml.Format(rendered), nil
}
