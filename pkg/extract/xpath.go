package extract

import (
	"context"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"

	"github.com/jmylchreest/crawlcore/internal/logger"
)

// XPathStrategy extracts records from HTML sections using XPath
// expressions (antchfx/htmlquery + antchfx/xpath), per spec.md §4.7's
// XPath schema-based family.
type XPathStrategy struct {
	Schema Schema
}

// NewXPathStrategy builds an XPath extraction strategy over schema.
func NewXPathStrategy(schema Schema) *XPathStrategy {
	return &XPathStrategy{Schema: schema}
}

func (s *XPathStrategy) Name() string { return "xpath" }

func (s *XPathStrategy) Run(ctx context.Context, url string, sections []string) ([]map[string]any, error) {
	var records []map[string]any
	for _, section := range sections {
		if ctx.Err() != nil {
			return records, ctx.Err()
		}
		doc, err := htmlquery.Parse(strings.NewReader(section))
		if err != nil {
			logger.Debug("xpath extract: failed to parse section", "url", url, "error", err)
			continue
		}

		bases := []*htmlquery.Node{doc}
		if s.Schema.BaseSelector != "" {
			bases, err = htmlquery.QueryAll(doc, s.Schema.BaseSelector)
			if err != nil {
				logger.Debug("xpath extract: invalid base selector", "selector", s.Schema.BaseSelector, "error", err)
				continue
			}
		}

		for _, base := range bases {
			record := make(map[string]any, len(s.Schema.Fields))
			for _, f := range s.Schema.Fields {
				if f.Type == FieldComputed {
					continue
				}
				if v, ok := s.resolveField(base, f); ok {
					record[f.Name] = v
				}
			}
			resolveComputed(s.Schema.Fields, record)
			records = append(records, record)
		}
	}
	return records, nil
}

func (s *XPathStrategy) resolveField(node *htmlquery.Node, f Field) (any, bool) {
	var nodes []*htmlquery.Node
	if f.Selector == "" {
		nodes = []*htmlquery.Node{node}
	} else {
		found, err := htmlquery.QueryAll(node, f.Selector)
		if err != nil {
			return nil, false
		}
		nodes = found
	}

	switch f.Type {
	case FieldList:
		var out []string
		for _, n := range nodes {
			out = append(out, applyTransforms(strings.TrimSpace(htmlquery.InnerText(n)), f.Transforms))
		}
		return out, len(out) > 0

	case FieldNested:
		if len(nodes) == 0 {
			return nil, false
		}
		record := make(map[string]any, len(f.Fields))
		for _, child := range f.Fields {
			if child.Type == FieldComputed {
				continue
			}
			if v, ok := s.resolveField(nodes[0], child); ok {
				record[child.Name] = v
			}
		}
		resolveComputed(f.Fields, record)
		return record, true

	case FieldNestedList:
		var out []map[string]any
		for _, n := range nodes {
			record := make(map[string]any, len(f.Fields))
			for _, child := range f.Fields {
				if child.Type == FieldComputed {
					continue
				}
				if v, ok := s.resolveField(n, child); ok {
					record[child.Name] = v
				}
			}
			resolveComputed(f.Fields, record)
			out = append(out, record)
		}
		return out, len(out) > 0

	case FieldAttribute:
		if len(nodes) == 0 {
			return nil, false
		}
		v := htmlquery.SelectAttr(nodes[0], f.Attribute)
		if v == "" {
			return nil, false
		}
		return applyTransforms(v, f.Transforms), true

	case FieldHTML:
		if len(nodes) == 0 {
			return nil, false
		}
		return applyTransforms(htmlquery.OutputHTML(nodes[0], true), f.Transforms), true

	case FieldRegex:
		if len(nodes) == 0 {
			return nil, false
		}
		matched, ok := applyRegex(f.Regex, htmlquery.InnerText(nodes[0]))
		if !ok {
			return nil, false
		}
		return applyTransforms(matched, f.Transforms), true

	default: // FieldText
		if len(nodes) == 0 {
			return nil, false
		}
		return applyTransforms(strings.TrimSpace(htmlquery.InnerText(nodes[0])), f.Transforms), true
	}
}

// compileXPath validates an XPath expression eagerly, used by callers that
// want to fail fast on a malformed schema before any section is processed.
func compileXPath(expr string) error {
	_, err := xpath.Compile(expr)
	return err
}
