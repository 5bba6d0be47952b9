package extract

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/crawlcore/internal/logger"
)

// CSSStrategy extracts records from HTML sections using CSS selectors
// (goquery, backed by andybalholm/cascadia), per spec.md §4.7's CSS
// schema-based family.
type CSSStrategy struct {
	Schema Schema
}

// NewCSSStrategy builds a CSS-selector extraction strategy over schema.
func NewCSSStrategy(schema Schema) *CSSStrategy {
	return &CSSStrategy{Schema: schema}
}

func (s *CSSStrategy) Name() string { return "css" }

func (s *CSSStrategy) Run(ctx context.Context, url string, sections []string) ([]map[string]any, error) {
	var records []map[string]any
	for _, section := range sections {
		if ctx.Err() != nil {
			return records, ctx.Err()
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(section))
		if err != nil {
			logger.Debug("css extract: failed to parse section", "url", url, "error", err)
			continue
		}

		base := doc.Selection
		if s.Schema.BaseSelector != "" {
			base = doc.Find(s.Schema.BaseSelector)
		}

		base.Each(func(_ int, el *goquery.Selection) {
			record := make(map[string]any, len(s.Schema.Fields))
			for _, f := range s.Schema.Fields {
				if f.Type == FieldComputed {
					continue
				}
				if v, ok := s.resolveField(el, f); ok {
					record[f.Name] = v
				}
			}
			resolveComputed(s.Schema.Fields, record)
			records = append(records, record)
		})
	}
	return records, nil
}

func (s *CSSStrategy) resolveField(el *goquery.Selection, f Field) (any, bool) {
	sel := el
	if f.Selector != "" {
		sel = el.Find(f.Selector)
	}

	switch f.Type {
	case FieldList:
		var out []string
		sel.Each(func(_ int, item *goquery.Selection) {
			out = append(out, applyTransforms(strings.TrimSpace(item.Text()), f.Transforms))
		})
		return out, len(out) > 0

	case FieldNested:
		record := make(map[string]any, len(f.Fields))
		for _, child := range f.Fields {
			if child.Type == FieldComputed {
				continue
			}
			if v, ok := s.resolveField(sel, child); ok {
				record[child.Name] = v
			}
		}
		resolveComputed(f.Fields, record)
		return record, true

	case FieldNestedList:
		var out []map[string]any
		sel.Each(func(_ int, item *goquery.Selection) {
			record := make(map[string]any, len(f.Fields))
			for _, child := range f.Fields {
				if child.Type == FieldComputed {
					continue
				}
				if v, ok := s.resolveField(item, child); ok {
					record[child.Name] = v
				}
			}
			resolveComputed(f.Fields, record)
			out = append(out, record)
		})
		return out, len(out) > 0

	case FieldAttribute:
		v, ok := sel.Attr(f.Attribute)
		if !ok {
			return nil, false
		}
		return applyTransforms(v, f.Transforms), true

	case FieldHTML:
		html, err := sel.Html()
		if err != nil {
			return nil, false
		}
		return applyTransforms(html, f.Transforms), true

	case FieldRegex:
		matched, ok := applyRegex(f.Regex, sel.Text())
		if !ok {
			return nil, false
		}
		return applyTransforms(matched, f.Transforms), true

	default: // FieldText
		if sel.Length() == 0 {
			return nil, false
		}
		return applyTransforms(strings.TrimSpace(sel.Text()), f.Transforms), true
	}
}
