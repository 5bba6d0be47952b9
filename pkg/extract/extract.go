// Package extract implements the Extraction Strategy of spec.md §4.7: two
// schema-based families (CSS, XPath) plus an LLM-backed family, all sharing
// the run(url, sections) -> []record contract and the merge-chunking pass
// of chunk.go. Grounded on pkg/extractor's Extractor interface and
// sequential/fallback composition (pkg/extractor/{extractor,pipeline,
// fallback,config}.go), narrowed to spec.md's schema-field model.
package extract

import (
	"context"
	"regexp"
	"strings"
)

// FieldType names one of spec.md §4.7's field extraction kinds.
type FieldType string

const (
	FieldText       FieldType = "text"
	FieldAttribute  FieldType = "attribute"
	FieldHTML       FieldType = "html"
	FieldRegex      FieldType = "regex"
	FieldList       FieldType = "list"
	FieldNested     FieldType = "nested"
	FieldNestedList FieldType = "nested_list"
	FieldComputed   FieldType = "computed"
)

// Transform is a post-extraction string transform.
type Transform string

const (
	TransformLowercase Transform = "lowercase"
	TransformUppercase Transform = "uppercase"
	TransformStrip     Transform = "strip"
)

// ComputeFunc derives a computed field's value from the sibling fields
// already resolved on the same record, per spec.md §4.7's "resolves
// computed fields last using prior sibling values".
type ComputeFunc func(record map[string]any) (any, error)

// Field is one field definition within a Schema.
type Field struct {
	Name       string
	Selector   string // CSS selector or XPath expression, per the owning Schema's family
	Type       FieldType
	Attribute  string // used when Type == FieldAttribute
	Regex      string // used when Type == FieldRegex; first capture group, or whole match if none
	Transforms []Transform
	Fields     []Field     // used when Type == FieldNested / FieldNestedList
	Compute    ComputeFunc // used when Type == FieldComputed
}

// Schema is a schema-based extraction definition (spec.md §4.7): iterate
// every element matching BaseSelector, and for each, resolve every Field.
type Schema struct {
	BaseSelector string
	Fields       []Field
}

// Strategy is the shared contract of spec.md §4.7: run(url, sections) ->
// records. Each section is one (possibly chunked) piece of the selected
// content source.
type Strategy interface {
	Name() string
	Run(ctx context.Context, url string, sections []string) ([]map[string]any, error)
}

// applyTransforms runs every configured Transform over a string value in
// order.
func applyTransforms(s string, transforms []Transform) string {
	for _, t := range transforms {
		switch t {
		case TransformLowercase:
			s = strings.ToLower(s)
		case TransformUppercase:
			s = strings.ToUpper(s)
		case TransformStrip:
			s = strings.TrimSpace(s)
		}
	}
	return s
}

// applyRegex extracts the first capture group (or the whole match if the
// pattern has no groups) from s.
func applyRegex(pattern, s string) (string, bool) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", false
	}
	m := re.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	if len(m) > 1 {
		return m[1], true
	}
	return m[0], true
}

// resolveComputed runs every computed field in Fields against record,
// last, per spec.md §4.7.
func resolveComputed(fields []Field, record map[string]any) {
	for _, f := range fields {
		if f.Type != FieldComputed || f.Compute == nil {
			continue
		}
		if v, err := f.Compute(record); err == nil {
			record[f.Name] = v
		}
	}
}
