package extract

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// fieldDoc mirrors Field for (de)serialization; Field itself carries a
// ComputeFunc that has no wire representation, so computed fields loaded
// this way never populate Compute; the caller sets Field.Compute on the
// loaded Schema itself.
type fieldDoc struct {
	Name       string     `json:"name" yaml:"name"`
	Selector   string     `json:"selector,omitempty" yaml:"selector,omitempty"`
	Type       FieldType  `json:"type" yaml:"type"`
	Attribute  string     `json:"attribute,omitempty" yaml:"attribute,omitempty"`
	Regex      string     `json:"regex,omitempty" yaml:"regex,omitempty"`
	Transforms []Transform `json:"transforms,omitempty" yaml:"transforms,omitempty"`
	Fields     []fieldDoc `json:"fields,omitempty" yaml:"fields,omitempty"`
}

type schemaDoc struct {
	BaseSelector string     `json:"base_selector,omitempty" yaml:"base_selector,omitempty"`
	Fields       []fieldDoc `json:"fields" yaml:"fields"`
}

func (d fieldDoc) toField() Field {
	f := Field{
		Name:       d.Name,
		Selector:   d.Selector,
		Type:       d.Type,
		Attribute:  d.Attribute,
		Regex:      d.Regex,
		Transforms: d.Transforms,
	}
	for _, nested := range d.Fields {
		f.Fields = append(f.Fields, nested.toField())
	}
	return f
}

func (d schemaDoc) toSchema() Schema {
	s := Schema{BaseSelector: d.BaseSelector}
	for _, f := range d.Fields {
		s.Fields = append(s.Fields, f.toField())
	}
	return s
}

// SchemaFromFile loads a CSS/XPath field Schema from a JSON or YAML file,
// the same way pkg/schema.FromFile loads an LLM output Schema.
func SchemaFromFile(path string) (Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, fmt.Errorf("failed to read extraction schema file: %w", err)
	}

	var doc schemaDoc
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return Schema{}, fmt.Errorf("failed to parse JSON extraction schema: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return Schema{}, fmt.Errorf("failed to parse YAML extraction schema: %w", err)
		}
	default:
		return Schema{}, fmt.Errorf("unsupported extraction schema file format: %s", ext)
	}

	return doc.toSchema(), nil
}
