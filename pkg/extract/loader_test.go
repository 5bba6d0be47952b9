package extract

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSchemaFromFile_JSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.json")
	doc := `{
		"base_selector": "article.post",
		"fields": [
			{"name": "title", "selector": "h1", "type": "text", "transforms": ["strip"]},
			{"name": "tags", "selector": "a.tag", "type": "list"}
		]
	}`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := SchemaFromFile(path)
	if err != nil {
		t.Fatalf("SchemaFromFile() error = %v", err)
	}
	if s.BaseSelector != "article.post" {
		t.Errorf("BaseSelector = %q", s.BaseSelector)
	}
	if len(s.Fields) != 2 || s.Fields[0].Name != "title" || s.Fields[1].Type != FieldList {
		t.Errorf("Fields = %+v", s.Fields)
	}
	if len(s.Fields[0].Transforms) != 1 || s.Fields[0].Transforms[0] != TransformStrip {
		t.Errorf("Transforms = %+v", s.Fields[0].Transforms)
	}
}

func TestSchemaFromFile_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yaml")
	doc := "base_selector: \".item\"\nfields:\n  - name: price\n    selector: \".price\"\n    type: text\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := SchemaFromFile(path)
	if err != nil {
		t.Fatalf("SchemaFromFile() error = %v", err)
	}
	if s.BaseSelector != ".item" || len(s.Fields) != 1 || s.Fields[0].Name != "price" {
		t.Errorf("got %+v", s)
	}
}

func TestSchemaFromFile_NestedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.json")
	doc := `{
		"fields": [
			{"name": "authors", "selector": ".author", "type": "nested_list", "fields": [
				{"name": "name", "selector": ".name", "type": "text"}
			]}
		]
	}`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := SchemaFromFile(path)
	if err != nil {
		t.Fatalf("SchemaFromFile() error = %v", err)
	}
	if len(s.Fields) != 1 || len(s.Fields[0].Fields) != 1 || s.Fields[0].Fields[0].Name != "name" {
		t.Errorf("got %+v", s.Fields)
	}
}

func TestSchemaFromFile_UnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.txt")
	if err := os.WriteFile(path, []byte("whatever"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := SchemaFromFile(path); err == nil {
		t.Fatal("expected an error for an unsupported extension")
	}
}
