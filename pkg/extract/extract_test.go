package extract

import (
	"context"
	"strings"
	"testing"
)

func TestApplyTransforms_ChainsInOrder(t *testing.T) {
	got := applyTransforms("  Hello World  ", []Transform{TransformStrip, TransformLowercase})
	if got != "hello world" {
		t.Errorf("got %q", got)
	}
}

func TestApplyRegex_FirstCaptureGroup(t *testing.T) {
	got, ok := applyRegex(`price: \$(\d+)`, "price: $42")
	if !ok || got != "42" {
		t.Errorf("got %q, %v", got, ok)
	}
}

func TestApplyRegex_WholeMatchWhenNoGroup(t *testing.T) {
	got, ok := applyRegex(`\d+`, "item 42")
	if !ok || got != "42" {
		t.Errorf("got %q, %v", got, ok)
	}
}

func TestResolveComputed_RunsAfterSiblings(t *testing.T) {
	fields := []Field{
		{Name: "total", Type: FieldComputed, Compute: func(record map[string]any) (any, error) {
			return record["price"].(string) + " total", nil
		}},
	}
	record := map[string]any{"price": "42"}
	resolveComputed(fields, record)
	if record["total"] != "42 total" {
		t.Errorf("got %v", record["total"])
	}
}

func TestChunk_NoLimitReturnsSingleChunk(t *testing.T) {
	chunks := Chunk("one two three", ChunkOptions{})
	if len(chunks) != 1 || chunks[0] != "one two three" {
		t.Errorf("got %v", chunks)
	}
}

func TestChunk_SplitsOnWordBudget(t *testing.T) {
	words := make([]string, 100)
	for i := range words {
		words[i] = "word"
	}
	content := strings.Join(words, " ")

	chunks := Chunk(content, ChunkOptions{MaxTokens: 30, WordTokenRate: 1})
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if n := len(strings.Fields(c)); n > 30 {
			t.Errorf("chunk exceeds word budget: %d words", n)
		}
	}
}

func TestChunk_OverlapRepeatsWords(t *testing.T) {
	words := make([]string, 20)
	for i := range words {
		words[i] = string(rune('a' + i))
	}
	content := strings.Join(words, " ")

	chunks := Chunk(content, ChunkOptions{MaxTokens: 10, WordTokenRate: 1, OverlapRate: 0.5})
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	firstWords := strings.Fields(chunks[0])
	secondWords := strings.Fields(chunks[1])
	overlapFound := false
	for _, w := range firstWords[len(firstWords)/2:] {
		if secondWords[0] == w {
			overlapFound = true
			break
		}
	}
	if !overlapFound {
		t.Errorf("expected overlap between chunk 0 and chunk 1, got %v / %v", firstWords, secondWords)
	}
}

func TestCSSStrategy_ExtractsTextAttributeAndList(t *testing.T) {
	html := `
	<div class="article">
		<h1 class="title">Hello</h1>
		<a class="author" href="/u/jane">Jane</a>
		<ul class="tags"><li>go</li><li>web</li></ul>
	</div>`

	schema := Schema{
		BaseSelector: ".article",
		Fields: []Field{
			{Name: "title", Selector: ".title", Type: FieldText},
			{Name: "author_url", Selector: ".author", Type: FieldAttribute, Attribute: "href"},
			{Name: "tags", Selector: ".tags li", Type: FieldList},
			{Name: "title_upper", Type: FieldComputed, Compute: func(r map[string]any) (any, error) {
				return strings.ToUpper(r["title"].(string)), nil
			}},
		},
	}

	strategy := NewCSSStrategy(schema)
	records, err := strategy.Run(context.Background(), "https://example.com", []string{html})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	r := records[0]
	if r["title"] != "Hello" {
		t.Errorf("title = %v", r["title"])
	}
	if r["author_url"] != "/u/jane" {
		t.Errorf("author_url = %v", r["author_url"])
	}
	tags, ok := r["tags"].([]string)
	if !ok || len(tags) != 2 {
		t.Fatalf("tags = %v", r["tags"])
	}
	if r["title_upper"] != "HELLO" {
		t.Errorf("title_upper = %v", r["title_upper"])
	}
}

func TestCSSStrategy_NestedList(t *testing.T) {
	html := `<ul class="items">
		<li><span class="name">A</span><span class="price">1</span></li>
		<li><span class="name">B</span><span class="price">2</span></li>
	</ul>`

	schema := Schema{
		Fields: []Field{
			{Name: "items", Selector: ".items li", Type: FieldNestedList, Fields: []Field{
				{Name: "name", Selector: ".name", Type: FieldText},
				{Name: "price", Selector: ".price", Type: FieldText},
			}},
		},
	}

	strategy := NewCSSStrategy(schema)
	records, err := strategy.Run(context.Background(), "https://example.com", []string{html})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items, ok := records[0]["items"].([]map[string]any)
	if !ok || len(items) != 2 {
		t.Fatalf("items = %v", records[0]["items"])
	}
	if items[0]["name"] != "A" || items[1]["name"] != "B" {
		t.Errorf("unexpected item contents: %+v", items)
	}
}

func TestXPathStrategy_ExtractsTextAndAttribute(t *testing.T) {
	html := `<div class="article"><h1>Hello</h1><a href="/u/jane">Jane</a></div>`

	schema := Schema{
		BaseSelector: "//div[@class='article']",
		Fields: []Field{
			{Name: "title", Selector: "//h1", Type: FieldText},
			{Name: "author_url", Selector: "//a", Type: FieldAttribute, Attribute: "href"},
		},
	}

	strategy := NewXPathStrategy(schema)
	records, err := strategy.Run(context.Background(), "https://example.com", []string{html})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0]["title"] != "Hello" {
		t.Errorf("title = %v", records[0]["title"])
	}
	if records[0]["author_url"] != "/u/jane" {
		t.Errorf("author_url = %v", records[0]["author_url"])
	}
}

func TestCompileXPath_RejectsInvalidExpression(t *testing.T) {
	if err := compileXPath("//div[unclosed"); err == nil {
		t.Error("expected an error for a malformed XPath expression")
	}
}

func TestStripMarkdownCodeBlock_RemovesJSONFence(t *testing.T) {
	got := stripMarkdownCodeBlock("```json\n{\"a\":1}\n```")
	if got != `{"a":1}` {
		t.Errorf("got %q", got)
	}
}

func TestTruncateContent_RespectsLimit(t *testing.T) {
	got := truncateContent("0123456789", 5)
	if !strings.HasPrefix(got, "01234") {
		t.Errorf("got %q", got)
	}
	if !strings.Contains(got, "truncated") {
		t.Errorf("expected truncation marker, got %q", got)
	}
}
