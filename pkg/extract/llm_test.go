package extract

import (
	"context"
	"testing"

	"github.com/jmylchreest/crawlcore/pkg/llm"
	"github.com/jmylchreest/crawlcore/pkg/schema"
)

type fakeProvider struct {
	response string
	err      error
	calls    int
}

func (p *fakeProvider) Execute(ctx context.Context, req llm.Request) (*llm.Response, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &llm.Response{Content: p.response}, nil
}

func (p *fakeProvider) Name() string  { return "fake" }
func (p *fakeProvider) Model() string { return "fake-model" }

type article struct {
	Title string `json:"title"`
}

func TestLLMStrategy_ParsesJSONResponse(t *testing.T) {
	s, err := schema.NewSchema[article]()
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	provider := &fakeProvider{response: `{"title": "Hello"}`}
	strategy := NewLLMStrategy(DefaultLLMOptions(provider, s))

	records, err := strategy.Run(context.Background(), "https://example.com", []string{"some page content"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0]["title"] != "Hello" {
		t.Errorf("title = %v", records[0]["title"])
	}
	if provider.calls != 1 {
		t.Errorf("expected 1 provider call, got %d", provider.calls)
	}
}

func TestLLMStrategy_StripsCodeFence(t *testing.T) {
	s, err := schema.NewSchema[article]()
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	provider := &fakeProvider{response: "```json\n{\"title\": \"Fenced\"}\n```"}
	strategy := NewLLMStrategy(DefaultLLMOptions(provider, s))

	records, err := strategy.Run(context.Background(), "https://example.com", []string{"content"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if records[0]["title"] != "Fenced" {
		t.Errorf("title = %v", records[0]["title"])
	}
}

func TestLLMStrategy_SkipsSectionOnProviderError(t *testing.T) {
	s, err := schema.NewSchema[article]()
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	provider := &fakeProvider{err: context.DeadlineExceeded}
	strategy := NewLLMStrategy(DefaultLLMOptions(provider, s))

	records, err := strategy.Run(context.Background(), "https://example.com", []string{"content"})
	if err != nil {
		t.Fatalf("unexpected top-level error, section errors should be swallowed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records when the provider errors, got %d", len(records))
	}
}

func TestLLMStrategy_SkipsSectionOnMalformedJSON(t *testing.T) {
	s, err := schema.NewSchema[article]()
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	provider := &fakeProvider{response: "not json"}
	strategy := NewLLMStrategy(DefaultLLMOptions(provider, s))

	records, err := strategy.Run(context.Background(), "https://example.com", []string{"content"})
	if err != nil {
		t.Fatalf("unexpected top-level error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records for malformed JSON, got %d", len(records))
	}
}

func TestLLMStrategy_Name_IncludesProvider(t *testing.T) {
	s, _ := schema.NewSchema[article]()
	provider := &fakeProvider{}
	strategy := NewLLMStrategy(DefaultLLMOptions(provider, s))
	if strategy.Name() != "llm:fake" {
		t.Errorf("got %q", strategy.Name())
	}
}
