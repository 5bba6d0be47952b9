package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmylchreest/crawlcore/internal/logger"
	"github.com/jmylchreest/crawlcore/pkg/llm"
	"github.com/jmylchreest/crawlcore/pkg/schema"
)

// LLMOptions configures an LLMStrategy. Wire protocol and provider
// selection are out of scope per spec.md §4.7 — callers supply an
// already-constructed llm.Provider.
type LLMOptions struct {
	Provider       llm.Provider
	Schema         schema.Schema
	SystemPrompt   string
	Temperature    float64
	MaxTokens      int
	MaxContentSize int  // 0 = unlimited
	StrictSchema   bool // request provider-native strict JSON-schema enforcement
}

// DefaultLLMOptions mirrors pkg/extractor's DefaultLLMConfig defaults.
func DefaultLLMOptions(provider llm.Provider, s schema.Schema) LLMOptions {
	return LLMOptions{
		Provider:       provider,
		Schema:         s,
		SystemPrompt:   defaultSystemPrompt,
		Temperature:    0.1,
		MaxTokens:      16384,
		MaxContentSize: 100000,
	}
}

const defaultSystemPrompt = `You are a data extraction assistant. Extract structured data from webpage content.

Content may be provided as Markdown, HTML, or plain text.

Respond with ONLY valid JSON matching the schema. No explanations.

Rules:
1. Required fields: use null if not found
2. Optional fields: omit if not found
3. URLs: use absolute URLs when possible
4. Numbers: extract numeric value only (no currency symbols)`

// LLMStrategy extracts records by prompting an llm.Provider with each
// section and parsing its structured JSON response against Schema, per
// spec.md §4.7's LLM-backed family.
type LLMStrategy struct {
	Options LLMOptions
}

// NewLLMStrategy builds an LLM-backed extraction strategy.
func NewLLMStrategy(opts LLMOptions) *LLMStrategy {
	return &LLMStrategy{Options: opts}
}

func (s *LLMStrategy) Name() string { return "llm:" + s.Options.Provider.Name() }

func (s *LLMStrategy) Run(ctx context.Context, url string, sections []string) ([]map[string]any, error) {
	var records []map[string]any
	for i, section := range sections {
		if ctx.Err() != nil {
			return records, ctx.Err()
		}

		record, err := s.runOne(ctx, section)
		if err != nil {
			logger.Debug("llm extract: section failed", "url", url, "section", i, "error", err)
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *LLMStrategy) runOne(ctx context.Context, section string) (map[string]any, error) {
	prompt := s.buildPrompt(section, nil)

	// Pass the schema through as a native JSON-schema response format when
	// the provider supports it; a malformed schema just falls back to the
	// prompt-only description already embedded in buildPrompt.
	jsonSchema, err := s.Options.Schema.ToJSONSchema()
	if err != nil {
		logger.Debug("llm extract: schema has no JSON-schema form, using prompt-only", "error", err)
	}

	resp, err := s.Options.Provider.Execute(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: s.systemPrompt()},
			{Role: llm.RoleUser, Content: prompt},
		},
		MaxTokens:   s.maxTokens(),
		Temperature: s.Options.Temperature,
		JSONSchema:  jsonSchema,
		StrictMode:  s.Options.StrictSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("llm execute: %w", err)
	}

	content := stripMarkdownCodeBlock(resp.Content)
	record, err := s.Options.Schema.Unmarshal([]byte(content))
	if err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if errs := s.Options.Schema.Validate(record); len(errs) > 0 {
		return nil, fmt.Errorf("validation failed: %v", errs)
	}

	return toRecordMap(record)
}

func (s *LLMStrategy) buildPrompt(content string, previousErr error) string {
	var b strings.Builder
	b.WriteString("Extract structured data from the following webpage content.\n\n")
	b.WriteString(s.Options.Schema.ToPromptDescription())

	if previousErr != nil {
		b.WriteString("\n## Previous Attempt Errors\n")
		b.WriteString("The previous extraction attempt had these errors that need to be fixed:\n")
		b.WriteString(previousErr.Error())
		b.WriteString("\n\nPlease correct these errors in your response.\n")
	}

	b.WriteString("\n## Webpage Content\n```\n")
	b.WriteString(truncateContent(content, s.Options.MaxContentSize))
	b.WriteString("\n```\n")
	return b.String()
}

func (s *LLMStrategy) systemPrompt() string {
	if s.Options.SystemPrompt != "" {
		return s.Options.SystemPrompt
	}
	return defaultSystemPrompt
}

func (s *LLMStrategy) maxTokens() int {
	if s.Options.MaxTokens > 0 {
		return s.Options.MaxTokens
	}
	return 16384
}

// truncateContent limits content size to avoid token limits. maxLen of 0
// means no limit.
func truncateContent(content string, maxLen int) string {
	if maxLen <= 0 || len(content) <= maxLen {
		return content
	}
	return content[:maxLen] + "\n\n[Content truncated due to length...]"
}

// stripMarkdownCodeBlock removes a ```json ... ``` or ``` ... ``` wrapper
// some models place around their JSON output.
func stripMarkdownCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "```json"):
		s = strings.TrimPrefix(s, "```json")
	case strings.HasPrefix(s, "```"):
		s = strings.TrimPrefix(s, "```")
	default:
		return s
	}
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// toRecordMap normalizes schema.Unmarshal's result (either a map, when the
// schema was loaded from file, or a pointer to a generated struct) into a
// plain map[string]any for the Strategy contract.
func toRecordMap(v any) (map[string]any, error) {
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return m, nil
}
