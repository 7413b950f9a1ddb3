package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anatolykoptev/go-kit/llm"

	"github.com/anatolykoptev/notelens/internal/notes"
)

// ToolsClient extracts AI tool mentions from a transcript with a single
// structured completion.
type ToolsClient struct {
	client *llm.Client
}

// NewToolsClient wraps an LLM client for tool extraction.
func NewToolsClient(client *llm.Client) *ToolsClient {
	return &ToolsClient{client: client}
}

// toolsOutput is the JSON structure expected from the extraction model.
type toolsOutput struct {
	Tools []notes.ToolMention `json:"tools"`
}

// Extract implements notes.ToolExtractor.
func (c *ToolsClient) Extract(ctx context.Context, transcript, videoTitle string) ([]notes.ToolMention, error) {
	notes.IncrLLMCall()
	raw, err := c.client.Complete(ctx, toolsSystemPrompt, buildToolsPrompt(transcript, videoTitle),
		llm.WithChatTemperature(0.2),
	)
	if err != nil {
		notes.IncrLLMError()
		return nil, fmt.Errorf("%w: %v", notes.ErrToolExtraction, err)
	}

	tools, err := parseToolsResponse(raw)
	if err != nil {
		notes.IncrLLMError()
		return nil, err
	}
	return tools, nil
}

// parseToolsResponse decodes the extraction model's JSON, tolerating fenced
// output and a bare array instead of the wrapper object.
func parseToolsResponse(raw string) ([]notes.ToolMention, error) {
	raw = stripFences(raw)
	var out toolsOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		var bare []notes.ToolMention
		if err2 := json.Unmarshal([]byte(raw), &bare); err2 != nil {
			return nil, fmt.Errorf("%w: parse failed on %q: %v", notes.ErrToolExtraction, clip(raw, 200), err)
		}
		out.Tools = bare
	}
	return sanitizeTools(out.Tools), nil
}

// sanitizeTools drops unusable entries and clamps out-of-range fields so the
// pipeline never persists junk from a sloppy model response.
func sanitizeTools(in []notes.ToolMention) []notes.ToolMention {
	out := make([]notes.ToolMention, 0, len(in))
	for _, t := range in {
		t.Name = strings.TrimSpace(t.Name)
		if t.Name == "" {
			continue
		}
		if t.Confidence != nil {
			c := *t.Confidence
			if c < 0 {
				c = 0
			} else if c > 1 {
				c = 1
			}
			t.Confidence = &c
		}
		if t.Timestamp != nil && *t.Timestamp < 0 {
			t.Timestamp = nil
		}
		out = append(out, t)
	}
	return out
}

// stripFences removes markdown code fences from LLM output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
