// Package llm holds the two hosted-model clients: a streaming markdown
// notes generator and a structured tool extractor.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/anatolykoptev/notelens/internal/notes"
)

// NotesClient streams markdown lecture notes from an OpenAI-compatible
// chat-completions endpoint.
type NotesClient struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
}

// NotesConfig wires a NotesClient. BaseURL is the API root without the
// /chat/completions suffix.
type NotesConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	HTTPClient  *http.Client
}

// NewNotesClient builds a NotesClient.
func NewNotesClient(cfg NotesConfig) *NotesClient {
	if cfg.HTTPClient == nil {
		// No overall timeout: streams run until the context says stop.
		cfg.HTTPClient = &http.Client{Timeout: 0}
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.4
	}
	return &NotesClient{
		httpClient:  cfg.HTTPClient,
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

type chatStreamReq struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate implements notes.NotesGenerator. The request is opened before the
// channel is returned, so connection and auth failures surface as a start
// error rather than a mid-stream one.
func (c *NotesClient) Generate(ctx context.Context, transcript, videoTitle string) (<-chan notes.NotesDelta, error) {
	notes.IncrLLMCall()

	body, err := json.Marshal(chatStreamReq{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: notesSystemPrompt},
			{Role: "user", Content: buildNotesPrompt(transcript, videoTitle)},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Stream:      true,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		notes.IncrLLMError()
		return nil, fmt.Errorf("%w: %v", notes.ErrNotesGeneration, err)
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		resp.Body.Close()
		notes.IncrLLMError()
		return nil, fmt.Errorf("%w: HTTP %d: %s", notes.ErrNotesGeneration, resp.StatusCode, snippet)
	}

	out := make(chan notes.NotesDelta)
	go c.readStream(ctx, resp.Body, out)
	return out, nil
}

// readStream consumes the SSE body, forwarding content deltas until [DONE].
func (c *NotesClient) readStream(ctx context.Context, body io.ReadCloser, out chan<- notes.NotesDelta) {
	defer close(out)
	defer body.Close()

	send := func(d notes.NotesDelta) bool {
		select {
		case out <- d:
			return true
		case <-ctx.Done():
			return false
		}
	}

	// The terminal error delta is sent unconditionally: when a timeout kills
	// the body read, ctx is already done, and racing the send against
	// ctx.Done() could drop the error and make the truncated stream close
	// cleanly. The consumer drains the channel until close either way.
	fail := func(err error) {
		notes.IncrLLMError()
		out <- notes.NotesDelta{Err: fmt.Errorf("%w: %v", notes.ErrNotesGeneration, err)}
	}

	var gotContent, gotDone bool
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			gotDone = true
			break
		}

		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue // tolerate keep-alives and junk lines
		}
		if chunk.Error != nil {
			fail(errors.New(chunk.Error.Message))
			return
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if content := chunk.Choices[0].Delta.Content; content != "" {
			gotContent = true
			if !send(notes.NotesDelta{Text: content}) {
				return
			}
		}
		if fr := chunk.Choices[0].FinishReason; fr != nil && *fr != "" {
			gotDone = true
			break
		}
	}

	if err := scanner.Err(); err != nil {
		fail(fmt.Errorf("stream read: %v", err))
		return
	}
	if !gotDone && !gotContent {
		fail(errors.New("stream ended without content"))
		return
	}
	if !gotContent {
		fail(errors.New("model returned empty notes"))
	}
}
