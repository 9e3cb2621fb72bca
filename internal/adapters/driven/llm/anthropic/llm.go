// Package anthropic provides a streaming LLM service adapter using Anthropic API.
package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/valet-cli/internal/core/domain"
	"github.com/custodia-labs/valet-cli/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.anthropic.com"
	DefaultModel   = "claude-3-5-sonnet-latest"
	DefaultTimeout = 120 * time.Second

	// AnthropicVersion is the required API version header.
	anthropicVersion = "2023-06-01"

	// defaultMaxTokens applies when the caller sets none; the API
	// requires max_tokens on every request.
	defaultMaxTokens = 1024
)

// maxLineSize bounds a single event stream line.
const maxLineSize = 1024 * 1024

// Config holds configuration for the Anthropic LLM service.
type Config struct {
	// APIKey is the Anthropic API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.anthropic.com).
	BaseURL string

	// Model is the LLM model to use (default: claude-3-5-sonnet-latest).
	Model string

	// Timeout caps one full streamed response (default: 120s).
	Timeout time.Duration
}

// LLMService provides streaming chat completions using Anthropic API.
type LLMService struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// messagesRequest is the Anthropic /v1/messages request format.
type messagesRequest struct {
	Model       string            `json:"model"`
	Messages    []messagesMessage `json:"messages"`
	MaxTokens   int               `json:"max_tokens"`
	System      string            `json:"system,omitempty"`
	Temperature float64           `json:"temperature,omitempty"`
	Stream      bool              `json:"stream"`
	Tools       []toolSchema      `json:"tools,omitempty"`
}

// messagesMessage is the Anthropic message format. Content is either a
// plain string or a list of content blocks.
type messagesMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// contentBlock is one element of a structured message body.
type contentBlock struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
}

// toolSchema is the Anthropic tool declaration format.
type toolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// streamEvent is one decoded event stream payload.
type streamEvent struct {
	Type         string `json:"type"`
	Index        int    `json:"index"`
	ContentBlock struct {
		Type  string         `json:"type"`
		ID    string         `json:"id"`
		Name  string         `json:"name"`
		Input map[string]any `json:"input"`
	} `json:"content_block"`
	Delta struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
		StopReason  string `json:"stop_reason"`
	} `json:"delta"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewLLMService creates a new Anthropic LLM service.
func NewLLMService(cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: %w: API key is required", domain.ErrNotConfigured)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &LLMService{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

// ChatStream opens a streamed completion for the conversation.
func (s *LLMService) ChatStream(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (driven.ChatStream, error) {
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	reqBody := messagesRequest{
		Model:     s.model,
		Messages:  convertMessages(messages),
		MaxTokens: maxTokens,
		System:    opts.System,
		Stream:    true,
	}
	if opts.Temperature > 0 {
		reqBody.Temperature = opts.Temperature
	}
	for _, def := range opts.Tools {
		reqBody.Tools = append(reqBody.Tools, toolSchemaFor(def))
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		s.baseURL+"/v1/messages",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w: %v", domain.ErrLLMUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, statusError(resp.StatusCode, body)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &chatStream{body: resp.Body, scanner: scanner, toolIndex: -1}, nil
}

// convertMessages translates port messages into the Anthropic wire format.
// Tool results become user messages carrying tool_result blocks, paired
// with the preceding assistant tool_use block through synthetic IDs.
func convertMessages(messages []driven.ChatMessage) []messagesMessage {
	out := make([]messagesMessage, 0, len(messages))
	toolUseID := ""
	for i, msg := range messages {
		switch {
		case msg.Role == driven.ChatRoleAssistant && msg.ToolCall != nil:
			toolUseID = fmt.Sprintf("toolu_%d", i)
			blocks := []contentBlock{}
			if msg.Content != "" {
				blocks = append(blocks, contentBlock{Type: "text", Text: msg.Content})
			}
			input := msg.ToolCall.Args
			if input == nil {
				input = map[string]any{}
			}
			blocks = append(blocks, contentBlock{
				Type:  "tool_use",
				ID:    toolUseID,
				Name:  msg.ToolCall.Name,
				Input: input,
			})
			out = append(out, messagesMessage{Role: driven.ChatRoleAssistant, Content: blocks})

		case msg.Role == driven.ChatRoleTool:
			payload := msg.Content
			if msg.ToolResult != nil {
				payload = msg.ToolResult.Payload()
			}
			out = append(out, messagesMessage{
				Role: driven.ChatRoleUser,
				Content: []contentBlock{{
					Type:      "tool_result",
					ToolUseID: toolUseID,
					Content:   payload,
				}},
			})

		default:
			out = append(out, messagesMessage{Role: msg.Role, Content: msg.Content})
		}
	}
	return out
}

// toolSchemaFor translates a tool definition into the Anthropic
// tool declaration.
func toolSchemaFor(def domain.ToolDefinition) toolSchema {
	properties := make(map[string]any, len(def.Parameters))
	for _, p := range def.Parameters {
		properties[p.Name] = map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if required := def.RequiredParameters(); len(required) > 0 {
		schema["required"] = required
	}

	return toolSchema{
		Name:        def.Name,
		Description: def.Description,
		InputSchema: schema,
	}
}

// chatStream reads the Anthropic event stream. Tool input fragments
// are buffered per content block until the block stops.
type chatStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	closed  bool

	// first tool_use block accumulation; later blocks are ignored
	toolIndex    int
	toolName     string
	toolArgs     strings.Builder
	toolCaptured bool
}

var _ driven.ChatStream = (*chatStream)(nil)

// Recv returns the next stream event, or io.EOF after message_stop.
func (c *chatStream) Recv() (driven.StreamEvent, error) {
	for c.scanner.Scan() {
		line := strings.TrimSpace(c.scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

		var ev streamEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return driven.StreamEvent{}, fmt.Errorf("decode stream event: %w", err)
		}

		switch ev.Type {
		case "error":
			if ev.Error != nil {
				return driven.StreamEvent{}, fmt.Errorf("anthropic error: %s", ev.Error.Message)
			}
			return driven.StreamEvent{}, fmt.Errorf("anthropic: unspecified stream error")

		case "content_block_start":
			if ev.ContentBlock.Type == "tool_use" && !c.toolCaptured && c.toolIndex < 0 {
				c.toolIndex = ev.Index
				c.toolName = ev.ContentBlock.Name
				c.toolArgs.Reset()
			}

		case "content_block_delta":
			switch ev.Delta.Type {
			case "text_delta":
				if ev.Delta.Text != "" {
					return driven.StreamEvent{TextDelta: ev.Delta.Text}, nil
				}
			case "input_json_delta":
				if ev.Index == c.toolIndex {
					c.toolArgs.WriteString(ev.Delta.PartialJSON)
				}
			}

		case "content_block_stop":
			if ev.Index == c.toolIndex && !c.toolCaptured {
				c.toolCaptured = true
				return driven.StreamEvent{ToolCall: c.completedToolCall()}, nil
			}

		case "message_stop":
			return driven.StreamEvent{}, io.EOF
		}
	}

	if err := c.scanner.Err(); err != nil {
		return driven.StreamEvent{}, fmt.Errorf("read stream: %w", err)
	}
	return driven.StreamEvent{}, io.EOF
}

// completedToolCall assembles the buffered tool_use block.
func (c *chatStream) completedToolCall() *domain.ToolCallRequest {
	args := map[string]any{}
	if raw := c.toolArgs.String(); raw != "" {
		// Unparseable input surfaces as an empty arg set; dispatch
		// reports the missing arguments back to the model.
		_ = json.Unmarshal([]byte(raw), &args)
	}
	return &domain.ToolCallRequest{Name: c.toolName, Args: args}
}

// Close releases the underlying connection. Safe to call more than once.
func (c *chatStream) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.body.Close()
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping validates the service is reachable by checking the /v1/models endpoint.
// This is a lightweight check that validates the API key without running inference.
func (s *LLMService) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/models", http.NoBody)
	if err != nil {
		return fmt.Errorf("anthropic: failed to create ping request: %w", err)
	}
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("anthropic: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("anthropic: API returned status %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return statusError(resp.StatusCode, body)
	}
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}

// statusError maps an HTTP error status to the matching domain sentinel.
func statusError(status int, body []byte) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("anthropic: %w: status %d: %s", domain.ErrAuthRequired, status, string(body))
	case http.StatusTooManyRequests:
		return fmt.Errorf("anthropic: %w: status %d", domain.ErrRateLimited, status)
	default:
		return fmt.Errorf("anthropic error (status %d): %s", status, string(body))
	}
}
