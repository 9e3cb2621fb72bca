// Package openai provides a streaming LLM service adapter using OpenAI API.
package openai

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
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultLLMModel   = "gpt-4o-mini"
	DefaultLLMTimeout = 120 * time.Second
)

// maxLineSize bounds a single SSE line; completions rarely exceed a few KB
// per chunk but tool argument fragments can get long.
const maxLineSize = 1024 * 1024

// LLMConfig holds configuration for the OpenAI LLM service.
type LLMConfig struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	// Can be changed for Azure OpenAI or compatible APIs.
	BaseURL string

	// Model is the LLM model to use (default: gpt-4o-mini).
	Model string

	// Timeout caps one full streamed response (default: 120s).
	Timeout time.Duration
}

// LLMService provides streaming chat completions using OpenAI API.
type LLMService struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// chatCompletionRequest is the OpenAI /chat/completions request format.
type chatCompletionRequest struct {
	Model       string              `json:"model"`
	Messages    []chatCompletionMsg `json:"messages"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature float64             `json:"temperature,omitempty"`
	Stream      bool                `json:"stream"`
	Tools       []toolSchema        `json:"tools,omitempty"`
}

// chatCompletionMsg is the OpenAI chat message format.
type chatCompletionMsg struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// toolCall is the OpenAI function call format, both whole and as a
// streaming fragment.
type toolCall struct {
	Index    int          `json:"index"`
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type,omitempty"`
	Function toolFunction `json:"function"`
}

// toolFunction carries the called function name and JSON argument text.
type toolFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// toolSchema is the OpenAI tool declaration format.
type toolSchema struct {
	Type     string         `json:"type"`
	Function functionSchema `json:"function"`
}

// functionSchema is the OpenAI function declaration format.
type functionSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// streamChunk is one decoded SSE payload from a streamed completion.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string     `json:"content"`
			ToolCalls []toolCall `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewLLMService creates a new OpenAI LLM service.
func NewLLMService(cfg LLMConfig) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: %w: API key is required", domain.ErrNotConfigured)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
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
	reqBody := chatCompletionRequest{
		Model:    s.model,
		Messages: convertMessages(messages, opts.System),
		Stream:   true,
	}
	if opts.MaxTokens > 0 {
		reqBody.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		reqBody.Temperature = opts.Temperature
	}
	for _, def := range opts.Tools {
		reqBody.Tools = append(reqBody.Tools, toolSchema{
			Type:     "function",
			Function: functionSchemaFor(def),
		})
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		s.baseURL+"/chat/completions",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai: %w: %v", domain.ErrLLMUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, statusError(resp.StatusCode, body)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &chatStream{body: resp.Body, scanner: scanner}, nil
}

// convertMessages translates port messages into the OpenAI wire format.
// System content goes first; assistant tool calls and their results are
// paired through synthetic call IDs.
func convertMessages(messages []driven.ChatMessage, system string) []chatCompletionMsg {
	out := make([]chatCompletionMsg, 0, len(messages)+1)
	if system != "" {
		out = append(out, chatCompletionMsg{Role: driven.ChatRoleSystem, Content: system})
	}

	callID := ""
	for i, msg := range messages {
		m := chatCompletionMsg{Role: msg.Role, Content: msg.Content}
		if msg.Role == driven.ChatRoleAssistant && msg.ToolCall != nil {
			callID = fmt.Sprintf("call_%d", i)
			m.ToolCalls = []toolCall{{
				ID:   callID,
				Type: "function",
				Function: toolFunction{
					Name:      msg.ToolCall.Name,
					Arguments: marshalArgs(msg.ToolCall.Args),
				},
			}}
		}
		if msg.Role == driven.ChatRoleTool {
			m.ToolCallID = callID
			if msg.ToolResult != nil {
				m.Content = msg.ToolResult.Payload()
			}
		}
		out = append(out, m)
	}
	return out
}

// functionSchemaFor translates a tool definition into the OpenAI
// function declaration.
func functionSchemaFor(def domain.ToolDefinition) functionSchema {
	properties := make(map[string]any, len(def.Parameters))
	for _, p := range def.Parameters {
		properties[p.Name] = map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
	}

	parameters := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if required := def.RequiredParameters(); len(required) > 0 {
		parameters["required"] = required
	}

	return functionSchema{
		Name:        def.Name,
		Description: def.Description,
		Parameters:  parameters,
	}
}

// marshalArgs encodes call arguments; tool args always originate from
// JSON so encoding cannot realistically fail.
func marshalArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(encoded)
}

// chatStream reads SSE lines from a streamed completion.
// Tool call argument fragments are buffered until the call is whole.
type chatStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	closed  bool

	// first tool call accumulation; later parallel calls are ignored
	toolName    string
	toolArgs    strings.Builder
	toolPending bool
}

var _ driven.ChatStream = (*chatStream)(nil)

// Recv returns the next stream event, or io.EOF after the final one.
func (c *chatStream) Recv() (driven.StreamEvent, error) {
	for c.scanner.Scan() {
		line := strings.TrimSpace(c.scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

		if payload == "[DONE]" {
			if event, ok := c.flushToolCall(); ok {
				return event, nil
			}
			return driven.StreamEvent{}, io.EOF
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return driven.StreamEvent{}, fmt.Errorf("decode stream chunk: %w", err)
		}
		if chunk.Error != nil {
			return driven.StreamEvent{}, fmt.Errorf("openai error: %s", chunk.Error.Message)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]

		for _, call := range choice.Delta.ToolCalls {
			if call.Index != 0 {
				continue
			}
			c.toolPending = true
			if call.Function.Name != "" {
				c.toolName = call.Function.Name
			}
			c.toolArgs.WriteString(call.Function.Arguments)
		}

		if choice.Delta.Content != "" {
			return driven.StreamEvent{TextDelta: choice.Delta.Content}, nil
		}

		if choice.FinishReason != "" {
			if event, ok := c.flushToolCall(); ok {
				return event, nil
			}
		}
	}

	if err := c.scanner.Err(); err != nil {
		return driven.StreamEvent{}, fmt.Errorf("read stream: %w", err)
	}
	if event, ok := c.flushToolCall(); ok {
		return event, nil
	}
	return driven.StreamEvent{}, io.EOF
}

// flushToolCall emits the buffered tool call once it is complete.
func (c *chatStream) flushToolCall() (driven.StreamEvent, bool) {
	if !c.toolPending || c.toolName == "" {
		return driven.StreamEvent{}, false
	}
	c.toolPending = false

	args := map[string]any{}
	if raw := c.toolArgs.String(); raw != "" {
		// A fragment that never parses means the model produced garbage;
		// pass the call through with empty args and let dispatch report it.
		_ = json.Unmarshal([]byte(raw), &args)
	}

	return driven.StreamEvent{
		ToolCall: &domain.ToolCallRequest{Name: c.toolName, Args: args},
	}, true
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

// Ping validates the service is reachable by checking the /models endpoint.
// This is a lightweight check that validates the API key without running inference.
func (s *LLMService) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/models", http.NoBody)
	if err != nil {
		return fmt.Errorf("openai: failed to create ping request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("openai: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("openai: API returned status %d (failed to read body: %w)", resp.StatusCode, err)
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
		return fmt.Errorf("openai: %w: status %d: %s", domain.ErrAuthRequired, status, string(body))
	case http.StatusTooManyRequests:
		return fmt.Errorf("openai: %w: status %d", domain.ErrRateLimited, status)
	default:
		return fmt.Errorf("openai error (status %d): %s", status, string(body))
	}
}
