// Package ollama provides a streaming LLM service adapter using Ollama.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/valet-cli/internal/core/domain"
	"github.com/custodia-labs/valet-cli/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultLLMModel   = "llama3.2"
	DefaultLLMTimeout = 120 * time.Second
)

// maxLineSize bounds a single NDJSON line.
const maxLineSize = 1024 * 1024

// LLMConfig holds configuration for the Ollama LLM service.
type LLMConfig struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the LLM model to use (default: llama3.2).
	Model string

	// Timeout caps one full streamed response (default: 120s).
	Timeout time.Duration
}

// LLMService provides streaming chat completions using Ollama.
type LLMService struct {
	client  *http.Client
	baseURL string
	model   string
}

// chatRequest is the Ollama /api/chat request format.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Tools    []toolSchema  `json:"tools,omitempty"`
	Options  *options      `json:"options,omitempty"`
}

// options holds generation parameters.
type options struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// chatMessage is the Ollama chat message format.
type chatMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
}

// toolCall is the Ollama function call format. Unlike other providers,
// arguments arrive as a decoded object, never as fragments.
type toolCall struct {
	Function functionCall `json:"function"`
}

// functionCall carries the called function name and arguments.
type functionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// toolSchema is the Ollama tool declaration format.
type toolSchema struct {
	Type     string         `json:"type"`
	Function functionSchema `json:"function"`
}

// functionSchema is the Ollama function declaration format.
type functionSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// chatChunk is one NDJSON line of a streamed /api/chat response.
type chatChunk struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`
}

// NewLLMService creates a new Ollama LLM service.
func NewLLMService(cfg LLMConfig) *LLMService {
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
		model:   cfg.Model,
	}
}

// ChatStream opens a streamed completion for the conversation.
func (s *LLMService) ChatStream(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (driven.ChatStream, error) {
	reqBody := chatRequest{
		Model:    s.model,
		Messages: convertMessages(messages, opts.System),
		Stream:   true,
	}
	if opts.MaxTokens > 0 || opts.Temperature > 0 {
		reqBody.Options = &options{
			NumPredict:  opts.MaxTokens,
			Temperature: opts.Temperature,
		}
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
		s.baseURL+"/api/chat",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w: %v", domain.ErrLLMUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(body))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &chatStream{body: resp.Body, scanner: scanner}, nil
}

// convertMessages translates port messages into the Ollama wire format.
func convertMessages(messages []driven.ChatMessage, system string) []chatMessage {
	out := make([]chatMessage, 0, len(messages)+1)
	if system != "" {
		out = append(out, chatMessage{Role: driven.ChatRoleSystem, Content: system})
	}

	for _, msg := range messages {
		m := chatMessage{Role: msg.Role, Content: msg.Content}
		if msg.Role == driven.ChatRoleAssistant && msg.ToolCall != nil {
			args := msg.ToolCall.Args
			if args == nil {
				args = map[string]any{}
			}
			m.ToolCalls = []toolCall{{Function: functionCall{
				Name:      msg.ToolCall.Name,
				Arguments: args,
			}}}
		}
		if msg.Role == driven.ChatRoleTool && msg.ToolResult != nil {
			m.Content = msg.ToolResult.Payload()
		}
		out = append(out, m)
	}
	return out
}

// functionSchemaFor translates a tool definition into the Ollama
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

// chatStream reads NDJSON lines from a streamed chat response.
// Ollama delivers tool calls whole, so no fragment buffering is needed.
type chatStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	closed  bool

	// queued tool call when a line carried both text and a call
	pendingCall *domain.ToolCallRequest
	doneSeen    bool
}

var _ driven.ChatStream = (*chatStream)(nil)

// Recv returns the next stream event, or io.EOF after the final line.
func (c *chatStream) Recv() (driven.StreamEvent, error) {
	if c.pendingCall != nil {
		call := c.pendingCall
		c.pendingCall = nil
		return driven.StreamEvent{ToolCall: call}, nil
	}
	if c.doneSeen {
		return driven.StreamEvent{}, io.EOF
	}

	for c.scanner.Scan() {
		line := bytes.TrimSpace(c.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk chatChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return driven.StreamEvent{}, fmt.Errorf("decode stream chunk: %w", err)
		}
		if chunk.Error != "" {
			return driven.StreamEvent{}, fmt.Errorf("ollama error: %s", chunk.Error)
		}

		var call *domain.ToolCallRequest
		if len(chunk.Message.ToolCalls) > 0 {
			first := chunk.Message.ToolCalls[0]
			args := first.Function.Arguments
			if args == nil {
				args = map[string]any{}
			}
			call = &domain.ToolCallRequest{Name: first.Function.Name, Args: args}
		}

		if chunk.Done {
			c.doneSeen = true
		}

		if chunk.Message.Content != "" {
			c.pendingCall = call
			return driven.StreamEvent{TextDelta: chunk.Message.Content}, nil
		}
		if call != nil {
			return driven.StreamEvent{ToolCall: call}, nil
		}
		if c.doneSeen {
			return driven.StreamEvent{}, io.EOF
		}
	}

	if err := c.scanner.Err(); err != nil {
		return driven.StreamEvent{}, fmt.Errorf("read stream: %w", err)
	}
	return driven.StreamEvent{}, io.EOF
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

// Ping validates the service is reachable by checking the /api/tags endpoint.
// This is a lightweight check that validates connectivity without running inference.
func (s *LLMService) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("ollama: failed to create ping request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("ollama: API returned status %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return fmt.Errorf("ollama: API returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}
