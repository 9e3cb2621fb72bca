package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/valet-cli/internal/core/domain"
	"github.com/custodia-labs/valet-cli/internal/core/ports/driven"
	"github.com/custodia-labs/valet-cli/internal/core/ports/driving"
	"github.com/custodia-labs/valet-cli/internal/logger"
)

// Ensure ChatService implements the interface.
var _ driving.ChatService = (*ChatService)(nil)

// turnState is the orchestrator's position in one turn cycle.
type turnState int

// Turn cycle states.
const (
	stateIdle turnState = iota
	stateSending
	stateStreamingModel
	stateToolRequested
	stateDispatchingTool
	stateFinalizing
)

// String returns the state name for logging.
func (s turnState) String() string {
	switch s {
	case stateIdle:
		return "Idle"
	case stateSending:
		return "Sending"
	case stateStreamingModel:
		return "StreamingModel"
	case stateToolRequested:
		return "ToolRequested"
	case stateDispatchingTool:
		return "DispatchingTool"
	case stateFinalizing:
		return "Finalizing"
	default:
		return "Unknown"
	}
}

// ragContextHeader introduces the retrieved context block prepended to
// an augmented prompt.
const ragContextHeader = "Context from your documents and notes:"

// ragContextSeparator closes the context block before the question.
const ragContextSeparator = "---"

// ChatService orchestrates one conversation session: it augments user
// turns with retrieved context, streams model output, dispatches tool
// calls and finalizes turns.
//
// One turn runs at a time per session; concurrent sends are rejected
// with domain.ErrSessionBusy. Sessions share no mutable state with each
// other beyond the read-only tool registry and provider configuration.
type ChatService struct {
	mu sync.Mutex

	llm       driven.LLMService
	retrieval driving.RetrievalService // optional, nil disables RAG
	tools     driving.ToolRunner       // optional, nil disables tool calling
	convStore driven.ConversationStore // optional, nil disables persistence

	session *domain.Session
	msgs    []driven.ChatMessage // accumulated model context
	busy    bool
	state   turnState

	clockFunc func() time.Time
	idFunc    func() string
}

// NewChatService creates a chat service for one session. The retrieval
// service, tool runner and conversation store may be nil; the matching
// features degrade gracefully.
func NewChatService(
	llm driven.LLMService,
	retrieval driving.RetrievalService,
	tools driving.ToolRunner,
	convStore driven.ConversationStore,
	config domain.SessionConfig,
) *ChatService {
	s := &ChatService{
		llm:       llm,
		retrieval: retrieval,
		tools:     tools,
		convStore: convStore,
		clockFunc: time.Now,
		idFunc:    func() string { return uuid.NewString() },
	}
	s.session = s.newSession(config, 0)
	return s
}

// newSession builds a fresh session carrying the given epoch forward.
func (s *ChatService) newSession(config domain.SessionConfig, epoch int64) *domain.Session {
	return &domain.Session{
		ID:        s.idFunc(),
		Config:    config,
		Epoch:     epoch,
		CreatedAt: s.clockFunc().UTC(),
	}
}

// Session returns the current session.
func (s *ChatService) Session() *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// History returns a snapshot of the session transcript, oldest first.
// In-progress turns are copied at their current text.
func (s *ChatService) History() []domain.ConversationTurn {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := make([]domain.ConversationTurn, 0, len(s.session.Turns))
	for _, t := range s.session.Turns {
		turns = append(turns, *t)
	}
	return turns
}

// Configure replaces the session configuration. The epoch is bumped so
// any in-flight turn discards its late results, and the transcript and
// model context are torn down.
func (s *ChatService) Configure(config domain.SessionConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger.Debug("Session reconfigured: provider=%s model=%s persona=%s",
		config.Provider, config.Model, config.Persona)
	s.session = s.newSession(config, s.session.Epoch+1)
	s.msgs = nil
	return nil
}

// SetLLM swaps the model adapter, invalidating the session the same way
// a configuration change does.
func (s *ChatService) SetLLM(llm driven.LLMService) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.llm = llm
	s.session = s.newSession(s.session.Config, s.session.Epoch+1)
	s.msgs = nil
}

// Reset discards the transcript and model context, keeping the
// configuration. In-flight turns are invalidated.
func (s *ChatService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = s.newSession(s.session.Config, s.session.Epoch+1)
	s.msgs = nil
}

// Resume seeds the transcript and model context from previously
// persisted turns, oldest first. Only finalized turns are accepted.
func (s *ChatService) Resume(sessionID string, turns []domain.ConversationTurn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = s.newSession(s.session.Config, s.session.Epoch+1)
	if sessionID != "" {
		s.session.ID = sessionID
	}
	s.msgs = nil

	for i := range turns {
		turn := turns[i]
		if turn.Streaming {
			continue
		}
		s.session.Turns = append(s.session.Turns, &turn)
		switch turn.Role {
		case domain.RoleUser:
			s.msgs = append(s.msgs, driven.ChatMessage{Role: driven.ChatRoleUser, Content: turn.Text})
		case domain.RoleModel:
			s.msgs = append(s.msgs, driven.ChatMessage{Role: driven.ChatRoleAssistant, Content: turn.Text})
		}
	}
}

// Send submits a user message and runs one full turn cycle: Sending →
// StreamingModel → (ToolRequested → DispatchingTool → StreamingModel)*
// → Finalizing. It blocks until the model turn is finalized.
func (s *ChatService) Send(ctx context.Context, text string, sink driving.EventSink) (*domain.ConversationTurn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: message is empty", domain.ErrInvalidInput)
	}
	if sink == nil {
		sink = func(domain.TurnEvent) {}
	}

	s.mu.Lock()
	if s.llm == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: no chat provider configured", domain.ErrNotConfigured)
	}
	if s.busy {
		s.mu.Unlock()
		return nil, domain.ErrSessionBusy
	}
	s.busy = true
	epoch := s.session.Epoch
	config := s.session.Config
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.state = stateIdle
		s.mu.Unlock()
	}()

	s.transition(stateSending)

	// Build the outgoing content, augmented with retrieved context when
	// retrieval produces relevant chunks. Retrieval failure degrades to
	// the raw query; it never aborts the turn.
	content, sources, ragUsed := s.augment(ctx, text, config)

	userTurn := &domain.ConversationTurn{
		ID:        s.idFunc(),
		Role:      domain.RoleUser,
		Text:      text,
		Timestamp: s.clockFunc().UTC(),
	}
	modelTurn := &domain.ConversationTurn{
		Role:           domain.RoleModel,
		Timestamp:      s.clockFunc().UTC(),
		Streaming:      true,
		RAGContextUsed: ragUsed,
	}

	s.mu.Lock()
	if s.session.Epoch != epoch {
		s.mu.Unlock()
		return nil, domain.ErrSessionStale
	}
	s.session.Turns = append(s.session.Turns, userTurn, modelTurn)
	s.msgs = append(s.msgs, driven.ChatMessage{Role: driven.ChatRoleUser, Content: content})
	s.mu.Unlock()

	sink(domain.TurnEvent{Kind: domain.TurnEventStarted})

	opts := driven.ChatOptions{System: config.SystemPrompt}
	if s.tools != nil {
		opts.Tools = s.tools.Definitions()
	}

	if err := s.streamTurn(ctx, epoch, config, opts, modelTurn, sink); err != nil {
		finalizeErr := s.finalize(userTurn, modelTurn, sources, epoch, err, sink)
		if finalizeErr != nil {
			return nil, finalizeErr
		}
		return modelTurn, err
	}

	if err := s.finalize(userTurn, modelTurn, sources, epoch, nil, sink); err != nil {
		return nil, err
	}
	return modelTurn, nil
}

// streamTurn drives the StreamingModel / DispatchingTool loop until the
// model finishes with plain text or the hop budget runs out.
func (s *ChatService) streamTurn(
	ctx context.Context,
	epoch int64,
	config domain.SessionConfig,
	opts driven.ChatOptions,
	turn *domain.ConversationTurn,
	sink driving.EventSink,
) error {
	maxHops := config.MaxToolHops
	if maxHops < 0 {
		maxHops = 0
	}

	for hop := 0; ; hop++ {
		s.transition(stateStreamingModel)

		s.mu.Lock()
		msgs := make([]driven.ChatMessage, len(s.msgs))
		copy(msgs, s.msgs)
		s.mu.Unlock()

		stream, err := s.llm.ChatStream(ctx, msgs, opts)
		if err != nil {
			return fmt.Errorf("opening model stream: %w", err)
		}

		cycleText, toolCall, err := s.consume(stream, epoch, turn, sink)
		stream.Close()
		if err != nil {
			return err
		}

		if toolCall == nil {
			// Plain-text completion ends the loop.
			s.appendAssistant(epoch, cycleText, nil)
			return nil
		}

		s.transition(stateToolRequested)
		logger.Debug("Tool requested: %s (hop %d of %d)", toolCall.Name, hop+1, maxHops)

		s.transition(stateDispatchingTool)
		s.setToolInProgress(epoch, turn, toolCall.Name)
		sink(domain.TurnEvent{Kind: domain.TurnEventToolCall, ToolName: toolCall.Name})

		result := s.dispatch(ctx, *toolCall)
		s.setToolInProgress(epoch, turn, "")
		sink(domain.TurnEvent{Kind: domain.TurnEventToolResult, ToolName: toolCall.Name, ToolOK: result.OK})

		if hop >= maxHops {
			// Hop budget spent: surface the result in the turn text
			// rather than opening another model cycle.
			logger.Debug("Max tool hops reached, summarising %s result", toolCall.Name)
			s.appendAssistant(epoch, cycleText, toolCall)
			s.appendDelta(epoch, turn, formatToolSummary(toolCall.Name, result), sink)
			return nil
		}

		// Feed the result back and continue the same logical turn on a
		// fresh stream.
		s.appendAssistant(epoch, cycleText, toolCall)
		s.mu.Lock()
		if s.session.Epoch == epoch {
			s.msgs = append(s.msgs, driven.ChatMessage{
				Role:       driven.ChatRoleTool,
				Content:    result.Payload(),
				ToolResult: &result,
			})
		}
		s.mu.Unlock()
	}
}

// consume drains one model stream, appending text deltas to the turn as
// they arrive. The first tool call wins; any further calls in the same
// cycle are ignored under the single-tool-per-cycle policy. Partial text
// accompanying a tool call is preserved.
func (s *ChatService) consume(
	stream driven.ChatStream,
	epoch int64,
	turn *domain.ConversationTurn,
	sink driving.EventSink,
) (string, *domain.ToolCallRequest, error) {
	var cycleText strings.Builder
	var toolCall *domain.ToolCallRequest

	for {
		event, err := stream.Recv()
		if err != nil {
			if isEOF(err) {
				return cycleText.String(), toolCall, nil
			}
			return cycleText.String(), toolCall, fmt.Errorf("reading model stream: %w", err)
		}

		if event.TextDelta != "" {
			cycleText.WriteString(event.TextDelta)
			s.appendDelta(epoch, turn, event.TextDelta, sink)
		}
		if event.ToolCall != nil {
			if toolCall != nil {
				logger.Debug("Ignoring additional tool call %s in same cycle", event.ToolCall.Name)
				continue
			}
			toolCall = event.ToolCall
		}
	}
}

// dispatch runs the tool call through the registry. A missing registry
// still yields a structured result, never a turn failure.
func (s *ChatService) dispatch(ctx context.Context, call domain.ToolCallRequest) domain.ToolResult {
	if s.tools == nil {
		return domain.NewToolError("no tools are available")
	}
	return s.tools.Dispatch(ctx, call)
}

// augment queries retrieval for the raw user text and wraps hits into a
// delimited context block. Failures degrade to the raw query.
func (s *ChatService) augment(ctx context.Context, text string, config domain.SessionConfig) (string, []domain.SourceRef, bool) {
	if !config.RAGEnabled || s.retrieval == nil {
		return text, nil, false
	}

	chunks, err := s.retrieval.Retrieve(ctx, text, domain.RetrieveOptions{})
	if err != nil {
		logger.Warn("Context retrieval failed, sending raw query: %v", err)
		return text, nil, false
	}
	if len(chunks) == 0 {
		return text, nil, false
	}

	logger.Debug("Augmenting prompt with %d retrieved chunks", len(chunks))

	var b strings.Builder
	b.WriteString(ragContextHeader)
	b.WriteString("\n\n")

	seen := make(map[string]bool)
	var sources []domain.SourceRef
	for i, c := range chunks {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, strings.TrimSpace(c.Chunk.Text))
		key := c.Source.URI + "\x00" + c.Source.Title
		if !seen[key] && (c.Source.Title != "" || c.Source.URI != "") {
			seen[key] = true
			sources = append(sources, c.Source)
		}
	}

	b.WriteString("\n")
	b.WriteString(ragContextSeparator)
	b.WriteString("\n\n")
	b.WriteString(text)

	return b.String(), sources, true
}

// appendDelta grows the in-progress turn text, unless the session moved
// on to a newer epoch, in which case the late delta is discarded.
func (s *ChatService) appendDelta(epoch int64, turn *domain.ConversationTurn, delta string, sink driving.EventSink) {
	if delta == "" {
		return
	}

	s.mu.Lock()
	if s.session.Epoch != epoch {
		s.mu.Unlock()
		return
	}
	turn.Text += delta
	s.mu.Unlock()

	sink(domain.TurnEvent{Kind: domain.TurnEventDelta, Delta: delta})
}

// appendAssistant records the model's half of one cycle in the
// accumulated context, with the tool call it made, if any.
func (s *ChatService) appendAssistant(epoch int64, text string, call *domain.ToolCallRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.Epoch != epoch {
		return
	}
	s.msgs = append(s.msgs, driven.ChatMessage{
		Role:     driven.ChatRoleAssistant,
		Content:  text,
		ToolCall: call,
	})
}

// setToolInProgress marks which tool the turn is waiting on.
func (s *ChatService) setToolInProgress(epoch int64, turn *domain.ConversationTurn, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.Epoch != epoch {
		return
	}
	turn.ToolCallInProgress = name
}

// finalize makes the model turn immutable: it gets its permanent ID,
// its citation sources, and both halves of the exchange are persisted
// best-effort. A stale epoch discards the turn instead of writing into
// the newer session.
func (s *ChatService) finalize(
	userTurn, modelTurn *domain.ConversationTurn,
	sources []domain.SourceRef,
	epoch int64,
	streamErr error,
	sink driving.EventSink,
) error {
	s.transition(stateFinalizing)

	s.mu.Lock()
	if s.session.Epoch != epoch {
		s.mu.Unlock()
		logger.Debug("Discarding turn finalized against stale epoch %d", epoch)
		return domain.ErrSessionStale
	}

	modelTurn.ID = s.idFunc()
	modelTurn.Streaming = false
	modelTurn.ToolCallInProgress = ""
	modelTurn.Sources = sources
	if streamErr != nil {
		modelTurn.Error = streamErr.Error()
		sink(domain.TurnEvent{Kind: domain.TurnEventError, Err: modelTurn.Error})
	}

	sessionID := s.session.ID
	exchange := []domain.ConversationTurn{*userTurn, *modelTurn}
	store := s.convStore
	s.mu.Unlock()

	if store != nil {
		// Persistence is best effort; a storage hiccup must not fail
		// an otherwise completed turn.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, turn := range exchange {
			if err := store.SaveTurn(ctx, sessionID, turn); err != nil {
				logger.Warn("Persisting turn failed: %v", err)
				break
			}
		}
	}

	sink(domain.TurnEvent{Kind: domain.TurnEventFinalized})
	return nil
}

// transition records a state machine step.
func (s *ChatService) transition(next turnState) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()

	logger.Debug("Turn state: %s -> %s", prev, next)
}

// formatToolSummary renders a tool outcome as turn text for the
// hop-budget cutoff path.
func formatToolSummary(name string, result domain.ToolResult) string {
	if result.OK {
		return fmt.Sprintf("\n[%s result: %s]", name, result.Payload())
	}
	return fmt.Sprintf("\n[%s failed: %s]", name, result.Error)
}

// isEOF reports whether a stream error is the normal end of stream.
func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
