package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/valet-cli/internal/core/domain"
	"github.com/custodia-labs/valet-cli/internal/core/ports/driven"
)

// scriptEvent is one scripted stream increment. A non-nil err ends the
// stream with that error instead of io.EOF.
type scriptEvent struct {
	event driven.StreamEvent
	err   error
}

// scriptedStream replays a fixed sequence of events, optionally
// blocking until released.
type scriptedStream struct {
	events []scriptEvent
	pos    int
	gate   chan struct{} // nil means no gating
	onRecv func()
}

func (s *scriptedStream) Recv() (driven.StreamEvent, error) {
	if s.gate != nil {
		<-s.gate
	}
	if s.onRecv != nil {
		s.onRecv()
	}
	if s.pos >= len(s.events) {
		return driven.StreamEvent{}, io.EOF
	}
	e := s.events[s.pos]
	s.pos++
	if e.err != nil {
		return driven.StreamEvent{}, e.err
	}
	return e.event, nil
}

func (s *scriptedStream) Close() error { return nil }

// scriptedLLM hands out one scripted stream per ChatStream call and
// records the messages of each call. An optional started channel is
// closed on the first call.
type scriptedLLM struct {
	mu      sync.Mutex
	streams []*scriptedStream
	calls   [][]driven.ChatMessage
	opts    []driven.ChatOptions
	started chan struct{}
}

func (l *scriptedLLM) ChatStream(_ context.Context, msgs []driven.ChatMessage, opts driven.ChatOptions) (driven.ChatStream, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started != nil {
		close(l.started)
		l.started = nil
	}
	l.calls = append(l.calls, msgs)
	l.opts = append(l.opts, opts)
	if len(l.streams) == 0 {
		return nil, errors.New("scripted llm: no stream left")
	}
	stream := l.streams[0]
	l.streams = l.streams[1:]
	return stream, nil
}

func (l *scriptedLLM) ModelName() string          { return "scripted" }
func (l *scriptedLLM) Ping(context.Context) error { return nil }
func (l *scriptedLLM) Close() error               { return nil }

func (l *scriptedLLM) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.calls)
}

// stubRetrieval serves canned chunks or a canned error.
type stubRetrieval struct {
	chunks []domain.RankedChunk
	err    error
	query  string
}

func (s *stubRetrieval) Ingest(context.Context, domain.SourceInfo, string) (int, error) {
	return 0, nil
}

func (s *stubRetrieval) Retrieve(_ context.Context, query string, _ domain.RetrieveOptions) ([]domain.RankedChunk, error) {
	s.query = query
	return s.chunks, s.err
}

func (s *stubRetrieval) Clear(context.Context, string) error                   { return nil }
func (s *stubRetrieval) Sources(context.Context) ([]domain.SourceInfo, error) { return nil, nil }

func textEvents(parts ...string) []scriptEvent {
	events := make([]scriptEvent, 0, len(parts))
	for _, p := range parts {
		events = append(events, scriptEvent{event: driven.StreamEvent{TextDelta: p}})
	}
	return events
}

func toolEvent(name string, args map[string]any) scriptEvent {
	return scriptEvent{event: driven.StreamEvent{ToolCall: &domain.ToolCallRequest{Name: name, Args: args}}}
}

func testConfig() domain.SessionConfig {
	return domain.SessionConfig{
		Provider:    domain.AIProviderOpenAI,
		Model:       "gpt-4o-mini",
		Persona:     "default",
		MaxToolHops: 1,
		RAGEnabled:  false,
	}
}

// collectEvents returns a sink that appends into the given slice.
// The orchestrator emits events from a single goroutine per turn.
func collectEvents(events *[]domain.TurnEvent) func(domain.TurnEvent) {
	var mu sync.Mutex
	return func(e domain.TurnEvent) {
		mu.Lock()
		defer mu.Unlock()
		*events = append(*events, e)
	}
}

func TestSendPlainText(t *testing.T) {
	llm := &scriptedLLM{streams: []*scriptedStream{
		{events: textEvents("Hello", ", ", "world.")},
	}}
	svc := NewChatService(llm, nil, nil, nil, testConfig())

	var events []domain.TurnEvent
	turn, err := svc.Send(context.Background(), "hi", collectEvents(&events))
	require.NoError(t, err)

	assert.Equal(t, "Hello, world.", turn.Text)
	assert.False(t, turn.Streaming)
	assert.NotEmpty(t, turn.ID)
	assert.Empty(t, turn.Error)

	history := svc.History()
	require.Len(t, history, 2)
	assert.Equal(t, domain.RoleUser, history[0].Role)
	assert.Equal(t, "hi", history[0].Text)
	assert.Equal(t, domain.RoleModel, history[1].Role)

	// Started, three deltas, finalized.
	require.GreaterOrEqual(t, len(events), 5)
	assert.Equal(t, domain.TurnEventStarted, events[0].Kind)
	assert.Equal(t, domain.TurnEventFinalized, events[len(events)-1].Kind)
}

func TestSendEmptyMessage(t *testing.T) {
	svc := NewChatService(&scriptedLLM{}, nil, nil, nil, testConfig())

	_, err := svc.Send(context.Background(), "   ", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSendWithoutProvider(t *testing.T) {
	svc := NewChatService(nil, nil, nil, nil, testConfig())

	_, err := svc.Send(context.Background(), "hi", nil)
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
}

func TestSendRejectsConcurrentTurns(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{})
	llm := &scriptedLLM{
		streams: []*scriptedStream{{events: textEvents("slow answer"), gate: gate}},
		started: started,
	}
	svc := NewChatService(llm, nil, nil, nil, testConfig())

	done := make(chan error, 1)
	go func() {
		_, err := svc.Send(context.Background(), "first", nil)
		done <- err
	}()

	// The busy flag is held before the model stream opens.
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("first turn never reached the model")
	}

	_, err := svc.Send(context.Background(), "second", nil)
	assert.ErrorIs(t, err, domain.ErrSessionBusy)

	close(gate)
	require.NoError(t, <-done)

	// The rejected send left no trace in the transcript.
	history := svc.History()
	require.Len(t, history, 2)
	assert.Equal(t, "first", history[0].Text)
}

func TestSendDeleteTaskClarification(t *testing.T) {
	// The model asks for deleteTask without the required taskId; the
	// structured error feeds back and the next cycle asks the user.
	registry := NewToolRegistry(0)
	require.NoError(t, registry.Register(echoEntry("delete_task", "taskId")))

	llm := &scriptedLLM{streams: []*scriptedStream{
		{events: []scriptEvent{toolEvent("delete_task", map[string]any{})}},
		{events: textEvents("Which task would you like to delete?")},
	}}
	svc := NewChatService(llm, nil, registry, nil, testConfig())

	var events []domain.TurnEvent
	turn, err := svc.Send(context.Background(), "delete my task", collectEvents(&events))
	require.NoError(t, err)

	assert.False(t, turn.Streaming)
	assert.Equal(t, "Which task would you like to delete?", turn.Text)
	assert.Empty(t, turn.Error)

	// The second model call received the structured tool error.
	require.Equal(t, 2, llm.callCount())
	last := llm.calls[1][len(llm.calls[1])-1]
	assert.Equal(t, driven.ChatRoleTool, last.Role)
	assert.Contains(t, last.Content, "taskId")

	var sawCall, sawResult bool
	for _, e := range events {
		if e.Kind == domain.TurnEventToolCall && e.ToolName == "delete_task" {
			sawCall = true
		}
		if e.Kind == domain.TurnEventToolResult {
			sawResult = true
			assert.False(t, e.ToolOK)
		}
	}
	assert.True(t, sawCall)
	assert.True(t, sawResult)
}

func TestSendUnknownToolContinuesTurn(t *testing.T) {
	registry := NewToolRegistry(0)

	llm := &scriptedLLM{streams: []*scriptedStream{
		{events: []scriptEvent{toolEvent("no_such_tool", nil)}},
		{events: textEvents("I cannot do that.")},
	}}
	svc := NewChatService(llm, nil, registry, nil, testConfig())

	turn, err := svc.Send(context.Background(), "do the thing", nil)
	require.NoError(t, err)
	assert.Equal(t, "I cannot do that.", turn.Text)
}

func TestSendFirstToolCallWins(t *testing.T) {
	var dispatched []string
	registry := NewToolRegistry(0)
	for _, name := range []string{"tool_a", "tool_b"} {
		name := name
		require.NoError(t, registry.Register(ToolEntry{
			Definition: domain.ToolDefinition{Name: name},
			Handler: func(context.Context, map[string]any) (any, error) {
				dispatched = append(dispatched, name)
				return "ok", nil
			},
		}))
	}

	llm := &scriptedLLM{streams: []*scriptedStream{
		{events: []scriptEvent{
			toolEvent("tool_a", nil),
			toolEvent("tool_b", nil),
		}},
		{events: textEvents("done")},
	}}
	svc := NewChatService(llm, nil, registry, nil, testConfig())

	_, err := svc.Send(context.Background(), "go", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"tool_a"}, dispatched, "only the first tool call in a cycle is honored")
}

func TestSendPreservesPartialTextBeforeToolCall(t *testing.T) {
	registry := NewToolRegistry(0)
	require.NoError(t, registry.Register(echoEntry("lookup")))

	llm := &scriptedLLM{streams: []*scriptedStream{
		{events: append(textEvents("Let me check. "), toolEvent("lookup", nil))},
		{events: textEvents("All done.")},
	}}
	svc := NewChatService(llm, nil, registry, nil, testConfig())

	turn, err := svc.Send(context.Background(), "check", nil)
	require.NoError(t, err)
	assert.Equal(t, "Let me check. All done.", turn.Text)
}

func TestSendMaxToolHopsCutoff(t *testing.T) {
	registry := NewToolRegistry(0)
	calls := 0
	require.NoError(t, registry.Register(ToolEntry{
		Definition: domain.ToolDefinition{Name: "counter"},
		Handler: func(context.Context, map[string]any) (any, error) {
			calls++
			return map[string]int{"count": calls}, nil
		},
	}))

	// The model keeps asking for tools; the hop budget of 1 allows one
	// full result cycle, then the second result is summarised inline.
	llm := &scriptedLLM{streams: []*scriptedStream{
		{events: []scriptEvent{toolEvent("counter", nil)}},
		{events: []scriptEvent{toolEvent("counter", nil)}},
	}}
	config := testConfig()
	config.MaxToolHops = 1
	svc := NewChatService(llm, nil, registry, nil, config)

	turn, err := svc.Send(context.Background(), "loop forever", nil)
	require.NoError(t, err)

	assert.Equal(t, 2, llm.callCount(), "no third stream after the hop budget")
	assert.Equal(t, 2, calls)
	assert.Contains(t, turn.Text, "counter")
	assert.False(t, turn.Streaming)
}

func TestSendRAGAugmentsPrompt(t *testing.T) {
	retrieval := &stubRetrieval{chunks: []domain.RankedChunk{{
		Chunk:      domain.Chunk{Text: "The meeting is at 3pm on Friday.", SourceID: "note-1"},
		Similarity: 0.9,
		Source:     domain.SourceRef{Title: "meeting", URI: "note:note-1"},
	}}}
	llm := &scriptedLLM{streams: []*scriptedStream{
		{events: textEvents("It is at 3pm on Friday.")},
	}}

	config := testConfig()
	config.RAGEnabled = true
	svc := NewChatService(llm, retrieval, nil, nil, config)

	turn, err := svc.Send(context.Background(), "when is the meeting", nil)
	require.NoError(t, err)

	assert.True(t, turn.RAGContextUsed)
	require.Len(t, turn.Sources, 1)
	assert.Equal(t, "note:note-1", turn.Sources[0].URI)
	assert.Equal(t, "when is the meeting", retrieval.query, "retrieval sees the raw user text")

	// The outgoing prompt carries the delimited context block and ends
	// with the original question.
	sent := llm.calls[0][len(llm.calls[0])-1]
	assert.Contains(t, sent.Content, ragContextHeader)
	assert.Contains(t, sent.Content, "The meeting is at 3pm on Friday.")
	assert.Contains(t, sent.Content, "when is the meeting")

	// The visible transcript keeps the raw text.
	history := svc.History()
	assert.Equal(t, "when is the meeting", history[0].Text)
}

func TestSendRAGFailureDegradesToRawQuery(t *testing.T) {
	retrieval := &stubRetrieval{err: errors.New("vector store offline")}
	llm := &scriptedLLM{streams: []*scriptedStream{
		{events: textEvents("answer without context")},
	}}

	config := testConfig()
	config.RAGEnabled = true
	svc := NewChatService(llm, retrieval, nil, nil, config)

	turn, err := svc.Send(context.Background(), "question", nil)
	require.NoError(t, err)

	assert.False(t, turn.RAGContextUsed)
	sent := llm.calls[0][len(llm.calls[0])-1]
	assert.Equal(t, "question", sent.Content)
}

func TestSendStreamErrorPreservesPartialText(t *testing.T) {
	llm := &scriptedLLM{streams: []*scriptedStream{
		{events: append(textEvents("partial answ"), scriptEvent{err: errors.New("connection reset")})},
	}}
	svc := NewChatService(llm, nil, nil, nil, testConfig())

	var events []domain.TurnEvent
	turn, err := svc.Send(context.Background(), "hi", collectEvents(&events))
	require.Error(t, err)
	require.NotNil(t, turn)

	assert.Equal(t, "partial answ", turn.Text, "partial text must not be lost")
	assert.False(t, turn.Streaming)
	assert.Contains(t, turn.Error, "connection reset")

	var sawError bool
	for _, e := range events {
		if e.Kind == domain.TurnEventError {
			sawError = true
		}
	}
	assert.True(t, sawError)
}

func TestSendStaleEpochDiscardsTurn(t *testing.T) {
	llm := &scriptedLLM{streams: []*scriptedStream{
		{events: textEvents("late ", "result")},
	}}
	svc := NewChatService(llm, nil, nil, nil, testConfig())

	// Reconfigure the session after the first delta lands: the rest of
	// the turn is stale and must be discarded.
	first := true
	llm.streams[0].onRecv = func() {
		if first {
			first = false
			require.NoError(t, svc.Configure(testConfig()))
		}
	}

	_, err := svc.Send(context.Background(), "hi", nil)
	assert.ErrorIs(t, err, domain.ErrSessionStale)

	// The new session saw nothing of the stale turn.
	assert.Empty(t, svc.History())
}

func TestResetInvalidatesInFlightTurn(t *testing.T) {
	llm := &scriptedLLM{streams: []*scriptedStream{
		{events: textEvents("abandoned")},
	}}
	svc := NewChatService(llm, nil, nil, nil, testConfig())

	first := true
	llm.streams[0].onRecv = func() {
		if first {
			first = false
			svc.Reset()
		}
	}

	_, err := svc.Send(context.Background(), "hi", nil)
	assert.ErrorIs(t, err, domain.ErrSessionStale)
}

func TestConfigureBumpsEpochAndClearsTranscript(t *testing.T) {
	llm := &scriptedLLM{streams: []*scriptedStream{
		{events: textEvents("one")},
	}}
	svc := NewChatService(llm, nil, nil, nil, testConfig())

	_, err := svc.Send(context.Background(), "hi", nil)
	require.NoError(t, err)
	require.Len(t, svc.History(), 2)

	before := svc.Session().Epoch
	require.NoError(t, svc.Configure(testConfig()))
	assert.Greater(t, svc.Session().Epoch, before)
	assert.Empty(t, svc.History())
}

func TestResumeSeedsTranscript(t *testing.T) {
	llm := &scriptedLLM{streams: []*scriptedStream{
		{events: textEvents("continuing")},
	}}
	svc := NewChatService(llm, nil, nil, nil, testConfig())

	svc.Resume("session-1", []domain.ConversationTurn{
		{ID: "t1", Role: domain.RoleUser, Text: "earlier question"},
		{ID: "t2", Role: domain.RoleModel, Text: "earlier answer"},
	})

	require.Len(t, svc.History(), 2)
	assert.Equal(t, "session-1", svc.Session().ID)

	_, err := svc.Send(context.Background(), "and now?", nil)
	require.NoError(t, err)

	// The model context includes the resumed turns before the new one.
	msgs := llm.calls[0]
	require.Len(t, msgs, 3)
	assert.Equal(t, "earlier question", msgs[0].Content)
	assert.Equal(t, "earlier answer", msgs[1].Content)
	assert.Equal(t, "and now?", msgs[2].Content)
}

func TestSendPersistsFinalizedTurn(t *testing.T) {
	store := &capturingConvStore{}
	llm := &scriptedLLM{streams: []*scriptedStream{
		{events: textEvents("saved")},
	}}
	svc := NewChatService(llm, nil, nil, store, testConfig())

	turn, err := svc.Send(context.Background(), "hi", nil)
	require.NoError(t, err)

	// Both halves of the exchange are written, user first.
	require.Len(t, store.saved, 2)
	assert.Equal(t, domain.RoleUser, store.saved[0].Role)
	assert.Equal(t, "hi", store.saved[0].Text)
	assert.Equal(t, turn.ID, store.saved[1].ID)
	assert.False(t, store.saved[1].Streaming)
}

// capturingConvStore records saved turns.
type capturingConvStore struct {
	mu    sync.Mutex
	saved []domain.ConversationTurn
}

func (c *capturingConvStore) SaveTurn(_ context.Context, _ string, turn domain.ConversationTurn) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saved = append(c.saved, turn)
	return nil
}

func (c *capturingConvStore) Turns(context.Context, string, int) ([]domain.ConversationTurn, error) {
	return nil, nil
}

func (c *capturingConvStore) Sessions(context.Context) ([]driven.SessionSummary, error) {
	return nil, nil
}

func (c *capturingConvStore) LatestSessionID(context.Context) (string, error) {
	return "", domain.ErrNotFound
}
