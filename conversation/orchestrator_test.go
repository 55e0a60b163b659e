package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confera/confera/domain"
	"github.com/confera/confera/llm"
	"github.com/confera/confera/tools"
)

// scriptedChat returns queued responses in order and records every request.
// A non-nil err fails every call after the first errAfter calls.
type scriptedChat struct {
	responses []*llm.Response
	streamFn  func(onEvent func(llm.StreamEvent)) error
	calls     [][]llm.Message
	toolSets  [][]llm.Tool
	err       error
	errAfter  int
}

func (s *scriptedChat) Chat(_ context.Context, messages []llm.Message, tools []llm.Tool) (*llm.Response, error) {
	s.calls = append(s.calls, messages)
	s.toolSets = append(s.toolSets, tools)
	if s.err != nil && len(s.calls) > s.errAfter {
		return nil, s.err
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

func (s *scriptedChat) ChatStream(_ context.Context, messages []llm.Message, tools []llm.Tool, onEvent func(llm.StreamEvent)) error {
	s.calls = append(s.calls, messages)
	s.toolSets = append(s.toolSets, tools)
	if s.err != nil && len(s.calls) > s.errAfter {
		return s.err
	}
	return s.streamFn(onEvent)
}

func (s *scriptedChat) FormatToolResults(_ context.Context, _, _ string) string {
	return "formatted answer"
}

func (s *scriptedChat) ClassifyIntent(context.Context, string) *llm.Intent {
	return &llm.Intent{Intent: "unknown"}
}

func (s *scriptedChat) HealthCheck(context.Context) bool { return true }

// slowTools delays per-tool so completion order differs from request order.
type slowTools struct {
	delays  map[string]time.Duration
	failing map[string]bool
	mu      sync.Mutex
	invoked []string
	healthy bool
}

func (f *slowTools) List() []tools.Descriptor {
	return []tools.Descriptor{
		{Name: tools.ToolListEvents, Description: "list", Schema: map[string]any{"type": "object"}},
	}
}

func (f *slowTools) Invoke(_ context.Context, name string, args map[string]any) tools.Result {
	if d, ok := f.delays[name]; ok {
		time.Sleep(d)
	}
	f.mu.Lock()
	f.invoked = append(f.invoked, name)
	f.mu.Unlock()

	if f.failing[name] {
		return tools.Result{Tool: name, Arguments: args, Error: "boom"}
	}
	return tools.Result{Tool: name, Arguments: args, Result: "data:" + name, Success: true}
}

func (f *slowTools) HealthCheck(context.Context) bool { return f.healthy }

func TestProcessWithoutToolCalls(t *testing.T) {
	chat := &scriptedChat{responses: []*llm.Response{{Content: "plain answer"}}}
	orch := New(chat, &slowTools{})

	result, err := orch.Process(context.Background(), "hello", nil)

	require.NoError(t, err)
	assert.Equal(t, "plain answer", result.Content)
	assert.Empty(t, result.ToolCalls)
	assert.Empty(t, result.Sources)
	require.Len(t, chat.calls, 1, "no second model call without tool requests")

	require.Len(t, result.UpdatedHistory, 2)
	assert.Equal(t, llm.RoleUser, result.UpdatedHistory[0].Role)
	assert.Equal(t, "plain answer", result.UpdatedHistory[1].Content)
}

func TestProcessRunsToolsAndSecondCall(t *testing.T) {
	chat := &scriptedChat{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{
			{ID: "call_1", Name: tools.ToolListEvents, Arguments: map[string]any{"status": "upcoming"}},
		}},
		{Content: "there are 3 upcoming events"},
	}}
	executor := &slowTools{}
	orch := New(chat, executor)

	result, err := orch.Process(context.Background(), "what events are coming up?", nil)

	require.NoError(t, err)
	assert.Equal(t, "there are 3 upcoming events", result.Content)
	assert.Equal(t, []string{tools.ToolListEvents}, result.Sources)
	require.Len(t, result.ToolResults, 1)
	assert.True(t, result.ToolResults[0].Success)

	require.Len(t, chat.calls, 2)
	assert.NotEmpty(t, chat.toolSets[0], "first call advertises the catalog")
	assert.Empty(t, chat.toolSets[1], "second call advertises no tools")

	secondCall := chat.calls[1]
	last := secondCall[len(secondCall)-1]
	assert.Equal(t, llm.RoleTool, last.Role)
	assert.Equal(t, "call_1", last.ToolCallID)
}

func TestExecuteToolsPreservesRequestOrder(t *testing.T) {
	executor := &slowTools{delays: map[string]time.Duration{
		"a": 30 * time.Millisecond,
		"b": 0,
		"c": 10 * time.Millisecond,
	}}
	orch := New(&scriptedChat{}, executor)

	calls := []llm.ToolCall{
		{ID: "1", Name: "a"}, {ID: "2", Name: "b"}, {ID: "3", Name: "c"},
	}
	results := orch.executeTools(context.Background(), calls)

	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].Tool)
	assert.Equal(t, "b", results[1].Tool)
	assert.Equal(t, "c", results[2].Tool)
}

func TestProcessPartialToolFailureStillAnswers(t *testing.T) {
	chat := &scriptedChat{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{
			{ID: "call_1", Name: tools.ToolListEvents, Arguments: map[string]any{}},
			{ID: "call_2", Name: "broken", Arguments: map[string]any{}},
		}},
		{Content: "partial answer"},
	}}
	executor := &slowTools{failing: map[string]bool{"broken": true}}
	orch := New(chat, executor)

	result, err := orch.Process(context.Background(), "q", nil)

	require.NoError(t, err)
	assert.Equal(t, "partial answer", result.Content)
	require.Len(t, result.ToolResults, 2)
	assert.True(t, result.ToolResults[0].Success)
	assert.False(t, result.ToolResults[1].Success)
	assert.Equal(t, "boom", result.ToolResults[1].Error)
}

func TestProcessModelFailureAborts(t *testing.T) {
	chat := &scriptedChat{err: errors.New("connection refused")}
	orch := New(chat, &slowTools{})

	_, err := orch.Process(context.Background(), "q", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConversation)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestProcessSecondCallFailureTagged(t *testing.T) {
	chat := &scriptedChat{
		responses: []*llm.Response{
			{ToolCalls: []llm.ToolCall{{ID: "call_1", Name: tools.ToolListEvents, Arguments: map[string]any{}}}},
		},
		errAfter: 1,
		err:      errors.New("timeout"),
	}
	orch := New(chat, &slowTools{})

	_, err := orch.Process(context.Background(), "q", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConversation)
}

func TestProcessStreamWithoutTools(t *testing.T) {
	chat := &scriptedChat{streamFn: func(onEvent func(llm.StreamEvent)) error {
		onEvent(llm.StreamEvent{Type: llm.StreamContent, Delta: "hel", Content: "hel"})
		onEvent(llm.StreamEvent{Type: llm.StreamContent, Delta: "lo", Content: "hello"})
		onEvent(llm.StreamEvent{Type: llm.StreamDone, Content: "hello"})
		return nil
	}}
	orch := New(chat, &slowTools{})

	var types []string
	var final *Result
	for ev := range orch.ProcessStream(context.Background(), "hi", nil) {
		types = append(types, ev.Type)
		if ev.Type == EventComplete {
			final = ev.Result
		}
	}

	assert.Equal(t, []string{EventContent, EventContent, EventComplete}, types)
	require.NotNil(t, final)
	assert.Equal(t, "hello", final.Content)
}

func TestProcessStreamWithTools(t *testing.T) {
	toolCalls := []llm.ToolCall{{ID: "call_1", Name: tools.ToolListEvents, Arguments: map[string]any{}}}
	chat := &scriptedChat{streamFn: func(onEvent func(llm.StreamEvent)) error {
		onEvent(llm.StreamEvent{Type: llm.StreamToolCalls, ToolCalls: toolCalls})
		onEvent(llm.StreamEvent{Type: llm.StreamDone, ToolCalls: toolCalls})
		return nil
	}}
	orch := New(chat, &slowTools{})

	var types []string
	var final *Result
	for ev := range orch.ProcessStream(context.Background(), "what events?", nil) {
		types = append(types, ev.Type)
		if ev.Type == EventComplete {
			final = ev.Result
		}
	}

	assert.Equal(t, []string{
		EventToolCalls, EventExecutingTools, EventToolsComplete,
		EventFinalResponse, EventComplete,
	}, types)
	require.NotNil(t, final)
	assert.Equal(t, "formatted answer", final.Content)
	assert.Equal(t, []string{tools.ToolListEvents}, final.Sources)
}

func TestProcessStreamErrorIsTerminal(t *testing.T) {
	chat := &scriptedChat{err: errors.New("stream broke")}
	orch := New(chat, &slowTools{})

	var types []string
	var streamErr error
	for ev := range orch.ProcessStream(context.Background(), "q", nil) {
		types = append(types, ev.Type)
		if ev.Type == EventError {
			streamErr = ev.Err
		}
	}

	assert.Equal(t, []string{EventError}, types)
	assert.ErrorIs(t, streamErr, domain.ErrConversation)
}

func TestSourcesDeduplicatesRepeatedTools(t *testing.T) {
	results := []tools.Result{
		{Tool: tools.ToolGetEventDetails, Success: true},
		{Tool: tools.ToolListEvents, Success: true},
		{Tool: tools.ToolGetEventDetails, Success: true},
	}

	assert.Equal(t, []string{tools.ToolGetEventDetails, tools.ToolListEvents}, sources(results))
}

func TestHealthCheckAggregates(t *testing.T) {
	orch := New(&scriptedChat{}, &slowTools{healthy: true})

	h := orch.HealthCheck(context.Background())

	assert.True(t, h.Model)
	assert.True(t, h.ToolsAPI)
	assert.True(t, h.Overall)

	orch = New(&scriptedChat{}, &slowTools{healthy: false})
	h = orch.HealthCheck(context.Background())
	assert.False(t, h.Overall)
}
