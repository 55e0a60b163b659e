package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confera/confera/domain"
	sharedllm "github.com/confera/confera/shared/llm"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(sharedllm.NewClient(srv.URL, "test-key",
		sharedllm.WithModel("test-model"),
		sharedllm.WithEmbeddingModel("test-embed"),
	))
}

func TestChatParsesContentAndToolCalls(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"choices": [{
				"message": {
					"role": "assistant",
					"content": "checking events",
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "list_events", "arguments": "{\"status\":\"upcoming\",\"limit\":5}"}
					}]
				},
				"finish_reason": "tool_calls"
			}]
		}`)
	}))

	resp, err := c.Chat(context.Background(), []Message{{Role: RoleUser, Content: "events?"}}, []Tool{
		{Name: "list_events", Schema: map[string]any{"type": "object"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "checking events", resp.Content)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "list_events", resp.ToolCalls[0].Name)
	assert.Equal(t, "upcoming", resp.ToolCalls[0].Arguments["status"])
	assert.Equal(t, float64(5), resp.ToolCalls[0].Arguments["limit"])
}

func TestChatWrapsProviderFailure(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := c.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrModelUnavailable))
}

func TestChatStreamOrderedEvents(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`{"choices":[{"delta":{"content":"hel"}}]}`,
			`{"choices":[{"delta":{"content":"lo"}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"list_events","arguments":"{\"sta"}}]}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"tus\":\"all\"}"}}]},"finish_reason":"tool_calls"}]}`,
		}
		for _, chunk := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", chunk)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))

	var events []StreamEvent
	err := c.ChatStream(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil, func(ev StreamEvent) {
		events = append(events, ev)
	})

	require.NoError(t, err)
	require.Len(t, events, 4)

	assert.Equal(t, StreamContent, events[0].Type)
	assert.Equal(t, "hel", events[0].Delta)
	assert.Equal(t, "hel", events[0].Content)
	assert.Equal(t, "hello", events[1].Content)

	assert.Equal(t, StreamToolCalls, events[2].Type)
	require.Len(t, events[2].ToolCalls, 1)
	assert.Equal(t, "list_events", events[2].ToolCalls[0].Name)
	assert.Equal(t, "all", events[2].ToolCalls[0].Arguments["status"], "fragmented arguments are reassembled")

	assert.Equal(t, StreamDone, events[3].Type)
	assert.Equal(t, "hello", events[3].Content)
}

func TestClassifyIntentFallsBackOnGarbage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"not json at all"}}]}`)
	}))

	intent := c.ClassifyIntent(context.Background(), "hello")

	assert.Equal(t, "unknown", intent.Intent)
	assert.Equal(t, 0.0, intent.Confidence)
	assert.False(t, intent.RequiresTool)
	assert.NotNil(t, intent.Entities)
}

func TestClassifyIntentFallsBackOnProviderError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))

	intent := c.ClassifyIntent(context.Background(), "hello")

	assert.Equal(t, "unknown", intent.Intent)
}

func TestClassifyIntentParsesResult(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":
			"{\"intent\":\"invoices\",\"entities\":{\"invoiceId\":\"inv_1\"},\"confidence\":0.9,\"requires_tool\":true,\"suggested_tool\":\"get_invoice\"}"
		}}]}`)
	}))

	intent := c.ClassifyIntent(context.Background(), "where is invoice inv_1?")

	assert.Equal(t, "invoices", intent.Intent)
	assert.Equal(t, 0.9, intent.Confidence)
	assert.True(t, intent.RequiresTool)
	assert.Equal(t, "get_invoice", intent.SuggestedTool)
	assert.Equal(t, "inv_1", intent.Entities["invoiceId"])
}

func TestEmbedWrapsFailure(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no embedder", http.StatusBadGateway)
	}))

	_, err := c.Embed(context.Background(), "some text")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEmbeddingProvider))
}

func TestEmbedReturnsVector(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":[{"embedding":[0.1,0.2,0.3]}]}`)
	}))

	vec, err := c.Embed(context.Background(), "some text")

	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestEnsureModel(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":[{"id":"other-model"},{"id":"test-model"}]}`)
	}))

	require.NoError(t, c.EnsureModel(context.Background()))
	assert.True(t, c.HealthCheck(context.Background()))
}

func TestEnsureModelMissing(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":[{"id":"other-model"}]}`)
	}))

	err := c.EnsureModel(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "test-model")
}
