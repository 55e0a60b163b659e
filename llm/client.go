// Package llm adapts an OpenAI-compatible chat endpoint to the small
// provider-neutral surface the rest of the service consumes: blocking chat,
// streaming chat, intent classification, embeddings, and health probes.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/confera/confera/domain"
	"github.com/confera/confera/metrics"
	sharedllm "github.com/confera/confera/shared/llm"
)

// Client wraps the low-level OpenAI-compatible client with conversation
// semantics. All methods are safe for concurrent use.
type Client struct {
	api *sharedllm.Client
}

// NewClient builds a Client over an already-configured transport.
func NewClient(api *sharedllm.Client) *Client {
	return &Client{api: api}
}

// Model reports the chat model this client targets.
func (c *Client) Model() string { return c.api.Model }

// Chat sends the conversation and advertised tools in a single blocking call.
// An empty tools slice means the model cannot request execution, so the
// response carries no tool calls. Transport and provider failures are wrapped
// in domain.ErrModelUnavailable.
func (c *Client) Chat(ctx context.Context, messages []Message, tools []Tool) (*Response, error) {
	req := openai.ChatCompletionRequest{
		Model:     c.api.Model,
		Messages:  toOpenAIMessages(messages),
		MaxTokens: c.api.MaxTokens,
	}
	if len(tools) > 0 {
		req.Tools = toOpenAITools(tools)
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	metrics.ObserveModelRequest("chat", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty choices", domain.ErrModelUnavailable)
	}

	choice := resp.Choices[0]
	out := &Response{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
	}
	for _, tc := range choice.Message.ToolCalls {
		call, err := fromOpenAIToolCall(tc)
		if err != nil {
			slog.Warn("llm: skipping malformed tool call", "tool", tc.Function.Name, "error", err)
			continue
		}
		out.ToolCalls = append(out.ToolCalls, call)
	}
	return out, nil
}

// ChatStream streams a completion, invoking onEvent for every chunk in
// arrival order. Content chunks carry the delta plus the text accumulated so
// far. Tool calls arrive fragmented across deltas; they are assembled and
// surfaced as a single tool_calls event before the terminal done event.
func (c *Client) ChatStream(ctx context.Context, messages []Message, tools []Tool, onEvent func(StreamEvent)) error {
	req := openai.ChatCompletionRequest{
		Model:     c.api.Model,
		Messages:  toOpenAIMessages(messages),
		MaxTokens: c.api.MaxTokens,
		Stream:    true,
	}
	if len(tools) > 0 {
		req.Tools = toOpenAITools(tools)
	}

	start := time.Now()
	stream, err := c.api.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}
	defer stream.Close()
	defer func() { metrics.ObserveModelRequest("stream", time.Since(start)) }()

	var content strings.Builder
	acc := newToolCallAccumulator()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta
		if delta.Content != "" {
			content.WriteString(delta.Content)
			onEvent(StreamEvent{
				Type:    StreamContent,
				Delta:   delta.Content,
				Content: content.String(),
			})
		}
		for _, tc := range delta.ToolCalls {
			acc.add(tc)
		}
	}

	calls := acc.finish()
	if len(calls) > 0 {
		onEvent(StreamEvent{Type: StreamToolCalls, ToolCalls: calls})
	}
	onEvent(StreamEvent{Type: StreamDone, Content: content.String(), ToolCalls: calls})
	return nil
}

const intentSystemPrompt = `You classify messages from event attendees. Respond with JSON only:
{"intent": "<category>", "entities": {<key>: <value>}, "confidence": <0..1>, "requires_tool": <bool>, "suggested_tool": "<tool name or empty>"}
Categories: event_info, schedule, tickets, invoices, attendees, support, smalltalk, unknown.`

// unknownIntent is returned whenever classification cannot produce a usable
// result. Callers treat it as "no signal", never as an error.
func unknownIntent() *Intent {
	return &Intent{Intent: "unknown", Entities: map[string]string{}, Confidence: 0, RequiresTool: false}
}

// ClassifyIntent asks the model to categorize a user message. The result is
// advisory: any provider failure or malformed reply degrades to the unknown
// intent rather than an error.
func (c *Client) ClassifyIntent(ctx context.Context, message string) *Intent {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.api.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: intentSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
		MaxTokens: 256,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		slog.Warn("llm: intent classification failed", "error", err)
		return unknownIntent()
	}
	if len(resp.Choices) == 0 {
		return unknownIntent()
	}

	var intent Intent
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &intent); err != nil {
		slog.Warn("llm: intent reply was not valid JSON", "error", err)
		return unknownIntent()
	}
	if intent.Intent == "" {
		return unknownIntent()
	}
	if intent.Entities == nil {
		intent.Entities = map[string]string{}
	}
	return &intent
}

// FormatToolResults asks the model to turn raw tool output into a natural
// answer to the original question. On failure it falls back to the raw
// results block so the caller always has something to show.
func (c *Client) FormatToolResults(ctx context.Context, resultsBlock, query string) string {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.api.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: "You are an assistant for event attendees. Use the tool results below to " +
					"answer the user's question conversationally. Do not mention tools or JSON.\n\n" + resultsBlock,
			},
			{Role: openai.ChatMessageRoleUser, Content: query},
		},
		MaxTokens: c.api.MaxTokens,
	})
	if err != nil || len(resp.Choices) == 0 {
		slog.Warn("llm: tool result formatting failed, returning raw results", "error", err)
		return resultsBlock
	}
	return resp.Choices[0].Message.Content
}

// Embed produces an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.api.EmbeddingModel),
		Input: []string{text},
	})
	metrics.ObserveModelRequest("embed", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingProvider, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: empty embedding response", domain.ErrEmbeddingProvider)
	}
	return resp.Data[0].Embedding, nil
}

// ListModels returns the model IDs the endpoint advertises.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	models, err := c.api.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}
	ids := make([]string, 0, len(models.Models))
	for _, m := range models.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// HealthCheck reports whether the endpoint is reachable and serves at least
// one model.
func (c *Client) HealthCheck(ctx context.Context) bool {
	ids, err := c.ListModels(ctx)
	return err == nil && len(ids) > 0
}

// EnsureModel verifies at startup that the configured chat model is served.
// OpenAI-compatible gateways expose no pull operation, so a missing model is
// an operator problem and is reported as an error.
func (c *Client) EnsureModel(ctx context.Context) error {
	ids, err := c.ListModels(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == c.api.Model {
			return nil
		}
	}
	return fmt.Errorf("%w: model %q not served", domain.ErrModelUnavailable, c.api.Model)
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			args, err := json.Marshal(tc.Arguments)
			if err != nil {
				args = []byte("{}")
			}
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(args),
				},
			})
		}
		out = append(out, msg)
	}
	return out
}

func toOpenAITools(tools []Tool) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Schema,
			},
		})
	}
	return out
}

func fromOpenAIToolCall(tc openai.ToolCall) (ToolCall, error) {
	args := map[string]any{}
	if raw := strings.TrimSpace(tc.Function.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return ToolCall{}, fmt.Errorf("parse arguments: %w", err)
		}
	}
	return ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args}, nil
}

// toolCallAccumulator reassembles tool calls that arrive fragmented across
// stream deltas, keyed by the provider-assigned index.
type toolCallAccumulator struct {
	order []int
	parts map[int]*toolCallParts
}

type toolCallParts struct {
	id   string
	name string
	args strings.Builder
}

func newToolCallAccumulator() *toolCallAccumulator {
	return &toolCallAccumulator{parts: map[int]*toolCallParts{}}
}

func (a *toolCallAccumulator) add(tc openai.ToolCall) {
	idx := 0
	if tc.Index != nil {
		idx = *tc.Index
	}
	p, ok := a.parts[idx]
	if !ok {
		p = &toolCallParts{}
		a.parts[idx] = p
		a.order = append(a.order, idx)
	}
	if tc.ID != "" {
		p.id = tc.ID
	}
	if tc.Function.Name != "" {
		p.name = tc.Function.Name
	}
	p.args.WriteString(tc.Function.Arguments)
}

func (a *toolCallAccumulator) finish() []ToolCall {
	calls := make([]ToolCall, 0, len(a.order))
	for _, idx := range a.order {
		p := a.parts[idx]
		args := map[string]any{}
		if raw := strings.TrimSpace(p.args.String()); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				slog.Warn("llm: dropping tool call with unparseable arguments", "tool", p.name, "error", err)
				continue
			}
		}
		calls = append(calls, ToolCall{ID: p.id, Name: p.name, Arguments: args})
	}
	return calls
}
