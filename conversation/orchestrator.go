// Package conversation orchestrates the chat pipeline: model call, tool
// execution, and the follow-up model call that folds tool output back into
// natural language. It supports blocking and streaming delivery.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/confera/confera/domain"
	"github.com/confera/confera/llm"
	"github.com/confera/confera/metrics"
	"github.com/confera/confera/shared/jsonutil"
	"github.com/confera/confera/tools"
)

const systemPrompt = `You are an AI assistant for the Confera event management platform.
You help users with event management, ticket sales, attendee management, invoices, and analytics.
You have access to tools that can query the Confera API. Use them when needed to provide accurate, real-time information.
Always be helpful, concise, and professional.`

// ChatClient is the slice of the model client the orchestrator needs.
type ChatClient interface {
	Chat(ctx context.Context, messages []llm.Message, tools []llm.Tool) (*llm.Response, error)
	ChatStream(ctx context.Context, messages []llm.Message, tools []llm.Tool, onEvent func(llm.StreamEvent)) error
	FormatToolResults(ctx context.Context, resultsBlock, query string) string
	ClassifyIntent(ctx context.Context, message string) *llm.Intent
	HealthCheck(ctx context.Context) bool
}

// ToolExecutor is the slice of the tool registry the orchestrator needs.
type ToolExecutor interface {
	List() []tools.Descriptor
	Invoke(ctx context.Context, name string, args map[string]any) tools.Result
	HealthCheck(ctx context.Context) bool
}

// Result is the outcome of one exchange.
type Result struct {
	Content        string         `json:"content"`
	ToolCalls      []llm.ToolCall `json:"toolCalls"`
	ToolResults    []tools.Result `json:"toolResults,omitempty"`
	Sources        []string       `json:"sources"`
	UpdatedHistory []llm.Message  `json:"-"`
}

// Stream event kinds, in the order a consumer can observe them: zero or more
// content events, then optionally tool_calls, executing_tools,
// tools_complete, final_response, and always exactly one terminal complete
// or error event.
const (
	EventContent        = "content"
	EventToolCalls      = "tool_calls"
	EventExecutingTools = "executing_tools"
	EventToolsComplete  = "tools_complete"
	EventFinalResponse  = "final_response"
	EventComplete       = "complete"
	EventError          = "error"
)

// Event is one streamed progress update. Exactly one of the payload fields
// is meaningful per type.
type Event struct {
	Type      string         `json:"type"`
	Content   string         `json:"content,omitempty"`
	ToolCalls []llm.ToolCall `json:"toolCalls,omitempty"`
	Count     int            `json:"count,omitempty"`
	Results   []tools.Result `json:"results,omitempty"`
	Result    *Result        `json:"result,omitempty"`
	Err       error          `json:"-"`
}

// Orchestrator runs exchanges against the model and tool registry. It is
// stateless; conversation history travels with each call.
type Orchestrator struct {
	chat  ChatClient
	tools ToolExecutor
}

// New builds an Orchestrator.
func New(chat ChatClient, tools ToolExecutor) *Orchestrator {
	return &Orchestrator{chat: chat, tools: tools}
}

// Process runs one blocking exchange. When the model requests tools they are
// executed and a second model call, with no tools advertised, synthesizes
// the final answer from their output.
func (o *Orchestrator) Process(ctx context.Context, message string, history []llm.Message) (*Result, error) {
	messages := buildMessages(message, history)
	catalog := o.llmTools()

	first, err := o.chat.Chat(ctx, messages, catalog)
	if err != nil {
		metrics.ChatExchanges.WithLabelValues("blocking", "error").Inc()
		return nil, fmt.Errorf("%w: %w", domain.ErrConversation, err)
	}

	if len(first.ToolCalls) == 0 {
		metrics.ChatExchanges.WithLabelValues("blocking", "ok").Inc()
		return &Result{
			Content:        first.Content,
			ToolCalls:      []llm.ToolCall{},
			Sources:        []string{},
			UpdatedHistory: appendTurns(history, message, first.Content),
		}, nil
	}

	results := o.executeTools(ctx, first.ToolCalls)

	// Second model call sees the tool output but no tool catalog, so it
	// must answer in natural language instead of requesting more calls.
	withTools := append(messages, llm.Message{
		Role:      llm.RoleAssistant,
		Content:   first.Content,
		ToolCalls: first.ToolCalls,
	})
	for i, res := range results {
		turn := llm.Message{
			Role:    llm.RoleTool,
			Content: jsonutil.MustJSON(res),
		}
		if i < len(first.ToolCalls) {
			turn.ToolCallID = first.ToolCalls[i].ID
		}
		withTools = append(withTools, turn)
	}

	final, err := o.chat.Chat(ctx, withTools, nil)
	if err != nil {
		metrics.ChatExchanges.WithLabelValues("blocking", "error").Inc()
		return nil, fmt.Errorf("%w: %w", domain.ErrConversation, err)
	}

	metrics.ChatExchanges.WithLabelValues("blocking", "ok").Inc()
	return &Result{
		Content:        final.Content,
		ToolCalls:      first.ToolCalls,
		ToolResults:    results,
		Sources:        sources(results),
		UpdatedHistory: appendTurns(history, message, final.Content),
	}, nil
}

// ProcessStream runs one exchange, delivering progress on the returned
// channel. The channel is closed after exactly one terminal event, complete
// or error. The final synthesized answer after tool execution arrives as a
// single final_response event rather than token by token.
func (o *Orchestrator) ProcessStream(ctx context.Context, message string, history []llm.Message) <-chan Event {
	events := make(chan Event, 16)

	go func() {
		defer close(events)

		messages := buildMessages(message, history)
		catalog := o.llmTools()

		var toolCalls []llm.ToolCall
		var fullContent string

		err := o.chat.ChatStream(ctx, messages, catalog, func(ev llm.StreamEvent) {
			switch ev.Type {
			case llm.StreamContent:
				fullContent = ev.Content
				events <- Event{Type: EventContent, Content: ev.Delta}
			case llm.StreamToolCalls:
				toolCalls = ev.ToolCalls
				events <- Event{Type: EventToolCalls, ToolCalls: ev.ToolCalls}
			}
		})
		if err != nil {
			metrics.ChatExchanges.WithLabelValues("streaming", "error").Inc()
			events <- Event{Type: EventError, Err: fmt.Errorf("%w: %w", domain.ErrConversation, err)}
			return
		}

		if len(toolCalls) == 0 {
			metrics.ChatExchanges.WithLabelValues("streaming", "ok").Inc()
			events <- Event{Type: EventComplete, Result: &Result{
				Content:        fullContent,
				ToolCalls:      []llm.ToolCall{},
				Sources:        []string{},
				UpdatedHistory: appendTurns(history, message, fullContent),
			}}
			return
		}

		events <- Event{Type: EventExecutingTools, Count: len(toolCalls)}
		results := o.executeTools(ctx, toolCalls)
		events <- Event{Type: EventToolsComplete, Results: results}

		formatted := o.chat.FormatToolResults(ctx, resultsBlock(results), message)
		events <- Event{Type: EventFinalResponse, Content: formatted}

		metrics.ChatExchanges.WithLabelValues("streaming", "ok").Inc()
		events <- Event{Type: EventComplete, Result: &Result{
			Content:        formatted,
			ToolCalls:      toolCalls,
			ToolResults:    results,
			Sources:        sources(results),
			UpdatedHistory: appendTurns(history, message, formatted),
		}}
	}()

	return events
}

// executeTools runs the requested calls concurrently. Results keep the
// request order regardless of completion order, and a failed call yields a
// failed result in its slot rather than aborting the batch.
func (o *Orchestrator) executeTools(ctx context.Context, calls []llm.ToolCall) []tools.Result {
	results := make([]tools.Result, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call llm.ToolCall) {
			defer wg.Done()
			results[i] = o.tools.Invoke(ctx, call.Name, call.Arguments)
		}(i, call)
	}
	wg.Wait()

	for _, res := range results {
		if !res.Success {
			slog.Warn("conversation: tool call failed", "tool", res.Tool, "error", res.Error)
		}
	}
	return results
}

// ExtractIntent classifies a user message. Advisory only; never fails.
func (o *Orchestrator) ExtractIntent(ctx context.Context, message string) *llm.Intent {
	return o.chat.ClassifyIntent(ctx, message)
}

// Health reports component reachability for the live health event.
type Health struct {
	Model    bool `json:"model"`
	ToolsAPI bool `json:"toolsApi"`
	Overall  bool `json:"overall"`
}

// HealthCheck probes the model endpoint and the platform API. Probes run
// concurrently with a shared deadline.
func (o *Orchestrator) HealthCheck(ctx context.Context) Health {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var h Health
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		h.Model = o.chat.HealthCheck(ctx)
	}()
	go func() {
		defer wg.Done()
		h.ToolsAPI = o.tools.HealthCheck(ctx)
	}()
	wg.Wait()

	h.Overall = h.Model && h.ToolsAPI
	return h
}

func (o *Orchestrator) llmTools() []llm.Tool {
	descs := o.tools.List()
	out := make([]llm.Tool, 0, len(descs))
	for _, d := range descs {
		out = append(out, llm.Tool{
			Name:        d.Name,
			Description: d.Description,
			Schema:      d.Schema,
		})
	}
	return out
}

func buildMessages(message string, history []llm.Message) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: message})
	return messages
}

func appendTurns(history []llm.Message, userMessage, assistantReply string) []llm.Message {
	updated := make([]llm.Message, 0, len(history)+2)
	updated = append(updated, history...)
	updated = append(updated,
		llm.Message{Role: llm.RoleUser, Content: userMessage},
		llm.Message{Role: llm.RoleAssistant, Content: assistantReply})
	return updated
}

// sources lists the distinct tools that contributed to the answer, in first
// invocation order.
func sources(results []tools.Result) []string {
	out := make([]string, 0, len(results))
	seen := make(map[string]struct{}, len(results))
	for _, res := range results {
		if _, ok := seen[res.Tool]; ok {
			continue
		}
		seen[res.Tool] = struct{}{}
		out = append(out, res.Tool)
	}
	return out
}

// resultsBlock renders tool results for the formatting prompt.
func resultsBlock(results []tools.Result) string {
	block := ""
	for _, res := range results {
		if block != "" {
			block += "\n\n"
		}
		block += "Tool: " + res.Tool + "\nResult: " + jsonutil.MustJSON(res.Result)
		if !res.Success {
			block += "\nError: " + res.Error
		}
	}
	return block
}
