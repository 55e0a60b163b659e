package llm

// Message is one conversation turn in provider-neutral form.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// Conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Tool is a capability advertised to the model for function calling.
type Tool struct {
	Name        string
	Description string
	Schema      map[string]any
}

// ToolCall is a model-emitted request to execute a named tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// Response is a completed (non-streaming) chat result.
type Response struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
}

// Stream event kinds, delivered strictly in arrival order.
const (
	StreamContent   = "content"
	StreamToolCalls = "tool_calls"
	StreamDone      = "done"
)

// StreamEvent is one incremental chunk from ChatStream. Content holds the
// text accumulated so far; Delta the new fragment. ToolCalls is populated on
// tool_calls and done events.
type StreamEvent struct {
	Type      string
	Delta     string
	Content   string
	ToolCalls []ToolCall
}

// Intent is the advisory classification of a user message.
type Intent struct {
	Intent        string            `json:"intent"`
	Entities      map[string]string `json:"entities"`
	Confidence    float64           `json:"confidence"`
	RequiresTool  bool              `json:"requires_tool"`
	SuggestedTool string            `json:"suggested_tool,omitempty"`
}
