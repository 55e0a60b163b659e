package protocol

import "github.com/confera/confera/domain"

type MessageType uint16

const (
	TypeError MessageType = 1

	// Moderated Q&A channel
	TypeJoinEvent         MessageType = 10
	TypeUserJoined        MessageType = 11
	TypeQuestionSubmit    MessageType = 12
	TypeAIProcessing      MessageType = 13
	TypeReceiveAnswer     MessageType = 14
	TypeQuestionEscalated MessageType = 15
	TypeOrganizerAnswer   MessageType = 16
	TypeAnswerSent        MessageType = 17
	TypeTyping            MessageType = 18

	// Conversational assistant channel
	TypeChatRequest       MessageType = 30
	TypeChatSimpleRequest MessageType = 31
	TypeChatStatus        MessageType = 32
	TypeChatContent       MessageType = 33
	TypeChatTools         MessageType = 34
	TypeChatComplete      MessageType = 35
	TypeChatResponse      MessageType = 36
	TypeChatError         MessageType = 37

	// Advisory extras
	TypeIntentRequest  MessageType = 40
	TypeIntentResponse MessageType = 41
	TypeHealthRequest  MessageType = 42
	TypeHealthStatus   MessageType = 43
)

type Error struct {
	Message string `msgpack:"message" json:"message"`
	Detail  string `msgpack:"detail,omitempty" json:"detail,omitempty"`
}

type JoinEvent struct {
	EventID  string `msgpack:"eventId" json:"eventId"`
	UserID   string `msgpack:"userId" json:"userId"`
	UserName string `msgpack:"userName" json:"userName"`
}

type UserJoined struct {
	UserID    string `msgpack:"userId" json:"userId"`
	UserName  string `msgpack:"userName" json:"userName"`
	Timestamp int64  `msgpack:"timestamp" json:"timestamp"`
}

type QuestionSubmit struct {
	EventID      string `msgpack:"eventId" json:"eventId"`
	UserID       string `msgpack:"userId" json:"userId"`
	UserName     string `msgpack:"userName" json:"userName"`
	UserEmail    string `msgpack:"userEmail,omitempty" json:"userEmail,omitempty"`
	Question     string `msgpack:"question" json:"question"`
	QuestionType string `msgpack:"questionType" json:"questionType"`
}

type AIProcessing struct {
	MessageID string `msgpack:"messageId" json:"messageId"`
}

type ReceiveAnswer struct {
	Message *domain.Message `msgpack:"message" json:"message"`
}

type QuestionEscalated struct {
	MessageID       string          `msgpack:"messageId" json:"messageId"`
	Message         *domain.Message `msgpack:"message,omitempty" json:"message,omitempty"`
	SuggestedAnswer string          `msgpack:"suggestedAnswer,omitempty" json:"suggestedAnswer,omitempty"`
	Notice          string          `msgpack:"notice,omitempty" json:"notice,omitempty"`
}

type OrganizerAnswer struct {
	MessageID        string `msgpack:"messageId" json:"messageId"`
	Answer           string `msgpack:"answer" json:"answer"`
	AnsweredBy       string `msgpack:"answeredBy" json:"answeredBy"`
	SaveToVectorCache bool  `msgpack:"saveToVectorCache" json:"saveToVectorCache"`
}

type AnswerSent struct {
	MessageID string `msgpack:"messageId" json:"messageId"`
	Success   bool   `msgpack:"success" json:"success"`
}

type Typing struct {
	EventID  string `msgpack:"eventId" json:"eventId"`
	UserID   string `msgpack:"userId" json:"userId"`
	UserName string `msgpack:"userName" json:"userName"`
	IsTyping bool   `msgpack:"isTyping" json:"isTyping"`
}

// ChatRequest starts one conversational exchange. History is the running
// conversation as role/content pairs; the server never persists it.
type ChatRequest struct {
	EventID  string        `msgpack:"eventId,omitempty" json:"eventId,omitempty"`
	UserID   string        `msgpack:"userId,omitempty" json:"userId,omitempty"`
	UserName string        `msgpack:"userName,omitempty" json:"userName,omitempty"`
	Message  string        `msgpack:"message" json:"message"`
	History  []ChatTurn    `msgpack:"conversationHistory,omitempty" json:"conversationHistory,omitempty"`
}

type ChatTurn struct {
	Role    string `msgpack:"role" json:"role"`
	Content string `msgpack:"content" json:"content"`
}

// ChatStatus reports pipeline progress: "processing", "executing_tools",
// "tools_complete".
type ChatStatus struct {
	Status  string   `msgpack:"status" json:"status"`
	Message string   `msgpack:"message,omitempty" json:"message,omitempty"`
	Tools   []string `msgpack:"tools,omitempty" json:"tools,omitempty"`
	Count   int      `msgpack:"count,omitempty" json:"count,omitempty"`
}

// ChatContent carries streamed assistant text. Kind is "content" for
// incremental deltas and "final_content" for the post-tool synthesis, which
// arrives as a single chunk.
type ChatContent struct {
	Kind    string `msgpack:"kind" json:"kind"`
	Content string `msgpack:"content" json:"content"`
}

type ChatToolOutcome struct {
	Tool    string `msgpack:"tool" json:"tool"`
	Success bool   `msgpack:"success" json:"success"`
	Summary string `msgpack:"summary" json:"summary"`
}

type ChatTools struct {
	Results []ChatToolOutcome `msgpack:"results" json:"results"`
}

type ChatComplete struct {
	Content        string            `msgpack:"content" json:"content"`
	ToolExecutions []ChatToolOutcome `msgpack:"toolExecutions,omitempty" json:"toolExecutions,omitempty"`
}

// ChatResponse is the non-streaming reply for TypeChatSimpleRequest.
type ChatResponse struct {
	Content   string   `msgpack:"content" json:"content"`
	ToolCalls []string `msgpack:"toolCalls,omitempty" json:"toolCalls,omitempty"`
	Sources   []string `msgpack:"sources,omitempty" json:"sources,omitempty"`
}

type ChatError struct {
	Message string `msgpack:"message" json:"message"`
	Detail  string `msgpack:"detail,omitempty" json:"detail,omitempty"`
}

type IntentRequest struct {
	Message string `msgpack:"message" json:"message"`
}

type IntentResponse struct {
	Intent        string            `msgpack:"intent" json:"intent"`
	Entities      map[string]string `msgpack:"entities,omitempty" json:"entities,omitempty"`
	Confidence    float64           `msgpack:"confidence" json:"confidence"`
	RequiresTool  bool              `msgpack:"requiresTool" json:"requiresTool"`
	SuggestedTool string            `msgpack:"suggestedTool,omitempty" json:"suggestedTool,omitempty"`
}

type HealthStatus struct {
	Model    bool   `msgpack:"model" json:"model"`
	ToolsAPI bool   `msgpack:"toolsApi" json:"toolsApi"`
	Overall  bool   `msgpack:"overall" json:"overall"`
	Error    string `msgpack:"error,omitempty" json:"error,omitempty"`
}
