package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/confera/confera/config"
	"github.com/confera/confera/conversation"
	"github.com/confera/confera/domain"
	"github.com/confera/confera/llm"
	"github.com/confera/confera/metrics"
	"github.com/confera/confera/protocol"
	"github.com/confera/confera/qa"
	"github.com/confera/confera/retrieval"
	"github.com/confera/confera/store"
	"github.com/confera/confera/tools"
)

// messageDeadline bounds processing of one inbound websocket message.
// Detached from the connection context so answers finish and persist even if
// the asker disconnects mid-flight.
const messageDeadline = 5 * time.Minute

type WSHandler struct {
	hub      *Hub
	cfg      *config.Config
	store    *store.Store
	orch     *conversation.Orchestrator
	router   *qa.Router
	embedder retrieval.Embedder
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *Hub, cfg *config.Config, s *store.Store, orch *conversation.Orchestrator, router *qa.Router, embedder retrieval.Embedder) *WSHandler {
	h := &WSHandler{
		hub:      hub,
		cfg:      cfg,
		store:    s,
		orch:     orch,
		router:   router,
		embedder: embedder,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WSHandler) checkOrigin(r *http.Request) bool {
	for _, o := range h.cfg.Server.AllowedOrigins {
		if o == "*" {
			return true
		}
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return h.cfg.Server.AllowEmptyOrigin
	}
	for _, allowed := range h.cfg.Server.AllowedOrigins {
		if allowed == origin {
			return true
		}
	}
	return false
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws: upgrade error", "error", err)
		return
	}
	defer conn.Close()
	defer h.hub.Leave(conn)

	metrics.WebsocketConnections.Inc()
	defer metrics.WebsocketConnections.Dec()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("ws: read error", "error", err)
			}
			break
		}

		env, err := protocol.DecodeEnvelope(data)
		if err != nil {
			slog.Error("ws: decode error", "error", err)
			continue
		}

		func() {
			ctx, cancel := context.WithTimeout(context.Background(), messageDeadline)
			defer cancel()
			h.dispatch(ctx, conn, env)
		}()
	}
}

func (h *WSHandler) dispatch(ctx context.Context, conn *websocket.Conn, env *protocol.Envelope) {
	switch env.Type {
	case protocol.TypeJoinEvent:
		h.handleJoinEvent(conn, env)
	case protocol.TypeQuestionSubmit:
		h.handleQuestionSubmit(ctx, conn, env)
	case protocol.TypeOrganizerAnswer:
		h.handleOrganizerAnswer(ctx, conn, env)
	case protocol.TypeTyping:
		h.handleTyping(conn, env)
	case protocol.TypeChatRequest:
		h.handleChat(ctx, conn, env)
	case protocol.TypeChatSimpleRequest:
		h.handleChatSimple(ctx, conn, env)
	case protocol.TypeIntentRequest:
		h.handleIntent(ctx, conn, env)
	case protocol.TypeHealthRequest:
		h.handleHealth(ctx, conn, env)
	default:
		slog.Warn("ws: unhandled message type", "type", env.Type)
	}
}

func (h *WSHandler) sendError(conn *websocket.Conn, eventID, message string) {
	h.hub.SendToConn(conn, eventID, protocol.TypeError, protocol.Error{Message: message})
}

func (h *WSHandler) handleJoinEvent(conn *websocket.Conn, env *protocol.Envelope) {
	join, err := protocol.DecodeBody[protocol.JoinEvent](env)
	if err != nil {
		slog.Error("ws: decode join error", "error", err)
		return
	}

	h.hub.Join(join.EventID, join.UserID, conn)

	h.hub.BroadcastToEvent(join.EventID, conn, protocol.TypeUserJoined, protocol.UserJoined{
		UserID:    join.UserID,
		UserName:  join.UserName,
		Timestamp: time.Now().UTC().UnixMilli(),
	})
}

func (h *WSHandler) handleTyping(conn *websocket.Conn, env *protocol.Envelope) {
	typing, err := protocol.DecodeBody[protocol.Typing](env)
	if err != nil {
		return
	}
	h.hub.BroadcastToEvent(typing.EventID, conn, protocol.TypeTyping, typing)
}

// handleQuestionSubmit runs the moderated Q&A flow: persist the question,
// route it through the confidence router, then either deliver the answer or
// escalate to the organizers.
func (h *WSHandler) handleQuestionSubmit(ctx context.Context, conn *websocket.Conn, env *protocol.Envelope) {
	submit, err := protocol.DecodeBody[protocol.QuestionSubmit](env)
	if err != nil {
		slog.Error("ws: decode question error", "error", err)
		h.sendError(conn, env.EventID, "invalid question payload")
		return
	}
	if submit.Question == "" || submit.EventID == "" {
		h.sendError(conn, submit.EventID, "question and eventId are required")
		return
	}
	if submit.QuestionType == "" {
		submit.QuestionType = domain.QuestionTypeGeneral
	}

	msg := &domain.Message{
		EventID:      submit.EventID,
		UserID:       submit.UserID,
		UserName:     submit.UserName,
		UserEmail:    submit.UserEmail,
		Question:     submit.Question,
		QuestionType: submit.QuestionType,
	}
	if err := h.store.CreateMessage(ctx, msg); err != nil {
		slog.Error("ws: create message error", "error", err)
		h.sendError(conn, submit.EventID, "failed to process question")
		return
	}

	h.hub.SendToConn(conn, submit.EventID, protocol.TypeAIProcessing, protocol.AIProcessing{MessageID: msg.ID})

	decision := h.router.Answer(ctx, submit.Question, submit.EventID)

	if decision.Answer != nil && !decision.NeedsHumanReview {
		h.deliverAnswer(ctx, conn, msg, decision)
		return
	}
	h.escalate(ctx, conn, msg, decision)
}

func (h *WSHandler) deliverAnswer(ctx context.Context, conn *websocket.Conn, msg *domain.Message, decision domain.ConfidenceDecision) {
	confidence := decision.Confidence
	updated, err := h.store.UpdateAnswer(ctx, msg.ID, store.AnswerUpdate{
		Answer:         *decision.Answer,
		ResponseSource: domain.ResponseSourceAI,
		AIConfidence:   &confidence,
		Status:         domain.MessageStatusAnswered,
	})
	if err != nil {
		slog.Error("ws: update answer error", "message_id", msg.ID, "error", err)
		h.sendError(conn, msg.EventID, "failed to record answer")
		return
	}

	// Only freshly generated answers to general questions enter the cache;
	// cache hits are already there.
	if msg.QuestionType == domain.QuestionTypeGeneral && decision.Source == domain.SourceAIGenerated {
		if cacheID, err := h.saveToCache(ctx, updated, *decision.Answer); err == nil {
			updated.SavedToVectorCache = true
			updated.VectorCacheID = &cacheID
		}
	}

	answer := protocol.ReceiveAnswer{Message: updated}
	if msg.QuestionType == domain.QuestionTypePersonalized {
		h.hub.SendToUser(msg.UserID, msg.EventID, protocol.TypeReceiveAnswer, answer)
	} else {
		h.hub.BroadcastToEvent(msg.EventID, nil, protocol.TypeReceiveAnswer, answer)
	}
}

func (h *WSHandler) escalate(ctx context.Context, conn *websocket.Conn, msg *domain.Message, decision domain.ConfidenceDecision) {
	confidence := decision.Confidence
	updated, err := h.store.MarkEscalated(ctx, msg.ID, &confidence)
	if err != nil {
		slog.Error("ws: escalate error", "message_id", msg.ID, "error", err)
		h.sendError(conn, msg.EventID, "failed to process question")
		return
	}

	suggested := ""
	if decision.Answer != nil {
		suggested = *decision.Answer
	}

	h.hub.BroadcastToEvent(msg.EventID, nil, protocol.TypeQuestionEscalated, protocol.QuestionEscalated{
		MessageID:       msg.ID,
		Message:         updated,
		SuggestedAnswer: suggested,
	})
	h.hub.SendToConn(conn, msg.EventID, protocol.TypeQuestionEscalated, protocol.QuestionEscalated{
		MessageID: msg.ID,
		Notice:    "Your question has been forwarded to the organizer.",
	})
}

func (h *WSHandler) handleOrganizerAnswer(ctx context.Context, conn *websocket.Conn, env *protocol.Envelope) {
	ans, err := protocol.DecodeBody[protocol.OrganizerAnswer](env)
	if err != nil {
		slog.Error("ws: decode organizer answer error", "error", err)
		return
	}

	msg, err := h.store.GetMessage(ctx, ans.MessageID)
	if err != nil {
		h.sendError(conn, env.EventID, "message not found")
		return
	}

	answeredBy := ans.AnsweredBy
	updated, err := h.store.UpdateAnswer(ctx, ans.MessageID, store.AnswerUpdate{
		Answer:         ans.Answer,
		ResponseSource: domain.ResponseSourceOrganizer,
		Status:         domain.MessageStatusAnswered,
		AnsweredBy:     &answeredBy,
	})
	if err != nil {
		slog.Error("ws: organizer answer error", "message_id", ans.MessageID, "error", err)
		h.sendError(conn, msg.EventID, "failed to send answer")
		return
	}

	if ans.SaveToVectorCache && msg.QuestionType == domain.QuestionTypeGeneral {
		if cacheID, err := h.saveToCache(ctx, updated, ans.Answer); err == nil {
			updated.SavedToVectorCache = true
			updated.VectorCacheID = &cacheID
		}
	}

	answer := protocol.ReceiveAnswer{Message: updated}
	if msg.QuestionType == domain.QuestionTypePersonalized {
		h.hub.SendToUser(msg.UserID, msg.EventID, protocol.TypeReceiveAnswer, answer)
	} else {
		h.hub.BroadcastToEvent(msg.EventID, nil, protocol.TypeReceiveAnswer, answer)
	}

	h.hub.SendToConn(conn, msg.EventID, protocol.TypeAnswerSent, protocol.AnswerSent{
		MessageID: ans.MessageID,
		Success:   true,
	})
}

// saveToCache embeds the question and persists the pair so future similar
// questions hit the cache. Failures are logged, not fatal: the answer was
// already delivered.
func (h *WSHandler) saveToCache(ctx context.Context, msg *domain.Message, answer string) (string, error) {
	embedding, err := h.embedder.Embed(ctx, msg.Question)
	if err != nil {
		slog.Warn("ws: cache embed failed", "message_id", msg.ID, "error", err)
		return "", err
	}

	pair := &domain.QAPair{
		EventID:   msg.EventID,
		MessageID: &msg.ID,
		Question:  msg.Question,
		Answer:    answer,
		Embedding: embedding,
	}
	if err := h.store.StoreQAPair(ctx, pair); err != nil {
		slog.Warn("ws: cache store failed", "message_id", msg.ID, "error", err)
		return "", err
	}
	if err := h.store.MarkSavedToCache(ctx, msg.ID, pair.ID); err != nil {
		slog.Warn("ws: cache flag update failed", "message_id", msg.ID, "error", err)
	}
	return pair.ID, nil
}

// handleChat runs a streaming conversational exchange, relaying orchestrator
// progress to the client as typed events.
func (h *WSHandler) handleChat(ctx context.Context, conn *websocket.Conn, env *protocol.Envelope) {
	req, err := protocol.DecodeBody[protocol.ChatRequest](env)
	if err != nil {
		slog.Error("ws: decode chat request error", "error", err)
		h.hub.SendToConn(conn, env.EventID, protocol.TypeChatError, protocol.ChatError{Message: "invalid chat payload"})
		return
	}

	h.hub.SendToConn(conn, req.EventID, protocol.TypeChatStatus, protocol.ChatStatus{
		Status:  "processing",
		Message: "Thinking...",
	})

	for ev := range h.orch.ProcessStream(ctx, req.Message, historyToMessages(req.History)) {
		switch ev.Type {
		case conversation.EventContent:
			h.hub.SendToConn(conn, req.EventID, protocol.TypeChatContent, protocol.ChatContent{
				Kind:    "content",
				Content: ev.Content,
			})
		case conversation.EventToolCalls:
			names := make([]string, 0, len(ev.ToolCalls))
			for _, tc := range ev.ToolCalls {
				names = append(names, tc.Name)
			}
			h.hub.SendToConn(conn, req.EventID, protocol.TypeChatStatus, protocol.ChatStatus{
				Status:  "executing_tools",
				Message: fmt.Sprintf("Executing %d tool(s)...", len(ev.ToolCalls)),
				Tools:   names,
			})
		case conversation.EventExecutingTools:
			h.hub.SendToConn(conn, req.EventID, protocol.TypeChatStatus, protocol.ChatStatus{
				Status:  "executing_tools",
				Message: "Calling Confera APIs...",
				Count:   ev.Count,
			})
		case conversation.EventToolsComplete:
			h.hub.SendToConn(conn, req.EventID, protocol.TypeChatTools, protocol.ChatTools{
				Results: toolOutcomes(ev.Results),
			})
		case conversation.EventFinalResponse:
			h.hub.SendToConn(conn, req.EventID, protocol.TypeChatContent, protocol.ChatContent{
				Kind:    "final_content",
				Content: ev.Content,
			})
		case conversation.EventComplete:
			h.hub.SendToConn(conn, req.EventID, protocol.TypeChatComplete, protocol.ChatComplete{
				Content:        ev.Result.Content,
				ToolExecutions: toolOutcomes(ev.Result.ToolResults),
			})
		case conversation.EventError:
			slog.Error("ws: chat stream error", "error", ev.Err)
			h.hub.SendToConn(conn, req.EventID, protocol.TypeChatError, protocol.ChatError{
				Message: "Failed to process your message. Please try again.",
				Detail:  ev.Err.Error(),
			})
		}
	}
}

func (h *WSHandler) handleChatSimple(ctx context.Context, conn *websocket.Conn, env *protocol.Envelope) {
	req, err := protocol.DecodeBody[protocol.ChatRequest](env)
	if err != nil {
		h.hub.SendToConn(conn, env.EventID, protocol.TypeChatError, protocol.ChatError{Message: "invalid chat payload"})
		return
	}

	h.hub.SendToConn(conn, req.EventID, protocol.TypeChatStatus, protocol.ChatStatus{Status: "processing"})

	result, err := h.orch.Process(ctx, req.Message, historyToMessages(req.History))
	if err != nil {
		slog.Error("ws: chat error", "error", err)
		h.hub.SendToConn(conn, req.EventID, protocol.TypeChatError, protocol.ChatError{
			Message: "Failed to process your message.",
			Detail:  err.Error(),
		})
		return
	}

	names := make([]string, 0, len(result.ToolCalls))
	for _, tc := range result.ToolCalls {
		names = append(names, tc.Name)
	}
	h.hub.SendToConn(conn, req.EventID, protocol.TypeChatResponse, protocol.ChatResponse{
		Content:   result.Content,
		ToolCalls: names,
		Sources:   result.Sources,
	})
}

func (h *WSHandler) handleIntent(ctx context.Context, conn *websocket.Conn, env *protocol.Envelope) {
	req, err := protocol.DecodeBody[protocol.IntentRequest](env)
	if err != nil {
		return
	}

	intent := h.orch.ExtractIntent(ctx, req.Message)
	h.hub.SendToConn(conn, env.EventID, protocol.TypeIntentResponse, protocol.IntentResponse{
		Intent:        intent.Intent,
		Entities:      intent.Entities,
		Confidence:    intent.Confidence,
		RequiresTool:  intent.RequiresTool,
		SuggestedTool: intent.SuggestedTool,
	})
}

func (h *WSHandler) handleHealth(ctx context.Context, conn *websocket.Conn, env *protocol.Envelope) {
	health := h.orch.HealthCheck(ctx)
	h.hub.SendToConn(conn, env.EventID, protocol.TypeHealthStatus, protocol.HealthStatus{
		Model:    health.Model,
		ToolsAPI: health.ToolsAPI,
		Overall:  health.Overall,
	})
}

func historyToMessages(history []protocol.ChatTurn) []llm.Message {
	messages := make([]llm.Message, 0, len(history))
	for _, turn := range history {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	return messages
}

func toolOutcomes(results []tools.Result) []protocol.ChatToolOutcome {
	outcomes := make([]protocol.ChatToolOutcome, 0, len(results))
	for _, res := range results {
		summary := "Success"
		if !res.Success {
			summary = "Failed"
		}
		outcomes = append(outcomes, protocol.ChatToolOutcome{
			Tool:    res.Tool,
			Success: res.Success,
			Summary: summary,
		})
	}
	return outcomes
}
