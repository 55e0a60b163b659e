package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/confera/confera/domain"
	"github.com/confera/confera/retrieval"
	"github.com/confera/confera/store"
)

// MessageHandler exposes the moderated Q&A channel over REST, mirroring the
// live websocket flow for organizer dashboards that reconnect or poll.
// notify pushes an answered message to connected attendees; it may be nil.
type MessageHandler struct {
	store    *store.Store
	embedder retrieval.Embedder
	notify   func(*domain.Message)
}

func NewMessageHandler(s *store.Store, embedder retrieval.Embedder, notify func(*domain.Message)) *MessageHandler {
	return &MessageHandler{store: s, embedder: embedder, notify: notify}
}

// ListByEvent handles GET /events/{eventID}/messages. A userId query
// parameter hides other attendees' personalized questions.
func (h *MessageHandler) ListByEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	userID := r.URL.Query().Get("userId")
	limit := parseIntQuery(r, "limit", 50)

	messages, err := h.store.ListMessagesByEvent(r.Context(), eventID, userID, limit)
	if err != nil {
		respondError(w, "failed to list messages", http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []*domain.Message{}
	}
	respondJSON(w, messages, http.StatusOK)
}

// ListPending handles GET /events/{eventID}/messages/pending, the
// organizer's review queue.
func (h *MessageHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	messages, err := h.store.ListPendingMessages(r.Context(), eventID)
	if err != nil {
		respondError(w, "failed to list pending messages", http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []*domain.Message{}
	}
	respondJSON(w, messages, http.StatusOK)
}

// Get handles GET /messages/{id}.
func (h *MessageHandler) Get(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "id")

	msg, err := h.store.GetMessage(r.Context(), messageID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			respondError(w, "message not found", http.StatusNotFound)
			return
		}
		respondError(w, "failed to get message", http.StatusInternalServerError)
		return
	}
	respondJSON(w, msg, http.StatusOK)
}

type organizerAnswerRequest struct {
	Answer            string `json:"answer"`
	AnsweredBy        string `json:"answeredBy"`
	SaveToVectorCache bool   `json:"saveToVectorCache"`
}

// Answer handles PUT /messages/{id}/answer, the organizer dashboard's reply
// path. The updated message is delivered to connected attendees the same way
// an answer submitted over the websocket channel would be.
func (h *MessageHandler) Answer(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "id")

	var req organizerAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Answer == "" {
		respondError(w, "answer is required", http.StatusBadRequest)
		return
	}

	msg, err := h.store.GetMessage(r.Context(), messageID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			respondError(w, "message not found", http.StatusNotFound)
			return
		}
		respondError(w, "failed to get message", http.StatusInternalServerError)
		return
	}

	answeredBy := req.AnsweredBy
	updated, err := h.store.UpdateAnswer(r.Context(), messageID, store.AnswerUpdate{
		Answer:         req.Answer,
		ResponseSource: domain.ResponseSourceOrganizer,
		Status:         domain.MessageStatusAnswered,
		AnsweredBy:     &answeredBy,
	})
	if err != nil {
		respondError(w, "failed to record answer", http.StatusInternalServerError)
		return
	}

	if req.SaveToVectorCache && msg.QuestionType == domain.QuestionTypeGeneral && h.embedder != nil {
		if cacheID, err := h.saveToCache(r.Context(), updated, req.Answer); err == nil {
			updated.SavedToVectorCache = true
			updated.VectorCacheID = &cacheID
		}
	}

	if h.notify != nil {
		h.notify(updated)
	}
	respondJSON(w, updated, http.StatusOK)
}

// ClearCache handles DELETE /events/{eventID}/cache, dropping an event's
// cached answers when it is archived or its content changes.
func (h *MessageHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	deleted, err := h.store.DeleteQAPairsByEvent(r.Context(), eventID)
	if err != nil {
		respondError(w, "failed to clear cache", http.StatusInternalServerError)
		return
	}

	slog.Info("messages: cache cleared", "event_id", eventID, "deleted", deleted)
	respondJSON(w, map[string]any{"deleted": deleted}, http.StatusOK)
}

// saveToCache stores the answered pair for future similarity hits. Failures
// are logged, not fatal: the answer has already been recorded.
func (h *MessageHandler) saveToCache(ctx context.Context, msg *domain.Message, answer string) (string, error) {
	embedding, err := h.embedder.Embed(ctx, msg.Question)
	if err != nil {
		slog.Warn("messages: cache embed failed", "message_id", msg.ID, "error", err)
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
		slog.Warn("messages: cache store failed", "message_id", msg.ID, "error", err)
		return "", err
	}
	if err := h.store.MarkSavedToCache(ctx, msg.ID, pair.ID); err != nil {
		slog.Warn("messages: cache flag update failed", "message_id", msg.ID, "error", err)
	}
	return pair.ID, nil
}
