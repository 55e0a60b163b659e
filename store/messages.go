package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/confera/confera/domain"
	"github.com/confera/confera/shared/id"
)

const messageColumns = `id, event_id, user_id, user_name, user_email, question, answer,
	question_type, response_source, ai_confidence, status, answered_by, answered_at,
	saved_to_vector_cache, vector_cache_id, created_at`

// CreateMessage inserts a new attendee question. Missing type, source, and
// status fall back to their defaults; the ID and creation time are assigned
// when absent.
func (s *Store) CreateMessage(ctx context.Context, msg *domain.Message) error {
	if msg.ID == "" {
		msg.ID = id.NewMessage()
	}
	if msg.QuestionType == "" {
		msg.QuestionType = domain.QuestionTypeGeneral
	}
	if msg.ResponseSource == "" {
		msg.ResponseSource = domain.ResponseSourcePending
	}
	if msg.Status == "" {
		msg.Status = domain.MessageStatusPending
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO messages (` + messageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := s.conn(ctx).Exec(ctx, query,
		msg.ID, msg.EventID, msg.UserID, msg.UserName, msg.UserEmail,
		msg.Question, msg.Answer, msg.QuestionType, msg.ResponseSource,
		msg.AIConfidence, msg.Status, msg.AnsweredBy, msg.AnsweredAt,
		msg.SavedToVectorCache, msg.VectorCacheID, msg.CreatedAt)
	if err != nil {
		return WrapError("create message", err)
	}
	return nil
}

// GetMessage retrieves a message by ID.
func (s *Store) GetMessage(ctx context.Context, messageID string) (*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`

	msg, err := scanMessage(s.conn(ctx).QueryRow(ctx, query, messageID))
	if err != nil {
		return nil, WrapNotFound("get message", err)
	}
	return msg, nil
}

// ListMessagesByEvent returns an event's questions in submission order. When
// userID is non-empty, personalized questions from other attendees are
// filtered out; general questions stay visible to everyone.
func (s *Store) ListMessagesByEvent(ctx context.Context, eventID, userID string, limit int) ([]*domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + messageColumns + ` FROM messages WHERE event_id = $1`
	args := []any{eventID}
	if userID != "" {
		query += ` AND (user_id = $2 OR question_type = $3)`
		args = append(args, userID, domain.QuestionTypeGeneral)
	}
	query += fmt.Sprintf(` ORDER BY created_at ASC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, WrapError("list messages", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

// ListPendingMessages returns pending and escalated questions for an event,
// newest first, for the organizer's review queue.
func (s *Store) ListPendingMessages(ctx context.Context, eventID string) ([]*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE event_id = $1 AND status IN ($2, $3)
		ORDER BY created_at DESC`

	rows, err := s.conn(ctx).Query(ctx, query, eventID,
		domain.MessageStatusPending, domain.MessageStatusEscalated)
	if err != nil {
		return nil, WrapError("list pending messages", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

// AnswerUpdate carries the fields set when a question receives an answer.
type AnswerUpdate struct {
	Answer             string
	ResponseSource     string
	AIConfidence       *float64
	Status             string
	AnsweredBy         *string
	SavedToVectorCache bool
	VectorCacheID      *string
}

// UpdateAnswer records an answer on a message and returns the updated row.
func (s *Store) UpdateAnswer(ctx context.Context, messageID string, upd AnswerUpdate) (*domain.Message, error) {
	if upd.Status == "" {
		upd.Status = domain.MessageStatusAnswered
	}

	query := `
		UPDATE messages
		SET answer = $2, response_source = $3, ai_confidence = $4, status = $5,
			answered_by = $6, answered_at = $7,
			saved_to_vector_cache = $8, vector_cache_id = $9
		WHERE id = $1
		RETURNING ` + messageColumns

	msg, err := scanMessage(s.conn(ctx).QueryRow(ctx, query,
		messageID, upd.Answer, upd.ResponseSource, upd.AIConfidence, upd.Status,
		upd.AnsweredBy, time.Now().UTC(), upd.SavedToVectorCache, upd.VectorCacheID))
	if err != nil {
		return nil, WrapNotFound("update answer", err)
	}
	return msg, nil
}

// MarkEscalated flags a question for organizer attention, recording the AI
// confidence observed at escalation time.
func (s *Store) MarkEscalated(ctx context.Context, messageID string, confidence *float64) (*domain.Message, error) {
	query := `
		UPDATE messages SET status = $2, ai_confidence = $3
		WHERE id = $1
		RETURNING ` + messageColumns

	msg, err := scanMessage(s.conn(ctx).QueryRow(ctx, query,
		messageID, domain.MessageStatusEscalated, confidence))
	if err != nil {
		return nil, WrapNotFound("mark escalated", err)
	}
	return msg, nil
}

// MarkSavedToCache records that a message's answer was copied into the
// vector cache.
func (s *Store) MarkSavedToCache(ctx context.Context, messageID, cacheID string) error {
	tag, err := s.conn(ctx).Exec(ctx,
		`UPDATE messages SET saved_to_vector_cache = TRUE, vector_cache_id = $2 WHERE id = $1`,
		messageID, cacheID)
	if err != nil {
		return WrapError("mark saved to cache", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListUnsavedAnswers returns answered general questions whose answers have
// not yet been copied into the vector cache.
func (s *Store) ListUnsavedAnswers(ctx context.Context) ([]*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE question_type = $1 AND status = $2
		  AND saved_to_vector_cache = FALSE AND answer IS NOT NULL
		ORDER BY created_at ASC`

	rows, err := s.conn(ctx).Query(ctx, query,
		domain.QuestionTypeGeneral, domain.MessageStatusAnswered)
	if err != nil {
		return nil, WrapError("list unsaved answers", err)
	}
	defer rows.Close()
	return collectMessages(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*domain.Message, error) {
	var msg domain.Message
	err := row.Scan(
		&msg.ID, &msg.EventID, &msg.UserID, &msg.UserName, &msg.UserEmail,
		&msg.Question, &msg.Answer, &msg.QuestionType, &msg.ResponseSource,
		&msg.AIConfidence, &msg.Status, &msg.AnsweredBy, &msg.AnsweredAt,
		&msg.SavedToVectorCache, &msg.VectorCacheID, &msg.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func collectMessages(rows pgx.Rows) ([]*domain.Message, error) {
	var messages []*domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, WrapError("scan message", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapError("iterate messages", err)
	}
	return messages, nil
}
