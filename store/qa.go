package store

import (
	"context"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/confera/confera/domain"
	"github.com/confera/confera/shared/id"
)

// StoreQAPair persists a question/answer pair with its embedding so future
// similar questions can be answered from cache.
func (s *Store) StoreQAPair(ctx context.Context, pair *domain.QAPair) error {
	if pair.ID == "" {
		pair.ID = id.NewQAPair()
	}
	if pair.CreatedAt.IsZero() {
		pair.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO qa_embeddings (id, event_id, message_id, question, answer, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.conn(ctx).Exec(ctx, query,
		pair.ID, pair.EventID, pair.MessageID, pair.Question, pair.Answer,
		pgvector.NewVector(pair.Embedding), pair.CreatedAt)
	if err != nil {
		return WrapError("store qa pair", err)
	}
	return nil
}

// SearchSimilar returns the cached pairs for an event most similar to the
// query embedding, best match first. Matches below minSimilarity are
// excluded; topK bounds the result size.
func (s *Store) SearchSimilar(ctx context.Context, eventID string, embedding []float32, minSimilarity float64, topK int) ([]*domain.QAMatch, error) {
	if topK <= 0 {
		topK = 3
	}

	// Cosine distance d maps to similarity 1 - d.
	query := `
		SELECT question, answer, 1 - (embedding <=> $2) AS similarity
		FROM qa_embeddings
		WHERE event_id = $1 AND 1 - (embedding <=> $2) >= $3
		ORDER BY embedding <=> $2
		LIMIT $4`

	rows, err := s.conn(ctx).Query(ctx, query,
		eventID, pgvector.NewVector(embedding), minSimilarity, topK)
	if err != nil {
		return nil, WrapError("search similar", err)
	}
	defer rows.Close()

	var matches []*domain.QAMatch
	for rows.Next() {
		var m domain.QAMatch
		if err := rows.Scan(&m.Question, &m.Answer, &m.Similarity); err != nil {
			return nil, WrapError("scan match", err)
		}
		matches = append(matches, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapError("iterate matches", err)
	}
	return matches, nil
}

// DeleteQAPairsByEvent drops an event's cached answers, used when an event
// is archived.
func (s *Store) DeleteQAPairsByEvent(ctx context.Context, eventID string) (int64, error) {
	tag, err := s.conn(ctx).Exec(ctx,
		`DELETE FROM qa_embeddings WHERE event_id = $1`, eventID)
	if err != nil {
		return 0, WrapError("delete qa pairs", err)
	}
	return tag.RowsAffected(), nil
}
