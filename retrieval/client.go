// Package retrieval augments question answering with vector similarity
// lookups over previously answered questions.
package retrieval

import (
	"context"
	"log/slog"

	"github.com/confera/confera/domain"
)

// Embedder turns text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher runs a similarity query over the cached answer store.
type Searcher interface {
	SearchSimilar(ctx context.Context, eventID string, embedding []float32, minSimilarity float64, topK int) ([]*domain.QAMatch, error)
}

// Client ties embedding generation to similarity search.
type Client struct {
	embedder  Embedder
	searcher  Searcher
	threshold float64
	topK      int
}

// NewClient builds a retrieval client. Matches below threshold are never
// returned; topK bounds result size.
func NewClient(embedder Embedder, searcher Searcher, threshold float64, topK int) *Client {
	return &Client{embedder: embedder, searcher: searcher, threshold: threshold, topK: topK}
}

// Embed produces an embedding for the given text. Failures propagate: callers
// that can proceed without retrieval use FindSimilar instead.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	return c.embedder.Embed(ctx, text)
}

// FindSimilar returns cached question/answer pairs similar to the question,
// best match first. Retrieval is an optimization, so every failure degrades
// to an empty result rather than an error.
func (c *Client) FindSimilar(ctx context.Context, question, eventID string) []*domain.QAMatch {
	embedding, err := c.embedder.Embed(ctx, question)
	if err != nil {
		slog.Warn("retrieval: embedding failed, skipping lookup", "event", eventID, "error", err)
		return nil
	}

	matches, err := c.searcher.SearchSimilar(ctx, eventID, embedding, c.threshold, c.topK)
	if err != nil {
		slog.Warn("retrieval: similarity search failed", "event", eventID, "error", err)
		return nil
	}
	return matches
}
