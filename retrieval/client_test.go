package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confera/confera/domain"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, f.err
}

type fakeSearcher struct {
	matches []*domain.QAMatch
	err     error

	gotEvent     string
	gotEmbedding []float32
	gotThreshold float64
	gotTopK      int
}

func (f *fakeSearcher) SearchSimilar(ctx context.Context, eventID string, embedding []float32, minSimilarity float64, topK int) ([]*domain.QAMatch, error) {
	f.gotEvent = eventID
	f.gotEmbedding = embedding
	f.gotThreshold = minSimilarity
	f.gotTopK = topK
	return f.matches, f.err
}

func TestFindSimilarPassesThroughMatches(t *testing.T) {
	searcher := &fakeSearcher{matches: []*domain.QAMatch{
		{Question: "When do doors open?", Answer: "9am.", Similarity: 0.91},
		{Question: "Where is parking?", Answer: "Lot B.", Similarity: 0.71},
	}}
	c := NewClient(&fakeEmbedder{vec: []float32{0.5, 0.5}}, searcher, 0.6, 3)

	matches := c.FindSimilar(context.Background(), "doors?", "evt_1")

	require.Len(t, matches, 2)
	assert.Equal(t, 0.91, matches[0].Similarity)
	assert.Equal(t, "evt_1", searcher.gotEvent)
	assert.Equal(t, []float32{0.5, 0.5}, searcher.gotEmbedding)
	assert.Equal(t, 0.6, searcher.gotThreshold)
	assert.Equal(t, 3, searcher.gotTopK)
}

func TestFindSimilarEmbeddingFailureDegrades(t *testing.T) {
	searcher := &fakeSearcher{matches: []*domain.QAMatch{{Similarity: 0.9}}}
	c := NewClient(&fakeEmbedder{err: errors.New("provider down")}, searcher, 0.6, 3)

	matches := c.FindSimilar(context.Background(), "doors?", "evt_1")

	assert.Nil(t, matches)
	assert.Empty(t, searcher.gotEvent, "search is skipped when embedding fails")
}

func TestFindSimilarSearchFailureDegrades(t *testing.T) {
	c := NewClient(&fakeEmbedder{vec: []float32{1}}, &fakeSearcher{err: errors.New("db down")}, 0.6, 3)

	assert.Nil(t, c.FindSimilar(context.Background(), "doors?", "evt_1"))
}

func TestEmbedPropagatesError(t *testing.T) {
	wantErr := errors.New("provider down")
	c := NewClient(&fakeEmbedder{err: wantErr}, &fakeSearcher{}, 0.6, 3)

	_, err := c.Embed(context.Background(), "text")

	assert.ErrorIs(t, err, wantErr)
}
