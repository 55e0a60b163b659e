package qa

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confera/confera/domain"
	"github.com/confera/confera/llm"
)

type fakeRetriever struct {
	matches []*domain.QAMatch
}

func (f *fakeRetriever) FindSimilar(context.Context, string, string) []*domain.QAMatch {
	return f.matches
}

type fakeChat struct {
	reply      string
	err        error
	calls      int
	lastSystem string
}

func (f *fakeChat) Chat(_ context.Context, messages []llm.Message, _ []llm.Tool) (*llm.Response, error) {
	f.calls++
	if len(messages) > 0 && messages[0].Role == llm.RoleSystem {
		f.lastSystem = messages[0].Content
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Content: f.reply}, nil
}

func match(question, answer string, similarity float64) *domain.QAMatch {
	return &domain.QAMatch{Question: question, Answer: answer, Similarity: similarity}
}

func TestCachedAnswerSkipsGeneration(t *testing.T) {
	chat := &fakeChat{reply: "should not be used"}
	router := NewRouter(chat, &fakeRetriever{matches: []*domain.QAMatch{
		match("What time does it start?", "10am sharp.", 0.82),
	}}, 0.75, false)

	decision := router.Answer(context.Background(), "What time does it start?", "evt_1")

	require.NotNil(t, decision.Answer)
	assert.Equal(t, "10am sharp.", *decision.Answer)
	assert.Equal(t, domain.SourceVectorCache, decision.Source)
	assert.Equal(t, 0.82, decision.Confidence)
	assert.False(t, decision.NeedsHumanReview)
	assert.Zero(t, chat.calls, "cache hit must not invoke the model")
}

func TestSimilarityEqualToThresholdHitsCache(t *testing.T) {
	chat := &fakeChat{}
	router := NewRouter(chat, &fakeRetriever{matches: []*domain.QAMatch{
		match("q", "cached", 0.75),
	}}, 0.75, false)

	decision := router.Answer(context.Background(), "q", "evt_1")

	assert.Equal(t, domain.SourceVectorCache, decision.Source)
	assert.Zero(t, chat.calls)
}

func TestLowSimilarityGeneratesWithContext(t *testing.T) {
	chat := &fakeChat{reply: "generated answer"}
	router := NewRouter(chat, &fakeRetriever{matches: []*domain.QAMatch{
		match("When do doors open?", "9am.", 0.61),
		match("Is re-entry allowed?", "Yes.", 0.55),
	}}, 0.75, false)

	decision := router.Answer(context.Background(), "What time can I arrive?", "evt_1")

	require.NotNil(t, decision.Answer)
	assert.Equal(t, "generated answer", *decision.Answer)
	assert.Equal(t, domain.SourceAIGenerated, decision.Source)
	assert.Equal(t, 0.61, decision.Confidence)
	assert.True(t, decision.NeedsHumanReview)
	assert.Contains(t, chat.lastSystem, "Q: When do doors open?\nA: 9am.")
	assert.Contains(t, chat.lastSystem, "Q: Is re-entry allowed?\nA: Yes.")
}

func TestZeroMatchesGeneratesWithZeroConfidence(t *testing.T) {
	chat := &fakeChat{reply: "best effort answer"}
	router := NewRouter(chat, &fakeRetriever{}, 0.75, false)

	decision := router.Answer(context.Background(), "Anything planned for kids?", "evt_1")

	require.NotNil(t, decision.Answer)
	assert.Equal(t, domain.SourceAIGenerated, decision.Source)
	assert.Equal(t, 0.0, decision.Confidence)
	assert.True(t, decision.NeedsHumanReview)
	assert.NotContains(t, chat.lastSystem, "Context from previous similar questions")
}

func TestGenerationFailureYieldsErrorDecision(t *testing.T) {
	chat := &fakeChat{err: errors.New("model unavailable")}
	router := NewRouter(chat, &fakeRetriever{}, 0.75, false)

	decision := router.Answer(context.Background(), "q", "evt_1")

	assert.Nil(t, decision.Answer)
	assert.Equal(t, 0.0, decision.Confidence)
	assert.Equal(t, domain.SourceError, decision.Source)
	assert.True(t, decision.NeedsHumanReview)
	assert.Contains(t, decision.ErrorMessage, "model unavailable")
}

func TestAlwaysAutoAnswerSuppressesReview(t *testing.T) {
	chat := &fakeChat{reply: "auto answer"}
	router := NewRouter(chat, &fakeRetriever{}, 0.75, true)

	decision := router.Answer(context.Background(), "q", "evt_1")

	require.NotNil(t, decision.Answer)
	assert.False(t, decision.NeedsHumanReview)
	assert.Equal(t, domain.SourceAIGenerated, decision.Source)
}

func TestContextBlockBoundsMatches(t *testing.T) {
	matches := []*domain.QAMatch{
		match("a", "1", 0.7), match("b", "2", 0.6),
		match("c", "3", 0.5), match("d", "4", 0.4),
	}

	block := contextBlock(matches)

	assert.Contains(t, block, "Q: c")
	assert.NotContains(t, block, "Q: d")
}
