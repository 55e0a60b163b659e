// Package qa routes attendee questions between the cached-answer store and
// fresh model generation based on retrieval confidence.
package qa

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/confera/confera/domain"
	"github.com/confera/confera/llm"
	"github.com/confera/confera/metrics"
)

// ChatClient is the slice of the model client the router needs.
type ChatClient interface {
	Chat(ctx context.Context, messages []llm.Message, tools []llm.Tool) (*llm.Response, error)
}

// Retriever finds cached answers similar to a question. Failures degrade to
// an empty result.
type Retriever interface {
	FindSimilar(ctx context.Context, question, eventID string) []*domain.QAMatch
}

// contextMatches bounds how many retrieval hits feed the generation prompt.
const contextMatches = 3

const answerSystemPrompt = `You are a helpful AI assistant for an event Q&A system.
Answer questions clearly and concisely based on the context provided.
If you're not confident about the answer, say so.`

// Router decides how each question is answered: served from the vector
// cache when the best match clears the confidence threshold, generated by
// the model otherwise.
type Router struct {
	chat      ChatClient
	retriever Retriever
	threshold float64

	// alwaysAutoAnswer sends every generated answer to the attendee
	// directly instead of flagging low-confidence ones for review.
	alwaysAutoAnswer bool
}

// NewRouter builds a Router. Threshold is the minimum similarity at which a
// cached answer short-circuits generation.
func NewRouter(chat ChatClient, retriever Retriever, threshold float64, alwaysAutoAnswer bool) *Router {
	return &Router{
		chat:             chat,
		retriever:        retriever,
		threshold:        threshold,
		alwaysAutoAnswer: alwaysAutoAnswer,
	}
}

// Answer produces a decision for the question. It never returns an error:
// any failure is folded into a decision with source "error" so the caller
// always has something to act on, answer or escalate.
func (r *Router) Answer(ctx context.Context, question, eventID string) domain.ConfidenceDecision {
	matches := r.retriever.FindSimilar(ctx, question, eventID)

	if len(matches) > 0 && matches[0].Similarity >= r.threshold {
		metrics.QADecisions.WithLabelValues(domain.SourceVectorCache).Inc()
		answer := matches[0].Answer
		return domain.ConfidenceDecision{
			Answer:           &answer,
			Confidence:       matches[0].Similarity,
			Source:           domain.SourceVectorCache,
			NeedsHumanReview: false,
		}
	}

	generated, err := r.generate(ctx, question, matches)
	if err != nil {
		slog.Error("qa: answer generation failed", "event", eventID, "error", err)
		metrics.QADecisions.WithLabelValues(domain.SourceError).Inc()
		return domain.ConfidenceDecision{
			Answer:           nil,
			Confidence:       0,
			Source:           domain.SourceError,
			NeedsHumanReview: true,
			ErrorMessage:     err.Error(),
		}
	}

	confidence := 0.0
	if len(matches) > 0 {
		confidence = matches[0].Similarity
	}
	needsReview := confidence < r.threshold
	if r.alwaysAutoAnswer {
		needsReview = false
	}

	metrics.QADecisions.WithLabelValues(domain.SourceAIGenerated).Inc()
	return domain.ConfidenceDecision{
		Answer:           &generated,
		Confidence:       confidence,
		Source:           domain.SourceAIGenerated,
		NeedsHumanReview: needsReview,
	}
}

func (r *Router) generate(ctx context.Context, question string, matches []*domain.QAMatch) (string, error) {
	system := answerSystemPrompt
	if block := contextBlock(matches); block != "" {
		system += "\n\nContext from previous similar questions:\n" + block
	}

	resp, err := r.chat.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: question},
	}, nil)
	if err != nil {
		return "", err
	}
	if resp.Content == "" {
		return "", fmt.Errorf("model returned an empty answer")
	}
	return resp.Content, nil
}

// contextBlock renders up to contextMatches retrieval hits as Q/A pairs for
// the generation prompt.
func contextBlock(matches []*domain.QAMatch) string {
	if len(matches) == 0 {
		return ""
	}
	if len(matches) > contextMatches {
		matches = matches[:contextMatches]
	}
	blocks := make([]string, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, fmt.Sprintf("Q: %s\nA: %s", m.Question, m.Answer))
	}
	return strings.Join(blocks, "\n\n")
}
