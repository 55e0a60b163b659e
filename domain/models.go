package domain

import "time"

// Message statuses. A question starts pending, becomes answered when the AI
// or an organizer responds, or escalated when the AI declines to answer.
const (
	MessageStatusPending   = "pending"
	MessageStatusAnswered  = "answered"
	MessageStatusEscalated = "escalated"
)

// Question visibility. General questions (and their answers) are broadcast to
// the whole event; personalized questions stay between the asker and the
// organizers.
const (
	QuestionTypeGeneral      = "general"
	QuestionTypePersonalized = "personalized"
)

// Answer provenance recorded on a message.
const (
	ResponseSourcePending   = "pending"
	ResponseSourceAI        = "ai"
	ResponseSourceOrganizer = "organizer"
)

// Message is one attendee question in the moderated event Q&A channel.
type Message struct {
	ID                 string     `json:"id"`
	EventID            string     `json:"eventId"`
	UserID             string     `json:"userId"`
	UserName           string     `json:"userName"`
	UserEmail          string     `json:"userEmail,omitempty"`
	Question           string     `json:"question"`
	Answer             *string    `json:"answer,omitempty"`
	QuestionType       string     `json:"questionType"`
	ResponseSource     string     `json:"responseSource"`
	AIConfidence       *float64   `json:"aiConfidence,omitempty"`
	Status             string     `json:"status"`
	AnsweredBy         *string    `json:"answeredBy,omitempty"`
	AnsweredAt         *time.Time `json:"answeredAt,omitempty"`
	SavedToVectorCache bool       `json:"savedToVectorCache"`
	VectorCacheID      *string    `json:"vectorCacheId,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

// QAPair is a question/answer pair persisted to the vector cache.
type QAPair struct {
	ID        string
	EventID   string
	MessageID *string
	Question  string
	Answer    string
	Embedding []float32
	CreatedAt time.Time
}

// QAMatch is one retrieval hit for a question, ordered by similarity.
type QAMatch struct {
	Question   string  `json:"question"`
	Answer     string  `json:"answer"`
	Similarity float64 `json:"similarity"`
}

// Confidence decision sources.
const (
	SourceVectorCache = "vector_cache"
	SourceAIGenerated = "ai_generated"
	SourceError       = "error"
)

// ConfidenceDecision is the output of the Q&A confidence router. Answer is
// nil only when Source is "error"; the router always produces a decision
// rather than an error so the chat layer always has something to act on.
type ConfidenceDecision struct {
	Answer           *string `json:"answer"`
	Confidence       float64 `json:"confidence"`
	Source           string  `json:"source"`
	NeedsHumanReview bool    `json:"needsHumanReview"`
	ErrorMessage     string  `json:"errorMessage,omitempty"`
}
