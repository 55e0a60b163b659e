package domain

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnknownTool is returned when a tool name is not in the catalog.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrModelUnavailable is returned when the chat provider is unreachable
	// or rejects the request.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrEmbeddingProvider is returned when embedding generation fails.
	// Callers must not substitute a zero vector.
	ErrEmbeddingProvider = errors.New("embedding provider error")

	// ErrToolExecution is returned when a platform call behind a tool fails.
	ErrToolExecution = errors.New("tool execution error")

	// ErrConversation wraps failures of a whole conversational exchange.
	ErrConversation = errors.New("conversation processing error")
)
