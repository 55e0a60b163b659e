package protocol

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Envelope is the framing for every websocket message, in both directions.
// Body is type-switched on Type via DecodeBody.
type Envelope struct {
	EventID string      `msgpack:"eventId,omitempty" json:"eventId,omitempty"`
	Type    MessageType `msgpack:"type" json:"type"`
	Body    any         `msgpack:"body" json:"body"`
}

func NewEnvelope(eventID string, msgType MessageType, body any) *Envelope {
	return &Envelope{
		EventID: eventID,
		Type:    msgType,
		Body:    body,
	}
}

func (e *Envelope) Encode() ([]byte, error) {
	data, err := msgpack.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return data, nil
}

func DecodeEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return &e, nil
}

func DecodeBody[T any](e *Envelope) (*T, error) {
	if typed, ok := e.Body.(T); ok {
		return &typed, nil
	}

	// Re-encode and decode to convert map[string]any to struct
	data, err := msgpack.Marshal(e.Body)
	if err != nil {
		return nil, fmt.Errorf("re-encode body: %w", err)
	}

	var result T
	if err := msgpack.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode body to %T: %w", result, err)
	}
	return &result, nil
}
