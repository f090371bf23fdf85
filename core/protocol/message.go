package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the six message kinds of the bridge protocol.
type Kind string

const (
	KindHandshakeRequest  Kind = "handshake_request"
	KindHandshakeResponse Kind = "handshake_response"
	KindRequest           Kind = "request"
	KindResponse          Kind = "response"
	KindNotification      Kind = "notification"
	KindError             Kind = "error"
)

// Valid reports whether k is one of the six protocol kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindHandshakeRequest, KindHandshakeResponse, KindRequest,
		KindResponse, KindNotification, KindError:
		return true
	}
	return false
}

// Priority affects local scheduling order only, never correctness.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is one of the four priority levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Envelope is the common wire format shared by every message. An empty
// ReceiverID means broadcast to all known peers. CorrelationID links a
// response or handshake_response back to the message_id it answers.
//
// Envelopes are constructed once via the New* factory functions and never
// mutated afterwards.
type Envelope struct {
	MessageID     string    `json:"message_id"`
	Kind          Kind      `json:"kind"`
	SenderID      string    `json:"sender_id"`
	ReceiverID    string    `json:"receiver_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Priority      Priority  `json:"priority"`
	Payload       Payload   `json:"payload"`
}

// Broadcast reports whether the envelope targets all known peers.
func (e *Envelope) Broadcast() bool {
	return e.ReceiverID == ""
}

func (e *Envelope) String() string {
	return fmt.Sprintf(
		"Envelope{ID: %s, Kind: %s, Sender: %s, Receiver: %s, Correlation: %s}",
		e.MessageID, e.Kind, e.SenderID, e.ReceiverID, e.CorrelationID,
	)
}

// envelopeWire mirrors Envelope with the payload held raw so the concrete
// payload type can be selected from the kind after the envelope fields decode.
type envelopeWire struct {
	MessageID     string          `json:"message_id"`
	Kind          Kind            `json:"kind"`
	SenderID      string          `json:"sender_id"`
	ReceiverID    string          `json:"receiver_id,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Priority      Priority        `json:"priority,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// UnmarshalJSON decodes an envelope, selecting the payload variant from the
// declared kind. Unknown envelope fields are ignored; a missing priority
// defaults to normal. An unknown kind leaves Payload nil so the validator can
// report it as a schema violation instead of a decode failure.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var wire envelopeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	e.MessageID = wire.MessageID
	e.Kind = wire.Kind
	e.SenderID = wire.SenderID
	e.ReceiverID = wire.ReceiverID
	e.Timestamp = wire.Timestamp
	e.CorrelationID = wire.CorrelationID
	e.Priority = wire.Priority
	if e.Priority == "" {
		e.Priority = PriorityNormal
	}

	if len(wire.Payload) == 0 || !wire.Kind.Valid() {
		e.Payload = nil
		return nil
	}

	payload, err := decodePayload(wire.Kind, wire.Payload)
	if err != nil {
		return fmt.Errorf("payload for kind %s: %w", wire.Kind, err)
	}
	e.Payload = payload
	return nil
}

// Decode parses a raw wire message into an Envelope. The returned envelope
// may still fail validation; Decode only rejects input that is not a JSON
// object at all.
func Decode(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return &e, nil
}

// Encode serializes the envelope for transport.
func Encode(e *Envelope) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return data, nil
}

func decodePayload(kind Kind, raw json.RawMessage) (Payload, error) {
	switch kind {
	case KindHandshakeRequest:
		var p AgentCapabilities
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case KindHandshakeResponse:
		var p HandshakeAck
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case KindRequest:
		var p ToolRequest
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case KindResponse:
		var p ToolResponse
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case KindNotification:
		var p NotificationPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case KindError:
		var p ErrorDetails
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown kind %q", kind)
}

// newMessageID returns a UUIDv7, giving globally unique, time-sortable IDs.
func newMessageID() string {
	return uuid.Must(uuid.NewV7()).String()
}
