package protocol

import (
	"fmt"
	"time"
)

// The factory functions below are the only sanctioned way to construct
// envelopes. Each one fills in identity and correlation fields per the
// protocol rules and runs the result through a strict validator before
// returning it. A factory producing an invalid message is a defect here,
// not a caller error, so validation failures are wrapped rather than
// returned raw.

func newEnvelope(kind Kind, senderID, receiverID string, payload Payload) *Envelope {
	return &Envelope{
		MessageID:  newMessageID(),
		Kind:       kind,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Timestamp:  time.Now().UTC(),
		Priority:   PriorityNormal,
		Payload:    payload,
	}
}

func checked(e *Envelope) (*Envelope, error) {
	if err := NewValidator(true).Validate(e); err != nil {
		return nil, fmt.Errorf("factory produced invalid %s: %w", e.Kind, err)
	}
	return e, nil
}

// NewHandshakeRequest creates a handshake_request advertising the sender's
// capabilities. An empty receiverID makes it a broadcast discovery probe.
// The correlation ID is always empty: the request itself is the anchor its
// handshake_response will correlate against.
func NewHandshakeRequest(senderID string, caps AgentCapabilities, receiverID string) (*Envelope, error) {
	return checked(newEnvelope(KindHandshakeRequest, senderID, receiverID, caps))
}

// NewHandshakeResponse creates a handshake_response answering the
// handshake_request identified by correlationID.
func NewHandshakeResponse(senderID, receiverID, correlationID string, caps AgentCapabilities, accepted bool) (*Envelope, error) {
	e := newEnvelope(KindHandshakeResponse, senderID, receiverID, HandshakeAck{
		AgentCapabilities: caps,
		Accepted:          accepted,
	})
	e.CorrelationID = correlationID
	return checked(e)
}

// NewRequest creates a tool invocation request. The receiver is required;
// requests are never broadcast. An empty priority defaults to normal.
func NewRequest(senderID, receiverID string, req ToolRequest, priority Priority) (*Envelope, error) {
	e := newEnvelope(KindRequest, senderID, receiverID, req)
	if priority != "" {
		e.Priority = priority
	}
	return checked(e)
}

// NewResponse creates a response answering the request identified by
// correlationID.
func NewResponse(senderID, receiverID, correlationID string, resp ToolResponse) (*Envelope, error) {
	e := newEnvelope(KindResponse, senderID, receiverID, resp)
	e.CorrelationID = correlationID
	return checked(e)
}

// NewNotification creates a fire-and-forget notification. An empty
// receiverID broadcasts to all known peers.
func NewNotification(senderID string, note NotificationPayload, receiverID string) (*Envelope, error) {
	return checked(newEnvelope(KindNotification, senderID, receiverID, note))
}

// NewError creates an error message. correlationID may be empty when the
// error does not answer a specific request.
func NewError(senderID, receiverID string, details ErrorDetails, correlationID string) (*Envelope, error) {
	e := newEnvelope(KindError, senderID, receiverID, details)
	e.CorrelationID = correlationID
	return checked(e)
}
