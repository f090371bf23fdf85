// Package handshake tracks the capability-exchange state between this agent
// and each of its peers. A pair of agents must reach an established session
// before any non-handshake traffic is accepted between them.
package handshake

import "time"

// State is the lifecycle position of a per-peer handshake session.
type State string

const (
	StateUninitiated State = "uninitiated"
	StatePending     State = "pending"
	StateEstablished State = "established"
	StateRejected    State = "rejected"
	StateExpired     State = "expired"
)

// Session is a snapshot of one peer's handshake state. RequestID is the
// message_id of the outstanding handshake_request while pending; the peer's
// advertised capabilities are retained only while established.
type Session struct {
	Peer      string
	State     State
	RequestID string
	StartedAt time.Time
	Deadline  time.Time
}
