// Package transport carries envelopes between agents. The protocol core only
// depends on the Transport interface; the in-memory implementation serves
// same-process swarms and tests, and the WebSocket implementation links
// agents across processes. Ordering and delivery reliability are the
// transport's concern, not the protocol's.
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/agent-swarm/bridge/core/protocol"
)

// ErrClosed is returned by operations on a closed transport.
var ErrClosed = errors.New("transport closed")

// Error wraps a transport-level delivery failure.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transport is the bidirectional channel boundary of the bridge. Send routes
// an envelope toward its receiver, fanning out to every known peer when the
// envelope is a broadcast. Receive blocks for the next envelope addressed to
// agentID.
type Transport interface {
	Send(ctx context.Context, msg *protocol.Envelope) error
	Receive(ctx context.Context, agentID string) (*protocol.Envelope, error)
	Close() error
}
