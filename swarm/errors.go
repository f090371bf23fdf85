package swarm

import (
	"errors"
	"fmt"

	"github.com/agent-swarm/bridge/core/protocol"
)

// Sentinel errors for the agent runtime.
var (
	ErrMissingAgentID    = errors.New("agent id is required")
	ErrHandshakeRejected = errors.New("handshake rejected by peer")
	ErrUnknownRegistry   = errors.New("unknown registry backend")
)

// RemoteError carries a protocol error message or failed tool response back
// to the caller as a typed Go error.
type RemoteError struct {
	Peer    string
	Code    protocol.ErrorCode
	Type    protocol.ErrorType
	Message string
	Details map[string]any
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("peer %s: %s: %s", e.Peer, e.Code, e.Message)
}
