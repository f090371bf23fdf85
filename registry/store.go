// Package registry tracks the capabilities of known agents. Agents land here
// after a successful handshake; lookups answer "who can run this tool" and
// "who plays this role" questions for routing decisions.
package registry

import (
	"context"
	"errors"

	"github.com/agent-swarm/bridge/core/protocol"
)

// ErrAgentNotFound is returned when no agent with the given ID is registered.
var ErrAgentNotFound = errors.New("agent not found")

// Store persists agent capability records. Implementations must be safe for
// concurrent use.
type Store interface {
	Put(ctx context.Context, caps protocol.AgentCapabilities) error
	Get(ctx context.Context, agentID string) (protocol.AgentCapabilities, error)
	Delete(ctx context.Context, agentID string) error
	All(ctx context.Context) ([]protocol.AgentCapabilities, error)
	Clear(ctx context.Context) error
}
