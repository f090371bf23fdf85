package registry

import (
	"context"
	"log/slog"
	"slices"

	"github.com/agent-swarm/bridge/core/protocol"
)

// Registry is the query layer over a capability Store. Registration is
// last-writer-wins: a re-registering agent replaces its previous record.
type Registry struct {
	store  Store
	logger *slog.Logger
}

// New creates a registry over the given store. A nil logger falls back to
// slog.Default().
func New(store Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{store: store, logger: logger}
}

// Register records an agent's capabilities, replacing any existing record
// for the same agent ID.
func (r *Registry) Register(ctx context.Context, caps protocol.AgentCapabilities) error {
	if _, err := r.store.Get(ctx, caps.AgentID); err == nil {
		r.logger.Warn("agent re-registering, replacing record",
			slog.String("agent_id", caps.AgentID),
		)
	}
	if err := r.store.Put(ctx, caps); err != nil {
		return err
	}
	r.logger.Info("agent registered",
		slog.String("agent_id", caps.AgentID),
		slog.String("role", caps.AgentRole),
		slog.Int("tools", len(caps.Tools)),
	)
	return nil
}

// Unregister removes an agent's record. Returns ErrAgentNotFound if the
// agent was never registered.
func (r *Registry) Unregister(ctx context.Context, agentID string) error {
	if err := r.store.Delete(ctx, agentID); err != nil {
		return err
	}
	r.logger.Info("agent unregistered", slog.String("agent_id", agentID))
	return nil
}

// Get returns the capabilities of the agent with the given ID.
func (r *Registry) Get(ctx context.Context, agentID string) (protocol.AgentCapabilities, error) {
	return r.store.Get(ctx, agentID)
}

// All returns every registered agent's capabilities.
func (r *Registry) All(ctx context.Context) ([]protocol.AgentCapabilities, error) {
	return r.store.All(ctx)
}

// FindByRole returns the agents whose advertised role matches role.
func (r *Registry) FindByRole(ctx context.Context, role string) ([]protocol.AgentCapabilities, error) {
	all, err := r.store.All(ctx)
	if err != nil {
		return nil, err
	}

	var matched []protocol.AgentCapabilities
	for _, caps := range all {
		if caps.AgentRole == role {
			matched = append(matched, caps)
		}
	}
	return matched, nil
}

// FindByTool returns the agents advertising the named tool.
func (r *Registry) FindByTool(ctx context.Context, tool string) ([]protocol.AgentCapabilities, error) {
	all, err := r.store.All(ctx)
	if err != nil {
		return nil, err
	}

	var matched []protocol.AgentCapabilities
	for _, caps := range all {
		if slices.Contains(caps.Tools, tool) {
			matched = append(matched, caps)
		}
	}
	return matched, nil
}

// Clear drops every record.
func (r *Registry) Clear(ctx context.Context) error {
	return r.store.Clear(ctx)
}
