package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/agent-swarm/bridge/core/protocol"
)

// MemoryStore keeps capability records in a process-local map.
type MemoryStore struct {
	mu     sync.RWMutex
	agents map[string]protocol.AgentCapabilities
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{agents: make(map[string]protocol.AgentCapabilities)}
}

func (s *MemoryStore) Put(_ context.Context, caps protocol.AgentCapabilities) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[caps.AgentID] = caps
	return nil
}

func (s *MemoryStore) Get(_ context.Context, agentID string) (protocol.AgentCapabilities, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	caps, ok := s.agents[agentID]
	if !ok {
		return protocol.AgentCapabilities{}, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	return caps, nil
}

func (s *MemoryStore) Delete(_ context.Context, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.agents[agentID]; !ok {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	delete(s.agents, agentID)
	return nil
}

func (s *MemoryStore) All(_ context.Context) ([]protocol.AgentCapabilities, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]protocol.AgentCapabilities, 0, len(s.agents))
	for _, caps := range s.agents {
		all = append(all, caps)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].AgentID < all[j].AgentID })
	return all, nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents = make(map[string]protocol.AgentCapabilities)
	return nil
}
