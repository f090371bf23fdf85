package registry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/agent-swarm/bridge/core/protocol"
	"github.com/agent-swarm/bridge/registry"
)

func caps(id, role string, tools ...string) protocol.AgentCapabilities {
	return protocol.AgentCapabilities{
		AgentID:   id,
		AgentName: "Agent " + id,
		AgentRole: role,
		Tools:     tools,
		Version:   "1.0.0",
	}
}

func newRegistry() *registry.Registry {
	return registry.New(registry.NewMemoryStore(), nil)
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()

	if err := r.Register(ctx, caps("agent-a", "worker", "echo")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, err := r.Get(ctx, "agent-a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.AgentRole != "worker" {
		t.Errorf("AgentRole = %q, want %q", got.AgentRole, "worker")
	}
}

func TestRegistry_GetNotFound(t *testing.T) {
	r := newRegistry()

	_, err := r.Get(context.Background(), "agent-z")
	if !errors.Is(err, registry.ErrAgentNotFound) {
		t.Errorf("Get() error = %v, want %v", err, registry.ErrAgentNotFound)
	}
}

func TestRegistry_ReregisterReplaces(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()

	if err := r.Register(ctx, caps("agent-a", "worker", "echo")); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	if err := r.Register(ctx, caps("agent-a", "planner", "plan")); err != nil {
		t.Fatalf("second Register() error = %v", err)
	}

	got, err := r.Get(ctx, "agent-a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.AgentRole != "planner" {
		t.Errorf("AgentRole = %q, want %q (last registration wins)", got.AgentRole, "planner")
	}

	all, err := r.All(ctx)
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(all) != 1 {
		t.Errorf("All() returned %d records, want 1", len(all))
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()

	if err := r.Register(ctx, caps("agent-a", "worker")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Unregister(ctx, "agent-a"); err != nil {
		t.Fatalf("Unregister() error = %v", err)
	}

	if _, err := r.Get(ctx, "agent-a"); !errors.Is(err, registry.ErrAgentNotFound) {
		t.Errorf("Get() after Unregister() error = %v, want %v", err, registry.ErrAgentNotFound)
	}
}

func TestRegistry_UnregisterNotFound(t *testing.T) {
	r := newRegistry()

	err := r.Unregister(context.Background(), "agent-z")
	if !errors.Is(err, registry.ErrAgentNotFound) {
		t.Errorf("Unregister() error = %v, want %v", err, registry.ErrAgentNotFound)
	}
}

func TestRegistry_AllSortedByID(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()

	for _, id := range []string{"agent-c", "agent-a", "agent-b"} {
		if err := r.Register(ctx, caps(id, "worker")); err != nil {
			t.Fatalf("Register(%s) error = %v", id, err)
		}
	}

	all, err := r.All(ctx)
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	want := []string{"agent-a", "agent-b", "agent-c"}
	for i, caps := range all {
		if caps.AgentID != want[i] {
			t.Errorf("All()[%d].AgentID = %q, want %q", i, caps.AgentID, want[i])
		}
	}
}

func TestRegistry_FindByRole(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()

	r.Register(ctx, caps("agent-a", "worker", "echo"))
	r.Register(ctx, caps("agent-b", "planner", "plan"))
	r.Register(ctx, caps("agent-c", "worker", "fetch"))

	workers, err := r.FindByRole(ctx, "worker")
	if err != nil {
		t.Fatalf("FindByRole() error = %v", err)
	}
	if len(workers) != 2 {
		t.Fatalf("FindByRole(worker) returned %d agents, want 2", len(workers))
	}

	none, err := r.FindByRole(ctx, "reviewer")
	if err != nil {
		t.Fatalf("FindByRole() error = %v", err)
	}
	if len(none) != 0 {
		t.Errorf("FindByRole(reviewer) returned %d agents, want 0", len(none))
	}
}

func TestRegistry_FindByTool(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()

	r.Register(ctx, caps("agent-a", "worker", "echo", "fetch"))
	r.Register(ctx, caps("agent-b", "worker", "plan"))

	matched, err := r.FindByTool(ctx, "fetch")
	if err != nil {
		t.Fatalf("FindByTool() error = %v", err)
	}
	if len(matched) != 1 || matched[0].AgentID != "agent-a" {
		t.Errorf("FindByTool(fetch) = %v, want [agent-a]", matched)
	}
}

func TestRegistry_Clear(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()

	r.Register(ctx, caps("agent-a", "worker"))
	r.Register(ctx, caps("agent-b", "worker"))

	if err := r.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	all, err := r.All(ctx)
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(all) != 0 {
		t.Errorf("All() after Clear() returned %d records, want 0", len(all))
	}
}
