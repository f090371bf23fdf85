// Package tools holds the local tool registry an agent exposes to its peers.
// Tool names double as the agent's advertised capability list during the
// handshake.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Handler is the function signature for tool implementations. Handlers
// receive the request context and the decoded arguments from the calling
// peer. A handler returning ErrInvalidArguments (wrapped or bare) signals a
// caller mistake rather than an execution failure.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Definition describes a tool to remote peers.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type entry struct {
	def     Definition
	handler Handler
}

// Registry maps tool names to handlers. Each agent owns one; there is no
// process-global registry because agents in the same process expose
// different tool sets.
type Registry struct {
	entries map[string]entry
	mu      sync.RWMutex
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a new tool.
// Returns ErrAlreadyExists if a tool with the same name is already registered.
// Use Replace to update an existing tool's handler.
// Thread-safe for concurrent registration.
func (r *Registry) Register(def Definition, handler Handler) error {
	if def.Name == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[def.Name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, def.Name)
	}

	r.entries[def.Name] = entry{def: def, handler: handler}
	return nil
}

// Replace updates an existing tool's definition and handler.
// Returns ErrNotFound if no tool with the given name is registered.
// Thread-safe for concurrent access.
func (r *Registry) Replace(def Definition, handler Handler) error {
	if def.Name == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[def.Name]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, def.Name)
	}

	r.entries[def.Name] = entry{def: def, handler: handler}
	return nil
}

// Get retrieves a handler by tool name.
// Returns the handler and true if found, nil and false otherwise.
// Thread-safe for concurrent access.
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.entries[name]
	if !exists {
		return nil, false
	}
	return e.handler, true
}

// Names returns the sorted names of all registered tools. This is the list
// an agent advertises in its handshake capabilities.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns the definitions of all registered tools.
// Thread-safe for concurrent access.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.entries))
	for _, e := range r.entries {
		defs = append(defs, e.def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Execute dispatches a tool call to the registered handler by name.
// Returns ErrNotFound if the tool is not registered.
// Handler errors are wrapped with the tool name for context, except
// ErrInvalidArguments which passes through for the caller to classify.
// Thread-safe for concurrent execution.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	r.mu.RLock()
	e, exists := r.entries[name]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	result, err := e.handler(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}
	return result, nil
}
