// Package swarm composes the protocol core, handshake table, correlation
// tracker, dispatcher, and transport into a runnable agent. An Agent
// initializes from configuration via New; functional options override any
// subsystem, which is how multiple agents in one process share a transport.
//
//	a, err := swarm.New(&cfg, swarm.WithTransport(tr))
//	go a.Run(ctx)
//	caps, err := a.Connect(ctx, "peer-id")
//	result, err := a.CallTool(ctx, "peer-id", "echo", args, "")
package swarm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/agent-swarm/bridge/core/protocol"
	"github.com/agent-swarm/bridge/correlate"
	"github.com/agent-swarm/bridge/dispatch"
	"github.com/agent-swarm/bridge/handshake"
	"github.com/agent-swarm/bridge/observability"
	"github.com/agent-swarm/bridge/registry"
	"github.com/agent-swarm/bridge/tools"
	"github.com/agent-swarm/bridge/transport"
)

// Option configures an Agent after config-driven initialization.
type Option func(*Agent)

// WithTransport overrides the config-created transport. The agent does not
// close a transport supplied this way.
func WithTransport(t transport.Transport) Option {
	return func(a *Agent) {
		a.transport = t
		a.ownsTransport = false
	}
}

// WithToolRegistry overrides the agent's empty tool registry.
func WithToolRegistry(r *tools.Registry) Option {
	return func(a *Agent) { a.tools = r }
}

// WithRegistry overrides the config-created capability registry.
func WithRegistry(r *registry.Registry) Option {
	return func(a *Agent) { a.registry = r }
}

// WithObserver overrides the config-selected observer.
func WithObserver(o observability.Observer) Option {
	return func(a *Agent) { a.observer = o }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

// WithAcceptPolicy overrides the accept-all handshake policy.
func WithAcceptPolicy(p dispatch.AcceptPolicy) Option {
	return func(a *Agent) { a.accept = p }
}

// Agent is a running participant in the swarm: it owns one ID on the
// transport, answers inbound traffic through its dispatcher, and exposes
// outbound operations for connecting to peers, calling their tools, and
// publishing notifications.
type Agent struct {
	id   string
	name string
	role string
	ver  string

	transport     transport.Transport
	ownsTransport bool
	tools         *tools.Registry
	table         *handshake.Table
	tracker       *correlate.Tracker
	registry      *registry.Registry
	dispatcher    *dispatch.Dispatcher
	accept        dispatch.AcceptPolicy
	observer      observability.Observer
	logger        *slog.Logger

	handshakeTimeout time.Duration
	requestTimeout   time.Duration
}

// New creates an Agent from configuration. Functional options applied after
// initialization can override any subsystem.
func New(cfg *Config, opts ...Option) (*Agent, error) {
	if cfg.Agent.ID == "" {
		return nil, ErrMissingAgentID
	}

	observer, err := observability.GetObserver(cfg.Observer)
	if err != nil {
		return nil, err
	}

	a := &Agent{
		id:               cfg.Agent.ID,
		name:             cfg.Agent.Name,
		role:             cfg.Agent.Role,
		ver:              cfg.Agent.Version,
		tools:            tools.NewRegistry(),
		observer:         observer,
		logger:           slog.Default(),
		handshakeTimeout: time.Duration(cfg.HandshakeTimeout) * time.Second,
		requestTimeout:   time.Duration(cfg.RequestTimeout) * time.Second,
	}

	store, err := newStore(&cfg.Registry)
	if err != nil {
		return nil, err
	}
	a.registry = registry.New(store, a.logger)

	for _, opt := range opts {
		opt(a)
	}

	if a.transport == nil {
		a.transport = transport.NewInMemory(a.logger)
		a.ownsTransport = true
	}

	a.table = handshake.NewTable(a.handshakeTimeout, a.logger)
	a.tracker = correlate.NewTracker(a.requestTimeout, a.logger)
	a.dispatcher = dispatch.New(dispatch.Config{
		LocalID:      a.id,
		Capabilities: a.Capabilities,
		Accept:       a.accept,
		Table:        a.table,
		Tracker:      a.tracker,
		Executor:     a.tools,
		Transport:    a.transport,
		Registry:     a.registry,
		Observer:     a.observer,
		Logger:       a.logger,
	})

	return a, nil
}

func newStore(cfg *RegistryConfig) (registry.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return registry.NewMemoryStore(), nil
	case "redis":
		return registry.NewRedisStore(cfg.Addr, time.Duration(cfg.TTL)*time.Second), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownRegistry, cfg.Backend)
}

// Capabilities returns the agent's current capability advertisement. The
// tool list reflects the live tool registry at call time.
func (a *Agent) Capabilities() protocol.AgentCapabilities {
	return protocol.AgentCapabilities{
		AgentID:   a.id,
		AgentName: a.name,
		AgentRole: a.role,
		Tools:     a.tools.Names(),
		Version:   a.ver,
	}
}

// ID returns the agent's identity on the transport.
func (a *Agent) ID() string { return a.id }

// Tools returns the agent's local tool registry.
func (a *Agent) Tools() *tools.Registry { return a.tools }

// Registry returns the agent's capability registry of known peers.
func (a *Agent) Registry() *registry.Registry { return a.registry }

// Peers returns the IDs of peers with an established session.
func (a *Agent) Peers() []string { return a.table.Peers() }

// Session returns the handshake session snapshot for peer.
func (a *Agent) Session(peer string) handshake.Session { return a.table.Snapshot(peer) }

// Subscribe registers a handler for inbound notifications. An empty
// eventType subscribes to every notification.
func (a *Agent) Subscribe(eventType string, handler dispatch.NotificationHandler) {
	a.dispatcher.Subscribe(eventType, handler)
}

// Run drives the receive loop until ctx is cancelled or the transport
// closes. Dispatch failures are logged and do not stop the loop.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("agent running",
		slog.String("agent_id", a.id),
		slog.String("role", a.role),
	)

	for {
		msg, err := a.transport.Receive(ctx, a.id)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, transport.ErrClosed) {
				a.logger.Info("agent stopped", slog.String("agent_id", a.id))
				return nil
			}
			return fmt.Errorf("receive failed: %w", err)
		}

		if err := a.dispatcher.Dispatch(ctx, msg); err != nil {
			a.logger.Warn("dispatch failed",
				slog.String("message_id", msg.MessageID),
				slog.String("kind", string(msg.Kind)),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Connect performs a handshake with peerID and returns the peer's
// capabilities. A rejected handshake returns ErrHandshakeRejected; an
// unanswered one returns correlate.ErrTimeout after the handshake timeout.
// Reconnecting an established peer restarts the session.
func (a *Agent) Connect(ctx context.Context, peerID string) (protocol.AgentCapabilities, error) {
	req, err := protocol.NewHandshakeRequest(a.id, a.Capabilities(), peerID)
	if err != nil {
		return protocol.AgentCapabilities{}, err
	}

	ch, err := a.tracker.Track(req.MessageID, a.handshakeTimeout)
	if err != nil {
		return protocol.AgentCapabilities{}, err
	}
	a.table.Begin(peerID, req.MessageID)

	if err := a.transport.Send(ctx, req); err != nil {
		a.tracker.Cancel(req.MessageID)
		return protocol.AgentCapabilities{}, err
	}

	reply, err := a.tracker.Wait(ctx, req.MessageID, ch)
	if err != nil {
		return protocol.AgentCapabilities{}, fmt.Errorf("handshake with %s: %w", peerID, err)
	}

	switch payload := reply.Payload.(type) {
	case protocol.HandshakeAck:
		if !payload.Accepted {
			return protocol.AgentCapabilities{}, fmt.Errorf("%w: %s", ErrHandshakeRejected, peerID)
		}
		return payload.AgentCapabilities, nil
	case protocol.ErrorDetails:
		return protocol.AgentCapabilities{}, remoteError(reply.SenderID, payload)
	}
	return protocol.AgentCapabilities{}, fmt.Errorf("unexpected %s reply to handshake with %s", reply.Kind, peerID)
}

// CallTool invokes a tool on an established peer and blocks for the result.
// An empty priority defaults to normal. Remote failures come back as
// *RemoteError; a missing reply returns correlate.ErrTimeout.
func (a *Agent) CallTool(ctx context.Context, peerID, tool string, args map[string]any, priority protocol.Priority) (any, error) {
	if err := a.table.Gate(peerID); err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", tool, peerID, err)
	}

	req, err := protocol.NewRequest(a.id, peerID, protocol.ToolRequest{
		ToolName:  tool,
		Arguments: args,
		Timeout:   int(a.requestTimeout / time.Second),
	}, priority)
	if err != nil {
		return nil, err
	}

	ch, err := a.tracker.Track(req.MessageID, a.requestTimeout)
	if err != nil {
		return nil, err
	}
	if err := a.transport.Send(ctx, req); err != nil {
		a.tracker.Cancel(req.MessageID)
		return nil, err
	}

	reply, err := a.tracker.Wait(ctx, req.MessageID, ch)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", tool, peerID, err)
	}

	switch payload := reply.Payload.(type) {
	case protocol.ToolResponse:
		if !payload.Success {
			return nil, &RemoteError{
				Peer:    reply.SenderID,
				Code:    protocol.CodeExecutionFailed,
				Type:    protocol.ErrorTypeExecution,
				Message: payload.Error,
			}
		}
		return payload.Result, nil
	case protocol.ErrorDetails:
		return nil, remoteError(reply.SenderID, payload)
	}
	return nil, fmt.Errorf("unexpected %s reply to %s call", reply.Kind, tool)
}

// Notify publishes a fire-and-forget notification. An empty peerID
// broadcasts to every agent on the transport.
func (a *Agent) Notify(ctx context.Context, peerID, eventType string, data map[string]any) error {
	note, err := protocol.NewNotification(a.id, protocol.NotificationPayload{
		EventType: eventType,
		Data:      data,
	}, peerID)
	if err != nil {
		return err
	}
	return a.transport.Send(ctx, note)
}

// Close cancels pending requests and releases owned resources. A transport
// injected with WithTransport stays open for its other users.
func (a *Agent) Close() error {
	a.tracker.Close()
	if a.ownsTransport {
		return a.transport.Close()
	}
	return nil
}

func remoteError(peer string, details protocol.ErrorDetails) *RemoteError {
	return &RemoteError{
		Peer:    peer,
		Code:    details.Code,
		Type:    details.Type,
		Message: details.Message,
		Details: details.Details,
	}
}
