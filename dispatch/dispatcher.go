// Package dispatch routes inbound envelopes to the right subsystem: the
// handshake table, the correlation tracker, the local tool executor, or
// notification subscribers. It owns the reply traffic those routes produce,
// including protocol error messages sent back to misbehaving peers.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/agent-swarm/bridge/core/protocol"
	"github.com/agent-swarm/bridge/correlate"
	"github.com/agent-swarm/bridge/handshake"
	"github.com/agent-swarm/bridge/observability"
	"github.com/agent-swarm/bridge/registry"
	"github.com/agent-swarm/bridge/tools"
	"github.com/agent-swarm/bridge/transport"
)

// ToolExecutor runs a named tool with decoded arguments. *tools.Registry
// satisfies this.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args map[string]any) (any, error)
}

// NotificationHandler receives notifications that passed the handshake gate.
type NotificationHandler func(ctx context.Context, sender string, note protocol.NotificationPayload)

// AcceptPolicy decides whether an inbound handshake_request is accepted.
type AcceptPolicy func(caps protocol.AgentCapabilities) bool

// Config wires a Dispatcher's collaborators. LocalID, Capabilities, Table,
// Tracker, and Transport are required; the rest have working defaults.
type Config struct {
	LocalID      string
	Capabilities func() protocol.AgentCapabilities
	Accept       AcceptPolicy
	Table        *handshake.Table
	Tracker      *correlate.Tracker
	Executor     ToolExecutor
	Transport    transport.Transport
	Registry     *registry.Registry
	Observer     observability.Observer
	Logger       *slog.Logger
}

type subscription struct {
	eventType string // "" matches every notification
	handler   NotificationHandler
}

// Dispatcher routes one agent's inbound traffic. It is safe for concurrent
// use, though a single receive loop driving Dispatch is the normal shape.
type Dispatcher struct {
	localID   string
	caps      func() protocol.AgentCapabilities
	accept    AcceptPolicy
	validator *protocol.Validator
	table     *handshake.Table
	tracker   *correlate.Tracker
	executor  ToolExecutor
	transport transport.Transport
	registry  *registry.Registry
	observer  observability.Observer
	logger    *slog.Logger

	mu   sync.RWMutex
	subs []subscription
}

// New creates a Dispatcher from cfg.
func New(cfg Config) *Dispatcher {
	if cfg.Accept == nil {
		cfg.Accept = func(protocol.AgentCapabilities) bool { return true }
	}
	if cfg.Observer == nil {
		cfg.Observer = observability.NoOpObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Dispatcher{
		localID:   cfg.LocalID,
		caps:      cfg.Capabilities,
		accept:    cfg.Accept,
		validator: protocol.NewValidator(false),
		table:     cfg.Table,
		tracker:   cfg.Tracker,
		executor:  cfg.Executor,
		transport: cfg.Transport,
		registry:  cfg.Registry,
		observer:  cfg.Observer,
		logger:    cfg.Logger,
	}
}

// Subscribe registers a handler for inbound notifications. An empty
// eventType subscribes to every notification.
func (d *Dispatcher) Subscribe(eventType string, handler NotificationHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs = append(d.subs, subscription{eventType: eventType, handler: handler})
}

// Dispatch routes a single inbound envelope. Replies and protocol errors go
// back over the transport; the returned error covers only local failures
// (send errors, unroutable input), never remote misbehavior.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *protocol.Envelope) error {
	if err := d.validator.Validate(msg); err != nil {
		return d.rejectInvalid(ctx, msg, err)
	}

	switch msg.Kind {
	case protocol.KindHandshakeRequest:
		return d.handleHandshakeRequest(ctx, msg)
	case protocol.KindHandshakeResponse:
		return d.handleHandshakeResponse(ctx, msg)
	case protocol.KindRequest:
		return d.handleRequest(ctx, msg)
	case protocol.KindResponse:
		d.resolveReply(ctx, msg)
		return nil
	case protocol.KindNotification:
		return d.handleNotification(ctx, msg)
	case protocol.KindError:
		d.handleError(ctx, msg)
		return nil
	}
	// Unreachable after validation; the kind set is closed.
	return nil
}

// rejectInvalid answers an invalid inbound envelope with a validation error
// message when the sender can be identified, and drops it otherwise. Invalid
// error-kind messages are always dropped so two broken peers cannot bounce
// errors at each other forever.
func (d *Dispatcher) rejectInvalid(ctx context.Context, msg *protocol.Envelope, verr error) error {
	d.logger.Warn("dropping invalid envelope",
		slog.String("sender_id", msg.SenderID),
		slog.String("kind", string(msg.Kind)),
		slog.String("error", verr.Error()),
	)
	d.emit(ctx, EventDropped, observability.LevelWarning, map[string]any{
		"sender_id": msg.SenderID,
		"kind":      string(msg.Kind),
		"reason":    verr.Error(),
	})

	if msg.Kind == protocol.KindError || msg.SenderID == "" || msg.MessageID == "" {
		return nil
	}
	return d.sendError(ctx, msg.SenderID, msg.MessageID, protocol.ErrorDetails{
		Code:    protocol.CodeInvalidArguments,
		Message: verr.Error(),
		Type:    protocol.ErrorTypeValidation,
	})
}

func (d *Dispatcher) handleHandshakeRequest(ctx context.Context, msg *protocol.Envelope) error {
	peerCaps, ok := msg.Payload.(protocol.AgentCapabilities)
	if !ok {
		return nil
	}

	accepted := d.accept(peerCaps)
	d.emit(ctx, EventHandshakeRequest, observability.LevelInfo, map[string]any{
		"peer":     msg.SenderID,
		"accepted": accepted,
	})

	if accepted {
		d.table.Establish(msg.SenderID, peerCaps)
		d.registerPeer(ctx, peerCaps)
		d.emit(ctx, EventHandshakeEstablished, observability.LevelInfo, map[string]any{"peer": msg.SenderID})
	} else {
		d.table.Reject(msg.SenderID)
		d.emit(ctx, EventHandshakeRejected, observability.LevelInfo, map[string]any{"peer": msg.SenderID})
	}

	reply, err := protocol.NewHandshakeResponse(d.localID, msg.SenderID, msg.MessageID, d.caps(), accepted)
	if err != nil {
		return err
	}
	return d.transport.Send(ctx, reply)
}

func (d *Dispatcher) handleHandshakeResponse(ctx context.Context, msg *protocol.Envelope) error {
	ack, ok := msg.Payload.(protocol.HandshakeAck)
	if !ok {
		return nil
	}

	if err := d.table.Resolve(msg.SenderID, msg.CorrelationID, ack.AgentCapabilities, ack.Accepted); err != nil {
		d.logger.Warn("discarding handshake response",
			slog.String("peer", msg.SenderID),
			slog.String("correlation_id", msg.CorrelationID),
			slog.String("error", err.Error()),
		)
		d.emit(ctx, EventDropped, observability.LevelWarning, map[string]any{
			"peer":   msg.SenderID,
			"kind":   string(msg.Kind),
			"reason": err.Error(),
		})
		return nil
	}

	if ack.Accepted {
		d.registerPeer(ctx, ack.AgentCapabilities)
		d.emit(ctx, EventHandshakeEstablished, observability.LevelInfo, map[string]any{"peer": msg.SenderID})
	} else {
		d.emit(ctx, EventHandshakeRejected, observability.LevelInfo, map[string]any{"peer": msg.SenderID})
	}

	d.tracker.Resolve(msg.CorrelationID, msg)
	return nil
}

func (d *Dispatcher) handleRequest(ctx context.Context, msg *protocol.Envelope) error {
	if err := d.table.Gate(msg.SenderID); err != nil {
		d.emit(ctx, EventUnauthorized, observability.LevelWarning, map[string]any{
			"peer": msg.SenderID,
			"kind": string(msg.Kind),
		})
		return d.sendError(ctx, msg.SenderID, msg.MessageID, protocol.ErrorDetails{
			Code:    protocol.CodeUnauthorized,
			Message: "no established session with " + d.localID,
			Type:    protocol.ErrorTypeUnauthorized,
		})
	}

	req, ok := msg.Payload.(protocol.ToolRequest)
	if !ok {
		return nil
	}

	d.emit(ctx, EventToolCall, observability.LevelInfo, map[string]any{
		"peer":      msg.SenderID,
		"tool_name": req.ToolName,
	})

	execCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, time.Duration(req.Timeout)*time.Second)
		defer cancel()
	}

	start := time.Now()
	result, err := d.executor.Execute(execCtx, req.ToolName, req.Arguments)
	elapsed := time.Since(start).Seconds()

	switch {
	case errors.Is(err, tools.ErrNotFound):
		return d.sendError(ctx, msg.SenderID, msg.MessageID, protocol.ErrorDetails{
			Code:    protocol.CodeToolNotFound,
			Message: err.Error(),
			Type:    protocol.ErrorTypeNotFound,
			Details: map[string]any{"tool_name": req.ToolName},
		})
	case errors.Is(err, tools.ErrInvalidArguments):
		return d.sendError(ctx, msg.SenderID, msg.MessageID, protocol.ErrorDetails{
			Code:    protocol.CodeInvalidArguments,
			Message: err.Error(),
			Type:    protocol.ErrorTypeValidation,
			Details: map[string]any{"tool_name": req.ToolName},
		})
	case errors.Is(err, context.DeadlineExceeded):
		return d.sendError(ctx, msg.SenderID, msg.MessageID, protocol.ErrorDetails{
			Code:    protocol.CodeTimeout,
			Message: "tool " + req.ToolName + " timed out",
			Type:    protocol.ErrorTypeTimeout,
			Details: map[string]any{"tool_name": req.ToolName, "timeout": req.Timeout},
		})
	}

	resp := protocol.ToolResponse{ExecutionTime: elapsed}
	if err != nil {
		resp.Error = err.Error()
	} else {
		resp.Success = true
		resp.Result = result
	}

	d.emit(ctx, EventToolComplete, observability.LevelInfo, map[string]any{
		"peer":           msg.SenderID,
		"tool_name":      req.ToolName,
		"success":        resp.Success,
		"execution_time": elapsed,
	})

	reply, rerr := protocol.NewResponse(d.localID, msg.SenderID, msg.MessageID, resp)
	if rerr != nil {
		return rerr
	}
	return d.transport.Send(ctx, reply)
}

func (d *Dispatcher) handleNotification(ctx context.Context, msg *protocol.Envelope) error {
	if err := d.table.Gate(msg.SenderID); err != nil {
		d.emit(ctx, EventUnauthorized, observability.LevelWarning, map[string]any{
			"peer": msg.SenderID,
			"kind": string(msg.Kind),
		})
		return d.sendError(ctx, msg.SenderID, msg.MessageID, protocol.ErrorDetails{
			Code:    protocol.CodeUnauthorized,
			Message: "no established session with " + d.localID,
			Type:    protocol.ErrorTypeUnauthorized,
		})
	}

	note, ok := msg.Payload.(protocol.NotificationPayload)
	if !ok {
		return nil
	}

	d.emit(ctx, EventNotification, observability.LevelVerbose, map[string]any{
		"peer":       msg.SenderID,
		"event_type": note.EventType,
	})

	d.mu.RLock()
	subs := make([]subscription, len(d.subs))
	copy(subs, d.subs)
	d.mu.RUnlock()

	for _, sub := range subs {
		if sub.eventType == "" || sub.eventType == note.EventType {
			sub.handler(ctx, msg.SenderID, note)
		}
	}
	return nil
}

// resolveReply hands a response or correlated error to the tracker. Replies
// skip the handshake gate: the pending entry proves the request was ours,
// and rejecting the answer would strand the waiting caller.
func (d *Dispatcher) resolveReply(ctx context.Context, msg *protocol.Envelope) {
	if !d.tracker.Resolve(msg.CorrelationID, msg) {
		d.emit(ctx, EventDropped, observability.LevelVerbose, map[string]any{
			"sender_id":      msg.SenderID,
			"kind":           string(msg.Kind),
			"correlation_id": msg.CorrelationID,
		})
	}
}

func (d *Dispatcher) handleError(ctx context.Context, msg *protocol.Envelope) {
	if msg.CorrelationID != "" {
		d.resolveReply(ctx, msg)
		return
	}

	details, _ := msg.Payload.(protocol.ErrorDetails)
	d.logger.Warn("peer reported uncorrelated error",
		slog.String("peer", msg.SenderID),
		slog.String("code", string(details.Code)),
		slog.String("message", details.Message),
	)
	d.emit(ctx, EventError, observability.LevelWarning, map[string]any{
		"peer":    msg.SenderID,
		"code":    string(details.Code),
		"message": details.Message,
	})
}

func (d *Dispatcher) registerPeer(ctx context.Context, caps protocol.AgentCapabilities) {
	if d.registry == nil {
		return
	}
	if err := d.registry.Register(ctx, caps); err != nil {
		d.logger.Warn("capability registration failed",
			slog.String("agent_id", caps.AgentID),
			slog.String("error", err.Error()),
		)
	}
}

func (d *Dispatcher) sendError(ctx context.Context, receiver, correlationID string, details protocol.ErrorDetails) error {
	msg, err := protocol.NewError(d.localID, receiver, details, correlationID)
	if err != nil {
		return err
	}
	return d.transport.Send(ctx, msg)
}

func (d *Dispatcher) emit(ctx context.Context, typ observability.EventType, level observability.Level, data map[string]any) {
	d.observer.OnEvent(ctx, observability.NewEvent(typ, level, "dispatch.Dispatcher", data))
}
