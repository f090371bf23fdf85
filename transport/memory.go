package transport

import (
	"context"
	"log/slog"
	"sync"

	"github.com/agent-swarm/bridge/core/protocol"
)

const defaultQueueSize = 100

// InMemory passes envelopes between agents in the same process. Each agent
// gets a dedicated buffered queue, created lazily on first use. Broadcast
// envelopes fan out to every queue except the sender's.
type InMemory struct {
	mu     sync.RWMutex
	queues map[string]*queue[*protocol.Envelope]
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

// NewInMemory creates an in-memory transport.
func NewInMemory(logger *slog.Logger) *InMemory {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &InMemory{
		queues: make(map[string]*queue[*protocol.Envelope]),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

func (t *InMemory) queueFor(agentID string) (*queue[*protocol.Envelope], error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrClosed
	}
	q, ok := t.queues[agentID]
	if !ok {
		q = newQueue[*protocol.Envelope](t.ctx, defaultQueueSize)
		t.queues[agentID] = q
		t.logger.Debug("created delivery queue", slog.String("agent_id", agentID))
	}
	return q, nil
}

// Send delivers the envelope to its receiver's queue, or to every queue but
// the sender's when the envelope is a broadcast.
func (t *InMemory) Send(ctx context.Context, msg *protocol.Envelope) error {
	if !msg.Broadcast() {
		q, err := t.queueFor(msg.ReceiverID)
		if err != nil {
			return &Error{Op: "send", Err: err}
		}
		if err := q.Send(ctx, msg); err != nil {
			return &Error{Op: "send", Err: err}
		}
		return nil
	}

	t.mu.RLock()
	if t.closed {
		t.mu.RUnlock()
		return &Error{Op: "send", Err: ErrClosed}
	}
	targets := make([]*queue[*protocol.Envelope], 0, len(t.queues))
	for agentID, q := range t.queues {
		if agentID != msg.SenderID {
			targets = append(targets, q)
		}
	}
	t.mu.RUnlock()

	t.logger.Debug("broadcasting",
		slog.String("message_id", msg.MessageID),
		slog.String("sender_id", msg.SenderID),
		slog.Int("recipients", len(targets)),
	)
	for _, q := range targets {
		if err := q.Send(ctx, msg); err != nil {
			return &Error{Op: "broadcast", Err: err}
		}
	}
	return nil
}

// Receive blocks for the next envelope addressed to agentID.
func (t *InMemory) Receive(ctx context.Context, agentID string) (*protocol.Envelope, error) {
	q, err := t.queueFor(agentID)
	if err != nil {
		return nil, &Error{Op: "receive", Err: err}
	}
	msg, err := q.Receive(ctx)
	if err != nil {
		t.mu.RLock()
		closed := t.closed
		t.mu.RUnlock()
		if closed {
			return nil, &Error{Op: "receive", Err: ErrClosed}
		}
		return nil, &Error{Op: "receive", Err: err}
	}
	return msg, nil
}

// MessageCount returns the number of envelopes queued for agentID.
func (t *InMemory) MessageCount(agentID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	q, ok := t.queues[agentID]
	if !ok {
		return 0
	}
	return q.Len()
}

// Close shuts the transport down; pending and future sends and receives
// fail with ErrClosed.
func (t *InMemory) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	t.cancel()
	t.queues = make(map[string]*queue[*protocol.Envelope])
	t.logger.Debug("in-memory transport closed")
	return nil
}
