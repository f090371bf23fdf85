// Package correlate matches outgoing requests to their eventual replies.
// Every request and handshake_request an agent sends is registered here with
// a deadline; inbound responses, handshake_responses, and errors resolve the
// matching entry by correlation ID. Entries resolve exactly once, by reply,
// timeout, or local cancellation.
package correlate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/agent-swarm/bridge/core/protocol"
)

// Sentinel errors for pending entry outcomes.
var (
	ErrTimeout     = errors.New("correlation deadline elapsed")
	ErrCancelled   = errors.New("pending request cancelled")
	ErrDuplicateID = errors.New("message id already pending")
	ErrClosed      = errors.New("tracker closed")
)

// Outcome is the terminal result of a pending entry: a reply envelope
// (response, handshake_response, or error kind) or a local failure.
type Outcome struct {
	Reply *protocol.Envelope
	Err   error
}

type pending struct {
	ch    chan Outcome
	timer *time.Timer
}

// Tracker is the correlation table of a single agent. It is internally
// synchronized and safe for concurrent Track/Resolve/Cancel across inbound
// and outbound flows.
type Tracker struct {
	mu             sync.Mutex
	entries        map[string]*pending
	closed         bool
	defaultTimeout time.Duration
	logger         *slog.Logger
}

// NewTracker creates a Tracker. defaultTimeout applies to entries tracked
// without an explicit timeout.
func NewTracker(defaultTimeout time.Duration, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		entries:        make(map[string]*pending),
		defaultTimeout: defaultTimeout,
		logger:         logger,
	}
}

// Track registers messageID as pending and returns the channel its single
// Outcome will arrive on. A non-positive timeout falls back to the tracker
// default. Message ID uniqueness makes duplicates a programming error, which
// is surfaced as ErrDuplicateID rather than silently replacing the entry.
func (t *Tracker) Track(messageID string, timeout time.Duration) (<-chan Outcome, error) {
	if timeout <= 0 {
		timeout = t.defaultTimeout
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrClosed
	}
	if _, exists := t.entries[messageID]; exists {
		return nil, ErrDuplicateID
	}

	p := &pending{ch: make(chan Outcome, 1)}
	p.timer = time.AfterFunc(timeout, func() { t.expire(messageID) })
	t.entries[messageID] = p

	return p.ch, nil
}

// Resolve delivers a reply to the entry matching its correlation ID and
// removes it. At most one resolution happens per entry: a late or duplicate
// reply finds no entry, is logged, and reports false.
func (t *Tracker) Resolve(correlationID string, reply *protocol.Envelope) bool {
	p := t.take(correlationID)
	if p == nil {
		t.logger.Debug("discarding unmatched reply",
			slog.String("correlation_id", correlationID),
			slog.String("kind", string(reply.Kind)),
			slog.String("sender_id", reply.SenderID),
		)
		return false
	}
	p.timer.Stop()
	p.ch <- Outcome{Reply: reply}
	return true
}

// Cancel removes a pending entry before resolution. The awaiting caller
// observes ErrCancelled; any reply arriving later is discarded as unmatched.
func (t *Tracker) Cancel(messageID string) bool {
	p := t.take(messageID)
	if p == nil {
		return false
	}
	p.timer.Stop()
	p.ch <- Outcome{Err: ErrCancelled}
	return true
}

func (t *Tracker) expire(messageID string) {
	p := t.take(messageID)
	if p == nil {
		return
	}
	t.logger.Warn("pending request timed out", slog.String("message_id", messageID))
	p.ch <- Outcome{Err: ErrTimeout}
}

// take removes and returns the entry for id, or nil if none is pending.
func (t *Tracker) take(id string) *pending {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.entries[id]
	if !ok {
		return nil
	}
	delete(t.entries, id)
	return p
}

// Wait blocks until the entry delivers its outcome or ctx is done. On
// context cancellation the entry for messageID is cancelled so the table
// does not leak.
func (t *Tracker) Wait(ctx context.Context, messageID string, ch <-chan Outcome) (*protocol.Envelope, error) {
	select {
	case outcome := <-ch:
		if outcome.Err != nil {
			return nil, outcome.Err
		}
		return outcome.Reply, nil
	case <-ctx.Done():
		t.Cancel(messageID)
		return nil, ctx.Err()
	}
}

// PendingCount returns the number of unresolved entries.
func (t *Tracker) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Close cancels every pending entry and rejects new Track calls.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	entries := t.entries
	t.entries = make(map[string]*pending)
	t.mu.Unlock()

	for _, p := range entries {
		p.timer.Stop()
		p.ch <- Outcome{Err: ErrCancelled}
	}
}
