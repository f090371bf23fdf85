package handshake

import (
	"log/slog"
	"sync"
	"time"

	"github.com/agent-swarm/bridge/core/protocol"
)

type session struct {
	state     State
	requestID string
	caps      protocol.AgentCapabilities
	startedAt time.Time
	deadline  time.Time
}

// Table owns the handshake sessions of a single dispatcher instance, keyed
// by peer ID. It is internally synchronized: multiple inbound and outbound
// flows may touch it concurrently. Independent dispatchers hold independent
// tables, so tests and multi-agent processes do not interfere.
//
// Expiry is applied lazily: a pending session whose deadline has passed is
// reported (and recorded) as expired on the next access.
type Table struct {
	mu       sync.Mutex
	sessions map[string]*session
	timeout  time.Duration
	logger   *slog.Logger
}

// NewTable creates a session table. timeout bounds how long a session may
// stay pending before it expires.
func NewTable(timeout time.Duration, logger *slog.Logger) *Table {
	if logger == nil {
		logger = slog.Default()
	}
	return &Table{
		sessions: make(map[string]*session),
		timeout:  timeout,
		logger:   logger,
	}
}

// locked returns the session for peer, applying lazy expiry. Callers hold mu.
func (t *Table) locked(peer string) *session {
	s, ok := t.sessions[peer]
	if !ok {
		return nil
	}
	if s.state == StatePending && time.Now().After(s.deadline) {
		s.state = StateExpired
		s.requestID = ""
		t.logger.Debug("handshake session expired", slog.String("peer", peer))
	}
	return s
}

// State returns the current session state for peer.
func (t *Table) State(peer string) State {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.locked(peer)
	if s == nil {
		return StateUninitiated
	}
	return s.state
}

// Begin records an outgoing handshake_request identified by requestID and
// moves the peer's session to pending. Sessions are re-entrant: a fresh
// request restarts rejected, expired, and even established sessions, and any
// previously retained capabilities are discarded.
func (t *Table) Begin(peer, requestID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	t.sessions[peer] = &session{
		state:     StatePending,
		requestID: requestID,
		startedAt: now,
		deadline:  now.Add(t.timeout),
	}
	t.logger.Debug("handshake pending",
		slog.String("peer", peer),
		slog.String("request_id", requestID),
	)
}

// Resolve applies an incoming handshake_response. correlationID must match
// the requestID of the peer's pending session; otherwise the response is not
// applied and ErrNoPendingHandshake, ErrExpired, or ErrCorrelationMismatch is
// returned so the caller can discard it. On a match the session becomes established
// (retaining the peer's capabilities) or rejected.
func (t *Table) Resolve(peer, correlationID string, caps protocol.AgentCapabilities, accepted bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.locked(peer)
	if s != nil && s.state == StateExpired {
		return ErrExpired
	}
	if s == nil || s.state != StatePending {
		return ErrNoPendingHandshake
	}
	if s.requestID != correlationID {
		return ErrCorrelationMismatch
	}

	s.requestID = ""
	if accepted {
		s.state = StateEstablished
		s.caps = caps
		t.logger.Info("handshake established",
			slog.String("peer", peer),
			slog.String("peer_role", caps.AgentRole),
			slog.Int("peer_tools", len(caps.Tools)),
		)
	} else {
		s.state = StateRejected
		s.caps = protocol.AgentCapabilities{}
		t.logger.Info("handshake rejected", slog.String("peer", peer))
	}
	return nil
}

// Establish records an accepted inbound handshake_request: the responder
// side of the exchange, which considers the session live as soon as it sends
// its accepting handshake_response.
func (t *Table) Establish(peer string, caps protocol.AgentCapabilities) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	t.sessions[peer] = &session{
		state:     StateEstablished,
		caps:      caps,
		startedAt: now,
	}
	t.logger.Info("handshake established",
		slog.String("peer", peer),
		slog.String("peer_role", caps.AgentRole),
		slog.Int("peer_tools", len(caps.Tools)),
	)
}

// Reject records a refused inbound handshake_request.
func (t *Table) Reject(peer string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sessions[peer] = &session{
		state:     StateRejected,
		startedAt: time.Now(),
	}
	t.logger.Info("handshake rejected", slog.String("peer", peer))
}

// Gate returns nil when non-handshake traffic with peer is allowed, and
// ErrNotEstablished otherwise.
func (t *Table) Gate(peer string) error {
	if t.State(peer) != StateEstablished {
		return ErrNotEstablished
	}
	return nil
}

// Capabilities returns the peer's advertised capability set. It is only
// available while the session is established; capabilities are discarded
// whenever the session leaves that state.
func (t *Table) Capabilities(peer string) (protocol.AgentCapabilities, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.locked(peer)
	if s == nil || s.state != StateEstablished {
		return protocol.AgentCapabilities{}, false
	}
	return s.caps, true
}

// Snapshot returns a copy of the peer's session for introspection.
func (t *Table) Snapshot(peer string) Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.locked(peer)
	if s == nil {
		return Session{Peer: peer, State: StateUninitiated}
	}
	return Session{
		Peer:      peer,
		State:     s.state,
		RequestID: s.requestID,
		StartedAt: s.startedAt,
		Deadline:  s.deadline,
	}
}

// Peers returns the IDs of all peers with an established session.
func (t *Table) Peers() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	peers := make([]string, 0, len(t.sessions))
	for peer := range t.sessions {
		if s := t.locked(peer); s != nil && s.state == StateEstablished {
			peers = append(peers, peer)
		}
	}
	return peers
}
