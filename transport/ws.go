package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/agent-swarm/bridge/core/protocol"
)

// peerConn serializes writes; gorilla/websocket allows only one concurrent
// writer per connection.
type peerConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *peerConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// WebSocket links one local agent to remote peers over WebSocket
// connections. Outbound links are created with Dial; inbound links arrive
// through Handler, where the connecting peer identifies itself with the
// "agent" query parameter. All inbound envelopes funnel into a single
// receive queue for the local agent.
type WebSocket struct {
	localID  string
	upgrader websocket.Upgrader

	mu     sync.RWMutex
	peers  map[string]*peerConn
	closed bool

	inbox  *queue[*protocol.Envelope]
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

// NewWebSocket creates a WebSocket transport for the agent localID.
func NewWebSocket(localID string, logger *slog.Logger) *WebSocket {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WebSocket{
		localID: localID,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		peers:  make(map[string]*peerConn),
		inbox:  newQueue[*protocol.Envelope](ctx, defaultQueueSize),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Dial opens an outbound link to the peer listening at url.
func (t *WebSocket) Dial(ctx context.Context, peerID, url string) error {
	t.mu.RLock()
	closed := t.closed
	t.mu.RUnlock()
	if closed {
		return &Error{Op: "dial", Err: ErrClosed}
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url+"?agent="+t.localID, nil)
	if err != nil {
		return &Error{Op: "dial", Err: err}
	}
	t.addPeer(peerID, &peerConn{conn: conn})
	return nil
}

// Handler returns the HTTP handler accepting inbound peer links.
func (t *WebSocket) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		peerID := r.URL.Query().Get("agent")
		if peerID == "" {
			http.Error(w, "missing agent parameter", http.StatusBadRequest)
			return
		}

		conn, err := t.upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.logger.Warn("websocket upgrade failed",
				slog.String("remote", r.RemoteAddr),
				slog.String("error", err.Error()),
			)
			return
		}
		t.addPeer(peerID, &peerConn{conn: conn})
	}
}

func (t *WebSocket) addPeer(peerID string, pc *peerConn) {
	t.mu.Lock()
	if old, ok := t.peers[peerID]; ok {
		old.conn.Close()
	}
	t.peers[peerID] = pc
	t.mu.Unlock()

	t.logger.Debug("peer link open", slog.String("peer", peerID))
	go t.readPump(peerID, pc)
}

func (t *WebSocket) readPump(peerID string, pc *peerConn) {
	defer t.removePeer(peerID, pc)

	for {
		_, data, err := pc.conn.ReadMessage()
		if err != nil {
			if t.ctx.Err() == nil {
				t.logger.Debug("peer link closed",
					slog.String("peer", peerID),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			t.logger.Warn("dropping undecodable frame",
				slog.String("peer", peerID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err := t.inbox.Send(t.ctx, msg); err != nil {
			return
		}
	}
}

func (t *WebSocket) removePeer(peerID string, pc *peerConn) {
	t.mu.Lock()
	if current, ok := t.peers[peerID]; ok && current == pc {
		delete(t.peers, peerID)
	}
	t.mu.Unlock()
	pc.conn.Close()
}

// Send writes the envelope to its receiver's link, or to every link for a
// broadcast.
func (t *WebSocket) Send(ctx context.Context, msg *protocol.Envelope) error {
	t.mu.RLock()
	if t.closed {
		t.mu.RUnlock()
		return &Error{Op: "send", Err: ErrClosed}
	}

	if !msg.Broadcast() {
		pc, ok := t.peers[msg.ReceiverID]
		t.mu.RUnlock()
		if !ok {
			return &Error{Op: "send", Err: fmt.Errorf("no link to peer %s", msg.ReceiverID)}
		}
		if err := pc.writeJSON(msg); err != nil {
			return &Error{Op: "send", Err: err}
		}
		return nil
	}

	targets := make(map[string]*peerConn, len(t.peers))
	for id, pc := range t.peers {
		targets[id] = pc
	}
	t.mu.RUnlock()

	for id, pc := range targets {
		if err := pc.writeJSON(msg); err != nil {
			t.logger.Warn("broadcast delivery failed",
				slog.String("peer", id),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// Receive blocks for the next envelope from any peer link. Only the local
// agent may receive on this transport.
func (t *WebSocket) Receive(ctx context.Context, agentID string) (*protocol.Envelope, error) {
	if agentID != t.localID {
		return nil, &Error{Op: "receive", Err: fmt.Errorf("transport belongs to %s, not %s", t.localID, agentID)}
	}
	msg, err := t.inbox.Receive(ctx)
	if err != nil {
		if t.ctx.Err() != nil {
			return nil, &Error{Op: "receive", Err: ErrClosed}
		}
		return nil, &Error{Op: "receive", Err: err}
	}
	return msg, nil
}

// Peers returns the IDs of currently linked peers.
func (t *WebSocket) Peers() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0, len(t.peers))
	for id := range t.peers {
		ids = append(ids, id)
	}
	return ids
}

// Close tears down every peer link.
func (t *WebSocket) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	peers := t.peers
	t.peers = make(map[string]*peerConn)
	t.mu.Unlock()

	t.cancel()
	for _, pc := range peers {
		pc.conn.Close()
	}
	return nil
}
