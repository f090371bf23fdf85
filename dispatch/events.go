package dispatch

import "github.com/agent-swarm/bridge/observability"

// Dispatch event types emitted while routing inbound envelopes.
const (
	EventHandshakeRequest     observability.EventType = "dispatch.handshake.request"
	EventHandshakeEstablished observability.EventType = "dispatch.handshake.established"
	EventHandshakeRejected    observability.EventType = "dispatch.handshake.rejected"
	EventToolCall             observability.EventType = "dispatch.tool.call"
	EventToolComplete         observability.EventType = "dispatch.tool.complete"
	EventNotification         observability.EventType = "dispatch.notification"
	EventUnauthorized         observability.EventType = "dispatch.unauthorized"
	EventDropped              observability.EventType = "dispatch.dropped"
	EventError                observability.EventType = "dispatch.error"
)
