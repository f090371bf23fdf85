// Package protocol defines the wire-level message model of the agent bridge:
// the shared envelope, the six message kinds, their payload variants, the
// factory constructors, and the validator.
//
// # Message kinds
//
//   - handshake_request / handshake_response: capability exchange that must
//     precede all other traffic between a pair of agents
//   - request / response: correlated tool invocation
//   - notification: fire-and-forget event, optionally broadcast
//   - error: structured failure report, optionally correlated
//
// # Envelope
//
// Every message carries the same envelope fields: a UUIDv7 message ID, the
// kind, sender and receiver IDs (empty receiver means broadcast), a UTC
// timestamp, an optional correlation ID, a priority, and a kind-specific
// payload. The envelope is a tagged union over the kind: decoding selects
// the payload type from the kind, and dispatch switches exhaustively over it.
//
// # Construction
//
// Messages are built with the factory functions, which fill in identity and
// correlation fields per the protocol rules and validate the result:
//
//	req, err := protocol.NewRequest("agent-a", "agent-b", protocol.ToolRequest{
//	    ToolName:  "echo",
//	    Arguments: map[string]any{"text": "hi"},
//	}, protocol.PriorityNormal)
//
// # Validation
//
// Validator.Validate checks every rule and returns the complete violation
// list, classified as schema, correlation, or payload-mismatch violations.
// It never mutates the message.
package protocol

// Version is the protocol version agents advertise during handshake when
// their configuration does not override it.
const Version = "0.1.0"
