package protocol

import (
	"fmt"
	"strings"
)

// ViolationCode classifies why a message failed validation.
type ViolationCode string

const (
	// ViolationSchema covers missing required fields, wrong shapes, and
	// values outside a closed enumeration.
	ViolationSchema ViolationCode = "schema_error"

	// ViolationCorrelation covers a correlation ID present where forbidden
	// or absent where required for the message's kind.
	ViolationCorrelation ViolationCode = "correlation_error"

	// ViolationPayloadMismatch covers a payload whose type does not match
	// the declared kind.
	ViolationPayloadMismatch ViolationCode = "payload_mismatch_error"
)

// Violation is a single validation failure.
type Violation struct {
	Code    ViolationCode
	Field   string
	Message string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s: %s", v.Code, v.Field, v.Message)
}

// ValidationError aggregates every violation found in a message. Validation
// never stops at the first problem; callers get the full list.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return "message validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether any violation carries the given code.
func (e *ValidationError) Has(code ViolationCode) bool {
	for _, v := range e.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

// maxRequestTimeout bounds per-request timeouts under strict validation.
const maxRequestTimeout = 300

// Validator checks envelopes against the protocol rules. It is stateless and
// side-effect free: it never mutates the message and is safe for concurrent
// use. In strict mode it additionally enforces the request timeout ceiling
// and semver-shaped capability versions.
type Validator struct {
	strict bool
}

// NewValidator creates a Validator. Pass strict=true for the rules applied
// to locally constructed messages; inbound messages from older peers are
// typically validated with strict=false.
func NewValidator(strict bool) *Validator {
	return &Validator{strict: strict}
}

// Validate returns nil for a well-formed message, or a *ValidationError
// listing every violation found.
func (v *Validator) Validate(e *Envelope) error {
	if e == nil {
		return &ValidationError{Violations: []Violation{
			{Code: ViolationSchema, Field: "message", Message: "message is nil"},
		}}
	}

	var violations []Violation
	add := func(code ViolationCode, field, format string, args ...any) {
		violations = append(violations, Violation{
			Code:    code,
			Field:   field,
			Message: fmt.Sprintf(format, args...),
		})
	}

	if e.MessageID == "" {
		add(ViolationSchema, "message_id", "must not be empty")
	}
	if !e.Kind.Valid() {
		add(ViolationSchema, "kind", "unknown kind %q", e.Kind)
	}
	if strings.TrimSpace(e.SenderID) == "" {
		add(ViolationSchema, "sender_id", "must not be empty")
	}
	if !e.Priority.Valid() {
		add(ViolationSchema, "priority", "unknown priority %q", e.Priority)
	}
	if e.Timestamp.IsZero() {
		add(ViolationSchema, "timestamp", "must be set")
	}

	v.checkCorrelation(e, add)
	v.checkReceiver(e, add)
	v.checkPayload(e, add)

	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: violations}
}

type addFunc func(code ViolationCode, field, format string, args ...any)

func (v *Validator) checkCorrelation(e *Envelope, add addFunc) {
	switch e.Kind {
	case KindHandshakeResponse, KindResponse:
		if e.CorrelationID == "" {
			add(ViolationCorrelation, "correlation_id", "required for kind %s", e.Kind)
		}
	case KindHandshakeRequest, KindRequest, KindNotification:
		if e.CorrelationID != "" {
			add(ViolationCorrelation, "correlation_id", "forbidden for kind %s", e.Kind)
		}
	}
	// KindError: correlation is optional.
}

func (v *Validator) checkReceiver(e *Envelope, add addFunc) {
	if e.ReceiverID != "" {
		return
	}
	switch e.Kind {
	case KindNotification, KindHandshakeRequest, KindError:
		// Broadcast is legal.
	default:
		add(ViolationSchema, "receiver_id", "required for kind %s", e.Kind)
	}
}

func (v *Validator) checkPayload(e *Envelope, add addFunc) {
	if e.Payload == nil {
		add(ViolationPayloadMismatch, "payload", "missing payload")
		return
	}

	switch p := e.Payload.(type) {
	case AgentCapabilities:
		if e.Kind != KindHandshakeRequest {
			add(ViolationPayloadMismatch, "payload", "capabilities payload on kind %s", e.Kind)
			return
		}
		v.checkCapabilities(p, add)
	case HandshakeAck:
		if e.Kind != KindHandshakeResponse {
			add(ViolationPayloadMismatch, "payload", "handshake ack payload on kind %s", e.Kind)
			return
		}
		v.checkCapabilities(p.AgentCapabilities, add)
	case ToolRequest:
		if e.Kind != KindRequest {
			add(ViolationPayloadMismatch, "payload", "tool request payload on kind %s", e.Kind)
			return
		}
		if p.ToolName == "" {
			add(ViolationSchema, "payload.tool_name", "must not be empty")
		}
		if p.Timeout < 0 {
			add(ViolationSchema, "payload.timeout", "must be positive, got %d", p.Timeout)
		}
		if v.strict && p.Timeout > maxRequestTimeout {
			add(ViolationSchema, "payload.timeout", "exceeds maximum %ds", maxRequestTimeout)
		}
	case ToolResponse:
		if e.Kind != KindResponse {
			add(ViolationPayloadMismatch, "payload", "tool response payload on kind %s", e.Kind)
			return
		}
		if p.Success && p.Error != "" {
			add(ViolationSchema, "payload.error", "must be empty on success")
		}
		if !p.Success && p.Error == "" {
			add(ViolationSchema, "payload.error", "required on failure")
		}
		if !p.Success && p.Result != nil {
			add(ViolationSchema, "payload.result", "must be empty on failure")
		}
		if p.ExecutionTime < 0 {
			add(ViolationSchema, "payload.execution_time", "must not be negative")
		}
	case NotificationPayload:
		if e.Kind != KindNotification {
			add(ViolationPayloadMismatch, "payload", "notification payload on kind %s", e.Kind)
			return
		}
		if p.EventType == "" {
			add(ViolationSchema, "payload.event_type", "must not be empty")
		}
	case ErrorDetails:
		if e.Kind != KindError {
			add(ViolationPayloadMismatch, "payload", "error payload on kind %s", e.Kind)
			return
		}
		if !p.Code.Valid() {
			add(ViolationSchema, "payload.error_code", "unknown code %q", p.Code)
		}
		if !p.Type.Valid() {
			add(ViolationSchema, "payload.error_type", "unknown type %q", p.Type)
		}
		if p.Message == "" {
			add(ViolationSchema, "payload.error_message", "must not be empty")
		}
	default:
		add(ViolationPayloadMismatch, "payload", "unsupported payload type %T", e.Payload)
	}
}

func (v *Validator) checkCapabilities(caps AgentCapabilities, add addFunc) {
	if strings.TrimSpace(caps.AgentID) == "" {
		add(ViolationSchema, "payload.agent_id", "must not be empty")
	}
	if caps.Version == "" {
		add(ViolationSchema, "payload.version", "protocol version is required")
		return
	}
	if v.strict && len(strings.Split(caps.Version, ".")) != 3 {
		add(ViolationSchema, "payload.version", "must be semver-shaped (e.g. 0.1.0), got %q", caps.Version)
	}
}
