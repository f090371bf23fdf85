package protocol

// Payload is the kind-specific body of an envelope. The concrete type is
// fully determined by the envelope's Kind; the validator rejects any
// combination outside the closed mapping.
type Payload interface {
	payloadKind() Kind
}

// AgentCapabilities is the payload of a handshake_request: the identity and
// tool surface the sending agent advertises to a peer. Metadata is an
// open-ended map so agents can attach extra fields without breaking the
// envelope schema.
type AgentCapabilities struct {
	AgentID   string         `json:"agent_id"`
	AgentName string         `json:"agent_name"`
	AgentRole string         `json:"agent_role"`
	Tools     []string       `json:"tools,omitempty"`
	Version   string         `json:"version"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func (AgentCapabilities) payloadKind() Kind { return KindHandshakeRequest }

// HandshakeAck is the payload of a handshake_response: the responder's own
// capabilities plus the accept/reject verdict.
type HandshakeAck struct {
	AgentCapabilities
	Accepted bool `json:"accepted"`
}

func (HandshakeAck) payloadKind() Kind { return KindHandshakeResponse }

// ToolRequest is the payload of a request: a tool invocation on a peer.
// Timeout is in seconds; zero means unset, in which case the correlation
// tracker's default deadline applies.
type ToolRequest struct {
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Timeout   int            `json:"timeout,omitempty"`
}

func (ToolRequest) payloadKind() Kind { return KindRequest }

// ToolResponse is the payload of a response. Result is set only on success,
// Error only on failure. ExecutionTime is in seconds.
type ToolResponse struct {
	Success       bool    `json:"success"`
	Result        any     `json:"result,omitempty"`
	Error         string  `json:"error,omitempty"`
	ExecutionTime float64 `json:"execution_time,omitempty"`
}

func (ToolResponse) payloadKind() Kind { return KindResponse }

// NotificationPayload is the payload of a notification: a fire-and-forget
// event with open-ended data.
type NotificationPayload struct {
	EventType string         `json:"event_type"`
	Data      map[string]any `json:"data,omitempty"`
}

func (NotificationPayload) payloadKind() Kind { return KindNotification }

// ErrorCode is the closed set of protocol error codes.
type ErrorCode string

const (
	CodeToolNotFound     ErrorCode = "TOOL_NOT_FOUND"
	CodeInvalidArguments ErrorCode = "INVALID_ARGUMENTS"
	CodeExecutionFailed  ErrorCode = "EXECUTION_FAILED"
	CodeTimeout          ErrorCode = "TIMEOUT"
	CodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	CodeInternalError    ErrorCode = "INTERNAL_ERROR"
)

// Valid reports whether c is a known error code.
func (c ErrorCode) Valid() bool {
	switch c {
	case CodeToolNotFound, CodeInvalidArguments, CodeExecutionFailed,
		CodeTimeout, CodeUnauthorized, CodeInternalError:
		return true
	}
	return false
}

// ErrorType classifies an error beyond its code.
type ErrorType string

const (
	ErrorTypeGeneral      ErrorType = "general"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeExecution    ErrorType = "execution"
	ErrorTypeTimeout      ErrorType = "timeout"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeInternal     ErrorType = "internal"
)

// Valid reports whether t is a known error type.
func (t ErrorType) Valid() bool {
	switch t {
	case ErrorTypeGeneral, ErrorTypeValidation, ErrorTypeNotFound,
		ErrorTypeExecution, ErrorTypeTimeout, ErrorTypeUnauthorized,
		ErrorTypeInternal:
		return true
	}
	return false
}

// ErrorDetails is the payload of an error message. Details is an open-ended
// map for machine-readable context.
type ErrorDetails struct {
	Code    ErrorCode      `json:"error_code"`
	Message string         `json:"error_message"`
	Type    ErrorType      `json:"error_type"`
	Details map[string]any `json:"details,omitempty"`
}

func (ErrorDetails) payloadKind() Kind { return KindError }
