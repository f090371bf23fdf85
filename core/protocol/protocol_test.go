package protocol_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/agent-swarm/bridge/core/protocol"
)

func testCapabilities(id string) protocol.AgentCapabilities {
	return protocol.AgentCapabilities{
		AgentID:   id,
		AgentName: id,
		AgentRole: "worker",
		Tools:     []string{"echo"},
		Version:   protocol.Version,
		Metadata:  map[string]any{"region": "local"},
	}
}

func TestFactory_Envelopes(t *testing.T) {
	tests := []struct {
		name            string
		build           func() (*protocol.Envelope, error)
		wantKind        protocol.Kind
		wantReceiver    string
		wantCorrelation string
	}{
		{
			name: "handshake request",
			build: func() (*protocol.Envelope, error) {
				return protocol.NewHandshakeRequest("agent-a", testCapabilities("agent-a"), "agent-b")
			},
			wantKind:     protocol.KindHandshakeRequest,
			wantReceiver: "agent-b",
		},
		{
			name: "broadcast handshake request",
			build: func() (*protocol.Envelope, error) {
				return protocol.NewHandshakeRequest("agent-a", testCapabilities("agent-a"), "")
			},
			wantKind: protocol.KindHandshakeRequest,
		},
		{
			name: "handshake response",
			build: func() (*protocol.Envelope, error) {
				return protocol.NewHandshakeResponse("agent-b", "agent-a", "req-1", testCapabilities("agent-b"), true)
			},
			wantKind:        protocol.KindHandshakeResponse,
			wantReceiver:    "agent-a",
			wantCorrelation: "req-1",
		},
		{
			name: "request",
			build: func() (*protocol.Envelope, error) {
				return protocol.NewRequest("agent-a", "agent-b", protocol.ToolRequest{ToolName: "echo"}, "")
			},
			wantKind:     protocol.KindRequest,
			wantReceiver: "agent-b",
		},
		{
			name: "response",
			build: func() (*protocol.Envelope, error) {
				return protocol.NewResponse("agent-b", "agent-a", "req-2", protocol.ToolResponse{
					Success: true,
					Result:  "done",
				})
			},
			wantKind:        protocol.KindResponse,
			wantReceiver:    "agent-a",
			wantCorrelation: "req-2",
		},
		{
			name: "broadcast notification",
			build: func() (*protocol.Envelope, error) {
				return protocol.NewNotification("agent-a", protocol.NotificationPayload{EventType: "started"}, "")
			},
			wantKind: protocol.KindNotification,
		},
		{
			name: "error",
			build: func() (*protocol.Envelope, error) {
				return protocol.NewError("agent-b", "agent-a", protocol.ErrorDetails{
					Code:    protocol.CodeInternalError,
					Message: "boom",
					Type:    protocol.ErrorTypeInternal,
				}, "req-3")
			},
			wantKind:        protocol.KindError,
			wantReceiver:    "agent-a",
			wantCorrelation: "req-3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := tt.build()
			if err != nil {
				t.Fatalf("factory error = %v", err)
			}
			if msg.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", msg.Kind, tt.wantKind)
			}
			if msg.ReceiverID != tt.wantReceiver {
				t.Errorf("ReceiverID = %q, want %q", msg.ReceiverID, tt.wantReceiver)
			}
			if msg.CorrelationID != tt.wantCorrelation {
				t.Errorf("CorrelationID = %q, want %q", msg.CorrelationID, tt.wantCorrelation)
			}
			if msg.MessageID == "" {
				t.Error("MessageID should not be empty")
			}
			if msg.Timestamp.IsZero() {
				t.Error("Timestamp should not be zero")
			}
			if msg.Priority != protocol.PriorityNormal {
				t.Errorf("Priority = %v, want %v", msg.Priority, protocol.PriorityNormal)
			}
		})
	}
}

func TestFactory_MessageIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		msg, err := protocol.NewNotification("agent-a", protocol.NotificationPayload{EventType: "tick"}, "")
		if err != nil {
			t.Fatalf("NewNotification() error = %v", err)
		}
		if seen[msg.MessageID] {
			t.Fatalf("duplicate MessageID %s after %d messages", msg.MessageID, i)
		}
		seen[msg.MessageID] = true
	}
}

func TestFactory_RequestPriority(t *testing.T) {
	msg, err := protocol.NewRequest("agent-a", "agent-b", protocol.ToolRequest{ToolName: "echo"}, protocol.PriorityUrgent)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if msg.Priority != protocol.PriorityUrgent {
		t.Errorf("Priority = %v, want %v", msg.Priority, protocol.PriorityUrgent)
	}
}

func TestFactory_RequestRequiresReceiver(t *testing.T) {
	_, err := protocol.NewRequest("agent-a", "", protocol.ToolRequest{ToolName: "echo"}, "")
	if err == nil {
		t.Fatal("NewRequest() with empty receiver should fail")
	}
}

func TestFactory_ResponseRequiresCorrelation(t *testing.T) {
	_, err := protocol.NewResponse("agent-b", "agent-a", "", protocol.ToolResponse{Success: true, Result: "ok"})
	if err == nil {
		t.Fatal("NewResponse() with empty correlation should fail")
	}
}

func TestEnvelope_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		build func() (*protocol.Envelope, error)
	}{
		{
			name: "handshake request",
			build: func() (*protocol.Envelope, error) {
				return protocol.NewHandshakeRequest("agent-a", testCapabilities("agent-a"), "agent-b")
			},
		},
		{
			name: "handshake response rejected",
			build: func() (*protocol.Envelope, error) {
				return protocol.NewHandshakeResponse("agent-b", "agent-a", "req-1", testCapabilities("agent-b"), false)
			},
		},
		{
			name: "request with arguments",
			build: func() (*protocol.Envelope, error) {
				return protocol.NewRequest("agent-a", "agent-b", protocol.ToolRequest{
					ToolName:  "transform",
					Arguments: map[string]any{"input": "abc", "depth": float64(3)},
					Timeout:   5,
				}, protocol.PriorityHigh)
			},
		},
		{
			name: "failed response",
			build: func() (*protocol.Envelope, error) {
				return protocol.NewResponse("agent-b", "agent-a", "req-9", protocol.ToolResponse{
					Success:       false,
					Error:         "transform exploded",
					ExecutionTime: 0.25,
				})
			},
		},
		{
			name: "notification with data",
			build: func() (*protocol.Envelope, error) {
				return protocol.NewNotification("agent-a", protocol.NotificationPayload{
					EventType: "status_changed",
					Data:      map[string]any{"status": "busy"},
				}, "agent-b")
			},
		},
		{
			name: "error with details",
			build: func() (*protocol.Envelope, error) {
				return protocol.NewError("agent-b", "agent-a", protocol.ErrorDetails{
					Code:    protocol.CodeToolNotFound,
					Message: "no such tool",
					Type:    protocol.ErrorTypeNotFound,
					Details: map[string]any{"tool_name": "missing"},
				}, "")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original, err := tt.build()
			if err != nil {
				t.Fatalf("factory error = %v", err)
			}

			data, err := protocol.Encode(original)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			decoded, err := protocol.Decode(data)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}

			reencoded, err := protocol.Encode(decoded)
			if err != nil {
				t.Fatalf("re-Encode() error = %v", err)
			}
			if string(data) != string(reencoded) {
				t.Errorf("round trip not stable:\n first = %s\nsecond = %s", data, reencoded)
			}

			if decoded.MessageID != original.MessageID {
				t.Errorf("MessageID = %q, want %q", decoded.MessageID, original.MessageID)
			}
			if decoded.Kind != original.Kind {
				t.Errorf("Kind = %v, want %v", decoded.Kind, original.Kind)
			}
			if decoded.CorrelationID != original.CorrelationID {
				t.Errorf("CorrelationID = %q, want %q", decoded.CorrelationID, original.CorrelationID)
			}
			if !decoded.Timestamp.Equal(original.Timestamp) {
				t.Errorf("Timestamp = %v, want %v", decoded.Timestamp, original.Timestamp)
			}

			if err := protocol.NewValidator(true).Validate(decoded); err != nil {
				t.Errorf("decoded message should validate, got %v", err)
			}
		})
	}
}

func TestDecode_PayloadTypeFollowsKind(t *testing.T) {
	msg, err := protocol.NewRequest("agent-a", "agent-b", protocol.ToolRequest{
		ToolName:  "echo",
		Arguments: map[string]any{"text": "hello"},
	}, "")
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}

	data, err := protocol.Encode(msg)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	decoded, err := protocol.Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	req, ok := decoded.Payload.(protocol.ToolRequest)
	if !ok {
		t.Fatalf("Payload type = %T, want protocol.ToolRequest", decoded.Payload)
	}
	if req.ToolName != "echo" {
		t.Errorf("ToolName = %q, want %q", req.ToolName, "echo")
	}
	if req.Arguments["text"] != "hello" {
		t.Errorf("Arguments[text] = %v, want %v", req.Arguments["text"], "hello")
	}
}

func TestDecode_UnknownKindKeptForValidator(t *testing.T) {
	raw := `{"message_id":"m1","kind":"gossip","sender_id":"agent-a","timestamp":"2026-01-02T15:04:05Z","payload":{}}`

	decoded, err := protocol.Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode() error = %v, want nil (unknown kind is a validation concern)", err)
	}

	err = protocol.NewValidator(false).Validate(decoded)
	if err == nil {
		t.Fatal("Validate() should fail for unknown kind")
	}
	var verr *protocol.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error type = %T, want *protocol.ValidationError", err)
	}
	if !verr.Has(protocol.ViolationSchema) {
		t.Errorf("violations = %v, want a schema violation", verr.Violations)
	}
}

func TestDecode_UnknownEnvelopeFieldsIgnored(t *testing.T) {
	msg, err := protocol.NewNotification("agent-a", protocol.NotificationPayload{EventType: "tick"}, "")
	if err != nil {
		t.Fatalf("NewNotification() error = %v", err)
	}
	data, err := protocol.Encode(msg)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	// Splice an extra top-level field into the wire form.
	patched := strings.Replace(string(data), `{"message_id"`, `{"x_extension":"yes","message_id"`, 1)

	decoded, err := protocol.Decode([]byte(patched))
	if err != nil {
		t.Fatalf("Decode() error = %v, want extra fields ignored", err)
	}
	if err := protocol.NewValidator(false).Validate(decoded); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestDecode_MissingPriorityDefaultsToNormal(t *testing.T) {
	raw := `{"message_id":"m1","kind":"notification","sender_id":"agent-a","timestamp":"2026-01-02T15:04:05Z","payload":{"event_type":"tick"}}`

	decoded, err := protocol.Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if decoded.Priority != protocol.PriorityNormal {
		t.Errorf("Priority = %v, want %v", decoded.Priority, protocol.PriorityNormal)
	}
}

func TestEnvelope_Broadcast(t *testing.T) {
	broadcast, err := protocol.NewNotification("agent-a", protocol.NotificationPayload{EventType: "tick"}, "")
	if err != nil {
		t.Fatalf("NewNotification() error = %v", err)
	}
	direct, err := protocol.NewNotification("agent-a", protocol.NotificationPayload{EventType: "tick"}, "agent-b")
	if err != nil {
		t.Fatalf("NewNotification() error = %v", err)
	}

	if !broadcast.Broadcast() {
		t.Error("Broadcast() = false for empty receiver, want true")
	}
	if direct.Broadcast() {
		t.Error("Broadcast() = true for targeted message, want false")
	}
}

func TestEnvelope_TimestampIsUTC(t *testing.T) {
	msg, err := protocol.NewNotification("agent-a", protocol.NotificationPayload{EventType: "tick"}, "")
	if err != nil {
		t.Fatalf("NewNotification() error = %v", err)
	}
	if msg.Timestamp.Location() != time.UTC {
		t.Errorf("Timestamp location = %v, want UTC", msg.Timestamp.Location())
	}
}
