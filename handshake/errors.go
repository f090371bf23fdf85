package handshake

import "errors"

// Sentinel errors for the session table.
var (
	ErrNotEstablished      = errors.New("handshake session not established")
	ErrNoPendingHandshake  = errors.New("no pending handshake for peer")
	ErrCorrelationMismatch = errors.New("handshake response does not match the pending request")
	ErrExpired             = errors.New("handshake deadline elapsed")
)
