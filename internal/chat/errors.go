package chat

import "errors"

// ErrSessionNotReady means a message arrived while no live session exists
// and no FAQ entry matched. The user may retry after the next successful
// initialization.
var ErrSessionNotReady = errors.New("chat session is not ready")

// ConfigurationError is fatal: the provider credential is missing, so the
// chat feature as a whole is unusable until the deployment is fixed.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// InitializationError means the provider rejected a session build. It is
// recoverable: the next configuration change retriggers initialization.
type InitializationError struct {
	Err error
}

func (e *InitializationError) Error() string {
	return "chat initialization failed: " + e.Err.Error()
}

func (e *InitializationError) Unwrap() error { return e.Err }

// SendError is a per-message provider failure. The message log is left
// intact (a streaming placeholder keeps its last partial text) and the user
// may resend.
type SendError struct {
	Err error
}

func (e *SendError) Error() string {
	return "message send failed: " + e.Err.Error()
}

func (e *SendError) Unwrap() error { return e.Err }
