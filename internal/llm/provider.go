package llm

import "context"

// SessionConfig fixes a chat session's hidden preamble and generation
// parameters. Any change to these requires a new session.
type SessionConfig struct {
	SystemInstruction string
	Temperature       float32
	TopK              int32
	TopP              float32
	MaxOutputTokens   int32
}

// Stream is a finite, non-restartable sequence of response text chunks.
// Next returns io.EOF after the last chunk.
type Stream interface {
	Next() (string, error)
}

// Session is one provider-side conversational context.
type Session interface {
	SendStream(ctx context.Context, text string) (Stream, error)
}

// Provider opens chat sessions against a hosted model.
type Provider interface {
	StartSession(ctx context.Context, cfg SessionConfig) (Session, error)
	Close() error
}
