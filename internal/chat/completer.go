package chat

import (
	"context"

	"github.com/raphaelgruber/kbchat/internal/models"
)

// Request is everything a completion collaborator needs to produce one reply.
type Request struct {
	Credential models.Credential
	// History is the windowed conversation, oldest first, ending with the new user message.
	History []models.Message
	Folder  string
	// OnToken receives streamed reply fragments. nil when the caller does not stream.
	OnToken func(token string) error
}

// Completer produces an assistant reply for a conversation.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f(ctx, req).
func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
