package client

import (
	"context"

	"github.com/raphaelgruber/kbchat/internal/chat"
)

// HTTPCompleter answers through the request/response chat endpoint.
// Streamed tokens are not available; OnToken receives the whole reply once.
type HTTPCompleter struct {
	Client *Client
}

// Complete implements chat.Completer.
func (h HTTPCompleter) Complete(ctx context.Context, req chat.Request) (string, error) {
	reply, err := h.Client.Chat(ctx, req.Credential, NewChatRequest(req.History, req.Folder))
	if err != nil {
		return "", err
	}
	if req.OnToken != nil {
		if err := req.OnToken(reply); err != nil {
			return "", err
		}
	}
	return reply, nil
}

// StreamCompleter answers through the websocket streaming endpoint.
type StreamCompleter struct {
	Client *Client
}

// Complete implements chat.Completer.
func (s StreamCompleter) Complete(ctx context.Context, req chat.Request) (string, error) {
	return s.Client.ChatStream(ctx, req.Credential, NewChatRequest(req.History, req.Folder), req.OnToken)
}

var (
	_ chat.Completer = HTTPCompleter{}
	_ chat.Completer = StreamCompleter{}
)
