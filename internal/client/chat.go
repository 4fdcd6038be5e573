package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/raphaelgruber/kbchat/internal/metrics"
	"github.com/raphaelgruber/kbchat/internal/models"
)

// ChatMessage is one turn of the history sent to the completion endpoint.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of a completion request.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
	Folder   string        `json:"folder"`
}

// ChatResponse is the body of a successful completion.
type ChatResponse struct {
	Response *string `json:"response"`
}

// NewChatRequest converts conversation history into the wire shape.
func NewChatRequest(history []models.Message, folder string) ChatRequest {
	msgs := make([]ChatMessage, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	return ChatRequest{Messages: msgs, Folder: folder}
}

// Chat requests a single assistant reply.
func (c *Client) Chat(ctx context.Context, token models.Credential, chatReq ChatRequest) (string, error) {
	body, err := json.Marshal(chatReq)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, pathChat, bytes.NewReader(body), token.Token())
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp ChatResponse
	err = c.metrics.Track(metrics.OpCompletion, func() error {
		if err := c.do(req, "chat", &resp); err != nil {
			return err
		}
		if resp.Response == nil {
			return fmt.Errorf("%w: chat: missing response", ErrMalformedResponse)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return *resp.Response, nil
}
