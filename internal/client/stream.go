package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/kbchat/internal/metrics"
	"github.com/raphaelgruber/kbchat/internal/models"
)

// StreamEvent is one frame sent by the streaming completion endpoint.
type StreamEvent struct {
	Token string  `json:"token"`
	Done  bool    `json:"done"`
	Error *string `json:"error,omitempty"`
}

// streamURL converts the base URL into the websocket endpoint.
func (c *Client) streamURL() (string, error) {
	u, err := url.Parse(c.baseURL + pathChatStream)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return u.String(), nil
}

// ChatStream requests an assistant reply and streams it token by token.
// onToken may be nil. Returning an error from onToken aborts the stream.
// The full reply is returned once the server signals done.
func (c *Client) ChatStream(
	ctx context.Context,
	token models.Credential,
	chatReq ChatRequest,
	onToken func(token string) error,
) (string, error) {
	var reply string
	err := c.metrics.Track(metrics.OpCompletionStream, func() error {
		var err error
		reply, err = c.chatStream(ctx, token, chatReq, onToken)
		return err
	})
	return reply, err
}

func (c *Client) chatStream(
	ctx context.Context,
	token models.Credential,
	chatReq ChatRequest,
	onToken func(token string) error,
) (string, error) {
	endpoint, err := c.streamURL()
	if err != nil {
		return "", err
	}

	requestID := uuid.New().String()
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token.Token())
	header.Set("X-Request-ID", requestID)

	conn, resp, err := c.dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return "", fmt.Errorf("websocket connect: %w", &APIError{
				Op:         "chat stream",
				StatusCode: resp.StatusCode,
				Status:     http.StatusText(resp.StatusCode),
			})
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("websocket connect: %w", err)
	}

	var mu sync.Mutex
	closed := false
	closeConn := func() {
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			conn.Close()
		}
	}
	defer closeConn()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-done:
		}
	}()

	log := c.logger.With("request_id", requestID)
	start := time.Now()

	if err := conn.WriteJSON(chatReq); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("send chat request: %w", err)
	}

	var sb strings.Builder
	for {
		var event StreamEvent
		if err := conn.ReadJSON(&event); err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return "", fmt.Errorf("stream closed before completion: %w", err)
			}
			return "", fmt.Errorf("read message: %w", err)
		}

		if event.Error != nil {
			return "", fmt.Errorf("stream error: %s", *event.Error)
		}

		if event.Token != "" {
			sb.WriteString(event.Token)
			if onToken != nil {
				if err := onToken(event.Token); err != nil {
					return "", err
				}
			}
		}

		if event.Done {
			log.Debug("stream complete",
				"length", sb.Len(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return sb.String(), nil
		}
	}
}
