// Package client provides an HTTP client for the knowledge-base chat API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/kbchat/internal/metrics"
)

// API paths, relative to the base URL.
const (
	pathLogin      = "/api/auth/login"
	pathMe         = "/api/auth/me"
	pathChat       = "/api/chat"
	pathChatStream = "/api/chat/stream"
)

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 * 1024

// Client talks to the knowledge-base API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	dialer     *websocket.Dialer
	metrics    *metrics.Collector
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets a per-request timeout. Zero means none.
// The HTTP client and dialer are copied, so a shared client passed to
// WithHTTPClient is left untouched.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc

		dialer := *c.dialer
		dialer.HandshakeTimeout = d
		c.dialer = &dialer
	}
}

// WithMetrics records call timings into m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a new API client.
// If baseURL is empty, uses KBCHAT_API_URL env var or defaults to localhost:8000.
// No request timeout is applied unless WithTimeout is given.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("KBCHAT_API_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		dialer:     &websocket.Dialer{Proxy: http.ProxyFromEnvironment},
		metrics:    metrics.NewCollector(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Metrics returns the collector recording this client's calls.
func (c *Client) Metrics() *metrics.Collector {
	return c.metrics
}

// do sends req and decodes a 2xx JSON body into result.
// Non-2xx responses become *APIError carrying the server's detail message.
func (c *Client) do(req *http.Request, op string, result any) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("api request",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return newAPIError(op, resp, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, op, err)
	}
	return nil
}

// newRequest builds a request against the API with an optional bearer token.
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, token string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}
