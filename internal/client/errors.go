package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrMalformedResponse indicates a 2xx response whose body did not match the expected shape.
var ErrMalformedResponse = errors.New("malformed response")

// APIError is a non-2xx response from the API.
type APIError struct {
	Op         string
	StatusCode int
	Status     string
	// Detail is the server's human-readable message, if it sent one.
	Detail string
}

// Error returns the server detail when present, else "<op> failed: <status text>".
func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("%s failed: %s", e.Op, e.Status)
}

// newAPIError extracts the detail message from an error body.
// Accepts {"detail": "..."} and FastAPI validation errors ({"detail": [{"msg": "..."}]}).
func newAPIError(op string, resp *http.Response, body []byte) *APIError {
	status := http.StatusText(resp.StatusCode)
	if status == "" {
		status = resp.Status
	}
	apiErr := &APIError{Op: op, StatusCode: resp.StatusCode, Status: status}

	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return apiErr
	}

	var detail string
	if err := json.Unmarshal(payload.Detail, &detail); err == nil {
		apiErr.Detail = detail
		return apiErr
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		apiErr.Detail = strings.Join(msgs, "; ")
		return apiErr
	}

	apiErr.Detail = payload.Message
	return apiErr
}

// StatusCode returns the HTTP status of an *APIError in err's chain, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
