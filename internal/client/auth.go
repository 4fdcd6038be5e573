package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/raphaelgruber/kbchat/internal/metrics"
	"github.com/raphaelgruber/kbchat/internal/models"
)

// TokenResponse is the body of a successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// UserID accepts both string and numeric ids from the API.
type UserID string

// UnmarshalJSON decodes a JSON string or number.
func (id *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*id = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = UserID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("user id must be a string or number: %w", err)
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return fmt.Errorf("user id must be a string or number: %w", err)
	}
	*id = UserID(n.String())
	return nil
}

// UserResponse is the body of the identity endpoint.
type UserResponse struct {
	ID       UserID `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// Validate checks the fields the client relies on.
func (u UserResponse) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("%w: identity: missing id", ErrMalformedResponse)
	}
	if u.Email == "" && u.Username == "" {
		return fmt.Errorf("%w: identity: missing email and username", ErrMalformedResponse)
	}
	return nil
}

// Identity maps the API user onto a models.Identity.
// Email falls back to username; the display name falls back to email.
func (u UserResponse) Identity() models.Identity {
	email := u.Email
	if email == "" {
		email = u.Username
	}
	name := u.Username
	if name == "" {
		name = email
	}
	return models.Identity{ID: string(u.ID), Email: email, DisplayName: name}
}

// Login exchanges credentials for an access token.
// The body is form-encoded with the account identifier in the username field.
func (c *Client) Login(ctx context.Context, username, password string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := c.newRequest(ctx, http.MethodPost, pathLogin, strings.NewReader(form.Encode()), "")
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var tok TokenResponse
	err = c.metrics.Track(metrics.OpAuthLogin, func() error {
		if err := c.do(req, "login", &tok); err != nil {
			return err
		}
		if tok.AccessToken == "" {
			return fmt.Errorf("%w: login: missing access_token", ErrMalformedResponse)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

// Me fetches the identity that owns token.
func (c *Client) Me(ctx context.Context, token models.Credential) (*UserResponse, error) {
	req, err := c.newRequest(ctx, http.MethodGet, pathMe, nil, token.Token())
	if err != nil {
		return nil, err
	}

	var user UserResponse
	err = c.metrics.Track(metrics.OpAuthIdentity, func() error {
		if err := c.do(req, "identity lookup", &user); err != nil {
			return err
		}
		return user.Validate()
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ExchangeCredentials performs the login exchange and returns the bearer credential.
func (c *Client) ExchangeCredentials(ctx context.Context, email, password string) (models.Credential, error) {
	tok, err := c.Login(ctx, email, password)
	if err != nil {
		return "", err
	}
	return models.Credential(tok.AccessToken), nil
}

// FetchIdentity resolves the identity behind a credential.
func (c *Client) FetchIdentity(ctx context.Context, credential models.Credential) (models.Identity, error) {
	user, err := c.Me(ctx, credential)
	if err != nil {
		return models.Identity{}, err
	}
	return user.Identity(), nil
}
