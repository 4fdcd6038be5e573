// Package auth drives the login flow: validate, exchange credentials, fetch the
// identity, then populate the session store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/raphaelgruber/kbchat/internal/models"
	"github.com/raphaelgruber/kbchat/internal/session"
)

// State is the phase of the login flow.
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateAuthenticated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Authenticator is the remote authentication service.
type Authenticator interface {
	ExchangeCredentials(ctx context.Context, email, password string) (models.Credential, error)
	FetchIdentity(ctx context.Context, credential models.Credential) (models.Identity, error)
}

// Controller runs login attempts against an Authenticator.
type Controller struct {
	authn   Authenticator
	session *session.Store
	logger  *slog.Logger

	mu      sync.Mutex
	state   State
	lastErr string
}

// NewController creates a controller writing into sess.
func NewController(authn Authenticator, sess *session.Store, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{authn: authn, session: sess, logger: logger}
}

// Login validates the input, exchanges it for a credential and resolves the
// identity. The session is only written once both calls succeed.
func (c *Controller) Login(ctx context.Context, email, password string) error {
	return c.Submit(ctx, LoginInput{Email: email, Password: password})
}

// Submit is Login for a full LoginInput.
func (c *Controller) Submit(ctx context.Context, in LoginInput) error {
	in.Email = strings.TrimSpace(in.Email)
	c.begin()

	if err := in.Validate(); err != nil {
		return c.fail(err, strings.TrimPrefix(err.Error(), ErrValidation.Error()+": "))
	}

	log := c.logger.With("email", in.Email)

	cred, err := c.authn.ExchangeCredentials(ctx, in.Email, in.Password)
	if err != nil {
		log.Warn("credential exchange failed", "error", err)
		return c.fail(fmt.Errorf("%w: %w", ErrAuthentication, err), err.Error())
	}

	identity, err := c.authn.FetchIdentity(ctx, cred)
	if err != nil {
		// The fresh credential is dropped here and never reaches the session.
		log.Warn("identity lookup failed", "error", err)
		return c.fail(fmt.Errorf("%w: %w", ErrProfileFetch, err), ErrProfileFetch.Error())
	}

	c.session.Set(identity, cred)

	c.mu.Lock()
	c.state = StateAuthenticated
	c.lastErr = ""
	c.mu.Unlock()

	log.Info("signed in", "user_id", identity.ID)
	return nil
}

// Logout clears the session and returns to Idle.
func (c *Controller) Logout() {
	c.session.Clear()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateIdle
	c.lastErr = ""
}

// State returns the current phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the user-visible message of the last failed attempt.
func (c *Controller) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Controller) begin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateSubmitting
	c.lastErr = ""
}

func (c *Controller) fail(err error, visible string) error {
	if errors.Is(err, context.Canceled) {
		visible = "login cancelled"
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateFailed
	c.lastErr = visible
	return err
}
