// Package chat submits user messages and records the assistant's replies.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/raphaelgruber/kbchat/internal/conversation"
	"github.com/raphaelgruber/kbchat/internal/models"
	"github.com/raphaelgruber/kbchat/internal/session"
)

// DefaultHistoryWindow is the number of messages sent with each completion.
const DefaultHistoryWindow = 20

// Submitter runs the submit sequence against the conversation store.
// At most one completion is in flight; concurrent submissions get ErrBusy.
type Submitter struct {
	session      *session.Store
	conversation *conversation.Store
	completer    Completer
	window       int
	logger       *slog.Logger

	inflight atomic.Bool

	mu      sync.Mutex
	lastErr string
}

// NewSubmitter wires a submitter. window <= 0 uses DefaultHistoryWindow.
func NewSubmitter(sess *session.Store, conv *conversation.Store, completer Completer, window int, logger *slog.Logger) *Submitter {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{
		session:      sess,
		conversation: conv,
		completer:    completer,
		window:       window,
		logger:       logger,
	}
}

// Submit sends text as a user message and appends the assistant's reply.
// Whitespace-only text is ignored and returns (nil, nil).
// On completion failure the user message stays in the log and the error wraps ErrCompletion.
func (s *Submitter) Submit(ctx context.Context, text string) (*models.Message, error) {
	return s.SubmitStream(ctx, text, nil)
}

// SubmitStream is Submit with a callback for streamed reply fragments.
func (s *Submitter) SubmitStream(ctx context.Context, text string, onToken func(string) error) (reply *models.Message, err error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	sess := s.session.Current()
	if sess.Credential == "" || sess.Identity.IsZero() {
		return nil, ErrNotAuthenticated
	}

	if !s.inflight.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.inflight.Store(false)

	userMsg := s.conversation.Append(models.RoleUser, text)
	s.conversation.SetReplyPending(true)
	defer s.conversation.SetReplyPending(false)

	log := s.logger.With("message_id", userMsg.ID, "folder", s.conversation.SelectedFolder())
	log.Info("submitting message", "preview", models.Preview(text, 60))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrCompletion, r)
			reply = nil
		}
		s.setLastError(err)
	}()

	result, err := s.completer.Complete(ctx, Request{
		Credential: sess.Credential,
		History:    s.conversation.History(s.window),
		Folder:     s.conversation.SelectedFolder(),
		OnToken:    onToken,
	})
	if err != nil {
		log.Warn("completion failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrCompletion, err)
	}

	msg := s.conversation.Append(models.RoleAssistant, result)
	log.Info("reply received", "reply_id", msg.ID, "length", len(result))
	return &msg, nil
}

// Busy reports whether a completion is in flight.
func (s *Submitter) Busy() bool {
	return s.inflight.Load()
}

// LastError returns the message of the most recent failed submission, or "" after a success.
func (s *Submitter) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Submitter) setLastError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastErr = err.Error()
	} else {
		s.lastErr = ""
	}
}
