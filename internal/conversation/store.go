// Package conversation holds the ordered message log, the reply-pending flag,
// and the selected knowledge-base folder.
package conversation

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/kbchat/internal/models"
	"github.com/raphaelgruber/kbchat/internal/storage"
)

// DefaultFolder is used when no folder was stored for this session.
const DefaultFolder = "itg"

// Store is the conversation state for one client session.
// The log is append-only and timestamps never decrease.
type Store struct {
	mu           sync.RWMutex
	messages     []models.Message
	replyPending bool
	folder       string

	storage storage.Storage
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides message id generation.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// NewStore creates a store, restoring the selected folder from st.
// defaultFolder is used when st holds nothing (or cannot be read); "" means DefaultFolder.
func NewStore(ctx context.Context, st storage.Storage, defaultFolder string, logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultFolder == "" {
		defaultFolder = DefaultFolder
	}

	s := &Store{
		folder:  defaultFolder,
		storage: st,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	if st != nil {
		stored, ok, err := st.Get(ctx, storage.KeySelectedFolder)
		switch {
		case err != nil:
			logger.Warn("failed to read stored folder, using default", "error", err, "folder", defaultFolder)
		case ok && stored != "":
			s.folder = stored
		}
	}

	return s
}

// Append stamps and appends a new message, returning it.
func (s *Store) Append(role models.Role, content string) models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := s.now()
	if n := len(s.messages); n > 0 && createdAt.Before(s.messages[n-1].CreatedAt) {
		createdAt = s.messages[n-1].CreatedAt
	}

	msg := models.Message{
		ID:        s.newID(),
		Content:   content,
		Role:      role,
		CreatedAt: createdAt,
	}
	s.messages = append(s.messages, msg)
	return msg
}

// Messages returns a copy of the log in insertion order.
func (s *Store) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// History returns the most recent window messages (all of them when window <= 0).
func (s *Store) History(window int) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if window > 0 && len(s.messages) > window {
		start = len(s.messages) - window
	}
	out := make([]models.Message, len(s.messages)-start)
	copy(out, s.messages[start:])
	return out
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// SetReplyPending records whether a completion request is outstanding.
func (s *Store) SetReplyPending(pending bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replyPending = pending
}

// ReplyPending reports whether a completion request is outstanding.
func (s *Store) ReplyPending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.replyPending
}

// SetSelectedFolder writes name through to session storage, then updates memory.
// A storage failure is logged and swallowed; the in-session value always changes.
// A blank name is ignored, matching how NewStore treats a stored blank value.
func (s *Store) SetSelectedFolder(ctx context.Context, name string) {
	if strings.TrimSpace(name) == "" {
		s.logger.Debug("ignoring blank folder name", "folder", s.SelectedFolder())
		return
	}

	if s.storage != nil {
		if err := s.storage.Set(ctx, storage.KeySelectedFolder, name); err != nil {
			s.logger.Warn("failed to persist selected folder", "error", err, "folder", name)
		}
	}

	s.mu.Lock()
	s.folder = name
	s.mu.Unlock()

	s.logger.Debug("selected folder changed", "folder", name)
}

// SelectedFolder returns the current folder.
func (s *Store) SelectedFolder() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.folder
}
