// Package session holds the authenticated identity and bearer credential for the process.
package session

import (
	"sync/atomic"

	"github.com/raphaelgruber/kbchat/internal/models"
)

// Session is an immutable snapshot of the authentication state.
// Identity and Credential are either both present or both absent.
type Session struct {
	Identity   models.Identity
	Credential models.Credential
}

// Store is the single source of truth for whether the user is authenticated.
// Writes swap a whole snapshot, so readers never observe a half-written pair.
type Store struct {
	current atomic.Pointer[Session]
}

// NewStore creates an empty store.
func NewStore() *Store {
	s := &Store{}
	s.current.Store(&Session{})
	return s
}

// Set replaces the identity and credential together.
// An empty credential or zero identity leaves the store cleared, keeping the pair invariant.
func (s *Store) Set(identity models.Identity, credential models.Credential) {
	if identity.IsZero() || credential == "" {
		s.Clear()
		return
	}
	s.current.Store(&Session{Identity: identity, Credential: credential})
}

// Clear drops both the identity and the credential.
func (s *Store) Clear() {
	s.current.Store(&Session{})
}

// IsAuthenticated reports whether an identity and credential are held.
func (s *Store) IsAuthenticated() bool {
	cur := s.current.Load()
	return !cur.Identity.IsZero() && cur.Credential != ""
}

// Current returns the last written snapshot.
func (s *Store) Current() Session {
	return *s.current.Load()
}

// Identity returns the authenticated identity, or the zero value.
func (s *Store) Identity() models.Identity {
	return s.current.Load().Identity
}

// Credential returns the bearer token, or "".
func (s *Store) Credential() models.Credential {
	return s.current.Load().Credential
}
