// Package storage provides the session-scoped key/value store backing user preferences.
package storage

import (
	"context"
	"sync"
)

// KeySelectedFolder holds the currently selected knowledge-base partition.
const KeySelectedFolder = "selectedFolder"

// Storage is a small string key/value store scoped to one client session.
type Storage interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes value under key synchronously.
	Set(ctx context.Context, key, value string) error
	// Close releases underlying resources.
	Close() error
}

// Memory is a process-local Storage. Values are lost when the process exits.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
	closed bool
}

// Compile-time check that Memory implements Storage.
var _ Storage = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return "", false, ErrClosed
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return wrapWrite(key, ErrClosed)
	}
	m.values[key] = value
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}
