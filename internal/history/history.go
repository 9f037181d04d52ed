// Package history stores per-session conversation turns.
package history

import (
	"context"
	"sync"

	"github.com/hyperjump/kotae/internal/models"
)

// Store keeps conversation turns per session. Appends record a full exchange;
// Recent returns the trailing n turns, oldest first.
type Store interface {
	Append(ctx context.Context, sessionID, userMsg, assistantMsg string) error
	Recent(ctx context.Context, sessionID string, n int) ([]models.Turn, error)
	Close() error
}

// MemoryStore is the default in-process backend. Sessions live for the
// lifetime of the process; use the redis backend when turns must survive
// restarts or be shared across replicas.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]models.Turn
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]models.Turn)}
}

// Append records one user/assistant exchange.
func (s *MemoryStore) Append(ctx context.Context, sessionID, userMsg, assistantMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID],
		models.Turn{Role: models.RoleUser, Content: userMsg},
		models.Turn{Role: models.RoleAssistant, Content: assistantMsg},
	)
	return nil
}

// Recent returns up to n trailing turns for the session, oldest first.
func (s *MemoryStore) Recent(ctx context.Context, sessionID string, n int) ([]models.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := s.sessions[sessionID]
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]models.Turn, len(turns))
	copy(out, turns)
	return out, nil
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error { return nil }
