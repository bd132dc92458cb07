// internal/store/memory.go
//
// In-memory implementation of the session Store interface.
// This is a lightweight persistence layer for live game sessions;
// durable history lives in SQLite, not here.
//
// Characteristics:
//   - Stores *game.State objects keyed by session ID in a map.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - Sessions are fully independent; there is no cross-session data.
//   - State is lost when the process restarts.
//   - ErrNotFound is returned for missing session IDs on Get().

package store

import (
	"context"
	"errors"
	"sync"

	"github.com/dhpark-dev/wordchain/internal/game"
)

// ErrNotFound is returned when no session exists for the given ID.
var ErrNotFound = errors.New("session not found")

// Store defines the persistence interface for game sessions.
// Implementations may be backed by memory (this package), Redis, SQL, etc.
type Store interface {
	// Save persists or updates a session.
	Save(ctx context.Context, s *game.State) error

	// Get retrieves a session by ID.
	// Returns ErrNotFound if the session does not exist.
	Get(ctx context.Context, id string) (*game.State, error)

	// Delete removes a session; deleting a missing ID is a no-op.
	// Used when a reset replaces a session wholesale.
	Delete(ctx context.Context, id string) error
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu       sync.RWMutex           // guards sessions map
	sessions map[string]*game.State // keyed by State.ID
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{sessions: make(map[string]*game.State)}
}

// Save adds or updates the session in the map.
func (m *memory) Save(ctx context.Context, s *game.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

// Get looks up a session by ID.
func (m *memory) Get(ctx context.Context, id string) (*game.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, ErrNotFound
}

// Delete removes the session from the map.
func (m *memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}
