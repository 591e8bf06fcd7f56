// internal/storage/memory.go
// Package storage persists per-user notification snapshots so the
// notification list survives restarts. It provides in-memory and
// PostgreSQL implementations of the Store interface.
package storage

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/TERRENCEKGETEDI/akhizwe-feedsync/internal/model"
)

// Standard errors returned by the storage layer
var (
	ErrNotFound = errors.New("not found") // Returned when no snapshot exists for a user
)

// Snapshot is the persisted state of a user's notification list.
type Snapshot struct {
	Records     []model.NotificationRecord `json:"notifications"`
	Unread      int                        `json:"unreadCount"`
	Preferences model.Preferences          `json:"preferences,omitempty"`
	SavedAt     time.Time                  `json:"savedAt"`
}

// Store defines the storage operations required by the notification manager.
type Store interface {
	LoadSnapshot(ctx context.Context, userID string) (*Snapshot, error)   // Load the latest snapshot of a user
	SaveSnapshot(ctx context.Context, userID string, snap Snapshot) error // Replace the snapshot of a user
	DeleteSnapshot(ctx context.Context, userID string) error              // Drop the snapshot of a user
	Ping(ctx context.Context) error                                       // Report whether the backend is reachable
	Close()                                                               // Release resources
}

// memory implements the Store interface using in-memory storage.
// It's intended for development and testing purposes.
type memory struct {
	mu        sync.RWMutex        // Protects concurrent access to snapshots
	snapshots map[string]Snapshot // Map of user ID to snapshot
}

// NewMemory creates a new in-memory storage implementation.
func NewMemory() Store {
	return &memory{snapshots: make(map[string]Snapshot)}
}

func (m *memory) LoadSnapshot(ctx context.Context, userID string) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, exists := m.snapshots[userID]
	if !exists {
		return nil, ErrNotFound
	}
	out := clone(snap)
	return &out, nil
}

func (m *memory) SaveSnapshot(ctx context.Context, userID string, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now().UTC()
	}
	m.snapshots[userID] = clone(snap)
	return nil
}

func (m *memory) DeleteSnapshot(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.snapshots[userID]; !exists {
		return ErrNotFound
	}
	delete(m.snapshots, userID)
	return nil
}

func (m *memory) Ping(ctx context.Context) error { return ctx.Err() }

func (m *memory) Close() {}

// clone copies the record slice and preferences map so callers never share
// storage with the store.
func clone(s Snapshot) Snapshot {
	s.Records = append([]model.NotificationRecord(nil), s.Records...)
	if s.Preferences != nil {
		s.Preferences = maps.Clone(s.Preferences)
	}
	return s
}
