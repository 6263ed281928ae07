// Package memory provides an in-memory snapshot store used for tests and
// ephemeral environments.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"zonecore/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.SnapshotStore = (*Store)(nil)

// Store keeps snapshots in process memory. Snapshots are deep-copied through
// JSON on both save and load so callers can never alias stored state.
type Store struct {
	mu         sync.RWMutex
	workspaces map[string][]byte
	sessions   map[string][]byte
}

// NewStore constructs an empty in-memory snapshot store.
func NewStore() *Store {
	return &Store{
		workspaces: make(map[string][]byte),
		sessions:   make(map[string][]byte),
	}
}

// SaveWorkspace implements domain.SnapshotStore.
func (s *Store) SaveWorkspace(_ context.Context, snap domain.WorkspaceSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode workspace %s: %w", snap.ID, err)
	}
	s.mu.Lock()
	s.workspaces[snap.ID] = payload
	s.mu.Unlock()
	return nil
}

// LoadWorkspaces implements domain.SnapshotStore.
func (s *Store) LoadWorkspaces(context.Context) ([]domain.WorkspaceSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.workspaces))
	for id := range s.workspaces {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]domain.WorkspaceSnapshot, 0, len(ids))
	for _, id := range ids {
		var snap domain.WorkspaceSnapshot
		if err := json.Unmarshal(s.workspaces[id], &snap); err != nil {
			return nil, fmt.Errorf("decode workspace %s: %w", id, err)
		}
		out = append(out, snap)
	}
	return out, nil
}

// DeleteWorkspace implements domain.SnapshotStore.
func (s *Store) DeleteWorkspace(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.workspaces, id)
	s.mu.Unlock()
	return nil
}

// SaveSession implements domain.SnapshotStore.
func (s *Store) SaveSession(_ context.Context, snap domain.SessionSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", snap.UserID, err)
	}
	s.mu.Lock()
	s.sessions[snap.UserID] = payload
	s.mu.Unlock()
	return nil
}

// LoadSessions implements domain.SnapshotStore.
func (s *Store) LoadSessions(context.Context) ([]domain.SessionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]string, 0, len(s.sessions))
	for user := range s.sessions {
		users = append(users, user)
	}
	sort.Strings(users)
	out := make([]domain.SessionSnapshot, 0, len(users))
	for _, user := range users {
		var snap domain.SessionSnapshot
		if err := json.Unmarshal(s.sessions[user], &snap); err != nil {
			return nil, fmt.Errorf("decode session %s: %w", user, err)
		}
		out = append(out, snap)
	}
	return out, nil
}

// DeleteSession implements domain.SnapshotStore.
func (s *Store) DeleteSession(_ context.Context, userID string) error {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
	return nil
}

// Reset implements domain.SnapshotStore.
func (s *Store) Reset(context.Context) error {
	s.mu.Lock()
	s.workspaces = make(map[string][]byte)
	s.sessions = make(map[string][]byte)
	s.mu.Unlock()
	return nil
}

// Close implements domain.SnapshotStore.
func (s *Store) Close() error { return nil }
