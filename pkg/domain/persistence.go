package domain

import "context"

// SnapshotStore is a minimal abstraction over durable backends. The engine
// snapshots each workspace and session after every committed mutation and
// hydrates from the store on startup.
type SnapshotStore interface {
	// SaveWorkspace persists one workspace snapshot, replacing any previous one.
	SaveWorkspace(ctx context.Context, snap WorkspaceSnapshot) error
	// LoadWorkspaces returns every persisted workspace snapshot.
	LoadWorkspaces(ctx context.Context) ([]WorkspaceSnapshot, error)
	// DeleteWorkspace removes one workspace snapshot.
	DeleteWorkspace(ctx context.Context, id string) error
	// SaveSession persists one session snapshot, replacing any previous one.
	SaveSession(ctx context.Context, snap SessionSnapshot) error
	// LoadSessions returns every persisted session snapshot.
	LoadSessions(ctx context.Context) ([]SessionSnapshot, error)
	// DeleteSession removes one session snapshot.
	DeleteSession(ctx context.Context, userID string) error
	// Reset removes all persisted state.
	Reset(ctx context.Context) error
	// Close releases backend resources.
	Close() error
}
