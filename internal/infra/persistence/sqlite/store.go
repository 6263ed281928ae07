// Package sqlite persists engine snapshots to an embedded SQLite file as
// JSON blobs, one row per workspace and per session.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"zonecore/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.SnapshotStore = (*Store)(nil)

// Store is a SQLite-backed snapshot store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the database file and ensures the schema.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "zonecore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS workspaces (
			id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			user_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		)`,
	} {
		if _, err := db.Exec(ddl); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// SaveWorkspace implements domain.SnapshotStore.
func (s *Store) SaveWorkspace(ctx context.Context, snap domain.WorkspaceSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode workspace %s: %w", snap.ID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workspaces (id, payload) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET payload = excluded.payload`,
		snap.ID, payload)
	if err != nil {
		return fmt.Errorf("save workspace %s: %w", snap.ID, err)
	}
	return nil
}

// LoadWorkspaces implements domain.SnapshotStore.
func (s *Store) LoadWorkspaces(ctx context.Context) ([]domain.WorkspaceSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, payload FROM workspaces ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select workspaces: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.WorkspaceSnapshot
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		var snap domain.WorkspaceSnapshot
		if err := json.Unmarshal(payload, &snap); err != nil {
			return nil, fmt.Errorf("decode workspace %s: %w", id, err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// DeleteWorkspace implements domain.SnapshotStore.
func (s *Store) DeleteWorkspace(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM workspaces WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete workspace %s: %w", id, err)
	}
	return nil
}

// SaveSession implements domain.SnapshotStore.
func (s *Store) SaveSession(ctx context.Context, snap domain.SessionSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", snap.UserID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (user_id, payload) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET payload = excluded.payload`,
		snap.UserID, payload)
	if err != nil {
		return fmt.Errorf("save session %s: %w", snap.UserID, err)
	}
	return nil
}

// LoadSessions implements domain.SnapshotStore.
func (s *Store) LoadSessions(ctx context.Context) ([]domain.SessionSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, payload FROM sessions ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("select sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.SessionSnapshot
	for rows.Next() {
		var user string
		var payload []byte
		if err := rows.Scan(&user, &payload); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		var snap domain.SessionSnapshot
		if err := json.Unmarshal(payload, &snap); err != nil {
			return nil, fmt.Errorf("decode session %s: %w", user, err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// DeleteSession implements domain.SnapshotStore.
func (s *Store) DeleteSession(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete session %s: %w", userID, err)
	}
	return nil
}

// Reset implements domain.SnapshotStore.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, stmt := range []string{`DELETE FROM workspaces`, `DELETE FROM sessions`} {
		if _, err := tx.Exec(stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("reset: %w", err)
		}
	}
	return tx.Commit()
}

// Close implements domain.SnapshotStore.
func (s *Store) Close() error { return s.db.Close() }
