// Package postgres persists engine snapshots to Postgres as JSONB rows,
// one per workspace and per session.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"zonecore/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.SnapshotStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	// Default DSN keeps parity with OpenSnapshotStore defaults while allowing overrides via env.
	defaultDSN = "postgres://localhost/zonecore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store is a Postgres-backed snapshot store.
type Store struct {
	db *sql.DB
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back
// to defaultDSN) and ensures the snapshot tables exist.
func NewStore(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS workspaces (
			id TEXT PRIMARY KEY,
			payload JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			user_id TEXT PRIMARY KEY,
			payload JSONB NOT NULL
		)`,
	} {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// SaveWorkspace implements domain.SnapshotStore.
func (s *Store) SaveWorkspace(ctx context.Context, snap domain.WorkspaceSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode workspace %s: %w", snap.ID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workspaces(id,payload) VALUES($1,$2) ON CONFLICT(id) DO UPDATE SET payload=EXCLUDED.payload`,
		snap.ID, payload)
	if err != nil {
		return fmt.Errorf("upsert workspace %s: %w", snap.ID, err)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workspaces: %w", err)
	}
	return out, nil
}

// DeleteWorkspace implements domain.SnapshotStore.
func (s *Store) DeleteWorkspace(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM workspaces WHERE id=$1`, id); err != nil {
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
		`INSERT INTO sessions(user_id,payload) VALUES($1,$2) ON CONFLICT(user_id) DO UPDATE SET payload=EXCLUDED.payload`,
		snap.UserID, payload)
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", snap.UserID, err)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// DeleteSession implements domain.SnapshotStore.
func (s *Store) DeleteSession(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id=$1`, userID); err != nil {
		return fmt.Errorf("delete session %s: %w", userID, err)
	}
	return nil
}

// Reset implements domain.SnapshotStore.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	for _, stmt := range []string{`DELETE FROM workspaces`, `DELETE FROM sessions`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("reset: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close implements domain.SnapshotStore.
func (s *Store) Close() error { return s.db.Close() }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
