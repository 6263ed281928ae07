package core

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"zonecore/internal/blob"
	"zonecore/pkg/domain"
)

// Service wraps the in-memory engine with snapshot persistence, metrics and
// optional archive export. Every successful mutation is persisted before the
// call returns, so a restart resumes from the last committed state.
type Service struct {
	store     *Store
	snapshots domain.SnapshotStore
	metrics   MetricsRecorder
	blobs     blob.Store
	log       zerolog.Logger
}

// ServiceOption customises a Service at construction time.
type ServiceOption func(*Service)

// WithMetrics installs a metrics recorder. Defaults to NopMetricsRecorder.
func WithMetrics(rec MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// WithBlobStore installs a blob store used for archive export.
func WithBlobStore(store blob.Store) ServiceOption {
	return func(s *Service) { s.blobs = store }
}

// NewService assembles a Service around the given engine store and snapshot
// backend.
func NewService(store *Store, snapshots domain.SnapshotStore, log zerolog.Logger, opts ...ServiceOption) *Service {
	svc := &Service{
		store:     store,
		snapshots: snapshots,
		metrics:   NopMetricsRecorder{},
		log:       log.With().Str("component", "service").Logger(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Store exposes the underlying engine store for read-only callers and tests.
func (s *Service) Store() *Store { return s.store }

// Load hydrates the engine from the snapshot backend. Call once at startup
// before serving traffic.
func (s *Service) Load(ctx context.Context) error {
	workspaces, err := s.snapshots.LoadWorkspaces(ctx)
	if err != nil {
		return fmt.Errorf("load workspaces: %w", err)
	}
	sessions, err := s.snapshots.LoadSessions(ctx)
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}
	if err := s.store.ImportState(workspaces, sessions); err != nil {
		return fmt.Errorf("import state: %w", err)
	}
	s.log.Info().Int("workspaces", len(workspaces)).Int("sessions", len(sessions)).Msg("state hydrated")
	return nil
}

func (s *Service) observe(ctx context.Context, operation string, start time.Time, err error) {
	s.metrics.Observe(ctx, operation, err == nil, time.Since(start))
}

// persist writes the named workspace and the user's session back to the
// snapshot backend. Either id may be empty when the mutation touched only
// one of the two.
func (s *Service) persist(ctx context.Context, userID, workspaceID string) error {
	if workspaceID != "" {
		if snap, ok := s.store.ExportWorkspace(workspaceID); ok {
			if err := s.snapshots.SaveWorkspace(ctx, snap); err != nil {
				return fmt.Errorf("persist workspace %s: %w", workspaceID, err)
			}
		}
	}
	if userID != "" {
		if snap, ok := s.store.ExportSession(userID); ok {
			if err := s.snapshots.SaveSession(ctx, snap); err != nil {
				return fmt.Errorf("persist session %s: %w", userID, err)
			}
		}
	}
	return nil
}

// AddRegion creates a region and persists the result.
func (s *Service) AddRegion(ctx context.Context, userID, workspaceID, name string, color domain.Color) (domain.Region, error) {
	start := time.Now()
	region, err := s.store.AddRegion(userID, workspaceID, name, color)
	if err == nil {
		err = s.persist(ctx, userID, workspaceID)
	}
	s.observe(ctx, "add_region", start, err)
	return region, err
}

// EditRegion renames or recolors a region. The bool reports whether anything
// changed; an unchanged edit is not persisted and produces no history entry.
func (s *Service) EditRegion(ctx context.Context, userID, workspaceID string, id domain.RegionID, name *string, color *domain.Color) (domain.Region, bool, error) {
	start := time.Now()
	region, changed, err := s.store.EditRegion(userID, workspaceID, id, name, color)
	if err == nil && changed {
		err = s.persist(ctx, userID, workspaceID)
	}
	s.observe(ctx, "edit_region", start, err)
	return region, changed, err
}

// DeleteRegion removes a region, remapping its painted cells to the
// replacement region.
func (s *Service) DeleteRegion(ctx context.Context, userID, workspaceID string, id, replacement domain.RegionID) error {
	start := time.Now()
	err := s.store.DeleteRegion(userID, workspaceID, id, replacement)
	if err == nil {
		err = s.persist(ctx, userID, workspaceID)
	}
	s.observe(ctx, "delete_region", start, err)
	return err
}

// MoveRegion nudges a region one step up or down in display order.
func (s *Service) MoveRegion(ctx context.Context, userID, workspaceID string, id domain.RegionID, delta int) (bool, error) {
	start := time.Now()
	moved, err := s.store.MoveRegion(userID, workspaceID, id, delta)
	if err == nil && moved {
		err = s.persist(ctx, userID, workspaceID)
	}
	s.observe(ctx, "move_region", start, err)
	return moved, err
}

// FillRectangle assigns every grid cell intersecting the rectangle to the
// target region and returns the number of cells whose assignment changed.
func (s *Service) FillRectangle(ctx context.Context, userID, workspaceID, surface string, target domain.RegionID, rect domain.Rect) (int, error) {
	start := time.Now()
	count, err := s.store.FillRectangle(userID, workspaceID, surface, target, rect)
	if err == nil && count > 0 {
		err = s.persist(ctx, userID, workspaceID)
	}
	s.observe(ctx, "fill_rectangle", start, err)
	return count, err
}

// SetGrid replaces a surface's grid descriptor, optionally reprojecting the
// painted cells into the new geometry.
func (s *Service) SetGrid(ctx context.Context, userID, workspaceID, surface string, grid domain.GridDescriptor, reproject bool) (bool, error) {
	start := time.Now()
	changed, err := s.store.SetGrid(userID, workspaceID, surface, grid, reproject)
	if err == nil && changed {
		err = s.persist(ctx, userID, workspaceID)
	}
	s.observe(ctx, "set_grid", start, err)
	return changed, err
}

// Undo reverts the user's most recent command. It returns the command
// description and false when there was nothing to undo.
func (s *Service) Undo(ctx context.Context, userID string) (string, bool, error) {
	start := time.Now()
	desc, workspaceID, ok := s.store.Undo(userID)
	var err error
	if ok {
		err = s.persist(ctx, userID, workspaceID)
	}
	s.observe(ctx, "undo", start, err)
	return desc, ok, err
}

// Redo re-applies the user's most recently undone command.
func (s *Service) Redo(ctx context.Context, userID string) (string, bool, error) {
	start := time.Now()
	desc, workspaceID, ok := s.store.Redo(userID)
	var err error
	if ok {
		err = s.persist(ctx, userID, workspaceID)
	}
	s.observe(ctx, "redo", start, err)
	return desc, ok, err
}

// SetSelectedRegion changes the user's active region and persists the session.
func (s *Service) SetSelectedRegion(ctx context.Context, userID, workspaceID string, id domain.RegionID) error {
	if err := s.store.SetSelectedRegion(userID, workspaceID, id); err != nil {
		return err
	}
	return s.persist(ctx, userID, "")
}

// SetSelectedTool changes the user's active tool and persists the session.
func (s *Service) SetSelectedTool(ctx context.Context, userID, tool string) error {
	if err := s.store.SetSelectedTool(userID, tool); err != nil {
		return err
	}
	return s.persist(ctx, userID, "")
}

// SetVisibility changes the user's overlay visibility level and persists the
// session.
func (s *Service) SetVisibility(ctx context.Context, userID string, level int) error {
	if err := s.store.SetVisibility(userID, level); err != nil {
		return err
	}
	return s.persist(ctx, userID, "")
}

// SessionInfo reports the user's current session state.
func (s *Service) SessionInfo(userID string) SessionInfo {
	return s.store.SessionInfo(userID)
}

// GetRegions lists a workspace's regions in display order.
func (s *Service) GetRegions(workspaceID string) []domain.Region {
	return s.store.GetRegions(workspaceID)
}

// GetRegion looks up a single region.
func (s *Service) GetRegion(workspaceID string, id domain.RegionID) (domain.Region, bool) {
	return s.store.GetRegion(workspaceID, id)
}

// GetGrid returns the grid descriptor for a surface.
func (s *Service) GetGrid(workspaceID, surface string) domain.GridDescriptor {
	return s.store.GetGrid(workspaceID, surface)
}

// CellAt reports the region assigned to a cell.
func (s *Service) CellAt(workspaceID, surface string, cell domain.Cell) domain.RegionID {
	return s.store.CellAt(workspaceID, surface, cell)
}

// WorldToCell maps world coordinates to the containing cell on a surface.
func (s *Service) WorldToCell(workspaceID, surface string, worldX, worldY float64) domain.Cell {
	return s.store.WorldToCell(workspaceID, surface, worldX, worldY)
}

// ResetWorkspace discards a workspace's state in memory and in the snapshot
// backend.
func (s *Service) ResetWorkspace(ctx context.Context, workspaceID string) error {
	start := time.Now()
	s.store.ResetWorkspace(workspaceID)
	err := s.snapshots.DeleteWorkspace(ctx, workspaceID)
	s.observe(ctx, "reset_workspace", start, err)
	return err
}

// ResetUser discards a user's session in memory and in the snapshot backend.
func (s *Service) ResetUser(ctx context.Context, userID string) error {
	start := time.Now()
	s.store.ResetUser(userID)
	err := s.snapshots.DeleteSession(ctx, userID)
	s.observe(ctx, "reset_user", start, err)
	return err
}

// ResetAll discards all engine state in memory and in the snapshot backend.
func (s *Service) ResetAll(ctx context.Context) error {
	start := time.Now()
	s.store.ResetAll()
	err := s.snapshots.Reset(ctx)
	s.observe(ctx, "reset_all", start, err)
	return err
}

// ExportArchive writes a point-in-time archive of all engine state to the
// configured blob store and returns the object key.
func (s *Service) ExportArchive(ctx context.Context) (string, error) {
	if s.blobs == nil {
		return "", fmt.Errorf("no blob store configured")
	}
	start := time.Now()
	workspaces, sessions := s.store.ExportState()
	key, err := blob.WriteArchive(ctx, s.blobs, blob.Archive{
		Version:    blob.ArchiveVersion,
		CreatedAt:  time.Now().UTC(),
		Workspaces: workspaces,
		Sessions:   sessions,
	})
	s.observe(ctx, "export_archive", start, err)
	if err != nil {
		return "", err
	}
	s.log.Info().Str("key", key).Msg("archive exported")
	return key, nil
}

// ImportArchive replaces all engine state with the contents of a previously
// exported archive and persists the restored state.
func (s *Service) ImportArchive(ctx context.Context, key string) error {
	if s.blobs == nil {
		return fmt.Errorf("no blob store configured")
	}
	start := time.Now()
	err := s.importArchive(ctx, key)
	s.observe(ctx, "import_archive", start, err)
	return err
}

func (s *Service) importArchive(ctx context.Context, key string) error {
	arch, err := blob.ReadArchive(ctx, s.blobs, key)
	if err != nil {
		return err
	}
	s.store.ResetAll()
	if err := s.snapshots.Reset(ctx); err != nil {
		return fmt.Errorf("reset snapshots: %w", err)
	}
	if err := s.store.ImportState(arch.Workspaces, arch.Sessions); err != nil {
		return fmt.Errorf("import archive state: %w", err)
	}
	for _, ws := range arch.Workspaces {
		if err := s.persist(ctx, "", ws.ID); err != nil {
			return err
		}
	}
	for _, sess := range arch.Sessions {
		if err := s.persist(ctx, sess.UserID, ""); err != nil {
			return err
		}
	}
	return nil
}
