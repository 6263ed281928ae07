package core

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"zonecore/pkg/domain"
)

// DefaultUndoCapacity bounds each user's undo stack. Pushing beyond it evicts
// the oldest entry. Redo needs no bound of its own: its size is capped by the
// undo history that produced it.
const DefaultUndoCapacity = 100

// Store owns all engine state: workspaces (regions, grids, cell maps) and
// user sessions (selection, undo/redo stacks). It is the single mutation
// point; every change flows through a Command and commits under the store
// lock, so one user action runs to completion before the next is processed.
type Store struct {
	mu           sync.Mutex
	workspaces   map[string]*workspaceState
	sessions     map[string]*sessionState
	notifier     *Notifier
	log          zerolog.Logger
	nowFn        func() time.Time
	undoCapacity int
}

// NewStore constructs an empty store that reports committed changes through
// the given notifier.
func NewStore(notifier *Notifier, log zerolog.Logger) *Store {
	if notifier == nil {
		notifier = NewNotifier(log)
	}
	return &Store{
		workspaces:   make(map[string]*workspaceState),
		sessions:     make(map[string]*sessionState),
		notifier:     notifier,
		log:          log,
		nowFn:        func() time.Time { return time.Now().UTC() },
		undoCapacity: DefaultUndoCapacity,
	}
}

// workspace returns the state for a workspace id, creating and seeding it on
// first access.
func (s *Store) workspace(id string) *workspaceState {
	ws, ok := s.workspaces[id]
	if !ok {
		ws = newWorkspaceState(id)
		s.workspaces[id] = ws
	}
	return ws
}

// session returns the state for a user id, creating it with defaults on first
// access.
func (s *Store) session(userID string) *sessionState {
	sess, ok := s.sessions[userID]
	if !ok {
		sess = newSessionState(userID)
		s.sessions[userID] = sess
	}
	return sess
}

/// sessionIn is session plus workspace membership: acting in a workspace makes
// the user a member of it.
func (s *Store) sessionIn(userID, workspaceID string) *sessionState {
	sess := s.session(userID)
	sess.workspaceID = workspaceID
	return sess
}

// clearSelectionsOf resets any selection pointing at a removed region back to
// Empty.
func (s *Store) clearSelectionsOf(workspaceID string, id domain.RegionID) {
	for _, sess := range s.sessions {
		if sess.workspaceID == workspaceID && sess.selectedRegion == id {
			sess.selectedRegion = domain.EmptyRegionID
		}
	}
}

// execute commits a validated command: perform it, push it on the acting
// user's undo stack, and clear their redo stack. A new action invalidates any
// line of history that no longer applies to the current state.
func (s *Store) execute(userID, workspaceID string, cmd Command) {
	// Membership is established before perform so effects that touch the
	// acting user's own session (first-region auto-select) include them.
	sess := s.sessionIn(userID, workspaceID)
	cmd.perform(s)
	sess.pushUndo(cmd, s.undoCapacity)
	sess.redo = nil
}

// AddRegion allocates the next region id and inserts a new region. The
// default order is the id; orders are renormalized to 1..N on commit.
func (s *Store) AddRegion(userID, workspaceID, name string, color domain.Color) (domain.Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := color.Validate(); err != nil {
		return domain.Region{}, err
	}
	ws := s.workspace(workspaceID)
	region := domain.Region{
		ID:    ws.nextRegionID,
		Name:  name,
		Color: color,
		Order: float64(ws.nextRegionID),
	}
	cmd := &regionAddCommand{Workspace: workspaceID, User: userID, At: s.nowFn(), Region: region}
	s.execute(userID, workspaceID, cmd)
	created, _ := ws.region(region.ID)
	return created, nil
}

// EditRegion updates a region's name and/or color. Nil arguments leave the
// field unchanged. When neither field actually differs the call is a silent
// no-op: no event fires and no undo entry is created.
func (s *Store) EditRegion(userID, workspaceID string, id domain.RegionID, name *string, color *domain.Color) (domain.Region, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == domain.EmptyRegionID {
		return domain.Region{}, false, domain.ErrReservedRegion
	}
	ws := s.workspace(workspaceID)
	before, ok := ws.region(id)
	if !ok {
		return domain.Region{}, false, fmt.Errorf("%w: id %d", domain.ErrRegionNotFound, id)
	}
	after := before
	if name != nil {
		after.Name = *name
	}
	if color != nil {
		if err := color.Validate(); err != nil {
			return domain.Region{}, false, err
		}
		after.Color = *color
	}
	if after.Name == before.Name && after.Color == before.Color {
		return before, false, nil
	}
	cmd := &regionEditCommand{Workspace: workspaceID, User: userID, At: s.nowFn(), Before: before, After: after}
	s.execute(userID, workspaceID, cmd)
	return after, true, nil
}

// DeleteRegion removes a region and reassigns every cell holding it, on every
// surface of the workspace, to the replacement region. A replacement of Empty
// unassigns the cells. The whole operation commits atomically.
func (s *Store) DeleteRegion(userID, workspaceID string, id, replacement domain.RegionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == domain.EmptyRegionID {
		return domain.ErrReservedRegion
	}
	ws := s.workspace(workspaceID)
	region, ok := ws.region(id)
	if !ok {
		return fmt.Errorf("%w: id %d", domain.ErrRegionNotFound, id)
	}
	if replacement != domain.EmptyRegionID {
		if replacement == id {
			return fmt.Errorf("replacement region %d is the region being deleted", id)
		}
		if _, ok := ws.region(replacement); !ok {
			return fmt.Errorf("replacement region: %w: id %d", domain.ErrRegionNotFound, replacement)
		}
	}
	cmd := &regionDeleteCommand{
		Workspace:    workspaceID,
		User:         userID,
		At:           s.nowFn(),
		Region:       region,
		Replacement:  replacement,
		BeforeOrders: ws.orderMap(),
		Affected:     ws.cellRefs(id),
	}
	s.execute(userID, workspaceID, cmd)
	return nil
}

// MoveRegion re-ranks a region by delta positions among non-empty regions.
// The target's order is nudged by delta plus a fractional half step past its
// neighbors, then all orders are renormalized to dense integers, so a single
// move can span multiple positions without pairwise swaps. A move that lands
// where it started reports false and leaves no undo entry.
func (s *Store) MoveRegion(userID, workspaceID string, id domain.RegionID, delta int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == domain.EmptyRegionID {
		return false, domain.ErrReservedRegion
	}
	ws := s.workspace(workspaceID)
	region, ok := ws.region(id)
	if !ok {
		return false, fmt.Errorf("%w: id %d", domain.ErrRegionNotFound, id)
	}
	if delta == 0 {
		return false, nil
	}
	before := ws.orderMap()
	after := nudgedOrders(before, id, delta)
	if ordersEqual(before, after) {
		return false, nil
	}
	cmd := &regionMoveCommand{
		Workspace: workspaceID,
		User:      userID,
		At:        s.nowFn(),
		Region:    id,
		Name:      region.Name,
		Before:    before,
		After:     after,
	}
	s.execute(userID, workspaceID, cmd)
	return true, nil
}

// nudgedOrders applies the fractional nudge to the target and renormalizes to
// dense orders 1..N. Ties sort by id; the tie-break is an implementation
// detail, not a contract.
func nudgedOrders(before map[domain.RegionID]float64, target domain.RegionID, delta int) map[domain.RegionID]float64 {
	nudged := make(map[domain.RegionID]float64, len(before))
	for id, order := range before {
		nudged[id] = order
	}
	half := 0.5
	if delta < 0 {
		half = -0.5
	}
	nudged[target] = before[target] + float64(delta) + half

	ids := make([]domain.RegionID, 0, len(nudged))
	for id := range nudged {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if nudged[ids[i]] != nudged[ids[j]] {
			return nudged[ids[i]] < nudged[ids[j]]
		}
		return ids[i] < ids[j]
	})
	after := make(map[domain.RegionID]float64, len(ids))
	for i, id := range ids {
		after[id] = float64(i + 1)
	}
	return after
}

func ordersEqual(a, b map[domain.RegionID]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for id, order := range a {
		if b[id] != order {
			return false
		}
	}
	return true
}

// FillRectangle assigns a region (or Empty, meaning erase) to every cell of
// the grid-aligned inclusive range covered by a world-space rectangle. Only
// cells whose assignment actually differs are touched; the changed count is
// returned, and a count of zero creates no undo entry.
func (s *Store) FillRectangle(userID, workspaceID, surface string, target domain.RegionID, rect domain.Rect) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws := s.workspace(workspaceID)
	var targetName string
	if target != domain.EmptyRegionID {
		region, ok := ws.region(target)
		if !ok {
			return 0, fmt.Errorf("%w: id %d", domain.ErrRegionNotFound, target)
		}
		targetName = region.Name
	}
	grid := ws.grid(surface)
	r := rect.Normalized()
	first := grid.CellAt(r.MinX, r.MinY)
	last := grid.CellAt(r.MaxX, r.MaxY)
	m := ws.cells(surface)
	var writes []cellWrite
	for y := first.Y; y <= last.Y; y++ {
		for x := first.X; x <= last.X; x++ {
			cell := domain.Cell{X: x, Y: y}
			if prior := m.Get(cell); prior != target {
				writes = append(writes, cellWrite{Cell: cell, Prior: prior})
			}
		}
	}
	if len(writes) == 0 {
		return 0, nil
	}
	cmd := &fillCellsCommand{
		Workspace:  workspaceID,
		User:       userID,
		At:         s.nowFn(),
		Surface:    surface,
		Target:     target,
		TargetName: targetName,
		Writes:     writes,
	}
	s.execute(userID, workspaceID, cmd)
	return len(writes), nil
}

// SetGrid replaces a surface's grid descriptor. With reproject set, existing
// cell assignments are resampled onto the new geometry in the same command;
// otherwise they keep their integer coordinates under the new grid. Setting
// an identical grid is a no-op.
func (s *Store) SetGrid(userID, workspaceID, surface string, grid domain.GridDescriptor, reproject bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := grid.Validate(); err != nil {
		return false, err
	}
	ws := s.workspace(workspaceID)
	old := ws.grid(surface)
	if old == grid {
		return false, nil
	}
	var cmd Command
	if reproject {
		before := ws.cells(surface)
		cmd = &reprojectCommand{
			Workspace:   workspaceID,
			User:        userID,
			At:          s.nowFn(),
			Surface:     surface,
			BeforeGrid:  old,
			AfterGrid:   grid,
			BeforeCells: before.Encode(),
			AfterCells:  domain.Reproject(before, old, grid).Encode(),
		}
	} else {
		cmd = &gridChangeCommand{
			Workspace: workspaceID,
			User:      userID,
			At:        s.nowFn(),
			Surface:   surface,
			Before:    old,
			After:     grid,
		}
	}
	s.execute(userID, workspaceID, cmd)
	return true, nil
}

// Undo reverses the user's most recent command and moves it to the redo
// stack. It returns the undone command's description and workspace. An empty
// stack is a no-op signal, not an error.
func (s *Store) Undo(userID string) (string, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.session(userID)
	cmd, ok := sess.popUndo()
	if !ok {
		return "", "", false
	}
	cmd.undo(s)
	sess.redo = append(sess.redo, cmd)
	return cmd.Description(), cmd.WorkspaceID(), true
}

// Redo re-performs the user's most recently undone command. Unlike execute,
// it pushes back onto the undo stack without clearing redo: this reconstructs
// prior history rather than creating new history.
func (s *Store) Redo(userID string) (string, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.session(userID)
	cmd, ok := sess.popRedo()
	if !ok {
		return "", "", false
	}
	cmd.perform(s)
	sess.pushUndo(cmd, s.undoCapacity)
	return cmd.Description(), cmd.WorkspaceID(), true
}

// CanUndo reports whether the user has anything to undo.
func (s *Store) CanUndo(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	return ok && len(sess.undo) > 0
}

// CanRedo reports whether the user has anything to redo.
func (s *Store) CanRedo(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	return ok && len(sess.redo) > 0
}

// PeekUndoDescription returns the tooltip for the next undo without mutating
// the stacks.
func (s *Store) PeekUndoDescription(userID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok || len(sess.undo) == 0 {
		return "", false
	}
	return sess.undo[len(sess.undo)-1].Description(), true
}

// PeekRedoDescription returns the tooltip for the next redo without mutating
// the stacks.
func (s *Store) PeekRedoDescription(userID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok || len(sess.redo) == 0 {
		return "", false
	}
	return sess.redo[len(sess.redo)-1].Description(), true
}

// GetGrid returns the effective grid descriptor for a surface.
func (s *Store) GetGrid(workspaceID, surface string) domain.GridDescriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workspace(workspaceID).grid(surface)
}

// GetRegions returns the workspace's regions: Empty first, then non-empty
// regions in display order.
func (s *Store) GetRegions(workspaceID string) []domain.Region {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workspace(workspaceID).sortedRegions()
}

// GetRegion returns one region by id.
func (s *Store) GetRegion(workspaceID string, id domain.RegionID) (domain.Region, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workspace(workspaceID).region(id)
}

// CellAt returns the region assigned to a cell, or Empty when unassigned.
func (s *Store) CellAt(workspaceID, surface string, cell domain.Cell) domain.RegionID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws := s.workspace(workspaceID)
	m, ok := ws.images[surface]
	if !ok {
		return domain.EmptyRegionID
	}
	return m.Get(cell)
}

// WorldToCell maps a world coordinate to the containing cell under the
// surface's effective grid.
func (s *Store) WorldToCell(workspaceID, surface string, worldX, worldY float64) domain.Cell {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workspace(workspaceID).grid(surface).CellAt(worldX, worldY)
}

// SessionInfo is a read-only view of one user's session for UI consumption.
type SessionInfo struct {
	UserID          string          `json:"user_id"`
	WorkspaceID     string          `json:"workspace_id"`
	SelectedRegion  domain.RegionID `json:"selected_region"`
	SelectedTool    string          `json:"selected_tool"`
	Visibility      int             `json:"visibility"`
	CanUndo         bool            `json:"can_undo"`
	CanRedo         bool            `json:"can_redo"`
	UndoDescription string          `json:"undo_description,omitempty"`
	RedoDescription string          `json:"redo_description,omitempty"`
}

// SessionInfo returns the user's current session state, creating the session
// with defaults on first access.
func (s *Store) SessionInfo(userID string) SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.session(userID)
	info := SessionInfo{
		UserID:         sess.userID,
		WorkspaceID:    sess.workspaceID,
		SelectedRegion: sess.selectedRegion,
		SelectedTool:   sess.selectedTool,
		Visibility:     sess.visibility,
		CanUndo:        len(sess.undo) > 0,
		CanRedo:        len(sess.redo) > 0,
	}
	if info.CanUndo {
		info.UndoDescription = sess.undo[len(sess.undo)-1].Description()
	}
	if info.CanRedo {
		info.RedoDescription = sess.redo[len(sess.redo)-1].Description()
	}
	return info
}

// SetSelectedRegion changes the user's selection. The region must exist in
// the workspace; Empty is always a valid selection.
func (s *Store) SetSelectedRegion(userID, workspaceID string, id domain.RegionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws := s.workspace(workspaceID)
	if _, ok := ws.region(id); !ok {
		return fmt.Errorf("%w: id %d", domain.ErrRegionNotFound, id)
	}
	s.sessionIn(userID, workspaceID).selectedRegion = id
	return nil
}

// SetSelectedTool changes the user's active tool.
func (s *Store) SetSelectedTool(userID, tool string) error {
	switch tool {
	case ToolPaint, ToolErase, ToolPicker:
	default:
		return fmt.Errorf("unknown tool %q", tool)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session(userID).selectedTool = tool
	return nil
}

// SetVisibility changes the user's boundary visibility level.
func (s *Store) SetVisibility(userID string, level int) error {
	if level < VisibilityMin || level > VisibilityMax {
		return fmt.Errorf("visibility level %d out of range [%d,%d]", level, VisibilityMin, VisibilityMax)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session(userID).visibility = level
	return nil
}

// ResetWorkspace discards one workspace's shared state entirely. This is an
// administrative operation: it bypasses the command system and cannot be
// undone. Sessions pointing at the workspace keep their stacks; stale entries
// are skipped defensively when undone against the recreated workspace.
func (s *Store) ResetWorkspace(workspaceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workspaces[workspaceID]; !ok {
		return false
	}
	delete(s.workspaces, workspaceID)
	return true
}

// ResetUser discards one user's session, including undo/redo history.
func (s *Store) ResetUser(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[userID]; !ok {
		return false
	}
	delete(s.sessions, userID)
	return true
}

// ResetAll discards every workspace and session.
func (s *Store) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workspaces = make(map[string]*workspaceState)
	s.sessions = make(map[string]*sessionState)
}

// ExportWorkspace returns a deep-copy snapshot of one workspace.
func (s *Store) ExportWorkspace(workspaceID string) (domain.WorkspaceSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.workspaces[workspaceID]
	if !ok {
		return domain.WorkspaceSnapshot{}, false
	}
	return ws.snapshot(), true
}

// ExportSession returns a snapshot of one user's session.
func (s *Store) ExportSession(userID string) (domain.SessionSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return domain.SessionSnapshot{}, false
	}
	return sess.snapshot(), true
}

// ExportState snapshots every workspace and session, ordered by id for
// deterministic archives.
func (s *Store) ExportState() ([]domain.WorkspaceSnapshot, []domain.SessionSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	workspaces := make([]domain.WorkspaceSnapshot, 0, len(s.workspaces))
	for _, ws := range s.workspaces {
		workspaces = append(workspaces, ws.snapshot())
	}
	sort.Slice(workspaces, func(i, j int) bool { return workspaces[i].ID < workspaces[j].ID })
	sessions := make([]domain.SessionSnapshot, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess.snapshot())
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].UserID < sessions[j].UserID })
	return workspaces, sessions
}

// ImportState hydrates the store from persisted snapshots, upgrading old
// schema versions on load. Undo stack entries with unknown command types are
// logged and discarded rather than failing the whole load.
func (s *Store) ImportState(workspaces []domain.WorkspaceSnapshot, sessions []domain.SessionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, snap := range workspaces {
		upgraded, err := domain.UpgradeWorkspaceSnapshot(snap)
		if err != nil {
			return fmt.Errorf("workspace %s: %w", snap.ID, err)
		}
		ws, err := workspaceFromSnapshot(upgraded)
		if err != nil {
			return fmt.Errorf("workspace %s: %w", snap.ID, err)
		}
		s.workspaces[ws.id] = ws
	}
	for _, snap := range sessions {
		sess := newSessionState(snap.UserID)
		sess.workspaceID = snap.WorkspaceID
		sess.selectedRegion = snap.SelectedRegion
		if snap.SelectedTool != "" {
			sess.selectedTool = snap.SelectedTool
		}
		if snap.Visibility >= VisibilityMin && snap.Visibility <= VisibilityMax {
			sess.visibility = snap.Visibility
		}
		sess.undo = s.decodeStack(snap.UserID, "undo", snap.Undo)
		sess.redo = s.decodeStack(snap.UserID, "redo", snap.Redo)
		s.sessions[snap.UserID] = sess
	}
	return nil
}

func (s *Store) decodeStack(userID, stack string, snaps []domain.CommandSnapshot) []Command {
	var out []Command
	for _, snap := range snaps {
		cmd, err := decodeCommand(snap)
		if err != nil {
			s.log.Warn().Str("user", userID).Str("stack", stack).Err(err).
				Msg("discarding unreadable history entry")
			continue
		}
		out = append(out, cmd)
	}
	return out
}
