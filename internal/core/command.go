package core

import (
	"encoding/json"
	"fmt"
	"time"

	"zonecore/pkg/domain"
)

// CommandKind tags the closed set of command types. The set is fixed; undo
// stacks persisted with an unknown kind are from a newer build and the entry
// is discarded on load.
type CommandKind string

// The seven command kinds the engine understands.
const (
	KindRegionAdd    CommandKind = "region-add"
	KindRegionEdit   CommandKind = "region-edit"
	KindRegionDelete CommandKind = "region-delete"
	KindRegionMove   CommandKind = "region-move"
	KindFillCells    CommandKind = "fill-cells"
	KindGridChange   CommandKind = "grid-change"
	KindReproject    CommandKind = "reproject"
)

// Command is an atomic, reversible unit of mutation. Instances are immutable
// once constructed: every before/after snapshot they carry is a deep copy
// taken at creation time, never a live reference into the store. Preconditions
// are validated by the constructors; perform and undo on a validated command
// are expected to succeed, and log-and-skip any unexpectedly missing state
// rather than failing, so one raced entry cannot corrupt the undo chain.
type Command interface {
	// Kind identifies the command type.
	Kind() CommandKind
	// WorkspaceID names the workspace the command mutates.
	WorkspaceID() string
	// Description is the human-readable summary shown by undo/redo tooltips.
	Description() string

	perform(s *Store)
	undo(s *Store)
	snapshot() domain.CommandSnapshot
}

func encodeCommand(kind CommandKind, cmd Command) domain.CommandSnapshot {
	payload, err := json.Marshal(cmd)
	if err != nil {
		// Command payloads are plain data; marshaling cannot fail in practice.
		panic(fmt.Sprintf("encode %s command: %v", kind, err))
	}
	return domain.CommandSnapshot{Type: string(kind), Payload: payload}
}

// decodeCommand rebuilds a command from its persisted envelope. Unknown kinds
// are an error; the caller logs and discards the stack entry.
func decodeCommand(snap domain.CommandSnapshot) (Command, error) {
	var cmd Command
	switch CommandKind(snap.Type) {
	case KindRegionAdd:
		cmd = &regionAddCommand{}
	case KindRegionEdit:
		cmd = &regionEditCommand{}
	case KindRegionDelete:
		cmd = &regionDeleteCommand{}
	case KindRegionMove:
		cmd = &regionMoveCommand{}
	case KindFillCells:
		cmd = &fillCellsCommand{}
	case KindGridChange:
		cmd = &gridChangeCommand{}
	case KindReproject:
		cmd = &reprojectCommand{}
	default:
		return nil, fmt.Errorf("unknown command type %q", snap.Type)
	}
	if err := json.Unmarshal(snap.Payload, cmd); err != nil {
		return nil, fmt.Errorf("decode %s command: %w", snap.Type, err)
	}
	return cmd, nil
}

// regionAddCommand inserts a region at an id captured when the command was
// created.
type regionAddCommand struct {
	Workspace string        `json:"workspace"`
	User      string        `json:"user"`
	At        time.Time     `json:"at"`
	Region    domain.Region `json:"region"`
}

func (c *regionAddCommand) WorkspaceID() string { return c.Workspace }

func (c *regionAddCommand) Kind() CommandKind { return KindRegionAdd }

func (c *regionAddCommand) Description() string {
	return fmt.Sprintf("Add region %q", c.Region.Name)
}

func (c *regionAddCommand) snapshot() domain.CommandSnapshot { return encodeCommand(c.Kind(), c) }

func (c *regionAddCommand) perform(s *Store) {
	ws := s.workspace(c.Workspace)
	wasFirst := len(ws.nonEmptyRegions()) == 0
	ws.regions[c.Region.ID] = c.Region
	if c.Region.ID >= ws.nextRegionID {
		ws.nextRegionID = c.Region.ID + 1
	}
	ws.renormalizeOrders()
	if wasFirst {
		// The first region created in an empty workspace becomes the default
		// selection for every member still on Empty.
		for _, sess := range s.sessions {
			if sess.workspaceID == c.Workspace && sess.selectedRegion == domain.EmptyRegionID {
				sess.selectedRegion = c.Region.ID
			}
		}
	}
	added := c.Region
	s.notifier.regionsChanged(c.Workspace, domain.RegionEvent{
		Type:       domain.RegionAdded,
		RegionID:   added.ID,
		RegionName: added.Name,
		After:      &added,
	})
}

func (c *regionAddCommand) undo(s *Store) {
	ws := s.workspace(c.Workspace)
	removed, ok := ws.regions[c.Region.ID]
	if !ok {
		s.log.Warn().Str("workspace", c.Workspace).Int("region", int(c.Region.ID)).
			Msg("undo add: region already gone, skipping")
		return
	}
	delete(ws.regions, c.Region.ID)
	ws.renormalizeOrders()
	s.clearSelectionsOf(c.Workspace, c.Region.ID)
	s.notifier.regionsChanged(c.Workspace, domain.RegionEvent{
		Type:       domain.RegionDeleted,
		RegionID:   removed.ID,
		RegionName: removed.Name,
		Before:     &removed,
	})
}

// regionEditCommand swaps a region's name and color between captured before
// and after values.
type regionEditCommand struct {
	Workspace string        `json:"workspace"`
	User      string        `json:"user"`
	At        time.Time     `json:"at"`
	Before    domain.Region `json:"before"`
	After     domain.Region `json:"after"`
}

func (c *regionEditCommand) WorkspaceID() string { return c.Workspace }

func (c *regionEditCommand) Kind() CommandKind { return KindRegionEdit }

func (c *regionEditCommand) Description() string {
	return fmt.Sprintf("Edit region %q", c.Before.Name)
}

func (c *regionEditCommand) snapshot() domain.CommandSnapshot { return encodeCommand(c.Kind(), c) }

// editEventType picks the narrowest event so consumers can skip recoloring
// when only the name changed.
func editEventType(before, after domain.Region) domain.RegionEventType {
	if before.Color == after.Color && before.Name != after.Name {
		return domain.RegionNameModified
	}
	return domain.RegionModified
}

func (c *regionEditCommand) apply(s *Store, from, to domain.Region) {
	ws := s.workspace(c.Workspace)
	current, ok := ws.regions[to.ID]
	if !ok {
		s.log.Warn().Str("workspace", c.Workspace).Int("region", int(to.ID)).
			Msg("edit: region no longer exists, skipping")
		return
	}
	current.Name = to.Name
	current.Color = to.Color
	ws.regions[to.ID] = current
	before, after := from, to
	s.notifier.regionsChanged(c.Workspace, domain.RegionEvent{
		Type:       editEventType(from, to),
		RegionID:   to.ID,
		RegionName: to.Name,
		Before:     &before,
		After:      &after,
	})
}

func (c *regionEditCommand) perform(s *Store) { c.apply(s, c.Before, c.After) }
func (c *regionEditCommand) undo(s *Store)    { c.apply(s, c.After, c.Before) }

// regionDeleteCommand removes a region and remaps every cell assigned to it,
// across all surfaces, to a replacement (or to unassigned). It is the most
// failure-sensitive command: perform and undo touch many cells, so both emit
// full-refresh cell notifications per affected surface instead of enumerating
// every cell.
type regionDeleteCommand struct {
	Workspace    string                      `json:"workspace"`
	User         string                      `json:"user"`
	At           time.Time                   `json:"at"`
	Region       domain.Region               `json:"region"`
	Replacement  domain.RegionID             `json:"replacement"`
	BeforeOrders map[domain.RegionID]float64 `json:"before_orders"`
	Affected     map[string][]domain.Cell    `json:"affected,omitempty"`
}

func (c *regionDeleteCommand) WorkspaceID() string { return c.Workspace }

func (c *regionDeleteCommand) Kind() CommandKind { return KindRegionDelete }

func (c *regionDeleteCommand) Description() string {
	return fmt.Sprintf("Delete region %q", c.Region.Name)
}

func (c *regionDeleteCommand) snapshot() domain.CommandSnapshot { return encodeCommand(c.Kind(), c) }

func (c *regionDeleteCommand) perform(s *Store) {
	ws := s.workspace(c.Workspace)
	removed, ok := ws.regions[c.Region.ID]
	if !ok {
		s.log.Warn().Str("workspace", c.Workspace).Int("region", int(c.Region.ID)).
			Msg("delete: region no longer exists, skipping")
		return
	}
	for surface, cells := range c.Affected {
		m := ws.cells(surface)
		for _, cell := range cells {
			m.Set(cell, c.Replacement)
		}
	}
	delete(ws.regions, c.Region.ID)
	ws.renormalizeOrders()
	s.clearSelectionsOf(c.Workspace, c.Region.ID)
	s.notifier.regionsChanged(c.Workspace, domain.RegionEvent{
		Type:       domain.RegionDeleted,
		RegionID:   removed.ID,
		RegionName: removed.Name,
		Before:     &removed,
	})
	for surface := range c.Affected {
		s.notifier.cellsChanged(c.Workspace, surface, nil, nil)
	}
}

func (c *regionDeleteCommand) undo(s *Store) {
	ws := s.workspace(c.Workspace)
	restored := c.Region
	ws.regions[restored.ID] = restored
	// Restore the allocator high-water mark so the id is not handed out again.
	if restored.ID >= ws.nextRegionID {
		ws.nextRegionID = restored.ID + 1
	}
	for id, order := range c.BeforeOrders {
		if r, ok := ws.regions[id]; ok {
			r.Order = order
			ws.regions[id] = r
		}
	}
	ws.renormalizeOrders()
	for surface, cells := range c.Affected {
		m := ws.cells(surface)
		for _, cell := range cells {
			m.Set(cell, restored.ID)
		}
	}
	s.notifier.regionsChanged(c.Workspace, domain.RegionEvent{
		Type:       domain.RegionAdded,
		RegionID:   restored.ID,
		RegionName: restored.Name,
		After:      &restored,
	})
	for surface := range c.Affected {
		s.notifier.cellsChanged(c.Workspace, surface, nil, nil)
	}
}

// regionMoveCommand swaps the display order of non-empty regions between two
// captured order maps.
type regionMoveCommand struct {
	Workspace string                      `json:"workspace"`
	User      string                      `json:"user"`
	At        time.Time                   `json:"at"`
	Region    domain.RegionID             `json:"region"`
	Name      string                      `json:"name"`
	Before    map[domain.RegionID]float64 `json:"before"`
	After     map[domain.RegionID]float64 `json:"after"`
}

func (c *regionMoveCommand) WorkspaceID() string { return c.Workspace }

func (c *regionMoveCommand) Kind() CommandKind { return KindRegionMove }

func (c *regionMoveCommand) Description() string {
	return fmt.Sprintf("Reorder region %q", c.Name)
}

func (c *regionMoveCommand) snapshot() domain.CommandSnapshot { return encodeCommand(c.Kind(), c) }

func (c *regionMoveCommand) applyOrders(s *Store, orders map[domain.RegionID]float64) {
	ws := s.workspace(c.Workspace)
	for id, order := range orders {
		r, ok := ws.regions[id]
		if !ok {
			s.log.Warn().Str("workspace", c.Workspace).Int("region", int(id)).
				Msg("reorder: region no longer exists, skipping")
			continue
		}
		r.Order = order
		ws.regions[id] = r
	}
	ws.renormalizeOrders()
	moved, ok := ws.regions[c.Region]
	if !ok {
		return
	}
	after := moved
	s.notifier.regionsChanged(c.Workspace, domain.RegionEvent{
		Type:       domain.RegionOrderChanged,
		RegionID:   moved.ID,
		RegionName: moved.Name,
		After:      &after,
	})
}

func (c *regionMoveCommand) perform(s *Store) { c.applyOrders(s, c.After) }
func (c *regionMoveCommand) undo(s *Store)    { c.applyOrders(s, c.Before) }

// cellWrite records one cell's assignment prior to a fill, which is all the
// state needed to reverse it: undo restores priors, redo rewrites the target.
type cellWrite struct {
	Cell  domain.Cell     `json:"cell"`
	Prior domain.RegionID `json:"prior"`
}

// fillCellsCommand writes one region id (or Empty, meaning erase) to every
// cell of a rectangle whose assignment differed from the target.
type fillCellsCommand struct {
	Workspace  string          `json:"workspace"`
	User       string          `json:"user"`
	At         time.Time       `json:"at"`
	Surface    string          `json:"surface"`
	Target     domain.RegionID `json:"target"`
	TargetName string          `json:"target_name,omitempty"`
	Writes     []cellWrite     `json:"writes"`
}

func (c *fillCellsCommand) WorkspaceID() string { return c.Workspace }

func (c *fillCellsCommand) Kind() CommandKind { return KindFillCells }

func (c *fillCellsCommand) Description() string {
	noun := "cells"
	if len(c.Writes) == 1 {
		noun = "cell"
	}
	if c.Target == domain.EmptyRegionID {
		return fmt.Sprintf("Erase %d %s", len(c.Writes), noun)
	}
	return fmt.Sprintf("Paint %d %s with %q", len(c.Writes), noun, c.TargetName)
}

func (c *fillCellsCommand) snapshot() domain.CommandSnapshot { return encodeCommand(c.Kind(), c) }

func (c *fillCellsCommand) perform(s *Store) {
	ws := s.workspace(c.Workspace)
	m := ws.cells(c.Surface)
	cells := make([]domain.Cell, 0, len(c.Writes))
	for _, w := range c.Writes {
		m.Set(w.Cell, c.Target)
		cells = append(cells, w.Cell)
	}
	target := c.Target
	s.notifier.cellsChanged(c.Workspace, c.Surface, cells, &target)
}

func (c *fillCellsCommand) undo(s *Store) {
	ws := s.workspace(c.Workspace)
	m := ws.cells(c.Surface)
	cells := make([]domain.Cell, 0, len(c.Writes))
	for _, w := range c.Writes {
		m.Set(w.Cell, w.Prior)
		cells = append(cells, w.Cell)
	}
	// Priors are mixed, so no single new region id can be reported.
	s.notifier.cellsChanged(c.Workspace, c.Surface, cells, nil)
}

// gridChangeCommand swaps a surface's grid descriptor without touching cell
// assignments.
type gridChangeCommand struct {
	Workspace string                `json:"workspace"`
	User      string                `json:"user"`
	At        time.Time             `json:"at"`
	Surface   string                `json:"surface"`
	Before    domain.GridDescriptor `json:"before"`
	After     domain.GridDescriptor `json:"after"`
}

func (c *gridChangeCommand) WorkspaceID() string { return c.Workspace }

func (c *gridChangeCommand) Kind() CommandKind { return KindGridChange }

func (c *gridChangeCommand) Description() string {
	return fmt.Sprintf("Change grid to %gx%g", c.After.Width, c.After.Height)
}

func (c *gridChangeCommand) snapshot() domain.CommandSnapshot { return encodeCommand(c.Kind(), c) }

func (c *gridChangeCommand) perform(s *Store) {
	s.workspace(c.Workspace).setGrid(c.Surface, c.After)
	s.notifier.gridChanged(c.Workspace)
}

func (c *gridChangeCommand) undo(s *Store) {
	s.workspace(c.Workspace).setGrid(c.Surface, c.Before)
	s.notifier.gridChanged(c.Workspace)
}

// reprojectCommand swaps a surface's grid descriptor and replaces its cell
// map wholesale with the captured resampling (and back).
type reprojectCommand struct {
	Workspace   string                     `json:"workspace"`
	User        string                     `json:"user"`
	At          time.Time                  `json:"at"`
	Surface     string                     `json:"surface"`
	BeforeGrid  domain.GridDescriptor      `json:"before_grid"`
	AfterGrid   domain.GridDescriptor      `json:"after_grid"`
	BeforeCells map[string]domain.RegionID `json:"before_cells"`
	AfterCells  map[string]domain.RegionID `json:"after_cells"`
}

func (c *reprojectCommand) WorkspaceID() string { return c.Workspace }

func (c *reprojectCommand) Kind() CommandKind { return KindReproject }

func (c *reprojectCommand) Description() string {
	return fmt.Sprintf("Reproject grid to %gx%g", c.AfterGrid.Width, c.AfterGrid.Height)
}

func (c *reprojectCommand) snapshot() domain.CommandSnapshot { return encodeCommand(c.Kind(), c) }

func (c *reprojectCommand) apply(s *Store, grid domain.GridDescriptor, encoded map[string]domain.RegionID) {
	ws := s.workspace(c.Workspace)
	cells, err := domain.DecodeCellMap(encoded)
	if err != nil {
		s.log.Warn().Str("workspace", c.Workspace).Str("surface", c.Surface).Err(err).
			Msg("reproject: corrupt captured cell map, skipping")
		return
	}
	ws.setGrid(c.Surface, grid)
	ws.images[c.Surface] = cells
	s.notifier.gridChanged(c.Workspace)
	s.notifier.cellsChanged(c.Workspace, c.Surface, nil, nil)
}

func (c *reprojectCommand) perform(s *Store) { c.apply(s, c.AfterGrid, c.AfterCells) }
func (c *reprojectCommand) undo(s *Store)    { c.apply(s, c.BeforeGrid, c.BeforeCells) }
