package domain

import (
	"encoding/json"
	"fmt"
)

// SchemaVersion is the current persisted snapshot schema. Version 1 carried a
// single grid per workspace; version 2 introduced per-surface grids.
const SchemaVersion = 2

// ImageSnapshot is the persisted cell assignment for one surface.
type ImageSnapshot struct {
	Cells map[string]RegionID `json:"cells"`
}

// WorkspaceSnapshot is the persisted form of one workspace's shared state.
type WorkspaceSnapshot struct {
	Version      int                       `json:"version"`
	ID           string                    `json:"id"`
	NextRegionID RegionID                  `json:"next_region_id"`
	Regions      map[RegionID]Region       `json:"regions"`
	DefaultGrid  GridDescriptor            `json:"default_grid"`
	Grids        map[string]GridDescriptor `json:"grids"`
	Images       map[string]ImageSnapshot  `json:"images"`

	// Grid is only populated by version 1 snapshots; UpgradeWorkspaceSnapshot
	// folds it into DefaultGrid and Grids.
	Grid *GridDescriptor `json:"grid,omitempty"`
}

// CommandSnapshot is the persisted envelope of one undo/redo stack entry.
// Payload layout is owned by the engine's command types.
type CommandSnapshot struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// SessionSnapshot is the persisted form of one user's ephemeral state.
type SessionSnapshot struct {
	Version        int               `json:"version"`
	UserID         string            `json:"user_id"`
	WorkspaceID    string            `json:"workspace_id"`
	SelectedRegion RegionID          `json:"selected_region"`
	SelectedTool   string            `json:"selected_tool"`
	Visibility     int               `json:"visibility"`
	Undo           []CommandSnapshot `json:"undo,omitempty"`
	Redo           []CommandSnapshot `json:"redo,omitempty"`
}

// UpgradeWorkspaceSnapshot migrates a loaded snapshot to the current schema
// version. Version 1 stored one grid for the whole workspace; the upgrade
// promotes it to the workspace default and copies it to every surface present
// in the image map.
func UpgradeWorkspaceSnapshot(snap WorkspaceSnapshot) (WorkspaceSnapshot, error) {
	switch snap.Version {
	case SchemaVersion:
		return snap, nil
	case 1:
		if snap.Grid != nil {
			snap.DefaultGrid = *snap.Grid
			if snap.Grids == nil {
				snap.Grids = make(map[string]GridDescriptor, len(snap.Images))
			}
			for surface := range snap.Images {
				if _, ok := snap.Grids[surface]; !ok {
					snap.Grids[surface] = *snap.Grid
				}
			}
			snap.Grid = nil
		}
		if snap.DefaultGrid == (GridDescriptor{}) {
			snap.DefaultGrid = DefaultGrid()
		}
		snap.Version = SchemaVersion
		return snap, nil
	default:
		return WorkspaceSnapshot{}, fmt.Errorf("unsupported workspace snapshot version %d", snap.Version)
	}
}
