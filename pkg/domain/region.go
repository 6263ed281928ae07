package domain

import "fmt"

// RegionID identifies a region within a workspace. IDs are allocated
// monotonically from 1 and never reused, even after deletion, so undo/redo
// history stays unambiguous for the workspace's lifetime.
type RegionID int

// EmptyRegionID is the reserved sentinel meaning "unassigned". The Empty
// region cannot be edited, deleted, or moved, and is never stored as a cell
// value: absence in the cell map is the canonical representation.
const EmptyRegionID RegionID = 0

// EmptyRegionName is the display name of the reserved Empty region.
const EmptyRegionName = "(Empty)"

// Color is an RGBA paint color with channels in [0,1].
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

// Validate reports whether all channels are within [0,1].
func (c Color) Validate() error {
	for _, v := range [4]float64{c.R, c.G, c.B, c.A} {
		if v < 0 || v > 1 {
			return fmt.Errorf("color channel %g out of range [0,1]", v)
		}
	}
	return nil
}

// Region is a named, colored, orderable classification assignable to grid
// cells. Order is a dense ranking among non-empty regions used for display
// ordering only; it is renormalized to 1..N after every add, delete, and move.
// Order is float64 so a move can temporarily nudge a region between two
// neighbors before renormalization.
type Region struct {
	ID    RegionID `json:"id"`
	Name  string   `json:"name"`
	Color Color    `json:"color"`
	Order float64  `json:"order"`
}

// EmptyRegion returns the reserved Empty region value.
func EmptyRegion() Region {
	return Region{ID: EmptyRegionID, Name: EmptyRegionName}
}

// IsEmpty reports whether the region is the reserved Empty sentinel.
func (r Region) IsEmpty() bool { return r.ID == EmptyRegionID }
