// Package domain defines the core entities, grid geometry, change events, and
// snapshot schema shared by the zonecore engine and its persistence backends.
package domain

import (
	"fmt"
	"math"
)

// GridDescriptor parameterizes the cell grid overlaid on a surface. All fields
// are in world-space units. Width and Height must be positive.
type GridDescriptor struct {
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	OffsetX float64 `json:"x_offset"`
	OffsetY float64 `json:"y_offset"`
}

// DefaultGrid returns the grid applied to surfaces that have never been
// configured explicitly.
func DefaultGrid() GridDescriptor {
	return GridDescriptor{Width: 32, Height: 32}
}

// Validate reports whether the descriptor has positive cell dimensions.
func (g GridDescriptor) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("%w: %gx%g", ErrInvalidGrid, g.Width, g.Height)
	}
	return nil
}

// CellAt maps a continuous world coordinate to the discrete cell containing it.
// Floor division keeps the mapping correct for negative coordinates: world -1.0
// on a 32-unit grid with zero offset lands in cell -1, not cell 0.
func (g GridDescriptor) CellAt(worldX, worldY float64) Cell {
	return Cell{
		X: int(math.Floor((worldX - g.OffsetX) / g.Width)),
		Y: int(math.Floor((worldY - g.OffsetY) / g.Height)),
	}
}

// Rect is an axis-aligned world-space rectangle. Min is the top-left corner.
type Rect struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Normalized returns the rectangle with corners reordered so MinX<=MaxX and
// MinY<=MaxY, accepting rectangles dragged from any corner.
func (r Rect) Normalized() Rect {
	if r.MinX > r.MaxX {
		r.MinX, r.MaxX = r.MaxX, r.MinX
	}
	if r.MinY > r.MaxY {
		r.MinY, r.MaxY = r.MaxY, r.MinY
	}
	return r
}

// CellBounds is the inverse of CellAt: the world-space rectangle covered by a
// cell. The far edge is exclusive (it coincides with the near edge of the next
// cell).
func (g GridDescriptor) CellBounds(c Cell) Rect {
	minX := float64(c.X)*g.Width + g.OffsetX
	minY := float64(c.Y)*g.Height + g.OffsetY
	return Rect{
		MinX: minX,
		MinY: minY,
		MaxX: minX + g.Width,
		MaxY: minY + g.Height,
	}
}
