package domain

// reprojectEdgeEpsilon is subtracted from a footprint's far edge before
// computing the final new-grid cell index, so a cell whose world-space edge
// lands exactly on a new grid line does not spill into the next cell.
const reprojectEdgeEpsilon = 1e-6

// Reproject resamples a cell map from one grid geometry onto another. Every
// assigned old cell's world-space footprint is computed under the old grid,
// and every new-grid cell intersecting that footprint receives the old cell's
// region. Refining the grid expands one cell into many; coarsening collapses
// many into one, last write wins, with the overwrite order unspecified.
func Reproject(cells CellMap, oldGrid, newGrid GridDescriptor) CellMap {
	out := make(CellMap, len(cells))
	for cell, id := range cells {
		footprint := oldGrid.CellBounds(cell)
		first := newGrid.CellAt(footprint.MinX, footprint.MinY)
		last := newGrid.CellAt(footprint.MaxX-reprojectEdgeEpsilon, footprint.MaxY-reprojectEdgeEpsilon)
		for y := first.Y; y <= last.Y; y++ {
			for x := first.X; x <= last.X; x++ {
				out.Set(Cell{X: x, Y: y}, id)
			}
		}
	}
	return out
}
