package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Cell addresses one discrete unit of the overlay grid.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Key renders the cell as its canonical "x:y" composite map key.
func (c Cell) Key() string {
	return strconv.Itoa(c.X) + ":" + strconv.Itoa(c.Y)
}

// ParseCellKey parses a composite "x:y" key back into a cell.
func ParseCellKey(key string) (Cell, error) {
	sep := strings.IndexByte(key, ':')
	if sep < 0 {
		return Cell{}, fmt.Errorf("cell key %q: missing separator", key)
	}
	x, err := strconv.Atoi(key[:sep])
	if err != nil {
		return Cell{}, fmt.Errorf("cell key %q: %w", key, err)
	}
	y, err := strconv.Atoi(key[sep+1:])
	if err != nil {
		return Cell{}, fmt.Errorf("cell key %q: %w", key, err)
	}
	return Cell{X: x, Y: y}, nil
}

// CellMap is a sparse assignment of cells to region ids. Absence of a cell
// means unassigned; the Empty sentinel id is never stored as a value. Use Set
// to keep that invariant at every write path.
type CellMap map[Cell]RegionID

// Get returns the region assigned to the cell, or EmptyRegionID when the cell
// is unassigned.
func (m CellMap) Get(c Cell) RegionID {
	return m[c]
}

// Set assigns a region to a cell, normalizing Empty-id writes to deletion.
func (m CellMap) Set(c Cell, id RegionID) {
	if id == EmptyRegionID {
		delete(m, c)
		return
	}
	m[c] = id
}

// Clone returns a deep copy of the map.
func (m CellMap) Clone() CellMap {
	out := make(CellMap, len(m))
	for c, id := range m {
		out[c] = id
	}
	return out
}

// Equal reports whether two maps hold identical assignments.
func (m CellMap) Equal(other CellMap) bool {
	if len(m) != len(other) {
		return false
	}
	for c, id := range m {
		if other[c] != id {
			return false
		}
	}
	return true
}

// Encode converts the map to its persisted form keyed by "x:y" strings.
func (m CellMap) Encode() map[string]RegionID {
	out := make(map[string]RegionID, len(m))
	for c, id := range m {
		out[c.Key()] = id
	}
	return out
}

// DecodeCellMap converts a persisted "x:y"-keyed map back into a CellMap,
// dropping any stored Empty sentinel values.
func DecodeCellMap(encoded map[string]RegionID) (CellMap, error) {
	out := make(CellMap, len(encoded))
	for key, id := range encoded {
		c, err := ParseCellKey(key)
		if err != nil {
			return nil, err
		}
		out.Set(c, id)
	}
	return out, nil
}
