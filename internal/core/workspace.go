package core

import (
	"sort"

	"zonecore/pkg/domain"
)

// workspaceState holds the shared, per-tenant data: the region table, the id
// allocator high-water mark, and per-surface grids and cell maps. All access
// is mediated by the owning Store under its lock; nothing outside the command
// path mutates it.
type workspaceState struct {
	id           string
	nextRegionID domain.RegionID
	regions      map[domain.RegionID]domain.Region
	defaultGrid  domain.GridDescriptor
	grids        map[string]domain.GridDescriptor
	images       map[string]domain.CellMap
}

// defaultRegionSeed lists the regions a fresh workspace is seeded with.
// Paint colors are translucent so the underlying surface stays visible.
var defaultRegionSeed = []struct {
	name  string
	color domain.Color
}{
	{"Mining", domain.Color{R: 0.85, G: 0.55, B: 0.15, A: 0.35}},
	{"Smelting", domain.Color{R: 0.85, G: 0.25, B: 0.15, A: 0.35}},
	{"Production", domain.Color{R: 0.25, G: 0.45, B: 0.85, A: 0.35}},
	{"Logistics", domain.Color{R: 0.25, G: 0.75, B: 0.30, A: 0.35}},
	{"Power", domain.Color{R: 0.90, G: 0.85, B: 0.20, A: 0.35}},
	{"Military", domain.Color{R: 0.70, G: 0.10, B: 0.30, A: 0.35}},
	{"Science", domain.Color{R: 0.55, G: 0.25, B: 0.80, A: 0.35}},
	{"Depot", domain.Color{R: 0.55, G: 0.40, B: 0.25, A: 0.35}},
	{"Rail", domain.Color{R: 0.50, G: 0.55, B: 0.60, A: 0.35}},
	{"Reserved", domain.Color{R: 0.20, G: 0.75, B: 0.75, A: 0.35}},
}

func newWorkspaceState(id string) *workspaceState {
	ws := &workspaceState{
		id:           id,
		nextRegionID: 1,
		regions:      map[domain.RegionID]domain.Region{domain.EmptyRegionID: domain.EmptyRegion()},
		defaultGrid:  domain.DefaultGrid(),
		grids:        make(map[string]domain.GridDescriptor),
		images:       make(map[string]domain.CellMap),
	}
	for i, seed := range defaultRegionSeed {
		id := ws.nextRegionID
		ws.regions[id] = domain.Region{ID: id, Name: seed.name, Color: seed.color, Order: float64(i + 1)}
		ws.nextRegionID++
	}
	return ws
}

// region returns a copy of the region, if present.
func (ws *workspaceState) region(id domain.RegionID) (domain.Region, bool) {
	r, ok := ws.regions[id]
	return r, ok
}

// nonEmptyRegions returns all regions except the Empty sentinel, sorted by
// display order with id as tie-break.
func (ws *workspaceState) nonEmptyRegions() []domain.Region {
	out := make([]domain.Region, 0, len(ws.regions)-1)
	for _, r := range ws.regions {
		if !r.IsEmpty() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// sortedRegions returns the Empty region followed by non-empty regions in
// display order.
func (ws *workspaceState) sortedRegions() []domain.Region {
	out := make([]domain.Region, 0, len(ws.regions))
	out = append(out, ws.regions[domain.EmptyRegionID])
	return append(out, ws.nonEmptyRegions()...)
}

// renormalizeOrders reassigns dense integer orders 1..N over non-empty
// regions, preserving their current relative order.
func (ws *workspaceState) renormalizeOrders() {
	for i, r := range ws.nonEmptyRegions() {
		r.Order = float64(i + 1)
		ws.regions[r.ID] = r
	}
}

// orderMap captures the current order of every non-empty region.
func (ws *workspaceState) orderMap() map[domain.RegionID]float64 {
	out := make(map[domain.RegionID]float64, len(ws.regions)-1)
	for id, r := range ws.regions {
		if !r.IsEmpty() {
			out[id] = r.Order
		}
	}
	return out
}

// grid returns the effective grid for a surface, falling back to the
// workspace default for surfaces never configured explicitly.
func (ws *workspaceState) grid(surface string) domain.GridDescriptor {
	if g, ok := ws.grids[surface]; ok {
		return g
	}
	return ws.defaultGrid
}

func (ws *workspaceState) setGrid(surface string, g domain.GridDescriptor) {
	ws.grids[surface] = g
}

// cells returns the cell map for a surface, materializing an empty one on
// first use.
func (ws *workspaceState) cells(surface string) domain.CellMap {
	m, ok := ws.images[surface]
	if !ok {
		m = make(domain.CellMap)
		ws.images[surface] = m
	}
	return m
}

// cellRefs collects every cell currently assigned to the region, per surface.
// Surfaces with no matching cells are omitted.
func (ws *workspaceState) cellRefs(id domain.RegionID) map[string][]domain.Cell {
	out := make(map[string][]domain.Cell)
	for surface, m := range ws.images {
		for c, assigned := range m {
			if assigned == id {
				out[surface] = append(out[surface], c)
			}
		}
	}
	return out
}

// snapshot exports a deep copy of the workspace state in persisted form.
func (ws *workspaceState) snapshot() domain.WorkspaceSnapshot {
	regions := make(map[domain.RegionID]domain.Region, len(ws.regions))
	for id, r := range ws.regions {
		regions[id] = r
	}
	grids := make(map[string]domain.GridDescriptor, len(ws.grids))
	for surface, g := range ws.grids {
		grids[surface] = g
	}
	images := make(map[string]domain.ImageSnapshot, len(ws.images))
	for surface, m := range ws.images {
		images[surface] = domain.ImageSnapshot{Cells: m.Encode()}
	}
	return domain.WorkspaceSnapshot{
		Version:      domain.SchemaVersion,
		ID:           ws.id,
		NextRegionID: ws.nextRegionID,
		Regions:      regions,
		DefaultGrid:  ws.defaultGrid,
		Grids:        grids,
		Images:       images,
	}
}

// workspaceFromSnapshot rebuilds workspace state from a current-version
// snapshot.
func workspaceFromSnapshot(snap domain.WorkspaceSnapshot) (*workspaceState, error) {
	ws := &workspaceState{
		id:           snap.ID,
		nextRegionID: snap.NextRegionID,
		regions:      make(map[domain.RegionID]domain.Region, len(snap.Regions)+1),
		defaultGrid:  snap.DefaultGrid,
		grids:        make(map[string]domain.GridDescriptor, len(snap.Grids)),
		images:       make(map[string]domain.CellMap, len(snap.Images)),
	}
	for id, r := range snap.Regions {
		ws.regions[id] = r
	}
	ws.regions[domain.EmptyRegionID] = domain.EmptyRegion()
	if ws.defaultGrid == (domain.GridDescriptor{}) {
		ws.defaultGrid = domain.DefaultGrid()
	}
	for surface, g := range snap.Grids {
		ws.grids[surface] = g
	}
	for surface, img := range snap.Images {
		m, err := domain.DecodeCellMap(img.Cells)
		if err != nil {
			return nil, err
		}
		ws.images[surface] = m
	}
	// Keep the allocator ahead of any persisted id so ids are never reused.
	for id := range ws.regions {
		if id >= ws.nextRegionID {
			ws.nextRegionID = id + 1
		}
	}
	return ws, nil
}
