package domain

// RegionEventType classifies a region change so consumers can skip work: a
// name-only change needs no recoloring, an order-only change needs no redraw
// at all.
type RegionEventType string

// Region change event types emitted after committed mutations.
const (
	// RegionAdded indicates a region was created (or restored by undo).
	RegionAdded RegionEventType = "added"
	// RegionDeleted indicates a region was removed.
	RegionDeleted RegionEventType = "deleted"
	// RegionModified indicates the color (and possibly name) changed.
	RegionModified RegionEventType = "modified"
	// RegionNameModified indicates only the name changed.
	RegionNameModified RegionEventType = "name-modified"
	// RegionOrderChanged indicates only display order changed.
	RegionOrderChanged RegionEventType = "order-changed"
)

// RegionEvent is the structured payload delivered to consumers after a region
// mutation commits. Before and After carry deep copies, never live store
// references.
type RegionEvent struct {
	Type       RegionEventType `json:"type"`
	RegionID   RegionID        `json:"region_id"`
	RegionName string          `json:"region_name"`
	Before     *Region         `json:"before,omitempty"`
	After      *Region         `json:"after,omitempty"`
}
