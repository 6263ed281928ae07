package core

import (
	"testing"

	"github.com/rs/zerolog"

	"zonecore/pkg/domain"
)

// recordingConsumer captures every notification it receives.
type recordingConsumer struct {
	cellEvents   []cellEvent
	regionEvents []domain.RegionEvent
	gridEvents   []string
}

type cellEvent struct {
	workspace string
	surface   string
	cells     []domain.Cell
	region    *domain.RegionID
}

func (r *recordingConsumer) CellsChanged(workspace, surface string, cells []domain.Cell, region *domain.RegionID) {
	r.cellEvents = append(r.cellEvents, cellEvent{workspace, surface, cells, region})
}

func (r *recordingConsumer) RegionsChanged(workspace string, event domain.RegionEvent) {
	r.regionEvents = append(r.regionEvents, event)
}

func (r *recordingConsumer) GridChanged(workspace string) {
	r.gridEvents = append(r.gridEvents, workspace)
}

// panickingConsumer fails on every notification.
type panickingConsumer struct{}

func (panickingConsumer) CellsChanged(string, string, []domain.Cell, *domain.RegionID) {
	panic("render bug")
}
func (panickingConsumer) RegionsChanged(string, domain.RegionEvent) { panic("render bug") }
func (panickingConsumer) GridChanged(string)                        { panic("render bug") }

func TestNotifierDeliversAfterCommit(t *testing.T) {
	notifier := NewNotifier(zerolog.Nop())
	rec := &recordingConsumer{}
	notifier.Register(rec)
	s := NewStore(notifier, zerolog.Nop())

	if _, err := s.FillRectangle("u", "ws", "default", 2, domain.Rect{MaxX: 63, MaxY: 31}); err != nil {
		t.Fatalf("FillRectangle: %v", err)
	}
	if len(rec.cellEvents) != 1 {
		t.Fatalf("got %d cell events, want 1", len(rec.cellEvents))
	}
	ev := rec.cellEvents[0]
	if ev.workspace != "ws" || ev.surface != "default" {
		t.Fatalf("event = %+v", ev)
	}
	if len(ev.cells) != 2 {
		t.Fatalf("event covers %d cells, want 2", len(ev.cells))
	}
	if ev.region == nil || *ev.region != 2 {
		t.Fatalf("event region = %v, want 2", ev.region)
	}

	// Undoing the fill reports the touched cells with a mixed-region marker.
	s.Undo("u")
	if len(rec.cellEvents) != 2 {
		t.Fatalf("got %d cell events after undo, want 2", len(rec.cellEvents))
	}
	if rec.cellEvents[1].region != nil {
		t.Fatal("undo event carried a single region for mixed priors")
	}
}

func TestNotifierRegionAndGridEvents(t *testing.T) {
	notifier := NewNotifier(zerolog.Nop())
	rec := &recordingConsumer{}
	notifier.Register(rec)
	s := NewStore(notifier, zerolog.Nop())

	if _, err := s.AddRegion("u", "ws", "Alpha", domain.Color{A: 0.5}); err != nil {
		t.Fatalf("AddRegion: %v", err)
	}
	if len(rec.regionEvents) != 1 || rec.regionEvents[0].Type != domain.RegionAdded {
		t.Fatalf("region events = %+v", rec.regionEvents)
	}

	name := "Renamed"
	if _, _, err := s.EditRegion("u", "ws", 1, &name, nil); err != nil {
		t.Fatalf("EditRegion: %v", err)
	}
	if got := rec.regionEvents[1].Type; got != domain.RegionNameModified {
		t.Fatalf("name-only edit event = %v, want RegionNameModified", got)
	}

	color := domain.Color{B: 1, A: 0.5}
	if _, _, err := s.EditRegion("u", "ws", 1, nil, &color); err != nil {
		t.Fatalf("EditRegion: %v", err)
	}
	if got := rec.regionEvents[2].Type; got != domain.RegionModified {
		t.Fatalf("recolor event = %v, want RegionModified", got)
	}

	if _, err := s.SetGrid("u", "ws", "default", domain.GridDescriptor{Width: 8, Height: 8}, false); err != nil {
		t.Fatalf("SetGrid: %v", err)
	}
	if len(rec.gridEvents) != 1 || rec.gridEvents[0] != "ws" {
		t.Fatalf("grid events = %v", rec.gridEvents)
	}
}

func TestNotifierDeleteEmitsFullRefresh(t *testing.T) {
	notifier := NewNotifier(zerolog.Nop())
	rec := &recordingConsumer{}
	notifier.Register(rec)
	s := NewStore(notifier, zerolog.Nop())

	if _, err := s.FillRectangle("u", "ws", "default", 2, domain.Rect{MaxX: 1, MaxY: 1}); err != nil {
		t.Fatalf("FillRectangle: %v", err)
	}
	if err := s.DeleteRegion("u", "ws", 2, domain.EmptyRegionID); err != nil {
		t.Fatalf("DeleteRegion: %v", err)
	}
	last := rec.cellEvents[len(rec.cellEvents)-1]
	if last.cells != nil {
		t.Fatal("delete should signal a full refresh with nil cells")
	}
}

func TestNotifierIsolatesPanickingConsumer(t *testing.T) {
	notifier := NewNotifier(zerolog.Nop())
	rec := &recordingConsumer{}
	notifier.Register(panickingConsumer{})
	notifier.Register(rec)
	s := NewStore(notifier, zerolog.Nop())

	if _, err := s.FillRectangle("u", "ws", "default", 1, domain.Rect{MaxX: 1, MaxY: 1}); err != nil {
		t.Fatalf("FillRectangle: %v", err)
	}
	// The healthy consumer still got the event, and the state committed.
	if len(rec.cellEvents) != 1 {
		t.Fatalf("healthy consumer got %d events, want 1", len(rec.cellEvents))
	}
	if got := s.CellAt("ws", "default", domain.Cell{}); got != 1 {
		t.Fatalf("cell = %d, want 1", got)
	}
}
