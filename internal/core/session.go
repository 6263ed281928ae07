package core

import "zonecore/pkg/domain"

// Selection tools available to the painting UI.
const (
	// ToolPaint assigns the selected region to dragged cells.
	ToolPaint = "paint"
	// ToolErase clears dragged cells regardless of selection.
	ToolErase = "erase"
	// ToolPicker selects the region under the pointer.
	ToolPicker = "picker"
)

// Boundary visibility levels range from hidden (0) to full (3).
const (
	VisibilityMin     = 0
	VisibilityDefault = 2
	VisibilityMax     = 3
)

// sessionState is one user's ephemeral state: workspace membership, current
// selection, and the undo/redo stacks. Stacks are strictly per user; one
// user's undo never touches another's history, though it does touch the
// shared workspace data both users see.
type sessionState struct {
	userID         string
	workspaceID    string
	selectedRegion domain.RegionID
	selectedTool   string
	visibility     int
	undo           []Command
	redo           []Command
}

func newSessionState(userID string) *sessionState {
	return &sessionState{
		userID:         userID,
		selectedRegion: domain.EmptyRegionID,
		selectedTool:   ToolPaint,
		visibility:     VisibilityDefault,
	}
}

// pushUndo appends a command, evicting the oldest entry once the stack is at
// capacity.
func (sess *sessionState) pushUndo(cmd Command, capacity int) {
	if capacity > 0 && len(sess.undo) >= capacity {
		n := copy(sess.undo, sess.undo[len(sess.undo)-capacity+1:])
		sess.undo = sess.undo[:n]
	}
	sess.undo = append(sess.undo, cmd)
}

// popUndo removes and returns the most recent undoable command.
func (sess *sessionState) popUndo() (Command, bool) {
	if len(sess.undo) == 0 {
		return nil, false
	}
	cmd := sess.undo[len(sess.undo)-1]
	sess.undo = sess.undo[:len(sess.undo)-1]
	return cmd, true
}

// popRedo removes and returns the most recent redoable command.
func (sess *sessionState) popRedo() (Command, bool) {
	if len(sess.redo) == 0 {
		return nil, false
	}
	cmd := sess.redo[len(sess.redo)-1]
	sess.redo = sess.redo[:len(sess.redo)-1]
	return cmd, true
}

func (sess *sessionState) snapshot() domain.SessionSnapshot {
	snap := domain.SessionSnapshot{
		Version:        1,
		UserID:         sess.userID,
		WorkspaceID:    sess.workspaceID,
		SelectedRegion: sess.selectedRegion,
		SelectedTool:   sess.selectedTool,
		Visibility:     sess.visibility,
	}
	for _, cmd := range sess.undo {
		snap.Undo = append(snap.Undo, cmd.snapshot())
	}
	for _, cmd := range sess.redo {
		snap.Redo = append(snap.Redo, cmd.snapshot())
	}
	return snap
}
