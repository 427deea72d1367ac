package editor

import "github.com/sceneflow/sceneflow/internal/core/viewport"

// Button identifies a pointer button, numbered like DOM pointer events.
type Button int

const (
	ButtonLeft   Button = 0
	ButtonMiddle Button = 1
	ButtonRight  Button = 2
)

// PointerEvent is a pointer press, move or release in screen pixels.
type PointerEvent struct {
	Button Button
	Pos    viewport.Point
}

// Gesture is the active pointer gesture. Only one runs at a time.
type Gesture int

const (
	GestureIdle Gesture = iota
	GesturePanning
	GestureDragging
	GestureLinking
)

func (g Gesture) String() string {
	switch g {
	case GesturePanning:
		return "panning"
	case GestureDragging:
		return "dragging"
	case GestureLinking:
		return "linking"
	}
	return "idle"
}

// ChangeKind names a committed graph mutation.
type ChangeKind string

const (
	ChangeNodeAdded       ChangeKind = "node_added"
	ChangeNodeRemoved     ChangeKind = "node_removed"
	ChangeNodeMoved       ChangeKind = "node_moved"
	ChangeNodeRenamed     ChangeKind = "node_renamed"
	ChangeTriggersUpdated ChangeKind = "triggers_updated"
	ChangeEdgeAdded       ChangeKind = "edge_added"
	ChangeEdgeRemoved     ChangeKind = "edge_removed"
	ChangeCleared         ChangeKind = "cleared"
)

// Change describes one committed mutation. Zero ids mean not applicable.
type Change struct {
	Kind   ChangeKind
	NodeID int
	EdgeID int
}
