package editor

import (
	"github.com/sceneflow/sceneflow/internal/core/flow"
	"github.com/sceneflow/sceneflow/internal/core/viewport"
)

// Gesture returns the active pointer gesture.
func (e *Editor) Gesture() Gesture {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gesture
}

func (e *Editor) resetGesture() {
	e.gesture = GestureIdle
	e.dragNode = 0
	e.dragMoved = false
	e.linkNode = 0
	e.linkPort = flow.PortRef{}
}

// HitTest reports what lies under screen point p.
func (e *Editor) HitTest(p viewport.Point) Hit {
	e.mu.Lock()
	defer e.mu.Unlock()
	return hitTest(e.graph, e.view, p)
}

// PointerDown starts a gesture. It is ignored while another gesture runs
// or a connection waits for its mode. Middle and right buttons always pan;
// the left button links from a port, drags from a center handle, selects
// an edge or node, or clears the selection on the background.
func (e *Editor) PointerDown(ev PointerEvent) Hit {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gesture != GestureIdle || e.pending != nil {
		return Hit{Kind: HitBackground}
	}
	if ev.Button == ButtonMiddle || ev.Button == ButtonRight {
		e.gesture = GesturePanning
		e.lastPan = ev.Pos
		return Hit{Kind: HitBackground}
	}

	h := hitTest(e.graph, e.view, ev.Pos)
	switch h.Kind {
	case HitPort:
		e.gesture = GestureLinking
		e.linkNode, e.linkPort = h.NodeID, h.Port
		e.cursor = ev.Pos
	case HitHandle:
		n, _ := e.graph.Node(h.NodeID)
		e.selectedNode, e.selectedEdge = h.NodeID, 0
		e.gesture = GestureDragging
		e.dragNode = h.NodeID
		e.dragOffset = e.view.ScreenToWorld(ev.Pos).Sub(n.Position())
		e.dragMoved = false
	case HitEdge:
		e.selectedNode, e.selectedEdge = 0, h.EdgeID
	case HitNode:
		e.selectedNode, e.selectedEdge = h.NodeID, 0
	default:
		e.selectedNode, e.selectedEdge = 0, 0
	}
	return h
}

// PointerMove advances the active gesture.
func (e *Editor) PointerMove(ev PointerEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.gesture {
	case GesturePanning:
		d := ev.Pos.Sub(e.lastPan)
		e.view.PanBy(d.X, d.Y)
		e.lastPan = ev.Pos
	case GestureDragging:
		p := e.view.ScreenToWorld(ev.Pos).Sub(e.dragOffset)
		if err := e.graph.MoveNode(e.dragNode, p.X, p.Y); err != nil {
			e.resetGesture()
			return
		}
		e.dragMoved = true
	case GestureLinking:
		e.cursor = ev.Pos
	}
}

// PointerUp ends the active gesture. A finished drag commits a move; a
// link released on a port of another node becomes the pending connection.
// Releases anywhere else abandon the link silently.
func (e *Editor) PointerUp(ev PointerEvent) {
	e.mu.Lock()
	var change *Change
	switch e.gesture {
	case GestureDragging:
		if e.dragMoved {
			change = &Change{Kind: ChangeNodeMoved, NodeID: int(e.dragNode)}
		}
	case GestureLinking:
		h := hitTest(e.graph, e.view, ev.Pos)
		if h.Kind == HitPort && h.NodeID != e.linkNode {
			e.pending = &PendingConnection{
				FromNodeID: e.linkNode,
				FromPort:   e.linkPort,
				ToNodeID:   h.NodeID,
				ToPort:     h.Port,
			}
		}
	}
	e.resetGesture()
	e.mu.Unlock()
	if change != nil {
		e.notify(*change)
	}
}

// Wheel zooms around the cursor. It works during any gesture.
func (e *Editor) Wheel(cursor viewport.Point, deltaY float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.view.Wheel(cursor, deltaY)
}

// LinkPreview returns the screen endpoints of the line drawn while
// linking.
func (e *Editor) LinkPreview() (from, to viewport.Point, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gesture != GestureLinking {
		return viewport.Point{}, viewport.Point{}, false
	}
	n, found := e.graph.Node(e.linkNode)
	if !found {
		return viewport.Point{}, viewport.Point{}, false
	}
	return e.view.WorldToScreen(flow.PortPosition(n, e.linkPort)), e.cursor, true
}

// Pending returns the connection waiting for a mode, if any.
func (e *Editor) Pending() (PendingConnection, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return PendingConnection{}, false
	}
	return *e.pending, true
}

// ChooseMode commits the pending connection with mode. The pending state
// is cleared whether or not the graph accepts the edge.
func (e *Editor) ChooseMode(mode flow.Mode) (flow.EdgeID, error) {
	e.mu.Lock()
	p := e.pending
	if p == nil {
		e.mu.Unlock()
		return 0, ErrNoPendingConnection
	}
	e.pending = nil
	id, err := e.graph.AddEdge(p.FromNodeID, p.FromPort, p.ToNodeID, p.ToPort, mode)
	e.mu.Unlock()
	if err != nil {
		return 0, err
	}
	e.notify(Change{Kind: ChangeEdgeAdded, EdgeID: int(id)})
	return id, nil
}

// CancelLink drops the pending connection.
func (e *Editor) CancelLink() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = nil
}

// Connect adds an edge directly, bypassing gestures. It fails with
// ErrConnectionPending while the prompt is open.
func (e *Editor) Connect(from flow.NodeID, fromPort flow.PortRef, to flow.NodeID, toPort flow.PortRef, mode flow.Mode) (flow.EdgeID, error) {
	e.mu.Lock()
	if e.pending != nil {
		e.mu.Unlock()
		return 0, ErrConnectionPending
	}
	id, err := e.graph.AddEdge(from, fromPort, to, toPort, mode)
	e.mu.Unlock()
	if err != nil {
		return 0, err
	}
	e.notify(Change{Kind: ChangeEdgeAdded, EdgeID: int(id)})
	return id, nil
}

// SetViewportSize records the canvas size used by the zoom buttons.
func (e *Editor) SetViewportSize(s viewport.Size) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.size = s
}

// View returns the current scale and translate.
func (e *Editor) View() (float64, viewport.Point) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view.Scale(), e.view.Translate()
}

// WorldToScreen maps a world point with the current view.
func (e *Editor) WorldToScreen(p viewport.Point) viewport.Point {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view.WorldToScreen(p)
}

// ScreenToWorld maps a screen point with the current view.
func (e *Editor) ScreenToWorld(p viewport.Point) viewport.Point {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view.ScreenToWorld(p)
}

// ZoomIn zooms around the viewport center.
func (e *Editor) ZoomIn() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.view.ZoomIn(e.size)
}

// ZoomOut zooms out around the viewport center.
func (e *Editor) ZoomOut() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.view.ZoomOut(e.size)
}

// ZoomReset restores scale 1 and centers the Game Start node.
func (e *Editor) ZoomReset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.view.Reset()
	e.centerOnStart()
}

// CenterOnStart pans so the Game Start node sits mid-canvas.
func (e *Editor) CenterOnStart() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.centerOnStart()
}

func (e *Editor) centerOnStart() {
	if s, ok := e.graph.Sentinel(); ok {
		e.view.CenterOn(s.Position(), e.size)
	}
}
