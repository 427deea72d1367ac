package flow

import (
	"math"

	"github.com/sceneflow/sceneflow/internal/core/viewport"
)

// Node layout in world units.
const (
	NodeWidth  = 80.0
	NodeHeight = 56.0

	AnchorPortRadius  = 7.0
	TriggerPortRadius = 8.0
	TriggerRingRadius = 50.0

	HandleRadius  = 6.0
	HandleOffsetY = -4.0
)

// Port is a hit target on a node, in world coordinates.
type Port struct {
	NodeID NodeID
	Ref    PortRef
	Circle viewport.Circle
}

// Ports returns the four anchors followed by one port per trigger.
func Ports(n SceneNode) []Port {
	ports := make([]Port, 0, len(Anchors)+len(n.Triggers))
	for _, a := range Anchors {
		ports = append(ports, Port{
			NodeID: n.ID,
			Ref:    AnchorPort(a),
			Circle: viewport.Circle{Center: AnchorPosition(n, a), Radius: AnchorPortRadius},
		})
	}
	for i, id := range n.Triggers {
		ports = append(ports, Port{
			NodeID: n.ID,
			Ref:    TriggerPort(id),
			Circle: viewport.Circle{Center: triggerPosition(n, i), Radius: TriggerPortRadius},
		})
	}
	return ports
}

// AnchorPosition returns the midpoint of the node's side for a.
func AnchorPosition(n SceneNode, a Anchor) viewport.Point {
	switch a {
	case AnchorTop:
		return viewport.Pt(n.X, n.Y-NodeHeight/2)
	case AnchorRight:
		return viewport.Pt(n.X+NodeWidth/2, n.Y)
	case AnchorBottom:
		return viewport.Pt(n.X, n.Y+NodeHeight/2)
	case AnchorLeft:
		return viewport.Pt(n.X-NodeWidth/2, n.Y)
	}
	return n.Position()
}

// triggerPosition places trigger i on a ring starting straight up and
// proceeding clockwise in screen space.
func triggerPosition(n SceneNode, i int) viewport.Point {
	angle := 2*math.Pi/float64(len(n.Triggers))*float64(i) - math.Pi/2
	return viewport.Pt(
		n.X+math.Cos(angle)*TriggerRingRadius,
		n.Y+math.Sin(angle)*TriggerRingRadius,
	)
}

// PortPosition resolves a port to its world position. Unknown trigger
// ports fall back to the node center.
func PortPosition(n SceneNode, p PortRef) viewport.Point {
	if p.IsAnchor() {
		return AnchorPosition(n, p.Anchor())
	}
	for i, id := range n.Triggers {
		if id == p.String() {
			return triggerPosition(n, i)
		}
	}
	return n.Position()
}

// Handle returns the drag handle of a node.
func Handle(n SceneNode) viewport.Circle {
	return viewport.Circle{Center: viewport.Pt(n.X, n.Y+HandleOffsetY), Radius: HandleRadius}
}

// Body returns the node rectangle.
func Body(n SceneNode) viewport.Rect {
	return viewport.Rect{Center: n.Position(), Width: NodeWidth, Height: NodeHeight}
}
