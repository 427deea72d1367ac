package editor

import (
	"github.com/sceneflow/sceneflow/internal/core/flow"
	"github.com/sceneflow/sceneflow/internal/core/viewport"
)

// EdgeTolerance is how close, in screen pixels, a press must land to an
// edge line to select it.
const EdgeTolerance = 6.0

// HitKind classifies what lies under a screen point.
type HitKind int

const (
	HitBackground HitKind = iota
	HitPort
	HitHandle
	HitEdge
	HitNode
)

// Hit is the result of a hit test.
type Hit struct {
	Kind   HitKind
	NodeID flow.NodeID
	Port   flow.PortRef
	EdgeID flow.EdgeID
}

// hitTest resolves screen point p. Ports win over handles, handles over
// edges, edges over node bodies. Among nodes the topmost (highest id,
// drawn last) wins, and trigger ports are checked before anchors.
func hitTest(g *flow.Graph, view *viewport.Transform, p viewport.Point) Hit {
	w := view.ScreenToWorld(p)
	nodes := g.Nodes()

	for i := len(nodes) - 1; i >= 0; i-- {
		if h, ok := portAt(nodes[i], w); ok {
			return h
		}
	}
	for i := len(nodes) - 1; i >= 0; i-- {
		if flow.Handle(nodes[i]).Contains(w) {
			return Hit{Kind: HitHandle, NodeID: nodes[i].ID}
		}
	}
	if id, ok := edgeAt(g, view, p); ok {
		return Hit{Kind: HitEdge, EdgeID: id}
	}
	for i := len(nodes) - 1; i >= 0; i-- {
		if flow.Body(nodes[i]).Contains(w) {
			return Hit{Kind: HitNode, NodeID: nodes[i].ID}
		}
	}
	return Hit{Kind: HitBackground}
}

func portAt(n flow.SceneNode, w viewport.Point) (Hit, bool) {
	ports := flow.Ports(n)
	// anchors come first in Ports; scan triggers before them
	for i := len(ports) - 1; i >= 0; i-- {
		if ports[i].Circle.Contains(w) {
			return Hit{Kind: HitPort, NodeID: n.ID, Port: ports[i].Ref}, true
		}
	}
	return Hit{}, false
}

// edgeAt returns the lowest-id edge whose line passes within EdgeTolerance
// of screen point p.
func edgeAt(g *flow.Graph, view *viewport.Transform, p viewport.Point) (flow.EdgeID, bool) {
	for _, e := range g.Edges() {
		a, b, ok := edgeLine(g, view, e)
		if !ok {
			continue
		}
		if viewport.SegmentDistance(p, a, b) <= EdgeTolerance {
			return e.ID, true
		}
	}
	return 0, false
}

// edgeLine returns the screen endpoints of e.
func edgeLine(g *flow.Graph, view *viewport.Transform, e flow.SceneEdge) (viewport.Point, viewport.Point, bool) {
	from, ok := g.Node(e.FromNodeID)
	if !ok {
		return viewport.Point{}, viewport.Point{}, false
	}
	to, ok := g.Node(e.ToNodeID)
	if !ok {
		return viewport.Point{}, viewport.Point{}, false
	}
	a := view.WorldToScreen(flow.PortPosition(from, e.FromPort))
	b := view.WorldToScreen(flow.PortPosition(to, e.ToPort))
	return a, b, true
}
