package flow

import (
	"slices"

	"github.com/sceneflow/sceneflow/internal/core/viewport"
)

// SentinelName marks the entry-point node of a flow.
const SentinelName = "Game Start"

// SentinelPosition is where a fresh graph places its sentinel.
var SentinelPosition = viewport.Pt(400, 300)

// NodeID identifies a node within one graph.
type NodeID int

// SceneNode is a vertex: either a scene reference or the sentinel.
// X and Y are the world-space center of the node.
type SceneNode struct {
	ID       NodeID   `json:"id"`
	Name     string   `json:"name"`
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	Triggers []string `json:"triggers"`
}

// Validate ensures node integrity
func (n *SceneNode) Validate() error {
	if n.ID <= 0 {
		return ErrInvalidNodeID
	}
	if n.Name == "" {
		return ErrInvalidNodeName
	}
	return nil
}

// IsSentinel reports whether n is a Game Start node.
func (n *SceneNode) IsSentinel() bool {
	return n.Name == SentinelName
}

// Position returns the world-space center.
func (n *SceneNode) Position() viewport.Point {
	return viewport.Pt(n.X, n.Y)
}

// HasTrigger reports whether id is one of n's declared triggers.
func (n *SceneNode) HasTrigger(id string) bool {
	return slices.Contains(n.Triggers, id)
}

// HasPort reports whether p is a port this node currently exposes.
func (n *SceneNode) HasPort(p PortRef) bool {
	switch p.Kind() {
	case PortAnchor:
		return true
	case PortTrigger:
		return n.HasTrigger(p.TriggerID())
	}
	return false
}

func (n SceneNode) clone() SceneNode {
	n.Triggers = slices.Clone(n.Triggers)
	if n.Triggers == nil {
		n.Triggers = []string{}
	}
	return n
}
