package flow

import "fmt"

// Mode selects the transition semantics of an edge.
type Mode string

const (
	// ModeReplace disposes the outgoing scene before the next one starts.
	ModeReplace Mode = "replace"
	// ModeOverlay keeps the outgoing scene alive under the next one.
	ModeOverlay Mode = "overlay"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeReplace || m == ModeOverlay
}

// ParseMode converts the wire form into a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
	return m, nil
}

// EdgeID identifies an edge within one graph.
type EdgeID int

// SceneEdge is a directed, port-qualified transition between two nodes.
type SceneEdge struct {
	ID         EdgeID  `json:"id"`
	FromNodeID NodeID  `json:"fromNodeId"`
	FromPort   PortRef `json:"fromPort"`
	ToNodeID   NodeID  `json:"toNodeId"`
	ToPort     PortRef `json:"toPort"`
	Mode       Mode    `json:"mode"`
}

// Validate checks the edge in isolation; endpoint existence is the graph's job.
func (e *SceneEdge) Validate() error {
	if e.ID <= 0 {
		return ErrInvalidEdgeID
	}
	if e.FromNodeID <= 0 || e.ToNodeID <= 0 {
		return ErrInvalidNodeID
	}
	if e.FromNodeID == e.ToNodeID {
		return ErrSelfLoop
	}
	if e.FromPort.IsZero() || e.ToPort.IsZero() {
		return ErrInvalidPort
	}
	if !e.Mode.Valid() {
		return ErrInvalidMode
	}
	return nil
}

// Touches reports whether the edge references node id at either end.
func (e *SceneEdge) Touches(id NodeID) bool {
	return e.FromNodeID == id || e.ToNodeID == id
}
