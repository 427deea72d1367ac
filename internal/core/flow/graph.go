// Package flow provides the scene flow graph: scene nodes joined by
// port-qualified transition edges, plus its JSON document form.
package flow

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
)

// Graph is the aggregate root of a flow. It is not safe for concurrent use;
// the editor and persistence layers serialize access.
// PRINCIPLES:
// - KISS: maps keyed by id, counters seeded from max(id)+1
// - SRP: structure only, no execution
type Graph struct {
	Name string

	nodes      map[NodeID]*SceneNode
	edges      map[EdgeID]*SceneEdge
	nextNodeID NodeID
	nextEdgeID EdgeID
}

// NewEmpty returns a graph with no nodes at all.
func NewEmpty(name string) *Graph {
	return &Graph{
		Name:       name,
		nodes:      make(map[NodeID]*SceneNode),
		edges:      make(map[EdgeID]*SceneEdge),
		nextNodeID: 1,
		nextEdgeID: 1,
	}
}

// New returns a graph holding only the Game Start sentinel.
func New(name string) *Graph {
	g := NewEmpty(name)
	_, _ = g.AddNode(SentinelName, SentinelPosition.X, SentinelPosition.Y)
	return g
}

// AddNode allocates a fresh id and inserts a node with no triggers.
func (g *Graph) AddNode(name string, x, y float64) (NodeID, error) {
	if name == "" {
		return 0, ErrInvalidNodeName
	}
	id := g.nextNodeID
	g.nextNodeID++
	g.nodes[id] = &SceneNode{ID: id, Name: name, X: x, Y: y, Triggers: []string{}}
	return id, nil
}

// RemoveNode deletes the node and every edge touching it.
func (g *Graph) RemoveNode(id NodeID) error {
	if _, ok := g.nodes[id]; !ok {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	delete(g.nodes, id)
	for eid, e := range g.edges {
		if e.Touches(id) {
			delete(g.edges, eid)
		}
	}
	return nil
}

// AddEdge connects two distinct nodes. Trigger ports must be declared by
// their node, and a source trigger may drive at most one edge.
func (g *Graph) AddEdge(from NodeID, fromPort PortRef, to NodeID, toPort PortRef, mode Mode) (EdgeID, error) {
	if from == to {
		return 0, ErrSelfLoop
	}
	src, ok := g.nodes[from]
	if !ok {
		return 0, fmt.Errorf("%w: source %d", ErrNodeNotFound, from)
	}
	dst, ok := g.nodes[to]
	if !ok {
		return 0, fmt.Errorf("%w: target %d", ErrNodeNotFound, to)
	}
	if !mode.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	if fromPort.IsZero() || toPort.IsZero() {
		return 0, ErrInvalidPort
	}
	if !src.HasPort(fromPort) {
		return 0, fmt.Errorf("%w: %s on %q", ErrUnknownTrigger, fromPort, src.Name)
	}
	if !dst.HasPort(toPort) {
		return 0, fmt.Errorf("%w: %s on %q", ErrUnknownTrigger, toPort, dst.Name)
	}
	if fromPort.IsTrigger() && len(g.EdgesFrom(from, fromPort.String())) > 0 {
		return 0, fmt.Errorf("%w: %s on %q", ErrDuplicateTrigger, fromPort, src.Name)
	}
	return g.insertEdge(from, fromPort, to, toPort, mode), nil
}

// AddEdgeUnchecked inserts an edge skipping port and duplicate checks.
// It still refuses self-loops and dangling endpoints.
func (g *Graph) AddEdgeUnchecked(from NodeID, fromPort PortRef, to NodeID, toPort PortRef, mode Mode) (EdgeID, error) {
	if from == to {
		return 0, ErrSelfLoop
	}
	if _, ok := g.nodes[from]; !ok {
		return 0, fmt.Errorf("%w: source %d", ErrNodeNotFound, from)
	}
	if _, ok := g.nodes[to]; !ok {
		return 0, fmt.Errorf("%w: target %d", ErrNodeNotFound, to)
	}
	return g.insertEdge(from, fromPort, to, toPort, mode), nil
}

func (g *Graph) insertEdge(from NodeID, fromPort PortRef, to NodeID, toPort PortRef, mode Mode) EdgeID {
	id := g.nextEdgeID
	g.nextEdgeID++
	g.edges[id] = &SceneEdge{ID: id, FromNodeID: from, FromPort: fromPort, ToNodeID: to, ToPort: toPort, Mode: mode}
	return id
}

// RemoveEdge deletes one edge.
func (g *Graph) RemoveEdge(id EdgeID) error {
	if _, ok := g.edges[id]; !ok {
		return fmt.Errorf("%w: %d", ErrEdgeNotFound, id)
	}
	delete(g.edges, id)
	return nil
}

// MoveNode sets a node's world position.
func (g *Graph) MoveNode(id NodeID, x, y float64) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	n.X, n.Y = x, y
	return nil
}

// RenameNode changes the scene a node refers to. Its triggers are cleared
// since they belonged to the previous scene.
func (g *Graph) RenameNode(id NodeID, name string) error {
	if name == "" {
		return ErrInvalidNodeName
	}
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	if n.Name != name {
		n.Name = name
		n.Triggers = []string{}
	}
	return nil
}

// SetTriggers replaces a node's trigger list.
func (g *Graph) SetTriggers(id NodeID, triggers []string) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	n.Triggers = slices.Clone(triggers)
	if n.Triggers == nil {
		n.Triggers = []string{}
	}
	return nil
}

// Node returns a copy of the node with the given id.
func (g *Graph) Node(id NodeID) (SceneNode, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return SceneNode{}, false
	}
	return n.clone(), true
}

// NodeByName returns the lowest-id node with the given name.
func (g *Graph) NodeByName(name string) (SceneNode, bool) {
	for _, n := range g.Nodes() {
		if n.Name == name {
			return n, true
		}
	}
	return SceneNode{}, false
}

// Sentinel returns the lowest-id Game Start node.
func (g *Graph) Sentinel() (SceneNode, bool) {
	return g.NodeByName(SentinelName)
}

// SentinelCount returns how many Game Start nodes exist.
func (g *Graph) SentinelCount() int {
	count := 0
	for _, n := range g.nodes {
		if n.IsSentinel() {
			count++
		}
	}
	return count
}

// Edge returns a copy of the edge with the given id.
func (g *Graph) Edge(id EdgeID) (SceneEdge, bool) {
	e, ok := g.edges[id]
	if !ok {
		return SceneEdge{}, false
	}
	return *e, true
}

// Nodes returns copies of all nodes in ascending id order.
func (g *Graph) Nodes() []SceneNode {
	out := make([]SceneNode, 0, len(g.nodes))
	for _, id := range slices.Sorted(maps.Keys(g.nodes)) {
		out = append(out, g.nodes[id].clone())
	}
	return out
}

// Edges returns copies of all edges in ascending id order.
func (g *Graph) Edges() []SceneEdge {
	out := make([]SceneEdge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, *e)
	}
	slices.SortFunc(out, func(a, b SceneEdge) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// OutgoingEdges returns edges leaving id in ascending edge id order.
func (g *Graph) OutgoingEdges(id NodeID) []SceneEdge {
	var out []SceneEdge
	for _, e := range g.Edges() {
		if e.FromNodeID == id {
			out = append(out, e)
		}
	}
	return out
}

// EdgesFrom returns edges leaving id through the named port, ascending by id.
func (g *Graph) EdgesFrom(id NodeID, port string) []SceneEdge {
	var out []SceneEdge
	for _, e := range g.OutgoingEdges(id) {
		if e.FromPort.String() == port {
			out = append(out, e)
		}
	}
	return out
}

// TriggerEdgesFrom returns edges leaving id through trigger port trigger,
// ascending by id. Anchor ports never match.
func (g *Graph) TriggerEdgesFrom(id NodeID, trigger string) []SceneEdge {
	var out []SceneEdge
	for _, e := range g.OutgoingEdges(id) {
		if e.FromPort.IsTrigger() && e.FromPort.String() == trigger {
			out = append(out, e)
		}
	}
	return out
}

// SceneNames returns the distinct non-sentinel node names in id order.
func (g *Graph) SceneNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, n := range g.Nodes() {
		if n.IsSentinel() || seen[n.Name] {
			continue
		}
		seen[n.Name] = true
		names = append(names, n.Name)
	}
	return names
}

func (g *Graph) NodeCount() int     { return len(g.nodes) }
func (g *Graph) EdgeCount() int     { return len(g.edges) }
func (g *Graph) NextNodeID() NodeID { return g.nextNodeID }
func (g *Graph) NextEdgeID() EdgeID { return g.nextEdgeID }

// Clone returns a deep copy.
func (g *Graph) Clone() *Graph {
	c := NewEmpty(g.Name)
	for id, n := range g.nodes {
		cp := n.clone()
		c.nodes[id] = &cp
	}
	for id, e := range g.edges {
		cp := *e
		c.edges[id] = &cp
	}
	c.nextNodeID = g.nextNodeID
	c.nextEdgeID = g.nextEdgeID
	return c
}
