// Package editor is the headless controller behind the flow canvas. It
// turns pointer events into graph mutations, keeping pan/zoom, selection
// and the link-mode prompt as explicit state.
package editor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sceneflow/sceneflow/internal/core/flow"
	"github.com/sceneflow/sceneflow/internal/core/viewport"
	"github.com/sceneflow/sceneflow/internal/infrastructure/metrics"
)

// DefaultViewportSize is assumed until SetViewportSize is called.
var DefaultViewportSize = viewport.Size{Width: 800, Height: 600}

// TriggerSource returns the triggers a scene declares. Implementations
// degrade to an empty list instead of failing.
type TriggerSource interface {
	Resolve(ctx context.Context, sceneName string) []string
}

// PendingConnection is a finished link gesture waiting for the user to
// pick Replace or Overlay.
type PendingConnection struct {
	FromNodeID flow.NodeID
	FromPort   flow.PortRef
	ToNodeID   flow.NodeID
	ToPort     flow.PortRef
}

// Editor owns one graph while it is being edited.
// PRINCIPLES:
// - every method is safe for concurrent use; trigger fetches run off the caller
// - change hooks run after the lock is released
// - asynchronous results are dropped when the node they target has changed
type Editor struct {
	mu       sync.Mutex
	graph    *flow.Graph
	gen      uint64
	view     *viewport.Transform
	size     viewport.Size
	triggers TriggerSource
	logger   *slog.Logger

	gesture    Gesture
	lastPan    viewport.Point
	dragNode   flow.NodeID
	dragOffset viewport.Point
	dragMoved  bool
	linkNode   flow.NodeID
	linkPort   flow.PortRef
	cursor     viewport.Point
	pending    *PendingConnection

	selectedNode flow.NodeID
	selectedEdge flow.EdgeID

	hooks    []func(Change)
	inflight sync.WaitGroup
}

// Option configures an Editor.
type Option func(*Editor)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(e *Editor) { e.logger = l } }

// WithViewportSize sets the initial canvas size.
func WithViewportSize(s viewport.Size) Option { return func(e *Editor) { e.size = s } }

// New returns an editor over g, or over a fresh graph when g is nil.
// triggers may be nil, in which case nodes never get trigger ports.
func New(g *flow.Graph, triggers TriggerSource, opts ...Option) *Editor {
	if g == nil {
		g = flow.New("")
	}
	e := &Editor{
		graph:    g,
		view:     viewport.New(),
		size:     DefaultViewportSize,
		triggers: triggers,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OnChange registers fn to run after every committed mutation.
func (e *Editor) OnChange(fn func(Change)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hooks = append(e.hooks, fn)
}

func (e *Editor) notify(changes ...Change) {
	if len(changes) == 0 {
		return
	}
	e.mu.Lock()
	hooks := append([](func(Change))(nil), e.hooks...)
	e.mu.Unlock()
	for _, c := range changes {
		metrics.Gesture(string(c.Kind))
		for _, fn := range hooks {
			fn(c)
		}
	}
}

// Graph returns a copy of the edited graph.
func (e *Editor) Graph() *flow.Graph {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph.Clone()
}

// SetGraph replaces the edited graph, typically after a load. Gestures,
// selection and in-flight trigger fetches for the old graph are dropped.
// It does not fire change hooks.
func (e *Editor) SetGraph(g *flow.Graph) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.graph = g.Clone()
	e.gen++
	e.resetGesture()
	e.pending = nil
	e.selectedNode, e.selectedEdge = 0, 0
}

// Name returns the flow name of the edited graph.
func (e *Editor) Name() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph.Name
}

// SetName renames the edited flow without touching its contents.
func (e *Editor) SetName(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.graph.Name = name
}

// Clear removes every node and edge, the Game Start node included.
func (e *Editor) Clear() {
	e.mu.Lock()
	e.graph = flow.NewEmpty(e.graph.Name)
	e.gen++
	e.resetGesture()
	e.pending = nil
	e.selectedNode, e.selectedEdge = 0, 0
	e.mu.Unlock()
	e.notify(Change{Kind: ChangeCleared})
}

// AddNode inserts a scene node at world (x, y) and returns at once. The
// node's triggers are fetched in the background; the result is applied
// only if the node still exists under the same name. Use WaitIdle to join.
func (e *Editor) AddNode(ctx context.Context, name string, x, y float64) (flow.NodeID, error) {
	if name == flow.SentinelName {
		return e.AddGameStartAt(x, y)
	}
	e.mu.Lock()
	id, err := e.graph.AddNode(name, x, y)
	gen := e.gen
	e.mu.Unlock()
	if err != nil {
		return 0, err
	}
	e.notify(Change{Kind: ChangeNodeAdded, NodeID: int(id)})
	e.fetchTriggers(ctx, gen, id, name)
	return id, nil
}

// AddGameStart adds the sentinel at its default position.
func (e *Editor) AddGameStart() (flow.NodeID, error) {
	return e.AddGameStartAt(flow.SentinelPosition.X, flow.SentinelPosition.Y)
}

// AddGameStartAt adds the sentinel at (x, y) unless one already exists.
func (e *Editor) AddGameStartAt(x, y float64) (flow.NodeID, error) {
	e.mu.Lock()
	if e.graph.SentinelCount() > 0 {
		e.mu.Unlock()
		return 0, ErrSentinelExists
	}
	id, err := e.graph.AddNode(flow.SentinelName, x, y)
	e.mu.Unlock()
	if err != nil {
		return 0, err
	}
	e.notify(Change{Kind: ChangeNodeAdded, NodeID: int(id)})
	return id, nil
}

func (e *Editor) fetchTriggers(ctx context.Context, gen uint64, id flow.NodeID, name string) {
	if e.triggers == nil {
		return
	}
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		triggers := e.triggers.Resolve(ctx, name)
		if e.applyTriggers(gen, id, name, triggers) {
			e.notify(Change{Kind: ChangeTriggersUpdated, NodeID: int(id)})
		}
	}()
}

// applyTriggers sets triggers on id if it still belongs to the same graph
// and still names the same scene.
func (e *Editor) applyTriggers(gen uint64, id flow.NodeID, name string, triggers []string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen {
		return false
	}
	n, ok := e.graph.Node(id)
	if !ok || n.Name != name {
		e.logger.Debug("dropping stale trigger scan", "node", int(id), "scene", name)
		return false
	}
	return e.graph.SetTriggers(id, triggers) == nil
}

// WaitIdle blocks until every background trigger fetch has finished.
func (e *Editor) WaitIdle() {
	e.inflight.Wait()
}

// RefreshAllTriggers re-reads the triggers of every scene node and
// returns how many nodes were updated.
func (e *Editor) RefreshAllTriggers(ctx context.Context) int {
	if e.triggers == nil {
		return 0
	}
	e.mu.Lock()
	gen := e.gen
	nodes := e.graph.Nodes()
	e.mu.Unlock()

	var changes []Change
	for _, n := range nodes {
		if n.IsSentinel() {
			continue
		}
		if err := ctx.Err(); err != nil {
			break
		}
		triggers := e.triggers.Resolve(ctx, n.Name)
		if e.applyTriggers(gen, n.ID, n.Name, triggers) {
			changes = append(changes, Change{Kind: ChangeTriggersUpdated, NodeID: int(n.ID)})
		}
	}
	e.notify(changes...)
	return len(changes)
}

// RenameNode points a node at another scene and re-reads its triggers.
func (e *Editor) RenameNode(ctx context.Context, id flow.NodeID, name string) error {
	e.mu.Lock()
	n, ok := e.graph.Node(id)
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %d", flow.ErrNodeNotFound, id)
	}
	if n.IsSentinel() != (name == flow.SentinelName) {
		e.mu.Unlock()
		return fmt.Errorf("%w: cannot turn %q into %q", flow.ErrInvalidNodeName, n.Name, name)
	}
	err := e.graph.RenameNode(id, name)
	gen := e.gen
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.notify(Change{Kind: ChangeNodeRenamed, NodeID: int(id)})
	if name != flow.SentinelName {
		e.fetchTriggers(ctx, gen, id, name)
	}
	return nil
}

// Select marks id as the active node and clears the active edge. Zero
// clears the node selection.
func (e *Editor) Select(id flow.NodeID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selectedNode, e.selectedEdge = id, 0
}

// SelectEdge marks id as the active edge and clears the active node.
func (e *Editor) SelectEdge(id flow.EdgeID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selectedNode, e.selectedEdge = 0, id
}

// Selection returns the active node and edge; zero means none.
func (e *Editor) Selection() (flow.NodeID, flow.EdgeID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selectedNode, e.selectedEdge
}

// DeleteSelected removes the active edge, or the active node and every
// edge touching it.
func (e *Editor) DeleteSelected() error {
	e.mu.Lock()
	node, edge := e.selectedNode, e.selectedEdge
	var (
		change Change
		err    error
	)
	switch {
	case edge != 0:
		err = e.graph.RemoveEdge(edge)
		change = Change{Kind: ChangeEdgeRemoved, EdgeID: int(edge)}
	case node != 0:
		err = e.graph.RemoveNode(node)
		change = Change{Kind: ChangeNodeRemoved, NodeID: int(node)}
		if e.gesture == GestureDragging && e.dragNode == node {
			e.resetGesture()
		}
	default:
		err = ErrNothingSelected
	}
	e.selectedNode, e.selectedEdge = 0, 0
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.notify(change)
	return nil
}
