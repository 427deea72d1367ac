// Package runtime plays a flow: it picks the first scene from the Game Start
// node, runs scene source in a sandbox, and walks edges when the running
// scene raises triggers.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sceneflow/sceneflow/internal/app/dto"
	"github.com/sceneflow/sceneflow/internal/core/asset"
	"github.com/sceneflow/sceneflow/internal/core/flow"
	"github.com/sceneflow/sceneflow/internal/infrastructure/metrics"
	"github.com/sceneflow/sceneflow/pkg/kit"
)

const (
	// DefaultSceneName is played when a flow cannot be started.
	DefaultSceneName = "default"
	// DefaultMaxOverlayDepth caps how many scenes stay alive under overlays.
	DefaultMaxOverlayDepth = 4

	historyLimit = 100
)

// FlowSource supplies the active flow at session start.
type FlowSource interface {
	Active(ctx context.Context) (string, error)
	Load(ctx context.Context, name string) (*flow.Graph, error)
}

type requestKind int

const (
	requestStart requestKind = iota
	requestTrigger
	requestNavigate
)

// request is one queued unit of work. Requests raised by scene code carry
// the scene that raised them so they can be dropped once it is disposed.
type request struct {
	kind    requestKind
	trigger string
	target  string
	mode    flow.Mode
	from    string
	origin  *binding
	failure error
}

// Session owns the state of one play-through.
type Session struct {
	id       uuid.UUID
	scenes   asset.Store
	flows    FlowSource
	host     Host
	sandbox  *Sandbox
	logger   *slog.Logger
	fallback string
	maxDepth int

	mu       sync.Mutex
	playCtx  context.Context
	graph    *flow.Graph
	flowName string
	current  string
	scene    *kit.Scene
	overlays []*kit.Scene
	hook     *binding
	gen      uint64
	queue    []request
	running  bool
	closed   bool
	step     int
	history  []dto.Transition
	lastErr  error
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Session) { s.logger = l } }

// WithSandbox replaces the default sandbox.
func WithSandbox(sb *Sandbox) Option { return func(s *Session) { s.sandbox = sb } }

// WithDefaultScene names the scene played when the flow cannot start.
func WithDefaultScene(name string) Option {
	return func(s *Session) {
		if name != "" {
			s.fallback = name
		}
	}
}

// WithMaxOverlayDepth caps retained overlay scenes; values below 1 keep
// the default.
func WithMaxOverlayDepth(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.maxDepth = n
		}
	}
}

// NewSession wires a session. flows may be nil when the caller always
// uses Play.
func NewSession(scenes asset.Store, flows FlowSource, host Host, opts ...Option) *Session {
	s := &Session{
		id:       uuid.New(),
		scenes:   scenes,
		flows:    flows,
		host:     host,
		logger:   slog.Default(),
		fallback: DefaultSceneName,
		maxDepth: DefaultMaxOverlayDepth,
		playCtx:  context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sandbox == nil {
		s.sandbox = NewSandbox(WithSandboxLogger(s.logger))
	}
	s.logger = s.logger.With("session", s.id.String())
	return s
}

// ID identifies the session.
func (s *Session) ID() uuid.UUID { return s.id }

// Start reads the active flow name, loads that flow and plays the scene
// behind its Game Start edge. Any failure falls back to the default scene;
// the reason is kept in the transition history rather than returned.
func (s *Session) Start(ctx context.Context) error {
	if s.flows == nil {
		return s.begin(ctx, nil, "", dto.ErrNoActiveFlow)
	}
	name, err := s.flows.Active(ctx)
	if err != nil || name == "" {
		return s.begin(ctx, nil, "", errors.Join(dto.ErrNoActiveFlow, err))
	}
	g, err := s.flows.Load(ctx, name)
	if err != nil {
		return s.begin(ctx, nil, name, fmt.Errorf("load flow %s: %w", name, err))
	}
	return s.begin(ctx, g, name, nil)
}

// Play starts g directly, bypassing the active flow setting.
func (s *Session) Play(ctx context.Context, g *flow.Graph) error {
	return s.begin(ctx, g, g.Name, nil)
}

// begin resets the session and runs the start request.
func (s *Session) begin(ctx context.Context, g *flow.Graph, name string, failure error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return dto.ErrSessionClosed
	}
	s.gen++
	s.queue = nil
	s.playCtx = context.WithoutCancel(ctx)
	if g != nil {
		s.graph = g.Clone()
	} else {
		s.graph = nil
	}
	s.flowName = name
	doomed := s.detachAll()
	s.mu.Unlock()

	disposeAll(doomed)
	_, err := s.submit(ctx, request{kind: requestStart, failure: failure})
	return err
}

// TriggerFlow resolves triggerID against the current scene's node and
// follows the lowest-id matching edge.
func (s *Session) TriggerFlow(ctx context.Context, triggerID string) (dto.TriggerOutcome, error) {
	return s.submit(ctx, request{kind: requestTrigger, trigger: triggerID})
}

// NavigateToScene executes name directly with the given mode.
func (s *Session) NavigateToScene(ctx context.Context, name string, mode flow.Mode) error {
	_, err := s.submit(ctx, request{kind: requestNavigate, target: name, mode: mode})
	return err
}

// Hook returns the trigger entry point bound to the current scene, for
// code outside the sandbox that raises triggers on the scene's behalf.
func (s *Session) Hook() func(triggerID string) {
	s.mu.Lock()
	b := s.hook
	s.mu.Unlock()
	if b == nil {
		return func(string) {}
	}
	return b.TriggerFlow
}

// submit queues r and, unless another call is already draining the queue,
// drains it. Requests raised while a scene is being built therefore run
// after that scene is installed.
func (s *Session) submit(ctx context.Context, r request) (dto.TriggerOutcome, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", dto.ErrSessionClosed
	}
	s.queue = append(s.queue, r)
	if s.running {
		s.mu.Unlock()
		return dto.TriggerQueued, nil
	}
	s.running = true
	s.mu.Unlock()

	var (
		outcome dto.TriggerOutcome
		err     error
		first   = true
	)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 || s.closed {
			s.queue = nil
			s.running = false
			s.mu.Unlock()
			break
		}
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		o, e := s.process(ctx, next)
		if first {
			outcome, err = o, e
			first = false
		}
	}
	return outcome, err
}

func (s *Session) process(ctx context.Context, r request) (dto.TriggerOutcome, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch r.kind {
	case requestStart:
		return "", s.start(ctx, r.failure)
	case requestNavigate:
		return "", s.navigate(ctx, r)
	default:
		return s.trigger(ctx, r)
	}
}

// start runs the initial-load algorithm on the session graph.
func (s *Session) start(ctx context.Context, failure error) error {
	if failure != nil {
		return s.fallbackTo(ctx, failure)
	}
	s.mu.Lock()
	g := s.graph
	s.mu.Unlock()

	target, edge, err := firstScene(g)
	if err != nil {
		return s.fallbackTo(ctx, err)
	}
	t := dto.Transition{Cause: dto.CauseStart, To: target.Name, EdgeID: int(edge.ID)}
	if err := s.executeScene(ctx, target.Name, flow.ModeReplace, t); err != nil {
		if errors.Is(err, dto.ErrStaleTransition) {
			return nil
		}
		return s.fallbackTo(ctx, err)
	}
	return nil
}

// firstScene follows the lowest-id edge leaving the sentinel.
func firstScene(g *flow.Graph) (flow.SceneNode, flow.SceneEdge, error) {
	if g == nil {
		return flow.SceneNode{}, flow.SceneEdge{}, dto.ErrNoActiveFlow
	}
	sentinel, ok := g.Sentinel()
	if !ok {
		return flow.SceneNode{}, flow.SceneEdge{}, dto.ErrNoSentinel
	}
	edges := g.OutgoingEdges(sentinel.ID)
	if len(edges) == 0 {
		return flow.SceneNode{}, flow.SceneEdge{}, dto.ErrNoStartEdge
	}
	target, ok := g.Node(edges[0].ToNodeID)
	if !ok || target.IsSentinel() {
		return flow.SceneNode{}, flow.SceneEdge{}, dto.ErrInvalidStartTarget
	}
	return target, edges[0], nil
}

// fallbackTo plays the default scene, or a built-in empty scene when the
// default scene cannot be fetched either.
func (s *Session) fallbackTo(ctx context.Context, cause error) error {
	metrics.IncFallbacks()
	s.logger.Warn("starting default scene", "scene", s.fallback, "reason", cause)

	t := dto.Transition{Cause: dto.CauseFallback, To: s.fallback, Error: cause.Error()}
	err := s.executeScene(ctx, s.fallback, flow.ModeReplace, t)
	if err == nil || errors.Is(err, dto.ErrStaleTransition) {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	gen, _, doomed := s.prepare(flow.ModeReplace)
	disposeAll(doomed)
	t.Error = errors.Join(cause, err).Error()
	s.install(gen, BuiltinScene(s.fallback), flow.ModeReplace, nil, nil, t, time.Now(), dto.TransitionCompleted)
	return nil
}

// BuiltinScene is the scene shown when nothing else can be played.
func BuiltinScene(name string) *kit.Scene {
	sc := kit.NewScene(name)
	sc.SetActiveCamera(kit.NewCamera("default", kit.V(0, 5, -10)))
	sc.Add(kit.Mesh("ground", "ground", kit.V(0, 0, 0)))
	return sc
}

func (s *Session) navigate(ctx context.Context, r request) error {
	if r.origin != nil && r.origin.stale() {
		s.logger.Debug("navigation from disposed scene dropped", "from", r.origin.name, "to", r.target)
		return nil
	}
	if r.target == flow.SentinelName {
		s.logger.Warn("cannot navigate to Game Start")
		return nil
	}
	mode := r.mode
	if !mode.Valid() {
		s.logger.Warn("unknown transition mode, using replace", "mode", string(r.mode))
		mode = flow.ModeReplace
	}
	s.mu.Lock()
	from := s.current
	s.mu.Unlock()
	t := dto.Transition{Cause: dto.CauseNavigate, From: from, To: r.target}
	err := s.executeScene(ctx, r.target, mode, t)
	if errors.Is(err, dto.ErrStaleTransition) {
		return nil
	}
	return err
}

// trigger resolves one trigger. No match is not an error: the trigger is
// inert and the running scene continues.
func (s *Session) trigger(ctx context.Context, r request) (dto.TriggerOutcome, error) {
	outcome, edge, target, from := s.resolve(r)
	metrics.TriggerResolved(string(outcome))
	log := s.logger.With("trigger", r.trigger, "scene", from)
	switch outcome {
	case dto.TriggerStale:
		log.Debug("trigger from disposed scene dropped")
		return outcome, nil
	case dto.TriggerInert:
		log.Info("trigger has no outgoing edge")
		return outcome, nil
	case dto.TriggerInvalid:
		log.Warn("trigger edge leads to no playable scene", "edge", int(edge.ID))
		return outcome, nil
	}

	t := dto.Transition{Cause: dto.CauseTrigger, Trigger: r.trigger, From: from, To: target.Name, EdgeID: int(edge.ID)}
	err := s.executeScene(ctx, target.Name, edge.Mode, t)
	if errors.Is(err, dto.ErrStaleTransition) {
		return dto.TriggerStale, nil
	}
	return outcome, err
}

func (s *Session) resolve(r request) (dto.TriggerOutcome, flow.SceneEdge, flow.SceneNode, string) {
	if r.origin != nil && r.origin.stale() {
		return dto.TriggerStale, flow.SceneEdge{}, flow.SceneNode{}, r.origin.name
	}
	s.mu.Lock()
	g := s.graph
	from := r.from
	if from == "" {
		from = s.current
	}
	s.mu.Unlock()

	if g == nil {
		return dto.TriggerInert, flow.SceneEdge{}, flow.SceneNode{}, from
	}
	node, ok := g.NodeByName(from)
	if !ok {
		return dto.TriggerInert, flow.SceneEdge{}, flow.SceneNode{}, from
	}
	edges := g.TriggerEdgesFrom(node.ID, r.trigger)
	if len(edges) == 0 {
		return dto.TriggerInert, flow.SceneEdge{}, flow.SceneNode{}, from
	}
	edge := edges[0]
	target, ok := g.Node(edge.ToNodeID)
	if !ok || target.IsSentinel() {
		return dto.TriggerInvalid, edge, flow.SceneNode{}, from
	}
	return dto.TriggerMatched, edge, target, from
}

// executeScene fetches name, applies mode and runs the source. A fetch
// failure leaves the current scene in place; failing scene code is replaced
// by an empty scene and reported to the host.
func (s *Session) executeScene(ctx context.Context, name string, mode flow.Mode, t dto.Transition) error {
	started := time.Now()
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	src, err := s.scenes.Load(ctx, asset.KindScene, name)
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", dto.ErrSceneFetch, name, err)
		metrics.SceneExecuted("fetch_failed")
		t.Mode = string(mode)
		s.record(t, started, dto.TransitionFailed, err)
		s.host.ShowError(name, err)
		return err
	}

	gen, prev, doomed := s.prepareAt(gen, mode)
	if gen == 0 {
		metrics.IncStaleFetches()
		t.Mode = string(mode)
		s.record(t, started, dto.TransitionDiscarded, dto.ErrStaleTransition)
		return dto.ErrStaleTransition
	}
	disposeAll(doomed)

	b := &binding{session: s, name: name}
	scene, err := s.sandbox.Build(ctx, name, src.Content, b)
	status := dto.TransitionCompleted
	if err != nil {
		metrics.SceneExecuted("failed")
		s.host.ShowError(name, err)
		scene = kit.NewScene(name)
		status = dto.TransitionRecovered
		t.Error = err.Error()
	} else {
		metrics.SceneExecuted("ok")
	}
	b.setScene(scene)

	if !s.install(gen, scene, mode, prev, b, t, started, status) {
		scene.Dispose()
		metrics.IncStaleFetches()
		return dto.ErrStaleTransition
	}
	return nil
}

// prepare claims a new generation and detaches what mode disposes.
func (s *Session) prepare(mode flow.Mode) (uint64, *kit.Scene, []*kit.Scene) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()
	return s.prepareAt(gen, mode)
}

// prepareAt returns gen 0 when gen is no longer current. For Replace it
// detaches the current scene and all overlays so they are disposed before
// the next scene is built; for Overlay it returns the scene to keep alive.
func (s *Session) prepareAt(gen uint64, mode flow.Mode) (uint64, *kit.Scene, []*kit.Scene) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.closed {
		return 0, nil, nil
	}
	if mode == flow.ModeOverlay {
		return gen, s.scene, nil
	}
	return gen, nil, s.detachAll()
}

// install makes scene current. It reports false when a newer transition
// started while scene was being built.
func (s *Session) install(gen uint64, scene *kit.Scene, mode flow.Mode, prev *kit.Scene, b *binding, t dto.Transition, started time.Time, status dto.TransitionStatus) bool {
	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return false
	}
	var evicted []*kit.Scene
	if mode == flow.ModeOverlay && prev != nil && prev == s.scene {
		if scene.ActiveCamera() == nil {
			if cam := prev.ActiveCamera(); cam != nil {
				scene.SetActiveCamera(cam)
			}
		}
		s.overlays = append(s.overlays, prev)
		for len(s.overlays) > s.maxDepth {
			evicted = append(evicted, s.overlays[0])
			s.overlays = s.overlays[1:]
		}
	} else if s.scene != nil && s.scene != scene {
		// overlay base changed while building
		evicted = append(evicted, s.scene)
	}
	s.scene = scene
	s.current = scene.Name
	if t.To != "" {
		s.current = t.To
	}
	s.hook = b
	depth := len(s.overlays)
	s.mu.Unlock()

	disposeAll(evicted)
	s.host.Present(scene)
	metrics.Transition(string(mode))
	metrics.SetOverlayDepth(depth)

	t.Mode = string(mode)
	s.record(t, started, status, nil)
	s.logger.Info("scene active", "scene", t.To, "mode", t.Mode, "cause", string(t.Cause), "overlays", depth)
	return true
}

// detachAll empties the scene stack and returns what was on it. Callers
// hold s.mu and dispose the result after unlocking.
func (s *Session) detachAll() []*kit.Scene {
	doomed := append([]*kit.Scene(nil), s.overlays...)
	if s.scene != nil {
		doomed = append(doomed, s.scene)
	}
	s.overlays = nil
	s.scene = nil
	s.hook = nil
	return doomed
}

func disposeAll(scenes []*kit.Scene) {
	for i := len(scenes) - 1; i >= 0; i-- {
		scenes[i].Dispose()
	}
}

func (s *Session) record(t dto.Transition, started time.Time, status dto.TransitionStatus, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step++
	t.Step = s.step
	t.Status = status
	t.StartTime = started
	t.Duration = time.Since(started)
	if err != nil {
		t.Error = err.Error()
		s.lastErr = err
	}
	s.history = append(s.history, t)
	if len(s.history) > historyLimit {
		s.history = s.history[len(s.history)-historyLimit:]
	}
}

// Current returns the active scene, or nil before Start.
func (s *Session) Current() *kit.Scene {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene
}

// CurrentName returns the name of the active scene.
func (s *Session) CurrentName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// ActiveCamera returns the camera the host should render with.
func (s *Session) ActiveCamera() *kit.Camera {
	s.mu.Lock()
	sc := s.scene
	s.mu.Unlock()
	if sc == nil {
		return nil
	}
	return sc.ActiveCamera()
}

// Overlays returns the scenes kept alive under the active one, oldest first.
func (s *Session) Overlays() []*kit.Scene {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*kit.Scene(nil), s.overlays...)
}

// Graph returns a copy of the flow being played, or nil.
func (s *Session) Graph() *flow.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.graph == nil {
		return nil
	}
	return s.graph.Clone()
}

// Transitions returns the recorded history, oldest first.
func (s *Session) Transitions() []dto.Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]dto.Transition(nil), s.history...)
}

// State returns a snapshot for status endpoints.
func (s *Session) State() dto.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := dto.SessionState{
		SessionID:    s.id.String(),
		FlowName:     s.flowName,
		CurrentScene: s.current,
		OverlayDepth: len(s.overlays),
		Overlays:     make([]string, 0, len(s.overlays)),
		Pending:      len(s.queue),
		Transitions:  append([]dto.Transition(nil), s.history...),
		LastError:    dto.NewError(s.lastErr),
	}
	for _, o := range s.overlays {
		st.Overlays = append(st.Overlays, o.Name)
	}
	if s.scene != nil {
		if cam := s.scene.ActiveCamera(); cam != nil {
			st.ActiveCamera = cam.Name
		}
	}
	return st
}

// Close disposes every live scene. Later calls fail with ErrSessionClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.gen++
	s.queue = nil
	doomed := s.detachAll()
	s.mu.Unlock()

	disposeAll(doomed)
	metrics.SetOverlayDepth(0)
	return nil
}

// binding is the kit.Flow handed to one scene's code. Requests it raises
// are attributed to that scene and ignored once the scene is disposed.
type binding struct {
	session *Session
	name    string

	mu    sync.Mutex
	scene *kit.Scene
}

func (b *binding) setScene(sc *kit.Scene) {
	b.mu.Lock()
	b.scene = sc
	b.mu.Unlock()
}

func (b *binding) stale() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scene != nil && b.scene.Disposed()
}

func (b *binding) NavigateToScene(name, mode string) {
	s := b.session
	s.mu.Lock()
	ctx := s.playCtx
	s.mu.Unlock()
	if _, err := s.submit(ctx, request{kind: requestNavigate, target: name, mode: flow.Mode(mode), origin: b}); err != nil {
		s.logger.Warn("navigation failed", "from", b.name, "to", name, "error", err)
	}
}

func (b *binding) TriggerFlow(triggerID string) {
	s := b.session
	s.mu.Lock()
	ctx := s.playCtx
	s.mu.Unlock()
	if _, err := s.submit(ctx, request{kind: requestTrigger, trigger: triggerID, from: b.name, origin: b}); err != nil {
		s.logger.Warn("trigger failed", "scene", b.name, "trigger", triggerID, "error", err)
	}
}

var _ kit.Flow = (*binding)(nil)
