package sceneflow

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sceneflow/sceneflow/internal/adapters/store/fsstore"
	"github.com/sceneflow/sceneflow/internal/app/editor"
	"github.com/sceneflow/sceneflow/internal/app/persistence"
	"github.com/sceneflow/sceneflow/internal/app/runtime"
	"github.com/sceneflow/sceneflow/internal/core/asset"
	"github.com/sceneflow/sceneflow/internal/core/flow"
	"github.com/sceneflow/sceneflow/internal/core/trigger"
	"github.com/sceneflow/sceneflow/internal/infrastructure/config"
)

// Re-exported types so callers can stay out of internal packages.
type (
	Graph        = flow.Graph
	Editor       = editor.Editor
	Session      = runtime.Session
	Host         = runtime.Host
	HeadlessHost = runtime.HeadlessHost
	AutoSaver    = persistence.AutoSaver
	Flows        = persistence.Service
)

// Runtime owns one asset store and everything built on it.
type Runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	backend  Backend
	flows    *persistence.Service
	triggers *trigger.Resolver
}

// Open opens the store cfg names and wires the services over it. A nil cfg
// means config.Default().
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	backend, err := OpenStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	return New(backend, cfg, logger), nil
}

// New wires a runtime over an already open backend.
func New(backend Backend, cfg *config.Config, logger *slog.Logger) *Runtime {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runtime{
		cfg:      cfg,
		logger:   logger,
		backend:  backend,
		flows:    persistence.NewService(backend, persistence.WithLogger(logger)),
		triggers: trigger.NewResolver(backend, logger),
	}
}

// Backend returns the asset store.
func (rt *Runtime) Backend() Backend { return rt.backend }

// Flows returns the flow persistence service.
func (rt *Runtime) Flows() *Flows { return rt.flows }

// Triggers returns the triggers the named scene declares.
func (rt *Runtime) Triggers(ctx context.Context, scene string) []string {
	return rt.triggers.Resolve(ctx, scene)
}

// OpenEditor loads flow name into a new editor, or starts a fresh graph
// when the flow does not exist. An empty name opens the active flow, then
// falls back to persistence.DefaultFlowName. Trigger ports are re-read from
// the current scene sources before the editor is returned. Every committed
// change schedules an autosave; call Stop on the returned saver when done.
func (rt *Runtime) OpenEditor(ctx context.Context, name string) (*Editor, *AutoSaver, error) {
	if name == "" {
		active, err := rt.flows.Active(ctx)
		if err == nil {
			name = active
		} else {
			name = persistence.DefaultFlowName
		}
	}

	g, err := rt.flows.Load(ctx, name)
	switch {
	case errors.Is(err, asset.ErrNotFound):
		g = flow.New(name)
	case err != nil:
		return nil, nil, err
	}

	ed := editor.New(g, rt.triggers, editor.WithLogger(rt.logger))
	ed.SetName(name)
	ed.RefreshAllTriggers(ctx)
	saver := persistence.NewAutoSaver(rt.flows, ed, persistence.WithDelay(rt.cfg.Editor.AutoSaveDelay))
	ed.OnChange(func(editor.Change) { saver.Schedule() })
	return ed, saver, nil
}

// WatchScenes refreshes ed's trigger ports whenever a scene file changes.
// It only works for an OS backed fs store and returns when ctx is done.
func (rt *Runtime) WatchScenes(ctx context.Context, ed *Editor) error {
	fs, ok := rt.backend.(*fsstore.Store)
	if !ok || rt.cfg.Store.AssetDir == "" {
		return errors.New("scene watching needs the fs store with an asset dir")
	}
	w, err := trigger.NewWatcher(fs.SceneDir(), rt.logger)
	if err != nil {
		return err
	}
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()
	for name := range w.Changes() {
		rt.logger.Debug("scene changed", "scene", name)
		ed.RefreshAllTriggers(ctx)
	}
	return <-errc
}

// NewSession builds a play session reading scenes and the active flow from
// the store. A nil host means a headless one.
func (rt *Runtime) NewSession(host Host) *Session {
	if host == nil {
		host = runtime.NewHeadlessHost(rt.logger)
	}
	return runtime.NewSession(rt.backend, rt.flows, host,
		runtime.WithLogger(rt.logger),
		runtime.WithDefaultScene(rt.cfg.Runtime.DefaultScene),
		runtime.WithMaxOverlayDepth(rt.cfg.Runtime.MaxOverlayDepth),
	)
}

// Play starts a session on the active flow.
func (rt *Runtime) Play(ctx context.Context, host Host) (*Session, error) {
	s := rt.NewSession(host)
	if err := s.Start(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the store.
func (rt *Runtime) Close() error {
	return rt.backend.Close()
}
