package persistence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sceneflow/sceneflow/internal/core/flow"
)

// DefaultAutoSaveDelay is how long the autosaver waits after the last
// change before writing.
const DefaultAutoSaveDelay = 500 * time.Millisecond

// GraphSource is what the autosaver snapshots; the editor implements it.
type GraphSource interface {
	Graph() *flow.Graph
	Name() string
}

// SaveHook is called after each autosave attempt.
type SaveHook func(name string, err error)

// AutoSaver collapses bursts of changes into one draft save issued delay
// after the last Schedule call.
type AutoSaver struct {
	svc    *Service
	source GraphSource
	delay  time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	pending bool
	stopped bool
	hooks   []SaveHook
	saving  sync.WaitGroup
}

// AutoSaveOption customizes an AutoSaver.
type AutoSaveOption func(*AutoSaver)

// WithDelay overrides DefaultAutoSaveDelay.
func WithDelay(d time.Duration) AutoSaveOption {
	return func(a *AutoSaver) {
		if d > 0 {
			a.delay = d
		}
	}
}

// WithSaveHook registers fn to run after each save attempt.
func WithSaveHook(fn SaveHook) AutoSaveOption {
	return func(a *AutoSaver) { a.hooks = append(a.hooks, fn) }
}

// NewAutoSaver creates an autosaver writing source through svc.
func NewAutoSaver(svc *Service, source GraphSource, opts ...AutoSaveOption) *AutoSaver {
	a := &AutoSaver{svc: svc, source: source, delay: DefaultAutoSaveDelay, logger: svc.logger}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Schedule (re)starts the debounce timer.
func (a *AutoSaver) Schedule() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	a.pending = true
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.delay, a.fire)
}

// Pending reports whether a save is waiting on the timer.
func (a *AutoSaver) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending
}

func (a *AutoSaver) fire() {
	a.mu.Lock()
	if !a.pending || a.stopped {
		a.mu.Unlock()
		return
	}
	a.pending = false
	a.saving.Add(1)
	a.mu.Unlock()

	defer a.saving.Done()
	a.save(context.Background())
}

// Flush cancels the timer and saves now if a change is pending.
func (a *AutoSaver) Flush(ctx context.Context) error {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
	}
	pending := a.pending
	a.pending = false
	a.mu.Unlock()

	a.saving.Wait()
	if !pending {
		return nil
	}
	return a.save(ctx)
}

// Stop flushes pending work and disables further scheduling.
func (a *AutoSaver) Stop(ctx context.Context) error {
	err := a.Flush(ctx)
	a.mu.Lock()
	a.stopped = true
	a.mu.Unlock()
	return err
}

func (a *AutoSaver) save(ctx context.Context) error {
	name := a.source.Name()
	if name == "" {
		name = DefaultFlowName
	}
	err := a.svc.SaveDraft(ctx, name, a.source.Graph())
	if err != nil {
		a.logger.Warn("autosave failed", "flow", name, "error", err)
	} else {
		a.logger.Debug("autosaved", "flow", name)
	}

	a.mu.Lock()
	hooks := append([]SaveHook(nil), a.hooks...)
	a.mu.Unlock()
	for _, fn := range hooks {
		fn(name, err)
	}
	return err
}
