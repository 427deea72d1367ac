package trigger

import (
	"context"
	"log/slog"

	"github.com/sceneflow/sceneflow/internal/core/asset"
)

// Resolver fetches scene source and parses its triggers. Failures degrade
// to an empty list so editing never blocks on the store.
type Resolver struct {
	store  asset.Store
	logger *slog.Logger
}

// NewResolver creates a resolver reading scenes from store.
func NewResolver(store asset.Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, logger: logger}
}

// Resolve returns the triggers declared by the named scene.
func (r *Resolver) Resolve(ctx context.Context, sceneName string) []string {
	if r == nil || r.store == nil {
		return []string{}
	}
	a, err := r.store.Load(ctx, asset.KindScene, sceneName)
	if err != nil {
		r.logger.Debug("trigger scan skipped", "scene", sceneName, "error", err)
		return []string{}
	}
	return Parse(a.Content)
}
