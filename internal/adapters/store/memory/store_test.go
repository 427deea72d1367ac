package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sceneflow/sceneflow/internal/adapters/store/storetest"
	"github.com/sceneflow/sceneflow/internal/core/asset"
)

func TestStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) asset.Repository { return New() })
}

func TestStore_KeepsCreatedAt(t *testing.T) {
	tick := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	}))
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, asset.KindScene, "Lobby", "a"))
	require.NoError(t, s.Save(ctx, asset.KindScene, "Lobby", "b"))

	a, err := s.Load(ctx, asset.KindScene, "Lobby")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, a.UpdatedAt.Sub(a.CreatedAt))

	since := a.UpdatedAt.Add(time.Second)
	infos, err := s.List(ctx, asset.KindScene, asset.Filter{Since: &since})
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestStore_LoadReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, asset.KindScene, "Lobby", "a"))

	a, err := s.Load(ctx, asset.KindScene, "Lobby")
	require.NoError(t, err)
	a.Content = "mutated"

	again, err := s.Load(ctx, asset.KindScene, "Lobby")
	require.NoError(t, err)
	assert.Equal(t, "a", again.Content)
}
