package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sceneflow/sceneflow/internal/adapters/store/storetest"
	"github.com/sceneflow/sceneflow/internal/core/asset"
)

func newMemoryStore(t *testing.T) asset.Repository {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_Contract(t *testing.T) {
	storetest.Run(t, newMemoryStore)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "assets.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, asset.KindFlow, "main", `{"nodes":[],"edges":[]}`))
	require.NoError(t, s.SetSetting(ctx, asset.ActiveFlowKey, "main"))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	a, err := s.Load(ctx, asset.KindFlow, "main")
	require.NoError(t, err)
	assert.Equal(t, `{"nodes":[],"edges":[]}`, a.Content)

	v, err := s.GetSetting(ctx, asset.ActiveFlowKey)
	require.NoError(t, err)
	assert.Equal(t, "main", v)
}

func TestStore_TablePrefix(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	s := New(db, nil).WithTablePrefix("game_")
	require.NoError(t, s.CreateTables(ctx))
	require.NoError(t, s.Save(ctx, asset.KindScene, "Lobby", "src"))

	var n int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM game_assets").Scan(&n))
	assert.Equal(t, 1, n)

	s.WithTablePrefix("bad; DROP TABLE")
	assert.Equal(t, "game_", s.prefix)
}
