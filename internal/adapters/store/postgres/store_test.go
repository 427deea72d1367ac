package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sceneflow/sceneflow/internal/adapters/store/storetest"
	"github.com/sceneflow/sceneflow/internal/core/asset"
)

func TestStore_Contract(t *testing.T) {
	dsn := os.Getenv("SCENEFLOW_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("Integration test requires PostgreSQL database (set SCENEFLOW_TEST_POSTGRES_DSN)")
	}
	storetest.Run(t, func(t *testing.T) asset.Repository {
		ctx := context.Background()
		s, err := Connect(ctx, dsn)
		require.NoError(t, err)
		s.WithSchema("sceneflow_test")
		require.NoError(t, s.CreateTables(ctx))
		for _, tbl := range []string{"assets", "thumbnails", "staged", "bundles", "settings"} {
			_, err := s.pool.Exec(ctx, "TRUNCATE "+s.table(tbl))
			require.NoError(t, err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestStore_Errors(t *testing.T) {
	ctx := context.Background()
	s := New(nil, nil)

	assert.ErrorIs(t, s.Save(ctx, asset.KindScene, "", "x"), asset.ErrInvalidName)
	assert.ErrorIs(t, s.Save(ctx, asset.KindScene, "Lobby", "x"), ErrNoPool)

	_, err := s.Load(ctx, "texture", "Lobby")
	assert.ErrorIs(t, err, asset.ErrInvalidKind)
	_, err = s.List(ctx, asset.KindScene, asset.Filter{Offset: -1})
	assert.ErrorIs(t, err, asset.ErrInvalidOffset)

	assert.ErrorIs(t, s.SaveBundle(ctx, nil), asset.ErrInvalidName)
	assert.ErrorIs(t, s.StageFile(ctx, asset.File{}), asset.ErrInvalidName)
	assert.NoError(t, s.Close())
}

func TestStore_QuotesIdentifiers(t *testing.T) {
	s := New(nil, nil).WithSchema(`odd"schema`)
	assert.Equal(t, `"odd""schema"."sceneflow_assets"`, s.table("assets"))
}

func TestStore_BuildListQuery(t *testing.T) {
	s := New(nil, nil)
	query, args := s.buildListQuery(asset.KindScene, asset.Filter{Prefix: "Lo", Limit: 5, Offset: 2})

	assert.Contains(t, query, "starts_with(a.name, $2)")
	assert.Contains(t, query, "LIMIT $3")
	assert.Contains(t, query, "OFFSET $4")
	assert.Equal(t, []any{"scene", "Lo", 5, 2}, args)
}
