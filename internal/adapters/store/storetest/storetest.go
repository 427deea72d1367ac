// Package storetest holds the behaviour every asset store adapter must
// share. Adapter tests call Run with a fresh store factory.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sceneflow/sceneflow/internal/core/asset"
)

// Contract is the part of asset.Repository every adapter implements.
type Contract interface {
	asset.Store
	asset.ThumbnailStore
	asset.Staging
	asset.Settings
}

// Run exercises the contract; bundle storage is checked when the adapter
// implements asset.BundleRepository.
func Run[T Contract](t *testing.T, newRepo func(t *testing.T) T) {
	t.Run("save load list delete", func(t *testing.T) {
		testCRUD(t, newRepo(t))
	})
	t.Run("thumbnails", func(t *testing.T) {
		testThumbnails(t, newRepo(t))
	})
	t.Run("staging", func(t *testing.T) {
		testStaging(t, newRepo(t))
	})
	t.Run("bundles", func(t *testing.T) {
		repo, ok := any(newRepo(t)).(asset.BundleRepository)
		if !ok {
			t.Skip("adapter bundles through its own layout")
		}
		testBundles(t, repo)
	})
	t.Run("settings", func(t *testing.T) {
		testSettings(t, newRepo(t))
	})
}

func testCRUD(t *testing.T, repo Contract) {
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, asset.KindScene, "Lobby", "// FLOW_TRIGGER: id=openDoor"))
	require.NoError(t, repo.Save(ctx, asset.KindScene, "Hall", "v1"))
	require.NoError(t, repo.Save(ctx, asset.KindFlow, "main", `{"nodes":[],"edges":[]}`))

	a, err := repo.Load(ctx, asset.KindScene, "Lobby")
	require.NoError(t, err)
	assert.Equal(t, "Lobby", a.Name)
	assert.Equal(t, asset.KindScene, a.Kind)
	assert.Equal(t, "// FLOW_TRIGGER: id=openDoor", a.Content)
	assert.False(t, a.CreatedAt.IsZero())

	require.NoError(t, repo.Save(ctx, asset.KindScene, "Hall", "v2"))
	a, err = repo.Load(ctx, asset.KindScene, "Hall")
	require.NoError(t, err)
	assert.Equal(t, "v2", a.Content)

	infos, err := repo.List(ctx, asset.KindScene, asset.Filter{})
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "Hall", infos[0].Name)
	assert.Equal(t, "Lobby", infos[1].Name)

	infos, err = repo.List(ctx, asset.KindScene, asset.Filter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "Lobby", infos[0].Name)

	infos, err = repo.List(ctx, asset.KindScene, asset.Filter{Prefix: "Lo"})
	require.NoError(t, err)
	require.Len(t, infos, 1)

	infos, err = repo.List(ctx, asset.KindMap, asset.Filter{})
	require.NoError(t, err)
	assert.Empty(t, infos)

	_, err = repo.List(ctx, asset.KindScene, asset.Filter{Limit: -1})
	assert.ErrorIs(t, err, asset.ErrInvalidLimit)

	require.NoError(t, repo.Delete(ctx, asset.KindScene, "Hall"))
	_, err = repo.Load(ctx, asset.KindScene, "Hall")
	assert.ErrorIs(t, err, asset.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, asset.KindScene, "Hall"), asset.ErrNotFound)

	assert.ErrorIs(t, repo.Save(ctx, "texture", "x", ""), asset.ErrInvalidKind)
	assert.ErrorIs(t, repo.Save(ctx, asset.KindScene, "../x", ""), asset.ErrInvalidName)
}

func testThumbnails(t *testing.T, repo Contract) {
	ctx := context.Background()
	img := []byte{0x89, 'P', 'N', 'G'}

	assert.ErrorIs(t, repo.SaveThumbnail(ctx, asset.KindScene, "Lobby", img), asset.ErrNotFound)

	require.NoError(t, repo.Save(ctx, asset.KindScene, "Lobby", "src"))
	require.NoError(t, repo.SaveThumbnail(ctx, asset.KindScene, "Lobby", img))

	got, err := repo.LoadThumbnail(ctx, asset.KindScene, "Lobby")
	require.NoError(t, err)
	assert.Equal(t, img, got)

	infos, err := repo.List(ctx, asset.KindScene, asset.Filter{})
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.True(t, infos[0].HasThumbnail)

	require.NoError(t, repo.Delete(ctx, asset.KindScene, "Lobby"))
	_, err = repo.LoadThumbnail(ctx, asset.KindScene, "Lobby")
	assert.ErrorIs(t, err, asset.ErrNotFound)
}

func testStaging(t *testing.T, repo Contract) {
	ctx := context.Background()

	require.NoError(t, repo.StageFile(ctx, asset.File{Path: "textures/wall.png", Data: []byte{1, 2}}))
	require.NoError(t, repo.StageFile(ctx, asset.File{Path: "a.glb", Data: []byte{3}}))

	files, err := repo.StagedFiles(ctx)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.glb", files[0].Path)
	assert.Equal(t, []byte{1, 2}, files[1].Data)

	require.NoError(t, repo.ClearStaging(ctx))
	files, err = repo.StagedFiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func testBundles(t *testing.T, repo asset.BundleRepository) {
	ctx := context.Background()

	_, err := repo.LoadBundle(ctx, "main")
	assert.ErrorIs(t, err, asset.ErrBundleNotFound)

	b := asset.NewBundle("main")
	b.Scenes["Lobby"] = "src"
	b.Files = []asset.File{{Path: "a.glb", Data: []byte{9}}}
	b.CreatedAt = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, repo.SaveBundle(ctx, b))

	got, err := repo.LoadBundle(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
	assert.Equal(t, b.Scenes, got.Scenes)
	require.Len(t, got.Files, 1)
	assert.Equal(t, b.Files[0].Data, got.Files[0].Data)

	require.NoError(t, repo.DeleteBundle(ctx, "main"))
	_, err = repo.LoadBundle(ctx, "main")
	assert.ErrorIs(t, err, asset.ErrBundleNotFound)
	assert.NoError(t, repo.DeleteBundle(ctx, "main"))
}

func testSettings(t *testing.T, repo Contract) {
	ctx := context.Background()

	_, err := repo.GetSetting(ctx, asset.ActiveFlowKey)
	assert.ErrorIs(t, err, asset.ErrSettingNotFound)

	require.NoError(t, repo.SetSetting(ctx, asset.ActiveFlowKey, "main"))
	require.NoError(t, repo.SetSetting(ctx, asset.ActiveFlowKey, "other"))
	v, err := repo.GetSetting(ctx, asset.ActiveFlowKey)
	require.NoError(t, err)
	assert.Equal(t, "other", v)

	require.NoError(t, repo.DeleteSetting(ctx, asset.ActiveFlowKey))
	_, err = repo.GetSetting(ctx, asset.ActiveFlowKey)
	assert.ErrorIs(t, err, asset.ErrSettingNotFound)
}
