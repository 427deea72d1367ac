package fsstore

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/hack-pad/hackpadfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sceneflow/sceneflow/internal/adapters/store/storetest"
	"github.com/sceneflow/sceneflow/internal/core/asset"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New()
	require.NoError(t, err)
	return s
}

func TestStore_Contract(t *testing.T) {
	storetest.Run(t, newStore)
}

func TestStore_OpenDir(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := OpenDir(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, asset.KindScene, "Lobby", "src"))

	reopened, err := OpenDir(dir)
	require.NoError(t, err)
	a, err := reopened.Load(ctx, asset.KindScene, "Lobby")
	require.NoError(t, err)
	assert.Equal(t, "src", a.Content)
}

func TestStore_DocumentLayout(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, asset.KindScene, "Lobby", "code"))

	data, err := hackpadfs.ReadFile(s.fs, "scenes/Lobby/Lobby.json")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "Lobby", doc["name"])
	assert.Equal(t, "scene", doc["type"])
	assert.Equal(t, "code", doc["code"])
	assert.Contains(t, doc, "created_at")
	assert.Contains(t, doc, "updated_at")
}

func TestStore_BundleAndRestore(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, asset.KindScene, "Lobby", "lobby-src"))
	require.NoError(t, s.Save(ctx, asset.KindScene, "Hall", "hall-src"))
	require.NoError(t, s.AttachSceneFile(ctx, "Lobby", asset.File{Path: "models/door.glb", Data: []byte{1}}))
	require.NoError(t, s.StageFile(ctx, asset.File{Path: "sky.png", Data: []byte{2}}))

	req := asset.BundleRequest{FlowName: "main", SceneNames: []string{"Lobby", "Hall", "Ghost"}}
	_, err := s.BundleFlow(ctx, req)
	assert.ErrorIs(t, err, asset.ErrNotFound, "flow must be saved first")

	require.NoError(t, s.Save(ctx, asset.KindFlow, "main", `{"nodes":[],"edges":[]}`))
	res, err := s.BundleFlow(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"Lobby", "Hall"}, res.BundledScenes)
	assert.Equal(t, 2, res.TotalFiles)

	for _, p := range []string{
		"flows/main/assets/scene_Lobby.json",
		"flows/main/assets/scene_Hall.json",
		"flows/main/assets/scene_Lobby_assets/models/door.glb",
		"flows/main/assets/external_assets/sky.png",
	} {
		assert.True(t, s.exists(p), p)
	}
	id, err := s.BundleID("main")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	require.NoError(t, s.Delete(ctx, asset.KindScene, "Hall"))
	require.NoError(t, s.ClearStaging(ctx))

	restored, err := s.RestoreFlowAssets(ctx, "main")
	require.NoError(t, err)
	assert.True(t, restored.FoundAssets)
	assert.ElementsMatch(t, []string{"Lobby", "Hall"}, restored.RestoredScenes)
	assert.Equal(t, 2, restored.RestoredFiles)

	hall, err := s.Load(ctx, asset.KindScene, "Hall")
	require.NoError(t, err)
	assert.Equal(t, "hall-src", hall.Content)

	staged, err := s.StagedFiles(ctx)
	require.NoError(t, err)
	require.Len(t, staged, 2)
	assert.Equal(t, "models/door.glb", staged[0].Path)
	assert.Equal(t, "sky.png", staged[1].Path)
}

func TestStore_RestoreWithoutBundle(t *testing.T) {
	s := newStore(t)
	res, err := s.RestoreFlowAssets(context.Background(), "nothing")
	require.NoError(t, err)
	assert.False(t, res.FoundAssets)
	assert.Empty(t, res.RestoredScenes)

	_, err = s.BundleID("nothing")
	assert.ErrorIs(t, err, asset.ErrBundleNotFound)
}

func TestStore_DeleteFlowDropsBundle(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, asset.KindFlow, "main", "{}"))
	_, err := s.BundleFlow(ctx, asset.BundleRequest{FlowName: "main"})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, asset.KindFlow, "main"))
	res, err := s.RestoreFlowAssets(ctx, "main")
	require.NoError(t, err)
	assert.False(t, res.FoundAssets)
}

func TestStore_RejectsUnsafeFilePaths(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	for _, p := range []string{"", "/abs", "../up", `a\b`} {
		assert.ErrorIs(t, s.StageFile(ctx, asset.File{Path: p}), asset.ErrInvalidName, p)
	}
}
