package httpstore

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sceneflow/sceneflow/internal/adapters/assetapi"
	"github.com/sceneflow/sceneflow/internal/adapters/store/fsstore"
	"github.com/sceneflow/sceneflow/internal/adapters/store/storetest"
	"github.com/sceneflow/sceneflow/internal/core/asset"
)

func newClient(t *testing.T) *Client {
	t.Helper()
	backend, err := fsstore.New()
	require.NoError(t, err)
	srv := httptest.NewServer(assetapi.New(backend, nil))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClient_Contract(t *testing.T) {
	storetest.Run(t, newClient)
}

func TestNew_RejectsBadURL(t *testing.T) {
	for _, u := range []string{"", "localhost:5000", "://x"} {
		_, err := New(u)
		assert.Error(t, err, u)
	}
}

func TestClient_BundleAndRestore(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	require.NoError(t, c.Save(ctx, asset.KindScene, "Lobby", "src"))
	require.NoError(t, c.StageFile(ctx, asset.File{Path: "music/theme.mp3", Data: []byte{7, 7}}))

	_, err := c.BundleFlow(ctx, asset.BundleRequest{FlowName: "main", SceneNames: []string{"Lobby"}})
	assert.ErrorIs(t, err, asset.ErrNotFound)

	require.NoError(t, c.Save(ctx, asset.KindFlow, "main", `{"nodes":[],"edges":[]}`))
	res, err := c.BundleFlow(ctx, asset.BundleRequest{FlowName: "main", SceneNames: []string{"Lobby"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Lobby"}, res.BundledScenes)
	assert.Equal(t, 1, res.TotalFiles)

	require.NoError(t, c.ClearStaging(ctx))
	restored, err := c.RestoreFlowAssets(ctx, "main")
	require.NoError(t, err)
	assert.True(t, restored.FoundAssets)
	assert.Equal(t, []string{"Lobby"}, restored.RestoredScenes)
	assert.Equal(t, 1, restored.RestoredFiles)

	staged, err := c.StagedFiles(ctx)
	require.NoError(t, err)
	require.Len(t, staged, 1)
	assert.Equal(t, "music/theme.mp3", staged[0].Path)
	assert.Equal(t, []byte{7, 7}, staged[0].Data)

	none, err := c.RestoreFlowAssets(ctx, "other")
	require.NoError(t, err)
	assert.False(t, none.FoundAssets)
	assert.Empty(t, none.RestoredScenes)
}

func TestClient_StageFileReplacesSamePath(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	require.NoError(t, c.StageFile(ctx, asset.File{Path: "a.png", Data: []byte{1}}))
	require.NoError(t, c.StageFile(ctx, asset.File{Path: "a.png", Data: []byte{2}}))

	staged, err := c.StagedFiles(ctx)
	require.NoError(t, err)
	require.Len(t, staged, 1)
	assert.Equal(t, []byte{2}, staged[0].Data)

	assert.ErrorIs(t, c.StageFile(ctx, asset.File{Path: "../x"}), asset.ErrInvalidName)
}

func TestClient_SettingsStayLocal(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	require.NoError(t, c.SetSetting(ctx, asset.ActiveFlowKey, "main"))
	v, err := c.GetSetting(ctx, asset.ActiveFlowKey)
	require.NoError(t, err)
	assert.Equal(t, "main", v)
}
