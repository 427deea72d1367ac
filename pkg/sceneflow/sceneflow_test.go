package sceneflow

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sceneflow/sceneflow/internal/adapters/assetapi"
	"github.com/sceneflow/sceneflow/internal/adapters/store/fsstore"
	"github.com/sceneflow/sceneflow/internal/adapters/store/httpstore"
	"github.com/sceneflow/sceneflow/internal/adapters/store/memory"
	"github.com/sceneflow/sceneflow/internal/app/persistence"
	"github.com/sceneflow/sceneflow/internal/app/runtime"
	"github.com/sceneflow/sceneflow/internal/app/services"
	"github.com/sceneflow/sceneflow/internal/core/asset"
	"github.com/sceneflow/sceneflow/internal/core/flow"
	"github.com/sceneflow/sceneflow/internal/infrastructure/config"
	"github.com/sceneflow/sceneflow/internal/infrastructure/logging"
	"github.com/sceneflow/sceneflow/pkg/serialization"
)

const lobbySource = `// FLOW_TRIGGER: id=openDoor
var Scene = kit.NewScene("Lobby")`

const hallSource = `var Scene = kit.NewScene("Hall")`

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	backend := services.NewAssets(memory.New(), nil)
	srv := httptest.NewServer(assetapi.New(backend, nil))
	t.Cleanup(srv.Close)

	tests := []struct {
		name string
		cfg  config.StoreConfig
		want any
	}{
		{"memory", config.StoreConfig{Kind: config.StoreMemory}, &services.Assets{}},
		{"empty kind", config.StoreConfig{}, &services.Assets{}},
		{"sqlite", config.StoreConfig{Kind: config.StoreSQLite, SQLitePath: filepath.Join(t.TempDir(), "flows.db")}, &services.Assets{}},
		{"fs in memory", config.StoreConfig{Kind: config.StoreFS}, &fsstore.Store{}},
		{"fs on disk", config.StoreConfig{Kind: config.StoreFS, AssetDir: t.TempDir()}, &fsstore.Store{}},
		{"http", config.StoreConfig{Kind: config.StoreHTTP, AssetURL: srv.URL}, &httpstore.Client{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := OpenStore(ctx, tt.cfg, logging.Discard())
			require.NoError(t, err)
			t.Cleanup(func() { _ = b.Close() })
			assert.IsType(t, tt.want, b)

			require.NoError(t, b.Save(ctx, asset.KindScene, "Lobby", lobbySource))
			a, err := b.Load(ctx, asset.KindScene, "Lobby")
			require.NoError(t, err)
			assert.Equal(t, lobbySource, a.Content)
		})
	}

	_, err := OpenStore(ctx, config.StoreConfig{Kind: "redis"}, nil)
	assert.Error(t, err)
}

func TestOpenStore_BlobSettings(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sealed.db")
	keyA := strings.Repeat("a1", 32)
	keyB := strings.Repeat("b2", 32)

	open := func(t *testing.T, codec, compression, key string) Backend {
		t.Helper()
		b, err := OpenStore(ctx, config.StoreConfig{
			Kind:            config.StoreSQLite,
			SQLitePath:      path,
			BlobCodec:       codec,
			BlobCompression: compression,
			BlobKey:         key,
		}, logging.Discard())
		require.NoError(t, err)
		return b
	}

	b := open(t, "json", "gzip", keyA)
	require.NoError(t, b.Save(ctx, asset.KindScene, "Lobby", lobbySource))
	require.NoError(t, b.Close())

	b = open(t, "msgpack", "zstd", keyB)
	_, err := b.Load(ctx, asset.KindScene, "Lobby")
	assert.ErrorIs(t, err, asset.ErrLoadFailed, "another key cannot open the blob")
	require.NoError(t, b.Close())

	// The blob header records codec and compression, so only the key matters.
	b = open(t, "msgpack", "none", keyA)
	a, err := b.Load(ctx, asset.KindScene, "Lobby")
	require.NoError(t, err)
	assert.Equal(t, lobbySource, a.Content)
	require.NoError(t, b.Close())

	_, err = OpenStore(ctx, config.StoreConfig{Kind: config.StoreMemory, BlobCodec: "gob"}, nil)
	assert.ErrorIs(t, err, serialization.ErrUnknownCodec)
	_, err = OpenStore(ctx, config.StoreConfig{Kind: config.StoreMemory, BlobKey: "abc"}, nil)
	assert.ErrorIs(t, err, serialization.ErrBadKey)
}

func TestBlobSerializer(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.StoreConfig
	}{
		{"defaults", config.StoreConfig{}},
		{"json gzip", config.StoreConfig{BlobCodec: "json", BlobCompression: "gzip"}},
		{"sealed", config.StoreConfig{BlobCompression: "none", BlobKey: strings.Repeat("0f", 16)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ser, err := BlobSerializer(tt.cfg)
			require.NoError(t, err)
			blob, err := ser.Serialize(hallSource)
			require.NoError(t, err)
			var out string
			require.NoError(t, ser.Deserialize(blob, &out))
			assert.Equal(t, hallSource, out)
		})
	}

	_, err := BlobSerializer(config.StoreConfig{BlobCompression: "lz4"})
	assert.ErrorIs(t, err, serialization.ErrUnknownCompressor)
}

func TestOpenStore_Postgres(t *testing.T) {
	dsn := os.Getenv("SCENEFLOW_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("Integration test requires PostgreSQL database (set SCENEFLOW_TEST_POSTGRES_DSN)")
	}
	b, err := OpenStore(context.Background(), config.StoreConfig{Kind: config.StorePostgres, PostgresDSN: dsn}, nil)
	require.NoError(t, err)
	defer b.Close()
	assert.IsType(t, &services.Assets{}, b)
}

func newRuntime(t *testing.T) *Runtime {
	t.Helper()
	cfg := config.Default()
	cfg.Editor.AutoSaveDelay = time.Hour
	rt, err := Open(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	ctx := context.Background()
	require.NoError(t, rt.Backend().Save(ctx, asset.KindScene, "Lobby", lobbySource))
	require.NoError(t, rt.Backend().Save(ctx, asset.KindScene, "Hall", hallSource))
	return rt
}

func TestRuntime_EditSaveAndPlay(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)

	ed, saver, err := rt.OpenEditor(ctx, "story")
	require.NoError(t, err)
	assert.Equal(t, "story", ed.Name())

	lobby, err := ed.AddNode(ctx, "Lobby", 600, 300)
	require.NoError(t, err)
	hall, err := ed.AddNode(ctx, "Hall", 800, 300)
	require.NoError(t, err)
	ed.WaitIdle()

	n, ok := ed.Graph().Node(lobby)
	require.True(t, ok)
	assert.Equal(t, []string{"openDoor"}, n.Triggers)

	start, ok := ed.Graph().Sentinel()
	require.True(t, ok)
	_, err = ed.Connect(start.ID, flow.AnchorPort(flow.AnchorRight), lobby, flow.AnchorPort(flow.AnchorLeft), flow.ModeReplace)
	require.NoError(t, err)
	_, err = ed.Connect(lobby, flow.TriggerPort("openDoor"), hall, flow.AnchorPort(flow.AnchorLeft), flow.ModeReplace)
	require.NoError(t, err)

	assert.True(t, saver.Pending())
	require.NoError(t, saver.Stop(ctx))

	draft, err := rt.Flows().Load(ctx, "story")
	require.NoError(t, err)
	assert.Equal(t, 3, draft.NodeCount())
	assert.Equal(t, 2, draft.EdgeCount())

	res, err := rt.Flows().Save(ctx, "story", ed.Graph())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Lobby", "Hall"}, res.BundledScenes)
	require.NoError(t, rt.Flows().SetActive(ctx, "story"))

	host := runtime.NewHeadlessHost(nil)
	session, err := rt.Play(ctx, host)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	assert.Equal(t, "Lobby", session.CurrentName())

	_, err = session.TriggerFlow(ctx, "openDoor")
	require.NoError(t, err)
	assert.Equal(t, "Hall", session.CurrentName())
	assert.Equal(t, []string{"Lobby", "Hall"}, host.Presented())
}

func TestRuntime_OpenEditorDefaults(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)

	ed, saver, err := rt.OpenEditor(ctx, "")
	require.NoError(t, err)
	defer saver.Stop(ctx)
	assert.Equal(t, persistence.DefaultFlowName, ed.Name())
	assert.Equal(t, 1, ed.Graph().NodeCount())

	g := flow.New("chapter")
	_, err = g.AddNode("Hall", 600, 300)
	require.NoError(t, err)
	_, err = rt.Flows().Save(ctx, "chapter", g)
	require.NoError(t, err)
	require.NoError(t, rt.Flows().SetActive(ctx, "chapter"))

	ed, saver2, err := rt.OpenEditor(ctx, "")
	require.NoError(t, err)
	defer saver2.Stop(ctx)
	assert.Equal(t, "chapter", ed.Name())
	assert.Equal(t, 2, ed.Graph().NodeCount())
}

func TestRuntime_OpenEditorRefreshesTriggers(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)

	g := flow.New("chapter")
	lobby, err := g.AddNode("Lobby", 600, 300)
	require.NoError(t, err)
	require.NoError(t, g.SetTriggers(lobby, []string{"ringBell"}))
	require.NoError(t, rt.Flows().SaveDraft(ctx, "chapter", g))

	ed, saver, err := rt.OpenEditor(ctx, "chapter")
	require.NoError(t, err)
	defer saver.Stop(ctx)

	n, ok := ed.Graph().NodeByName("Lobby")
	require.True(t, ok)
	assert.Equal(t, []string{"openDoor"}, n.Triggers)
	assert.False(t, saver.Pending(), "opening does not schedule a save")
}

func TestRuntime_PlayWithoutActiveFlowFallsBack(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)

	session, err := rt.Play(ctx, nil)
	require.NoError(t, err)
	defer session.Close()
	assert.Equal(t, runtime.DefaultSceneName, session.CurrentName())
}

func TestRuntime_Triggers(t *testing.T) {
	rt := newRuntime(t)
	assert.Equal(t, []string{"openDoor"}, rt.Triggers(context.Background(), "Lobby"))
	assert.Empty(t, rt.Triggers(context.Background(), "Missing"))
}

func TestRuntime_WatchScenesNeedsDiskStore(t *testing.T) {
	rt := newRuntime(t)
	ed, saver, err := rt.OpenEditor(context.Background(), "x")
	require.NoError(t, err)
	defer saver.Stop(context.Background())
	assert.Error(t, rt.WatchScenes(context.Background(), ed))
}
