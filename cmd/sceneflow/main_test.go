package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sceneflow/sceneflow/internal/core/asset"
	"github.com/sceneflow/sceneflow/internal/core/flow"
	"github.com/sceneflow/sceneflow/internal/infrastructure/config"
	"github.com/sceneflow/sceneflow/internal/infrastructure/logging"
	"github.com/sceneflow/sceneflow/pkg/sceneflow"
)

// execute runs the CLI with args and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// useStore points the CLI at a fresh sqlite file and seeds it with two
// scenes and the flow Lobby --openDoor--> Hall.
func useStore(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flows.db")
	for _, key := range []string{"SCENEFLOW_CONFIG", "SCENEFLOW_ASSET_DIR", "SCENEFLOW_ASSET_URL", "SCENEFLOW_DEFAULT_SCENE"} {
		t.Setenv(key, "")
	}
	t.Setenv("SCENEFLOW_STORE", "sqlite")
	t.Setenv("SCENEFLOW_SQLITE_PATH", path)
	t.Setenv("SCENEFLOW_LOG_LEVEL", "error")

	ctx := context.Background()
	cfg := config.Default()
	cfg.Store.Kind = config.StoreSQLite
	cfg.Store.SQLitePath = path
	rt, err := sceneflow.Open(ctx, cfg, logging.Discard())
	require.NoError(t, err)
	defer rt.Close()

	require.NoError(t, rt.Backend().Save(ctx, asset.KindScene, "Lobby", "// FLOW_TRIGGER: id=openDoor\nvar Scene = kit.NewScene(\"Lobby\")"))
	require.NoError(t, rt.Backend().Save(ctx, asset.KindScene, "Hall", "var Scene = kit.NewScene(\"Hall\")"))

	g := flow.New("story")
	start, _ := g.Sentinel()
	lobby, err := g.AddNode("Lobby", 600, 300)
	require.NoError(t, err)
	require.NoError(t, g.SetTriggers(lobby, []string{"openDoor"}))
	hall, err := g.AddNode("Hall", 800, 300)
	require.NoError(t, err)
	_, err = g.AddEdge(start.ID, flow.AnchorPort(flow.AnchorRight), lobby, flow.AnchorPort(flow.AnchorLeft), flow.ModeReplace)
	require.NoError(t, err)
	_, err = g.AddEdge(lobby, flow.TriggerPort("openDoor"), hall, flow.AnchorPort(flow.AnchorLeft), flow.ModeOverlay)
	require.NoError(t, err)
	_, err = rt.Flows().Save(ctx, "story", g)
	require.NoError(t, err)
	return path
}

func TestVersionCommand(t *testing.T) {
	tests := []struct {
		name      string
		version   string
		commit    string
		buildTime string
		want      string
	}{
		{"dev defaults", "dev", "unknown", "unknown", "SceneFlow dev (commit: unknown, built: unknown)\n"},
		{"custom values", "v1.0.0", "abc123", "2024-01-01", "SceneFlow v1.0.0 (commit: abc123, built: 2024-01-01)\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldVersion, oldCommit, oldBuildTime := Version, Commit, BuildTime
			t.Cleanup(func() { Version, Commit, BuildTime = oldVersion, oldCommit, oldBuildTime })
			Version, Commit, BuildTime = tt.version, tt.commit, tt.buildTime

			out, err := execute(t, "version")
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestFlowCommands(t *testing.T) {
	useStore(t)

	out, err := execute(t, "flow", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "  story\t")

	out, err = execute(t, "flow", "activate", "story")
	require.NoError(t, err)
	assert.Equal(t, "active flow: story\n", out)

	out, err = execute(t, "flow", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "* story\t")

	out, err = execute(t, "flow", "show", "story")
	require.NoError(t, err)
	assert.Contains(t, out, "flow story: 3 nodes, 2 edges")
	assert.Contains(t, out, `node 2 "Lobby" at (600, 300) triggers: openDoor`)
	assert.Contains(t, out, "edge 2 Lobby.openDoor -> Hall.left [overlay]")

	_, err = execute(t, "flow", "activate", "missing")
	assert.ErrorIs(t, err, asset.ErrNotFound)
}

func TestFlowExportImport(t *testing.T) {
	useStore(t)
	file := filepath.Join(t.TempDir(), "story.flow.json")

	out, err := execute(t, "flow", "export", "story", "-o", file)
	require.NoError(t, err)
	assert.Contains(t, out, "exported story")

	out, err = execute(t, "flow", "export", "story")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "story"`)

	out, err = execute(t, "flow", "import", file, "--name", "copy")
	require.NoError(t, err)
	assert.Equal(t, "imported copy (2 scenes bundled)\n", out)

	out, err = execute(t, "flow", "show", "copy")
	require.NoError(t, err)
	assert.Contains(t, out, "flow copy: 3 nodes, 2 edges")

	out, err = execute(t, "flow", "delete", "copy")
	require.NoError(t, err)
	assert.Equal(t, "deleted copy\n", out)
	_, err = execute(t, "flow", "show", "copy")
	assert.Error(t, err)
}

func TestFlowValidate(t *testing.T) {
	useStore(t)
	dir := t.TempDir()

	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"nodes":[{"id":1,"name":"Game Start","x":400,"y":300,"triggers":[]}],"edges":[]}`), 0o644))
	out, err := execute(t, "flow", "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "good.json: ok")

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"nodes":[{"id":1,"name":"A","x":0,"y":0,"triggers":[]}],"edges":[{"id":1,"fromNodeId":1,"fromPort":"right","toNodeId":9,"toPort":"left","mode":"sideways"}]}`), 0o644))
	out, err = execute(t, "flow", "validate", bad)
	assert.Error(t, err)
	assert.Contains(t, out, "error: edges[0].mode")
	assert.Contains(t, out, "error: edges[0].toNodeId")
}

func TestTriggersCommand(t *testing.T) {
	useStore(t)
	out, err := execute(t, "triggers", "Lobby")
	require.NoError(t, err)
	assert.Equal(t, "openDoor\n", out)

	out, err = execute(t, "triggers", "Nowhere")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestPlayCommand(t *testing.T) {
	useStore(t)
	_, err := execute(t, "flow", "activate", "story")
	require.NoError(t, err)

	out, err := execute(t, "play", "--trigger", "openDoor", "--trigger", "nothing")
	require.NoError(t, err)
	assert.Contains(t, out, "start: Lobby")
	assert.Contains(t, out, "trigger openDoor: matched -> Hall")
	assert.Contains(t, out, "trigger nothing: inert -> Hall")
	assert.Contains(t, out, "current: Hall (overlays: 1)")
}

func TestPlayWithoutActiveFlow(t *testing.T) {
	useStore(t)
	out, err := execute(t, "play")
	require.NoError(t, err)
	assert.Contains(t, out, "start: default")
	assert.Contains(t, out, "fallback")
}

func TestConfigFlag(t *testing.T) {
	useStore(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("runtime:\n  max_overlay_depth: 0\n"), 0o644))
	_, err := execute(t, "--config", path, "flow", "list")
	assert.Error(t, err)
}
