package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sceneflow/sceneflow/internal/adapters/store/httpstore"
	"github.com/sceneflow/sceneflow/internal/app/dto"
	"github.com/sceneflow/sceneflow/internal/core/asset"
	"github.com/sceneflow/sceneflow/internal/core/flow"
	"github.com/sceneflow/sceneflow/internal/infrastructure/logging"
	"github.com/sceneflow/sceneflow/pkg/sceneflow"
)

func newTestServer(t *testing.T) (*httptest.Server, *sceneflow.Runtime) {
	t.Helper()
	ctx := context.Background()
	logger := logging.Discard()
	rt, err := sceneflow.Open(ctx, nil, logger)
	require.NoError(t, err)

	require.NoError(t, rt.Backend().Save(ctx, asset.KindScene, "Lobby", "// FLOW_TRIGGER: id=pause\nvar Scene = kit.NewScene(\"Lobby\")"))
	require.NoError(t, rt.Backend().Save(ctx, asset.KindScene, "Menu", "var Scene = kit.NewScene(\"Menu\")"))
	g := flow.New("story")
	start, _ := g.Sentinel()
	lobby, err := g.AddNode("Lobby", 600, 300)
	require.NoError(t, err)
	require.NoError(t, g.SetTriggers(lobby, []string{"pause"}))
	menu, err := g.AddNode("Menu", 800, 300)
	require.NoError(t, err)
	_, err = g.AddEdge(start.ID, flow.AnchorPort(flow.AnchorRight), lobby, flow.AnchorPort(flow.AnchorLeft), flow.ModeReplace)
	require.NoError(t, err)
	_, err = g.AddEdge(lobby, flow.TriggerPort("pause"), menu, flow.AnchorPort(flow.AnchorLeft), flow.ModeOverlay)
	require.NoError(t, err)
	_, err = rt.Flows().Save(ctx, "story", g)
	require.NoError(t, err)

	sessions := newSessionManager(rt, logger)
	srv := httptest.NewServer(newMux(rt, sessions, logger))
	t.Cleanup(func() {
		srv.Close()
		sessions.close()
		_ = rt.Close()
	})
	return srv, rt
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

func TestSessionLifecycle(t *testing.T) {
	srv, rt := newTestServer(t)

	resp, err := http.Get(srv.URL + "/session")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Post(srv.URL+"/session/trigger/pause", "", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	require.NoError(t, rt.Flows().SetActive(context.Background(), "story"))
	resp, err = http.Post(srv.URL+"/session/start", "", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	st := decode[dto.SessionState](t, resp)
	assert.Equal(t, "story", st.FlowName)
	assert.Equal(t, "Lobby", st.CurrentScene)

	resp, err = http.Post(srv.URL+"/session/trigger/pause", "", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tr := decode[triggerResponse](t, resp)
	assert.Equal(t, dto.TriggerMatched, tr.Outcome)
	assert.Equal(t, "Menu", tr.Session.CurrentScene)
	assert.Equal(t, 1, tr.Session.OverlayDepth)

	resp, err = http.Post(srv.URL+"/session/trigger/pause", "", nil)
	require.NoError(t, err)
	tr = decode[triggerResponse](t, resp)
	assert.Equal(t, dto.TriggerInert, tr.Outcome)

	resp, err = http.Get(srv.URL + "/session")
	require.NoError(t, err)
	st = decode[dto.SessionState](t, resp)
	assert.Equal(t, "Menu", st.CurrentScene)
	assert.Len(t, st.Transitions, 2)
}

func TestSessionStartNamedFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/session/start?flow=story", "", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	st := decode[dto.SessionState](t, resp)
	assert.Equal(t, "Lobby", st.CurrentScene)

	resp, err = http.Post(srv.URL+"/session/start?flow=missing", "", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	body := decode[map[string]dto.Error](t, resp)
	assert.Equal(t, dto.CodeNotFound, body["error"].Code)
}

func TestSessionStartFallsBack(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/session/start", "", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	st := decode[dto.SessionState](t, resp)
	assert.Equal(t, "default", st.CurrentScene)
	require.Len(t, st.Transitions, 1)
	assert.Equal(t, dto.CauseFallback, st.Transitions[0].Cause)
}

func TestAssetRoutes(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	client, err := httpstore.New(srv.URL)
	require.NoError(t, err)
	a, err := client.Load(ctx, asset.KindScene, "Lobby")
	require.NoError(t, err)
	assert.Contains(t, a.Content, "FLOW_TRIGGER")

	infos, err := client.List(ctx, asset.KindFlow, asset.Filter{})
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "story", infos[0].Name)
}

func TestMetricsEndpoints(t *testing.T) {
	srv, rt := newTestServer(t)
	require.NoError(t, rt.Flows().SetActive(context.Background(), "story"))
	resp, err := http.Post(srv.URL+"/session/start", "", nil)
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	text := string(body)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
	assert.Contains(t, text, "# TYPE sceneflow_transitions_total counter")
	assert.Contains(t, text, `sceneflow_flow_operations_total{op="save"}`)
	assert.Contains(t, text, "# TYPE sceneflow_overlay_depth gauge")

	resp, err = http.Get(srv.URL + "/debug/vars")
	require.NoError(t, err)
	vars := decode[map[string]any](t, resp)
	assert.Contains(t, vars, "sceneflow_fallbacks_total")
}

func TestEscapeLabel(t *testing.T) {
	assert.Equal(t, `a\\b\"c\nd`, escapeLabel("a\\b\"c\nd"))
	assert.Equal(t, "two lines", sanitizeHelp("two\nlines"))
}
