package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sceneflow/sceneflow/internal/core/flow"
)

func start() FlowNode {
	return FlowNode{ID: 1, Name: flow.SentinelName, X: 400, Y: 300, Triggers: []string{}}
}

func scene(id int, name string, triggers ...string) FlowNode {
	return FlowNode{ID: id, Name: name, Triggers: triggers}
}

func edge(id, from int, fromPort string, to int) FlowEdge {
	return FlowEdge{ID: id, FromNodeID: from, FromPort: fromPort, ToNodeID: to, ToPort: "left", Mode: "replace"}
}

func TestValidateFlow_Errors(t *testing.T) {
	tests := []struct {
		name   string
		doc    FlowDocument
		fields []string
	}{
		{
			name: "valid",
			doc: FlowDocument{
				Nodes: []FlowNode{start(), scene(2, "Lobby", "openDoor"), scene(3, "Hall")},
				Edges: []FlowEdge{edge(1, 1, "right", 2), edge(2, 2, "openDoor", 3)},
			},
		},
		{
			name:   "duplicate node id",
			doc:    FlowDocument{Nodes: []FlowNode{start(), scene(1, "Lobby")}},
			fields: []string{"nodes[1].id"},
		},
		{
			name: "duplicate edge id",
			doc: FlowDocument{
				Nodes: []FlowNode{start(), scene(2, "Lobby"), scene(3, "Hall")},
				Edges: []FlowEdge{edge(1, 1, "right", 2), edge(1, 2, "right", 3)},
			},
			fields: []string{"edges[1].id"},
		},
		{
			name: "missing endpoints",
			doc: FlowDocument{
				Nodes: []FlowNode{start()},
				Edges: []FlowEdge{edge(1, 7, "right", 8)},
			},
			fields: []string{"edges[0].fromNodeId", "edges[0].toNodeId"},
		},
		{
			name: "self loop",
			doc: FlowDocument{
				Nodes: []FlowNode{start(), scene(2, "Lobby")},
				Edges: []FlowEdge{edge(1, 2, "right", 2)},
			},
			fields: []string{"edges[0].toNodeId"},
		},
		{
			name: "bad tags",
			doc: FlowDocument{
				Nodes: []FlowNode{start(), {ID: 0, Name: "", Triggers: []string{"bad id"}}},
				Edges: []FlowEdge{{ID: 1, FromNodeID: 1, FromPort: "right", ToNodeID: 1, ToPort: "", Mode: "fade"}},
			},
			fields: []string{
				"nodes[1].id", "nodes[1].name", "nodes[1].triggers[0]",
				"edges[0].toPort", "edges[0].mode", "edges[0].toNodeId",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ValidateFlow(tt.doc)
			if len(tt.fields) == 0 {
				assert.True(t, r.OK())
				assert.NoError(t, r.Err())
				return
			}
			assert.False(t, r.OK())
			assert.Error(t, r.Err())
			assert.ElementsMatch(t, tt.fields, r.Errors.Fields())
		})
	}
}

func TestValidateFlow_Warnings(t *testing.T) {
	tests := []struct {
		name string
		doc  FlowDocument
		want string
	}{
		{
			name: "no sentinel",
			doc:  FlowDocument{Nodes: []FlowNode{scene(1, "Lobby")}},
			want: "no entry point",
		},
		{
			name: "two sentinels",
			doc:  FlowDocument{Nodes: []FlowNode{start(), {ID: 2, Name: flow.SentinelName}}},
			want: "only the lowest id is used",
		},
		{
			name: "stale trigger port",
			doc: FlowDocument{
				Nodes: []FlowNode{start(), scene(2, "Lobby"), scene(3, "Hall")},
				Edges: []FlowEdge{edge(1, 1, "right", 2), edge(2, 2, "openDoor", 3)},
			},
			want: `does not declare`,
		},
		{
			name: "shared trigger",
			doc: FlowDocument{
				Nodes: []FlowNode{start(), scene(2, "Lobby", "go"), scene(3, "Hall"), scene(4, "Cellar")},
				Edges: []FlowEdge{edge(1, 1, "right", 2), edge(5, 2, "go", 4), edge(3, 2, "go", 3)},
			},
			want: "edges 3 and 5 both leave trigger",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ValidateFlow(tt.doc)
			assert.True(t, r.OK())
			require.Len(t, r.Warnings, 1)
			assert.Contains(t, r.Warnings[0], tt.want)

			strict := ValidateFlow(tt.doc, FlowValidationOptions{Strict: true})
			assert.False(t, strict.OK())
			assert.Empty(t, strict.Warnings)
		})
	}
}

func TestValidateFlow_Reachability(t *testing.T) {
	doc := FlowDocument{
		Nodes: []FlowNode{start(), scene(2, "Lobby"), scene(3, "Attic")},
		Edges: []FlowEdge{edge(1, 1, "right", 2)},
	}

	assert.Empty(t, ValidateFlow(doc).Warnings)

	r := ValidateFlow(doc, FlowValidationOptions{CheckReachability: true})
	require.Len(t, r.Warnings, 1)
	assert.Contains(t, r.Warnings[0], `"Attic"`)
}

func TestDecodeFlow(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		data := `{"nodes":[{"id":1,"name":"Game Start","x":400,"y":300,"triggers":[]},
			{"id":2,"name":"Lobby","x":600,"y":300,"triggers":["openDoor"]}],
			"edges":[{"id":4,"fromNodeId":1,"fromPort":"right","toNodeId":2,"toPort":"left","mode":"overlay"}]}`
		doc, r, err := DecodeFlow([]byte(data))
		require.NoError(t, err)
		assert.Empty(t, r.Warnings)
		require.Len(t, doc.Nodes, 2)
		assert.Equal(t, []string{"openDoor"}, doc.Nodes[1].Triggers)
		require.Len(t, doc.Edges, 1)
		assert.Equal(t, flow.ModeOverlay, doc.Edges[0].Mode)
		assert.Equal(t, flow.AnchorPort(flow.AnchorRight), doc.Edges[0].FromPort)

		g, err := flow.FromDocument("main", doc)
		require.NoError(t, err)
		assert.Equal(t, 2, g.NodeCount())
	})

	t.Run("syntax error", func(t *testing.T) {
		_, _, err := DecodeFlow([]byte(`{"nodes":`))
		assert.ErrorIs(t, err, flow.ErrMalformedDocument)
	})

	t.Run("content error", func(t *testing.T) {
		data := `{"nodes":[{"id":1,"name":"Game Start","triggers":[]}],
			"edges":[{"id":1,"fromNodeId":1,"fromPort":"right","toNodeId":9,"toPort":"left","mode":"replace"}]}`
		_, r, err := DecodeFlow([]byte(data))
		assert.ErrorIs(t, err, flow.ErrMalformedDocument)
		assert.Equal(t, []string{"edges[0].toNodeId"}, r.Errors.Fields())
	})
}

func TestFromDocument_RoundTrip(t *testing.T) {
	g := flow.New("main")
	lobby, err := g.AddNode("Lobby", 600, 300)
	require.NoError(t, err)
	sentinel, ok := g.Sentinel()
	require.True(t, ok)
	_, err = g.AddEdge(sentinel.ID, flow.AnchorPort(flow.AnchorRight), lobby, flow.AnchorPort(flow.AnchorLeft), flow.ModeReplace)
	require.NoError(t, err)

	model := FromDocument(g.Serialize())
	assert.True(t, ValidateFlow(model).OK())

	back, err := model.Document()
	require.NoError(t, err)
	assert.Equal(t, g.Serialize(), back)
}
