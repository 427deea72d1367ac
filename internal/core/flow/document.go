package flow

import (
	"encoding/json"
	"fmt"
)

// Document is the persisted JSON form of a graph.
type Document struct {
	Nodes []SceneNode `json:"nodes"`
	Edges []SceneEdge `json:"edges"`
}

// ExportDocument is the standalone download form: the document plus its name.
type ExportDocument struct {
	Name string `json:"name"`
	Document
}

// ExportFileName returns the download file name for a flow.
func ExportFileName(name string) string {
	return name + ".flow.json"
}

// Serialize returns a structural snapshot in ascending id order.
func (g *Graph) Serialize() Document {
	return Document{Nodes: g.Nodes(), Edges: g.Edges()}
}

// Deserialize replaces every node and edge with the document's contents
// and reseeds the id counters at max(id)+1. On error g is left unchanged.
// Trigger ports are not checked against node triggers here, so stale
// edges survive a reload and can be inspected by validation.
func (g *Graph) Deserialize(doc Document) error {
	nodes := make(map[NodeID]*SceneNode, len(doc.Nodes))
	edges := make(map[EdgeID]*SceneEdge, len(doc.Edges))
	var maxNode NodeID
	var maxEdge EdgeID

	for i := range doc.Nodes {
		n := doc.Nodes[i].clone()
		if err := n.Validate(); err != nil {
			return fmt.Errorf("%w: node %d: %w", ErrMalformedDocument, i, err)
		}
		if _, dup := nodes[n.ID]; dup {
			return fmt.Errorf("%w: %w: %d", ErrMalformedDocument, ErrDuplicateNode, n.ID)
		}
		nodes[n.ID] = &n
		maxNode = max(maxNode, n.ID)
	}
	for i := range doc.Edges {
		e := doc.Edges[i]
		if err := e.Validate(); err != nil {
			return fmt.Errorf("%w: edge %d: %w", ErrMalformedDocument, i, err)
		}
		if _, dup := edges[e.ID]; dup {
			return fmt.Errorf("%w: %w: %d", ErrMalformedDocument, ErrDuplicateEdge, e.ID)
		}
		if nodes[e.FromNodeID] == nil || nodes[e.ToNodeID] == nil {
			return fmt.Errorf("%w: edge %d: %w", ErrMalformedDocument, e.ID, ErrNodeNotFound)
		}
		edges[e.ID] = &e
		maxEdge = max(maxEdge, e.ID)
	}

	g.nodes = nodes
	g.edges = edges
	g.nextNodeID = maxNode + 1
	g.nextEdgeID = maxEdge + 1
	return nil
}

// FromDocument builds a named graph from a document.
func FromDocument(name string, doc Document) (*Graph, error) {
	g := NewEmpty(name)
	if err := g.Deserialize(doc); err != nil {
		return nil, err
	}
	return g, nil
}

// ParseDocument decodes JSON flow text.
func ParseDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}
	return doc, nil
}

// ParseExport decodes an exported flow file.
func ParseExport(data []byte) (ExportDocument, error) {
	var doc ExportDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return ExportDocument{}, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}
	return doc, nil
}

// MarshalJSON encodes the graph as a Document.
func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.Serialize())
}

// UnmarshalJSON decodes a Document into the graph.
func (g *Graph) UnmarshalJSON(data []byte) error {
	doc, err := ParseDocument(data)
	if err != nil {
		return err
	}
	if g.nodes == nil {
		*g = *NewEmpty(g.Name)
	}
	return g.Deserialize(doc)
}
