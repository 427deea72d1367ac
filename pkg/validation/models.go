package validation

import (
	"encoding/json"
	"fmt"

	"github.com/sceneflow/sceneflow/internal/core/flow"
)

// Flow document models. Ports and modes stay strings here so a bad value
// is reported per field instead of failing the whole decode.

// FlowNode is the validated wire form of a scene node.
type FlowNode struct {
	ID       int      `json:"id" validate:"gt=0"`
	Name     string   `json:"name" validate:"required,max=200"`
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	Triggers []string `json:"triggers" validate:"dive,trigger_id"`
}

// FlowEdge is the validated wire form of a scene edge.
type FlowEdge struct {
	ID         int    `json:"id" validate:"gt=0"`
	FromNodeID int    `json:"fromNodeId" validate:"gt=0"`
	FromPort   string `json:"fromPort" validate:"required,port"`
	ToNodeID   int    `json:"toNodeId" validate:"gt=0"`
	ToPort     string `json:"toPort" validate:"required,port"`
	Mode       string `json:"mode" validate:"required,flow_mode"`
}

// FlowDocument is the validated wire form of a whole flow.
type FlowDocument struct {
	Nodes []FlowNode `json:"nodes" validate:"dive"`
	Edges []FlowEdge `json:"edges" validate:"dive"`
}

// ParseFlow decodes flow JSON into the loose model. Only syntax errors fail
// here; content problems are left for ValidateFlow.
func ParseFlow(data []byte) (FlowDocument, error) {
	var doc FlowDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return FlowDocument{}, fmt.Errorf("%w: %w", flow.ErrMalformedDocument, err)
	}
	return doc, nil
}

// FromDocument converts a typed document into the loose model.
func FromDocument(doc flow.Document) FlowDocument {
	out := FlowDocument{
		Nodes: make([]FlowNode, 0, len(doc.Nodes)),
		Edges: make([]FlowEdge, 0, len(doc.Edges)),
	}
	for _, n := range doc.Nodes {
		out.Nodes = append(out.Nodes, FlowNode{
			ID:       int(n.ID),
			Name:     n.Name,
			X:        n.X,
			Y:        n.Y,
			Triggers: n.Triggers,
		})
	}
	for _, e := range doc.Edges {
		out.Edges = append(out.Edges, FlowEdge{
			ID:         int(e.ID),
			FromNodeID: int(e.FromNodeID),
			FromPort:   e.FromPort.String(),
			ToNodeID:   int(e.ToNodeID),
			ToPort:     e.ToPort.String(),
			Mode:       string(e.Mode),
		})
	}
	return out
}

// Document converts the model back to the typed form. Call it only on a
// model ValidateFlow accepted.
func (d FlowDocument) Document() (flow.Document, error) {
	out := flow.Document{
		Nodes: make([]flow.SceneNode, 0, len(d.Nodes)),
		Edges: make([]flow.SceneEdge, 0, len(d.Edges)),
	}
	for _, n := range d.Nodes {
		triggers := n.Triggers
		if triggers == nil {
			triggers = []string{}
		}
		out.Nodes = append(out.Nodes, flow.SceneNode{
			ID:       flow.NodeID(n.ID),
			Name:     n.Name,
			X:        n.X,
			Y:        n.Y,
			Triggers: triggers,
		})
	}
	for _, e := range d.Edges {
		from, err := flow.ParsePort(e.FromPort)
		if err != nil {
			return flow.Document{}, err
		}
		to, err := flow.ParsePort(e.ToPort)
		if err != nil {
			return flow.Document{}, err
		}
		mode, err := flow.ParseMode(e.Mode)
		if err != nil {
			return flow.Document{}, err
		}
		out.Edges = append(out.Edges, flow.SceneEdge{
			ID:         flow.EdgeID(e.ID),
			FromNodeID: flow.NodeID(e.FromNodeID),
			FromPort:   from,
			ToNodeID:   flow.NodeID(e.ToNodeID),
			ToPort:     to,
			Mode:       mode,
		})
	}
	return out, nil
}
