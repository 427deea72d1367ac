package validation

import (
	"fmt"

	"github.com/sceneflow/sceneflow/internal/core/flow"
)

// FlowValidationOptions controls optional validation checks.
type FlowValidationOptions struct {
	// CheckReachability warns about scenes no path from Game Start reaches.
	CheckReachability bool
	// Strict promotes every warning to an error.
	Strict bool
}

// Report is the outcome of ValidateFlow. Errors make a document unusable;
// warnings describe flows that load but will not play as drawn.
type Report struct {
	Errors   ValidationErrors `json:"errors"`
	Warnings []string         `json:"warnings"`
}

// OK reports whether the document has no errors.
func (r Report) OK() bool { return len(r.Errors) == 0 }

// Err returns the errors as one error value, or nil.
func (r Report) Err() error {
	if r.OK() {
		return nil
	}
	return r.Errors
}

func (r *Report) fail(field string, value any, msg string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Value: value, Message: msg})
}

func (r *Report) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// ValidateFlow performs structural validation on a flow document loaded from
// an external source, where the graph's own guards were bypassed.
//
// Errors: field tags, duplicate node or edge ids, edges whose endpoints do
// not exist, self loops. Warnings: a sentinel count other than one, trigger
// ports the source node no longer declares, several edges leaving the same
// trigger, and (optionally) unreachable scenes.
func ValidateFlow(doc FlowDocument, opts ...FlowValidationOptions) Report {
	var cfg FlowValidationOptions
	if len(opts) > 0 {
		cfg = opts[0]
	}

	var r Report
	if err := ValidateWithPlayground(doc); err != nil {
		if verrs, ok := err.(ValidationErrors); ok {
			r.Errors = append(r.Errors, verrs...)
		} else {
			r.fail("document", nil, err.Error())
		}
	}

	nodes := make(map[int]*FlowNode, len(doc.Nodes))
	sentinels := 0
	for i := range doc.Nodes {
		n := &doc.Nodes[i]
		if _, dup := nodes[n.ID]; dup {
			r.fail(fmt.Sprintf("nodes[%d].id", i), n.ID, flow.ErrDuplicateNode.Error())
			continue
		}
		nodes[n.ID] = n
		if n.Name == flow.SentinelName {
			sentinels++
		}
	}
	switch {
	case sentinels == 0:
		r.warn("no %q node: the flow has no entry point", flow.SentinelName)
	case sentinels > 1:
		r.warn("%d %q nodes: only the lowest id is used", sentinels, flow.SentinelName)
	}

	edges := make(map[int]struct{}, len(doc.Edges))
	type triggerKey struct {
		node    int
		trigger string
	}
	triggerEdges := make(map[triggerKey]int)
	for i, e := range doc.Edges {
		field := fmt.Sprintf("edges[%d]", i)
		if _, dup := edges[e.ID]; dup {
			r.fail(field+".id", e.ID, flow.ErrDuplicateEdge.Error())
		}
		edges[e.ID] = struct{}{}

		from, okFrom := nodes[e.FromNodeID]
		if !okFrom {
			r.fail(field+".fromNodeId", e.FromNodeID, flow.ErrNodeNotFound.Error())
		}
		if _, ok := nodes[e.ToNodeID]; !ok {
			r.fail(field+".toNodeId", e.ToNodeID, flow.ErrNodeNotFound.Error())
		}
		if e.FromNodeID == e.ToNodeID {
			r.fail(field+".toNodeId", e.ToNodeID, flow.ErrSelfLoop.Error())
		}

		port, err := flow.ParsePort(e.FromPort)
		if err != nil || !port.IsTrigger() || !okFrom {
			continue
		}
		id := port.TriggerID()
		fromNode := flow.SceneNode{Triggers: from.Triggers}
		if !fromNode.HasTrigger(id) {
			r.warn("edge %d leaves trigger %q which node %q does not declare", e.ID, id, from.Name)
		}
		k := triggerKey{e.FromNodeID, id}
		if first, seen := triggerEdges[k]; seen {
			r.warn("edges %d and %d both leave trigger %q of node %q: the lower id wins",
				min(first, e.ID), max(first, e.ID), id, from.Name)
			triggerEdges[k] = min(first, e.ID)
		} else {
			triggerEdges[k] = e.ID
		}
	}

	if cfg.CheckReachability && sentinels > 0 {
		for _, n := range unreachable(doc) {
			r.warn("node %q is not reachable from %q", n.Name, flow.SentinelName)
		}
	}

	if cfg.Strict {
		for _, w := range r.Warnings {
			r.fail("document", nil, w)
		}
		r.Warnings = nil
	}
	return r
}

// unreachable walks edges forward from every sentinel and returns the
// non-sentinel nodes never visited, in document order.
func unreachable(doc FlowDocument) []FlowNode {
	adj := make(map[int][]int, len(doc.Nodes))
	for _, e := range doc.Edges {
		adj[e.FromNodeID] = append(adj[e.FromNodeID], e.ToNodeID)
	}
	seen := make(map[int]bool, len(doc.Nodes))
	var visit func(int)
	visit = func(u int) {
		if seen[u] {
			return
		}
		seen[u] = true
		for _, v := range adj[u] {
			visit(v)
		}
	}
	for _, n := range doc.Nodes {
		if n.Name == flow.SentinelName {
			visit(n.ID)
		}
	}
	var out []FlowNode
	for _, n := range doc.Nodes {
		if !seen[n.ID] && n.Name != flow.SentinelName {
			out = append(out, n)
		}
	}
	return out
}

// DecodeFlow parses, validates and converts flow JSON in one step. A
// document with errors returns flow.ErrMalformedDocument wrapping them;
// the report is returned either way so callers can surface warnings.
func DecodeFlow(data []byte, opts ...FlowValidationOptions) (flow.Document, Report, error) {
	model, err := ParseFlow(data)
	if err != nil {
		return flow.Document{}, Report{}, err
	}
	report := ValidateFlow(model, opts...)
	if !report.OK() {
		return flow.Document{}, report, fmt.Errorf("%w: %w", flow.ErrMalformedDocument, report.Errors)
	}
	doc, err := model.Document()
	if err != nil {
		return flow.Document{}, report, fmt.Errorf("%w: %w", flow.ErrMalformedDocument, err)
	}
	return doc, report, nil
}
