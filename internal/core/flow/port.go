package flow

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// Anchor is one of the four fixed compass ports of a node. Anchors route
// edges visually and carry no runtime meaning.
type Anchor string

const (
	AnchorTop    Anchor = "top"
	AnchorRight  Anchor = "right"
	AnchorBottom Anchor = "bottom"
	AnchorLeft   Anchor = "left"
)

// Anchors lists the fixed ports in drawing order.
var Anchors = []Anchor{AnchorTop, AnchorRight, AnchorBottom, AnchorLeft}

// Valid reports whether a is one of the four anchor labels.
func (a Anchor) Valid() bool {
	switch a {
	case AnchorTop, AnchorRight, AnchorBottom, AnchorLeft:
		return true
	}
	return false
}

var triggerIDPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidTriggerID reports whether id is a well-formed trigger identifier.
func ValidTriggerID(id string) bool {
	return triggerIDPattern.MatchString(id)
}

// PortKind tags the PortRef union.
type PortKind uint8

const (
	PortNone PortKind = iota
	PortAnchor
	PortTrigger
)

// PortRef is either an Anchor or a Trigger(id). It encodes to JSON as a
// bare string; anchor labels win over trigger ids with the same spelling.
type PortRef struct {
	kind PortKind
	name string
}

// AnchorPort returns a reference to a fixed anchor.
func AnchorPort(a Anchor) PortRef {
	return PortRef{kind: PortAnchor, name: string(a)}
}

// TriggerPort returns a reference to a dynamic trigger port.
func TriggerPort(id string) PortRef {
	return PortRef{kind: PortTrigger, name: id}
}

// ParsePort classifies s as an anchor or a trigger port.
func ParsePort(s string) (PortRef, error) {
	if a := Anchor(s); a.Valid() {
		return AnchorPort(a), nil
	}
	if !ValidTriggerID(s) {
		return PortRef{}, fmt.Errorf("%w: %q", ErrInvalidPort, s)
	}
	return TriggerPort(s), nil
}

// MustPort is ParsePort for literals; it panics on error.
func MustPort(s string) PortRef {
	p, err := ParsePort(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p PortRef) Kind() PortKind  { return p.kind }
func (p PortRef) IsAnchor() bool  { return p.kind == PortAnchor }
func (p PortRef) IsTrigger() bool { return p.kind == PortTrigger }
func (p PortRef) IsZero() bool    { return p.kind == PortNone }

// Anchor returns the anchor label, or "" for trigger ports.
func (p PortRef) Anchor() Anchor {
	if p.kind != PortAnchor {
		return ""
	}
	return Anchor(p.name)
}

// TriggerID returns the trigger id, or "" for anchor ports.
func (p PortRef) TriggerID() string {
	if p.kind != PortTrigger {
		return ""
	}
	return p.name
}

// String returns the wire form of the port.
func (p PortRef) String() string { return p.name }

func (p PortRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.name)
}

func (p *PortRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: port must be a string", ErrInvalidPort)
	}
	parsed, err := ParsePort(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
