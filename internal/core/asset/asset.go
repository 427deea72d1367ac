// Package asset provides the asset store contract the flow subsystem talks
// to: scenes, flows and other authored assets, thumbnails, flow bundles, the
// external staging area and small persisted settings.
package asset

import (
	"fmt"
	"strings"
	"time"
)

// Kind groups assets in the store.
type Kind string

const (
	KindMap       Kind = "map"
	KindCharacter Kind = "character"
	KindObject    Kind = "object"
	KindScene     Kind = "scene"
	KindFlow      Kind = "flow"
	KindCode      Kind = "code"
)

// Kinds lists every supported kind.
var Kinds = []Kind{KindMap, KindCharacter, KindObject, KindScene, KindFlow, KindCode}

// Valid reports whether k is a supported kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParseKind converts a wire string into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
	return k, nil
}

// Asset is one stored document. Content is the raw text: scene source for
// scenes, flow JSON for flows.
type Asset struct {
	Kind      Kind      `json:"type"`
	Name      string    `json:"name"`
	Content   string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate ensures asset integrity
func (a *Asset) Validate() error {
	if !a.Kind.Valid() {
		return ErrInvalidKind
	}
	return ValidateName(a.Name)
}

// Info is a listing entry.
type Info struct {
	Name         string    `json:"name"`
	Kind         Kind      `json:"type"`
	HasThumbnail bool      `json:"has_thumbnail"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ValidateName rejects names that are empty or could escape a directory.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return ErrInvalidName
	case strings.ContainsAny(name, `/\`), strings.Contains(name, ".."):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// CheckRef validates a (kind, name) pair in one go.
func CheckRef(kind Kind, name string) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	return ValidateName(name)
}

// File is a binary attachment held in a bundle or the staging area.
// Path is slash separated and relative.
type File struct {
	Path string `json:"path" msgpack:"path"`
	Data []byte `json:"data" msgpack:"data"`
}
