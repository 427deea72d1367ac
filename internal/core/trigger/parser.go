// Package trigger extracts flow trigger identifiers from scene source.
//
// A scene declares the triggers it can raise with line comments such as
//
//	// FLOW_TRIGGER: id=doorOpen
//
// Each distinct identifier becomes a dynamic port on the scene's node.
package trigger

import "regexp"

// Marker is the comment token introducing a trigger declaration.
const Marker = "FLOW_TRIGGER:"

var declPattern = regexp.MustCompile(`//\s*FLOW_TRIGGER:\s*id=([a-zA-Z_][a-zA-Z0-9_]*)`)

// Parse returns the declared trigger ids in order of first appearance,
// without duplicates. Malformed markers are ignored. It never returns nil.
func Parse(source string) []string {
	matches := declPattern.FindAllStringSubmatch(source, -1)
	ids := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		id := m[1]
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
