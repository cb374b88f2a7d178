// Package resource resolves class identifiers to the source files known
// to the analysis run.
package resource

import "strings"

// Type classifies a resolved resource.
type Type int

const (
	// TypeProduction marks a production source file.
	TypeProduction Type = iota
	// TypeTest marks a test source file. Test sources never receive
	// production coverage measures.
	TypeTest
)

// Resource identifies one source file known to the registry.
type Resource struct {
	Key   string // the class identifier it resolved from
	Path  string // file on disk
	Type  Type
	Lines int // total line count of the file
}

// Registry resolves fully qualified class identifiers to resources.
type Registry interface {
	// Resolve returns the resource for a class identifier, or false
	// when the registry knows no matching source file.
	Resolve(classID string) (*Resource, bool)
}

// FullyQualifiedClassName computes the registry lookup key for a source
// file: the slash-joined package followed by the simple name without
// its extension (whatever trails the last dot). An empty package yields
// an empty identifier, which is expected to fail resolution.
func FullyQualifiedClassName(pkg, simpleName string) string {
	if pkg == "" {
		return ""
	}
	if idx := strings.LastIndex(simpleName, "."); idx >= 0 {
		simpleName = simpleName[:idx]
	}
	return pkg + "/" + simpleName
}
