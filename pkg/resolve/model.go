// Package resolve implements the feature resolver: a fixed-point
// computation that turns an Unresolved pkg/cargo.Graph into a Resolved
// graph whose nodes carry their activated feature sets and whose edges
// have survived platform, optionality, and context filtering.
package resolve

import (
	"github.com/cratewright/cratewright/pkg/cargo"
	"github.com/cratewright/cratewright/pkg/cargoid"
	"github.com/cratewright/cratewright/pkg/platform"
)

// Context distinguishes the two build contexts a package may be
// resolved under. A package reachable through both contexts is
// resolved twice, independently, under two distinct NodeKeys.
type Context int

const (
	Normal Context = iota
	Build
)

func (c Context) String() string {
	if c == Build {
		return "build"
	}
	return "normal"
}

// NodeKey identifies one resolved node: a package resolved under a
// specific context.
type NodeKey struct {
	ID      cargoid.PackageId
	Context Context
}

// ResolvedEdge is a surviving dependency relationship; the selector,
// predicate, and optional-flag fields of the unresolved Edge have been
// consumed by resolution and are absent here.
type ResolvedEdge struct {
	Target NodeKey
	Kind   cargo.EdgeKind
	Rename string
}

// Node is one resolved (package, context) pair.
type Node struct {
	Key            NodeKey
	Package        *cargo.Package
	ActiveFeatures map[string]bool
	OutEdges       []ResolvedEdge
}

// Graph is the Resolved graph the emitter consumes.
type Graph struct {
	Nodes map[NodeKey]*Node
	Root  NodeKey
}

// Options configures one resolution run.
type Options struct {
	RequestedFeatures []string
	NoDefaultFeatures bool
	Target            platform.Target
}

// WithDefaults fills the host target in when the caller left it zero.
func (o Options) WithDefaults() Options {
	if o.Target == (platform.Target{}) {
		o.Target = platform.Host()
	}
	return o
}

// Warning is a non-fatal diagnostic, returned alongside a successful
// Resolve rather than written to any logging sink the resolver owns
// (spec's "diagnostics without ambient state" design note).
type Warning struct {
	Code    string
	Package cargoid.PackageId
	Detail  string
}
