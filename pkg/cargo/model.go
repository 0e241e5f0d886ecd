// Package cargo implements the Manifest & Lock adapter and the Unresolved
// graph builder: it turns a Cargo workspace on disk into the read-only
// Package/Edge data model that pkg/resolve performs feature unification
// over.
package cargo

import "github.com/cratewright/cratewright/pkg/cargoid"

// EdgeKind distinguishes the three kinds of dependency edge Cargo models.
type EdgeKind int

const (
	// Normal is an ordinary [dependencies] edge.
	Normal EdgeKind = iota
	// Build is a [build-dependencies] edge. An edge keeps the kind it was
	// declared with even when it is reached inside Build context (e.g. a
	// proc-macro's own deps); that context is tracked by resolve.Context.
	Build
	// Dev is a [dev-dependencies] edge. Only ever attached to workspace
	// members and never traversed transitively during resolution.
	Dev
)

func (k EdgeKind) String() string {
	switch k {
	case Normal:
		return "normal"
	case Build:
		return "build"
	case Dev:
		return "dev"
	default:
		return "unknown"
	}
}

// Edge is a declared dependency relationship from one Package to another.
// It carries everything the resolver needs to decide, during feature
// unification, whether the edge survives into the resolved graph.
type Edge struct {
	Target cargoid.PackageId
	Kind   EdgeKind

	// Rename is the identifier the declaring package imports this
	// dependency under, set only when it differs from Target.Name (a
	// Cargo `package = "..."` rename).
	Rename string

	Optional            bool
	UsesDefaultFeatures bool
	ExplicitFeatures    []string

	// PlatformPredicate is the raw content of a cfg(...) guard (without
	// the "cfg(" "and ")"), or "" if the edge applies on every platform.
	PlatformPredicate string
}

// Package is a single lockfile-pinned crate and everything declared about
// it in its own manifest. Packages are constructed once by the adapter
// and are read-only thereafter; the resolver never mutates them.
type Package struct {
	ID cargoid.PackageId

	Edition string

	// DeclaredFeatures maps a feature name to its list of activation
	// tokens, exactly as written in the manifest's [features] table.
	DeclaredFeatures map[string][]string

	// DependencyEdges is ordered as declared in the manifest; this order
	// is the user-visible contract the emitter preserves for
	// `dependencies`/`buildDependencies`.
	DependencyEdges []Edge

	IsProcMacro bool

	// BuildScriptPath is the path to this package's build script
	// relative to its root, or "" if it declares none.
	BuildScriptPath string

	// LibPath is set only when the package declares a non-default
	// library entry point (anything other than "src/lib.rs").
	LibPath string

	// LocalSrc is the absolute path to this package's source directory,
	// set for workspace members and path dependencies.
	LocalSrc string

	// RegistrySha is the crates.io checksum, set for registry packages.
	RegistrySha string
}

// Graph is the Unresolved multigraph: one node per lockfile package,
// edges carrying kind/target/feature-selector/optional/rename metadata.
type Graph struct {
	Packages         map[cargoid.PackageId]*Package
	WorkspaceMembers []cargoid.PackageId
	Root             cargoid.PackageId
}
