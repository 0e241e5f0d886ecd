// Package pkg provides the core libraries for turning a Cargo workspace into
// a Nix build expression.
//
// # Overview
//
// cratewright reads a Cargo workspace's manifests and lockfile, resolves the
// same feature-unification fixed point `cargo` itself computes, and emits a
// single Nix expression built around nixpkgs' buildRustCrate. The pkg
// directory is organized around that pipeline:
//
//  1. [cargoid] - Identity: PackageId, derivation-key sanitization
//  2. [cargo] - Manifest/lockfile adapter and dependency graph construction
//  3. [platform] - cfg(...) predicate evaluation for platform-conditional deps
//  4. [resolve] - The feature resolver (fixed-point unification over the graph)
//  5. [nixgen] - The emitter (resolved graph -> Nix expression)
//
// Supporting packages:
//
//   - [errors] - Typed, code-tagged errors shared across the pipeline
//   - [observability] - Hook points for resolve, cache and HTTP activity
//   - [cache] - On-disk cache and a no-op cache (used for resolved graphs and enrichment)
//   - [dag] - Row-layered graph structure underlying debug visualization
//   - [render] - Format conversion (SVG -> PDF/PNG) and the [render/nodelink] diagrammer
//
// # Architecture
//
// The data flow from a workspace directory to a Nix expression:
//
//	Cargo.toml + Cargo.lock
//	         v
//	  [cargo] package   (parse manifests/lockfile, build the unresolved graph)
//	         v
//	  [resolve] package (unify features to a fixed point per spec's feature rules)
//	         v
//	  [nixgen] package  (serialize to buildRustCrate derivations)
//	         v
//	  default.nix
//
// [cargo] records each edge's cfg(...) predicate as unevaluated text;
// [platform] is consulted by [resolve] to decide whether a platform-gated
// edge's target is reachable and should contribute to resolution.
//
// # Quick Start
//
//	import (
//	    "github.com/cratewright/cratewright/pkg/cargo"
//	    "github.com/cratewright/cratewright/pkg/resolve"
//	    "github.com/cratewright/cratewright/pkg/nixgen"
//	)
//
//	unresolved, warnings, err := cargo.Load(workspaceDir, cargo.Options{})
//	resolved, warnings, err := resolve.Resolve(unresolved, resolve.Options{})
//	err = nixgen.Emit(resolved, os.Stdout, nixgen.Options{})
//
// # Debug visualization
//
// [render/depgraph] projects a resolved graph into a [dag.DAG] purely for
// inspection (assigning rows by longest path from the workspace root); it is
// never part of the emission path. [render/nodelink] then draws that DAG as a
// Graphviz node-link diagram, and [render] converts the resulting SVG to PDF
// or PNG.
//
// # Enrichment
//
// [enrich] optionally annotates registry-sourced packages with crates.io
// metadata (description and license), fetched through [cache] and
// instrumented via [observability]. The annotations become one-line
// comments in the emitted Nix expression; attribute values are unchanged.
//
// [cargoid]: https://pkg.go.dev/github.com/cratewright/cratewright/pkg/cargoid
// [cargo]: https://pkg.go.dev/github.com/cratewright/cratewright/pkg/cargo
// [platform]: https://pkg.go.dev/github.com/cratewright/cratewright/pkg/platform
// [resolve]: https://pkg.go.dev/github.com/cratewright/cratewright/pkg/resolve
// [nixgen]: https://pkg.go.dev/github.com/cratewright/cratewright/pkg/nixgen
// [errors]: https://pkg.go.dev/github.com/cratewright/cratewright/pkg/errors
// [observability]: https://pkg.go.dev/github.com/cratewright/cratewright/pkg/observability
// [cache]: https://pkg.go.dev/github.com/cratewright/cratewright/pkg/cache
// [dag]: https://pkg.go.dev/github.com/cratewright/cratewright/pkg/dag
// [render]: https://pkg.go.dev/github.com/cratewright/cratewright/pkg/render
// [render/nodelink]: https://pkg.go.dev/github.com/cratewright/cratewright/pkg/render/nodelink
// [render/depgraph]: https://pkg.go.dev/github.com/cratewright/cratewright/pkg/render/depgraph
// [enrich]: https://pkg.go.dev/github.com/cratewright/cratewright/pkg/enrich
package pkg
