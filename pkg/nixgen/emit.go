// Package nixgen is the Emitter (spec.md §4.5): it serialises a resolved
// graph into a single Nix expression built around nixpkgs'
// buildRustCrate, deterministically and with no mutation of its input.
// Grounded byte-for-byte on
// original_source/nbuild-core/src/models/nix.rs's into_derivative/
// to_details/get_source, generalised so the root derivation is emitted
// through the same attribute-building code path as every dependency
// (the original special-cases the root's own format! block and silently
// drops libPath/procMacro/features/crateRenames on it; spec.md's
// per-derivation attribute table makes no such distinction).
package nixgen

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/cratewright/cratewright/pkg/cargo"
	"github.com/cratewright/cratewright/pkg/cargoid"
	cargoerrors "github.com/cratewright/cratewright/pkg/errors"
	"github.com/cratewright/cratewright/pkg/resolve"
)

// Options configures emission profile toggles that spec.md's Open
// Question resolution #3 treats as config, not core invariants.
type Options struct {
	// EmitCrateBin, when true, adds `crateBin = [];` to every
	// non-root derivation, matching a variant observed in some of the
	// original's expected fixtures. Default false (omitted).
	EmitCrateBin bool

	// Annotations maps a PackageId.String() to a one-line comment written
	// directly above that derivation, e.g. a crates.io description fetched
	// by pkg/enrich. Purely cosmetic: Emit's output is otherwise identical
	// with or without it, and a missing entry emits no comment at all.
	Annotations map[string]string
}

const preamble = `{ pkgs ? import <nixpkgs> {} }:

let`

const sourceFilterBlock = `
  sourceFilter = name: type:
    let
      baseName = builtins.baseNameOf (builtins.toString name);
    in
      ! (
        # Filter out git
        baseName == ".gitignore"
        || (type == "directory" && baseName == ".git")

        # Filter out build results
        || (
          type == "directory" && baseName == "target"
        )

        # Filter out nix-build result symlinks
        || (
          type == "symlink" && pkgs.lib.hasPrefix "result" baseName
        )
      );`

const fetchCrateBlock = `
  fetchCrate = { crateName, version, sha256 }: pkgs.fetchurl {
    # https://www.pietroalbini.org/blog/downloading-crates-io/
    # Not rate-limited, CDN URL.
    name = "${crateName}-${version}.tar.gz";
    url = "https://static.crates.io/crates/${crateName}/${crateName}-${version}.crate";
    inherit sha256;
  };`

// fetchGitBlock is emitted only when the graph contains a git-sourced
// package. Neither the original's Source enum (Local/CratesIo only) nor
// spec.md's §4.5 attribute table define a rendering contract for a git
// dependency; pkgs.fetchgit is the standard nixpkgs idiom for pinning a
// repository at a revision, so fetchGitCrate follows the same
// name/url/rev shape buildRustCrate expects from a src attribute
// (documented as a supplemented, non-teacher-grounded addition in
// DESIGN.md). The placeholder sha256 is nixpkgs' usual convention for a
// fetcher whose real hash isn't known yet: the first build fails with
// the correct hash in its error output.
const fetchGitBlock = `
  fetchGitCrate = { url, rev }: pkgs.fetchgit {
    inherit url rev;
    sha256 = pkgs.lib.fakeSha256;
  };`

// buildRustCrateOverrideBlock shadows buildRustCrate with a variant
// wired to fetchCrate, mirroring the teacher's own
// `pkgs.buildRustCrate.override { ... }` pattern in
// into_derivative/to_details's preamble, trimmed of the teacher's
// one-off rustc-version pin and crate override table — neither is named
// by spec.md's attribute or preamble rules, and a hardcoded per-crate
// buildInputs override doesn't generalise past the teacher's own
// workspace.
const buildRustCrateOverrideBlock = `
  buildRustCrate = pkgs.buildRustCrate.override {
    inherit fetchCrate;
  };`

// Emit writes the Nix expression for g to w. It is a pure function of g
// and opts; no filesystem access happens here (spec.md §5 confines reads
// to the adapter).
func Emit(g *resolve.Graph, w io.Writer, opts Options) error {
	order, err := postOrder(g)
	if err != nil {
		return err
	}

	keys, err := assignKeys(g, order)
	if err != nil {
		return err
	}

	var anyLocal, anyRegistry, anyGit bool
	for k := range keys {
		src := g.Nodes[k].Package.ID.Source
		switch src.Kind {
		case cargoid.Local:
			anyLocal = true
		case cargoid.Registry:
			anyRegistry = true
		case cargoid.Git:
			anyGit = true
		}
	}

	var b strings.Builder
	b.WriteString(preamble)
	if anyLocal {
		b.WriteString(sourceFilterBlock)
	}
	if anyRegistry {
		b.WriteString(fetchCrateBlock)
		b.WriteString(buildRustCrateOverrideBlock)
	} else {
		b.WriteString("\n  buildRustCrate = pkgs.buildRustCrate;")
	}
	if anyGit {
		b.WriteString(fetchGitBlock)
	}
	b.WriteString("\n")

	b.WriteString("\n  # Core\n")
	writeDerivation(&b, g.Nodes[g.Root], keys, true, opts)

	if len(order) > 0 {
		b.WriteString("\n\n  # Dependencies\n")
		for i, k := range order {
			if i > 0 {
				b.WriteString("\n")
			}
			writeDerivation(&b, g.Nodes[k], keys, false, opts)
		}
	}

	b.WriteString("\nin\n")
	b.WriteString(keys[g.Root])
	b.WriteString("\n")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return cargoerrors.New(cargoerrors.EmitterIO, "writing emitted expression: %v", err)
	}
	return nil
}

// sortKey is a stable string used only to break ties in postOrder; it
// need not match the final emitted binding name.
func sortKey(k resolve.NodeKey) string {
	return cargoid.DerivationKey(k.ID) + "/" + k.Context.String()
}

// assignKeys computes the final Nix binding name for every node. The
// root binds under its own package name, unsuffixed (cargoid.go's own
// contract: "the workspace root is emitted under its unsuffixed name by
// the caller"). Every other node binds under cargoid.DerivationKey; a
// package resolved under both Normal and Build context collides on that
// base key, so its Build instance is suffixed "_build" to keep the two
// distinct (spec.md §4.4: "both must appear ... under distinct
// derivation keys"). Two genuinely different packages whose sanitized
// names collide (e.g. "foo-bar" and "foo_bar") is a fatal
// DuplicateDerivationKey, not a suffixing opportunity.
func assignKeys(g *resolve.Graph, order []resolve.NodeKey) (map[resolve.NodeKey]string, error) {
	groups := map[string][]resolve.NodeKey{}
	for _, k := range order {
		id := k.ID.String()
		groups[id] = append(groups[id], k)
	}

	keys := make(map[resolve.NodeKey]string, len(order)+1)
	keys[g.Root] = g.Nodes[g.Root].Package.ID.Name

	for _, ks := range groups {
		base := cargoid.DerivationKey(ks[0].ID)
		if len(ks) == 1 {
			keys[ks[0]] = base
			continue
		}
		for _, k := range ks {
			if k.Context == resolve.Build {
				keys[k] = base + "_build"
			} else {
				keys[k] = base
			}
		}
	}

	seen := make(map[string]resolve.NodeKey, len(keys))
	for k, name := range keys {
		if prior, ok := seen[name]; ok && prior != k {
			return nil, cargoerrors.New(cargoerrors.DuplicateDerivationKey,
				"%s and %s both produce derivation key %q", prior.ID, k.ID, name)
		}
		seen[name] = k
	}
	return keys, nil
}

// postOrder returns every non-root node reachable from g.Root in
// post-order, with ties (multiple children ready to emit at once)
// broken lexicographically by derivation key — spec.md §4.5's ordering
// rule, kept independent of each node's own manifest-preserved edge
// order (used for that node's own `dependencies`/`buildDependencies`
// attribute instead).
func postOrder(g *resolve.Graph) ([]resolve.NodeKey, error) {
	visited := make(map[resolve.NodeKey]bool, len(g.Nodes))
	var order []resolve.NodeKey

	var visit func(k resolve.NodeKey) error
	visit = func(k resolve.NodeKey) error {
		if visited[k] {
			return nil
		}
		visited[k] = true

		n, ok := g.Nodes[k]
		if !ok {
			return cargoerrors.New(cargoerrors.UnknownSource, "resolved graph references missing node %v", k)
		}

		children := make([]resolve.NodeKey, 0, len(n.OutEdges))
		seen := map[resolve.NodeKey]bool{}
		for _, e := range n.OutEdges {
			if !seen[e.Target] {
				seen[e.Target] = true
				children = append(children, e.Target)
			}
		}
		sort.Slice(children, func(i, j int) bool {
			return sortKey(children[i]) < sortKey(children[j])
		})

		for _, c := range children {
			if err := visit(c); err != nil {
				return err
			}
		}
		if k != g.Root {
			order = append(order, k)
		}
		return nil
	}

	if err := visit(g.Root); err != nil {
		return nil, err
	}
	return order, nil
}

// writeDerivation appends one `key = buildRustCrate rec { … };` block.
func writeDerivation(b *strings.Builder, n *resolve.Node, keys map[resolve.NodeKey]string, isRoot bool, opts Options) {
	pkg := n.Package
	key := keys[n.Key]

	if note := opts.Annotations[pkg.ID.String()]; note != "" {
		fmt.Fprintf(b, "  # %s\n", note)
	}
	fmt.Fprintf(b, "  %s = buildRustCrate rec {\n", key)
	fmt.Fprintf(b, "    crateName = %s;\n", quote(pkg.ID.Name))
	fmt.Fprintf(b, "    version = %s;\n\n", quote(pkg.ID.Version))
	b.WriteString(sourceAttr(pkg))

	if pkg.LibPath != "" {
		fmt.Fprintf(b, "    libPath = %s;\n", quote(pkg.LibPath))
	}
	if pkg.BuildScriptPath != "" {
		fmt.Fprintf(b, "    build = %s;\n", quote(pkg.BuildScriptPath))
	}
	if pkg.IsProcMacro {
		b.WriteString("    procMacro = true;\n")
	}

	writeEdgeList(b, "dependencies", n.OutEdges, cargo.Normal, keys)
	writeEdgeList(b, "buildDependencies", n.OutEdges, cargo.Build, keys)
	writeCrateRenames(b, n.OutEdges, keys)

	if features := sortedNonDefaultAware(pkg, n.ActiveFeatures); len(features) > 0 {
		fmt.Fprintf(b, "    features = [%s];\n", quoteJoin(features))
	}

	fmt.Fprintf(b, "    edition = %s;\n", quote(pkg.Edition))
	if !isRoot && opts.EmitCrateBin {
		b.WriteString("    crateBin = [];\n")
	}
	b.WriteString("  };\n")
}

func sourceAttr(pkg *cargo.Package) string {
	switch pkg.ID.Source.Kind {
	case cargoid.Local:
		return fmt.Sprintf("    src = pkgs.lib.cleanSourceWith { filter = sourceFilter; src = %s; };\n", pkg.LocalSrc)
	case cargoid.Git:
		return fmt.Sprintf("    src = fetchGitCrate { url = %s; rev = %s; };\n", quote(pkg.ID.Source.GitURL), quote(pkg.ID.Source.GitRev))
	default:
		return fmt.Sprintf("    sha256 = %s;\n", quote(pkg.RegistrySha))
	}
}

func writeEdgeList(b *strings.Builder, attr string, edges []resolve.ResolvedEdge, kind cargo.EdgeKind, keys map[resolve.NodeKey]string) {
	var idents []string
	for _, e := range edges {
		if e.Kind != kind {
			continue
		}
		idents = append(idents, keys[e.Target])
	}
	if len(idents) == 0 {
		return
	}
	fmt.Fprintf(b, "    %s = [%s];\n", attr, strings.Join(idents, " "))
}

// writeCrateRenames emits the flat original->renamed mapping spec.md
// §4.5 describes, a simplification of the original's crateRenames (which
// maps each original name to a one-element list of {rename; version;}
// records — a shape spec.md's attribute table doesn't call for).
func writeCrateRenames(b *strings.Builder, edges []resolve.ResolvedEdge, keys map[resolve.NodeKey]string) {
	type rename struct{ original, renamed string }
	var renames []rename
	for _, e := range edges {
		if e.Rename == "" {
			continue
		}
		renames = append(renames, rename{e.Target.ID.Name, e.Rename})
	}
	if len(renames) == 0 {
		return
	}
	sort.Slice(renames, func(i, j int) bool { return renames[i].original < renames[j].original })

	var entries []string
	for _, r := range renames {
		entries = append(entries, fmt.Sprintf("%s = %s;", quote(r.original), quote(r.renamed)))
	}
	fmt.Fprintf(b, "    crateRenames = {%s};\n", strings.Join(entries, " "))
}

// sortedNonDefaultAware returns the sorted active features that should be
// emitted, excluding the implicit "default" when the package declares no
// "default" feature of its own (spec.md §4.5's features row).
func sortedNonDefaultAware(pkg *cargo.Package, active map[string]bool) []string {
	_, declaresDefault := pkg.DeclaredFeatures["default"]
	out := make([]string, 0, len(active))
	for f := range active {
		if f == "default" && !declaresDefault {
			continue
		}
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func quoteJoin(ss []string) string {
	quoted := make([]string, len(ss))
	for i, s := range ss {
		quoted[i] = quote(s)
	}
	return strings.Join(quoted, " ")
}
