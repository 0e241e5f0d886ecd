package cargo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cratewright/cratewright/pkg/cargoid"
	cargoerrors "github.com/cratewright/cratewright/pkg/errors"
)

// Options configures the Manifest & Lock adapter.
type Options struct {
	// VendorDir is the directory, relative to the workspace root, that
	// holds a vendored copy of each non-workspace dependency's source —
	// matching the layout `cargo vendor` produces
	// (<VendorDir>/<name>-<version>/Cargo.toml). The adapter reads a
	// dependency's own manifest from here to learn its declared
	// features, edition, proc-macro-ness, and build script; crate
	// source download and cache discovery are collaborators' concerns
	// (spec.md §1 Non-goals), so an adapter caller who wants exact
	// transitive feature tables is expected to have already vendored.
	// When a dependency has no vendored manifest, its metadata is
	// approximated (empty declared features, edition "2015", no
	// build script) and a Warning is returned.
	VendorDir string
}

// WithDefaults fills zero-valued fields with their defaults.
func (o Options) WithDefaults() Options {
	if o.VendorDir == "" {
		o.VendorDir = "vendor"
	}
	return o
}

// Warning is a non-fatal diagnostic surfaced alongside a successful Load.
type Warning struct {
	Code    string
	Package string
	Detail  string
}

// Load reads the crate at dir — which workspace member to treat as the
// build's entry point is a decision made by the caller (spec.md's
// non-goals exclude workspace-member selection from this core) — and
// builds the Unresolved graph: one Package per Cargo.lock entry, with
// dependency edges drawn from each package's own manifest (or
// approximated when unavailable).
func Load(dir string, opts Options) (*Graph, []Warning, error) {
	opts = opts.WithDefaults()

	rootManifest, err := loadManifest(dir)
	if err != nil {
		return nil, nil, err
	}
	if rootManifest.Package.Name == "" {
		return nil, nil, cargoerrors.New(cargoerrors.ManifestNotFound,
			"%s has no [package] table; point at a specific crate directory", filepath.Join(dir, "Cargo.toml"))
	}

	workspaceDir, workspaceManifest := findWorkspaceRoot(dir, rootManifest)

	lf, err := loadLockfile(workspaceDir)
	if err != nil {
		return nil, nil, err
	}

	members, memberManifests, err := loadWorkspaceMembers(workspaceDir, workspaceManifest)
	if err != nil {
		return nil, nil, err
	}
	if _, ok := members[rootManifest.Package.Name]; !ok {
		members[rootManifest.Package.Name] = dir
		memberManifests[rootManifest.Package.Name] = rootManifest
	}
	dir = workspaceDir

	var warnings []Warning

	// ids indexes every lockfile package by (name, version) so edges can
	// resolve their target identity.
	ids := make(map[string]map[string]cargoid.PackageId, len(lf.Package))
	sources := make(map[cargoid.PackageId]lockPackage, len(lf.Package))
	for _, lp := range lf.Package {
		src := parseLockSource(lp.Source)
		if src.Kind == cargoid.Local {
			if memberDir, ok := members[lp.Name]; ok {
				abs, err := filepath.Abs(memberDir)
				if err != nil {
					return nil, nil, cargoerrors.Wrap(cargoerrors.UnknownSource, err, "resolve path for %s", lp.Name)
				}
				src.Path = abs
			} else {
				return nil, nil, cargoerrors.New(cargoerrors.UnknownSource,
					"lockfile package %s@%s has no source and is not a workspace member", lp.Name, lp.Version)
			}
		}

		id := cargoid.PackageId{Name: lp.Name, Version: lp.Version, Source: src}
		if ids[lp.Name] == nil {
			ids[lp.Name] = make(map[string]cargoid.PackageId)
		}
		ids[lp.Name][lp.Version] = id
		sources[id] = lp
	}

	rootID, ok := findMemberID(ids, rootManifest.Package.Name)
	if !ok {
		return nil, nil, cargoerrors.New(cargoerrors.LockfileOutOfSync,
			"root package %s not present in Cargo.lock", rootManifest.Package.Name)
	}

	graph := &Graph{
		Packages: make(map[cargoid.PackageId]*Package, len(lf.Package)),
		Root:     rootID,
	}
	for name := range members {
		if id, ok := findMemberID(ids, name); ok {
			graph.WorkspaceMembers = append(graph.WorkspaceMembers, id)
		}
	}
	sort.Slice(graph.WorkspaceMembers, func(i, j int) bool {
		return graph.WorkspaceMembers[i].String() < graph.WorkspaceMembers[j].String()
	})

	for id, lp := range sources {
		pkg, pkgWarnings, err := buildPackage(dir, opts, id, lp, memberManifests, ids)
		if err != nil {
			return nil, nil, err
		}
		warnings = append(warnings, pkgWarnings...)
		graph.Packages[id] = pkg
	}

	if err := checkAcyclic(graph); err != nil {
		return nil, nil, err
	}

	return graph, warnings, nil
}

// buildPackage constructs the Package for one lockfile entry, drawing its
// manifest-declared metadata either from a workspace member's own
// manifest or from a vendored copy.
func buildPackage(
	workspaceDir string,
	opts Options,
	id cargoid.PackageId,
	lp lockPackage,
	memberManifests map[string]*manifest,
	ids map[string]map[string]cargoid.PackageId,
) (*Package, []Warning, error) {
	var (
		m       *manifest
		pkgDir  string
		warning *Warning
	)

	if mm, ok := memberManifests[id.Name]; ok {
		m, pkgDir = mm, id.Source.Path
	} else {
		vendorDir := filepath.Join(workspaceDir, opts.VendorDir, fmt.Sprintf("%s-%s", id.Name, id.Version))
		if vm, err := loadManifest(vendorDir); err == nil {
			m, pkgDir = vm, vendorDir
		} else {
			warning = &Warning{
				Code:    "VendoredManifestMissing",
				Package: id.String(),
				Detail:  fmt.Sprintf("no manifest found for %s; feature table and build metadata approximated", id),
			}
		}
	}

	pkg := &Package{
		ID:          id,
		Edition:     "2015",
		RegistrySha: lp.Checksum,
		LocalSrc:    id.Source.Path,
	}

	var warnings []Warning
	if warning != nil {
		warnings = append(warnings, *warning)
	}

	if m == nil {
		// No manifest available: approximate with plain Normal edges
		// built directly from the lockfile's dependency list.
		for _, dep := range lp.Dependencies {
			depName, depVersion := lockDependencyName(dep)
			target, ok := resolveLockDependency(ids, depName, depVersion)
			if !ok {
				warnings = append(warnings, Warning{
					Code: "LockDependencyUnresolved", Package: id.String(),
					Detail: fmt.Sprintf("dependency entry %q did not resolve to a locked package", dep),
				})
				continue
			}
			pkg.DependencyEdges = append(pkg.DependencyEdges, Edge{
				Target:              target,
				Kind:                Normal,
				UsesDefaultFeatures: true,
			})
		}
		return pkg, warnings, nil
	}

	pkg.Edition = defaultEdition(m.Package.Edition)
	pkg.IsProcMacro = m.Lib.ProcMacro
	if m.Lib.Path != "" && m.Lib.Path != "src/lib.rs" {
		pkg.LibPath = m.Lib.Path
	}
	pkg.BuildScriptPath = buildScriptPath(pkgDir, m.Package.Build)

	for _, raw := range declaredDependencies(m) {
		realName := raw.spec.Package
		if realName == "" {
			realName = raw.name
		}

		depName, depVersion := realName, raw.spec.Version
		target, ok := resolveLockDependency(ids, depName, depVersion)
		if !ok {
			// Check the lock entry's own dependency list for a
			// disambiguated match (handles version requirements that
			// don't textually match the locked version string).
			target, ok = resolveFromLockDeps(ids, lp, depName)
		}
		if !ok {
			warnings = append(warnings, Warning{
				Code: "ManifestDependencyUnresolved", Package: id.String(),
				Detail: fmt.Sprintf("dependency %q not found in Cargo.lock", depName),
			})
			continue
		}

		rename := ""
		if raw.name != realName {
			rename = raw.name
		}

		pkg.DependencyEdges = append(pkg.DependencyEdges, Edge{
			Target:              target,
			Kind:                raw.kind,
			Rename:              rename,
			Optional:            raw.spec.Optional,
			UsesDefaultFeatures: raw.spec.DefaultFeatures,
			ExplicitFeatures:    raw.spec.Features,
			PlatformPredicate:   raw.predicate,
		})
	}

	pkg.DeclaredFeatures = withImplicitOptionalFeatures(m.Features, pkg.DependencyEdges)

	return pkg, warnings, nil
}

// withImplicitOptionalFeatures synthesizes the legacy implicit feature
// Cargo generates for every optional dependency not already named by an
// explicit `dep:foo` token somewhere in the manifest's own [features]
// table (https://doc.rust-lang.org/cargo/reference/features.html#optional-dependencies).
// cargo_metadata normally bakes this into its reported feature map before
// a consumer like the original implementation ever sees it; this adapter
// parses the manifest directly, so it must synthesize it itself.
func withImplicitOptionalFeatures(declared map[string][]string, edges []Edge) map[string][]string {
	out := make(map[string][]string, len(declared)+len(edges))
	for name, tokens := range declared {
		out[name] = tokens
	}

	explicitDepSyntax := make(map[string]bool)
	for _, tokens := range declared {
		for _, tok := range tokens {
			if name, ok := strings.CutPrefix(tok, "dep:"); ok {
				explicitDepSyntax[name] = true
			}
		}
	}

	for _, e := range edges {
		if !e.Optional {
			continue
		}
		name := e.Rename
		if name == "" {
			name = e.Target.Name
		}
		if explicitDepSyntax[name] {
			continue
		}
		if _, ok := out[name]; ok {
			continue
		}
		out[name] = []string{"dep:" + name}
	}

	return out
}

func defaultEdition(e string) string {
	if e == "" {
		return "2015"
	}
	return e
}

// buildScriptPath reports the relative build-script path for a package,
// honoring an explicit `build = "..."` or `build = false` manifest entry
// and otherwise probing for the conventional build.rs on disk.
func buildScriptPath(pkgDir string, build any) string {
	switch v := build.(type) {
	case bool:
		if !v {
			return ""
		}
	case string:
		return v
	}
	if pkgDir == "" {
		return ""
	}
	if info, err := os.Stat(filepath.Join(pkgDir, "build.rs")); err == nil && !info.IsDir() {
		return "build.rs"
	}
	return ""
}

func findMemberID(ids map[string]map[string]cargoid.PackageId, name string) (cargoid.PackageId, bool) {
	versions, ok := ids[name]
	if !ok {
		return cargoid.PackageId{}, false
	}
	for _, id := range versions {
		if id.Source.Kind == cargoid.Local {
			return id, true
		}
	}
	return cargoid.PackageId{}, false
}

// resolveLockDependency finds the PackageId for a (name, version) pair.
// When version is "" and exactly one locked version of name exists, that
// version is used.
func resolveLockDependency(ids map[string]map[string]cargoid.PackageId, name, version string) (cargoid.PackageId, bool) {
	versions, ok := ids[name]
	if !ok {
		return cargoid.PackageId{}, false
	}
	if version != "" {
		id, ok := versions[version]
		return id, ok
	}
	if len(versions) == 1 {
		for _, id := range versions {
			return id, true
		}
	}
	return cargoid.PackageId{}, false
}

// resolveFromLockDeps disambiguates a manifest dependency name against
// the owning lock package's own `dependencies` list, which Cargo renders
// with an explicit version whenever more than one is locked.
func resolveFromLockDeps(ids map[string]map[string]cargoid.PackageId, owner lockPackage, name string) (cargoid.PackageId, bool) {
	for _, dep := range owner.Dependencies {
		depName, depVersion := lockDependencyName(dep)
		if depName == name {
			return resolveLockDependency(ids, depName, depVersion)
		}
	}
	return cargoid.PackageId{}, false
}

// findWorkspaceRoot locates the Cargo.lock-owning workspace root for the
// crate at dir: dir itself if its manifest declares [workspace], else
// the nearest ancestor whose manifest does (a virtual manifest with no
// [package] table, in the common case). Falls back to dir when no
// ancestor declares one, matching a standalone, non-workspace crate.
func findWorkspaceRoot(dir string, m *manifest) (string, *manifest) {
	if len(m.Workspace.Members) > 0 {
		return dir, m
	}

	cur := dir
	for {
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
		pm, err := loadManifest(cur)
		if err != nil {
			continue
		}
		if len(pm.Workspace.Members) > 0 {
			return cur, pm
		}
	}

	return dir, m
}

// loadWorkspaceMembers resolves the workspace member directories declared
// in root's [workspace] table (glob patterns are expanded), returning a
// name -> directory map and a name -> parsed manifest map. The root
// package itself is included when present (a "mixed" workspace).
func loadWorkspaceMembers(rootDir string, root *manifest) (map[string]string, map[string]*manifest, error) {
	members := make(map[string]string)
	manifests := make(map[string]*manifest)

	if root.Package.Name != "" {
		members[root.Package.Name] = rootDir
		manifests[root.Package.Name] = root
	}

	for _, pattern := range root.Workspace.Members {
		matches, err := filepath.Glob(filepath.Join(rootDir, pattern))
		if err != nil {
			return nil, nil, cargoerrors.Wrap(cargoerrors.ManifestNotFound, err, "expand workspace member pattern %q", pattern)
		}
		for _, dir := range matches {
			info, err := os.Stat(dir)
			if err != nil || !info.IsDir() {
				continue
			}
			m, err := loadManifest(dir)
			if err != nil {
				return nil, nil, err
			}
			if m.Package.Name == "" {
				continue
			}
			members[m.Package.Name] = dir
			manifests[m.Package.Name] = m
		}
	}

	return members, manifests, nil
}
