package cargo

import (
	"encoding/json"
	"sort"

	"github.com/cratewright/cratewright/pkg/cache"
)

// ContentHash returns a stable digest of everything in g that can affect
// feature resolution: every package's declared features and dependency
// edges. Two graphs built from byte-identical manifests and lockfile
// produce the same hash regardless of map iteration order, so a caller
// can use it as a cache key for a resolve run
// (cache.Keyer.ResolveKey's workspaceHash) without re-running the
// resolver just because nothing in the workspace actually changed.
func ContentHash(g *Graph) string {
	type edgeDTO struct {
		Target              string   `json:"target"`
		Kind                int      `json:"kind"`
		Rename              string   `json:"rename,omitempty"`
		Optional            bool     `json:"optional,omitempty"`
		UsesDefaultFeatures bool     `json:"usesDefaultFeatures,omitempty"`
		ExplicitFeatures    []string `json:"explicitFeatures,omitempty"`
		PlatformPredicate   string   `json:"platformPredicate,omitempty"`
	}
	type packageDTO struct {
		ID              string              `json:"id"`
		Edition         string              `json:"edition"`
		DeclaredFeature map[string][]string `json:"declaredFeatures,omitempty"`
		DependencyEdges []edgeDTO           `json:"dependencyEdges,omitempty"`
		IsProcMacro     bool                `json:"isProcMacro,omitempty"`
		BuildScriptPath string              `json:"buildScriptPath,omitempty"`
		LibPath         string              `json:"libPath,omitempty"`
	}

	ids := make([]string, 0, len(g.Packages))
	byID := make(map[string]*Package, len(g.Packages))
	for id, pkg := range g.Packages {
		s := id.String()
		ids = append(ids, s)
		byID[s] = pkg
	}
	sort.Strings(ids)

	dtos := make([]packageDTO, 0, len(ids))
	for _, s := range ids {
		pkg := byID[s]
		edges := make([]edgeDTO, 0, len(pkg.DependencyEdges))
		for _, e := range pkg.DependencyEdges {
			edges = append(edges, edgeDTO{
				Target:              e.Target.String(),
				Kind:                int(e.Kind),
				Rename:              e.Rename,
				Optional:            e.Optional,
				UsesDefaultFeatures: e.UsesDefaultFeatures,
				ExplicitFeatures:    e.ExplicitFeatures,
				PlatformPredicate:   e.PlatformPredicate,
			})
		}
		dtos = append(dtos, packageDTO{
			ID:              s,
			Edition:         pkg.Edition,
			DeclaredFeature: pkg.DeclaredFeatures,
			DependencyEdges: edges,
			IsProcMacro:     pkg.IsProcMacro,
			BuildScriptPath: pkg.BuildScriptPath,
			LibPath:         pkg.LibPath,
		})
	}

	// json.Marshal sorts map keys within each DeclaredFeature map on its
	// own, so the only ordering this function has to impose by hand is
	// across packages and across each package's own edge list (done
	// above and by the adapter's declaration-order guarantee, respectively).
	data, _ := json.Marshal(struct {
		Root     string       `json:"root"`
		Packages []packageDTO `json:"packages"`
	}{Root: g.Root.String(), Packages: dtos})
	return cache.Hash(data)
}
