package cargo

import (
	"testing"

	"github.com/cratewright/cratewright/pkg/cargoid"
)

func hashFixture() *Graph {
	root := cargoid.PackageId{Name: "root", Version: "0.1.0"}
	dep := cargoid.PackageId{Name: "dep", Version: "1.0.0"}
	return &Graph{
		Root: root,
		Packages: map[cargoid.PackageId]*Package{
			root: {
				ID:               root,
				Edition:          "2021",
				DeclaredFeatures: map[string][]string{"default": {"a"}, "a": {}},
				DependencyEdges: []Edge{
					{Target: dep, Kind: Normal, ExplicitFeatures: []string{"x"}},
				},
			},
			dep: {ID: dep, Edition: "2021"},
		},
	}
}

func TestContentHashStableUnderMapIterationOrder(t *testing.T) {
	a := ContentHash(hashFixture())
	b := ContentHash(hashFixture())
	if a != b {
		t.Fatalf("ContentHash is not stable across equal graphs: %s != %s", a, b)
	}
}

func TestContentHashChangesWithDependencyEdges(t *testing.T) {
	before := ContentHash(hashFixture())

	g := hashFixture()
	root := g.Packages[g.Root]
	root.DependencyEdges[0].ExplicitFeatures = append(root.DependencyEdges[0].ExplicitFeatures, "y")

	after := ContentHash(g)
	if before == after {
		t.Fatal("ContentHash did not change when a dependency edge's explicit features changed")
	}
}

func TestContentHashChangesWithRoot(t *testing.T) {
	g := hashFixture()
	before := ContentHash(g)

	other := cargoid.PackageId{Name: "dep", Version: "1.0.0"}
	g.Root = other

	after := ContentHash(g)
	if before == after {
		t.Fatal("ContentHash did not change when the graph's root package changed")
	}
}

func TestContentHashIgnoresPackageMapIterationOrder(t *testing.T) {
	g1 := hashFixture()
	g2 := &Graph{Root: g1.Root, Packages: map[cargoid.PackageId]*Package{}}
	for id, pkg := range g1.Packages {
		g2.Packages[id] = pkg
	}
	if ContentHash(g1) != ContentHash(g2) {
		t.Fatal("ContentHash depends on Go's map iteration order, which it must not")
	}
}
