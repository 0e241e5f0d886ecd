package cargo

import (
	"fmt"

	"github.com/cratewright/cratewright/pkg/cargoid"
	cargoerrors "github.com/cratewright/cratewright/pkg/errors"
)

// color mirrors pkg/dag's white/gray/black DFS cycle detection.
type color int

const (
	white color = iota
	gray
	black
)

// checkAcyclic walks Normal and Build edges only (Dev edges are never
// traversed for feature unification and cannot themselves form a build
// cycle) and fails with CyclicGraph on the first back-edge found.
func checkAcyclic(g *Graph) error {
	colors := make(map[cargoid.PackageId]color, len(g.Packages))
	var stack []cargoid.PackageId

	var visit func(id cargoid.PackageId) error
	visit = func(id cargoid.PackageId) error {
		colors[id] = gray
		stack = append(stack, id)

		pkg := g.Packages[id]
		if pkg != nil {
			for _, e := range pkg.DependencyEdges {
				if e.Kind == Dev {
					continue
				}
				switch colors[e.Target] {
				case white:
					if err := visit(e.Target); err != nil {
						return err
					}
				case gray:
					return cargoerrors.New(cargoerrors.CyclicGraph,
						"cycle detected: %s", cyclePath(append(stack, e.Target)))
				}
			}
		}

		stack = stack[:len(stack)-1]
		colors[id] = black
		return nil
	}

	for id := range g.Packages {
		if colors[id] == white {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

func cyclePath(ids []cargoid.PackageId) string {
	s := ""
	for i, id := range ids {
		if i > 0 {
			s += " -> "
		}
		s += fmt.Sprintf("%s@%s", id.Name, id.Version)
	}
	return s
}
