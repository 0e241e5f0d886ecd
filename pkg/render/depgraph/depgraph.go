// Package depgraph projects a resolved crate graph into a [dag.DAG] purely
// for debug visualization. Nothing here feeds back into emission: pkg/nixgen
// reads pkg/resolve.Graph directly and never touches this package.
package depgraph

import (
	"fmt"
	"sort"

	"github.com/cratewright/cratewright/pkg/cargoid"
	"github.com/cratewright/cratewright/pkg/dag"
	"github.com/cratewright/cratewright/pkg/resolve"
)

// Build converts g into a row-layered DAG keyed by each node's derivation
// key. Row assignment is longest-path from the root (row[v] = max over
// incoming edges of row[u]+1). An edge whose target lies more than one row
// below its source (a node reachable through paths of different lengths)
// is split into a chain of [dag.NodeKindSubdivider] nodes, one per
// intermediate row, so every edge connects consecutive rows — the
// invariant [dag.DAG.Validate] checks.
func Build(g *resolve.Graph) (*dag.DAG, error) {
	keys := assignKeys(g)

	order, err := topoOrder(g)
	if err != nil {
		return nil, err
	}

	full := append([]resolve.NodeKey{g.Root}, order...)

	rows := make(map[resolve.NodeKey]int, len(full))
	rows[g.Root] = 0

	d := dag.New(dag.Metadata{"root": keys[g.Root]})
	// full starts with the root and the rest is topologically sorted, so
	// every node's predecessors are relaxed before the node itself.
	for _, k := range full {
		n := g.Nodes[k]
		for _, e := range n.OutEdges {
			if r := rows[k] + 1; r > rows[e.Target] {
				rows[e.Target] = r
			}
		}
	}

	for _, k := range full {
		n := g.Nodes[k]
		if err := d.AddNode(dag.Node{
			ID:  keys[k],
			Row: rows[k],
			Meta: dag.Metadata{
				"name":    n.Package.ID.Name,
				"version": n.Package.ID.Version,
				"source":  n.Package.ID.Source.Kind.String(),
				"context": k.Context.String(),
			},
		}); err != nil {
			return nil, err
		}
	}
	for _, k := range full {
		n := g.Nodes[k]
		seen := map[resolve.NodeKey]bool{}
		for _, e := range n.OutEdges {
			if seen[e.Target] {
				continue
			}
			seen[e.Target] = true
			// An edge that skips rows is routed through one subdivider
			// node per intermediate row.
			from := keys[k]
			for r := rows[k] + 1; r < rows[e.Target]; r++ {
				sub := fmt.Sprintf("%s_sub_%s_%d", keys[k], keys[e.Target], r)
				if err := d.AddNode(dag.Node{ID: sub, Row: r, Kind: dag.NodeKindSubdivider, MasterID: keys[k]}); err != nil {
					return nil, err
				}
				if err := d.AddEdge(dag.Edge{From: from, To: sub}); err != nil {
					return nil, err
				}
				from = sub
			}
			if err := d.AddEdge(dag.Edge{From: from, To: keys[e.Target]}); err != nil {
				return nil, err
			}
		}
	}
	return d, nil
}

// assignKeys mirrors pkg/nixgen's derivation-key assignment closely enough
// for distinct display labels: the root gets its own package name, every
// other node gets cargoid.DerivationKey with "_build" appended only when the
// same PackageId also resolves under Normal context (a genuine collision,
// the same rule pkg/nixgen's emitter applies).
func assignKeys(g *resolve.Graph) map[resolve.NodeKey]string {
	groups := map[string][]resolve.NodeKey{}
	for k := range g.Nodes {
		if k == g.Root {
			continue
		}
		groups[k.ID.String()] = append(groups[k.ID.String()], k)
	}

	keys := make(map[resolve.NodeKey]string, len(g.Nodes))
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
	return keys
}

// topoOrder returns every non-root node in topological order (parents
// before children), required so the longest-path row pass in Build sees
// each node's predecessors before the node itself.
func topoOrder(g *resolve.Graph) ([]resolve.NodeKey, error) {
	indeg := make(map[resolve.NodeKey]int, len(g.Nodes))
	for k := range g.Nodes {
		indeg[k] = 0
	}
	for _, n := range g.Nodes {
		seen := map[resolve.NodeKey]bool{}
		for _, e := range n.OutEdges {
			if seen[e.Target] {
				continue
			}
			seen[e.Target] = true
			indeg[e.Target]++
		}
	}

	var ready []resolve.NodeKey
	for k, d := range indeg {
		if d == 0 && k != g.Root {
			// Unreachable-from-root nodes with no predecessors; treat as
			// roots of their own subgraph so they still get a row.
			ready = append(ready, k)
		}
	}
	ready = append(ready, g.Root)
	sortKeys(ready)

	var order []resolve.NodeKey
	visited := map[resolve.NodeKey]bool{}
	for len(ready) > 0 {
		k := ready[0]
		ready = ready[1:]
		if visited[k] {
			continue
		}
		visited[k] = true
		if k != g.Root {
			order = append(order, k)
		}

		n := g.Nodes[k]
		var next []resolve.NodeKey
		seen := map[resolve.NodeKey]bool{}
		for _, e := range n.OutEdges {
			if seen[e.Target] {
				continue
			}
			seen[e.Target] = true
			indeg[e.Target]--
			if indeg[e.Target] == 0 {
				next = append(next, e.Target)
			}
		}
		sortKeys(next)
		ready = append(ready, next...)
		sortKeys(ready)
	}
	return order, nil
}

func sortKeys(ks []resolve.NodeKey) {
	sort.Slice(ks, func(i, j int) bool {
		return cargoid.DerivationKey(ks[i].ID)+ks[i].Context.String() < cargoid.DerivationKey(ks[j].ID)+ks[j].Context.String()
	})
}
