package resolve

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cratewright/cratewright/pkg/cargo"
	"github.com/cratewright/cratewright/pkg/cargoid"
)

// Resolved graphs key their Nodes map by NodeKey, and NodeKey embeds a
// cargoid.PackageId — neither is a type encoding/json can use as a map
// key. dto mirrors Graph with those keys flattened to strings instead,
// grounded on matzehuels-stacktower's pkg/graph package, which does the
// same Nodes []Node/Edges []Edge flattening over dag.DAG for its own
// "canonical serialization format...designed for round-trip fidelity".
type dto struct {
	Root  dtoKey    `json:"root"`
	Nodes []dtoNode `json:"nodes"`
}

type dtoKey struct {
	ID      string `json:"id"`
	Context string `json:"context"`
}

type dtoNode struct {
	Key            dtoKey    `json:"key"`
	ActiveFeatures []string  `json:"activeFeatures,omitempty"`
	OutEdges       []dtoEdge `json:"outEdges,omitempty"`
}

type dtoEdge struct {
	Target dtoKey `json:"target"`
	Kind   string `json:"kind"`
	Rename string `json:"rename,omitempty"`
}

// MarshalGraph serializes a Resolved graph to JSON for
// cache.Keyer.ResolveKey-keyed caching. It deliberately omits
// Node.Package: UnmarshalGraph reattaches it from the unresolved
// pkg/cargo.Graph the caller already has in hand, since a cache hit
// only promises the workspace's content hash is unchanged, not that
// this process's in-memory Package values are the ones that produced
// the cached entry. Nodes are sorted by key for deterministic output.
func MarshalGraph(g *Graph) ([]byte, error) {
	out := dto{Root: keyToDTO(g.Root)}
	for key, n := range g.Nodes {
		dn := dtoNode{Key: keyToDTO(key), ActiveFeatures: SortedFeatures(n.ActiveFeatures)}
		for _, e := range n.OutEdges {
			dn.OutEdges = append(dn.OutEdges, dtoEdge{
				Target: keyToDTO(e.Target),
				Kind:   e.Kind.String(),
				Rename: e.Rename,
			})
		}
		out.Nodes = append(out.Nodes, dn)
	}
	sort.Slice(out.Nodes, func(i, j int) bool {
		a, b := out.Nodes[i].Key, out.Nodes[j].Key
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.Context < b.Context
	})
	return json.Marshal(out)
}

// UnmarshalGraph reconstructs a Resolved graph from MarshalGraph's
// output, re-attaching each node's *cargo.Package by looking its
// PackageId string up in unresolved — the pkg/cargo.Graph the caller
// just built by loading the same workspace the cache key matched.
func UnmarshalGraph(data []byte, unresolved *cargo.Graph) (*Graph, error) {
	var in dto
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("decoding cached resolve graph: %w", err)
	}

	byString := make(map[string]cargoid.PackageId, len(unresolved.Packages))
	for id := range unresolved.Packages {
		byString[id.String()] = id
	}

	toKey := func(k dtoKey) (NodeKey, error) {
		id, ok := byString[k.ID]
		if !ok {
			return NodeKey{}, fmt.Errorf("cached resolve graph references unknown package %q", k.ID)
		}
		ctx := Normal
		if k.Context == Build.String() {
			ctx = Build
		}
		return NodeKey{ID: id, Context: ctx}, nil
	}

	out := &Graph{Nodes: make(map[NodeKey]*Node, len(in.Nodes))}
	root, err := toKey(in.Root)
	if err != nil {
		return nil, err
	}
	out.Root = root

	for _, dn := range in.Nodes {
		key, err := toKey(dn.Key)
		if err != nil {
			return nil, err
		}
		pkg, ok := unresolved.Packages[key.ID]
		if !ok {
			return nil, fmt.Errorf("cached resolve graph references unknown package %s", key.ID)
		}

		node := &Node{Key: key, Package: pkg, ActiveFeatures: map[string]bool{}}
		for _, f := range dn.ActiveFeatures {
			node.ActiveFeatures[f] = true
		}
		for _, de := range dn.OutEdges {
			target, err := toKey(de.Target)
			if err != nil {
				return nil, err
			}
			node.OutEdges = append(node.OutEdges, ResolvedEdge{
				Target: target,
				Kind:   edgeKindFromString(de.Kind),
				Rename: de.Rename,
			})
		}
		out.Nodes[key] = node
	}

	return out, nil
}

func keyToDTO(k NodeKey) dtoKey {
	return dtoKey{ID: k.ID.String(), Context: k.Context.String()}
}

func edgeKindFromString(s string) cargo.EdgeKind {
	switch s {
	case "build":
		return cargo.Build
	case "dev":
		return cargo.Dev
	default:
		return cargo.Normal
	}
}
