package resolve

import (
	"sort"

	"github.com/cratewright/cratewright/pkg/cargo"
	"github.com/cratewright/cratewright/pkg/cargoid"
	cargoerrors "github.com/cratewright/cratewright/pkg/errors"
	"github.com/cratewright/cratewright/pkg/platform"
)

// depGroup is one logical dependency: every manifest line that targets
// the same package under the same edge kind and is currently active on
// the resolution target, merged into one entry. A package reachable
// through more than one simultaneously-applying target.'cfg(...)' table
// is one dependency in Cargo's own model, not two, so it must resolve
// to one group — grounded on
// original_source/nbuild-core/src/models/cargo/mod.rs's get_dependency:
// optional is the AND of every matching line's optional flag,
// uses_default_features is their OR, features is their union, and
// rename is the first non-empty one declared.
type depGroup struct {
	target              cargoid.PackageId
	kind                cargo.EdgeKind
	rename              string
	usesDefaultFeatures bool
}

// instance is the mutable working state for one (PackageId, Context)
// node during the fixed-point computation. It is discarded once
// Resolve materialises the final Graph.
type instance struct {
	key    NodeKey
	pkg    *cargo.Package
	active map[string]bool

	// groups is pkg.DependencyEdges merged by (target, kind) and
	// filtered to the lines that apply on the resolution target;
	// groupActivated/groupFeatures run parallel to it. groupFeatures
	// starts from the merged static ExplicitFeatures union and grows as
	// "dep/feat" tokens are discovered — the per-group mutable overlay
	// that stands in for the original's Dependency.features field.
	groups         []depGroup
	groupActivated []bool
	groupFeatures  []map[string]bool

	// pendingWeak holds every raw "dep?/feat" token seen in a declared
	// feature's token list. Unlike the original (which drops the token
	// whether or not it ever resolves — see DESIGN.md's Open Question
	// resolution), these are retried on every reprocessing until dep is
	// activated, and are never folded into `active` so they never leak
	// into the emitted feature list.
	pendingWeak map[string]bool
}

type resolver struct {
	graph     *cargo.Graph
	opts      Options
	instances map[NodeKey]*instance
	dirty     []NodeKey
	dirtySet  map[NodeKey]bool
	warnings  []Warning
}

// Resolve computes the fixed-point active feature set for every node
// reachable from g.Root and materialises the Resolved graph.
func Resolve(g *cargo.Graph, opts Options) (*Graph, []Warning, error) {
	opts = opts.WithDefaults()

	root, ok := g.Packages[g.Root]
	if !ok {
		return nil, nil, cargoerrors.New(cargoerrors.UnknownSource, "root package %s not present in graph", g.Root)
	}

	r := &resolver{
		graph:     g,
		opts:      opts,
		instances: map[NodeKey]*instance{},
		dirtySet:  map[NodeKey]bool{},
	}

	rootKey := NodeKey{ID: g.Root, Context: Normal}
	rootInst, err := r.getOrCreate(rootKey)
	if err != nil {
		return nil, nil, err
	}

	seed := map[string]bool{}
	for _, f := range opts.RequestedFeatures {
		if _, ok := root.DeclaredFeatures[f]; !ok {
			return nil, nil, cargoerrors.New(cargoerrors.UnknownFeature,
				"requested feature %q is not declared by %s", f, root.ID)
		}
		seed[f] = true
	}
	if !opts.NoDefaultFeatures {
		if _, ok := root.DeclaredFeatures["default"]; ok {
			seed["default"] = true
		}
	}
	r.addActive(rootInst, seed) // getOrCreate above already scheduled the root once

	for len(r.dirty) > 0 {
		key := r.dirty[0]
		r.dirty = r.dirty[1:]
		delete(r.dirtySet, key)
		if err := r.process(key); err != nil {
			return nil, nil, err
		}
	}

	return r.materialize(rootKey), r.warnings, nil
}

func (r *resolver) getOrCreate(key NodeKey) (*instance, error) {
	if inst, ok := r.instances[key]; ok {
		return inst, nil
	}
	pkg, ok := r.graph.Packages[key.ID]
	if !ok {
		return nil, cargoerrors.New(cargoerrors.UnknownSource, "resolved edge targets unknown package %s", key.ID)
	}

	inst := &instance{
		key:         key,
		pkg:         pkg,
		active:      map[string]bool{},
		pendingWeak: map[string]bool{},
	}

	type groupKey struct {
		target cargoid.PackageId
		kind   cargo.EdgeKind
	}
	var order []groupKey
	members := map[groupKey][]cargo.Edge{}

	for _, e := range pkg.DependencyEdges {
		applies := true
		if e.PlatformPredicate != "" {
			ok, err := platform.Eval(e.PlatformPredicate, r.opts.Target)
			if err != nil {
				if up, isUnparseable := err.(*platform.Unparseable); isUnparseable {
					r.warnings = append(r.warnings, Warning{
						Code:    "PlatformCfgUnparseable",
						Package: key.ID,
						Detail:  up.Error(),
					})
					applies = false
				} else {
					return nil, err
				}
			} else {
				applies = ok
			}
		}
		if !applies {
			continue
		}

		gk := groupKey{target: e.Target, kind: e.Kind}
		if _, ok := members[gk]; !ok {
			order = append(order, gk)
		}
		members[gk] = append(members[gk], e)
	}

	for _, gk := range order {
		g := depGroup{target: gk.target, kind: gk.kind}
		optional := true
		features := map[string]bool{}
		for _, e := range members[gk] {
			if !e.Optional {
				optional = false
			}
			if e.UsesDefaultFeatures {
				g.usesDefaultFeatures = true
			}
			if g.rename == "" && e.Rename != "" {
				g.rename = e.Rename
			}
			for _, f := range e.ExplicitFeatures {
				features[f] = true
			}
		}
		inst.groups = append(inst.groups, g)
		inst.groupActivated = append(inst.groupActivated, !optional)
		inst.groupFeatures = append(inst.groupFeatures, features)
	}

	r.instances[key] = inst
	// Every node must be visited at least once, even one that never
	// receives a feature contribution (e.g. an empty-featured proc-macro
	// reached only via an unconditional edge): mirrors the original's
	// Visitor::visit always recursing into every non-optional dependency.
	r.markDirty(key)
	return inst, nil
}

func (r *resolver) markDirty(key NodeKey) {
	if !r.dirtySet[key] {
		r.dirtySet[key] = true
		r.dirty = append(r.dirty, key)
	}
}

// addActive unions features into inst's active set, scheduling inst for
// reprocessing if anything new was added.
func (r *resolver) addActive(inst *instance, features map[string]bool) {
	changed := false
	for f := range features {
		if !inst.active[f] {
			inst.active[f] = true
			changed = true
		}
	}
	if changed {
		r.markDirty(inst.key)
	}
}

// findEdges returns the indices of inst's Normal/Build groups whose
// logical name (the merged rename, or the target's own name) equals
// name. Dev groups are never matched — they are never traversed for
// feature unification.
func (r *resolver) findEdges(inst *instance, name string) []int {
	var out []int
	for i, g := range inst.groups {
		if g.kind == cargo.Dev {
			continue
		}
		logical := g.rename
		if logical == "" {
			logical = g.target.Name
		}
		if logical == name {
			out = append(out, i)
		}
	}
	return out
}

func (r *resolver) addEdgeFeature(inst *instance, idx int, feature string) {
	inst.groupFeatures[idx][feature] = true
}

// process runs one round of local feature unpacking (grounded on
// visitor.rs's visit_package/unpack_features/unpack_optionals_features)
// and then pushes every qualifying edge's contribution onto its child,
// scheduling children for reprocessing as needed. It is safe to call
// more than once on the same key; every step is idempotent.
func (r *resolver) process(key NodeKey) error {
	inst := r.instances[key]

	for {
		var newlyLocal []string

		active := make([]string, 0, len(inst.active))
		for f := range inst.active {
			active = append(active, f)
		}

		for _, f := range active {
			for _, raw := range inst.pkg.DeclaredFeatures[f] {
				tok := classifyToken(raw)
				switch tok.kind {
				case tokenActivateDep:
					idxs := r.findEdges(inst, tok.dep)
					if len(idxs) == 0 {
						return cargoerrors.New(cargoerrors.ActivatedMissingOptionalDep,
							"%s: dep:%s names no declared dependency", inst.key.ID, tok.dep)
					}
					for _, idx := range idxs {
						inst.groupActivated[idx] = true
					}
				case tokenDepFeature:
					idxs := r.findEdges(inst, tok.dep)
					if len(idxs) == 0 {
						// No dependency named tok.dep: treat the whole
						// token as an inert feature literal, matching
						// the original's fallback to the raw token.
						if !inst.active[tok.raw] {
							newlyLocal = append(newlyLocal, tok.raw)
						}
						continue
					}
					for _, idx := range idxs {
						r.addEdgeFeature(inst, idx, tok.feat)
					}
					if !inst.active[tok.dep] {
						newlyLocal = append(newlyLocal, tok.dep)
					}
				case tokenWeakDepFeature:
					inst.pendingWeak[tok.raw] = true
				case tokenLocalFeature:
					if !inst.active[tok.raw] {
						newlyLocal = append(newlyLocal, tok.raw)
					}
				}
			}
		}

		if len(newlyLocal) == 0 {
			break
		}
		for _, f := range newlyLocal {
			inst.active[f] = true
		}
	}

	for raw := range inst.pendingWeak {
		tok := classifyToken(raw)
		idxs := r.findEdges(inst, tok.dep)
		for _, idx := range idxs {
			if inst.groupActivated[idx] {
				r.addEdgeFeature(inst, idx, tok.feat)
			}
		}
	}

	return r.pushContributions(inst)
}

// pushContributions re-evaluates every currently-qualifying group and
// unions its contribution onto the child node, exactly mirroring
// add_default/activate_features being re-run on every visit.
func (r *resolver) pushContributions(inst *instance) error {
	for i, g := range inst.groups {
		if g.kind == cargo.Dev || !inst.groupActivated[i] {
			continue
		}

		childPkg, ok := r.graph.Packages[g.target]
		if !ok {
			return cargoerrors.New(cargoerrors.UnknownSource, "edge from %s targets unknown package %s", inst.key.ID, g.target)
		}

		childCtx := Normal
		if inst.key.Context == Build || g.kind == cargo.Build || childPkg.IsProcMacro {
			childCtx = Build
		}
		childKey := NodeKey{ID: g.target, Context: childCtx}

		child, err := r.getOrCreate(childKey)
		if err != nil {
			return err
		}

		contribution := map[string]bool{}
		if g.usesDefaultFeatures {
			if _, ok := childPkg.DeclaredFeatures["default"]; ok {
				contribution["default"] = true
			}
		}
		for f := range inst.groupFeatures[i] {
			if _, ok := childPkg.DeclaredFeatures[f]; !ok {
				return cargoerrors.New(cargoerrors.UnknownFeature,
					"%s requests feature %q on %s, which declares no such feature", inst.key.ID, f, childPkg.ID)
			}
			contribution[f] = true
		}

		r.addActive(child, contribution)
	}
	return nil
}

// materialize walks every instance reachable from root and freezes it
// into a Node, filtering out edges that never qualified.
func (r *resolver) materialize(rootKey NodeKey) *Graph {
	out := &Graph{Nodes: map[NodeKey]*Node{}, Root: rootKey}

	var visit func(key NodeKey)
	visited := map[NodeKey]bool{}
	visit = func(key NodeKey) {
		if visited[key] {
			return
		}
		visited[key] = true

		inst := r.instances[key]
		node := &Node{
			Key:            key,
			Package:        inst.pkg,
			ActiveFeatures: map[string]bool{},
		}
		for f := range inst.active {
			node.ActiveFeatures[f] = true
		}

		for i, g := range inst.groups {
			if g.kind == cargo.Dev || !inst.groupActivated[i] {
				continue
			}
			childPkg := r.graph.Packages[g.target]
			childCtx := Normal
			if key.Context == Build || g.kind == cargo.Build || childPkg.IsProcMacro {
				childCtx = Build
			}
			childKey := NodeKey{ID: g.target, Context: childCtx}
			node.OutEdges = append(node.OutEdges, ResolvedEdge{Target: childKey, Kind: g.kind, Rename: g.rename})
			visit(childKey)
		}

		out.Nodes[key] = node
	}

	visit(rootKey)
	return out
}

// SortedFeatures is a small convenience for callers (the emitter) that
// need a deterministic feature list; kept here so both the resolver's
// own tests and the emitter share one sort order.
func SortedFeatures(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
