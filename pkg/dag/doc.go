// Package dag provides a directed acyclic graph (DAG) optimized for
// row-based layered layouts, used by pkg/render/depgraph to lay out a
// resolved crate dependency graph for debug visualization.
//
// # Overview
//
// This package provides the core data structure that organizes nodes
// into horizontal rows (layers), with edges connecting nodes in
// consecutive rows only.
//
// The row-based constraint is essential for the Sugiyama-style layered graph
// drawing pkg/render/nodelink builds on. It enables efficient crossing
// detection and ordering algorithms.
//
// # Basic Usage
//
// Create a new graph with [New], add nodes with [DAG.AddNode], and edges with
// [DAG.AddEdge]. Nodes must have unique IDs, and edges can only connect
// existing nodes in consecutive rows (From.Row+1 == To.Row):
//
//	g := dag.New(nil)
//	g.AddNode(dag.Node{ID: "app", Row: 0})
//	g.AddNode(dag.Node{ID: "lib", Row: 1})
//	g.AddEdge(dag.Edge{From: "app", To: "lib"})
//
// Query the graph structure with [DAG.Children], [DAG.Parents], [DAG.NodesInRow],
// and related methods. Use [DAG.Validate] to verify structural integrity before
// rendering or transformations.
//
// # Node Types
//
// The package supports three node kinds to handle real-world graph structures:
//
//   - [NodeKindRegular]: Original graph vertices from dependency data
//   - [NodeKindSubdivider]: Synthetic nodes that break long edges into segments
//   - [NodeKindAuxiliary]: Helper nodes for layout (e.g., separator beams)
//
// Subdivider nodes maintain a [Node.MasterID] linking back to their origin,
// allowing a long edge to be drawn as a chain of short segments across
// intermediate rows. Auxiliary nodes are helper vertices with no source
// counterpart, used to keep the row-based layout well formed.
//
// # Metadata
//
// Both nodes and the graph itself support arbitrary metadata via [Metadata] maps.
// This is used to store package information (version, source kind, derivation
// key) and render options that pkg/render/depgraph and pkg/render/nodelink read
// when drawing the graph. Metadata maps are never nil after creation - empty
// maps are automatically initialized.
//
// # Concurrency
//
// DAG instances are not safe for concurrent use. Callers must synchronize access
// if multiple goroutines read or modify the same graph. Read-only operations can
// safely run in parallel across different goroutines once construction is done.
package dag
