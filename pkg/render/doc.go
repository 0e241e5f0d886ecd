// Package render provides visualization rendering for resolved crate graphs.
//
// # Overview
//
// This package holds generic format conversion shared by every renderer, plus
// the [nodelink] subpackage for Graphviz-based node-link diagrams. A resolved
// graph is never rendered directly: pkg/render/depgraph first projects it into
// a pkg/dag graph (assigning each node a row by longest path from the
// workspace root and subdividing any edge that skips rows, so every edge
// spans exactly one row), and nodelink draws that.
//
// # Format Conversion
//
// The [ToPDF] and [ToPNG] functions convert an SVG to other formats using the
// external rsvg-convert tool (from librsvg).
//
//	dot := nodelink.ToDOT(g, nodelink.Options{})
//	svg, err := nodelink.RenderSVG(dot)
//	pdf, err := render.ToPDF(svg)
//	png, err := render.ToPNG(svg, 2.0) // 2x scale
//
// # Node-Link Diagrams
//
// The [nodelink] subpackage renders directed graph diagrams using Graphviz.
// Nodes appear as boxes connected by arrows; synthetic subdivider nodes are
// drawn dashed so a long edge through several rows stays visually distinct
// from a regular dependency.
//
// Rendering is debug tooling only: it never feeds back into emission, and a
// build with no graphviz/rsvg-convert available still emits Nix correctly.
//
// [nodelink]: github.com/cratewright/cratewright/pkg/render/nodelink
package render
