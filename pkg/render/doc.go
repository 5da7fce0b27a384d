// Package render visualizes flat wire tables as node-link diagrams.
//
// [ToDOT] converts a table to Graphviz DOT, with one node per part and one
// edge per reference. Shared parts are immediately visible as nodes with
// several incoming edges, and cycles show up as back edges, which makes the
// renderer a handy debugging tool for identity and aliasing questions.
//
// [RenderSVG] rasterizes the DOT through Graphviz; [ToPDF] and [ToPNG]
// convert the SVG further using the external rsvg-convert tool.
package render
