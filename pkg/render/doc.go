// Package render turns serialized documents into pictures.
//
// The [refgraph] subpackage draws the object graph of a document: one box
// per tagged record, solid edges for containment and dashed edges for
// identity references. This package converts the resulting SVG:
//
//	svg, err := refgraph.RenderSVG(ctx, refgraph.ToDOT(tree, refgraph.Options{}))
//	pdf, err := render.ToPDF(svg)
//	png, err := render.ToPNG(svg, 2.0)  // 2x scale
//
// PDF and PNG output shell out to rsvg-convert from librsvg.
package render
