// Package render converts rendered graph diagrams between output formats.
//
// Diagrams are produced as SVG by the [nodelink] subpackage. [ToPDF] and
// [ToPNG] convert SVG with the external rsvg-convert tool (from librsvg):
//
//	svg, err := nodelink.RenderSVG(nodelink.ToDOT(root, nodelink.Options{}))
//	pdf, err := render.ToPDF(svg)
//	png, err := render.ToPNG(svg, 2.0) // 2x scale
package render
