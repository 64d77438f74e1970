// Package nodelink draws the resolved crate graph as a node-link diagram.
//
// Every crate that will be built appears once, as a box labelled with its
// name and version. Normal dependencies are solid arrows, build dependencies
// dashed, and renamed dependencies carry the local name as edge label.
//
//	dot := nodelink.ToDOT(root, nodelink.Options{Detailed: true})
//	svg, err := nodelink.RenderSVG(dot)
//
// Detailed labels add the enabled features and proc-macro/build-script
// markers. SVG rendering runs Graphviz in-process through
// [github.com/goccy/go-graphviz]; PDF and PNG go through [render.ToPDF] and
// [render.ToPNG].
package nodelink
