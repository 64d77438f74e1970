package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/rustnix/pkg/nix"
	"github.com/matzehuels/rustnix/pkg/render"
)

// Options configures node-link diagram rendering.
type Options struct {
	// Detailed adds enabled features and target markers to node labels.
	// When false, only name and version are shown.
	Detailed bool
}

// ToDOT converts the crate graph rooted at root to Graphviz DOT. Nodes and
// edges appear in the order the Nix renderer emits crates, so the output is
// stable for a given graph.
func ToDOT(root *nix.Package, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=24, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	pkgs := root.Packages()
	for _, p := range pkgs {
		attrs := []string{fmt.Sprintf("label=%q", fmtLabel(p, opts.Detailed))}
		if p == root {
			attrs = append(attrs, "penwidth=3")
		}
		if p.Source.IsLocal() {
			attrs = append(attrs, "fillcolor=lightyellow")
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", p.Identifier(), strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, p := range pkgs {
		for _, d := range p.Dependencies {
			fmt.Fprintf(&buf, "  %q -> %q%s;\n", p.Identifier(), d.Package.Identifier(), fmtEdge(d, false))
		}
		for _, d := range p.BuildDependencies {
			fmt.Fprintf(&buf, "  %q -> %q%s;\n", p.Identifier(), d.Package.Identifier(), fmtEdge(d, true))
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(p *nix.Package, detailed bool) string {
	label := p.Name + " " + p.Version
	if !detailed {
		return label
	}
	var parts []string
	if len(p.Features) > 0 {
		parts = append(parts, "features: "+strings.Join(p.Features, ", "))
	}
	if p.ProcMacro {
		parts = append(parts, "proc-macro")
	}
	if p.BuildPath != "" {
		parts = append(parts, "build: "+p.BuildPath)
	}
	if len(parts) == 0 {
		return label
	}
	return label + "\n" + strings.Join(parts, "\n")
}

func fmtEdge(d nix.Dependency, build bool) string {
	var attrs []string
	if build {
		attrs = append(attrs, "style=dashed")
	}
	if d.Rename != "" {
		attrs = append(attrs, fmt.Sprintf("label=%q", d.Rename))
	}
	if len(attrs) == 0 {
		return ""
	}
	return " [" + strings.Join(attrs, ", ") + "]"
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(dot string) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's point-based svg element with one that
// scales from its viewBox.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}

// RenderPDF renders a DOT graph as PDF via SVG conversion.
func RenderPDF(dot string) ([]byte, error) {
	svg, err := RenderSVG(dot)
	if err != nil {
		return nil, err
	}
	return render.ToPDF(svg)
}

// RenderPNG renders a DOT graph as PNG via SVG conversion.
func RenderPNG(dot string, scale float64) ([]byte, error) {
	svg, err := RenderSVG(dot)
	if err != nil {
		return nil, err
	}
	return render.ToPNG(svg, scale)
}
