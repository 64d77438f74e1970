package pipeline

import (
	"bytes"
	"context"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/matzehuels/rustnix/pkg/errors"
	"github.com/matzehuels/rustnix/pkg/nix"
	"github.com/matzehuels/rustnix/pkg/observability"
	"github.com/matzehuels/rustnix/pkg/render"
	"github.com/matzehuels/rustnix/pkg/render/nodelink"
)

// Format constants for graph output formats.
const (
	FormatDOT = "dot"
	FormatSVG = "svg"
	FormatPDF = "pdf"
	FormatPNG = "png"

	formatNix = "nix"
)

// ValidateFormat checks that a graph format is supported.
func ValidateFormat(format string) error {
	if !slices.Contains(render.Formats, format) {
		return errors.New(errors.ErrCodeInvalidFormat,
			"invalid format: %q (must be one of: %s)", format, strings.Join(render.Formats, ", "))
	}
	return nil
}

// RenderNix writes the Nix expression for root to w and returns the number
// of bytes written.
func RenderNix(ctx context.Context, w io.Writer, root *nix.Package, opts nix.RenderOptions) (n int, err error) {
	hooks := observability.Pipeline()
	start := time.Now()
	hooks.OnRenderStart(ctx, formatNix)
	defer func() { hooks.OnRenderComplete(ctx, formatNix, n, time.Since(start), err) }()

	var buf bytes.Buffer
	if err := nix.Render(&buf, root, opts); err != nil {
		return 0, err
	}
	written, err := w.Write(buf.Bytes())
	if err != nil {
		return written, errors.Wrap(errors.ErrCodeInternal, err, "write nix expression")
	}
	return written, nil
}

// RenderGraph draws the build graph rooted at root in the given format.
func RenderGraph(ctx context.Context, root *nix.Package, format string, detailed bool) (data []byte, err error) {
	if err := ValidateFormat(format); err != nil {
		return nil, err
	}
	if root == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "render graph: root package is nil")
	}

	hooks := observability.Pipeline()
	start := time.Now()
	hooks.OnRenderStart(ctx, format)
	defer func() { hooks.OnRenderComplete(ctx, format, len(data), time.Since(start), err) }()

	dot := nodelink.ToDOT(root, nodelink.Options{Detailed: detailed})
	switch format {
	case FormatSVG:
		data, err = nodelink.RenderSVG(dot)
	case FormatPDF:
		data, err = nodelink.RenderPDF(dot)
	case FormatPNG:
		data, err = nodelink.RenderPNG(dot, 2.0)
	default:
		data = []byte(dot)
	}
	if err != nil {
		code := errors.GetCode(err)
		if code == "" {
			code = errors.ErrCodeInternal
		}
		return nil, errors.Wrap(code, err, "render %s", format)
	}
	return data, nil
}
