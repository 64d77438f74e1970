package pipeline

import (
	"context"
	"io"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/rustnix/pkg/cargo"
	"github.com/matzehuels/rustnix/pkg/crate"
	"github.com/matzehuels/rustnix/pkg/errors"
	"github.com/matzehuels/rustnix/pkg/features"
	"github.com/matzehuels/rustnix/pkg/nix"
	"github.com/matzehuels/rustnix/pkg/observability"
)

// MetadataSource produces cargo metadata for a workspace directory.
// [cargo.Loader] is the production implementation.
type MetadataSource interface {
	Load(ctx context.Context, dir string, platform cargo.Platform, refresh bool) (*cargo.Metadata, bool, error)
}

// Runner executes the pipeline stages.
//
// The Runner keeps no per-run state, so one Runner can serve several
// workspaces in turn. Each run builds a fresh crate graph.
type Runner struct {
	Loader MetadataSource
	Logger *log.Logger
}

// NewRunner creates a runner. A nil logger uses log.Default().
func NewRunner(loader MetadataSource, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Loader: loader, Logger: logger}
}

// Load builds the unresolved crate graph of the selected package.
func (r *Runner) Load(ctx context.Context, opts Options) (*crate.Graph, error) {
	g, _, err := r.load(ctx, &opts)
	return g, err
}

func (r *Runner) load(ctx context.Context, opts *Options) (g *crate.Graph, hit bool, err error) {
	if err := opts.Validate(); err != nil {
		return nil, false, err
	}
	if r.Loader == nil {
		return nil, false, errors.New(errors.ErrCodeInternal, "pipeline: no metadata loader configured")
	}

	hooks := observability.Pipeline()
	start := time.Now()
	hooks.OnLoadStart(ctx, opts.Dir)
	defer func() {
		n := 0
		if g != nil {
			n = g.Len()
		}
		hooks.OnLoadComplete(ctx, opts.Dir, n, time.Since(start), err)
	}()

	meta, hit, err := r.Loader.Load(ctx, opts.Dir, opts.Platform, opts.Refresh)
	if err != nil {
		return nil, false, err
	}

	lock, err := cargo.LoadLockfile(filepath.Join(meta.WorkspaceRoot, "Cargo.lock"))
	if err != nil {
		return nil, false, err
	}

	g, err = cargo.Build(meta, lock.Checksums(), opts.Platform, cargo.BuildOptions{
		Package: opts.Package,
		Logger:  r.Logger,
	})
	if err != nil {
		return nil, false, err
	}
	return g, hit, nil
}

// Resolve loads the graph, resolves features and converts the result into
// the build graph.
func (r *Runner) Resolve(ctx context.Context, opts Options) (*Result, error) {
	loadStart := time.Now()
	g, hit, err := r.load(ctx, &opts)
	if err != nil {
		return nil, err
	}
	result := &Result{Graph: g}
	result.Stats.LoadTime = time.Since(loadStart)
	result.Stats.MetadataHit = hit
	result.Stats.PackageCount = g.Len()
	result.Stats.EdgeCount = g.EdgeCount()

	r.Logger.Info("loaded workspace",
		"root", g.Root().ID,
		"packages", g.Len(),
		"edges", g.EdgeCount(),
		"cached", hit,
		"duration", result.Stats.LoadTime)

	resolveStart := time.Now()
	root := g.Root()
	features.EnableRoot(root, opts.Features, !opts.NoDefaultFeatures)
	if err := features.NewResolver(r.Logger).Resolve(ctx, root); err != nil {
		return nil, err
	}
	result.Root = nix.Convert(root)
	result.Stats.ResolveTime = time.Since(resolveStart)
	result.Stats.ActiveCount = len(g.Active())

	r.Logger.Info("resolved features",
		"crates", result.Stats.ActiveCount,
		"root features", root.Enabled.Sorted(),
		"duration", result.Stats.ResolveTime)

	return result, nil
}

// Generate resolves the workspace and writes the Nix expression to w.
func (r *Runner) Generate(ctx context.Context, opts Options, w io.Writer, renderOpts nix.RenderOptions) (*Result, error) {
	result, err := r.Resolve(ctx, opts)
	if err != nil {
		return nil, err
	}
	if _, err := RenderNix(ctx, w, result.Root, renderOpts); err != nil {
		return nil, err
	}
	return result, nil
}
