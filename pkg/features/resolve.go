package features

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/rustnix/pkg/crate"
	"github.com/matzehuels/rustnix/pkg/errors"
	"github.com/matzehuels/rustnix/pkg/observability"
)

// Resolver runs the resolution passes and reports on each of them.
//
// The passes themselves are silent; logging and observability hooks live
// here, around each pass invocation.
type Resolver struct {
	Logger *log.Logger

	// MaxRounds overrides the per-package bound on unpacking rounds.
	// Zero derives the bound from each package's feature table.
	MaxRounds int
}

// NewResolver returns a resolver that logs to logger, or to log.Default()
// when logger is nil.
func NewResolver(logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.Default()
	}
	return &Resolver{Logger: logger}
}

// EnableRoot turns on features of the root package the way `cargo build
// --features` does, before [Resolve] runs. The default list is enabled when
// useDefaults is set and the root declares one. Requested entries are kept
// when the root declares them or when they reference a dependency
// ("dep:x", "x/y", "x?/y"); anything else is ignored.
func EnableRoot(root *crate.Package, requested []string, useDefaults bool) {
	if useDefaults && root.Declares(crate.DefaultFeature) {
		root.Enabled.Insert(crate.DefaultFeature)
	}
	for _, f := range requested {
		if crate.ParseToken(f).IsDirective() || root.Declares(f) {
			root.Enabled.Insert(f)
		}
	}
}

// Resolve enables features across the graph rooted at root, in place.
func Resolve(root *crate.Package) error {
	return NewResolver(nil).Resolve(context.Background(), root)
}

// Resolve runs every pass of [Passes] once, in order, starting at root.
// The context is only handed to observability hooks; resolution itself does
// not block.
func (r *Resolver) Resolve(ctx context.Context, root *crate.Package) (err error) {
	if root == nil {
		return errors.New(errors.ErrCodeInvalidInput, "resolve: root package is nil")
	}

	hooks := observability.Resolve()
	name := root.ID.String()
	start := time.Now()
	hooks.OnResolveStart(ctx, name)
	defer func() {
		hooks.OnResolveComplete(ctx, name, time.Since(start), err)
	}()

	for _, pass := range Passes {
		if err := r.run(ctx, root, pass); err != nil {
			return err
		}
	}
	return nil
}

func (r *Resolver) run(ctx context.Context, root *crate.Package, pass Pass) error {
	hooks := observability.Resolve()
	hooks.OnPassStart(ctx, pass.String())

	start := time.Now()
	w := newWalker(pass, r.MaxRounds)
	err := w.walk(root)
	elapsed := time.Since(start)

	hooks.OnPassComplete(ctx, pass.String(), w.visits, elapsed, err)
	if err != nil {
		r.Logger.Error("feature pass failed", "pass", pass, "err", err)
		return err
	}
	r.Logger.Debug("feature pass", "pass", pass, "visits", w.visits, "duration", elapsed)
	return nil
}
