// Package pipeline turns a Cargo workspace into a Nix expression.
//
// The pipeline has three stages:
//
//  1. Load: run `cargo metadata` (cached), read Cargo.lock and build the
//     crate graph for one target platform
//  2. Resolve: seed the root's features and run feature resolution, then
//     convert the graph into the packages that get built
//  3. Render: write the Nix expression, or a diagram of the build graph
//
// # Usage
//
//	runner := pipeline.NewRunner(cargo.NewLoader(c, nil, logger), logger)
//	opts := pipeline.Options{Dir: ".", Platform: cargo.HostPlatform()}
//	result, err := runner.Resolve(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = nix.Render(os.Stdout, result.Root, nix.DefaultRenderOptions())
//
// Or in one step:
//
//	err := runner.Generate(ctx, opts, os.Stdout, nix.DefaultRenderOptions())
package pipeline

import (
	"time"

	"github.com/matzehuels/rustnix/pkg/cargo"
	"github.com/matzehuels/rustnix/pkg/crate"
	"github.com/matzehuels/rustnix/pkg/errors"
	"github.com/matzehuels/rustnix/pkg/nix"
)

// Options selects the workspace, package and feature set to build.
type Options struct {
	// Dir is the directory holding the workspace Cargo.toml.
	Dir string

	// Package selects a workspace member. Empty uses the workspace root
	// package.
	Package string

	// Platform filters target-specific dependencies. The zero value means
	// the host platform.
	Platform cargo.Platform

	// Refresh skips the metadata cache.
	Refresh bool

	// Features are enabled on the root package, like `cargo build --features`.
	Features []string

	// NoDefaultFeatures leaves the root's default list off.
	NoDefaultFeatures bool
}

// Validate checks the options and fills the platform when unset.
func (o *Options) Validate() error {
	if o.Dir == "" {
		o.Dir = "."
	}
	if o.Platform.Triple == "" {
		o.Platform = cargo.HostPlatform()
	}
	for _, f := range o.Features {
		if err := errors.ValidateFeatureName(f); err != nil {
			return err
		}
	}
	if o.Package != "" {
		if err := errors.ValidateCrateName(o.Package); err != nil {
			return err
		}
	}
	return nil
}

// Result is the outcome of [Runner.Resolve].
type Result struct {
	// Graph is the resolved crate graph, including inactive optional crates.
	Graph *crate.Graph

	// Root is the root of the build graph handed to the renderers.
	Root *nix.Package

	Stats Stats
}

// Stats contains pipeline execution statistics.
type Stats struct {
	PackageCount int // packages in the crate graph
	EdgeCount    int
	ActiveCount  int // crates that get built

	LoadTime    time.Duration
	ResolveTime time.Duration

	// MetadataHit reports whether cargo metadata came from the cache.
	MetadataHit bool
}
