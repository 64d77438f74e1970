// Package pkg provides the libraries behind rustnix.
//
// # Overview
//
// rustnix turns a Cargo workspace into a Nix expression that builds every
// crate with buildRustCrate. The crate graph comes from `cargo metadata`, the
// features each crate is compiled with are resolved the way cargo resolves
// them, and the result is written as one self-contained expression.
//
// The packages fall into three groups:
//
//  1. Model and algorithm: [crate] (package graph) and [features] (feature
//     resolution)
//  2. Input and output: [cargo] (metadata, lockfile, target platform), [nix]
//     (build graph and expression renderer) and [render] (graph diagrams)
//  3. Infrastructure: [pipeline] (orchestration), [cache], [config],
//     [errors], [observability] and [buildinfo]
//
// # Data flow
//
//	cargo metadata + Cargo.lock
//	         ↓
//	    [cargo] package (build the crate graph for one target)
//	         ↓
//	    [features] package (enable features in place)
//	         ↓
//	    [nix] package (convert and render)
//	         ↓
//	    default.nix / DOT / SVG
//
// # Quick Start
//
//	runner := pipeline.NewRunner(cargo.NewLoader(nil, nil, nil), nil)
//	_, err := runner.Generate(ctx, pipeline.Options{Dir: "."}, os.Stdout, nix.DefaultRenderOptions())
package pkg
