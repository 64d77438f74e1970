// Package nix turns a resolved package graph into a Nix expression that
// builds every crate with nixpkgs' buildRustCrate.
//
// [Convert] produces the output model: one [Package] per crate, only the
// dependency edges that resolution activated, and the enabled features in
// sorted order so the expression is stable across runs. [Render] writes the
// expression. The result can be built with nix-build:
//
//	root := nix.Convert(graph.Root())
//	if err := nix.WriteFile(".rustnix.nix", root, nix.DefaultRenderOptions()); err != nil {
//	    return err
//	}
//
// Crates fetched from crates.io are pinned by the sha256 recorded in
// Cargo.lock; path crates are referenced as filtered local sources.
package nix
