// Package cargo builds a [crate.Graph] from what Cargo already knows about a
// workspace.
//
// Three inputs are combined:
//
//   - the JSON printed by `cargo metadata --format-version 1`, read with
//     [ReadMetadata] or produced by a [Loader];
//   - registry checksums from Cargo.lock, read with [LoadLockfile];
//   - the [Platform] being built for, which decides which target-specific
//     dependency declarations apply.
//
// [Build] turns them into one shared package per resolved crate, with normal
// and build dependency edges split and merged the way Cargo declares them.
// Dev dependencies are never part of the graph.
//
// # Usage
//
//	loader := cargo.NewLoader(cache.NewNullCache(), nil, logger)
//	meta, _, err := loader.Load(ctx, dir, platform, false)
//	if err != nil {
//	    return err
//	}
//	lock, err := cargo.LoadLockfile(filepath.Join(meta.WorkspaceRoot, "Cargo.lock"))
//	if err != nil {
//	    return err
//	}
//	g, err := cargo.Build(meta, lock.Checksums(), platform, cargo.BuildOptions{})
package cargo
