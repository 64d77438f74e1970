// Package features resolves which optional dependencies and which features of
// a Cargo dependency graph are active.
//
// Resolution mutates a [crate.Package] graph in place by running five passes,
// each exactly once, in a fixed order:
//
//  1. [PassSetDefault] enables "default" on targets of edges that use default features.
//  2. [PassEnableFeatures] enables the features each edge requests, if the target declares them.
//  3. [PassUnpackDefault] replaces "default" with the package's own default list.
//  4. [PassUnpackChain] follows feature lists to a fixpoint, activating optional
//     dependencies ("dep:name") and dependency features ("name/feature").
//  5. [PassOptionalDependencyFeatures] applies weak "name?/feature" requests to
//     dependencies that ended up active, then drops the weak tokens.
//
// Every pass walks the graph depth-first from the root. A package's hook runs
// before its edges are inspected, so an optional edge activated by the hook is
// followed in the same pass. Shared packages are visited once per path that
// reaches them; this is what lets features contributed late in a pass by a
// second dependent still be unpacked on the shared package.
//
// Unknown features and dependency names are never errors. The only failure is
// an internal one: a package whose feature unpacking does not converge within
// its iteration bound, reported as [ErrFixpointLimit].
//
// # Usage
//
//	if err := features.Resolve(g.Root()); err != nil {
//	    return err
//	}
//	for _, p := range g.Active() {
//	    fmt.Println(p.ID, p.Enabled.Sorted())
//	}
package features
