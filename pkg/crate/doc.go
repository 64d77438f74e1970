// Package crate provides the dependency graph model used by feature resolution.
//
// A [Graph] owns one [Package] per distinct (name, version) pair. Every
// [Dependency] edge that points at the same pair shares that instance, so a
// feature enabled through one dependent is visible through all others. This
// is what makes diamond dependencies unify the way Cargo unifies them.
//
// # Features
//
// Each package declares a feature table mapping a feature name to an ordered
// list of tokens. Tokens come in five shapes, classified by [ParseToken]:
//
//	name            enable feature "name" on the same package
//	default         the package's own default list (a plain feature token)
//	dep:name        activate the optional dependency edge "name"
//	name/feature    enable "feature" on dependency "name" and enable "name"
//	name?/feature   enable "feature" on "name" only if "name" is active
//
// Enabled features live in a [FeatureSet] on each package. Resolution is done
// by package features; this package only holds the data.
//
// # Normal and build dependencies
//
// Normal and build dependencies are kept in separate lists. The same target
// package may appear in both lists of different dependents and is still one
// shared [Package].
package crate
