package features

import (
	"github.com/matzehuels/rustnix/pkg/crate"
)

// Pass is one step of feature resolution.
type Pass int

const (
	// PassSetDefault enables "default" on targets of edges that use default features.
	PassSetDefault Pass = iota
	// PassEnableFeatures enables the features each edge requests on its target.
	PassEnableFeatures
	// PassUnpackDefault replaces "default" with the package's default list.
	PassUnpackDefault
	// PassUnpackChain expands enabled features and applies dependency references.
	PassUnpackChain
	// PassOptionalDependencyFeatures re-runs the chain, then applies "name?/feature".
	PassOptionalDependencyFeatures
)

// Passes lists every pass in the order [Resolve] runs them.
var Passes = []Pass{
	PassSetDefault,
	PassEnableFeatures,
	PassUnpackDefault,
	PassUnpackChain,
	PassOptionalDependencyFeatures,
}

func (p Pass) String() string {
	switch p {
	case PassSetDefault:
		return "set-default"
	case PassEnableFeatures:
		return "enable-features"
	case PassUnpackDefault:
		return "unpack-default"
	case PassUnpackChain:
		return "unpack-chain"
	case PassOptionalDependencyFeatures:
		return "optional-dependency-features"
	}
	return "unknown"
}

// walker applies one pass to every package and edge reachable from a root.
type walker struct {
	pass      Pass
	maxRounds int // 0 means derive the bound from each package
	visits    int
	onPath    map[*crate.Package]bool
}

func newWalker(pass Pass, maxRounds int) *walker {
	return &walker{pass: pass, maxRounds: maxRounds, onPath: make(map[*crate.Package]bool)}
}

// walk runs the package hook, then follows every edge that is not optional
// at that moment, normal edges first. A package already on the current path
// is skipped so a malformed cyclic graph cannot recurse forever.
func (w *walker) walk(pkg *crate.Package) error {
	if w.onPath[pkg] {
		return nil
	}
	w.onPath[pkg] = true
	defer delete(w.onPath, pkg)

	w.visits++
	if err := w.visitPackage(pkg); err != nil {
		return err
	}

	for _, edges := range [][]*crate.Dependency{pkg.Dependencies, pkg.BuildDependencies} {
		for _, dep := range edges {
			if dep.Optional {
				continue
			}
			w.visitDependency(dep)
			if err := w.walk(dep.Package); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *walker) visitPackage(pkg *crate.Package) error {
	switch w.pass {
	case PassUnpackDefault:
		unpackDefault(pkg)
	case PassUnpackChain:
		return unpackChain(pkg, w.roundLimit(pkg))
	case PassOptionalDependencyFeatures:
		if err := unpackChain(pkg, w.roundLimit(pkg)); err != nil {
			return err
		}
		applyWeakFeatures(pkg)
	}
	return nil
}

func (w *walker) visitDependency(dep *crate.Dependency) {
	switch w.pass {
	case PassSetDefault:
		setDefault(dep)
	case PassEnableFeatures:
		enableFeatures(dep)
	}
}

func (w *walker) roundLimit(pkg *crate.Package) int {
	if w.maxRounds > 0 {
		return w.maxRounds
	}
	return roundLimit(pkg)
}

// roundLimit bounds the unpacking rounds for pkg. Every productive round adds
// at least one element to a finite set: a token of pkg's enabled set (added
// or, for directives, consumed), an activated edge, a requested feature on an
// edge, or a feature on a target.
func roundLimit(pkg *crate.Package) int {
	tokens := len(pkg.Features)
	for _, list := range pkg.Features {
		tokens += len(list)
	}
	edges := pkg.Edges()
	limit := 2 + 2*tokens + len(edges)
	for _, d := range edges {
		limit += tokens + len(d.Features) + len(d.Package.Features[crate.DefaultFeature])
	}
	return limit
}
