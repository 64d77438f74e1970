package features

import (
	stderrors "errors"

	"github.com/matzehuels/rustnix/pkg/crate"
	"github.com/matzehuels/rustnix/pkg/errors"
)

// ErrFixpointLimit is wrapped by the error returned when a package's feature
// unpacking keeps changing past its iteration bound. It indicates a bug in
// resolution, not bad input.
var ErrFixpointLimit = stderrors.New("feature unpacking did not converge")

// setDefault enables "default" on the target when the edge uses default
// features and the target declares a default list.
func setDefault(dep *crate.Dependency) {
	if dep.UsesDefaultFeatures && dep.Package.Declares(crate.DefaultFeature) {
		dep.Package.Enabled.Insert(crate.DefaultFeature)
	}
}

// enableFeatures enables every requested feature the target declares.
func enableFeatures(dep *crate.Dependency) {
	for _, f := range dep.Features {
		if dep.Package.Declares(f) {
			dep.Package.Enabled.Insert(f)
		}
	}
}

// unpackDefault replaces "default" with the package's own default list. Only
// one level is expanded; the rest is left to the chain pass.
func unpackDefault(pkg *crate.Package) {
	if !pkg.Enabled.Remove(crate.DefaultFeature) {
		return
	}
	insertDefaults(pkg)
}

func insertDefaults(pkg *crate.Package) bool {
	changed := false
	for _, t := range pkg.Features[crate.DefaultFeature] {
		if t != crate.DefaultFeature && pkg.Enabled.Insert(t) {
			changed = true
		}
	}
	return changed
}

// unpackChain expands enabled features through the feature table until a
// round changes nothing.
func unpackChain(pkg *crate.Package, limit int) error {
	for round := 0; round < limit; round++ {
		if !unpackRound(pkg) {
			return nil
		}
	}
	return errors.Wrap(errors.ErrCodeInternal, ErrFixpointLimit,
		"package %s still changing after %d rounds", pkg.ID, limit)
}

// unpackRound applies every token reachable in one step from the enabled set
// and reports whether anything changed.
func unpackRound(pkg *crate.Package) bool {
	changed := false
	for _, f := range pkg.Enabled.Sorted() {
		tok := crate.ParseToken(f)
		switch tok.Kind {
		case crate.TokenDep, crate.TokenDepFeature:
			// Directives land in the set verbatim when a default list holds them.
			pkg.Enabled.Remove(f)
			applyToken(pkg, tok)
			changed = true
			continue
		case crate.TokenWeakDepFeature:
			continue
		}
		for _, raw := range pkg.Features[f] {
			if applyToken(pkg, crate.ParseToken(raw)) {
				changed = true
			}
		}
	}
	return changed
}

// applyToken applies one feature-table token on behalf of pkg and reports
// whether the graph changed.
func applyToken(pkg *crate.Package, tok crate.Token) bool {
	switch tok.Kind {
	case crate.TokenDep:
		return activate(pkg, tok.Dep)
	case crate.TokenDepFeature:
		return enableDependencyFeature(pkg, tok.Dep, tok.Feature)
	case crate.TokenWeakDepFeature:
		return pkg.Enabled.Insert(tok.String())
	}
	if tok.Feature == crate.DefaultFeature {
		return applyDefaults(pkg)
	}
	return pkg.Enabled.Insert(tok.Feature)
}

// applyDefaults handles a feature that lists "default". Each default entry is
// applied like any other token so directives never sit in the enabled set,
// where the next round would consume them again.
func applyDefaults(pkg *crate.Package) bool {
	changed := false
	for _, raw := range pkg.Features[crate.DefaultFeature] {
		tok := crate.ParseToken(raw)
		if tok.Kind == crate.TokenFeature && tok.Feature == crate.DefaultFeature {
			continue
		}
		if applyToken(pkg, tok) {
			changed = true
		}
	}
	return changed
}

// activate makes every edge named name non-optional and gives its target the
// features the edge asks for, since the earlier edge passes skipped it.
func activate(pkg *crate.Package, name string) bool {
	changed := false
	for _, d := range pkg.EdgesNamed(name) {
		if d.Optional {
			d.Optional = false
			changed = true
		}
		if propagate(d) {
			changed = true
		}
	}
	return changed
}

func propagate(d *crate.Dependency) bool {
	changed := false
	if d.UsesDefaultFeatures && insertDefaults(d.Package) {
		changed = true
	}
	for _, f := range d.Features {
		if d.Package.Declares(f) && d.Package.Enabled.Insert(f) {
			changed = true
		}
	}
	return changed
}

// enableDependencyFeature handles "name/feature": the feature is requested on
// every edge named name and the dependency itself is turned on. A feature of
// pkg called name is enabled too when pkg declares one.
func enableDependencyFeature(pkg *crate.Package, name, feature string) bool {
	edges := pkg.EdgesNamed(name)
	if len(edges) == 0 {
		return false
	}
	changed := false
	for _, d := range edges {
		if d.Request(feature) {
			changed = true
		}
		if d.Package.Declares(feature) && d.Package.Enabled.Insert(feature) {
			changed = true
		}
	}
	if pkg.Declares(name) && pkg.Enabled.Insert(name) {
		changed = true
	}
	if activate(pkg, name) {
		changed = true
	}
	return changed
}

// applyWeakFeatures resolves "name?/feature" tokens. The feature reaches only
// edges that are already active; the token is dropped either way.
func applyWeakFeatures(pkg *crate.Package) {
	for _, f := range pkg.Enabled.Sorted() {
		tok := crate.ParseToken(f)
		if tok.Kind != crate.TokenWeakDepFeature {
			continue
		}
		for _, d := range pkg.EdgesNamed(tok.Dep) {
			if d.Optional {
				continue
			}
			d.Request(tok.Feature)
			if d.Package.Declares(tok.Feature) {
				d.Package.Enabled.Insert(tok.Feature)
			}
		}
		pkg.Enabled.Remove(f)
	}
}
