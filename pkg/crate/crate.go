package crate

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
)

// DefaultFeature is the name of the feature enabled when a dependent uses
// default features.
const DefaultFeature = "default"

// ID identifies a package by name and exact version.
type ID struct {
	Name    string
	Version string
}

// String returns the ID in Cargo's "name vX.Y.Z" form.
func (id ID) String() string {
	return fmt.Sprintf("%s v%s", id.Name, id.Version)
}

// Compare orders IDs by name, then version string.
func (id ID) Compare(other ID) int {
	if c := cmp.Compare(id.Name, other.Name); c != 0 {
		return c
	}
	return cmp.Compare(id.Version, other.Version)
}

// SourceKind distinguishes where a package's sources come from.
type SourceKind int

const (
	// SourceLocal is a package on the local filesystem (workspace members, path deps).
	SourceLocal SourceKind = iota
	// SourceRegistry is a package downloaded from crates.io and verified by checksum.
	SourceRegistry
)

// Source locates a package's sources.
type Source struct {
	Kind     SourceKind
	Path     string // directory, for SourceLocal
	Checksum string // sha256, for SourceRegistry
}

// LocalSource returns a source for a package living in dir.
func LocalSource(dir string) Source {
	return Source{Kind: SourceLocal, Path: dir}
}

// RegistrySource returns a source for a registry package with the given checksum.
func RegistrySource(checksum string) Source {
	return Source{Kind: SourceRegistry, Checksum: checksum}
}

// IsLocal reports whether the package is built from a local directory.
func (s Source) IsLocal() bool { return s.Kind == SourceLocal }

// String renders the source for logs.
func (s Source) String() string {
	if s.IsLocal() {
		return "path+" + s.Path
	}
	return "registry+sha256:" + s.Checksum
}

// Package is a node in the dependency graph.
//
// The zero value is usable but has no identity; packages normally come from
// [Graph.Intern] so that every edge to the same ID shares one instance.
type Package struct {
	ID ID

	// Features is the declared feature table: feature name -> ordered tokens.
	Features map[string][]string
	// Enabled is the set of features turned on by resolution.
	Enabled FeatureSet

	Dependencies      []*Dependency
	BuildDependencies []*Dependency

	Source    Source
	LibName   string
	LibPath   string
	BuildPath string
	Edition   string
	ProcMacro bool
}

// NewPackage returns a package with the given identity and no features.
func NewPackage(name, version string) *Package {
	return &Package{
		ID:       ID{Name: name, Version: version},
		Features: map[string][]string{},
		Enabled:  FeatureSet{},
	}
}

// Declares reports whether feature is a key of the declared feature table.
func (p *Package) Declares(feature string) bool {
	_, ok := p.Features[feature]
	return ok
}

// Edges returns the normal dependencies followed by the build dependencies.
func (p *Package) Edges() []*Dependency {
	edges := make([]*Dependency, 0, len(p.Dependencies)+len(p.BuildDependencies))
	edges = append(edges, p.Dependencies...)
	return append(edges, p.BuildDependencies...)
}

// EdgesNamed returns every edge, normal or build, whose local name is name.
func (p *Package) EdgesNamed(name string) []*Dependency {
	var out []*Dependency
	for _, d := range p.Edges() {
		if d.Name == name {
			out = append(out, d)
		}
	}
	return out
}

// AddDependency appends a normal dependency edge.
func (p *Package) AddDependency(d *Dependency) { p.Dependencies = append(p.Dependencies, d) }

// AddBuildDependency appends a build dependency edge.
func (p *Package) AddBuildDependency(d *Dependency) {
	p.BuildDependencies = append(p.BuildDependencies, d)
}

// DeclaredFeatures returns the declared feature names in sorted order.
func (p *Package) DeclaredFeatures() []string {
	return slices.Sorted(maps.Keys(p.Features))
}

// String returns the package identity.
func (p *Package) String() string { return p.ID.String() }

// Dependency is a directed edge from a dependent to a shared target package.
type Dependency struct {
	// Name is the name the dependent's feature table uses for this edge. It
	// differs from Package.ID.Name when the dependency is renamed.
	Name    string
	Package *Package

	Optional            bool
	UsesDefaultFeatures bool
	// Features lists the features requested on the target. Resolution may
	// append to it.
	Features []string
}

// Request appends feature to the requested features unless already present.
// It reports whether the list changed.
func (d *Dependency) Request(feature string) bool {
	if slices.Contains(d.Features, feature) {
		return false
	}
	d.Features = append(d.Features, feature)
	return true
}

// Renamed reports whether the edge name differs from the target package name.
func (d *Dependency) Renamed() bool {
	return d.Package != nil && d.Name != d.Package.ID.Name
}

// FeatureSet is an unordered set of feature tokens.
type FeatureSet map[string]struct{}

// NewFeatureSet returns a set holding features.
func NewFeatureSet(features ...string) FeatureSet {
	s := make(FeatureSet, len(features))
	for _, f := range features {
		s[f] = struct{}{}
	}
	return s
}

// Insert adds f and reports whether it was absent.
func (s *FeatureSet) Insert(f string) bool {
	if *s == nil {
		*s = FeatureSet{}
	}
	if _, ok := (*s)[f]; ok {
		return false
	}
	(*s)[f] = struct{}{}
	return true
}

// Remove deletes f and reports whether it was present.
func (s FeatureSet) Remove(f string) bool {
	if _, ok := s[f]; !ok {
		return false
	}
	delete(s, f)
	return true
}

// Has reports whether f is in the set.
func (s FeatureSet) Has(f string) bool {
	_, ok := s[f]
	return ok
}

// Sorted returns the members in lexical order.
func (s FeatureSet) Sorted() []string {
	return slices.Sorted(maps.Keys(s))
}
