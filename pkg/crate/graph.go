package crate

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

var (
	// ErrInvalidID is returned by [Graph.Intern] when the name or version is empty.
	ErrInvalidID = errors.New("package ID must have a name and version")

	// ErrUnknownPackage is returned by [Graph.SetRoot] when the ID was never interned.
	ErrUnknownPackage = errors.New("unknown package")

	// ErrNoRoot is returned by [Graph.Validate] when no root has been set.
	ErrNoRoot = errors.New("graph has no root package")

	// ErrDanglingEdge is returned by [Graph.Validate] when an edge points at a
	// package the graph does not own.
	ErrDanglingEdge = errors.New("dependency points outside the graph")
)

// Graph owns the packages of one dependency graph and guarantees a single
// shared [Package] per [ID].
//
// The zero value is not usable; call [New]. A Graph is not safe for
// concurrent use.
type Graph struct {
	packages map[ID]*Package
	root     *Package
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{packages: make(map[ID]*Package)}
}

// Intern returns the package for id, creating it if needed. The boolean is
// true when the package was created by this call.
func (g *Graph) Intern(id ID) (*Package, bool, error) {
	if id.Name == "" || id.Version == "" {
		return nil, false, ErrInvalidID
	}
	if p, ok := g.packages[id]; ok {
		return p, false, nil
	}
	p := NewPackage(id.Name, id.Version)
	g.packages[id] = p
	return p, true, nil
}

// Lookup returns the package for id.
func (g *Graph) Lookup(id ID) (*Package, bool) {
	p, ok := g.packages[id]
	return p, ok
}

// SetRoot marks an interned package as the graph root.
func (g *Graph) SetRoot(id ID) error {
	p, ok := g.packages[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPackage, id)
	}
	g.root = p
	return nil
}

// Root returns the root package, or nil if none was set.
func (g *Graph) Root() *Package { return g.root }

// Len returns the number of packages.
func (g *Graph) Len() int { return len(g.packages) }

// Packages returns all packages ordered by ID.
func (g *Graph) Packages() []*Package {
	ids := slices.SortedFunc(maps.Keys(g.packages), ID.Compare)
	out := make([]*Package, len(ids))
	for i, id := range ids {
		out[i] = g.packages[id]
	}
	return out
}

// EdgeCount returns the number of edges, normal and build, optional or not.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, p := range g.packages {
		n += len(p.Dependencies) + len(p.BuildDependencies)
	}
	return n
}

// Active returns the packages reachable from the root over non-optional
// edges, ordered by ID. After resolution these are the packages that get built.
func (g *Graph) Active() []*Package {
	if g.root == nil {
		return nil
	}
	seen := map[ID]*Package{}
	stack := []*Package{g.root}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = p
		for _, d := range p.Edges() {
			if !d.Optional {
				stack = append(stack, d.Package)
			}
		}
	}
	ids := slices.SortedFunc(maps.Keys(seen), ID.Compare)
	out := make([]*Package, len(ids))
	for i, id := range ids {
		out[i] = seen[id]
	}
	return out
}

// Validate checks that a root is set and every edge targets a package owned
// by this graph, which is what keeps node identity shared.
func (g *Graph) Validate() error {
	if g.root == nil {
		return ErrNoRoot
	}
	for _, p := range g.Packages() {
		for _, d := range p.Edges() {
			if d.Package == nil || g.packages[d.Package.ID] != d.Package {
				return fmt.Errorf("%w: %s -> %s", ErrDanglingEdge, p.ID, d.Name)
			}
		}
	}
	return nil
}
