package nix

import (
	"strings"

	"github.com/matzehuels/rustnix/pkg/crate"
)

// Package is one buildRustCrate derivation.
type Package struct {
	Name    string
	Version string
	Source  crate.Source

	// LibName, LibPath and BuildPath are empty when they match cargo's
	// defaults (the package name, src/lib.rs and build.rs).
	LibName   string
	LibPath   string
	BuildPath string
	ProcMacro bool

	// Features holds the enabled features, sorted.
	Features []string

	Dependencies      []Dependency
	BuildDependencies []Dependency
	Edition           string
}

// Dependency is an active edge. Rename is set when the dependent refers to
// the crate under another name.
type Dependency struct {
	Package *Package
	Rename  string
}

// Identifier is the Nix binding name of the derivation, unique per name and
// version.
func (p *Package) Identifier() string {
	return p.Name + "_" + strings.NewReplacer(".", "_", "+", "_").Replace(p.Version)
}

// Packages returns every distinct package reachable from p, p first, in the
// depth-first order the renderer emits them: normal dependencies before build
// dependencies.
func (p *Package) Packages() []*Package {
	var out []*Package
	seen := make(map[*Package]bool)
	var visit func(*Package)
	visit = func(q *Package) {
		if seen[q] {
			return
		}
		seen[q] = true
		out = append(out, q)
		for _, d := range q.Dependencies {
			visit(d.Package)
		}
		for _, d := range q.BuildDependencies {
			visit(d.Package)
		}
	}
	visit(p)
	return out
}

// Convert builds the output model for the graph rooted at root. Packages are
// shared by (name, version), and optional edges that resolution left off are
// dropped along with anything only they reached.
func Convert(root *crate.Package) *Package {
	c := converter{done: make(map[crate.ID]*Package)}
	return c.convert(root)
}

type converter struct {
	done map[crate.ID]*Package
}

func (c *converter) convert(src *crate.Package) *Package {
	if p, ok := c.done[src.ID]; ok {
		return p
	}
	p := &Package{
		Name:      src.ID.Name,
		Version:   src.ID.Version,
		Source:    src.Source,
		LibName:   src.LibName,
		LibPath:   src.LibPath,
		BuildPath: src.BuildPath,
		ProcMacro: src.ProcMacro,
		Features:  src.Enabled.Sorted(),
		Edition:   src.Edition,
	}
	if p.LibName == p.Name {
		p.LibName = ""
	}
	if p.LibPath == "src/lib.rs" {
		p.LibPath = ""
	}
	if p.BuildPath == "build.rs" {
		p.BuildPath = ""
	}
	c.done[src.ID] = p

	p.Dependencies = c.edges(src.Dependencies)
	p.BuildDependencies = c.edges(src.BuildDependencies)
	return p
}

func (c *converter) edges(deps []*crate.Dependency) []Dependency {
	var out []Dependency
	for _, d := range deps {
		if d.Optional {
			continue
		}
		dep := Dependency{Package: c.convert(d.Package)}
		if d.Renamed() {
			dep.Rename = d.Name
		}
		out = append(out, dep)
	}
	return out
}
