package cargo

import (
	"encoding/json"
	"io"
	"slices"

	"github.com/matzehuels/rustnix/pkg/errors"
)

// Dependency kinds as printed by cargo. A normal dependency has no kind.
const (
	KindNormal = ""
	KindBuild  = "build"
	KindDev    = "dev"
)

// Metadata is the subset of `cargo metadata --format-version 1` output that
// graph building needs.
type Metadata struct {
	Packages         []MetadataPackage `json:"packages"`
	WorkspaceMembers []string          `json:"workspace_members"`
	Resolve          *Resolve          `json:"resolve"`
	WorkspaceRoot    string            `json:"workspace_root"`
}

// MetadataPackage is one package known to cargo, resolved or not.
type MetadataPackage struct {
	Name         string              `json:"name"`
	Version      string              `json:"version"`
	ID           string              `json:"id"`
	Source       string              `json:"source"` // empty for path dependencies
	ManifestPath string              `json:"manifest_path"`
	Edition      string              `json:"edition"`
	Features     map[string][]string `json:"features"`
	Dependencies []DependencyDecl    `json:"dependencies"`
	Targets      []Target            `json:"targets"`
}

// DependencyDecl is a dependency as written in a manifest. The same crate can
// be declared several times, e.g. once per target platform.
type DependencyDecl struct {
	Name                string   `json:"name"`
	Req                 string   `json:"req"`
	Kind                string   `json:"kind"`
	Rename              string   `json:"rename"`
	Optional            bool     `json:"optional"`
	UsesDefaultFeatures bool     `json:"uses_default_features"`
	Features            []string `json:"features"`
	Target              string   `json:"target"`
}

// Target is a compilation target of a package (lib, bin, build script, ...).
type Target struct {
	Name    string   `json:"name"`
	Kind    []string `json:"kind"`
	SrcPath string   `json:"src_path"`
}

// Is reports whether the target has any of the given kinds.
func (t Target) Is(kinds ...string) bool {
	for _, k := range t.Kind {
		if slices.Contains(kinds, k) {
			return true
		}
	}
	return false
}

// Resolve is the dependency graph cargo resolved for the workspace.
type Resolve struct {
	Nodes []Node `json:"nodes"`
	Root  string `json:"root"` // empty for a virtual workspace
}

// Node lists the resolved dependencies of one package, by package ID.
type Node struct {
	ID           string   `json:"id"`
	Dependencies []string `json:"dependencies"`
}

// ReadMetadata decodes cargo metadata JSON. A document without a resolve
// section (cargo metadata --no-deps) is rejected.
func ReadMetadata(r io.Reader) (*Metadata, error) {
	var m Metadata
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidMetadata, err, "decode cargo metadata")
	}
	if m.Resolve == nil {
		return nil, errors.New(errors.ErrCodeInvalidMetadata, "cargo metadata has no resolve section")
	}
	return &m, nil
}

// WorkspacePackages returns the workspace members in the order cargo lists them.
func (m *Metadata) WorkspacePackages() []*MetadataPackage {
	byID := make(map[string]*MetadataPackage, len(m.Packages))
	for i := range m.Packages {
		byID[m.Packages[i].ID] = &m.Packages[i]
	}
	var out []*MetadataPackage
	for _, id := range m.WorkspaceMembers {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// MemberNames returns the names of the workspace members.
func (m *Metadata) MemberNames() []string {
	var names []string
	for _, p := range m.WorkspacePackages() {
		names = append(names, p.Name)
	}
	return names
}
