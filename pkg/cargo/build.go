package cargo

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/rustnix/pkg/crate"
	"github.com/matzehuels/rustnix/pkg/errors"
)

// Target kinds that provide the library of a package.
var libKinds = []string{"lib", "rlib", "dylib", "cdylib", "staticlib", "proc-macro"}

// NeedPackageError is returned by [Build] when the workspace is virtual and no
// member was selected.
type NeedPackageError struct {
	Available []string
}

func (e *NeedPackageError) Error() string {
	return fmt.Sprintf("workspace has no root package; select one of: %s", strings.Join(e.Available, ", "))
}

// BuildOptions controls [Build].
type BuildOptions struct {
	// Package selects a workspace member as root. Empty uses the package
	// cargo resolved as root.
	Package string

	Logger *log.Logger
}

// Build creates the package graph reachable from the selected root. Only
// resolved packages appear, each exactly once.
func Build(meta *Metadata, checksums Checksums, platform Platform, opts BuildOptions) (*crate.Graph, error) {
	if meta == nil || meta.Resolve == nil {
		return nil, errors.New(errors.ErrCodeInvalidMetadata, "cargo metadata has no resolve section")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	rootID, err := selectRoot(meta, opts.Package)
	if err != nil {
		return nil, err
	}

	b := &builder{
		packages:  make(map[string]*MetadataPackage, len(meta.Packages)),
		nodes:     make(map[string]*Node, len(meta.Resolve.Nodes)),
		checksums: checksums,
		platform:  platform,
		graph:     crate.New(),
		built:     make(map[string]*crate.Package),
		logger:    logger,
	}
	for i := range meta.Packages {
		b.packages[meta.Packages[i].ID] = &meta.Packages[i]
	}
	for i := range meta.Resolve.Nodes {
		b.nodes[meta.Resolve.Nodes[i].ID] = &meta.Resolve.Nodes[i]
	}

	root, err := b.build(rootID)
	if err != nil {
		return nil, err
	}
	if err := b.graph.SetRoot(root.ID); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "set root")
	}
	return b.graph, nil
}

func selectRoot(meta *Metadata, name string) (string, error) {
	if name != "" {
		for _, p := range meta.WorkspacePackages() {
			if p.Name == name {
				return p.ID, nil
			}
		}
		return "", errors.New(errors.ErrCodePackageNotFound,
			"no workspace member named %q (have: %s)", name, strings.Join(meta.MemberNames(), ", "))
	}
	if meta.Resolve.Root != "" {
		return meta.Resolve.Root, nil
	}
	return "", errors.Wrap(errors.ErrCodePackageRequired,
		&NeedPackageError{Available: meta.MemberNames()}, "select a package with --package")
}

type builder struct {
	packages  map[string]*MetadataPackage
	nodes     map[string]*Node
	checksums Checksums
	platform  Platform
	graph     *crate.Graph
	built     map[string]*crate.Package
	logger    *log.Logger
}

// build returns the package for a cargo package ID, creating it and its
// dependencies on first use. A package is recorded before its dependencies
// are built, so cycles through dev dependencies terminate.
func (b *builder) build(id string) (*crate.Package, error) {
	if p, ok := b.built[id]; ok {
		return p, nil
	}
	meta, ok := b.packages[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidMetadata, "package %s is resolved but not listed", id)
	}
	node, ok := b.nodes[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidMetadata, "package %s has no resolve node", id)
	}

	pkg, _, err := b.graph.Intern(crate.ID{Name: meta.Name, Version: meta.Version})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidMetadata, err, "package %s", id)
	}
	b.built[id] = pkg
	if err := b.describe(pkg, meta); err != nil {
		return nil, err
	}

	for _, depID := range node.Dependencies {
		target, ok := b.packages[depID]
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidMetadata, "dependency %s of %s is not listed", depID, id)
		}
		for _, kind := range []string{KindNormal, KindBuild} {
			dep := b.edge(meta, target, kind)
			if dep == nil {
				continue
			}
			if dep.Package, err = b.build(depID); err != nil {
				return nil, err
			}
			if kind == KindBuild {
				pkg.AddBuildDependency(dep)
			} else {
				pkg.AddDependency(dep)
			}
		}
	}
	b.logger.Debug("built package", "package", pkg.ID,
		"dependencies", len(pkg.Dependencies), "build_dependencies", len(pkg.BuildDependencies))
	return pkg, nil
}

// describe copies everything except edges from the metadata entry.
func (b *builder) describe(pkg *crate.Package, meta *MetadataPackage) error {
	dir := filepath.Dir(meta.ManifestPath)

	pkg.Edition = meta.Edition
	pkg.Features = make(map[string][]string, len(meta.Features))
	for name, tokens := range meta.Features {
		pkg.Features[name] = slices.Clone(tokens)
	}

	for _, t := range meta.Targets {
		switch {
		case pkg.LibName == "" && t.Is(libKinds...):
			rel, err := relPath(dir, t.SrcPath)
			if err != nil {
				return errors.Wrap(errors.ErrCodeInvalidMetadata, err, "lib target of %s", pkg.ID)
			}
			pkg.LibName, pkg.LibPath = t.Name, rel
		case pkg.BuildPath == "" && t.Is("custom-build"):
			rel, err := relPath(dir, t.SrcPath)
			if err != nil {
				return errors.Wrap(errors.ErrCodeInvalidMetadata, err, "build script of %s", pkg.ID)
			}
			pkg.BuildPath = rel
		}
		if t.Is("proc-macro") {
			pkg.ProcMacro = true
		}
	}

	if meta.Source == "" {
		pkg.Source = crate.LocalSource(dir)
		return nil
	}
	sum, ok := b.checksums[pkg.ID]
	if !ok {
		return errors.New(errors.ErrCodeMissingChecksum,
			"no checksum for %s in Cargo.lock (source %s)", pkg.ID, meta.Source)
	}
	pkg.Source = crate.RegistrySource(sum)
	return nil
}

func relPath(dir, path string) (string, error) {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%s is outside %s", path, dir)
	}
	return filepath.ToSlash(rel), nil
}

// edge merges every declaration of target by from, of the given kind, that
// applies to the resolved version and the platform. It returns nil when no
// declaration applies.
func (b *builder) edge(from, target *MetadataPackage, kind string) *crate.Dependency {
	var dep *crate.Dependency
	for _, d := range from.Dependencies {
		if d.Kind != kind || d.Name != target.Name {
			continue
		}
		if !reqMatches(d.Req, target.Version) {
			continue
		}
		if d.Target != "" && !b.platform.Matches(d.Target) {
			continue
		}
		if dep == nil {
			dep = &crate.Dependency{Name: d.Name, Optional: true}
			if d.Rename != "" {
				dep.Name = d.Rename
			}
		} else if dep.Name == target.Name && d.Rename != "" {
			dep.Name = d.Rename
		}
		if !d.Optional {
			dep.Optional = false
		}
		if d.UsesDefaultFeatures {
			dep.UsesDefaultFeatures = true
		}
		for _, f := range d.Features {
			dep.Request(f)
		}
	}
	return dep
}

// reqMatches reports whether version satisfies a cargo version requirement.
// Cargo treats a bare version as a caret requirement; Masterminds treats it
// as exact, so bare parts get a caret. Requirements or versions that do not
// parse are assumed to match, since cargo already resolved them.
func reqMatches(req, version string) bool {
	if req == "" || req == "*" {
		return true
	}
	parts := strings.Split(req, ",")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" && part[0] >= '0' && part[0] <= '9' {
			part = "^" + part
		}
		parts[i] = part
	}
	c, err := semver.NewConstraint(strings.Join(parts, ", "))
	if err != nil {
		return true
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return true
	}
	return c.Check(v)
}
