package nix

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/matzehuels/rustnix/pkg/errors"
)

// RenderOptions controls the toolchain and compiler settings written into
// the expression.
type RenderOptions struct {
	// RustVersion selects the rust-overlay stable toolchain, e.g. "1.68.0" or
	// "latest".
	RustVersion  string
	CodegenUnits int
	RustcOpts    []string

	// CrateOverrides adds nixpkgs build inputs per crate name, on top of
	// pkgs.defaultCrateOverrides.
	CrateOverrides map[string][]string

	// Banner, when set, is written as a comment on the first line.
	Banner string
}

// DefaultRenderOptions returns the settings used when nothing is configured.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{
		RustVersion:    "1.68.0",
		CodegenUnits:   16,
		RustcOpts:      []string{"-C embed-bitcode=no"},
		CrateOverrides: map[string][]string{"opentelemetry-proto": {"protobuf"}},
	}
}

const header = `{ pkgs ? import <nixpkgs> {
  overlays = [ (import (builtins.fetchTarball "https://github.com/oxalica/rust-overlay/archive/master.tar.gz")) ];
} }:

let
  sourceFilter = name: type:
    let
      baseName = builtins.baseNameOf (builtins.toString name);
    in
      ! (
        # Filter out git
        baseName == ".gitignore"
        || (type == "directory" && baseName == ".git")

        # Filter out build results
        || (
          type == "directory" && baseName == "target"
        )

        # Filter out nix-build result symlinks
        || (
          type == "symlink" && pkgs.lib.hasPrefix "result" baseName
        )
      );
`

const toolchain = `  fetchCrate = { crateName, version, sha256 }: pkgs.fetchurl {
    # https://www.pietroalbini.org/blog/downloading-crates-io/
    # Not rate-limited, CDN URL.
    name = "${crateName}-${version}.tar.gz";
    url = "https://static.crates.io/crates/${crateName}/${crateName}-${version}.crate";
    inherit sha256;
  };
  buildRustCrate = pkgs.buildRustCrate.override {
    rustc = rustVersion;
    inherit defaultCrateOverrides fetchCrate;
  };
  preBuild = "rustc -vV";
`

// Render writes the expression for the crate graph rooted at root.
func Render(w io.Writer, root *Package, opts RenderOptions) error {
	if root == nil {
		return errors.New(errors.ErrCodeInvalidInput, "render: root package is nil")
	}
	if opts.CodegenUnits <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "codegen units must be positive, got %d", opts.CodegenUnits)
	}
	r := renderer{opts: opts, printed: map[*Package]bool{root: true}}

	var b strings.Builder
	if opts.Banner != "" {
		fmt.Fprintf(&b, "# %s\n", opts.Banner)
	}
	b.WriteString(header)
	fmt.Fprintf(&b, "  rustVersion = %s;\n", r.rustVersion())
	b.WriteString("  defaultCrateOverrides = pkgs.defaultCrateOverrides // {\n")
	for _, name := range slices.Sorted(maps.Keys(opts.CrateOverrides)) {
		fmt.Fprintf(&b, "    %s = attrs: { buildInputs = %s; };\n", name, pkgsList(opts.CrateOverrides[name]))
	}
	b.WriteString("  };\n")
	b.WriteString(toolchain)

	b.WriteString("\n  # Core\n")
	r.root(&b, root)
	b.WriteString("\n  # Dependencies\n")
	for _, d := range root.Dependencies {
		r.details(d.Package)
	}
	for _, d := range root.BuildDependencies {
		r.details(d.Package)
	}
	b.WriteString(strings.Join(r.blocks, "\n"))
	fmt.Fprintf(&b, "\nin\n%s\n", root.Name)

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteFile renders the expression to path.
func WriteFile(path string, root *Package, opts RenderOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "create %s", path)
	}
	if err := Render(f, root, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type renderer struct {
	opts    RenderOptions
	printed map[*Package]bool
	blocks  []string
}

func (r *renderer) rustVersion() string {
	if r.opts.RustVersion == "" || r.opts.RustVersion == "latest" {
		return "pkgs.rust-bin.stable.latest.default"
	}
	return fmt.Sprintf("pkgs.rust-bin.stable.%s.default", quote(r.opts.RustVersion))
}

func (r *renderer) root(b *strings.Builder, p *Package) {
	fmt.Fprintf(b, "  %s = buildRustCrate rec {\n", p.Name)
	fmt.Fprintf(b, "    crateName = %s;%s\n", quote(p.Name), optional("libName", p.LibName))
	fmt.Fprintf(b, "    version = %s;\n\n", quote(p.Version))
	fmt.Fprintf(b, "    %s%s%s%s\n\n", source(p), optional("libPath", p.LibPath), optional("build", p.BuildPath), procMacro(p))

	ids := make([]string, len(p.Dependencies))
	for i, d := range p.Dependencies {
		ids[i] = d.Package.Identifier()
	}
	fmt.Fprintf(b, "    dependencies = [\n      %s\n    ];", strings.Join(ids, "\n      "))
	b.WriteString(identifiers("buildDependencies", p.BuildDependencies))
	b.WriteString(renames(p))
	b.WriteString(features(p))
	fmt.Fprintf(b, "\n    edition = %s;\n", quote(p.Edition))
	r.common(b)
	b.WriteString("  };\n")
}

// details appends the block of p and then of its dependencies, each package
// once.
func (r *renderer) details(p *Package) {
	if r.printed[p] {
		return
	}
	r.printed[p] = true

	var b strings.Builder
	fmt.Fprintf(&b, "  %s = buildRustCrate rec {\n", p.Identifier())
	fmt.Fprintf(&b, "    crateName = %s;%s\n", quote(p.Name), optional("libName", p.LibName))
	fmt.Fprintf(&b, "    version = %s;\n\n", quote(p.Version))
	fmt.Fprintf(&b, "    %s%s%s%s", source(p), optional("libPath", p.LibPath), optional("build", p.BuildPath), procMacro(p))
	b.WriteString(identifiers("dependencies", p.Dependencies))
	b.WriteString(identifiers("buildDependencies", p.BuildDependencies))
	b.WriteString(renames(p))
	b.WriteString(features(p))
	fmt.Fprintf(&b, "\n    edition = %s;\n", quote(p.Edition))
	b.WriteString("    crateBin = [];\n")
	r.common(&b)
	b.WriteString("  };")
	r.blocks = append(r.blocks, b.String())

	for _, d := range p.Dependencies {
		r.details(d.Package)
	}
	for _, d := range p.BuildDependencies {
		r.details(d.Package)
	}
}

func (r *renderer) common(b *strings.Builder) {
	fmt.Fprintf(b, "    codegenUnits = %d;\n", r.opts.CodegenUnits)
	fmt.Fprintf(b, "    extraRustcOpts = %s;\n", stringList(r.opts.RustcOpts))
	b.WriteString("    inherit preBuild;\n")
}

func source(p *Package) string {
	if p.Source.IsLocal() {
		return fmt.Sprintf("src = pkgs.lib.cleanSourceWith { filter = sourceFilter;  src = %s; };", pathLiteral(p.Source.Path))
	}
	return fmt.Sprintf("sha256 = %s;", quote(p.Source.Checksum))
}

func optional(attr, value string) string {
	if value == "" {
		return ""
	}
	return fmt.Sprintf("\n    %s = %s;", attr, quote(value))
}

func procMacro(p *Package) string {
	if !p.ProcMacro {
		return ""
	}
	return "\n    procMacro = true;"
}

func identifiers(attr string, deps []Dependency) string {
	if len(deps) == 0 {
		return ""
	}
	ids := make([]string, len(deps))
	for i, d := range deps {
		ids[i] = d.Package.Identifier()
	}
	return fmt.Sprintf("\n    %s = [%s];", attr, strings.Join(ids, " "))
}

func renames(p *Package) string {
	var entries []string
	for _, d := range slices.Concat(p.Dependencies, p.BuildDependencies) {
		if d.Rename == "" {
			continue
		}
		entries = append(entries, fmt.Sprintf("%s = [{ rename = %s; version = %s; }];",
			quote(d.Package.Name), quote(d.Rename), quote(d.Package.Version)))
	}
	if len(entries) == 0 {
		return ""
	}
	return fmt.Sprintf("\n    crateRenames = {%s};", strings.Join(entries, " "))
}

func features(p *Package) string {
	if len(p.Features) == 0 {
		return ""
	}
	quoted := make([]string, len(p.Features))
	for i, f := range p.Features {
		quoted[i] = quote(f)
	}
	return fmt.Sprintf("\n    features = [%s];", strings.Join(quoted, " "))
}

func stringList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = quote(s)
	}
	return "[ " + strings.Join(quoted, " ") + " ]"
}

func pkgsList(inputs []string) string {
	if len(inputs) == 0 {
		return "[]"
	}
	return "[ pkgs." + strings.Join(inputs, " pkgs.") + " ]"
}

var nixEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "${", `\${`)

// quote returns s as a Nix string literal.
func quote(s string) string {
	return `"` + nixEscaper.Replace(s) + `"`
}

// pathLiteral returns an absolute path as a Nix path. Paths that the path
// literal syntax cannot express are appended to the root path instead.
func pathLiteral(path string) string {
	for _, r := range path {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("/._-+", r)) {
			return "(/. + " + quote(path) + ")"
		}
	}
	if !strings.HasPrefix(path, "/") {
		return "(/. + " + quote("/"+path) + ")"
	}
	return path
}
