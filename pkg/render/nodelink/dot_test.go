package nodelink

import (
	"strings"
	"testing"

	"github.com/matzehuels/rustnix/pkg/crate"
	"github.com/matzehuels/rustnix/pkg/nix"
)

func sampleGraph() *nix.Package {
	libc := &nix.Package{Name: "libc", Version: "0.2.150", Source: crate.RegistrySource("sha"), Features: []string{"std"}}
	derive := &nix.Package{Name: "serde_derive", Version: "1.0.190", Source: crate.RegistrySource("sha"), ProcMacro: true}
	cc := &nix.Package{Name: "cc", Version: "1.0.83", Source: crate.RegistrySource("sha")}
	return &nix.Package{
		Name: "app", Version: "0.1.0", Source: crate.LocalSource("/work/app"),
		Dependencies: []nix.Dependency{
			{Package: libc},
			{Package: derive, Rename: "derive"},
		},
		BuildDependencies: []nix.Dependency{{Package: cc}},
	}
}

func TestToDOT(t *testing.T) {
	dot := ToDOT(sampleGraph(), Options{})

	for _, want := range []string{
		`"app_0_1_0" [label="app 0.1.0", penwidth=3, fillcolor=lightyellow];`,
		`"libc_0_2_150" [label="libc 0.2.150"];`,
		`"app_0_1_0" -> "libc_0_2_150";`,
		`"app_0_1_0" -> "serde_derive_1_0_190" [label="derive"];`,
		`"app_0_1_0" -> "cc_1_0_83" [style=dashed];`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %s\n%s", want, dot)
		}
	}
	if !strings.HasPrefix(dot, "digraph G {") || !strings.HasSuffix(dot, "}\n") {
		t.Error("DOT is not a complete digraph")
	}
}

func TestToDOTDetailed(t *testing.T) {
	dot := ToDOT(sampleGraph(), Options{Detailed: true})
	if !strings.Contains(dot, `label="libc 0.2.150\nfeatures: std"`) {
		t.Errorf("detailed label missing features:\n%s", dot)
	}
	if !strings.Contains(dot, `label="serde_derive 1.0.190\nproc-macro"`) {
		t.Errorf("detailed label missing proc-macro marker:\n%s", dot)
	}
}

func TestToDOTDeterministic(t *testing.T) {
	if ToDOT(sampleGraph(), Options{}) != ToDOT(sampleGraph(), Options{}) {
		t.Error("ToDOT output differs between runs")
	}
}

func TestNormalizeViewBox(t *testing.T) {
	in := []byte(`<svg width="62pt" height="116pt" viewBox="0.00 0.00 62.00 116.00" xmlns="http://www.w3.org/2000/svg"><g/></svg>`)
	out := string(normalizeViewBox(in))
	if !strings.Contains(out, `viewBox="0 0 62.00 116.00" width="62" height="116"`) {
		t.Errorf("normalizeViewBox() = %s", out)
	}
	if string(normalizeViewBox([]byte("<svg/>"))) != "<svg/>" {
		t.Error("svg without viewBox should be unchanged")
	}
}
