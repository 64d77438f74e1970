package features

import (
	"context"
	stderrors "errors"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/rustnix/pkg/crate"
	"github.com/matzehuels/rustnix/pkg/errors"
	"github.com/matzehuels/rustnix/pkg/observability"
)

// newPkg builds a package at version 0.1.0 with the given feature table.
func newPkg(name string, features map[string][]string) *crate.Package {
	p := crate.NewPackage(name, "0.1.0")
	for k, v := range features {
		p.Features[k] = v
	}
	return p
}

func edge(name string, target *crate.Package, optional, defaults bool, features ...string) *crate.Dependency {
	return &crate.Dependency{
		Name:                name,
		Package:             target,
		Optional:            optional,
		UsesDefaultFeatures: defaults,
		Features:            features,
	}
}

func resolve(t *testing.T, root *crate.Package) {
	t.Helper()
	if err := Resolve(root); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
}

func assertEnabled(t *testing.T, p *crate.Package, want ...string) {
	t.Helper()
	if want == nil {
		want = []string{}
	}
	if diff := cmp.Diff(want, p.Enabled.Sorted()); diff != "" {
		t.Errorf("%s enabled features mismatch (-want +got):\n%s", p.ID.Name, diff)
	}
}

func assertEdge(t *testing.T, d *crate.Dependency, optional bool, features ...string) {
	t.Helper()
	if d.Optional != optional {
		t.Errorf("edge %s optional = %v, want %v", d.Name, d.Optional, optional)
	}
	if features == nil {
		features = []string{}
	}
	got := d.Features
	if got == nil {
		got = []string{}
	}
	if diff := cmp.Diff(features, got); diff != "" {
		t.Errorf("edge %s requested features mismatch (-want +got):\n%s", d.Name, diff)
	}
}

func TestNoDefaults(t *testing.T) {
	child := newPkg("child", map[string][]string{"default": {"one", "two"}, "one": nil, "two": nil})
	parent := newPkg("parent", nil)
	parent.AddDependency(edge("child", child, false, false, "one"))

	resolve(t, parent)

	assertEnabled(t, child, "one")
	assertEnabled(t, parent)
}

func TestDefaults(t *testing.T) {
	child := newPkg("child", map[string][]string{"default": {"one", "two"}, "one": nil, "two": nil})
	parent := newPkg("parent", nil)
	parent.AddDependency(edge("child", child, false, true))

	resolve(t, parent)

	assertEnabled(t, child, "one", "two")
}

func TestDefaultsChain(t *testing.T) {
	child := newPkg("child", map[string][]string{"default": {"one"}, "one": {"two"}, "two": nil})
	parent := newPkg("parent", nil)
	parent.AddDependency(edge("child", child, false, true))

	resolve(t, parent)

	assertEnabled(t, child, "one", "two")
}

func TestOptionalNoDefaults(t *testing.T) {
	child := newPkg("child", map[string][]string{"default": {"one", "two"}, "one": nil, "two": nil})
	build := newPkg("build", map[string][]string{"default": {"hi"}, "hi": nil})
	parent := newPkg("parent", nil)
	parent.AddDependency(edge("child", child, true, true))
	parent.AddBuildDependency(edge("build", build, true, true))

	resolve(t, parent)

	assertEnabled(t, child)
	assertEnabled(t, build)
	assertEdge(t, parent.Dependencies[0], true)
	assertEdge(t, parent.BuildDependencies[0], true)
}

func TestOptionalFeatures(t *testing.T) {
	child := newPkg("child", map[string][]string{"one": nil, "two": nil})
	build := newPkg("build", map[string][]string{"hi": nil})
	parent := newPkg("parent", nil)
	parent.AddDependency(edge("child", child, true, true, "one"))
	parent.AddBuildDependency(edge("build", build, true, true, "hi"))

	resolve(t, parent)

	assertEnabled(t, child)
	assertEnabled(t, build)
	assertEdge(t, parent.Dependencies[0], true, "one")
	assertEdge(t, parent.BuildDependencies[0], true, "hi")
}

func TestChain(t *testing.T) {
	child := newPkg("child", map[string][]string{"one": {"two"}, "two": {"three"}, "three": nil})
	build := newPkg("build", map[string][]string{"hi": {"world"}, "world": nil})
	parent := newPkg("parent", nil)
	parent.AddDependency(edge("child", child, false, true, "one"))
	parent.AddBuildDependency(edge("build", build, false, true, "hi"))

	resolve(t, parent)

	assertEnabled(t, child, "one", "three", "two")
	assertEnabled(t, build, "hi", "world")
}

func TestFeatureDependency(t *testing.T) {
	optional := newPkg("optional", map[string][]string{"feature": nil})
	optionalBuild := crate.NewPackage("optional", "0.2.0")
	optionalBuild.Features["build_feature"] = nil

	child := newPkg("child", map[string][]string{"one": {"optional"}, "optional": {"dep:optional"}})
	child.AddDependency(edge("optional", optional, true, true, "feature"))
	build := newPkg("build", map[string][]string{"hi": {"dep:optional"}})
	build.AddDependency(edge("optional", optionalBuild, true, true, "build_feature"))

	parent := newPkg("parent", nil)
	parent.AddDependency(edge("child", child, false, true, "one"))
	parent.AddBuildDependency(edge("build", build, false, true, "hi"))

	resolve(t, parent)

	assertEdge(t, child.Dependencies[0], false, "feature")
	assertEnabled(t, optional, "feature")
	assertEnabled(t, child, "one", "optional")
	assertEdge(t, build.Dependencies[0], false, "build_feature")
	assertEnabled(t, optionalBuild, "build_feature")
	assertEnabled(t, build, "hi")
}

func TestFeatureRenamedDependency(t *testing.T) {
	rename := newPkg("rename", nil)
	buildRename := newPkg("build_rename", nil)
	child := newPkg("child", map[string][]string{
		"new_name":       {"dep:new_name"},
		"new_build_name": {"dep:new_build_name"},
	})
	child.AddDependency(edge("new_name", rename, true, true))
	child.AddBuildDependency(edge("new_build_name", buildRename, true, true))
	parent := newPkg("parent", nil)
	parent.AddDependency(edge("child", child, false, true, "new_name", "new_build_name"))

	resolve(t, parent)

	assertEdge(t, child.Dependencies[0], false)
	assertEdge(t, child.BuildDependencies[0], false)
	assertEnabled(t, child, "new_build_name", "new_name")
}

func TestFeatureDependencyFeatures(t *testing.T) {
	optional := newPkg("optional", map[string][]string{"feature": nil})
	buildOptional := newPkg("build_optional", map[string][]string{"build_feature": nil})
	child := newPkg("child", map[string][]string{
		"one":            {"optional/feature", "build_optional/build_feature"},
		"optional":       {"dep:optional"},
		"build_optional": {"dep:build_optional"},
	})
	child.AddDependency(edge("optional", optional, true, true))
	child.AddBuildDependency(edge("build_optional", buildOptional, true, true))
	parent := newPkg("parent", nil)
	parent.AddDependency(edge("child", child, false, true, "one"))

	resolve(t, parent)

	assertEdge(t, child.Dependencies[0], false, "feature")
	assertEnabled(t, optional, "feature")
	assertEdge(t, child.BuildDependencies[0], false, "build_feature")
	assertEnabled(t, buildOptional, "build_feature")
	assertEnabled(t, child, "build_optional", "one", "optional")
}

func TestFeatureDependencyDefaults(t *testing.T) {
	optional := newPkg("optional", map[string][]string{"default": {"std"}, "std": nil})
	buildOptional := newPkg("build_optional", map[string][]string{"default": {"build"}, "build": nil})
	child := newPkg("child", map[string][]string{
		"one":            {"optional", "build_optional"},
		"optional":       {"dep:optional"},
		"build_optional": {"dep:build_optional"},
	})
	child.AddDependency(edge("optional", optional, true, true))
	child.AddBuildDependency(edge("build_optional", buildOptional, true, true))
	parent := newPkg("parent", nil)
	parent.AddDependency(edge("child", child, false, true, "one"))

	resolve(t, parent)

	assertEdge(t, child.Dependencies[0], false)
	assertEdge(t, child.BuildDependencies[0], false)
	assertEnabled(t, optional, "std")
	assertEnabled(t, buildOptional, "build")
	assertEnabled(t, child, "build_optional", "one", "optional")
}

func TestFeatureDependencyNoDefaults(t *testing.T) {
	optional := newPkg("optional", map[string][]string{"default": {"std"}, "std": nil})
	buildOptional := newPkg("build_optional", map[string][]string{"default": {"build"}, "build": nil})
	child := newPkg("child", map[string][]string{
		"one":            {"optional", "build_optional"},
		"optional":       {"dep:optional"},
		"build_optional": {"dep:build_optional"},
	})
	child.AddDependency(edge("optional", optional, true, false))
	child.AddBuildDependency(edge("build_optional", buildOptional, true, false))
	parent := newPkg("parent", nil)
	parent.AddDependency(edge("child", child, false, true, "one"))

	resolve(t, parent)

	assertEdge(t, child.Dependencies[0], false)
	assertEdge(t, child.BuildDependencies[0], false)
	assertEnabled(t, optional)
	assertEnabled(t, buildOptional)
	assertEnabled(t, child, "build_optional", "one", "optional")
}

func TestFeatureOnOptionalDependency(t *testing.T) {
	optional := newPkg("optional", map[string][]string{"disabled": nil, "enabled": nil})
	buildOptional := newPkg("build_optional", map[string][]string{"build_disabled": nil, "build_enabled": nil})
	child := newPkg("child", map[string][]string{
		"optional":       {"dep:optional"},
		"build_optional": {"dep:build_optional"},
		"hi":             {"optional?/enabled", "build_optional?/build_enabled"},
	})
	child.AddDependency(edge("optional", optional, true, false))
	child.AddBuildDependency(edge("build_optional", buildOptional, true, false))
	parent := newPkg("parent", nil)
	parent.AddDependency(edge("child", child, false, true, "optional", "build_optional", "hi"))

	resolve(t, parent)

	assertEdge(t, child.Dependencies[0], false, "enabled")
	assertEnabled(t, optional, "enabled")
	assertEdge(t, child.BuildDependencies[0], false, "build_enabled")
	assertEnabled(t, buildOptional, "build_enabled")
	assertEnabled(t, child, "build_optional", "hi", "optional")
}

func TestWeakFeatureDoesNotActivate(t *testing.T) {
	optional := newPkg("optional", map[string][]string{"enabled": nil})
	child := newPkg("child", map[string][]string{
		"optional": {"dep:optional"},
		"hi":       {"optional?/enabled"},
	})
	child.AddDependency(edge("optional", optional, true, true))
	parent := newPkg("parent", nil)
	parent.AddDependency(edge("child", child, false, true, "hi"))

	resolve(t, parent)

	assertEdge(t, child.Dependencies[0], true)
	assertEnabled(t, optional)
	assertEnabled(t, child, "hi")
}

func TestDiamondUnification(t *testing.T) {
	child := newPkg("child", map[string][]string{"default": {"std"}, "other": {"who"}, "std": nil, "who": nil})
	left := newPkg("layer1_1", nil)
	left.AddDependency(edge("child", child, false, true, "other"))
	right := newPkg("layer1_2", nil)
	right.AddDependency(edge("child", child, false, false, "other"))
	parent := newPkg("parent", nil)
	parent.AddDependency(edge("layer1_1", left, false, true))
	parent.AddDependency(edge("layer1_2", right, false, true))

	resolve(t, parent)

	assertEnabled(t, child, "other", "std", "who")
}

func TestPlainNameDoesNotActivateOptional(t *testing.T) {
	optional := newPkg("optional", map[string][]string{"default": {"std"}, "std": nil})
	child := newPkg("child", nil)
	child.AddDependency(edge("optional", optional, true, true))
	parent := newPkg("parent", nil)
	parent.AddDependency(edge("child", child, false, true, "optional"))

	resolve(t, parent)

	assertEdge(t, child.Dependencies[0], true)
	assertEnabled(t, child)
	assertEnabled(t, optional)
}

func TestNormalBuildSeparation(t *testing.T) {
	shared := newPkg("shared", map[string][]string{"default": {"std"}, "std": nil})

	// a activates its build-only optional edge named "shared".
	a := newPkg("a", map[string][]string{"codegen": {"dep:shared"}})
	a.AddBuildDependency(edge("shared", shared, true, true))
	// b has an identically named normal optional edge that nothing activates.
	b := newPkg("b", map[string][]string{"codegen": nil})
	b.AddDependency(edge("shared", shared, true, true))

	parent := newPkg("parent", nil)
	parent.AddDependency(edge("a", a, false, true, "codegen"))
	parent.AddDependency(edge("b", b, false, true, "codegen"))

	resolve(t, parent)

	assertEdge(t, a.BuildDependencies[0], false)
	assertEdge(t, b.Dependencies[0], true)
	assertEnabled(t, shared, "std")
}

func TestDependencyFeatureActivatesUndeclaredOptional(t *testing.T) {
	log := newPkg("log", map[string][]string{"std": nil})
	child := newPkg("child", map[string][]string{"one": {"log/std"}})
	child.AddDependency(edge("log", log, true, false))
	parent := newPkg("parent", nil)
	parent.AddDependency(edge("child", child, false, true, "one"))

	resolve(t, parent)

	assertEdge(t, child.Dependencies[0], false, "std")
	assertEnabled(t, log, "std")
	assertEnabled(t, child, "one")
}

func TestUnknownReferencesAreIgnored(t *testing.T) {
	child := newPkg("child", map[string][]string{"one": {"missing/feature", "dep:nothing", "ghost?/x"}})
	parent := newPkg("parent", nil)
	parent.AddDependency(edge("child", child, false, true, "one", "undeclared"))

	resolve(t, parent)

	assertEnabled(t, child, "one")
}

func TestDefaultListDirectives(t *testing.T) {
	log := newPkg("log", map[string][]string{"std": nil})
	serde := newPkg("serde", map[string][]string{"std": nil})
	child := newPkg("child", map[string][]string{"default": {"dep:log", "log/std", "serde?/std"}})
	child.AddDependency(edge("log", log, true, false))
	child.AddDependency(edge("serde", serde, true, false))
	parent := newPkg("parent", nil)
	parent.AddDependency(edge("child", child, false, true))

	resolve(t, parent)

	assertEdge(t, child.Dependencies[0], false, "std")
	assertEnabled(t, log, "std")
	assertEdge(t, child.Dependencies[1], true)
	assertEnabled(t, serde)
	assertEnabled(t, child)
}

func TestNestedDefaultToken(t *testing.T) {
	child := newPkg("child", map[string][]string{
		"default": {"std"},
		"full":    {"default", "extra"},
		"std":     nil,
		"extra":   nil,
	})
	parent := newPkg("parent", nil)
	parent.AddDependency(edge("child", child, false, false, "full"))

	resolve(t, parent)

	assertEnabled(t, child, "extra", "full", "std")
}

func TestFeatureNamingDefaultWithDirectives(t *testing.T) {
	tests := []struct {
		name     string
		defaults []string
		wantEdge []string
		wantLog  []string
	}{
		{"dep", []string{"dep:log"}, nil, []string{"std"}},
		{"dependency feature", []string{"log/std"}, []string{"std"}, []string{"std"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := newPkg("log", map[string][]string{"default": {"std"}, "std": nil})
			child := newPkg("child", map[string][]string{"default": tt.defaults, "full": {"default"}})
			child.AddDependency(edge("log", log, true, true))
			parent := newPkg("parent", nil)
			parent.AddDependency(edge("child", child, false, false, "full"))

			resolve(t, parent)

			assertEdge(t, child.Dependencies[0], false, tt.wantEdge...)
			assertEnabled(t, log, tt.wantLog...)
			assertEnabled(t, child, "full")
		})
	}
}

func TestDependencyFeatureActivatesThroughUnrelatedFeature(t *testing.T) {
	log := newPkg("log", map[string][]string{"std": nil})
	child := newPkg("child", map[string][]string{
		"log":     {"extra"},
		"one":     {"log/std"},
		"extra":   nil,
		"logging": {"dep:log"},
	})
	child.AddDependency(edge("log", log, true, false))
	parent := newPkg("parent", nil)
	parent.AddDependency(edge("child", child, false, true, "one"))

	resolve(t, parent)

	assertEdge(t, child.Dependencies[0], false, "std")
	assertEnabled(t, log, "std")
	assertEnabled(t, child, "extra", "log", "one")
}

func TestLateContributionOnSharedPackage(t *testing.T) {
	shared := newPkg("shared", map[string][]string{"x": nil, "w": {"v"}, "v": nil})
	a := newPkg("a", nil)
	a.AddDependency(edge("shared", shared, false, false, "x"))
	b := newPkg("b", map[string][]string{"f": {"shared/w"}})
	b.AddDependency(edge("shared", shared, false, false))
	root := newPkg("root", nil)
	root.AddDependency(edge("a", a, false, true))
	root.AddDependency(edge("b", b, false, true, "f"))

	resolve(t, root)

	assertEnabled(t, shared, "v", "w", "x")
	assertEdge(t, b.Dependencies[0], false, "w")
}

func TestActivationFollowsInSamePass(t *testing.T) {
	// grandchild is only reachable through an edge activated during the chain pass;
	// its own chain must still be unpacked.
	grandchild := newPkg("grandchild", map[string][]string{"default": {"a"}, "a": {"b"}, "b": nil})
	child := newPkg("child", map[string][]string{"on": {"dep:grandchild"}})
	child.AddDependency(edge("grandchild", grandchild, true, true))
	root := newPkg("root", nil)
	root.AddDependency(edge("child", child, false, true, "on"))

	resolve(t, root)

	assertEnabled(t, grandchild, "a", "b")
}

// snapshot records every observable bit of resolution state reachable from root.
type snapshot struct {
	Enabled  map[string][]string
	Optional map[string]bool
	Requests map[string][]string
}

func takeSnapshot(root *crate.Package) snapshot {
	s := snapshot{Enabled: map[string][]string{}, Optional: map[string]bool{}, Requests: map[string][]string{}}
	seen := map[*crate.Package]bool{}
	var visit func(p *crate.Package)
	visit = func(p *crate.Package) {
		if seen[p] {
			return
		}
		seen[p] = true
		s.Enabled[p.ID.String()] = p.Enabled.Sorted()
		for i, d := range p.Edges() {
			key := p.ID.String() + "#" + d.Name + "#" + strconv.Itoa(i)
			s.Optional[key] = d.Optional
			s.Requests[key] = append([]string(nil), d.Features...)
			visit(d.Package)
		}
	}
	visit(root)
	return s
}

func TestIdempotence(t *testing.T) {
	optional := newPkg("optional", map[string][]string{"default": {"std"}, "std": nil, "enabled": nil})
	child := newPkg("child", map[string][]string{
		"default":  {"one"},
		"one":      {"optional/std"},
		"optional": {"dep:optional"},
		"hi":       {"optional?/enabled"},
	})
	child.AddDependency(edge("optional", optional, true, true))
	parent := newPkg("parent", nil)
	parent.AddDependency(edge("child", child, false, true, "hi"))

	resolve(t, parent)
	first := takeSnapshot(parent)
	resolve(t, parent)
	second := takeSnapshot(parent)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second resolution changed state (-first +second):\n%s", diff)
	}
	assertEnabled(t, optional, "enabled", "std")
}

func TestFixpointLimit(t *testing.T) {
	child := newPkg("child", map[string][]string{"one": {"two"}, "two": {"three"}, "three": nil})
	parent := newPkg("parent", nil)
	parent.AddDependency(edge("child", child, false, true, "one"))

	r := NewResolver(nil)
	r.MaxRounds = 1
	err := r.Resolve(context.Background(), parent)
	if !stderrors.Is(err, ErrFixpointLimit) {
		t.Fatalf("Resolve() error = %v, want ErrFixpointLimit", err)
	}
	if !errors.Is(err, errors.ErrCodeInternal) {
		t.Errorf("error code = %s, want %s", errors.GetCode(err), errors.ErrCodeInternal)
	}
}

func TestResolveNilRoot(t *testing.T) {
	if err := Resolve(nil); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Resolve(nil) = %v, want INVALID_INPUT", err)
	}
}

func TestResolveTerminatesOnCycle(t *testing.T) {
	a := newPkg("a", map[string][]string{"x": nil})
	b := newPkg("b", map[string][]string{"y": nil})
	a.AddDependency(edge("b", b, false, true, "y"))
	b.AddDependency(edge("a", a, false, true, "x"))

	resolve(t, a)

	assertEnabled(t, b, "y")
}

func TestEnableRoot(t *testing.T) {
	log := newPkg("log", map[string][]string{"std": nil})
	root := newPkg("app", map[string][]string{
		"default": {"fast"},
		"fast":    nil,
		"cli":     {"dep:log"},
	})
	root.AddDependency(edge("log", log, true, false))

	EnableRoot(root, []string{"cli", "log/std", "bogus"}, true)
	resolve(t, root)

	assertEnabled(t, root, "cli", "fast")
	assertEdge(t, root.Dependencies[0], false, "std")
	assertEnabled(t, log, "std")
}

func TestEnableRootWithoutDefaults(t *testing.T) {
	root := newPkg("app", map[string][]string{"default": {"fast"}, "fast": nil})
	EnableRoot(root, nil, false)
	resolve(t, root)
	assertEnabled(t, root)
}

type recordingHooks struct {
	observability.NoopResolveHooks
	passes   []string
	visits   map[string]int
	finished bool
}

func (h *recordingHooks) OnPassStart(_ context.Context, pass string) {
	h.passes = append(h.passes, pass)
}

func (h *recordingHooks) OnPassComplete(_ context.Context, pass string, visits int, _ time.Duration, _ error) {
	h.visits[pass] = visits
}

func (h *recordingHooks) OnResolveComplete(context.Context, string, time.Duration, error) {
	h.finished = true
}

func TestResolverReportsPasses(t *testing.T) {
	hooks := &recordingHooks{visits: map[string]int{}}
	observability.SetResolveHooks(hooks)
	defer observability.Reset()

	child := newPkg("child", nil)
	shared := newPkg("shared", nil)
	child.AddDependency(edge("shared", shared, false, true))
	parent := newPkg("parent", nil)
	parent.AddDependency(edge("child", child, false, true))
	parent.AddDependency(edge("shared", shared, false, true))

	resolve(t, parent)

	want := []string{"set-default", "enable-features", "unpack-default", "unpack-chain", "optional-dependency-features"}
	if diff := cmp.Diff(want, hooks.passes); diff != "" {
		t.Errorf("pass order mismatch (-want +got):\n%s", diff)
	}
	// parent, child, shared via child, shared via parent
	if hooks.visits["unpack-chain"] != 4 {
		t.Errorf("unpack-chain visits = %d, want 4", hooks.visits["unpack-chain"])
	}
	if !hooks.finished {
		t.Error("OnResolveComplete was not called")
	}
}
