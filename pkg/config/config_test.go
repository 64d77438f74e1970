package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/rustnix/pkg/errors"
)

func copyFixture(t *testing.T, dir string) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", FileName))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, FileName), data, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg")
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	want := &Config{
		RustVersion:    "1.68.0",
		CodegenUnits:   16,
		RustcOpts:      []string{"-C embed-bitcode=no"},
		Output:         DefaultOutput,
		CrateOverrides: map[string][]string{"opentelemetry-proto": {"protobuf"}},
		CacheDir:       filepath.Join("/tmp/xdg", appName),
		CacheTTL:       DefaultCacheTTL,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	copyFixture(t, dir)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RustVersion != "1.75.0" || cfg.CodegenUnits != 4 || cfg.Output != "default.nix" {
		t.Errorf("Load() = %+v", cfg)
	}
	if cfg.CacheTTL != 2*time.Hour {
		t.Errorf("CacheTTL = %v, want 2h", cfg.CacheTTL)
	}
	if diff := cmp.Diff(map[string][]string{"openssl-sys": {"openssl", "pkg-config"}}, cfg.CrateOverrides); diff != "" {
		t.Errorf("CrateOverrides mismatch (-want +got):\n%s", diff)
	}
	if cfg.Path != filepath.Join(dir, FileName) {
		t.Errorf("Path = %q", cfg.Path)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	copyFixture(t, dir)
	t.Setenv("RUSTNIX_RUST_VERSION", "latest")
	t.Setenv("RUSTNIX_NO_CACHE", "true")
	t.Setenv("RUSTNIX_CODEGEN_UNITS", "8")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RustVersion != "latest" || !cfg.NoCache || cfg.CodegenUnits != 8 {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	// Registered with t.Setenv so the value set by godotenv is reverted.
	t.Setenv("RUSTNIX_OUTPUT", "")
	os.Unsetenv("RUSTNIX_OUTPUT")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("RUSTNIX_OUTPUT=from-dotenv.nix\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Output != "from-dotenv.nix" {
		t.Errorf("Output = %q, want from-dotenv.nix", cfg.Output)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
	}{
		{"bad toml", "rust_version = ", nil},
		{"bad codegen units env", "", map[string]string{"RUSTNIX_CODEGEN_UNITS": "many"}},
		{"bad ttl env", "", map[string]string{"RUSTNIX_CACHE_TTL": "soon"}},
		{"bad rust version", `rust_version = "stable"`, nil},
		{"negative codegen units", "codegen_units = -1", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.file != "" {
				if err := os.WriteFile(filepath.Join(dir, FileName), []byte(tt.file), 0644); err != nil {
					t.Fatal(err)
				}
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(dir)
			if !errors.Is(err, errors.ErrCodeInvalidConfig) {
				t.Errorf("Load() error = %v, want INVALID_CONFIG", err)
			}
		})
	}
}

func TestValidateRedisURL(t *testing.T) {
	cfg := (&Config{RedisURL: "http://localhost:6379"}).WithDefaults()
	if err := cfg.Validate(); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("Validate() = %v, want INVALID_CONFIG", err)
	}
	cfg.RedisURL = "redis://localhost:6379/0"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestRenderOptions(t *testing.T) {
	cfg := (&Config{RustVersion: "1.70.0", CodegenUnits: 2}).WithDefaults()
	opts := cfg.RenderOptions()
	if opts.RustVersion != "1.70.0" || opts.CodegenUnits != 2 || len(opts.RustcOpts) != 1 {
		t.Errorf("RenderOptions() = %+v", opts)
	}
}

func TestDefaultCacheDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")
	dir, err := DefaultCacheDir()
	if err != nil {
		t.Fatalf("DefaultCacheDir() error: %v", err)
	}
	home, _ := os.UserHomeDir()
	if want := filepath.Join(home, ".cache", appName); dir != want {
		t.Errorf("DefaultCacheDir() = %q, want %q", dir, want)
	}

	t.Setenv("XDG_CACHE_HOME", "/tmp/custom-cache")
	dir, _ = DefaultCacheDir()
	if !strings.HasPrefix(dir, "/tmp/custom-cache") {
		t.Errorf("DefaultCacheDir() with XDG_CACHE_HOME = %q", dir)
	}
}
