// Package config loads rustnix settings for a project directory.
//
// Settings come from three places, later ones winning:
//
//  1. rustnix.toml in the project directory
//  2. RUSTNIX_* environment variables, including those set by a .env file
//     next to it
//  3. built-in defaults for anything still unset
//
// Command-line flags are applied on top by the CLI.
package config

import (
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/matzehuels/rustnix/pkg/errors"
	"github.com/matzehuels/rustnix/pkg/nix"
)

const (
	// FileName is the project configuration file looked up by [Load].
	FileName = "rustnix.toml"

	// DefaultOutput is where the generated expression is written.
	DefaultOutput = ".rustnix.nix"

	// DefaultCacheTTL bounds how long cached cargo metadata is trusted.
	DefaultCacheTTL = 24 * time.Hour

	appName   = "rustnix"
	envPrefix = "RUSTNIX_"
)

// Config holds generator, output and cache settings.
type Config struct {
	RustVersion    string              `toml:"rust_version"`
	CodegenUnits   int                 `toml:"codegen_units"`
	RustcOpts      []string            `toml:"rustc_opts"`
	Output         string              `toml:"output"`
	CrateOverrides map[string][]string `toml:"crate_overrides"`

	CacheDir string        `toml:"cache_dir"`
	RedisURL string        `toml:"redis_url"`
	NoCache  bool          `toml:"no_cache"`
	CacheTTL time.Duration `toml:"cache_ttl"`

	// Path is the configuration file that was read, empty when none existed.
	Path string `toml:"-"`
}

// Load reads the configuration for the project in dir.
func Load(dir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read .env")
	}

	cfg := &Config{}
	path := filepath.Join(dir, FileName)
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if !stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", path)
		}
	} else {
		cfg.Path = path
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	str("RUST_VERSION", &c.RustVersion)
	str("OUTPUT", &c.Output)
	str("CACHE_DIR", &c.CacheDir)
	str("REDIS_URL", &c.RedisURL)

	if v, ok := lookup(envPrefix + "CODEGEN_UNITS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "%sCODEGEN_UNITS", envPrefix)
		}
		c.CodegenUnits = n
	}
	if v, ok := lookup(envPrefix + "NO_CACHE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "%sNO_CACHE", envPrefix)
		}
		c.NoCache = b
	}
	if v, ok := lookup(envPrefix + "CACHE_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "%sCACHE_TTL", envPrefix)
		}
		c.CacheTTL = d
	}
	return nil
}

// WithDefaults fills every unset field.
func (c *Config) WithDefaults() *Config {
	def := nix.DefaultRenderOptions()
	if c.RustVersion == "" {
		c.RustVersion = def.RustVersion
	}
	if c.CodegenUnits == 0 {
		c.CodegenUnits = def.CodegenUnits
	}
	if c.RustcOpts == nil {
		c.RustcOpts = def.RustcOpts
	}
	if c.CrateOverrides == nil {
		c.CrateOverrides = def.CrateOverrides
	}
	if c.Output == "" {
		c.Output = DefaultOutput
	}
	if c.CacheDir == "" {
		c.CacheDir, _ = DefaultCacheDir()
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	return c
}

// Validate reports settings that would produce a broken expression.
func (c *Config) Validate() error {
	if c.RustVersion == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "rust_version cannot be empty")
	}
	if err := errors.ValidateRustVersion(c.RustVersion); err != nil {
		return err
	}
	if c.CodegenUnits <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "codegen_units must be positive, got %d", c.CodegenUnits)
	}
	if c.CacheTTL < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "cache_ttl cannot be negative")
	}
	if c.RedisURL != "" && !strings.HasPrefix(c.RedisURL, "redis://") && !strings.HasPrefix(c.RedisURL, "rediss://") {
		return errors.New(errors.ErrCodeInvalidConfig, "redis_url must start with redis:// or rediss://")
	}
	return nil
}

// RenderOptions returns the Nix renderer settings described by c.
func (c *Config) RenderOptions() nix.RenderOptions {
	return nix.RenderOptions{
		RustVersion:    c.RustVersion,
		CodegenUnits:   c.CodegenUnits,
		RustcOpts:      c.RustcOpts,
		CrateOverrides: c.CrateOverrides,
	}
}

// DefaultCacheDir returns the cache directory using the XDG standard
// (~/.cache/rustnix/).
func DefaultCacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
