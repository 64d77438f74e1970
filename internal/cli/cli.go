package cli

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/matzehuels/rustnix/pkg/buildinfo"
	"github.com/matzehuels/rustnix/pkg/cache"
	"github.com/matzehuels/rustnix/pkg/cargo"
	"github.com/matzehuels/rustnix/pkg/config"
	"github.com/matzehuels/rustnix/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "rustnix"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	flags rootFlags
}

// rootFlags are the persistent flags every command shares.
type rootFlags struct {
	dir               string
	pkg               string
	noCache           bool
	refresh           bool
	target            string
	features          []string
	noDefaultFeatures bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level. Debug also traces cache lookups
// and every external command.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
	if level <= log.DebugLevel {
		installTraceHooks(c.Logger)
	}
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "rustnix generates Nix expressions for Cargo workspaces",
		Long: `rustnix resolves the crate graph of a Cargo workspace, including which
features each crate is built with, and writes a Nix expression that builds
every crate with buildRustCrate.`,
		Version:      buildinfo.Resolved(),
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	pf := root.PersistentFlags()
	pf.StringVarP(&c.flags.dir, "dir", "C", ".", "workspace directory")
	pf.StringVarP(&c.flags.pkg, "package", "p", "", "workspace member to build")
	pf.BoolVar(&c.flags.noCache, "no-cache", false, "disable the cargo metadata cache")
	pf.BoolVar(&c.flags.refresh, "refresh", false, "re-run cargo metadata even when cached")
	pf.StringVar(&c.flags.target, "target", "", "Rust target triple (default: host)")
	pf.StringSliceVarP(&c.flags.features, "features", "F", nil, "features to enable (comma or space separated)")
	pf.BoolVar(&c.flags.noDefaultFeatures, "no-default-features", false, "do not enable the default feature")

	root.AddCommand(c.generateCommand())
	root.AddCommand(c.buildCommand())
	root.AddCommand(c.featuresCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Session - per-invocation state
// =============================================================================

// session bundles the configuration and runner of one command invocation.
type session struct {
	cfg    *config.Config
	runner *pipeline.Runner
	cache  cache.Cache
}

func (s *session) Close() error {
	return s.cache.Close()
}

// openSession loads the configuration and wires the metadata cache.
func (c *CLI) openSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load(c.flags.dir)
	if err != nil {
		return nil, err
	}
	if c.flags.noCache {
		cfg.NoCache = true
	}
	if cfg.Path != "" {
		c.Logger.Debug("loaded config", "path", cfg.Path)
	}

	store, err := newCache(ctx, cfg)
	if err != nil {
		return nil, err
	}
	loader := cargo.NewLoader(store, nil, c.Logger)
	loader.TTL = cfg.CacheTTL

	return &session{
		cfg:    cfg,
		runner: pipeline.NewRunner(loader, c.Logger),
		cache:  store,
	}, nil
}

func newCache(ctx context.Context, cfg *config.Config) (cache.Cache, error) {
	switch {
	case cfg.NoCache:
		return cache.NewNullCache(), nil
	case cfg.RedisURL != "":
		return cache.NewRedisCache(ctx, cfg.RedisURL)
	case cfg.CacheDir == "":
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(cfg.CacheDir)
}

// =============================================================================
// Options Helpers
// =============================================================================

// pipelineOptions converts the root flags into pipeline options.
func (c *CLI) pipelineOptions() (pipeline.Options, error) {
	platform := cargo.HostPlatform()
	if c.flags.target != "" {
		p, err := cargo.NewPlatform(c.flags.target)
		if err != nil {
			return pipeline.Options{}, err
		}
		platform = p
	}
	return pipeline.Options{
		Dir:               c.flags.dir,
		Package:           c.flags.pkg,
		Platform:          platform,
		Refresh:           c.flags.refresh,
		Features:          parseFeatures(c.flags.features),
		NoDefaultFeatures: c.flags.noDefaultFeatures,
	}, nil
}

// parseFeatures splits --features values on commas and whitespace, the way
// cargo accepts them.
func parseFeatures(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, strings.FieldsFunc(v, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})...)
	}
	return out
}

// interactive reports whether the user can answer a prompt.
var interactive = func() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stderr.Fd())
}

// resolve runs the pipeline. When the workspace has no root package and no
// --package was given, an interactive terminal gets a member picker.
func (c *CLI) resolve(ctx context.Context, s *session) (*pipeline.Result, error) {
	opts, err := c.pipelineOptions()
	if err != nil {
		return nil, err
	}

	for {
		spinner := newSpinnerWithContext(ctx, "Resolving crate graph...")
		spinner.Start()
		result, err := s.runner.Resolve(ctx, opts)
		spinner.Stop()
		if err == nil {
			return result, nil
		}

		var need *cargo.NeedPackageError
		if opts.Package != "" || !stderrors.As(err, &need) || !interactive() {
			return nil, err
		}
		name, err := pickMember(need.Available)
		if err != nil {
			return nil, err
		}
		if name == "" {
			return nil, context.Canceled
		}
		opts.Package = name
	}
}
