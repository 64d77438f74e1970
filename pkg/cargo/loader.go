package cargo

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/rustnix/pkg/cache"
	"github.com/matzehuels/rustnix/pkg/errors"
	"github.com/matzehuels/rustnix/pkg/observability"
)

// runFunc runs an external command in dir and returns its standard output.
type runFunc func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

// Loader runs `cargo metadata` and caches its output.
//
// A cached entry records a fingerprint of every manifest and the lockfile it
// was produced from; an entry whose files changed is ignored.
type Loader struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
	TTL    time.Duration

	// Cargo is the cargo executable. Defaults to "cargo" on PATH.
	Cargo string

	run runFunc
}

// NewLoader creates a loader. A nil cache disables caching and a nil keyer
// uses [cache.NewDefaultKeyer].
func NewLoader(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Loader {
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Loader{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
		TTL:    cache.TTLMetadata,
		Cargo:  "cargo",
		run:    runCommand,
	}
}

// cachedMetadata is the cache entry layout.
type cachedMetadata struct {
	Files    map[string]string `json:"files"` // path -> sha256
	Metadata json.RawMessage   `json:"metadata"`
}

// Load returns the metadata of the workspace containing dir, resolved for
// platform. The boolean reports a cache hit. With refresh set the cache is
// not consulted, but the fresh result is still stored.
func (l *Loader) Load(ctx context.Context, dir string, platform Platform, refresh bool) (*Metadata, bool, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeInvalidInput, err, "resolve %s", dir)
	}
	if _, err := os.Stat(filepath.Join(abs, "Cargo.toml")); err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeFileNotFound, err, "no Cargo.toml in %s", abs)
	}

	version, err := l.run(ctx, abs, l.Cargo, "--version")
	if err != nil {
		return nil, false, err
	}
	key := l.Keyer.MetadataKey(abs, cache.MetadataKeyOpts{
		Triple:       platform.Triple,
		CargoVersion: strings.TrimSpace(string(version)),
		AllFeatures:  true,
	})

	hooks := observability.Cache()
	if !refresh {
		if meta, ok := l.cached(ctx, key); ok {
			hooks.OnCacheHit(ctx, key)
			l.Logger.Debug("cargo metadata cache hit", "dir", abs)
			return meta, true, nil
		}
		hooks.OnCacheMiss(ctx, key)
	}

	// The resolve of an all-features run contains every optional dependency;
	// feature resolution decides which of them are built.
	out, err := l.run(ctx, abs, l.Cargo, "metadata", "--format-version", "1", "--all-features", "--filter-platform", platform.Triple)
	if err != nil {
		return nil, false, err
	}
	meta, err := ReadMetadata(bytes.NewReader(out))
	if err != nil {
		return nil, false, err
	}

	entry, err := json.Marshal(cachedMetadata{Files: fingerprint(meta), Metadata: out})
	if err == nil {
		if err := l.Cache.Set(ctx, key, entry, l.TTL); err != nil {
			l.Logger.Warn("could not cache cargo metadata", "err", err)
		} else {
			hooks.OnCacheSet(ctx, key, len(entry))
		}
	}
	return meta, false, nil
}

func (l *Loader) cached(ctx context.Context, key string) (*Metadata, bool) {
	data, hit, err := l.Cache.Get(ctx, key)
	if err != nil {
		l.Logger.Warn("cache read failed", "err", err)
		return nil, false
	}
	if !hit {
		return nil, false
	}
	var entry cachedMetadata
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}
	for path, sum := range entry.Files {
		content, err := os.ReadFile(path)
		if err != nil || cache.Hash(content) != sum {
			l.Logger.Debug("cargo metadata cache stale", "file", path)
			return nil, false
		}
	}
	meta, err := ReadMetadata(bytes.NewReader(entry.Metadata))
	if err != nil {
		return nil, false
	}
	return meta, true
}

// fingerprint hashes the files cargo metadata depends on: the workspace
// manifest and lockfile plus the manifest of every local package.
func fingerprint(meta *Metadata) map[string]string {
	files := make(map[string]string)
	add := func(path string) {
		if content, err := os.ReadFile(path); err == nil {
			files[path] = cache.Hash(content)
		}
	}
	if meta.WorkspaceRoot != "" {
		add(filepath.Join(meta.WorkspaceRoot, "Cargo.toml"))
		add(filepath.Join(meta.WorkspaceRoot, "Cargo.lock"))
	}
	for _, p := range meta.Packages {
		if p.Source == "" {
			add(p.ManifestPath)
		}
	}
	return files
}

// runCommand runs name with args in dir, reporting through the command hooks.
func runCommand(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	hooks := observability.Command()
	hooks.OnCommandStart(ctx, name, args)
	start := time.Now()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	exitCode := 0
	if err != nil {
		exitCode = -1
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
	}
	hooks.OnCommandComplete(ctx, name, exitCode, time.Since(start), err)

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		cmdErr := &errors.CommandError{Name: name, ExitCode: exitCode, Stderr: strings.TrimSpace(stderr.String())}
		return nil, errors.Wrap(errors.ErrCodeCommandFailed, cmdErr, "%s %s", name, strings.Join(args, " "))
	}
	return stdout.Bytes(), nil
}
