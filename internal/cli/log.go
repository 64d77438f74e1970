// Package cli implements the rustnix command-line interface.
//
// The commands resolve a Cargo workspace and either write the Nix expression
// for it, build it with nix-build, or report on the resolved crate graph.
// The CLI is built using cobra and logs through charmbracelet/log.
//
// # Commands
//
//   - generate: write the Nix expression
//   - build: generate, then run nix-build on it
//   - features: list the features every crate is built with
//   - graph: draw the build graph (DOT, SVG, PDF, PNG)
//   - cache: manage the cargo metadata cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging, which includes
// one line per feature resolution pass.
package cli

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/rustnix/pkg/observability"
)

// newLogger creates a new logger with timestamp formatting.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of an operation and logs completion with elapsed duration.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time, rounded to the millisecond.
// Example output: "nix-build finished (41.234s)"
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

// traceHooks logs cache traffic and external commands at debug level. They
// are installed by --verbose.
type traceHooks struct {
	logger *log.Logger
}

func (h traceHooks) OnCacheHit(_ context.Context, key string) {
	h.logger.Debug("cache hit", "key", key)
}

func (h traceHooks) OnCacheMiss(_ context.Context, key string) {
	h.logger.Debug("cache miss", "key", key)
}

func (h traceHooks) OnCacheSet(_ context.Context, key string, size int) {
	h.logger.Debug("cache set", "key", key, "bytes", size)
}

func (h traceHooks) OnCommandStart(_ context.Context, name string, args []string) {
	h.logger.Debug("exec", "cmd", name+" "+strings.Join(args, " "))
}

func (h traceHooks) OnCommandComplete(_ context.Context, name string, exitCode int, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("exec failed", "cmd", name, "exit", exitCode, "duration", d, "err", err)
		return
	}
	h.logger.Debug("exec done", "cmd", name, "duration", d.Round(time.Millisecond))
}

func installTraceHooks(l *log.Logger) {
	h := traceHooks{logger: l}
	observability.SetCacheHooks(h)
	observability.SetCommandHooks(h)
}
