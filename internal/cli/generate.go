package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/rustnix/pkg/buildinfo"
	"github.com/matzehuels/rustnix/pkg/errors"
	"github.com/matzehuels/rustnix/pkg/pipeline"
)

// stdoutPath is the --output value that writes to standard output.
const stdoutPath = "-"

// generateCommand creates the generate command.
func (c *CLI) generateCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write the Nix expression for the workspace",
		Long: `Write the Nix expression for the workspace.

The crate graph comes from 'cargo metadata' for the selected target, with
checksums from Cargo.lock. Features are resolved the way cargo would for the
selected package, --features and --no-default-features included.

The output path defaults to the 'output' setting of rustnix.toml
(.rustnix.nix) relative to the workspace. Use '-o -' for stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := c.runGenerate(cmd.Context(), cmd.OutOrStdout(), output)
			return err
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, - for stdout (default from config)")

	return cmd
}

// runGenerate resolves the workspace and writes the expression. It returns
// the written path, or "" when the expression went to stdout.
func (c *CLI) runGenerate(ctx context.Context, stdout io.Writer, output string) (string, error) {
	s, err := c.openSession(ctx)
	if err != nil {
		return "", err
	}
	defer s.Close()

	result, err := c.resolve(ctx, s)
	if err != nil {
		return "", err
	}

	renderOpts := s.cfg.RenderOptions()
	renderOpts.Banner = buildinfo.Banner()

	if output == "" {
		output = s.cfg.Output
	}
	if output == stdoutPath {
		_, err := pipeline.RenderNix(ctx, stdout, result.Root, renderOpts)
		return "", err
	}

	path := output
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.flags.dir, path)
	}
	var buf bytes.Buffer
	if _, err := pipeline.RenderNix(ctx, &buf, result.Root, renderOpts); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidInput, err, "write %s", path)
	}

	printSuccess(stdout, "Generated Nix expression for %s", result.Root.Name)
	printFile(stdout, path)
	printStats(stdout, result.Stats)
	return path, nil
}
