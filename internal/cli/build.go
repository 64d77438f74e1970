package cli

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/rustnix/pkg/errors"
	"github.com/matzehuels/rustnix/pkg/observability"
)

// nixBuild is the executable run by the build command.
var nixBuild = "nix-build"

// buildCommand creates the build command.
func (c *CLI) buildCommand() *cobra.Command {
	var (
		output string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "build [-- nix-build args...]",
		Short: "Generate the Nix expression and build it with nix-build",
		Long: `Generate the Nix expression and build it with nix-build.

Arguments after '--' are passed to nix-build unchanged. nix-build output is
streamed through the logger; the store path of the result is printed when
the build succeeds.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == stdoutPath {
				return errors.New(errors.ErrCodeInvalidInput, "build needs a file, not stdout")
			}
			path, err := c.runGenerate(cmd.Context(), cmd.OutOrStdout(), output)
			if err != nil {
				return err
			}
			nixArgs := append([]string{path}, args...)
			if dryRun {
				printCommand(cmd.OutOrStdout(), nixBuild, nixArgs)
				return nil
			}
			return c.runNixBuild(cmd.Context(), cmd.OutOrStdout(), nixArgs)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "expression file (default from config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the nix-build command instead of running it")

	return cmd
}

// runNixBuild runs nix-build in the workspace directory. Build logs go to the
// logger line by line; the result paths printed on stdout are echoed to out.
func (c *CLI) runNixBuild(ctx context.Context, out io.Writer, args []string) error {
	hooks := observability.Command()
	start := time.Now()
	hooks.OnCommandStart(ctx, nixBuild, args)

	cmd := exec.CommandContext(ctx, nixBuild, args...)
	cmd.Dir = c.flags.dir
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "nix-build stdout")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "nix-build stderr")
	}

	c.Logger.Info("running nix-build", "args", strings.Join(args, " "))
	prog := newProgress(c.Logger)
	if err := cmd.Start(); err != nil {
		cmdErr := &errors.CommandError{Name: nixBuild, ExitCode: -1, Stderr: err.Error()}
		hooks.OnCommandComplete(ctx, nixBuild, -1, time.Since(start), cmdErr)
		return errors.Wrap(errors.ErrCodeCommandFailed, cmdErr, "start nix-build")
	}

	var (
		wg       sync.WaitGroup
		results  []string
		lastLine string
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		results = scanLines(stdout, func(line string) { c.Logger.Debug(line) })
	}()
	go func() {
		defer wg.Done()
		lines := scanLines(stderr, func(line string) { c.Logger.Info(line, "from", "nix") })
		if len(lines) > 0 {
			lastLine = lines[len(lines)-1]
		}
	}()
	wg.Wait()

	err = cmd.Wait()
	exitCode := cmd.ProcessState.ExitCode()
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		} else {
			err = errors.Wrap(errors.ErrCodeCommandFailed,
				&errors.CommandError{Name: nixBuild, ExitCode: exitCode, Stderr: lastLine}, "nix-build failed")
		}
	}
	hooks.OnCommandComplete(ctx, nixBuild, exitCode, time.Since(start), err)
	if err != nil {
		return err
	}

	prog.done("nix-build finished")
	for _, p := range results {
		printFile(out, p)
	}
	return nil
}

// scanLines passes every non-empty line of r to logLine and returns them.
func scanLines(r io.Reader, logLine func(string)) []string {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		logLine(line)
		lines = append(lines, line)
	}
	return lines
}
