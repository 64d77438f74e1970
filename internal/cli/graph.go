package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/rustnix/pkg/errors"
	"github.com/matzehuels/rustnix/pkg/pipeline"
)

// graphCommand creates the graph command.
func (c *CLI) graphCommand() *cobra.Command {
	var (
		format   string
		output   string
		detailed bool
	)

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Draw the resolved build graph",
		Long: `Draw the resolved build graph as a node-link diagram.

Every crate that gets built is one node. Normal dependencies are solid
edges, build dependencies dashed, renamed dependencies labelled with the
name the dependent uses. DOT and SVG can be written to stdout; PDF and PNG
need --output and the rsvg-convert tool.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := pipeline.ValidateFormat(format); err != nil {
				return err
			}
			binary := format == pipeline.FormatPDF || format == pipeline.FormatPNG
			if binary && output == "" {
				return errors.New(errors.ErrCodeInvalidInput, "%s output needs --output", format)
			}

			ctx := cmd.Context()
			s, err := c.openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := c.resolve(ctx, s)
			if err != nil {
				return err
			}
			data, err := pipeline.RenderGraph(ctx, result.Root, format, detailed)
			if err != nil {
				return err
			}

			if output == "" || output == stdoutPath {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return errors.Wrap(errors.ErrCodeInvalidInput, err, "write %s", output)
			}
			printFile(cmd.OutOrStdout(), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", pipeline.FormatDOT, "output format: dot, svg, pdf, png")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "list enabled features in node labels")

	return cmd
}
