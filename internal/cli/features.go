package cli

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/rustnix/pkg/nix"
)

// featuresCommand creates the features command.
func (c *CLI) featuresCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "features",
		Short: "Show the features every crate is built with",
		Long: `Show the features every crate is built with.

Only crates that end up in the build are listed; optional dependencies that
no feature turned on are left out. Crates without features are hidden unless
--all is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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
			fmt.Fprintln(cmd.OutOrStdout(), featureTable(result.Root, all))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include crates without enabled features")

	return cmd
}

// featureTable renders the enabled features of every crate under root,
// ordered by name and version.
func featureTable(root *nix.Package, all bool) string {
	pkgs := root.Packages()
	slices.SortFunc(pkgs, func(a, b *nix.Package) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.Version, b.Version))
	})

	var rows [][]string
	for _, p := range pkgs {
		if len(p.Features) == 0 && !all {
			continue
		}
		rows = append(rows, []string{p.Name, p.Version, crateKind(root, p), strings.Join(p.Features, ", ")})
	}
	if len(rows) == 0 {
		return StyleDim.Render("No crate has features enabled")
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Crate", "Version", "Kind", "Features").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader
			}
			if col == 3 {
				return StyleSuccess
			}
			return lipgloss.NewStyle()
		})
	return t.Render()
}

func crateKind(root, p *nix.Package) string {
	switch {
	case p == root:
		return "root"
	case p.ProcMacro:
		return "proc-macro"
	case p.Source.IsLocal():
		return "local"
	}
	return "registry"
}
