package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/rustnix/pkg/cache"
	"github.com/matzehuels/rustnix/pkg/config"
	"github.com/matzehuels/rustnix/pkg/errors"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the cargo metadata cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached cargo metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.flags.dir)
			if err != nil {
				return err
			}
			if cfg.RedisURL != "" {
				return errors.New(errors.ErrCodeUnsupported,
					"cache clear only manages the file cache; entries in redis expire after %s", cfg.CacheTTL)
			}

			out := cmd.OutOrStdout()
			if _, err := os.Stat(cfg.CacheDir); os.IsNotExist(err) {
				printDetail(out, "Cache is empty")
				return nil
			}
			fc, err := cache.NewFileCache(cfg.CacheDir)
			if err != nil {
				return errors.Wrap(errors.ErrCodeCache, err, "open cache")
			}
			n, err := fc.Clear()
			if err != nil {
				return errors.Wrap(errors.ErrCodeCache, err, "clear cache")
			}

			printSuccess(out, "Cleared %d cached entries", n)
			printDetail(out, "Directory: %s", fc.Dir())
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.flags.dir)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfg.CacheDir)
			return nil
		},
	}
}
