package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ObiAU/pinyinfeed/internal/cache"
	"github.com/ObiAU/pinyinfeed/internal/logging"
	"github.com/ObiAU/pinyinfeed/internal/sources"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the translation cache",
	}

	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheFlushStaleCommand(ctx))

	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show translation cache usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			c, err := cache.Open(cmd.Context(), cfg.Cache, logging.Component(ctx.log, "cache"))
			if err != nil {
				return err
			}
			defer c.Close()

			stats, err := c.Stats(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Backend: %s\n", stats.Backend)
			fmt.Fprintf(out, "Entries: %d\n", stats.Entries)
			fmt.Fprintf(out, "Real:    %d\n", stats.Real)
			fmt.Fprintf(out, "Mock:    %d\n", stats.Mock)
			return nil
		},
	}
}

func newCacheFlushStaleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "flush-stale",
		Short: "Remove cached articles that are no longer in the feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			articles, err := sources.NewRSSFeed(cfg.FeedURL).FetchArticles(cmd.Context())
			if err != nil {
				return fmt.Errorf("loading feed: %w", err)
			}
			c, err := cache.Open(cmd.Context(), cfg.Cache, logging.Component(ctx.log, "cache"))
			if err != nil {
				return err
			}
			defer c.Close()

			links := make([]string, 0, len(articles))
			for _, a := range articles {
				links = append(links, a.Link)
			}
			removed, err := c.DeleteStale(cmd.Context(), links)
			if err != nil {
				return err
			}
			if removed == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No stale entries")
				return nil
			}
			if err := c.Flush(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d stale entries\n", removed)
			return nil
		},
	}
}
