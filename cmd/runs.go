package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ObiAU/pinyinfeed/internal/config"
	"github.com/ObiAU/pinyinfeed/internal/runlog"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent refresh runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := openRunLog(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.Recent(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), runsTable(runs))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	cmd.AddCommand(newRunsPruneCommand(ctx))
	return cmd
}

func newRunsPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan string
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete recorded runs older than the retention period",
		Long: `Delete refresh runs that started before the retention period.

Uses run_retention from config (default: 30d) unless overridden with --older-than.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			retention := cfg.RunRetention
			if olderThan != "" {
				retention, err = parseAge(olderThan)
				if err != nil {
					return fmt.Errorf("invalid --older-than value: %w", err)
				}
			}
			if retention <= 0 {
				return fmt.Errorf("no retention period set (run_retention is 0)")
			}

			store, err := openRunLog(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			deleted, err := store.Prune(retention)
			if err != nil {
				return err
			}
			if deleted == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to prune")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d run(s) older than %s\n", deleted, formatAge(retention))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&olderThan, "older-than", "", "Override the retention period (e.g. 7d, 72h)")
	return cmd
}

func openRunLog(cfg *config.Config) (*runlog.Store, error) {
	if cfg.RunLogPath == "" {
		return nil, fmt.Errorf("run log is disabled (run_log_path is empty)")
	}
	return runlog.Open(cfg.RunLogPath)
}

// parseAge accepts a day count such as "7d" or any time.ParseDuration value.
func parseAge(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("%q is not a positive number of days", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("%q is not positive", s)
	}
	return d, nil
}

func formatAge(d time.Duration) string {
	if d%(24*time.Hour) == 0 {
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	}
	return d.String()
}
