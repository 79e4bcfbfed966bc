package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ObiAU/pinyinfeed/internal/aggregator"
	"github.com/ObiAU/pinyinfeed/internal/models"
)

func newRefreshCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Run one refresh pass and print its report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg, ctx.log, true)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.agg.Refresh(cmd.Context(), aggregator.TriggerManual)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

func printReport(out io.Writer, r models.RefreshReport) {
	fmt.Fprintf(out, "Run:       %s (%s)\n", r.RunID, r.Trigger)
	fmt.Fprintf(out, "Total:     %d\n", r.Total)
	fmt.Fprintf(out, "Processed: %d\n", r.Processed)
	fmt.Fprintf(out, "Skipped:   %d\n", r.Skipped)
	fmt.Fprintf(out, "Failed:    %d\n", r.Failed)
	fmt.Fprintf(out, "Deleted:   %d\n", r.Deleted)
	fmt.Fprintf(out, "Took:      %s\n", r.Duration().Round(time.Millisecond))
	if len(r.Errors) > 0 {
		fmt.Fprintln(out, "Errors:")
		for _, e := range r.Errors {
			fmt.Fprintf(out, "  - %s\n", strings.TrimSpace(e))
		}
	}
}
