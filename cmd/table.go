package cmd

import (
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ObiAU/pinyinfeed/internal/models"
)

const runStampLayout = "2006-01-02 15:04"

// runsTable renders refresh runs newest first, as returned by the run log.
func runsTable(runs []models.RefreshReport) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Run", "Trigger", "Started", "Took", "Processed", "Skipped", "Failed", "Deleted", "Total"})

	for _, r := range runs {
		tw.AppendRow(table.Row{
			shortRunID(r.RunID),
			r.Trigger,
			r.StartedAt.Local().Format(runStampLayout),
			r.Duration().Round(time.Millisecond).String(),
			r.Processed,
			r.Skipped,
			r.Failed,
			r.Deleted,
			r.Total,
		})
	}

	var configs []table.ColumnConfig
	for _, name := range []string{"Took", "Processed", "Skipped", "Failed", "Deleted", "Total"} {
		configs = append(configs, table.ColumnConfig{
			Name:        name,
			Align:       text.AlignRight,
			AlignHeader: text.AlignLeft,
			AlignFooter: text.AlignRight,
		})
	}
	tw.SetColumnConfigs(configs)

	if len(runs) > 1 {
		var processed, failed int
		for _, r := range runs {
			processed += r.Processed
			failed += r.Failed
		}
		tw.AppendFooter(table.Row{"", "", "", "", processed, "", failed})
	}
	return tw.Render()
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

