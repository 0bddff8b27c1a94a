// Package cleanupstuck implements the cleanup-stuck command: recovers
// (or just reports) discovery_queue leases abandoned by crashed
// workers.
package cleanupstuck

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	cmdcommon "github.com/jonesrussell/mapthenet/cmd/common"
)

// Command returns the cleanup-stuck cobra command.
func Command() *cobra.Command {
	var (
		timeoutMinutes int
		dryRun         bool
		statsOnly      bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup-stuck",
		Short: "Recover discovery_queue leases abandoned by crashed workers",
		Long:  `Returns every processing entry older than --timeout-minutes to pending. --dry-run and --stats-only report the count without mutating the queue.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := cmdcommon.NewCommandDeps()
			if err != nil {
				return fmt.Errorf("failed to initialize dependencies: %w", err)
			}

			cc, err := cmdcommon.BuildCrawlContext(deps)
			if err != nil {
				return err
			}
			defer cc.Close() //nolint:errcheck

			threshold := time.Duration(timeoutMinutes) * time.Minute
			ctx := cmd.Context()

			if dryRun || statsOnly {
				stuck, countErr := cc.Queue.CountStuck(ctx, threshold)
				if countErr != nil {
					return fmt.Errorf("count stuck entries: %w", countErr)
				}

				renderStuckTable(threshold, stuck, false)

				return nil
			}

			recovered, sweepErr := cc.Queue.SweepStuck(ctx, threshold)
			if sweepErr != nil {
				return fmt.Errorf("sweep stuck entries: %w", sweepErr)
			}

			renderStuckTable(threshold, recovered, true)

			return nil
		},
	}

	cmd.Flags().IntVar(&timeoutMinutes, "timeout-minutes", 15, "minutes a processing lease may sit idle before it's considered stuck")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report how many leases would be recovered without changing them")
	cmd.Flags().BoolVar(&statsOnly, "stats-only", false, "report current stuck-lease counts and exit")

	return cmd
}

func renderStuckTable(threshold time.Duration, count int, recovered bool) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Threshold", "Stuck Leases", "Action"})

	action := "reported only"
	if recovered {
		action = "returned to pending"
	}

	t.AppendRow(table.Row{threshold.String(), count, action})
	t.Render()
}
