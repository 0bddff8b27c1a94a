// Package wipe implements the wipe command: truncates every crawl
// table after printing a pre-truncate row-count summary and asking
// for confirmation.
package wipe

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	cmdcommon "github.com/jonesrussell/mapthenet/cmd/common"
)

// Command returns the wipe cobra command.
func Command() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Truncate every crawl table",
		Long:  `Truncates domains, relationships, collection_logs, url_processing_history, and discovery_queue. Destructive and irreversible; requires confirmation unless --force is given.`,
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

			ctx := cmd.Context()

			counts, countErr := cc.Domains.TableCounts(ctx)
			if countErr != nil {
				return fmt.Errorf("count tables: %w", countErr)
			}

			queueStats, statsErr := cc.Queue.Stats(ctx)
			if statsErr != nil {
				return fmt.Errorf("count queue: %w", statsErr)
			}

			queueTotal := 0
			for _, n := range queueStats {
				queueTotal += n
			}
			counts["discovery_queue"] = queueTotal

			renderSummary(counts)

			if !force && !confirm() {
				deps.Logger.Info("wipe aborted")

				return nil
			}

			if err := cc.Domains.Wipe(ctx); err != nil {
				return fmt.Errorf("wipe domains: %w", err)
			}
			if err := cc.Queue.Wipe(ctx); err != nil {
				return fmt.Errorf("wipe queue: %w", err)
			}

			deps.Logger.Info("wipe complete")

			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "skip the confirmation prompt")

	return cmd
}

func renderSummary(counts map[string]int) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Table", "Rows"})
	for _, name := range []string{"domains", "relationships", "collection_logs", "url_processing_history", "discovery_queue"} {
		t.AppendRow(table.Row{name, counts[name]})
	}

	t.Render()
}

func confirm() bool {
	fmt.Print("This will permanently delete all crawl data. Type \"yes\" to continue: ")

	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')

	return strings.TrimSpace(line) == "yes"
}
