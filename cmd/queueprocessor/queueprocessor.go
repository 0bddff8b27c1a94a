// Package queueprocessor implements the single-worker queue-processor
// command: one lease/process loop that drains the shared discovery
// queue, optionally forever.
package queueprocessor

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	cmdcommon "github.com/jonesrussell/mapthenet/cmd/common"
	"github.com/jonesrussell/mapthenet/internal/pool"
	"github.com/jonesrussell/mapthenet/internal/sources/loader"
)

// Command returns the queue-processor cobra command.
func Command() *cobra.Command {
	var (
		maxItems           int
		maxDepth           int
		continuous         bool
		addSeeds           []string
		seedsFile          string
		forceShutdownAfter int
	)

	cmd := &cobra.Command{
		Use:   "queue-processor",
		Short: "Drain the discovery queue with a single worker",
		Long:  `Runs one lease/process loop against the shared discovery queue until it is empty, --max-items is reached, or --continuous keeps it running indefinitely.`,
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

			if maxDepth > 0 {
				cc.Config.MaxDepth = maxDepth
			}

			ctx, coordinator := pool.NewSignalCoordinator(cmd.Context())
			defer coordinator.Stop()

			if forceShutdownAfter > 0 {
				watchForcedShutdown(ctx, forceShutdownAfter)
			}

			seeds := addSeeds
			if seedsFile != "" {
				fileSeeds, loadErr := loader.LoadSeedHosts(seedsFile)
				if loadErr != nil {
					return fmt.Errorf("load seeds file: %w", loadErr)
				}

				seeds = append(seeds, fileSeeds...)
			}

			if len(seeds) > 0 {
				if seedErr := cmdcommon.SeedHosts(ctx, cc, seeds); seedErr != nil {
					return seedErr
				}
			}

			p := pool.New(cc, 1, cc.Config.LeaseBatchSize)
			p.StopOnEmpty = !continuous
			if !continuous {
				p.MaxItems = maxItems
			}

			stats, runErr := p.Run(ctx)
			if runErr != nil {
				return fmt.Errorf("queue processor run: %w", runErr)
			}

			deps.Logger.Info("queue processor finished",
				"leased", stats.Leased, "processed", stats.Processed,
				"failed", stats.Failed, "skipped", stats.Skipped)

			return nil
		},
	}

	cmd.Flags().IntVar(&maxItems, "max-items", 0, "maximum queue entries to process before exiting (0 means drain to empty)")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "override the configured max crawl depth (0 means use config default)")
	cmd.Flags().BoolVar(&continuous, "continuous", false, "keep leasing and processing indefinitely, ignoring --max-items")
	cmd.Flags().StringSliceVar(&addSeeds, "add-seeds", nil, "hosts to enqueue at depth 0 before processing begins")
	cmd.Flags().StringVar(&seedsFile, "seeds-file", "", "YAML file listing additional seed hosts under a top-level 'seeds' key")
	cmd.Flags().IntVar(&forceShutdownAfter, "force-shutdown-after", 0,
		"seconds to wait after a drain request before forcing exit (0 disables)")

	return cmd
}

// watchForcedShutdown escalates to os.Exit if the pool hasn't drained
// within seconds of the first shutdown signal, a blunter backstop than
// the three-signal escalation for scripted/unattended shutdowns.
func watchForcedShutdown(ctx context.Context, seconds int) {
	go func() {
		<-ctx.Done()

		timer := time.NewTimer(time.Duration(seconds) * time.Second)
		defer timer.Stop()
		<-timer.C

		os.Exit(1)
	}()
}
