// Package parallelcollector implements the parallel-collector command:
// N workers draining the shared discovery queue concurrently.
package parallelcollector

import (
	"fmt"

	"github.com/spf13/cobra"

	cmdcommon "github.com/jonesrussell/mapthenet/cmd/common"
	"github.com/jonesrussell/mapthenet/internal/pool"
	"github.com/jonesrussell/mapthenet/internal/sources/loader"
)

// Command returns the parallel-collector cobra command.
func Command() *cobra.Command {
	var (
		workers       int
		batchSize     int
		maxDepth      int
		continuous    bool
		noDiscoveries bool
		addSeeds      []string
		seedsFile     string
	)

	cmd := &cobra.Command{
		Use:   "parallel-collector",
		Short: "Drain the discovery queue with multiple concurrent workers",
		Long:  `Runs --workers concurrent lease/process loops against the shared discovery queue, each leasing its own batch.`,
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

			if workers < 1 {
				workers = cc.Config.ParallelWorkers
			}
			if batchSize < 1 {
				batchSize = cc.Config.LeaseBatchSize
			}

			p := pool.New(cc, workers, batchSize)
			p.Orch.DisableDiscovery = noDiscoveries
			p.StopOnEmpty = !continuous

			stats, runErr := p.Run(ctx)
			if runErr != nil {
				return fmt.Errorf("parallel collector run: %w", runErr)
			}

			deps.Logger.Info("parallel collector finished",
				"workers", workers, "leased", stats.Leased, "processed", stats.Processed,
				"failed", stats.Failed, "skipped", stats.Skipped)

			return nil
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "number of concurrent workers (0 means use config default)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "entries leased per worker per round (0 means use config default)")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "override the configured max crawl depth (0 means use config default)")
	cmd.Flags().BoolVar(&continuous, "continuous", false, "keep workers running indefinitely even after the queue drains")
	cmd.Flags().BoolVar(&noDiscoveries, "no-discoveries", false, "fetch and enrich pages without enqueuing newly discovered links")
	cmd.Flags().StringSliceVar(&addSeeds, "add-seeds", nil, "hosts to enqueue at depth 0 before workers start")
	cmd.Flags().StringVar(&seedsFile, "seeds-file", "", "YAML file listing additional seed hosts under a top-level 'seeds' key")

	return cmd
}
