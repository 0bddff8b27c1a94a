package common

import (
	"context"
	"fmt"

	"github.com/jonesrussell/mapthenet/internal/crawlcontext"
	"github.com/jonesrussell/mapthenet/internal/queuestore"
)

// seedPriority outranks any link discovered during a crawl, so a
// freshly added seed is always leased before existing backlog.
const seedPriority = 10

// SeedHosts enqueues the root URL of every host at depth 0, used by
// --add-seeds on the queue-processor and parallel-collector commands.
func SeedHosts(ctx context.Context, cc *crawlcontext.Context, hosts []string) error {
	for _, host := range hosts {
		err := cc.Queue.Enqueue(ctx, queuestore.EnqueueParams{
			URL:        "https://" + host + "/",
			DomainName: host,
			Depth:      0,
			Priority:   seedPriority,
		})
		if err != nil {
			return fmt.Errorf("seed host %s: %w", host, err)
		}
	}

	return nil
}
