package common

import (
	"fmt"

	"github.com/jonesrussell/mapthenet/internal/crawlcontext"
)

// BuildCrawlContext wires a crawlcontext.Context from already-loaded
// command dependencies, consolidating the database-config translation
// every crawl subcommand needs.
func BuildCrawlContext(deps CommandDeps) (*crawlcontext.Context, error) {
	dbCfg := deps.Config.GetDatabaseConfig()
	if dbCfg == nil {
		return nil, fmt.Errorf("database configuration is required")
	}

	cc, err := crawlcontext.New(deps.Config.GetCrawlerConfig(), crawlcontext.DBConfig{
		Host:     dbCfg.Host,
		Port:     dbCfg.Port,
		User:     dbCfg.User,
		Password: dbCfg.Password,
		DBName:   dbCfg.DBName,
		SSLMode:  dbCfg.SSLMode,
	}, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("build crawl context: %w", err)
	}

	return cc, nil
}
