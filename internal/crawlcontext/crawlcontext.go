// Package crawlcontext assembles the shared dependency bundle every
// crawl command builds once at startup, replacing scattered globals
// with one explicit struct threaded through the worker pool.
package crawlcontext

import (
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/mapthenet/internal/canonical"
	"github.com/jonesrussell/mapthenet/internal/classify"
	"github.com/jonesrussell/mapthenet/internal/config/crawler"
	"github.com/jonesrussell/mapthenet/internal/database"
	"github.com/jonesrussell/mapthenet/internal/domainrepo"
	"github.com/jonesrussell/mapthenet/internal/enrich"
	"github.com/jonesrussell/mapthenet/internal/extract"
	"github.com/jonesrussell/mapthenet/internal/fetch"
	"github.com/jonesrussell/mapthenet/internal/logger"
	"github.com/jonesrussell/mapthenet/internal/queuestore"
	"github.com/jonesrussell/mapthenet/internal/robots"
)

// Context bundles every collaborator the orchestrator and worker pool
// need, built once per process and passed down explicitly.
type Context struct {
	Config *crawler.Config
	Logger logger.Interface
	DB     *sqlx.DB

	Queue     *queuestore.Store
	Domains   *domainrepo.Repository
	Fetcher   *fetch.Client
	Robots    *robots.Checker
	Classifier *classify.Classifier
	Enrichment *enrich.Adapters

	// AgentName identifies this process for lease ownership and in
	// collection logs; defaults to "<hostname>-<pid>". The stuck-lease
	// sweep does not filter by it and recovers stale leases of any agent.
	AgentName string
}

// dbConfig is the subset of database.Config New needs, kept narrow so
// callers don't have to import the config/database package directly.
type dbConfig struct {
	Host, Port, User, Password, DBName, SSLMode string
}

// New connects to Postgres and wires every collaborator described in
// cfg into a ready-to-use Context.
func New(cfg *crawler.Config, dbCfg dbConfig, log logger.Interface) (*Context, error) {
	db, err := database.NewPostgresConnection(database.Config{
		Host:     dbCfg.Host,
		Port:     dbCfg.Port,
		User:     dbCfg.User,
		Password: dbCfg.Password,
		DBName:   dbCfg.DBName,
		SSLMode:  dbCfg.SSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("crawlcontext: connect database: %w", err)
	}

	fetcher := fetch.New(fetch.Config{
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.RequestTimeout,
	})

	agentName := cfg.AgentName
	if agentName == "" {
		if host, hostErr := os.Hostname(); hostErr == nil {
			agentName = fmt.Sprintf("%s-%d", host, os.Getpid())
		} else {
			agentName = "mapthenet-agent"
		}
	}

	adapters, err := buildEnrichment(cfg, fetcher)
	if err != nil {
		return nil, fmt.Errorf("crawlcontext: build enrichment adapters: %w", err)
	}
	adapters.Logger = enrichLoggerAdapter{log}

	return &Context{
		Config:     cfg,
		Logger:     log,
		DB:         db,
		Queue:      queuestore.New(db),
		Domains:    domainrepo.New(db),
		Fetcher:    fetcher,
		Robots:     robots.New(fetcher, cfg.UserAgent, cfg.RespectRobotsTxt, 0),
		Classifier: classify.New(fetcher),
		Enrichment: adapters,
		AgentName:  agentName,
	}, nil
}

func buildEnrichment(cfg *crawler.Config, fetcher *fetch.Client) (*enrich.Adapters, error) {
	e := cfg.Enrichment

	adapters := &enrich.Adapters{
		Toggles: enrich.Toggles{
			WHOIS: e.WHOISEnabled,
			DNS:   e.DNSEnabled,
			ASN:   e.ASNEnabled,
			TLS:   e.TLSEnabled,
			GeoIP: e.GeoIPEnabled,
		},
	}

	if e.WHOISEnabled {
		adapters.WHOIS = enrich.NewWHOISAdapter(e.WHOISServer)
	}
	if e.DNSEnabled {
		adapters.DNS = enrich.NewDNSAdapter(e.DNSResolvers)
	}
	if e.ASNEnabled {
		adapters.ASN = enrich.NewASNAdapter(fetcher, e.ASNEndpoint)
	}
	if e.TLSEnabled {
		adapters.TLS = enrich.NewTLSAdapter()
	}
	if e.GeoIPEnabled {
		geoip, err := enrich.NewGeoIPAdapter(e.GeoIPDatabasePath, fetcher, e.GeoIPFallbackURL, e.GeoIPFallbackToken)
		if err != nil {
			return nil, err
		}
		adapters.GeoIP = geoip
	}

	return adapters, nil
}

// Close releases the database connection and any adapter resources.
func (c *Context) Close() error {
	if c.Enrichment != nil && c.Enrichment.GeoIP != nil {
		_ = c.Enrichment.GeoIP.Close()
	}

	return c.DB.Close()
}

// DBConfig mirrors dbConfig for callers outside the package.
type DBConfig = dbConfig

type enrichLoggerAdapter struct {
	log logger.Interface
}

func (a enrichLoggerAdapter) Warn(msg string, fields ...any) {
	a.log.Warn(msg, fields...)
}
