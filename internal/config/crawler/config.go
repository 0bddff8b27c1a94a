// Package crawler provides configuration management for the crawl
// component: concurrency, depth/fanout limits, politeness, and the
// optional per-domain enrichment adapters.
package crawler

import (
	"crypto/tls"
	"errors"
	"os"
	"strconv"
	"time"
)

// Default configuration values.
const (
	DefaultParallelWorkers  = 5
	DefaultRequestTimeout   = 30 * time.Second
	DefaultUserAgent        = "mapthenet/1.0"
	DefaultRequestDelay     = 1 * time.Second
	DefaultMaxLinksPerPage  = 50
	DefaultMaxURLsPerDomain = 500
	DefaultMaxDepth         = 5
	DefaultLeaseBatchSize   = 10
	DefaultItemTimeout      = 300 * time.Second
	DefaultStuckThreshold   = 15 * time.Minute
	DefaultWHOISServer      = "whois.iana.org"
	DefaultASNEndpoint      = "https://api.iptoasn.com/v1/as/ip/%s"
)

// Config represents the crawl configuration.
type Config struct {
	// ParallelWorkers is the number of concurrent lease/process loops.
	ParallelWorkers int `env:"CRAWLER_PARALLEL_WORKERS" yaml:"parallel_workers"`
	// RequestTimeout bounds each fetch.
	RequestTimeout time.Duration `env:"CRAWLER_REQUEST_TIMEOUT" yaml:"request_timeout"`
	// UserAgent is sent on every request and used for robots.txt matching.
	UserAgent string `env:"CRAWLER_USER_AGENT" yaml:"user_agent"`
	// RespectRobotsTxt gates the robots checker.
	RespectRobotsTxt bool `env:"CRAWLER_RESPECT_ROBOTS_TXT" yaml:"respect_robots_txt"`
	// RequestDelay is the pause each worker takes after processing one
	// queue entry, whatever the entry's host.
	RequestDelay time.Duration `env:"CRAWLER_REQUEST_DELAY" yaml:"request_delay"`
	// MaxLinksPerPage caps the links kept per page: a quarter of it (at
	// least one) is reserved for same-host links, the rest for
	// cross-host links.
	MaxLinksPerPage int `env:"CRAWLER_MAX_LINKS_PER_PAGE" yaml:"max_links_per_page"`
	// MaxURLsPerDomain caps total URLs processed for one domain.
	MaxURLsPerDomain int `env:"CRAWLER_MAX_URLS_PER_DOMAIN" yaml:"max_urls_per_domain"`
	// MaxDepth caps BFS depth from a seed URL.
	MaxDepth int `env:"CRAWLER_MAX_DEPTH" yaml:"max_depth"`
	// AgentName overrides the "<hostname>-<pid>" agent identity used for
	// lease ownership; the stuck-lease sweep does not filter by agent.
	AgentName string `env:"CRAWLER_AGENT_NAME" yaml:"agent_name"`
	// LeaseBatchSize is how many queue entries one worker leases per round.
	LeaseBatchSize int `env:"CRAWLER_LEASE_BATCH_SIZE" yaml:"lease_batch_size"`
	// ItemTimeout is the hard per-URL processing budget.
	ItemTimeout time.Duration `env:"CRAWLER_ITEM_TIMEOUT" yaml:"item_timeout"`
	// StuckThreshold is how long a processing lease may sit before a
	// sweep reclaims it.
	StuckThreshold time.Duration `env:"CRAWLER_STUCK_THRESHOLD" yaml:"stuck_threshold"`

	TLS TLSConfig `yaml:"tls"`

	Enrichment EnrichmentConfig `yaml:"enrichment"`
}

// EnrichmentConfig toggles and configures the optional per-domain
// metadata adapters (C7).
type EnrichmentConfig struct {
	WHOISEnabled bool   `env:"ENRICH_WHOIS_ENABLED" yaml:"whois_enabled"`
	WHOISServer  string `env:"ENRICH_WHOIS_SERVER"  yaml:"whois_server"`

	DNSEnabled   bool     `env:"ENRICH_DNS_ENABLED" yaml:"dns_enabled"`
	DNSResolvers []string `env:"ENRICH_DNS_RESOLVERS" yaml:"dns_resolvers"`

	ASNEnabled  bool   `env:"ENRICH_ASN_ENABLED"  yaml:"asn_enabled"`
	ASNEndpoint string `env:"ENRICH_ASN_ENDPOINT" yaml:"asn_endpoint"`

	TLSEnabled bool `env:"ENRICH_TLS_ENABLED" yaml:"tls_enabled"`

	GeoIPEnabled       bool   `env:"ENRICH_GEOIP_ENABLED"        yaml:"geoip_enabled"`
	GeoIPDatabasePath  string `env:"ENRICH_GEOIP_DB_PATH"        yaml:"geoip_db_path"`
	GeoIPFallbackURL   string `env:"ENRICH_GEOIP_FALLBACK_URL"   yaml:"geoip_fallback_url"`
	GeoIPFallbackToken string `env:"ENRICH_GEOIP_FALLBACK_TOKEN" yaml:"geoip_fallback_token"`
}

// Validate validates the crawl configuration.
func (c *Config) Validate() error {
	if c.ParallelWorkers < 1 {
		return errors.New("parallel_workers must be positive")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request_timeout must be positive")
	}
	if c.RequestDelay < 0 {
		return errors.New("request_delay must be non-negative")
	}
	if c.MaxLinksPerPage < 1 {
		return errors.New("max_links_per_page must be positive")
	}
	if c.MaxURLsPerDomain < 1 {
		return errors.New("max_urls_per_domain must be positive")
	}
	if c.MaxDepth < 0 {
		return errors.New("max_depth must be non-negative")
	}
	if c.LeaseBatchSize < 1 {
		return errors.New("lease_batch_size must be positive")
	}
	if c.ItemTimeout <= 0 {
		return errors.New("item_timeout must be positive")
	}
	if c.StuckThreshold <= 0 {
		return errors.New("stuck_threshold must be positive")
	}

	return c.TLS.Validate()
}

// New creates a crawl configuration with the given options applied
// over secure defaults.
func New(opts ...Option) *Config {
	cfg := &Config{
		ParallelWorkers:  DefaultParallelWorkers,
		RequestTimeout:   DefaultRequestTimeout,
		UserAgent:        DefaultUserAgent,
		RespectRobotsTxt: true,
		RequestDelay:     DefaultRequestDelay,
		MaxLinksPerPage:  DefaultMaxLinksPerPage,
		MaxURLsPerDomain: DefaultMaxURLsPerDomain,
		MaxDepth:         DefaultMaxDepth,
		LeaseBatchSize:   DefaultLeaseBatchSize,
		ItemTimeout:      DefaultItemTimeout,
		StuckThreshold:   DefaultStuckThreshold,
		TLS: TLSConfig{
			InsecureSkipVerify: false,
			MinVersion:         tls.VersionTLS12,
		},
		Enrichment: EnrichmentConfig{
			WHOISServer: DefaultWHOISServer,
			ASNEndpoint: DefaultASNEndpoint,
		},
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

// Option configures a Config.
type Option func(*Config)

// WithParallelWorkers sets the number of concurrent workers.
func WithParallelWorkers(n int) Option {
	return func(c *Config) { c.ParallelWorkers = n }
}

// WithUserAgent sets the crawler's identifying user agent.
func WithUserAgent(agent string) Option {
	return func(c *Config) { c.UserAgent = agent }
}

// WithAgentName overrides the agent identity used for lease ownership.
func WithAgentName(name string) Option {
	return func(c *Config) { c.AgentName = name }
}

// LoadFromViper loads the crawl configuration from environment
// variables over New's defaults.
func LoadFromViper() *Config {
	cfg := New()

	if v := os.Getenv("CRAWLER_PARALLEL_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ParallelWorkers = n
		}
	}
	if v := os.Getenv("CRAWLER_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RequestTimeout = d
		}
	}
	if v := os.Getenv("CRAWLER_USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv("CRAWLER_RESPECT_ROBOTS_TXT"); v != "" {
		cfg.RespectRobotsTxt = v != "false"
	}
	if v := os.Getenv("CRAWLER_REQUEST_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RequestDelay = d
		}
	}
	if v := os.Getenv("CRAWLER_MAX_LINKS_PER_PAGE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxLinksPerPage = n
		}
	}
	if v := os.Getenv("CRAWLER_MAX_URLS_PER_DOMAIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxURLsPerDomain = n
		}
	}
	if v := os.Getenv("CRAWLER_MAX_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxDepth = n
		}
	}
	if v := os.Getenv("CRAWLER_AGENT_NAME"); v != "" {
		cfg.AgentName = v
	}
	if v := os.Getenv("CRAWLER_LEASE_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LeaseBatchSize = n
		}
	}
	if v := os.Getenv("CRAWLER_ITEM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ItemTimeout = d
		}
	}
	if v := os.Getenv("CRAWLER_STUCK_THRESHOLD"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.StuckThreshold = d
		}
	}

	cfg.Enrichment.WHOISEnabled = os.Getenv("ENRICH_WHOIS_ENABLED") == "true"
	if v := os.Getenv("ENRICH_WHOIS_SERVER"); v != "" {
		cfg.Enrichment.WHOISServer = v
	}
	cfg.Enrichment.DNSEnabled = os.Getenv("ENRICH_DNS_ENABLED") == "true"
	cfg.Enrichment.ASNEnabled = os.Getenv("ENRICH_ASN_ENABLED") == "true"
	if v := os.Getenv("ENRICH_ASN_ENDPOINT"); v != "" {
		cfg.Enrichment.ASNEndpoint = v
	}
	cfg.Enrichment.TLSEnabled = os.Getenv("ENRICH_TLS_ENABLED") == "true"
	cfg.Enrichment.GeoIPEnabled = os.Getenv("ENRICH_GEOIP_ENABLED") == "true"
	if v := os.Getenv("ENRICH_GEOIP_DB_PATH"); v != "" {
		cfg.Enrichment.GeoIPDatabasePath = v
	}
	if v := os.Getenv("ENRICH_GEOIP_FALLBACK_URL"); v != "" {
		cfg.Enrichment.GeoIPFallbackURL = v
	}
	if v := os.Getenv("ENRICH_GEOIP_FALLBACK_TOKEN"); v != "" {
		cfg.Enrichment.GeoIPFallbackToken = v
	}

	return cfg
}

// TLSConfig holds TLS settings for the enrichment TLS adapter.
type TLSConfig struct {
	InsecureSkipVerify bool   `env:"CRAWLER_TLS_INSECURE_SKIP_VERIFY" yaml:"insecure_skip_verify"`
	MinVersion         uint16 `env:"CRAWLER_TLS_MIN_VERSION"          yaml:"min_version"`
}

// Validate validates the TLS configuration, refusing to run with
// certificate verification disabled.
func (c *TLSConfig) Validate() error {
	if c.InsecureSkipVerify {
		return errors.New("insecure_skip_verify is enabled; refusing to disable certificate verification")
	}

	return nil
}
