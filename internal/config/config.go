// Package config provides configuration management for the crawler,
// loading values from environment variables with sane defaults.
package config

import (
	"fmt"
	"os"

	"github.com/jonesrussell/mapthenet/internal/config/app"
	"github.com/jonesrussell/mapthenet/internal/config/crawler"
	dbconfig "github.com/jonesrussell/mapthenet/internal/config/database"
	"github.com/jonesrussell/mapthenet/internal/config/logging"
	"github.com/jonesrussell/mapthenet/internal/logger"
)

// Interface defines the interface for configuration management.
type Interface interface {
	GetAppConfig() *app.Config
	GetLogConfig() *logging.Config
	GetCrawlerConfig() *crawler.Config
	GetDatabaseConfig() *dbconfig.Config
	Validate() error
}

// Ensure Config implements Interface.
var _ Interface = (*Config)(nil)

// Config represents the application configuration.
type Config struct {
	Environment string          `yaml:"environment"`
	Logger      *logging.Config `yaml:"logger"`
	Crawler     *crawler.Config `yaml:"crawler"`
	App         *app.Config     `yaml:"app"`
	Database    *dbconfig.Config `yaml:"database"`

	logger logger.Interface
}

// NewConfig creates a new config instance.
func NewConfig(log logger.Interface) *Config {
	return &Config{logger: log}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Crawler == nil {
		return fmt.Errorf("crawler configuration is required")
	}
	if err := c.Crawler.Validate(); err != nil {
		return fmt.Errorf("crawler: %w", err)
	}

	return nil
}

// LoadConfig loads the configuration from the environment.
func LoadConfig() (*Config, error) {
	logLevel := logger.InfoLevel
	if lvl := envOrDefault("LOG_LEVEL", ""); lvl != "" {
		logLevel = logger.Level(lvl)
	}

	tempLogger, err := logger.New(&logger.Config{
		Level:       logLevel,
		Development: envOrDefault("APP_DEBUG", "") == "true",
		Encoding:    "console",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary logger: %w", err)
	}

	cfg := &Config{
		Environment: envOrDefault("APP_ENVIRONMENT", "development"),
		Logger: &logging.Config{
			Level:    envOrDefault("LOG_LEVEL", "info"),
			Encoding: envOrDefault("LOG_ENCODING", "json"),
			Output:   envOrDefault("LOG_OUTPUT", "stdout"),
		},
		Crawler:  crawler.LoadFromViper(),
		Database: dbconfig.LoadFromViper(),
		App: &app.Config{
			Name:        envOrDefault("APP_NAME", "mapthenet"),
			Version:     envOrDefault("APP_VERSION", "0.1.0"),
			Environment: envOrDefault("APP_ENVIRONMENT", "development"),
			Debug:       envOrDefault("APP_DEBUG", "") == "true",
		},
		logger: tempLogger,
	}

	if validateErr := cfg.Validate(); validateErr != nil {
		return nil, fmt.Errorf("invalid config: %w", validateErr)
	}

	return cfg, nil
}

// GetAppConfig returns the application configuration.
func (c *Config) GetAppConfig() *app.Config { return c.App }

// GetLogConfig returns the logging configuration.
func (c *Config) GetLogConfig() *logging.Config { return c.Logger }

// GetCrawlerConfig returns the crawl configuration.
func (c *Config) GetCrawlerConfig() *crawler.Config { return c.Crawler }

// GetDatabaseConfig returns the database configuration.
func (c *Config) GetDatabaseConfig() *dbconfig.Config { return c.Database }

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}
