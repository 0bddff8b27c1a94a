// Package database provides database configuration management.
package database

import "os"

// Default configuration values
const (
	DefaultHost    = "localhost"
	DefaultPort    = "5432"
	DefaultUser    = "postgres"
	DefaultDBName  = "crawler"
	DefaultSSLMode = "disable"
)

// Config represents database configuration settings.
type Config struct {
	Host     string `env:"POSTGRES_CRAWLER_HOST"     yaml:"host"`
	Port     string `env:"POSTGRES_CRAWLER_PORT"     yaml:"port"`
	User     string `env:"POSTGRES_CRAWLER_USER"     yaml:"user"`
	Password string `env:"POSTGRES_CRAWLER_PASSWORD" yaml:"password"`
	DBName   string `env:"POSTGRES_CRAWLER_DB"       yaml:"dbname"`
	SSLMode  string `env:"POSTGRES_CRAWLER_SSLMODE"  yaml:"sslmode"`
}

// NewConfig creates a new Config instance with default values.
func NewConfig() *Config {
	return &Config{
		Host:    DefaultHost,
		Port:    DefaultPort,
		User:    DefaultUser,
		DBName:  DefaultDBName,
		SSLMode: DefaultSSLMode,
	}
}

// LoadFromViper loads database configuration from environment
// variables, falling back to NewConfig's defaults for anything unset.
func LoadFromViper() *Config {
	cfg := NewConfig()

	if v := os.Getenv("POSTGRES_CRAWLER_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("POSTGRES_CRAWLER_PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("POSTGRES_CRAWLER_USER"); v != "" {
		cfg.User = v
	}
	if v := os.Getenv("POSTGRES_CRAWLER_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv("POSTGRES_CRAWLER_DB"); v != "" {
		cfg.DBName = v
	}
	if v := os.Getenv("POSTGRES_CRAWLER_SSLMODE"); v != "" {
		cfg.SSLMode = v
	}

	return cfg
}
