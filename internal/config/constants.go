// Package config provides configuration management for the crawler.
package config

import "time"

// ValidLogLevels defines the valid logging levels.
var ValidLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidEnvironments defines the valid environment types.
var ValidEnvironments = map[string]bool{
	"development": true,
	"staging":     true,
	"production":  true,
	"test":        true,
}

// Default configuration values.
const (
	DefaultLogLevel     = "info"
	DefaultEnvironment  = "development"
	DefaultLogFormat    = "json"
	DefaultLogOutput    = "stdout"
	DefaultAppName      = "mapthenet"
	DefaultAppVersion   = "0.1.0"
	DefaultAppEnv       = "development"
	DefaultHTTPTimeout  = 30 * time.Second
	DefaultMaxBodySize  = 10 * 1024 * 1024
	DefaultMaxIdleConns = 100
)
