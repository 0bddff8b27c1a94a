package common

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jonesrussell/mapthenet/internal/config"
	"github.com/jonesrussell/mapthenet/internal/logger"
)

// InitConfig initializes Viper configuration from environment variables
// and an optional config file, ahead of config.LoadConfig's own
// environment-variable read.
func InitConfig() error {
	_ = godotenv.Load()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	_ = viper.ReadInConfig()

	if err := bindEnvVars(); err != nil {
		return fmt.Errorf("failed to bind env vars: %w", err)
	}

	setupDevelopmentLogging()

	return nil
}

func setDefaults() {
	viper.SetDefault("app", map[string]any{
		"name":        "mapthenet",
		"version":     "0.1.0",
		"environment": "production",
		"debug":       false,
	})

	viper.SetDefault("logger", map[string]any{
		"level":       "info",
		"development": false,
		"encoding":    "json",
	})
}

func bindEnvVars() error {
	if err := viper.BindEnv("app.environment", "APP_ENVIRONMENT"); err != nil {
		return fmt.Errorf("failed to bind APP_ENVIRONMENT: %w", err)
	}
	if err := viper.BindEnv("app.debug", "APP_DEBUG"); err != nil {
		return fmt.Errorf("failed to bind APP_DEBUG: %w", err)
	}
	if err := viper.BindEnv("logger.level", "LOG_LEVEL"); err != nil {
		return fmt.Errorf("failed to bind LOG_LEVEL: %w", err)
	}
	if err := viper.BindEnv("logger.encoding", "LOG_ENCODING"); err != nil {
		return fmt.Errorf("failed to bind LOG_ENCODING: %w", err)
	}

	return nil
}

func setupDevelopmentLogging() {
	debugFlag := viper.GetBool("app.debug")
	isDev := viper.GetString("app.environment") == "development"

	if debugFlag {
		viper.Set("logger.level", "debug")
	}

	if isDev {
		viper.Set("logger.development", true)
		viper.Set("logger.encoding", "console")
	}
}

// NewCommandDeps loads config and builds a logger, consolidating the
// shared setup every command needs.
func NewCommandDeps() (CommandDeps, error) {
	if err := InitConfig(); err != nil {
		return CommandDeps{}, fmt.Errorf("failed to initialize config: %w", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return CommandDeps{}, fmt.Errorf("load config: %w", err)
	}

	logLevel := strings.ToLower(viper.GetString("logger.level"))
	if logLevel == "" {
		logLevel = "info"
	}

	log, err := logger.New(&logger.Config{
		Level:       logger.Level(logLevel),
		Development: viper.GetBool("logger.development"),
		Encoding:    viper.GetString("logger.encoding"),
	})
	if err != nil {
		return CommandDeps{}, fmt.Errorf("create logger: %w", err)
	}

	deps := CommandDeps{Logger: log, Config: cfg}

	if validateErr := deps.Validate(); validateErr != nil {
		return CommandDeps{}, fmt.Errorf("validate deps: %w", validateErr)
	}

	return deps, nil
}
