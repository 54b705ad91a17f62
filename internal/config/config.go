// Package config loads application configuration from file and environment.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Places   PlacesConfig   `yaml:"places" mapstructure:"places"`
	Geocode  GeocodeConfig  `yaml:"geocode" mapstructure:"geocode"`
	Describe DescribeConfig `yaml:"describe" mapstructure:"describe"`
	Search   SearchConfig   `yaml:"search" mapstructure:"search"`
	Import   ImportConfig   `yaml:"import" mapstructure:"import"`
	Catalog  CatalogConfig  `yaml:"catalog" mapstructure:"catalog"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PlacesConfig holds place-search provider settings.
type PlacesConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	MaxPhotos int     `yaml:"max_photos" mapstructure:"max_photos"`
}

// GeocodeConfig holds geocoding provider settings.
type GeocodeConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// DescribeConfig holds description generator settings.
type DescribeConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// SearchConfig configures the discovery stage.
type SearchConfig struct {
	RadiusMeters int      `yaml:"radius_meters" mapstructure:"radius_meters"`
	Categories   []string `yaml:"categories" mapstructure:"categories"`
	MaxPerQuery  int      `yaml:"max_per_query" mapstructure:"max_per_query"`
}

// ImportConfig configures the import stage.
type ImportConfig struct {
	Concurrency          int  `yaml:"concurrency" mapstructure:"concurrency"`
	GenerateDescriptions bool `yaml:"generate_descriptions" mapstructure:"generate_descriptions"`
}

// CatalogConfig points at an optional category catalog override file.
type CatalogConfig struct {
	OverridePath string `yaml:"override_path" mapstructure:"override_path"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GUIDE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "guide.db")
	v.SetDefault("places.key", "")
	v.SetDefault("geocode.key", "")
	v.SetDefault("describe.key", "")
	v.SetDefault("places.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("places.rate_limit", 10)
	v.SetDefault("places.max_photos", 6)
	v.SetDefault("geocode.base_url", "https://maps.googleapis.com/maps/api/geocode/json")
	v.SetDefault("describe.model", "claude-haiku-4-5-20251001")
	v.SetDefault("describe.max_tokens", 300)
	v.SetDefault("search.radius_meters", 2000)
	v.SetDefault("search.max_per_query", 20)
	v.SetDefault("import.concurrency", 4)
	v.SetDefault("import.generate_descriptions", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
