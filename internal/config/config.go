// Package config loads application configuration and initializes logging.
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
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Forecast   ForecastConfig   `yaml:"forecast" mapstructure:"forecast"`
	Price      PriceConfig      `yaml:"price" mapstructure:"price"`
	LevelScore LevelScoreConfig `yaml:"level_score" mapstructure:"level_score"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ForecastConfig holds projection defaults.
type ForecastConfig struct {
	Variable       string `yaml:"variable" mapstructure:"variable"`
	Method         string `yaml:"method" mapstructure:"method"`
	SmoothingYears int    `yaml:"smoothing_years" mapstructure:"smoothing_years"`
}

// PriceConfig holds price resolution defaults.
type PriceConfig struct {
	Mode            string  `yaml:"mode" mapstructure:"mode"`
	AnnualGrowthPct float64 `yaml:"annual_growth_pct" mapstructure:"annual_growth_pct"`
	BasePriceYear   int     `yaml:"base_price_year" mapstructure:"base_price_year"`
}

// LevelScoreConfig tunes the level-scoring job.
type LevelScoreConfig struct {
	Lambda float64 `yaml:"lambda" mapstructure:"lambda"`
}

// ServerConfig configures the API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("PLANNING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "planning.db")
	v.SetDefault("forecast.variable", "volume")
	v.SetDefault("forecast.method", "cagr")
	v.SetDefault("forecast.smoothing_years", 3)
	v.SetDefault("price.mode", "fixed")
	v.SetDefault("price.annual_growth_pct", 3.0)
	v.SetDefault("price.base_price_year", 2026)
	v.SetDefault("level_score.lambda", 0.05)
	v.SetDefault("server.port", 8080)
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
