// Package config loads application settings from file and environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/jask/homefinance/internal/analytics"
)

// Config holds application configuration.
type Config struct {
	Database  DatabaseConfig
	Analytics AnalyticsConfig
	UI        UIConfig
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path           string
	MigrationsPath string `mapstructure:"migrations_path"`
}

// AnalyticsConfig exposes the recurring-detector tuning knobs. Zero values
// fall back to the calibrated defaults.
type AnalyticsConfig struct {
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	MinOccurrences      int     `mapstructure:"min_occurrences"`
	FrequencyTolerance  float64 `mapstructure:"frequency_tolerance"`
	MinScore            int     `mapstructure:"min_score"`
}

// UIConfig holds presentation settings.
type UIConfig struct {
	DateFormat     string `mapstructure:"date_format"`
	CurrencySymbol string `mapstructure:"currency_symbol"`
}

// Detector merges the configured overrides over the calibrated defaults.
func (a AnalyticsConfig) Detector() analytics.DetectorConfig {
	cfg := analytics.DefaultDetectorConfig()
	if a.SimilarityThreshold > 0 {
		cfg.SimilarityThreshold = a.SimilarityThreshold
	}
	if a.MinOccurrences > 0 {
		cfg.MinOccurrences = a.MinOccurrences
	}
	if a.FrequencyTolerance > 0 {
		cfg.FrequencyTolerance = a.FrequencyTolerance
	}
	if a.MinScore > 0 {
		cfg.MinScore = a.MinScore
	}
	return cfg
}

// Load reads configuration from file and env. Env var overrides use prefix
// HOMEFINANCE_.
func Load() (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("database.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "homefinance", "homefinance.db"))
	v.SetDefault("database.migrations_path", "internal/database/migrations")
	v.SetDefault("analytics.similarity_threshold", 0.0)
	v.SetDefault("analytics.min_occurrences", 0)
	v.SetDefault("analytics.frequency_tolerance", 0.0)
	v.SetDefault("analytics.min_score", 0)
	v.SetDefault("ui.date_format", "2006-01-02")
	v.SetDefault("ui.currency_symbol", "$")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("HOMEFINANCE_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "homefinance"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("HOMEFINANCE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}
