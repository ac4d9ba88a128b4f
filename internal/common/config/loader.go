// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like MAPS_API_KEY
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overlay, ignored if not present
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig()

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads .env from the working directory or any parent that
// holds go.mod, so tests under internal/... pick it up too.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders left in yaml values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "restaurant-insights"
	}
	if cfg.Maps.PlacesBaseURL == "" {
		cfg.Maps.PlacesBaseURL = "https://maps.googleapis.com/maps/api/place"
	}
	if cfg.Maps.GeocodingBaseURL == "" {
		cfg.Maps.GeocodingBaseURL = "https://maps.googleapis.com/maps/api/geocode"
	}
	if cfg.Maps.DistanceBaseURL == "" {
		cfg.Maps.DistanceBaseURL = "https://maps.googleapis.com/maps/api/distancematrix"
	}
	if cfg.Maps.Timeout == 0 {
		cfg.Maps.Timeout = 10
	}
	if cfg.GenAI.BaseURL == "" {
		cfg.GenAI.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if len(cfg.GenAI.Models) == 0 {
		cfg.GenAI.Models = []string{"gemini-1.5-flash", "gemini-1.0-pro"}
	}
	if cfg.GenAI.MaxRetries == 0 {
		cfg.GenAI.MaxRetries = 3
	}
	if cfg.GenAI.FirstAttemptTimeout == 0 {
		cfg.GenAI.FirstAttemptTimeout = 60 * time.Second
	}
	if cfg.GenAI.RetryTimeout == 0 {
		cfg.GenAI.RetryTimeout = 30 * time.Second
	}
	if cfg.GenAI.TopK == 0 {
		cfg.GenAI.TopK = 40
	}
	if cfg.GenAI.TopP == 0 {
		cfg.GenAI.TopP = 0.95
	}
	if cfg.GenAI.Temperature == 0 {
		cfg.GenAI.Temperature = 0.1
	}
	if cfg.GenAI.MaxOutputTokens == 0 {
		cfg.GenAI.MaxOutputTokens = 1024
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "file"
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = "cache"
	}
	if cfg.Reviews.CacheTTL == 0 {
		cfg.Reviews.CacheTTL = time.Hour
	}
	if cfg.Reviews.MaxCount == 0 {
		cfg.Reviews.MaxCount = 500
	}
	if cfg.Reviews.DefaultCount == 0 {
		cfg.Reviews.DefaultCount = 10
	}
	if cfg.Analysis.CacheTTL == 0 {
		cfg.Analysis.CacheTTL = 24 * time.Hour
	}
	if cfg.Analysis.MaxReviews == 0 {
		cfg.Analysis.MaxReviews = 30
	}
	if cfg.Search.DefaultRadius == 0 {
		cfg.Search.DefaultRadius = 1000
	}
	if cfg.Search.MinRadius == 0 {
		cfg.Search.MinRadius = 100
	}
	if cfg.Search.MaxRadius == 0 {
		cfg.Search.MaxRadius = 5000
	}
	if cfg.Search.DefaultMinReviews == 0 {
		cfg.Search.DefaultMinReviews = 100
	}
	if cfg.Search.DefaultMaxResults == 0 {
		cfg.Search.DefaultMaxResults = 5
	}
	if cfg.HTTP.MaxRetries == 0 {
		cfg.HTTP.MaxRetries = 3
	}
	if cfg.HTTP.RequestTimeout == 0 {
		cfg.HTTP.RequestTimeout = 10
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = ":9102"
	}
}
