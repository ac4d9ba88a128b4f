// internal/common/config/config.go
package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Maps     MapsConfig     `mapstructure:"maps"`
	GenAI    GenAIConfig    `mapstructure:"genai"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Reviews  ReviewsConfig  `mapstructure:"reviews"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Search   SearchConfig   `mapstructure:"search"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// MapsConfig holds settings for the mapping provider APIs.
type MapsConfig struct {
	APIKey           string `mapstructure:"api_key"`
	PlacesBaseURL    string `mapstructure:"places_base_url"`
	GeocodingBaseURL string `mapstructure:"geocoding_base_url"`
	DistanceBaseURL  string `mapstructure:"distance_base_url"`
	Timeout          int    `mapstructure:"timeout"` // seconds
}

// GenAIConfig holds settings for the generative text endpoint.
type GenAIConfig struct {
	APIKey              string        `mapstructure:"api_key"`
	BaseURL             string        `mapstructure:"base_url"`
	Models              []string      `mapstructure:"models"`
	MaxRetries          int           `mapstructure:"max_retries"`
	FirstAttemptTimeout time.Duration `mapstructure:"first_attempt_timeout"`
	RetryTimeout        time.Duration `mapstructure:"retry_timeout"`
	Temperature         float64       `mapstructure:"temperature"`
	TopK                int           `mapstructure:"top_k"`
	TopP                float64       `mapstructure:"top_p"`
	MaxOutputTokens     int           `mapstructure:"max_output_tokens"`
}

// CacheConfig selects and locates the cache backend.
type CacheConfig struct {
	// Backend is "file" or "redis".
	Backend string      `mapstructure:"backend"`
	Dir     string      `mapstructure:"dir"`
	Redis   RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// FilePath resolves a cache file name against the cache directory.
func (c CacheConfig) FilePath(name string) string {
	return filepath.Join(c.Dir, name)
}

// ReviewsConfig holds settings for the review store.
type ReviewsConfig struct {
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	MaxCount     int           `mapstructure:"max_count"`
	DefaultCount int           `mapstructure:"default_count"`
}

// AnalysisConfig holds settings for the summary store.
type AnalysisConfig struct {
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
	MaxReviews int           `mapstructure:"max_reviews"`
}

// SearchConfig holds settings for restaurant discovery.
type SearchConfig struct {
	DefaultRadius     int `mapstructure:"default_radius"` // meters
	MinRadius         int `mapstructure:"min_radius"`
	MaxRadius         int `mapstructure:"max_radius"`
	DefaultMinReviews int `mapstructure:"default_min_reviews"`
	DefaultMaxResults int `mapstructure:"default_max_results"`
}

// HTTPConfig holds outbound HTTP behavior shared by the API clients.
type HTTPConfig struct {
	MaxRetries     int `mapstructure:"max_retries"`
	RequestTimeout int `mapstructure:"request_timeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig holds the /metrics listener settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// Validate checks cross-field constraints that viper cannot express.
func (c *Config) Validate() error {
	if c.Search.DefaultRadius < c.Search.MinRadius || c.Search.DefaultRadius > c.Search.MaxRadius {
		return fmt.Errorf("search.default_radius must be between %d and %d", c.Search.MinRadius, c.Search.MaxRadius)
	}
	if c.Cache.Backend != "file" && c.Cache.Backend != "redis" {
		return fmt.Errorf("cache.backend must be \"file\" or \"redis\", got %q", c.Cache.Backend)
	}
	if c.Reviews.MaxCount < 1 {
		return fmt.Errorf("reviews.max_count must be positive")
	}
	return nil
}
