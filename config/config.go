package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Scrape     ScrapeConfig
	Gemini     GeminiConfig
	Perplexity PerplexityConfig
	Vision     VisionConfig
	Catalog    CatalogConfig
	Pricing    PricingConfig
	Cache      CacheConfig
	RateLimit  RateLimitConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ScrapeConfig holds credentials for the scraping provider
type ScrapeConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	BaseURL  string `mapstructure:"base_url"`
}

// GeminiConfig holds the Gemini estimator configuration
type GeminiConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// PerplexityConfig holds the Perplexity estimator configuration
type PerplexityConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// VisionConfig holds the screenshot identification configuration
type VisionConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// CatalogConfig holds the product catalog service configuration
type CatalogConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// PricingConfig bounds price plausibility and the scrape fan-out
type PricingConfig struct {
	MinPrice      float64       `mapstructure:"min_price"`
	MaxPrice      float64       `mapstructure:"max_price"`
	Workers       int           `mapstructure:"workers"`
	TaskTimeout   time.Duration `mapstructure:"task_timeout"`
	GroupDeadline time.Duration `mapstructure:"group_deadline"`
	MaxSearchURLs int           `mapstructure:"max_search_urls"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type     string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerMinute int `mapstructure:"per_minute"`
}

// Load loads configuration from a .env file, environment variables and
// optional config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/pricecheck/")

	// Environment variable settings
	v.SetEnvPrefix("PRICECHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using environment variables and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads a .env file when one is present. Values already in the
// environment win over file values.
func loadEnvFile() error {
	if _, err := os.Stat(".env"); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load()
}

// setDefaults sets default configuration values. Every key is registered
// here so environment overrides survive Unmarshal, credentials included.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"chrome-extension://*"})

	// Scraping provider defaults
	v.SetDefault("scrape.username", "")
	v.SetDefault("scrape.password", "")
	v.SetDefault("scrape.base_url", "https://realtime.oxylabs.io")

	// Estimator defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("perplexity.api_key", "")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar")

	// Screenshot identification defaults
	v.SetDefault("vision.api_key", "")
	v.SetDefault("vision.model", "gpt-4o-mini")

	// Product catalog defaults
	v.SetDefault("catalog.base_url", "")
	v.SetDefault("catalog.api_key", "")

	// Pricing defaults
	v.SetDefault("pricing.min_price", 5.0)
	v.SetDefault("pricing.max_price", 50000.0)
	v.SetDefault("pricing.workers", 8)
	v.SetDefault("pricing.task_timeout", "25s")
	v.SetDefault("pricing.group_deadline", "40s")
	v.SetDefault("pricing.max_search_urls", 15)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "24h")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_minute", 100)
}

// validate validates the configuration. Provider credentials stay optional
// because the service degrades per provider instead of refusing to start.
func validate(config *Config) error {
	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	if config.Pricing.MinPrice <= 0 {
		return fmt.Errorf("pricing.min_price must be positive, got: %v", config.Pricing.MinPrice)
	}

	if config.Pricing.MaxPrice <= config.Pricing.MinPrice {
		return fmt.Errorf("pricing.max_price must exceed min_price, got: %v <= %v",
			config.Pricing.MaxPrice, config.Pricing.MinPrice)
	}

	if config.Pricing.Workers <= 0 {
		return fmt.Errorf("pricing.workers must be positive, got: %d", config.Pricing.Workers)
	}

	if config.Pricing.TaskTimeout >= config.Pricing.GroupDeadline {
		return fmt.Errorf("pricing.task_timeout (%v) must be below group_deadline (%v)",
			config.Pricing.TaskTimeout, config.Pricing.GroupDeadline)
	}

	if config.RateLimit.PerMinute <= 0 {
		return fmt.Errorf("ratelimit.per_minute must be positive, got: %d", config.RateLimit.PerMinute)
	}

	return nil
}
