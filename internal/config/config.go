package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string
	// SelectRateLimit caps panel reloads per client per minute; 0 disables.
	SelectRateLimit int

	// Analytics API
	AnalyticsBaseURL string
	RequestTimeout   time.Duration
	InsightTimeout   time.Duration

	// View models
	CategoryLimit int

	// Insight cache
	InsightCacheSize     int
	InsightCacheTTL      time.Duration
	CacheCleanupInterval time.Duration

	// AMQP (optional event sink)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	LogLevel string
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Port:                 "8081",
		SelectRateLimit:      30,
		AnalyticsBaseURL:     "http://localhost:8080",
		RequestTimeout:       10 * time.Second,
		InsightTimeout:       45 * time.Second,
		CategoryLimit:        5,
		InsightCacheSize:     128,
		InsightCacheTTL:      15 * time.Minute,
		CacheCleanupInterval: 5 * time.Minute,
		AMQPExchange:         "finsight",
		AMQPQueue:            "insight_events",
		LogLevel:             "info",
	}
}

// Load builds the configuration from defaults, then the optional file named
// by FINSIGHT_CONFIG, then environment variables.
func Load() (*Config, error) {
	return LoadWithFile(os.Getenv("FINSIGHT_CONFIG"))
}

// LoadWithFile is Load with an explicit configuration file. An empty path
// skips the file layer.
func LoadWithFile(path string) (*Config, error) {
	cfg := Default()

	if path = strings.TrimSpace(path); path != "" {
		fc, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		if err := fc.apply(cfg); err != nil {
			return nil, fmt.Errorf("apply config file %s: %w", path, err)
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.SelectRateLimit = getEnvInt("SELECT_RATE_LIMIT", cfg.SelectRateLimit)
	cfg.AnalyticsBaseURL = getEnv("ANALYTICS_BASE_URL", cfg.AnalyticsBaseURL)
	cfg.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.InsightTimeout = getEnvDuration("INSIGHT_TIMEOUT", cfg.InsightTimeout)
	cfg.CategoryLimit = getEnvInt("CATEGORY_LIMIT", cfg.CategoryLimit)
	cfg.InsightCacheSize = getEnvInt("INSIGHT_CACHE_SIZE", cfg.InsightCacheSize)
	cfg.InsightCacheTTL = getEnvDuration("INSIGHT_CACHE_TTL", cfg.InsightCacheTTL)
	cfg.CacheCleanupInterval = getEnvDuration("CACHE_CLEANUP_INTERVAL", cfg.CacheCleanupInterval)
	cfg.AMQPURL = getEnv("AMQP_URL", cfg.AMQPURL)
	cfg.AMQPExchange = getEnv("AMQP_EXCHANGE", cfg.AMQPExchange)
	cfg.AMQPQueue = getEnv("AMQP_QUEUE", cfg.AMQPQueue)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SelectRateLimit < 0 {
		errors = append(errors, fmt.Sprintf("invalid select rate limit %d: must not be negative", c.SelectRateLimit))
	}

	if c.AnalyticsBaseURL == "" {
		errors = append(errors, "analytics base URL cannot be empty")
	} else if parsedURL, err := url.Parse(c.AnalyticsBaseURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid analytics base URL '%s': %v", c.AnalyticsBaseURL, err))
	} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid analytics base URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
	} else if parsedURL.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid analytics base URL '%s': missing host", c.AnalyticsBaseURL))
	}

	if c.RequestTimeout < 100*time.Millisecond {
		errors = append(errors, fmt.Sprintf("invalid request timeout %v: must be at least 100ms", c.RequestTimeout))
	}
	if c.InsightTimeout < 100*time.Millisecond {
		errors = append(errors, fmt.Sprintf("invalid insight timeout %v: must be at least 100ms", c.InsightTimeout))
	} else if c.InsightTimeout > 10*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid insight timeout %v: must be at most 10 minutes", c.InsightTimeout))
	}

	if c.CategoryLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid category limit %d: must be at least 1", c.CategoryLimit))
	} else if c.CategoryLimit > 50 {
		errors = append(errors, fmt.Sprintf("invalid category limit %d: must be at most 50", c.CategoryLimit))
	}

	if c.InsightCacheSize < 0 {
		errors = append(errors, fmt.Sprintf("invalid insight cache size %d: must not be negative", c.InsightCacheSize))
	}
	if c.InsightCacheSize > 0 && c.InsightCacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid insight cache TTL %v: must be positive when the cache is enabled", c.InsightCacheTTL))
	}
	if c.CacheCleanupInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache cleanup interval %v: must be at least 1 second", c.CacheCleanupInterval))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of [debug info warn error]", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// EventsEnabled reports whether insight events should be published.
func (c *Config) EventsEnabled() bool {
	return c.AMQPURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
