package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"
)

// FileConfig mirrors Config for TOML, YAML and JSON files. Durations are
// Go duration strings ("30s", "5m"). Zero values leave the defaults alone.
type FileConfig struct {
	Port             string `json:"port" yaml:"port" toml:"port"`
	SelectRateLimit  *int   `json:"select_rate_limit" yaml:"select_rate_limit" toml:"select_rate_limit"`
	AnalyticsBaseURL string `json:"analytics_base_url" yaml:"analytics_base_url" toml:"analytics_base_url"`
	RequestTimeout   string `json:"request_timeout" yaml:"request_timeout" toml:"request_timeout"`
	InsightTimeout   string `json:"insight_timeout" yaml:"insight_timeout" toml:"insight_timeout"`
	CategoryLimit    int    `json:"category_limit" yaml:"category_limit" toml:"category_limit"`
	LogLevel         string `json:"log_level" yaml:"log_level" toml:"log_level"`

	Cache struct {
		Size            int    `json:"size" yaml:"size" toml:"size"`
		TTL             string `json:"ttl" yaml:"ttl" toml:"ttl"`
		CleanupInterval string `json:"cleanup_interval" yaml:"cleanup_interval" toml:"cleanup_interval"`
	} `json:"cache" yaml:"cache" toml:"cache"`

	AMQP struct {
		URL      string `json:"url" yaml:"url" toml:"url"`
		Exchange string `json:"exchange" yaml:"exchange" toml:"exchange"`
		Queue    string `json:"queue" yaml:"queue" toml:"queue"`
	} `json:"amqp" yaml:"amqp" toml:"amqp"`
}

// LoadFile reads a TOML, YAML or JSON configuration file, chosen by
// extension.
func LoadFile(path string) (*FileConfig, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory, not a file", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var fc FileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("error parsing TOML file: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("error parsing YAML file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("error parsing JSON file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}
	return &fc, nil
}

func (fc *FileConfig) apply(cfg *Config) error {
	setString(&cfg.Port, fc.Port)
	setString(&cfg.AnalyticsBaseURL, fc.AnalyticsBaseURL)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.AMQPURL, fc.AMQP.URL)
	setString(&cfg.AMQPExchange, fc.AMQP.Exchange)
	setString(&cfg.AMQPQueue, fc.AMQP.Queue)
	if fc.SelectRateLimit != nil {
		cfg.SelectRateLimit = *fc.SelectRateLimit
	}
	if fc.CategoryLimit != 0 {
		cfg.CategoryLimit = fc.CategoryLimit
	}
	if fc.Cache.Size != 0 {
		cfg.InsightCacheSize = fc.Cache.Size
	}

	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"request_timeout", fc.RequestTimeout, &cfg.RequestTimeout},
		{"insight_timeout", fc.InsightTimeout, &cfg.InsightTimeout},
		{"cache.ttl", fc.Cache.TTL, &cfg.InsightCacheTTL},
		{"cache.cleanup_interval", fc.Cache.CleanupInterval, &cfg.CacheCleanupInterval},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.name, d.value, err)
		}
		*d.dst = parsed
	}
	return nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}
