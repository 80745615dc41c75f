// Package config loads behold process configuration from a YAML file and
// BEHOLD_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hupe1980/behold/persistence"
)

// Config holds all application configuration.
type Config struct {
	Store    StoreConfig    `mapstructure:"store"`
	Gallery  GalleryConfig  `mapstructure:"gallery"`
	Matcher  MatcherConfig  `mapstructure:"matcher"`
	Fallback FallbackConfig `mapstructure:"fallback"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Resource ResourceConfig `mapstructure:"resource"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// StoreConfig selects the record blob store.
// URL is a local directory, "s3://bucket/prefix" or "minio://bucket/prefix".
type StoreConfig struct {
	URL         string      `mapstructure:"url"`
	Compression string      `mapstructure:"compression"`
	S3          S3Config    `mapstructure:"s3"`
	MinIO       MinIOConfig `mapstructure:"minio"`
}

type S3Config struct {
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	PathStyle bool   `mapstructure:"path_style"`
}

type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// GalleryConfig locates the fallback signature database. Empty disables the fallback gallery.
type GalleryConfig struct {
	Path string `mapstructure:"path"`
}

type MatcherConfig struct {
	Ratio       float64 `mapstructure:"ratio"`
	MinMatches  int     `mapstructure:"min_matches"`
	MaxDistance float64 `mapstructure:"max_distance"`
}

type FallbackConfig struct {
	Threshold float64 `mapstructure:"threshold"`
}

type FetchConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxBytes          int64         `mapstructure:"max_bytes"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	AssetBaseURL      string        `mapstructure:"asset_base_url"`
}

type ResourceConfig struct {
	MaxConcurrentQueries int64 `mapstructure:"max_concurrent_queries"`
	MaxLoadWorkers       int   `mapstructure:"max_load_workers"`
	IOLimitBytesPerSec   int64 `mapstructure:"io_limit_bytes_per_sec"`
}

type ServerConfig struct {
	Addr       string `mapstructure:"addr"`
	CORSOrigin string `mapstructure:"cors_origin"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Environment string  `mapstructure:"environment"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.url", "./data")
	v.SetDefault("store.compression", "lz4")
	v.SetDefault("store.s3.region", "")
	v.SetDefault("store.s3.endpoint", "")
	v.SetDefault("store.s3.path_style", false)
	v.SetDefault("store.minio.endpoint", "localhost:9000")
	v.SetDefault("store.minio.access_key", "")
	v.SetDefault("store.minio.secret_key", "")
	v.SetDefault("store.minio.use_ssl", false)
	v.SetDefault("gallery.path", "")
	v.SetDefault("matcher.ratio", 0.75)
	v.SetDefault("matcher.min_matches", 6)
	v.SetDefault("matcher.max_distance", 0.0)
	v.SetDefault("fallback.threshold", 0.9)
	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.max_bytes", 16<<20)
	v.SetDefault("fetch.requests_per_second", 5.0)
	v.SetDefault("fetch.asset_base_url", "")
	v.SetDefault("resource.max_concurrent_queries", 0)
	v.SetDefault("resource.max_load_workers", 8)
	v.SetDefault("resource.io_limit_bytes_per_sec", 0)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cors_origin", "*")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.environment", "development")
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if c.Matcher.Ratio <= 0 || c.Matcher.Ratio > 1 {
		warnings = append(warnings, fmt.Sprintf("matcher ratio %.2f is outside (0, 1]; the default 0.75 is used", c.Matcher.Ratio))
	}
	if c.Matcher.MinMatches < 1 {
		warnings = append(warnings, fmt.Sprintf("matcher min_matches %d accepts results without any match", c.Matcher.MinMatches))
	}
	if c.Fallback.Threshold < 0 || c.Fallback.Threshold > 1 {
		warnings = append(warnings, fmt.Sprintf("fallback threshold %.2f is outside [0, 1]", c.Fallback.Threshold))
	}
	if _, err := persistence.ParseCompression(c.Store.Compression); err != nil {
		warnings = append(warnings, fmt.Sprintf("store compression %q is unknown", c.Store.Compression))
	}
	if strings.HasPrefix(c.Store.URL, "minio://") && c.Store.MinIO.AccessKey == "" {
		warnings = append(warnings, "minio store is configured but access_key is empty")
	}

	return warnings
}

// Load reads configuration from path (optional) and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("BEHOLD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return &cfg, nil
}
