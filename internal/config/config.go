package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/caseprep/caseprep/internal/storage/s3"
	"github.com/caseprep/caseprep/pkg/api"
)

// Configuration represents the complete cache service configuration.
type Configuration struct {
	Global     GlobalConfig     `yaml:"global"`
	Cache      CacheConfig      `yaml:"cache"`
	Storage    StorageConfig    `yaml:"storage"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	API        api.ServerConfig `yaml:"api"`
}

// GlobalConfig represents global application settings.
type GlobalConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// CacheConfig represents the cache policy.
type CacheConfig struct {
	MaxAge             time.Duration `yaml:"max_age"`
	MaxEntries         int           `yaml:"max_entries"`
	CompressionEnabled bool          `yaml:"compression_enabled"`
	AutoCleanupEnabled bool          `yaml:"auto_cleanup_enabled"`
	CleanupInterval    time.Duration `yaml:"cleanup_interval"`
	DebounceWindow     time.Duration `yaml:"debounce_window"`
}

// StorageConfig selects and configures the durable tier.
type StorageConfig struct {
	Backend string          `yaml:"backend"` // "file" or "s3"
	File    FileStoreConfig `yaml:"file"`
	S3      s3.Config       `yaml:"s3"`
}

// FileStoreConfig represents the file-backed durable tier settings.
type FileStoreConfig struct {
	Path       string `yaml:"path"`
	QuotaBytes int64  `yaml:"quota_bytes"`
}

// MonitoringConfig represents monitoring settings.
type MonitoringConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig represents Prometheus metrics settings.
type MetricsConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Port           int           `yaml:"port"`
	Path           string        `yaml:"path"`
	Namespace      string        `yaml:"namespace"`
	UpdateInterval time.Duration `yaml:"update_interval"`
}

// NewDefault returns a configuration with sensible defaults.
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
		Cache: CacheConfig{
			MaxAge:             30 * time.Minute,
			MaxEntries:         1000,
			CompressionEnabled: true,
			AutoCleanupEnabled: true,
			CleanupInterval:    5 * time.Minute,
			DebounceWindow:     time.Second,
		},
		Storage: StorageConfig{
			Backend: "file",
			File: FileStoreConfig{
				Path:       "/var/cache/caseprep/analysis-cache.json",
				QuotaBytes: 16 * 1024 * 1024, // 16MB
			},
		},
		Monitoring: MonitoringConfig{
			Metrics: MetricsConfig{
				Enabled:        true,
				Port:           9090,
				Path:           "/metrics",
				Namespace:      "caseprep",
				UpdateInterval: 30 * time.Second,
			},
		},
		API: api.DefaultServerConfig(),
	}
}

// LoadFromFile loads configuration from a YAML file.
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv applies environment variable overrides.
func (c *Configuration) LoadFromEnv() error {
	if val := os.Getenv("CASEPREP_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = val
	}
	if val := os.Getenv("CASEPREP_LOG_FORMAT"); val != "" {
		c.Global.LogFormat = val
	}

	if val := os.Getenv("CASEPREP_CACHE_MAX_AGE"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Cache.MaxAge = d
		}
	}
	if val := os.Getenv("CASEPREP_CACHE_MAX_ENTRIES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Cache.MaxEntries = n
		}
	}
	if val := os.Getenv("CASEPREP_CACHE_COMPRESSION"); val != "" {
		c.Cache.CompressionEnabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("CASEPREP_CACHE_AUTO_CLEANUP"); val != "" {
		c.Cache.AutoCleanupEnabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("CASEPREP_CACHE_CLEANUP_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Cache.CleanupInterval = d
		}
	}

	if val := os.Getenv("CASEPREP_STORAGE_BACKEND"); val != "" {
		c.Storage.Backend = val
	}
	if val := os.Getenv("CASEPREP_STORAGE_FILE_PATH"); val != "" {
		c.Storage.File.Path = val
	}
	if val := os.Getenv("CASEPREP_STORAGE_QUOTA_BYTES"); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			c.Storage.File.QuotaBytes = n
		}
	}
	if val := os.Getenv("CASEPREP_S3_BUCKET"); val != "" {
		c.Storage.S3.Bucket = val
	}
	if val := os.Getenv("CASEPREP_S3_KEY"); val != "" {
		c.Storage.S3.Key = val
	}
	if val := os.Getenv("CASEPREP_S3_REGION"); val != "" {
		c.Storage.S3.Region = val
	}

	if val := os.Getenv("CASEPREP_METRICS_ENABLED"); val != "" {
		c.Monitoring.Metrics.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("CASEPREP_METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Monitoring.Metrics.Port = port
		}
	}
	if val := os.Getenv("CASEPREP_API_ADDRESS"); val != "" {
		c.API.Address = val
	}

	return nil
}

// Validate validates the configuration.
func (c *Configuration) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if strings.ToLower(c.Global.LogLevel) == level {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return fmt.Errorf("invalid log_level: %s (must be one of: %s)",
			c.Global.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.Cache.MaxAge <= 0 {
		return fmt.Errorf("cache max_age must be greater than 0")
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache max_entries must be greater than 0")
	}
	if c.Cache.AutoCleanupEnabled && c.Cache.CleanupInterval <= 0 {
		return fmt.Errorf("cleanup_interval must be greater than 0 when auto cleanup is enabled")
	}

	switch c.Storage.Backend {
	case "file":
		if c.Storage.File.Path == "" {
			return fmt.Errorf("storage file path cannot be empty")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" || c.Storage.S3.Key == "" {
			return fmt.Errorf("s3 storage requires bucket and key")
		}
	default:
		return fmt.Errorf("unknown storage backend: %s (must be file or s3)", c.Storage.Backend)
	}

	if c.Monitoring.Metrics.Enabled && c.Monitoring.Metrics.Port <= 0 {
		return fmt.Errorf("metrics port must be greater than 0 when metrics are enabled")
	}

	return nil
}
