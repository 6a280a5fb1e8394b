// Package config loads the server configuration.
//
// Values come, by increasing priority, from defaults, an optional YAML, TOML
// or JSON file, SLIDE_ prefixed environment variables and command line flags
// bound by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ironsheep/slide-server/internal/params"
)

// EnvPrefix prefixes environment variables: SLIDE_LISTEN, SLIDE_CACHE_SIZE_MB...
const EnvPrefix = "SLIDE"

// Config is the server configuration.
type Config struct {
	Listen string `mapstructure:"listen"`
	// Root is the directory images are served from.
	Root string `mapstructure:"root"`

	OutputSizeLimit int    `mapstructure:"output_size_limit"`
	DefaultSafeMode string `mapstructure:"default_safe_mode"`
	TileSize        int    `mapstructure:"tile_size"`
	OpenImages      int    `mapstructure:"open_images"`

	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
	RequestTimeoutSeconds  int `mapstructure:"request_timeout_seconds"`

	Cache CacheConfig `mapstructure:"cache"`
	CORS  CORSConfig  `mapstructure:"cors"`
	Log   LogConfig   `mapstructure:"log"`
}

// CacheConfig sizes the encoded response cache.
type CacheConfig struct {
	SizeMB     int `mapstructure:"size_mb"`
	TTLSeconds int `mapstructure:"ttl_seconds"`
}

// CORSConfig lists the origins allowed to call the server.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig controls logging. An empty File logs to stderr only.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("listen", "localhost:5000")
	v.SetDefault("root", ".")
	v.SetDefault("output_size_limit", params.DefaultOutputSizeLimit)
	v.SetDefault("default_safe_mode", string(params.SafeReject))
	v.SetDefault("tile_size", 256)
	v.SetDefault("open_images", 32)
	v.SetDefault("shutdown_timeout_seconds", 10)
	v.SetDefault("request_timeout_seconds", 60)
	v.SetDefault("cache.size_mb", 64)
	v.SetDefault("cache.ttl_seconds", 0)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_age_days", 28)
}

// New returns a viper instance with defaults and environment lookup set up.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile reads the config file at path into v. With an empty path, the
// file .slide-server.yaml of the home directory is read if it exists.
//
// Returns the file used, empty when none was found.
func ReadFile(v *viper.Viper, path string) (string, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", nil
		}
		v.AddConfigPath(home)
		v.SetConfigType("yaml")
		v.SetConfigName(".slide-server")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read config file: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// Load decodes v into a validated Config.
func Load(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("invalid configuration: listen address is empty")
	}
	if c.Root == "" {
		return fmt.Errorf("invalid configuration: image root is empty")
	}
	if c.OutputSizeLimit <= 0 {
		return fmt.Errorf("invalid configuration: output_size_limit must be positive, got %d", c.OutputSizeLimit)
	}
	if _, err := params.ParseSafeMode(c.DefaultSafeMode, ""); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.TileSize < 16 {
		return fmt.Errorf("invalid configuration: tile_size must be at least 16, got %d", c.TileSize)
	}
	if c.OpenImages <= 0 {
		return fmt.Errorf("invalid configuration: open_images must be positive, got %d", c.OpenImages)
	}
	if c.ShutdownTimeoutSeconds < 0 || c.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("invalid configuration: timeouts cannot be negative")
	}
	if c.Cache.SizeMB < 0 || c.Cache.TTLSeconds < 0 {
		return fmt.Errorf("invalid configuration: cache size and ttl cannot be negative")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid configuration: unknown log level %q", c.Log.Level)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxAgeDays < 0 {
		return fmt.Errorf("invalid configuration: log rotation limits cannot be negative")
	}
	return nil
}

// SafeMode returns the parsed default safe mode.
func (c *Config) SafeMode() params.SafeMode {
	m, err := params.ParseSafeMode(c.DefaultSafeMode, params.SafeReject)
	if err != nil {
		return params.SafeReject
	}
	return m
}

// CacheBytes is the response cache size in bytes.
func (c *Config) CacheBytes() int { return c.Cache.SizeMB << 20 }

// CacheTTL is the response cache entry lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// ShutdownTimeout bounds graceful shutdown.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// RequestTimeout bounds the handling of one request. Zero means no limit.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}
