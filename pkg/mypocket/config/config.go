package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Metadata MetadataConfig `mapstructure:"metadata"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release or test
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	Type string `mapstructure:"type"` // sqlite or postgres
	DSN  string `mapstructure:"dsn"`
}

// AuthConfig contains token settings
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// RedisConfig contains Redis settings. An empty URL disables Redis and the
// metadata cache falls back to process memory.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// MetadataConfig contains page-metadata fetcher settings
type MetadataConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	Rate     float64       `mapstructure:"rate"`
	Burst    int           `mapstructure:"burst"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// CORSConfig controls which browser origins may call the API. The dashboard
// and the browser extension are served from other origins.
type CORSConfig struct {
	AllowedOrigins   []string      `mapstructure:"allowed_origins"` // "*" allows any origin
	AllowedMethods   []string      `mapstructure:"allowed_methods"`
	AllowedHeaders   []string      `mapstructure:"allowed_headers"`
	ExposedHeaders   []string      `mapstructure:"exposed_headers"`
	AllowCredentials bool          `mapstructure:"allow_credentials"`
	MaxAge           time.Duration `mapstructure:"max_age"`
}

// AllowsAnyOrigin reports whether the wildcard origin is configured
func (c CORSConfig) AllowsAnyOrigin() bool {
	for _, origin := range c.AllowedOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// Load loads configuration from an optional file and MYPOCKET_* environment
// variables. An empty path searches ./config.yaml and /etc/mypocket.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/mypocket")
	}

	v.SetEnvPrefix("MYPOCKET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, everything has a default
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "mypocket.db")

	// Development only, set MYPOCKET_AUTH_JWT_SECRET in production
	v.SetDefault("auth.jwt_secret", "mypocket-dev-secret-change-in-production")
	v.SetDefault("auth.token_ttl", 24*time.Hour)

	v.SetDefault("redis.url", "")

	v.SetDefault("metadata.timeout", 2*time.Second)
	v.SetDefault("metadata.rate", 5.0)
	v.SetDefault("metadata.burst", 5)
	v.SetDefault("metadata.cache_ttl", time.Hour)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Authorization", "X-Correlation-ID"})
	v.SetDefault("cors.exposed_headers", []string{"X-Correlation-ID", "Content-Disposition"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 12*time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks values viper cannot check on its own
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database type %q", c.Database.Type)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Metadata.Timeout <= 0 {
		return errors.New("metadata.timeout must be positive")
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		return errors.New("cors.allowed_origins must not be empty")
	}
	if c.CORS.AllowCredentials && c.CORS.AllowsAnyOrigin() {
		return errors.New("cors.allow_credentials cannot be combined with origin \"*\"")
	}
	return nil
}
