// Package config loads client configuration from an optional file and the
// environment using Viper. Environment variables use the STOREFRONT_ prefix,
// e.g. STOREFRONT_BASE_URL or STOREFRONT_STORAGE_DRIVER.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "STOREFRONT"

// Storage drivers understood by the CLI.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
)

// Config holds client configuration. It satisfies storefront.Config.
type Config struct {
	// BaseURL is the API root, including the version prefix.
	BaseURL string `mapstructure:"base_url"`
	// RequestTimeout bounds every HTTP request (e.g. "30s").
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// ClockSkew is tolerated when checking credential expiry.
	ClockSkew time.Duration `mapstructure:"clock_skew"`
	// TokenStorageKey is the persistence key for the raw credential.
	TokenStorageKey string `mapstructure:"token_storage_key"`
	// RolesStorageKey is the persistence key for the cached role list.
	RolesStorageKey string `mapstructure:"roles_storage_key"`
	// PhoneRegion is the ISO region used to parse phone numbers without a country code.
	PhoneRegion string `mapstructure:"phone_region"`
	// JWKSURL enables signature verification of credentials when set.
	JWKSURL string `mapstructure:"jwks_url"`

	StorageDriver string `mapstructure:"storage_driver"`
	SQLitePath    string `mapstructure:"sqlite_path"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisDB       int    `mapstructure:"redis_db"`
	LogLevel      string `mapstructure:"log_level"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		BaseURL:         "http://localhost:8080/api/v1",
		RequestTimeout:  30 * time.Second,
		ClockSkew:       30 * time.Second,
		TokenStorageKey: "jwtToken",
		RolesStorageKey: "userRoles",
		PhoneRegion:     "IN",
		StorageDriver:   StorageMemory,
		SQLitePath:      "storefront.db",
		RedisAddr:       "localhost:6379",
		LogLevel:        "info",
	}
}

// Load reads the optional config file at path (any format Viper supports),
// applies environment overrides and validates the result. An empty path
// skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	def := Defaults()

	v.SetDefault("base_url", def.BaseURL)
	v.SetDefault("request_timeout", def.RequestTimeout)
	v.SetDefault("clock_skew", def.ClockSkew)
	v.SetDefault("token_storage_key", def.TokenStorageKey)
	v.SetDefault("roles_storage_key", def.RolesStorageKey)
	v.SetDefault("phone_region", def.PhoneRegion)
	v.SetDefault("jwks_url", "")
	v.SetDefault("storage_driver", def.StorageDriver)
	v.SetDefault("sqlite_path", def.SQLitePath)
	v.SetDefault("redis_addr", def.RedisAddr)
	v.SetDefault("redis_db", 0)
	v.SetDefault("log_level", def.LogLevel)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required fields and enumerations.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: base_url must be an absolute URL, got %q", c.BaseURL)
	}
	if c.RequestTimeout <= 0 {
		return errors.New("config: request_timeout must be positive")
	}
	if c.ClockSkew < 0 {
		return errors.New("config: clock_skew must not be negative")
	}
	if strings.TrimSpace(c.TokenStorageKey) == "" || strings.TrimSpace(c.RolesStorageKey) == "" {
		return errors.New("config: storage keys are required")
	}
	if c.TokenStorageKey == c.RolesStorageKey {
		return errors.New("config: token and roles storage keys must differ")
	}

	switch c.StorageDriver {
	case StorageMemory, StorageSQLite, StorageRedis:
	default:
		return fmt.Errorf("config: unknown storage_driver %q", c.StorageDriver)
	}

	return nil
}

func (c *Config) GetBaseURL() string {
	return c.BaseURL
}

func (c *Config) GetRequestTimeout() time.Duration {
	return c.RequestTimeout
}

func (c *Config) GetClockSkew() time.Duration {
	return c.ClockSkew
}

func (c *Config) GetTokenStorageKey() string {
	return c.TokenStorageKey
}

func (c *Config) GetRolesStorageKey() string {
	return c.RolesStorageKey
}

func (c *Config) GetPhoneRegion() string {
	return c.PhoneRegion
}

func (c *Config) GetJWKSURL() string {
	return c.JWKSURL
}
