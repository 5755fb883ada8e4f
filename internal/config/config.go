package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values
type Config struct {
	Server     ServerConfig
	Backend    BackendConfig
	Matomo     MatomoConfig
	Redis      RedisConfig
	Security   SecurityConfig
	Proxy      ProxyConfig
	Storefront StorefrontConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           string
	Env            string
	Version        string
	AllowedOrigins []string
}

// IsDevelopment reports whether the server runs in development mode.
func (c ServerConfig) IsDevelopment() bool {
	return c.Env == "development"
}

// BackendConfig points at the marketplace API.
type BackendConfig struct {
	URL     string
	Timeout time.Duration
}

// MatomoConfig holds analytics proxy settings
type MatomoConfig struct {
	URL    string
	Token  string
	SiteID string
}

// Enabled reports whether the analytics proxy has everything it needs.
func (c MatomoConfig) Enabled() bool {
	return c.URL != "" && c.Token != ""
}

// RedisConfig holds Redis configuration. An empty URL keeps session
// snapshots in memory.
type RedisConfig struct {
	URL      string
	PASSWORD string
	Prefix   string
}

// SecurityConfig holds security encryption keys
type SecurityConfig struct {
	SessionEncryptionKey string
}

// ProxyConfig bounds the product update proxy.
type ProxyConfig struct {
	ProductUpdateTimeout time.Duration
	MaxImageBytes        int64
	MaxTotalBytes        int64
}

// StorefrontConfig drives the terminal client.
type StorefrontConfig struct {
	CartSyncInterval time.Duration
	PersistDebounce  time.Duration
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "3000"),
			Env:            getEnvFirst([]string{"NODE_ENV", "SERVER_ENV"}, "development"),
			Version:        getEnv("APP_VERSION", "1.0.0"),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		},
		Backend: BackendConfig{
			URL:     strings.TrimRight(getEnvFirst([]string{"BACKEND_URL", "NEXT_PUBLIC_BACKEND_URL"}, "http://localhost:8080"), "/"),
			Timeout: getEnvAsDuration("BACKEND_TIMEOUT", 30*time.Second),
		},
		Matomo: MatomoConfig{
			URL:    strings.TrimRight(getEnv("NEXT_PUBLIC_MATOMO_URL", ""), "/"),
			Token:  getEnv("MATOMO_TOKEN", ""),
			SiteID: getEnv("MATOMO_SITE_ID", "1"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			PASSWORD: getEnv("REDIS_PASSWORD", ""),
			Prefix:   getEnv("REDIS_PREFIX", "storefront:"),
		},
		Security: SecurityConfig{
			SessionEncryptionKey: getEnv("SESSION_ENCRYPTION_KEY", "0000000000000000000000000000000000000000000000000000000000000000"), // 32-bytes hex string
		},
		Proxy: ProxyConfig{
			ProductUpdateTimeout: getEnvAsDuration("PRODUCT_UPDATE_TIMEOUT", 5*time.Minute),
			MaxImageBytes:        int64(getEnvAsInt("MAX_IMAGE_MB", 10)) << 20,
			MaxTotalBytes:        int64(getEnvAsInt("MAX_UPLOAD_MB", 100)) << 20,
		},
		Storefront: StorefrontConfig{
			CartSyncInterval: getEnvAsDuration("CART_SYNC_INTERVAL", 0),
			PersistDebounce:  500 * time.Millisecond,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFirst(keys []string, defaultValue string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
