// Package config provides configuration management for the cache subsystem.
// It handles loading configuration from environment variables with sensible
// defaults and validates the configuration so the process starts safely.
//
// Environment Variables:
//
// Cache Settings:
//   - CACHE_L1_CAPACITY: Maximum number of L1 entries (default: 1000)
//   - CACHE_L1_DEFAULT_TTL: Default TTL for L1 entries and L2 backfill (default: 300s)
//   - CACHE_L2_DEFAULT_TTL: Default TTL for L2 entries (default: 300s)
//   - CACHE_MAINTENANCE_INTERVAL: Background sweep interval (default: 300s)
//   - CACHE_MAINTENANCE_RETRY: Sweep retry interval after a failed tick (default: 60s)
//   - CACHE_WARMUP_TTL: TTL for warmed-up entries (default: 600s)
//   - CACHE_KEY_PREFIX: Prefix prepended to every L2 key (default: empty)
//   - CACHE_SINGLE_FLIGHT: De-duplicate concurrent computes per key (default: true)
//
// Redis Configuration:
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//   - REDIS_OP_TIMEOUT: Per-operation timeout (default: 250ms)
//
// Logging:
//   - LOG_LEVEL: Logging level (default: info)
//   - LOG_FILE: Log file path (default: stdout)
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the cache subsystem.
// Load it with Load() and call Validate() before use.
type Config struct {
	LogLevel string // Logging level (debug, info, warn, error)

	// L1 (in-process) cache settings
	L1Capacity   int           // Maximum number of entries in the local store
	L1DefaultTTL time.Duration // TTL applied on L2-to-L1 backfill

	// L2 (shared) cache settings
	L2DefaultTTL time.Duration // Default TTL for remote entries
	KeyPrefix    string        // Namespacing prefix for every remote key

	// Background maintenance
	MaintenanceInterval time.Duration // Sweep interval
	MaintenanceRetry    time.Duration // Shorter interval after a failed tick
	WarmupTTL           time.Duration // TTL for warmed-up entries

	// Coordinator behavior
	SingleFlight bool // De-duplicate concurrent computes for a cold key

	// Redis connection settings
	RedisAddress   string        // Redis server address (host:port)
	RedisPassword  string        // Redis authentication password
	RedisDB        int           // Redis database number (0-15)
	RedisPoolSize  int           // Redis connection pool size
	RedisOpTimeout time.Duration // Bounded timeout carried by every remote operation
}

// Load creates a new Config instance with values loaded from environment
// variables, falling back to defaults for anything unset. It does not
// validate; call Validate() on the result.
func Load() *Config {
	return &Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),

		L1Capacity:   getIntEnv("CACHE_L1_CAPACITY", 1000),
		L1DefaultTTL: getDurationEnv("CACHE_L1_DEFAULT_TTL", 300*time.Second),

		L2DefaultTTL: getDurationEnv("CACHE_L2_DEFAULT_TTL", 300*time.Second),
		KeyPrefix:    getEnv("CACHE_KEY_PREFIX", ""),

		MaintenanceInterval: getDurationEnv("CACHE_MAINTENANCE_INTERVAL", 300*time.Second),
		MaintenanceRetry:    getDurationEnv("CACHE_MAINTENANCE_RETRY", 60*time.Second),
		WarmupTTL:           getDurationEnv("CACHE_WARMUP_TTL", 600*time.Second),

		SingleFlight: getBoolEnv("CACHE_SINGLE_FLIGHT", true),

		RedisAddress:   getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getIntEnv("REDIS_DB", 0),
		RedisPoolSize:  getIntEnv("REDIS_POOL_SIZE", 10),
		RedisOpTimeout: getDurationEnv("REDIS_OP_TIMEOUT", 250*time.Millisecond),
	}
}

// getEnv retrieves an environment variable value or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv retrieves a boolean environment variable value or returns a default value.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getIntEnv retrieves an integer environment variable value or returns a default value.
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDurationEnv retrieves a duration environment variable value or returns a
// default value. A bare number is interpreted as seconds, so "300" and "300s"
// are equivalent.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

// Validate checks that all values are present and within valid ranges.
// Call it after Load() and before wiring the cache.
func (c *Config) Validate() error {
	if c.L1Capacity < 1 {
		return fmt.Errorf("CACHE_L1_CAPACITY must be a positive number")
	}
	if c.L1DefaultTTL <= 0 {
		return fmt.Errorf("CACHE_L1_DEFAULT_TTL must be a positive duration")
	}
	if c.L2DefaultTTL <= 0 {
		return fmt.Errorf("CACHE_L2_DEFAULT_TTL must be a positive duration")
	}
	if c.MaintenanceInterval <= 0 {
		return fmt.Errorf("CACHE_MAINTENANCE_INTERVAL must be a positive duration")
	}
	if c.MaintenanceRetry <= 0 {
		return fmt.Errorf("CACHE_MAINTENANCE_RETRY must be a positive duration")
	}
	if c.WarmupTTL <= 0 {
		return fmt.Errorf("CACHE_WARMUP_TTL must be a positive duration")
	}

	if c.RedisAddress == "" {
		return fmt.Errorf("REDIS_ADDRESS is required")
	}
	if c.RedisDB < 0 || c.RedisDB > 15 {
		return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
	}
	if c.RedisPoolSize < 1 {
		return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
	}
	if c.RedisOpTimeout <= 0 {
		return fmt.Errorf("REDIS_OP_TIMEOUT must be a positive duration")
	}

	return nil
}
