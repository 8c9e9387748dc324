// Package config provides configuration management for the tiered cache
// service. It handles loading configuration from environment variables
// with sensible defaults and validates the configuration so the service
// starts safely.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Admin server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//
// Redis Configuration (remote tier; leave REDIS_ADDRESS empty to run
// without a remote tier):
//   - REDIS_ADDRESS: Redis server address (default: empty, remote tier disabled)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//   - REMOTE_TIMEOUT: Per-operation remote tier timeout (default: 2s)
//
// Cache Defaults (per-instance overrides live in the registry policies):
//   - MEMORY_MAX_ENTRIES: Memory tier capacity per instance (default: 1000)
//   - MEMORY_MAX_VALUE_BYTES: Largest cacheable value, 0 = unlimited (default: 1048576)
//   - MEMORY_SWEEP_INTERVAL: Expired-entry sweep interval (default: 1m)
//   - MEMORY_TTL: Default memory tier TTL (default: 5m)
//   - REMOTE_TTL: Default remote tier TTL (default: 30m)
//
// Example usage:
//
//	cfg := config.Load()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid configuration: %v", err)
//	}
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the cache service. All string
// fields correspond to environment variables that can be set to override
// the default values.
type Config struct {
	// Application settings
	Port     string // Admin server port number
	LogLevel string // Logging level (debug, info, warn, error)

	// Redis configuration for the remote tier
	RedisAddress  string // Redis server address (host:port); empty disables the remote tier
	RedisPassword string // Redis authentication password
	RedisDB       string // Redis database number (0-15)
	RedisPoolSize string // Redis connection pool size
	RemoteTimeout string // Per-operation timeout for remote tier calls

	// Cache defaults
	MemoryMaxEntries    string // Memory tier capacity per instance
	MemoryMaxValueBytes string // Largest value a tier will store (0 = unlimited)
	MemorySweepInterval string // Interval between expired-entry sweeps
	MemoryTTL           string // Default memory tier TTL
	RemoteTTL           string // Default remote tier TTL
}

// Load creates a new Config instance with values loaded from environment
// variables. If an environment variable is not set, the corresponding
// default value is used. Call Validate() before using the result.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Redis configuration
		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),
		RedisPoolSize: getEnv("REDIS_POOL_SIZE", "10"),
		RemoteTimeout: getEnv("REMOTE_TIMEOUT", "2s"),

		// Cache defaults
		MemoryMaxEntries:    getEnv("MEMORY_MAX_ENTRIES", "1000"),
		MemoryMaxValueBytes: getEnv("MEMORY_MAX_VALUE_BYTES", "1048576"),
		MemorySweepInterval: getEnv("MEMORY_SWEEP_INTERVAL", "1m"),
		MemoryTTL:           getEnv("MEMORY_TTL", "5m"),
		RemoteTTL:           getEnv("REMOTE_TTL", "30m"),
	}
}

// RemoteEnabled reports whether a remote tier should be constructed.
func (c *Config) RemoteEnabled() bool {
	return c.RedisAddress != ""
}

// Validate performs validation on the configuration to ensure all values
// are well formed. The application should call this after Load and before
// starting.
func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
		return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
	}

	if size, err := strconv.Atoi(c.RedisPoolSize); err != nil || size < 1 {
		return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
	}

	if _, err := time.ParseDuration(c.RemoteTimeout); err != nil {
		return fmt.Errorf("REMOTE_TIMEOUT must be a valid duration: %w", err)
	}

	if n, err := strconv.Atoi(c.MemoryMaxEntries); err != nil || n < 1 {
		return fmt.Errorf("MEMORY_MAX_ENTRIES must be a positive number")
	}

	if n, err := strconv.Atoi(c.MemoryMaxValueBytes); err != nil || n < 0 {
		return fmt.Errorf("MEMORY_MAX_VALUE_BYTES must be zero or a positive number")
	}

	for name, value := range map[string]string{
		"MEMORY_SWEEP_INTERVAL": c.MemorySweepInterval,
		"MEMORY_TTL":            c.MemoryTTL,
		"REMOTE_TTL":            c.RemoteTTL,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s must be a valid duration: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	return nil
}

// GetRedisDB returns the Redis database number as an integer.
func (c *Config) GetRedisDB() int {
	db, _ := strconv.Atoi(c.RedisDB)
	return db
}

// GetRedisPoolSize returns the Redis pool size as an integer.
func (c *Config) GetRedisPoolSize() int {
	size, _ := strconv.Atoi(c.RedisPoolSize)
	return size
}

// GetRemoteTimeout returns the remote tier timeout as a duration.
func (c *Config) GetRemoteTimeout() time.Duration {
	d, _ := time.ParseDuration(c.RemoteTimeout)
	return d
}

// GetMemoryMaxEntries returns the memory tier capacity as an integer.
func (c *Config) GetMemoryMaxEntries() int {
	n, _ := strconv.Atoi(c.MemoryMaxEntries)
	return n
}

// GetMemoryMaxValueBytes returns the value size limit as an integer.
func (c *Config) GetMemoryMaxValueBytes() int {
	n, _ := strconv.Atoi(c.MemoryMaxValueBytes)
	return n
}

// GetMemorySweepInterval returns the expired-entry sweep interval as a duration.
func (c *Config) GetMemorySweepInterval() time.Duration {
	d, _ := time.ParseDuration(c.MemorySweepInterval)
	return d
}

// GetMemoryTTL returns the default memory tier TTL as a duration.
func (c *Config) GetMemoryTTL() time.Duration {
	d, _ := time.ParseDuration(c.MemoryTTL)
	return d
}

// GetRemoteTTL returns the default remote tier TTL as a duration.
func (c *Config) GetRemoteTTL() time.Duration {
	d, _ := time.ParseDuration(c.RemoteTTL)
	return d
}

// getEnv retrieves an environment variable value or returns a default
// value if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
