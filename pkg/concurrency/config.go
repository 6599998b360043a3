package concurrency

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ConfigSource indicates where the configuration came from
type ConfigSource string

const (
	ConfigSourceEnvVar  ConfigSource = "environment_variable"
	ConfigSourceFile    ConfigSource = "file"
	ConfigSourceDefault ConfigSource = "default"
)

const (
	// DefaultMaxConcurrent matches the Notion API guidance of three requests in flight.
	DefaultMaxConcurrent = 3

	// DefaultPageSize is the child page size requested per block fetch.
	DefaultPageSize = 100

	// MaxPageSize is the upper bound accepted by the block children endpoint.
	MaxPageSize = 100

	defaultBreakerResetTimeout = 30 * time.Second
)

// GatewayConfig holds the admission parameters of a Gateway and the
// traversal page size. Zero values disable the optional features.
type GatewayConfig struct {
	// MaxConcurrent is the number of remote operations allowed in flight
	MaxConcurrent int `yaml:"max_concurrent"`

	// PageSize is the number of child blocks requested per fetch (1..100)
	PageSize int `yaml:"page_size"`

	// RequestsPerSecond enables a token bucket on top of the concurrency cap
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the token bucket size, defaults to 1 when rate limiting is on
	Burst int `yaml:"burst"`

	// OperationTimeout bounds each admitted operation
	OperationTimeout time.Duration `yaml:"operation_timeout"`

	// BreakerThreshold opens the circuit after that many consecutive failures
	BreakerThreshold int64 `yaml:"breaker_threshold"`

	// BreakerResetTimeout is how long the circuit stays open before probing
	BreakerResetTimeout time.Duration `yaml:"breaker_reset_timeout"`

	Source ConfigSource `yaml:"-"`
}

// DefaultGatewayConfig returns the reference admission policy: three
// concurrent operations, pages of 100, no rate limit, no deadline, no breaker.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		MaxConcurrent: DefaultMaxConcurrent,
		PageSize:      DefaultPageSize,
		Source:        ConfigSourceDefault,
	}
}

// LoadConfig overlays ARIADNE_* environment variables on base.
func LoadConfig(base GatewayConfig) GatewayConfig {
	config := base

	if v := getEnvInt("ARIADNE_MAX_CONCURRENT", 0); v > 0 {
		config.MaxConcurrent = v
		config.Source = ConfigSourceEnvVar
	}
	if v := getEnvInt("ARIADNE_PAGE_SIZE", 0); v > 0 {
		config.PageSize = v
		config.Source = ConfigSourceEnvVar
	}
	if v := getEnvFloat("ARIADNE_REQUESTS_PER_SECOND", 0); v > 0 {
		config.RequestsPerSecond = v
		config.Source = ConfigSourceEnvVar
	}
	if v := getEnvInt("ARIADNE_RATE_BURST", 0); v > 0 {
		config.Burst = v
	}
	if v := getEnvDuration("ARIADNE_OPERATION_TIMEOUT", 0); v > 0 {
		config.OperationTimeout = v
		config.Source = ConfigSourceEnvVar
	}
	if v := getEnvInt("ARIADNE_BREAKER_THRESHOLD", 0); v > 0 {
		config.BreakerThreshold = int64(v)
		config.Source = ConfigSourceEnvVar
	}
	if v := getEnvDuration("ARIADNE_BREAKER_RESET_TIMEOUT", 0); v > 0 {
		config.BreakerResetTimeout = v
	}

	return config.Normalize()
}

// Normalize clamps values into their valid ranges
func (c GatewayConfig) Normalize() GatewayConfig {
	if c.MaxConcurrent < 1 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.PageSize < 1 {
		c.PageSize = DefaultPageSize
	}
	if c.PageSize > MaxPageSize {
		c.PageSize = MaxPageSize
	}
	if c.RequestsPerSecond < 0 {
		c.RequestsPerSecond = 0
	}
	if c.RequestsPerSecond > 0 && c.Burst < 1 {
		c.Burst = 1
	}
	if c.OperationTimeout < 0 {
		c.OperationTimeout = 0
	}
	if c.BreakerThreshold > 0 && c.BreakerResetTimeout <= 0 {
		c.BreakerResetTimeout = defaultBreakerResetTimeout
	}
	if c.Source == "" {
		c.Source = ConfigSourceDefault
	}
	return c
}

// getEnvInt retrieves an integer from environment variable with default fallback
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float from environment variable with default fallback
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("5s") or plain milliseconds ("5000")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}

// String returns a formatted string representation of the config
func (c GatewayConfig) String() string {
	return fmt.Sprintf(
		"GatewayConfig{MaxConcurrent: %d, PageSize: %d, RequestsPerSecond: %g, Burst: %d, OperationTimeout: %s, BreakerThreshold: %d, Source: %s}",
		c.MaxConcurrent,
		c.PageSize,
		c.RequestsPerSecond,
		c.Burst,
		c.OperationTimeout,
		c.BreakerThreshold,
		c.Source,
	)
}
