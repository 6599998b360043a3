package concurrency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigRespectsEnvironmentOverrides(t *testing.T) {
	t.Setenv("ARIADNE_MAX_CONCURRENT", "7")
	t.Setenv("ARIADNE_PAGE_SIZE", "250")
	t.Setenv("ARIADNE_REQUESTS_PER_SECOND", "3")
	t.Setenv("ARIADNE_OPERATION_TIMEOUT", "1500")
	t.Setenv("ARIADNE_BREAKER_THRESHOLD", "5")

	cfg := LoadConfig(DefaultGatewayConfig())

	assert.Equal(t, 7, cfg.MaxConcurrent)
	assert.Equal(t, MaxPageSize, cfg.PageSize, "page size is clamped to the API maximum")
	assert.Equal(t, 3.0, cfg.RequestsPerSecond)
	assert.Equal(t, 1, cfg.Burst)
	assert.Equal(t, 1500*time.Millisecond, cfg.OperationTimeout)
	assert.Equal(t, int64(5), cfg.BreakerThreshold)
	assert.Equal(t, 30*time.Second, cfg.BreakerResetTimeout)
	assert.Equal(t, ConfigSourceEnvVar, cfg.Source)
}

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	t.Setenv("ARIADNE_MAX_CONCURRENT", "not-a-number")

	cfg := LoadConfig(DefaultGatewayConfig())

	assert.Equal(t, DefaultMaxConcurrent, cfg.MaxConcurrent)
	assert.Equal(t, DefaultPageSize, cfg.PageSize)
	assert.Zero(t, cfg.RequestsPerSecond)
	assert.Zero(t, cfg.OperationTimeout)
	assert.Equal(t, ConfigSourceDefault, cfg.Source)
}

func TestNormalizeClampsInvalidValues(t *testing.T) {
	cfg := GatewayConfig{MaxConcurrent: -1, PageSize: 0, RequestsPerSecond: -2, OperationTimeout: -time.Second}.Normalize()

	assert.Equal(t, DefaultMaxConcurrent, cfg.MaxConcurrent)
	assert.Equal(t, DefaultPageSize, cfg.PageSize)
	assert.Zero(t, cfg.RequestsPerSecond)
	assert.Zero(t, cfg.Burst)
	assert.Zero(t, cfg.OperationTimeout)
	assert.Contains(t, cfg.String(), "MaxConcurrent: 3")
}
