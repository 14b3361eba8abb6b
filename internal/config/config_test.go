package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadTelemetryFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "")
	t.Setenv("OTEL_ENABLED", "yes")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "http")
	t.Setenv("OTEL_SAMPLING_RATIO", "not-a-number")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4318")

	cfg := Load()
	assert.Equal(t, TelemetryConfig{
		LogLevel:      "debug",
		LogFormat:     "json",
		OtelEnabled:   true,
		OtelProtocol:  "http",
		SamplingRatio: 0.1,
	}, cfg.Telemetry)
	assert.Equal(t, "otel:4318", cfg.OTLPEndpoint)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("IDEMPOTENCY_BACKEND", "Redis")
	t.Setenv("IDEMPOTENCY_TTL", "90m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test,")

	cfg := Load()
	assert.Equal(t, ":5000", cfg.ListenAddr())
	assert.Equal(t, IdempotencyBackendRedis, cfg.Idempotency.Backend)
	assert.Equal(t, 90*time.Minute, cfg.Idempotency.TTL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSAllowedOrigins)

	t.Setenv("IDEMPOTENCY_BACKEND", "memcached")
	t.Setenv("IDEMPOTENCY_TTL", "-1s")
	cfg = Load()
	assert.Equal(t, IdempotencyBackendBolt, cfg.Idempotency.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL)
}
