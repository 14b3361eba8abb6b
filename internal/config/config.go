package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	Port        string

	OTLPEndpoint string
	Telemetry    TelemetryConfig

	// DatabaseURL takes precedence over the discrete DB* fields when set.
	DatabaseURL       string
	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBDebug           bool

	SnowflakeNode int64

	CORSAllowedOrigins []string

	Idempotency IdempotencyConfig
	Redis       RedisConfig

	DisplayConfigDir string
}

type IdempotencyConfig struct {
	Backend  string
	BoltPath string
	TTL      time.Duration
}

// TelemetryConfig carries the LOG_* and OTEL_* settings.
type TelemetryConfig struct {
	LogLevel      string
	LogFormat     string
	OtelEnabled   bool
	OtelProtocol  string
	SamplingRatio float64
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

const (
	IdempotencyBackendBolt  = "bolt"
	IdempotencyBackendRedis = "redis"
	IdempotencyBackendNone  = "none"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "invoicedesk"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		Port:         getenv("PORT", "5000"),
		OTLPEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", getenv("OTLP_ENDPOINT", "localhost:4317")),
		Telemetry: TelemetryConfig{
			LogLevel:      getenv("LOG_LEVEL", "info"),
			LogFormat:     getenv("LOG_FORMAT", "json"),
			OtelEnabled:   getenvBool("OTEL_ENABLED", false),
			OtelProtocol:  getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"),
			SamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},
		DatabaseURL:        strings.TrimSpace(getenv("DATABASE_URL", "")),
		DBType:             getenv("DATABASE_TYPE", "postgres"),
		DBHost:             getenv("DATABASE_HOST", "localhost"),
		DBPort:             getenv("DATABASE_PORT", "5432"),
		DBName:             getenv("DATABASE_NAME", "invoicedesk"),
		DBUser:             getenv("DATABASE_USER", "postgres"),
		DBPassword:         getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:          getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:      getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:      getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime:  getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime:  getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		DBDebug:            getenvBool("DATABASE_DEBUG", false),
		SnowflakeNode:      getenvInt64("SNOWFLAKE_NODE", 1),
		CORSAllowedOrigins: parseList(getenv("CORS_ALLOWED_ORIGINS", "*")),
		Idempotency: IdempotencyConfig{
			Backend:  normalizeBackend(getenv("IDEMPOTENCY_BACKEND", IdempotencyBackendBolt)),
			BoltPath: getenv("IDEMPOTENCY_BOLT_PATH", "idempotency.db"),
			TTL:      getenvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		},
		Redis: RedisConfig{
			Addr:     getenv("REDIS_ADDR", "localhost:6379"),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		DisplayConfigDir: strings.TrimSpace(getenv("DISPLAY_CONFIG_DIR", "")),
	}

	return cfg
}

// ListenAddr returns the address the HTTP server binds to.
func (c Config) ListenAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "5000"
	}
	if strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}

func normalizeBackend(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case IdempotencyBackendRedis, IdempotencyBackendNone:
		return value
	default:
		return IdempotencyBackendBolt
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
