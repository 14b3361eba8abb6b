package observability

import (
	"strings"

	"github.com/smallbiznis/invoicedesk/internal/config"
)

// Config is the normalized view of the telemetry settings shared by the
// logger, tracer and meter providers.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "invoicedesk"
	}
	tel := cfg.Telemetry
	return Config{
		ServiceName:          serviceName,
		Environment:          strings.TrimSpace(cfg.Environment),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             lowerOr(tel.LogLevel, "info"),
		LogFormat:            lowerOr(tel.LogFormat, "json"),
		OtelEnabled:          tel.OtelEnabled,
		OtelExporterEndpoint: strings.TrimSpace(cfg.OTLPEndpoint),
		OtelExporterProtocol: lowerOr(tel.OtelProtocol, "grpc"),
		OtelSamplingRatio:    tel.SamplingRatio,
	}
}

// Debug is true for debug logging or any local environment.
func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func lowerOr(value, def string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return def
	}
	return value
}
