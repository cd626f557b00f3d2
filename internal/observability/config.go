package observability

import (
	"os"
	"strconv"
	"strings"

	"github.com/tkwa12358/newenglish/internal/config"
)

// Config is the telemetry view of the gateway settings. Standard OTEL_*
// variables override what the application config provides.
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

const (
	defaultSamplingRatio = 0.1
	protocolGRPC         = "grpc"
	protocolHTTP         = "http/protobuf"
)

func LoadConfig(cfg config.Config) Config {
	env := envReader(os.Getenv)

	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "newenglish"
	}

	return Config{
		ServiceName: serviceName,
		Environment: env.str("DEPLOYMENT_ENV", cfg.Environment),
		Version:     env.str("SERVICE_VERSION", cfg.AppVersion),
		LogLevel:    strings.ToLower(env.str("LOG_LEVEL", "info")),
		LogFormat:   strings.ToLower(env.str("LOG_FORMAT", "json")),
		// Exporting is opt-in outside production; local runs have no collector.
		OtelEnabled:          env.boolean("OTEL_ENABLED", cfg.IsProduction()),
		OtelExporterEndpoint: env.str("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint),
		OtelExporterProtocol: exporterProtocol(env),
		OtelSamplingRatio:    samplingRatio(env.float("OTEL_SAMPLING_RATIO", defaultSamplingRatio)),
	}
}

// Debug reports whether verbose logging is wanted.
func (c Config) Debug() bool {
	if strings.EqualFold(strings.TrimSpace(c.LogLevel), "debug") {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

// exporterProtocol prefers the traces-specific variable and folds the http
// spellings into one value; anything unrecognised falls back to grpc.
func exporterProtocol(env envReader) string {
	raw := env.str("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", env.str("OTEL_EXPORTER_OTLP_PROTOCOL", protocolGRPC))
	switch strings.ToLower(raw) {
	case "http", "http/protobuf", "http/json":
		return protocolHTTP
	default:
		return protocolGRPC
	}
}

func samplingRatio(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

type envReader func(string) string

func (e envReader) str(key, def string) string {
	if value := strings.TrimSpace(e(key)); value != "" {
		return value
	}
	return strings.TrimSpace(def)
}

func (e envReader) boolean(key string, def bool) bool {
	switch strings.ToLower(e.str(key, "")) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	return def
}

func (e envReader) float(key string, def float64) float64 {
	parsed, err := strconv.ParseFloat(e.str(key, ""), 64)
	if err != nil {
		return def
	}
	return parsed
}
