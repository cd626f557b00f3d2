package observability

import (
	"time"

	"github.com/tkwa12358/newenglish/internal/observability/logger"
	"github.com/tkwa12358/newenglish/internal/observability/metrics"
	"github.com/tkwa12358/newenglish/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		provideLoggerConfig,
		logger.New,
		provideTracingConfig,
		tracing.NewProvider,
		provideMetricsConfig,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
		provideGatewayMetrics,
		provideGormLogger,
	),
	fx.Invoke(ensureTracingProvider),
)

func ensureTracingProvider(_ *sdktrace.TracerProvider) {}

func provideLoggerConfig(cfg Config) logger.Config {
	return logger.Config{
		ServiceName:         cfg.ServiceName,
		Environment:         cfg.Environment,
		Version:             cfg.Version,
		Level:               cfg.LogLevel,
		Format:              cfg.LogFormat,
		Debug:               cfg.Debug(),
		IncludeCaller:       true,
		IncludeStackOnError: cfg.Debug(),
	}
}

func provideTracingConfig(cfg Config) tracing.Config {
	return tracing.Config{
		Enabled:          cfg.OtelEnabled,
		ServiceName:      cfg.ServiceName,
		ServiceVersion:   cfg.Version,
		Environment:      cfg.Environment,
		ExporterEndpoint: cfg.OtelExporterEndpoint,
		ExporterProtocol: cfg.OtelExporterProtocol,
		SamplingRatio:    cfg.OtelSamplingRatio,
	}
}

func provideMetricsConfig(cfg Config) metrics.Config {
	return metrics.Config{
		Enabled:          cfg.OtelEnabled,
		ExporterEndpoint: cfg.OtelExporterEndpoint,
		ExporterProtocol: cfg.OtelExporterProtocol,
		ServiceName:      cfg.ServiceName,
		Environment:      cfg.Environment,
	}
}

func provideGatewayMetrics(cfg metrics.Config) *metrics.GatewayMetrics {
	return metrics.GatewayWithConfig(cfg)
}

func provideGormLogger(cfg Config, log *zap.Logger, gm *metrics.GatewayMetrics) *logger.GormLogger {
	gormCfg := logger.DefaultGormLoggerConfig()
	if cfg.Debug() {
		gormCfg.SlowThreshold = 100 * time.Millisecond
	}
	gormCfg.OnSlowQuery = gm.IncSlowQuery
	return logger.NewGormLogger(log, gormCfg)
}
