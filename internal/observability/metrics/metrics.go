package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	assessments      metric.Int64Counter
	minutesCharged   metric.Int64Counter
	redemptions      metric.Int64Counter
	rateLimitAllowed metric.Int64Counter
	rateLimitDenied  metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "newenglish"
	}
	meter := provider.Meter(name)

	assessments, err := meter.Int64Counter("newenglish_assessments_total",
		metric.WithDescription("Assessment attempts by tier, provider type and outcome."))
	if err != nil {
		return nil, err
	}
	minutesCharged, err := meter.Int64Counter("newenglish_minutes_charged_total",
		metric.WithUnit("min"))
	if err != nil {
		return nil, err
	}
	redemptions, err := meter.Int64Counter("newenglish_code_redemptions_total")
	if err != nil {
		return nil, err
	}
	rateLimitAllowed, err := meter.Int64Counter("newenglish_rate_limit_allowed_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("newenglish_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		assessments:      assessments,
		minutesCharged:   minutesCharged,
		redemptions:      redemptions,
		rateLimitAllowed: rateLimitAllowed,
		rateLimitDenied:  rateLimitDenied,
	}, nil
}

// RecordAssessment counts one gateway call once its outcome is known.
func (m *Metrics) RecordAssessment(ctx context.Context, tier, providerType, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("tier", strings.TrimSpace(tier)),
		attribute.String("provider", strings.TrimSpace(providerType)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.assessments.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordMinutesCharged(ctx context.Context, tier string, minutes int64) {
	if m == nil || minutes <= 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("tier", strings.TrimSpace(tier)))
	m.minutesCharged.Add(ctx, minutes, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordRedemption(ctx context.Context, codeType, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("code_type", strings.TrimSpace(codeType)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.redemptions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitAllowed increments rate limit allow counts.
func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("endpoint", strings.TrimSpace(endpoint)))
	m.rateLimitAllowed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// User ids never become labels.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"tier":        {},
	"provider":    {},
	"outcome":     {},
	"code_type":   {},
	"endpoint":    {},
	"reason":      {},
	"method":      {},
	"route":       {},
	"status_code": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
