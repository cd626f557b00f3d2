package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	StoreErrorDeadlineExceeded     = "deadline_exceeded"
	StoreErrorLockTimeout          = "db_lock_timeout"
	StoreErrorSerializationFailure = "serialization_failure"
	StoreErrorUniqueViolation      = "unique_violation"
	StoreErrorDB                   = "db"
	StoreErrorUnknown              = "unknown"
)

const (
	ProviderOutcomeOK          = "ok"
	ProviderOutcomeUnavailable = "unavailable"
	ProviderOutcomeAuth        = "auth_failed"
	ProviderOutcomeMalformed   = "malformed"
	ProviderOutcomeOther       = "error"
)

// GatewayMetrics are the prometheus series scraped from /metrics. They cover
// the parts of an assessment that money depends on.
type GatewayMetrics struct {
	providerCalls    *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	billingFailures  *prometheus.CounterVec
	recordFailures   *prometheus.CounterVec
	quotaReversals   prometheus.Counter
	slowQueries      *prometheus.CounterVec
}

var (
	gatewayMetricsOnce sync.Once
	gatewayMetrics     *GatewayMetrics
)

// Gateway returns the process-wide gateway metrics.
func Gateway() *GatewayMetrics {
	return GatewayWithConfig(Config{})
}

func GatewayWithConfig(cfg Config) *GatewayMetrics {
	gatewayMetricsOnce.Do(func() {
		gatewayMetrics = newGatewayMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return gatewayMetrics
}

// NewGatewayMetricsForTest registers a fresh set on registerer.
func NewGatewayMetricsForTest(registerer prometheus.Registerer) *GatewayMetrics {
	return newGatewayMetrics(registerer, Config{ServiceName: "newenglish", Environment: "test"})
}

func newGatewayMetrics(registerer prometheus.Registerer, cfg Config) *GatewayMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "newenglish"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	providerCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "newenglish_provider_calls_total",
		Help:        "Vendor scoring calls by provider type and outcome.",
		ConstLabels: constLabels,
	}, []string{"provider_type", "outcome"})
	providerDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "newenglish_provider_call_duration_seconds",
		Help:        "Vendor scoring latency, which is also what users are billed on.",
		Buckets:     []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13, 21, 34, 60},
		ConstLabels: constLabels,
	}, []string{"provider_type"})
	billingFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "newenglish_billing_failures_total",
		Help:        "Successful assessments whose quota charge did not go through.",
		ConstLabels: constLabels,
	}, []string{"tier", "reason"})
	recordFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "newenglish_assessment_record_failures_total",
		Help:        "Assessment history rows that could not be written.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	quotaReversals := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "newenglish_quota_reversals_total",
		Help:        "Redemption credits taken back because the code could not be marked used.",
		ConstLabels: constLabels,
	})
	slowQueries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "newenglish_db_slow_queries_total",
		Help:        "Queries over the slow threshold by operation.",
		ConstLabels: constLabels,
	}, []string{"operation"})

	registerer.MustRegister(
		providerCalls,
		providerDuration,
		billingFailures,
		recordFailures,
		quotaReversals,
		slowQueries,
	)

	return &GatewayMetrics{
		providerCalls:    providerCalls,
		providerDuration: providerDuration,
		billingFailures:  billingFailures,
		recordFailures:   recordFailures,
		quotaReversals:   quotaReversals,
		slowQueries:      slowQueries,
	}
}

func (m *GatewayMetrics) ObserveProviderCall(providerType, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(providerType, outcome).Inc()
	m.providerDuration.WithLabelValues(providerType).Observe(elapsed.Seconds())
}

func (m *GatewayMetrics) IncBillingFailure(tier string, err error) {
	if m == nil {
		return
	}
	m.billingFailures.WithLabelValues(tier, ClassifyStoreError(err)).Inc()
}

func (m *GatewayMetrics) IncRecordFailure(err error) {
	if m == nil || err == nil {
		return
	}
	m.recordFailures.WithLabelValues(ClassifyStoreError(err)).Inc()
}

func (m *GatewayMetrics) IncQuotaReversal() {
	if m == nil {
		return
	}
	m.quotaReversals.Inc()
}

func (m *GatewayMetrics) IncSlowQuery(operation string, _ time.Duration) {
	if m == nil {
		return
	}
	m.slowQueries.WithLabelValues(operation).Inc()
}

// ClassifyStoreError maps persistence errors to a low-cardinality reason.
func ClassifyStoreError(err error) string {
	if err == nil {
		return StoreErrorUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return StoreErrorDeadlineExceeded
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || hasPGCode(err, "23505") {
		return StoreErrorUniqueViolation
	}
	if hasPGCode(err, "55P03") {
		return StoreErrorLockTimeout
	}
	if hasPGCode(err, "40001") {
		return StoreErrorSerializationFailure
	}
	if isDBError(err) {
		return StoreErrorDB
	}
	return StoreErrorUnknown
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidField) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrMissingWhereClause) ||
		errors.Is(err, gorm.ErrInvalidValue) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
