package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/tkwa12358/newenglish/internal/config"
	"github.com/tkwa12358/newenglish/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	EndpointAssessment = "assessment"
	EndpointRedeem     = "redeem"

	keyBucket = "newenglish:ratelimit:%s:%s"
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle `optional:"true"`
	Cfg       config.Config
	Gateway   *config.GatewayConfigHolder
	Log       *zap.Logger
	Metrics   *metrics.Metrics `optional:"true"`
}

// Limiter throttles assessments and redemptions per user. A nil or
// disabled Limiter allows everything.
type Limiter struct {
	client  *redis.Client
	bucket  *TokenBucket
	codes   *codeLock
	gateway *config.GatewayConfigHolder
	log     *zap.Logger
	metrics *metrics.Metrics
}

func New(p Params) *Limiter {
	log := p.Log.Named("ratelimit")
	addr := strings.TrimSpace(p.Cfg.Redis.Addr)
	if addr == "" {
		log.Info("rate limiting disabled, REDIS_ADDR is empty")
		return &Limiter{gateway: p.Gateway, log: log, metrics: p.Metrics}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(p.Cfg.Redis.Password),
		DB:       p.Cfg.Redis.DB,
	})
	if p.Lifecycle != nil {
		p.Lifecycle.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return client.Close()
			},
		})
	}
	return newLimiter(client, p.Gateway, log, p.Metrics)
}

func newLimiter(client *redis.Client, gateway *config.GatewayConfigHolder, log *zap.Logger, m *metrics.Metrics) *Limiter {
	return &Limiter{
		client:  client,
		bucket:  NewTokenBucket(client),
		codes:   newCodeLock(client),
		gateway: gateway,
		log:     log,
		metrics: m,
	}
}

func (l *Limiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *Limiter) AllowAssessment(ctx context.Context, userID string) (*Result, error) {
	rl := l.rates()
	return l.allow(ctx, EndpointAssessment, userID, rl.AssessmentRate, rl.AssessmentBurst)
}

func (l *Limiter) AllowRedeem(ctx context.Context, userID string) (*Result, error) {
	rl := l.rates()
	return l.allow(ctx, EndpointRedeem, userID, rl.RedeemRate, rl.RedeemBurst)
}

func (l *Limiter) rates() config.RateLimitConfig {
	if l == nil {
		return config.RateLimitConfig{}
	}
	return l.gateway.Get().RateLimit
}

// allow fails open on redis errors; the error is still returned so the
// caller can log it.
func (l *Limiter) allow(ctx context.Context, endpoint, userID string, rate float64, burst int) (*Result, error) {
	if !l.Enabled() || rate <= 0 || burst <= 0 {
		return &Result{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyBucket, endpoint, strings.TrimSpace(userID))
	res, err := l.bucket.Allow(ctx, key, rate, burst)
	if err != nil {
		l.log.Warn("rate limit check failed, allowing request", zap.String("endpoint", endpoint), zap.Error(err))
		l.metrics.RecordRateLimitAllowed(ctx, endpoint)
		return &Result{Allowed: true}, err
	}
	if res.Allowed {
		l.metrics.RecordRateLimitAllowed(ctx, endpoint)
	} else {
		l.metrics.RecordRateLimitDenied(ctx, endpoint, "token_bucket")
	}
	return res, nil
}

// LockCode serializes concurrent redemptions of the same code. The returned
// release func is always safe to call.
func (l *Limiter) LockCode(ctx context.Context, code string) (func(), bool, error) {
	noop := func() {}
	if !l.Enabled() {
		return noop, true, nil
	}
	key, holder, ok, err := l.codes.acquire(ctx, code)
	if err != nil {
		l.log.Warn("redeem lock failed, continuing without it", zap.Error(err))
		return noop, true, err
	}
	if !ok {
		return noop, false, nil
	}
	return func() {
		if err := l.codes.unlock(context.WithoutCancel(ctx), key, holder); err != nil {
			l.log.Warn("failed to release redeem lock", zap.Error(err))
		}
	}, true, nil
}
