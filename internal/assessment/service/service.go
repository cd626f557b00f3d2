package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/tkwa12358/newenglish/internal/assessment/domain"
	"github.com/tkwa12358/newenglish/internal/clock"
	"github.com/tkwa12358/newenglish/internal/config"
	obslogger "github.com/tkwa12358/newenglish/internal/observability/logger"
	"github.com/tkwa12358/newenglish/internal/observability/metrics"
	"github.com/tkwa12358/newenglish/internal/observability/tracing"
	quotadomain "github.com/tkwa12358/newenglish/internal/quota/domain"
	providerdomain "github.com/tkwa12358/newenglish/internal/speechprovider/domain"
	"github.com/tkwa12358/newenglish/pkg/db/pagination"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	tracerName = "newenglish/assessment"

	defaultLanguage     = "en-US"
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100

	outcomeSuccess       = "success"
	outcomeBillingFailed = "billing_failed"
	outcomeNoQuota       = "insufficient_balance"
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Cfg            config.Config
	Gateway        *config.GatewayConfigHolder
	Repo           domain.Repository
	Adapters       domain.AdapterBuilder
	Quota          quotadomain.Service
	Providers      providerdomain.Service
	Clock          clock.Clock
	Metrics        *metrics.Metrics        `optional:"true"`
	GatewayMetrics *metrics.GatewayMetrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	fallback  config.AIFallbackConfig
	gateway   *config.GatewayConfigHolder
	repo      domain.Repository
	adapters  domain.AdapterBuilder
	quota     quotadomain.Service
	providers providerdomain.Service
	clock     clock.Clock
	metrics   *metrics.Metrics
	gm        *metrics.GatewayMetrics
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("assessment.service"),
		genID:     p.GenID,
		fallback:  p.Cfg.AIFallback,
		gateway:   p.Gateway,
		repo:      p.Repo,
		adapters:  p.Adapters,
		quota:     p.Quota,
		providers: p.Providers,
		clock:     p.Clock,
		metrics:   p.Metrics,
		gm:        p.GatewayMetrics,
	}
}

// attempt carries what is known about one assessment as it moves through the
// pipeline, so every exit path can write the same record.
type attempt struct {
	req      domain.Request
	text     string
	language string
	started  time.Time
	balance  int64
	provider domain.AdapterConfig
	rowID    *snowflake.ID
}

func (s *Service) Assess(ctx context.Context, req domain.Request) (*domain.Response, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	if !req.Tier.Valid() {
		return nil, fmt.Errorf("%w: unknown tier", domain.ErrInvalidRequest)
	}

	language, languageOK := normalizeLanguage(req.Language)
	at := &attempt{
		req:      req,
		text:     strings.TrimSpace(req.OriginalText),
		language: language,
		started:  s.clock.Now(),
	}
	log := obslogger.WithContext(ctx, s.log).With(
		zap.String("user_id", req.UserID),
		zap.String("tier", req.Tier.String()),
	)

	balance, err := s.quota.EnsureAvailable(ctx, req.UserID, req.Tier)
	if err != nil {
		if errors.Is(err, quotadomain.ErrInsufficientBalance) {
			s.recordRejection(ctx, at, err)
			s.metrics.RecordAssessment(ctx, req.Tier.String(), "", outcomeNoQuota)
			return &domain.Response{Billed: false, RemainingMinutes: 0}, domain.ErrInsufficientBalance
		}
		return &domain.Response{Billed: false}, fmt.Errorf("check quota: %w", err)
	}
	at.balance = balance

	gw := s.gateway.Get()
	in, err := s.validate(req, gw)
	if err == nil && !languageOK {
		err = fmt.Errorf("%w: language must be one of en-US, zh-CN", domain.ErrInvalidRequest)
	}
	if err != nil {
		return &domain.Response{Billed: false, RemainingMinutes: balance}, err
	}
	in.Language = language

	row, err := s.providers.Resolve(ctx, req.Tier, req.ModelID)
	if err != nil {
		return s.fail(ctx, log, at, fmt.Errorf("%w: select provider: %w", domain.ErrProviderUnavailable, err))
	}
	at.provider = s.adapterConfig(row)
	if row != nil {
		id := row.ID
		at.rowID = &id
	}
	log = obslogger.WithProvider(log, at.provider.ProviderType, at.provider.Name)

	adapter, err := s.adapters.Build(at.provider)
	if err != nil {
		return s.fail(ctx, log, at, err)
	}

	result, err := s.callProvider(ctx, at.provider, adapter, in, req.Tier)
	if err != nil {
		return s.fail(ctx, log, at, err)
	}

	duration := s.billableSeconds(at.started, gw)
	resp := &domain.Response{
		Result:       result,
		ProviderName: at.provider.Name,
		ProviderType: at.provider.ProviderType,
	}
	record := s.newRecord(at, duration)
	applyResult(record, result)

	charge, err := s.quota.Charge(ctx, req.UserID, req.Tier, duration)
	if err != nil {
		msg := err.Error()
		resp.Billed = false
		resp.MinutesUsed = 0
		resp.BillingError = msg
		resp.RemainingMinutes = at.balance
		record.BillingError = &msg
		s.gm.IncBillingFailure(req.Tier.String(), err)
		s.metrics.RecordAssessment(ctx, req.Tier.String(), at.provider.ProviderType, outcomeBillingFailed)
		log.Error("billing failed after successful assessment", zap.Error(err))
	} else {
		resp.Billed = true
		resp.MinutesUsed = charge.MinutesCharged
		resp.RemainingMinutes = charge.NewBalance
		record.IsBilled = true
		record.MinutesCharged = charge.MinutesCharged
		s.metrics.RecordAssessment(ctx, req.Tier.String(), at.provider.ProviderType, outcomeSuccess)
		s.metrics.RecordMinutesCharged(ctx, req.Tier.String(), charge.MinutesCharged)
	}

	s.write(ctx, log, record)

	log.Info("assessment completed",
		zap.Int("overall_score", result.OverallScore),
		zap.Int("duration_seconds", duration),
		zap.Int64("minutes_used", resp.MinutesUsed),
		zap.Bool("billed", resp.Billed),
		zap.Bool("simulated", result.Simulated),
	)
	return resp, nil
}

func (s *Service) History(ctx context.Context, req domain.HistoryRequest) ([]domain.AssessmentRecord, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	limit := pagination.ClampPageSize(req.Limit, defaultHistoryLimit, maxHistoryLimit)
	items, err := s.repo.ListByUser(ctx, s.db, userID, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.AssessmentRecord{}
	}
	return items, nil
}

func (s *Service) validate(req domain.Request, gw config.GatewayConfig) (domain.Input, error) {
	text := strings.TrimSpace(req.OriginalText)
	if text == "" {
		return domain.Input{}, fmt.Errorf("%w: original_text is required", domain.ErrInvalidRequest)
	}

	audio, err := decodeAudio(req.AudioBase64)
	if err != nil {
		return domain.Input{}, fmt.Errorf("%w: audio_base64 is not valid base64", domain.ErrInvalidRequest)
	}
	if req.Tier == quotadomain.TierProfessional && len(audio) == 0 {
		return domain.Input{}, fmt.Errorf("%w: audio_base64 is required", domain.ErrInvalidRequest)
	}
	if gw.MaxAudioBytes > 0 && len(audio) > gw.MaxAudioBytes {
		return domain.Input{}, fmt.Errorf("%w: audio exceeds %d bytes", domain.ErrInvalidRequest, gw.MaxAudioBytes)
	}

	return domain.Input{Audio: audio, ReferenceText: text}, nil
}

var supportedLanguages = map[string]string{
	"en":    "en-US",
	"en-us": "en-US",
	"zh":    "zh-CN",
	"zh-cn": "zh-CN",
}

// normalizeLanguage maps the requested tag onto a supported one. An empty
// tag is en-US; an unknown tag reports false and yields en-US.
func normalizeLanguage(raw string) (string, bool) {
	tag := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), "_", "-"))
	if tag == "" {
		return defaultLanguage, true
	}
	if language, ok := supportedLanguages[tag]; ok {
		return language, true
	}
	return defaultLanguage, false
}

// decodeAudio accepts plain base64 or a data URL.
func decodeAudio(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "data:") {
		if idx := strings.Index(raw, ","); idx >= 0 {
			raw = raw[idx+1:]
		}
	}
	if b, err := base64.StdEncoding.DecodeString(raw); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(raw, "="))
}

// adapterConfig converts the selected row, or the built-in fallback when the
// tier has none.
func (s *Service) adapterConfig(row *providerdomain.ProviderConfig) domain.AdapterConfig {
	if row == nil {
		return domain.AdapterConfig{
			Name:             s.fallback.Name,
			ProviderType:     "ai_fallback",
			APIEndpoint:      s.fallback.BaseURL,
			APIKeySecretName: s.fallback.APIKeySecretName,
			Model:            s.fallback.Model,
		}
	}
	return domain.AdapterConfig{
		ProviderID:       row.ID.String(),
		Name:             row.Name,
		ProviderType:     row.ProviderType,
		APIEndpoint:      row.APIEndpoint,
		APIKeySecretName: row.APIKeySecretName,
		APISecretKeyName: row.APISecretKeyName,
		Region:           row.Region,
		Model:            row.ModelIdentifier,
		Options:          row.Options(),
	}
}

func (s *Service) callProvider(ctx context.Context, cfg domain.AdapterConfig, adapter domain.Adapter, in domain.Input, tier quotadomain.Tier) (*domain.Result, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "assessment.provider_call")
	defer span.End()
	span.SetAttributes(tracing.SafeAttributes(
		attribute.String("provider.type", cfg.ProviderType),
		attribute.String("provider.name", cfg.Name),
		attribute.String("assessment.tier", tier.String()),
	)...)

	start := s.clock.Now()
	result, err := adapter.Assess(ctx, in)
	elapsed := s.clock.Now().Sub(start)

	if err == nil && result == nil {
		err = fmt.Errorf("%w: adapter returned no result", domain.ErrMalformedResponse)
	}
	s.gm.ObserveProviderCall(cfg.ProviderType, providerOutcome(err), elapsed)

	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, domain.FailureKind(err))
		span.SetAttributes(attribute.String("assessment.outcome", domain.FailureKind(err)))
		return nil, err
	}
	span.SetAttributes(
		attribute.String("assessment.outcome", outcomeSuccess),
		attribute.Bool("assessment.simulated", result.Simulated),
	)
	return result, nil
}

// fail records an unbilled attempt and returns the balance untouched.
func (s *Service) fail(ctx context.Context, log *zap.Logger, at *attempt, cause error) (*domain.Response, error) {
	gw := s.gateway.Get()
	record := s.newRecord(at, s.billableSeconds(at.started, gw))
	msg := cause.Error()
	record.BillingError = &msg
	s.write(ctx, log, record)

	s.metrics.RecordAssessment(ctx, at.req.Tier.String(), at.provider.ProviderType, domain.FailureKind(cause))
	log.Warn("assessment failed, nothing billed",
		zap.String("failure", domain.FailureKind(cause)),
		zap.Error(cause),
	)

	return &domain.Response{
		ProviderName:     at.provider.Name,
		ProviderType:     at.provider.ProviderType,
		Billed:           false,
		RemainingMinutes: at.balance,
	}, fmt.Errorf("%w: %w", domain.ErrAssessmentFailed, cause)
}

func (s *Service) recordRejection(ctx context.Context, at *attempt, cause error) {
	record := s.newRecord(at, 0)
	msg := cause.Error()
	record.BillingError = &msg
	s.write(ctx, s.log, record)
}

func (s *Service) newRecord(at *attempt, duration int) *domain.AssessmentRecord {
	return &domain.AssessmentRecord{
		ID:              s.genID.Generate(),
		UserID:          at.req.UserID,
		Tier:            at.req.Tier,
		ProviderID:      at.rowID,
		ProviderName:    at.provider.Name,
		ProviderType:    at.provider.ProviderType,
		ReferenceText:   at.text,
		Language:        at.language,
		DurationSeconds: duration,
		CreatedAt:       s.clock.Now(),
	}
}

func applyResult(record *domain.AssessmentRecord, result *domain.Result) {
	record.OverallScore = result.OverallScore
	record.PronunciationScore = result.PronunciationScore
	record.AccuracyScore = result.AccuracyScore
	record.FluencyScore = result.FluencyScore
	record.CompletenessScore = result.CompletenessScore
	record.Feedback = result.Feedback
	record.Transcript = result.Transcript
	record.Simulated = result.Simulated
	if len(result.Words) > 0 {
		if b, err := json.Marshal(result.Words); err == nil {
			record.WordsResult = datatypes.JSON(b)
		}
	}
	if json.Valid(result.RawResponse) {
		record.RawResponse = datatypes.JSON(result.RawResponse)
	}
}

// write persists the audit record. A failure here never changes what the
// caller sees.
func (s *Service) write(ctx context.Context, log *zap.Logger, record *domain.AssessmentRecord) {
	if err := s.repo.Insert(ctx, s.db, record); err != nil {
		s.gm.IncRecordFailure(err)
		log.Error("failed to write assessment record",
			zap.String("record_id", record.ID.String()),
			zap.Error(err),
		)
	}
}

// billableSeconds approximates the clip length as processing time plus a
// fixed recording overhead.
func (s *Service) billableSeconds(started time.Time, gw config.GatewayConfig) int {
	elapsed := s.clock.Now().Sub(started).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	return int(math.Ceil(elapsed)) + gw.RecordingOverheadSeconds
}

func providerOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.ProviderOutcomeOK
	case errors.Is(err, domain.ErrAuthenticationFailed):
		return metrics.ProviderOutcomeAuth
	case errors.Is(err, domain.ErrMalformedResponse):
		return metrics.ProviderOutcomeMalformed
	case errors.Is(err, domain.ErrProviderUnavailable):
		return metrics.ProviderOutcomeUnavailable
	default:
		return metrics.ProviderOutcomeOther
	}
}
