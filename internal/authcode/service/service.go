package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/tkwa12358/newenglish/internal/audit/domain"
	"github.com/tkwa12358/newenglish/internal/authcode/domain"
	"github.com/tkwa12358/newenglish/internal/clock"
	"github.com/tkwa12358/newenglish/internal/config"
	"github.com/tkwa12358/newenglish/internal/observability/metrics"
	"github.com/tkwa12358/newenglish/internal/providers/pdf"
	quotadomain "github.com/tkwa12358/newenglish/internal/quota/domain"
	"github.com/tkwa12358/newenglish/pkg/db"
	"github.com/tkwa12358/newenglish/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	codeAlphabet   = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength     = 12
	codeGroupSize  = 4
	maxGenerate    = 500
	insertAttempts = 3

	defaultListLimit = 100
	maxListLimit     = 1000
	maxExport        = 1000
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Repo           domain.Repository
	Quota          quotadomain.Service
	Gateway        *config.GatewayConfigHolder
	PDF            pdf.Provider
	Clock          clock.Clock
	AuditSvc       auditdomain.Service     `optional:"true"`
	Metrics        *metrics.Metrics        `optional:"true"`
	GatewayMetrics *metrics.GatewayMetrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	quota    quotadomain.Service
	gateway  *config.GatewayConfigHolder
	pdf      pdf.Provider
	clock    clock.Clock
	auditSvc auditdomain.Service
	metrics  *metrics.Metrics
	gm       *metrics.GatewayMetrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("authcode.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		quota:    p.Quota,
		gateway:  p.Gateway,
		pdf:      p.PDF,
		clock:    p.Clock,
		auditSvc: p.AuditSvc,
		metrics:  p.Metrics,
		gm:       p.GatewayMetrics,
	}
}

// Redeem credits the code's minutes and then marks it used. The credit and
// the mark are separate statements; when the mark loses a race the credit
// is reverted.
func (s *Service) Redeem(ctx context.Context, userID, code string) (*domain.RedeemResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidUser
	}
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, domain.ErrInvalidCode
	}

	item, err := s.repo.FindUnused(ctx, s.db, normalized)
	if err != nil {
		return nil, err
	}
	if item == nil {
		s.metrics.RecordRedemption(ctx, "", "invalid")
		return nil, domain.ErrInvalidOrUsedCode
	}

	now := s.clock.Now()
	if item.ExpiresAt != nil && item.ExpiresAt.Before(now) {
		s.metrics.RecordRedemption(ctx, item.CodeType, "expired")
		return nil, domain.ErrExpired
	}

	tier, minutes := s.entitlement(item)

	credit, err := s.quota.Credit(ctx, userID, tier, minutes)
	if err != nil {
		return nil, fmt.Errorf("credit %s minutes: %w", tier, err)
	}

	won, markErr := s.repo.MarkUsed(ctx, s.db, item.ID, userID, now)
	if markErr != nil || !won {
		if err := s.quota.Revert(ctx, userID, tier, minutes); err != nil {
			s.log.Error("failed to revert redemption credit",
				zap.String("user_id", userID),
				zap.String("code_id", item.ID.String()),
				zap.Int64("minutes", minutes),
				zap.Error(err),
			)
		} else {
			s.gm.IncQuotaReversal()
		}
		if markErr != nil {
			return nil, fmt.Errorf("mark code used: %w", markErr)
		}
		s.metrics.RecordRedemption(ctx, item.CodeType, "raced")
		return nil, domain.ErrInvalidOrUsedCode
	}

	s.audit(ctx, auditdomain.ActorTypeUser, &userID, auditdomain.ActionCodeRedeem, item.ID.String(), map[string]any{
		"code_type": item.CodeType,
		"tier":      tier.String(),
		"minutes":   minutes,
	})
	s.metrics.RecordRedemption(ctx, item.CodeType, "success")

	return &domain.RedeemResult{
		MinutesAdded: minutes,
		TotalMinutes: credit.NewBalance,
		Tier:         tier,
		CodeType:     item.CodeType,
	}, nil
}

// entitlement resolves the pool and amount for a code, falling back to the
// catalog and then to the built-in default.
func (s *Service) entitlement(item *domain.AuthorizationCode) (quotadomain.Tier, int64) {
	catalog, known := s.gateway.Get().CodeType(item.CodeType)

	tier := item.Tier
	if !tier.Valid() && known {
		tier, _ = quotadomain.ParseTier(catalog.Tier)
	}
	if !tier.Valid() {
		tier = quotadomain.TierProfessional
	}

	minutes := item.MinutesAmount
	if minutes <= 0 && known {
		minutes = catalog.Minutes
	}
	if minutes <= 0 {
		minutes = domain.DefaultMinutes
	}
	return tier, minutes
}

func (s *Service) Generate(ctx context.Context, req domain.GenerateRequest) ([]domain.AuthorizationCode, error) {
	catalog, ok := s.gateway.Get().CodeType(req.CodeType)
	if !ok {
		return nil, domain.ErrInvalidCodeType
	}
	tier, err := quotadomain.ParseTier(catalog.Tier)
	if err != nil {
		return nil, domain.ErrInvalidCodeType
	}
	if req.Count < 1 || req.Count > maxGenerate {
		return nil, domain.ErrInvalidCount
	}

	now := s.clock.Now()
	var expiresAt *time.Time
	if req.ExpiresInDays > 0 {
		at := now.AddDate(0, 0, req.ExpiresInDays)
		expiresAt = &at
	}

	out := make([]domain.AuthorizationCode, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		item := domain.AuthorizationCode{
			ID:            s.genID.Generate(),
			CodeType:      catalog.Name,
			Tier:          tier,
			MinutesAmount: catalog.Minutes,
			ExpiresAt:     expiresAt,
			CreatedAt:     now,
		}
		if err := s.insertUnique(ctx, &item); err != nil {
			return nil, err
		}
		out = append(out, item)
	}

	s.audit(ctx, "", nil, auditdomain.ActionCodeGenerate, "", map[string]any{
		"code_type":       catalog.Name,
		"count":           len(out),
		"expires_in_days": req.ExpiresInDays,
	})
	s.log.Info("authorization codes generated",
		zap.String("code_type", catalog.Name),
		zap.Int("count", len(out)),
	)
	return out, nil
}

func (s *Service) insertUnique(ctx context.Context, item *domain.AuthorizationCode) error {
	var lastErr error
	for attempt := 0; attempt < insertAttempts; attempt++ {
		code, err := GenerateCode()
		if err != nil {
			return err
		}
		item.Code = code
		lastErr = s.repo.Insert(ctx, s.db, item)
		if lastErr == nil {
			return nil
		}
		if !db.IsDuplicateKeyErr(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("allocate unique code: %w", lastErr)
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.AuthorizationCode, error) {
	limit := pagination.ClampPageSize(req.Limit, defaultListLimit, maxListLimit)
	items, err := s.repo.List(ctx, s.db, req.Used, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.AuthorizationCode{}
	}
	return items, nil
}

func (s *Service) ExportPDF(ctx context.Context, req domain.ExportRequest) (io.Reader, error) {
	var (
		items []domain.AuthorizationCode
		err   error
	)
	if len(req.IDs) > 0 {
		ids := make([]snowflake.ID, 0, len(req.IDs))
		for _, raw := range req.IDs {
			id, parseErr := snowflake.ParseString(strings.TrimSpace(raw))
			if parseErr != nil || id == 0 {
				return nil, domain.ErrInvalidCode
			}
			ids = append(ids, id)
		}
		items, err = s.repo.ListByIDs(ctx, s.db, ids)
	} else {
		var used *bool
		if req.UnusedOnly {
			unused := false
			used = &unused
		}
		items, err = s.repo.List(ctx, s.db, used, maxExport)
	}
	if err != nil {
		return nil, err
	}

	sheet := pdf.CodeSheet{
		Title:       "Authorization codes",
		GeneratedAt: s.clock.Now(),
		Codes:       make([]pdf.CodeSheetEntry, 0, len(items)),
	}
	for _, item := range items {
		sheet.Codes = append(sheet.Codes, pdf.CodeSheetEntry{
			Code:      item.Code,
			CodeType:  item.CodeType,
			Tier:      item.Tier.String(),
			Minutes:   item.MinutesAmount,
			ExpiresAt: item.ExpiresAt,
		})
	}

	r, err := s.pdf.GenerateCodeSheet(ctx, sheet)
	if err != nil {
		return nil, fmt.Errorf("render code sheet: %w", err)
	}
	s.audit(ctx, "", nil, auditdomain.ActionCodeExport, "", map[string]any{"count": len(items)})
	return r, nil
}

func (s *Service) audit(ctx context.Context, actorType auditdomain.ActorType, actorID *string, action, targetID string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	var target *string
	if targetID != "" {
		target = &targetID
	}
	if err := s.auditSvc.AuditLog(ctx, string(actorType), actorID, action, "authorization_code", target, metadata); err != nil {
		s.log.Warn("failed to audit code change", zap.String("action", action), zap.Error(err))
	}
}

// NormalizeCode trims and upper-cases user input.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// GenerateCode returns a random XXXX-XXXX-XXXX code without the easily
// confused characters I, O, 0 and 1.
func GenerateCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	var b strings.Builder
	b.Grow(codeLength + codeLength/codeGroupSize)
	for i, v := range buf {
		if i > 0 && i%codeGroupSize == 0 {
			b.WriteByte('-')
		}
		// 256 is a multiple of 32, so the modulo is unbiased.
		b.WriteByte(codeAlphabet[int(v)%len(codeAlphabet)])
	}
	return b.String(), nil
}

