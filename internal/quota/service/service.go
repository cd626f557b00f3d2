package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/tkwa12358/newenglish/internal/clock"
	"github.com/tkwa12358/newenglish/internal/config"
	"github.com/tkwa12358/newenglish/internal/quota/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Cfg   config.Config
	Repo  domain.Repository
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	clock clock.Clock

	startStandard     int64
	startProfessional int64
}

func New(p Params) domain.Service {
	return &Service{
		db:                p.DB,
		log:               p.Log.Named("quota.service"),
		repo:              p.Repo,
		clock:             p.Clock,
		startStandard:     max(p.Cfg.Quota.StartingStandardMinutes, 0),
		startProfessional: max(p.Cfg.Quota.StartingProfessionalMinutes, 0),
	}
}

func (s *Service) Balance(ctx context.Context, userID string, tier domain.Tier) (int64, error) {
	row, err := s.load(ctx, userID, tier)
	if err != nil {
		return 0, err
	}
	return row.Minutes(tier), nil
}

func (s *Service) EnsureAvailable(ctx context.Context, userID string, tier domain.Tier) (int64, error) {
	balance, err := s.Balance(ctx, userID, tier)
	if err != nil {
		return 0, err
	}
	if balance <= 0 {
		return 0, domain.ErrInsufficientBalance
	}
	return balance, nil
}

// Charge bills a finished assessment. The read and the clamped decrement are
// separate statements, so two concurrent charges may both see the same
// starting balance; the floor at zero still holds.
func (s *Service) Charge(ctx context.Context, userID string, tier domain.Tier, durationSeconds int) (domain.ChargeResult, error) {
	row, err := s.load(ctx, userID, tier)
	if err != nil {
		return domain.ChargeResult{}, err
	}

	previous := row.Minutes(tier)
	charged := domain.MinutesCharged(durationSeconds)
	next := domain.NewBalance(previous, charged)

	updated, err := s.repo.Decrement(ctx, s.db, userID, tier, charged, s.clock.Now())
	if err != nil {
		return domain.ChargeResult{}, fmt.Errorf("charge %s minutes: %w", tier, err)
	}
	if !updated {
		return domain.ChargeResult{}, domain.ErrAccountNotFound
	}

	s.log.Debug("quota charged",
		zap.String("user_id", userID),
		zap.String("tier", tier.String()),
		zap.Int("duration_seconds", durationSeconds),
		zap.Int64("minutes_charged", charged),
		zap.Int64("new_balance", next),
	)

	return domain.ChargeResult{
		MinutesCharged:  charged,
		PreviousBalance: previous,
		NewBalance:      next,
	}, nil
}

func (s *Service) Credit(ctx context.Context, userID string, tier domain.Tier, minutes int64) (domain.CreditResult, error) {
	if minutes <= 0 {
		return domain.CreditResult{}, domain.ErrInvalidMinutes
	}
	row, err := s.load(ctx, userID, tier)
	if err != nil {
		return domain.CreditResult{}, err
	}
	previous := row.Minutes(tier)

	updated, err := s.repo.Increment(ctx, s.db, userID, tier, minutes, s.clock.Now())
	if err != nil {
		return domain.CreditResult{}, fmt.Errorf("credit %s minutes: %w", tier, err)
	}
	if !updated {
		return domain.CreditResult{}, domain.ErrAccountNotFound
	}

	after, err := s.repo.Get(ctx, s.db, userID)
	if err != nil || after == nil {
		// the credit landed; report the arithmetic total instead
		return domain.CreditResult{PreviousBalance: previous, NewBalance: previous + minutes}, nil
	}
	return domain.CreditResult{PreviousBalance: previous, NewBalance: after.Minutes(tier)}, nil
}

func (s *Service) Revert(ctx context.Context, userID string, tier domain.Tier, minutes int64) error {
	if err := validate(userID, tier); err != nil {
		return err
	}
	if minutes <= 0 {
		return domain.ErrInvalidMinutes
	}
	if _, err := s.repo.Decrement(ctx, s.db, userID, tier, minutes, s.clock.Now()); err != nil {
		return fmt.Errorf("revert %s minutes: %w", tier, err)
	}
	s.log.Warn("quota credit reverted",
		zap.String("user_id", userID),
		zap.String("tier", tier.String()),
		zap.Int64("minutes", minutes),
	)
	return nil
}

func (s *Service) Get(ctx context.Context, userID string) (domain.Balances, error) {
	row, err := s.load(ctx, userID, domain.TierStandard)
	if err != nil {
		return domain.Balances{}, err
	}
	return domain.Balances{
		StandardMinutes:     row.StandardMinutes,
		ProfessionalMinutes: row.ProfessionalMinutes,
	}, nil
}

// load returns the user's quota row, creating it with the starting balances
// the first time the user is seen.
func (s *Service) load(ctx context.Context, userID string, tier domain.Tier) (*domain.UserQuota, error) {
	if err := validate(userID, tier); err != nil {
		return nil, err
	}
	if err := s.repo.Ensure(ctx, s.db, userID, s.startStandard, s.startProfessional, s.clock.Now()); err != nil {
		return nil, fmt.Errorf("ensure quota account: %w", err)
	}
	row, err := s.repo.Get(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, domain.ErrAccountNotFound
	}
	return row, nil
}

func validate(userID string, tier domain.Tier) error {
	if strings.TrimSpace(userID) == "" {
		return domain.ErrInvalidUser
	}
	if !tier.Valid() {
		return domain.ErrInvalidTier
	}
	return nil
}
