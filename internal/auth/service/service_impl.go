package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tkwa12358/newenglish/internal/auth/domain"
	"github.com/tkwa12358/newenglish/internal/clock"
	"github.com/tkwa12358/newenglish/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg   config.Config
	Log   *zap.Logger
	Clock clock.Clock
}

type Service struct {
	log    *zap.Logger
	secret []byte
	clock  clock.Clock
	parser *jwt.Parser
}

type claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func New(p Params) (domain.Service, error) {
	secret := strings.TrimSpace(p.Cfg.AuthJWTSecret)
	if secret == "" && p.Cfg.IsProduction() {
		return nil, domain.ErrSecretNotConfigured
	}
	log := p.Log.Named("auth.service")
	if secret == "" {
		log.Warn("AUTH_JWT_SECRET is empty, every bearer token will be rejected")
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		log:    log,
		secret: []byte(secret),
		clock:  clk,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(clk.Now),
		),
	}, nil
}

func (s *Service) Issue(_ context.Context, p domain.Principal, ttl time.Duration) (string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, domain.ErrSecretNotConfigured
	}
	if strings.TrimSpace(p.UserID) == "" {
		return "", time.Time{}, domain.ErrInvalidToken
	}
	now := s.clock.Now()
	exp := now.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (s *Service) Verify(_ context.Context, raw string) (domain.Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.Principal{}, domain.ErrMissingToken
	}
	if len(s.secret) == 0 {
		return domain.Principal{}, domain.ErrInvalidToken
	}

	var c claims
	_, err := s.parser.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return domain.Principal{}, domain.ErrTokenExpired
	case err != nil:
		s.log.Debug("rejected bearer token", zap.Error(err))
		return domain.Principal{}, domain.ErrInvalidToken
	}

	userID := strings.TrimSpace(c.Subject)
	if userID == "" {
		return domain.Principal{}, domain.ErrInvalidToken
	}
	return domain.Principal{UserID: userID, Role: domain.ParseRole(c.Role)}, nil
}
