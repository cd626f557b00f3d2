package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tkwa12358/newenglish/internal/auth/domain"
	"github.com/tkwa12358/newenglish/internal/clock"
	"github.com/tkwa12358/newenglish/internal/config"
	"go.uber.org/zap"
)

func newTestService(t *testing.T, secret string) (domain.Service, *clock.FakeClock) {
	t.Helper()
	clk := clock.NewFakeClock(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	svc, err := New(Params{
		Cfg:   config.Config{AuthJWTSecret: secret, Environment: "development"},
		Log:   zap.NewNop(),
		Clock: clk,
	})
	require.NoError(t, err)
	return svc, clk
}

func TestIssueAndVerify(t *testing.T) {
	svc, _ := newTestService(t, "test-secret")
	ctx := context.Background()

	token, exp, err := svc.Issue(ctx, domain.Principal{UserID: "user-42", Role: domain.RoleAdmin}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 4, 4, 5, 0, time.UTC), exp)

	p, err := svc.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", p.UserID)
	assert.Equal(t, domain.RoleAdmin, p.Role)
}

func TestVerifyExpired(t *testing.T) {
	svc, clk := newTestService(t, "test-secret")
	ctx := context.Background()

	token, _, err := svc.Issue(ctx, domain.Principal{UserID: "user-1"}, time.Minute)
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)
	_, err = svc.Verify(ctx, token)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	issuer, _ := newTestService(t, "other-secret")
	svc, _ := newTestService(t, "test-secret")
	ctx := context.Background()

	token, _, err := issuer.Issue(ctx, domain.Principal{UserID: "user-1"}, time.Hour)
	require.NoError(t, err)

	_, err = svc.Verify(ctx, token)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestVerifyRejectsNoneAlgorithm(t *testing.T) {
	svc, clk := newTestService(t, "test-secret")

	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(clk.Now().Add(time.Hour)),
	})
	raw, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), raw)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestVerifyMissingAndUnconfigured(t *testing.T) {
	svc, _ := newTestService(t, "test-secret")
	_, err := svc.Verify(context.Background(), "  ")
	assert.ErrorIs(t, err, domain.ErrMissingToken)

	empty, _ := newTestService(t, "")
	_, err = empty.Verify(context.Background(), "a.b.c")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
	_, _, err = empty.Issue(context.Background(), domain.Principal{UserID: "u"}, time.Hour)
	assert.ErrorIs(t, err, domain.ErrSecretNotConfigured)
}

func TestNewFailsWithoutSecretInProduction(t *testing.T) {
	_, err := New(Params{
		Cfg: config.Config{Environment: "production"},
		Log: zap.NewNop(),
	})
	assert.ErrorIs(t, err, domain.ErrSecretNotConfigured)
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, domain.RoleAdmin, domain.ParseRole(" Admin "))
	assert.Equal(t, domain.RoleUser, domain.ParseRole("owner"))
	assert.Equal(t, "role:admin", domain.RoleAdmin.Subject())
}
