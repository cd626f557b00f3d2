package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	auditdomain "github.com/tkwa12358/newenglish/internal/audit/domain"
	"github.com/tkwa12358/newenglish/internal/clock"
	quotadomain "github.com/tkwa12358/newenglish/internal/quota/domain"
	"github.com/tkwa12358/newenglish/internal/speechprovider/domain"
	"github.com/tkwa12358/newenglish/internal/speechprovider/repository"
	"github.com/tkwa12358/newenglish/pkg/db/dbtest"
	"go.uber.org/zap"
)

type auditMock struct {
	mock.Mock
}

func (m *auditMock) AuditLog(ctx context.Context, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error {
	args := m.Called(ctx, actorType, actorID, action, targetType, targetID, metadata)
	return args.Error(0)
}

func (m *auditMock) List(context.Context, auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

func newTestService(t *testing.T, audit auditdomain.Service) (*Service, *clock.FakeClock) {
	t.Helper()
	db := dbtest.Open(t, &domain.ProviderConfig{})
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC))
	return New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Repo:     repository.Provide(),
		Clock:    clk,
		AuditSvc: audit,
	}).(*Service), clk
}

func create(t *testing.T, svc *Service, clk *clock.FakeClock, tier, name string, priority int) *domain.ProviderConfig {
	t.Helper()
	clk.Advance(time.Second)
	item, err := svc.Create(context.Background(), domain.CreateRequest{
		Tier:             tier,
		Name:             name,
		ProviderType:     "azure",
		APIKeySecretName: "AZURE_SPEECH_KEY",
		Priority:         priority,
	})
	require.NoError(t, err)
	return item
}

func TestSelectEmptyTableReturnsNil(t *testing.T) {
	svc, _ := newTestService(t, nil)

	item, err := svc.Select(context.Background(), quotadomain.TierStandard)
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestSelectByPriorityThenDefault(t *testing.T) {
	svc, clk := newTestService(t, nil)
	ctx := context.Background()

	create(t, svc, clk, "professional", "p5", 5)
	create(t, svc, clk, "professional", "p10", 10)
	low := create(t, svc, clk, "professional", "p1", 1)
	create(t, svc, clk, "standard", "other-tier", 100)

	item, err := svc.Select(ctx, quotadomain.TierProfessional)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "p10", item.Name)

	require.NoError(t, svc.SetDefault(ctx, quotadomain.TierProfessional, low.ID.String()))

	item, err = svc.Select(ctx, quotadomain.TierProfessional)
	require.NoError(t, err)
	assert.Equal(t, "p1", item.Name)
}

func TestSelectSkipsInactive(t *testing.T) {
	svc, clk := newTestService(t, nil)
	ctx := context.Background()

	top := create(t, svc, clk, "standard", "top", 10)
	create(t, svc, clk, "standard", "next", 5)

	_, err := svc.SetActive(ctx, top.ID.String(), false)
	require.NoError(t, err)

	item, err := svc.Select(ctx, quotadomain.TierStandard)
	require.NoError(t, err)
	assert.Equal(t, "next", item.Name)
}

func TestSetDefaultMissingTargetLeavesNoDefault(t *testing.T) {
	svc, clk := newTestService(t, nil)
	ctx := context.Background()

	a := create(t, svc, clk, "standard", "a", 1)
	create(t, svc, clk, "standard", "b", 9)
	require.NoError(t, svc.SetDefault(ctx, quotadomain.TierStandard, a.ID.String()))

	err := svc.SetDefault(ctx, quotadomain.TierStandard, "987654321")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	items, err := svc.List(ctx, domain.ListRequest{})
	require.NoError(t, err)
	for _, item := range items {
		assert.False(t, item.IsDefault, item.Name)
	}

	item, err := svc.Select(ctx, quotadomain.TierStandard)
	require.NoError(t, err)
	assert.Equal(t, "b", item.Name)
}

func TestSetDefaultWrongTier(t *testing.T) {
	svc, clk := newTestService(t, nil)
	item := create(t, svc, clk, "standard", "a", 1)

	err := svc.SetDefault(context.Background(), quotadomain.TierProfessional, item.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResolve(t *testing.T) {
	svc, clk := newTestService(t, nil)
	ctx := context.Background()

	preferred := create(t, svc, clk, "standard", "preferred", 10)
	chosen := create(t, svc, clk, "standard", "chosen", 1)
	pro := create(t, svc, clk, "professional", "pro", 1)

	item, err := svc.Resolve(ctx, quotadomain.TierStandard, chosen.ID.String())
	require.NoError(t, err)
	assert.Equal(t, chosen.ID, item.ID)

	item, err = svc.Resolve(ctx, quotadomain.TierStandard, pro.ID.String())
	require.NoError(t, err)
	assert.Equal(t, preferred.ID, item.ID, "rows from another tier are ignored")

	item, err = svc.Resolve(ctx, quotadomain.TierStandard, "lovable-default")
	require.NoError(t, err)
	assert.Equal(t, preferred.ID, item.ID)

	_, err = svc.SetActive(ctx, chosen.ID.String(), false)
	require.NoError(t, err)
	item, err = svc.Resolve(ctx, quotadomain.TierStandard, chosen.ID.String())
	require.NoError(t, err)
	assert.Equal(t, preferred.ID, item.ID)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	cases := []struct {
		name string
		req  domain.CreateRequest
		want error
	}{
		{"tier", domain.CreateRequest{Tier: "gold", Name: "x", ProviderType: "azure"}, domain.ErrInvalidTier},
		{"name", domain.CreateRequest{Tier: "standard", Name: " ", ProviderType: "azure"}, domain.ErrInvalidName},
		{"type", domain.CreateRequest{Tier: "standard", Name: "x", ProviderType: "Azure Speech!"}, domain.ErrInvalidProviderType},
		{"endpoint", domain.CreateRequest{Tier: "standard", Name: "x", ProviderType: "openai_compatible", APIEndpoint: "ftp://x"}, domain.ErrInvalidEndpoint},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestUpdateAndDelete(t *testing.T) {
	svc, clk := newTestService(t, nil)
	ctx := context.Background()
	item := create(t, svc, clk, "standard", "a", 1)

	name := "renamed"
	priority := 42
	updated, err := svc.Update(ctx, item.ID.String(), domain.UpdateRequest{
		Name:     &name,
		Priority: &priority,
		Config:   map[string]any{"voice_format": "wav"},
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)

	got, err := svc.Get(ctx, item.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 42, got.Priority)
	assert.Equal(t, "wav", got.Options()["voice_format"])

	require.NoError(t, svc.Delete(ctx, item.ID.String()))
	_, err = svc.Get(ctx, item.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Get(ctx, "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestCreateAuditsMaskedSecretNames(t *testing.T) {
	audit := &auditMock{}
	audit.On("AuditLog", mock.Anything, "", mock.Anything, auditdomain.ActionProviderCreate, "speech_provider", mock.Anything,
		mock.MatchedBy(func(metadata map[string]any) bool {
			return metadata["api_key_secret_name"] == "AZURE_SPEECH_****" && metadata["tier"] == "standard"
		}),
	).Return(nil).Once()

	svc, clk := newTestService(t, audit)
	create(t, svc, clk, "standard", "a", 1)

	audit.AssertExpectations(t)
}
