package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	auditdomain "github.com/tkwa12358/newenglish/internal/audit/domain"
	"github.com/tkwa12358/newenglish/internal/audit/repository"
	"github.com/tkwa12358/newenglish/internal/auditcontext"
	"github.com/tkwa12358/newenglish/internal/clock"
	"github.com/tkwa12358/newenglish/pkg/db/dbtest"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (*Service, *clock.FakeClock) {
	t.Helper()
	db := dbtest.Open(t, &auditdomain.AuditLog{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Clock: clk,
	}).(*Service)
	return svc, clk
}

func TestAuditLogUsesContextActor(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := auditcontext.WithActor(context.Background(), "admin", "admin-7")
	ctx = auditcontext.WithRequestID(ctx, "req-1")
	ctx = auditcontext.WithIPAddress(ctx, "127.0.0.1")

	target := "123"
	require.NoError(t, svc.AuditLog(ctx, "", nil, auditdomain.ActionProviderCreate, "speech_provider", &target, map[string]any{"tier": "standard"}))

	resp, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)

	entry := resp.AuditLogs[0]
	assert.Equal(t, "admin", entry.ActorType)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, "admin-7", *entry.ActorID)
	assert.Equal(t, "req-1", entry.Metadata["request_id"])
	require.NotNil(t, entry.IPAddress)
	assert.Equal(t, "127.0.0.1", *entry.IPAddress)
}

func TestAuditLogRequiresAction(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.AuditLog(context.Background(), "", nil, " ", "x", nil, nil)
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)
}

func TestListPaginates(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		clk.Advance(time.Minute)
		require.NoError(t, svc.AuditLog(ctx, "system", nil, auditdomain.ActionCodeGenerate, "auth_code", nil, nil))
	}

	req := auditdomain.ListAuditLogRequest{}
	req.PageSize = 2
	first, err := svc.List(ctx, req)
	require.NoError(t, err)
	assert.Len(t, first.AuditLogs, 2)
	assert.True(t, first.HasMore)

	req.PageToken = first.NextPageToken
	second, err := svc.List(ctx, req)
	require.NoError(t, err)
	assert.Len(t, second.AuditLogs, 1)
	assert.False(t, second.HasMore)
	assert.True(t, second.AuditLogs[0].CreatedAt.Before(first.AuditLogs[1].CreatedAt))
}

func TestListRejectsBadInput(t *testing.T) {
	svc, _ := newTestService(t)

	req := auditdomain.ListAuditLogRequest{}
	req.PageToken = "not-a-token"
	_, err := svc.List(context.Background(), req)
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)

	start := time.Now()
	end := start.Add(-time.Hour)
	_, err = svc.List(context.Background(), auditdomain.ListAuditLogRequest{StartAt: &start, EndAt: &end})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidTimeRange)
}
