package authorization

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	authdomain "github.com/tkwa12358/newenglish/internal/auth/domain"
	"github.com/tkwa12358/newenglish/pkg/db/dbtest"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	db := dbtest.Open(t)
	enforcer, err := NewEnforcer(db)
	require.NoError(t, err)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func TestAdminMayManageProviders(t *testing.T) {
	svc := newTestService(t)
	admin := authdomain.Principal{UserID: "admin-1", Role: authdomain.RoleAdmin}

	require.NoError(t, svc.Authorize(context.Background(), admin, ObjectSpeechProvider, ActionManage))
	require.NoError(t, svc.Authorize(context.Background(), admin, ObjectAuthCode, ActionExport))
	require.NoError(t, svc.Authorize(context.Background(), admin, ObjectAuditLog, ActionView))
}

func TestUserIsForbidden(t *testing.T) {
	svc := newTestService(t)
	user := authdomain.Principal{UserID: "user-1", Role: authdomain.RoleUser}

	err := svc.Authorize(context.Background(), user, ObjectAuthCode, ActionManage)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRoleDowngradeTakesEffect(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Authorize(ctx, authdomain.Principal{UserID: "u-7", Role: authdomain.RoleAdmin}, ObjectAuthCode, ActionView))
	err := svc.Authorize(ctx, authdomain.Principal{UserID: "u-7", Role: authdomain.RoleUser}, ObjectAuthCode, ActionView)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAuthorizeValidatesInput(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	admin := authdomain.Principal{UserID: "admin-1", Role: authdomain.RoleAdmin}

	assert.ErrorIs(t, svc.Authorize(ctx, authdomain.Principal{}, ObjectAuthCode, ActionView), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, admin, " ", ActionView), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, admin, ObjectAuthCode, ""), ErrInvalidAction)
}
