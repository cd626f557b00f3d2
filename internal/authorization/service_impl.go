package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/tkwa12358/newenglish/internal/audit/domain"
	authdomain "github.com/tkwa12358/newenglish/internal/auth/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectSpeechProvider = "speech_provider"
	ObjectAuthCode       = "auth_code"
	ObjectAuditLog       = "audit_log"
)

const (
	ActionView   = "view"
	ActionManage = "manage"
	ActionExport = "export"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, p authdomain.Principal, object, action string) error {
	userID := strings.TrimSpace(p.UserID)
	if userID == "" {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject := "user:" + userID
	if err := s.ensureGrouping(subject, p.Role.Subject()); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.auditDenied(ctx, userID, p.Role, object, action)
		return ErrForbidden
	}
	return nil
}

// ensureGrouping keeps exactly one role link for subject, matching the role
// carried by the current token.
func (s *ServiceImpl) ensureGrouping(subject, roleName string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == roleName {
			continue
		}
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		if _, err := s.enforcer.RemoveGroupingPolicy(params...); err != nil {
			return err
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName)
	return err
}

func (s *ServiceImpl) auditDenied(ctx context.Context, userID string, role authdomain.Role, object, action string) {
	s.log.Info("authorization denied",
		zap.String("user_id", userID),
		zap.String("object", object),
		zap.String("action", action),
	)
	if s.auditSvc == nil {
		return
	}
	targetID := object
	if err := s.auditSvc.AuditLog(ctx, string(auditdomain.ActorTypeUser), &userID, auditdomain.ActionAccessDenied, "authorization", &targetID, map[string]any{
		"object": object,
		"action": action,
		"role":   string(role),
	}); err != nil {
		s.log.Warn("failed to audit denial", zap.Error(err))
	}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	admin := authdomain.RoleAdmin.Subject()
	policies := [][]string{
		{admin, ObjectSpeechProvider, ActionView},
		{admin, ObjectSpeechProvider, ActionManage},
		{admin, ObjectAuthCode, ActionView},
		{admin, ObjectAuthCode, ActionManage},
		{admin, ObjectAuthCode, ActionExport},
		{admin, ObjectAuditLog, ActionView},
	}
	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
