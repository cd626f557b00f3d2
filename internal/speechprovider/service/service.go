package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/tkwa12358/newenglish/internal/audit/domain"
	"github.com/tkwa12358/newenglish/internal/audit/masking"
	"github.com/tkwa12358/newenglish/internal/clock"
	quotadomain "github.com/tkwa12358/newenglish/internal/quota/domain"
	"github.com/tkwa12358/newenglish/internal/speechprovider/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var providerTypePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Clock    clock.Clock
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	clock    clock.Clock
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("speechprovider.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		clock:    p.Clock,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Select(ctx context.Context, tier quotadomain.Tier) (*domain.ProviderConfig, error) {
	if !tier.Valid() {
		return nil, domain.ErrInvalidTier
	}
	return s.repo.FindPreferred(ctx, s.db, tier)
}

func (s *Service) Resolve(ctx context.Context, tier quotadomain.Tier, modelID string) (*domain.ProviderConfig, error) {
	if !tier.Valid() {
		return nil, domain.ErrInvalidTier
	}
	modelID = strings.TrimSpace(modelID)
	if modelID != "" {
		if id, err := snowflake.ParseString(modelID); err == nil && id != 0 {
			item, err := s.repo.FindActiveByID(ctx, s.db, tier, id)
			if err != nil {
				return nil, err
			}
			if item != nil {
				return item, nil
			}
		}
		s.log.Debug("requested provider not usable, selecting by preference",
			zap.String("model_id", modelID),
			zap.String("tier", tier.String()),
		)
	}
	return s.Select(ctx, tier)
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.ProviderConfig, error) {
	if req.Tier != nil && !req.Tier.Valid() {
		return nil, domain.ErrInvalidTier
	}
	return s.repo.List(ctx, s.db, req)
}

func (s *Service) Get(ctx context.Context, id string) (*domain.ProviderConfig, error) {
	parsed, err := parseID(id)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindByID(ctx, s.db, parsed)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	return item, nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.ProviderConfig, error) {
	tier, err := quotadomain.ParseTier(req.Tier)
	if err != nil {
		return nil, domain.ErrInvalidTier
	}
	name, err := validateName(req.Name)
	if err != nil {
		return nil, err
	}
	providerType, err := validateProviderType(req.ProviderType)
	if err != nil {
		return nil, err
	}
	endpoint, err := validateEndpoint(req.APIEndpoint)
	if err != nil {
		return nil, err
	}
	cfg, err := encodeConfig(req.Config)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	item := &domain.ProviderConfig{
		ID:               s.genID.Generate(),
		Tier:             tier,
		Name:             name,
		ProviderType:     providerType,
		APIEndpoint:      endpoint,
		APIKeySecretName: strings.TrimSpace(req.APIKeySecretName),
		APISecretKeyName: strings.TrimSpace(req.APISecretKeyName),
		Region:           strings.TrimSpace(req.Region),
		ModelIdentifier:  strings.TrimSpace(req.ModelIdentifier),
		Config:           cfg,
		IsActive:         active,
		Priority:         req.Priority,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.repo.Insert(ctx, s.db, item); err != nil {
		return nil, err
	}

	s.audit(ctx, auditdomain.ActionProviderCreate, item, nil)
	return item, nil
}

func (s *Service) Update(ctx context.Context, id string, req domain.UpdateRequest) (*domain.ProviderConfig, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if item.Name, err = validateName(*req.Name); err != nil {
			return nil, err
		}
	}
	if req.ProviderType != nil {
		if item.ProviderType, err = validateProviderType(*req.ProviderType); err != nil {
			return nil, err
		}
	}
	if req.APIEndpoint != nil {
		if item.APIEndpoint, err = validateEndpoint(*req.APIEndpoint); err != nil {
			return nil, err
		}
	}
	if req.APIKeySecretName != nil {
		item.APIKeySecretName = strings.TrimSpace(*req.APIKeySecretName)
	}
	if req.APISecretKeyName != nil {
		item.APISecretKeyName = strings.TrimSpace(*req.APISecretKeyName)
	}
	if req.Region != nil {
		item.Region = strings.TrimSpace(*req.Region)
	}
	if req.ModelIdentifier != nil {
		item.ModelIdentifier = strings.TrimSpace(*req.ModelIdentifier)
	}
	if req.Config != nil {
		if item.Config, err = encodeConfig(req.Config); err != nil {
			return nil, err
		}
	}
	if req.Priority != nil {
		item.Priority = *req.Priority
	}
	item.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, item); err != nil {
		return nil, err
	}

	s.audit(ctx, auditdomain.ActionProviderUpdate, item, nil)
	return item, nil
}

// SetDefault clears the tier's current default and then flags id. The two
// statements are not in a transaction; if id is not in the tier the tier is
// left without a default and ErrNotFound is returned.
func (s *Service) SetDefault(ctx context.Context, tier quotadomain.Tier, id string) error {
	if !tier.Valid() {
		return domain.ErrInvalidTier
	}
	parsed, err := parseID(id)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	if err := s.repo.ClearDefault(ctx, s.db, tier, now); err != nil {
		return err
	}
	updated, err := s.repo.MarkDefault(ctx, s.db, tier, parsed, now)
	if err != nil {
		return err
	}
	if !updated {
		s.log.Warn("default provider cleared without replacement",
			zap.String("tier", tier.String()),
			zap.String("provider_id", parsed.String()),
		)
		return domain.ErrNotFound
	}

	s.audit(ctx, auditdomain.ActionProviderSetDefault, &domain.ProviderConfig{ID: parsed, Tier: tier}, nil)
	return nil
}

func (s *Service) SetActive(ctx context.Context, id string, active bool) (*domain.ProviderConfig, error) {
	parsed, err := parseID(id)
	if err != nil {
		return nil, err
	}
	updated, err := s.repo.SetActive(ctx, s.db, parsed, active, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, domain.ErrNotFound
	}

	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, auditdomain.ActionProviderSetActive, item, map[string]any{"is_active": active})
	return item, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	item, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	deleted, err := s.repo.Delete(ctx, s.db, item.ID)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrNotFound
	}
	s.audit(ctx, auditdomain.ActionProviderDelete, item, nil)
	return nil
}

func (s *Service) audit(ctx context.Context, action string, item *domain.ProviderConfig, extra map[string]any) {
	if s.auditSvc == nil || item == nil {
		return
	}
	metadata := map[string]any{
		"tier": item.Tier.String(),
	}
	if item.Name != "" {
		metadata["name"] = item.Name
		metadata["provider_type"] = item.ProviderType
		metadata["priority"] = item.Priority
		metadata["api_key_secret_name"] = item.APIKeySecretName
		metadata["api_secret_key_name"] = item.APISecretKeyName
	}
	for key, value := range extra {
		metadata[key] = value
	}
	metadata = masking.MaskFields(metadata, "api_key_secret_name", "api_secret_key_name")

	targetID := item.ID.String()
	if err := s.auditSvc.AuditLog(ctx, "", nil, action, "speech_provider", &targetID, metadata); err != nil {
		s.log.Warn("failed to audit provider change", zap.String("action", action), zap.Error(err))
	}
}

func parseID(id string) (snowflake.ID, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || parsed == 0 {
		return 0, domain.ErrInvalidID
	}
	return parsed, nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 128 {
		return "", domain.ErrInvalidName
	}
	return name, nil
}

func validateProviderType(providerType string) (string, error) {
	providerType = strings.ToLower(strings.TrimSpace(providerType))
	if !providerTypePattern.MatchString(providerType) {
		return "", domain.ErrInvalidProviderType
	}
	return providerType, nil
}

func validateEndpoint(endpoint string) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", nil
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return "", domain.ErrInvalidEndpoint
	}
	return endpoint, nil
}

func encodeConfig(cfg map[string]any) (datatypes.JSON, error) {
	if len(cfg) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, errors.Join(domain.ErrInvalidConfig, err)
	}
	return datatypes.JSON(raw), nil
}
