package domain

import (
	"context"

	quotadomain "github.com/tkwa12358/newenglish/internal/quota/domain"
)

type Service interface {
	// Select returns the preferred active provider for tier, or nil when
	// none is configured.
	Select(ctx context.Context, tier quotadomain.Tier) (*ProviderConfig, error)
	// Resolve honours an explicit provider id when it names an active row in
	// the tier and otherwise behaves like Select.
	Resolve(ctx context.Context, tier quotadomain.Tier, modelID string) (*ProviderConfig, error)

	List(ctx context.Context, req ListRequest) ([]ProviderConfig, error)
	Get(ctx context.Context, id string) (*ProviderConfig, error)
	Create(ctx context.Context, req CreateRequest) (*ProviderConfig, error)
	Update(ctx context.Context, id string, req UpdateRequest) (*ProviderConfig, error)
	SetDefault(ctx context.Context, tier quotadomain.Tier, id string) error
	SetActive(ctx context.Context, id string, active bool) (*ProviderConfig, error)
	Delete(ctx context.Context, id string) error
}
