// Package adapters wires the per-vendor scoring backends behind one registry.
package adapters

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tkwa12358/newenglish/internal/assessment/domain"
)

// Registry maps a provider_type to the factory that builds its adapter.
type Registry struct {
	factories map[string]domain.AdapterFactory
}

func NewRegistry(factories ...domain.AdapterFactory) *Registry {
	r := &Registry{factories: make(map[string]domain.AdapterFactory, len(factories))}
	for _, f := range factories {
		r.Register(f)
	}
	return r
}

func (r *Registry) Register(f domain.AdapterFactory) {
	if f == nil {
		return
	}
	r.factories[normalize(f.ProviderType())] = f
}

// Build constructs the adapter for cfg. Unknown provider types yield
// ErrUnsupported.
func (r *Registry) Build(cfg domain.AdapterConfig) (domain.Adapter, error) {
	providerType := normalize(cfg.ProviderType)
	f, ok := r.factories[providerType]
	if !ok {
		return nil, fmt.Errorf("%w: provider type %q", domain.ErrUnsupported, cfg.ProviderType)
	}
	return f.NewAdapter(cfg)
}

func (r *Registry) Supports(providerType string) bool {
	_, ok := r.factories[normalize(providerType)]
	return ok
}

func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.factories))
	for t := range r.factories {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func normalize(providerType string) string {
	return strings.ToLower(strings.TrimSpace(providerType))
}
