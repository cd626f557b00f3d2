package adapters

import (
	"context"
	"net/http"

	"github.com/tkwa12358/newenglish/internal/assessment/adapters/aichat"
	"github.com/tkwa12358/newenglish/internal/assessment/adapters/azure"
	"github.com/tkwa12358/newenglish/internal/assessment/adapters/googlestt"
	"github.com/tkwa12358/newenglish/internal/assessment/adapters/tencentasr"
	"github.com/tkwa12358/newenglish/internal/assessment/adapters/tencentsoe"
	"github.com/tkwa12358/newenglish/internal/assessment/domain"
	"github.com/tkwa12358/newenglish/internal/clock"
	"github.com/tkwa12358/newenglish/internal/config"
	"github.com/tkwa12358/newenglish/internal/observability/tracing"
	"github.com/tkwa12358/newenglish/internal/secret"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("assessment.adapters",
	fx.Provide(NewDefaultRegistry),
	fx.Provide(func(r *Registry) domain.AdapterBuilder { return r }),
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Cfg       config.Config
	Secrets   secret.Resolver
	Clock     clock.Clock
	Log       *zap.Logger
}

// NewDefaultRegistry registers every supported vendor. All outbound calls
// share one traced client bounded by the provider timeout.
func NewDefaultRegistry(p Params) *Registry {
	client := tracing.WrapHTTPClient(&http.Client{Timeout: p.Cfg.ProviderTimeout})

	fallback := aichat.NewFallbackFactory(p.Secrets, client, p.Cfg.AIFallback)
	stt := googlestt.NewFactory(p.Secrets, fallback)

	registry := NewRegistry(
		azure.NewFactory(p.Secrets, client),
		tencentsoe.NewFactory(p.Secrets, client, p.Clock),
		tencentasr.NewFactory(p.Secrets, client, fallback),
		stt,
		aichat.NewCompatibleFactory(p.Secrets, client, p.Cfg.AIFallback),
		fallback,
	)

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return stt.Close()
		},
	})

	p.Log.Named("assessment.adapters").Info("speech adapters registered",
		zap.Strings("provider_types", registry.Types()),
	)
	return registry
}
