package aichat

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tkwa12358/newenglish/internal/assessment/adapters/transport"
	"github.com/tkwa12358/newenglish/internal/assessment/domain"
	"github.com/tkwa12358/newenglish/internal/config"
	"github.com/tkwa12358/newenglish/internal/secret"
)

const (
	FallbackProviderType   = "ai_fallback"
	CompatibleProviderType = "openai_compatible"

	completionsPath = "/v1/chat/completions"
)

// Defaults fill in whatever a provider row leaves blank.
type Defaults struct {
	BaseURL       string
	Model         string
	KeySecretName string
}

type Factory struct {
	providerType string
	secrets      secret.Resolver
	client       *http.Client
	defaults     Defaults
}

// NewFallbackFactory builds the zero-configuration scorer. Everything comes
// from process configuration.
func NewFallbackFactory(secrets secret.Resolver, client *http.Client, cfg config.AIFallbackConfig) *Factory {
	return &Factory{
		providerType: FallbackProviderType,
		secrets:      secrets,
		client:       client,
		defaults: Defaults{
			BaseURL:       cfg.BaseURL,
			Model:         cfg.Model,
			KeySecretName: cfg.APIKeySecretName,
		},
	}
}

// NewCompatibleFactory builds admin-configured chat backends. The row must
// name the endpoint and key; the model falls back to the built-in default.
func NewCompatibleFactory(secrets secret.Resolver, client *http.Client, cfg config.AIFallbackConfig) *Factory {
	return &Factory{
		providerType: CompatibleProviderType,
		secrets:      secrets,
		client:       client,
		defaults:     Defaults{Model: cfg.Model},
	}
}

func (f *Factory) ProviderType() string { return f.providerType }

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.Adapter, error) {
	client, err := f.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &simulator{client: client}, nil
}

// NewClient resolves endpoint, model and key for cfg.
func (f *Factory) NewClient(cfg domain.AdapterConfig) (*Client, error) {
	key, err := transport.RequireSecret(f.secrets, cfg.APIKeySecretName, f.defaults.KeySecretName)
	if err != nil {
		return nil, err
	}
	base := strings.TrimSpace(cfg.APIEndpoint)
	if base == "" {
		base = f.defaults.BaseURL
	}
	endpoint, err := completionsURL(base)
	if err != nil {
		return nil, err
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = f.defaults.Model
	}
	if model == "" {
		return nil, fmt.Errorf("%w: no chat model configured", domain.ErrProviderUnavailable)
	}
	return &Client{http: f.client, endpoint: endpoint, apiKey: key, model: model}, nil
}

func completionsURL(base string) (string, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return "", fmt.Errorf("%w: no chat endpoint configured", domain.ErrProviderUnavailable)
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return "", fmt.Errorf("%w: invalid chat endpoint: %w", domain.ErrProviderUnavailable, err)
	}
	if strings.HasSuffix(base, "/chat/completions") {
		return base, nil
	}
	if strings.HasSuffix(base, "/v1") {
		return base + "/chat/completions", nil
	}
	return base + completionsPath, nil
}

type simulator struct {
	client *Client
}

func (s *simulator) Assess(ctx context.Context, in domain.Input) (*domain.Result, error) {
	return s.client.Simulate(ctx, in.ReferenceText, in.Language)
}
