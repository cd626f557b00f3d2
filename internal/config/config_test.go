package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_SERVICE", "")
	t.Setenv("PROVIDER_TIMEOUT_SECONDS", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg := Load()

	assert.Equal(t, "newenglish", cfg.AppName)
	assert.Equal(t, 60*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "AI_API_KEY", cfg.AIFallback.APIKeySecretName)
	assert.EqualValues(t, 10, cfg.Quota.StartingStandardMinutes)
}

func TestLoadIgnoresBadNumbers(t *testing.T) {
	t.Setenv("PROVIDER_TIMEOUT_SECONDS", "soon")
	t.Setenv("QUOTA_STARTING_PROFESSIONAL_MINUTES", "5")

	cfg := Load()

	assert.Equal(t, 60*time.Second, cfg.ProviderTimeout)
	assert.EqualValues(t, 5, cfg.Quota.StartingProfessionalMinutes)
}

func TestGatewayCodeTypeLookup(t *testing.T) {
	cfg := DefaultGatewayConfig()

	ct, ok := cfg.CodeType(" PRO_30MIN ")
	require.True(t, ok)
	assert.Equal(t, "professional", ct.Tier)
	assert.EqualValues(t, 30, ct.Minutes)

	_, ok = cfg.CodeType("gold")
	assert.False(t, ok)
}

func TestValidateGatewayConfig(t *testing.T) {
	require.NoError(t, validateGatewayConfig(DefaultGatewayConfig()))

	bad := DefaultGatewayConfig()
	bad.CodeTypes = append(bad.CodeTypes, CodeType{Name: "pro_10min", Tier: "professional", Minutes: 10})
	assert.Error(t, validateGatewayConfig(bad))

	bad = DefaultGatewayConfig()
	bad.CodeTypes = []CodeType{{Name: "x", Tier: "gold", Minutes: 1}}
	assert.Error(t, validateGatewayConfig(bad))

	bad = DefaultGatewayConfig()
	bad.MaxAudioBytes = 0
	assert.Error(t, validateGatewayConfig(bad))
}

func TestStaticHolder(t *testing.T) {
	cfg := DefaultGatewayConfig()
	cfg.RecordingOverheadSeconds = 3
	holder := NewStaticGatewayConfigHolder(cfg)
	assert.Equal(t, 3, holder.Get().RecordingOverheadSeconds)

	var nilHolder *GatewayConfigHolder
	assert.Equal(t, 10, nilHolder.Get().RecordingOverheadSeconds)
}
