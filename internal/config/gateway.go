package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// GatewayConfig is the hot-reloadable part of the assessment gateway settings.
type GatewayConfig struct {
	RecordingOverheadSeconds int             `mapstructure:"recordingOverheadSeconds"`
	MaxAudioBytes            int             `mapstructure:"maxAudioBytes"`
	RateLimit                RateLimitConfig `mapstructure:"rateLimit"`
	CodeTypes                []CodeType      `mapstructure:"codeTypes"`
}

type RateLimitConfig struct {
	AssessmentRate  float64 `mapstructure:"assessmentRate"`
	AssessmentBurst int     `mapstructure:"assessmentBurst"`
	RedeemRate      float64 `mapstructure:"redeemRate"`
	RedeemBurst     int     `mapstructure:"redeemBurst"`
}

// CodeType maps an authorization code type to the pool and minutes it credits.
type CodeType struct {
	Name    string `mapstructure:"name"`
	Tier    string `mapstructure:"tier"`
	Minutes int64  `mapstructure:"minutes"`
}

func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		RecordingOverheadSeconds: 10,
		MaxAudioBytes:            10 << 20,
		RateLimit: RateLimitConfig{
			AssessmentRate:  0.5,
			AssessmentBurst: 10,
			RedeemRate:      0.1,
			RedeemBurst:     5,
		},
		CodeTypes: []CodeType{
			{Name: "pro_10min", Tier: "professional", Minutes: 10},
			{Name: "pro_30min", Tier: "professional", Minutes: 30},
			{Name: "pro_60min", Tier: "professional", Minutes: 60},
			{Name: "std_30min", Tier: "standard", Minutes: 30},
			{Name: "registration", Tier: "standard", Minutes: 10},
		},
	}
}

// CodeType returns the catalog entry for name.
func (c GatewayConfig) CodeType(name string) (CodeType, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, ct := range c.CodeTypes {
		if strings.ToLower(ct.Name) == name {
			return ct, true
		}
	}
	return CodeType{}, false
}

type GatewayConfigHolder struct {
	current atomic.Value // holds GatewayConfig
}

func NewGatewayConfigHolder(log *zap.Logger) (*GatewayConfigHolder, error) {
	log = log.Named("config.gateway")
	v := viper.New()

	v.SetConfigName("gateway")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/newenglish")
	v.AddConfigPath(".")

	v.SetEnvPrefix("NEWENGLISH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultGatewayConfig()
	v.SetDefault("gateway.recordingOverheadSeconds", defaults.RecordingOverheadSeconds)
	v.SetDefault("gateway.maxAudioBytes", defaults.MaxAudioBytes)
	v.SetDefault("gateway.rateLimit.assessmentRate", defaults.RateLimit.AssessmentRate)
	v.SetDefault("gateway.rateLimit.assessmentBurst", defaults.RateLimit.AssessmentBurst)
	v.SetDefault("gateway.rateLimit.redeemRate", defaults.RateLimit.RedeemRate)
	v.SetDefault("gateway.rateLimit.redeemBurst", defaults.RateLimit.RedeemBurst)
	v.SetDefault("gateway.codeTypes", defaults.CodeTypes)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	var cfg GatewayConfig
	if err := v.UnmarshalKey("gateway", &cfg); err != nil {
		return nil, err
	}
	if err := validateGatewayConfig(cfg); err != nil {
		return nil, err
	}

	holder := &GatewayConfigHolder{}
	holder.current.Store(cfg)

	if !fileFound {
		log.Info("gateway config file not found, using defaults")
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated GatewayConfig
		if err := v.UnmarshalKey("gateway", &updated); err != nil {
			log.Warn("gateway config reload failed", zap.Error(err))
			return
		}
		if err := validateGatewayConfig(updated); err != nil {
			log.Warn("invalid gateway config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("gateway config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// NewStaticGatewayConfigHolder wraps a fixed config, for tests and tools.
func NewStaticGatewayConfigHolder(cfg GatewayConfig) *GatewayConfigHolder {
	holder := &GatewayConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *GatewayConfigHolder) Get() GatewayConfig {
	if h == nil {
		return DefaultGatewayConfig()
	}
	cfg, ok := h.current.Load().(GatewayConfig)
	if !ok {
		return DefaultGatewayConfig()
	}
	return cfg
}

func validateGatewayConfig(cfg GatewayConfig) error {
	if cfg.RecordingOverheadSeconds < 0 {
		return errors.New("gateway.recordingOverheadSeconds cannot be negative")
	}
	if cfg.MaxAudioBytes <= 0 {
		return errors.New("gateway.maxAudioBytes must be positive")
	}
	if len(cfg.CodeTypes) == 0 {
		return errors.New("gateway.codeTypes cannot be empty")
	}
	seen := map[string]struct{}{}
	for _, ct := range cfg.CodeTypes {
		name := strings.ToLower(strings.TrimSpace(ct.Name))
		if name == "" {
			return errors.New("gateway.codeTypes entries need a name")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("gateway.codeTypes has duplicate %q", name)
		}
		seen[name] = struct{}{}
		switch ct.Tier {
		case "standard", "professional":
		default:
			return fmt.Errorf("gateway.codeTypes %q has unknown tier %q", name, ct.Tier)
		}
		if ct.Minutes <= 0 {
			return fmt.Errorf("gateway.codeTypes %q must credit positive minutes", name)
		}
	}
	return nil
}
