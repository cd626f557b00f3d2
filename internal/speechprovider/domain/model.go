package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	quotadomain "github.com/tkwa12358/newenglish/internal/quota/domain"
	"gorm.io/datatypes"
)

// ProviderConfig is one admin-configured scoring backend for a tier.
// Credentials are referenced by secret name only.
type ProviderConfig struct {
	ID               snowflake.ID     `gorm:"primaryKey" json:"id"`
	Tier             quotadomain.Tier `gorm:"type:varchar(32);not null;index:idx_speech_providers_selection,priority:1" json:"tier"`
	Name             string           `gorm:"type:varchar(128);not null" json:"name"`
	ProviderType     string           `gorm:"type:varchar(64);not null" json:"provider_type"`
	APIEndpoint      string           `gorm:"type:text" json:"api_endpoint,omitempty"`
	APIKeySecretName string           `gorm:"type:varchar(128)" json:"api_key_secret_name,omitempty"`
	APISecretKeyName string           `gorm:"type:varchar(128)" json:"api_secret_key_name,omitempty"`
	Region           string           `gorm:"type:varchar(64)" json:"region,omitempty"`
	ModelIdentifier  string           `gorm:"type:varchar(128)" json:"model_identifier,omitempty"`
	Config           datatypes.JSON   `gorm:"type:json" json:"config,omitempty"`
	IsActive         bool             `gorm:"not null;default:true;index:idx_speech_providers_selection,priority:2" json:"is_active"`
	IsDefault        bool             `gorm:"not null;default:false" json:"is_default"`
	Priority         int              `gorm:"not null;default:0" json:"priority"`
	CreatedAt        time.Time        `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"not null" json:"updated_at"`
}

func (ProviderConfig) TableName() string { return "speech_providers" }

// Options decodes the free-form config column. Invalid or empty JSON yields nil.
func (p ProviderConfig) Options() map[string]any {
	if len(p.Config) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(p.Config, &out); err != nil {
		return nil
	}
	return out
}

type ListRequest struct {
	Tier       *quotadomain.Tier
	ActiveOnly bool
}

type CreateRequest struct {
	Tier             string         `json:"tier"`
	Name             string         `json:"name"`
	ProviderType     string         `json:"provider_type"`
	APIEndpoint      string         `json:"api_endpoint"`
	APIKeySecretName string         `json:"api_key_secret_name"`
	APISecretKeyName string         `json:"api_secret_key_name"`
	Region           string         `json:"region"`
	ModelIdentifier  string         `json:"model_identifier"`
	Config           map[string]any `json:"config"`
	IsActive         *bool          `json:"is_active"`
	Priority         int            `json:"priority"`
}

// UpdateRequest patches only the fields that are set.
type UpdateRequest struct {
	Name             *string        `json:"name"`
	ProviderType     *string        `json:"provider_type"`
	APIEndpoint      *string        `json:"api_endpoint"`
	APIKeySecretName *string        `json:"api_key_secret_name"`
	APISecretKeyName *string        `json:"api_secret_key_name"`
	Region           *string        `json:"region"`
	ModelIdentifier  *string        `json:"model_identifier"`
	Config           map[string]any `json:"config"`
	Priority         *int           `json:"priority"`
}
