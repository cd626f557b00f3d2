package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeUser   ActorType = "user"
	ActorTypeAdmin  ActorType = "admin"
	ActorTypeSystem ActorType = "system"
)

// Actions written by the gateway.
const (
	ActionProviderCreate     = "speech_provider.create"
	ActionProviderUpdate     = "speech_provider.update"
	ActionProviderDelete     = "speech_provider.delete"
	ActionProviderSetDefault = "speech_provider.set_default"
	ActionProviderSetActive  = "speech_provider.set_active"
	ActionCodeGenerate       = "auth_code.generate"
	ActionCodeRedeem         = "auth_code.redeem"
	ActionCodeExport         = "auth_code.export"
	ActionAccessDenied       = "authorization.denied"
)

type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	ActorType  string            `gorm:"type:varchar(32);not null" json:"actor_type"`
	ActorID    *string           `gorm:"type:varchar(128)" json:"actor_id,omitempty"`
	Action     string            `gorm:"type:varchar(64);not null;index" json:"action"`
	TargetType string            `gorm:"type:varchar(64);not null" json:"target_type"`
	TargetID   *string           `gorm:"type:varchar(128)" json:"target_id,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata,omitempty"`
	IPAddress  *string           `gorm:"type:varchar(64)" json:"ip_address,omitempty"`
	UserAgent  *string           `gorm:"type:text" json:"user_agent,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;index" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

type AuditCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	Action     string
	TargetType string
	TargetID   string
	ActorType  string
	ActorID    string
	StartAt    *time.Time
	EndAt      *time.Time
	Cursor     *AuditCursor
	Limit      int
}
