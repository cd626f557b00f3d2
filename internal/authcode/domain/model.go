package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	quotadomain "github.com/tkwa12358/newenglish/internal/quota/domain"
)

// DefaultMinutes is credited when neither the code nor its catalog entry
// carries a positive amount.
const DefaultMinutes int64 = 10

// AuthorizationCode is a one-time voucher. IsUsed flips false to true once.
type AuthorizationCode struct {
	ID            snowflake.ID     `gorm:"primaryKey" json:"id"`
	Code          string           `gorm:"type:varchar(32);not null;uniqueIndex" json:"code"`
	CodeType      string           `gorm:"type:varchar(64);not null" json:"code_type"`
	Tier          quotadomain.Tier `gorm:"type:varchar(32);not null" json:"tier"`
	MinutesAmount int64            `gorm:"not null;default:0" json:"minutes_amount"`
	IsUsed        bool             `gorm:"not null;default:false;index" json:"is_used"`
	UsedBy        *string          `gorm:"type:varchar(128)" json:"used_by,omitempty"`
	UsedAt        *time.Time       `json:"used_at,omitempty"`
	ExpiresAt     *time.Time       `json:"expires_at,omitempty"`
	CreatedAt     time.Time        `gorm:"not null" json:"created_at"`
}

func (AuthorizationCode) TableName() string { return "authorization_codes" }

type RedeemResult struct {
	MinutesAdded int64
	TotalMinutes int64
	Tier         quotadomain.Tier
	CodeType     string
}

type GenerateRequest struct {
	CodeType      string `json:"code_type"`
	Count         int    `json:"count"`
	ExpiresInDays int    `json:"expires_in_days"`
}

type ListRequest struct {
	Used  *bool
	Limit int
}

type ExportRequest struct {
	IDs []string
	// UnusedOnly exports every unused code when IDs is empty.
	UnusedOnly bool
}
