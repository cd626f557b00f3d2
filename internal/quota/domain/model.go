package domain

import (
	"strings"
	"time"
)

// Tier names one of the two independent minute pools.
type Tier string

const (
	TierStandard     Tier = "standard"
	TierProfessional Tier = "professional"
)

func ParseTier(raw string) (Tier, error) {
	tier := Tier(strings.ToLower(strings.TrimSpace(raw)))
	if !tier.Valid() {
		return "", ErrInvalidTier
	}
	return tier, nil
}

func (t Tier) Valid() bool {
	return t == TierStandard || t == TierProfessional
}

func (t Tier) String() string {
	return string(t)
}

// Column is the user_quotas column holding this tier's balance.
func (t Tier) Column() string {
	switch t {
	case TierProfessional:
		return "professional_minutes"
	default:
		return "standard_minutes"
	}
}

type UserQuota struct {
	UserID              string    `gorm:"primaryKey;type:varchar(128)" json:"user_id"`
	StandardMinutes     int64     `gorm:"not null;default:0" json:"standard_minutes"`
	ProfessionalMinutes int64     `gorm:"not null;default:0" json:"professional_minutes"`
	CreatedAt           time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time `gorm:"not null" json:"updated_at"`
}

func (UserQuota) TableName() string { return "user_quotas" }

func (q UserQuota) Minutes(tier Tier) int64 {
	if tier == TierProfessional {
		return q.ProfessionalMinutes
	}
	return q.StandardMinutes
}

type Balances struct {
	StandardMinutes     int64 `json:"standard_minutes"`
	ProfessionalMinutes int64 `json:"professional_minutes"`
}

type ChargeResult struct {
	MinutesCharged  int64
	PreviousBalance int64
	NewBalance      int64
}

type CreditResult struct {
	PreviousBalance int64
	NewBalance      int64
}

// MinutesCharged rounds a billed duration up to whole minutes, never below one.
func MinutesCharged(durationSeconds int) int64 {
	if durationSeconds <= 0 {
		return 1
	}
	minutes := int64((durationSeconds + 59) / 60)
	if minutes < 1 {
		return 1
	}
	return minutes
}

// NewBalance is the balance after charging, floored at zero.
func NewBalance(balance, charged int64) int64 {
	if next := balance - charged; next > 0 {
		return next
	}
	return 0
}
