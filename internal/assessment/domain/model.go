package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	quotadomain "github.com/tkwa12358/newenglish/internal/quota/domain"
	"gorm.io/datatypes"
)

// AssessmentRecord is written once per attempt, billed or not, and never
// updated.
type AssessmentRecord struct {
	ID                 snowflake.ID     `gorm:"primaryKey" json:"id"`
	UserID             string           `gorm:"type:varchar(128);not null;index:idx_assessment_records_user,priority:1" json:"user_id"`
	Tier               quotadomain.Tier `gorm:"type:varchar(32);not null" json:"tier"`
	ProviderID         *snowflake.ID    `json:"provider_id,omitempty"`
	ProviderName       string           `gorm:"type:varchar(128)" json:"provider_name"`
	ProviderType       string           `gorm:"type:varchar(64)" json:"provider_type"`
	ReferenceText      string           `gorm:"type:text;not null" json:"reference_text"`
	Language           string           `gorm:"type:varchar(16)" json:"language"`
	OverallScore       int              `gorm:"not null;default:0" json:"overall_score"`
	PronunciationScore int              `gorm:"not null;default:0" json:"pronunciation_score"`
	AccuracyScore      int              `gorm:"not null;default:0" json:"accuracy_score"`
	FluencyScore       int              `gorm:"not null;default:0" json:"fluency_score"`
	CompletenessScore  int              `gorm:"not null;default:0" json:"completeness_score"`
	Feedback           string           `gorm:"type:text" json:"feedback"`
	Transcript         string           `gorm:"type:text" json:"transcript,omitempty"`
	WordsResult        datatypes.JSON   `gorm:"type:json" json:"words_result,omitempty"`
	DurationSeconds    int              `gorm:"not null;default:0" json:"duration_seconds"`
	MinutesCharged     int64            `gorm:"not null;default:0" json:"minutes_charged"`
	IsBilled           bool             `gorm:"not null;default:false" json:"is_billed"`
	BillingError       *string          `gorm:"type:text" json:"billing_error,omitempty"`
	RawResponse        datatypes.JSON   `gorm:"type:json" json:"-"`
	Simulated          bool             `gorm:"not null;default:false" json:"simulated"`
	CreatedAt          time.Time        `gorm:"not null;index:idx_assessment_records_user,priority:2" json:"created_at"`
}

func (AssessmentRecord) TableName() string { return "assessment_records" }

type Request struct {
	UserID       string
	Tier         quotadomain.Tier
	AudioBase64  string
	OriginalText string
	Language     string
	ModelID      string
}

// Response is returned on success and, with Billed=false, alongside
// assessment failures so callers can still report the balance.
type Response struct {
	Result           *Result
	ProviderName     string
	ProviderType     string
	RemainingMinutes int64
	MinutesUsed      int64
	Billed           bool
	BillingError     string
}

type HistoryRequest struct {
	UserID string
	Limit  int
}
