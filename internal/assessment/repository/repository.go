package repository

import (
	"context"

	"github.com/tkwa12358/newenglish/internal/assessment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *domain.AssessmentRecord) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO assessment_records (
			id, user_id, tier, provider_id, provider_name, provider_type,
			reference_text, language, overall_score, pronunciation_score,
			accuracy_score, fluency_score, completeness_score, feedback,
			transcript, words_result, duration_seconds, minutes_charged,
			is_billed, billing_error, raw_response, simulated, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.UserID,
		record.Tier,
		record.ProviderID,
		record.ProviderName,
		record.ProviderType,
		record.ReferenceText,
		record.Language,
		record.OverallScore,
		record.PronunciationScore,
		record.AccuracyScore,
		record.FluencyScore,
		record.CompletenessScore,
		record.Feedback,
		record.Transcript,
		record.WordsResult,
		record.DurationSeconds,
		record.MinutesCharged,
		record.IsBilled,
		record.BillingError,
		record.RawResponse,
		record.Simulated,
		record.CreatedAt,
	).Error
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID string, limit int) ([]domain.AssessmentRecord, error) {
	var items []domain.AssessmentRecord
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, tier, provider_id, provider_name, provider_type,
			reference_text, language, overall_score, pronunciation_score,
			accuracy_score, fluency_score, completeness_score, feedback,
			transcript, words_result, duration_seconds, minutes_charged,
			is_billed, billing_error, simulated, created_at
		 FROM assessment_records
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		userID,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
