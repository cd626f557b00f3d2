package domain

import "context"

type Service interface {
	Assess(ctx context.Context, req Request) (*Response, error)
	History(ctx context.Context, req HistoryRequest) ([]AssessmentRecord, error)
}
