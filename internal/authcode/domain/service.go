package domain

import (
	"context"
	"io"
)

type Service interface {
	Redeem(ctx context.Context, userID, code string) (*RedeemResult, error)
	Generate(ctx context.Context, req GenerateRequest) ([]AuthorizationCode, error)
	List(ctx context.Context, req ListRequest) ([]AuthorizationCode, error)
	ExportPDF(ctx context.Context, req ExportRequest) (io.Reader, error)
}
