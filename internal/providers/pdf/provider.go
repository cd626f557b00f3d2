package pdf

import (
	"context"
	"io"
	"time"

	"go.uber.org/fx"
)

// CodeSheet is a printable list of redeemable authorization codes.
type CodeSheet struct {
	Title       string
	GeneratedAt time.Time
	Codes       []CodeSheetEntry
}

type CodeSheetEntry struct {
	Code      string
	CodeType  string
	Tier      string
	Minutes   int64
	ExpiresAt *time.Time
}

type Provider interface {
	GenerateCodeSheet(ctx context.Context, sheet CodeSheet) (io.Reader, error)
}

var Module = fx.Module("pdf",
	fx.Provide(New),
)
