package pdf

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCodeSheet(t *testing.T) {
	expires := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r, err := New().GenerateCodeSheet(context.Background(), CodeSheet{
		GeneratedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Codes: []CodeSheetEntry{
			{Code: "ABCD-EFGH-JKLM", CodeType: "pro_10min", Tier: "professional", Minutes: 10, ExpiresAt: &expires},
			{Code: "NPQR-STUV-WXYZ", CodeType: "std_30min", Tier: "standard", Minutes: 30},
		},
	})
	require.NoError(t, err)

	body, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))
}

func TestGenerateCodeSheetHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().GenerateCodeSheet(ctx, CodeSheet{})
	assert.ErrorIs(t, err, context.Canceled)
}
