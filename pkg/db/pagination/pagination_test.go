package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "42", CreatedAt: "2024-01-01T00:00:00Z"})
	require.NoError(t, err)

	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "42", cursor.ID)

	_, err = DecodeCursor("%%%")
	assert.Error(t, err)
}

func TestTrim(t *testing.T) {
	one, two, three := 1, 2, 3
	rows := []*int{&one, &two, &three}

	kept, info := Trim(rows, 2, func(v *int) string { return "next" })
	assert.Len(t, kept, 2)
	assert.True(t, info.HasMore)
	assert.Equal(t, "next", info.NextPageToken)

	kept, info = Trim(rows, 5, func(v *int) string { return "next" })
	assert.Len(t, kept, 3)
	assert.False(t, info.HasMore)
}

func TestClampPageSize(t *testing.T) {
	assert.Equal(t, 50, ClampPageSize(0, 50, 250))
	assert.Equal(t, 250, ClampPageSize(1000, 50, 250))
	assert.Equal(t, 7, ClampPageSize(7, 50, 250))
}
