package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinutesCharged(t *testing.T) {
	cases := map[int]int64{
		-5:  1,
		0:   1,
		1:   1,
		59:  1,
		60:  1,
		61:  2,
		75:  2,
		120: 2,
		121: 3,
	}
	for seconds, want := range cases {
		assert.Equal(t, want, MinutesCharged(seconds), "seconds=%d", seconds)
	}
}

func TestNewBalance(t *testing.T) {
	assert.EqualValues(t, 1, NewBalance(3, 2))
	assert.EqualValues(t, 0, NewBalance(1, 2))
	assert.EqualValues(t, 0, NewBalance(2, 2))
}

func TestParseTier(t *testing.T) {
	tier, err := ParseTier(" Professional ")
	assert.NoError(t, err)
	assert.Equal(t, TierProfessional, tier)
	assert.Equal(t, "professional_minutes", tier.Column())
	assert.Equal(t, "standard_minutes", TierStandard.Column())

	_, err = ParseTier("gold")
	assert.ErrorIs(t, err, ErrInvalidTier)
}
