package secret

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvResolver(t *testing.T) {
	t.Setenv("AZURE_SPEECH_KEY", " abc123 ")
	t.Setenv("EMPTY_KEY", "   ")

	r := NewEnvResolver()

	v, ok := r.Lookup("AZURE_SPEECH_KEY")
	assert.True(t, ok)
	assert.Equal(t, "abc123", v)

	_, ok = r.Lookup("EMPTY_KEY")
	assert.False(t, ok)

	_, ok = r.Lookup("")
	assert.False(t, ok)

	_, ok = r.Lookup("NOT_SET_ANYWHERE_42")
	assert.False(t, ok)
}

func TestMapResolver(t *testing.T) {
	r := MapResolver{"A": "1", "B": ""}

	v, ok := r.Lookup("A")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	_, ok = r.Lookup("B")
	assert.False(t, ok)
}
