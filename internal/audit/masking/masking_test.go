package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret("  "))
	assert.Equal(t, "AZURE_SPEECH_****", MaskSecret("AZURE_SPEECH_KEY"))
	assert.Equal(t, "TENCENT_****CRET", MaskSecret("TENCENT_SECRET"))
	assert.Equal(t, "****", MaskSecret("abc"))
	assert.Equal(t, "****ekey", MaskSecret("supersecretkey"))
}

func TestMaskFields(t *testing.T) {
	name := "OPENAI_API_KEY"
	in := map[string]any{
		"api_key_secret_name": name,
		"api_secret_key_name": &name,
		"tier":                "standard",
	}
	out := MaskFields(in, "api_key_secret_name", "api_secret_key_name")

	assert.Equal(t, "OPENAI_API_****", out["api_key_secret_name"])
	assert.Equal(t, "OPENAI_API_****", out["api_secret_key_name"])
	assert.Equal(t, "standard", out["tier"])
	assert.Equal(t, "OPENAI_API_KEY", in["api_key_secret_name"], "input must not change")
	assert.Nil(t, MaskFields(nil, "x"))
}
