package signing

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSHA256Hex(t *testing.T) {
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", SHA256Hex("abc"))
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", SHA256Hex(""))
}

func TestHMACSHA256Hex(t *testing.T) {
	cases := []struct {
		name    string
		key     string
		message string
		want    string
	}{
		{
			name:    "rfc4231_case2",
			key:     "Jefe",
			message: "what do ya want for nothing?",
			want:    "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843",
		},
		{
			name:    "quick_brown_fox",
			key:     "key",
			message: "The quick brown fox jumps over the lazy dog",
			want:    "f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HMACSHA256Hex([]byte(tc.key), tc.message))
			assert.Len(t, HMACSHA256([]byte(tc.key), tc.message), 32)
		})
	}
}

func TestCanonicalRequestTC3(t *testing.T) {
	got := CanonicalRequestTC3("soe.tencentcloudapi.com", "TransmitOralProcess", `{"RefText":"hello world","SeqId":1}`)
	want := "POST\n/\n\n" +
		"content-type:application/json\nhost:soe.tencentcloudapi.com\nx-tc-action:transmitoralprocess\n\n" +
		"content-type;host;x-tc-action\n" +
		"11d47fb66cebc851a04e5b8642e8b8106ab9b1ee3935a7bc336a7d8f67b48fe7"
	assert.Equal(t, want, got)
}

func TestSignTC3Golden(t *testing.T) {
	sig, err := SignTC3(TC3Request{
		SecretID:  "AKIDEXAMPLEID0000",
		SecretKey: "SecretKeyExample1234",
		Service:   "soe",
		Host:      "soe.tencentcloudapi.com",
		Action:    "TransmitOralProcess",
		Payload:   `{"RefText":"hello world","SeqId":1}`,
		Timestamp: time.Unix(1700000000, 0),
	})
	require.NoError(t, err)

	assert.Equal(t, "2023-11-14/soe/tc3_request", sig.CredentialScope)
	assert.Equal(t, "1700000000", sig.Timestamp)
	assert.Equal(t, "7f765315bc63e12cc365e770fa100078ddf69aa08a13f19c2854000eabec0e01", SHA256Hex(sig.CanonicalRequest))
	assert.Equal(t, "2acc3dced4f315fd36b6247b2c3993905c1e89f23d36840d3933eb691630cc31", sig.Signature)
	assert.Equal(t,
		"TC3-HMAC-SHA256 Credential=AKIDEXAMPLEID0000/2023-11-14/soe/tc3_request, SignedHeaders=content-type;host;x-tc-action, Signature=2acc3dced4f315fd36b6247b2c3993905c1e89f23d36840d3933eb691630cc31",
		sig.Authorization,
	)
}

func TestSignTC3UsesUTCDate(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	// 2023-11-15 06:00 local is still 2023-11-14 in UTC.
	sig, err := SignTC3(TC3Request{
		SecretID:  "id",
		SecretKey: "key",
		Service:   "soe",
		Host:      "soe.tencentcloudapi.com",
		Action:    "TransmitOralProcess",
		Timestamp: time.Date(2023, 11, 15, 6, 0, 0, 0, loc),
	})
	require.NoError(t, err)
	assert.Equal(t, "2023-11-14/soe/tc3_request", sig.CredentialScope)
}

func TestSignTC3MissingCredential(t *testing.T) {
	_, err := SignTC3(TC3Request{SecretID: "id", Service: "soe", Host: "h", Action: "a"})
	assert.True(t, errors.Is(err, ErrMissingCredential))
}
