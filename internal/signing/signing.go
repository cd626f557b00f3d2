// Package signing holds the hashing and HMAC primitives used to sign
// outbound vendor requests.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SHA256Hex returns the lower-case hex SHA-256 digest of message.
func SHA256Hex(message string) string {
	sum := sha256.Sum256([]byte(message))
	return hex.EncodeToString(sum[:])
}

// HMACSHA256 returns the raw HMAC-SHA256 of message under key.
func HMACSHA256(key []byte, message string) []byte {
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write([]byte(message))
	return mac.Sum(nil)
}

// HMACSHA256Hex returns the lower-case hex HMAC-SHA256 of message under key.
func HMACSHA256Hex(key []byte, message string) string {
	return hex.EncodeToString(HMACSHA256(key, message))
}
