package signing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	TC3Algorithm     = "TC3-HMAC-SHA256"
	tc3Terminator    = "tc3_request"
	tc3SignedHeaders = "content-type;host;x-tc-action"
	tc3ContentType   = "application/json"
)

var ErrMissingCredential = errors.New("missing_credential")

// TC3Request carries everything needed to sign one JSON POST to a
// TC3-HMAC-SHA256 endpoint.
type TC3Request struct {
	SecretID  string
	SecretKey string
	Service   string
	Host      string
	Action    string
	Payload   string
	Timestamp time.Time
}

// TC3Signature is the result of signing a TC3Request. The intermediate
// strings are kept so callers can log them when a vendor rejects a request.
type TC3Signature struct {
	Authorization    string
	CanonicalRequest string
	StringToSign     string
	CredentialScope  string
	Signature        string
	Timestamp        string
	ContentType      string
}

// SignTC3 builds the canonical request, derives the date-scoped signing key
// and returns the Authorization header value.
func SignTC3(req TC3Request) (*TC3Signature, error) {
	secretID := strings.TrimSpace(req.SecretID)
	secretKey := strings.TrimSpace(req.SecretKey)
	if secretID == "" || secretKey == "" {
		return nil, ErrMissingCredential
	}
	service := strings.TrimSpace(req.Service)
	host := strings.TrimSpace(req.Host)
	action := strings.TrimSpace(req.Action)
	if service == "" || host == "" || action == "" {
		return nil, fmt.Errorf("tc3: service, host and action are required")
	}

	ts := req.Timestamp.UTC()
	date := ts.Format("2006-01-02")
	unix := strconv.FormatInt(ts.Unix(), 10)

	canonical := CanonicalRequestTC3(host, action, req.Payload)
	scope := date + "/" + service + "/" + tc3Terminator
	stringToSign := TC3Algorithm + "\n" + unix + "\n" + scope + "\n" + SHA256Hex(canonical)

	secretDate := HMACSHA256([]byte("TC3"+secretKey), date)
	secretService := HMACSHA256(secretDate, service)
	secretSigning := HMACSHA256(secretService, tc3Terminator)
	signature := HMACSHA256Hex(secretSigning, stringToSign)

	return &TC3Signature{
		Authorization: fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
			TC3Algorithm, secretID, scope, tc3SignedHeaders, signature),
		CanonicalRequest: canonical,
		StringToSign:     stringToSign,
		CredentialScope:  scope,
		Signature:        signature,
		Timestamp:        unix,
		ContentType:      tc3ContentType,
	}, nil
}

// CanonicalRequestTC3 returns the canonical request string for a POST to "/"
// with the three signed headers in lexical order.
func CanonicalRequestTC3(host, action, payload string) string {
	headers := "content-type:" + tc3ContentType + "\n" +
		"host:" + strings.ToLower(strings.TrimSpace(host)) + "\n" +
		"x-tc-action:" + strings.ToLower(strings.TrimSpace(action)) + "\n"

	return strings.Join([]string{
		"POST",
		"/",
		"",
		headers,
		tc3SignedHeaders,
		SHA256Hex(payload),
	}, "\n")
}
