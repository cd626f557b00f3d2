// Package transport maps vendor HTTP outcomes onto the adapter failure kinds.
package transport

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tkwa12358/newenglish/internal/assessment/domain"
	"github.com/tkwa12358/newenglish/internal/secret"
)

const maxResponseBytes = 4 << 20

// HTTPError is a non-2xx vendor reply.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 256 {
		body = body[:256]
	}
	if body == "" {
		return fmt.Sprintf("vendor returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("vendor returned status %d: %s", e.StatusCode, body)
}

// Do sends req and returns the response body. Transport errors and non-2xx
// replies come back wrapped in ErrProviderUnavailable, except 401 and 403
// which wrap ErrAuthenticationFailed.
func Do(client *http.Client, req *http.Request) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", domain.ErrProviderUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, StatusError(resp.StatusCode, string(body))
	}
	return body, nil
}

// StatusError classifies a non-2xx status.
func StatusError(status int, body string) error {
	httpErr := &HTTPError{StatusCode: status, Body: body}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %w", domain.ErrAuthenticationFailed, httpErr)
	default:
		return fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, httpErr)
	}
}

// Malformed wraps a decoding problem.
func Malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrMalformedResponse, fmt.Sprintf(format, args...))
}

// RequireSecret resolves the credential stored under name, falling back to
// def when the provider row leaves the name blank.
func RequireSecret(secrets secret.Resolver, name, def string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = def
	}
	if secrets == nil || name == "" {
		return "", fmt.Errorf("%w: no credential configured", domain.ErrAuthenticationFailed)
	}
	value, ok := secrets.Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: secret %s is not set", domain.ErrAuthenticationFailed, name)
	}
	return value, nil
}
