package transport

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tkwa12358/newenglish/internal/assessment/domain"
	"github.com/tkwa12358/newenglish/internal/secret"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func clientReturning(status int, body string) *http.Client {
	return &http.Client{Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: status,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     http.Header{},
		}, nil
	})}
}

func TestDoMapsStatuses(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, domain.ErrAuthenticationFailed},
		{http.StatusForbidden, domain.ErrAuthenticationFailed},
		{http.StatusTooManyRequests, domain.ErrProviderUnavailable},
		{http.StatusBadGateway, domain.ErrProviderUnavailable},
	}
	for _, tc := range cases {
		req, _ := http.NewRequest(http.MethodPost, "https://vendor.test/", nil)
		_, err := Do(clientReturning(tc.status, `{"error":"nope"}`), req)
		require.Error(t, err)
		assert.ErrorIs(t, err, tc.want)

		var httpErr *HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, tc.status, httpErr.StatusCode)
	}
}

func TestDoReturnsBody(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPost, "https://vendor.test/", nil)
	body, err := Do(clientReturning(http.StatusOK, `{"ok":true}`), req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestDoTransportError(t *testing.T) {
	client := &http.Client{Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("dial tcp: connection refused")
	})}
	req, _ := http.NewRequest(http.MethodPost, "https://vendor.test/", nil)
	_, err := Do(client, req)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestRequireSecret(t *testing.T) {
	secrets := secret.MapResolver{"AZURE_SPEECH_KEY": "k1", "CUSTOM": "k2"}

	v, err := RequireSecret(secrets, "", "AZURE_SPEECH_KEY")
	require.NoError(t, err)
	assert.Equal(t, "k1", v)

	v, err = RequireSecret(secrets, "CUSTOM", "AZURE_SPEECH_KEY")
	require.NoError(t, err)
	assert.Equal(t, "k2", v)

	_, err = RequireSecret(secrets, "MISSING", "AZURE_SPEECH_KEY")
	assert.ErrorIs(t, err, domain.ErrAuthenticationFailed)

	_, err = RequireSecret(nil, "", "")
	assert.ErrorIs(t, err, domain.ErrAuthenticationFailed)
}

func TestMalformed(t *testing.T) {
	err := Malformed("missing %s", "NBest")
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
	assert.Contains(t, err.Error(), "missing NBest")
}
