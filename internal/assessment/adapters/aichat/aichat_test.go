package aichat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tkwa12358/newenglish/internal/assessment/domain"
	"github.com/tkwa12358/newenglish/internal/config"
	"github.com/tkwa12358/newenglish/internal/secret"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

var fallbackCfg = config.AIFallbackConfig{
	Name:             "AI Assessment",
	BaseURL:          "https://ai.example.test",
	Model:            "google/gemini-2.5-flash",
	APIKeySecretName: "AI_API_KEY",
}

func chatReply(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": content}}},
	})
	return string(b)
}

type captured struct {
	req  *http.Request
	body chatRequest
}

func clientReplying(t *testing.T, status int, content string, c *captured) *http.Client {
	return &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		if c != nil {
			c.req = r
			raw, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(raw, &c.body))
		}
		body := content
		if status == http.StatusOK {
			body = chatReply(content)
		}
		return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body)), Header: http.Header{}}, nil
	})}
}

func TestFallbackSimulatesFromReferenceOnly(t *testing.T) {
	var c captured
	content := "Here is the result:\n```json\n" +
		`{"overall_score": 81.6, "accuracy_score": 78, "fluency_score": 84, "completeness_score": 90,
		  "feedback": "Nice rhythm.", "word_scores": [{"word":"the","score":90,"error_type":"None"},
		  {"word":"quick","score":55,"error_type":"Mispronunciation"},{"word":"fox","score":70},{"word":"jumps","score":70}]}` +
		"\n```"
	factory := NewFallbackFactory(secret.MapResolver{"AI_API_KEY": "sk-test"}, clientReplying(t, http.StatusOK, content, &c), fallbackCfg)

	adapter, err := factory.NewAdapter(domain.AdapterConfig{ProviderType: FallbackProviderType})
	require.NoError(t, err)

	res, err := adapter.Assess(context.Background(), domain.Input{Audio: []byte("ignored"), ReferenceText: "The quick fox."})
	require.NoError(t, err)

	assert.Equal(t, "https://ai.example.test/v1/chat/completions", c.req.URL.String())
	assert.Equal(t, "Bearer sk-test", c.req.Header.Get("Authorization"))
	assert.Equal(t, "google/gemini-2.5-flash", c.body.Model)
	assert.Equal(t, 0.5, c.body.Temperature)
	require.Len(t, c.body.Messages, 2)
	assert.Contains(t, c.body.Messages[1].Content, "The quick fox.")
	assert.NotContains(t, c.body.Messages[1].Content, "ignored")

	assert.True(t, res.Simulated)
	assert.Equal(t, 82, res.OverallScore)
	assert.Equal(t, 78, res.AccuracyScore)
	assert.Equal(t, 78, res.PronunciationScore)
	assert.Equal(t, "Nice rhythm.", res.Feedback)
	assert.Len(t, res.Words, 3, "word list is capped at the reference token count")
	assert.Equal(t, "Mispronunciation", res.Words[1].ErrorType)
}

func TestEvaluateUsesLowerTemperatureAndKeepsTranscript(t *testing.T) {
	var c captured
	content := `{"overall_score": 70, "accuracy_score": 65, "fluency_score": 72, "completeness_score": 50}`
	factory := NewFallbackFactory(secret.MapResolver{"AI_API_KEY": "sk"}, clientReplying(t, http.StatusOK, content, &c), fallbackCfg)

	client, err := factory.NewClient(domain.AdapterConfig{})
	require.NoError(t, err)

	res, err := client.Evaluate(context.Background(), "the quick box", "The quick fox", "en-US")
	require.NoError(t, err)

	assert.Equal(t, 0.3, c.body.Temperature)
	assert.Contains(t, c.body.Messages[1].Content, "the quick box")
	assert.Equal(t, "the quick box", res.Transcript)
	assert.True(t, res.Simulated)
	assert.Contains(t, res.Feedback, "Make sure to read the whole sentence.")
}

func TestReplyWithoutScoresIsMalformed(t *testing.T) {
	for _, content := range []string{
		"I cannot assess audio.",
		`{"overall_score": 80, "feedback": "ok"}`,
		`{not json}`,
	} {
		factory := NewFallbackFactory(secret.MapResolver{"AI_API_KEY": "sk"}, clientReplying(t, http.StatusOK, content, nil), fallbackCfg)
		adapter, err := factory.NewAdapter(domain.AdapterConfig{})
		require.NoError(t, err)

		_, err = adapter.Assess(context.Background(), domain.Input{ReferenceText: "hi"})
		assert.ErrorIs(t, err, domain.ErrMalformedResponse, content)
	}
}

func TestUpstreamStatus(t *testing.T) {
	factory := NewFallbackFactory(secret.MapResolver{"AI_API_KEY": "sk"}, clientReplying(t, http.StatusUnauthorized, `{"error":"bad key"}`, nil), fallbackCfg)
	adapter, err := factory.NewAdapter(domain.AdapterConfig{})
	require.NoError(t, err)

	_, err = adapter.Assess(context.Background(), domain.Input{ReferenceText: "hi"})
	assert.ErrorIs(t, err, domain.ErrAuthenticationFailed)
}

func TestMissingKey(t *testing.T) {
	_, err := NewFallbackFactory(secret.MapResolver{}, nil, fallbackCfg).NewAdapter(domain.AdapterConfig{})
	assert.ErrorIs(t, err, domain.ErrAuthenticationFailed)
}

func TestCompatibleFactoryRequiresEndpoint(t *testing.T) {
	factory := NewCompatibleFactory(secret.MapResolver{"VENDOR_KEY": "k"}, nil, fallbackCfg)
	assert.Equal(t, CompatibleProviderType, factory.ProviderType())

	_, err := factory.NewAdapter(domain.AdapterConfig{APIKeySecretName: "VENDOR_KEY"})
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)

	client, err := factory.NewClient(domain.AdapterConfig{APIKeySecretName: "VENDOR_KEY", APIEndpoint: "https://llm.test/v1"})
	require.NoError(t, err)
	assert.Equal(t, "https://llm.test/v1/chat/completions", client.endpoint)
	assert.Equal(t, fallbackCfg.Model, client.model)
}

func TestCompletionsURL(t *testing.T) {
	cases := map[string]string{
		"https://a.test":                      "https://a.test/v1/chat/completions",
		"https://a.test/":                     "https://a.test/v1/chat/completions",
		"https://a.test/v1":                   "https://a.test/v1/chat/completions",
		"https://a.test/v1/chat/completions":  "https://a.test/v1/chat/completions",
		"https://a.test/api/chat/completions": "https://a.test/api/chat/completions",
	}
	for in, want := range cases {
		got, err := completionsURL(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := completionsURL("")
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}
