package azure

import (
	"context"
	"encoding/base64"
	"encoding/json"
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

const detailedResponse = `{
  "RecognitionStatus": "Success",
  "DisplayText": "Hello world.",
  "NBest": [{
    "Display": "Hello world.",
    "PronunciationAssessment": {"AccuracyScore": 91.4, "FluencyScore": 64.5, "CompletenessScore": 100, "PronScore": 85.6},
    "Words": [
      {"Word": "hello", "PronunciationAssessment": {"AccuracyScore": 98, "ErrorType": "None"},
       "Phonemes": [{"Phoneme": "h", "PronunciationAssessment": {"AccuracyScore": 99.6}}]},
      {"Word": "world", "PronunciationAssessment": {"AccuracyScore": 41.2, "ErrorType": "Mispronunciation"}}
    ]
  }]
}`

func respond(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body)), Header: http.Header{}}
}

func TestAssessBuildsRequestAndParses(t *testing.T) {
	var captured *http.Request
	var audio []byte
	client := &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		captured = r
		audio, _ = io.ReadAll(r.Body)
		return respond(http.StatusOK, detailedResponse), nil
	})}

	factory := NewFactory(secret.MapResolver{"AZURE_SPEECH_KEY": "sub-key"}, client)
	adapter, err := factory.NewAdapter(domain.AdapterConfig{ProviderType: ProviderType})
	require.NoError(t, err)

	res, err := adapter.Assess(context.Background(), domain.Input{
		Audio:         []byte("RIFF"),
		ReferenceText: "Hello world",
		Language:      "en-US",
	})
	require.NoError(t, err)

	require.NotNil(t, captured)
	assert.Equal(t, "eastasia.stt.speech.microsoft.com", captured.URL.Host)
	assert.Equal(t, "en-US", captured.URL.Query().Get("language"))
	assert.Equal(t, "detailed", captured.URL.Query().Get("format"))
	assert.Equal(t, "sub-key", captured.Header.Get("Ocp-Apim-Subscription-Key"))
	assert.Equal(t, "audio/wav", captured.Header.Get("Content-Type"))
	assert.Equal(t, []byte("RIFF"), audio)

	raw, err := base64.StdEncoding.DecodeString(captured.Header.Get("Pronunciation-Assessment"))
	require.NoError(t, err)
	var params map[string]any
	require.NoError(t, json.Unmarshal(raw, &params))
	assert.Equal(t, "Hello world", params["ReferenceText"])
	assert.Equal(t, "HundredMark", params["GradingSystem"])
	assert.Equal(t, "Phoneme", params["Granularity"])
	assert.Equal(t, true, params["EnableMiscue"])

	assert.Equal(t, 86, res.OverallScore)
	assert.Equal(t, 86, res.PronunciationScore)
	assert.Equal(t, 91, res.AccuracyScore)
	assert.Equal(t, 65, res.FluencyScore)
	assert.Equal(t, 100, res.CompletenessScore)
	assert.Equal(t, "Hello world.", res.Transcript)
	assert.False(t, res.Simulated)

	require.Len(t, res.Words, 2)
	assert.Equal(t, "Mispronunciation", res.Words[1].ErrorType)
	assert.Equal(t, 41, res.Words[1].AccuracyScore)
	require.Len(t, res.Words[0].Phonemes, 1)
	assert.Equal(t, 100, res.Words[0].Phonemes[0].Score)

	assert.Contains(t, res.Feedback, "very accurate")
	assert.Contains(t, res.Feedback, "smoothly")
	assert.Contains(t, res.Feedback, "Focus on: world")
}

func TestAssessUsesChineseLanguageAndEndpointOverride(t *testing.T) {
	var captured *http.Request
	client := &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		captured = r
		return respond(http.StatusOK, detailedResponse), nil
	})}
	factory := NewFactory(secret.MapResolver{"MY_KEY": "k"}, client)
	adapter, err := factory.NewAdapter(domain.AdapterConfig{
		APIKeySecretName: "MY_KEY",
		APIEndpoint:      "https://speech.internal.test/recognize",
	})
	require.NoError(t, err)

	_, err = adapter.Assess(context.Background(), domain.Input{ReferenceText: "你好", Language: "zh-CN"})
	require.NoError(t, err)
	assert.Equal(t, "speech.internal.test", captured.URL.Host)
	assert.Equal(t, "zh-CN", captured.URL.Query().Get("language"))
}

func TestMissingKeyFailsBeforeIO(t *testing.T) {
	called := false
	client := &http.Client{Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
		called = true
		return respond(http.StatusOK, detailedResponse), nil
	})}
	_, err := NewFactory(secret.MapResolver{}, client).NewAdapter(domain.AdapterConfig{})
	assert.ErrorIs(t, err, domain.ErrAuthenticationFailed)
	assert.False(t, called)
}

func TestAssessErrorKinds(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"forbidden", http.StatusForbidden, `{}`, domain.ErrAuthenticationFailed},
		{"server error", http.StatusInternalServerError, `oops`, domain.ErrProviderUnavailable},
		{"not json", http.StatusOK, `<html>`, domain.ErrMalformedResponse},
		{"no nbest", http.StatusOK, `{"RecognitionStatus":"NoMatch","NBest":[]}`, domain.ErrMalformedResponse},
		{"no assessment", http.StatusOK, `{"NBest":[{"Display":"hi"}]}`, domain.ErrMalformedResponse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := &http.Client{Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
				return respond(tc.status, tc.body), nil
			})}
			adapter, err := NewFactory(secret.MapResolver{"AZURE_SPEECH_KEY": "k"}, client).NewAdapter(domain.AdapterConfig{})
			require.NoError(t, err)

			_, err = adapter.Assess(context.Background(), domain.Input{ReferenceText: "hi"})
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestInsertedWordsAreDropped(t *testing.T) {
	const miscue = `{
  "RecognitionStatus": "Success",
  "NBest": [{
    "Display": "Hello hello big world.",
    "PronunciationAssessment": {"AccuracyScore": 80, "FluencyScore": 80, "CompletenessScore": 100, "PronScore": 80},
    "Words": [
      {"Word": "hello", "PronunciationAssessment": {"AccuracyScore": 90, "ErrorType": "None"}},
      {"Word": "hello", "PronunciationAssessment": {"AccuracyScore": 70, "ErrorType": "Insertion"}},
      {"Word": "big", "PronunciationAssessment": {"AccuracyScore": 60, "ErrorType": "Insertion"}},
      {"Word": "world", "PronunciationAssessment": {"AccuracyScore": 85, "ErrorType": "None"}}
    ]
  }]
}`
	client := &http.Client{Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
		return respond(http.StatusOK, miscue), nil
	})}
	adapter, err := NewFactory(secret.MapResolver{"AZURE_SPEECH_KEY": "k"}, client).NewAdapter(domain.AdapterConfig{})
	require.NoError(t, err)

	res, err := adapter.Assess(context.Background(), domain.Input{ReferenceText: "Hello world", Language: "en-US"})
	require.NoError(t, err)
	require.Len(t, res.Words, 2)
	assert.Equal(t, "hello", res.Words[0].Word)
	assert.Equal(t, "world", res.Words[1].Word)
}
