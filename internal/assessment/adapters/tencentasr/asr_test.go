package tencentasr

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	asr "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/asr/v20190614"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	tcerr "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/errors"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"
	"github.com/tkwa12358/newenglish/internal/assessment/adapters/aichat"
	"github.com/tkwa12358/newenglish/internal/assessment/domain"
	"github.com/tkwa12358/newenglish/internal/config"
	"github.com/tkwa12358/newenglish/internal/secret"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

type fakeRecognizer struct {
	got    *asr.SentenceRecognitionRequest
	result *string
	err    error
}

func (f *fakeRecognizer) SentenceRecognitionWithContext(_ context.Context, req *asr.SentenceRecognitionRequest) (*asr.SentenceRecognitionResponse, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	resp := asr.NewSentenceRecognitionResponse()
	resp.Response = &asr.SentenceRecognitionResponseParams{Result: f.result, RequestId: common.StringPtr("req-1")}
	return resp, nil
}

var secrets = secret.MapResolver{
	"TENCENT_SECRET_ID":  "id",
	"TENCENT_SECRET_KEY": "key",
	"AI_API_KEY":         "sk",
}

func scorerFactory(t *testing.T, transcripts *[]string) *aichat.Factory {
	client := &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		raw, _ := io.ReadAll(r.Body)
		*transcripts = append(*transcripts, string(raw))
		reply, _ := json.Marshal(map[string]any{"choices": []map[string]any{{"message": map[string]any{
			"content": `{"overall_score": 77, "accuracy_score": 75, "fluency_score": 80, "completeness_score": 95, "feedback": "ok"}`,
		}}}})
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(string(reply))), Header: http.Header{}}, nil
	})}
	return aichat.NewFallbackFactory(secrets, client, config.AIFallbackConfig{
		BaseURL:          "https://ai.test",
		Model:            "m",
		APIKeySecretName: "AI_API_KEY",
	})
}

func TestTranscribeThenScore(t *testing.T) {
	var bodies []string
	rec := &fakeRecognizer{result: common.StringPtr(" hello word ")}
	var gotRegion string
	factory := NewFactory(secrets, nil, scorerFactory(t, &bodies)).
		WithRecognizer(func(_ *common.Credential, region string, prof *profile.ClientProfile) (Recognizer, error) {
			gotRegion = region
			assert.Equal(t, DefaultHost, prof.HttpProfile.Endpoint)
			return rec, nil
		})

	adapter, err := factory.NewAdapter(domain.AdapterConfig{ProviderType: ProviderType})
	require.NoError(t, err)

	res, err := adapter.Assess(context.Background(), domain.Input{Audio: []byte("abc"), ReferenceText: "hello world", Language: "en-US"})
	require.NoError(t, err)

	assert.Equal(t, DefaultRegion, gotRegion)
	assert.Equal(t, "16k_en", *rec.got.EngSerViceType)
	assert.Equal(t, "webm", *rec.got.VoiceFormat)
	assert.EqualValues(t, 3, *rec.got.DataLen)
	assert.Equal(t, "YWJj", *rec.got.Data)

	require.Len(t, bodies, 1)
	assert.Contains(t, bodies[0], "hello word")
	assert.Equal(t, "hello word", res.Transcript)
	assert.Equal(t, 77, res.OverallScore)
	assert.True(t, res.Simulated)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(res.RawResponse, &raw))
	assert.Contains(t, raw, "recognition")
	assert.Contains(t, raw, "scoring")
}

func TestChineseEngineAndVoiceFormatOption(t *testing.T) {
	var bodies []string
	rec := &fakeRecognizer{result: common.StringPtr("你好")}
	factory := NewFactory(secrets, nil, scorerFactory(t, &bodies)).
		WithRecognizer(func(*common.Credential, string, *profile.ClientProfile) (Recognizer, error) { return rec, nil })

	adapter, err := factory.NewAdapter(domain.AdapterConfig{Options: map[string]any{"voice_format": "wav"}})
	require.NoError(t, err)

	_, err = adapter.Assess(context.Background(), domain.Input{ReferenceText: "你好", Language: "zh-CN"})
	require.NoError(t, err)
	assert.Equal(t, "16k_zh", *rec.got.EngSerViceType)
	assert.Equal(t, "wav", *rec.got.VoiceFormat)
}

func TestSDKErrorsAreClassified(t *testing.T) {
	cases := []struct {
		err  error
		want error
	}{
		{tcerr.NewTencentCloudSDKError("AuthFailure.SecretIdNotFound", "no such id", "r1"), domain.ErrAuthenticationFailed},
		{tcerr.NewTencentCloudSDKError("FailedOperation.ErrorRecognize", "bad audio", "r2"), domain.ErrProviderUnavailable},
		{io.ErrUnexpectedEOF, domain.ErrProviderUnavailable},
	}
	for _, tc := range cases {
		var bodies []string
		rec := &fakeRecognizer{err: tc.err}
		factory := NewFactory(secrets, nil, scorerFactory(t, &bodies)).
			WithRecognizer(func(*common.Credential, string, *profile.ClientProfile) (Recognizer, error) { return rec, nil })
		adapter, err := factory.NewAdapter(domain.AdapterConfig{})
		require.NoError(t, err)

		_, err = adapter.Assess(context.Background(), domain.Input{ReferenceText: "hi"})
		assert.ErrorIs(t, err, tc.want)
		assert.Empty(t, bodies, "scorer must not run when recognition fails")
	}
}

func TestMissingResultIsMalformed(t *testing.T) {
	var bodies []string
	rec := &fakeRecognizer{}
	factory := NewFactory(secrets, nil, scorerFactory(t, &bodies)).
		WithRecognizer(func(*common.Credential, string, *profile.ClientProfile) (Recognizer, error) { return rec, nil })
	adapter, err := factory.NewAdapter(domain.AdapterConfig{})
	require.NoError(t, err)

	_, err = adapter.Assess(context.Background(), domain.Input{ReferenceText: "hi"})
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
}

func TestMissingCredentials(t *testing.T) {
	_, err := NewFactory(secret.MapResolver{"TENCENT_SECRET_ID": "id"}, nil, nil).NewAdapter(domain.AdapterConfig{})
	assert.ErrorIs(t, err, domain.ErrAuthenticationFailed)
}

func TestEndpointHost(t *testing.T) {
	assert.Equal(t, DefaultHost, endpointHost(""))
	assert.Equal(t, "asr.internal.test", endpointHost("https://asr.internal.test/"))
	assert.Equal(t, "asr.ap-shanghai.tencentcloudapi.com", endpointHost("asr.ap-shanghai.tencentcloudapi.com"))
}
