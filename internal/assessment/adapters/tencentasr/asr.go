// Package tencentasr transcribes with Tencent's sentence-recognition API and
// hands the transcript to the chat scorer.
package tencentasr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	asr "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/asr/v20190614"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	tcerr "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/errors"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"
	"github.com/tkwa12358/newenglish/internal/assessment/adapters/aichat"
	"github.com/tkwa12358/newenglish/internal/assessment/adapters/transport"
	"github.com/tkwa12358/newenglish/internal/assessment/domain"
	"github.com/tkwa12358/newenglish/internal/secret"
)

const (
	ProviderType = "tencent_asr"

	DefaultHost        = "asr.tencentcloudapi.com"
	DefaultRegion      = "ap-shanghai"
	DefaultIDSecret    = "TENCENT_SECRET_ID"
	DefaultKeySecret   = "TENCENT_SECRET_KEY"
	DefaultVoiceFormat = "webm"
)

// Recognizer is the slice of the SDK client the adapter calls.
type Recognizer interface {
	SentenceRecognitionWithContext(ctx context.Context, request *asr.SentenceRecognitionRequest) (*asr.SentenceRecognitionResponse, error)
}

// Scorer turns a transcript into scores.
type Scorer interface {
	Evaluate(ctx context.Context, transcript, referenceText, language string) (*domain.Result, error)
}

// RecognizerFunc builds a Recognizer for one set of credentials.
type RecognizerFunc func(credential *common.Credential, region string, prof *profile.ClientProfile) (Recognizer, error)

type Factory struct {
	secrets       secret.Resolver
	httpClient    *http.Client
	scorers       *aichat.Factory
	newRecognizer RecognizerFunc
}

func NewFactory(secrets secret.Resolver, httpClient *http.Client, scorers *aichat.Factory) *Factory {
	return &Factory{
		secrets:    secrets,
		httpClient: httpClient,
		scorers:    scorers,
		newRecognizer: func(credential *common.Credential, region string, prof *profile.ClientProfile) (Recognizer, error) {
			client, err := asr.NewClient(credential, region, prof)
			if err != nil {
				return nil, err
			}
			if httpClient != nil && httpClient.Transport != nil {
				client.WithHttpTransport(httpClient.Transport)
			}
			return client, nil
		},
	}
}

// WithRecognizer replaces the SDK client constructor.
func (f *Factory) WithRecognizer(fn RecognizerFunc) *Factory {
	f.newRecognizer = fn
	return f
}

func (f *Factory) ProviderType() string { return ProviderType }

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.Adapter, error) {
	secretID, err := transport.RequireSecret(f.secrets, cfg.APIKeySecretName, DefaultIDSecret)
	if err != nil {
		return nil, err
	}
	secretKey, err := transport.RequireSecret(f.secrets, cfg.APISecretKeyName, DefaultKeySecret)
	if err != nil {
		return nil, err
	}
	if f.scorers == nil {
		return nil, fmt.Errorf("%w: no transcript scorer configured", domain.ErrProviderUnavailable)
	}
	scorer, err := f.scorers.NewClient(domain.AdapterConfig{Model: cfg.Option("scorer_model", "")})
	if err != nil {
		return nil, err
	}

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = DefaultRegion
	}
	prof := profile.NewClientProfile()
	prof.HttpProfile.Endpoint = endpointHost(cfg.APIEndpoint)
	if f.httpClient != nil && f.httpClient.Timeout > 0 {
		prof.HttpProfile.ReqTimeout = int(f.httpClient.Timeout / time.Second)
	}

	recognizer, err := f.newRecognizer(common.NewCredential(secretID, secretKey), region, prof)
	if err != nil {
		return nil, fmt.Errorf("%w: create asr client: %w", domain.ErrProviderUnavailable, err)
	}

	return &adapter{
		recognizer:  recognizer,
		scorer:      scorer,
		voiceFormat: cfg.Option("voice_format", DefaultVoiceFormat),
	}, nil
}

type adapter struct {
	recognizer  Recognizer
	scorer      Scorer
	voiceFormat string
}

func (a *adapter) Assess(ctx context.Context, in domain.Input) (*domain.Result, error) {
	req := asr.NewSentenceRecognitionRequest()
	req.ProjectId = common.Uint64Ptr(0)
	req.SubServiceType = common.Uint64Ptr(2)
	req.EngSerViceType = common.StringPtr(engineModel(in.Language))
	req.SourceType = common.Uint64Ptr(1)
	req.VoiceFormat = common.StringPtr(a.voiceFormat)
	req.Data = common.StringPtr(base64.StdEncoding.EncodeToString(in.Audio))
	req.DataLen = common.Int64Ptr(int64(len(in.Audio)))

	resp, err := a.recognizer.SentenceRecognitionWithContext(ctx, req)
	if err != nil {
		return nil, classify(err)
	}
	if resp == nil || resp.Response == nil || resp.Response.Result == nil {
		return nil, transport.Malformed("asr response has no Result")
	}
	transcript := strings.TrimSpace(*resp.Response.Result)

	result, err := a.scorer.Evaluate(ctx, transcript, in.ReferenceText, in.Language)
	if err != nil {
		return nil, err
	}
	result.Transcript = transcript
	result.RawResponse = combineRaw(resp.ToJsonString(), result.RawResponse)
	return result, nil
}

func engineModel(language string) string {
	if strings.EqualFold(strings.TrimSpace(language), "zh-CN") {
		return "16k_zh"
	}
	return "16k_en"
}

func endpointHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultHost
	}
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return u.Host
	}
	return raw
}

func classify(err error) error {
	var sdkErr *tcerr.TencentCloudSDKError
	if errors.As(err, &sdkErr) {
		if strings.HasPrefix(sdkErr.GetCode(), "AuthFailure") {
			return fmt.Errorf("%w: %s: %s", domain.ErrAuthenticationFailed, sdkErr.GetCode(), sdkErr.GetMessage())
		}
		return fmt.Errorf("%w: %s: %s", domain.ErrProviderUnavailable, sdkErr.GetCode(), sdkErr.GetMessage())
	}
	return fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
}

func combineRaw(recognition string, scoring []byte) []byte {
	raw := map[string]json.RawMessage{}
	if json.Valid([]byte(recognition)) {
		raw["recognition"] = json.RawMessage(recognition)
	}
	if json.Valid(scoring) {
		raw["scoring"] = json.RawMessage(scoring)
	}
	out, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	return out
}
