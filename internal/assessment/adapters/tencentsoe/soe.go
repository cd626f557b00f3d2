// Package tencentsoe scores pronunciation with Tencent's oral-evaluation API.
// Requests are signed with TC3-HMAC-SHA256 by hand.
package tencentsoe

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/tkwa12358/newenglish/internal/assessment/adapters/scoring"
	"github.com/tkwa12358/newenglish/internal/assessment/adapters/transport"
	"github.com/tkwa12358/newenglish/internal/assessment/domain"
	"github.com/tkwa12358/newenglish/internal/clock"
	"github.com/tkwa12358/newenglish/internal/secret"
	"github.com/tkwa12358/newenglish/internal/signing"
)

const (
	ProviderType = "tencent_soe"

	DefaultHost      = "soe.tencentcloudapi.com"
	DefaultRegion    = "ap-guangzhou"
	DefaultIDSecret  = "TENCENT_SOE_SECRET_ID"
	DefaultKeySecret = "TENCENT_SOE_SECRET_KEY"

	service = "soe"
	action  = "TransmitOralProcess"
	version = "2018-07-24"
)

type Factory struct {
	secrets secret.Resolver
	client  *http.Client
	clock   clock.Clock
}

func NewFactory(secrets secret.Resolver, client *http.Client, clk clock.Clock) *Factory {
	if clk == nil {
		clk = clock.New()
	}
	return &Factory{secrets: secrets, client: client, clock: clk}
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

	endpoint := "https://" + DefaultHost + "/"
	host := DefaultHost
	if raw := strings.TrimSpace(cfg.APIEndpoint); raw != "" {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("%w: invalid endpoint %q", domain.ErrProviderUnavailable, raw)
		}
		endpoint = raw
		host = u.Host
	}

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = DefaultRegion
	}

	return &adapter{
		client:    f.client,
		clock:     f.clock,
		secretID:  secretID,
		secretKey: secretKey,
		endpoint:  endpoint,
		host:      host,
		region:    region,
	}, nil
}

type adapter struct {
	client    *http.Client
	clock     clock.Clock
	secretID  string
	secretKey string
	endpoint  string
	host      string
	region    string
}

type transmitRequest struct {
	SeqID           int     `json:"SeqId"`
	IsEnd           int     `json:"IsEnd"`
	SessionID       string  `json:"SessionId"`
	VoiceFileType   int     `json:"VoiceFileType"`
	VoiceEncodeType int     `json:"VoiceEncodeType"`
	UserVoiceData   string  `json:"UserVoiceData"`
	RefText         string  `json:"RefText"`
	WorkMode        int     `json:"WorkMode"`
	EvalMode        int     `json:"EvalMode"`
	ScoreCoeff      float64 `json:"ScoreCoeff"`
}

type transmitResponse struct {
	Response *struct {
		Error *struct {
			Code    string `json:"Code"`
			Message string `json:"Message"`
		} `json:"Error"`
		PronAccuracy   *float64 `json:"PronAccuracy"`
		PronFluency    float64  `json:"PronFluency"`
		PronCompletion float64  `json:"PronCompletion"`
		SuggestedScore *float64 `json:"SuggestedScore"`
		Words          []struct {
			Word         string  `json:"Word"`
			PronAccuracy float64 `json:"PronAccuracy"`
			PronFluency  float64 `json:"PronFluency"`
			MatchTag     int     `json:"MatchTag"`
			PhoneInfos   []struct {
				Phone        string  `json:"Phone"`
				PronAccuracy float64 `json:"PronAccuracy"`
			} `json:"PhoneInfos"`
		} `json:"Words"`
		RequestID string `json:"RequestId"`
	} `json:"Response"`
}

func (a *adapter) Assess(ctx context.Context, in domain.Input) (*domain.Result, error) {
	payload, err := json.Marshal(transmitRequest{
		SeqID:           1,
		IsEnd:           1,
		SessionID:       uuid.NewString(),
		VoiceFileType:   3,
		VoiceEncodeType: 1,
		UserVoiceData:   base64.StdEncoding.EncodeToString(in.Audio),
		RefText:         in.ReferenceText,
		WorkMode:        0,
		EvalMode:        2,
		ScoreCoeff:      1.0,
	})
	if err != nil {
		return nil, fmt.Errorf("encode soe payload: %w", err)
	}

	sig, err := signing.SignTC3(signing.TC3Request{
		SecretID:  a.secretID,
		SecretKey: a.secretKey,
		Service:   service,
		Host:      a.host,
		Action:    action,
		Payload:   string(payload),
		Timestamp: a.clock.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrAuthenticationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build soe request: %w", err)
	}
	req.Host = a.host
	req.Header.Set("Content-Type", sig.ContentType)
	req.Header.Set("Authorization", sig.Authorization)
	req.Header.Set("X-TC-Action", action)
	req.Header.Set("X-TC-Version", version)
	req.Header.Set("X-TC-Timestamp", sig.Timestamp)
	req.Header.Set("X-TC-Region", a.region)

	body, err := transport.Do(a.client, req)
	if err != nil {
		return nil, err
	}
	return parse(body, in.ReferenceText)
}

func parse(body []byte, referenceText string) (*domain.Result, error) {
	var resp transmitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, transport.Malformed("decode soe response: %v", err)
	}
	r := resp.Response
	if r == nil {
		return nil, transport.Malformed("soe response has no Response object")
	}
	if r.Error != nil {
		if strings.HasPrefix(r.Error.Code, "AuthFailure") {
			return nil, fmt.Errorf("%w: %s: %s", domain.ErrAuthenticationFailed, r.Error.Code, r.Error.Message)
		}
		return nil, fmt.Errorf("%w: %s: %s", domain.ErrProviderUnavailable, r.Error.Code, r.Error.Message)
	}
	if r.PronAccuracy == nil {
		return nil, transport.Malformed("soe response has no PronAccuracy")
	}

	words := make([]domain.WordResult, 0, len(r.Words))
	for _, w := range r.Words {
		item := domain.WordResult{
			Word:          w.Word,
			AccuracyScore: scoring.Score(w.PronAccuracy),
			ErrorType:     matchTag(w.MatchTag),
		}
		for _, p := range w.PhoneInfos {
			item.Phonemes = append(item.Phonemes, domain.PhonemeScore{
				Phoneme: p.Phone,
				Score:   scoring.Score(p.PronAccuracy),
			})
		}
		words = append(words, item)
	}
	words = scoring.LimitWords(words, referenceText)

	accuracy := scoring.Score(*r.PronAccuracy)
	suggested := -1
	if r.SuggestedScore != nil {
		suggested = scoring.Score(*r.SuggestedScore)
	}

	return &domain.Result{
		OverallScore:       accuracy,
		PronunciationScore: accuracy,
		AccuracyScore:      accuracy,
		FluencyScore:       scoring.Fraction(r.PronFluency),
		CompletenessScore:  scoring.Fraction(r.PronCompletion),
		Feedback:           scoring.SuggestedFeedback(suggested, words),
		Words:              words,
		RawResponse:        body,
	}, nil
}

func matchTag(tag int) string {
	switch tag {
	case 0:
		return "None"
	case 1:
		return "Mispronunciation"
	default:
		return "Omission"
	}
}
