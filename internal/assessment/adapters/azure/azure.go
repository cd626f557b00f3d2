// Package azure scores pronunciation with the Azure speech-to-text REST API
// and its Pronunciation-Assessment header.
package azure

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tkwa12358/newenglish/internal/assessment/adapters/scoring"
	"github.com/tkwa12358/newenglish/internal/assessment/adapters/transport"
	"github.com/tkwa12358/newenglish/internal/assessment/domain"
	"github.com/tkwa12358/newenglish/internal/secret"
)

const (
	ProviderType = "azure"

	DefaultRegion    = "eastasia"
	DefaultKeySecret = "AZURE_SPEECH_KEY"

	endpointTemplate = "https://%s.stt.speech.microsoft.com/speech/recognition/conversation/cognitiveservices/v1"
)

type Factory struct {
	secrets secret.Resolver
	client  *http.Client
}

func NewFactory(secrets secret.Resolver, client *http.Client) *Factory {
	return &Factory{secrets: secrets, client: client}
}

func (f *Factory) ProviderType() string { return ProviderType }

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.Adapter, error) {
	key, err := transport.RequireSecret(f.secrets, cfg.APIKeySecretName, DefaultKeySecret)
	if err != nil {
		return nil, err
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = DefaultRegion
	}
	endpoint := strings.TrimSpace(cfg.APIEndpoint)
	if endpoint == "" {
		endpoint = fmt.Sprintf(endpointTemplate, region)
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("%w: invalid endpoint: %w", domain.ErrProviderUnavailable, err)
	}
	return &adapter{client: f.client, key: key, endpoint: endpoint}, nil
}

type adapter struct {
	client   *http.Client
	key      string
	endpoint string
}

type assessmentParams struct {
	ReferenceText string `json:"ReferenceText"`
	GradingSystem string `json:"GradingSystem"`
	Granularity   string `json:"Granularity"`
	Dimension     string `json:"Dimension"`
	EnableMiscue  bool   `json:"EnableMiscue"`
}

type pronunciationScores struct {
	AccuracyScore     float64 `json:"AccuracyScore"`
	FluencyScore      float64 `json:"FluencyScore"`
	CompletenessScore float64 `json:"CompletenessScore"`
	PronScore         float64 `json:"PronScore"`
}

type recognitionResponse struct {
	RecognitionStatus string `json:"RecognitionStatus"`
	DisplayText       string `json:"DisplayText"`
	NBest             []struct {
		Display                 string               `json:"Display"`
		PronunciationAssessment *pronunciationScores `json:"PronunciationAssessment"`
		Words                   []struct {
			Word                    string `json:"Word"`
			PronunciationAssessment *struct {
				AccuracyScore float64 `json:"AccuracyScore"`
				ErrorType     string  `json:"ErrorType"`
			} `json:"PronunciationAssessment"`
			Phonemes []struct {
				Phoneme                 string `json:"Phoneme"`
				PronunciationAssessment *struct {
					AccuracyScore float64 `json:"AccuracyScore"`
				} `json:"PronunciationAssessment"`
			} `json:"Phonemes"`
		} `json:"Words"`
	} `json:"NBest"`
}

func (a *adapter) Assess(ctx context.Context, in domain.Input) (*domain.Result, error) {
	header, err := assessmentHeader(in.ReferenceText)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL(a.endpoint, in.Language), bytes.NewReader(in.Audio))
	if err != nil {
		return nil, fmt.Errorf("build azure request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", a.key)
	req.Header.Set("Content-Type", "audio/wav")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Pronunciation-Assessment", header)

	body, err := transport.Do(a.client, req)
	if err != nil {
		return nil, err
	}
	return parse(body, in.ReferenceText)
}

func assessmentHeader(referenceText string) (string, error) {
	raw, err := json.Marshal(assessmentParams{
		ReferenceText: referenceText,
		GradingSystem: "HundredMark",
		Granularity:   "Phoneme",
		Dimension:     "Comprehensive",
		EnableMiscue:  true,
	})
	if err != nil {
		return "", fmt.Errorf("encode assessment header: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// requestURL adds language and format to endpoint unless already present.
func requestURL(endpoint, language string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	q := u.Query()
	if q.Get("language") == "" {
		q.Set("language", recognitionLanguage(language))
	}
	if q.Get("format") == "" {
		q.Set("format", "detailed")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func recognitionLanguage(language string) string {
	if strings.EqualFold(strings.TrimSpace(language), "zh-CN") {
		return "zh-CN"
	}
	return "en-US"
}

func parse(body []byte, referenceText string) (*domain.Result, error) {
	var resp recognitionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, transport.Malformed("decode azure response: %v", err)
	}
	if len(resp.NBest) == 0 {
		return nil, transport.Malformed("azure response has no NBest (status %q)", resp.RecognitionStatus)
	}
	best := resp.NBest[0]
	pa := best.PronunciationAssessment
	if pa == nil {
		return nil, transport.Malformed("azure response has no PronunciationAssessment")
	}

	words := make([]domain.WordResult, 0, len(best.Words))
	for _, w := range best.Words {
		// Miscue detection reports extra spoken words; they have no reference slot.
		if w.PronunciationAssessment != nil && w.PronunciationAssessment.ErrorType == "Insertion" {
			continue
		}
		item := domain.WordResult{Word: w.Word}
		if w.PronunciationAssessment != nil {
			item.AccuracyScore = scoring.Score(w.PronunciationAssessment.AccuracyScore)
			item.ErrorType = w.PronunciationAssessment.ErrorType
		}
		for _, p := range w.Phonemes {
			ph := domain.PhonemeScore{Phoneme: p.Phoneme}
			if p.PronunciationAssessment != nil {
				ph.Score = scoring.Score(p.PronunciationAssessment.AccuracyScore)
			}
			item.Phonemes = append(item.Phonemes, ph)
		}
		words = append(words, item)
	}
	words = scoring.LimitWords(words, referenceText)

	pron := scoring.Score(pa.PronScore)
	accuracy := scoring.Score(pa.AccuracyScore)
	fluency := scoring.Score(pa.FluencyScore)
	completeness := scoring.Score(pa.CompletenessScore)

	transcript := best.Display
	if transcript == "" {
		transcript = resp.DisplayText
	}

	return &domain.Result{
		OverallScore:       pron,
		PronunciationScore: pron,
		AccuracyScore:      accuracy,
		FluencyScore:       fluency,
		CompletenessScore:  completeness,
		Feedback:           scoring.AccuracyFeedback(accuracy, fluency, completeness, words),
		Words:              words,
		Transcript:         transcript,
		RawResponse:        body,
	}, nil
}
