// Package googlestt transcribes with Google Cloud Speech-to-Text and hands
// the transcript to the chat scorer.
package googlestt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/tkwa12358/newenglish/internal/assessment/adapters/aichat"
	"github.com/tkwa12358/newenglish/internal/assessment/adapters/transport"
	"github.com/tkwa12358/newenglish/internal/assessment/domain"
	"github.com/tkwa12358/newenglish/internal/secret"
)

const (
	ProviderType = "google_stt"

	DefaultCredentialsSecret = "GOOGLE_SPEECH_CREDENTIALS"
	defaultSampleRate        = 48000
)

// Recognizer is the synchronous recognize call.
type Recognizer interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)
	Close() error
}

// RecognizerFunc opens a Recognizer with the given client options.
type RecognizerFunc func(ctx context.Context, opts ...option.ClientOption) (Recognizer, error)

type Scorer interface {
	Evaluate(ctx context.Context, transcript, referenceText, language string) (*domain.Result, error)
}

// Factory keeps one gRPC client per credential and endpoint; Close releases
// them.
type Factory struct {
	secrets       secret.Resolver
	scorers       *aichat.Factory
	newRecognizer RecognizerFunc

	mu      sync.Mutex
	clients map[string]Recognizer
}

func NewFactory(secrets secret.Resolver, scorers *aichat.Factory) *Factory {
	return &Factory{
		secrets:       secrets,
		scorers:       scorers,
		newRecognizer: dialSpeech,
		clients:       map[string]Recognizer{},
	}
}

// WithRecognizer replaces the gRPC client constructor.
func (f *Factory) WithRecognizer(fn RecognizerFunc) *Factory {
	f.newRecognizer = fn
	return f
}

func (f *Factory) ProviderType() string { return ProviderType }

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.Adapter, error) {
	creds, err := transport.RequireSecret(f.secrets, cfg.APIKeySecretName, DefaultCredentialsSecret)
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

	recognizer, err := f.recognizer(creds, strings.TrimSpace(cfg.APIEndpoint))
	if err != nil {
		return nil, err
	}
	return &adapter{recognizer: recognizer, scorer: scorer, model: strings.TrimSpace(cfg.Model)}, nil
}

func (f *Factory) recognizer(creds, endpoint string) (Recognizer, error) {
	key := endpoint + "|" + creds
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.clients[key]; ok {
		return r, nil
	}

	opts := []option.ClientOption{credentialsOption(creds)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	r, err := f.newRecognizer(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: speech client: %w", domain.ErrAuthenticationFailed, err)
	}
	f.clients[key] = r
	return r, nil
}

func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var firstErr error
	for key, r := range f.clients {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(f.clients, key)
	}
	return firstErr
}

// credentialsOption accepts either inline service-account JSON or a path.
func credentialsOption(creds string) option.ClientOption {
	if strings.HasPrefix(strings.TrimSpace(creds), "{") {
		return option.WithCredentialsJSON([]byte(creds))
	}
	return option.WithCredentialsFile(creds)
}

type speechClient struct {
	client *speech.Client
}

func dialSpeech(ctx context.Context, opts ...option.ClientOption) (Recognizer, error) {
	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &speechClient{client: c}, nil
}

func (s *speechClient) Recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
	return s.client.Recognize(ctx, req)
}

func (s *speechClient) Close() error {
	return s.client.Close()
}

type adapter struct {
	recognizer Recognizer
	scorer     Scorer
	model      string
}

func (a *adapter) Assess(ctx context.Context, in domain.Input) (*domain.Result, error) {
	language := strings.TrimSpace(in.Language)
	if language == "" {
		language = "en-US"
	}
	req := &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_WEBM_OPUS,
			SampleRateHertz:            defaultSampleRate,
			LanguageCode:               language,
			EnableAutomaticPunctuation: true,
			Model:                      a.model,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: in.Audio},
		},
	}

	resp, err := a.recognizer.Recognize(ctx, req)
	if err != nil {
		return nil, classify(err)
	}
	if resp == nil {
		return nil, transport.Malformed("speech response is empty")
	}
	transcript := transcriptOf(resp)

	result, err := a.scorer.Evaluate(ctx, transcript, in.ReferenceText, in.Language)
	if err != nil {
		return nil, err
	}
	result.Transcript = transcript
	result.RawResponse = combineRaw(resp, result.RawResponse)
	return result, nil
}

func transcriptOf(resp *speechpb.RecognizeResponse) string {
	parts := make([]string, 0, len(resp.GetResults()))
	for _, r := range resp.GetResults() {
		alts := r.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if text := strings.TrimSpace(alts[0].GetTranscript()); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

func classify(err error) error {
	switch status.Code(err) {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %w", domain.ErrAuthenticationFailed, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	}
}

func combineRaw(resp *speechpb.RecognizeResponse, scoring []byte) []byte {
	raw := map[string]json.RawMessage{}
	if b, err := protojson.Marshal(resp); err == nil {
		raw["recognition"] = b
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
