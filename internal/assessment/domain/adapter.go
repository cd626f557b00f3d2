package domain

import "context"

// Input is the audio clip and reference sentence handed to a backend.
type Input struct {
	Audio         []byte
	ReferenceText string
	Language      string
}

type PhonemeScore struct {
	Phoneme string `json:"phoneme"`
	Score   int    `json:"score"`
}

type WordResult struct {
	Word          string         `json:"word"`
	AccuracyScore int            `json:"accuracy_score"`
	ErrorType     string         `json:"error_type,omitempty"`
	Phonemes      []PhonemeScore `json:"phonemes,omitempty"`
}

// Result is the normalized output of every backend. Scores are integers in
// 0..100.
type Result struct {
	OverallScore       int
	PronunciationScore int
	AccuracyScore      int
	FluencyScore       int
	CompletenessScore  int
	Feedback           string
	Words              []WordResult
	Transcript         string
	RawResponse        []byte
	// Simulated is set when the scores were produced by a text model rather
	// than measured from the audio.
	Simulated bool
}

// AdapterConfig is the resolved configuration for one backend call.
type AdapterConfig struct {
	ProviderID       string
	Name             string
	ProviderType     string
	APIEndpoint      string
	APIKeySecretName string
	APISecretKeyName string
	Region           string
	Model            string
	Options          map[string]any
}

// Option returns the string option stored under key, or def.
func (c AdapterConfig) Option(key, def string) string {
	if c.Options == nil {
		return def
	}
	if v, ok := c.Options[key].(string); ok && v != "" {
		return v
	}
	return def
}

type Adapter interface {
	Assess(ctx context.Context, in Input) (*Result, error)
}

// AdapterBuilder constructs the adapter for a resolved configuration.
type AdapterBuilder interface {
	Build(cfg AdapterConfig) (Adapter, error)
}

type AdapterFactory interface {
	ProviderType() string
	NewAdapter(cfg AdapterConfig) (Adapter, error)
}
