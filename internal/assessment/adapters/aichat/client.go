// Package aichat scores reading attempts with an OpenAI-compatible
// chat-completions backend. The model either simulates a plausible result
// from the reference text alone or compares a transcript with it.
package aichat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/tkwa12358/newenglish/internal/assessment/adapters/scoring"
	"github.com/tkwa12358/newenglish/internal/assessment/adapters/transport"
	"github.com/tkwa12358/newenglish/internal/assessment/domain"
)

const (
	simulateTemperature = 0.5
	evaluateTemperature = 0.3
)

// Client talks to one chat-completions endpoint.
type Client struct {
	http     *http.Client
	endpoint string
	apiKey   string
	model    string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type scoredReply struct {
	OverallScore       *float64 `json:"overall_score"`
	PronunciationScore *float64 `json:"pronunciation_score"`
	AccuracyScore      *float64 `json:"accuracy_score"`
	FluencyScore       *float64 `json:"fluency_score"`
	CompletenessScore  *float64 `json:"completeness_score"`
	Feedback           string   `json:"feedback"`
	WordScores         []struct {
		Word      string  `json:"word"`
		Score     float64 `json:"score"`
		ErrorType string  `json:"error_type"`
	} `json:"word_scores"`
}

const simulatePrompt = `You are an expert English pronunciation assessor. Based only on the reference sentence, simulate a realistic pronunciation assessment for a language learner, taking the sentence's difficulty and common pronunciation pitfalls into account.

Return one JSON object with these fields:
- overall_score: 0-100
- accuracy_score: 0-100
- fluency_score: 0-100
- completeness_score: 0-100
- feedback: short, concrete advice for the learner
- word_scores: array of {word, score, error_type}, one entry per word of the sentence

Return only the JSON object.`

const evaluatePrompt = `You are an expert English pronunciation assessor. Compare what the learner actually said (a speech recognition transcript) with the reference sentence and score the attempt.

Scoring:
- accuracy_score (0-100): were the words pronounced correctly
- fluency_score (0-100): natural pace without hesitation
- completeness_score (0-100): how much of the reference was read
- overall_score (0-100): overall rating

Return one JSON object with overall_score, accuracy_score, fluency_score, completeness_score, feedback (concrete advice) and optionally word_scores as an array of {word, score, error_type}.

Return only the JSON object.`

// Simulate asks the model for a plausible result from the reference text
// alone. The audio is never sent.
func (c *Client) Simulate(ctx context.Context, referenceText, language string) (*domain.Result, error) {
	user := fmt.Sprintf("Reference sentence (%s): %q\n\nGenerate a simulated pronunciation assessment for this sentence.", languageOrDefault(language), referenceText)
	return c.complete(ctx, simulatePrompt, user, simulateTemperature, referenceText)
}

// Evaluate scores a transcript against the reference text.
func (c *Client) Evaluate(ctx context.Context, transcript, referenceText, language string) (*domain.Result, error) {
	user := fmt.Sprintf("Reference sentence (%s): %q\n\nLearner transcript: %q\n\nScore the attempt by comparing the two.", languageOrDefault(language), referenceText, transcript)
	result, err := c.complete(ctx, evaluatePrompt, user, evaluateTemperature, referenceText)
	if err != nil {
		return nil, err
	}
	result.Transcript = transcript
	return result, nil
}

func (c *Client) complete(ctx context.Context, system, user string, temperature float64, referenceText string) (*domain.Result, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	body, err := transport.Do(c.http, req)
	if err != nil {
		return nil, err
	}
	return parseReply(body, referenceText)
}

func parseReply(body []byte, referenceText string) (*domain.Result, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, transport.Malformed("decode chat response: %v", err)
	}
	if len(resp.Choices) == 0 {
		return nil, transport.Malformed("chat response has no choices")
	}

	object, ok := extractObject(resp.Choices[0].Message.Content)
	if !ok {
		return nil, transport.Malformed("chat reply contains no JSON object")
	}
	var reply scoredReply
	if err := json.Unmarshal([]byte(object), &reply); err != nil {
		return nil, transport.Malformed("decode scored reply: %v", err)
	}
	if reply.OverallScore == nil || reply.AccuracyScore == nil || reply.FluencyScore == nil || reply.CompletenessScore == nil {
		return nil, transport.Malformed("scored reply is missing score fields")
	}

	words := make([]domain.WordResult, 0, len(reply.WordScores))
	for _, w := range reply.WordScores {
		if strings.TrimSpace(w.Word) == "" {
			continue
		}
		words = append(words, domain.WordResult{
			Word:          w.Word,
			AccuracyScore: scoring.Score(w.Score),
			ErrorType:     w.ErrorType,
		})
	}
	words = scoring.LimitWords(words, referenceText)

	accuracy := scoring.Score(*reply.AccuracyScore)
	pronunciation := accuracy
	if reply.PronunciationScore != nil {
		pronunciation = scoring.Score(*reply.PronunciationScore)
	}
	fluency := scoring.Score(*reply.FluencyScore)
	completeness := scoring.Score(*reply.CompletenessScore)

	feedback := strings.TrimSpace(reply.Feedback)
	if feedback == "" {
		feedback = scoring.AccuracyFeedback(accuracy, fluency, completeness, words)
	}

	return &domain.Result{
		OverallScore:       scoring.Score(*reply.OverallScore),
		PronunciationScore: pronunciation,
		AccuracyScore:      accuracy,
		FluencyScore:       fluency,
		CompletenessScore:  completeness,
		Feedback:           feedback,
		Words:              words,
		RawResponse:        body,
		Simulated:          true,
	}, nil
}

// extractObject returns the text from the first '{' to the last '}'.
// Models often wrap the JSON in prose or code fences.
func extractObject(content string) (string, bool) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return content[start : end+1], true
}

func languageOrDefault(language string) string {
	if strings.TrimSpace(language) == "" {
		return "en-US"
	}
	return language
}
