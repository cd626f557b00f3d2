package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	assessmentdomain "github.com/tkwa12358/newenglish/internal/assessment/domain"
	quotadomain "github.com/tkwa12358/newenglish/internal/quota/domain"
)

type assessmentRequest struct {
	AudioBase64  string `json:"audio_base64"`
	OriginalText string `json:"original_text"`
	Language     string `json:"language"`
	ModelID      string `json:"model_id"`
}

type assessmentResponse struct {
	OverallScore       int                           `json:"overall_score"`
	PronunciationScore int                           `json:"pronunciation_score"`
	AccuracyScore      int                           `json:"accuracy_score"`
	FluencyScore       int                           `json:"fluency_score"`
	CompletenessScore  int                           `json:"completeness_score"`
	Feedback           string                        `json:"feedback"`
	WordsResult        []assessmentdomain.WordResult `json:"words_result,omitempty"`
	TranscribedText    string                        `json:"transcribed_text,omitempty"`
	Simulated          bool                          `json:"simulated,omitempty"`
	RemainingMinutes   int64                         `json:"remaining_minutes"`
	MinutesUsed        int64                         `json:"minutes_used"`
	Billed             bool                          `json:"billed"`
	BillingError       string                        `json:"billing_error,omitempty"`
}

func (s *Server) AssessStandard(c *gin.Context) {
	s.assess(c, quotadomain.TierStandard)
}

func (s *Server) AssessProfessional(c *gin.Context) {
	s.assess(c, quotadomain.TierProfessional)
}

func (s *Server) assess(c *gin.Context, tier quotadomain.Tier) {
	principal, ok := principalFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req assessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeAssessmentError(c, assessmentdomain.ErrInvalidRequest, nil)
		return
	}

	resp, err := s.assessmentSvc.Assess(c.Request.Context(), assessmentdomain.Request{
		UserID:       principal.UserID,
		Tier:         tier,
		AudioBase64:  req.AudioBase64,
		OriginalText: strings.TrimSpace(req.OriginalText),
		Language:     strings.TrimSpace(req.Language),
		ModelID:      strings.TrimSpace(req.ModelID),
	})
	if resp != nil && resp.ProviderType != "" {
		c.Set(contextProviderTypeKey, resp.ProviderType)
	}
	if err != nil {
		s.writeAssessmentError(c, err, resp)
		return
	}
	if resp == nil || resp.Result == nil {
		s.writeAssessmentError(c, assessmentdomain.ErrAssessmentFailed, resp)
		return
	}

	result := resp.Result
	c.JSON(http.StatusOK, assessmentResponse{
		OverallScore:       result.OverallScore,
		PronunciationScore: result.PronunciationScore,
		AccuracyScore:      result.AccuracyScore,
		FluencyScore:       result.FluencyScore,
		CompletenessScore:  result.CompletenessScore,
		Feedback:           result.Feedback,
		WordsResult:        result.Words,
		TranscribedText:    result.Transcript,
		Simulated:          result.Simulated,
		RemainingMinutes:   resp.RemainingMinutes,
		MinutesUsed:        resp.MinutesUsed,
		Billed:             resp.Billed,
		BillingError:       resp.BillingError,
	})
}

// writeAssessmentError always reports billed=false; failed attempts are never
// charged.
func (s *Server) writeAssessmentError(c *gin.Context, err error, resp *assessmentdomain.Response) {
	_ = c.Error(err)

	var remaining int64
	if resp != nil {
		remaining = resp.RemainingMinutes
	}
	status, payload := mapError(err)
	body := unbilledResponse(payload.Type, payload.Message, remaining)
	if status == http.StatusBadRequest {
		body.Error = "invalid_request"
		body.Message = strings.TrimPrefix(err.Error(), assessmentdomain.ErrInvalidRequest.Error()+": ")
	}
	if errors.Is(err, assessmentdomain.ErrAssessmentFailed) {
		body.Error = "assessment_failed"
		if kind := assessmentdomain.FailureKind(err); kind != "" && kind != "error" {
			body.Message = payload.Message + " (" + kind + ")"
		}
	}
	c.JSON(status, body)
}

func (s *Server) ListAssessments(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	limit, err := parseOptionalInt(c.Query("limit"))
	if err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}

	items, err := s.assessmentSvc.History(c.Request.Context(), assessmentdomain.HistoryRequest{
		UserID: principal.UserID,
		Limit:  limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) GetQuota(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	balances, err := s.quotaSvc.Get(c.Request.Context(), principal.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, balances)
}
