package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	assessmentdomain "github.com/tkwa12358/newenglish/internal/assessment/domain"
	auditdomain "github.com/tkwa12358/newenglish/internal/audit/domain"
	authdomain "github.com/tkwa12358/newenglish/internal/auth/domain"
	authcodedomain "github.com/tkwa12358/newenglish/internal/authcode/domain"
	"github.com/tkwa12358/newenglish/internal/authorization"
	quotadomain "github.com/tkwa12358/newenglish/internal/quota/domain"
	providerdomain "github.com/tkwa12358/newenglish/internal/speechprovider/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

// userErrorResponse is the flat shape returned by the /api routes.
type userErrorResponse struct {
	Error            string `json:"error"`
	Message          string `json:"message,omitempty"`
	Billed           *bool  `json:"billed,omitempty"`
	RemainingMinutes *int64 `json:"remaining_minutes,omitempty"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		if isAssessmentSubmit(c) {
			c.AbortWithStatusJSON(status, unbilledResponse(payload.Type, payload.Message, 0))
			return
		}
		if isUserRoute(c) {
			c.AbortWithStatusJSON(status, userErrorResponse{Error: payload.Type, Message: payload.Message})
			return
		}
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func isUserRoute(c *gin.Context) bool {
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	return strings.HasPrefix(path, "/api/")
}

// isAssessmentSubmit matches the routes whose every failure reports
// billed:false and the remaining balance.
func isAssessmentSubmit(c *gin.Context) bool {
	if c.Request.Method != http.MethodPost {
		return false
	}
	switch c.FullPath() {
	case "/api/assessments", "/api/assessments/professional":
		return true
	default:
		return false
	}
}

func unbilledResponse(code, message string, remaining int64) userErrorResponse {
	billed := false
	return userErrorResponse{
		Error:            code,
		Message:          message,
		Billed:           &billed,
		RemainingMinutes: &remaining,
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, assessmentdomain.ErrUnauthorized),
		errors.Is(err, authdomain.ErrMissingToken),
		errors.Is(err, authdomain.ErrInvalidToken),
		errors.Is(err, authdomain.ErrTokenExpired),
		errors.Is(err, authorization.ErrInvalidActor):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, quotadomain.ErrInsufficientBalance):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "insufficient_balance",
			Message: "no assessment minutes left, redeem an authorization code to continue",
		}
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	case errors.Is(err, assessmentdomain.ErrAssessmentFailed):
		return http.StatusInternalServerError, errorPayload{
			Type:    "assessment_failed",
			Message: "assessment failed, no minutes were charged",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds error_type and error_code into the request log.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "auth_error", payload.Type
	case status == http.StatusPaymentRequired:
		return "quota_error", payload.Type
	case status >= http.StatusBadRequest && status < http.StatusInternalServerError:
		return "invalid_request_error", payload.Type
	case errors.Is(err, assessmentdomain.ErrAssessmentFailed):
		return "provider_error", assessmentdomain.FailureKind(err)
	default:
		return "api_error", payload.Type
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, assessmentdomain.ErrInvalidRequest):
		return true
	case isProviderValidationError(err),
		isAuthCodeValidationError(err),
		isAuditValidationError(err):
		return true
	default:
		return false
	}
}

func isProviderValidationError(err error) bool {
	switch {
	case errors.Is(err, providerdomain.ErrInvalidTier),
		errors.Is(err, providerdomain.ErrInvalidProviderType),
		errors.Is(err, providerdomain.ErrInvalidName),
		errors.Is(err, providerdomain.ErrInvalidEndpoint),
		errors.Is(err, providerdomain.ErrInvalidID),
		errors.Is(err, providerdomain.ErrInvalidConfig):
		return true
	default:
		return false
	}
}

func isAuthCodeValidationError(err error) bool {
	switch {
	case errors.Is(err, authcodedomain.ErrInvalidOrUsedCode),
		errors.Is(err, authcodedomain.ErrExpired),
		errors.Is(err, authcodedomain.ErrInvalidCode),
		errors.Is(err, authcodedomain.ErrInvalidCodeType),
		errors.Is(err, authcodedomain.ErrInvalidCount),
		errors.Is(err, authcodedomain.ErrInvalidUser):
		return true
	default:
		return false
	}
}

func isAuditValidationError(err error) bool {
	switch {
	case errors.Is(err, auditdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidTimeRange),
		errors.Is(err, auditdomain.ErrInvalidAction):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, providerdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, assessmentdomain.ErrInvalidRequest):
		return "invalid_request"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}
