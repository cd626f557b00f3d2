package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tkwa12358/newenglish/internal/auditcontext"
	authdomain "github.com/tkwa12358/newenglish/internal/auth/domain"
	obscontext "github.com/tkwa12358/newenglish/internal/observability/context"
	quotadomain "github.com/tkwa12358/newenglish/internal/quota/domain"
	"github.com/tkwa12358/newenglish/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	contextUserIDKey       = "user_id"
	contextRoleKey         = "role"
	contextProviderTypeKey = "provider_type"
)

// AuthRequired verifies the bearer token and places the principal on both
// the gin and request contexts.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			AbortWithError(c, authdomain.ErrMissingToken)
			return
		}

		principal, err := s.authsvc.Verify(c.Request.Context(), raw)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		actorType := "user"
		if principal.Role == authdomain.RoleAdmin {
			actorType = "admin"
		}
		ctx := authdomain.WithPrincipal(c.Request.Context(), principal)
		ctx = auditcontext.WithActor(ctx, actorType, principal.UserID)
		ctx = obscontext.WithActor(ctx, actorType, principal.UserID)
		c.Request = c.Request.WithContext(ctx)

		c.Set(contextUserIDKey, principal.UserID)
		c.Set(contextRoleKey, string(principal.Role))
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) < len("Bearer ")+1 || !strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[len("Bearer "):])
	return token, token != ""
}

func principalFromContext(c *gin.Context) (authdomain.Principal, bool) {
	return authdomain.PrincipalFromContext(c.Request.Context())
}

func (s *Server) authorizeAction(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := principalFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if s.authzSvc == nil {
			AbortWithError(c, ErrForbidden)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), principal, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// RateLimit throttles the endpoint per authenticated user.
func (s *Server) RateLimit(endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := principalFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		var (
			res *ratelimit.Result
			err error
		)
		switch endpoint {
		case ratelimit.EndpointRedeem:
			res, err = s.limiter.AllowRedeem(c.Request.Context(), principal.UserID)
		default:
			res, err = s.limiter.AllowAssessment(c.Request.Context(), principal.UserID)
		}
		if err != nil {
			s.log.Warn("rate limiter unavailable", zap.String("endpoint", endpoint), zap.Error(err))
		}
		if res != nil && !res.Allowed {
			if res.RetryAfter > 0 {
				secs := int(res.RetryAfter.Seconds())
				if secs < 1 {
					secs = 1
				}
				c.Header("Retry-After", strconv.Itoa(secs))
			}
			body := userErrorResponse{Error: "rate_limited", Message: "too many requests, slow down"}
			if isAssessmentSubmit(c) {
				body = unbilledResponse(body.Error, body.Message, s.assessmentBalance(c, principal.UserID))
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, body)
			return
		}
		c.Next()
	}
}

// assessmentBalance reads the balance of the tier the route assesses; 0 when
// it cannot be read.
func (s *Server) assessmentBalance(c *gin.Context, userID string) int64 {
	tier := quotadomain.TierStandard
	if strings.HasSuffix(c.FullPath(), "/professional") {
		tier = quotadomain.TierProfessional
	}
	balance, err := s.quotaSvc.Balance(c.Request.Context(), userID, tier)
	if err != nil {
		s.log.Warn("failed to read balance for rate limited request", zap.Error(err))
		return 0
	}
	return balance
}
