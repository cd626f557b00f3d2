package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	authcodedomain "github.com/tkwa12358/newenglish/internal/authcode/domain"
	"go.uber.org/zap"
)

type redeemRequest struct {
	Code string `json:"code"`
}

type redeemResponse struct {
	Success      bool   `json:"success"`
	MinutesAdded int64  `json:"minutes_added"`
	TotalMinutes int64  `json:"total_minutes"`
	Tier         string `json:"tier"`
	Message      string `json:"message"`
}

func (s *Server) Redeem(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeRedeemError(c, authcodedomain.ErrInvalidCode)
		return
	}

	ctx := c.Request.Context()
	release, locked, err := s.limiter.LockCode(ctx, req.Code)
	if err != nil {
		s.log.Warn("redeem lock unavailable", zap.Error(err))
	}
	defer release()
	if !locked {
		s.writeRedeemError(c, ErrConflict)
		return
	}

	res, err := s.authCodeSvc.Redeem(ctx, principal.UserID, req.Code)
	if err != nil {
		s.writeRedeemError(c, err)
		return
	}

	c.JSON(http.StatusOK, redeemResponse{
		Success:      true,
		MinutesAdded: res.MinutesAdded,
		TotalMinutes: res.TotalMinutes,
		Tier:         res.Tier.String(),
		Message:      fmt.Sprintf("Added %d %s minutes", res.MinutesAdded, res.Tier),
	})
}

func (s *Server) writeRedeemError(c *gin.Context, err error) {
	_ = c.Error(err)

	var (
		status  int
		code    string
		message string
	)
	switch {
	case errors.Is(err, authcodedomain.ErrInvalidCode):
		status, code, message = http.StatusBadRequest, "invalid_code", "enter an authorization code"
	case errors.Is(err, authcodedomain.ErrInvalidOrUsedCode):
		status, code, message = http.StatusBadRequest, "invalid_or_used_code", "the code is invalid or has already been used"
	case errors.Is(err, authcodedomain.ErrExpired):
		status, code, message = http.StatusBadRequest, "code_expired", "the code has expired"
	case errors.Is(err, ErrConflict):
		status, code, message = http.StatusConflict, "redemption_in_progress", "this code is being redeemed, try again"
	default:
		var payload errorPayload
		status, payload = mapError(err)
		code, message = payload.Type, "redemption failed"
	}
	c.JSON(status, userErrorResponse{Error: code, Message: message})
}
