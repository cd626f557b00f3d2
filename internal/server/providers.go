package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	quotadomain "github.com/tkwa12358/newenglish/internal/quota/domain"
	providerdomain "github.com/tkwa12358/newenglish/internal/speechprovider/domain"
)

type setProviderActiveRequest struct {
	IsActive *bool `json:"is_active"`
}

func (s *Server) ListProviders(c *gin.Context) {
	var query struct {
		Tier       string `form:"tier"`
		ActiveOnly string `form:"active_only"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req := providerdomain.ListRequest{}
	if raw := strings.TrimSpace(query.Tier); raw != "" {
		tier, err := quotadomain.ParseTier(raw)
		if err != nil {
			AbortWithError(c, providerdomain.ErrInvalidTier)
			return
		}
		req.Tier = &tier
	}
	activeOnly, err := parseOptionalBool(query.ActiveOnly)
	if err != nil {
		AbortWithError(c, newValidationError("active_only", "invalid_active_only", "invalid active_only"))
		return
	}
	req.ActiveOnly = activeOnly != nil && *activeOnly

	resp, err := s.providerSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateProvider(c *gin.Context) {
	var req providerdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.providerSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetProviderByID(c *gin.Context) {
	resp, err := s.providerSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateProvider(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	var req providerdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.Name = trimStringPtr(req.Name)
	req.ProviderType = trimStringPtr(req.ProviderType)
	req.APIEndpoint = trimStringPtr(req.APIEndpoint)

	resp, err := s.providerSvc.Update(c.Request.Context(), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteProvider(c *gin.Context) {
	if err := s.providerSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// SetDefaultProvider makes the row the default of its own tier.
func (s *Server) SetDefaultProvider(c *gin.Context) {
	ctx := c.Request.Context()
	id := strings.TrimSpace(c.Param("id"))

	item, err := s.providerSvc.Get(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.providerSvc.SetDefault(ctx, item.Tier, id); err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.providerSvc.Get(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SetProviderActive(c *gin.Context) {
	var req setProviderActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsActive == nil {
		AbortWithError(c, newValidationError("is_active", "invalid_is_active", "is_active is required"))
		return
	}

	resp, err := s.providerSvc.SetActive(c.Request.Context(), strings.TrimSpace(c.Param("id")), *req.IsActive)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
