package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	authcodedomain "github.com/tkwa12358/newenglish/internal/authcode/domain"
)

func (s *Server) ListCodes(c *gin.Context) {
	var query struct {
		Used  string `form:"used"`
		Limit string `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	used, err := parseOptionalBool(query.Used)
	if err != nil {
		AbortWithError(c, newValidationError("used", "invalid_used", "invalid used"))
		return
	}
	limit, err := parseOptionalInt(query.Limit)
	if err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}

	resp, err := s.authCodeSvc.List(c.Request.Context(), authcodedomain.ListRequest{Used: used, Limit: limit})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GenerateCodes(c *gin.Context) {
	var req authcodedomain.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.CodeType = strings.TrimSpace(req.CodeType)

	resp, err := s.authCodeSvc.Generate(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

// ExportCodes streams a printable sheet for ?ids=a,b or, without ids, for
// every unused code.
func (s *Server) ExportCodes(c *gin.Context) {
	var ids []string
	for _, raw := range c.QueryArray("ids") {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	unusedOnly, err := parseOptionalBool(c.DefaultQuery("unused_only", "true"))
	if err != nil {
		AbortWithError(c, newValidationError("unused_only", "invalid_unused_only", "invalid unused_only"))
		return
	}

	r, err := s.authCodeSvc.ExportPDF(c.Request.Context(), authcodedomain.ExportRequest{
		IDs:        ids,
		UnusedOnly: unusedOnly != nil && *unusedOnly,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.DataFromReader(http.StatusOK, -1, "application/pdf", r, map[string]string{
		"Content-Disposition": `attachment; filename="authorization-codes.pdf"`,
	})
}
