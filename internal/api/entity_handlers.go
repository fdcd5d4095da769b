package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"netinv/internal/models"
)

func (s *Server) handleListEntities(c *gin.Context, kind models.EntityKind) {
	limit, offset := pageParams(c)
	items, total, err := s.Store.ListEntities(kind, c.Query("q"), limit, offset)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "limit": limit, "offset": offset})
}

func (s *Server) handleGetEntity(c *gin.Context, kind models.EntityKind) {
	item, err := s.Store.GetEntity(kind, c.Param("id"))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) handlePatchEntity(c *gin.Context, kind models.EntityKind) {
	var fields map[string]string
	if err := c.ShouldBindJSON(&fields); err != nil || len(fields) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	item, err := s.Store.PatchEntity(kind, c.Param("id"), fields, actorFrom(c))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) handleSearch(c *gin.Context) {
	perKind, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || perKind <= 0 {
		perKind = 20
	}
	c.JSON(http.StatusOK, s.Store.Search(c.Query("q"), perKind))
}

func (s *Server) handleAuditList(c *gin.Context) {
	limit, offset := pageParams(c)
	entries := s.Store.ListAudits(c.Query("username"), limit, offset)
	c.JSON(http.StatusOK, gin.H{"items": entries, "limit": limit, "offset": offset})
}

func (s *Server) handleAuditVerify(c *gin.Context) {
	if err := s.Store.VerifyAuditChain(); err != nil {
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}
