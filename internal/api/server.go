// Package api exposes the inventory over HTTP.
package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"netinv/internal/auth"
	"netinv/internal/middleware"
	"netinv/internal/models"
	"netinv/internal/services"
	"netinv/internal/workbook"
)

const sessionCookie = "netinv.session"

// Server wires handlers to the in-memory store and session manager.
type Server struct {
	Store    *models.InventoryStore
	Sessions *auth.Manager
	Ingest   *services.IngestService
	Database *sql.DB
	Log      *zap.Logger
}

// RegisterRoutes attaches handlers to the gin engine.
func (s *Server) RegisterRoutes(router *gin.Engine) {
	router.Use(middleware.CORS())
	router.GET("/health", s.handleHealth)

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", s.handleLogin)
		authGroup.POST("/logout", s.handleLogout)
	}

	secured := router.Group("/api/v1")
	secured.Use(middleware.RequireSession(s.Sessions))
	{
		secured.POST("/ingest", s.handleIngest)
		secured.POST("/detect-schema", s.handleDetectSchema)

		secured.GET("/search", s.handleSearch)

		secured.GET("/workbooks", s.handleListWorkbooks)
		secured.GET("/workbooks/:id/sheets", s.handleListSheets)
		secured.GET("/sheets/:id/rows", s.handleListRows)
		secured.PATCH("/rows/:id", s.handlePatchRow)
		secured.POST("/sheets/:id/rows/bulk", s.handleBulkPatch)

		for _, kind := range models.AllEntityKinds {
			kind := kind
			secured.GET("/"+string(kind), func(c *gin.Context) { s.handleListEntities(c, kind) })
			secured.GET("/"+string(kind)+"/:id", func(c *gin.Context) { s.handleGetEntity(c, kind) })
			secured.PATCH("/"+string(kind)+"/:id", func(c *gin.Context) { s.handlePatchEntity(c, kind) })
		}

		secured.GET("/audit", s.handleAuditList)
		secured.GET("/audit/verify", s.handleAuditVerify)
		secured.GET("/export", s.handleExport)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	payload := gin.H{"status": "ok", "timestamp": time.Now().UTC().Format(time.RFC3339)}
	if s.Database != nil {
		if err := s.Database.PingContext(c.Request.Context()); err != nil {
			payload["database"] = gin.H{"status": "unavailable", "error": err.Error()}
		} else {
			payload["database"] = gin.H{"status": "ok"}
		}
	}
	c.JSON(http.StatusOK, payload)
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	user, err := s.Store.AuthenticateUser(req.Username, req.Password)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
		return
	}
	session, err := s.Sessions.Issue(user.Username, user.Admin)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session_issue_failed"})
		return
	}
	s.Store.Record(user.Username, "login", "users", user.ID, "")
	c.SetCookie(sessionCookie, session.Token, int(time.Until(session.ExpiresAt).Seconds()), "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{
		"token":      session.Token,
		"username":   session.Username,
		"admin":      session.Admin,
		"expires_at": session.ExpiresAt,
	})
}

func (s *Server) handleLogout(c *gin.Context) {
	if cookie, err := c.Request.Cookie(sessionCookie); err == nil && cookie != nil {
		s.Sessions.Revoke(cookie.Value)
	}
	if token := c.GetHeader("Authorization"); token != "" {
		s.Sessions.Revoke(strings.TrimPrefix(token, "Bearer "))
	}
	c.SetCookie(sessionCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// actorFrom names the authenticated user for audit records.
func actorFrom(c *gin.Context) string {
	if session := middleware.SessionFrom(c); session != nil {
		return session.Username
	}
	return "anonymous"
}

// abortError translates store errors into HTTP responses. Sentinel error
// strings double as the wire error codes.
func abortError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrWorkbookNotFound),
		errors.Is(err, models.ErrSheetNotFound),
		errors.Is(err, models.ErrRowNotFound),
		errors.Is(err, models.ErrEntityNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrUnknownColumn),
		errors.Is(err, models.ErrInvalidEntityKind),
		errors.Is(err, models.ErrMissingParentKey),
		errors.Is(err, models.ErrAmbiguousParent),
		errors.Is(err, workbook.ErrUnreadableFile):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
