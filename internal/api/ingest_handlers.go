package api

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxUploadBytes = 50 * 1024 * 1024

// readUpload pulls the multipart "file" part into memory. Returns ok=false
// after writing the error response.
func (s *Server) readUpload(c *gin.Context) (string, []byte, bool) {
	fileHeader, err := c.FormFile("file")
	if err != nil || fileHeader == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "file_required"})
		return "", nil, false
	}
	if ext := strings.ToLower(filepath.Ext(fileHeader.Filename)); ext != ".xlsx" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unsupported_file"})
		return "", nil, false
	}
	if fileHeader.Size > maxUploadBytes {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "file_too_large"})
		return "", nil, false
	}
	f, err := fileHeader.Open()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "read_failed"})
		return "", nil, false
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "read_failed"})
		return "", nil, false
	}
	return fileHeader.Filename, data, true
}

func (s *Server) handleIngest(c *gin.Context) {
	filename, data, ok := s.readUpload(c)
	if !ok {
		return
	}
	result, err := s.Ingest.Ingest(c.Request.Context(), actorFrom(c), filename, data)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleDetectSchema(c *gin.Context) {
	filename, data, ok := s.readUpload(c)
	if !ok {
		return
	}
	report, err := s.Ingest.DetectSchema(filename, data)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleExport(c *gin.Context) {
	data, err := s.Store.ExportXLSX()
	if err != nil {
		if s.Log != nil {
			s.Log.Error("export failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "export_failed"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="inventory.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
