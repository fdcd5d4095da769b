package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// pageParams reads limit/offset with the store's defaults: 50 rows, capped at
// 500 per page.
func pageParams(c *gin.Context) (int, int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *Server) handleListWorkbooks(c *gin.Context) {
	limit, offset := pageParams(c)
	items, total := s.Store.ListWorkbooks(limit, offset)
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "limit": limit, "offset": offset})
}

func (s *Server) handleListSheets(c *gin.Context) {
	sheets, err := s.Store.ListSheets(c.Param("id"))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": sheets})
}

func (s *Server) handleListRows(c *gin.Context) {
	limit, offset := pageParams(c)
	rows, total, err := s.Store.ListRows(
		c.Param("id"),
		c.Query("q"),
		c.Query("sort"),
		c.DefaultQuery("dir", "asc"),
		limit, offset,
	)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rows, "total": total, "limit": limit, "offset": offset})
}

func (s *Server) handlePatchRow(c *gin.Context) {
	var updates map[string]string
	if err := c.ShouldBindJSON(&updates); err != nil || len(updates) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	row, err := s.Store.PatchRow(c.Param("id"), updates, actorFrom(c))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

type bulkPatchRequest struct {
	AnchorRow int        `json:"anchor_row" binding:"required"`
	AnchorCol string     `json:"anchor_col" binding:"required"`
	Grid      [][]string `json:"grid"`
	Text      string     `json:"text"`
}

func (s *Server) handleBulkPatch(c *gin.Context) {
	var req bulkPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	grid := req.Grid
	if len(grid) == 0 && req.Text != "" {
		grid = parsePastedText(req.Text)
	}
	if len(grid) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "empty_grid"})
		return
	}
	result, err := s.Store.PatchBulk(c.Param("id"), req.AnchorRow, req.AnchorCol, grid, actorFrom(c))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// parsePastedText splits clipboard text the way spreadsheets serialize a
// copied block: newline-separated rows, tab-separated cells. A trailing
// newline does not produce a phantom row.
func parsePastedText(text string) [][]string {
	text = strings.TrimSuffix(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	grid := make([][]string, 0, len(lines))
	for _, line := range lines {
		grid = append(grid, strings.Split(line, "\t"))
	}
	return grid
}
