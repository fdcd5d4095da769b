// Package importer maps recognized sheet layouts onto the structured
// inventory. Each importer consumes decoded rows, never persisted ones, and
// reports per-row outcomes instead of aborting on bad input.
package importer

import (
	"strconv"
	"strings"

	"netinv/internal/models"
	"netinv/internal/workbook"
)

// Skip reasons attached to rows an importer could not apply.
const (
	ReasonMissingParentKey = "missing_parent_key"
	ReasonAmbiguousParent  = "ambiguous_parent"
	ReasonNotFound         = "not_found"
)

// SkipReason explains why one row was left out.
type SkipReason struct {
	RowIndex int    `json:"row_index"`
	Reason   string `json:"reason"`
	Detail   string `json:"detail,omitempty"`
}

// Summary aggregates what an importer did to one sheet.
type Summary struct {
	Created int          `json:"created"`
	Updated int          `json:"updated"`
	Skipped []SkipReason `json:"skipped,omitempty"`
}

func (s *Summary) skip(rowIndex int, reason, detail string) {
	s.Skipped = append(s.Skipped, SkipReason{RowIndex: rowIndex, Reason: reason, Detail: detail})
}

func (s *Summary) count(outcome models.UpsertOutcome) {
	switch {
	case outcome.Created:
		s.Created++
	default:
		s.Updated++
	}
}

// Importer applies one sheet layout to the store.
type Importer interface {
	Name() string
	Import(sheet *workbook.Sheet, store *models.InventoryStore) *Summary
}

// columnMap resolves cell lookups by normalized column name, so importers
// tolerate the spacing and casing drift real sheets carry.
type columnMap map[string]string

func newColumnMap(sheet *workbook.Sheet) columnMap {
	m := make(columnMap, len(sheet.Columns))
	for _, col := range sheet.Columns {
		key := models.NormalizeKey(col)
		if _, ok := m[key]; !ok {
			m[key] = col
		}
	}
	return m
}

// cell returns the first non-blank value among the aliased columns.
func (m columnMap) cell(row workbook.Row, aliases ...string) string {
	for _, alias := range aliases {
		col, ok := m[models.NormalizeKey(alias)]
		if !ok {
			continue
		}
		if v := strings.TrimSpace(row.Cells[col]); v != "" {
			return v
		}
	}
	return ""
}

func (m columnMap) has(aliases ...string) bool {
	for _, alias := range aliases {
		if _, ok := m[models.NormalizeKey(alias)]; ok {
			return true
		}
	}
	return false
}

func parseCoord(value string) *float64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return nil
	}
	return &f
}
