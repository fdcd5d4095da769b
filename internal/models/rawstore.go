package models

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// WorkbookInput is the decoded form of one spreadsheet file, ready for storage.
type WorkbookInput struct {
	Filename string
	SHA256   string
	Sheets   []SheetInput
}

// SheetInput carries one worksheet's raw content.
type SheetInput struct {
	Name      string
	HeaderRow int
	MaxRow    int
	MaxCol    int
	Columns   []string
	Rows      []RowInput
}

// RowInput carries one physical row keyed by the sheet's column names.
type RowInput struct {
	RowIndex int
	Data     map[string]string
}

// WriteWorkbook stores the raw contents of a decoded file. A file whose hash
// matches an already stored workbook is not written again; the existing record
// is returned with deduped set.
func (s *InventoryStore) WriteWorkbook(in WorkbookInput, actor string) (*Workbook, bool, error) {
	if strings.TrimSpace(in.SHA256) == "" {
		return nil, false, ErrWorkbookNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.workbookOrder {
		if s.workbooks[id].SHA256 == in.SHA256 {
			copy := *s.workbooks[id]
			return &copy, true, nil
		}
	}

	now := time.Now().UTC()
	wb := &Workbook{
		ID:         GenerateID("wb"),
		Filename:   in.Filename,
		SHA256:     in.SHA256,
		ImportedAt: now,
	}
	s.workbooks[wb.ID] = wb
	s.workbookOrder = append(s.workbookOrder, wb.ID)

	for _, sheetIn := range in.Sheets {
		sheet := &Sheet{
			ID:         GenerateID("sheet"),
			WorkbookID: wb.ID,
			Name:       sheetIn.Name,
			HeaderRow:  sheetIn.HeaderRow,
			MaxRow:     sheetIn.MaxRow,
			MaxCol:     sheetIn.MaxCol,
			Columns:    append([]string{}, sheetIn.Columns...),
		}
		s.sheets[sheet.ID] = sheet
		s.sheetsOfBook[wb.ID] = append(s.sheetsOfBook[wb.ID], sheet.ID)
		for _, rowIn := range sheetIn.Rows {
			row := &Row{
				ID:       GenerateID("row"),
				SheetID:  sheet.ID,
				RowIndex: rowIn.RowIndex,
				Data:     make(map[string]string, len(rowIn.Data)),
			}
			for k, v := range rowIn.Data {
				row.Data[k] = v
			}
			s.rows[row.ID] = row
			s.rowsOfSheet[sheet.ID] = append(s.rowsOfSheet[sheet.ID], row.ID)
		}
	}
	s.recordLocked(actor, "workbook_store", "workbooks", wb.ID, in.Filename)
	copy := *wb
	return &copy, false, nil
}

// ListWorkbooks returns stored workbooks newest first.
func (s *InventoryStore) ListWorkbooks(limit, offset int) ([]*Workbook, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Workbook, 0, len(s.workbookOrder))
	for i := len(s.workbookOrder) - 1; i >= 0; i-- {
		copy := *s.workbooks[s.workbookOrder[i]]
		out = append(out, &copy)
	}
	total := len(out)
	return paginate(out, limit, offset), total
}

// ListSheets returns the sheets of one workbook in source order.
func (s *InventoryStore) ListSheets(workbookID string) ([]*Sheet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.workbooks[workbookID]; !ok {
		return nil, ErrWorkbookNotFound
	}
	ids := s.sheetsOfBook[workbookID]
	out := make([]*Sheet, 0, len(ids))
	for _, id := range ids {
		sheet := *s.sheets[id]
		sheet.Columns = append([]string{}, sheet.Columns...)
		out = append(out, &sheet)
	}
	return out, nil
}

// GetSheet returns one sheet by id.
func (s *InventoryStore) GetSheet(sheetID string) (*Sheet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sheet, ok := s.sheets[sheetID]
	if !ok {
		return nil, ErrSheetNotFound
	}
	copy := *sheet
	copy.Columns = append([]string{}, sheet.Columns...)
	return &copy, nil
}

// ListRows returns one page of a sheet's rows. q filters by substring across
// all cell values; sortCol orders by one column, numerically when both cells
// parse as numbers. Without sortCol rows come back in source order.
func (s *InventoryStore) ListRows(sheetID, q, sortCol, sortDir string, limit, offset int) ([]*Row, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sheet, ok := s.sheets[sheetID]
	if !ok {
		return nil, 0, ErrSheetNotFound
	}
	if sortCol != "" && !sheetHasColumn(sheet, sortCol) {
		return nil, 0, ErrUnknownColumn
	}

	needle := NormalizeKey(q)
	out := make([]*Row, 0, len(s.rowsOfSheet[sheetID]))
	for _, id := range s.rowsOfSheet[sheetID] {
		row := s.rows[id]
		if needle != "" && !rowMatches(row, needle) {
			continue
		}
		out = append(out, row.Clone())
	}
	if sortCol != "" {
		desc := strings.EqualFold(sortDir, "desc")
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i].Data[sortCol], out[j].Data[sortCol]
			if desc {
				a, b = b, a
			}
			return lessCell(a, b)
		})
	}
	total := len(out)
	return paginate(out, limit, offset), total, nil
}

func rowMatches(row *Row, needle string) bool {
	for _, v := range row.Data {
		if strings.Contains(NormalizeKey(v), needle) {
			return true
		}
	}
	return false
}

func lessCell(a, b string) bool {
	af, aerr := strconv.ParseFloat(strings.TrimSpace(a), 64)
	bf, berr := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if aerr == nil && berr == nil {
		return af < bf
	}
	return a < b
}

func sheetHasColumn(sheet *Sheet, col string) bool {
	for _, c := range sheet.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// PatchRow applies a sparse cell update. All keys are validated against the
// sheet's column list before any cell is written; one unknown key rejects the
// whole patch.
func (s *InventoryStore) PatchRow(rowID string, updates map[string]string, actor string) (*Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[rowID]
	if !ok {
		return nil, ErrRowNotFound
	}
	sheet := s.sheets[row.SheetID]
	for key := range updates {
		if !sheetHasColumn(sheet, key) {
			return nil, ErrUnknownColumn
		}
	}
	for key, value := range updates {
		row.Data[key] = value
	}
	s.recordLocked(actor, "row_patch", "rows", rowID, strings.Join(sortedKeys(updates), ","))
	return row.Clone(), nil
}

// BulkPatchResult reports what an anchor-relative paste actually wrote.
type BulkPatchResult struct {
	UpdatedCells int      `json:"updated_cells"`
	SkippedCells int      `json:"skipped_cells"`
	UpdatedRows  int      `json:"updated_rows"`
	Failures     []string `json:"failures,omitempty"`
}

// PatchBulk writes a rectangular grid of values anchored at an existing cell,
// the way a paste lands in a spreadsheet. Grid lines map onto consecutive
// stored rows starting at the anchor, so gaps left by blank source rows do
// not eat pasted lines. Cells that would fall past the sheet's last row or
// column are skipped and counted; the paste never creates rows or columns
// and applies best effort with no rollback.
func (s *InventoryStore) PatchBulk(sheetID string, anchorRow int, anchorCol string, grid [][]string, actor string) (*BulkPatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sheet, ok := s.sheets[sheetID]
	if !ok {
		return nil, ErrSheetNotFound
	}
	anchorIdx := -1
	for i, c := range sheet.Columns {
		if c == anchorCol {
			anchorIdx = i
			break
		}
	}
	if anchorIdx < 0 {
		return nil, ErrUnknownColumn
	}

	ids := s.rowsOfSheet[sheetID]
	anchorPos := -1
	for i, id := range ids {
		if s.rows[id].RowIndex == anchorRow {
			anchorPos = i
			break
		}
	}
	if anchorPos < 0 {
		return nil, ErrRowNotFound
	}

	result := &BulkPatchResult{}
	touched := make(map[string]bool)
	for r, line := range grid {
		if anchorPos+r >= len(ids) {
			result.SkippedCells += len(line)
			result.Failures = append(result.Failures, "no stored row "+strconv.Itoa(r)+" rows below anchor")
			continue
		}
		row := s.rows[ids[anchorPos+r]]
		for c, value := range line {
			colIdx := anchorIdx + c
			if colIdx >= len(sheet.Columns) {
				result.SkippedCells += len(line) - c
				break
			}
			row.Data[sheet.Columns[colIdx]] = value
			result.UpdatedCells++
			touched[row.ID] = true
		}
	}
	result.UpdatedRows = len(touched)
	s.recordLocked(actor, "row_bulk_patch", "sheets", sheetID, strconv.Itoa(result.UpdatedCells)+" cells")
	return result, nil
}
