package models

// SheetHits groups matching raw rows under their sheet.
type SheetHits struct {
	SheetID   string   `json:"sheet_id"`
	SheetName string   `json:"sheet_name"`
	Columns   []string `json:"columns"`
	Rows      []*Row   `json:"rows"`
}

// WorkbookHits groups sheet hits under their workbook.
type WorkbookHits struct {
	WorkbookID string       `json:"workbook_id"`
	Filename   string       `json:"filename"`
	Sheets     []*SheetHits `json:"sheets"`
}

// SearchResults is the response shape of the global search.
type SearchResults struct {
	Query    string               `json:"query"`
	Entities map[EntityKind][]any `json:"entities"`
	Raw      []*WorkbookHits      `json:"raw"`
}

// Search scans every structured collection and every raw row for a
// case-insensitive substring. perKind caps the matches kept per entity kind
// and per sheet; zero means no cap.
func (s *InventoryStore) Search(q string, perKind int) *SearchResults {
	results := &SearchResults{
		Query:    q,
		Entities: make(map[EntityKind][]any),
		Raw:      []*WorkbookHits{},
	}
	needle := NormalizeKey(q)
	if needle == "" {
		return results
	}

	for _, kind := range AllEntityKinds {
		matches, _, err := s.ListEntities(kind, q, perKind, 0)
		if err != nil || len(matches) == 0 {
			continue
		}
		results.Entities[kind] = matches
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, wbID := range s.workbookOrder {
		var wbHits *WorkbookHits
		for _, sheetID := range s.sheetsOfBook[wbID] {
			var sheetHits *SheetHits
			for _, rowID := range s.rowsOfSheet[sheetID] {
				row := s.rows[rowID]
				if !rowMatches(row, needle) {
					continue
				}
				if sheetHits == nil {
					sheet := s.sheets[sheetID]
					sheetHits = &SheetHits{
						SheetID:   sheet.ID,
						SheetName: sheet.Name,
						Columns:   append([]string{}, sheet.Columns...),
					}
				}
				if perKind > 0 && len(sheetHits.Rows) >= perKind {
					break
				}
				sheetHits.Rows = append(sheetHits.Rows, row.Clone())
			}
			if sheetHits == nil {
				continue
			}
			if wbHits == nil {
				wb := s.workbooks[wbID]
				wbHits = &WorkbookHits{WorkbookID: wb.ID, Filename: wb.Filename}
			}
			wbHits.Sheets = append(wbHits.Sheets, sheetHits)
		}
		if wbHits != nil {
			results.Raw = append(results.Raw, wbHits)
		}
	}
	return results
}
