// Package workbook decodes spreadsheet files into a schema-agnostic form:
// named sheets, a detected header row, an ordered column list, and one cell
// map per physical row.
package workbook

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnreadableFile indicates the payload is not a parseable workbook. It is
// fatal for the whole file; everything downstream is per-row.
var ErrUnreadableFile = errors.New("unreadable_file")

// headerScanRows bounds the header search window.
const headerScanRows = 25

// minHeaderScore is the minimum count of text cells for a row to qualify as a
// header.
const minHeaderScore = 3

// File is one decoded spreadsheet.
type File struct {
	Filename string
	SHA256   string
	Sheets   []*Sheet
}

// Sheet is one decoded worksheet. Columns is unique and ordered: header cell
// text where present, Excel column letters otherwise; a repeated header name
// falls back to the letter so no cell is lost.
type Sheet struct {
	Name      string
	HeaderRow int // 1-based, 0 when no header was detected
	MaxRow    int
	MaxCol    int
	Columns   []string
	Rows      []Row
	Empty     bool
}

// Row is one physical row. Cells is keyed by column name; blank cells are
// absent, zero values are kept verbatim.
type Row struct {
	Index int // 1-based position in the source sheet
	Cells map[string]string
}

// DataRows returns the rows below the detected header, or all rows when no
// header was found.
func (s *Sheet) DataRows() []Row {
	if s.HeaderRow == 0 {
		return s.Rows
	}
	out := make([]Row, 0, len(s.Rows))
	for _, row := range s.Rows {
		if row.Index > s.HeaderRow {
			out = append(out, row)
		}
	}
	return out
}

// Load decodes an xlsx payload. The filename is carried through for storage
// and reporting only.
func Load(filename string, data []byte) (*File, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, ErrUnreadableFile
	}
	defer f.Close()

	sum := sha256.Sum256(data)
	file := &File{
		Filename: filename,
		SHA256:   hex.EncodeToString(sum[:]),
	}

	for _, name := range f.GetSheetList() {
		grid, err := f.GetRows(name)
		if err != nil {
			return nil, ErrUnreadableFile
		}
		file.Sheets = append(file.Sheets, decodeSheet(name, grid))
	}
	return file, nil
}

func decodeSheet(name string, grid [][]string) *Sheet {
	maxRow := len(grid)
	maxCol := 0
	for _, row := range grid {
		if len(row) > maxCol {
			maxCol = len(row)
		}
	}

	sheet := &Sheet{
		Name:      name,
		HeaderRow: detectHeaderRow(grid),
		MaxRow:    maxRow,
		MaxCol:    maxCol,
	}
	sheet.Columns = columnNames(grid, sheet.HeaderRow, maxCol)

	for r, cells := range grid {
		if blankRow(cells) {
			continue
		}
		row := Row{Index: r + 1, Cells: make(map[string]string, len(cells))}
		for c, value := range cells {
			if value == "" {
				continue
			}
			key := ColumnLetter(c + 1)
			if c < len(sheet.Columns) {
				key = sheet.Columns[c]
			}
			row.Cells[key] = value
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	sheet.Empty = len(sheet.DataRows()) == 0
	return sheet
}

// detectHeaderRow picks the row within the scan window carrying the most text
// cells. Numeric-looking cells do not count; ties keep the earlier row.
func detectHeaderRow(grid [][]string) int {
	bestRow, bestScore := 0, 0
	limit := len(grid)
	if limit > headerScanRows {
		limit = headerScanRows
	}
	for r := 0; r < limit; r++ {
		score := 0
		for _, cell := range grid[r] {
			trimmed := strings.TrimSpace(cell)
			if trimmed == "" {
				continue
			}
			if _, err := strconv.ParseFloat(trimmed, 64); err == nil {
				continue
			}
			score++
		}
		if score > bestScore {
			bestScore = score
			bestRow = r + 1
		}
	}
	if bestScore >= minHeaderScore {
		return bestRow
	}
	return 0
}

func columnNames(grid [][]string, headerRow, maxCol int) []string {
	columns := make([]string, 0, maxCol)
	seen := make(map[string]bool, maxCol)
	var header []string
	if headerRow > 0 && headerRow <= len(grid) {
		header = grid[headerRow-1]
	}
	for c := 1; c <= maxCol; c++ {
		name := ""
		if c <= len(header) {
			name = strings.TrimSpace(header[c-1])
		}
		if name == "" || seen[name] {
			// The own letter can be taken too, by a header cell that
			// spells a column letter. Advance until free so no cell
			// is lost.
			for letter := c; ; letter++ {
				name = ColumnLetter(letter)
				if !seen[name] {
					break
				}
			}
		}
		seen[name] = true
		columns = append(columns, name)
	}
	return columns
}

func blankRow(cells []string) bool {
	for _, cell := range cells {
		if cell != "" {
			return false
		}
	}
	return true
}

// ColumnLetter converts a 1-based column number to its Excel letter (A..Z, AA..).
func ColumnLetter(n int) string {
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}
