package workbook

import (
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"
)

func buildFixture(t *testing.T, build func(f *excelize.File)) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	build(f)
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func TestLoadRejectsGarbage(t *testing.T) {
	if _, err := Load("junk.xlsx", []byte("not a zip archive")); !errors.Is(err, ErrUnreadableFile) {
		t.Fatalf("expected unreadable file, got %v", err)
	}
}

func TestLoadDetectsHeaderRow(t *testing.T) {
	data := buildFixture(t, func(f *excelize.File) {
		f.SetSheetName("Sheet1", "Enum-1")
		// Two title rows above the real header.
		f.SetCellValue("Enum-1", "A1", "Network Design")
		f.SetSheetRow("Enum-1", "A3", &[]any{"Component ID", "Component Type", "Region", "District"})
		f.SetSheetRow("Enum-1", "A4", &[]any{"CAM-1", "Camera", "Jammu", "Samba"})
		f.SetSheetRow("Enum-1", "A5", &[]any{"CAM-2", "Camera", "Jammu", "Samba"})
	})

	file, err := Load("design.xlsx", data)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if file.SHA256 == "" {
		t.Fatalf("expected content hash")
	}
	if len(file.Sheets) != 1 {
		t.Fatalf("expected 1 sheet, got %d", len(file.Sheets))
	}
	sheet := file.Sheets[0]
	if sheet.HeaderRow != 3 {
		t.Fatalf("expected header row 3, got %d", sheet.HeaderRow)
	}
	if len(sheet.Columns) < 4 || sheet.Columns[0] != "Component ID" {
		t.Fatalf("unexpected columns: %v", sheet.Columns)
	}
	rows := sheet.DataRows()
	if len(rows) != 2 {
		t.Fatalf("expected 2 data rows, got %d", len(rows))
	}
	if rows[0].Index != 4 || rows[0].Cells["Component ID"] != "CAM-1" {
		t.Fatalf("unexpected first data row: %+v", rows[0])
	}
}

func TestLoadFallsBackToColumnLetters(t *testing.T) {
	data := buildFixture(t, func(f *excelize.File) {
		// Numbers only: nothing qualifies as a header.
		f.SetSheetRow("Sheet1", "A1", &[]any{1, 2, 3})
		f.SetSheetRow("Sheet1", "A2", &[]any{4, 5, 6})
	})

	file, err := Load("numbers.xlsx", data)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	sheet := file.Sheets[0]
	if sheet.HeaderRow != 0 {
		t.Fatalf("expected no header, got row %d", sheet.HeaderRow)
	}
	if len(sheet.Columns) != 3 || sheet.Columns[0] != "A" || sheet.Columns[2] != "C" {
		t.Fatalf("expected letter columns, got %v", sheet.Columns)
	}
	if sheet.Rows[0].Cells["B"] != "2" {
		t.Fatalf("unexpected cell mapping: %+v", sheet.Rows[0].Cells)
	}
}

func TestLoadKeepsEmptySheets(t *testing.T) {
	data := buildFixture(t, func(f *excelize.File) {
		f.SetSheetRow("Sheet1", "A1", &[]any{"Component ID", "Component Type", "Region"})
		f.NewSheet("Blank")
	})

	file, err := Load("mixed.xlsx", data)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(file.Sheets) != 2 {
		t.Fatalf("expected both sheets kept, got %d", len(file.Sheets))
	}
	var blank *Sheet
	for _, s := range file.Sheets {
		if s.Name == "Blank" {
			blank = s
		}
	}
	if blank == nil || !blank.Empty {
		t.Fatalf("expected blank sheet flagged empty: %+v", blank)
	}
	// A header-only sheet has no data rows either.
	for _, s := range file.Sheets {
		if s.Name == "Sheet1" && !s.Empty {
			t.Fatalf("expected header-only sheet flagged empty")
		}
	}
}

func TestLoadResolvesDuplicateHeaders(t *testing.T) {
	data := buildFixture(t, func(f *excelize.File) {
		f.SetSheetRow("Sheet1", "A1", &[]any{"Name", "Name", "Code", "Region"})
		f.SetSheetRow("Sheet1", "A2", &[]any{"first", "second", "LM-1", "Jammu"})
	})

	file, err := Load("dupes.xlsx", data)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	sheet := file.Sheets[0]
	if sheet.Columns[0] != "Name" || sheet.Columns[1] != "B" {
		t.Fatalf("expected duplicate header replaced by letter, got %v", sheet.Columns)
	}
	row := sheet.DataRows()[0]
	if row.Cells["Name"] != "first" || row.Cells["B"] != "second" {
		t.Fatalf("duplicate column lost a cell: %+v", row.Cells)
	}
}

// A header cell can spell another column's Excel letter, so the letter
// fallback itself may be taken; the loader advances to the next free letter
// instead of letting the later column shadow the earlier one.
func TestLoadResolvesLetterHeaderCollision(t *testing.T) {
	data := buildFixture(t, func(f *excelize.File) {
		f.SetSheetRow("Sheet1", "A1", &[]any{"B", "B", "Code", "Region"})
		f.SetSheetRow("Sheet1", "A2", &[]any{"first", "second", "LM-1", "Jammu"})
	})

	file, err := Load("letters.xlsx", data)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	sheet := file.Sheets[0]
	if sheet.Columns[0] != "B" || sheet.Columns[1] != "C" {
		t.Fatalf("expected fallback to skip the taken letter, got %v", sheet.Columns)
	}
	row := sheet.DataRows()[0]
	if row.Cells["B"] != "first" || row.Cells["C"] != "second" {
		t.Fatalf("colliding column lost a cell: %+v", row.Cells)
	}
}

func TestColumnLetter(t *testing.T) {
	cases := map[int]string{1: "A", 26: "Z", 27: "AA", 52: "AZ", 703: "AAA"}
	for n, want := range cases {
		if got := ColumnLetter(n); got != want {
			t.Fatalf("ColumnLetter(%d) = %q, want %q", n, got, want)
		}
	}
}
