package schema

import (
	"testing"

	"netinv/internal/workbook"
)

func TestDetectSheetByColumns(t *testing.T) {
	cases := []struct {
		name    string
		sheet   workbook.Sheet
		profile string
	}{
		{
			name:    "hierarchy columns",
			sheet:   workbook.Sheet{Name: "Data", Columns: []string{"Sr.", "Component ID", "Component Type", "Region", "District"}},
			profile: ProfileHierarchy,
		},
		{
			name:    "ipschema columns",
			sheet:   workbook.Sheet{Name: "Data", Columns: []string{"Sr.", "Region", "District", "Landmark ID", "Pole Location", "Latitude"}},
			profile: ProfileIPSchema,
		},
		{
			name:    "credentials columns",
			sheet:   workbook.Sheet{Name: "Data", Columns: []string{"S NO", "APPLIANCE", " USER ID", " PASSWORD", "IP"}},
			profile: ProfileCredentials,
		},
		{
			name:    "unrecognized",
			sheet:   workbook.Sheet{Name: "Data", Columns: []string{"Foo", "Bar"}},
			profile: ProfileUnknown,
		},
	}
	for _, tc := range cases {
		if got := DetectSheet(&tc.sheet); got != tc.profile {
			t.Fatalf("%s: got %q, want %q", tc.name, got, tc.profile)
		}
	}
}

// A single overlapping column is not a classification: every column of a
// profile's required set must be present.
func TestDetectSheetRequiresFullSignature(t *testing.T) {
	cases := []struct {
		name    string
		columns []string
	}{
		{"lone username", []string{"Username", "Office", "Desk"}},
		{"component id without type", []string{"Sr.", "Component ID", "Region", "District"}},
		{"pole location without landmark", []string{"Sr.", "Pole Location", "Region", "District"}},
	}
	for _, tc := range cases {
		sheet := &workbook.Sheet{Name: "Export", Columns: tc.columns}
		if got := DetectSheet(sheet); got != ProfileUnknown {
			t.Fatalf("%s: classified as %q, want %q", tc.name, got, ProfileUnknown)
		}
	}
}

func TestDetectSheetByName(t *testing.T) {
	sheet := &workbook.Sheet{Name: "Enum-1", Columns: []string{"A", "B"}}
	if got := DetectSheet(sheet); got != ProfileHierarchy {
		t.Fatalf("expected sheet-name hint to classify, got %q", got)
	}
	sheet = &workbook.Sheet{Name: "Field Device JBs", Columns: []string{"A"}}
	if got := DetectSheet(sheet); got != ProfileIPSchema {
		t.Fatalf("expected ipschema by sheet name, got %q", got)
	}
	sheet = &workbook.Sheet{Name: "Srinagar", Columns: []string{"A"}}
	if got := DetectSheet(sheet); got != ProfileCredentials {
		t.Fatalf("expected credentials by region sheet name, got %q", got)
	}
}

// A sheet satisfying both the hierarchy and ipschema signatures belongs to
// the hierarchy profile: priority order must hold no matter how the required
// sets overlap.
func TestDetectPriorityOrder(t *testing.T) {
	sheet := &workbook.Sheet{
		Name: "Data",
		Columns: []string{
			"Component ID", "Component Type", "Landmark ID", "Pole Location", "JB ID", "Region", "District",
		},
	}
	for i := 0; i < 10; i++ {
		if got := DetectSheet(sheet); got != ProfileHierarchy {
			t.Fatalf("iteration %d: got %q, want %q", i, got, ProfileHierarchy)
		}
	}
}

func TestDetectFilePrefersSheetNames(t *testing.T) {
	file := &workbook.File{Sheets: []*workbook.Sheet{
		{Name: "Summary", Columns: []string{"Foo"}},
		{Name: "Enum-1", Columns: []string{"Component ID", "Component Type", "Region", "District"}},
	}}
	if got := DetectFile(file); got != ProfileHierarchy {
		t.Fatalf("got %q, want %q", got, ProfileHierarchy)
	}

	unknown := &workbook.File{Sheets: []*workbook.Sheet{{Name: "Notes", Columns: []string{"Text"}}}}
	if got := DetectFile(unknown); got != ProfileUnknown {
		t.Fatalf("got %q, want %q", got, ProfileUnknown)
	}
}
