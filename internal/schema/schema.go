// Package schema classifies decoded workbooks against known sheet layouts.
// Detection is advisory: an unrecognized file is still stored raw, it just
// skips structured import.
package schema

import (
	"strings"

	"netinv/internal/workbook"
)

// Profile names. They double as the importer keys in the ingest pipeline.
const (
	ProfileHierarchy   = "hierarchy"
	ProfileIPSchema    = "ipschema"
	ProfileCredentials = "credentials"
	ProfileUnknown     = "unknown"
)

// Profile describes one recognizable layout. Signature is the required column
// set: every entry must be satisfied by at least one of its aliases, matched
// as a normalized substring of a column name. SheetHints are secondary
// evidence matched against the sheet name.
type Profile struct {
	Name       string
	SheetHints []string
	Signature  [][]string
}

// Registry lists profiles in detection priority order. Hierarchy sheets also
// carry location columns, so they must be tested before the ipschema profile
// claims them.
var Registry = []Profile{
	{
		Name:       ProfileHierarchy,
		SheetHints: []string{"enum"},
		Signature: [][]string{
			{"component id", "component code"},
			{"component type"},
			{"region"},
			{"district"},
		},
	},
	{
		Name:       ProfileIPSchema,
		SheetHints: []string{"field device", "pole", "jb"},
		Signature: [][]string{
			{"landmark id"},
			{"pole location"},
			{"region"},
			{"district"},
		},
	},
	{
		Name:       ProfileCredentials,
		SheetHints: []string{"jammu", "samba", "kathua", "awantipura", "baramulla", "srinagar", "udhampur"},
		Signature: [][]string{
			{"username", "user id"},
			{"password"},
		},
	},
}

// matches reports whether every required column of the signature has at least
// one alias present among the sheet's normalized column names.
func (p Profile) matches(columns []string) bool {
	for _, aliases := range p.Signature {
		found := false
		for _, col := range columns {
			for _, alias := range aliases {
				if strings.Contains(col, alias) {
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// DetectSheet classifies one sheet: full column signatures first, then the
// sheet name. A partial signature never matches.
func DetectSheet(sheet *workbook.Sheet) string {
	if sheet == nil {
		return ProfileUnknown
	}
	columns := normalizeAll(sheet.Columns)
	for _, p := range Registry {
		if p.matches(columns) {
			return p.Name
		}
	}
	name := normalize(sheet.Name)
	for _, p := range Registry {
		for _, hint := range p.SheetHints {
			if strings.Contains(name, hint) {
				return p.Name
			}
		}
	}
	return ProfileUnknown
}

// DetectFile classifies a whole workbook. Sheet names are stronger evidence
// than column content here: exporters name their sheets consistently while
// column sets overlap between layouts.
func DetectFile(file *workbook.File) string {
	if file == nil {
		return ProfileUnknown
	}
	for _, p := range Registry {
		for _, sheet := range file.Sheets {
			name := normalize(sheet.Name)
			for _, hint := range p.SheetHints {
				if strings.Contains(name, hint) {
					return p.Name
				}
			}
		}
	}
	for _, p := range Registry {
		for _, sheet := range file.Sheets {
			if p.matches(normalizeAll(sheet.Columns)) {
				return p.Name
			}
		}
	}
	return ProfileUnknown
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func normalizeAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, normalize(v))
	}
	return out
}
