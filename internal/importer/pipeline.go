package importer

import (
	"netinv/internal/models"
	"netinv/internal/schema"
	"netinv/internal/workbook"
)

// SheetResult pairs one sheet with its detected profile and, when an importer
// ran, what it did.
type SheetResult struct {
	SheetName string   `json:"sheet_name"`
	Profile   string   `json:"profile"`
	Rows      int      `json:"rows"`
	Empty     bool     `json:"empty,omitempty"`
	Summary   *Summary `json:"summary,omitempty"`
}

// Pipeline routes decoded sheets to their importers. Hierarchy sheets run
// before ipschema before credentials, so components exist by the time
// credential rows look them up regardless of sheet order in the file.
type Pipeline struct {
	importers []Importer
}

// NewPipeline builds the standard importer chain.
func NewPipeline() *Pipeline {
	return &Pipeline{importers: []Importer{
		HierarchyImporter{},
		IPSchemaImporter{},
		CredentialsImporter{},
	}}
}

// Run classifies each sheet and applies matching importers in chain order.
// Unrecognized and empty sheets are reported but not imported.
func (p *Pipeline) Run(file *workbook.File, store *models.InventoryStore) []SheetResult {
	results := make([]SheetResult, 0, len(file.Sheets))
	profiles := make(map[string]string, len(file.Sheets))
	for _, sheet := range file.Sheets {
		profile := schema.DetectSheet(sheet)
		profiles[sheet.Name] = profile
		results = append(results, SheetResult{
			SheetName: sheet.Name,
			Profile:   profile,
			Rows:      len(sheet.DataRows()),
			Empty:     sheet.Empty,
		})
	}

	for _, imp := range p.importers {
		for i, sheet := range file.Sheets {
			if sheet.Empty || profiles[sheet.Name] != imp.Name() {
				continue
			}
			results[i].Summary = imp.Import(sheet, store)
		}
	}
	return results
}
