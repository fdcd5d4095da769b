// Package services wires the ingest flow together: decode, raw storage,
// schema detection, structured import.
package services

import (
	"context"

	"go.uber.org/zap"

	"netinv/internal/importer"
	"netinv/internal/models"
	"netinv/internal/schema"
	"netinv/internal/workbook"
)

// IngestService is the single entry point for spreadsheet uploads.
type IngestService struct {
	store    *models.InventoryStore
	pipeline *importer.Pipeline
	log      *zap.Logger
}

// NewIngestService builds the service with the standard importer chain.
func NewIngestService(store *models.InventoryStore, log *zap.Logger) *IngestService {
	if log == nil {
		log = zap.NewNop()
	}
	return &IngestService{
		store:    store,
		pipeline: importer.NewPipeline(),
		log:      log,
	}
}

// IngestResult reports one upload: the stored workbook plus per-sheet import
// outcomes.
type IngestResult struct {
	WorkbookID string                 `json:"workbook_id"`
	Filename   string                 `json:"filename"`
	SHA256     string                 `json:"sha256"`
	Deduped    bool                   `json:"deduped"`
	Profile    string                 `json:"profile"`
	Sheets     []importer.SheetResult `json:"sheets"`
}

// Ingest decodes the payload, stores it raw, and runs structured import on
// every recognized sheet. Only an unreadable file fails the call; row-level
// problems surface in the per-sheet summaries. Re-ingesting a byte-identical
// file reuses the stored workbook, and the importers run again as no-ops.
func (s *IngestService) Ingest(ctx context.Context, actor, filename string, data []byte) (*IngestResult, error) {
	file, err := workbook.Load(filename, data)
	if err != nil {
		s.log.Warn("workbook decode failed", zap.String("filename", filename), zap.Error(err))
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wb, deduped, err := s.store.WriteWorkbook(toWorkbookInput(file), actor)
	if err != nil {
		return nil, err
	}

	result := &IngestResult{
		WorkbookID: wb.ID,
		Filename:   wb.Filename,
		SHA256:     wb.SHA256,
		Deduped:    deduped,
		Profile:    schema.DetectFile(file),
		Sheets:     s.pipeline.Run(file, s.store),
	}

	created, updated, skipped := 0, 0, 0
	for _, sheet := range result.Sheets {
		if sheet.Summary == nil {
			continue
		}
		created += sheet.Summary.Created
		updated += sheet.Summary.Updated
		skipped += len(sheet.Summary.Skipped)
	}
	s.store.Record(actor, "ingest", "workbooks", wb.ID, filename)
	s.log.Info("workbook ingested",
		zap.String("workbook_id", wb.ID),
		zap.String("filename", filename),
		zap.String("profile", result.Profile),
		zap.Bool("deduped", deduped),
		zap.Int("created", created),
		zap.Int("updated", updated),
		zap.Int("skipped", skipped),
	)
	return result, nil
}

// SchemaReport describes a file without storing it.
type SchemaReport struct {
	Filename string        `json:"filename"`
	Profile  string        `json:"profile"`
	Sheets   []SchemaSheet `json:"sheets"`
}

// SchemaSheet is the per-sheet portion of a SchemaReport.
type SchemaSheet struct {
	Name    string   `json:"name"`
	Profile string   `json:"profile"`
	Columns []string `json:"columns"`
	Rows    int      `json:"rows"`
	Empty   bool     `json:"empty,omitempty"`
}

// DetectSchema decodes the payload and classifies it without writing anything.
func (s *IngestService) DetectSchema(filename string, data []byte) (*SchemaReport, error) {
	file, err := workbook.Load(filename, data)
	if err != nil {
		return nil, err
	}
	report := &SchemaReport{
		Filename: filename,
		Profile:  schema.DetectFile(file),
	}
	for _, sheet := range file.Sheets {
		report.Sheets = append(report.Sheets, SchemaSheet{
			Name:    sheet.Name,
			Profile: schema.DetectSheet(sheet),
			Columns: sheet.Columns,
			Rows:    len(sheet.DataRows()),
			Empty:   sheet.Empty,
		})
	}
	return report, nil
}

func toWorkbookInput(file *workbook.File) models.WorkbookInput {
	in := models.WorkbookInput{
		Filename: file.Filename,
		SHA256:   file.SHA256,
	}
	for _, sheet := range file.Sheets {
		sheetIn := models.SheetInput{
			Name:      sheet.Name,
			HeaderRow: sheet.HeaderRow,
			MaxRow:    sheet.MaxRow,
			MaxCol:    sheet.MaxCol,
			Columns:   sheet.Columns,
		}
		for _, row := range sheet.Rows {
			sheetIn.Rows = append(sheetIn.Rows, models.RowInput{
				RowIndex: row.Index,
				Data:     row.Cells,
			})
		}
		in.Sheets = append(in.Sheets, sheetIn)
	}
	return in
}
