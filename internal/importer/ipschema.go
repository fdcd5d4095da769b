package importer

import (
	"netinv/internal/models"
	"netinv/internal/schema"
	"netinv/internal/workbook"
)

// IPSchemaImporter consumes field-survey sheets: one row per pole, carrying
// landmark coordinates and an optional junction box.
type IPSchemaImporter struct{}

func (IPSchemaImporter) Name() string { return schema.ProfileIPSchema }

func (IPSchemaImporter) Import(sheet *workbook.Sheet, store *models.InventoryStore) *Summary {
	summary := &Summary{}
	cols := newColumnMap(sheet)

	for _, row := range sheet.DataRows() {
		landmarkCode := cols.cell(row, "Landmark ID")
		poleCode := cols.cell(row, "Pole Location")
		region := cols.cell(row, "Region")
		district := cols.cell(row, "District")
		if landmarkCode == "" || poleCode == "" || region == "" || district == "" {
			summary.skip(row.Index, ReasonMissingParentKey, "landmark id, pole location, region and district are required")
			continue
		}

		landmarkName := cols.cell(row, "Landmark")
		lat := parseCoord(cols.cell(row, "Latitude"))
		lng := parseCoord(cols.cell(row, "Longitude"))

		_, lmOutcome, err := store.UpsertLandmark(models.LandmarkUpsert{
			RegionName:   region,
			DistrictName: district,
			Code:         landmarkCode,
			Name:         landmarkName,
			Lat:          lat,
			Lng:          lng,
		})
		if err != nil {
			summary.skip(row.Index, skipReasonFor(err), "landmark "+landmarkCode)
			continue
		}

		_, poleOutcome, err := store.UpsertPole(models.PoleUpsert{
			Code:         poleCode,
			LocationName: landmarkName,
			LandmarkCode: landmarkCode,
			RegionName:   region,
			DistrictName: district,
			Lat:          lat,
			Lng:          lng,
		})
		if err != nil {
			summary.skip(row.Index, skipReasonFor(err), "pole "+poleCode)
			continue
		}

		outcome := models.UpsertOutcome{
			Created: lmOutcome.Created || poleOutcome.Created,
			Updated: lmOutcome.Updated || poleOutcome.Updated,
		}
		if jbCode := cols.cell(row, "JB ID"); jbCode != "" {
			_, jbOutcome, err := store.UpsertJunctionBox(models.JunctionBoxUpsert{
				Code:         jbCode,
				PoleCode:     poleCode,
				LandmarkCode: landmarkCode,
				RegionName:   region,
				DistrictName: district,
				Lat:          lat,
				Lng:          lng,
			})
			if err != nil {
				summary.skip(row.Index, skipReasonFor(err), "junction box "+jbCode)
				continue
			}
			outcome.Created = outcome.Created || jbOutcome.Created
			outcome.Updated = outcome.Updated || jbOutcome.Updated
		}
		summary.count(outcome)
	}
	return summary
}
