package models

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"
)

var exportSheetTitles = map[EntityKind]string{
	KindRegion:      "Regions",
	KindDistrict:    "Districts",
	KindLandmark:    "Landmarks",
	KindPole:        "Poles",
	KindJunctionBox: "JunctionBoxes",
	KindComponent:   "Components",
	KindCredential:  "Credentials",
}

// ExportXLSX renders every structured collection into one workbook, one sheet
// per kind, and returns the encoded file.
func (s *InventoryStore) ExportXLSX() ([]byte, error) {
	snap := s.ExportSnapshot()

	f := excelize.NewFile()
	defer f.Close()

	first := true
	writeSheet := func(kind EntityKind, header []any, rows [][]any) error {
		title := exportSheetTitles[kind]
		if first {
			if err := f.SetSheetName("Sheet1", title); err != nil {
				return err
			}
			first = false
		} else if _, err := f.NewSheet(title); err != nil {
			return err
		}
		if err := f.SetSheetRow(title, "A1", &header); err != nil {
			return err
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(title, cell, &row); err != nil {
				return err
			}
		}
		return nil
	}

	regionName := make(map[string]string, len(snap.Regions))
	for _, r := range snap.Regions {
		regionName[r.ID] = r.Name
	}
	districtName := make(map[string]string, len(snap.Districts))
	for _, d := range snap.Districts {
		districtName[d.ID] = d.Name
	}
	landmarkCode := make(map[string]string, len(snap.Landmarks))
	for _, l := range snap.Landmarks {
		landmarkCode[l.ID] = l.Code
	}
	poleCode := make(map[string]string, len(snap.Poles))
	for _, p := range snap.Poles {
		poleCode[p.ID] = p.Code
	}
	jbCode := make(map[string]string, len(snap.JunctionBoxes))
	for _, jb := range snap.JunctionBoxes {
		jbCode[jb.ID] = jb.Code
	}

	rows := make([][]any, 0, len(snap.Regions))
	for _, r := range snap.Regions {
		rows = append(rows, []any{r.Name, r.CreatedAt.Format("2006-01-02")})
	}
	if err := writeSheet(KindRegion, []any{"Region", "Created"}, rows); err != nil {
		return nil, err
	}

	rows = rows[:0]
	for _, d := range snap.Districts {
		rows = append(rows, []any{regionName[d.RegionID], d.Name, d.Code})
	}
	if err := writeSheet(KindDistrict, []any{"Region", "District", "Code"}, rows); err != nil {
		return nil, err
	}

	rows = rows[:0]
	for _, l := range snap.Landmarks {
		rows = append(rows, []any{
			regionName[l.RegionID], districtName[l.DistrictID],
			l.Code, l.Name, coordCell(l.Lat), coordCell(l.Lng),
		})
	}
	if err := writeSheet(KindLandmark, []any{"Region", "District", "Landmark Code", "Landmark Name", "Lat", "Lng"}, rows); err != nil {
		return nil, err
	}

	rows = rows[:0]
	for _, p := range snap.Poles {
		rows = append(rows, []any{
			regionName[p.RegionID], districtName[p.DistrictID], landmarkCode[p.LandmarkID],
			p.Code, p.LocationName, coordCell(p.Lat), coordCell(p.Lng),
		})
	}
	if err := writeSheet(KindPole, []any{"Region", "District", "Landmark Code", "Pole Code", "Location", "Lat", "Lng"}, rows); err != nil {
		return nil, err
	}

	rows = rows[:0]
	for _, jb := range snap.JunctionBoxes {
		rows = append(rows, []any{
			regionName[jb.RegionID], districtName[jb.DistrictID], landmarkCode[jb.LandmarkID],
			poleCode[jb.PoleID], jb.Code, coordCell(jb.Lat), coordCell(jb.Lng),
		})
	}
	if err := writeSheet(KindJunctionBox, []any{"Region", "District", "Landmark Code", "Pole Code", "JB Code", "Lat", "Lng"}, rows); err != nil {
		return nil, err
	}

	attrCols := componentAttributeColumns(snap.Components)
	header := []any{
		"Component Code", "Component Type", "Region", "District",
		"Landmark Code", "Landmark Name", "Pole Code", "JB Code", "Lat", "Lng",
	}
	for _, col := range attrCols {
		header = append(header, col)
	}
	rows = rows[:0]
	for _, c := range snap.Components {
		row := []any{
			c.Code, c.Type, regionName[c.RegionID], districtName[c.DistrictID],
			landmarkCode[c.LandmarkID], c.LandmarkName, poleCode[c.PoleID], jbCode[c.JunctionBoxID],
			coordCell(c.Lat), coordCell(c.Lng),
		}
		for _, col := range attrCols {
			row = append(row, c.Attributes[col])
		}
		rows = append(rows, row)
	}
	if err := writeSheet(KindComponent, header, rows); err != nil {
		return nil, err
	}

	rows = rows[:0]
	for _, cr := range snap.Credentials {
		rows = append(rows, []any{
			cr.ComponentCode, cr.Username, cr.Password, cr.IPAddress,
			cr.Port, cr.AccessType, cr.Notes, cr.LastUpdated,
		})
	}
	if err := writeSheet(KindCredential, []any{
		"Component Code", "Username", "Password", "IP Address",
		"Port", "Access Type", "Notes", "Last Updated",
	}, rows); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	return buf.Bytes(), nil
}

func componentAttributeColumns(components []*Component) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, c := range components {
		for key := range c.Attributes {
			if !seen[key] {
				seen[key] = true
				cols = append(cols, key)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

func coordCell(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
