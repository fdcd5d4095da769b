package importer

import (
	"errors"
	"strings"

	"netinv/internal/models"
	"netinv/internal/schema"
	"netinv/internal/workbook"
)

// CredentialsImporter consumes access-credential sheets. Credentials attach to
// components that already exist; a row naming an unknown component is skipped
// and reported, never materialized as equipment.
type CredentialsImporter struct{}

func (CredentialsImporter) Name() string { return schema.ProfileCredentials }

func (CredentialsImporter) Import(sheet *workbook.Sheet, store *models.InventoryStore) *Summary {
	summary := &Summary{}
	cols := newColumnMap(sheet)

	for _, row := range sheet.DataRows() {
		code := cols.cell(row, "Component ID", "Component Code", "HOSTNAME", "APPLIANCE")
		if code == "" {
			summary.skip(row.Index, ReasonMissingParentKey, "no component identifier")
			continue
		}

		username := cols.cell(row, "USER ID", "OS USER ID", "Username")
		password := cols.cell(row, "PASSWORD", "OS PASSWORD")
		ip := cols.cell(row, "IP", "IP Address")
		accessType := cols.cell(row, "SNMP VERSION", "Access Type")
		if accessType == "" {
			accessType = cols.cell(row, "SNMP COMMUNITY STRING 1")
		}
		if username == "" && password == "" && ip == "" && accessType == "" {
			summary.skip(row.Index, ReasonMissingParentKey, "row carries no credential data")
			continue
		}

		_, outcome, err := store.UpsertCredential(models.CredentialUpsert{
			ComponentCode: code,
			Username:      username,
			Password:      password,
			IPAddress:     ip,
			Port:          cols.cell(row, "Port"),
			AccessType:    accessType,
			Notes:         credentialNotes(cols, row),
			LastUpdated:   cols.cell(row, "Last Updated"),
		})
		if err != nil {
			if errors.Is(err, models.ErrEntityNotFound) {
				summary.skip(row.Index, ReasonNotFound, "component "+code)
			} else {
				summary.skip(row.Index, skipReasonFor(err), "component "+code)
			}
			continue
		}
		summary.count(outcome)
	}
	return summary
}

// credentialNotes folds contextual columns into one free-text field, the way
// these sheets are read in the field.
func credentialNotes(cols columnMap, row workbook.Row) string {
	var parts []string
	add := func(label, value string) {
		if value != "" {
			parts = append(parts, label+": "+value)
		}
	}
	add("Appliance", cols.cell(row, "APPLIANCE"))
	add("Region", cols.cell(row, "Region"))
	add("Location", cols.cell(row, "Location"))
	add("SNMP Community", cols.cell(row, "SNMP COMMUNITY STRING 1"))
	add("SNMP Server", cols.cell(row, "SNMP SERVER IP 1"))
	return strings.Join(parts, ", ")
}
