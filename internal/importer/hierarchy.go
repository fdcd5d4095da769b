package importer

import (
	"errors"

	"netinv/internal/models"
	"netinv/internal/schema"
	"netinv/internal/workbook"
)

// componentAttributes maps the long tail of equipment columns onto attribute
// keys. Whatever the sheet provides lands in Component.Attributes; absent
// columns simply contribute nothing.
var componentAttributes = []struct {
	Key     string
	Aliases []string
}{
	{"connected_to_code", []string{"Connected To (Component ID)", "Connected To"}},
	{"model", []string{"Model/ Specific Device", "Model"}},
	{"serial", []string{"Manufacturer Serial Number", "Serial Number"}},
	{"firmware", []string{"Firmware/ Software Version", "Firmware"}},
	{"os", []string{"Operating System (if applicable)", "Operating System"}},
	{"licenses", []string{"Software Licenses (if applicable)", "Software Licenses"}},
	{"project_phase", []string{"Project Phase"}},
	{"frs_camera", []string{"FRS Camera"}},
	{"power_req", []string{"Power Source/ Requirements", "Power Requirements"}},
	{"local_if_name", []string{"Local Interface Name/Port"}},
	{"local_if_ip", []string{"Local Interface IP Address"}},
	{"remote_if_name", []string{"Remote Interface Name/Port"}},
	{"remote_if_ip", []string{"Remote Interface IP Address"}},
	{"cable_id", []string{"Cable ID"}},
	{"physical_link_type", []string{"Physical Link Type"}},
	{"logical_link_type", []string{"Logical Link Type (Overall Network Segment)"}},
	{"segment_type", []string{"Segment Type (Connectivity Model)"}},
	{"segment_switches", []string{"Segment Structure - Switches"}},
	{"segment_junctions", []string{"Segment Structure - Junctions"}},
	{"segment_instance_no", []string{"Segment Structure - Instance Number"}},
	{"fiber_core_usage", []string{"Fiber Core Usage (if OFC)"}},
	{"proposed_vlan", []string{"Proposed VLAN ID"}},
	{"proposed_subnet", []string{"Proposed Subnet (CIDR)"}},
	{"ip_assignment", []string{"IP Assignment Method"}},
	{"video_priority", []string{"Video-High-Priority (EF)"}},
	{"security_zone", []string{"Security Zone/Firewall Zone"}},
	{"last_config_change", []string{"Last Configuration Change Date"}},
	{"last_config_backup", []string{"Last Configuration Backup Date"}},
	{"maintenance_schedule", []string{"Maintenance Schedule"}},
	{"last_maintenance", []string{"Last Maintenance Date"}},
	{"monitoring_tool", []string{"Monitoring Status/Tool"}},
	{"network_provider", []string{"Network Provider"}},
	{"static_router_ip", []string{"Static IP Of router"}},
	{"landline_number", []string{"Landline Number"}},
	{"termination_type", []string{"Termination Type(Port Forwarding /VPN)"}},
	{"router1", []string{"Router 1"}},
	{"router2", []string{"Router 2"}},
	{"http_port", []string{"HTTP Port"}},
	{"rtsp_port", []string{"RTSP Port"}},
}

// HierarchyImporter consumes network-design sheets: one row per component,
// carrying the full region → district → landmark → pole → junction box chain.
type HierarchyImporter struct{}

func (HierarchyImporter) Name() string { return schema.ProfileHierarchy }

func (HierarchyImporter) Import(sheet *workbook.Sheet, store *models.InventoryStore) *Summary {
	summary := &Summary{}
	cols := newColumnMap(sheet)

	for _, row := range sheet.DataRows() {
		code := cols.cell(row, "Component ID", "Component Code")
		ctype := cols.cell(row, "Component Type")
		region := cols.cell(row, "Region")
		district := cols.cell(row, "District")
		if code == "" || ctype == "" || region == "" || district == "" {
			summary.skip(row.Index, ReasonMissingParentKey, "component id, type, region and district are required")
			continue
		}

		landmarkCode := cols.cell(row, "Landmark ID")
		poleCode := cols.cell(row, "Pole Location")
		jbCode := cols.cell(row, "JB ID")
		if poleCode != "" && landmarkCode == "" {
			summary.skip(row.Index, ReasonMissingParentKey, "pole without landmark id")
			continue
		}
		if jbCode != "" && poleCode == "" {
			summary.skip(row.Index, ReasonMissingParentKey, "junction box without pole location")
			continue
		}

		landmarkName := cols.cell(row, "Landmark")
		lat := parseCoord(cols.cell(row, "Latitude"))
		lng := parseCoord(cols.cell(row, "Longitude"))

		if landmarkCode != "" {
			if _, _, err := store.UpsertLandmark(models.LandmarkUpsert{
				RegionName:   region,
				DistrictName: district,
				Code:         landmarkCode,
				Name:         landmarkName,
			}); err != nil {
				summary.skip(row.Index, skipReasonFor(err), "landmark "+landmarkCode)
				continue
			}
		}
		if poleCode != "" {
			if _, _, err := store.UpsertPole(models.PoleUpsert{
				Code:         poleCode,
				LandmarkCode: landmarkCode,
				RegionName:   region,
				DistrictName: district,
			}); err != nil {
				summary.skip(row.Index, skipReasonFor(err), "pole "+poleCode)
				continue
			}
		}
		if jbCode != "" {
			if _, _, err := store.UpsertJunctionBox(models.JunctionBoxUpsert{
				Code:         jbCode,
				PoleCode:     poleCode,
				LandmarkCode: landmarkCode,
				RegionName:   region,
				DistrictName: district,
			}); err != nil {
				summary.skip(row.Index, skipReasonFor(err), "junction box "+jbCode)
				continue
			}
		}

		attrs := make(map[string]string)
		for _, spec := range componentAttributes {
			if v := cols.cell(row, spec.Aliases...); v != "" {
				attrs[spec.Key] = v
			}
		}

		_, outcome, err := store.UpsertComponent(models.ComponentUpsert{
			Code:            code,
			Type:            ctype,
			PoleCode:        poleCode,
			JunctionBoxCode: jbCode,
			LandmarkCode:    landmarkCode,
			RegionName:      region,
			DistrictName:    district,
			LandmarkName:    landmarkName,
			Lat:             lat,
			Lng:             lng,
			Attributes:      attrs,
		})
		if err != nil {
			summary.skip(row.Index, skipReasonFor(err), "component "+code)
			continue
		}
		summary.count(outcome)
	}
	return summary
}

func skipReasonFor(err error) string {
	switch {
	case errors.Is(err, models.ErrAmbiguousParent):
		return ReasonAmbiguousParent
	case errors.Is(err, models.ErrEntityNotFound):
		return ReasonNotFound
	default:
		return ReasonMissingParentKey
	}
}
