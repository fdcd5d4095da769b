package models

import (
	"strings"
	"time"
)

// UpsertOutcome reports what a reconciliation call did to its target entity.
type UpsertOutcome struct {
	Created bool
	Updated bool
}

// DistrictUpsert identifies a district by name within its region.
type DistrictUpsert struct {
	RegionName string
	Name       string
	Code       string
}

// LandmarkUpsert identifies a landmark by code, with optional ancestry for creation.
type LandmarkUpsert struct {
	RegionName   string
	DistrictName string
	Code         string
	Name         string
	Lat          *float64
	Lng          *float64
}

// PoleUpsert identifies a pole by code. The landmark may be referenced by code
// or by bare name; ancestry fields are only required when the chain has to be
// created on the fly.
type PoleUpsert struct {
	Code         string
	LocationName string
	LandmarkCode string
	LandmarkName string
	RegionName   string
	DistrictName string
	Lat          *float64
	Lng          *float64
}

// JunctionBoxUpsert identifies a junction box by code under a pole.
type JunctionBoxUpsert struct {
	Code         string
	PoleCode     string
	LandmarkCode string
	LandmarkName string
	RegionName   string
	DistrictName string
	Lat          *float64
	Lng          *float64
}

// ComponentUpsert identifies a component by code. A component mounts on a pole
// or inside a junction box; when both references are present the junction box
// wins, matching how field sheets record cabinet-mounted gear.
type ComponentUpsert struct {
	Code            string
	Type            string
	PoleCode        string
	JunctionBoxCode string
	LandmarkCode    string
	LandmarkName    string
	RegionName      string
	DistrictName    string
	Lat             *float64
	Lng             *float64
	Attributes      map[string]string
}

// CredentialUpsert attaches access details to an existing component by code.
type CredentialUpsert struct {
	ComponentCode string
	Username      string
	Password      string
	IPAddress     string
	Port          string
	AccessType    string
	Notes         string
	LastUpdated   string
}

// UpsertRegion creates or returns the region with the given name.
func (s *InventoryStore) UpsertRegion(name string) (*Region, UpsertOutcome, error) {
	if NormalizeKey(name) == "" {
		return nil, UpsertOutcome{}, ErrMissingParentKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	region, created := s.getOrCreateRegionLocked(name)
	copy := *region
	return &copy, UpsertOutcome{Created: created}, nil
}

// UpsertDistrict creates or updates a district within its region.
func (s *InventoryStore) UpsertDistrict(in DistrictUpsert) (*District, UpsertOutcome, error) {
	if NormalizeKey(in.Name) == "" {
		return nil, UpsertOutcome{}, ErrMissingParentKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	district, outcome, err := s.getOrCreateDistrictLocked(in.RegionName, in.Name)
	if err != nil {
		return nil, UpsertOutcome{}, err
	}
	if mergeField(&district.Code, in.Code) {
		outcome.Updated = !outcome.Created
		district.UpdatedAt = time.Now().UTC()
	}
	copy := *district
	return &copy, outcome, nil
}

// UpsertLandmark creates or updates a landmark by code. Blank incoming fields
// never erase stored values.
func (s *InventoryStore) UpsertLandmark(in LandmarkUpsert) (*Landmark, UpsertOutcome, error) {
	if NormalizeKey(in.Code) == "" {
		return nil, UpsertOutcome{}, ErrMissingParentKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	landmark, outcome, err := s.getOrCreateLandmarkByCodeLocked(in)
	if err != nil {
		return nil, UpsertOutcome{}, err
	}
	changed := mergeField(&landmark.Name, in.Name)
	changed = mergeCoord(&landmark.Lat, in.Lat) || changed
	changed = mergeCoord(&landmark.Lng, in.Lng) || changed
	if changed && !outcome.Created {
		outcome.Updated = true
	}
	if changed {
		landmark.UpdatedAt = time.Now().UTC()
	}
	copy := *landmark
	copy.Lat, copy.Lng = clonePtr(copy.Lat), clonePtr(copy.Lng)
	return &copy, outcome, nil
}

// UpsertPole creates or updates a pole by code.
func (s *InventoryStore) UpsertPole(in PoleUpsert) (*Pole, UpsertOutcome, error) {
	if NormalizeKey(in.Code) == "" {
		return nil, UpsertOutcome{}, ErrMissingParentKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	outcome := UpsertOutcome{}
	pole := s.findPoleByCodeLocked(in.Code)
	if pole == nil {
		landmark, err := s.resolveLandmarkLocked(in.LandmarkCode, in.LandmarkName, in.RegionName, in.DistrictName, true)
		if err != nil {
			return nil, UpsertOutcome{}, err
		}
		now := time.Now().UTC()
		pole = &Pole{
			ID:         GenerateID("pole"),
			LandmarkID: landmark.ID,
			DistrictID: landmark.DistrictID,
			RegionID:   landmark.RegionID,
			Code:       in.Code,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		s.poles[pole.ID] = pole
		s.poleOrder = append(s.poleOrder, pole.ID)
		outcome.Created = true
	} else if in.LandmarkCode != "" || in.LandmarkName != "" {
		landmark, err := s.resolveLandmarkLocked(in.LandmarkCode, in.LandmarkName, in.RegionName, in.DistrictName, false)
		if err == nil && landmark != nil && landmark.ID != pole.LandmarkID {
			pole.LandmarkID = landmark.ID
			pole.DistrictID = landmark.DistrictID
			pole.RegionID = landmark.RegionID
			outcome.Updated = true
		} else if err != nil && err != ErrEntityNotFound {
			return nil, UpsertOutcome{}, err
		}
	}
	changed := mergeField(&pole.LocationName, in.LocationName)
	changed = mergeCoord(&pole.Lat, in.Lat) || changed
	changed = mergeCoord(&pole.Lng, in.Lng) || changed
	if changed {
		pole.UpdatedAt = time.Now().UTC()
		if !outcome.Created {
			outcome.Updated = true
		}
	}
	copy := *pole
	copy.Lat, copy.Lng = clonePtr(copy.Lat), clonePtr(copy.Lng)
	return &copy, outcome, nil
}

// UpsertJunctionBox creates or updates a junction box by code.
func (s *InventoryStore) UpsertJunctionBox(in JunctionBoxUpsert) (*JunctionBox, UpsertOutcome, error) {
	if NormalizeKey(in.Code) == "" {
		return nil, UpsertOutcome{}, ErrMissingParentKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	outcome := UpsertOutcome{}
	jb := s.findJunctionBoxByCodeLocked(in.Code)
	if jb == nil {
		if NormalizeKey(in.PoleCode) == "" {
			return nil, UpsertOutcome{}, ErrMissingParentKey
		}
		pole := s.findPoleByCodeLocked(in.PoleCode)
		if pole == nil {
			landmark, err := s.resolveLandmarkLocked(in.LandmarkCode, in.LandmarkName, in.RegionName, in.DistrictName, true)
			if err != nil {
				return nil, UpsertOutcome{}, err
			}
			now := time.Now().UTC()
			pole = &Pole{
				ID:         GenerateID("pole"),
				LandmarkID: landmark.ID,
				DistrictID: landmark.DistrictID,
				RegionID:   landmark.RegionID,
				Code:       in.PoleCode,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			s.poles[pole.ID] = pole
			s.poleOrder = append(s.poleOrder, pole.ID)
		}
		now := time.Now().UTC()
		jb = &JunctionBox{
			ID:         GenerateID("jb"),
			PoleID:     pole.ID,
			LandmarkID: pole.LandmarkID,
			DistrictID: pole.DistrictID,
			RegionID:   pole.RegionID,
			Code:       in.Code,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		s.junctionBoxes[jb.ID] = jb
		s.junctionBoxOrder = append(s.junctionBoxOrder, jb.ID)
		outcome.Created = true
	}
	changed := mergeCoord(&jb.Lat, in.Lat)
	changed = mergeCoord(&jb.Lng, in.Lng) || changed
	if changed {
		jb.UpdatedAt = time.Now().UTC()
		if !outcome.Created {
			outcome.Updated = true
		}
	}
	copy := *jb
	copy.Lat, copy.Lng = clonePtr(copy.Lat), clonePtr(copy.Lng)
	return &copy, outcome, nil
}

// UpsertComponent creates or updates a component by code. Attribute merging is
// per key: incoming blank values are dropped before the merge.
func (s *InventoryStore) UpsertComponent(in ComponentUpsert) (*Component, UpsertOutcome, error) {
	if NormalizeKey(in.Code) == "" {
		return nil, UpsertOutcome{}, ErrMissingParentKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	outcome := UpsertOutcome{}
	comp := s.findComponentByCodeLocked(in.Code)
	if comp == nil {
		now := time.Now().UTC()
		comp = &Component{
			ID:        GenerateID("comp"),
			Code:      in.Code,
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.components[comp.ID] = comp
		s.componentOrder = append(s.componentOrder, comp.ID)
		outcome.Created = true
	}

	changed := mergeField(&comp.Type, in.Type)
	changed = mergeField(&comp.LandmarkName, in.LandmarkName) || changed
	changed = mergeCoord(&comp.Lat, in.Lat) || changed
	changed = mergeCoord(&comp.Lng, in.Lng) || changed

	if in.JunctionBoxCode != "" {
		if jb := s.findJunctionBoxByCodeLocked(in.JunctionBoxCode); jb != nil && comp.JunctionBoxID != jb.ID {
			comp.JunctionBoxID = jb.ID
			comp.PoleID = ""
			comp.LandmarkID = jb.LandmarkID
			comp.DistrictID = jb.DistrictID
			comp.RegionID = jb.RegionID
			changed = true
		}
	} else if in.PoleCode != "" {
		if pole := s.findPoleByCodeLocked(in.PoleCode); pole != nil && comp.PoleID != pole.ID {
			comp.PoleID = pole.ID
			comp.JunctionBoxID = ""
			comp.LandmarkID = pole.LandmarkID
			comp.DistrictID = pole.DistrictID
			comp.RegionID = pole.RegionID
			changed = true
		}
	} else if comp.LandmarkID == "" && (in.LandmarkCode != "" || in.LandmarkName != "") {
		landmark, err := s.resolveLandmarkLocked(in.LandmarkCode, in.LandmarkName, in.RegionName, in.DistrictName, false)
		if err != nil && err != ErrEntityNotFound {
			return nil, UpsertOutcome{}, err
		}
		if landmark != nil {
			comp.LandmarkID = landmark.ID
			comp.DistrictID = landmark.DistrictID
			comp.RegionID = landmark.RegionID
			changed = true
		}
	}

	// Rows without any location chain still link the component into its
	// region and district by name, creating them as needed.
	if comp.DistrictID == "" && NormalizeKey(in.DistrictName) != "" {
		district, _, err := s.getOrCreateDistrictLocked(in.RegionName, in.DistrictName)
		if err != nil {
			return nil, UpsertOutcome{}, err
		}
		comp.DistrictID = district.ID
		comp.RegionID = district.RegionID
		changed = true
	} else if comp.RegionID == "" && NormalizeKey(in.RegionName) != "" {
		region, _ := s.getOrCreateRegionLocked(in.RegionName)
		comp.RegionID = region.ID
		changed = true
	}

	for key, value := range in.Attributes {
		if strings.TrimSpace(value) == "" {
			continue
		}
		if comp.Attributes == nil {
			comp.Attributes = make(map[string]string)
		}
		if comp.Attributes[key] != value {
			comp.Attributes[key] = value
			changed = true
		}
	}

	if changed {
		comp.UpdatedAt = time.Now().UTC()
		if !outcome.Created {
			outcome.Updated = true
		}
	}
	return comp.Clone(), outcome, nil
}

// UpsertCredential attaches or updates access details for a component. The
// component must already exist; credential sheets never create equipment.
func (s *InventoryStore) UpsertCredential(in CredentialUpsert) (*Credential, UpsertOutcome, error) {
	if NormalizeKey(in.ComponentCode) == "" {
		return nil, UpsertOutcome{}, ErrMissingParentKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	comp := s.findComponentByCodeLocked(in.ComponentCode)
	if comp == nil {
		return nil, UpsertOutcome{}, ErrEntityNotFound
	}

	outcome := UpsertOutcome{}
	var cred *Credential
	for _, id := range s.credentialOrder {
		if s.credentials[id].ComponentID == comp.ID {
			cred = s.credentials[id]
			break
		}
	}
	if cred == nil {
		now := time.Now().UTC()
		cred = &Credential{
			ID:            GenerateID("cred"),
			ComponentID:   comp.ID,
			ComponentCode: comp.Code,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		s.credentials[cred.ID] = cred
		s.credentialOrder = append(s.credentialOrder, cred.ID)
		outcome.Created = true
	}

	changed := mergeField(&cred.Username, in.Username)
	changed = mergeField(&cred.Password, in.Password) || changed
	changed = mergeField(&cred.IPAddress, in.IPAddress) || changed
	changed = mergeField(&cred.Port, in.Port) || changed
	changed = mergeField(&cred.AccessType, in.AccessType) || changed
	changed = mergeField(&cred.Notes, in.Notes) || changed
	changed = mergeField(&cred.LastUpdated, in.LastUpdated) || changed
	if changed {
		cred.UpdatedAt = time.Now().UTC()
		if !outcome.Created {
			outcome.Updated = true
		}
	}
	copy := *cred
	return &copy, outcome, nil
}

func (s *InventoryStore) getOrCreateRegionLocked(name string) (*Region, bool) {
	normalized := NormalizeKey(name)
	for _, id := range s.regionOrder {
		if NormalizeKey(s.regions[id].Name) == normalized {
			return s.regions[id], false
		}
	}
	now := time.Now().UTC()
	region := &Region{
		ID:        GenerateID("region"),
		Name:      strings.TrimSpace(name),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.regions[region.ID] = region
	s.regionOrder = append(s.regionOrder, region.ID)
	return region, true
}

func (s *InventoryStore) getOrCreateDistrictLocked(regionName, name string) (*District, UpsertOutcome, error) {
	normalized := NormalizeKey(name)

	var regionID string
	if NormalizeKey(regionName) != "" {
		region, _ := s.getOrCreateRegionLocked(regionName)
		regionID = region.ID
	}

	var matches []*District
	for _, id := range s.districtOrder {
		d := s.districts[id]
		if NormalizeKey(d.Name) != normalized {
			continue
		}
		if regionID != "" && d.RegionID != regionID {
			continue
		}
		matches = append(matches, d)
	}
	switch {
	case len(matches) == 1:
		return matches[0], UpsertOutcome{}, nil
	case len(matches) > 1:
		return nil, UpsertOutcome{}, ErrAmbiguousParent
	}

	if regionID == "" {
		return nil, UpsertOutcome{}, ErrMissingParentKey
	}
	now := time.Now().UTC()
	district := &District{
		ID:        GenerateID("district"),
		RegionID:  regionID,
		Name:      strings.TrimSpace(name),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.districts[district.ID] = district
	s.districtOrder = append(s.districtOrder, district.ID)
	return district, UpsertOutcome{Created: true}, nil
}

func (s *InventoryStore) getOrCreateLandmarkByCodeLocked(in LandmarkUpsert) (*Landmark, UpsertOutcome, error) {
	normalized := NormalizeKey(in.Code)
	for _, id := range s.landmarkOrder {
		if NormalizeKey(s.landmarks[id].Code) == normalized {
			return s.landmarks[id], UpsertOutcome{}, nil
		}
	}
	if NormalizeKey(in.DistrictName) == "" {
		return nil, UpsertOutcome{}, ErrMissingParentKey
	}
	district, _, err := s.getOrCreateDistrictLocked(in.RegionName, in.DistrictName)
	if err != nil {
		return nil, UpsertOutcome{}, err
	}
	now := time.Now().UTC()
	landmark := &Landmark{
		ID:         GenerateID("lm"),
		DistrictID: district.ID,
		RegionID:   district.RegionID,
		Code:       strings.TrimSpace(in.Code),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.landmarks[landmark.ID] = landmark
	s.landmarkOrder = append(s.landmarkOrder, landmark.ID)
	return landmark, UpsertOutcome{Created: true}, nil
}

// resolveLandmarkLocked locates a landmark by code or bare name. With create
// set, a missing landmark is built from the supplied ancestry; without it the
// caller gets ErrEntityNotFound and decides what to do.
func (s *InventoryStore) resolveLandmarkLocked(code, name, regionName, districtName string, create bool) (*Landmark, error) {
	if NormalizeKey(code) != "" {
		normalized := NormalizeKey(code)
		for _, id := range s.landmarkOrder {
			if NormalizeKey(s.landmarks[id].Code) == normalized {
				return s.landmarks[id], nil
			}
		}
		if !create {
			return nil, ErrEntityNotFound
		}
		lm, _, err := s.getOrCreateLandmarkByCodeLocked(LandmarkUpsert{
			RegionName:   regionName,
			DistrictName: districtName,
			Code:         code,
			Name:         name,
		})
		if err != nil {
			return nil, err
		}
		lm.Name = strings.TrimSpace(name)
		return lm, nil
	}

	if NormalizeKey(name) != "" {
		normalized := NormalizeKey(name)
		var matches []*Landmark
		for _, id := range s.landmarkOrder {
			if NormalizeKey(s.landmarks[id].Name) == normalized {
				matches = append(matches, s.landmarks[id])
			}
		}
		switch {
		case len(matches) == 1:
			return matches[0], nil
		case len(matches) > 1:
			return nil, ErrAmbiguousParent
		}
		if !create {
			return nil, ErrEntityNotFound
		}
		// A name-only landmark gets its name as code so later rows can find it.
		lm, _, err := s.getOrCreateLandmarkByCodeLocked(LandmarkUpsert{
			RegionName:   regionName,
			DistrictName: districtName,
			Code:         name,
		})
		if err != nil {
			return nil, err
		}
		lm.Name = strings.TrimSpace(name)
		return lm, nil
	}

	return nil, ErrMissingParentKey
}

func (s *InventoryStore) findPoleByCodeLocked(code string) *Pole {
	normalized := NormalizeKey(code)
	if normalized == "" {
		return nil
	}
	for _, id := range s.poleOrder {
		if NormalizeKey(s.poles[id].Code) == normalized {
			return s.poles[id]
		}
	}
	return nil
}

func (s *InventoryStore) findJunctionBoxByCodeLocked(code string) *JunctionBox {
	normalized := NormalizeKey(code)
	if normalized == "" {
		return nil
	}
	for _, id := range s.junctionBoxOrder {
		if NormalizeKey(s.junctionBoxes[id].Code) == normalized {
			return s.junctionBoxes[id]
		}
	}
	return nil
}

func (s *InventoryStore) findComponentByCodeLocked(code string) *Component {
	normalized := NormalizeKey(code)
	if normalized == "" {
		return nil
	}
	for _, id := range s.componentOrder {
		if NormalizeKey(s.components[id].Code) == normalized {
			return s.components[id]
		}
	}
	return nil
}

// mergeField overwrites dst only when the incoming value is non-blank and
// differs from what is stored.
func mergeField(dst *string, incoming string) bool {
	trimmed := strings.TrimSpace(incoming)
	if trimmed == "" || *dst == trimmed {
		return false
	}
	*dst = trimmed
	return true
}

func mergeCoord(dst **float64, incoming *float64) bool {
	if incoming == nil {
		return false
	}
	if *dst != nil && **dst == *incoming {
		return false
	}
	value := *incoming
	*dst = &value
	return true
}
