package models

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// ComponentWithCredential is the list/get representation of a component; the
// credential is attached when one exists.
type ComponentWithCredential struct {
	Component
	Credential *Credential `json:"credential,omitempty"`
}

// EntityCounts summarizes collection sizes for the overview endpoint.
type EntityCounts map[EntityKind]int

// Counts returns the number of records per structured collection.
func (s *InventoryStore) Counts() EntityCounts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return EntityCounts{
		KindRegion:      len(s.regionOrder),
		KindDistrict:    len(s.districtOrder),
		KindLandmark:    len(s.landmarkOrder),
		KindPole:        len(s.poleOrder),
		KindJunctionBox: len(s.junctionBoxOrder),
		KindComponent:   len(s.componentOrder),
		KindCredential:  len(s.credentialOrder),
	}
}

// ListEntities returns one page of a structured collection in insertion order,
// optionally filtered by a case-insensitive substring on name and code fields.
// The second return value is the total match count before pagination.
func (s *InventoryStore) ListEntities(kind EntityKind, q string, limit, offset int) ([]any, int, error) {
	if !ValidEntityKind(kind) {
		return nil, 0, ErrInvalidEntityKind
	}
	needle := NormalizeKey(q)
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []any{}
	switch kind {
	case KindRegion:
		for _, id := range s.regionOrder {
			r := s.regions[id]
			if needle != "" && !containsNormalized(needle, r.Name) {
				continue
			}
			copy := *r
			out = append(out, &copy)
		}
	case KindDistrict:
		for _, id := range s.districtOrder {
			d := s.districts[id]
			if needle != "" && !containsNormalized(needle, d.Name, d.Code) {
				continue
			}
			copy := *d
			out = append(out, &copy)
		}
	case KindLandmark:
		for _, id := range s.landmarkOrder {
			l := s.landmarks[id]
			if needle != "" && !containsNormalized(needle, l.Name, l.Code) {
				continue
			}
			copy := *l
			copy.Lat, copy.Lng = clonePtr(copy.Lat), clonePtr(copy.Lng)
			out = append(out, &copy)
		}
	case KindPole:
		for _, id := range s.poleOrder {
			p := s.poles[id]
			if needle != "" && !containsNormalized(needle, p.Code, p.LocationName) {
				continue
			}
			copy := *p
			copy.Lat, copy.Lng = clonePtr(copy.Lat), clonePtr(copy.Lng)
			out = append(out, &copy)
		}
	case KindJunctionBox:
		for _, id := range s.junctionBoxOrder {
			jb := s.junctionBoxes[id]
			if needle != "" && !containsNormalized(needle, jb.Code) {
				continue
			}
			copy := *jb
			copy.Lat, copy.Lng = clonePtr(copy.Lat), clonePtr(copy.Lng)
			out = append(out, &copy)
		}
	case KindComponent:
		for _, id := range s.componentOrder {
			c := s.components[id]
			if needle != "" && !containsNormalized(needle, c.Code, c.Type, c.LandmarkName) {
				continue
			}
			out = append(out, s.componentWithCredentialLocked(c))
		}
	case KindCredential:
		for _, id := range s.credentialOrder {
			cr := s.credentials[id]
			if needle != "" && !containsNormalized(needle, cr.ComponentCode, cr.Username, cr.IPAddress) {
				continue
			}
			copy := *cr
			out = append(out, &copy)
		}
	}
	total := len(out)
	return paginate(out, limit, offset), total, nil
}

// GetEntity returns one record by id.
func (s *InventoryStore) GetEntity(kind EntityKind, id string) (any, error) {
	if !ValidEntityKind(kind) {
		return nil, ErrInvalidEntityKind
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getEntityLocked(kind, id)
}

func (s *InventoryStore) getEntityLocked(kind EntityKind, id string) (any, error) {
	switch kind {
	case KindRegion:
		if r, ok := s.regions[id]; ok {
			copy := *r
			return &copy, nil
		}
	case KindDistrict:
		if d, ok := s.districts[id]; ok {
			copy := *d
			return &copy, nil
		}
	case KindLandmark:
		if l, ok := s.landmarks[id]; ok {
			copy := *l
			copy.Lat, copy.Lng = clonePtr(copy.Lat), clonePtr(copy.Lng)
			return &copy, nil
		}
	case KindPole:
		if p, ok := s.poles[id]; ok {
			copy := *p
			copy.Lat, copy.Lng = clonePtr(copy.Lat), clonePtr(copy.Lng)
			return &copy, nil
		}
	case KindJunctionBox:
		if jb, ok := s.junctionBoxes[id]; ok {
			copy := *jb
			copy.Lat, copy.Lng = clonePtr(copy.Lat), clonePtr(copy.Lng)
			return &copy, nil
		}
	case KindComponent:
		if c, ok := s.components[id]; ok {
			return s.componentWithCredentialLocked(c), nil
		}
	case KindCredential:
		if cr, ok := s.credentials[id]; ok {
			copy := *cr
			return &copy, nil
		}
	}
	return nil, ErrEntityNotFound
}

func (s *InventoryStore) componentWithCredentialLocked(c *Component) *ComponentWithCredential {
	out := &ComponentWithCredential{Component: *c.Clone()}
	for _, id := range s.credentialOrder {
		if s.credentials[id].ComponentID == c.ID {
			copy := *s.credentials[id]
			out.Credential = &copy
			break
		}
	}
	return out
}

// PatchEntity applies a sparse field update to one record. Keys name JSON
// fields; a key outside the kind's editable set fails the whole patch with
// ErrUnknownColumn and nothing is written.
func (s *InventoryStore) PatchEntity(kind EntityKind, id string, fields map[string]string, actor string) (any, error) {
	if !ValidEntityKind(kind) {
		return nil, ErrInvalidEntityKind
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	switch kind {
	case KindRegion:
		r, ok := s.regions[id]
		if !ok {
			return nil, ErrEntityNotFound
		}
		err = patchFields(fields, map[string]*string{"name": &r.Name}, nil, &r.UpdatedAt)
	case KindDistrict:
		d, ok := s.districts[id]
		if !ok {
			return nil, ErrEntityNotFound
		}
		err = patchFields(fields, map[string]*string{"name": &d.Name, "code": &d.Code}, nil, &d.UpdatedAt)
	case KindLandmark:
		l, ok := s.landmarks[id]
		if !ok {
			return nil, ErrEntityNotFound
		}
		err = patchFields(fields,
			map[string]*string{"name": &l.Name, "code": &l.Code},
			map[string]**float64{"lat": &l.Lat, "lng": &l.Lng},
			&l.UpdatedAt)
	case KindPole:
		p, ok := s.poles[id]
		if !ok {
			return nil, ErrEntityNotFound
		}
		err = patchFields(fields,
			map[string]*string{"code": &p.Code, "location_name": &p.LocationName},
			map[string]**float64{"lat": &p.Lat, "lng": &p.Lng},
			&p.UpdatedAt)
	case KindJunctionBox:
		jb, ok := s.junctionBoxes[id]
		if !ok {
			return nil, ErrEntityNotFound
		}
		err = patchFields(fields,
			map[string]*string{"code": &jb.Code},
			map[string]**float64{"lat": &jb.Lat, "lng": &jb.Lng},
			&jb.UpdatedAt)
	case KindComponent:
		c, ok := s.components[id]
		if !ok {
			return nil, ErrEntityNotFound
		}
		err = patchComponentFields(c, fields)
	case KindCredential:
		cr, ok := s.credentials[id]
		if !ok {
			return nil, ErrEntityNotFound
		}
		err = patchFields(fields, map[string]*string{
			"username":     &cr.Username,
			"password":     &cr.Password,
			"ip_address":   &cr.IPAddress,
			"port":         &cr.Port,
			"access_type":  &cr.AccessType,
			"notes":        &cr.Notes,
			"last_updated": &cr.LastUpdated,
		}, nil, &cr.UpdatedAt)
	}
	if err != nil {
		return nil, err
	}
	s.recordLocked(actor, "entity_patch", string(kind), id, strings.Join(sortedKeys(fields), ","))
	return s.getEntityLocked(kind, id)
}

// patchFields validates every key before writing anything, so an unknown key
// leaves the record untouched. Unlike import merging, explicit patches may
// clear a field with an empty value.
func patchFields(fields map[string]string, text map[string]*string, coords map[string]**float64, updatedAt *time.Time) error {
	parsed := make(map[string]*float64)
	for key, value := range fields {
		if _, ok := text[key]; ok {
			continue
		}
		if _, ok := coords[key]; ok {
			if strings.TrimSpace(value) == "" {
				parsed[key] = nil
				continue
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err != nil {
				return ErrUnknownColumn
			}
			parsed[key] = &f
			continue
		}
		return ErrUnknownColumn
	}
	for key, value := range fields {
		if dst, ok := text[key]; ok {
			*dst = strings.TrimSpace(value)
		} else if dst, ok := coords[key]; ok {
			*dst = parsed[key]
		}
	}
	*updatedAt = time.Now().UTC()
	return nil
}

func patchComponentFields(c *Component, fields map[string]string) error {
	text := map[string]*string{
		"component_code": &c.Code,
		"component_type": &c.Type,
		"landmark_name":  &c.LandmarkName,
	}
	coords := map[string]**float64{"lat": &c.Lat, "lng": &c.Lng}
	known := make(map[string]string, len(fields))
	attrs := make(map[string]string)
	for key, value := range fields {
		if strings.HasPrefix(key, "attr.") {
			attrs[strings.TrimPrefix(key, "attr.")] = value
			continue
		}
		known[key] = value
	}
	if err := patchFields(known, text, coords, &c.UpdatedAt); err != nil {
		return err
	}
	for key, value := range attrs {
		if c.Attributes == nil {
			c.Attributes = make(map[string]string)
		}
		if strings.TrimSpace(value) == "" {
			delete(c.Attributes, key)
			continue
		}
		c.Attributes[key] = strings.TrimSpace(value)
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func containsNormalized(needle string, haystacks ...string) bool {
	for _, h := range haystacks {
		if strings.Contains(NormalizeKey(h), needle) {
			return true
		}
	}
	return false
}
