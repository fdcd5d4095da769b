package models

import (
	"errors"
	"fmt"
	mrand "math/rand"
	"strings"
	"sync"
	"time"
)

var (
	// ErrWorkbookNotFound is returned when a raw workbook cannot be located.
	ErrWorkbookNotFound = errors.New("workbook_not_found")
	// ErrSheetNotFound is returned when a raw sheet cannot be located.
	ErrSheetNotFound = errors.New("sheet_not_found")
	// ErrRowNotFound is returned when a raw row cannot be located.
	ErrRowNotFound = errors.New("row_not_found")
	// ErrUnknownColumn indicates a patch referenced a column absent from the sheet's column list.
	ErrUnknownColumn = errors.New("unknown_column")
	// ErrEntityNotFound is returned when a structured entity cannot be located.
	ErrEntityNotFound = errors.New("entity_not_found")
	// ErrMissingParentKey indicates a row carried no columns identifying the required ancestor.
	ErrMissingParentKey = errors.New("missing_parent_key")
	// ErrAmbiguousParent indicates parent resolution matched more than one candidate.
	ErrAmbiguousParent = errors.New("ambiguous_parent")
	// ErrInvalidEntityKind indicates an unsupported entity kind was requested.
	ErrInvalidEntityKind = errors.New("invalid_entity_kind")
	// ErrUserExists indicates the username is already registered.
	ErrUserExists = errors.New("user_exists")
	// ErrUserNotFound indicates the requested user cannot be located.
	ErrUserNotFound = errors.New("user_not_found")
	// ErrInvalidCredentials indicates username or password validation failed.
	ErrInvalidCredentials = errors.New("invalid_credentials")
	// ErrUsernameInvalid indicates the provided username is empty or malformed.
	ErrUsernameInvalid = errors.New("username_invalid")
	// ErrPasswordTooShort indicates the provided password is shorter than the minimum length.
	ErrPasswordTooShort = errors.New("password_too_short")
)

// EntityKind identifies one of the structured entity collections.
type EntityKind string

const (
	KindRegion      EntityKind = "regions"
	KindDistrict    EntityKind = "districts"
	KindLandmark    EntityKind = "landmarks"
	KindPole        EntityKind = "poles"
	KindJunctionBox EntityKind = "junction_boxes"
	KindComponent   EntityKind = "components"
	KindCredential  EntityKind = "credentials"
)

// AllEntityKinds lists the structured collections in a stable order.
var AllEntityKinds = []EntityKind{
	KindRegion, KindDistrict, KindLandmark, KindPole,
	KindJunctionBox, KindComponent, KindCredential,
}

// ValidEntityKind reports whether kind names a structured collection.
func ValidEntityKind(kind EntityKind) bool {
	for _, k := range AllEntityKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Region is the top of the inventory hierarchy. Names are globally unique.
type Region struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// District belongs to a region; its name is unique within that region.
type District struct {
	ID        string    `json:"id"`
	RegionID  string    `json:"region_id"`
	Name      string    `json:"name"`
	Code      string    `json:"code,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Landmark is a named location inside a district, identified by a unique code.
type Landmark struct {
	ID         string    `json:"id"`
	DistrictID string    `json:"district_id"`
	RegionID   string    `json:"region_id"`
	Code       string    `json:"code"`
	Name       string    `json:"name,omitempty"`
	Lat        *float64  `json:"lat,omitempty"`
	Lng        *float64  `json:"lng,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Pole is a mounting point at a landmark, identified by a unique code.
type Pole struct {
	ID           string    `json:"id"`
	LandmarkID   string    `json:"landmark_id"`
	DistrictID   string    `json:"district_id"`
	RegionID     string    `json:"region_id"`
	Code         string    `json:"code"`
	LocationName string    `json:"location_name,omitempty"`
	Lat          *float64  `json:"lat,omitempty"`
	Lng          *float64  `json:"lng,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// JunctionBox hangs off a pole, identified by a unique code.
type JunctionBox struct {
	ID         string    `json:"id"`
	PoleID     string    `json:"pole_id"`
	LandmarkID string    `json:"landmark_id"`
	DistrictID string    `json:"district_id"`
	RegionID   string    `json:"region_id"`
	Code       string    `json:"code"`
	Lat        *float64  `json:"lat,omitempty"`
	Lng        *float64  `json:"lng,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Component is a piece of field equipment. It may sit on a pole or inside a
// junction box, never both.
type Component struct {
	ID            string            `json:"id"`
	Code          string            `json:"component_code"`
	Type          string            `json:"component_type,omitempty"`
	PoleID        string            `json:"pole_id,omitempty"`
	JunctionBoxID string            `json:"junction_box_id,omitempty"`
	LandmarkID    string            `json:"landmark_id,omitempty"`
	DistrictID    string            `json:"district_id,omitempty"`
	RegionID      string            `json:"region_id,omitempty"`
	LandmarkName  string            `json:"landmark_name,omitempty"`
	Lat           *float64          `json:"lat,omitempty"`
	Lng           *float64          `json:"lng,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Clone returns a deep copy of the component.
func (c *Component) Clone() *Component {
	if c == nil {
		return nil
	}
	clone := *c
	if c.Attributes != nil {
		clone.Attributes = make(map[string]string, len(c.Attributes))
		for k, v := range c.Attributes {
			clone.Attributes[k] = v
		}
	}
	clone.Lat = clonePtr(c.Lat)
	clone.Lng = clonePtr(c.Lng)
	return &clone
}

// Credential stores access details for exactly one component. The secret here
// is domain data from credential sheets, not a security token of this service.
type Credential struct {
	ID            string    `json:"id"`
	ComponentID   string    `json:"component_id"`
	ComponentCode string    `json:"component_code"`
	Username      string    `json:"username,omitempty"`
	Password      string    `json:"password,omitempty"`
	IPAddress     string    `json:"ip_address,omitempty"`
	Port          string    `json:"port,omitempty"`
	AccessType    string    `json:"access_type,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	LastUpdated   string    `json:"last_updated,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Workbook is the raw record for one ingested spreadsheet file.
type Workbook struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	SHA256     string    `json:"sha256"`
	ImportedAt time.Time `json:"imported_at"`
}

// Sheet is the raw record for one worksheet. Columns is the ordered union of
// header names observed in the source, with duplicates suppressed.
type Sheet struct {
	ID         string   `json:"id"`
	WorkbookID string   `json:"workbook_id"`
	Name       string   `json:"name"`
	HeaderRow  int      `json:"header_row,omitempty"` // 1-based, 0 when undetected
	MaxRow     int      `json:"max_row"`
	MaxCol     int      `json:"max_col"`
	Columns    []string `json:"columns"`
}

// Row is the schema-agnostic copy of one physical spreadsheet row. Data keys
// are the sheet's column names; blank cells are absent, zero values are kept
// verbatim.
type Row struct {
	ID       string            `json:"id"`
	SheetID  string            `json:"sheet_id"`
	RowIndex int               `json:"row_index"` // 1-based position in the source sheet
	Data     map[string]string `json:"data"`
}

// Clone returns a deep copy of the row.
func (r *Row) Clone() *Row {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Data = make(map[string]string, len(r.Data))
	for k, v := range r.Data {
		clone.Data[k] = v
	}
	return &clone
}

// AuditLogEntry is a tamper evident record of one operation. Entries chain via
// PrevHash; the core only appends and never reads them back.
type AuditLogEntry struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Action      string    `json:"action"`
	EntityType  string    `json:"entity_type"`
	EntityID    string    `json:"entity_id,omitempty"`
	Description string    `json:"description,omitempty"`
	Hash        string    `json:"hash"`
	PrevHash    string    `json:"prev_hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// User represents an operator account.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Admin        bool      `json:"admin"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

var (
	seededRand   = mrand.New(mrand.NewSource(time.Now().UnixNano()))
	seededRandMu sync.Mutex
	idAlphabet   = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")
)

// GenerateID creates a pseudo-random identifier string.
func GenerateID(prefix string) string {
	seededRandMu.Lock()
	defer seededRandMu.Unlock()
	b := make([]rune, 18)
	for i := range b {
		b[i] = idAlphabet[seededRand.Intn(len(idAlphabet))]
	}
	return fmt.Sprintf("%s-%s", prefix, string(b))
}

// NormalizeKey lowercases and collapses whitespace for natural-key comparison.
func NormalizeKey(value string) string {
	return strings.Join(strings.Fields(strings.ToLower(value)), " ")
}

func clonePtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	copy := *v
	return &copy
}
