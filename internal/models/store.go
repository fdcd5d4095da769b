package models

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultAdminUsername = "inventory_admin"
	passwordSaltBytes    = 16
	passwordKeyBytes     = 32
	passwordIterations   = 120_000

	adminPasswordEnv = "INVENTORY_ADMIN_PASSWORD"
)

// InventoryStore coordinates all mutable state: structured entities, the raw
// row store, operator accounts, and the audit chain. A single writer lock
// serializes mutations, which subsumes the per-natural-key exclusion the
// import path relies on.
type InventoryStore struct {
	mu sync.RWMutex

	regions       map[string]*Region
	districts     map[string]*District
	landmarks     map[string]*Landmark
	poles         map[string]*Pole
	junctionBoxes map[string]*JunctionBox
	components    map[string]*Component
	credentials   map[string]*Credential

	regionOrder      []string
	districtOrder    []string
	landmarkOrder    []string
	poleOrder        []string
	junctionBoxOrder []string
	componentOrder   []string
	credentialOrder  []string

	workbooks     map[string]*Workbook
	workbookOrder []string
	sheets        map[string]*Sheet
	sheetsOfBook  map[string][]string
	rows          map[string]*Row
	rowsOfSheet   map[string][]string

	audits []*AuditLogEntry

	users      map[string]*User
	userByName map[string]*User
	userOrder  []string
}

// NewInventoryStore constructs an empty store and seeds the default admin.
func NewInventoryStore() *InventoryStore {
	s := &InventoryStore{
		regions:       make(map[string]*Region),
		districts:     make(map[string]*District),
		landmarks:     make(map[string]*Landmark),
		poles:         make(map[string]*Pole),
		junctionBoxes: make(map[string]*JunctionBox),
		components:    make(map[string]*Component),
		credentials:   make(map[string]*Credential),
		workbooks:     make(map[string]*Workbook),
		sheets:        make(map[string]*Sheet),
		sheetsOfBook:  make(map[string][]string),
		rows:          make(map[string]*Row),
		rowsOfSheet:   make(map[string][]string),
		users:         make(map[string]*User),
		userByName:    make(map[string]*User),
	}
	if err := s.ensureDefaultAdmin(); err != nil {
		panic(fmt.Sprintf("failed to seed default admin: %v", err))
	}
	return s
}

// Record appends an audit entry. It never fails and never blocks on I/O, so
// callers can treat it as fire-and-forget.
func (s *InventoryStore) Record(username, action, entityType, entityID, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordLocked(username, action, entityType, entityID, description)
}

func (s *InventoryStore) recordLocked(username, action, entityType, entityID, description string) {
	entry := &AuditLogEntry{
		ID:          GenerateID("audit"),
		Username:    strings.TrimSpace(username),
		Action:      action,
		EntityType:  entityType,
		EntityID:    entityID,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	if n := len(s.audits); n > 0 {
		entry.PrevHash = s.audits[n-1].Hash
	}
	entry.Hash = computeAuditHash(entry)
	s.audits = append(s.audits, entry)
}

func computeAuditHash(entry *AuditLogEntry) string {
	payload := strings.Join([]string{
		entry.ID,
		entry.Username,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		entry.Description,
		entry.CreatedAt.Format(time.RFC3339Nano),
		entry.PrevHash,
	}, "|")
	sum := sha256.Sum256([]byte(payload))
	return base64.RawStdEncoding.EncodeToString(sum[:])
}

// ListAudits returns newest-first audit entries, optionally filtered by username.
func (s *InventoryStore) ListAudits(username string, limit, offset int) []*AuditLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*AuditLogEntry, 0, len(s.audits))
	for i := len(s.audits) - 1; i >= 0; i-- {
		entry := s.audits[i]
		if username != "" && entry.Username != username {
			continue
		}
		copy := *entry
		out = append(out, &copy)
	}
	return paginate(out, limit, offset)
}

// VerifyAuditChain walks the hash chain and reports the first break, if any.
func (s *InventoryStore) VerifyAuditChain() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prev := ""
	for i, entry := range s.audits {
		if entry.PrevHash != prev {
			return fmt.Errorf("audit chain broken at index %d", i)
		}
		if computeAuditHash(entry) != entry.Hash {
			return fmt.Errorf("audit hash mismatch at index %d", i)
		}
		prev = entry.Hash
	}
	return nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// SnapshotVersion is the serialization format for persisted snapshots.
const SnapshotVersion = 1

// Snapshot captures all persisted state required to rebuild the store.
type Snapshot struct {
	Version       int              `json:"version"`
	Regions       []*Region        `json:"regions"`
	Districts     []*District      `json:"districts"`
	Landmarks     []*Landmark      `json:"landmarks"`
	Poles         []*Pole          `json:"poles"`
	JunctionBoxes []*JunctionBox   `json:"junction_boxes"`
	Components    []*Component     `json:"components"`
	Credentials   []*Credential    `json:"credentials"`
	Workbooks     []*Workbook      `json:"workbooks"`
	Sheets        []*Sheet         `json:"sheets"`
	Rows          []*Row           `json:"rows"`
	Audits        []*AuditLogEntry `json:"audits"`
	Users         []*snapshotUser  `json:"users"`
}

// snapshotUser carries the password hash that the API-facing User type hides.
type snapshotUser struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Admin        bool      `json:"admin"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ExportSnapshot returns a deep copy of the current store suitable for persistence.
func (s *InventoryStore) ExportSnapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{Version: SnapshotVersion}
	for _, id := range s.regionOrder {
		copy := *s.regions[id]
		snap.Regions = append(snap.Regions, &copy)
	}
	for _, id := range s.districtOrder {
		copy := *s.districts[id]
		snap.Districts = append(snap.Districts, &copy)
	}
	for _, id := range s.landmarkOrder {
		copy := *s.landmarks[id]
		copy.Lat, copy.Lng = clonePtr(copy.Lat), clonePtr(copy.Lng)
		snap.Landmarks = append(snap.Landmarks, &copy)
	}
	for _, id := range s.poleOrder {
		copy := *s.poles[id]
		copy.Lat, copy.Lng = clonePtr(copy.Lat), clonePtr(copy.Lng)
		snap.Poles = append(snap.Poles, &copy)
	}
	for _, id := range s.junctionBoxOrder {
		copy := *s.junctionBoxes[id]
		copy.Lat, copy.Lng = clonePtr(copy.Lat), clonePtr(copy.Lng)
		snap.JunctionBoxes = append(snap.JunctionBoxes, &copy)
	}
	for _, id := range s.componentOrder {
		snap.Components = append(snap.Components, s.components[id].Clone())
	}
	for _, id := range s.credentialOrder {
		copy := *s.credentials[id]
		snap.Credentials = append(snap.Credentials, &copy)
	}
	for _, id := range s.workbookOrder {
		copy := *s.workbooks[id]
		snap.Workbooks = append(snap.Workbooks, &copy)
		for _, sheetID := range s.sheetsOfBook[id] {
			sheet := *s.sheets[sheetID]
			sheet.Columns = append([]string{}, sheet.Columns...)
			snap.Sheets = append(snap.Sheets, &sheet)
			for _, rowID := range s.rowsOfSheet[sheetID] {
				snap.Rows = append(snap.Rows, s.rows[rowID].Clone())
			}
		}
	}
	for _, entry := range s.audits {
		copy := *entry
		snap.Audits = append(snap.Audits, &copy)
	}
	for _, id := range s.userOrder {
		user := s.users[id]
		snap.Users = append(snap.Users, &snapshotUser{
			ID:           user.ID,
			Username:     user.Username,
			Admin:        user.Admin,
			PasswordHash: user.PasswordHash,
			CreatedAt:    user.CreatedAt,
			UpdatedAt:    user.UpdatedAt,
		})
	}
	return snap
}

// ImportSnapshot replaces the in-memory state using the provided snapshot payload.
func (s *InventoryStore) ImportSnapshot(snap *Snapshot) error {
	if snap == nil {
		return errors.New("empty_snapshot")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.regions = make(map[string]*Region, len(snap.Regions))
	s.regionOrder = s.regionOrder[:0]
	for _, r := range snap.Regions {
		if r == nil || r.ID == "" {
			continue
		}
		copy := *r
		s.regions[copy.ID] = &copy
		s.regionOrder = append(s.regionOrder, copy.ID)
	}
	s.districts = make(map[string]*District, len(snap.Districts))
	s.districtOrder = s.districtOrder[:0]
	for _, d := range snap.Districts {
		if d == nil || d.ID == "" {
			continue
		}
		copy := *d
		s.districts[copy.ID] = &copy
		s.districtOrder = append(s.districtOrder, copy.ID)
	}
	s.landmarks = make(map[string]*Landmark, len(snap.Landmarks))
	s.landmarkOrder = s.landmarkOrder[:0]
	for _, l := range snap.Landmarks {
		if l == nil || l.ID == "" {
			continue
		}
		copy := *l
		s.landmarks[copy.ID] = &copy
		s.landmarkOrder = append(s.landmarkOrder, copy.ID)
	}
	s.poles = make(map[string]*Pole, len(snap.Poles))
	s.poleOrder = s.poleOrder[:0]
	for _, p := range snap.Poles {
		if p == nil || p.ID == "" {
			continue
		}
		copy := *p
		s.poles[copy.ID] = &copy
		s.poleOrder = append(s.poleOrder, copy.ID)
	}
	s.junctionBoxes = make(map[string]*JunctionBox, len(snap.JunctionBoxes))
	s.junctionBoxOrder = s.junctionBoxOrder[:0]
	for _, jb := range snap.JunctionBoxes {
		if jb == nil || jb.ID == "" {
			continue
		}
		copy := *jb
		s.junctionBoxes[copy.ID] = &copy
		s.junctionBoxOrder = append(s.junctionBoxOrder, copy.ID)
	}
	s.components = make(map[string]*Component, len(snap.Components))
	s.componentOrder = s.componentOrder[:0]
	for _, c := range snap.Components {
		if c == nil || c.ID == "" {
			continue
		}
		clone := c.Clone()
		s.components[clone.ID] = clone
		s.componentOrder = append(s.componentOrder, clone.ID)
	}
	s.credentials = make(map[string]*Credential, len(snap.Credentials))
	s.credentialOrder = s.credentialOrder[:0]
	for _, cr := range snap.Credentials {
		if cr == nil || cr.ID == "" {
			continue
		}
		copy := *cr
		s.credentials[copy.ID] = &copy
		s.credentialOrder = append(s.credentialOrder, copy.ID)
	}

	s.workbooks = make(map[string]*Workbook, len(snap.Workbooks))
	s.workbookOrder = s.workbookOrder[:0]
	for _, wb := range snap.Workbooks {
		if wb == nil || wb.ID == "" {
			continue
		}
		copy := *wb
		s.workbooks[copy.ID] = &copy
		s.workbookOrder = append(s.workbookOrder, copy.ID)
	}
	s.sheets = make(map[string]*Sheet, len(snap.Sheets))
	s.sheetsOfBook = make(map[string][]string)
	for _, sheet := range snap.Sheets {
		if sheet == nil || sheet.ID == "" {
			continue
		}
		copy := *sheet
		copy.Columns = append([]string{}, sheet.Columns...)
		s.sheets[copy.ID] = &copy
		s.sheetsOfBook[copy.WorkbookID] = append(s.sheetsOfBook[copy.WorkbookID], copy.ID)
	}
	s.rows = make(map[string]*Row, len(snap.Rows))
	s.rowsOfSheet = make(map[string][]string)
	for _, row := range snap.Rows {
		if row == nil || row.ID == "" {
			continue
		}
		clone := row.Clone()
		s.rows[clone.ID] = clone
		s.rowsOfSheet[clone.SheetID] = append(s.rowsOfSheet[clone.SheetID], clone.ID)
	}
	for sheetID := range s.rowsOfSheet {
		ids := s.rowsOfSheet[sheetID]
		sort.Slice(ids, func(i, j int) bool {
			return s.rows[ids[i]].RowIndex < s.rows[ids[j]].RowIndex
		})
	}

	s.audits = make([]*AuditLogEntry, 0, len(snap.Audits))
	for _, entry := range snap.Audits {
		if entry == nil {
			continue
		}
		copy := *entry
		s.audits = append(s.audits, &copy)
	}

	s.users = make(map[string]*User, len(snap.Users))
	s.userByName = make(map[string]*User, len(snap.Users))
	s.userOrder = s.userOrder[:0]
	for _, su := range snap.Users {
		if su == nil || su.ID == "" {
			continue
		}
		user := &User{
			ID:           su.ID,
			Username:     su.Username,
			Admin:        su.Admin,
			PasswordHash: su.PasswordHash,
			CreatedAt:    su.CreatedAt,
			UpdatedAt:    su.UpdatedAt,
		}
		s.users[user.ID] = user
		s.userByName[normalizeUsername(user.Username)] = user
		s.userOrder = append(s.userOrder, user.ID)
	}
	return s.ensureDefaultAdminLocked()
}

// SaveTo persists a snapshot.json file atomically in dir.
func (s *InventoryStore) SaveTo(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("empty_dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(s.ExportSnapshot())
	if err != nil {
		return err
	}
	tmp := filepath.Join(dir, "snapshot.tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, "snapshot.json"))
}

// LoadFrom restores store state from snapshot.json in dir when present.
func (s *InventoryStore) LoadFrom(dir string) error {
	data, err := os.ReadFile(filepath.Join(dir, "snapshot.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	return s.ImportSnapshot(&snap)
}

// LoadFromDatabase restores state from the latest snapshot row and reports whether one was found.
func (s *InventoryStore) LoadFromDatabase(db *sql.DB) (bool, error) {
	if db == nil {
		return false, errors.New("database_not_configured")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ensureSnapshotTable(ctx, db); err != nil {
		return false, err
	}
	var payload []byte
	err := db.QueryRowContext(ctx, `SELECT payload FROM snapshots ORDER BY created_at DESC, id DESC LIMIT 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return false, err
	}
	return true, s.ImportSnapshot(&snap)
}

// SaveToDatabaseWithRetention writes a snapshot row and prunes older ones.
func (s *InventoryStore) SaveToDatabaseWithRetention(db *sql.DB, retention int) error {
	if db == nil {
		return errors.New("database_not_configured")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ensureSnapshotTable(ctx, db); err != nil {
		return err
	}
	payload, err := json.Marshal(s.ExportSnapshot())
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO snapshots (payload) VALUES ($1)`, payload); err != nil {
		_ = tx.Rollback()
		return err
	}
	if retention > 0 {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM snapshots
			WHERE id NOT IN (
				SELECT id FROM snapshots ORDER BY created_at DESC, id DESC LIMIT $1
			)`, retention); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func ensureSnapshotTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS snapshots (
			id BIGSERIAL PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			payload JSONB NOT NULL
		)
	`)
	return err
}

func (s *InventoryStore) ensureDefaultAdmin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureDefaultAdminLocked()
}

func (s *InventoryStore) ensureDefaultAdminLocked() error {
	normalized := normalizeUsername(defaultAdminUsername)
	if _, exists := s.userByName[normalized]; exists {
		return nil
	}
	password := strings.TrimSpace(os.Getenv(adminPasswordEnv))
	if password == "" {
		password = "change-me-" + GenerateID("pw")
	}
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	user := &User{
		ID:           GenerateID("user"),
		Username:     defaultAdminUsername,
		Admin:        true,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[user.ID] = user
	s.userByName[normalized] = user
	s.userOrder = append(s.userOrder, user.ID)
	s.recordLocked("system", "user_seed", "users", user.ID, "")
	return nil
}

// CreateUser registers a new operator account.
func (s *InventoryStore) CreateUser(username, password string, admin bool, actor string) (*User, error) {
	username = strings.TrimSpace(username)
	normalized := normalizeUsername(username)
	if normalized == "" {
		return nil, ErrUsernameInvalid
	}
	if len(password) < 10 {
		return nil, ErrPasswordTooShort
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.userByName[normalized]; exists {
		return nil, ErrUserExists
	}
	user := &User{
		ID:           GenerateID("user"),
		Username:     username,
		Admin:        admin,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[user.ID] = user
	s.userByName[normalized] = user
	s.userOrder = append(s.userOrder, user.ID)
	s.recordLocked(actor, "user_create", "users", user.ID, username)
	copy := *user
	return &copy, nil
}

// AuthenticateUser validates a username/password combination.
func (s *InventoryStore) AuthenticateUser(username, password string) (*User, error) {
	normalized := normalizeUsername(username)
	if normalized == "" {
		return nil, ErrInvalidCredentials
	}
	s.mu.RLock()
	user, ok := s.userByName[normalized]
	s.mu.RUnlock()
	if !ok || !verifyPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	copy := *user
	return &copy, nil
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, passwordSaltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	derived := pbkdf2Key([]byte(password), salt, passwordIterations, passwordKeyBytes)
	return fmt.Sprintf(
		"%d:%s:%s",
		passwordIterations,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(derived),
	), nil
}

func verifyPassword(hash, password string) bool {
	parts := strings.Split(hash, ":")
	if len(parts) != 3 {
		return false
	}
	iterations, err := strconv.Atoi(parts[0])
	if err != nil || iterations <= 0 {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}
	digest, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil {
		return false
	}
	derived := pbkdf2Key([]byte(password), salt, iterations, len(digest))
	return subtle.ConstantTimeCompare(derived, digest) == 1
}

func pbkdf2Key(password, salt []byte, iterations, length int) []byte {
	if iterations <= 0 || length <= 0 {
		return nil
	}
	hashLen := sha256.Size
	blocks := (length + hashLen - 1) / hashLen
	derived := make([]byte, blocks*hashLen)
	mac := hmac.New(sha256.New, password)
	var counter [4]byte
	for i := 1; i <= blocks; i++ {
		mac.Reset()
		mac.Write(salt)
		counter[0] = byte(i >> 24)
		counter[1] = byte(i >> 16)
		counter[2] = byte(i >> 8)
		counter[3] = byte(i)
		mac.Write(counter[:])
		u := mac.Sum(nil)
		block := make([]byte, len(u))
		copy(block, u)
		for j := 1; j < iterations; j++ {
			mac.Reset()
			mac.Write(u)
			u = mac.Sum(nil)
			for k := 0; k < len(block); k++ {
				block[k] ^= u[k]
			}
		}
		offset := (i - 1) * hashLen
		copy(derived[offset:], block)
	}
	return derived[:length]
}
