package models

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestAuditChainLinksEntries(t *testing.T) {
	store := NewInventoryStore()
	store.Record("tester", "ingest", "workbooks", "wb-1", "survey.xlsx")
	store.Record("tester", "row_patch", "rows", "row-1", "Status")

	entries := store.ListAudits("", 0, 0)
	if len(entries) < 3 { // includes the seeded admin entry
		t.Fatalf("expected at least 3 audit entries, got %d", len(entries))
	}
	// Newest first: entries[0] chains onto entries[1].
	if entries[0].PrevHash != entries[1].Hash {
		t.Fatalf("expected chained hashes, got prev=%q want=%q", entries[0].PrevHash, entries[1].Hash)
	}
	if err := store.VerifyAuditChain(); err != nil {
		t.Fatalf("verify chain: %v", err)
	}
}

func TestListAuditsFiltersByUsername(t *testing.T) {
	store := NewInventoryStore()
	store.Record("alice", "ingest", "workbooks", "wb-1", "")
	store.Record("bob", "ingest", "workbooks", "wb-2", "")

	entries := store.ListAudits("alice", 0, 0)
	if len(entries) != 1 || entries[0].Username != "alice" {
		t.Fatalf("unexpected filtered entries: %+v", entries)
	}
}

func TestUserLifecycle(t *testing.T) {
	store := NewInventoryStore()

	if _, err := store.CreateUser("operator", "short", false, "admin"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected password length check, got %v", err)
	}
	user, err := store.CreateUser("operator", "long-enough-secret", false, "admin")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := store.CreateUser(" Operator ", "long-enough-secret", false, "admin"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected duplicate username rejection, got %v", err)
	}

	authed, err := store.AuthenticateUser("operator", "long-enough-secret")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if authed.ID != user.ID {
		t.Fatalf("expected same user back")
	}
	if _, err := store.AuthenticateUser("operator", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := NewInventoryStore()
	if _, _, err := store.UpsertComponent(ComponentUpsert{
		Code: "CAM-1", Type: "Camera", Attributes: map[string]string{"model": "AXIS"},
	}); err != nil {
		t.Fatalf("seed component: %v", err)
	}
	if _, _, err := store.UpsertCredential(CredentialUpsert{ComponentCode: "CAM-1", Username: "admin"}); err != nil {
		t.Fatalf("seed credential: %v", err)
	}
	seedWorkbook(t, store)
	if _, err := store.CreateUser("operator", "long-enough-secret", true, "admin"); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	dir := filepath.Join(t.TempDir(), "snapshots")
	if err := store.SaveTo(dir); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}

	restored := NewInventoryStore()
	if err := restored.LoadFrom(dir); err != nil {
		t.Fatalf("load snapshot: %v", err)
	}

	counts := restored.Counts()
	if counts[KindComponent] != 1 || counts[KindCredential] != 1 {
		t.Fatalf("unexpected restored counts: %v", counts)
	}
	if _, total := restored.ListWorkbooks(0, 0); total != 1 {
		t.Fatalf("expected workbook restored")
	}
	if _, err := restored.AuthenticateUser("operator", "long-enough-secret"); err != nil {
		t.Fatalf("expected password hash to survive the round trip: %v", err)
	}
	if err := restored.VerifyAuditChain(); err != nil {
		t.Fatalf("restored audit chain broken: %v", err)
	}

	// Loading from a directory with no snapshot is a no-op.
	fresh := NewInventoryStore()
	if err := fresh.LoadFrom(filepath.Join(t.TempDir(), "missing")); err != nil {
		t.Fatalf("expected missing snapshot to be ignored, got %v", err)
	}
}

func TestPatchEntityValidatesFields(t *testing.T) {
	store := NewInventoryStore()
	comp, _, err := store.UpsertComponent(ComponentUpsert{Code: "CAM-1", Type: "Camera"})
	if err != nil {
		t.Fatalf("seed component: %v", err)
	}

	if _, err := store.PatchEntity(KindComponent, comp.ID, map[string]string{"ghost_field": "x"}, "tester"); !errors.Is(err, ErrUnknownColumn) {
		t.Fatalf("expected unknown column, got %v", err)
	}

	patched, err := store.PatchEntity(KindComponent, comp.ID, map[string]string{
		"component_type": "PTZ Camera",
		"lat":            "32.73",
		"attr.model":     "AXIS Q6135",
	}, "tester")
	if err != nil {
		t.Fatalf("patch entity: %v", err)
	}
	got := patched.(*ComponentWithCredential)
	if got.Type != "PTZ Camera" || got.Lat == nil || *got.Lat != 32.73 {
		t.Fatalf("unexpected patched component: %+v", got)
	}
	if got.Attributes["model"] != "AXIS Q6135" {
		t.Fatalf("attribute patch not applied: %v", got.Attributes)
	}

	if _, err := store.PatchEntity(KindComponent, "missing", map[string]string{"component_type": "x"}, "tester"); !errors.Is(err, ErrEntityNotFound) {
		t.Fatalf("expected entity not found, got %v", err)
	}
	if _, err := store.PatchEntity("gadgets", comp.ID, map[string]string{"x": "y"}, "tester"); !errors.Is(err, ErrInvalidEntityKind) {
		t.Fatalf("expected invalid kind, got %v", err)
	}
}
