package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"netinv/internal/auth"
	"netinv/internal/models"
	"netinv/internal/services"
)

func newTestServer(t *testing.T) (*Server, *gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := models.NewInventoryStore()
	if _, err := store.CreateUser("operator", "operator-pass-1", false, "test"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	sessions := auth.NewManager(time.Hour)
	srv := &Server{
		Store:    store,
		Sessions: sessions,
		Ingest:   services.NewIngestService(store, nil),
	}
	router := gin.New()
	srv.RegisterRoutes(router)

	session, err := sessions.Issue("operator", false)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	return srv, router, session.Token
}

func doJSON(router *gin.Engine, method, path, token string, payload any) *httptest.ResponseRecorder {
	var body *bytes.Buffer
	if payload != nil {
		raw, _ := json.Marshal(payload)
		body = bytes.NewBuffer(raw)
	} else {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v: %s", err, w.Body.String())
	}
	return out
}

func buildUploadFixture(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", "Enum-1"); err != nil {
		t.Fatalf("rename sheet: %v", err)
	}
	rows := [][]any{
		{"Sr.", "Component ID", "Component Type", "Region", "District", "Landmark ID", "Landmark", "Pole Location"},
		{1, "CAM-001", "Fixed Camera", "Jammu", "Samba", "LM-01", "Bus Stand", "P-01"},
		{2, "SW-001", "Switch", "Jammu", "Samba", "LM-01", "Bus Stand", "P-01"},
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow("Enum-1", cell, &rows[i]); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func uploadRequest(t *testing.T, path, token, filename string, payload []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestLoginFlow(t *testing.T) {
	_, router, _ := newTestServer(t)

	w := doJSON(router, http.MethodPost, "/auth/login", "", gin.H{"username": "operator", "password": "wrong-password"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", w.Code)
	}

	w = doJSON(router, http.MethodPost, "/auth/login", "", gin.H{"username": "operator", "password": "operator-pass-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("expected a session token in %v", body)
	}

	w = doJSON(router, http.MethodGet, "/api/v1/regions", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected token to grant access, got %d", w.Code)
	}
}

func TestRequireSessionGuardsAPI(t *testing.T) {
	_, router, _ := newTestServer(t)

	w := doJSON(router, http.MethodGet, "/api/v1/workbooks", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a session, got %d", w.Code)
	}
	if body := decodeBody(t, w); body["error"] != "missing_session" {
		t.Fatalf("unexpected error code: %v", body)
	}

	w = doJSON(router, http.MethodGet, "/api/v1/workbooks", "garbage-token", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a bogus token, got %d", w.Code)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	_, router, token := newTestServer(t)

	w := doJSON(router, http.MethodPost, "/auth/logout", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("logout failed: %d", w.Code)
	}
	w = doJSON(router, http.MethodGet, "/api/v1/regions", token, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected revoked token to be rejected, got %d", w.Code)
	}
}

func TestIngestUpload(t *testing.T) {
	srv, router, token := newTestServer(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "/api/v1/ingest", token, "design.xlsx", buildUploadFixture(t)))
	if w.Code != http.StatusOK {
		t.Fatalf("ingest failed: %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["workbook_id"] == "" {
		t.Fatalf("expected a workbook id in %v", body)
	}
	if body["deduped"] != false {
		t.Fatalf("first upload must not dedup: %v", body)
	}

	if got := srv.Store.Counts()[models.KindComponent]; got != 2 {
		t.Fatalf("expected 2 components after ingest, got %d", got)
	}

	w = doJSON(router, http.MethodGet, "/api/v1/components?q=cam", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list components failed: %d", w.Code)
	}
	if body := decodeBody(t, w); body["total"] != float64(1) {
		t.Fatalf("expected 1 matching component, got %v", body["total"])
	}

	w = doJSON(router, http.MethodGet, "/api/v1/search?q=bus+stand", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search failed: %d", w.Code)
	}
}

func TestIngestRejectsBadUploads(t *testing.T) {
	_, router, token := newTestServer(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "/api/v1/ingest", token, "notes.txt", []byte("plain text")))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong extension, got %d", w.Code)
	}
	if body := decodeBody(t, w); body["error"] != "unsupported_file" {
		t.Fatalf("unexpected error code: %v", body)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, uploadRequest(t, "/api/v1/ingest", token, "broken.xlsx", []byte("not a workbook")))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unreadable payload, got %d", w.Code)
	}
	if body := decodeBody(t, w); body["error"] != "unreadable_file" {
		t.Fatalf("unexpected error code: %v", body)
	}
}

func TestRowPatchEndpoints(t *testing.T) {
	srv, router, token := newTestServer(t)
	wb, _, err := srv.Store.WriteWorkbook(models.WorkbookInput{
		Filename: "design.xlsx",
		SHA256:   "f00d",
		Sheets: []models.SheetInput{{
			Name:      "Enum-1",
			HeaderRow: 1,
			MaxRow:    3,
			MaxCol:    2,
			Columns:   []string{"Component ID", "Status"},
			Rows: []models.RowInput{
				{RowIndex: 1, Data: map[string]string{"Component ID": "Component ID", "Status": "Status"}},
				{RowIndex: 2, Data: map[string]string{"Component ID": "CAM-001", "Status": "Up"}},
				{RowIndex: 3, Data: map[string]string{"Component ID": "CAM-002"}},
			},
		}},
	}, "test")
	if err != nil {
		t.Fatalf("seed workbook: %v", err)
	}
	sheets, err := srv.Store.ListSheets(wb.ID)
	if err != nil {
		t.Fatalf("list sheets: %v", err)
	}
	rows, _, err := srv.Store.ListRows(sheets[0].ID, "", "", "", 10, 0)
	if err != nil {
		t.Fatalf("list rows: %v", err)
	}

	w := doJSON(router, http.MethodPatch, "/api/v1/rows/"+rows[1].ID, token, gin.H{"Status": "Down"})
	if w.Code != http.StatusOK {
		t.Fatalf("patch row failed: %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(router, http.MethodPatch, "/api/v1/rows/"+rows[1].ID, token, gin.H{"Ghost": "x"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown column, got %d", w.Code)
	}
	if body := decodeBody(t, w); body["error"] != "unknown_column" {
		t.Fatalf("unexpected error code: %v", body)
	}

	w = doJSON(router, http.MethodPost, "/api/v1/sheets/"+sheets[0].ID+"/rows/bulk", token, gin.H{
		"anchor_row": 2,
		"anchor_col": "Status",
		"text":       "Down\nUp\n",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("bulk patch failed: %d: %s", w.Code, w.Body.String())
	}
	if body := decodeBody(t, w); body["updated_cells"] != float64(2) {
		t.Fatalf("expected 2 updated cells, got %v", body)
	}

	w = doJSON(router, http.MethodPatch, "/api/v1/rows/missing-row", token, gin.H{"Status": "Down"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a missing row, got %d", w.Code)
	}
}

func TestEntityEndpoints(t *testing.T) {
	srv, router, token := newTestServer(t)
	component, _, err := srv.Store.UpsertComponent(models.ComponentUpsert{
		Code: "CAM-001", Type: "Camera", RegionName: "Jammu", DistrictName: "Samba",
	})
	if err != nil {
		t.Fatalf("seed component: %v", err)
	}

	w := doJSON(router, http.MethodGet, "/api/v1/components/"+component.ID, token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get component failed: %d", w.Code)
	}

	w = doJSON(router, http.MethodPatch, "/api/v1/components/"+component.ID, token, gin.H{"component_type": "PTZ Camera"})
	if w.Code != http.StatusOK {
		t.Fatalf("patch component failed: %d: %s", w.Code, w.Body.String())
	}
	if body := decodeBody(t, w); body["component_type"] != "PTZ Camera" {
		t.Fatalf("patch not applied: %v", body)
	}

	w = doJSON(router, http.MethodPatch, "/api/v1/components/"+component.ID, token, gin.H{"ghost_field": "x"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", w.Code)
	}

	w = doJSON(router, http.MethodGet, "/api/v1/components/missing-id", token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestAuditEndpoints(t *testing.T) {
	srv, router, token := newTestServer(t)
	srv.Store.Record("operator", "test_action", "components", "C-1", "")

	w := doJSON(router, http.MethodGet, "/api/v1/audit?username=operator", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("audit list failed: %d", w.Code)
	}
	body := decodeBody(t, w)
	items, ok := body["items"].([]any)
	if !ok || len(items) == 0 {
		t.Fatalf("expected audit entries, got %v", body)
	}

	w = doJSON(router, http.MethodGet, "/api/v1/audit/verify", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("audit verify failed: %d", w.Code)
	}
	if body := decodeBody(t, w); body["valid"] != true {
		t.Fatalf("expected a valid chain, got %v", body)
	}
}

func TestExportEndpoint(t *testing.T) {
	srv, router, token := newTestServer(t)
	if _, _, err := srv.Store.UpsertRegion("Jammu"); err != nil {
		t.Fatalf("seed region: %v", err)
	}

	w := doJSON(router, http.MethodGet, "/api/v1/export", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export failed: %d", w.Code)
	}
	if got := w.Header().Get("Content-Disposition"); !strings.Contains(got, "inventory.xlsx") {
		t.Fatalf("unexpected disposition: %q", got)
	}
	// xlsx payloads are zip archives
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("PK")) {
		t.Fatalf("expected a zip payload, got %q", w.Body.Bytes()[:4])
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, router, _ := newTestServer(t)
	w := doJSON(router, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health failed: %d", w.Code)
	}
	if body := decodeBody(t, w); body["status"] != "ok" {
		t.Fatalf("unexpected health payload: %v", body)
	}
}
