package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"zonecore/internal/blob"
	"zonecore/internal/core"
	"zonecore/internal/infra/persistence/memory"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	store := core.NewStore(nil, zerolog.Nop())
	svc := core.NewService(store, memory.NewStore(), zerolog.Nop(), core.WithBlobStore(blob.NewMemoryStore()))
	return NewHandler(svc, zerolog.Nop())
}

func doJSON(t *testing.T, h *Handler, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return out
}

func TestListRegions(t *testing.T) {
	h := newTestHandler(t)
	rr := doJSON(t, h, http.MethodGet, "/api/v1/workspaces/ws/regions", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	regions, ok := body["regions"].([]any)
	if !ok || len(regions) != 11 {
		t.Fatalf("regions = %v", body["regions"])
	}
}

func TestAddRegion(t *testing.T) {
	h := newTestHandler(t)
	rr := doJSON(t, h, http.MethodPost, "/api/v1/workspaces/ws/regions", "u", map[string]any{
		"name":  "Farming",
		"color": map[string]float64{"g": 0.8, "a": 0.35},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	region := decodeBody(t, rr)["region"].(map[string]any)
	if region["name"] != "Farming" || region["id"].(float64) != 11 {
		t.Fatalf("region = %v", region)
	}
}

func TestAddRegionRequiresUser(t *testing.T) {
	h := newTestHandler(t)
	rr := doJSON(t, h, http.MethodPost, "/api/v1/workspaces/ws/regions", "", map[string]any{"name": "X"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestEditRegion(t *testing.T) {
	h := newTestHandler(t)
	rr := doJSON(t, h, http.MethodPatch, "/api/v1/workspaces/ws/regions/1", "u", map[string]any{"name": "Quarry"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["changed"] != true {
		t.Fatalf("body = %v", body)
	}

	rr = doJSON(t, h, http.MethodGet, "/api/v1/workspaces/ws/regions/1", "", nil)
	if got := decodeBody(t, rr)["region"].(map[string]any)["name"]; got != "Quarry" {
		t.Fatalf("name = %v", got)
	}
}

func TestEditReservedRegionForbidden(t *testing.T) {
	h := newTestHandler(t)
	rr := doJSON(t, h, http.MethodPatch, "/api/v1/workspaces/ws/regions/0", "u", map[string]any{"name": "Nope"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
}

func TestRegionNotFound(t *testing.T) {
	h := newTestHandler(t)
	rr := doJSON(t, h, http.MethodGet, "/api/v1/workspaces/ws/regions/999", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestDeleteRegionWithReplacement(t *testing.T) {
	h := newTestHandler(t)
	rr := doJSON(t, h, http.MethodPost, "/api/v1/workspaces/ws/fill", "u", map[string]any{
		"surface": "default",
		"region":  2,
		"rect":    map[string]float64{"MaxX": 31, "MaxY": 31},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("fill status = %d, body %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, h, http.MethodDelete, "/api/v1/workspaces/ws/regions/2?replacement=3", "u", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, h, http.MethodGet, "/api/v1/workspaces/ws/cell?x=0&y=0", "", nil)
	if got := decodeBody(t, rr)["region"].(float64); got != 3 {
		t.Fatalf("cell region = %g, want 3", got)
	}
}

func TestMoveRegion(t *testing.T) {
	h := newTestHandler(t)
	rr := doJSON(t, h, http.MethodPost, "/api/v1/workspaces/ws/regions/1/move", "u", map[string]any{"delta": 1})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if decodeBody(t, rr)["moved"] != true {
		t.Fatal("move not applied")
	}
}

func TestFillAndUndoRedo(t *testing.T) {
	h := newTestHandler(t)
	rr := doJSON(t, h, http.MethodPost, "/api/v1/workspaces/ws/fill", "u", map[string]any{
		"surface": "default",
		"region":  1,
		"rect":    map[string]float64{"MaxX": 63, "MaxY": 31},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("fill status = %d, body %s", rr.Code, rr.Body.String())
	}
	if got := decodeBody(t, rr)["cells_changed"].(float64); got != 2 {
		t.Fatalf("cells_changed = %g, want 2", got)
	}

	rr = doJSON(t, h, http.MethodPost, "/api/v1/undo", "u", nil)
	body := decodeBody(t, rr)
	if body["applied"] != true || !strings.HasPrefix(body["description"].(string), "Paint") {
		t.Fatalf("undo body = %v", body)
	}
	rr = doJSON(t, h, http.MethodGet, "/api/v1/workspaces/ws/cell?x=0&y=0", "", nil)
	if got := decodeBody(t, rr)["region"].(float64); got != 0 {
		t.Fatalf("cell region after undo = %g, want 0", got)
	}

	rr = doJSON(t, h, http.MethodPost, "/api/v1/redo", "u", nil)
	if decodeBody(t, rr)["applied"] != true {
		t.Fatal("redo not applied")
	}
	rr = doJSON(t, h, http.MethodGet, "/api/v1/workspaces/ws/cell?x=1&y=0", "", nil)
	if got := decodeBody(t, rr)["region"].(float64); got != 1 {
		t.Fatalf("cell region after redo = %g, want 1", got)
	}
}

func TestUndoEmptyHistory(t *testing.T) {
	h := newTestHandler(t)
	rr := doJSON(t, h, http.MethodPost, "/api/v1/undo", "u", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if decodeBody(t, rr)["applied"] != false {
		t.Fatal("empty undo reported applied")
	}
}

func TestGridGetAndPut(t *testing.T) {
	h := newTestHandler(t)
	rr := doJSON(t, h, http.MethodGet, "/api/v1/workspaces/ws/grid", "", nil)
	grid := decodeBody(t, rr)["grid"].(map[string]any)
	if grid["width"].(float64) != 32 {
		t.Fatalf("default grid = %v", grid)
	}

	rr = doJSON(t, h, http.MethodPut, "/api/v1/workspaces/ws/grid?surface=default", "u", map[string]any{
		"grid": map[string]float64{"width": 16, "height": 16},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("put status = %d, body %s", rr.Code, rr.Body.String())
	}
	rr = doJSON(t, h, http.MethodGet, "/api/v1/workspaces/ws/grid?surface=default", "", nil)
	if got := decodeBody(t, rr)["grid"].(map[string]any)["width"].(float64); got != 16 {
		t.Fatalf("width = %g, want 16", got)
	}
}

func TestGridRejectsInvalid(t *testing.T) {
	h := newTestHandler(t)
	rr := doJSON(t, h, http.MethodPut, "/api/v1/workspaces/ws/grid", "u", map[string]any{
		"grid": map[string]float64{"width": 0, "height": 16},
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestCellLookupByWorldCoordinates(t *testing.T) {
	h := newTestHandler(t)
	rr := doJSON(t, h, http.MethodPost, "/api/v1/workspaces/ws/fill", "u", map[string]any{
		"region": 4,
		"rect":   map[string]float64{"MinX": -32, "MinY": -32, "MaxX": -1, "MaxY": -1},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("fill status = %d, body %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, h, http.MethodGet, "/api/v1/workspaces/ws/cell?world_x=-5&world_y=-5", "", nil)
	body := decodeBody(t, rr)
	cell := body["cell"].(map[string]any)
	if cell["x"].(float64) != -1 || cell["y"].(float64) != -1 {
		t.Fatalf("cell = %v", cell)
	}
	if body["region"].(float64) != 4 {
		t.Fatalf("region = %v, want 4", body["region"])
	}
}

func TestSessionRoutes(t *testing.T) {
	h := newTestHandler(t)
	rr := doJSON(t, h, http.MethodGet, "/api/v1/session", "u", nil)
	sess := decodeBody(t, rr)["session"].(map[string]any)
	if sess["selected_tool"] != "paint" || sess["visibility"].(float64) != 2 {
		t.Fatalf("defaults = %v", sess)
	}

	rr = doJSON(t, h, http.MethodPost, "/api/v1/session/selection", "u", map[string]any{"workspace": "ws", "region": 5})
	if rr.Code != http.StatusOK {
		t.Fatalf("selection status = %d, body %s", rr.Code, rr.Body.String())
	}
	rr = doJSON(t, h, http.MethodPost, "/api/v1/session/tool", "u", map[string]any{"tool": "erase"})
	if rr.Code != http.StatusOK {
		t.Fatalf("tool status = %d", rr.Code)
	}
	rr = doJSON(t, h, http.MethodPost, "/api/v1/session/visibility", "u", map[string]any{"level": 3})
	if rr.Code != http.StatusOK {
		t.Fatalf("visibility status = %d", rr.Code)
	}

	rr = doJSON(t, h, http.MethodGet, "/api/v1/session", "u", nil)
	sess = decodeBody(t, rr)["session"].(map[string]any)
	if sess["selected_region"].(float64) != 5 || sess["selected_tool"] != "erase" || sess["visibility"].(float64) != 3 {
		t.Fatalf("session = %v", sess)
	}
}

func TestSessionRejectsBadValues(t *testing.T) {
	h := newTestHandler(t)
	rr := doJSON(t, h, http.MethodPost, "/api/v1/session/tool", "u", map[string]any{"tool": "lasso"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("tool status = %d, want 400", rr.Code)
	}
	rr = doJSON(t, h, http.MethodPost, "/api/v1/session/visibility", "u", map[string]any{"level": 9})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("visibility status = %d, want 400", rr.Code)
	}
}

func TestArchiveExportAndRestore(t *testing.T) {
	h := newTestHandler(t)
	rr := doJSON(t, h, http.MethodPost, "/api/v1/workspaces/ws/fill", "u", map[string]any{
		"region": 1,
		"rect":   map[string]float64{"MaxX": 1, "MaxY": 1},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("fill status = %d", rr.Code)
	}

	rr = doJSON(t, h, http.MethodPost, "/api/v1/archives", "u", nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("export status = %d, body %s", rr.Code, rr.Body.String())
	}
	key := decodeBody(t, rr)["key"].(string)

	rr = doJSON(t, h, http.MethodPost, "/api/v1/admin/reset", "u", map[string]any{"all": true})
	if rr.Code != http.StatusOK {
		t.Fatalf("reset status = %d", rr.Code)
	}
	rr = doJSON(t, h, http.MethodPost, "/api/v1/archives/restore", "u", map[string]any{"key": key})
	if rr.Code != http.StatusOK {
		t.Fatalf("restore status = %d, body %s", rr.Code, rr.Body.String())
	}
	rr = doJSON(t, h, http.MethodGet, "/api/v1/workspaces/ws/cell?x=0&y=0", "", nil)
	if got := decodeBody(t, rr)["region"].(float64); got != 1 {
		t.Fatalf("cell region after restore = %g, want 1", got)
	}
}

func TestAdminResetValidation(t *testing.T) {
	h := newTestHandler(t)
	rr := doJSON(t, h, http.MethodPost, "/api/v1/admin/reset", "u", map[string]any{})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestHandler(t)
	rr := doJSON(t, h, http.MethodDelete, "/api/v1/workspaces/ws/regions", "u", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rr.Code)
	}
	rr = doJSON(t, h, http.MethodGet, "/api/v1/undo", "u", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("undo GET status = %d, want 405", rr.Code)
	}
}

func TestUnknownRouteNotFound(t *testing.T) {
	h := newTestHandler(t)
	rr := doJSON(t, h, http.MethodGet, "/api/v1/nope", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}
