// Package httpapi exposes the zoning engine over a small JSON HTTP API.
//
// Callers identify themselves with the X-User-ID header; every mutating
// route is scoped to that user's command history and session.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"zonecore/internal/core"
	"zonecore/pkg/domain"
)

const userHeader = "X-User-ID"

// Handler provides HTTP access to the zoning engine.
type Handler struct {
	service *core.Service
	log     zerolog.Logger
}

// NewHandler constructs an engine HTTP handler.
func NewHandler(service *core.Service, log zerolog.Logger) *Handler {
	return &Handler{service: service, log: log.With().Str("component", "httpapi").Logger()}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeError(w, http.StatusInternalServerError, "engine not configured")
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case strings.HasPrefix(path, "/api/v1/workspaces/"):
		h.handleWorkspace(w, r, strings.TrimPrefix(path, "/api/v1/workspaces/"))
	case path == "/api/v1/undo":
		h.handleHistory(w, r, true)
	case path == "/api/v1/redo":
		h.handleHistory(w, r, false)
	case strings.HasPrefix(path, "/api/v1/session"):
		h.handleSession(w, r, strings.TrimPrefix(path, "/api/v1/session"))
	case strings.HasPrefix(path, "/api/v1/archives"):
		h.handleArchives(w, r, strings.TrimPrefix(path, "/api/v1/archives"))
	case path == "/api/v1/admin/reset":
		h.handleReset(w, r)
	default:
		http.NotFound(w, r)
	}
}

func userID(r *http.Request) string {
	if id := r.Header.Get(userHeader); id != "" {
		return id
	}
	return r.URL.Query().Get("user")
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := userID(r)
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing "+userHeader+" header")
		return "", false
	}
	return id, true
}

// surfaceOf defaults to the workspace's primary drawing surface.
func surfaceOf(r *http.Request) string {
	if s := r.URL.Query().Get("surface"); s != "" {
		return s
	}
	return "default"
}

func (h *Handler) handleWorkspace(w http.ResponseWriter, r *http.Request, remainder string) {
	segments := strings.Split(remainder, "/")
	workspace := segments[0]
	if workspace == "" {
		http.NotFound(w, r)
		return
	}
	rest := segments[1:]

	switch {
	case len(rest) == 1 && rest[0] == "regions":
		h.handleRegions(w, r, workspace)
	case len(rest) >= 2 && rest[0] == "regions":
		h.handleRegion(w, r, workspace, rest[1:])
	case len(rest) == 1 && rest[0] == "fill":
		h.handleFill(w, r, workspace)
	case len(rest) == 1 && rest[0] == "grid":
		h.handleGrid(w, r, workspace)
	case len(rest) == 1 && rest[0] == "cell":
		h.handleCell(w, r, workspace)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleRegions(w http.ResponseWriter, r *http.Request, workspace string) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"regions": h.service.GetRegions(workspace)})
	case http.MethodPost:
		user, ok := requireUser(w, r)
		if !ok {
			return
		}
		var req struct {
			Name  string       `json:"name"`
			Color domain.Color `json:"color"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		region, err := h.service.AddRegion(r.Context(), user, workspace, req.Name, req.Color)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"region": region})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) handleRegion(w http.ResponseWriter, r *http.Request, workspace string, rest []string) {
	id, err := strconv.Atoi(rest[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid region id")
		return
	}
	regionID := domain.RegionID(id)

	if len(rest) == 2 && rest[1] == "move" {
		h.handleRegionMove(w, r, workspace, regionID)
		return
	}
	if len(rest) != 1 {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		region, ok := h.service.GetRegion(workspace, regionID)
		if !ok {
			writeError(w, http.StatusNotFound, "region not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"region": region})
	case http.MethodPatch:
		user, ok := requireUser(w, r)
		if !ok {
			return
		}
		var req struct {
			Name  *string       `json:"name"`
			Color *domain.Color `json:"color"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		region, changed, err := h.service.EditRegion(r.Context(), user, workspace, regionID, req.Name, req.Color)
		if err != nil {
			writeRegionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"region": region, "changed": changed})
	case http.MethodDelete:
		user, ok := requireUser(w, r)
		if !ok {
			return
		}
		replacement := domain.EmptyRegionID
		if raw := r.URL.Query().Get("replacement"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid replacement id")
				return
			}
			replacement = domain.RegionID(n)
		}
		if err := h.service.DeleteRegion(r.Context(), user, workspace, regionID, replacement); err != nil {
			writeRegionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": regionID})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) handleRegionMove(w http.ResponseWriter, r *http.Request, workspace string, id domain.RegionID) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Delta int `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	moved, err := h.service.MoveRegion(r.Context(), user, workspace, id, req.Delta)
	if err != nil {
		writeRegionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"moved": moved})
}

func (h *Handler) handleFill(w http.ResponseWriter, r *http.Request, workspace string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Surface string          `json:"surface"`
		Region  domain.RegionID `json:"region"`
		Rect    domain.Rect     `json:"rect"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Surface == "" {
		req.Surface = surfaceOf(r)
	}
	count, err := h.service.FillRectangle(r.Context(), user, workspace, req.Surface, req.Region, req.Rect)
	if err != nil {
		writeRegionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cells_changed": count})
}

func (h *Handler) handleGrid(w http.ResponseWriter, r *http.Request, workspace string) {
	surface := surfaceOf(r)
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"grid": h.service.GetGrid(workspace, surface)})
	case http.MethodPut:
		user, ok := requireUser(w, r)
		if !ok {
			return
		}
		var req struct {
			Grid      domain.GridDescriptor `json:"grid"`
			Reproject bool                  `json:"reproject"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		changed, err := h.service.SetGrid(r.Context(), user, workspace, surface, req.Grid, req.Reproject)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"changed": changed})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) handleCell(w http.ResponseWriter, r *http.Request, workspace string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	surface := surfaceOf(r)
	q := r.URL.Query()
	if q.Has("world_x") || q.Has("world_y") {
		wx, err1 := strconv.ParseFloat(q.Get("world_x"), 64)
		wy, err2 := strconv.ParseFloat(q.Get("world_y"), 64)
		if err1 != nil || err2 != nil {
			writeError(w, http.StatusBadRequest, "invalid world coordinates")
			return
		}
		cell := h.service.WorldToCell(workspace, surface, wx, wy)
		writeJSON(w, http.StatusOK, map[string]any{
			"cell":   cell,
			"region": h.service.CellAt(workspace, surface, cell),
		})
		return
	}
	x, err1 := strconv.Atoi(q.Get("x"))
	y, err2 := strconv.Atoi(q.Get("y"))
	if err1 != nil || err2 != nil {
		writeError(w, http.StatusBadRequest, "invalid cell coordinates")
		return
	}
	cell := domain.Cell{X: x, Y: y}
	writeJSON(w, http.StatusOK, map[string]any{
		"cell":   cell,
		"region": h.service.CellAt(workspace, surface, cell),
	})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request, undo bool) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var desc string
	var applied bool
	var err error
	if undo {
		desc, applied, err = h.service.Undo(r.Context(), user)
	} else {
		desc, applied, err = h.service.Redo(r.Context(), user)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"applied": applied, "description": desc})
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request, remainder string) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	switch remainder {
	case "":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"session": h.service.SessionInfo(user)})
	case "/selection":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req struct {
			Workspace string          `json:"workspace"`
			Region    domain.RegionID `json:"region"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := h.service.SetSelectedRegion(r.Context(), user, req.Workspace, req.Region); err != nil {
			writeRegionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"session": h.service.SessionInfo(user)})
	case "/tool":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req struct {
			Tool string `json:"tool"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := h.service.SetSelectedTool(r.Context(), user, req.Tool); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"session": h.service.SessionInfo(user)})
	case "/visibility":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req struct {
			Level int `json:"level"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := h.service.SetVisibility(r.Context(), user, req.Level); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"session": h.service.SessionInfo(user)})
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleArchives(w http.ResponseWriter, r *http.Request, remainder string) {
	switch {
	case remainder == "" && r.Method == http.MethodPost:
		key, err := h.service.ExportArchive(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"key": key})
	case remainder == "/restore" && r.Method == http.MethodPost:
		var req struct {
			Key string `json:"key"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := h.service.ImportArchive(r.Context(), req.Key); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"restored": req.Key})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		Workspace string `json:"workspace"`
		User      string `json:"user"`
		All       bool   `json:"all"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ctx := r.Context()
	switch {
	case req.All:
		if err := h.service.ResetAll(ctx); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	case req.Workspace != "":
		if err := h.service.ResetWorkspace(ctx, req.Workspace); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	case req.User != "":
		if err := h.service.ResetUser(ctx, req.User); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "nothing to reset")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func writeRegionError(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		return
	case errors.Is(err, domain.ErrRegionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrReservedRegion):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
