package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/bloom/internal/app"
	"github.com/ayusman/bloom/internal/garden"
)

// Garden is the part of the loop the garden and settings endpoints use.
// *app.Loop implements it.
type Garden interface {
	View() app.GardenView
	Clear() int
	Settings() garden.Settings
	UpdateSettings(fn func(*garden.Settings)) garden.Settings
}

// GardenHandler serves the live garden at /api/garden. DELETE clears it.
type GardenHandler struct {
	garden Garden
}

// NewGardenHandler creates a GardenHandler.
func NewGardenHandler(g Garden) *GardenHandler {
	return &GardenHandler{garden: g}
}

func (h *GardenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.garden.View())
	case http.MethodDelete:
		n := h.garden.Clear()
		writeJSON(w, http.StatusOK, map[string]int{"cleared": n})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// SettingsHandler serves the style settings at /api/settings. PUT merges
// the request body over the current settings; out-of-range values are
// clamped and the applied settings are returned. A new theme or species
// is applied to the existing flowers too.
type SettingsHandler struct {
	garden Garden
}

// NewSettingsHandler creates a SettingsHandler.
func NewSettingsHandler(g Garden) *SettingsHandler {
	return &SettingsHandler{garden: g}
}

func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.garden.Settings())
	case http.MethodPut:
		s := h.garden.Settings()
		if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		applied := h.garden.UpdateSettings(func(cur *garden.Settings) { *cur = s })
		writeJSON(w, http.StatusOK, applied)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
