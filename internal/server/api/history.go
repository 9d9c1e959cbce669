package api

import (
	"errors"
	"net/http"

	"github.com/ayusman/bloom/internal/store"
)

// SnapshotHandler serves saved gardens at /api/snapshots and
// /api/snapshots/{id}.
type SnapshotHandler struct {
	store *store.Store
}

// NewSnapshotHandler creates a SnapshotHandler with the given store.
func NewSnapshotHandler(s *store.Store) *SnapshotHandler {
	return &SnapshotHandler{store: s}
}

type snapshotResponse struct {
	ID          string                 `json:"id"`
	Width       int                    `json:"width"`
	Height      int                    `json:"height"`
	Theme       string                 `json:"theme"`
	Species     string                 `json:"species"`
	FlowerCount int                    `json:"flower_count"`
	CreatedAt   string                 `json:"created_at"`
	Flowers     []store.SnapshotFlower `json:"flowers,omitempty"`
}

func toSnapshotResponse(s *store.Snapshot) snapshotResponse {
	return snapshotResponse{
		ID:          s.ID,
		Width:       s.Width,
		Height:      s.Height,
		Theme:       s.Theme,
		Species:     s.Species,
		FlowerCount: s.FlowerCount,
		CreatedAt:   formatTime(s.CreatedAt),
	}
}

func (h *SnapshotHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := itemID(r.URL.Path, "/api/snapshots")

	switch {
	case id == "" && r.Method == http.MethodGet:
		h.list(w, r)
	case id != "" && r.Method == http.MethodGet:
		h.get(w, id)
	case id != "" && r.Method == http.MethodDelete:
		h.delete(w, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SnapshotHandler) list(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.store.Snapshots().List(limitParam(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list snapshots")
		return
	}
	out := make([]snapshotResponse, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, toSnapshotResponse(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": out})
}

func (h *SnapshotHandler) get(w http.ResponseWriter, id string) {
	snap, err := h.store.Snapshots().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Snapshot not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get snapshot")
		return
	}
	flowers, err := h.store.Snapshots().Flowers(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load flowers")
		return
	}

	resp := toSnapshotResponse(snap)
	resp.Flowers = flowers
	writeJSON(w, http.StatusOK, resp)
}

func (h *SnapshotHandler) delete(w http.ResponseWriter, id string) {
	if err := h.store.Snapshots().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Snapshot not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete snapshot")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Captioner starts an asynchronous garden description.
type Captioner interface {
	RequestCaption() (uint64, error)
}

// CaptionHandler serves caption history at /api/captions. POST asks for a
// new caption; it is recorded when the caption service answers.
type CaptionHandler struct {
	store     *store.Store
	captioner Captioner
}

// NewCaptionHandler creates a CaptionHandler. Either argument may be nil,
// which disables the matching method.
func NewCaptionHandler(s *store.Store, c Captioner) *CaptionHandler {
	return &CaptionHandler{store: s, captioner: c}
}

type captionResponse struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	FlowerCount int    `json:"flower_count"`
	Locale      string `json:"locale"`
	Theme       string `json:"theme"`
	Fallback    bool   `json:"fallback"`
	CreatedAt   string `json:"created_at"`
}

func (h *CaptionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.request(w)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *CaptionHandler) list(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "No caption history")
		return
	}
	captions, err := h.store.Captions().List(limitParam(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list captions")
		return
	}
	out := make([]captionResponse, 0, len(captions))
	for _, c := range captions {
		out = append(out, captionResponse{
			ID:          c.ID,
			Text:        c.Text,
			FlowerCount: c.FlowerCount,
			Locale:      c.Locale,
			Theme:       c.Theme,
			Fallback:    c.Fallback,
			CreatedAt:   formatTime(c.CreatedAt),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"captions": out})
}

func (h *CaptionHandler) request(w http.ResponseWriter) {
	if h.captioner == nil {
		writeError(w, http.StatusServiceUnavailable, "Captions are not available")
		return
	}
	gen, err := h.captioner.RequestCaption()
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"request": gen})
}
