package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ayusman/bloom/internal/plugin"
	"github.com/ayusman/bloom/internal/store"
)

// newTestStore creates a Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

type fakePlugins map[string]*plugin.Plugin

func (f fakePlugins) Get(name string) (*plugin.Plugin, error) {
	p, ok := f[name]
	if !ok {
		return nil, plugin.ErrPluginNotFound
	}
	return p, nil
}

func (f fakePlugins) List() []*plugin.Plugin {
	var out []*plugin.Plugin
	for _, p := range f {
		out = append(out, p)
	}
	return out
}

func testPlugins() fakePlugins {
	return fakePlugins{
		"journal": {Manifest: plugin.Manifest{Name: "journal", Version: "1.0.0", Actions: []string{"append"}}},
		"notify": {Manifest: plugin.Manifest{
			Name:    "notify",
			Actions: []string{"notify"},
			Events:  []plugin.Event{plugin.EventBloomed},
		}},
	}
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("failed to encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHookHandler_Create(t *testing.T) {
	s := newTestStore(t)
	handler := NewHookHandler(s, testPlugins())

	rec := doJSON(t, handler, http.MethodPost, "/api/hooks", createHookRequest{
		Event:      "planted",
		PluginName: "journal",
		ActionName: "append",
		Config:     json.RawMessage(`{"file":"/tmp/j.jsonl"}`),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var response hookResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.ID == "" || !response.Enabled {
		t.Errorf("unexpected response %+v", response)
	}

	stored, err := s.Hooks().GetByID(response.ID)
	if err != nil {
		t.Fatalf("failed to get created hook: %v", err)
	}
	if stored.Event != "planted" || string(stored.Config) != `{"file":"/tmp/j.jsonl"}` {
		t.Errorf("stored hook = %+v", stored)
	}
}

func TestHookHandler_Create_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{"invalid json", "not json"},
		{"missing event", createHookRequest{PluginName: "journal", ActionName: "append"}},
		{"missing plugin", createHookRequest{Event: "planted", ActionName: "append"}},
		{"missing action", createHookRequest{Event: "planted", PluginName: "journal"}},
		{"unknown event", createHookRequest{Event: "wilted", PluginName: "journal", ActionName: "append"}},
		{"unknown plugin", createHookRequest{Event: "planted", PluginName: "ghost", ActionName: "append"}},
		{"unknown action", createHookRequest{Event: "planted", PluginName: "journal", ActionName: "shred"}},
		{"event not handled", createHookRequest{Event: "cleared", PluginName: "notify", ActionName: "notify"}},
	}

	s := newTestStore(t)
	handler := NewHookHandler(s, testPlugins())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, handler, http.MethodPost, "/api/hooks", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
			}
		})
	}

	hooks, err := s.Hooks().List()
	if err != nil {
		t.Fatal(err)
	}
	if len(hooks) != 0 {
		t.Errorf("rejected requests stored %d hooks", len(hooks))
	}
}

func TestHookHandler_WithoutPluginCheck(t *testing.T) {
	s := newTestStore(t)
	handler := NewHookHandler(s, nil)

	rec := doJSON(t, handler, http.MethodPost, "/api/hooks", createHookRequest{
		Event: "keepsake", PluginName: "not-installed-yet", ActionName: "anything",
	})
	if rec.Code != http.StatusCreated {
		t.Errorf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}
}

func TestHookHandler_ListGetUpdateDelete(t *testing.T) {
	s := newTestStore(t)
	handler := NewHookHandler(s, testPlugins())

	hk := &store.Hook{ID: "hook-1", Event: "bloomed", PluginName: "notify", ActionName: "notify", Enabled: true}
	if err := s.Hooks().Create(hk); err != nil {
		t.Fatalf("failed to create hook: %v", err)
	}

	rec := doJSON(t, handler, http.MethodGet, "/api/hooks", nil)
	var listed listHooksResponse
	if err := json.NewDecoder(rec.Body).Decode(&listed); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if len(listed.Hooks) != 1 || listed.Hooks[0].ID != "hook-1" {
		t.Fatalf("listed = %+v", listed)
	}
	if string(listed.Hooks[0].Config) != "{}" {
		t.Errorf("empty config should render as {}, got %s", listed.Hooks[0].Config)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/hooks/hook-1", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("GET item status = %d", rec.Code)
	}

	disabled := false
	rec = doJSON(t, handler, http.MethodPut, "/api/hooks/hook-1", updateHookRequest{Enabled: &disabled})
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d: %s", rec.Code, rec.Body.String())
	}
	stored, _ := s.Hooks().GetByID("hook-1")
	if stored.Enabled {
		t.Error("hook still enabled after update")
	}

	rec = doJSON(t, handler, http.MethodPut, "/api/hooks/hook-1", updateHookRequest{Event: "cleared"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("rebinding to an unhandled event: status %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/hooks/hook-1", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("DELETE status = %d", rec.Code)
	}
	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rec = doJSON(t, handler, method, "/api/hooks/hook-1", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s after delete: status %d", method, rec.Code)
		}
	}
}

func TestHookHandler_MethodNotAllowed(t *testing.T) {
	handler := NewHookHandler(newTestStore(t), nil)
	tests := []struct {
		method string
		path   string
	}{
		{http.MethodDelete, "/api/hooks"},
		{http.MethodPatch, "/api/hooks"},
		{http.MethodPost, "/api/hooks/some-id"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := doJSON(t, handler, tt.method, tt.path, nil)
			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
			}
		})
	}
}

func TestPluginsHandler(t *testing.T) {
	rec := doJSON(t, PluginsHandler(testPlugins()), http.MethodGet, "/api/plugins", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Plugins []pluginResponse `json:"plugins"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Plugins) != 2 {
		t.Fatalf("plugins = %d, want 2", len(body.Plugins))
	}
	for _, p := range body.Plugins {
		if p.Name == "journal" && len(p.Events) != len(plugin.Events) {
			t.Errorf("journal handles every event, got %v", p.Events)
		}
		if p.Name == "notify" && len(p.Events) != 1 {
			t.Errorf("notify events = %v", p.Events)
		}
	}
}
