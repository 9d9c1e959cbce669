// Package settings persists the user's garden style choices between runs.
//
// Storage goes through gdata so the same code works on every platform ebiten
// targets. Without a gdata manager the settings live in memory only.
package settings

import (
	"fmt"
	"log"
	"sync"

	"github.com/quasilyte/gdata/v2"
	"gopkg.in/yaml.v3"

	"github.com/ayusman/bloom/internal/garden"
)

// AppName is the gdata application namespace.
const AppName = "bloom"

const (
	settingsObject   = "settings"
	settingsProperty = "garden"
)

// Manager loads, holds and saves garden.Settings. It is safe for concurrent
// use.
type Manager struct {
	mu       sync.RWMutex
	gdata    *gdata.Manager // nil in degraded mode
	settings garden.Settings
}

// Open opens gdata storage for appName and loads saved settings. When storage
// is unavailable it logs and returns an in-memory manager.
func Open(appName string) *Manager {
	gm, err := gdata.Open(gdata.Config{AppName: appName})
	if err != nil {
		log.Printf("[Settings] Warning: storage unavailable: %v (settings will not persist)", err)
		gm = nil
	}
	return NewManager(gm)
}

// NewManager wraps a gdata manager, which may be nil. A failed load is
// logged and leaves the defaults in place.
func NewManager(gm *gdata.Manager) *Manager {
	m := &Manager{
		gdata:    gm,
		settings: garden.DefaultSettings(),
	}
	if err := m.Load(); err != nil {
		log.Printf("[Settings] Warning: failed to load settings: %v (using defaults)", err)
	}
	return m
}

// Persistent reports whether Save writes to disk.
func (m *Manager) Persistent() bool {
	return m.gdata != nil
}

// Load replaces the current settings with the saved ones. Missing data
// resets to defaults.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.settings = garden.DefaultSettings()
	if m.gdata == nil || !m.gdata.ObjectPropExists(settingsObject, settingsProperty) {
		return nil
	}

	data, err := m.gdata.LoadObjectProp(settingsObject, settingsProperty)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	loaded := garden.DefaultSettings()
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	m.settings = loaded.Clamp()
	return nil
}

// Save writes the current settings. In degraded mode it does nothing.
func (m *Manager) Save() error {
	if m.gdata == nil {
		return nil
	}

	m.mu.RLock()
	data, err := yaml.Marshal(m.settings)
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := m.gdata.SaveObjectProp(settingsObject, settingsProperty, data); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// Get returns a copy of the current settings.
func (m *Manager) Get() garden.Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

// Set clamps and stores s in memory and returns the stored value. Call Save
// to persist.
func (m *Manager) Set(s garden.Settings) garden.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = s.Clamp()
	return m.settings
}

// Update applies fn to a copy of the settings and stores the clamped result.
func (m *Manager) Update(fn func(*garden.Settings)) garden.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.settings
	fn(&s)
	m.settings = s.Clamp()
	return m.settings
}
