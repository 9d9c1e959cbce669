// Package plugin discovers external programs and runs them when something
// happens in the garden.
package plugin

import (
	"encoding/json"
	"slices"
	"time"
)

// Event names a garden occurrence a hook can listen for.
type Event string

const (
	EventPlanted   Event = "planted"
	EventBloomed   Event = "bloomed"
	EventCleared   Event = "cleared"
	EventCaptioned Event = "captioned"
	EventKeepsake  Event = "keepsake"
)

// Events lists every event in the order they are documented.
var Events = []Event{EventPlanted, EventBloomed, EventCleared, EventCaptioned, EventKeepsake}

// Valid reports whether e is a known event.
func (e Event) Valid() bool {
	return slices.Contains(Events, e)
}

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Executable  string   `json:"executable"`
	Actions     []string `json:"actions"`
	// Events restricts the plugin to some events. Empty means all.
	Events       []Event         `json:"events,omitempty"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Handles reports whether the plugin accepts ev.
func (m Manifest) Handles(ev Event) bool {
	return len(m.Events) == 0 || slices.Contains(m.Events, ev)
}

// HasAction reports whether action is declared in the manifest. A manifest
// without actions accepts any.
func (m Manifest) HasAction(action string) bool {
	return len(m.Actions) == 0 || slices.Contains(m.Actions, action)
}

// Payload describes the event a plugin is invoked for. Fields that do not
// apply to the event are left empty.
type Payload struct {
	FlowerCount int       `json:"flower_count"`
	FlowerID    string    `json:"flower_id,omitempty"`
	Species     string    `json:"species,omitempty"`
	Color       string    `json:"color,omitempty"`
	Theme       string    `json:"theme,omitempty"`
	Text        string    `json:"text,omitempty"`
	Path        string    `json:"path,omitempty"`
	At          time.Time `json:"at"`
}

// Request is written to the plugin's stdin as JSON.
type Request struct {
	Action  string          `json:"action"`
	Event   Event           `json:"event"`
	Config  json.RawMessage `json:"config,omitempty"`
	Payload Payload         `json:"payload"`
}

// Response is read from the plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
