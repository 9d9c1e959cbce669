// Package garden holds the simulation state (seeds, flowers, particles) and
// the engine that advances it each tick from gesture signals.
package garden

import (
	"fmt"
	"image/color"
	"strings"
	"time"
)

// Point is a 2D offset in pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Seed is a falling point mass that has not rooted yet.
// A live seed always has Y strictly above the ground line.
type Seed struct {
	ID    string     `json:"id"`
	X     float64    `json:"x"`
	Y     float64    `json:"y"`
	VY    float64    `json:"vy"`
	Color color.RGBA `json:"-"`
}

// Flower is a rooted, growing plant.
type Flower struct {
	ID string `json:"id"`

	// RelX is the horizontal anchor as a fraction of canvas width.
	RelX float64 `json:"relX"`

	MaxHeight     float64 `json:"maxHeight"`
	CurrentHeight float64 `json:"currentHeight"`
	BloomProgress float64 `json:"bloomProgress"`

	Species        Species    `json:"species"`
	Color          color.RGBA `json:"-"`
	SecondaryColor color.RGBA `json:"-"`

	// Stem holds the stem control point offsets, generated once at creation.
	// Index 0 is the root; only the X offsets of 1..3 shape the curve.
	Stem [4]Point `json:"stem"`

	PlantedAt time.Time `json:"plantedAt"`
}

// Particle is a short-lived decorative effect.
type Particle struct {
	X     float64
	Y     float64
	VX    float64
	VY    float64
	Life  float64
	Size  float64
	Color color.RGBA
}

// Species identifies a flower head shape.
type Species string

const (
	SpeciesRandom Species = "random"
	SpeciesRose   Species = "rose"
	SpeciesTulip  Species = "tulip"
	SpeciesDaisy  Species = "daisy"
	SpeciesLily   Species = "lily"
	SpeciesPoppy  Species = "poppy"
)

// ConcreteSpecies lists every species a flower can actually have.
var ConcreteSpecies = []Species{SpeciesRose, SpeciesTulip, SpeciesDaisy, SpeciesLily, SpeciesPoppy}

// AllSpecies lists the selectable species including random.
var AllSpecies = append([]Species{SpeciesRandom}, ConcreteSpecies...)

// ParseSpecies parses a species name, case-insensitively.
func ParseSpecies(s string) (Species, error) {
	name := Species(strings.ToLower(strings.TrimSpace(s)))
	for _, sp := range AllSpecies {
		if sp == name {
			return sp, nil
		}
	}
	return "", fmt.Errorf("unknown species %q", s)
}

// Next returns the species after s in selection order, wrapping around.
func (s Species) Next() Species {
	for i, sp := range AllSpecies {
		if sp == s {
			return AllSpecies[(i+1)%len(AllSpecies)]
		}
	}
	return SpeciesRandom
}

// BackgroundMode selects what is drawn behind the garden.
type BackgroundMode string

const (
	BackgroundCamera   BackgroundMode = "camera"
	BackgroundArtistic BackgroundMode = "artistic"
)

// ParseBackground parses a background mode name.
func ParseBackground(s string) (BackgroundMode, error) {
	switch BackgroundMode(strings.ToLower(strings.TrimSpace(s))) {
	case BackgroundCamera:
		return BackgroundCamera, nil
	case BackgroundArtistic:
		return BackgroundArtistic, nil
	}
	return "", fmt.Errorf("unknown background mode %q", s)
}

// Toggle switches between camera and artistic backgrounds.
func (b BackgroundMode) Toggle() BackgroundMode {
	if b == BackgroundArtistic {
		return BackgroundCamera
	}
	return BackgroundArtistic
}

// Events reports what happened during one engine step.
type Events struct {
	Planted int `json:"planted"`
	Landed  int `json:"landed"`
	Bloomed int `json:"bloomed"`
	Cleared int `json:"cleared"`
}

// Empty reports whether nothing happened.
func (e Events) Empty() bool {
	return e.Planted == 0 && e.Landed == 0 && e.Bloomed == 0 && e.Cleared == 0
}
