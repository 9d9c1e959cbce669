package app

import (
	"time"

	"github.com/ayusman/bloom/internal/capture"
	"github.com/ayusman/bloom/internal/garden"
	"github.com/ayusman/bloom/internal/gesture"
)

// CaptionStatus is the latest caption and whether a newer one is on its way.
type CaptionStatus struct {
	Text    string    `json:"text"`
	Pending bool      `json:"pending"`
	At      time.Time `json:"at,omitzero"`
}

// Status is a point-in-time view of the loop for the status feed and tray.
type Status struct {
	State         string              `json:"state"`
	Width         int                 `json:"width"`
	Height        int                 `json:"height"`
	Flowers       int                 `json:"flowers"`
	Seeds         int                 `json:"seeds"`
	Particles     int                 `json:"particles"`
	Signals       gesture.Signals     `json:"signals"`
	Events        garden.Events       `json:"events"`
	Settings      garden.Settings     `json:"settings"`
	Caption       CaptionStatus       `json:"caption"`
	Stream        capture.StreamStats `json:"stream"`
	DetectorReady bool                `json:"detectorReady"`
	DetectionSeq  uint64              `json:"detectionSeq"`
	Ticks         uint64              `json:"ticks"`
	TickErrors    uint64              `json:"tickErrors"`
	At            time.Time           `json:"at"`
}

// Status returns the current loop status.
func (l *Loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	g := l.engine.Garden()
	st := Status{
		State:         l.state.String(),
		Width:         g.Width,
		Height:        g.Height,
		Flowers:       len(g.Flowers),
		Seeds:         len(g.Seeds),
		Particles:     len(g.Particles),
		Signals:       l.signals,
		Events:        l.events,
		Settings:      l.engine.Settings(),
		DetectorReady: l.detReady,
		DetectionSeq:  l.lastSeq,
		Ticks:         l.ticks,
		TickErrors:    l.tickErrors,
		At:            l.opts.Now(),
		Caption: CaptionStatus{
			Text:    l.captions.text,
			Pending: l.captions.pending,
			At:      l.captions.at,
		},
	}
	if l.stream != nil {
		st.Stream = l.stream.Stats()
	}
	return st
}

// FlowerView is a flower with its colours spelled out.
type FlowerView struct {
	garden.Flower
	Color          string `json:"color"`
	SecondaryColor string `json:"secondaryColor"`
}

// GardenView is a copy of the simulation state safe to hand to other
// goroutines.
type GardenView struct {
	Width     int             `json:"width"`
	Height    int             `json:"height"`
	GroundY   float64         `json:"groundY"`
	Flowers   []FlowerView    `json:"flowers"`
	Seeds     []garden.Seed   `json:"seeds"`
	Particles int             `json:"particles"`
	Settings  garden.Settings `json:"settings"`
}

// View copies the garden.
func (l *Loop) View() GardenView {
	l.mu.Lock()
	defer l.mu.Unlock()

	g := l.engine.Garden()
	v := GardenView{
		Width:     g.Width,
		Height:    g.Height,
		GroundY:   g.GroundY(),
		Flowers:   make([]FlowerView, len(g.Flowers)),
		Seeds:     append([]garden.Seed{}, g.Seeds...),
		Particles: len(g.Particles),
		Settings:  l.engine.Settings(),
	}
	for i, f := range g.Flowers {
		v.Flowers[i] = FlowerView{
			Flower:         f,
			Color:          garden.ColorHex(f.Color),
			SecondaryColor: garden.ColorHex(f.SecondaryColor),
		}
	}
	return v
}
