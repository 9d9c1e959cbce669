package garden

import (
	"image/color"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/bloom/internal/gesture"
)

// Simulation rates are expressed per FrameUnit and scaled by the elapsed
// frame fraction each step.
const (
	FrameUnit = time.Second / 60
	MaxStep   = 250 * time.Millisecond

	SeedVelocity = 4.0
	Gravity      = 0.5

	BaseMaxHeight   = 180.0
	MaxHeightJitter = 250.0
	GrowthRate      = 4.0
	BloomRate       = 0.08
	BloomThreshold  = 0.7

	ParticleGravity = 0.15
	ParticleDecay   = 0.02

	SparkBurst   = 6
	LandingBurst = 10
	ClearBurst   = 20
)

var seedColor = hex("#FFFFFF")

// Delta converts elapsed time to frame units, clamping long gaps to MaxStep.
func Delta(dt time.Duration) float64 {
	if dt <= 0 {
		return 0
	}
	if dt > MaxStep {
		dt = MaxStep
	}
	return float64(dt) / float64(FrameUnit)
}

// Engine advances a Garden. It is not safe for concurrent use.
type Engine struct {
	garden   *Garden
	settings Settings
	rng      *rand.Rand
	now      func() time.Time
}

// NewEngine creates an engine over g. A nil rng uses a time-seeded source.
func NewEngine(g *Garden, s Settings, rng *rand.Rand) *Engine {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>7|1))
	}
	return &Engine{
		garden:   g,
		settings: s.Clamp(),
		rng:      rng,
		now:      time.Now,
	}
}

// Garden returns the simulation context the engine writes.
func (e *Engine) Garden() *Garden {
	return e.garden
}

// Settings returns the active settings.
func (e *Engine) Settings() Settings {
	return e.settings
}

// SetSettings replaces the settings. Growth scale changes take effect at once:
// flowers taller than the new ceiling are clamped down to it.
func (e *Engine) SetSettings(s Settings) {
	e.settings = s.Clamp()
	e.clampHeights()
}

// Step advances the simulation by dt using the classifier signals.
func (e *Engine) Step(dt time.Duration, sig gesture.Signals) Events {
	var ev Events
	g := e.garden
	if !g.Sized() {
		return ev
	}
	d := Delta(dt)

	if sig.ClearTriggered {
		ev.Cleared = e.Clear()
	}
	if sig.PlantRequested {
		e.Plant(sig.PlantAt.X*float64(g.Width), sig.PlantAt.Y*float64(g.Height))
		ev.Planted++
	}

	ev.Landed = e.stepSeeds(d)
	ev.Bloomed = e.stepFlowers(d, sig.MouthOpen)
	e.stepParticles(d)

	return ev
}

// Plant drops a new seed at pixel (x, y) with a small spark burst.
func (e *Engine) Plant(x, y float64) {
	g := e.garden
	if !g.Sized() {
		return
	}
	groundY := g.GroundY()
	x = math.Max(0, math.Min(float64(g.Width), x))
	if y >= groundY {
		y = groundY - 1
	}
	if y < 0 {
		y = 0
	}

	g.Seeds = append(g.Seeds, Seed{
		ID:    uuid.NewString(),
		X:     x,
		Y:     y,
		VY:    SeedVelocity,
		Color: seedColor,
	})
	e.burst(x, y, SparkBurst, 2.5, e.settings.Theme.Palette().Flowers)
}

// Clear removes every flower and seed, leaving an explosion of particles at
// each of their positions. It returns how many entities were removed.
func (e *Engine) Clear() int {
	g := e.garden
	colors := e.settings.Theme.Palette().Flowers
	for i := range g.Flowers {
		f := &g.Flowers[i]
		x, y := g.HeadPosition(f)
		e.burst(x, y, ClearBurst, 6, []color.RGBA{f.Color, f.SecondaryColor})
	}
	for _, s := range g.Seeds {
		e.burst(s.X, s.Y, ClearBurst, 6, colors)
	}
	n := g.Len()
	g.Flowers = nil
	g.Seeds = nil
	return n
}

// ApplyTheme switches the theme and recolours every existing flower.
func (e *Engine) ApplyTheme(t Theme) {
	e.settings.Theme = t
	e.settings = e.settings.Clamp()
	for i := range e.garden.Flowers {
		e.garden.Flowers[i].Color, e.garden.Flowers[i].SecondaryColor = e.pickColors()
	}
}

// ApplySpecies sets the default species and re-resolves it for every
// existing flower. Random resolves independently per flower.
func (e *Engine) ApplySpecies(s Species) {
	e.settings.Species = s
	e.settings = e.settings.Clamp()
	for i := range e.garden.Flowers {
		e.garden.Flowers[i].Species = e.resolveSpecies(e.settings.Species)
	}
}

// Restore replaces the flowers, typically from a saved snapshot. Seeds and
// particles are dropped.
func (e *Engine) Restore(flowers []Flower) {
	g := e.garden
	g.Seeds = nil
	g.Particles = nil
	g.Flowers = make([]Flower, 0, len(flowers))
	for _, f := range flowers {
		f.RelX = clamp(f.RelX, 0, 1)
		f.BloomProgress = clamp(f.BloomProgress, 0, 1)
		if f.CurrentHeight < 0 {
			f.CurrentHeight = 0
		}
		if f.Species == SpeciesRandom || f.Species == "" {
			f.Species = e.resolveSpecies(SpeciesRandom)
		}
		if f.ID == "" {
			f.ID = uuid.NewString()
		}
		g.Flowers = append(g.Flowers, f)
	}
	e.clampHeights()
}

func (e *Engine) stepSeeds(d float64) int {
	g := e.garden
	groundY := g.GroundY()
	landed := 0

	kept := g.Seeds[:0]
	for _, s := range g.Seeds {
		s.Y += s.VY * d
		s.VY += Gravity * d
		if s.Y >= groundY {
			g.Flowers = append(g.Flowers, e.newFlower(s.X))
			e.burst(s.X, groundY, LandingBurst, 3, e.settings.Theme.Palette().Flowers)
			landed++
			continue
		}
		kept = append(kept, s)
	}
	g.Seeds = kept
	return landed
}

func (e *Engine) stepFlowers(d float64, mouthOpen bool) int {
	bloomed := 0
	speed := e.settings.GrowthSpeed
	for i := range e.garden.Flowers {
		f := &e.garden.Flowers[i]
		target := f.MaxHeight * e.settings.GrowthScale
		if f.CurrentHeight > target {
			f.CurrentHeight = target
		}
		if !mouthOpen {
			continue
		}

		f.CurrentHeight = math.Min(target, f.CurrentHeight+GrowthRate*speed*d)

		if f.CurrentHeight > BloomThreshold*target && f.BloomProgress < 1 {
			f.BloomProgress = math.Min(1, f.BloomProgress+BloomRate*speed*d)
			if f.BloomProgress == 1 {
				bloomed++
			}
		}
	}
	return bloomed
}

func (e *Engine) stepParticles(d float64) {
	g := e.garden
	kept := g.Particles[:0]
	for _, p := range g.Particles {
		p.X += p.VX * d
		p.Y += p.VY * d
		p.VY += ParticleGravity * d
		p.Life -= ParticleDecay * d
		if p.Life <= 0 {
			continue
		}
		kept = append(kept, p)
	}
	g.Particles = kept
}

func (e *Engine) clampHeights() {
	for i := range e.garden.Flowers {
		f := &e.garden.Flowers[i]
		if ceiling := f.MaxHeight * e.settings.GrowthScale; f.CurrentHeight > ceiling {
			f.CurrentHeight = ceiling
		}
	}
}

func (e *Engine) newFlower(x float64) Flower {
	primary, secondary := e.pickColors()
	f := Flower{
		ID:             uuid.NewString(),
		RelX:           clamp(x/float64(e.garden.Width), 0, 1),
		MaxHeight:      BaseMaxHeight + e.rng.Float64()*MaxHeightJitter,
		Species:        e.resolveSpecies(e.settings.Species),
		Color:          primary,
		SecondaryColor: secondary,
		PlantedAt:      e.now(),
	}
	f.Stem = [4]Point{
		{X: 0, Y: 0},
		{X: (e.rng.Float64() - 0.5) * 60, Y: -50},
		{X: (e.rng.Float64() - 0.5) * 60, Y: -100},
		{X: (e.rng.Float64() - 0.5) * 20, Y: -150},
	}
	return f
}

func (e *Engine) pickColors() (color.RGBA, color.RGBA) {
	colors := e.settings.Theme.Palette().Flowers
	return colors[e.rng.IntN(len(colors))], colors[e.rng.IntN(len(colors))]
}

func (e *Engine) resolveSpecies(s Species) Species {
	if s == SpeciesRandom || s == "" {
		return ConcreteSpecies[e.rng.IntN(len(ConcreteSpecies))]
	}
	return s
}

// burst spawns n particles radiating from (x, y) with speeds up to maxSpeed.
func (e *Engine) burst(x, y float64, n int, maxSpeed float64, colors []color.RGBA) {
	if len(colors) == 0 {
		colors = []color.RGBA{seedColor}
	}
	for i := 0; i < n; i++ {
		angle := e.rng.Float64() * 2 * math.Pi
		speed := 0.5 + e.rng.Float64()*maxSpeed
		e.garden.Particles = append(e.garden.Particles, Particle{
			X:     x,
			Y:     y,
			VX:    math.Cos(angle) * speed,
			VY:    math.Sin(angle)*speed - 1,
			Life:  1,
			Size:  2 + e.rng.Float64()*3,
			Color: colors[e.rng.IntN(len(colors))],
		})
	}
}
