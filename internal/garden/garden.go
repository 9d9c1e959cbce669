package garden

// GroundRatio places the ground line as a fraction of canvas height.
const GroundRatio = 0.94

// Garden is the simulation context. Engine is its only writer; renderers and
// views read it under the loop lock.
type Garden struct {
	Width  int
	Height int

	Seeds     []Seed
	Flowers   []Flower
	Particles []Particle
}

// New creates an empty garden for a canvas of the given size.
func New(width, height int) *Garden {
	return &Garden{Width: width, Height: height}
}

// Sized reports whether the canvas has a drawable area.
func (g *Garden) Sized() bool {
	return g.Width > 0 && g.Height > 0
}

// GroundY is the y coordinate of the ground line in pixels.
func (g *Garden) GroundY() float64 {
	return float64(g.Height) * GroundRatio
}

// BaseX is the pixel x of a flower's root.
func (g *Garden) BaseX(f *Flower) float64 {
	return f.RelX * float64(g.Width)
}

// HeadPosition is the pixel position of a flower's tip, ignoring sway.
func (g *Garden) HeadPosition(f *Flower) (x, y float64) {
	return g.BaseX(f) + f.Stem[3].X, g.GroundY() - f.CurrentHeight
}

// Resize changes the canvas size. Flowers keep their width fraction; seeds
// and particles are scaled so they keep their proportional placement.
func (g *Garden) Resize(width, height int) {
	if width == g.Width && height == g.Height {
		return
	}
	if g.Sized() && width > 0 && height > 0 {
		sx := float64(width) / float64(g.Width)
		sy := float64(height) / float64(g.Height)
		groundY := float64(height) * GroundRatio

		for i := range g.Seeds {
			s := &g.Seeds[i]
			s.X *= sx
			s.Y *= sy
			if s.Y >= groundY {
				s.Y = groundY - 1
			}
		}
		for i := range g.Particles {
			g.Particles[i].X *= sx
			g.Particles[i].Y *= sy
		}
	}
	g.Width = width
	g.Height = height
}

// Len returns the number of flowers plus seeds, the count shown to users.
func (g *Garden) Len() int {
	return len(g.Flowers) + len(g.Seeds)
}
