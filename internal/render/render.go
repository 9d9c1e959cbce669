// Package render paints the garden onto a BGR frame buffer with gocv. It
// only reads simulation state; all animation is derived from the time value.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"time"

	"github.com/tanema/gween/ease"
	"gocv.io/x/gocv"

	"github.com/ayusman/bloom/internal/garden"
)

// ErrFrameSize is returned when the frame buffer does not match the canvas.
var ErrFrameSize = errors.New("frame buffer size does not match garden")

const (
	swayFrequency = 1.6
	swayPhase     = 12.0
	swayPixels    = 6.0

	leafSpacing = 40.0
	maxLeaves   = 6
	stemSamples = 20
	headBase    = 200.0
	seedRadius  = 4
	pinchRadius = 15
	holdRadius  = 28
)

var (
	stemColor   = color.RGBA{R: 0x8B, G: 0xC3, B: 0x4A, A: 255}
	leafColor   = color.RGBA{R: 0x66, G: 0xBB, B: 0x6A, A: 255}
	moundColor  = color.RGBA{R: 0x5D, G: 0x40, B: 0x37, A: 255}
	seedColor   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	sproutColor = color.RGBA{R: 0xA1, G: 0x88, B: 0x7F, A: 255}
	pinchColor  = color.RGBA{R: 236, G: 72, B: 153, A: 255}
	holdColor   = color.RGBA{R: 0xFF, G: 0x6B, B: 0x6B, A: 255}
	soilTop     = color.RGBA{R: 40, G: 35, B: 30, A: 255}
	soilBottom  = color.RGBA{R: 10, G: 5, B: 0, A: 255}
	white       = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// HUD is the gesture feedback drawn over the garden.
type HUD struct {
	// Pinching draws a ring at PinchAt (frame pixels).
	Pinching bool
	PinchAt  image.Point

	// HoldFraction in (0,1] draws the clear countdown arc.
	HoldFraction      float64
	SecondsUntilClear float64
}

// Renderer draws gardens. The species table is fixed after construction.
type Renderer struct {
	heads map[garden.Species]HeadFunc
}

// New creates a renderer with the built-in species heads.
func New() *Renderer {
	return &Renderer{heads: defaultHeads()}
}

// WithHead returns a renderer that draws species with fn.
func (r *Renderer) WithHead(species garden.Species, fn HeadFunc) *Renderer {
	heads := make(map[garden.Species]HeadFunc, len(r.heads)+1)
	for k, v := range r.heads {
		heads[k] = v
	}
	heads[species] = fn
	return &Renderer{heads: heads}
}

// Render paints one frame into dst, which must be a CV_8UC3 Mat of the
// garden's size. video is the current camera frame and may be nil.
func (r *Renderer) Render(dst *gocv.Mat, g *garden.Garden, s garden.Settings, video *gocv.Mat, t time.Duration, hud HUD) error {
	if dst == nil || dst.Empty() || !g.Sized() {
		return ErrFrameSize
	}
	if dst.Cols() != g.Width || dst.Rows() != g.Height {
		return fmt.Errorf("%w: have %dx%d, want %dx%d", ErrFrameSize, dst.Cols(), dst.Rows(), g.Width, g.Height)
	}

	dst.SetTo(gocv.NewScalar(0, 0, 0, 0))
	r.drawBackground(dst, s, video, t)

	sec := t.Seconds()
	for i := range g.Flowers {
		r.drawFlower(dst, g, &g.Flowers[i], s, sec)
	}
	for _, seed := range g.Seeds {
		drift := SeedDrift(seed.Y)
		gocv.Circle(dst, vec{seed.X + drift, seed.Y}.pt(), seedRadius, seedColor, -1)
	}
	for _, p := range g.Particles {
		blendCircle(dst, vec{p.X, p.Y}.pt(), int(math.Round(p.Size)), p.Color, math.Min(1, p.Life))
	}

	drawSoil(dst, g)
	drawHUD(dst, hud)
	return nil
}

func (r *Renderer) drawBackground(dst *gocv.Mat, s garden.Settings, video *gocv.Mat, t time.Duration) {
	if s.Background == garden.BackgroundArtistic {
		drawBackdrop(dst, s.Theme, t)
		return
	}
	if video == nil || video.Empty() {
		return
	}
	if video.Cols() == dst.Cols() && video.Rows() == dst.Rows() {
		video.CopyTo(dst)
		return
	}
	gocv.Resize(*video, dst, image.Pt(dst.Cols(), dst.Rows()), 0, 0, gocv.InterpolationLinear)
}

func (r *Renderer) drawFlower(dst *gocv.Mat, g *garden.Garden, f *garden.Flower, s garden.Settings, sec float64) {
	base := vec{g.BaseX(f), g.GroundY()}
	h := f.CurrentHeight

	gocv.Ellipse(dst, base.pt(), image.Pt(14, 5), 0, 180, 360, moundColor, -1)

	if h < 0.5 {
		gocv.Ellipse(dst, base.add(vec{0, -3}).pt(), image.Pt(4, 3), -20, 0, 360, sproutColor, -1)
		return
	}

	sway := Sway(sec, f.RelX, s.WindStrength)
	p1 := base.add(vec{f.Stem[1].X + sway*0.33, -h * 0.33})
	p2 := base.add(vec{f.Stem[2].X + sway*0.66, -h * 0.66})
	tip := base.add(vec{f.Stem[3].X + sway, -h})

	polyline(dst, sampleBezier(base, p1, p2, tip, stemSamples), stemColor, 3)

	n := LeafCount(h)
	for i := 0; i < n; i++ {
		at := float64(i+1) / float64(n+1) * 0.85
		pos := bezier(base, p1, p2, tip, at)
		side := 1.0
		angle := 36.0
		if i%2 == 1 {
			side, angle = -1, -36
		}
		axes := image.Pt(int(10+h/20), 4)
		gocv.Ellipse(dst, pos.add(vec{8 * side, 0}).pt(), axes, angle, 0, 360, leafColor, -1)
	}

	if f.BloomProgress <= 0 {
		return
	}
	draw, ok := r.heads[f.Species]
	if !ok {
		draw = drawLily
	}
	draw(dst, tip.pt(), HeadScale(f, s), f)
}

func drawSoil(dst *gocv.Mat, g *garden.Garden) {
	top := int(g.GroundY())
	h := g.Height
	span := h - top
	for y := top; y < h; y++ {
		f := 0.0
		if span > 1 {
			f = float64(y-top) / float64(span-1)
		}
		blendRect(dst, image.Rect(0, y, g.Width, y+1), lerpColor(soilTop, soilBottom, f), lerp(0.2, 0.7, f))
	}
	blendRect(dst, image.Rect(0, top, g.Width, top+1), white, 0.1)
}

func drawHUD(dst *gocv.Mat, hud HUD) {
	if hud.Pinching {
		blendCircle(dst, hud.PinchAt, pinchRadius, pinchColor, 0.4)
		gocv.Circle(dst, hud.PinchAt, pinchRadius, pinchColor, 1)
	}
	if hud.HoldFraction <= 0 {
		return
	}

	frac := math.Min(1, hud.HoldFraction)
	center := image.Pt(dst.Cols()/2, holdRadius+16)
	axes := image.Pt(holdRadius, holdRadius)
	gocv.Ellipse(dst, center, axes, 0, 0, 360, shade(holdColor, 0.4), 2)
	gocv.Ellipse(dst, center, axes, -90, 0, 360*frac, holdColor, 4)

	label := fmt.Sprintf("%.1f", math.Max(0, hud.SecondsUntilClear))
	size := gocv.GetTextSize(label, gocv.FontHersheySimplex, 0.5, 1)
	gocv.PutText(dst, label, center.Sub(image.Pt(size.X/2, -size.Y/2)), gocv.FontHersheySimplex, 0.5, white, 1)
}

// Sway is the horizontal tip offset in pixels at time sec for a flower
// anchored at relX.
func Sway(sec, relX, wind float64) float64 {
	return math.Sin(sec*swayFrequency+relX*swayPhase) * wind * swayPixels
}

// SeedDrift is the cosmetic horizontal air drift of a falling seed.
func SeedDrift(y float64) float64 {
	return math.Sin(y*0.05) * 3
}

// LeafCount is the number of leaves drawn on a stem of height h.
func LeafCount(h float64) int {
	return min(maxLeaves, int(h/leafSpacing))
}

// HeadScale is the head size multiplier for a flower under the settings.
func HeadScale(f *garden.Flower, s garden.Settings) float64 {
	bloom := float32(math.Max(0, math.Min(1, f.BloomProgress)))
	return (f.MaxHeight / headBase) * s.GrowthScale * s.PetalScale * float64(ease.OutBack(bloom, 0, 1, 1))
}
