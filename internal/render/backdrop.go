package render

import (
	"image"
	"image/color"
	"math"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/bloom/internal/garden"
)

const (
	ambientCount = 48
	skyBand      = 2
)

// drawBackdrop paints the artistic background. The result depends only on
// theme, t and the size of dst.
func drawBackdrop(dst *gocv.Mat, theme garden.Theme, t time.Duration) {
	p := theme.Palette()
	w, h := dst.Cols(), dst.Rows()
	if w == 0 || h == 0 {
		return
	}

	drawSky(dst, p.Sky, w, h)
	drawAmbient(dst, theme, p.Accent, w, h, t.Seconds())
	drawHills(dst, p.Ground, w, h)
}

func drawSky(dst *gocv.Mat, stops [3]color.RGBA, w, h int) {
	for y := 0; y < h; y += skyBand {
		f := float64(y) / float64(h)
		var c color.RGBA
		if f < 0.5 {
			c = lerpColor(stops[0], stops[1], f*2)
		} else {
			c = lerpColor(stops[1], stops[2], (f-0.5)*2)
		}
		gocv.Rectangle(dst, image.Rect(0, y, w, y+skyBand), c, -1)
	}
}

func drawAmbient(dst *gocv.Mat, theme garden.Theme, accent color.RGBA, w, h int, sec float64) {
	fw, fh := float64(w), float64(h)
	for i := uint64(0); i < ambientCount; i++ {
		hx, hy := hash01(i, 1), hash01(i, 2)
		phase := hash01(i, 3) * 2 * math.Pi
		size := 1 + hash01(i, 4)*3

		switch theme {
		case garden.ThemeOcean:
			// Bubbles rise and wrap.
			speed := 0.02 + hash01(i, 5)*0.05
			y := math.Mod(hy-sec*speed, 1)
			if y < 0 {
				y++
			}
			x := hx*fw + math.Sin(sec*1.3+phase)*6
			gocv.Circle(dst, vec{x, y * fh * 0.9}.pt(), int(size*2), accent, 1)
		case garden.ThemeForest:
			// Fireflies wander and pulse.
			x := hx*fw + math.Sin(sec*0.7+phase)*20
			y := hy*fh*0.8 + math.Cos(sec*0.5+phase)*14
			glow := 0.35 + 0.35*math.Sin(sec*3+phase)
			blendCircle(dst, vec{x, y}.pt(), int(size*2.5), accent, glow)
			gocv.Circle(dst, vec{x, y}.pt(), 1, accent, -1)
		case garden.ThemeLavender:
			// Sparkles drift sideways and twinkle.
			x := math.Mod(hx*fw+sec*8*(1+hash01(i, 6)), fw)
			y := hy * fh * 0.75
			r := int(size * (0.6 + 0.4*math.Sin(sec*4+phase)) * 2)
			c := vec{x, y}.pt()
			gocv.Line(dst, c.Add(image.Pt(-r, 0)), c.Add(image.Pt(r, 0)), accent, 1)
			gocv.Line(dst, c.Add(image.Pt(0, -r)), c.Add(image.Pt(0, r)), accent, 1)
		default:
			// Stars twinkle in the upper sky.
			twinkle := 0.5 + 0.5*math.Sin(sec*2+phase)
			blendCircle(dst, vec{hx * fw, hy * fh * 0.6}.pt(), int(size), accent, 0.3+0.7*twinkle)
		}
	}
}

func drawHills(dst *gocv.Mat, ground color.RGBA, w, h int) {
	layers := []struct {
		base, amp, freq, offset float64
		tone                    float64
	}{
		{base: 0.78, amp: 0.05, freq: 2.1, offset: 0.4, tone: 1.25},
		{base: 0.86, amp: 0.04, freq: 3.3, offset: 1.7, tone: 1.0},
	}

	fw, fh := float64(w), float64(h)
	for _, l := range layers {
		pts := make([]image.Point, 0, 66)
		pts = append(pts, image.Pt(0, h))
		for i := 0; i <= 64; i++ {
			x := float64(i) / 64
			y := l.base + l.amp*math.Sin(x*l.freq*math.Pi+l.offset)
			pts = append(pts, vec{x * fw, y * fh}.pt())
		}
		pts = append(pts, image.Pt(w, h))
		fillPoly(dst, pts, shade(ground, l.tone))
	}
}
