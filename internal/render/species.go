package render

import (
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"github.com/ayusman/bloom/internal/garden"
)

// HeadFunc draws a flower head centred at center. scale is the final head scale
// including bloom easing; f supplies the colours.
type HeadFunc func(dst *gocv.Mat, center image.Point, scale float64, f *garden.Flower)

var gold = color.RGBA{R: 0xFF, G: 0xD7, B: 0x00, A: 255}

func defaultHeads() map[garden.Species]HeadFunc {
	return map[garden.Species]HeadFunc{
		garden.SpeciesRose:  drawRose,
		garden.SpeciesTulip: drawTulip,
		garden.SpeciesDaisy: drawDaisy,
		garden.SpeciesLily:  drawLily,
		garden.SpeciesPoppy: drawPoppy,
	}
}

func drawRose(dst *gocv.Mat, center image.Point, s float64, f *garden.Flower) {
	c := vec{float64(center.X), float64(center.Y)}
	gocv.Circle(dst, c.pt(), scaled(15, s), f.Color, -1)
	gocv.Circle(dst, c.add(vec{3, -3}.scale(s)).pt(), scaled(10, s), f.SecondaryColor, -1)
	gocv.Circle(dst, c.add(vec{-2, 2}.scale(s)).pt(), scaled(6, s), f.Color, -1)
	gocv.Circle(dst, c.pt(), scaled(15, s), shade(f.Color, 0.7), 1)
}

func drawTulip(dst *gocv.Mat, center image.Point, s float64, f *garden.Flower) {
	c := vec{float64(center.X), float64(center.Y)}
	pts := make([]image.Point, 0, 34)
	right := sampleCurve(c, vec{0, 0}, vec{15, -15}, vec{15, -40}, vec{0, -50}, s)
	left := sampleCurve(c, vec{0, -50}, vec{-15, -40}, vec{-15, -15}, vec{0, 0}, s)
	pts = append(pts, right...)
	pts = append(pts, left...)
	fillPoly(dst, pts, f.Color)

	inner := sampleCurve(c, vec{0, -4}, vec{7, -15}, vec{6, -34}, vec{0, -42}, s)
	polyline(dst, inner, f.SecondaryColor, 1)
}

func drawDaisy(dst *gocv.Mat, center image.Point, s float64, f *garden.Flower) {
	c := vec{float64(center.X), float64(center.Y)}
	const petals = 12
	axes := image.Pt(scaled(12, s), scaled(4, s))
	for i := 0; i < petals; i++ {
		angle := float64(i) * 2 * math.Pi / petals
		petal := c.add(vec{12, 0}.rotate(angle).scale(s))
		gocv.Ellipse(dst, petal.pt(), axes, angle*180/math.Pi, 0, 360, f.Color, -1)
	}
	gocv.Circle(dst, c.pt(), scaled(6, s), gold, -1)
}

func drawLily(dst *gocv.Mat, center image.Point, s float64, f *garden.Flower) {
	c := vec{float64(center.X), float64(center.Y)}
	const petals = 6
	for i := 0; i < petals; i++ {
		angle := float64(i)*2*math.Pi/petals - math.Pi/2
		tip := vec{22, 0}.rotate(angle).scale(s)
		side := vec{8, 6}.rotate(angle).scale(s)
		other := vec{8, -6}.rotate(angle).scale(s)
		fillPoly(dst, []image.Point{c.pt(), c.add(side).pt(), c.add(tip).pt(), c.add(other).pt()}, f.Color)
	}
	gocv.Circle(dst, c.pt(), scaled(5, s), f.SecondaryColor, -1)
}

func drawPoppy(dst *gocv.Mat, center image.Point, s float64, f *garden.Flower) {
	c := vec{float64(center.X), float64(center.Y)}
	for i := 0; i < 4; i++ {
		angle := float64(i)*math.Pi/2 + math.Pi/4
		gocv.Circle(dst, c.add(vec{8, 0}.rotate(angle).scale(s)).pt(), scaled(11, s), f.Color, -1)
	}
	gocv.Circle(dst, c.pt(), scaled(8, s), f.SecondaryColor, -1)
	gocv.Circle(dst, c.pt(), scaled(4, s), color.RGBA{R: 30, G: 20, B: 30, A: 255}, -1)
}

// sampleCurve samples a Bezier given in head-local units around c.
func sampleCurve(c, p0, p1, p2, p3 vec, s float64) []image.Point {
	return sampleBezier(c.add(p0.scale(s)), c.add(p1.scale(s)), c.add(p2.scale(s)), c.add(p3.scale(s)), 16)
}
