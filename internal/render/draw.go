package render

import (
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"
)

// vec is a floating point pixel position.
type vec struct{ X, Y float64 }

func (v vec) add(o vec) vec       { return vec{v.X + o.X, v.Y + o.Y} }
func (v vec) scale(s float64) vec { return vec{v.X * s, v.Y * s} }
func (v vec) pt() image.Point     { return image.Pt(int(math.Round(v.X)), int(math.Round(v.Y))) }
func (v vec) rotate(rad float64) vec {
	s, c := math.Sincos(rad)
	return vec{v.X*c - v.Y*s, v.X*s + v.Y*c}
}

// bezier evaluates a cubic Bezier curve at t.
func bezier(p0, p1, p2, p3 vec, t float64) vec {
	u := 1 - t
	a := u * u * u
	b := 3 * u * u * t
	c := 3 * u * t * t
	d := t * t * t
	return vec{
		X: a*p0.X + b*p1.X + c*p2.X + d*p3.X,
		Y: a*p0.Y + b*p1.Y + c*p2.Y + d*p3.Y,
	}
}

// sampleBezier returns n+1 evenly spaced points along the curve.
func sampleBezier(p0, p1, p2, p3 vec, n int) []image.Point {
	pts := make([]image.Point, 0, n+1)
	for i := 0; i <= n; i++ {
		pts = append(pts, bezier(p0, p1, p2, p3, float64(i)/float64(n)).pt())
	}
	return pts
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func lerpColor(a, b color.RGBA, t float64) color.RGBA {
	return color.RGBA{
		R: uint8(math.Round(lerp(float64(a.R), float64(b.R), t))),
		G: uint8(math.Round(lerp(float64(a.G), float64(b.G), t))),
		B: uint8(math.Round(lerp(float64(a.B), float64(b.B), t))),
		A: 255,
	}
}

func shade(c color.RGBA, f float64) color.RGBA {
	return color.RGBA{
		R: uint8(math.Min(255, float64(c.R)*f)),
		G: uint8(math.Min(255, float64(c.G)*f)),
		B: uint8(math.Min(255, float64(c.B)*f)),
		A: 255,
	}
}

// hash01 maps (i, salt) to a stable pseudo-random value in [0, 1).
func hash01(i, salt uint64) float64 {
	x := i*0x9E3779B97F4A7C15 + salt*0xBF58476D1CE4E5B9
	x ^= x >> 30
	x *= 0xBF58476D1CE4E5B9
	x ^= x >> 27
	x *= 0x94D049BB133111EB
	x ^= x >> 31
	return float64(x>>11) / float64(1<<53)
}

func bounds(dst *gocv.Mat) image.Rectangle {
	return image.Rect(0, 0, dst.Cols(), dst.Rows())
}

// blendCircle draws a filled circle at the given opacity.
func blendCircle(dst *gocv.Mat, center image.Point, radius int, c color.RGBA, alpha float64) {
	if radius < 1 {
		radius = 1
	}
	area := image.Rect(center.X-radius-1, center.Y-radius-1, center.X+radius+2, center.Y+radius+2)
	blendRegion(dst, area, alpha, func(overlay *gocv.Mat, origin image.Point) {
		gocv.Circle(overlay, center.Sub(origin), radius, c, -1)
	})
}

// blendRect fills rect with c at the given opacity.
func blendRect(dst *gocv.Mat, rect image.Rectangle, c color.RGBA, alpha float64) {
	blendRegion(dst, rect, alpha, func(overlay *gocv.Mat, origin image.Point) {
		gocv.Rectangle(overlay, rect.Sub(origin), c, -1)
	})
}

// blendRegion runs paint on a copy of the clipped area and mixes it back in.
func blendRegion(dst *gocv.Mat, area image.Rectangle, alpha float64, paint func(overlay *gocv.Mat, origin image.Point)) {
	if alpha <= 0 {
		return
	}
	area = area.Intersect(bounds(dst))
	if area.Empty() {
		return
	}
	if alpha >= 1 {
		roi := dst.Region(area)
		defer roi.Close()
		paint(&roi, area.Min)
		return
	}

	roi := dst.Region(area)
	defer roi.Close()
	overlay := roi.Clone()
	defer overlay.Close()

	paint(&overlay, area.Min)
	gocv.AddWeighted(overlay, alpha, roi, 1-alpha, 0, &roi)
}

func fillPoly(dst *gocv.Mat, pts []image.Point, c color.RGBA) {
	if len(pts) < 3 {
		return
	}
	pv := gocv.NewPointsVectorFromPoints([][]image.Point{pts})
	defer pv.Close()
	gocv.FillPoly(dst, pv, c)
}

func polyline(dst *gocv.Mat, pts []image.Point, c color.RGBA, thickness int) {
	if len(pts) < 2 {
		return
	}
	pv := gocv.NewPointsVectorFromPoints([][]image.Point{pts})
	defer pv.Close()
	gocv.Polylines(dst, pv, false, c, thickness)
}

func scaled(v, s float64) int {
	n := int(math.Round(v * s))
	if n < 1 {
		return 1
	}
	return n
}
