// Package detector provides the perception contract: hand landmarks and face
// blendshape scores per video frame, plus the implementations that produce them.
package detector

import "math"

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// JawOpen is the blendshape category used for the mouth-open signal.
const JawOpen = "jawOpen"

// Point3D represents a normalized landmark. X and Y are in [0,1] relative to
// the source frame; Z is the relative depth reported by the landmarker.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks represents the 21 hand landmarks detected by MediaPipe.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`

	// Partial is set when the detector reported fewer than NumLandmarks
	// points. Partial hands are treated as not detected.
	Partial bool `json:"partial,omitempty"`
}

// Category is one named blendshape score.
type Category struct {
	Name  string  `json:"categoryName"`
	Score float64 `json:"score"`
}

// Blendshapes is the set of expression scores for one detected face.
type Blendshapes struct {
	Categories []Category `json:"categories"`
}

// Score returns the score of the named category.
func (b Blendshapes) Score(name string) (float64, bool) {
	for _, c := range b.Categories {
		if c.Name == name {
			return c.Score, true
		}
	}
	return 0, false
}

// Result is one frame's detection output. Either list may be empty.
type Result struct {
	Hands []HandLandmarks `json:"hands,omitempty"`
	Faces []Blendshapes   `json:"faces,omitempty"`
}

// PrimaryHand returns the first complete hand, if any.
func (r *Result) PrimaryHand() (*HandLandmarks, bool) {
	if r == nil {
		return nil, false
	}
	for i := range r.Hands {
		if !r.Hands[i].Partial {
			return &r.Hands[i], true
		}
	}
	return nil, false
}

// PrimaryFace returns the first face, if any.
func (r *Result) PrimaryFace() (*Blendshapes, bool) {
	if r == nil || len(r.Faces) == 0 {
		return nil, false
	}
	return &r.Faces[0], true
}

// Empty reports whether the result carries no hands and no faces.
func (r *Result) Empty() bool {
	return r == nil || (len(r.Hands) == 0 && len(r.Faces) == 0)
}

// Distance2D is the Euclidean distance between two points ignoring depth.
func Distance2D(a, b Point3D) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b Point3D) Point3D {
	return Point3D{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2, Z: (a.Z + b.Z) / 2}
}

// FingerExtension returns, for each non-thumb finger (index, middle, ring,
// pinky), the ratio of tip-to-wrist distance to knuckle-to-wrist distance.
// A ratio near or below 1 means the finger is folded toward the palm.
func (h *HandLandmarks) FingerExtension() [4]float64 {
	var ratios [4]float64
	if h == nil {
		for i := range ratios {
			ratios[i] = math.Inf(1)
		}
		return ratios
	}
	wrist := h.Points[Wrist]
	fingers := [4][2]int{
		{IndexMCP, IndexTip},
		{MiddleMCP, MiddleTip},
		{RingMCP, RingTip},
		{PinkyMCP, PinkyTip},
	}
	for i, f := range fingers {
		base := Distance2D(h.Points[f[0]], wrist)
		if base < 1e-10 {
			// Degenerate hand: treat the finger as extended.
			ratios[i] = math.Inf(1)
			continue
		}
		ratios[i] = Distance2D(h.Points[f[1]], wrist) / base
	}
	return ratios
}
