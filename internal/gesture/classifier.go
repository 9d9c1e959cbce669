// Package gesture turns per-frame landmark detections into debounced
// interaction signals: pinch (with an edge-triggered plant request),
// mouth-open, fist, and the fist-hold accumulator that gates clearing.
package gesture

import (
	"math"
	"time"

	"github.com/ayusman/bloom/internal/detector"
)

// holdEpsilon absorbs float accumulation error when comparing the fist hold
// against the clear threshold.
const holdEpsilon = 1e-9

// Config holds the classifier thresholds.
type Config struct {
	// EngageDistance is the thumb/index distance below which a pinch engages.
	EngageDistance float64
	// ReleaseDistance is the distance above which an engaged pinch releases.
	ReleaseDistance float64
	// MaxDepthGap rejects pinches whose fingertips differ this much in depth.
	MaxDepthGap float64
	// PlantCooldown is the minimum wall-clock gap between plant requests.
	PlantCooldown time.Duration

	// JawOpenThreshold is the jawOpen score above which the mouth counts as open.
	JawOpenThreshold float64

	// FoldRatio is the tip/knuckle distance ratio below which a finger is folded.
	FoldRatio float64
	// FoldedFingers is how many of the four fingers must fold for a fist.
	FoldedFingers int

	// ClearHoldSeconds is how long a fist must be held to clear the garden.
	ClearHoldSeconds float64
	// GracePeriod is how long the fist may vanish before the hold resets.
	GracePeriod float64
}

// DefaultConfig returns the tuned thresholds.
func DefaultConfig() Config {
	return Config{
		EngageDistance:   0.045,
		ReleaseDistance:  0.065,
		MaxDepthGap:      0.08,
		PlantCooldown:    350 * time.Millisecond,
		JawOpenThreshold: 0.25,
		FoldRatio:        1.1,
		FoldedFingers:    3,
		ClearHoldSeconds: 2.0,
		GracePeriod:      0.25,
	}
}

// PinchState is the pinch hysteresis state.
type PinchState int

const (
	PinchIdle PinchState = iota
	PinchEngaged
)

func (s PinchState) String() string {
	if s == PinchEngaged {
		return "engaged"
	}
	return "idle"
}

// Signals is the classifier output for one tick.
type Signals struct {
	Pinching       bool             `json:"pinching"`
	PlantRequested bool             `json:"plantRequested"`
	PlantAt        detector.Point3D `json:"plantAt"`

	MouthOpen bool `json:"mouthOpen"`

	FistActive        bool    `json:"fistActive"`
	ClearTriggered    bool    `json:"clearTriggered"`
	HoldSeconds       float64 `json:"holdSeconds"`
	SecondsUntilClear float64 `json:"secondsUntilClear"`

	HandsSeen bool `json:"handsSeen"`
	FaceSeen  bool `json:"faceSeen"`
}

// Classifier owns the debouncing state for all gestures. It is not safe for
// concurrent use; the loop calls it from the tick only.
type Classifier struct {
	cfg Config

	pinch     PinchState
	lastPlant time.Time
	planted   bool

	hold   float64
	absent float64
}

// NewClassifier creates a classifier with the given thresholds.
func NewClassifier(cfg Config) *Classifier {
	return &Classifier{cfg: cfg}
}

// Config returns the classifier thresholds.
func (c *Classifier) Config() Config {
	return c.cfg
}

// PinchState returns the current pinch state.
func (c *Classifier) PinchState() PinchState {
	return c.pinch
}

// Reset clears all debouncing state.
func (c *Classifier) Reset() {
	c.pinch = PinchIdle
	c.planted = false
	c.lastPlant = time.Time{}
	c.hold = 0
	c.absent = 0
}

// Classify evaluates one detection result. dt is the elapsed time in seconds
// since the previous call; now is the wall-clock time used for the plant
// cooldown. A nil result means nothing was detected.
func (c *Classifier) Classify(res *detector.Result, dt float64, now time.Time) Signals {
	if dt < 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		dt = 0
	}

	var sig Signals

	hand, handOK := res.PrimaryHand()
	sig.HandsSeen = handOK
	c.classifyPinch(hand, handOK, now, &sig)

	if face, ok := res.PrimaryFace(); ok {
		sig.FaceSeen = true
		if score, ok := face.Score(detector.JawOpen); ok {
			sig.MouthOpen = score > c.cfg.JawOpenThreshold
		}
	}

	if res != nil {
		for i := range res.Hands {
			if c.isFist(&res.Hands[i]) {
				sig.FistActive = true
				break
			}
		}
	}
	c.accumulateHold(sig.FistActive, dt, &sig)

	return sig
}

func (c *Classifier) classifyPinch(hand *detector.HandLandmarks, ok bool, now time.Time, sig *Signals) {
	if !ok {
		c.pinch = PinchIdle
		return
	}

	thumb := hand.Points[detector.ThumbTip]
	index := hand.Points[detector.IndexTip]
	d := detector.Distance2D(thumb, index)
	dz := math.Abs(thumb.Z - index.Z)

	switch c.pinch {
	case PinchIdle:
		if d < c.cfg.EngageDistance && dz < c.cfg.MaxDepthGap {
			c.pinch = PinchEngaged
			if !c.planted || now.Sub(c.lastPlant) >= c.cfg.PlantCooldown {
				sig.PlantRequested = true
				c.planted = true
				c.lastPlant = now
			}
		}
	case PinchEngaged:
		if d > c.cfg.ReleaseDistance {
			c.pinch = PinchIdle
		}
	}

	sig.Pinching = c.pinch == PinchEngaged
	sig.PlantAt = detector.Midpoint(thumb, index)
}

func (c *Classifier) isFist(hand *detector.HandLandmarks) bool {
	if hand.Partial {
		return false
	}
	folded := 0
	for _, ratio := range hand.FingerExtension() {
		if ratio < c.cfg.FoldRatio {
			folded++
		}
	}
	return folded >= c.cfg.FoldedFingers
}

func (c *Classifier) accumulateHold(fist bool, dt float64, sig *Signals) {
	if fist {
		c.absent = 0
		c.hold += dt
		if c.hold+holdEpsilon >= c.cfg.ClearHoldSeconds {
			sig.ClearTriggered = true
			c.hold = 0
		}
	} else {
		c.absent += dt
		if c.absent > c.cfg.GracePeriod {
			c.hold = 0
		}
	}

	sig.HoldSeconds = c.hold
	if c.hold > 0 {
		sig.SecondsUntilClear = math.Max(0, c.cfg.ClearHoldSeconds-c.hold)
	}
}
