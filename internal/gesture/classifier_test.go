package gesture

import (
	"math"
	"testing"
	"time"

	"github.com/ayusman/bloom/internal/detector"
)

const epsilon = 1e-9

func hands(h ...detector.HandLandmarks) *detector.Result {
	return &detector.Result{Hands: h}
}

func TestClassifier_PinchHysteresis(t *testing.T) {
	c := NewClassifier(DefaultConfig())
	now := time.Unix(1000, 0)

	steps := []struct {
		name     string
		gap      float64
		pinching bool
	}{
		{"between thresholds from idle stays idle", 0.05, false},
		{"below engage engages", 0.02, true},
		{"between thresholds while engaged holds", 0.05, true},
		{"just under release holds", 0.064, true},
		{"above release releases", 0.07, false},
		{"between thresholds after release stays idle", 0.05, false},
	}

	for _, step := range steps {
		t.Run(step.name, func(t *testing.T) {
			now = now.Add(time.Second)
			sig := c.Classify(hands(detector.PinchLandmarks(0.5, 0.4, step.gap)), 1.0/60, now)
			if sig.Pinching != step.pinching {
				t.Errorf("gap %.3f: pinching = %v, want %v", step.gap, sig.Pinching, step.pinching)
			}
		})
	}
}

func TestClassifier_PinchRejectsDepthGap(t *testing.T) {
	c := NewClassifier(DefaultConfig())
	hand := detector.PinchLandmarks(0.5, 0.4, 0.02)
	hand.Points[detector.ThumbTip].Z = 0.1

	sig := c.Classify(hands(hand), 1.0/60, time.Now())
	if sig.Pinching || sig.PlantRequested {
		t.Error("fingertips far apart in depth must not pinch")
	}
}

func TestClassifier_PlantIsEdgeTriggered(t *testing.T) {
	c := NewClassifier(DefaultConfig())
	start := time.Unix(1000, 0)
	pinch := hands(detector.PinchLandmarks(0.5, 0.4, 0.02))

	plants := 0
	for i := 0; i < 120; i++ {
		now := start.Add(time.Duration(i) * time.Second / 60)
		if c.Classify(pinch, 1.0/60, now).PlantRequested {
			plants++
			if i != 0 {
				t.Errorf("plant requested on tick %d, want only the first tick", i)
			}
		}
	}
	if plants != 1 {
		t.Errorf("held pinch produced %d plants, want 1", plants)
	}
}

func TestClassifier_PlantCooldown(t *testing.T) {
	c := NewClassifier(DefaultConfig())
	start := time.Unix(1000, 0)
	pinch := hands(detector.PinchLandmarks(0.5, 0.4, 0.02))
	open := hands(detector.OpenPalmLandmarks())

	tests := []struct {
		name  string
		at    time.Duration
		res   *detector.Result
		plant bool
	}{
		{"first pinch plants", 0, pinch, true},
		{"release", 100 * time.Millisecond, open, false},
		{"re-pinch inside cooldown", 200 * time.Millisecond, pinch, false},
		{"release again", 300 * time.Millisecond, open, false},
		{"re-pinch after cooldown", 400 * time.Millisecond, pinch, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := c.Classify(tt.res, 0.1, start.Add(tt.at))
			if sig.PlantRequested != tt.plant {
				t.Errorf("PlantRequested = %v, want %v", sig.PlantRequested, tt.plant)
			}
		})
	}
}

func TestClassifier_PlantAtMidpoint(t *testing.T) {
	c := NewClassifier(DefaultConfig())
	sig := c.Classify(hands(detector.PinchLandmarks(0.25, 0.5, 0.02)), 1.0/60, time.Now())
	if !sig.PlantRequested {
		t.Fatal("expected plant request")
	}
	if math.Abs(sig.PlantAt.X-0.25) > epsilon || math.Abs(sig.PlantAt.Y-0.5) > epsilon {
		t.Errorf("PlantAt = (%f, %f), want (0.25, 0.5)", sig.PlantAt.X, sig.PlantAt.Y)
	}
}

func TestClassifier_HandLossReleasesPinch(t *testing.T) {
	c := NewClassifier(DefaultConfig())
	now := time.Unix(1000, 0)
	c.Classify(hands(detector.PinchLandmarks(0.5, 0.4, 0.02)), 1.0/60, now)
	if c.PinchState() != PinchEngaged {
		t.Fatal("expected engaged pinch")
	}

	sig := c.Classify(nil, 1.0/60, now.Add(time.Second))
	if sig.Pinching || c.PinchState() != PinchIdle {
		t.Error("losing the hand must release the pinch")
	}
	if sig.HandsSeen {
		t.Error("HandsSeen should be false for a nil result")
	}
}

func TestClassifier_MouthOpen(t *testing.T) {
	tests := []struct {
		name string
		res  *detector.Result
		want bool
	}{
		{"no result", nil, false},
		{"no face", &detector.Result{}, false},
		{"closed", &detector.Result{Faces: []detector.Blendshapes{detector.JawOpenFace(0.1)}}, false},
		{"at threshold", &detector.Result{Faces: []detector.Blendshapes{detector.JawOpenFace(0.25)}}, false},
		{"open", &detector.Result{Faces: []detector.Blendshapes{detector.JawOpenFace(0.6)}}, true},
		{"empty blendshapes", &detector.Result{Faces: []detector.Blendshapes{{}}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(DefaultConfig())
			if got := c.Classify(tt.res, 1.0/60, time.Now()).MouthOpen; got != tt.want {
				t.Errorf("MouthOpen = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifier_Fist(t *testing.T) {
	twoFolded := detector.OpenPalmLandmarks()
	fist := detector.FistLandmarks()
	twoFolded.Points[detector.IndexTip] = fist.Points[detector.IndexTip]
	twoFolded.Points[detector.MiddleTip] = fist.Points[detector.MiddleTip]

	threeFolded := twoFolded
	threeFolded.Points[detector.RingTip] = fist.Points[detector.RingTip]

	partialFist := detector.FistLandmarks()
	partialFist.Partial = true

	tests := []struct {
		name string
		res  *detector.Result
		want bool
	}{
		{"open palm", hands(detector.OpenPalmLandmarks()), false},
		{"two fingers folded", hands(twoFolded), false},
		{"three fingers folded", hands(threeFolded), true},
		{"full fist", hands(detector.FistLandmarks()), true},
		{"second hand fist counts", hands(detector.OpenPalmLandmarks(), detector.FistLandmarks()), true},
		{"partial hand ignored", hands(partialFist), false},
		{"nil result", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(DefaultConfig())
			if got := c.Classify(tt.res, 1.0/60, time.Now()).FistActive; got != tt.want {
				t.Errorf("FistActive = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifier_ClearFiresExactlyAtThreshold(t *testing.T) {
	c := NewClassifier(DefaultConfig())
	fist := hands(detector.FistLandmarks())
	now := time.Unix(1000, 0)
	const dt = 0.25 // 8 ticks == 2.0s

	for i := 1; i <= 7; i++ {
		sig := c.Classify(fist, dt, now)
		if sig.ClearTriggered {
			t.Fatalf("clear fired early on tick %d", i)
		}
		if math.Abs(sig.HoldSeconds-float64(i)*dt) > epsilon {
			t.Errorf("tick %d: hold = %f, want %f", i, sig.HoldSeconds, float64(i)*dt)
		}
	}

	sig := c.Classify(fist, dt, now)
	if !sig.ClearTriggered {
		t.Fatal("expected clear on the threshold tick")
	}
	if sig.HoldSeconds != 0 {
		t.Errorf("hold after clear = %f, want 0", sig.HoldSeconds)
	}

	sig = c.Classify(fist, dt, now)
	if sig.ClearTriggered {
		t.Error("clear must fire once, not again on the next tick")
	}
}

func TestClassifier_ClearWithSixtyHertzTicks(t *testing.T) {
	c := NewClassifier(DefaultConfig())
	fist := hands(detector.FistLandmarks())

	clears := 0
	for i := 0; i < 120; i++ {
		if c.Classify(fist, 1.0/60, time.Now()).ClearTriggered {
			clears++
			if i != 119 {
				t.Errorf("clear fired on tick %d, want 119", i)
			}
		}
	}
	if clears != 1 {
		t.Errorf("clears = %d, want 1", clears)
	}
}

func TestClassifier_GracePeriod(t *testing.T) {
	fist := hands(detector.FistLandmarks())

	t.Run("short gap keeps progress", func(t *testing.T) {
		c := NewClassifier(DefaultConfig())
		for i := 0; i < 4; i++ {
			c.Classify(fist, 0.25, time.Now())
		}
		sig := c.Classify(nil, 0.125, time.Now())
		if math.Abs(sig.HoldSeconds-1.0) > epsilon {
			t.Fatalf("hold after short gap = %f, want 1.0", sig.HoldSeconds)
		}
		sig = c.Classify(fist, 0.125, time.Now())
		if math.Abs(sig.HoldSeconds-1.125) > epsilon {
			t.Errorf("hold after resume = %f, want 1.125", sig.HoldSeconds)
		}
	})

	t.Run("long gap resets", func(t *testing.T) {
		c := NewClassifier(DefaultConfig())
		for i := 0; i < 4; i++ {
			c.Classify(fist, 0.25, time.Now())
		}
		sig := c.Classify(nil, 0.5, time.Now())
		if sig.HoldSeconds != 0 {
			t.Errorf("hold after long gap = %f, want 0", sig.HoldSeconds)
		}
	})

	t.Run("gaps accumulate across ticks", func(t *testing.T) {
		c := NewClassifier(DefaultConfig())
		for i := 0; i < 4; i++ {
			c.Classify(fist, 0.25, time.Now())
		}
		c.Classify(nil, 0.125, time.Now())
		c.Classify(nil, 0.125, time.Now())
		sig := c.Classify(nil, 0.125, time.Now())
		if sig.HoldSeconds != 0 {
			t.Errorf("hold after sustained absence = %f, want 0", sig.HoldSeconds)
		}
	})
}

func TestClassifier_SecondsUntilClear(t *testing.T) {
	c := NewClassifier(DefaultConfig())
	sig := c.Classify(nil, 0.5, time.Now())
	if sig.SecondsUntilClear != 0 {
		t.Errorf("idle countdown = %f, want 0", sig.SecondsUntilClear)
	}

	sig = c.Classify(hands(detector.FistLandmarks()), 0.5, time.Now())
	if math.Abs(sig.SecondsUntilClear-1.5) > epsilon {
		t.Errorf("countdown = %f, want 1.5", sig.SecondsUntilClear)
	}
}

func TestClassifier_BadDelta(t *testing.T) {
	c := NewClassifier(DefaultConfig())
	fist := hands(detector.FistLandmarks())
	for _, dt := range []float64{-1, math.NaN(), math.Inf(1)} {
		sig := c.Classify(fist, dt, time.Now())
		if sig.HoldSeconds != 0 || sig.ClearTriggered {
			t.Errorf("dt %v advanced the hold to %f", dt, sig.HoldSeconds)
		}
	}
}

func TestClassifier_Reset(t *testing.T) {
	c := NewClassifier(DefaultConfig())
	now := time.Unix(1000, 0)
	c.Classify(hands(detector.PinchLandmarks(0.5, 0.4, 0.02)), 0.5, now)
	c.Classify(hands(detector.FistLandmarks()), 0.5, now)

	c.Reset()
	if c.PinchState() != PinchIdle {
		t.Error("Reset should idle the pinch")
	}

	sig := c.Classify(hands(detector.PinchLandmarks(0.5, 0.4, 0.02)), 0, now)
	if !sig.PlantRequested {
		t.Error("Reset should clear the plant cooldown")
	}
	if sig.HoldSeconds != 0 {
		t.Errorf("Reset should clear the hold, got %f", sig.HoldSeconds)
	}
}
