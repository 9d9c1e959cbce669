package capture

import (
	"image/color"
	"testing"
	"time"
)

func TestNewMotionGate_Defaults(t *testing.T) {
	g := NewMotionGate(0, 0)
	defer g.Close()
	if g.percent != DefaultMotionPercent {
		t.Errorf("percent = %f, want %f", g.percent, DefaultMotionPercent)
	}
	if g.idleAfter != DefaultIdleAfter {
		t.Errorf("idleAfter = %v, want %v", g.idleAfter, DefaultIdleAfter)
	}
	if g.Active() {
		t.Error("gate should start closed")
	}
}

func TestMotionGate_Sequence(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	black := SolidFrame(640, 480, color.RGBA{})
	defer black.Close()
	white := SolidFrame(640, 480, color.RGBA{R: 255, G: 255, B: 255})
	defer white.Close()

	g := NewMotionGate(1.0, time.Second)
	defer g.Close()
	t0 := time.Unix(1000, 0)

	steps := []struct {
		name  string
		frame bool // true = white
		at    time.Duration
		want  bool
	}{
		{name: "first frame opens", at: 0, want: true},
		{name: "still but recent", at: 500 * time.Millisecond, want: true},
		{name: "still past idle", at: 1600 * time.Millisecond, want: false},
		{name: "stays idle", at: 1700 * time.Millisecond, want: false},
		{name: "movement reopens", frame: true, at: 1800 * time.Millisecond, want: true},
	}
	for _, st := range steps {
		frame := black
		if st.frame {
			frame = white
		}
		if got := g.Check(frame, t0.Add(st.at)); got != st.want {
			t.Fatalf("%s: Check = %v, want %v (change %.2f%%)", st.name, got, st.want, g.Change())
		}
	}
	if g.Change() < 99 {
		t.Errorf("full-frame change = %.2f%%, want ~100%%", g.Change())
	}
}

func TestMotionGate_SizeChangeRebaselines(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	small := SolidFrame(160, 120, color.RGBA{})
	defer small.Close()
	large := SolidFrame(320, 240, color.RGBA{})
	defer large.Close()

	g := NewMotionGate(1.0, time.Millisecond)
	defer g.Close()
	t0 := time.Unix(0, 0)

	g.Check(small, t0)
	if g.Check(small, t0.Add(time.Second)) {
		t.Fatal("gate should have closed")
	}
	if !g.Check(large, t0.Add(2*time.Second)) {
		t.Error("a new frame size should reopen the gate")
	}

	g.Reset()
	if g.Active() {
		t.Error("Reset should close the gate")
	}
}

func TestMotionGate_NilFrame(t *testing.T) {
	g := NewMotionGate(1, time.Second)
	defer g.Close()
	if g.Check(nil, time.Now()) {
		t.Error("nil frame on a fresh gate should report inactive")
	}
}
