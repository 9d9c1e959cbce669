package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Motion gate defaults.
const (
	// BlurSize is the Gaussian kernel applied before differencing.
	BlurSize = 21
	// DiffThreshold is the per-pixel grey level change that counts as motion.
	DiffThreshold = 25
	// DefaultMotionPercent is the share of changed pixels that marks motion.
	DefaultMotionPercent = 0.5
	// DefaultIdleAfter is how long the scene must be still before detection
	// pauses.
	DefaultIdleAfter = 2 * time.Second
	// analysisWidth is the width frames are shrunk to before differencing.
	analysisWidth = 320
)

// MotionGate decides whether a frame needs landmark detection. While the scene
// moves the gate stays active; after IdleAfter of stillness it closes and the
// last detection stays valid until something moves again.
type MotionGate struct {
	mu        sync.Mutex
	percent   float64
	idleAfter time.Duration
	prevGray  gocv.Mat
	primed    bool
	active    bool
	lastMove  time.Time
	change    float64
}

// NewMotionGate creates a gate. Non-positive arguments take the defaults.
func NewMotionGate(percent float64, idleAfter time.Duration) *MotionGate {
	if percent <= 0 {
		percent = DefaultMotionPercent
	}
	if idleAfter <= 0 {
		idleAfter = DefaultIdleAfter
	}
	return &MotionGate{
		percent:   percent,
		idleAfter: idleAfter,
		prevGray:  gocv.NewMat(),
	}
}

// Check reports whether frame should be analysed. The first frame always
// opens the gate.
func (m *MotionGate) Check(frame *gocv.Mat, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return m.active
	}

	blurred := prepare(frame)
	defer blurred.Close()

	if !m.primed || blurred.Cols() != m.prevGray.Cols() || blurred.Rows() != m.prevGray.Rows() {
		blurred.CopyTo(&m.prevGray)
		m.primed = true
		m.active = true
		m.lastMove = now
		m.change = 100
		return true
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, DiffThreshold, 255, gocv.ThresholdBinary)

	total := thresh.Rows() * thresh.Cols()
	m.change = float64(gocv.CountNonZero(thresh)) / float64(total) * 100
	blurred.CopyTo(&m.prevGray)

	if m.change > m.percent {
		m.lastMove = now
		m.active = true
	} else if m.active && now.Sub(m.lastMove) > m.idleAfter {
		m.active = false
	}
	return m.active
}

// prepare shrinks, greys and blurs a frame for differencing.
func prepare(frame *gocv.Mat) gocv.Mat {
	small := gocv.NewMat()
	defer small.Close()
	if frame.Cols() > analysisWidth {
		h := frame.Rows() * analysisWidth / frame.Cols()
		gocv.Resize(*frame, &small, image.Pt(analysisWidth, max(1, h)), 0, 0, gocv.InterpolationArea)
	} else {
		frame.CopyTo(&small)
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if small.Channels() > 1 {
		gocv.CvtColor(small, &gray, gocv.ColorBGRToGray)
	} else {
		small.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	gocv.GaussianBlur(gray, &blurred, image.Pt(BlurSize, BlurSize), 0, 0, gocv.BorderDefault)
	return blurred
}

// Active reports the last gate decision.
func (m *MotionGate) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Change is the percentage of pixels that changed in the last checked frame.
func (m *MotionGate) Change() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.change
}

// Reset forgets the baseline frame so the next Check opens the gate.
func (m *MotionGate) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.primed = false
	m.active = false
	m.change = 0
}

// Close releases the baseline frame.
func (m *MotionGate) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prevGray.Close()
	m.prevGray = gocv.NewMat()
	m.primed = false
	m.active = false
}
