package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"math/rand/v2"
	"runtime/debug"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/bloom/internal/caption"
	"github.com/ayusman/bloom/internal/capture"
	"github.com/ayusman/bloom/internal/detector"
	"github.com/ayusman/bloom/internal/garden"
	"github.com/ayusman/bloom/internal/gesture"
	"github.com/ayusman/bloom/internal/plugin"
	"github.com/ayusman/bloom/internal/render"
	"github.com/ayusman/bloom/internal/store"
)

// State is the loop lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateAwaitingStream
	StateRunning
	StateSuspended
)

func (s State) String() string {
	switch s {
	case StateAwaitingStream:
		return "awaiting-stream"
	case StateRunning:
		return "running"
	case StateSuspended:
		return "suspended"
	default:
		return "uninitialized"
	}
}

var (
	// ErrNotRunning is returned by operations that need an attached stream
	// or a running loop.
	ErrNotRunning = errors.New("loop is not running")
	// ErrNotInitialized is returned when Init has not been called.
	ErrNotInitialized = errors.New("loop is not initialized")
	// ErrNoFrame is returned before the first frame has been rendered.
	ErrNoFrame = errors.New("no frame rendered yet")
)

// Viewport reports the drawable surface size. A zero size pauses rendering.
type Viewport interface {
	Size() image.Point
}

// FixedViewport is a viewport that never changes size.
type FixedViewport image.Point

func (v FixedViewport) Size() image.Point { return image.Point(v) }

// EventSink receives garden events for plugin hooks. Emit must not block.
type EventSink interface {
	Emit(ev plugin.Event, p plugin.Payload) bool
}

// Preferences persists the user's style settings.
type Preferences interface {
	Get() garden.Settings
	Set(s garden.Settings) garden.Settings
	Save() error
}

// Options wires a Loop to its collaborators. Clock and Viewport are
// required; everything else is optional.
type Options struct {
	Clock    FrameClock
	Viewport Viewport

	Detector        detector.Detector
	Gesture         gesture.Config
	Settings        garden.Settings
	Renderer        *render.Renderer
	Motion          *capture.MotionGate
	Heartbeat       time.Duration
	CaptureInterval time.Duration

	Analyzer    caption.Analyzer
	Store       *store.Store
	Events      EventSink
	Preferences Preferences
	KeepsakeDir string

	// DisableSnapshots turns periodic garden saves off. Captions and
	// keepsakes are still recorded in Store.
	DisableSnapshots bool
	SnapshotInterval time.Duration
	SnapshotKeep     int

	Rand *rand.Rand
	Now  func() time.Time
}

// Loop is the frame scheduler. Every tick runs on the frame clock callback
// under mu; commands from the tray, server and window take the same lock.
type Loop struct {
	opts Options

	mu       sync.Mutex
	state    State
	detReady bool
	stream   *capture.Stream

	classifier *gesture.Classifier
	engine     *garden.Engine
	renderer   *render.Renderer

	frame    gocv.Mat
	video    gocv.Mat
	rendered bool

	pending    FrameID
	hasPending bool
	frameGen   uint64

	started  time.Time
	lastTick time.Time
	last     *detector.Result
	lastSeq  uint64
	signals  gesture.Signals
	events   garden.Events

	ticks      uint64
	tickErrors uint64
	renderErr  bool

	captions captionState
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	saver    *snapshotSaver
	dirty    bool
	lastSave time.Time
}

// NewLoop creates a loop in the Uninitialized state.
func NewLoop(opts Options) *Loop {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Renderer == nil {
		opts.Renderer = render.New()
	}
	if opts.Gesture == (gesture.Config{}) {
		opts.Gesture = gesture.DefaultConfig()
	}
	if opts.Settings == (garden.Settings{}) {
		opts.Settings = garden.DefaultSettings()
	}
	if opts.SnapshotInterval <= 0 {
		opts.SnapshotInterval = DefaultSnapshotInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Loop{
		opts:       opts,
		ctx:        ctx,
		cancel:     cancel,
		classifier: gesture.NewClassifier(opts.Gesture),
		engine:     garden.NewEngine(garden.New(0, 0), opts.Settings, opts.Rand),
		renderer:   opts.Renderer,
		frame:      gocv.NewMat(),
		video:      gocv.NewMat(),
	}
	if opts.Store != nil && !opts.DisableSnapshots {
		l.saver = newSnapshotSaver(opts.Store, opts.SnapshotKeep)
	}
	return l
}

// Init initialises the detector. A detector that fails to start is logged
// and the loop carries on without gesture input.
func (l *Loop) Init(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateUninitialized {
		return nil
	}
	if l.opts.Clock == nil || l.opts.Viewport == nil {
		return errors.New("loop needs a frame clock and a viewport")
	}

	if det := l.opts.Detector; det != nil {
		if err := det.Init(ctx); err != nil {
			log.Printf("[Loop] detector unavailable, garden will be idle: %v", err)
		} else {
			l.detReady = true
		}
	}
	l.started = l.opts.Now()
	l.state = StateAwaitingStream
	return nil
}

// State returns the lifecycle state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Attach starts reading cam. The loop enters Running when the first frame
// arrives. Attaching while running replaces the current camera.
func (l *Loop) Attach(cam capture.Camera) error {
	if l.State() == StateUninitialized {
		return ErrNotInitialized
	}
	if err := l.Detach(); err != nil && !errors.Is(err, ErrNotRunning) {
		return err
	}

	var det detector.Detector
	l.mu.Lock()
	if l.detReady {
		det = l.opts.Detector
	}
	l.mu.Unlock()

	stream := capture.NewStream(cam, det, capture.StreamOptions{
		Interval:  l.opts.CaptureInterval,
		Gate:      l.opts.Motion,
		Heartbeat: l.opts.Heartbeat,
		Now:       l.opts.Now,
	})
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("attach camera: %w", err)
	}

	l.mu.Lock()
	l.stream = stream
	l.state = StateAwaitingStream
	l.mu.Unlock()

	l.wg.Add(1)
	go l.awaitFirstFrame(stream)
	return nil
}

func (l *Loop) awaitFirstFrame(stream *capture.Stream) {
	defer l.wg.Done()
	select {
	case <-stream.Ready():
	case <-stream.Done():
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stream != stream || l.state != StateAwaitingStream {
		return
	}
	l.enterRunningLocked()
	log.Println("[Loop] first frame received, running")
}

// RunWithoutCamera starts the loop with no video input. The garden runs but
// only commands change it.
func (l *Loop) RunWithoutCamera() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.state {
	case StateUninitialized:
		return ErrNotInitialized
	case StateRunning:
		return nil
	}
	l.enterRunningLocked()
	log.Println("[Loop] running without camera")
	return nil
}

func (l *Loop) enterRunningLocked() {
	l.state = StateRunning
	l.lastTick = time.Time{}
	l.last = nil
	l.classifier.Reset()
	l.requestLocked()
}

// Detach cancels the outstanding frame request and stops the camera. The
// garden is kept; a later Attach resumes it.
func (l *Loop) Detach() error {
	l.mu.Lock()
	if l.state != StateRunning && l.state != StateAwaitingStream {
		l.mu.Unlock()
		return ErrNotRunning
	}
	l.cancelLocked()
	stream := l.stream
	l.stream = nil
	l.state = StateSuspended
	l.mu.Unlock()

	if stream != nil {
		stream.Close()
	}
	log.Println("[Loop] suspended")
	return nil
}

// Close detaches, saves a final snapshot, and releases the detector and
// frame buffers.
func (l *Loop) Close() error {
	_ = l.Detach()
	l.cancel()
	l.wg.Wait()

	l.mu.Lock()
	snap, flowers := l.snapshotLocked()
	save := l.saver != nil && (l.dirty || l.lastSave.IsZero()) && l.engine.Garden().Sized()
	if save {
		l.dirty = false
		l.lastSave = snap.CreatedAt
	}
	l.state = StateUninitialized
	l.mu.Unlock()

	var errs []error
	if l.saver != nil {
		if save {
			if err := l.saver.save(snap, flowers); err != nil {
				errs = append(errs, err)
			}
		}
		l.saver.close()
	}
	if det := l.opts.Detector; det != nil {
		if err := det.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close detector: %w", err))
		}
	}

	l.mu.Lock()
	l.frame.Close()
	l.video.Close()
	l.frame = gocv.NewMat()
	l.video = gocv.NewMat()
	l.rendered = false
	l.mu.Unlock()
	return errors.Join(errs...)
}

// requestLocked schedules the next tick unless one is already outstanding.
func (l *Loop) requestLocked() {
	if l.hasPending {
		return
	}
	l.frameGen++
	gen := l.frameGen
	l.pending = l.opts.Clock.Request(func(now time.Time) { l.tick(gen, now) })
	l.hasPending = true
}

func (l *Loop) cancelLocked() {
	if !l.hasPending {
		return
	}
	l.opts.Clock.Cancel(l.pending)
	l.hasPending = false
}

func (l *Loop) tick(gen uint64, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.hasPending || gen != l.frameGen {
		return
	}
	l.hasPending = false
	if l.state != StateRunning {
		return
	}

	defer l.requestLocked()
	defer func() {
		if r := recover(); r != nil {
			l.tickErrors++
			log.Printf("[Loop] recovered from panic in tick: %v\n%s", r, debug.Stack())
		}
	}()

	l.stepLocked(now)
}

func (l *Loop) stepLocked(now time.Time) {
	size := l.opts.Viewport.Size()
	if size.X <= 0 || size.Y <= 0 {
		return
	}
	l.resyncLocked(size)

	var dt time.Duration
	if !l.lastTick.IsZero() {
		dt = now.Sub(l.lastTick)
	}
	if dt > garden.MaxStep {
		dt = garden.MaxStep
	}
	l.lastTick = now

	if l.stream != nil {
		if d, ok := l.stream.Poll(); ok {
			l.last = d.Result
			l.lastSeq = d.Seq
		}
	}

	sig := l.classifier.Classify(l.last, dt.Seconds(), now)
	ev := l.engine.Step(dt, sig)
	l.signals = sig
	l.events = ev
	l.afterStepLocked(ev, now)

	var video *gocv.Mat
	if l.stream != nil && l.stream.LatestFrame(&l.video) {
		video = &l.video
	}

	g := l.engine.Garden()
	err := l.renderer.Render(&l.frame, g, l.engine.Settings(), video, now.Sub(l.started), l.hudLocked(g, sig))
	if err != nil {
		if !l.renderErr {
			log.Printf("[Loop] render failed: %v", err)
			l.renderErr = true
		}
		return
	}
	l.renderErr = false
	l.rendered = true
	l.ticks++
}

// resyncLocked keeps the frame buffer and garden at the viewport size.
func (l *Loop) resyncLocked(size image.Point) {
	g := l.engine.Garden()
	if g.Width != size.X || g.Height != size.Y {
		if g.Sized() {
			log.Printf("[Loop] viewport resized to %dx%d", size.X, size.Y)
		}
		g.Resize(size.X, size.Y)
	}
	if l.frame.Cols() != size.X || l.frame.Rows() != size.Y || l.frame.Type() != gocv.MatTypeCV8UC3 {
		l.frame.Close()
		l.frame = gocv.NewMatWithSize(size.Y, size.X, gocv.MatTypeCV8UC3)
		l.rendered = false
	}
}

func (l *Loop) hudLocked(g *garden.Garden, sig gesture.Signals) render.HUD {
	hud := render.HUD{
		Pinching:          sig.Pinching,
		SecondsUntilClear: sig.SecondsUntilClear,
	}
	if sig.Pinching {
		hud.PinchAt = image.Pt(int(sig.PlantAt.X*float64(g.Width)), int(sig.PlantAt.Y*float64(g.Height)))
	}
	if hold := l.opts.Gesture.ClearHoldSeconds; hold > 0 && sig.HoldSeconds > 0 {
		hud.HoldFraction = sig.HoldSeconds / hold
	}
	return hud
}

// afterStepLocked turns engine events into hooks and snapshot bookkeeping.
func (l *Loop) afterStepLocked(ev garden.Events, now time.Time) {
	if !ev.Empty() {
		l.dirty = true
	}
	count := len(l.engine.Garden().Flowers)
	if ev.Planted > 0 {
		l.emit(plugin.EventPlanted, plugin.Payload{FlowerCount: count, At: now})
	}
	if ev.Bloomed > 0 {
		p := plugin.Payload{FlowerCount: count, At: now}
		if f := l.lastBloomedLocked(); f != nil {
			p.FlowerID = f.ID
			p.Species = string(f.Species)
			p.Color = garden.ColorHex(f.Color)
		}
		l.emit(plugin.EventBloomed, p)
	}
	if ev.Cleared > 0 {
		l.emit(plugin.EventCleared, plugin.Payload{FlowerCount: ev.Cleared, At: now})
	}
	l.maybeSnapshotLocked(now)
}

// lastBloomedLocked returns the most recently planted flower that has opened.
func (l *Loop) lastBloomedLocked() *garden.Flower {
	flowers := l.engine.Garden().Flowers
	var best *garden.Flower
	for i := range flowers {
		f := &flowers[i]
		if f.BloomProgress <= 0 {
			continue
		}
		if best == nil || f.PlantedAt.After(best.PlantedAt) {
			best = f
		}
	}
	return best
}

func (l *Loop) emit(ev plugin.Event, p plugin.Payload) {
	if l.opts.Events == nil {
		return
	}
	p.Theme = string(l.engine.Settings().Theme)
	l.opts.Events.Emit(ev, p)
}

// CopyFrame copies the last rendered frame, in camera orientation, into dst.
func (l *Loop) CopyFrame(dst *gocv.Mat) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.rendered || l.frame.Empty() {
		return ErrNoFrame
	}
	l.frame.CopyTo(dst)
	return nil
}

// MirroredFrame returns the last rendered frame flipped for a selfie view.
// The caller closes the Mat.
func (l *Loop) MirroredFrame() (gocv.Mat, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.rendered || l.frame.Empty() {
		return gocv.NewMat(), ErrNoFrame
	}
	out := gocv.NewMat()
	if err := gocv.Flip(l.frame, &out, 1); err != nil {
		out.Close()
		return gocv.NewMat(), err
	}
	return out, nil
}
