package capture

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/bloom/internal/detector"
)

const readRetryDelay = 100 * time.Millisecond

// DefaultHeartbeat is how often a gated stream still runs the detector while
// the scene is still.
const DefaultHeartbeat = 400 * time.Millisecond

// ErrStreamStopped is returned when starting a stream that was stopped.
var ErrStreamStopped = errors.New("stream stopped")

// Detection is one analysed frame. Seq increases by one per published result.
type Detection struct {
	Seq    uint64
	Result *detector.Result
	At     time.Time
}

// StreamOptions tunes the perception worker.
type StreamOptions struct {
	// Interval is the minimum spacing between camera reads. Zero lets the
	// camera pace the loop.
	Interval time.Duration

	// Gate skips detection while the scene is still. Nil analyses every frame.
	Gate *MotionGate

	// Heartbeat is the longest a closed gate may go without a detection.
	// Zero means DefaultHeartbeat.
	Heartbeat time.Duration

	// Now overrides the wall clock.
	Now func() time.Time
}

// StreamStats counts what the worker has done since Start.
type StreamStats struct {
	Frames   uint64 `json:"frames"`
	Analysed uint64 `json:"analysed"`
	Skipped  uint64 `json:"skipped"`
	Errors   uint64 `json:"errors"`
	Active   bool   `json:"active"`
}

// Stream reads frames on its own goroutine, runs the detector on them and
// hands results to the frame loop through a single-slot mailbox. A newer
// result overwrites an unread one.
type Stream struct {
	cam  Camera
	det  detector.Detector
	opts StreamOptions

	mu       sync.Mutex
	latest   gocv.Mat
	hasFrame bool
	slot     *Detection
	seq      uint64
	stats    StreamStats
	failing  bool

	// lastDetect is only touched by the worker goroutine.
	lastDetect time.Time

	ready     chan struct{}
	readyOnce sync.Once
	stopped   chan struct{}
	stopOnce  sync.Once
	stopCh    chan struct{}
	done      chan struct{}
}

// NewStream wires a camera to a detector. det may be nil for a video-only
// stream.
func NewStream(cam Camera, det detector.Detector, opts StreamOptions) *Stream {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = DefaultHeartbeat
	}
	return &Stream{
		cam:     cam,
		det:     det,
		opts:    opts,
		latest:  gocv.NewMat(),
		ready:   make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start opens the camera and launches the worker.
func (s *Stream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopCh != nil {
		return nil
	}
	select {
	case <-s.stopped:
		return ErrStreamStopped
	default:
	}
	if err := s.cam.Open(); err != nil {
		return fmt.Errorf("start stream: %w", err)
	}

	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stopCh, s.done)

	log.Println("[Capture] stream started")
	return nil
}

// Stop halts the worker and closes the camera. The last detection stays in
// the mailbox. A stopped stream cannot be started again.
func (s *Stream) Stop() {
	s.mu.Lock()
	stopCh, done := s.stopCh, s.done
	s.stopCh, s.done = nil, nil
	s.mu.Unlock()
	s.stopOnce.Do(func() { close(s.stopped) })

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-done

	if err := s.cam.Close(); err != nil {
		log.Printf("[Capture] error closing camera: %v", err)
	}
	if s.opts.Gate != nil {
		s.opts.Gate.Reset()
	}
	log.Println("[Capture] stream stopped")
}

// Close stops the stream and frees the cached frame.
func (s *Stream) Close() {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest.Close()
	s.hasFrame = false
}

// Ready is closed once the first frame has been read.
func (s *Stream) Ready() <-chan struct{} {
	return s.ready
}

// Done is closed once Stop has been called.
func (s *Stream) Done() <-chan struct{} {
	return s.stopped
}

// Poll takes the pending detection without blocking.
func (s *Stream) Poll() (Detection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slot == nil {
		return Detection{}, false
	}
	d := *s.slot
	s.slot = nil
	return d, true
}

// LatestFrame copies the most recent camera frame into dst.
func (s *Stream) LatestFrame(dst *gocv.Mat) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasFrame || s.latest.Empty() {
		return false
	}
	s.latest.CopyTo(dst)
	return true
}

// Stats returns a copy of the worker counters.
func (s *Stream) Stats() StreamStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	if s.opts.Gate != nil {
		st.Active = s.opts.Gate.Active()
	} else {
		st.Active = s.stopCh != nil
	}
	return st
}

func (s *Stream) run(stopCh, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		frame, err := s.cam.ReadFrame()
		if err != nil {
			s.noteFailure("read frame", err)
			if !wait(stopCh, readRetryDelay) {
				return
			}
			continue
		}
		s.process(frame)
		frame.Close()

		if s.opts.Interval > 0 && !wait(stopCh, s.opts.Interval) {
			return
		}
	}
}

func (s *Stream) process(frame *gocv.Mat) {
	now := s.opts.Now()

	s.mu.Lock()
	frame.CopyTo(&s.latest)
	s.hasFrame = true
	s.stats.Frames++
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })

	if s.det == nil {
		return
	}
	if s.opts.Gate != nil && !s.opts.Gate.Check(frame, now) && now.Sub(s.lastDetect) < s.opts.Heartbeat {
		s.mu.Lock()
		s.stats.Skipped++
		s.mu.Unlock()
		return
	}

	s.lastDetect = now
	res, err := s.det.Detect(frame)
	if err != nil {
		s.noteFailure("detect", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		log.Println("[Capture] recovered")
		s.failing = false
	}
	s.seq++
	s.stats.Analysed++
	s.slot = &Detection{Seq: s.seq, Result: res, At: now}
}

// noteFailure counts an error and logs only the first of a run.
func (s *Stream) noteFailure(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Errors++
	if s.failing {
		return
	}
	s.failing = true
	if errors.Is(err, ErrNoFrames) {
		log.Printf("[Capture] %s: camera has no more frames", op)
		return
	}
	log.Printf("[Capture] %s: %v", op, err)
}

func wait(stopCh <-chan struct{}, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-stopCh:
		return false
	case <-timer.C:
		return true
	}
}
