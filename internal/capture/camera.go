// Package capture reads the webcam and runs landmark detection off the frame
// loop.
package capture

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Default camera settings
const (
	DefaultFPS    = 30
	DefaultWidth  = 1280
	DefaultHeight = 720
)

// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
var ErrCameraNotOpen = errors.New("camera is not open")

// Camera is a source of BGR video frames.
type Camera interface {
	Open() error
	Close() error
	// ReadFrame returns the next frame. The caller closes the Mat.
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	// Size is the negotiated frame size; zero until the camera is open.
	Size() image.Point
	IsOpen() bool
}

// Options selects a capture device and its requested format.
type Options struct {
	DeviceID int
	Width    int
	Height   int
	FPS      int
}

// Read errors. A failed read usually means the device was unplugged.
var (
	ErrReadFailed = errors.New("camera read failed")
	ErrEmptyFrame = errors.New("camera returned an empty frame")
)

// device is a Camera backed by gocv.VideoCapture. An open device has a
// non-nil capture.
type device struct {
	mu      sync.Mutex
	opts    Options
	capture *gocv.VideoCapture
	size    image.Point
}

// NewCamera creates a Camera for the given device. Zero fields in opts take
// the package defaults.
func NewCamera(opts Options) Camera {
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = DefaultWidth, DefaultHeight
	}
	if opts.FPS <= 0 {
		opts.FPS = DefaultFPS
	}
	return &device{opts: opts}
}

// Open opens the device and negotiates the requested resolution. The driver
// may pick a different size; Size reports what it chose.
func (d *device) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.capture != nil {
		return nil
	}

	vc, err := gocv.OpenVideoCapture(d.opts.DeviceID)
	if err != nil {
		return fmt.Errorf("open camera %d: %w", d.opts.DeviceID, err)
	}
	for prop, value := range map[gocv.VideoCaptureProperties]int{
		gocv.VideoCaptureFrameWidth:  d.opts.Width,
		gocv.VideoCaptureFrameHeight: d.opts.Height,
		gocv.VideoCaptureFPS:         d.opts.FPS,
	} {
		vc.Set(prop, float64(value))
	}

	d.capture = vc
	d.size = image.Pt(int(vc.Get(gocv.VideoCaptureFrameWidth)), int(vc.Get(gocv.VideoCaptureFrameHeight)))
	return nil
}

// Close releases the device. Closing a closed camera is a no-op.
func (d *device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.capture == nil {
		return nil
	}
	err := d.capture.Close()
	d.capture, d.size = nil, image.Point{}
	return err
}

func (d *device) ReadFrame() (*gocv.Mat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.capture == nil {
		return nil, ErrCameraNotOpen
	}

	frame := gocv.NewMat()
	switch {
	case !d.capture.Read(&frame):
		frame.Close()
		return nil, fmt.Errorf("camera %d: %w", d.opts.DeviceID, ErrReadFailed)
	case frame.Empty():
		frame.Close()
		return nil, fmt.Errorf("camera %d: %w", d.opts.DeviceID, ErrEmptyFrame)
	}
	d.size = image.Pt(frame.Cols(), frame.Rows())
	return &frame, nil
}

// SetFPS changes the requested capture rate. Values <= 0 are ignored.
func (d *device) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opts.FPS = fps
	if d.capture != nil {
		d.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

func (d *device) FPS() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opts.FPS
}

func (d *device) Size() image.Point {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.size
}

func (d *device) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.capture != nil
}
