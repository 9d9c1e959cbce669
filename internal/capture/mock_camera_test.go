package capture

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"gocv.io/x/gocv"
)

func TestMockCamera_Playback(t *testing.T) {
	red := SolidFrame(64, 48, color.RGBA{R: 255})
	defer red.Close()
	blue := SolidFrame(64, 48, color.RGBA{B: 255})
	defer blue.Close()

	cam := NewMockCamera([]*gocv.Mat{red, blue}, false)
	if _, err := cam.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("read before Open: %v", err)
	}
	if err := cam.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer cam.Close()

	if got := cam.Size(); got != image.Pt(64, 48) {
		t.Errorf("Size() = %v", got)
	}

	f1, err := cam.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if px := f1.GetVecbAt(0, 0); px[2] != 255 {
		t.Errorf("first frame pixel = %v, want red", px)
	}
	f1.Close()

	f2, err := cam.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if px := f2.GetVecbAt(0, 0); px[0] != 255 {
		t.Errorf("second frame pixel = %v, want blue", px)
	}
	f2.Close()

	if _, err := cam.ReadFrame(); !errors.Is(err, ErrNoFrames) {
		t.Errorf("third read error = %v, want ErrNoFrames", err)
	}
	if cam.Reads() != 2 {
		t.Errorf("Reads() = %d, want 2", cam.Reads())
	}
}

func TestMockCamera_Loop(t *testing.T) {
	frame := SolidFrame(32, 24, color.RGBA{G: 128})
	defer frame.Close()

	cam := NewMockCamera([]*gocv.Mat{frame}, true)
	cam.Open()
	defer cam.Close()

	for i := 0; i < 5; i++ {
		f, err := cam.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame() iteration %d error = %v", i, err)
		}
		f.Close()
	}
}

func TestMockCamera_OpenError(t *testing.T) {
	cam := NewMockCamera(nil, false)
	want := errors.New("device busy")
	cam.SetOpenError(want)
	if err := cam.Open(); !errors.Is(err, want) {
		t.Errorf("Open() = %v, want %v", err, want)
	}
	if cam.IsOpen() {
		t.Error("camera should stay closed after a failed Open")
	}
}
