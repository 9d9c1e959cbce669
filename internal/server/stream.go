package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/bloom/internal/compose"
)

// DefaultStreamInterval paces MJPEG frames at about 15 FPS.
const DefaultStreamInterval = 66 * time.Millisecond

// FrameSource provides the mirrored display frame.
type FrameSource interface {
	MirroredFrame() (gocv.Mat, error)
}

// StreamHandler serves the rendered garden as MJPEG.
type StreamHandler struct {
	frames   FrameSource
	interval time.Duration

	stopCh chan struct{}
	once   sync.Once
}

// NewStreamHandler creates a StreamHandler. A non-positive interval uses
// DefaultStreamInterval.
func NewStreamHandler(frames FrameSource, interval time.Duration) *StreamHandler {
	if interval <= 0 {
		interval = DefaultStreamInterval
	}
	return &StreamHandler{
		frames:   frames,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// ServeHTTP streams frames until the client goes away or Close is called.
// Before the first frame is rendered the stream waits.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, _ := w.(http.Flusher)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		if buf, ok := h.encode(); ok {
			if err := writePart(w, buf); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-h.stopCh:
			return
		case <-ticker.C:
		}
	}
}

func (h *StreamHandler) encode() ([]byte, bool) {
	frame, err := h.frames.MirroredFrame()
	defer frame.Close()
	if err != nil {
		return nil, false
	}
	buf, err := compose.EncodeJPEG(frame)
	if err != nil {
		return nil, false
	}
	return buf, true
}

func writePart(w http.ResponseWriter, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	_, err := fmt.Fprint(w, "\r\n")
	return err
}

// Close ends every open stream.
func (h *StreamHandler) Close() {
	h.once.Do(func() { close(h.stopCh) })
}
