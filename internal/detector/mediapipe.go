package detector

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// idleShutdown is how long the helper process may sit unused before it is stopped.
const idleShutdown = 30 * time.Second

// MediaPipeDetector implements Detector using a Python MediaPipe subprocess
// that runs both the hand and the face landmarker on every frame.
type MediaPipeDetector struct {
	config    Config
	script    string
	python    string
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	idleTimer *time.Timer
}

// NewMediaPipeDetector creates a new MediaPipe detector.
// The Python process is started by Init, or lazily on first detection.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	scriptPath := config.ScriptPath
	if scriptPath == "" {
		scriptPath = findLandmarkScript()
	}
	if scriptPath == "" {
		return nil, fmt.Errorf("landmark_service.py not found")
	}

	pythonPath := config.PythonPath
	if pythonPath == "" {
		pythonPath = findVenvPython()
	}
	if pythonPath == "" {
		pythonPath = "python3"
	}

	return &MediaPipeDetector{
		config: config,
		script: scriptPath,
		python: pythonPath,
	}, nil
}

// Init starts the helper process so the first frame does not pay start-up cost.
func (d *MediaPipeDetector) Init(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return d.ensureStarted()
}

// Detect analyzes a frame and returns detected hand landmarks and face blendshapes.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) (*Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if frame == nil || frame.Empty() {
		return nil, nil
	}

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	response, err := d.exchange(buf.GetBytes())
	if err != nil {
		return nil, err
	}
	d.armIdleTimer()
	return response.toResult(), nil
}

// exchange sends one length-prefixed JPEG and reads the JSON line answering it.
// An I/O failure stops the helper; the next call starts a fresh one.
func (d *MediaPipeDetector) exchange(jpeg []byte) (jsonResponse, error) {
	var response jsonResponse

	msg := binary.BigEndian.AppendUint32(make([]byte, 0, 4+len(jpeg)), uint32(len(jpeg)))
	msg = append(msg, jpeg...)
	if _, err := d.stdin.Write(msg); err != nil {
		d.markBroken()
		return response, fmt.Errorf("send frame: %w", err)
	}

	line, err := d.stdout.ReadBytes('\n')
	if err != nil {
		d.markBroken()
		return response, fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(line, &response); err != nil {
		return response, fmt.Errorf("parse response: %w", err)
	}
	return response, nil
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *MediaPipeDetector) ensureStarted() error {
	if d.cmd != nil {
		return nil
	}

	cmd := exec.Command(d.python, d.script,
		"--max-hands", strconv.Itoa(d.config.MaxHands),
		"--max-faces", strconv.Itoa(d.config.MaxFaces),
		"--min-confidence", strconv.FormatFloat(d.config.MinConfidence, 'f', 2, 64),
	)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("landmark service stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("landmark service stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start landmark service: %w", err)
	}

	d.cmd = cmd
	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	log.Printf("[MediaPipe] landmark service started (pid %d)", cmd.Process.Pid)
	return nil
}

func (d *MediaPipeDetector) markBroken() {
	if err := d.shutdown(); err != nil {
		log.Printf("[MediaPipe] landmark service exited: %v", err)
	}
}

// shutdown closes stdin, which the helper treats as end of input, and waits.
func (d *MediaPipeDetector) shutdown() error {
	if d.cmd == nil {
		return nil
	}
	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}
	d.stdin.Close()
	err := d.cmd.Wait()
	d.cmd, d.stdin, d.stdout = nil, nil, nil
	return err
}

func (d *MediaPipeDetector) armIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Reset(idleShutdown)
		return
	}
	d.idleTimer = time.AfterFunc(idleShutdown, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.cmd != nil {
			log.Println("[MediaPipe] idle, stopping landmark service")
		}
		d.idleTimer = nil
		d.shutdown()
	})
}

func findLandmarkScript() string {
	return firstExisting(searchPaths(filepath.Join("scripts", "landmark_service.py")))
}

func findVenvPython() string {
	return firstExisting(searchPaths(filepath.Join("venv", "bin", "python")))
}

// searchPaths lists where a helper file may live: the working directory, its
// parent, next to the executable, then ~/.bloom.
func searchPaths(rel string) []string {
	paths := []string{rel, filepath.Join("..", rel)}
	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exe), rel))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".bloom", rel))
	}
	return paths
}

func firstExisting(paths []string) string {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	}
	return ""
}

// jsonResponse is the line-delimited JSON the landmark service writes per frame.
type jsonResponse struct {
	Hands []jsonHand `json:"hands"`
	Faces []jsonFace `json:"faces"`
}

// jsonHand represents the JSON structure from the Python service.
type jsonHand struct {
	Points     []jsonPoint `json:"points"`
	Handedness string      `json:"handedness"`
	Score      float64     `json:"score"`
}

type jsonPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type jsonFace struct {
	Blendshapes []Category `json:"blendshapes"`
}

func (r jsonResponse) toResult() *Result {
	if len(r.Hands) == 0 && len(r.Faces) == 0 {
		return nil
	}

	result := &Result{
		Hands: make([]HandLandmarks, 0, len(r.Hands)),
		Faces: make([]Blendshapes, 0, len(r.Faces)),
	}
	for _, h := range r.Hands {
		result.Hands = append(result.Hands, h.toHandLandmarks())
	}
	for _, f := range r.Faces {
		result.Faces = append(result.Faces, Blendshapes{Categories: f.Blendshapes})
	}
	return result
}

func (h jsonHand) toHandLandmarks() HandLandmarks {
	lm := HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
		Partial:    len(h.Points) < NumLandmarks,
	}

	for i := 0; i < NumLandmarks && i < len(h.Points); i++ {
		lm.Points[i] = Point3D{
			X: h.Points[i].X,
			Y: h.Points[i].Y,
			Z: h.Points[i].Z,
		}
	}

	return lm
}
