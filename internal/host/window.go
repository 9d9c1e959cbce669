// Package host runs the garden in a desktop window. The window's update
// callback is the loop's frame clock and its layout is the viewport.
package host

import (
	"errors"
	"image"
	"log"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"gocv.io/x/gocv"

	"github.com/ayusman/bloom/internal/app"
	"github.com/ayusman/bloom/internal/garden"
)

// Controller is the part of the loop the window drives. *app.Loop
// implements it.
type Controller interface {
	RequestCaption() (uint64, error)
	Keepsake() (string, error)
	ToggleBackground() garden.Settings
	CycleTheme() garden.Settings
	CycleSpecies() garden.Settings
	Clear() int
	MirroredFrame() (gocv.Mat, error)
}

// Command is a keyboard shortcut action.
type Command int

const (
	CommandNone Command = iota
	CommandAnalyze
	CommandKeepsake
	CommandBackground
	CommandTheme
	CommandSpecies
	CommandClear
	CommandQuit
)

var shortcuts = []struct {
	key ebiten.Key
	cmd Command
}{
	{ebiten.KeyA, CommandAnalyze},
	{ebiten.KeyK, CommandKeepsake},
	{ebiten.KeyB, CommandBackground},
	{ebiten.KeyT, CommandTheme},
	{ebiten.KeyS, CommandSpecies},
	{ebiten.KeyC, CommandClear},
	{ebiten.KeyEscape, CommandQuit},
}

// Options configures a Window.
type Options struct {
	Title      string
	Width      int
	Height     int
	FPS        int
	Fullscreen bool
}

// Window is an ebiten.Game hosting the loop.
type Window struct {
	ctrl  Controller
	clock *app.QueueClock
	opts  Options

	mu   sync.Mutex
	size image.Point

	rgba    gocv.Mat
	img     *ebiten.Image
	quit    bool
	drawErr bool

	// jobs tracks shortcut work moved off the update goroutine.
	jobs sync.WaitGroup
}

// NewWindow creates a window. Use Clock and the window itself as the loop's
// frame clock and viewport.
func NewWindow(ctrl Controller, opts Options) *Window {
	if opts.Title == "" {
		opts.Title = "Bloom"
	}
	return &Window{
		ctrl:  ctrl,
		clock: app.NewQueueClock(),
		opts:  opts,
		rgba:  gocv.NewMat(),
	}
}

// Clock returns the frame clock driven by Update.
func (w *Window) Clock() *app.QueueClock {
	return w.clock
}

// Bind attaches the controller once the loop exists; the loop needs the
// window's clock first.
func (w *Window) Bind(ctrl Controller) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ctrl = ctrl
}

// Size reports the current layout size.
func (w *Window) Size() image.Point {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// Run opens the window and blocks until it is closed.
func (w *Window) Run() error {
	ebiten.SetWindowSize(w.opts.Width, w.opts.Height)
	ebiten.SetWindowTitle(w.opts.Title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetFullscreen(w.opts.Fullscreen)
	if w.opts.FPS > 0 {
		ebiten.SetTPS(w.opts.FPS)
	}

	err := ebiten.RunGame(w)
	w.jobs.Wait()
	w.rgba.Close()
	if errors.Is(err, ebiten.Termination) {
		return nil
	}
	return err
}

// Update fires pending frame callbacks and handles shortcuts.
func (w *Window) Update() error {
	w.clock.Fire(time.Now())

	for _, s := range shortcuts {
		if inpututil.IsKeyJustPressed(s.key) {
			w.handle(s.cmd)
		}
	}
	if w.quitting() {
		return ebiten.Termination
	}
	return nil
}

func (w *Window) controller() Controller {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ctrl
}

func (w *Window) quitting() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.quit
}

// RequestQuit closes the window at the next update.
func (w *Window) RequestQuit() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.quit = true
}

func (w *Window) handle(cmd Command) {
	if cmd == CommandQuit {
		w.RequestQuit()
		return
	}
	ctrl := w.controller()
	if ctrl == nil {
		return
	}
	switch cmd {
	case CommandAnalyze:
		w.background("describe", func() error {
			_, err := ctrl.RequestCaption()
			return err
		})
	case CommandKeepsake:
		w.background("keepsake", func() error {
			_, err := ctrl.Keepsake()
			return err
		})
	case CommandBackground:
		ctrl.ToggleBackground()
	case CommandTheme:
		ctrl.CycleTheme()
	case CommandSpecies:
		ctrl.CycleSpecies()
	case CommandClear:
		ctrl.Clear()
	}
}

// background runs encoding and file work without stalling Update.
func (w *Window) background(what string, fn func() error) {
	w.jobs.Add(1)
	go func() {
		defer w.jobs.Done()
		if err := fn(); err != nil {
			log.Printf("[Window] %s: %v", what, err)
		}
	}()
}

// Draw blits the loop's mirrored display frame.
func (w *Window) Draw(screen *ebiten.Image) {
	ctrl := w.controller()
	if ctrl == nil {
		return
	}
	frame, err := ctrl.MirroredFrame()
	defer frame.Close()
	if err != nil {
		return
	}

	if err := gocv.CvtColor(frame, &w.rgba, gocv.ColorBGRToRGBA); err != nil {
		if !w.drawErr {
			log.Printf("[Window] convert frame: %v", err)
			w.drawErr = true
		}
		return
	}
	w.drawErr = false

	cols, rows := w.rgba.Cols(), w.rgba.Rows()
	if w.img == nil || w.img.Bounds().Dx() != cols || w.img.Bounds().Dy() != rows {
		if w.img != nil {
			w.img.Deallocate()
		}
		w.img = ebiten.NewImage(cols, rows)
	}
	w.img.WritePixels(w.rgba.ToBytes())
	screen.DrawImage(w.img, nil)
}

// Layout makes the logical screen match the window, so the garden is
// rendered at native resolution.
func (w *Window) Layout(outsideWidth, outsideHeight int) (int, int) {
	w.mu.Lock()
	w.size = image.Pt(outsideWidth, outsideHeight)
	w.mu.Unlock()
	return outsideWidth, outsideHeight
}
