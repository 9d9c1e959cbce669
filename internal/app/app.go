// Package app drives the garden: the frame loop and its state machine, and
// the App that builds the loop and its services from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/ayusman/bloom/internal/caption"
	"github.com/ayusman/bloom/internal/capture"
	"github.com/ayusman/bloom/internal/config"
	"github.com/ayusman/bloom/internal/detector"
	"github.com/ayusman/bloom/internal/plugin"
	"github.com/ayusman/bloom/internal/store"
)

// CameraFactory opens a camera by device index.
type CameraFactory func(device int) capture.Camera

// Config holds what App needs beyond the configuration file.
type Config struct {
	Settings *config.Config
	Store    *store.Store

	Clock    FrameClock
	Viewport Viewport

	// Preferences persists style settings; nil keeps them in memory.
	Preferences Preferences
	// Detector overrides the configured landmark detector.
	Detector detector.Detector
	// Analyzer overrides the configured caption client.
	Analyzer caption.Analyzer
	// Cameras overrides how cameras are opened.
	Cameras CameraFactory
}

// App owns the loop and the services around it.
type App struct {
	cfg     *config.Config
	store   *store.Store
	loop    *Loop
	motion  *capture.MotionGate
	plugins *plugin.Manager
	hooks   *plugin.Dispatcher
	cameras CameraFactory

	mu       sync.RWMutex
	cameraID int
	started  bool
}

// New builds an App. Settings, Clock and Viewport are required.
func New(c Config) (*App, error) {
	if c.Settings == nil {
		return nil, errors.New("app needs a configuration")
	}
	cfg := c.Settings

	a := &App{
		cfg:      cfg,
		store:    c.Store,
		cameras:  c.Cameras,
		cameraID: cfg.Camera.Device,
	}
	if a.cameras == nil {
		a.cameras = func(device int) capture.Camera {
			return capture.NewCamera(capture.Options{
				DeviceID: device,
				Width:    cfg.Camera.Width,
				Height:   cfg.Camera.Height,
				FPS:      cfg.Camera.FPS,
			})
		}
	}

	det := c.Detector
	if det == nil && cfg.Detector.Enabled {
		mp, err := detector.NewMediaPipeDetector(cfg.DetectorConfig())
		if err != nil {
			log.Printf("[App] MediaPipe not available (%v), gestures disabled", err)
		} else {
			det = mp
		}
	}

	analyzer := c.Analyzer
	if analyzer == nil {
		analyzer = caption.NewClient(cfg.CaptionConfig())
	}

	var events EventSink
	if cfg.Plugins.Enabled && c.Store != nil {
		a.plugins = plugin.NewManager(cfg.Plugins.Dir)
		a.hooks = plugin.NewDispatcher(c.Store.Hooks(), a.plugins, plugin.NewExecutor(cfg.Plugins.TimeoutMS), plugin.DefaultQueueSize)
		events = a.hooks
	}

	if cfg.Camera.MotionGate {
		a.motion = capture.NewMotionGate(cfg.Camera.MotionPercent, time.Duration(cfg.Camera.IdleSeconds*float64(time.Second)))
	}

	opts := Options{
		Clock:       c.Clock,
		Viewport:    c.Viewport,
		Detector:    det,
		Gesture:     cfg.GestureConfig(),
		Motion:      a.motion,
		Heartbeat:   time.Duration(cfg.Camera.HeartbeatMS) * time.Millisecond,
		Analyzer:    analyzer,
		Events:      events,
		Preferences: c.Preferences,
		KeepsakeDir: cfg.Paths.KeepsakeDir,
	}
	if c.Preferences != nil {
		opts.Settings = c.Preferences.Get()
	}
	opts.Store = c.Store
	opts.DisableSnapshots = !cfg.Snapshot.Enabled
	opts.SnapshotInterval = cfg.SnapshotInterval()
	opts.SnapshotKeep = cfg.Snapshot.Keep
	a.loop = NewLoop(opts)
	return a, nil
}

// Start discovers plugins, initialises the loop, restores the last garden
// and attaches the camera. A camera that cannot be opened leaves the garden
// running without video.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return nil
	}

	if a.plugins != nil {
		if err := a.plugins.Discover(); err != nil {
			log.Printf("[App] plugin discovery failed: %v", err)
		}
	}
	if err := a.loop.Init(ctx); err != nil {
		return fmt.Errorf("init loop: %w", err)
	}
	if a.cfg.Snapshot.Enabled && a.cfg.Snapshot.RestoreOnLaunch {
		if _, err := a.loop.Restore(); err != nil {
			log.Printf("[App] restore failed: %v", err)
		}
	}

	if err := a.loop.Attach(a.cameras(a.cameraID)); err != nil {
		log.Printf("[App] camera %d unavailable: %v", a.cameraID, err)
		if err := a.loop.RunWithoutCamera(); err != nil {
			return err
		}
	}
	a.started = true
	log.Println("[App] started")
	return nil
}

// SwitchCamera moves the loop to another device and remembers the choice.
func (a *App) SwitchCamera(device int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		return ErrNotRunning
	}
	if err := a.loop.Attach(a.cameras(device)); err != nil {
		return err
	}
	a.cameraID = device
	if a.store != nil {
		if err := a.store.Settings().Set(store.SettingCameraDevice, strconv.Itoa(device)); err != nil {
			log.Printf("[App] remember camera: %v", err)
		}
	}
	return nil
}

// CameraID returns the device in use.
func (a *App) CameraID() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cameraID
}

// Stop shuts the loop and hooks down. The store is left open for the caller.
func (a *App) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	err := a.loop.Close()
	if a.hooks != nil {
		a.hooks.Close()
	}
	if a.motion != nil {
		a.motion.Close()
	}
	a.started = false
	log.Println("[App] stopped")
	return err
}

// Loop returns the frame loop.
func (a *App) Loop() *Loop {
	return a.loop
}

// Plugins returns the plugin manager, or nil when plugins are disabled.
func (a *App) Plugins() *plugin.Manager {
	return a.plugins
}

// Hooks returns the hook dispatcher, or nil when plugins are disabled.
func (a *App) Hooks() *plugin.Dispatcher {
	return a.hooks
}

// Store returns the database.
func (a *App) Store() *store.Store {
	return a.store
}

// Config returns the loaded configuration.
func (a *App) Config() *config.Config {
	return a.cfg
}
