package config

const (
	defaultDataDir         = "~/.local/share/bloom"
	defaultKeepsakeDir     = "~/Pictures/bloom"
	defaultPluginDir       = "~/.config/bloom/plugins"
	defaultWidth           = 1280
	defaultHeight          = 720
	defaultCameraFPS       = 30
	defaultDisplayFPS      = 60
	defaultMotionPercent   = 0.5
	defaultIdleSeconds     = 2.0
	defaultHeartbeatMS     = 400
	defaultServerBind      = "127.0.0.1:7575"
	defaultStatusHz        = 15
	defaultStreamFPS       = 15
	defaultCaptionBaseURL  = "https://openrouter.ai/api/v1/chat/completions"
	defaultCaptionModel    = "google/gemini-2.5-flash"
	defaultCaptionTimeout  = 30
	defaultSnapshotSeconds = 10
	defaultSnapshotKeep    = 20
	defaultPluginTimeoutMS = 5000
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     defaultDataDir,
			KeepsakeDir: defaultKeepsakeDir,
		},
		Camera: Camera{
			Width:         defaultWidth,
			Height:        defaultHeight,
			FPS:           defaultCameraFPS,
			MotionGate:    true,
			MotionPercent: defaultMotionPercent,
			IdleSeconds:   defaultIdleSeconds,
			HeartbeatMS:   defaultHeartbeatMS,
		},
		Detector: Detector{
			Enabled:       true,
			MaxHands:      2,
			MaxFaces:      1,
			MinConfidence: 0.5,
		},
		Gesture: Gesture{
			EngageDistance:   0.045,
			ReleaseDistance:  0.065,
			MaxDepthGap:      0.08,
			PlantCooldownMS:  350,
			JawOpenThreshold: 0.25,
			ClearHoldSeconds: 2.0,
			GraceSeconds:     0.25,
		},
		Display: Display{
			Width:  defaultWidth,
			Height: defaultHeight,
			FPS:    defaultDisplayFPS,
			Title:  "Bloom",
			Tray:   true,
		},
		Server: Server{
			Enabled:   true,
			Bind:      defaultServerBind,
			StatusHz:  defaultStatusHz,
			StreamFPS: defaultStreamFPS,
		},
		Caption: Caption{
			BaseURL:        defaultCaptionBaseURL,
			Model:          defaultCaptionModel,
			TimeoutSeconds: defaultCaptionTimeout,
		},
		Snapshot: Snapshot{
			Enabled:         true,
			IntervalSeconds: defaultSnapshotSeconds,
			Keep:            defaultSnapshotKeep,
			RestoreOnLaunch: true,
		},
		Plugins: Plugins{
			Enabled:   true,
			Dir:       defaultPluginDir,
			TimeoutMS: defaultPluginTimeoutMS,
		},
	}
}
