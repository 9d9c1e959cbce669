package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/ayusman/bloom/internal/caption"
	"github.com/ayusman/bloom/internal/detector"
	"github.com/ayusman/bloom/internal/gesture"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains data directories.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	KeepsakeDir string `toml:"keepsake_dir"`
}

// Camera selects and tunes the capture device.
type Camera struct {
	Device        int     `toml:"device"`
	Width         int     `toml:"width"`
	Height        int     `toml:"height"`
	FPS           int     `toml:"fps"`
	MotionGate    bool    `toml:"motion_gate"`
	MotionPercent float64 `toml:"motion_percent"`
	IdleSeconds   float64 `toml:"idle_seconds"`
	HeartbeatMS   int     `toml:"heartbeat_ms"`
}

// Detector configures the landmark service.
type Detector struct {
	Enabled       bool    `toml:"enabled"`
	Python        string  `toml:"python"`
	Script        string  `toml:"script"`
	MaxHands      int     `toml:"max_hands"`
	MaxFaces      int     `toml:"max_faces"`
	MinConfidence float64 `toml:"min_confidence"`
}

// Gesture holds classifier thresholds.
type Gesture struct {
	EngageDistance   float64 `toml:"engage_distance"`
	ReleaseDistance  float64 `toml:"release_distance"`
	MaxDepthGap      float64 `toml:"max_depth_gap"`
	PlantCooldownMS  int     `toml:"plant_cooldown_ms"`
	JawOpenThreshold float64 `toml:"jaw_open_threshold"`
	ClearHoldSeconds float64 `toml:"clear_hold_seconds"`
	GraceSeconds     float64 `toml:"grace_seconds"`
}

// Display configures the window and the frame rate.
type Display struct {
	Width      int    `toml:"width"`
	Height     int    `toml:"height"`
	FPS        int    `toml:"fps"`
	Title      string `toml:"title"`
	Fullscreen bool   `toml:"fullscreen"`
	Tray       bool   `toml:"tray"`
}

// Server configures the local HTTP API.
type Server struct {
	Enabled   bool   `toml:"enabled"`
	Bind      string `toml:"bind"`
	StatusHz  int    `toml:"status_hz"`
	StreamFPS int    `toml:"stream_fps"`
}

// Caption configures the garden description service.
type Caption struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Snapshot configures periodic garden saves.
type Snapshot struct {
	Enabled         bool `toml:"enabled"`
	IntervalSeconds int  `toml:"interval_seconds"`
	Keep            int  `toml:"keep"`
	RestoreOnLaunch bool `toml:"restore_on_launch"`
}

// Plugins configures event hook plugins.
type Plugins struct {
	Enabled   bool   `toml:"enabled"`
	Dir       string `toml:"dir"`
	TimeoutMS int    `toml:"timeout_ms"`
}

// Config encapsulates all configuration values for Bloom.
type Config struct {
	Paths    Paths    `toml:"paths"`
	Camera   Camera   `toml:"camera"`
	Detector Detector `toml:"detector"`
	Gesture  Gesture  `toml:"gesture"`
	Display  Display  `toml:"display"`
	Server   Server   `toml:"server"`
	Caption  Caption  `toml:"caption"`
	Snapshot Snapshot `toml:"snapshot"`
	Plugins  Plugins  `toml:"plugins"`
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/bloom/config.toml")
}

// Load locates, parses and validates a configuration file. A missing file is
// not an error; defaults are used. It returns the config, the resolved path
// and whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("bloom.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and keepsake directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.KeepsakeDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath is the SQLite file inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "bloom.db")
}

// LockPath is the single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "bloom.lock")
}

// GestureConfig converts the [gesture] section for the classifier.
func (c *Config) GestureConfig() gesture.Config {
	g := gesture.DefaultConfig()
	g.EngageDistance = c.Gesture.EngageDistance
	g.ReleaseDistance = c.Gesture.ReleaseDistance
	g.MaxDepthGap = c.Gesture.MaxDepthGap
	g.PlantCooldown = time.Duration(c.Gesture.PlantCooldownMS) * time.Millisecond
	g.JawOpenThreshold = c.Gesture.JawOpenThreshold
	g.ClearHoldSeconds = c.Gesture.ClearHoldSeconds
	g.GracePeriod = c.Gesture.GraceSeconds
	return g
}

// DetectorConfig converts the [detector] section.
func (c *Config) DetectorConfig() detector.Config {
	return detector.Config{
		MaxHands:      c.Detector.MaxHands,
		MaxFaces:      c.Detector.MaxFaces,
		MinConfidence: c.Detector.MinConfidence,
		ScriptPath:    c.Detector.Script,
		PythonPath:    c.Detector.Python,
	}
}

// CaptionConfig converts the [caption] section.
func (c *Config) CaptionConfig() caption.Config {
	return caption.Config{
		APIKey:         strings.TrimSpace(c.Caption.APIKey),
		BaseURL:        strings.TrimSpace(c.Caption.BaseURL),
		Model:          strings.TrimSpace(c.Caption.Model),
		TimeoutSeconds: c.Caption.TimeoutSeconds,
	}
}

// SnapshotInterval is the periodic save interval.
func (c *Config) SnapshotInterval() time.Duration {
	return time.Duration(c.Snapshot.IntervalSeconds) * time.Second
}

// FrameInterval is the headless tick interval.
func (c *Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.Display.FPS)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes the sample configuration file to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
