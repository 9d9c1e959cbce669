package config

import (
	"fmt"
	"os"
	"strings"
)

// CaptionKeyEnv overrides caption.api_key when set.
const CaptionKeyEnv = "BLOOM_CAPTION_API_KEY"

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCamera()
	c.normalizeDisplay()
	c.normalizeServer()
	c.normalizeCaption()
	if err := c.normalizePlugins(); err != nil {
		return err
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.KeepsakeDir) == "" {
		c.Paths.KeepsakeDir = defaultKeepsakeDir
	}
	if c.Paths.KeepsakeDir, err = expandPath(c.Paths.KeepsakeDir); err != nil {
		return fmt.Errorf("paths.keepsake_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeCamera() {
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		c.Camera.Width, c.Camera.Height = defaultWidth, defaultHeight
	}
	if c.Camera.FPS <= 0 {
		c.Camera.FPS = defaultCameraFPS
	}
	if c.Camera.MotionPercent <= 0 {
		c.Camera.MotionPercent = defaultMotionPercent
	}
	if c.Camera.IdleSeconds <= 0 {
		c.Camera.IdleSeconds = defaultIdleSeconds
	}
	if c.Camera.HeartbeatMS <= 0 {
		c.Camera.HeartbeatMS = defaultHeartbeatMS
	}
}

func (c *Config) normalizeDisplay() {
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		c.Display.Width, c.Display.Height = defaultWidth, defaultHeight
	}
	if c.Display.FPS <= 0 {
		c.Display.FPS = defaultDisplayFPS
	}
	c.Display.Title = strings.TrimSpace(c.Display.Title)
	if c.Display.Title == "" {
		c.Display.Title = "Bloom"
	}
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultServerBind
	}
	if c.Server.StatusHz <= 0 {
		c.Server.StatusHz = defaultStatusHz
	}
	if c.Server.StreamFPS <= 0 {
		c.Server.StreamFPS = defaultStreamFPS
	}
}

func (c *Config) normalizeCaption() {
	if value, ok := os.LookupEnv(CaptionKeyEnv); ok && strings.TrimSpace(value) != "" {
		c.Caption.APIKey = value
	}
	c.Caption.APIKey = strings.TrimSpace(c.Caption.APIKey)
	c.Caption.BaseURL = strings.TrimSpace(c.Caption.BaseURL)
	if c.Caption.BaseURL == "" {
		c.Caption.BaseURL = defaultCaptionBaseURL
	}
	c.Caption.Model = strings.TrimSpace(c.Caption.Model)
	if c.Caption.Model == "" {
		c.Caption.Model = defaultCaptionModel
	}
	if c.Caption.TimeoutSeconds <= 0 {
		c.Caption.TimeoutSeconds = defaultCaptionTimeout
	}
}

func (c *Config) normalizePlugins() error {
	var err error
	if strings.TrimSpace(c.Plugins.Dir) == "" {
		c.Plugins.Dir = defaultPluginDir
	}
	if c.Plugins.Dir, err = expandPath(c.Plugins.Dir); err != nil {
		return fmt.Errorf("plugins.dir: %w", err)
	}
	if c.Plugins.TimeoutMS <= 0 {
		c.Plugins.TimeoutMS = defaultPluginTimeoutMS
	}
	return nil
}
