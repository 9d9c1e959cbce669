package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCamera(); err != nil {
		return err
	}
	if err := c.validateDetector(); err != nil {
		return err
	}
	if err := c.validateGesture(); err != nil {
		return err
	}
	if err := c.validateDisplay(); err != nil {
		return err
	}
	if err := c.validateSnapshot(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCamera() error {
	if c.Camera.Device < 0 {
		return errors.New("camera.device must be >= 0")
	}
	if c.Camera.FPS > 240 {
		return fmt.Errorf("camera.fps %d is out of range (1-240)", c.Camera.FPS)
	}
	if c.Camera.MotionPercent > 100 {
		return errors.New("camera.motion_percent must be a percentage (0-100]")
	}
	return nil
}

func (c *Config) validateDetector() error {
	if c.Detector.MinConfidence < 0 || c.Detector.MinConfidence > 1 {
		return errors.New("detector.min_confidence must be between 0 and 1")
	}
	if c.Detector.MaxHands < 1 {
		return errors.New("detector.max_hands must be at least 1")
	}
	if c.Detector.MaxFaces < 0 {
		return errors.New("detector.max_faces must be >= 0")
	}
	return nil
}

func (c *Config) validateGesture() error {
	g := c.Gesture
	if g.EngageDistance <= 0 {
		return errors.New("gesture.engage_distance must be positive")
	}
	if g.ReleaseDistance <= g.EngageDistance {
		return fmt.Errorf("gesture.release_distance (%.3f) must exceed engage_distance (%.3f)", g.ReleaseDistance, g.EngageDistance)
	}
	if g.MaxDepthGap <= 0 {
		return errors.New("gesture.max_depth_gap must be positive")
	}
	if g.PlantCooldownMS < 0 {
		return errors.New("gesture.plant_cooldown_ms must be >= 0")
	}
	if g.JawOpenThreshold <= 0 || g.JawOpenThreshold >= 1 {
		return errors.New("gesture.jaw_open_threshold must be between 0 and 1")
	}
	if g.ClearHoldSeconds <= 0 {
		return errors.New("gesture.clear_hold_seconds must be positive")
	}
	if g.GraceSeconds < 0 {
		return errors.New("gesture.grace_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateDisplay() error {
	if c.Display.FPS > 240 {
		return fmt.Errorf("display.fps %d is out of range (1-240)", c.Display.FPS)
	}
	return nil
}

func (c *Config) validateSnapshot() error {
	if !c.Snapshot.Enabled {
		return nil
	}
	if c.Snapshot.IntervalSeconds < 1 {
		return errors.New("snapshot.interval_seconds must be at least 1")
	}
	if c.Snapshot.Keep < 1 {
		return errors.New("snapshot.keep must be at least 1")
	}
	return nil
}
