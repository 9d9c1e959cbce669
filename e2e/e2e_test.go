package e2e

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/bloom/internal/app"
	"github.com/ayusman/bloom/internal/capture"
	"github.com/ayusman/bloom/internal/config"
	"github.com/ayusman/bloom/internal/detector"
	"github.com/ayusman/bloom/internal/garden"
	"github.com/ayusman/bloom/internal/server"
	"github.com/ayusman/bloom/internal/settings"
	"github.com/ayusman/bloom/internal/store"
)

const frameStep = 16 * time.Millisecond

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	cfg := config.Default()
	cfg.Paths.KeepsakeDir = filepath.Join(tmpDir, "keepsakes")
	cfg.Plugins.Enabled = false
	cfg.Snapshot.RestoreOnLaunch = false
	// The mock camera repeats one frame; analyse every one of them.
	cfg.Camera.MotionGate = false

	frame := capture.SolidFrame(320, 240, color.RGBA{G: 140})
	defer frame.Close()

	det := detector.NewMockDetector()
	det.SetHands(detector.PinchLandmarks(0.5, 0.4, 0.01))
	clock := app.NewManualClock(time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC))

	application, err := app.New(app.Config{
		Settings:    &cfg,
		Store:       s,
		Clock:       clock,
		Viewport:    app.FixedViewport(image.Pt(320, 240)),
		Preferences: settings.NewManager(nil),
		Detector:    det,
		Cameras: func(int) capture.Camera {
			return capture.NewMockCamera([]*gocv.Mat{frame}, true)
		},
	})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	if err := application.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	stopped := false
	defer func() {
		if !stopped {
			application.Stop()
		}
	}()

	srv := server.New(server.Config{Store: s, Loop: application.Loop()})
	defer srv.Close()
	ts := httptest.NewServer(srv)
	defer ts.Close()
	client := ts.Client()

	getView := func(t *testing.T) app.GardenView {
		t.Helper()
		resp, err := client.Get(ts.URL + "/api/garden")
		if err != nil {
			t.Fatalf("GET /api/garden error = %v", err)
		}
		defer resp.Body.Close()
		var view app.GardenView
		if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
			t.Fatal(err)
		}
		return view
	}

	t.Run("PinchPlants", func(t *testing.T) {
		waitFor(t, "a planted seed", func() bool {
			clock.Advance(frameStep)
			v := application.Loop().View()
			return len(v.Seeds)+len(v.Flowers) > 0
		})
		view := getView(t)
		if view.Width != 320 || view.Height != 240 {
			t.Errorf("garden size = %dx%d", view.Width, view.Height)
		}
		if len(view.Seeds)+len(view.Flowers) != 1 {
			t.Errorf("held pinch planted %d times", len(view.Seeds)+len(view.Flowers))
		}
	})

	t.Run("UpdateSettings", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/settings", strings.NewReader(`{"theme":"ocean","species":"tulip"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("PUT /api/settings error = %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
		got := application.Loop().Settings()
		if got.Theme != garden.ThemeOcean || got.Species != garden.SpeciesTulip {
			t.Errorf("loop settings = %+v", got)
		}
	})

	t.Run("BindHook", func(t *testing.T) {
		resp, err := client.Post(ts.URL+"/api/hooks", "application/json",
			strings.NewReader(`{"event":"bloomed","plugin_name":"journal","action_name":"append"}`))
		if err != nil {
			t.Fatalf("POST /api/hooks error = %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
		}
		hooks, err := s.Hooks().ForEvent("bloomed")
		if err != nil || len(hooks) != 1 {
			t.Fatalf("ForEvent = %d hooks, %v", len(hooks), err)
		}
	})

	t.Run("ClearGarden", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/garden", nil)
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("DELETE /api/garden error = %v", err)
		}
		defer resp.Body.Close()
		var body map[string]int
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body["cleared"] != 1 {
			t.Errorf("cleared = %d, want 1", body["cleared"])
		}
	})

	t.Run("ReplantAndSnapshotOnStop", func(t *testing.T) {
		// Lift the fingers, then pinch again.
		det.SetHands(detector.PinchLandmarks(0.3, 0.4, 0.2))
		waitFor(t, "the pinch to release", func() bool {
			clock.Advance(frameStep)
			return !application.Loop().Status().Signals.Pinching
		})
		det.SetHands(detector.PinchLandmarks(0.3, 0.4, 0.01))
		waitFor(t, "the seed to land", func() bool {
			clock.Advance(frameStep)
			return len(application.Loop().View().Flowers) > 0
		})

		if err := application.Stop(); err != nil {
			t.Fatalf("Stop() error = %v", err)
		}
		stopped = true

		resp, err := client.Get(ts.URL + "/api/snapshots")
		if err != nil {
			t.Fatalf("GET /api/snapshots error = %v", err)
		}
		defer resp.Body.Close()
		var body struct {
			Snapshots []struct {
				ID          string `json:"id"`
				Theme       string `json:"theme"`
				FlowerCount int    `json:"flower_count"`
			} `json:"snapshots"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if len(body.Snapshots) == 0 {
			t.Fatal("stopping should save the garden")
		}
		latest := body.Snapshots[0]
		if latest.FlowerCount != 1 || latest.Theme != string(garden.ThemeOcean) {
			t.Errorf("latest snapshot = %+v", latest)
		}
	})
}
