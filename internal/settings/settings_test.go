package settings

import (
	"testing"

	"github.com/quasilyte/gdata/v2"

	"github.com/ayusman/bloom/internal/garden"
)

func openTestStorage(t *testing.T) *gdata.Manager {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_DATA_HOME", home)
	t.Setenv("XDG_CONFIG_HOME", home)

	gm, err := gdata.Open(gdata.Config{AppName: "bloom_test"})
	if err != nil {
		t.Skipf("gdata storage unavailable: %v", err)
	}
	return gm
}

func TestNewManager_Defaults(t *testing.T) {
	m := NewManager(openTestStorage(t))
	if !m.Persistent() {
		t.Error("manager with storage should be persistent")
	}
	if got := m.Get(); got != garden.DefaultSettings() {
		t.Errorf("initial settings = %+v, want defaults", got)
	}
}

func TestManager_SaveAndReload(t *testing.T) {
	gm := openTestStorage(t)
	m := NewManager(gm)

	want := m.Update(func(s *garden.Settings) {
		s.Theme = garden.ThemeLavender
		s.Species = garden.SpeciesPoppy
		s.GrowthScale = 1.4
		s.Background = garden.BackgroundArtistic
		s.Locale = "fr"
	})
	if err := m.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded := NewManager(gm)
	if got := reloaded.Get(); got != want {
		t.Errorf("reloaded = %+v, want %+v", got, want)
	}
}

func TestManager_SetClamps(t *testing.T) {
	m := NewManager(nil)

	got := m.Set(garden.Settings{
		GrowthScale:  9,
		GrowthSpeed:  -1,
		PetalScale:   1,
		WindStrength: 4,
		Theme:        "neon",
		Species:      garden.SpeciesTulip,
	})
	if got.GrowthScale != garden.MaxGrowthScale || got.GrowthSpeed != garden.MinGrowthSpeed {
		t.Errorf("numeric fields not clamped: %+v", got)
	}
	if got.WindStrength != garden.MaxWindStrength {
		t.Errorf("wind = %f", got.WindStrength)
	}
	if got.Theme != garden.ThemeSunset || got.Species != garden.SpeciesTulip {
		t.Errorf("enums = %s/%s", got.Theme, got.Species)
	}
	if m.Get() != got {
		t.Error("Get does not return the stored value")
	}
}

func TestManager_DegradedMode(t *testing.T) {
	m := NewManager(nil)
	if m.Persistent() {
		t.Error("nil storage should not be persistent")
	}
	m.Update(func(s *garden.Settings) { s.Theme = garden.ThemeOcean })
	if err := m.Save(); err != nil {
		t.Errorf("Save in degraded mode = %v, want nil", err)
	}
	if err := m.Load(); err != nil {
		t.Errorf("Load in degraded mode = %v", err)
	}
	if m.Get().Theme != garden.ThemeSunset {
		t.Error("Load without storage should reset to defaults")
	}
}

func TestManager_CorruptDataFallsBack(t *testing.T) {
	gm := openTestStorage(t)
	if err := gm.SaveObjectProp(settingsObject, settingsProperty, []byte("growth_scale: [not a number")); err != nil {
		t.Fatalf("seed corrupt data: %v", err)
	}

	m := NewManager(gm)
	if got := m.Get(); got != garden.DefaultSettings() {
		t.Errorf("corrupt data should leave defaults, got %+v", got)
	}
	if err := m.Load(); err == nil {
		t.Error("Load should report the unmarshal error")
	}
}

func TestManager_OutOfRangeSavedValues(t *testing.T) {
	gm := openTestStorage(t)
	data := []byte("growth_scale: 7\ntheme: forest\nspecies: orchid\n")
	if err := gm.SaveObjectProp(settingsObject, settingsProperty, data); err != nil {
		t.Fatalf("seed data: %v", err)
	}

	got := NewManager(gm).Get()
	if got.GrowthScale != garden.MaxGrowthScale {
		t.Errorf("growth scale = %f, want clamped", got.GrowthScale)
	}
	if got.Theme != garden.ThemeForest || got.Species != garden.SpeciesRandom {
		t.Errorf("enums = %s/%s", got.Theme, got.Species)
	}
	if got.GrowthSpeed != 1 {
		t.Errorf("missing field should keep its default, got %f", got.GrowthSpeed)
	}
}
