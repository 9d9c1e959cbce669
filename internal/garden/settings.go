package garden

// Settings are the user-controlled style parameters.
type Settings struct {
	GrowthScale  float64        `json:"growthScale" yaml:"growth_scale"`
	GrowthSpeed  float64        `json:"growthSpeed" yaml:"growth_speed"`
	PetalScale   float64        `json:"petalScale" yaml:"petal_scale"`
	WindStrength float64        `json:"windStrength" yaml:"wind_strength"`
	Theme        Theme          `json:"theme" yaml:"theme"`
	Species      Species        `json:"species" yaml:"species"`
	Background   BackgroundMode `json:"background" yaml:"background"`
	Locale       string         `json:"locale" yaml:"locale"`
}

// Allowed ranges for the numeric settings.
const (
	MinGrowthScale  = 0.2
	MaxGrowthScale  = 1.8
	MinGrowthSpeed  = 0.2
	MaxGrowthSpeed  = 2.0
	MinPetalScale   = 0.5
	MaxPetalScale   = 1.5
	MinWindStrength = 0.0
	MaxWindStrength = 3.0
)

// DefaultSettings returns the initial style.
func DefaultSettings() Settings {
	return Settings{
		GrowthScale:  1.0,
		GrowthSpeed:  1.0,
		PetalScale:   1.0,
		WindStrength: 1.0,
		Theme:        ThemeSunset,
		Species:      SpeciesRandom,
		Background:   BackgroundCamera,
		Locale:       "en",
	}
}

// Clamp returns a copy with every numeric field inside its range and every
// enumerated field set to a known value.
func (s Settings) Clamp() Settings {
	s.GrowthScale = clamp(s.GrowthScale, MinGrowthScale, MaxGrowthScale)
	s.GrowthSpeed = clamp(s.GrowthSpeed, MinGrowthSpeed, MaxGrowthSpeed)
	s.PetalScale = clamp(s.PetalScale, MinPetalScale, MaxPetalScale)
	s.WindStrength = clamp(s.WindStrength, MinWindStrength, MaxWindStrength)

	if th, err := ParseTheme(string(s.Theme)); err == nil {
		s.Theme = th
	} else {
		s.Theme = ThemeSunset
	}
	if sp, err := ParseSpecies(string(s.Species)); err == nil {
		s.Species = sp
	} else {
		s.Species = SpeciesRandom
	}
	if bg, err := ParseBackground(string(s.Background)); err == nil {
		s.Background = bg
	} else {
		s.Background = BackgroundCamera
	}
	if s.Locale == "" {
		s.Locale = "en"
	}
	return s
}

func clamp(v, lo, hi float64) float64 {
	// NaN compares false against everything; pin it to the low end.
	if v != v || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
