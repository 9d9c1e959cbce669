package app

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/ayusman/bloom/internal/caption"
	"github.com/ayusman/bloom/internal/compose"
	"github.com/ayusman/bloom/internal/garden"
	"github.com/ayusman/bloom/internal/plugin"
	"github.com/ayusman/bloom/internal/store"
)

// KeepsakeTitle is drawn on every keepsake image.
const KeepsakeTitle = "My Bloom Garden"

var (
	// ErrNoAnalyzer is returned when captions are requested without a
	// caption service.
	ErrNoAnalyzer = errors.New("no caption analyzer configured")
	// ErrNoKeepsakeDir is returned when keepsakes have nowhere to go.
	ErrNoKeepsakeDir = errors.New("no keepsake directory configured")
)

type captionState struct {
	gen     uint64
	pending bool
	text    string
	at      time.Time
}

// Settings returns the active style settings.
func (l *Loop) Settings() garden.Settings {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.engine.Settings()
}

// SetSettings replaces the style settings and persists them. Values are
// clamped; the applied settings are returned.
func (l *Loop) SetSettings(s garden.Settings) garden.Settings {
	return l.updateSettings(func(e *garden.Engine) { e.SetSettings(s) })
}

// UpdateSettings applies fn to a copy of the current settings. Flowers are
// recoloured or re-speciesed only when the clamped theme or species differs.
func (l *Loop) UpdateSettings(fn func(*garden.Settings)) garden.Settings {
	return l.updateSettings(func(e *garden.Engine) {
		cur := e.Settings()
		next := cur
		fn(&next)
		next = next.Clamp()
		if next.Theme != cur.Theme {
			e.ApplyTheme(next.Theme)
		}
		if next.Species != cur.Species {
			e.ApplySpecies(next.Species)
		}
		e.SetSettings(next)
	})
}

// ApplyTheme switches the theme and recolours every flower.
func (l *Loop) ApplyTheme(t garden.Theme) garden.Settings {
	return l.updateSettings(func(e *garden.Engine) { e.ApplyTheme(t) })
}

// CycleTheme moves to the next theme.
func (l *Loop) CycleTheme() garden.Settings {
	return l.updateSettings(func(e *garden.Engine) { e.ApplyTheme(e.Settings().Theme.Next()) })
}

// ApplySpecies sets the species of new and existing flowers.
func (l *Loop) ApplySpecies(s garden.Species) garden.Settings {
	return l.updateSettings(func(e *garden.Engine) { e.ApplySpecies(s) })
}

// CycleSpecies moves to the next species.
func (l *Loop) CycleSpecies() garden.Settings {
	return l.updateSettings(func(e *garden.Engine) { e.ApplySpecies(e.Settings().Species.Next()) })
}

// ToggleBackground switches between the camera and the artistic backdrop.
func (l *Loop) ToggleBackground() garden.Settings {
	return l.updateSettings(func(e *garden.Engine) {
		s := e.Settings()
		s.Background = s.Background.Toggle()
		e.SetSettings(s)
	})
}

func (l *Loop) updateSettings(fn func(e *garden.Engine)) garden.Settings {
	l.mu.Lock()
	fn(l.engine)
	applied := l.engine.Settings()
	l.dirty = true
	l.mu.Unlock()

	if p := l.opts.Preferences; p != nil {
		p.Set(applied)
		if err := p.Save(); err != nil {
			log.Printf("[Loop] save settings: %v", err)
		}
	}
	return applied
}

// Clear removes every flower and seed, as the fist gesture does. It returns
// how many were removed.
func (l *Loop) Clear() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := l.engine.Clear()
	if n > 0 {
		l.dirty = true
		l.emit(plugin.EventCleared, plugin.Payload{FlowerCount: n, At: l.opts.Now()})
	}
	return n
}

// Keepsake saves a decorated, mirrored copy of the current frame as a PNG in
// the keepsake directory and returns its path.
func (l *Loop) Keepsake() (string, error) {
	if l.opts.KeepsakeDir == "" {
		return "", ErrNoKeepsakeDir
	}

	frame := gocv.NewMat()
	defer frame.Close()
	if err := l.CopyFrame(&frame); err != nil {
		return "", err
	}

	l.mu.Lock()
	count := len(l.engine.Garden().Flowers)
	theme := l.engine.Settings().Theme
	now := l.opts.Now()
	l.mu.Unlock()

	out, err := compose.Keepsake(&frame, compose.Options{
		Title:       KeepsakeTitle,
		FlowerCount: count,
		Theme:       theme,
		TakenAt:     now,
	})
	if err != nil {
		return "", err
	}
	defer out.Close()

	if err := os.MkdirAll(l.opts.KeepsakeDir, 0o755); err != nil {
		return "", fmt.Errorf("create keepsake dir: %w", err)
	}
	id := uuid.NewString()
	path := filepath.Join(l.opts.KeepsakeDir, fmt.Sprintf("bloom-%s-%s.png", now.Format("20060102-150405"), id[:8]))
	if err := compose.Save(path, out); err != nil {
		return "", err
	}

	if s := l.opts.Store; s != nil {
		k := &store.Keepsake{ID: id, Path: path, FlowerCount: count, Theme: string(theme), CreatedAt: now}
		if err := s.Keepsakes().Create(k); err != nil {
			log.Printf("[Loop] record keepsake: %v", err)
		}
	}

	l.mu.Lock()
	l.emit(plugin.EventKeepsake, plugin.Payload{FlowerCount: count, Path: path, At: now})
	l.mu.Unlock()

	log.Printf("[Loop] keepsake saved to %s", path)
	return path, nil
}

// RequestCaption asks the caption service to describe the current garden.
// It returns immediately with the request generation; the text shows up in
// Status once it arrives. A newer request supersedes an older one, whose
// result is dropped.
func (l *Loop) RequestCaption() (uint64, error) {
	if l.opts.Analyzer == nil {
		return 0, ErrNoAnalyzer
	}

	mirrored, err := l.MirroredFrame()
	if err != nil {
		return 0, err
	}
	png, err := compose.EncodePNG(mirrored)
	mirrored.Close()
	if err != nil {
		return 0, err
	}

	l.mu.Lock()
	l.captions.gen++
	gen := l.captions.gen
	l.captions.pending = true
	count := len(l.engine.Garden().Flowers)
	s := l.engine.Settings()
	l.mu.Unlock()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		text := l.opts.Analyzer.Analyze(l.ctx, png, count, s.Locale)
		l.finishCaption(gen, text, count, s)
	}()
	return gen, nil
}

func (l *Loop) finishCaption(gen uint64, text string, count int, s garden.Settings) {
	now := l.opts.Now()

	l.mu.Lock()
	if gen != l.captions.gen {
		l.mu.Unlock()
		log.Printf("[Loop] dropping stale caption %d", gen)
		return
	}
	l.captions.pending = false
	l.captions.text = text
	l.captions.at = now
	l.emit(plugin.EventCaptioned, plugin.Payload{FlowerCount: count, Text: text, At: now})
	l.mu.Unlock()

	if st := l.opts.Store; st != nil {
		c := &store.Caption{
			ID:          uuid.NewString(),
			Text:        text,
			FlowerCount: count,
			Locale:      s.Locale,
			Theme:       string(s.Theme),
			Fallback:    text == caption.FallbackEmpty || text == caption.FallbackError,
			CreatedAt:   now,
		}
		if err := st.Captions().Create(c); err != nil {
			log.Printf("[Loop] record caption: %v", err)
		}
	}
}
