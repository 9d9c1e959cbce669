// Package tray provides the system tray menu for Bloom.
package tray

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/getlantern/systray"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ayusman/bloom/internal/app"
	"github.com/ayusman/bloom/internal/garden"
)

// RefreshInterval is how often the tooltip and caption item are updated.
const RefreshInterval = 250 * time.Millisecond

const maxCaptionRunes = 48

// Controller is what the menu drives. *app.Loop implements it.
type Controller interface {
	ToggleBackground() garden.Settings
	CycleTheme() garden.Settings
	RequestCaption() (uint64, error)
	Keepsake() (string, error)
	Clear() int
	Status() app.Status
}

// Tray represents the system tray application.
type Tray struct {
	ctrl   Controller
	onQuit func()
	mu     sync.RWMutex

	stopCh chan struct{}
	once   sync.Once

	menuBackground *systray.MenuItem
	menuTheme      *systray.MenuItem
	menuCaption    *systray.MenuItem
	lastTooltip    string
}

// New creates a Tray for ctrl.
func New(ctrl Controller) *Tray {
	return &Tray{ctrl: ctrl, stopCh: make(chan struct{})}
}

// OnQuit sets the callback run when Quit is chosen.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the tray and blocks until Quit.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Register starts the tray without blocking, for use alongside a window
// that owns the main loop.
func (t *Tray) Register() {
	systray.Register(t.onReady, t.onExit)
}

// Quit removes the tray icon.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Bloom")
	systray.SetTooltip("Bloom")

	st := t.ctrl.Status()
	t.menuBackground = systray.AddMenuItem(backgroundTitle(st.Settings.Background), "Switch between camera and artistic backdrop")
	t.menuTheme = systray.AddMenuItem(themeTitle(st.Settings.Theme), "Cycle the colour theme")
	systray.AddSeparator()

	menuAnalyze := systray.AddMenuItem("Describe Garden", "Ask for a short description of the garden")
	t.menuCaption = systray.AddMenuItem(captionTitle(""), "Latest description")
	t.menuCaption.Disable()
	systray.AddSeparator()

	menuKeepsake := systray.AddMenuItem("Save Keepsake", "Save a picture of the garden")
	menuClear := systray.AddMenuItem("Clear Garden", "Remove every flower")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Bloom")

	go t.refresh()
	go func() {
		for {
			select {
			case <-t.menuBackground.ClickedCh:
				s := t.ctrl.ToggleBackground()
				t.menuBackground.SetTitle(backgroundTitle(s.Background))
			case <-t.menuTheme.ClickedCh:
				s := t.ctrl.CycleTheme()
				t.menuTheme.SetTitle(themeTitle(s.Theme))
			case <-menuAnalyze.ClickedCh:
				if _, err := t.ctrl.RequestCaption(); err != nil {
					log.Printf("[Tray] describe: %v", err)
				}
			case <-menuKeepsake.ClickedCh:
				if _, err := t.ctrl.Keepsake(); err != nil {
					log.Printf("[Tray] keepsake: %v", err)
				}
			case <-menuClear.ClickedCh:
				t.ctrl.Clear()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			case <-t.stopCh:
				return
			}
		}
	}()
}

func (t *Tray) onExit() {
	t.once.Do(func() { close(t.stopCh) })
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
	systray.Quit()
}

// refresh keeps the tooltip and caption item in step with the loop.
func (t *Tray) refresh() {
	ticker := time.NewTicker(RefreshInterval)
	defer ticker.Stop()

	var lastCaption string
	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
		}

		st := t.ctrl.Status()
		if tip := tooltip(st); tip != t.lastTooltip {
			systray.SetTooltip(tip)
			t.lastTooltip = tip
		}
		caption := st.Caption.Text
		if st.Caption.Pending {
			caption = "…"
		}
		if caption != lastCaption {
			t.menuCaption.SetTitle(captionTitle(caption))
			lastCaption = caption
		}
	}
}

var titleCaser = cases.Title(language.English)

func themeTitle(th garden.Theme) string {
	return "Theme: " + titleCaser.String(string(th))
}

func backgroundTitle(bg garden.BackgroundMode) string {
	if bg == garden.BackgroundArtistic {
		return "Show Camera"
	}
	return "Show Artistic Backdrop"
}

func captionTitle(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return "No description yet"
	}
	if utf8.RuneCountInString(text) > maxCaptionRunes {
		runes := []rune(text)
		text = strings.TrimSpace(string(runes[:maxCaptionRunes-1])) + "…"
	}
	return text
}

// tooltip summarises the garden, with the clear countdown while a fist is
// held.
func tooltip(st app.Status) string {
	var b strings.Builder
	b.WriteString("Bloom")
	switch st.Flowers {
	case 0:
		b.WriteString(" · empty garden")
	case 1:
		b.WriteString(" · 1 flower")
	default:
		fmt.Fprintf(&b, " · %d flowers", st.Flowers)
	}
	if s := st.Signals.SecondsUntilClear; s > 0 {
		fmt.Fprintf(&b, " · clearing in %.1fs", s)
	}
	if st.State != app.StateRunning.String() {
		fmt.Fprintf(&b, " (%s)", st.State)
	}
	return b.String()
}
