package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/ayusman/bloom/internal/app"
	"github.com/ayusman/bloom/internal/config"
	"github.com/ayusman/bloom/internal/host"
	"github.com/ayusman/bloom/internal/server"
	"github.com/ayusman/bloom/internal/settings"
	"github.com/ayusman/bloom/internal/store"
	"github.com/ayusman/bloom/internal/tray"
)

type runOptions struct {
	headless bool
	camera   int
	noServer bool
	noTray   bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	opts := runOptions{camera: -1}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the garden",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGarden(cmd.Context(), ctx, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.headless, "headless", false, "Run without a window, serving the garden over HTTP only")
	cmd.Flags().IntVar(&opts.camera, "camera", -1, "Camera device index (defaults to the last one used)")
	cmd.Flags().BoolVar(&opts.noServer, "no-server", false, "Do not start the HTTP server")
	cmd.Flags().BoolVar(&opts.noTray, "no-tray", false, "Do not show the tray icon")
	return cmd
}

func runGarden(cmdCtx context.Context, ctx *commandContext, opts runOptions) error {
	if cmdCtx == nil {
		cmdCtx = context.Background()
	}
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("bloom is already running (lock held at %s)", cfg.LockPath())
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Printf("[Main] release lock: %v", err)
		}
	}()

	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	cfg.Camera.Device = chooseCamera(opts.camera, cfg.Camera.Device, st)
	if opts.noServer {
		cfg.Server.Enabled = false
	}
	if opts.noTray {
		cfg.Display.Tray = false
	}

	appCfg := app.Config{
		Settings:    cfg,
		Store:       st,
		Preferences: settings.Open(settings.AppName),
	}

	var (
		window *host.Window
		ticker *app.TickerClock
	)
	if opts.headless {
		ticker = app.NewTickerClock(cfg.FrameInterval())
		defer ticker.Stop()
		appCfg.Clock = ticker
		appCfg.Viewport = app.FixedViewport{X: cfg.Display.Width, Y: cfg.Display.Height}
	} else {
		window = host.NewWindow(nil, host.Options{
			Title:      cfg.Display.Title,
			Width:      cfg.Display.Width,
			Height:     cfg.Display.Height,
			FPS:        cfg.Display.FPS,
			Fullscreen: cfg.Display.Fullscreen,
		})
		appCfg.Clock = window.Clock()
		appCfg.Viewport = window
	}

	a, err := app.New(appCfg)
	if err != nil {
		return err
	}
	if err := a.Start(signalCtx); err != nil {
		return err
	}
	defer func() {
		if err := a.Stop(); err != nil {
			log.Printf("[Main] stop: %v", err)
		}
	}()

	// serverDone stays nil when the server is disabled.
	var serverDone chan error
	if cfg.Server.Enabled {
		serverDone = make(chan error, 1)
		srv := server.New(serverConfig(cfg, a))
		go func() {
			serverDone <- srv.Run(signalCtx, cfg.Server.Bind)
		}()
	}

	var t *tray.Tray
	if cfg.Display.Tray {
		t = tray.New(a.Loop())
		t.OnQuit(cancel)
	}

	if opts.headless {
		log.Printf("[Main] running headless at %dx%d", cfg.Display.Width, cfg.Display.Height)
		if t != nil {
			go func() {
				<-signalCtx.Done()
				t.Quit()
			}()
			t.Run()
			cancel()
		} else {
			select {
			case <-signalCtx.Done():
			case err := <-serverDone:
				serverDone = nil
				if err != nil {
					return fmt.Errorf("http server: %w", err)
				}
			}
		}
	} else {
		window.Bind(a.Loop())
		if t != nil {
			t.Register()
		}
		go func() {
			<-signalCtx.Done()
			window.RequestQuit()
		}()
		err := window.Run()
		cancel()
		if t != nil {
			t.Quit()
		}
		if err != nil {
			return fmt.Errorf("window: %w", err)
		}
	}

	cancel()
	if serverDone != nil {
		if err := <-serverDone; err != nil {
			log.Printf("[Main] http server: %v", err)
		}
	}
	log.Println("[Main] shutting down")
	return nil
}

// chooseCamera prefers the flag, then the device remembered from the last
// switch, then the configured device.
func chooseCamera(flag, configured int, st *store.Store) int {
	if flag >= 0 {
		return flag
	}
	if st == nil {
		return configured
	}
	value, err := st.Settings().Get(store.SettingCameraDevice)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("[Main] read remembered camera: %v", err)
		}
		return configured
	}
	device, err := strconv.Atoi(value)
	if err != nil || device < 0 {
		return configured
	}
	return device
}

func serverConfig(cfg *config.Config, a *app.App) server.Config {
	sc := server.Config{
		Store:          a.Store(),
		Loop:           a.Loop(),
		StatusInterval: perSecond(cfg.Server.StatusHz),
		StreamInterval: perSecond(cfg.Server.StreamFPS),
	}
	if p := a.Plugins(); p != nil {
		sc.Plugins = p
	}
	return sc
}

func perSecond(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Second / time.Duration(n)
}
