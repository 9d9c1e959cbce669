// Package server provides the local HTTP API: the live garden and its
// settings, saved history, hooks, an MJPEG preview and a status websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/bloom/internal/app"
	"github.com/ayusman/bloom/internal/server/api"
	"github.com/ayusman/bloom/internal/store"
)

// Loop is what the server needs from the frame loop. *app.Loop implements
// it.
type Loop interface {
	api.Garden
	api.Captioner
	Status() app.Status
	MirroredFrame() (gocv.Mat, error)
}

// Config holds the server configuration. Routes whose dependencies are nil
// are not registered.
type Config struct {
	StaticDir string
	Store     *store.Store
	Loop      Loop
	Plugins   api.PluginLookup

	// StatusInterval is the status feed period; StreamInterval the MJPEG
	// frame period.
	StatusInterval time.Duration
	StreamInterval time.Duration
}

// Server is the HTTP server for Bloom.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	status *StatusHandler
	stream *StreamHandler
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if st := s.config.Store; st != nil {
		hooks := api.NewHookHandler(st, s.config.Plugins)
		s.mux.Handle("/api/hooks", hooks)
		s.mux.Handle("/api/hooks/", hooks)

		snapshots := api.NewSnapshotHandler(st)
		s.mux.Handle("/api/snapshots", snapshots)
		s.mux.Handle("/api/snapshots/", snapshots)
	}

	if s.config.Plugins != nil {
		s.mux.Handle("/api/plugins", api.PluginsHandler(s.config.Plugins))
	}

	if loop := s.config.Loop; loop != nil {
		s.mux.Handle("/api/garden", api.NewGardenHandler(loop))
		s.mux.Handle("/api/settings", api.NewSettingsHandler(loop))
		s.mux.Handle("/api/captions", api.NewCaptionHandler(s.config.Store, loop))
		s.stream = NewStreamHandler(loop, s.config.StreamInterval)
		s.mux.Handle("/api/stream", s.stream)

		s.status = NewStatusHandler(loop, s.config.StatusInterval)
		s.mux.Handle("/api/status", s.status)
	} else if s.config.Store != nil {
		s.mux.Handle("/api/captions", api.NewCaptionHandler(s.config.Store, nil))
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).Round(time.Second).String(),
	}
	if loop := s.config.Loop; loop != nil {
		response["state"] = loop.Status().State
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// Close ends open MJPEG streams and the status feed.
func (s *Server) Close() {
	if s.stream != nil {
		s.stream.Close()
	}
	if s.status != nil {
		s.status.Close()
	}
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Server] listening on http://%s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}

	// Streams never finish on their own; close them before shutdown waits.
	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Server] shutdown: %v", err)
		srv.Close()
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
