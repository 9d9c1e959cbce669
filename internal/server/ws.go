package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/bloom/internal/app"
)

// DefaultStatusInterval sends the status feed at about 15 Hz.
const DefaultStatusInterval = 66 * time.Millisecond

const writeWait = time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local connections only
	},
}

// StatusSource provides loop status snapshots.
type StatusSource interface {
	Status() app.Status
}

// StatusHandler broadcasts the loop status over WebSocket: gesture signals,
// the clear countdown, counts and the latest caption.
type StatusHandler struct {
	source   StatusSource
	interval time.Duration

	mu      sync.RWMutex
	clients map[*websocket.Conn]*sync.Mutex
	stopCh  chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewStatusHandler creates a StatusHandler and starts its broadcaster. A
// non-positive interval uses DefaultStatusInterval.
func NewStatusHandler(source StatusSource, interval time.Duration) *StatusHandler {
	if interval <= 0 {
		interval = DefaultStatusInterval
	}
	h := &StatusHandler{
		source:   source,
		interval: interval,
		clients:  make(map[*websocket.Conn]*sync.Mutex),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	go h.broadcast()
	return h
}

// ServeHTTP handles WebSocket upgrade requests. The current status is sent
// right away, then on every broadcast.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.stopCh:
		http.Error(w, "Server shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Server] websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	wmu := &sync.Mutex{}
	h.mu.Lock()
	h.clients[conn] = wmu
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	if msg, err := json.Marshal(h.source.Status()); err == nil {
		send(conn, wmu, msg)
	}

	// Reads keep the connection alive and notice when the client leaves.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *StatusHandler) broadcast() {
	defer close(h.done)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
		}

		h.mu.RLock()
		n := len(h.clients)
		h.mu.RUnlock()
		if n == 0 {
			continue
		}

		msg, err := json.Marshal(h.source.Status())
		if err != nil {
			log.Printf("[Server] encode status: %v", err)
			continue
		}

		h.mu.RLock()
		for conn, wmu := range h.clients {
			if err := send(conn, wmu, msg); err != nil {
				// the reader in ServeHTTP sees the closed connection and unregisters it
				conn.Close()
			}
		}
		h.mu.RUnlock()
	}
}

func send(conn *websocket.Conn, wmu *sync.Mutex, msg []byte) error {
	wmu.Lock()
	defer wmu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, msg)
}

// Clients returns the number of connected clients.
func (h *StatusHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops broadcasting and disconnects every client.
func (h *StatusHandler) Close() {
	h.once.Do(func() {
		close(h.stopCh)
		<-h.done
		h.mu.RLock()
		for conn, wmu := range h.clients {
			wmu.Lock()
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(writeWait))
			wmu.Unlock()
			conn.Close()
		}
		h.mu.RUnlock()
	})
}
