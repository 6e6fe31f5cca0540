package publish

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"hemtjan.st/mbusmeter/meter"
)

// DefaultWriteTimeout bounds a write to one websocket client. Clients that
// stop reading are dropped once it passes.
const DefaultWriteTimeout = 5 * time.Second

type wsClient struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	timeout time.Duration
}

func (c *wsClient) send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

// Hub serves the latest reading over HTTP and streams new readings to
// WebSocket clients.
type Hub struct {
	// WriteTimeout bounds each write to a client
	WriteTimeout time.Duration

	log      zerolog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*wsClient]bool
	latest  []byte
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		WriteTimeout: DefaultWriteTimeout,
		log:          log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: map[*wsClient]bool{},
	}
}

func (h *Hub) Publish(r meter.Reading) error {
	msg, err := json.Marshal(r)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.latest = msg
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.send(msg); err != nil {
			h.log.Debug().Err(err).Str("remote", c.conn.RemoteAddr().String()).Msg("Dropping websocket client")
			h.remove(c)
		}
	}
	return nil
}

func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.status)
	mux.HandleFunc("/latest", h.serveLatest)
	mux.HandleFunc("/ws", h.serveWS)
	return mux
}

func (h *Hub) status(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	h.mu.RLock()
	clients := len(h.clients)
	h.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "running",
		"clients": clients,
	})
}

func (h *Hub) serveLatest(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	latest := h.latest
	h.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if latest == nil {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error": "no readings available yet",
		})
		return
	}
	_, _ = w.Write(latest)
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade")
		return
	}
	c := &wsClient{conn: conn, timeout: h.WriteTimeout}

	h.mu.Lock()
	h.clients[c] = true
	latest := h.latest
	h.mu.Unlock()

	// Send current reading immediately if available
	if latest != nil {
		if err := c.send(latest); err != nil {
			h.remove(c)
			return
		}
	}

	// Keep connection alive
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.remove(c)
			return
		}
	}
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	_ = c.conn.Close()
}
