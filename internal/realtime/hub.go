package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fleetfox/fleetfox/pkg/domain"
)

// Envelope is the frame pushed to websocket clients when a verdict lands.
type Envelope struct {
	Type      string              `json:"type"`
	Verdict   domain.VerdictEvent `json:"verdict"`
	Timestamp int64               `json:"timestamp"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte

	// Optional filters, taken from query params at upgrade time.
	foxID    string
	clientID string
}

func (c *client) wants(ev domain.VerdictEvent) bool {
	if c.foxID != "" && c.foxID != ev.FoxID {
		return false
	}
	if c.clientID != "" && c.clientID != ev.ClientID {
		return false
	}
	return true
}

// Hub fans verdict events out to connected websocket clients. Slow clients
// are dropped rather than allowed to back up the broadcast path.
type Hub struct {
	logger     *slog.Logger
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan domain.VerdictEvent
	mu         sync.RWMutex
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:     logger,
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan domain.VerdictEvent, 256),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
		case ev := <-h.broadcast:
			msg, err := json.Marshal(Envelope{
				Type:      "verdict",
				Verdict:   ev,
				Timestamp: time.Now().UTC().Unix(),
			})
			if err != nil {
				h.logger.Warn("realtime marshal failed", "error", err)
				continue
			}
			h.mu.Lock()
			for c := range h.clients {
				if !c.wants(ev) {
					continue
				}
				select {
				case c.send <- msg:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues a verdict for fanout. Drops the event if the hub is
// saturated; websocket delivery is best effort.
func (h *Hub) Broadcast(ev domain.VerdictEvent) {
	select {
	case h.broadcast <- ev:
	default:
		h.logger.Warn("realtime broadcast channel full, dropping verdict", "task_id", ev.TaskID)
	}
}

// ClientCount reports connected clients, used by the health endpoint.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades the connection and registers a client. `fox_id` and
// `client_id` query params narrow which verdicts the client receives.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &client{
		conn:     conn,
		send:     make(chan []byte, 64),
		foxID:    r.URL.Query().Get("fox_id"),
		clientID: r.URL.Query().Get("client_id"),
	}
	h.register <- c

	go func() {
		for msg := range c.send {
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
		_ = c.conn.Close()
	}()

	// Consume reads until the peer goes away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.unregister <- c
}
