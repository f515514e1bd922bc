package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"hsr-simulator/internal/metrics"
	"hsr-simulator/internal/sim"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans published snapshots out to WebSocket clients. Snapshots arriving
// while the queue is full are dropped; clients only ever need the latest.
type Hub struct {
	metrics   *metrics.Collector
	broadcast chan *sim.Snapshot

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewHub(m *metrics.Collector) *Hub {
	return &Hub{
		metrics:   m,
		broadcast: make(chan *sim.Snapshot, 8),
		clients:   make(map[*websocket.Conn]struct{}),
	}
}

// Consume queues a snapshot without blocking. It satisfies sim.Sink.
func (h *Hub) Consume(snap *sim.Snapshot) {
	select {
	case h.broadcast <- snap:
	default:
		if h.metrics != nil {
			h.metrics.WSDropped.Inc()
		}
	}
}

// Run delivers queued snapshots until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case snap := <-h.broadcast:
			h.send(snap)
		}
	}
}

// Register adds an upgraded connection and sends it the current snapshot first.
func (h *Hub) Register(conn *websocket.Conn, current *sim.Snapshot) {
	data, err := json.Marshal(current)
	if err != nil {
		log.WithError(err).Error("ws: encode snapshot")
		conn.Close()
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.WithError(err).Debug("ws: initial write failed")
		conn.Close()
		return
	}
	h.clients[conn] = struct{}{}
	h.setClientGauge()
	log.WithField("remote", conn.RemoteAddr().String()).Info("ws client connected")

	go h.readLoop(conn)
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// readLoop discards client messages and unregisters the client on close.
func (h *Hub) readLoop(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.remove(conn)
			return
		}
	}
}

func (h *Hub) send(snap *sim.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		log.WithError(err).Error("ws: encode snapshot")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.WithError(err).WithField("remote", conn.RemoteAddr().String()).Debug("ws write failed")
			delete(h.clients, conn)
			conn.Close()
		}
	}
	h.setClientGauge()
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
		h.setClientGauge()
		log.WithField("remote", conn.RemoteAddr().String()).Info("ws client disconnected")
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
		delete(h.clients, conn)
	}
	h.setClientGauge()
}

// setClientGauge must be called with mu held.
func (h *Hub) setClientGauge() {
	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(len(h.clients)))
	}
}
