package present

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/card-scanner/internal/imaging"
	"github.com/ironsheep/card-scanner/internal/scanner"
)

// Message types on the websocket.
const (
	TypeOverlay = "overlay"
	TypeCapture = "capture"
	TypeStatus  = "status"
	TypeReset   = "reset" // client -> server
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 32
)

// Message is the envelope of every websocket message.
type Message struct {
	Type    string                `json:"type"`
	Overlay *scanner.OverlayEvent `json:"overlay,omitempty"`
	Capture *scanner.CaptureEvent `json:"capture,omitempty"`
	Status  *scanner.StatusEvent  `json:"status,omitempty"`

	// Image is a base64 PNG: the annotated preview for overlays, the
	// rectified card for captures.
	Image string `json:"image,omitempty"`
}

// HubOptions controls preview rendering.
type HubOptions struct {
	PreviewWidth  int // annotated previews are scaled to fit this box
	PreviewHeight int
	PreviewEvery  int // attach a preview to every Nth overlay; 0 disables previews
}

// DefaultHubOptions sends a 640x480 preview for every third frame.
func DefaultHubOptions() HubOptions {
	return HubOptions{PreviewWidth: 640, PreviewHeight: 480, PreviewEvery: 3}
}

type client struct {
	id   uint64
	conn *websocket.Conn
	send chan []byte
}

// Hub broadcasts session events to websocket clients and accepts reset
// commands from them.
type Hub struct {
	opts     HubOptions
	log      *logrus.Entry
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[uint64]*client
	nextID  uint64
	onReset func()

	// Stats
	messagesSent atomic.Uint64
	dropped      atomic.Uint64
	resets       atomic.Uint64
}

// NewHub creates a hub with no clients.
func NewHub(opts HubOptions, logger *logrus.Logger) *Hub {
	return &Hub{
		opts: opts,
		log:  logger.WithField("component", "hub"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[uint64]*client),
	}
}

// OnReset sets the callback run when a client asks for a new scan.
func (h *Hub) OnReset(callback func()) {
	h.mu.Lock()
	h.onReset = callback
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HubStats contains hub counters.
type HubStats struct {
	Clients      int    `json:"clients"`
	MessagesSent uint64 `json:"messages_sent"`
	Dropped      uint64 `json:"dropped"`
	Resets       uint64 `json:"resets"`
}

// Stats returns the hub counters.
func (h *Hub) Stats() HubStats {
	return HubStats{
		Clients:      h.ClientCount(),
		MessagesSent: h.messagesSent.Load(),
		Dropped:      h.dropped.Load(),
		Resets:       h.resets.Load(),
	}
}

// Handler returns the HTTP routes: the viewer page at /, the websocket at
// /ws and counters at /stats.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(viewerPage))
	})
	mux.Handle("/ws", h)
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(h.Stats())
	})
	return mux
}

// ServeHTTP upgrades the request and serves one client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Debug("Websocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.nextID++
	c := &client{id: h.nextID, conn: conn, send: make(chan []byte, sendBuffer)}
	h.clients[c.id] = c
	count := len(h.clients)
	h.mu.Unlock()

	h.log.WithFields(logrus.Fields{"client": c.id, "clients": count}).Info("Viewer connected")

	go h.writePump(c)
	h.readPump(c)

	h.mu.Lock()
	delete(h.clients, c.id)
	close(c.send)
	count = len(h.clients)
	h.mu.Unlock()

	h.log.WithFields(logrus.Fields{"client": c.id, "clients": count}).Info("Viewer disconnected")
}

func (h *Hub) readPump(c *client) {
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			h.log.WithError(err).WithField("client", c.id).Debug("Ignoring malformed message")
			continue
		}
		if msg.Type != TypeReset {
			continue
		}

		h.resets.Add(1)
		h.mu.RLock()
		cb := h.onReset
		h.mu.RUnlock()
		h.log.WithField("client", c.id).Info("Reset requested")
		if cb != nil {
			cb()
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
			h.messagesSent.Add(1)
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Broadcast queues msg for every client. Clients whose queue is full miss
// the message.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.WithError(err).WithField("type", msg.Type).Error("Failed to encode message")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.dropped.Add(1)
		}
	}
}

func (h *Hub) Overlay(e scanner.OverlayEvent) {
	if h.ClientCount() == 0 {
		return
	}
	msg := Message{Type: TypeOverlay, Overlay: &e}
	if h.wantsPreview(e) {
		img := imaging.DrawOverlay(e.Frame, e.Annotation())
		preview := imaging.Preview(img, h.opts.PreviewWidth, h.opts.PreviewHeight)
		if encoded, err := imaging.EncodePNGBase64(preview); err == nil {
			msg.Image = encoded
		}
	}
	h.Broadcast(msg)
}

func (h *Hub) wantsPreview(e scanner.OverlayEvent) bool {
	if h.opts.PreviewEvery <= 0 || e.Frame.Empty() {
		return false
	}
	return e.Verdict.Locked || e.Seq%uint64(h.opts.PreviewEvery) == 0
}

func (h *Hub) Capture(e scanner.CaptureEvent) {
	msg := Message{Type: TypeCapture, Capture: &e}
	encoded, err := imaging.EncodePNGBase64(e.Result.Image)
	if err != nil {
		h.log.WithError(err).Error("Failed to encode capture")
	} else {
		msg.Image = encoded
	}
	h.Broadcast(msg)
}

func (h *Hub) Status(e scanner.StatusEvent) {
	h.Broadcast(Message{Type: TypeStatus, Status: &e})
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		_ = c.conn.Close()
	}
}
