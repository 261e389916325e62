package live

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lexiqai/meeting-listener/internal/events"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 32
)

var upgrader = websocket.Upgrader{
	// The live feed is served to the local dashboard only
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// Hub broadcasts meeting events to connected websocket viewers.
// A viewer that cannot keep up is disconnected rather than blocking the worker.
type Hub struct {
	mu      sync.RWMutex
	viewers map[*viewer]struct{}
	logger  zerolog.Logger
}

type viewer struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (v *viewer) close() {
	v.once.Do(func() { close(v.done) })
}

// NewHub creates an empty hub
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{viewers: make(map[*viewer]struct{}), logger: logger}
}

// Viewers returns the number of connected viewers
func (h *Hub) Viewers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

// Publish queues the event for every viewer
func (h *Hub) Publish(ctx context.Context, ev events.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for v := range h.viewers {
		select {
		case v.send <- payload:
		default:
			h.logger.Warn().Str("viewer_id", v.id).Msg("Live viewer too slow, disconnecting")
			v.close()
		}
	}
	return nil
}

// ServeHTTP upgrades the request and streams events until the viewer leaves
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to upgrade live feed connection")
		return
	}

	v := &viewer{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	h.register(v)
	logger := h.logger.With().Str("viewer_id", v.id).Logger()
	logger.Info().Msg("Live viewer connected")

	go h.readLoop(v, logger)
	h.writeLoop(v)

	h.unregister(v)
	conn.Close()
	logger.Info().Msg("Live viewer disconnected")
}

// Close disconnects every viewer
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for v := range h.viewers {
		v.close()
	}
}

func (h *Hub) register(v *viewer) {
	h.mu.Lock()
	h.viewers[v] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(v *viewer) {
	h.mu.Lock()
	delete(h.viewers, v)
	h.mu.Unlock()
}

// readLoop discards client messages and notices when the peer goes away
func (h *Hub) readLoop(v *viewer, logger zerolog.Logger) {
	defer v.close()
	v.conn.SetReadLimit(4096)
	v.conn.SetReadDeadline(time.Now().Add(pongWait))
	v.conn.SetPongHandler(func(string) error {
		return v.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warn().Err(err).Msg("Live feed read error")
			}
			return
		}
	}
}

func (h *Hub) writeLoop(v *viewer) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-v.done:
			v.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case payload := <-v.send:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				v.close()
				return
			}
		case <-ticker.C:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				v.close()
				return
			}
		}
	}
}
