// Package progress pushes live scrape run logs to websocket clients.
package progress

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/shelfstream/shelfstream/internal/scraper"
)

// Event is one progress update for a scrape task.
type Event struct {
	JobID   int64              `json:"job_id"`
	TaskID  int64              `json:"task_id"`
	RunID   string             `json:"run_id"`
	Entries []scraper.LogEntry `json:"entries"`
}

const (
	sendBufferSize = 32

	// historySize bounds the replay backlog; it must fit in a fresh
	// client's send buffer.
	historySize = 16
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans progress events out to connected clients. A client that
// cannot keep up with the event stream is dropped. New clients get the
// recent event backlog replayed on connect.
type Hub struct {
	mu       sync.Mutex
	clients  map[*client]struct{}
	history  *ring[[]byte]
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		history: newRing[[]byte](historySize),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger.With().Str("component", "progress").Logger(),
	}
}

// PublishProgress broadcasts a run log update.
func (h *Hub) PublishProgress(jobID, taskID int64, runID string, entries []scraper.LogEntry) {
	data, err := json.Marshal(Event{
		JobID:   jobID,
		TaskID:  taskID,
		RunID:   runID,
		Entries: entries,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to encode progress event")
		return
	}

	h.history.push(data)

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn().Msg("dropping slow progress client")
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Handle upgrades an HTTP request to a websocket subscription.
func (h *Hub) Handle(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	cl := &client{
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	for _, data := range h.history.snapshot() {
		cl.send <- data
	}

	h.mu.Lock()
	h.clients[cl] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug().Int("clients", count).Msg("progress client connected")

	go cl.writePump()
	go h.readPump(cl)
	return nil
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// readPump discards inbound frames and unregisters on error, which is
// how a client closing the connection surfaces.
func (h *Hub) readPump(cl *client) {
	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[cl]; ok {
			delete(h.clients, cl)
			close(cl.send)
		}
		h.mu.Unlock()
		cl.conn.Close()
	}()

	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump drains the send channel onto the connection.
func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
