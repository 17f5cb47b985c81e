package api

import (
	"net/http"
	"sync"
	"time"

	"TickWatch/internal/domain/models"
	drepo "TickWatch/internal/domain/repository"
	xlogger "TickWatch/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// LiveHub pushes tick and signal events to websocket subscribers. A
// client that cannot keep up is dropped rather than backpressuring the
// pipeline.
type LiveHub struct {
	logger   *xlogger.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*liveClient]struct{}
}

type liveClient struct {
	conn *websocket.Conn
	send chan models.LiveEvent
}

var _ drepo.EventSink = (*LiveHub)(nil)

func NewLiveHub(logger *xlogger.Logger) *LiveHub {
	return &LiveHub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*liveClient]struct{}),
	}
}

// Broadcast fans an event out to all subscribers without blocking.
func (h *LiveHub) Broadcast(ev models.LiveEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			// slow consumer: evict
			delete(h.clients, c)
			close(c.send)
			h.logger.Warn("live client dropped (slow consumer)")
		}
	}
}

// Serve upgrades the request and streams events until the client
// disconnects.
func (h *LiveHub) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	cl := &liveClient{conn: conn, send: make(chan models.LiveEvent, 256)}
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("live client connected", xlogger.Int("clients", n))

	go h.writeLoop(cl)
	go h.readLoop(cl)
	return nil
}

func (h *LiveHub) writeLoop(cl *liveClient) {
	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()
	defer cl.conn.Close()

	for {
		select {
		case ev, ok := <-cl.send:
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			_ = cl.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := cl.conn.WriteJSON(ev); err != nil {
				h.remove(cl)
				return
			}
		case <-ping.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(cl)
				return
			}
		}
	}
}

// readLoop drains control frames and detects disconnects.
func (h *LiveHub) readLoop(cl *liveClient) {
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			h.remove(cl)
			return
		}
	}
}

func (h *LiveHub) remove(cl *liveClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
	}
}
