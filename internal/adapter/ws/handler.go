// Package ws implements the WebSocket adapter observers connect to.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// ReplyFunc sends a frame back to the requesting observer only.
type ReplyFunc func(frame []byte)

// CommandHandler processes one inbound frame. Broadcast output goes
// through the sink the handler was wired with; per-requester replies go
// through reply.
type CommandHandler interface {
	Handle(ctx context.Context, raw []byte, reply ReplyFunc)
}

// conn wraps a single observer connection.
type conn struct {
	id     string
	ws     *websocket.Conn
	cancel context.CancelFunc
}

// Hub tracks all observer connections, fans frames out to every one of
// them, and feeds inbound frames to the command handler.
type Hub struct {
	welcome []byte
	handler CommandHandler

	mu    sync.RWMutex
	conns map[*conn]struct{}
}

// NewHub creates a hub. welcome, when non-nil, is written to each
// observer right after the upgrade.
func NewHub(welcome []byte, handler CommandHandler) *Hub {
	return &Hub{
		welcome: welcome,
		handler: handler,
		conns:   make(map[*conn]struct{}),
	}
}

// HandleWS upgrades the request and serves the connection until the
// observer disconnects. Commands are dispatched in arrival order, one at
// a time per connection.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS handled by middleware
	})
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	c := &conn{id: uuid.NewString(), ws: ws, cancel: cancel}

	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()

	slog.Info("observer connected", "conn", c.id, "remote", r.RemoteAddr)

	defer func() {
		h.remove(c)
		_ = ws.Close(websocket.StatusNormalClosure, "")
	}()

	if h.welcome != nil {
		if err := ws.Write(ctx, websocket.MessageText, h.welcome); err != nil {
			return
		}
	}

	reply := func(frame []byte) {
		if err := ws.Write(ctx, websocket.MessageText, frame); err != nil {
			slog.Debug("reply write failed", "conn", c.id, "error", err)
		}
	}

	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			return
		}
		if h.handler != nil {
			h.handler.Handle(ctx, data, reply)
		}
	}
}

// Send delivers a frame to every connected observer. Connections whose
// write fails are dropped.
func (h *Hub) Send(ctx context.Context, kind string, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.conns {
		if err := c.ws.Write(ctx, websocket.MessageText, frame); err != nil {
			slog.Debug("broadcast write failed", "conn", c.id, "kind", kind, "error", err)
			go h.remove(c)
		}
	}
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c]; ok {
		c.cancel()
		delete(h.conns, c)
		slog.Info("observer disconnected", "conn", c.id)
	}
}
