package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"trade_sim/internal/domain"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client is one connected websocket peer.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn

	send     chan []byte
	sendOnce sync.Once
	mu       sync.RWMutex
	closed   bool
}

func newClient(id string, hub *Hub, conn *websocket.Conn) *Client {
	return &Client{id: id, hub: hub, conn: conn, send: make(chan []byte, sendBuffer)}
}

// trySend queues a frame without blocking. It reports false if the frame was dropped.
func (c *Client) trySend(payload []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.sendOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
	})
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("WebSocket client panic", slog.String("client", c.id), slog.Any("panic", r))
		}
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("WebSocket read failed", slog.String("client", c.id), slog.Any("error", err))
			}
			return
		}
		c.handleMessage(ctx, msg)
	}
}

func (c *Client) handleMessage(ctx context.Context, msg []byte) {
	var req Request
	if err := json.Unmarshal(msg, &req); err != nil {
		slog.Error("Invalid JSON received from client", slog.String("client", c.id), slog.Any("error", err))
		c.reply(Message{Type: TypeError, Message: "invalid JSON"})
		return
	}

	switch req.Type {
	case TypeSimulateTrade:
		c.reply(c.simulate(ctx, req.Params))
	default:
		c.reply(Message{Type: TypeError, Message: "unknown message type: " + req.Type})
	}
}

func (c *Client) simulate(ctx context.Context, raw json.RawMessage) Message {
	params := domain.DefaultSimulateParams()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return Message{Type: TypeError, Message: "invalid params: " + err.Error()}
		}
	}

	est, err := c.hub.sim.Simulate(ctx, params)
	if err != nil {
		if !errors.Is(err, domain.ErrNoOrderBook) {
			slog.Error("Client simulation failed", slog.String("client", c.id), slog.Any("error", err))
		}
		return Message{Type: TypeError, Message: err.Error()}
	}
	return Message{Type: TypeSimulationResult, Data: est}
}

func (c *Client) reply(m Message) {
	payload, err := json.Marshal(m)
	if err != nil {
		slog.Error("Failed to encode reply", slog.Any("error", err))
		return
	}
	if !c.trySend(payload) {
		slog.Warn("Client send buffer full, dropping reply", slog.String("client", c.id))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
