// Package ws serves the client websocket: snapshot broadcasts out,
// simulate_trade requests in.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"trade_sim/internal/domain"
	"trade_sim/internal/infra"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Message types.
const (
	TypeOrderBookUpdate  = "orderbook_update"
	TypeSimulateTrade    = "simulate_trade"
	TypeSimulationResult = "simulation_result"
	TypeError            = "error"
)

const sendBuffer = 64

var _ domain.SnapshotPublisher = (*Hub)(nil)

// Simulator runs one cost estimate.
type Simulator interface {
	Simulate(ctx context.Context, p domain.SimulateParams) (domain.CostEstimate, error)
}

// Message is the envelope for every frame sent to a client.
type Message struct {
	Type    string `json:"type"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// Request is a frame received from a client.
type Request struct {
	Type   string          `json:"type"`
	Params json.RawMessage `json:"params"`
}

// Hub tracks connected clients and fans snapshots out to them.
// It implements domain.SnapshotPublisher.
type Hub struct {
	sim      Simulator
	metrics  *infra.Metrics
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*Client]struct{}
	closed  bool
}

// NewHub creates a hub. allowedOrigin "*" or "" accepts any origin.
func NewHub(sim Simulator, metrics *infra.Metrics, allowedOrigin string) *Hub {
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}
	return &Hub{
		sim:     sim,
		metrics: metrics,
		clients: make(map[*Client]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" || allowedOrigin == "*" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		},
	}
}

// ServeHTTP upgrades the request and runs the client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", slog.Any("error", err))
		return
	}

	c := newClient(uuid.NewString(), h, conn)
	if !h.register(c) {
		conn.Close()
		return
	}
	slog.Info("WebSocket client connected", slog.String("client", c.id))

	go c.writePump()
	c.readPump(r.Context())
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.metrics.IncrementConnections()
	return true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if ok {
		c.closeSend()
		h.metrics.DecrementConnections()
		slog.Info("WebSocket client disconnected", slog.String("client", c.id))
	}
}

// Publish broadcasts the snapshot as an orderbook_update frame. Clients whose
// send buffer is full miss the frame.
func (h *Hub) Publish(_ context.Context, snap *domain.Snapshot) error {
	if snap == nil {
		return nil
	}
	payload, err := json.Marshal(Message{Type: TypeOrderBookUpdate, Data: snap})
	if err != nil {
		return err
	}
	h.broadcast(payload)
	return nil
}

func (h *Hub) broadcast(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.trySend(payload) {
			slog.Debug("Client send buffer full, dropping frame", slog.String("client", c.id))
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.conn.Close()
	}
}
