// Package wshub keeps the registry of live WebSocket connections keyed by
// user id and delivers notification frames to them. Hub implements
// notify.Notifier.
package wshub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dalemusser/parley/internal/app/system/metrics"
	"go.uber.org/zap"
)

// Frame is the JSON shape written to clients.
type Frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Hub is safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	log     *zap.Logger
}

// NewHub returns an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		log:     logger,
	}
}

// Register adds c under its key.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.key] == nil {
		h.clients[c.key] = make(map[*Client]struct{})
	}
	h.clients[c.key][c] = struct{}{}
	metrics.Connections.Inc()
}

// Unregister removes c and closes its send channel. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.key]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.key)
	}
	close(c.send)
	metrics.Connections.Dec()
}

// Connected reports how many connections are registered under key.
func (h *Hub) Connected(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[key])
}

// Notify encodes the event and queues it to every connection of routingKey.
// It never blocks: a client whose buffer is full is disconnected.
func (h *Hub) Notify(_ context.Context, event string, payload any, routingKey string) {
	raw, err := encodeFrame(event, payload)
	if err != nil {
		h.log.Warn("notify: encode frame failed", zap.String("event", event), zap.Error(err))
		return
	}
	h.Deliver(routingKey, raw)
}

// Deliver queues an already encoded frame to every connection of key.
func (h *Hub) Deliver(key string, frame []byte) int {
	var slow []*Client
	delivered := 0

	h.mu.RLock()
	for c := range h.clients[key] {
		select {
		case c.send <- frame:
			delivered++
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	metrics.FramesDelivered.Add(float64(delivered))
	for _, c := range slow {
		metrics.FramesDropped.Inc()
		h.log.Info("dropping slow websocket client", zap.String("user_id", key))
		h.Unregister(c)
	}
	return delivered
}

// CloseAll unregisters every connection. Used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	var all []*Client
	for _, set := range h.clients {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range all {
		h.Unregister(c)
	}
}

func encodeFrame(event string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Payload: body})
}
