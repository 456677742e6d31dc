package net

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/qt2/oxwalk/internal/crowd"
	"github.com/qt2/oxwalk/internal/telemetry"
)

// Metric keys reported by the hub.
const (
	MetricBroadcasts     = "ws_broadcasts"
	MetricBroadcastBytes = "ws_broadcast_bytes"
	MetricSubscribers    = "ws_subscribers"
)

// Subscription is one connected viewer. Writes are serialised because
// gorilla/websocket connections support a single concurrent writer.
type Subscription struct {
	ID   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *Subscription) WriteMessage(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(messageType, data)
}

// Hub fans snapshot messages out to websocket subscribers. The latest
// message is cached so that new subscribers see the world immediately.
type Hub struct {
	timeStep float64
	logger   telemetry.Logger
	metrics  telemetry.Metrics

	mu          sync.Mutex
	subscribers map[string]*Subscription
	latest      []byte
	nextID      atomic.Uint64
}

type HubConfig struct {
	// TimeStep converts ticks into simulated seconds.
	TimeStep float64
	Logger   telemetry.Logger
	Metrics  telemetry.Metrics
}

func NewHub(cfg HubConfig) *Hub {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.Discard()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	return &Hub{
		timeStep:    cfg.TimeStep,
		logger:      logger,
		metrics:     metrics,
		subscribers: make(map[string]*Subscription),
	}
}

// Subscribe registers conn and returns it with the cached snapshot, if any.
func (h *Hub) Subscribe(conn *websocket.Conn) (*Subscription, []byte) {
	id := fmt.Sprintf("viewer-%d", h.nextID.Add(1))
	sub := &Subscription{ID: id, conn: conn}
	h.mu.Lock()
	h.subscribers[id] = sub
	latest := h.latest
	count := len(h.subscribers)
	h.mu.Unlock()
	h.metrics.Store(MetricSubscribers, uint64(count))
	return sub, latest
}

// Disconnect removes the subscriber and closes its connection.
func (h *Hub) Disconnect(id string) {
	h.mu.Lock()
	sub, ok := h.subscribers[id]
	delete(h.subscribers, id)
	count := len(h.subscribers)
	h.mu.Unlock()
	if ok {
		sub.conn.Close()
	}
	h.metrics.Store(MetricSubscribers, uint64(count))
}

// Subscribers lists connected subscriber ids.
func (h *Hub) Subscribers() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.subscribers))
	for id := range h.subscribers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Broadcast encodes snapshot once and writes it to every subscriber.
// Subscribers whose write fails are disconnected.
func (h *Hub) Broadcast(tick uint64, snapshot crowd.Snapshot) error {
	data, err := json.Marshal(newSnapshotMessage(tick, h.timeStep, snapshot))
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	h.mu.Lock()
	h.latest = data
	targets := make(map[string]*Subscription, len(h.subscribers))
	for id, sub := range h.subscribers {
		targets[id] = sub
	}
	h.mu.Unlock()

	h.metrics.Add(MetricBroadcasts, 1)
	h.metrics.Add(MetricBroadcastBytes, uint64(len(data)))

	for id, sub := range targets {
		if err := sub.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Printf("dropping subscriber %s: %v", id, err)
			h.Disconnect(id)
		}
	}
	return nil
}
