package hub

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Subscription filters broadcasts. Empty fields match everything, so panel
// displays can follow a whole sector while a counter display narrows down to
// its own service point.
type Subscription struct {
	SectorID       string
	ServicePointID string
}

type Client struct {
	ID           string
	Send         chan []byte
	Subscription Subscription
}

type Hub struct {
	mu      sync.RWMutex
	logger  *zap.Logger
	clients map[string]*Client
}

type SubscribeMessage struct {
	Action         string `json:"action"`
	SectorID       string `json:"sector_id"`
	ServicePointID string `json:"service_point_id"`
}

func New(logger *zap.Logger) *Hub {
	return &Hub{logger: logger, clients: make(map[string]*Client)}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client.ID)
	close(client.Send)
}

func (h *Hub) UpdateSubscription(client *Client, sub Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.Subscription = sub
}

func (h *Hub) Broadcast(payload []byte, meta Subscription) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if !match(client.Subscription, meta) {
			continue
		}
		select {
		case client.Send <- payload:
		default:
			h.logger.Warn("drop message for slow client", zap.String("client_id", client.ID))
		}
	}
}

func match(sub Subscription, meta Subscription) bool {
	if sub.SectorID != "" && meta.SectorID != sub.SectorID {
		return false
	}
	if sub.ServicePointID != "" && meta.ServicePointID != sub.ServicePointID {
		return false
	}
	return true
}

func ParseSubscribe(data []byte) (SubscribeMessage, bool) {
	var msg SubscribeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return SubscribeMessage{}, false
	}
	if msg.Action != "subscribe" && msg.Action != "unsubscribe" {
		return SubscribeMessage{}, false
	}
	return msg, true
}
