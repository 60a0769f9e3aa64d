package session

import (
	"context"
	"encoding/json"
	"sync"

	"pulsefm/logger"
	"pulsefm/model"
)

// Hub fans broadcasts out to every connected client. All map mutation
// happens on the Run goroutine via the channels.
type Hub struct {
	clients map[string]*Client // connection id -> client
	byKey   map[string]*Client // api key -> newest connection

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	mu sync.RWMutex
}

// NewHub builds an idle hub; call Run to start it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		byKey:      make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
	}
}

// Run drives the hub until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case message := <-h.broadcast:
			h.fanOut(message)

		case <-ctx.Done():
			h.cleanup()
			return
		}
	}
}

// Register announces a new connection. An existing connection for the
// same API key is kicked first.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister drops a connection.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Broadcast wraps data in the standard envelope and queues it for every
// connected client.
func (h *Hub) Broadcast(action string, data interface{}) {
	payload, err := json.Marshal(model.Notification(action, data))
	if err != nil {
		logger.Error("broadcast marshal failed", logger.String("action", action), logger.ErrorField(err))
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		logger.Warn("broadcast channel full, dropping message", logger.String("action", action))
	}
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// KickKey closes the connection registered under an API key, if any.
func (h *Hub) KickKey(apiKey string) {
	h.mu.RLock()
	client := h.byKey[apiKey]
	h.mu.RUnlock()

	if client != nil {
		h.Unregister(client)
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()

	var old *Client
	if existing, ok := h.byKey[client.APIKey]; ok && existing != client {
		old = existing
	}
	h.clients[client.ConnectionID] = client
	h.byKey[client.APIKey] = client
	h.mu.Unlock()

	// One connection per API key; the newer one wins.
	if old != nil {
		h.removeClient(old)
	}

	logger.Info("session connected",
		logger.String("connectionId", client.ConnectionID),
		logger.String("apiKey", client.APIKey))
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ConnectionID]; !ok {
		return
	}
	delete(h.clients, client.ConnectionID)
	if h.byKey[client.APIKey] == client {
		delete(h.byKey, client.APIKey)
	}
	close(client.Send)

	logger.Info("session disconnected",
		logger.String("connectionId", client.ConnectionID),
		logger.String("apiKey", client.APIKey))
}

func (h *Hub) fanOut(message []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	var slow []*Client
	for _, client := range clients {
		select {
		case client.Send <- message:
		default:
			slow = append(slow, client)
		}
	}
	for _, client := range slow {
		logger.Warn("send buffer full, dropping session",
			logger.String("connectionId", client.ConnectionID))
		h.removeClient(client)
	}
}

func (h *Hub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.Send)
	}
	h.clients = make(map[string]*Client)
	h.byKey = make(map[string]*Client)
}

