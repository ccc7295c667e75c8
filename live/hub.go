package live

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/B4OS-Dev/classroom-sync/models"
)

const leaderboardUpdated = "LEADERBOARD_UPDATED"

// Message is the envelope pushed to connected dashboard clients.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Hub fans a refreshed leaderboard snapshot out to every connected
// websocket client. There is a single broadcast domain: all clients watch
// the same leaderboard.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 8),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("websocket client registered", slog.Int("clients", h.clientCount()))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closeSend()
			}
			h.mu.Unlock()
			h.logger.Debug("websocket client unregistered", slog.Int("clients", h.clientCount()))

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer: drop it rather than block the hub.
					delete(h.clients, client)
					client.closeSend()
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastLeaderboard pushes the refreshed snapshot to all clients.
func (h *Hub) BroadcastLeaderboard(entries []*models.LeaderboardEntry) {
	payload, err := json.Marshal(Message{Type: leaderboardUpdated, Payload: entries})
	if err != nil {
		h.logger.Error("failed to marshal leaderboard broadcast", slog.Any("error", err))
		return
	}
	h.broadcast <- payload
}
