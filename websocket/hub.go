package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"cleanzone-api/metrics"
)

type envelope struct {
	eventID uint32
	payload []byte
}

// Hub fans chat messages out to the clients subscribed to each event.
type Hub struct {
	rooms map[uint32]map[*Client]bool

	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu  sync.RWMutex
	log *logrus.Logger
}

func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		rooms:      make(map[uint32]map[*Client]bool),
		broadcast:  make(chan envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run processes registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			close(h.done)
			return

		case client := <-h.register:
			h.mu.Lock()
			room, ok := h.rooms[client.EventID]
			if !ok {
				room = make(map[*Client]bool)
				h.rooms[client.EventID] = room
			}
			room[client] = true
			h.mu.Unlock()
			metrics.WebsocketConnected()

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.rooms[msg.eventID] {
				select {
				case client.send <- msg.payload:
				default:
					// slow consumer
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove must be called with mu held.
func (h *Hub) remove(client *Client) {
	room, ok := h.rooms[client.EventID]
	if !ok || !room[client] {
		return
	}
	delete(room, client)
	close(client.send)
	if len(room) == 0 {
		delete(h.rooms, client.EventID)
	}
	metrics.WebsocketDisconnected()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range h.rooms {
		for client := range room {
			h.remove(client)
		}
	}
}

// BroadcastToEvent queues v, encoded as JSON, for every client of the event.
func (h *Hub) BroadcastToEvent(eventID uint32, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.log.WithError(err).Error("failed to encode chat broadcast")
		return
	}
	select {
	case h.broadcast <- envelope{eventID: eventID, payload: payload}:
	default:
		h.log.WithField("event_id", eventID).Warn("chat broadcast queue full, dropping message")
	}
}

// Disconnect closes every stream userID holds on the event's chat.
func (h *Hub) Disconnect(eventID, userID uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.rooms[eventID] {
		if client.UserID == userID {
			h.remove(client)
		}
	}
}

// CloseRoom closes every stream on the event's chat.
func (h *Hub) CloseRoom(eventID uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.rooms[eventID] {
		h.remove(client)
	}
}

func (h *Hub) ClientCount(eventID uint32) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[eventID])
}
