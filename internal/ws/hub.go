// Package ws pushes order-updated events to everyone watching an order, so
// their editors can re-seed from a fresh snapshot instead of polling.
package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
)

// EventOrderUpdated is sent whenever any mutation touches an order.
const EventOrderUpdated = "order-updated"

// Event is a WebSocket message to be broadcast.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// orderUpdatedPayload carries the id and the new aggregate version so
// clients can skip snapshots they already have.
type orderUpdatedPayload struct {
	OrderID uuid.UUID `json:"order_id"`
	Version uuid.UUID `json:"version"`
}

// orderEvent routes an event to one order's room.
type orderEvent struct {
	OrderID uuid.UUID
	Event   Event
}

// Hub maintains the set of active clients, one room per order.
type Hub struct {
	rooms map[uuid.UUID]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *orderEvent

	mu sync.RWMutex
}

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *orderEvent, 256),
	}
}

// Run starts the hub's main loop; call as a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.orderID] == nil {
				h.rooms[client.orderID] = make(map[*Client]bool)
			}
			h.rooms[client.orderID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.orderID]; ok {
				if _, exists := clients[client]; exists {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.rooms, client.orderID)
					}
				}
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.Lock()
			clients := h.rooms[event.OrderID]

			message, err := json.Marshal(event.Event)
			if err != nil {
				h.mu.Unlock()
				continue
			}

			for client := range clients {
				select {
				case client.send <- message:
				default:
					// Client's send buffer is full, close and unregister.
					close(client.send)
					delete(h.rooms[event.OrderID], client)
					if len(h.rooms[event.OrderID]) == 0 {
						delete(h.rooms, event.OrderID)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastOrderUpdated tells every watcher of the order to refresh.
func (h *Hub) BroadcastOrderUpdated(orderID, version uuid.UUID) {
	payload, err := json.Marshal(orderUpdatedPayload{OrderID: orderID, Version: version})
	if err != nil {
		log.Printf("ERROR: marshal order-updated payload: %v", err)
		return
	}
	h.broadcast <- &orderEvent{
		OrderID: orderID,
		Event:   Event{Type: EventOrderUpdated, Payload: payload},
	}
}
