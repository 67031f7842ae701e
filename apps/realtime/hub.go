package realtime

import (
	"context"
	"sync"

	"github.com/getevo/evo/v2/lib/log"
	"github.com/iesreza/hrdesk-backend/lib/idset"
)

// Client is one open websocket connection
type Client struct {
	ID         string
	EmployeeID string
	Groups     idset.Set
	Events     chan Event
}

// Hub fans events out to the clients connected to this instance
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]*Client
	bufferSize int
}

func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	return &Hub{
		clients:    make(map[string]*Client),
		bufferSize: bufferSize,
	}
}

// Join registers a client. groups may be empty; the client still receives
// events without a group.
func (h *Hub) Join(id, employeeID string, groups ...string) *Client {
	client := &Client{
		ID:         id,
		EmployeeID: employeeID,
		Groups:     idset.New(groups...),
		Events:     make(chan Event, h.bufferSize),
	}
	h.mu.Lock()
	h.clients[id] = client
	total := len(h.clients)
	h.mu.Unlock()
	log.Debug("realtime client joined: id=%s employee=%s (total: %d)", id, employeeID, total)
	return client
}

func (h *Hub) Leave(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[id]; ok {
		close(client.Events)
		delete(h.clients, id)
	}
}

// Deliver never blocks: a client whose buffer is full misses the event and
// catches up on its next re-fetch.
func (h *Hub) Deliver(event Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for _, client := range h.clients {
		if event.Group != "" && !client.Groups.Has(event.Group) {
			continue
		}
		select {
		case client.Events <- event:
			delivered++
		default:
			log.Warning("realtime client %s buffer full, dropping %s", client.ID, event.Name)
		}
	}
	return delivered
}

// Broadcast makes the hub usable as a single-instance Broadcaster
func (h *Hub) Broadcast(_ context.Context, event Event) error {
	h.Deliver(event)
	return nil
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		close(client.Events)
		delete(h.clients, id)
	}
}
