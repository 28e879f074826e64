// Package event broadcasts annotation lifecycle notifications to connected
// WebSocket clients, so open viewers can refresh a page when someone else
// annotates it.
package event

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Event is one annotation lifecycle notification.
type Event struct {
	Type     string `json:"type"`
	DocID    int64  `json:"doc_id"`
	Page     int    `json:"page,omitempty"`
	DBID     int64  `json:"db_id,omitempty"`
	DomainID string `json:"domain_id,omitempty"`
}

func AnnotationCreated(docID int64, page int, dbID int64, domainID string) Event {
	return Event{Type: "annotation_created", DocID: docID, Page: page, DBID: dbID, DomainID: domainID}
}

func AnnotationUpdated(docID int64, page int, dbID int64, domainID string) Event {
	return Event{Type: "annotation_updated", DocID: docID, Page: page, DBID: dbID, DomainID: domainID}
}

func AnnotationDeleted(docID int64, page int, dbID int64) Event {
	return Event{Type: "annotation_deleted", DocID: docID, Page: page, DBID: dbID}
}

// Hub maintains the set of active clients and fans events out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client and closes its send channel. Safe to call
// more than once for the same client.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast sends an event to all connected clients. A client whose buffer
// is full misses the event rather than blocking the caller.
func (h *Hub) Broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
